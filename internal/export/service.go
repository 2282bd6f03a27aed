package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/factura-ai/invoice-extractor/internal/repository"
)

// Service is a tiny façade over the invoice repository that produces XLSX
// bytes for exports.
type Service struct {
	repo   repository.InvoiceRepository
	logger *slog.Logger
}

func NewService(repo repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportInvoicesXLSX returns an XLSX workbook (as bytes) for all records
// matching the optional invoice-number filter, newest first.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, numberFilter string) ([]byte, error) {
	start := time.Now()

	recs, err := s.repo.FindAll(ctx, numberFilter)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Invoice Number",
		"Issue Date",
		"Due Date",
		"Supplier",
		"Customer",
		"Subtotal",
		"Tax",
		"Total",
		"Currency",
		"Validated By",
		"Validated At",
		"Source File",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.InvoiceNumberOrEmpty())
		write(2, r.IssueDate)
		write(3, r.DueDate)
		if r.Supplier != nil {
			write(4, truncate(r.Supplier.Name, 140))
		}
		if r.Customer != nil {
			write(5, truncate(r.Customer.Name, 140))
		}
		if r.Subtotal != nil {
			write(6, *r.Subtotal)
		}
		if r.Tax != nil {
			write(7, *r.Tax)
		}
		if r.Total != nil {
			write(8, *r.Total)
		}
		write(9, r.Currency)
		write(10, r.Metadata.ValidatedBy)
		if r.Metadata.ValidatedAt != nil {
			write(11, r.Metadata.ValidatedAt.Format("2006-01-02 15:04"))
		}
		write(12, r.Metadata.FileName)

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 18) // invoice number
	_ = f.SetColWidth(sheet, "B", "C", 12) // dates
	_ = f.SetColWidth(sheet, "D", "E", 32) // parties
	_ = f.SetColWidth(sheet, "F", "H", 12) // amounts
	_ = f.SetColWidth(sheet, "J", "K", 18) // validation
	_ = f.SetColWidth(sheet, "L", "L", 40) // source file

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
