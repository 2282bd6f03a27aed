package invoice

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/factura-ai/invoice-extractor/constants"
	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/entity"
	"github.com/factura-ai/invoice-extractor/internal/llm"
)

// AllowedCurrencies is the fixed ISO 4217 allow-list.
var AllowedCurrencies = map[string]struct{}{
	"MXN": {}, "USD": {}, "EUR": {}, "GBP": {}, "CAD": {},
	"COP": {}, "ARS": {}, "CLP": {}, "PEN": {}, "BRL": {},
	"JPY": {}, "CNY": {},
}

// Documented maximum string lengths.
const (
	maxNameLen      = 500
	maxShortCodeLen = 100
	maxNotesLen     = 2000
	maxFileNameLen  = 255
)

// totalTolerance bounds the accepted drift in total = subtotal + tax.
const totalTolerance = 0.01

// BuildRecord converts an extracted candidate plus caller-supplied metadata
// into a valid InvoiceRecord, or rejects it. Validation is all-or-nothing:
// the first violated rule rejects the whole candidate with the field and
// rule identified. Identity and timestamps are left for the record service.
func BuildRecord(fields *llm.InvoiceFields, meta entity.Metadata) (*entity.InvoiceRecord, error) {
	if err := validateMetadata(&meta); err != nil {
		return nil, err
	}

	rec := &entity.InvoiceRecord{Metadata: meta}

	num := strings.TrimSpace(fields.InvoiceNumber)
	if len(num) > maxShortCodeLen {
		return nil, common.NewValidationFailed("numeroFactura", "max_length",
			"invoice number exceeds %d characters", maxShortCodeLen)
	}
	if num != "" {
		rec.InvoiceNumber = &num
	}

	var err error
	if rec.IssueDate, err = normalizeDate("fecha", fields.IssueDate); err != nil {
		return nil, err
	}
	if rec.DueDate, err = normalizeDate("fechaVencimiento", fields.DueDate); err != nil {
		return nil, err
	}

	rec.Supplier = normalizeParty(fields.Supplier)
	rec.Customer = normalizeParty(fields.Customer)

	if len(fields.Items) > constants.MaxLineItems {
		return nil, common.NewValidationFailed("items", "max_items",
			"line item count %d exceeds %d", len(fields.Items), constants.MaxLineItems)
	}
	for _, it := range fields.Items {
		li := entity.LineItem{Description: truncate(strings.TrimSpace(it.Description), maxNameLen)}
		for _, amt := range []struct {
			field string
			src   *float64
			dst   *float64
		}{
			{"items.cantidad", it.Quantity, &li.Quantity},
			{"items.precioUnitario", it.UnitPrice, &li.UnitPrice},
			{"items.total", it.Total, &li.Total},
		} {
			if amt.src == nil {
				continue
			}
			if err := checkAmount(amt.field, *amt.src); err != nil {
				return nil, err
			}
			*amt.dst = *amt.src
		}
		rec.LineItems = append(rec.LineItems, li)
	}

	if rec.Subtotal, err = normalizeAmount("subtotal", fields.Subtotal); err != nil {
		return nil, err
	}
	if rec.Tax, err = normalizeAmount("iva", fields.Tax); err != nil {
		return nil, err
	}
	if rec.Total, err = normalizeAmount("total", fields.Total); err != nil {
		return nil, err
	}

	if rec.Currency, err = normalizeCurrency(fields.Currency); err != nil {
		return nil, err
	}

	rec.PaymentForm = truncate(strings.TrimSpace(fields.PaymentForm), maxShortCodeLen)
	rec.PaymentMethod = truncate(strings.TrimSpace(fields.PaymentMethod), maxShortCodeLen)
	rec.TaxUseCode = truncate(strings.TrimSpace(fields.TaxUseCode), maxShortCodeLen)
	rec.Notes = truncate(strings.TrimSpace(fields.Notes), maxNotesLen)

	if err := checkTotals(rec.Subtotal, rec.Tax, rec.Total); err != nil {
		return nil, err
	}
	return rec, nil
}

// ApplyUpdate merges a typed partial update into an existing record and
// re-validates the merged result through the same rules.
func ApplyUpdate(rec *entity.InvoiceRecord, upd *entity.InvoiceUpdate) error {
	if upd.InvoiceNumber != nil {
		num := strings.TrimSpace(*upd.InvoiceNumber)
		if len(num) > maxShortCodeLen {
			return common.NewValidationFailed("invoiceNumber", "max_length",
				"invoice number exceeds %d characters", maxShortCodeLen)
		}
		if num == "" {
			rec.InvoiceNumber = nil
		} else {
			rec.InvoiceNumber = &num
		}
	}

	var err error
	if upd.IssueDate != nil {
		if rec.IssueDate, err = normalizeDate("issueDate", *upd.IssueDate); err != nil {
			return err
		}
	}
	if upd.DueDate != nil {
		if rec.DueDate, err = normalizeDate("dueDate", *upd.DueDate); err != nil {
			return err
		}
	}
	if upd.Supplier != nil {
		rec.Supplier = clampParty(upd.Supplier)
	}
	if upd.Customer != nil {
		rec.Customer = clampParty(upd.Customer)
	}
	if upd.LineItems != nil {
		items := *upd.LineItems
		if len(items) > constants.MaxLineItems {
			return common.NewValidationFailed("lineItems", "max_items",
				"line item count %d exceeds %d", len(items), constants.MaxLineItems)
		}
		for _, it := range items {
			for field, v := range map[string]float64{
				"lineItems.quantity":  it.Quantity,
				"lineItems.unitPrice": it.UnitPrice,
				"lineItems.total":     it.Total,
			} {
				if err := checkAmount(field, v); err != nil {
					return err
				}
			}
		}
		rec.LineItems = items
	}
	if upd.Subtotal != nil {
		if rec.Subtotal, err = normalizeAmount("subtotal", upd.Subtotal); err != nil {
			return err
		}
	}
	if upd.Tax != nil {
		if rec.Tax, err = normalizeAmount("tax", upd.Tax); err != nil {
			return err
		}
	}
	if upd.Total != nil {
		if rec.Total, err = normalizeAmount("total", upd.Total); err != nil {
			return err
		}
	}
	if upd.Currency != nil {
		if rec.Currency, err = normalizeCurrency(*upd.Currency); err != nil {
			return err
		}
	}
	if upd.PaymentForm != nil {
		rec.PaymentForm = truncate(strings.TrimSpace(*upd.PaymentForm), maxShortCodeLen)
	}
	if upd.PaymentMethod != nil {
		rec.PaymentMethod = truncate(strings.TrimSpace(*upd.PaymentMethod), maxShortCodeLen)
	}
	if upd.TaxUseCode != nil {
		rec.TaxUseCode = truncate(strings.TrimSpace(*upd.TaxUseCode), maxShortCodeLen)
	}
	if upd.Notes != nil {
		rec.Notes = truncate(strings.TrimSpace(*upd.Notes), maxNotesLen)
	}

	return checkTotals(rec.Subtotal, rec.Tax, rec.Total)
}

func validateMetadata(meta *entity.Metadata) error {
	name := strings.TrimSpace(meta.FileName)
	if name == "" {
		return common.NewInvalidInput("file name is required")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return common.NewInvalidInput("file name %q contains disallowed path characters", name)
	}
	if len(name) > maxFileNameLen {
		return common.NewValidationFailed("metadata.fileName", "max_length",
			"file name exceeds %d characters", maxFileNameLen)
	}
	if meta.FileSize < 0 || meta.FileSize > constants.MaxFileSize {
		return common.NewInvalidInput("file size %d out of bounds", meta.FileSize)
	}
	meta.FileName = name
	return nil
}

func normalizeDate(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return "", common.NewValidationFailed(field, "date_format",
			"%q is not a valid YYYY-MM-DD date", v)
	}
	return v, nil
}

func normalizeCurrency(value string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return "", nil
	}
	if _, ok := AllowedCurrencies[v]; !ok {
		return "", common.NewValidationFailed("moneda", "currency_code",
			"%q is not an allowed currency code", value)
	}
	return v, nil
}

func normalizeAmount(field string, value *float64) (*float64, error) {
	if value == nil {
		return nil, nil
	}
	if err := checkAmount(field, *value); err != nil {
		return nil, err
	}
	v := *value
	return &v, nil
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return common.NewValidationFailed(field, "finite", "amount must be finite")
	}
	if v < 0 {
		return common.NewValidationFailed(field, "non_negative", "amount %v is negative", v)
	}
	return nil
}

// checkTotals enforces total = subtotal + tax within tolerance when all three
// amounts are present. A violation is a rejection, never a silent correction.
func checkTotals(subtotal, tax, total *float64) error {
	if subtotal == nil || tax == nil || total == nil {
		return nil
	}
	if math.Abs(*total-(*subtotal+*tax)) > totalTolerance {
		return common.NewValidationFailed("total", "totals_arithmetic",
			"total %.2f does not equal subtotal %.2f + tax %.2f", *total, *subtotal, *tax)
	}
	return nil
}

func normalizeParty(p *llm.PartyFields) *entity.Party {
	if p == nil {
		return nil
	}
	out := &entity.Party{
		Name:    truncate(strings.TrimSpace(p.Name), maxNameLen),
		TaxID:   truncate(strings.TrimSpace(p.TaxID), maxShortCodeLen),
		Address: truncate(strings.TrimSpace(p.Address), maxNameLen),
		Phone:   truncate(strings.TrimSpace(p.Phone), maxShortCodeLen),
	}
	if *out == (entity.Party{}) {
		return nil
	}
	return out
}

func clampParty(p *entity.Party) *entity.Party {
	out := &entity.Party{
		Name:    truncate(strings.TrimSpace(p.Name), maxNameLen),
		TaxID:   truncate(strings.TrimSpace(p.TaxID), maxShortCodeLen),
		Address: truncate(strings.TrimSpace(p.Address), maxNameLen),
		Phone:   truncate(strings.TrimSpace(p.Phone), maxShortCodeLen),
	}
	if *out == (entity.Party{}) {
		return nil
	}
	return out
}

// truncate clamps s to at most n bytes, backing off to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
