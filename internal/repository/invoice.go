package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/factura-ai/invoice-extractor/constants"
	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/entity"
)

// ListParams control pagination and filtering for List.
type ListParams struct {
	Skip          int
	Limit         int
	InvoiceNumber string // case-insensitive substring filter
}

// ListResult is one page of records plus the matching total.
type ListResult struct {
	Records []*entity.InvoiceRecord
	Total   int64
	HasMore bool
}

// MonthCount is a per-calendar-month validated-record bucket.
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int64  `json:"count"`
}

// AuditEntry is the minimal audit trail of one validation event.
type AuditEntry struct {
	InvoiceNumber string    `json:"invoiceNumber"`
	ValidatedBy   string    `json:"validatedBy"`
	WasModified   bool      `json:"wasModified"`
	ValidatedAt   time.Time `json:"validatedAt"`
}

// Statistics aggregates the whole collection.
type Statistics struct {
	Total             int64        `json:"total"`
	Validated         int64        `json:"validated"`
	Modified          int64        `json:"modified"`
	Archived          int64        `json:"archived"`
	PendingValidation int64        `json:"pendingValidation"`
	ByMonth           []MonthCount `json:"byMonth"`
	History           []AuditEntry `json:"history"`
}

// InvoiceRepository is the storage contract the record service depends on.
type InvoiceRepository interface {
	Create(ctx context.Context, rec *entity.InvoiceRecord) error
	FindByInvoiceNumber(ctx context.Context, number string) (*entity.InvoiceRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.InvoiceRecord, error)
	List(ctx context.Context, p ListParams) (*ListResult, error)
	FindAll(ctx context.Context, numberFilter string) ([]*entity.InvoiceRecord, error)
	Save(ctx context.Context, rec *entity.InvoiceRecord) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Stats(ctx context.Context, months, historyLimit int) (*Statistics, error)
}

type invoiceRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *gorm.DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, rec *entity.InvoiceRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.NewDuplicateRecord(rec.InvoiceNumberOrEmpty())
		}
		r.logger.Error("failed to create invoice record", "error", err)
		return err
	}
	return nil
}

func (r *invoiceRepository) FindByInvoiceNumber(ctx context.Context, number string) (*entity.InvoiceRecord, error) {
	var rec entity.InvoiceRecord
	err := r.db.WithContext(ctx).
		Where("invoice_number = ?", number).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.InvoiceRecord, error) {
	var rec entity.InvoiceRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFound("invoice")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *invoiceRepository) List(ctx context.Context, p ListParams) (*ListResult, error) {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 || p.Limit > constants.MaxPageSize {
		p.Limit = constants.MaxPageSize
	}

	q := r.db.WithContext(ctx).Model(&entity.InvoiceRecord{})
	if f := strings.TrimSpace(p.InvoiceNumber); f != "" {
		q = q.Where("lower(invoice_number) LIKE ?", "%"+strings.ToLower(f)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var recs []*entity.InvoiceRecord
	if err := q.Order("created_at DESC").
		Offset(p.Skip).
		Limit(p.Limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}

	return &ListResult{
		Records: recs,
		Total:   total,
		HasMore: int64(p.Skip+p.Limit) < total,
	}, nil
}

func (r *invoiceRepository) FindAll(ctx context.Context, numberFilter string) ([]*entity.InvoiceRecord, error) {
	q := r.db.WithContext(ctx).Model(&entity.InvoiceRecord{})
	if f := strings.TrimSpace(numberFilter); f != "" {
		q = q.Where("lower(invoice_number) LIKE ?", "%"+strings.ToLower(f)+"%")
	}
	var recs []*entity.InvoiceRecord
	if err := q.Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *invoiceRepository) Save(ctx context.Context, rec *entity.InvoiceRecord) error {
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.NewDuplicateRecord(rec.InvoiceNumberOrEmpty())
		}
		return err
	}
	return nil
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&entity.InvoiceRecord{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Stats runs the collection-wide aggregates. Month bucketing happens in Go so
// the same query works on Postgres and the sqlite test driver.
func (r *invoiceRepository) Stats(ctx context.Context, months, historyLimit int) (*Statistics, error) {
	stats := &Statistics{
		ByMonth: []MonthCount{},
		History: []AuditEntry{},
	}

	model := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&entity.InvoiceRecord{})
	}

	if err := model().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := model().Where("meta_validated_at IS NOT NULL").Count(&stats.Validated).Error; err != nil {
		return nil, err
	}
	if err := model().Where("meta_was_modified = ?", true).Count(&stats.Modified).Error; err != nil {
		return nil, err
	}
	if err := model().Where("meta_archive_key <> ''").Count(&stats.Archived).Error; err != nil {
		return nil, err
	}
	stats.PendingValidation = stats.Total - stats.Validated

	now := time.Now().UTC()
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var validatedAts []time.Time
	if err := model().
		Where("meta_validated_at IS NOT NULL AND meta_validated_at >= ?", anchor.AddDate(0, -(months-1), 0)).
		Pluck("meta_validated_at", &validatedAts).Error; err != nil {
		return nil, err
	}
	byMonth := make(map[string]int64)
	for _, ts := range validatedAts {
		byMonth[ts.UTC().Format("2006-01")]++
	}
	for _, month := range monthLabels(now, months) {
		if count, ok := byMonth[month]; ok {
			stats.ByMonth = append(stats.ByMonth, MonthCount{Month: month, Count: count})
		}
	}

	var recent []*entity.InvoiceRecord
	if err := model().
		Where("meta_validated_at IS NOT NULL").
		Order("meta_validated_at DESC").
		Limit(historyLimit).
		Find(&recent).Error; err != nil {
		return nil, err
	}
	for _, rec := range recent {
		stats.History = append(stats.History, AuditEntry{
			InvoiceNumber: rec.InvoiceNumberOrEmpty(),
			ValidatedBy:   rec.Metadata.ValidatedBy,
			WasModified:   rec.Metadata.WasModified,
			ValidatedAt:   *rec.Metadata.ValidatedAt,
		})
	}
	return stats, nil
}

// monthLabels returns the last `months` calendar-month labels ending at now,
// newest first. Stepping is anchored on the first of the month so end-of-month
// dates do not normalize into the wrong bucket.
func monthLabels(now time.Time, months int) []string {
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	labels := make([]string, 0, months)
	for m := 0; m < months; m++ {
		labels = append(labels, anchor.AddDate(0, -m, 0).Format("2006-01"))
	}
	return labels
}
