package invoice

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/entity"
	"github.com/factura-ai/invoice-extractor/internal/llm"
	"github.com/factura-ai/invoice-extractor/internal/repository"
	"github.com/factura-ai/invoice-extractor/internal/storage"
)

// Statistics windows.
const (
	statsMonths       = 6
	statsHistoryLimit = 20
)

// Service owns all write access to persisted invoice records.
type Service struct {
	repo    repository.InvoiceRepository
	archive storage.Archiver // nil when archiving is unconfigured
	log     *slog.Logger
}

func NewService(repo repository.InvoiceRepository, archive storage.Archiver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, archive: archive, log: logger}
}

// ValidateAndSave validates a candidate, archives the original once it has
// passed (best effort) and persists the record with dedup on the invoice
// number. The point lookup
// is a fast path; the store's unique index is the authoritative guard, so a
// racing insert still surfaces as a duplicate error.
func (s *Service) ValidateAndSave(
	ctx context.Context,
	fields *llm.InvoiceFields,
	file []byte,
	fileName, mimeType, modelID, validatedBy string,
	wasModified bool,
) (*entity.InvoiceRecord, error) {
	now := time.Now().UTC()
	meta := entity.Metadata{
		FileName:    fileName,
		FileSize:    int64(len(file)),
		MimeType:    mimeType,
		ProcessedAt: now,
		Model:       modelID,
		ValidatedAt: &now,
		ValidatedBy: validatedBy,
		WasModified: wasModified,
	}

	rec, err := BuildRecord(fields, meta)
	if err != nil {
		return nil, err
	}

	if rec.InvoiceNumber != nil {
		existing, err := s.repo.FindByInvoiceNumber(ctx, *rec.InvoiceNumber)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, common.NewDuplicateRecord(*rec.InvoiceNumber)
		}
	}

	// Archival runs only once the candidate has passed validation and the
	// duplicate check, so rejected candidates never leave orphaned objects in
	// the bucket. It is still best effort: a failure is logged and the save
	// proceeds without a locator.
	if s.archive != nil && len(file) > 0 {
		if loc, err := s.archive.Put(ctx, file, fileName, mimeType); err != nil {
			s.log.Warn("invoice.archive_skipped", "file_name", fileName, "error", err)
		} else {
			rec.Metadata.ArchiveKey = loc.Key
			rec.Metadata.ArchiveURL = loc.URL
		}
	}

	rec.ID = uuid.New()
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("invoice.created",
		"id", rec.ID.String(),
		"invoice_number", rec.InvoiceNumberOrEmpty(),
		"validated_by", validatedBy,
		"was_modified", wasModified,
	)
	return rec, nil
}

// Get returns a record by id. A malformed id is a not-found, never a crash.
func (s *Service) Get(ctx context.Context, id string) (*entity.InvoiceRecord, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, common.NewNotFound("invoice")
	}
	return s.repo.GetByID(ctx, uid)
}

// List returns one page ordered by creation time, newest first.
func (s *Service) List(ctx context.Context, skip, limit int, numberFilter string) (*repository.ListResult, error) {
	return s.repo.List(ctx, repository.ListParams{
		Skip:          skip,
		Limit:         limit,
		InvoiceNumber: numberFilter,
	})
}

// Update applies a typed partial update, re-validates the merged record and
// refreshes the update timestamp. The identity field cannot be overwritten.
func (s *Service) Update(ctx context.Context, id string, upd *entity.InvoiceUpdate) (*entity.InvoiceRecord, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, common.NewNotFound("invoice")
	}
	rec, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}

	previousNumber := rec.InvoiceNumberOrEmpty()
	if err := ApplyUpdate(rec, upd); err != nil {
		return nil, err
	}

	if rec.InvoiceNumber != nil && *rec.InvoiceNumber != previousNumber {
		existing, err := s.repo.FindByInvoiceNumber(ctx, *rec.InvoiceNumber)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != rec.ID {
			return nil, common.NewDuplicateRecord(*rec.InvoiceNumber)
		}
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("invoice.updated", "id", rec.ID.String())
	return rec, nil
}

// Delete hard-deletes by id and reports whether a record was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	removed, err := s.repo.Delete(ctx, uid)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info("invoice.deleted", "id", id)
	}
	return removed, nil
}

// Statistics aggregates the whole collection.
func (s *Service) Statistics(ctx context.Context) (*repository.Statistics, error) {
	return s.repo.Stats(ctx, statsMonths, statsHistoryLimit)
}

// PresignArchive returns a time-limited download URL for an archived
// original.
func (s *Service) PresignArchive(key string, ttl time.Duration) (string, error) {
	if s.archive == nil {
		return "", common.NewAppError(common.ErrStorageUnavailable, "archive storage is not configured", nil)
	}
	return s.archive.Presign(key, ttl)
}
