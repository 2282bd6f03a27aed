package invoice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/entity"
	"github.com/factura-ai/invoice-extractor/internal/llm"
	"github.com/factura-ai/invoice-extractor/internal/repository"
	"github.com/factura-ai/invoice-extractor/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	repo := repository.NewInvoiceRepository(db, nil)
	return NewService(repo, nil, nil)
}

func candidate(number string) *llm.InvoiceFields {
	return &llm.InvoiceFields{
		InvoiceNumber: number,
		IssueDate:     "2026-07-15",
		Subtotal:      f64(100),
		Tax:           f64(16),
		Total:         f64(116),
		Currency:      "MXN",
	}
}

func saveOne(t *testing.T, svc *Service, number string) {
	t.Helper()
	_, err := svc.ValidateAndSave(
		context.Background(), candidate(number),
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.NoError(t, err)
}

func TestValidateAndSaveAndGet(t *testing.T) {
	svc := newTestService(t)

	rec, err := svc.ValidateAndSave(
		context.Background(), candidate("A-1"),
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", true,
	)
	require.NoError(t, err)
	assert.Equal(t, "A-1", rec.InvoiceNumberOrEmpty())
	assert.Equal(t, "reviewer", rec.Metadata.ValidatedBy)
	assert.True(t, rec.Metadata.WasModified)
	require.NotNil(t, rec.Metadata.ValidatedAt)

	got, err := svc.Get(context.Background(), rec.ID.String())
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "A-1", got.InvoiceNumberOrEmpty())
}

func TestValidateAndSaveDuplicateNumber(t *testing.T) {
	svc := newTestService(t)
	saveOne(t, svc, "A-1")

	_, err := svc.ValidateAndSave(
		context.Background(), candidate("A-1"),
		[]byte("pdf bytes"), "otra.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateRecord))
}

func TestValidateAndSaveAllowsMultipleWithoutNumber(t *testing.T) {
	svc := newTestService(t)
	saveOne(t, svc, "")
	saveOne(t, svc, "")

	res, err := svc.List(context.Background(), 0, 50, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
}

func TestGetMalformedIDIsNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestListPagination(t *testing.T) {
	svc := newTestService(t)
	for i := 0; i < 120; i++ {
		saveOne(t, svc, fmt.Sprintf("N-%03d", i))
	}

	page1, err := svc.List(context.Background(), 0, 50, "")
	require.NoError(t, err)
	assert.Len(t, page1.Records, 50)
	assert.Equal(t, int64(120), page1.Total)
	assert.True(t, page1.HasMore)

	page3, err := svc.List(context.Background(), 100, 50, "")
	require.NoError(t, err)
	assert.Len(t, page3.Records, 20)
	assert.False(t, page3.HasMore)
}

func TestListNumberFilter(t *testing.T) {
	svc := newTestService(t)
	saveOne(t, svc, "FAC-2026-001")
	saveOne(t, svc, "FAC-2026-002")
	saveOne(t, svc, "NC-17")

	res, err := svc.List(context.Background(), 0, 50, "fac-2026")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Len(t, res.Records, 2)
}

func TestUpdateMergesAndDetectsDuplicates(t *testing.T) {
	svc := newTestService(t)
	saveOne(t, svc, "A-1")

	rec, err := svc.ValidateAndSave(
		context.Background(), candidate("A-2"),
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.NoError(t, err)

	notes := "revisada manualmente"
	updated, err := svc.Update(context.Background(), rec.ID.String(),
		&entity.InvoiceUpdate{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, "A-2", updated.InvoiceNumberOrEmpty())

	taken := "A-1"
	_, err = svc.Update(context.Background(), rec.ID.String(),
		&entity.InvoiceUpdate{InvoiceNumber: &taken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateRecord))
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)

	rec, err := svc.ValidateAndSave(
		context.Background(), candidate("A-1"),
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.NoError(t, err)

	removed, err := svc.Delete(context.Background(), rec.ID.String())
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Delete(context.Background(), rec.ID.String())
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = svc.Delete(context.Background(), "garbage-id")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStatisticsEmpty(t *testing.T) {
	svc := newTestService(t)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Validated)
	assert.Zero(t, stats.Modified)
	assert.Zero(t, stats.PendingValidation)
	assert.Empty(t, stats.ByMonth)
	assert.Empty(t, stats.History)
}

func TestStatisticsCountsAndHistory(t *testing.T) {
	svc := newTestService(t)
	saveOne(t, svc, "A-1")
	saveOne(t, svc, "A-2")

	_, err := svc.ValidateAndSave(
		context.Background(), candidate("A-3"),
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", true,
	)
	require.NoError(t, err)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.Validated)
	assert.Equal(t, int64(1), stats.Modified)
	assert.Zero(t, stats.PendingValidation)

	thisMonth := time.Now().UTC().Format("2006-01")
	require.NotEmpty(t, stats.ByMonth)
	assert.Equal(t, thisMonth, stats.ByMonth[0].Month)
	assert.Equal(t, int64(3), stats.ByMonth[0].Count)

	require.Len(t, stats.History, 3)
	assert.Equal(t, "reviewer", stats.History[0].ValidatedBy)
}

// recordingArchiver counts puts so tests can assert when archival happens.
type recordingArchiver struct {
	puts int
}

func (a *recordingArchiver) Put(_ context.Context, _ []byte, name, _ string) (storage.ObjectLocator, error) {
	a.puts++
	return storage.ObjectLocator{
		Key: "invoices/20260715_120000_" + name,
		URL: "https://storage.example.com/invoices/" + name,
	}, nil
}

func (a *recordingArchiver) Delete(context.Context, string) (bool, error) { return true, nil }

func (a *recordingArchiver) Presign(key string, _ time.Duration) (string, error) {
	return "https://storage.example.com/signed/" + key, nil
}

func newTestServiceWithArchive(t *testing.T, archive storage.Archiver) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	return NewService(repository.NewInvoiceRepository(db, nil), archive, nil)
}

func TestValidateAndSaveArchivesAcceptedCandidate(t *testing.T) {
	archive := &recordingArchiver{}
	svc := newTestServiceWithArchive(t, archive)

	rec, err := svc.ValidateAndSave(
		context.Background(), candidate("A-1"),
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, archive.puts)
	assert.NotEmpty(t, rec.Metadata.ArchiveKey)
	assert.NotEmpty(t, rec.Metadata.ArchiveURL)
}

func TestValidateAndSaveSkipsArchiveOnRejection(t *testing.T) {
	archive := &recordingArchiver{}
	svc := newTestServiceWithArchive(t, archive)

	bad := candidate("A-1")
	bad.Total = f64(999)
	_, err := svc.ValidateAndSave(
		context.Background(), bad,
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidationFailed))
	assert.Zero(t, archive.puts)
}

func TestValidateAndSaveSkipsArchiveOnDuplicate(t *testing.T) {
	archive := &recordingArchiver{}
	svc := newTestServiceWithArchive(t, archive)

	_, err := svc.ValidateAndSave(
		context.Background(), candidate("A-1"),
		[]byte("pdf bytes"), "factura.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.NoError(t, err)
	require.Equal(t, 1, archive.puts)

	_, err = svc.ValidateAndSave(
		context.Background(), candidate("A-1"),
		[]byte("pdf bytes"), "otra.pdf", "application/pdf",
		"gpt-4o", "reviewer", false,
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateRecord))
	assert.Equal(t, 1, archive.puts)
}

func TestPresignArchiveUnconfigured(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.PresignArchive("invoices/20260715_x.pdf", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrStorageUnavailable))
}
