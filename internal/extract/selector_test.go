package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factura-ai/invoice-extractor/constants"
	"github.com/factura-ai/invoice-extractor/internal/common"
)

func TestValidateUploadAccepts(t *testing.T) {
	for _, tc := range []struct {
		name string
		mime string
	}{
		{"invoice.pdf", "application/pdf"},
		{"scan.png", "image/png"},
		{"photo.jpg", "image/jpeg"},
		{"page.webp", "image/webp"},
	} {
		assert.NoError(t, ValidateUpload(tc.name, tc.mime, 1024), "file %s", tc.name)
	}
}

func TestValidateUploadRejectsMIME(t *testing.T) {
	for _, mime := range []string{"text/plain", "application/zip", "image/gif", ""} {
		err := ValidateUpload("file.bin", mime, 1024)
		require.Error(t, err, "mime %q", mime)
		assert.True(t, errors.Is(err, common.ErrInvalidInput), "mime %q", mime)
	}
}

func TestValidateUploadRejectsEmptyFile(t *testing.T) {
	err := ValidateUpload("invoice.pdf", "application/pdf", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestValidateUploadRejectsOversizedFile(t *testing.T) {
	err := ValidateUpload("invoice.pdf", "application/pdf", constants.MaxFileSize+1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	assert.NoError(t, ValidateUpload("invoice.pdf", "application/pdf", constants.MaxFileSize))
}

func TestValidateUploadRejectsExtensionMismatch(t *testing.T) {
	for _, name := range []string{"invoice.txt", "invoice.exe", "invoice", "invoice.pdf.zip"} {
		err := ValidateUpload(name, "application/pdf", 1024)
		require.Error(t, err, "name %q", name)
		assert.True(t, errors.Is(err, common.ErrInvalidInput), "name %q", name)
	}

	assert.NoError(t, ValidateUpload("Invoice.PDF", "application/pdf", 1024))
}

func TestValidateUploadRejectsTraversalNames(t *testing.T) {
	for _, name := range []string{
		"../../etc/passwd",
		"dir/invoice.pdf",
		`dir\invoice.pdf`,
		"..",
		"",
		"   ",
	} {
		err := ValidateUpload(name, "application/pdf", 1024)
		require.Error(t, err, "name %q", name)
		assert.True(t, errors.Is(err, common.ErrInvalidInput), "name %q", name)
	}
}

func TestSelectImageTakesVisionPath(t *testing.T) {
	s := NewSelector(nil)
	payload := []byte{0x89, 0x50, 0x4e, 0x47}

	plan := s.Select(payload, "image/png")
	assert.Equal(t, StrategyVision, plan.Strategy)
	assert.Equal(t, "image/png", plan.MimeType)
	assert.Equal(t, payload, plan.Payload)
}

func TestSelectUnreadablePDFFallsBackToDocument(t *testing.T) {
	s := NewSelector(nil)
	payload := []byte("%PDF-1.4 truncated garbage")

	plan := s.Select(payload, "application/pdf")
	assert.Equal(t, StrategyDocument, plan.Strategy)
	assert.Equal(t, "application/pdf", plan.MimeType)
	assert.Equal(t, payload, plan.Payload)
}
