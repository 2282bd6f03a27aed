package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factura-ai/invoice-extractor/internal/common"
)

// fakeModel replays canned replies and records which path was taken.
type fakeModel struct {
	reply        string
	err          error
	imageCalls   int
	documentCall int
}

func (f *fakeModel) ExtractFromImage(_ context.Context, _ []byte, _ string) (string, error) {
	f.imageCalls++
	return f.reply, f.err
}

func (f *fakeModel) ExtractFromDocument(_ context.Context, _ []byte, _ string) (string, error) {
	f.documentCall++
	return f.reply, f.err
}

func (f *fakeModel) ModelID() string { return "fake-model" }

func TestExtractVisionPathRecoversProseWrappedJSON(t *testing.T) {
	model := &fakeModel{
		reply: "Sure! Here is the invoice data:\n```json\n{\"numeroFactura\": \"A-7\", \"subtotal\": 100, \"iva\": 16, \"total\": 116, \"moneda\": \"MXN\"}\n```",
	}
	e := NewExtractor(model, nil)

	fields, raw, err := e.Extract(context.Background(), []byte{0x89, 0x50}, "image/png", "scan.png")
	require.NoError(t, err)
	require.NotNil(t, fields)
	assert.Equal(t, "A-7", fields.InvoiceNumber)
	assert.Equal(t, "MXN", fields.Currency)
	assert.NotEmpty(t, raw)
	assert.Equal(t, 1, model.imageCalls)
	assert.Zero(t, model.documentCall)
}

func TestExtractUnreadablePDFUsesDocumentPath(t *testing.T) {
	model := &fakeModel{reply: `{"numeroFactura": "B-1"}`}
	e := NewExtractor(model, nil)

	fields, _, err := e.Extract(context.Background(), []byte("%PDF-1.4 junk"), "application/pdf", "factura.pdf")
	require.NoError(t, err)
	assert.Equal(t, "B-1", fields.InvoiceNumber)
	assert.Equal(t, 1, model.documentCall)
	assert.Zero(t, model.imageCalls)
}

func TestExtractRejectsBeforeModelCall(t *testing.T) {
	model := &fakeModel{reply: `{}`}
	e := NewExtractor(model, nil)

	_, _, err := e.Extract(context.Background(), []byte("data"), "text/plain", "notes.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Zero(t, model.imageCalls)
	assert.Zero(t, model.documentCall)
}

func TestExtractUnparseableReply(t *testing.T) {
	model := &fakeModel{reply: "I could not find any invoice in this image."}
	e := NewExtractor(model, nil)

	_, _, err := e.Extract(context.Background(), []byte{0x89}, "image/png", "scan.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrResponseUnparseable))
}

func TestExtractSchemaViolation(t *testing.T) {
	model := &fakeModel{reply: `{"fecha": "15/07/2026"}`}
	e := NewExtractor(model, nil)

	_, raw, err := e.Extract(context.Background(), []byte{0x89}, "image/png", "scan.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidationFailed))
	assert.NotEmpty(t, raw)
}

func TestExtractModelErrorPassedThrough(t *testing.T) {
	model := &fakeModel{err: common.NewExtractionIncomplete("failed")}
	e := NewExtractor(model, nil)

	_, _, err := e.Extract(context.Background(), []byte{0x89}, "image/png", "scan.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExtractionIncomplete))
}
