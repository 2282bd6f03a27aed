package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/llm"
)

// Extractor turns an uploaded file into an extracted candidate: it validates
// the upload, picks a strategy, drives the model call, recovers JSON from the
// reply and shape-checks it.
type Extractor struct {
	model    llm.ModelClient
	selector *Selector
	schema   *jsonschema.Schema
	log      *slog.Logger
}

func NewExtractor(model llm.ModelClient, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		model:    model,
		selector: NewSelector(logger),
		schema:   llm.InvoiceSchema(),
		log:      logger,
	}
}

// ModelID exposes the underlying model identifier for provenance metadata.
func (e *Extractor) ModelID() string { return e.model.ModelID() }

// Extract runs the full pipeline up to (but not including) record
// validation. It returns the typed candidate plus the recovered raw JSON.
func (e *Extractor) Extract(ctx context.Context, file []byte, mimeType, fileName string) (*llm.InvoiceFields, json.RawMessage, error) {
	start := time.Now()

	if err := ValidateUpload(fileName, mimeType, int64(len(file))); err != nil {
		return nil, nil, err
	}

	plan := e.selector.Select(file, mimeType)
	e.log.Info("extract.start",
		"file_name", fileName,
		"mime_type", mimeType,
		"file_bytes", len(file),
		"strategy", plan.Strategy,
	)

	var rawText string
	var err error
	switch plan.Strategy {
	case StrategyVision:
		rawText, err = e.model.ExtractFromImage(ctx, plan.Payload, plan.MimeType)
	case StrategyDocument:
		rawText, err = e.model.ExtractFromDocument(ctx, plan.Payload, fileName)
	default:
		err = fmt.Errorf("unknown strategy %q", plan.Strategy)
	}
	if err != nil {
		return nil, nil, err
	}

	recovered, err := llm.RecoverJSON(rawText)
	if err != nil {
		// Raw model text is for operators only; it never reaches the caller.
		e.log.Error("extract.unparseable", "file_name", fileName, "raw", rawText)
		return nil, nil, err
	}

	if err := llm.ValidateAgainstSchema(e.schema, recovered); err != nil {
		e.log.Error("extract.schema_validation_failed", "file_name", fileName, "error", err)
		return nil, recovered, &common.AppError{
			Kind:    common.ErrValidationFailed,
			Message: "extracted candidate does not match the invoice schema",
			Rule:    "schema",
			Cause:   err,
		}
	}

	var fields llm.InvoiceFields
	if err := json.Unmarshal(recovered, &fields); err != nil {
		return nil, recovered, fmt.Errorf("unmarshal fields: %w", err)
	}

	e.log.Info("extract.ok",
		"file_name", fileName,
		"strategy", plan.Strategy,
		"invoice_number", fields.InvoiceNumber,
		"total", fields.Total,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &fields, recovered, nil
}
