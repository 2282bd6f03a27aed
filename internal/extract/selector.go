package extract

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/factura-ai/invoice-extractor/constants"
	"github.com/factura-ai/invoice-extractor/internal/common"
)

// Strategy names how the model service will be called for a given upload.
type Strategy string

const (
	// StrategyVision sends an image in a single multimodal request.
	StrategyVision Strategy = "vision"
	// StrategyDocument uploads the file and drives a tool-augmented session.
	StrategyDocument Strategy = "document"
)

// Plan is the outcome of strategy selection: which path to take and the
// payload to send (the extracted page image for converted PDFs, otherwise
// the original bytes).
type Plan struct {
	Strategy Strategy
	Payload  []byte
	MimeType string
}

// Selector classifies an upload and picks the extraction strategy.
type Selector struct {
	log *slog.Logger
}

func NewSelector(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{log: logger}
}

// ValidateUpload enforces the boundary constraints: non-empty, bounded size,
// allow-listed MIME type and extension, traversal-free file name. Rejections
// happen before any model call is made.
func ValidateUpload(fileName, mimeType string, size int64) error {
	if strings.TrimSpace(fileName) == "" {
		return common.NewInvalidInput("file name is required")
	}
	if strings.Contains(fileName, "..") ||
		strings.ContainsAny(fileName, `/\`) {
		return common.NewInvalidInput("file name %q contains disallowed path characters", fileName)
	}
	if size == 0 {
		return common.NewInvalidInput("file is empty")
	}
	if size > constants.MaxFileSize {
		return common.NewInvalidInput("file too large (%d bytes, max %d)", size, constants.MaxFileSize)
	}
	if _, ok := constants.AllowedMIMETypes[mimeType]; !ok {
		return common.NewInvalidInput("unsupported file type %q: must be PDF or image (PNG, JPG, WEBP)", mimeType)
	}
	ext := constants.NormalizeExt(filepath.Ext(fileName))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return common.NewInvalidInput("unsupported file extension %q: must be pdf, png, jpg, jpeg or webp", ext)
	}
	return nil
}

// Select picks the strategy for an already-validated upload.
//
// Images take the direct vision path, downscaled when over the vision byte
// budget. PDFs are first tried as page-image documents (scanned invoices
// carry the page as one embedded image); when no usable image can be pulled
// out, the document-understanding path is the fallback.
func (s *Selector) Select(file []byte, mimeType string) Plan {
	if constants.IsImageMIME(mimeType) {
		payload, mt := s.fitForVision(file, mimeType)
		return Plan{Strategy: StrategyVision, Payload: payload, MimeType: mt}
	}

	img, imgMime, err := FirstPageImage(file)
	if err != nil {
		s.log.Info("extract.select.document_path", "reason", err.Error())
		return Plan{Strategy: StrategyDocument, Payload: file, MimeType: mimeType}
	}

	payload, mt := s.fitForVision(img, imgMime)
	s.log.Info("extract.select.page_image", "image_bytes", len(payload), "mime_type", mt)
	return Plan{Strategy: StrategyVision, Payload: payload, MimeType: mt}
}

func (s *Selector) fitForVision(img []byte, mimeType string) ([]byte, string) {
	const maxBytes = constants.MaxVisionMB << 20
	if len(img) <= maxBytes {
		return img, mimeType
	}
	shrunk, mt, err := ShrinkImage(img)
	if err != nil {
		s.log.Warn("extract.select.shrink_failed", "error", err, "image_bytes", len(img))
		return img, mimeType
	}
	return shrunk, mt
}
