package constants

import "strings"

// Upload bounds enforced at the boundary, before any model call.
const (
	MaxFileSize  = 50 << 20 // 50 MiB
	MaxVisionMB  = 20       // largest image payload we send to the vision endpoint
	MaxLineItems = 1000
	MaxPageSize  = 100
)

// AllowedMIMETypes holds the accepted upload content types.
var AllowedMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/webp":      {},
}

// AllowedExtensions holds the accepted upload file extensions.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"webp": {},
}

// IsImageMIME reports whether the content type takes the direct vision path.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
