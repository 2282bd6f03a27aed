package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var imageMIMEByFileType = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

// FirstPageImage pulls the largest embedded image off the first page of a
// PDF. Scanned single-page invoices carry the whole page as one image, which
// is exactly what the vision path wants. Text-born PDFs usually have no page
// image and fail here, routing the caller to the document path.
func FirstPageImage(data []byte) ([]byte, string, error) {
	var picked []byte
	var fileType string

	digest := func(img model.Image, singleImgPerPage bool, maxPageDigits int) error {
		b, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		if len(b) > len(picked) {
			picked = b
			fileType = img.FileType
		}
		return nil
	}

	if err := api.ExtractImages(bytes.NewReader(data), []string{"1"}, digest, nil); err != nil {
		return nil, "", fmt.Errorf("extract page images: %w", err)
	}
	if len(picked) == 0 {
		return nil, "", fmt.Errorf("no embedded page image")
	}

	mt, ok := imageMIMEByFileType[fileType]
	if !ok {
		return nil, "", fmt.Errorf("unsupported page image type %q", fileType)
	}
	return picked, mt, nil
}

// ShrinkImage re-encodes an oversized image as a bounded JPEG so it fits the
// vision payload budget.
func ShrinkImage(data []byte) ([]byte, string, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	fitted := imaging.Fit(src, 2048, 2048, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
