package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/entity"
	"github.com/factura-ai/invoice-extractor/internal/extract"
	"github.com/factura-ai/invoice-extractor/internal/llm"
)

const presignTTL = time.Hour

// Extract runs the extraction pipeline on an uploaded file and returns the
// candidate plus provenance metadata. Nothing is persisted.
func (s *Server) Extract(c *gin.Context) {
	data, fileName, mimeType, err := s.readUpload(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	fields, _, err := s.extractor.Extract(c.Request.Context(), data, mimeType, fileName)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": fields,
		"metadata": gin.H{
			"fileName":    fileName,
			"fileSize":    len(data),
			"mimeType":    mimeType,
			"processedAt": time.Now().UTC(),
			"model":       s.extractor.ModelID(),
		},
	})
}

// ValidateAndSave validates reviewed candidate fields and persists them
// together with the original file.
func (s *Server) ValidateAndSave(c *gin.Context) {
	data, fileName, mimeType, err := s.readUpload(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	payload := strings.TrimSpace(c.PostForm("invoice_data"))
	if payload == "" {
		s.abortWithError(c, common.NewInvalidInput("invoice_data is required"))
		return
	}
	var fields llm.InvoiceFields
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		s.abortWithError(c, common.NewInvalidInput("invoice_data is not valid JSON: %v", err))
		return
	}

	validatedBy := strings.TrimSpace(c.PostForm("validatedBy"))
	wasModified, _ := strconv.ParseBool(c.PostForm("wasModified"))

	rec, err := s.invoices.ValidateAndSave(
		c.Request.Context(),
		&fields, data, fileName, mimeType,
		s.extractor.ModelID(), validatedBy, wasModified,
	)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":       "invoice validated and saved",
		"id":            rec.ID.String(),
		"invoiceNumber": rec.InvoiceNumberOrEmpty(),
	})
}

func (s *Server) Get(c *gin.Context) {
	rec, err := s.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) List(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter := c.Query("numero")

	res, err := s.invoices.List(c.Request.Context(), skip, limit, filter)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": res.Records,
		"pagination": gin.H{
			"total":   res.Total,
			"skip":    skip,
			"limit":   limit,
			"hasMore": res.HasMore,
		},
	})
}

// Update applies a typed partial update. Unknown fields, including the
// identity field, are rejected outright.
func (s *Server) Update(c *gin.Context) {
	var upd entity.InvoiceUpdate
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		s.abortWithError(c, common.NewInvalidInput("invalid update payload: %v", err))
		return
	}

	rec, err := s.invoices.Update(c.Request.Context(), c.Param("id"), &upd)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) Delete(c *gin.Context) {
	removed, err := s.invoices.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if !removed {
		s.abortWithError(c, common.NewNotFound("invoice"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invoice deleted"})
}

func (s *Server) Stats(c *gin.Context) {
	stats, err := s.invoices.Statistics(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) Export(c *gin.Context) {
	b, err := s.exporter.ExportInvoicesXLSX(c.Request.Context(), c.Query("numero"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}

// ArchiveURL returns a time-limited download URL for an archived original.
func (s *Server) ArchiveURL(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		s.abortWithError(c, common.NewInvalidInput("key is required"))
		return
	}
	url, err := s.invoices.PresignArchive(key, presignTTL)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// readUpload pulls the multipart file out of the request and applies the
// boundary constraints before any further processing.
func (s *Server) readUpload(c *gin.Context) ([]byte, string, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", "", common.NewInvalidInput("file is required")
	}

	mimeType := fh.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	if err := extract.ValidateUpload(fh.Filename, mimeType, fh.Size); err != nil {
		return nil, "", "", err
	}

	data, err := readAll(fh)
	if err != nil {
		return nil, "", "", common.WrapError(err, "reading upload")
	}
	return data, fh.Filename, mimeType, nil
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
