package entity

import (
	"time"

	"github.com/google/uuid"
)

// Party identifies one side of the invoice (supplier or customer).
type Party struct {
	Name    string `json:"name,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// LineItem is one row of the invoice body.
type LineItem struct {
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

// Metadata is the audit trail attached to every record.
type Metadata struct {
	FileName    string     `json:"fileName"`
	FileSize    int64      `json:"fileSize"`
	MimeType    string     `json:"mimeType"`
	ProcessedAt time.Time  `json:"processedAt"`
	Model       string     `json:"model"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
	ValidatedBy string     `json:"validatedBy,omitempty"`
	WasModified bool       `json:"wasModified"`
	ArchiveKey  string     `json:"archiveKey,omitempty"`
	ArchiveURL  string     `json:"archiveUrl,omitempty"`
}

// InvoiceRecord is the canonical persisted invoice entity.
//
// InvoiceNumber is nullable so that records without one never collide on the
// unique index; the index is the authoritative guard against the
// check-then-insert duplicate race.
type InvoiceRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber *string    `gorm:"uniqueIndex;size:100" json:"invoiceNumber,omitempty"`
	IssueDate     string     `gorm:"size:10" json:"issueDate,omitempty"`
	DueDate       string     `gorm:"size:10" json:"dueDate,omitempty"`
	Supplier      *Party     `gorm:"serializer:json" json:"supplier,omitempty"`
	Customer      *Party     `gorm:"serializer:json" json:"customer,omitempty"`
	LineItems     []LineItem `gorm:"serializer:json" json:"lineItems,omitempty"`
	Subtotal      *float64   `json:"subtotal,omitempty"`
	Tax           *float64   `json:"tax,omitempty"`
	Total         *float64   `json:"total,omitempty"`
	Currency      string     `gorm:"size:3" json:"currency,omitempty"`
	PaymentForm   string     `gorm:"size:100" json:"paymentForm,omitempty"`
	PaymentMethod string     `gorm:"size:100" json:"paymentMethod,omitempty"`
	TaxUseCode    string     `gorm:"size:100" json:"taxUseCode,omitempty"`
	Notes         string     `gorm:"size:2000" json:"notes,omitempty"`
	Metadata      Metadata   `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (InvoiceRecord) TableName() string { return "invoice_records" }

// InvoiceNumberOrEmpty dereferences the dedup key for display.
func (r *InvoiceRecord) InvoiceNumberOrEmpty() string {
	if r.InvoiceNumber == nil {
		return ""
	}
	return *r.InvoiceNumber
}

// InvoiceUpdate is a typed partial record for the update operation. Nil
// fields are left untouched; the identity field is deliberately absent.
type InvoiceUpdate struct {
	InvoiceNumber *string     `json:"invoiceNumber,omitempty"`
	IssueDate     *string     `json:"issueDate,omitempty"`
	DueDate       *string     `json:"dueDate,omitempty"`
	Supplier      *Party      `json:"supplier,omitempty"`
	Customer      *Party      `json:"customer,omitempty"`
	LineItems     *[]LineItem `json:"lineItems,omitempty"`
	Subtotal      *float64    `json:"subtotal,omitempty"`
	Tax           *float64    `json:"tax,omitempty"`
	Total         *float64    `json:"total,omitempty"`
	Currency      *string     `json:"currency,omitempty"`
	PaymentForm   *string     `json:"paymentForm,omitempty"`
	PaymentMethod *string     `json:"paymentMethod,omitempty"`
	TaxUseCode    *string     `json:"taxUseCode,omitempty"`
	Notes         *string     `json:"notes,omitempty"`
}
