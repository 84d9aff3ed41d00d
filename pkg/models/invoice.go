package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Invoice is the tax-inclusive breakdown of an order total, in minor units.
type Invoice struct {
	LinesSubtotalMinor     int64   `json:"linesSubtotalMinor"`
	SubtotalBeforeTaxMinor int64   `json:"subtotalBeforeTaxMinor"`
	GSTMinor               int64   `json:"gstMinor"`
	GSTRate                float64 `json:"gstRate"`
	ShippingMinor          int64   `json:"shippingMinor"`
	TotalMinor             int64   `json:"totalMinor"`
	Authoritative          bool    `json:"authoritative"`
}

// InvoiceRecord registers an issued invoice so an order keeps the same
// invoice number across reprints.
type InvoiceRecord struct {
	Seq        uint64         `gorm:"primaryKey;autoIncrement" json:"seq"`
	UUID       string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	OrderID    string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderId"`
	TotalMinor int64          `gorm:"not null" json:"totalMinor"`
	GSTMinor   int64          `gorm:"not null" json:"gstMinor"`
	IssuedAt   time.Time      `json:"issuedAt"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (InvoiceRecord) TableName() string {
	return "invoices"
}

// Number is the display invoice number, e.g. INV-000042.
func (r InvoiceRecord) Number() string {
	return fmt.Sprintf("INV-%06d", r.Seq)
}
