package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/bookadmin/pkg/config"
	"github.com/example/bookadmin/pkg/models"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ErrInvoiceNotFound is returned by Find when the order has no invoice yet.
var ErrInvoiceNotFound = errors.New("invoice not issued")

// InvoiceRepository is the invoice register. An order is issued one invoice
// number, reused on every reprint.
type InvoiceRepository struct {
	db *gorm.DB
}

func OpenMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// NewInvoiceRepository migrates the invoices table and returns the register.
func NewInvoiceRepository(db *gorm.DB) (*InvoiceRepository, error) {
	if err := db.AutoMigrate(&models.InvoiceRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &InvoiceRepository{db: db}, nil
}

// Issue returns the order's register entry, creating it on first issue.
// Amounts of an existing entry are not rewritten.
func (r *InvoiceRepository) Issue(ctx context.Context, orderID string, inv models.Invoice) (*models.InvoiceRecord, error) {
	var record models.InvoiceRecord
	err := r.db.WithContext(ctx).
		Where(models.InvoiceRecord{OrderID: orderID}).
		Attrs(models.InvoiceRecord{
			UUID:       uuid.New().String(),
			TotalMinor: inv.TotalMinor,
			GSTMinor:   inv.GSTMinor,
			IssuedAt:   time.Now(),
		}).
		FirstOrCreate(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to issue invoice for order %s: %w", orderID, err)
	}
	return &record, nil
}

// Find returns the order's register entry without issuing one.
func (r *InvoiceRepository) Find(ctx context.Context, orderID string) (*models.InvoiceRecord, error) {
	var record models.InvoiceRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrInvoiceNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up invoice for order %s: %w", orderID, err)
	}
	return &record, nil
}
