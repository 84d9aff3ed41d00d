// Package service orchestrates order views, status writes and invoices for
// the order desk.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/bookadmin/pkg/auth"
	"github.com/example/bookadmin/pkg/invoice"
	"github.com/example/bookadmin/pkg/metrics"
	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/orderview"
	"github.com/example/bookadmin/pkg/repository"
	"go.uber.org/zap"
)

const (
	auditTimeout       = 5 * time.Second
	defaultHistorySize = 50
)

// DraftNumber is printed when no invoice register is configured.
const DraftNumber = "DRAFT"

type OrderAPI interface {
	GetOrder(ctx context.Context, id string) (models.RawOrder, error)
	UpdateStatus(ctx context.Context, id, status string) (models.RawOrder, error)
}

type ViewCache interface {
	Get(ctx context.Context, orderID string) (*models.OrderView, error)
	Set(ctx context.Context, orderID string, view *models.OrderView) error
	Invalidate(ctx context.Context, orderID string) error
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// InvoiceRegister issues invoice numbers. Find reports
// repository.ErrInvoiceNotFound for orders without one.
type InvoiceRegister interface {
	Issue(ctx context.Context, orderID string, inv models.Invoice) (*models.InvoiceRecord, error)
	Find(ctx context.Context, orderID string) (*models.InvoiceRecord, error)
}

type PDFPrinter interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// Dependencies wires an OrderService. Cache, Audit, Register, Printer and
// Metrics are optional.
type Dependencies struct {
	API         OrderAPI
	Reconciler  *orderview.Reconciler
	Credentials auth.CredentialProvider
	Renderer    *invoice.Renderer
	Cache       ViewCache
	Audit       AuditLogger
	Register    InvoiceRegister
	Printer     PDFPrinter
	Metrics     *metrics.Registry
	Logger      *zap.Logger

	Seller invoice.Seller
	Policy orderview.Policy
	Now    func() time.Time
}

type OrderService struct {
	Dependencies
}

// InvoiceResult is an order view with its invoice and register entry.
type InvoiceResult struct {
	View    *models.OrderView     `json:"view"`
	Invoice models.Invoice        `json:"invoice"`
	Number  string                `json:"number"`
	Record  *models.InvoiceRecord `json:"record,omitempty"`
}

var ErrPDFUnavailable = errors.New("pdf printing is not configured")

func NewOrderService(deps Dependencies) *OrderService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Reconciler == nil {
		deps.Reconciler = orderview.NewReconciler(nil, orderview.DefaultGSTRate, deps.Logger)
	}
	return &OrderService{Dependencies: deps}
}

// GetOrderView returns the reconciled view, from cache when present.
func (s *OrderService) GetOrderView(ctx context.Context, id string) (*models.OrderView, error) {
	if _, err := auth.Require(ctx, s.Credentials); err != nil {
		return nil, err
	}

	if s.Cache != nil {
		view, err := s.Cache.Get(ctx, id)
		switch {
		case err == nil:
			s.cacheHit(true)
			return view, nil
		case !errors.Is(err, repository.ErrCacheMiss):
			s.Logger.Warn("View cache read failed", zap.String("order_id", id), zap.Error(err))
		}
		s.cacheHit(false)
	}

	view, err := s.loadView(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, id, view); err != nil {
			s.Logger.Warn("View cache write failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	return view, nil
}

func (s *OrderService) loadView(ctx context.Context, id string) (*models.OrderView, error) {
	raw, err := s.API.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Reconciler.Reconcile(ctx, raw)
}

// UpdateStatus validates and writes a status change. Nothing is cached or
// audited unless the upstream accepts the write.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status, actor string) (*models.OrderView, error) {
	if _, err := auth.Require(ctx, s.Credentials); err != nil {
		return nil, err
	}

	current, err := s.loadView(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := orderview.Transition(*current, status, s.Policy, s.Now())
	if err != nil {
		s.statusOutcome(metrics.OutcomeRejected)
		s.Logger.Info("Status change rejected",
			zap.String("order_id", id),
			zap.String("from", current.Status),
			zap.String("to", status),
			zap.Error(err))
		return nil, err
	}

	if _, err := s.API.UpdateStatus(ctx, id, next.Status); err != nil {
		s.statusOutcome(metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	s.statusOutcome(metrics.OutcomeOK)

	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, id); err != nil {
			s.Logger.Warn("View cache invalidation failed", zap.String("order_id", id), zap.Error(err))
		}
	}

	if s.Audit != nil {
		entry := repository.StatusChangeLog(id, current.Status, next.Status, actor)
		go func() {
			auditCtx, cancel := context.WithTimeout(context.Background(), auditTimeout)
			defer cancel()
			if err := s.Audit.CreateAuditLog(auditCtx, entry); err != nil {
				s.Logger.Error("Failed to write audit log", zap.String("order_id", id), zap.Error(err))
			}
		}()
	}

	s.Logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", current.Status),
		zap.String("to", next.Status),
		zap.String("actor", actor))
	return &next, nil
}

// Invoice computes the invoice and, with a register, issues its number.
func (s *OrderService) Invoice(ctx context.Context, id string) (*InvoiceResult, error) {
	result, err := s.issueInvoice(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.invoiceRendered("json")
	return result, nil
}

// issueInvoice builds the invoice for id. A reprint looks up the register
// entry first and only issues a number when the order has none.
func (s *OrderService) issueInvoice(ctx context.Context, id string, reprint bool) (*InvoiceResult, error) {
	view, err := s.GetOrderView(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &InvoiceResult{
		View:    view,
		Invoice: orderview.ComputeInvoice(view.Items, view.AuthoritativeTotalMinor, s.Reconciler.GSTRate()),
		Number:  DraftNumber,
	}
	if s.Register != nil {
		record, err := s.registerEntry(ctx, id, result.Invoice, reprint)
		if err != nil {
			return nil, err
		}
		result.Record = record
		result.Number = record.Number()
	}
	return result, nil
}

func (s *OrderService) registerEntry(ctx context.Context, id string, inv models.Invoice, reprint bool) (*models.InvoiceRecord, error) {
	if reprint {
		record, err := s.Register.Find(ctx, id)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, repository.ErrInvoiceNotFound) {
			return nil, err
		}
	}
	return s.Register.Issue(ctx, id, inv)
}

// InvoiceHTML renders the printable invoice.
func (s *OrderService) InvoiceHTML(ctx context.Context, id string) (string, error) {
	html, err := s.renderInvoice(ctx, id)
	if err != nil {
		return "", err
	}
	s.invoiceRendered("html")
	return html, nil
}

// InvoicePDF renders the invoice and prints it.
func (s *OrderService) InvoicePDF(ctx context.Context, id string) ([]byte, error) {
	if s.Printer == nil {
		return nil, ErrPDFUnavailable
	}
	html, err := s.renderInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	pdf, err := s.Printer.PrintPDF(ctx, html)
	if err != nil {
		s.Logger.Error("Invoice PDF failed", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}
	s.invoiceRendered("pdf")
	return pdf, nil
}

func (s *OrderService) renderInvoice(ctx context.Context, id string) (string, error) {
	if s.Renderer == nil {
		return "", errors.New("invoice renderer is not configured")
	}
	result, err := s.issueInvoice(ctx, id, true)
	if err != nil {
		return "", err
	}
	issuedAt := s.Now()
	if result.Record != nil && !result.Record.IssuedAt.IsZero() {
		issuedAt = result.Record.IssuedAt
	}
	return s.Renderer.Render(invoice.Document{
		Number:   result.Number,
		IssuedAt: issuedAt,
		Seller:   s.Seller,
		Order:    result.View,
		Invoice:  result.Invoice,
	})
}

// History returns the newest audit entries for an order.
func (s *OrderService) History(ctx context.Context, id string, limit int64) ([]*repository.AuditLog, error) {
	if _, err := auth.Require(ctx, s.Credentials); err != nil {
		return nil, err
	}
	if s.Audit == nil {
		return []*repository.AuditLog{}, nil
	}
	if limit <= 0 {
		limit = defaultHistorySize
	}
	return s.Audit.GetAuditLogs(ctx, id, limit)
}

func (s *OrderService) cacheHit(hit bool) {
	if s.Metrics == nil {
		return
	}
	if hit {
		s.Metrics.ViewCacheHits.Inc()
	} else {
		s.Metrics.ViewCacheMiss.Inc()
	}
}

func (s *OrderService) statusOutcome(outcome string) {
	if s.Metrics != nil {
		s.Metrics.StatusUpdates.WithLabelValues(outcome).Inc()
	}
}

func (s *OrderService) invoiceRendered(format string) {
	if s.Metrics != nil {
		s.Metrics.InvoicesIssued.WithLabelValues(format).Inc()
	}
}
