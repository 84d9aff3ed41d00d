package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/bookadmin/pkg/auth"
	"github.com/example/bookadmin/pkg/invoice"
	"github.com/example/bookadmin/pkg/metrics"
	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/orderapi"
	"github.com/example/bookadmin/pkg/orderview"
	"github.com/example/bookadmin/pkg/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	mu       sync.Mutex
	orders   map[string]models.RawOrder
	writeErr error
	writes   []string
	gets     int
}

func (f *fakeAPI) GetOrder(_ context.Context, id string) (models.RawOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	raw, ok := f.orders[id]
	if !ok {
		return nil, orderapi.ErrOrderNotFound
	}
	return raw, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, id, status string) (models.RawOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.writes = append(f.writes, id+"="+status)
	f.orders[id]["status"] = status
	return f.orders[id], nil
}

type fakeCache struct {
	views       map[string]*models.OrderView
	getErr      error
	invalidated []string
}

func (c *fakeCache) Get(_ context.Context, id string) (*models.OrderView, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.views[id]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, id string, v *models.OrderView) error {
	c.views[id] = v
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.invalidated = append(c.invalidated, id)
	delete(c.views, id)
	return nil
}

type fakeAudit struct {
	written chan *repository.AuditLog
	logs    []*repository.AuditLog
}

func (a *fakeAudit) CreateAuditLog(_ context.Context, log *repository.AuditLog) error {
	a.written <- log
	return nil
}

func (a *fakeAudit) GetAuditLogs(_ context.Context, id string, limit int64) ([]*repository.AuditLog, error) {
	var out []*repository.AuditLog
	for _, l := range a.logs {
		if l.EntityID == id && int64(len(out)) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeRegister struct {
	records map[string]*models.InvoiceRecord
	issues  int
	finds   int
	findErr error
}

func (r *fakeRegister) Find(_ context.Context, id string) (*models.InvoiceRecord, error) {
	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, repository.ErrInvoiceNotFound
	}
	return rec, nil
}

func (r *fakeRegister) Issue(_ context.Context, id string, inv models.Invoice) (*models.InvoiceRecord, error) {
	r.issues++
	if rec, ok := r.records[id]; ok {
		return rec, nil
	}
	rec := &models.InvoiceRecord{Seq: uint64(len(r.records) + 1), OrderID: id, TotalMinor: inv.TotalMinor, GSTMinor: inv.GSTMinor,
		IssuedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	r.records[id] = rec
	return rec, nil
}

type fakePrinter struct{ html string }

func (p *fakePrinter) PrintPDF(_ context.Context, html string) ([]byte, error) {
	p.html = html
	return []byte("%PDF-1.4"), nil
}

type fixture struct {
	svc      *OrderService
	api      *fakeAPI
	cache    *fakeCache
	audit    *fakeAudit
	register *fakeRegister
	printer  *fakePrinter
	metrics  *metrics.Registry
}

func newFixture(t *testing.T, policy orderview.Policy) *fixture {
	t.Helper()
	renderer, err := invoice.NewRenderer("₹")
	require.NoError(t, err)

	f := &fixture{
		api: &fakeAPI{orders: map[string]models.RawOrder{
			"65aa00000000000000abc123": {
				"_id":         "65aa00000000000000abc123",
				"status":      "pending",
				"totalAmount": float64(11800),
				"user":        map[string]any{"name": "Asha"},
				"items": []any{
					map[string]any{"category": "book", "productId": "b1", "price": float64(5900), "quantity": float64(2)},
				},
			},
		}},
		cache:    &fakeCache{views: map[string]*models.OrderView{}},
		audit:    &fakeAudit{written: make(chan *repository.AuditLog, 1)},
		register: &fakeRegister{records: map[string]*models.InvoiceRecord{}},
		printer:  &fakePrinter{},
		metrics:  metrics.NewRegistry(),
	}
	f.svc = NewOrderService(Dependencies{
		API:         f.api,
		Reconciler:  orderview.NewReconciler(nil, 0.18, zaptest.NewLogger(t)),
		Credentials: auth.ContextProvider{},
		Renderer:    renderer,
		Cache:       f.cache,
		Audit:       f.audit,
		Register:    f.register,
		Printer:     f.printer,
		Metrics:     f.metrics,
		Logger:      zaptest.NewLogger(t),
		Seller:      invoice.Seller{Name: "Bookstore"},
		Policy:      policy,
		Now:         func() time.Time { return time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

const orderID = "65aa00000000000000abc123"

func authed() context.Context {
	return auth.WithToken(context.Background(), "tok")
}

func TestGetOrderView_CachesView(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)

	view, err := f.svc.GetOrderView(authed(), orderID)
	require.NoError(t, err)
	assert.Equal(t, "#abc123", view.ID)
	assert.Equal(t, orderID, view.SourceID)
	assert.Equal(t, int64(11800), view.TotalMinor)

	again, err := f.svc.GetOrderView(authed(), orderID)
	require.NoError(t, err)
	assert.Same(t, view, again)
	assert.Equal(t, 1, f.api.gets)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ViewCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ViewCacheMiss))
}

func TestGetOrderView_CacheErrorsAreNotFatal(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)
	f.cache.getErr = errors.New("connection refused")

	view, err := f.svc.GetOrderView(authed(), orderID)
	require.NoError(t, err)
	assert.Equal(t, "Pending", view.Status)
}

func TestGetOrderView_Errors(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)

	_, err := f.svc.GetOrderView(context.Background(), orderID)
	assert.ErrorIs(t, err, auth.ErrAuthenticationRequired)
	assert.Zero(t, f.api.gets)

	_, err = f.svc.GetOrderView(authed(), "missing")
	assert.ErrorIs(t, err, orderapi.ErrOrderNotFound)
}

func TestUpdateStatus_Accepted(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)
	_, err := f.svc.GetOrderView(authed(), orderID)
	require.NoError(t, err)

	view, err := f.svc.UpdateStatus(authed(), orderID, "processing", "admin")
	require.NoError(t, err)
	assert.Equal(t, "Processing", view.Status)
	assert.Equal(t, []string{orderID + "=Processing"}, f.api.writes)
	assert.Equal(t, []string{orderID}, f.cache.invalidated)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StatusUpdates.WithLabelValues(metrics.OutcomeOK)))

	select {
	case entry := <-f.audit.written:
		assert.Equal(t, repository.ActionStatusChange, entry.Action)
		assert.Equal(t, "Pending", entry.Data["from"])
		assert.Equal(t, "Processing", entry.Data["to"])
		assert.Equal(t, "admin", entry.Data["actor"])
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not written")
	}
}

func TestUpdateStatus_RejectedTransitionWritesNothing(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)

	_, err := f.svc.UpdateStatus(authed(), orderID, "Completed", "admin")
	require.Error(t, err)
	assert.ErrorIs(t, err, orderview.ErrInvalidTransition)
	assert.Empty(t, f.api.writes)
	assert.Empty(t, f.cache.invalidated)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StatusUpdates.WithLabelValues(metrics.OutcomeRejected)))
}

func TestUpdateStatus_OverridePolicy(t *testing.T) {
	f := newFixture(t, orderview.PolicyOverride)

	view, err := f.svc.UpdateStatus(authed(), orderID, "Completed", "admin")
	require.NoError(t, err)
	assert.Equal(t, "Completed", view.Status)
	<-f.audit.written
}

func TestUpdateStatus_UpstreamFailure(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)
	f.api.writeErr = &orderapi.UpstreamError{StatusCode: 500, Message: "boom"}

	view, err := f.svc.UpdateStatus(authed(), orderID, "Processing", "admin")
	require.Error(t, err)
	assert.Nil(t, view)
	assert.ErrorIs(t, err, orderapi.ErrUpstreamWriteFailed)
	assert.Empty(t, f.cache.invalidated)
	assert.Equal(t, "pending", f.api.orders[orderID]["status"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StatusUpdates.WithLabelValues(metrics.OutcomeFailed)))

	select {
	case <-f.audit.written:
		t.Fatal("audit written for failed update")
	default:
	}
}

func TestInvoice(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)

	result, err := f.svc.Invoice(authed(), orderID)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", result.Number)
	assert.Equal(t, int64(11800), result.Invoice.TotalMinor)
	assert.Equal(t, int64(1800), result.Invoice.GSTMinor)
	assert.Equal(t, int64(10000), result.Invoice.SubtotalBeforeTaxMinor)
	assert.True(t, result.Invoice.Authoritative)

	again, err := f.svc.Invoice(authed(), orderID)
	require.NoError(t, err)
	assert.Equal(t, result.Number, again.Number)
	assert.Equal(t, 2, f.register.issues)
	assert.Zero(t, f.register.finds)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.InvoicesIssued.WithLabelValues("json")))
}

func TestInvoice_DraftWithoutRegister(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)
	f.svc.Register = nil

	result, err := f.svc.Invoice(authed(), orderID)
	require.NoError(t, err)
	assert.Equal(t, DraftNumber, result.Number)
	assert.Nil(t, result.Record)
}

func TestInvoiceHTMLAndPDF(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)

	html, err := f.svc.InvoiceHTML(authed(), orderID)
	require.NoError(t, err)
	assert.Contains(t, html, "INV-000001")
	assert.Contains(t, html, "01 Jun 2024")
	assert.Contains(t, html, "₹118.00")

	pdf, err := f.svc.InvoicePDF(authed(), orderID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), pdf)
	assert.Equal(t, html, f.printer.html)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InvoicesIssued.WithLabelValues("pdf")))

	f.svc.Printer = nil
	_, err = f.svc.InvoicePDF(authed(), orderID)
	assert.ErrorIs(t, err, ErrPDFUnavailable)
}

func TestInvoiceReprintUsesRegisterEntry(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)

	// first print issues the number
	_, err := f.svc.InvoiceHTML(authed(), orderID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.register.finds)
	assert.Equal(t, 1, f.register.issues)

	html, err := f.svc.InvoiceHTML(authed(), orderID)
	require.NoError(t, err)
	assert.Contains(t, html, "INV-000001")
	assert.Equal(t, 2, f.register.finds)
	assert.Equal(t, 1, f.register.issues)

	f.register.findErr = errors.New("connection reset")
	_, err = f.svc.InvoiceHTML(authed(), orderID)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 1, f.register.issues)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, orderview.PolicyStrict)
	f.audit.logs = []*repository.AuditLog{
		repository.StatusChangeLog(orderID, "Processing", "Shipped", "a"),
		repository.StatusChangeLog(orderID, "Pending", "Processing", "a"),
		repository.StatusChangeLog("other", "Pending", "Cancelled", "b"),
	}

	logs, err := f.svc.History(authed(), orderID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = f.svc.History(authed(), orderID, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	_, err = f.svc.History(context.Background(), orderID, 0)
	assert.ErrorIs(t, err, auth.ErrAuthenticationRequired)
}
