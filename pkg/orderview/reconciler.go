package orderview

import (
	"context"
	"fmt"

	"github.com/example/bookadmin/pkg/models"
	"go.uber.org/zap"
)

// Enricher resolves line item product references against the catalogs.
//
// Implementations return one line per input line, in order. Per-line
// failures are absorbed by keeping the input line; only precondition
// failures such as a missing credential are returned as errors.
type Enricher interface {
	Enrich(ctx context.Context, lines []models.OrderLineView) ([]models.OrderLineView, error)
}

// Reconciler builds enriched order views.
type Reconciler struct {
	enricher Enricher
	gstRate  float64
	logger   *zap.Logger
}

// NewReconciler creates a Reconciler. A nil enricher skips enrichment.
func NewReconciler(enricher Enricher, gstRate float64, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		enricher: enricher,
		gstRate:  gstRate,
		logger:   logger,
	}
}

// GSTRate is the rate applied to invoice figures.
func (r *Reconciler) GSTRate() float64 {
	return r.gstRate
}

// Reconcile normalizes raw, enriches its lines and computes totals.
func (r *Reconciler) Reconcile(ctx context.Context, raw models.RawOrder) (*models.OrderView, error) {
	view := ReconcileOrder(raw)

	if r.enricher != nil {
		items, err := r.enricher.Enrich(ctx, view.Items)
		if err != nil {
			return nil, fmt.Errorf("failed to enrich order %s: %w", view.ID, err)
		}
		if len(items) == len(view.Items) {
			view.Items = items
		} else {
			r.logger.Warn("Enricher changed line count, keeping unenriched lines",
				zap.String("order_id", view.ID),
				zap.Int("want", len(view.Items)),
				zap.Int("got", len(items)))
		}
	}

	Finalize(&view, r.gstRate)
	return &view, nil
}
