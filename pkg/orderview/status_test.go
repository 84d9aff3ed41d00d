package orderview

import (
	"errors"
	"testing"
	"time"

	"github.com/example/bookadmin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("  shipped ")
	require.True(t, ok)
	assert.Equal(t, StatusShipped, st)

	st, ok = ParseStatus("CANCELLED")
	require.True(t, ok)
	assert.Equal(t, "Cancelled", st.String())

	_, ok = ParseStatus("lost")
	assert.False(t, ok)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCancelled},
		StatusShipped:    {StatusCompleted, StatusReturned},
		StatusCompleted:  {StatusReturned},
		StatusCancelled:  nil,
		StatusReturned:   nil,
	}
	for from, want := range allowed {
		assert.Equal(t, want, from.Next(), "from %s", from)
		for _, to := range Statuses {
			expected := false
			for _, w := range want {
				if w == to {
					expected = true
				}
			}
			assert.Equal(t, expected, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusReturned.IsTerminal())
	assert.False(t, StatusCompleted.IsTerminal())

	assert.True(t, CanTransition("pending", "PROCESSING"))
	assert.False(t, CanTransition("pending", "shipped"))
	assert.False(t, CanTransition("weird", "shipped"))
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []string{"Processing", "Cancelled"}, NextStatuses("pending"))
	assert.Equal(t, []string{"Completed", "Returned"}, NextStatuses("Shipped"))
	assert.Equal(t, []string{"Returned"}, NextStatuses("Completed"))
	assert.Equal(t, []string{}, NextStatuses("Cancelled"))
	assert.Equal(t, []string{}, NextStatuses("Returned"))
	assert.Equal(t, []string{}, NextStatuses("on-hold"))
	assert.Equal(t, []string{}, NextStatuses(""))
}

func TestTransition_Strict(t *testing.T) {
	total := int64(11800)
	view := ReconcileOrder(models.RawOrder{
		"orderId":   "o1",
		"status":    "pending",
		"createdAt": "2024-01-01T00:00:00Z",
	})
	view.AuthoritativeTotalMinor = &total
	at := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	next, err := Transition(view, "processing", PolicyStrict, at)
	require.NoError(t, err)
	assert.Equal(t, "Processing", next.Status)
	assert.Equal(t, at, next.UpdatedAt)
	assert.Equal(t, []string{"Order Placed", "Processing"}, labels(next.StatusHistory))
	assert.Equal(t, []string{"Shipped", "Cancelled"}, next.NextStatuses)
	assert.Equal(t, []string{"Processing", "Cancelled"}, view.NextStatuses)

	// the input view is untouched
	assert.Equal(t, "Pending", view.Status)
	*next.AuthoritativeTotalMinor = 1
	assert.Equal(t, int64(11800), *view.AuthoritativeTotalMinor)

	_, err = Transition(view, "Shipped", PolicyStrict, at)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Pending", te.From)
	assert.Equal(t, "Shipped", te.To)

	_, err = Transition(view, "Pending", PolicyStrict, at)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestTransition_Override(t *testing.T) {
	view := ReconcileOrder(models.RawOrder{"status": "Cancelled"})

	next, err := Transition(view, "completed", PolicyOverride, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Completed", next.Status)
	assert.Empty(t, view.NextStatuses)
	assert.Equal(t, []string{"Returned"}, next.NextStatuses)

	_, err = Transition(view, "lost", PolicyOverride, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, errors.Is(err, ErrUnknownStatus))
}

func TestTransition_UnknownCurrentStatus(t *testing.T) {
	view := ReconcileOrder(models.RawOrder{"status": "on-hold"})
	assert.Equal(t, "on-hold", view.Status)

	_, err := Transition(view, "Processing", PolicyStrict, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestTimeline(t *testing.T) {
	placed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	updated := placed.Add(48 * time.Hour)

	tests := []struct {
		status string
		want   []string
	}{
		{"Pending", []string{"Order Placed"}},
		{"", []string{"Order Placed"}},
		{"Processing", []string{"Order Placed", "Processing"}},
		{"Shipped", []string{"Order Placed", "Processing", "Order Shipped"}},
		{"Completed", []string{"Order Placed", "Processing", "Order Delivered"}},
		{"Cancelled", []string{"Order Placed", "Order Cancelled"}},
		{"Returned", []string{"Order Placed", "Processing"}},
		{"on-hold", []string{"Order Placed", "Processing"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, labels(Timeline(tt.status, placed, updated)), "status %q", tt.status)
	}

	shipped := Timeline("Shipped", placed, updated)
	assert.Equal(t, models.KindPlaced, shipped[0].Kind)
	assert.Equal(t, placed, shipped[0].Timestamp)
	assert.Equal(t, models.KindProcessing, shipped[1].Kind)
	assert.Equal(t, updated, shipped[1].Timestamp)
	assert.Equal(t, models.KindShipped, shipped[2].Kind)

	cancelled := Timeline("Cancelled", placed, time.Time{})
	assert.Equal(t, models.KindCancelled, cancelled[1].Kind)
	assert.Equal(t, placed, cancelled[1].Timestamp)
}
