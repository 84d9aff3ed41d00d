package orderview

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/bookadmin/pkg/models"
)

// Status is the canonical order status.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
	StatusReturned   Status = "Returned"
)

// Statuses lists the vocabulary in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusCompleted,
	StatusCancelled,
	StatusReturned,
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus matches s case-insensitively against the vocabulary.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// CanTransitionTo reports whether the lifecycle allows s -> to.
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusCompleted || to == StatusReturned
	case StatusCompleted:
		return to == StatusReturned
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusReturned
}

// Next lists the statuses reachable from s in one step.
func (s Status) Next() []Status {
	var out []Status
	for _, st := range Statuses {
		if s.CanTransitionTo(st) {
			out = append(out, st)
		}
	}
	return out
}

// NextStatuses lists the targets the lifecycle allows from a raw status. It is
// empty for terminal and unknown statuses.
func NextStatuses(status string) []string {
	out := []string{}
	st, ok := ParseStatus(status)
	if !ok || st.IsTerminal() {
		return out
	}
	for _, next := range st.Next() {
		out = append(out, string(next))
	}
	return out
}

// CanTransition is CanTransitionTo over raw status strings.
func CanTransition(from, to string) bool {
	f, ok := ParseStatus(from)
	if !ok {
		return false
	}
	t, ok := ParseStatus(to)
	if !ok {
		return false
	}
	return f.CanTransitionTo(t)
}

// Policy selects how strictly Transition applies the lifecycle.
type Policy int

const (
	// PolicyStrict only allows lifecycle transitions.
	PolicyStrict Policy = iota
	// PolicyOverride lets an administrator set any known status.
	PolicyOverride
)

// Transition returns a copy of view moved to status to. view is not modified.
func Transition(view models.OrderView, to string, policy Policy, at time.Time) (models.OrderView, error) {
	target, ok := ParseStatus(to)
	if !ok {
		return models.OrderView{}, &TransitionError{From: view.Status, To: to, Cause: fmt.Errorf("%w: %q", ErrUnknownStatus, to)}
	}
	if policy != PolicyOverride {
		from, known := ParseStatus(view.Status)
		if !known || !from.CanTransitionTo(target) {
			return models.OrderView{}, &TransitionError{From: view.Status, To: string(target)}
		}
	}

	next := view
	next.Items = append([]models.OrderLineView(nil), view.Items...)
	if view.AuthoritativeTotalMinor != nil {
		total := *view.AuthoritativeTotalMinor
		next.AuthoritativeTotalMinor = &total
	}
	next.Status = string(target)
	next.UpdatedAt = at.UTC()
	next.StatusHistory = Timeline(next.Status, next.PlacedAt, next.UpdatedAt)
	next.NextStatuses = NextStatuses(next.Status)
	return next, nil
}

// Timeline projects the display history of an order from its current status.
//
// Entries are cumulative rather than exclusive: a shipped order shows
// "Order Placed", "Processing" and "Order Shipped".
func Timeline(status string, placedAt, updatedAt time.Time) []models.TimelineEntry {
	entries := []models.TimelineEntry{
		{Label: "Order Placed", Timestamp: placedAt, Kind: models.KindPlaced},
	}

	st, known := ParseStatus(status)
	if strings.TrimSpace(status) == "" || (known && st == StatusPending) {
		return entries
	}

	changedAt := updatedAt
	if changedAt.IsZero() {
		changedAt = placedAt
	}

	if st == StatusCancelled {
		entries = append(entries, models.TimelineEntry{Label: "Order Cancelled", Timestamp: changedAt, Kind: models.KindCancelled})
	} else {
		entries = append(entries, models.TimelineEntry{Label: "Processing", Timestamp: changedAt, Kind: models.KindProcessing})
	}

	switch st {
	case StatusShipped:
		entries = append(entries, models.TimelineEntry{Label: "Order Shipped", Timestamp: changedAt, Kind: models.KindShipped})
	case StatusCompleted:
		entries = append(entries, models.TimelineEntry{Label: "Order Delivered", Timestamp: changedAt, Kind: models.KindDelivered})
	}
	return entries
}
