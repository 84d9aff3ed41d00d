package models

import (
	"time"
)

// RawOrder is an order record as the upstream API returns it. Field names and
// shapes vary between endpoints, so it stays untyped until reconciled.
type RawOrder map[string]any

// Recognized line item categories.
const (
	CategoryBook       = "book"
	CategoryStationery = "stationery"
)

type ProductRef struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

type OrderLineView struct {
	ProductRef     ProductRef `json:"productRef"`
	Title          string     `json:"title"`
	SecondaryLabel string     `json:"secondaryLabel"` // author for books, brand for stationery
	ISBN           string     `json:"isbn,omitempty"`
	Image          string     `json:"image,omitempty"`
	UnitPriceMinor int64      `json:"unitPriceMinor"`
	Quantity       int64      `json:"quantity"`
	LineTotalMinor int64      `json:"lineTotalMinor"`
	Enriched       bool       `json:"enriched"`
}

type TimelineKind string

const (
	KindPlaced     TimelineKind = "Placed"
	KindProcessing TimelineKind = "Processing"
	KindShipped    TimelineKind = "Shipped"
	KindDelivered  TimelineKind = "Delivered"
	KindCancelled  TimelineKind = "Cancelled"
)

type TimelineEntry struct {
	Label     string       `json:"label"`
	Timestamp time.Time    `json:"timestamp"`
	Kind      TimelineKind `json:"kind"`
}

// OrderView is the canonical, presentation-ready order. Every monetary field
// is an integer amount of minor units.
type OrderView struct {
	ID              string `json:"id"`
	SourceID        string `json:"sourceId"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	ShippingAddress string `json:"shippingAddress"`

	PlacedAt  time.Time `json:"placedAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Items []OrderLineView `json:"items"`

	SubtotalMinor           int64  `json:"subtotalMinor"` // sum of line totals
	SubtotalBeforeTaxMinor  int64  `json:"subtotalBeforeTaxMinor"`
	TaxMinor                int64  `json:"taxMinor"`
	ShippingMinor           int64  `json:"shippingMinor"`
	TotalMinor              int64  `json:"totalMinor"`
	AuthoritativeTotalMinor *int64 `json:"authoritativeTotalMinor,omitempty"`

	Status        string          `json:"status"`
	StatusHistory []TimelineEntry `json:"statusHistory"`
	// NextStatuses are the targets the lifecycle allows from Status.
	NextStatuses []string `json:"nextStatuses"`
}

// Product is a catalog entry. Books carry Title/Author/ISBN, stationery
// carries Name/Brand.
type Product struct {
	Title  string `json:"title"`
	Name   string `json:"name"`
	Author string `json:"author"`
	Brand  string `json:"brand"`
	ISBN   string `json:"isbn"`
	Image  string `json:"image"`
}
