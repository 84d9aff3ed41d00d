package orderview

import (
	"strings"

	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/money"
)

// Fallback display values.
const (
	NotAvailable    = "N/A"
	UnknownCustomer = "Unknown Customer"

	UnknownBook   = "Unknown Book"
	UnknownAuthor = "Unknown Author"
	UnknownItem   = "Unknown Item"
	UnknownBrand  = "Unknown Brand"
)

// ShortIDLength is how many trailing characters of a storage _id are shown.
const ShortIDLength = 6

// ReconcileOrder maps a raw upstream order onto the canonical view. It never
// fails: every missing or malformed field falls back to a default. Totals are
// computed with DefaultGSTRate; use Finalize to apply another rate.
func ReconcileOrder(raw models.RawOrder) models.OrderView {
	view := models.OrderView{Items: []models.OrderLineView{}}

	view.ID, view.SourceID = resolveID(raw)
	view.CustomerName = resolveCustomerName(raw)
	view.CustomerEmail = firstNonEmpty(
		firstString(asMap(raw["user"]), "email"),
		firstString(asMap(raw["customer"]), "email"),
	)
	view.CustomerPhone = firstNonEmpty(
		firstString(asMap(raw["user"]), "phone"),
		firstString(asMap(raw["customer"]), "phone"),
	)
	view.ShippingAddress = formatAddress(raw["shippingAddress"])

	view.PlacedAt = firstTime(raw, "orderDate", "createdAt", "date")
	view.UpdatedAt = firstTime(raw, "updatedAt", "createdAt")

	view.Status = normalizeStatus(raw["status"])
	view.Items = reconcileItems(raw["items"])

	if total, ok := authoritativeTotal(raw); ok {
		view.AuthoritativeTotalMinor = &total
	}

	Finalize(&view, DefaultGSTRate)
	return view
}

// Finalize recomputes line totals, the timeline, the allowed next statuses and
// the invoice figures.
func Finalize(view *models.OrderView, gstRate float64) {
	for i := range view.Items {
		view.Items[i].LineTotalMinor = money.Mul(view.Items[i].UnitPriceMinor, view.Items[i].Quantity)
	}
	view.StatusHistory = Timeline(view.Status, view.PlacedAt, view.UpdatedAt)
	view.NextStatuses = NextStatuses(view.Status)
	ApplyInvoice(view, ComputeInvoice(view.Items, view.AuthoritativeTotalMinor, gstRate))
}

func resolveID(raw models.RawOrder) (display, source string) {
	if id, ok := str(raw["orderId"]); ok {
		return id, id
	}
	if id, ok := str(raw["id"]); ok {
		return id, id
	}
	oid, ok := str(raw["_id"])
	if !ok {
		// Mongo extended JSON: {"_id": {"$oid": "..."}}
		oid, ok = str(lookup(raw, "_id", "$oid"))
	}
	if ok {
		short := []rune(oid)
		if len(short) > ShortIDLength {
			short = short[len(short)-ShortIDLength:]
		}
		return "#" + string(short), oid
	}
	return NotAvailable, ""
}

func resolveCustomerName(raw models.RawOrder) string {
	if name, ok := str(lookup(raw, "user", "name")); ok {
		return name
	}
	if name, ok := str(raw["customer"]); ok {
		return name
	}
	if name, ok := str(lookup(raw, "customer", "name")); ok {
		return name
	}
	if id, ok := str(raw["customerId"]); ok {
		return id
	}
	return UnknownCustomer
}

// authoritativeTotal reads the backend total. totalAmount is always minor
// units; amount goes through the magnitude heuristic.
func authoritativeTotal(raw models.RawOrder) (int64, bool) {
	if _, ok := money.Parse(raw["totalAmount"]); ok {
		return money.Normalize(raw["totalAmount"], money.UnitMinor), true
	}
	if _, ok := money.Parse(raw["amount"]); ok {
		return money.Normalize(raw["amount"], money.UnitUnknown), true
	}
	return 0, false
}

func normalizeStatus(v any) string {
	s, ok := str(v)
	if !ok {
		return string(StatusPending)
	}
	if st, ok := ParseStatus(s); ok {
		return string(st)
	}
	return s
}

// reconcileItems keeps only recognized categories. Unknown categories are
// dropped so they cannot distort totals.
func reconcileItems(v any) []models.OrderLineView {
	rawItems, _ := v.([]any)
	lines := make([]models.OrderLineView, 0, len(rawItems))
	for _, ri := range rawItems {
		item := asMap(ri)
		if item == nil {
			continue
		}
		line, ok := reconcileLine(item)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func reconcileLine(item map[string]any) (models.OrderLineView, bool) {
	category, _ := str(item["category"])
	category = strings.ToLower(category)
	if category != models.CategoryBook && category != models.CategoryStationery {
		return models.OrderLineView{}, false
	}

	line := models.OrderLineView{
		ProductRef:     models.ProductRef{Category: category},
		UnitPriceMinor: money.Normalize(item["price"], money.UnitMinor),
		Quantity:       quantity(item["quantity"]),
	}

	embedded := asMap(item["productId"])
	if embedded != nil {
		line.ProductRef.ID = firstString(embedded, "_id", "id")
	} else if id, ok := str(item["productId"]); ok {
		line.ProductRef.ID = id
	}

	if category == models.CategoryBook {
		line.Title = firstNonEmpty(firstString(embedded, "title", "name"), UnknownBook)
		line.SecondaryLabel = firstNonEmpty(firstString(embedded, "author"), UnknownAuthor)
		line.ISBN = firstNonEmpty(firstString(embedded, "isbn"), NotAvailable)
	} else {
		line.Title = firstNonEmpty(firstString(embedded, "name", "title"), UnknownItem)
		line.SecondaryLabel = firstNonEmpty(firstString(embedded, "brand"), UnknownBrand)
	}
	line.Image = firstString(embedded, "image")
	line.LineTotalMinor = money.Mul(line.UnitPriceMinor, line.Quantity)
	return line, true
}
