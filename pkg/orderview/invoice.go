package orderview

import (
	"math"

	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/money"
	"github.com/shopspring/decimal"
)

// DefaultGSTRate is the tax rate included in order totals.
const DefaultGSTRate = 0.18

// FreeShippingMinor is the shipping charge until the backend reports one.
const FreeShippingMinor int64 = 0

// ComputeInvoice derives the invoice figures for lines.
//
// When totalMinor is set it is the grand total, and subtotal and GST are
// backed out of it: gst = total*rate/(1+rate), rounded half up to a whole
// minor unit, subtotal = total-gst. The line sum is reported but may differ
// from the authoritative total because of server-side discounts. Without
// totalMinor the total is line sum plus shipping, decomposed the same way.
func ComputeInvoice(lines []models.OrderLineView, totalMinor *int64, gstRate float64) models.Invoice {
	if gstRate < 0 || math.IsNaN(gstRate) || math.IsInf(gstRate, 0) {
		gstRate = 0
	}

	var linesSubtotal int64
	for _, line := range lines {
		linesSubtotal = money.Add(linesSubtotal, money.Mul(line.UnitPriceMinor, line.Quantity))
	}

	inv := models.Invoice{
		LinesSubtotalMinor: linesSubtotal,
		GSTRate:            gstRate,
		ShippingMinor:      FreeShippingMinor,
	}
	if totalMinor != nil {
		inv.TotalMinor = *totalMinor
		inv.Authoritative = true
	} else {
		inv.TotalMinor = money.Add(linesSubtotal, inv.ShippingMinor)
	}

	inv.GSTMinor = inclusiveTax(inv.TotalMinor, gstRate)
	inv.SubtotalBeforeTaxMinor = inv.TotalMinor - inv.GSTMinor
	return inv
}

func inclusiveTax(totalMinor int64, rate float64) int64 {
	if totalMinor == 0 || rate == 0 {
		return 0
	}
	r := decimal.NewFromFloat(rate)
	return decimal.NewFromInt(totalMinor).
		Mul(r).
		Div(decimal.NewFromInt(1).Add(r)).
		Round(0).
		IntPart()
}

// ApplyInvoice copies the invoice figures onto the view. SubtotalMinor is the
// line sum, so without a backend total SubtotalMinor+ShippingMinor equals
// TotalMinor.
func ApplyInvoice(view *models.OrderView, inv models.Invoice) {
	view.SubtotalMinor = inv.LinesSubtotalMinor
	view.SubtotalBeforeTaxMinor = inv.SubtotalBeforeTaxMinor
	view.TaxMinor = inv.GSTMinor
	view.ShippingMinor = inv.ShippingMinor
	view.TotalMinor = inv.TotalMinor
}
