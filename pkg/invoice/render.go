// Package invoice renders printable invoices for reconciled orders.
package invoice

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/money"
	"github.com/shopspring/decimal"
)

//go:embed templates/invoice.html
var templateFS embed.FS

type Seller struct {
	Name    string
	Address string
}

// Document is everything printed on one invoice.
type Document struct {
	Number   string
	IssuedAt time.Time
	Seller   Seller
	Order    *models.OrderView
	Invoice  models.Invoice
}

type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded invoice template. currencySymbol prefixes
// every amount.
func NewRenderer(currencySymbol string) (*Renderer, error) {
	funcs := template.FuncMap{
		"money": func(minor int64) string {
			return money.FormatWithSymbol(currencySymbol, minor)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "N/A"
			}
			return t.Format("02 Jan 2006")
		},
		"percent": func(rate float64) string {
			return decimal.NewFromFloat(rate).Shift(2).Round(2).String() + "%"
		},
	}

	tmpl, err := template.New("invoice.html").Funcs(funcs).ParseFS(templateFS, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(doc Document) (string, error) {
	if doc.Order == nil {
		return "", fmt.Errorf("invoice %s has no order", doc.Number)
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
