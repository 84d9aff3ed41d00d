package catalog

import (
	"strings"

	"github.com/example/bookadmin/pkg/models"
)

// Merge overlays a catalog entry on a line. Books read title/author/isbn,
// stationery reads name/brand; empty catalog fields keep the line's value.
func Merge(line models.OrderLineView, p *models.Product) models.OrderLineView {
	if p == nil {
		return line
	}

	if line.ProductRef.Category == models.CategoryBook {
		line.Title = pick(p.Title, p.Name, line.Title)
		line.SecondaryLabel = pick(p.Author, line.SecondaryLabel)
		line.ISBN = pick(p.ISBN, line.ISBN)
	} else {
		line.Title = pick(p.Name, p.Title, line.Title)
		line.SecondaryLabel = pick(p.Brand, line.SecondaryLabel)
	}
	line.Image = pick(p.Image, line.Image)
	line.Enriched = true
	return line
}

func pick(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
