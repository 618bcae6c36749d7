package catalog

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Category identifies one of the selectable option catalogs.
type Category string

const (
	CategoryModel          Category = "model"
	CategoryEngine         Category = "engine"
	CategoryExteriorColor  Category = "exterior_color"
	CategoryInteriorColor  Category = "interior_color"
	CategoryPack           Category = "pack"
	CategoryElectricSystem Category = "electric_system"
	CategoryAdditionalItem Category = "additional_item"
)

var categories = []Category{
	CategoryModel,
	CategoryEngine,
	CategoryExteriorColor,
	CategoryInteriorColor,
	CategoryPack,
	CategoryElectricSystem,
	CategoryAdditionalItem,
}

// Categories returns every catalog category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory accepts the canonical name and the dashed URL form.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Option is a catalog row.
type Option struct {
	ID            uuid.UUID        `json:"id"`
	Category      Category         `json:"category"`
	Name          string           `json:"name"`
	StandardPrice decimal.Decimal  `json:"standard_price"`
	ExportPrice   *decimal.Decimal `json:"export_price,omitempty"`
	Active        bool             `json:"active"`
	SortOrder     int              `json:"sort_order"`
}

// Priceable converts the row into the calculator's option shape.
func (o Option) Priceable() pricing.Option {
	return pricing.Option{ID: o.ID, Name: o.Name, StandardPrice: o.StandardPrice, ExportPrice: o.ExportPrice}
}

// Listed is an active option with its price resolved for a region.
type Listed struct {
	Option
	Region pricing.Region  `json:"region"`
	Price  decimal.Decimal `json:"price"`
}
