package pricing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Option is any priceable configuration choice: model, engine, colour, pack,
// electric system or catalog additional item.
type Option struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	StandardPrice Money     `json:"standard_price"`
	ExportPrice   *Money    `json:"export_price,omitempty"`
}

// CustomItem is a free-text line a sales agent adds to a budget.
type CustomItem struct {
	Name       string `json:"name"`
	UnitPrice  Money  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Selected   bool   `json:"selected"`
	IsDiscount bool   `json:"is_discount"`
}

// Counts reports whether the item takes part in the totals.
func (c CustomItem) Counts() bool {
	return c.Selected && strings.TrimSpace(c.Name) != ""
}

// Amount returns the signed contribution of the item. Discount lines subtract.
func (c CustomItem) Amount() Money {
	total := LineTotal(c.UnitPrice, c.Quantity)
	if c.IsDiscount {
		return total.Abs().Neg()
	}
	return total
}

// Discount groups the two cumulative discount mechanisms of a budget.
// Percentage is applied first, then Fixed on the reduced amount.
type Discount struct {
	Percentage Money `json:"percentage"`
	Fixed      Money `json:"fixed"`
}

// ClampDiscount bounds the percentage to [0,100] and the fixed amount to >= 0.
func ClampDiscount(d Discount) Discount {
	if d.Percentage.IsNegative() {
		d.Percentage = zero
	}
	if d.Percentage.GreaterThan(hundred) {
		d.Percentage = hundred
	}
	if d.Fixed.IsNegative() {
		d.Fixed = zero
	}
	return d
}

// Selection is a fully resolved budget configuration. Nil options contribute zero.
type Selection struct {
	Model           *Option      `json:"model,omitempty"`
	Engine          *Option      `json:"engine,omitempty"`
	InteriorColor   *Option      `json:"interior_color,omitempty"`
	Packs           []Option     `json:"packs,omitempty"`
	ElectricSystem  *Option      `json:"electric_system,omitempty"`
	AdditionalItems []Option     `json:"additional_items,omitempty"`
	CustomItems     []CustomItem `json:"custom_items,omitempty"`
	Discount        Discount     `json:"discount"`
	Region          Region       `json:"region"`
}

// Result is the full price breakdown of a selection.
type Result struct {
	BasePrice                Money  `json:"base_price"`
	PacksTotal               Money  `json:"packs_total"`
	ElectricPrice            Money  `json:"electric_price"`
	AdditionalsTotal         Money  `json:"additionals_total"`
	CustomItemsTotal         Money  `json:"custom_items_total"`
	OptionalsTotal           Money  `json:"optionals_total"`
	GrossTotal               Money  `json:"gross_total"`
	PercentageDiscountAmount Money  `json:"percentage_discount_amount"`
	FixedDiscount            Money  `json:"fixed_discount"`
	TotalAfterDiscounts      Money  `json:"total_after_discounts"`
	TaxRate                  Money  `json:"tax_rate"`
	TaxLabel                 string `json:"tax_label"`
	TaxBase                  Money  `json:"tax_base"`
	TaxAmount                Money  `json:"tax_amount"`
	FinalTotal               Money  `json:"final_total"`
	SurchargeRate            Money  `json:"surcharge_rate"`
	SurchargeAmount          Money  `json:"surcharge_amount"`
	TotalWithSurcharge       Money  `json:"total_with_surcharge"`
}

// ResolvePrice returns the price of an option for a region. Non-peninsula
// regions use the export price when one is set.
func ResolvePrice(opt *Option, region Region) Money {
	if opt == nil {
		return zero
	}
	if region != Peninsula && opt.ExportPrice != nil {
		return *opt.ExportPrice
	}
	return opt.StandardPrice
}

// Compute runs the budget calculation. It never fails: missing inputs add zero.
// Discounts are expected to be clamped by the caller.
func Compute(sel Selection, cfg *TaxConfig) Result {
	region := sel.Region
	if region == "" {
		region = Peninsula
	}
	tax := EffectiveTaxConfig(region, cfg)

	base := ResolvePrice(sel.Model, region).
		Add(ResolvePrice(sel.Engine, region)).
		Add(ResolvePrice(sel.InteriorColor, region))

	packs := sumOptions(uniqueOptions(sel.Packs), region)
	electric := ResolvePrice(sel.ElectricSystem, region)
	additionals := sumOptions(uniqueOptions(sel.AdditionalItems), region)

	custom := zero
	for _, item := range sel.CustomItems {
		if item.Counts() {
			custom = custom.Add(item.Amount())
		}
	}

	optionals := packs.Add(electric).Add(additionals).Add(custom)
	gross := base.Add(optionals)

	pctAmount := Percent(gross, sel.Discount.Percentage)
	afterDiscounts := gross.Sub(pctAmount).Sub(sel.Discount.Fixed)
	if afterDiscounts.IsNegative() {
		afterDiscounts = zero
	}

	// Prices are tax inclusive: the base is backed out of the discounted total.
	taxBase := afterDiscounts.Div(one.Add(tax.TaxRate.Div(hundred)))
	taxAmount := afterDiscounts.Sub(taxBase)

	surcharge := zero
	if tax.SurchargeApplies {
		surcharge = RoundUnits(Percent(afterDiscounts, tax.SurchargeRate))
	}

	return Result{
		BasePrice:                base,
		PacksTotal:               packs,
		ElectricPrice:            electric,
		AdditionalsTotal:         additionals,
		CustomItemsTotal:         custom,
		OptionalsTotal:           optionals,
		GrossTotal:               gross,
		PercentageDiscountAmount: pctAmount,
		FixedDiscount:            sel.Discount.Fixed,
		TotalAfterDiscounts:      afterDiscounts,
		TaxRate:                  tax.TaxRate,
		TaxLabel:                 tax.TaxLabel,
		TaxBase:                  taxBase,
		TaxAmount:                taxAmount,
		FinalTotal:               afterDiscounts,
		SurchargeRate:            tax.SurchargeRate,
		SurchargeAmount:          surcharge,
		TotalWithSurcharge:       afterDiscounts.Add(surcharge),
	}
}

// Rounded returns a copy of r with every amount snapped to stored precision:
// two decimals for all columns except the surcharge, which is already whole units.
func (r Result) Rounded() Result {
	out := r
	for _, field := range []*Money{
		&out.BasePrice, &out.PacksTotal, &out.ElectricPrice, &out.AdditionalsTotal,
		&out.CustomItemsTotal, &out.OptionalsTotal, &out.GrossTotal,
		&out.PercentageDiscountAmount, &out.FixedDiscount, &out.TotalAfterDiscounts,
		&out.TaxBase, &out.TaxAmount, &out.FinalTotal, &out.TotalWithSurcharge,
	} {
		*field = RoundCents(*field)
	}
	out.SurchargeAmount = RoundUnits(out.SurchargeAmount)
	return out
}

func sumOptions(opts []Option, region Region) Money {
	total := decimal.Zero
	for i := range opts {
		total = total.Add(ResolvePrice(&opts[i], region))
	}
	return total
}

// uniqueOptions drops repeated IDs so packs and additional items behave as sets.
// Options without an ID are kept as given.
func uniqueOptions(opts []Option) []Option {
	if len(opts) < 2 {
		return opts
	}
	seen := make(map[uuid.UUID]struct{}, len(opts))
	out := make([]Option, 0, len(opts))
	for _, opt := range opts {
		if opt.ID != uuid.Nil {
			if _, dup := seen[opt.ID]; dup {
				continue
			}
			seen[opt.ID] = struct{}{}
		}
		out = append(out, opt)
	}
	return out
}
