package budget

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-budget/internal/catalog"
	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

type priced struct {
	region    pricing.Region
	record    Record
	result    pricing.Result
	legalText string
	lines     []LineItem
}

func (p priced) draft(opportunityID uuid.UUID) Draft {
	return Draft{
		OpportunityID: opportunityID,
		Region:        p.region,
		Selection:     p.record,
		Breakdown:     p.result,
		LegalText:     p.legalText,
		LineItems:     p.lines,
	}
}

func recordFrom(in Input) Record {
	return Record{
		SelectionInput:     in.SelectionInput,
		PercentageDiscount: in.PercentageDiscount,
		FixedDiscount:      in.FixedDiscount,
	}
}

// price resolves the record's option IDs, runs the calculator and builds the
// line items. The returned breakdown is rounded to stored precision.
func (s *Service) price(ctx context.Context, rec Record) (priced, error) {
	region, ok := pricing.ParseRegion(rec.Region)
	if !ok {
		return priced{}, common.Validation("unknown region", map[string]string{"region": "oneof"})
	}
	rec.Region = string(region)
	rec.PackIDs = uniqueIDs(rec.PackIDs)
	rec.AdditionalItemIDs = uniqueIDs(rec.AdditionalItemIDs)

	options, err := s.catalog.ByIDs(ctx, rec.optionIDs())
	if err != nil {
		return priced{}, err
	}
	r := resolver{options: options, region: region, problems: map[string]string{}}

	sel := pricing.Selection{Region: region}
	sel.Model = r.slot("model_id", rec.ModelID, catalog.CategoryModel)
	sel.Engine = r.slot("engine_id", rec.EngineID, catalog.CategoryEngine)
	exterior := r.slot("exterior_color_id", rec.ExteriorColorID, catalog.CategoryExteriorColor)
	sel.InteriorColor = r.slot("interior_color_id", rec.InteriorColorID, catalog.CategoryInteriorColor)
	sel.Packs = r.list("pack_ids", rec.PackIDs, catalog.CategoryPack)
	sel.ElectricSystem = r.slot("electric_system_id", rec.ElectricSystemID, catalog.CategoryElectricSystem)
	sel.AdditionalItems = r.list("additional_item_ids", rec.AdditionalItemIDs, catalog.CategoryAdditionalItem)
	if len(r.problems) > 0 {
		return priced{}, common.Validation("selected options do not match their catalog", r.problems)
	}
	for _, item := range rec.CustomItems {
		sel.CustomItems = append(sel.CustomItems, pricing.CustomItem{
			Name:       strings.TrimSpace(item.Name),
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			Selected:   item.Selected == nil || *item.Selected,
			IsDiscount: item.IsDiscount,
		})
	}
	sel.Discount = pricing.ClampDiscount(pricing.Discount{Percentage: rec.PercentageDiscount, Fixed: rec.FixedDiscount})

	stored, err := s.taxes.Stored(ctx, region)
	if err != nil {
		return priced{}, err
	}
	result := pricing.Compute(sel, stored).Rounded()

	return priced{
		region:    region,
		record:    rec,
		result:    result,
		legalText: pricing.EffectiveTaxConfig(region, stored).LegalText,
		lines:     buildLines(sel, exterior),
	}, nil
}

func (r Record) optionIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range []*uuid.UUID{r.ModelID, r.EngineID, r.ExteriorColorID, r.InteriorColorID, r.ElectricSystemID} {
		if id != nil && *id != uuid.Nil {
			ids = append(ids, *id)
		}
	}
	ids = append(ids, r.PackIDs...)
	return append(ids, r.AdditionalItemIDs...)
}

type resolver struct {
	options  map[uuid.UUID]catalog.Option
	region   pricing.Region
	problems map[string]string
}

func (r resolver) slot(field string, id *uuid.UUID, want catalog.Category) *pricing.Option {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	opt, ok := r.options[*id]
	if !ok {
		r.problems[field] = "unknown"
		return nil
	}
	if opt.Category != want {
		r.problems[field] = "category=" + string(want)
		return nil
	}
	p := opt.Priceable()
	return &p
}

func (r resolver) list(field string, ids []uuid.UUID, want catalog.Category) []pricing.Option {
	out := make([]pricing.Option, 0, len(ids))
	for _, id := range ids {
		if p := r.slot(field, &id, want); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// buildLines lists the priced rows of a selection in print order. The
// exterior colour is informational and carries no price.
func buildLines(sel pricing.Selection, exterior *pricing.Option) []LineItem {
	var lines []LineItem
	add := func(kind string, opt *pricing.Option, unit decimal.Decimal) {
		id := opt.ID
		lines = append(lines, LineItem{
			Kind:      kind,
			OptionID:  &id,
			Name:      opt.Name,
			UnitPrice: pricing.RoundCents(unit),
			Quantity:  1,
			LineTotal: pricing.RoundCents(pricing.LineTotal(unit, 1)),
		})
	}
	option := func(kind string, opt *pricing.Option) {
		if opt != nil {
			add(kind, opt, pricing.ResolvePrice(opt, sel.Region))
		}
	}

	option(KindModel, sel.Model)
	option(KindEngine, sel.Engine)
	if exterior != nil {
		add(KindExteriorColor, exterior, decimal.Zero)
	}
	option(KindInteriorColor, sel.InteriorColor)
	for i := range sel.Packs {
		option(KindPack, &sel.Packs[i])
	}
	option(KindElectricSystem, sel.ElectricSystem)
	for i := range sel.AdditionalItems {
		option(KindAdditionalItem, &sel.AdditionalItems[i])
	}
	for _, item := range sel.CustomItems {
		if !item.Counts() {
			continue
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, LineItem{
			Kind:       KindCustom,
			Name:       item.Name,
			UnitPrice:  pricing.RoundCents(item.UnitPrice.Abs()),
			Quantity:   qty,
			LineTotal:  pricing.RoundCents(pricing.LineTotal(item.UnitPrice.Abs(), qty)),
			IsCustom:   true,
			IsDiscount: item.IsDiscount,
		})
	}
	for i := range lines {
		lines[i].Position = i + 1
	}
	return lines
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
