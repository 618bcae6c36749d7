package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Region identifies the delivery and tax jurisdiction of a budget.
type Region string

const (
	// Peninsula is mainland Spain and the default price tier.
	Peninsula Region = "peninsula"
	// Canarias is the Canary Islands (IGIC instead of IVA).
	Canarias Region = "canarias"
	// Internacional covers deliveries outside Spain.
	Internacional Region = "internacional"
)

// Regions lists every supported region in display order.
func Regions() []Region {
	return []Region{Peninsula, Canarias, Internacional}
}

// Valid reports whether r is one of the supported regions.
func (r Region) Valid() bool {
	switch r {
	case Peninsula, Canarias, Internacional:
		return true
	default:
		return false
	}
}

// ParseRegion normalises user input into a Region. Empty input maps to Peninsula.
func ParseRegion(value string) (Region, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return Peninsula, true
	}
	r := Region(trimmed)
	return r, r.Valid()
}

// TaxConfig holds the indirect tax and registration surcharge rules of a region.
// Rates are percentages (21 means 21%).
type TaxConfig struct {
	Region           Region `json:"region"`
	TaxRate          Money  `json:"tax_rate"`
	TaxLabel         string `json:"tax_label"`
	SurchargeRate    Money  `json:"surcharge_rate"`
	SurchargeApplies bool   `json:"surcharge_applies"`
	LegalText        string `json:"legal_text"`
}

// DefaultTaxConfig returns the hardcoded fallback used when no configuration row exists.
func DefaultTaxConfig(region Region) TaxConfig {
	switch region {
	case Peninsula:
		return TaxConfig{
			Region:           Peninsula,
			TaxRate:          decimal.NewFromInt(21),
			TaxLabel:         "IVA",
			SurchargeRate:    decimal.RequireFromString("4.75"),
			SurchargeApplies: true,
			LegalText:        "Precio con IVA incluido. El Impuesto Especial sobre Determinados Medios de Transporte (IEDMT) se liquida en la matriculación.",
		}
	case Canarias:
		return TaxConfig{
			Region:    Canarias,
			TaxRate:   decimal.NewFromInt(7),
			TaxLabel:  "IGIC",
			LegalText: "Precio con IGIC incluido. Entrega en Canarias.",
		}
	default:
		return TaxConfig{
			Region:    Internacional,
			TaxRate:   decimal.Zero,
			LegalText: "Operación exenta de impuestos indirectos españoles. Los impuestos del país de destino corren a cargo del comprador.",
		}
	}
}

// EffectiveTaxConfig picks the stored configuration when present and the fallback table otherwise.
func EffectiveTaxConfig(region Region, cfg *TaxConfig) TaxConfig {
	if cfg == nil {
		return DefaultTaxConfig(region)
	}
	out := *cfg
	out.Region = region
	return out
}
