package budget

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-budget/internal/pricing"
)

var (
	// ErrNotFound is returned by repositories when a budget does not exist.
	ErrNotFound = errors.New("budget not found")
	// ErrOpportunityNotFound is returned when the referenced opportunity does not exist.
	ErrOpportunityNotFound = errors.New("opportunity not found")
)

// Line item kinds, one per catalog slot plus free-text custom lines.
const (
	KindModel          = "model"
	KindEngine         = "engine"
	KindExteriorColor  = "exterior_color"
	KindInteriorColor  = "interior_color"
	KindPack           = "pack"
	KindElectricSystem = "electric_system"
	KindAdditionalItem = "additional_item"
	KindCustom         = "custom"
)

// CustomItemInput is a free-text line entered by the sales agent.
// Selected defaults to true when omitted.
type CustomItemInput struct {
	Name       string          `json:"name" validate:"max=200"`
	UnitPrice  decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Quantity   int             `json:"quantity" validate:"gte=0,lte=9999"`
	Selected   *bool           `json:"selected,omitempty"`
	IsDiscount bool            `json:"is_discount"`
}

// SelectionInput references catalog options by ID.
type SelectionInput struct {
	Region            string            `json:"region" validate:"omitempty,oneof=peninsula canarias internacional"`
	ModelID           *uuid.UUID        `json:"model_id,omitempty"`
	EngineID          *uuid.UUID        `json:"engine_id,omitempty"`
	ExteriorColorID   *uuid.UUID        `json:"exterior_color_id,omitempty"`
	InteriorColorID   *uuid.UUID        `json:"interior_color_id,omitempty"`
	PackIDs           []uuid.UUID       `json:"pack_ids,omitempty" validate:"max=50"`
	ElectricSystemID  *uuid.UUID        `json:"electric_system_id,omitempty"`
	AdditionalItemIDs []uuid.UUID       `json:"additional_item_ids,omitempty" validate:"max=200"`
	CustomItems       []CustomItemInput `json:"custom_items,omitempty" validate:"max=200,dive"`
}

// Input is the payload of quote and create requests.
type Input struct {
	OpportunityID string `json:"opportunity_id"`
	SelectionInput
	PercentageDiscount decimal.Decimal `json:"percentage_discount" validate:"gte=0,lte=100"`
	FixedDiscount      decimal.Decimal `json:"fixed_discount" validate:"gte=0"`
}

// Patch edits an existing budget. Omitted parts keep their stored values.
type Patch struct {
	Selection          *SelectionInput  `json:"selection,omitempty"`
	PercentageDiscount *decimal.Decimal `json:"percentage_discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	FixedDiscount      *decimal.Decimal `json:"fixed_discount,omitempty" validate:"omitempty,gte=0"`
}

// Record is the selection snapshot stored with a budget so it can be recomputed.
type Record struct {
	SelectionInput
	PercentageDiscount decimal.Decimal `json:"percentage_discount"`
	FixedDiscount      decimal.Decimal `json:"fixed_discount"`
}

// LineItem is a resolved, priced row of a budget. LineTotal is always
// unit price times quantity rounded to cents; IsDiscount lines subtract.
type LineItem struct {
	Position   int             `json:"position"`
	Kind       string          `json:"kind"`
	OptionID   *uuid.UUID      `json:"option_id,omitempty"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
	IsCustom   bool            `json:"is_custom"`
	IsDiscount bool            `json:"is_discount"`
}

// Budget is a persisted, versioned quotation for an opportunity.
type Budget struct {
	ID            uuid.UUID      `json:"id"`
	OpportunityID uuid.UUID      `json:"opportunity_id"`
	Version       int            `json:"version"`
	IsPrimary     bool           `json:"is_primary"`
	IsHistorical  bool           `json:"is_historical"`
	Region        pricing.Region `json:"region"`
	Selection     Record         `json:"selection"`
	Breakdown     pricing.Result `json:"breakdown"`
	LegalText     string         `json:"legal_text"`
	LineItems     []LineItem     `json:"line_items,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Draft carries everything the repository writes for one budget version.
type Draft struct {
	OpportunityID uuid.UUID
	Region        pricing.Region
	Selection     Record
	Breakdown     pricing.Result
	LegalText     string
	LineItems     []LineItem
}

// Quote is the unsaved result of pricing a selection.
type Quote struct {
	Region    pricing.Region `json:"region"`
	Breakdown pricing.Result `json:"breakdown"`
	LegalText string         `json:"legal_text"`
	LineItems []LineItem     `json:"line_items"`
}

// SummaryLine is one printable row of a budget receipt.
type SummaryLine struct {
	LineItem
	// Components lists what a pack bundles, for display.
	Components []string `json:"components,omitempty"`
	// BundledIn names the selected pack that already includes this option.
	BundledIn string `json:"bundled_in,omitempty"`
}

// Summary is the print view of a budget, built from the persisted breakdown.
type Summary struct {
	BudgetID      uuid.UUID      `json:"budget_id"`
	OpportunityID uuid.UUID      `json:"opportunity_id"`
	Version       int            `json:"version"`
	IsPrimary     bool           `json:"is_primary"`
	Region        pricing.Region `json:"region"`
	Lines         []SummaryLine  `json:"lines"`
	Breakdown     pricing.Result `json:"breakdown"`
	LegalText     string         `json:"legal_text"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
