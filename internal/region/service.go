// Package region manages the per-region tax and surcharge configuration used
// by the budget calculator.
package region

import (
	"context"
	"errors"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-budget/internal/cache"
	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Config is the effective configuration of a region. Fallback is set when no
// row exists and the built-in defaults are in force.
type Config struct {
	pricing.TaxConfig
	Fallback  bool       `json:"fallback"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// UpsertInput is the back-office payload for editing a region.
type UpsertInput struct {
	TaxRate          decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	TaxLabel         string          `json:"tax_label" validate:"max=16"`
	SurchargeRate    decimal.Decimal `json:"surcharge_rate" validate:"gte=0,lte=100"`
	SurchargeApplies bool            `json:"surcharge_applies"`
	LegalText        string          `json:"legal_text" validate:"max=2000"`
}

// Service resolves effective regional configuration with Redis caching.
type Service struct {
	Repo      Repository
	Cache     *cache.Cache
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// List returns one effective configuration per region in canonical order.
func (s *Service) List(ctx context.Context) ([]Config, error) {
	if s.Repo == nil {
		return nil, errors.New("region repository not configured")
	}
	rows, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[pricing.Region]Stored, len(rows))
	for _, row := range rows {
		stored[row.Region] = row
	}
	out := make([]Config, 0, len(pricing.Regions()))
	for _, r := range pricing.Regions() {
		if row, ok := stored[r]; ok {
			out = append(out, fromStored(row))
			continue
		}
		out = append(out, Config{TaxConfig: pricing.DefaultTaxConfig(r), Fallback: true})
	}
	return out, nil
}

// For returns the effective configuration for one region.
func (s *Service) For(ctx context.Context, r pricing.Region) (Config, error) {
	if !r.Valid() {
		return Config{}, common.Validation("unknown region", map[string]string{"region": string(r)})
	}
	if s.Repo == nil {
		return Config{}, errors.New("region repository not configured")
	}
	key := cache.KeyRegion(string(r))
	var cached Config
	found, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Str("region", string(r)).Msg("region cache read failed")
	}
	if found {
		return cached, nil
	}

	row, err := s.Repo.Get(ctx, r)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{TaxConfig: pricing.DefaultTaxConfig(r), Fallback: true}
	if row != nil {
		cfg = fromStored(*row)
	}
	if err := s.Cache.SetJSON(ctx, key, cfg); err != nil {
		s.Logger.Warn().Err(err).Str("region", string(r)).Msg("region cache write failed")
	}
	return cfg, nil
}

// Stored returns the persisted row of a region for the calculator, or nil when
// the fallback table applies.
func (s *Service) Stored(ctx context.Context, r pricing.Region) (*pricing.TaxConfig, error) {
	cfg, err := s.For(ctx, r)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback {
		return nil, nil
	}
	return &cfg.TaxConfig, nil
}

// Upsert creates or replaces the row for a region and drops its cached value.
func (s *Service) Upsert(ctx context.Context, r pricing.Region, in UpsertInput) (Config, error) {
	if !r.Valid() {
		return Config{}, common.Validation("unknown region", map[string]string{"region": string(r)})
	}
	if err := common.ValidateStruct(s.Validator, in); err != nil {
		return Config{}, err
	}
	row, err := s.Repo.Upsert(ctx, pricing.TaxConfig{
		Region:           r,
		TaxRate:          in.TaxRate,
		TaxLabel:         strings.TrimSpace(in.TaxLabel),
		SurchargeRate:    in.SurchargeRate,
		SurchargeApplies: in.SurchargeApplies,
		LegalText:        strings.TrimSpace(in.LegalText),
	})
	if err != nil {
		return Config{}, err
	}
	if err := s.Cache.Delete(ctx, cache.KeyRegion(string(r))); err != nil {
		s.Logger.Warn().Err(err).Str("region", string(r)).Msg("region cache invalidation failed")
	}
	s.Logger.Info().Str("region", string(r)).Str("tax_rate", row.TaxRate.String()).Msg("regional tax config updated")
	return fromStored(row), nil
}

func fromStored(s Stored) Config {
	updated := s.UpdatedAt
	return Config{TaxConfig: s.TaxConfig, UpdatedAt: &updated}
}
