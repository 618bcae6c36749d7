package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/camper-budget/internal/cache"
	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/obs"
	"github.com/noah-isme/camper-budget/internal/packs"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Service lists catalog options and resolves selections for the budget service.
type Service struct {
	repo   Repository
	cache  *cache.Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository Repository
	Cache      *cache.Cache
	Logger     zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("catalog: repository is required")
	}
	return &Service{repo: cfg.Repository, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// List returns the active options of a category in display order, priced for region.
func (s *Service) List(ctx context.Context, category Category, region pricing.Region) ([]Listed, error) {
	if _, ok := ParseCategory(string(category)); !ok {
		return nil, common.Validation("unknown catalog category", map[string]string{"category": string(category)})
	}
	if !region.Valid() {
		return nil, common.Validation("unknown region", map[string]string{"region": string(region)})
	}

	key := cache.KeyCatalogList(string(category), string(region))
	var cached []Listed
	found, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	if found {
		obs.IncCatalogCache("hit")
		return cached, nil
	}
	obs.IncCatalogCache("miss")

	rows, err := s.repo.ListActive(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]Listed, 0, len(rows))
	for _, row := range rows {
		opt := row.Priceable()
		out = append(out, Listed{Option: row, Region: region, Price: pricing.ResolvePrice(&opt, region)})
	}
	if err := s.cache.SetJSON(ctx, key, out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return out, nil
}

// ByIDs resolves option rows by identifier, including inactive ones so that
// stored budgets keep resolving after an option is retired. Unknown IDs are
// reported as a validation error.
func (s *Service) ByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Option, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[uuid.UUID]Option{}, nil
	}
	rows, err := s.repo.ByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]Option, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	var missing []string
	for _, id := range unique {
		if _, ok := out[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, common.Validation("unknown catalog options", map[string]any{"option_ids": missing})
	}
	return out, nil
}

// Membership returns which options each pack bundles.
func (s *Service) Membership(ctx context.Context) (packs.Membership, error) {
	m, err := s.repo.PackMembership(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog membership: %w", err)
	}
	return m, nil
}
