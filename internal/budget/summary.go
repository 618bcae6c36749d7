package budget

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/camper-budget/internal/cache"
	"github.com/noah-isme/camper-budget/internal/packs"
)

// Summary returns the print view of a budget, served from cache when present.
// Totals always come from the persisted breakdown; tax is never re-derived
// from the rounded total.
func (s *Service) Summary(ctx context.Context, id uuid.UUID) (Summary, error) {
	key := cache.KeyBudgetSummary(id)
	var cached Summary
	found, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("budget_id", id.String()).Msg("summary cache read failed")
	}
	if found {
		return cached, nil
	}
	summary, err := s.buildSummary(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	if err := s.cache.SetJSON(ctx, key, summary); err != nil {
		s.logger.Warn().Err(err).Str("budget_id", id.String()).Msg("summary cache write failed")
	}
	return summary, nil
}

// RefreshSummary rebuilds the cached print view of a budget.
func (s *Service) RefreshSummary(ctx context.Context, id uuid.UUID) error {
	summary, err := s.buildSummary(ctx, id)
	if err != nil {
		return err
	}
	return s.cache.SetJSON(ctx, cache.KeyBudgetSummary(id), summary)
}

func (s *Service) buildSummary(ctx context.Context, id uuid.UUID) (Summary, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	membership, err := s.catalog.Membership(ctx)
	if err != nil {
		return Summary{}, err
	}

	var (
		selectedPacks []uuid.UUID
		packNames     = map[uuid.UUID]string{}
		memberIDs     []uuid.UUID
	)
	for _, item := range b.LineItems {
		if item.Kind == KindPack && item.OptionID != nil {
			selectedPacks = append(selectedPacks, *item.OptionID)
			packNames[*item.OptionID] = item.Name
			if !packs.Known(item.Name) {
				memberIDs = append(memberIDs, membership[*item.OptionID]...)
			}
		}
	}
	memberNames := map[uuid.UUID]string{}
	if len(memberIDs) > 0 {
		members, err := s.catalog.ByIDs(ctx, memberIDs)
		if err != nil {
			return Summary{}, fmt.Errorf("resolve pack members: %w", err)
		}
		for memberID, opt := range members {
			memberNames[memberID] = opt.Name
		}
	}

	lines := make([]SummaryLine, 0, len(b.LineItems))
	for _, item := range b.LineItems {
		line := SummaryLine{LineItem: item}
		switch {
		case item.Kind == KindPack && item.OptionID != nil:
			line.Components = packs.Components(item.Name)
			if line.Components == nil {
				for _, memberID := range membership[*item.OptionID] {
					if name, ok := memberNames[memberID]; ok {
						line.Components = append(line.Components, name)
					}
				}
			}
		case item.OptionID != nil:
			if packID, ok := membership.Bundled(*item.OptionID, selectedPacks); ok {
				line.BundledIn = packNames[packID]
			}
		}
		lines = append(lines, line)
	}

	return Summary{
		BudgetID:      b.ID,
		OpportunityID: b.OpportunityID,
		Version:       b.Version,
		IsPrimary:     b.IsPrimary,
		Region:        b.Region,
		Lines:         lines,
		Breakdown:     b.Breakdown,
		LegalText:     b.LegalText,
		GeneratedAt:   s.now().UTC(),
	}, nil
}

// dropSummaries evicts cached print views so the next read or the worker rebuilds them.
func (s *Service) dropSummaries(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.KeyBudgetSummary(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Msg("summary cache eviction failed")
	}
}
