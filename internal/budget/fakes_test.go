package budget

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/camper-budget/internal/catalog"
	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/events"
	"github.com/noah-isme/camper-budget/internal/packs"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

type memoryRepo struct {
	mu            sync.Mutex
	opportunities map[uuid.UUID]bool
	budgets       map[uuid.UUID]Budget
}

func newMemoryRepo(opportunities ...uuid.UUID) *memoryRepo {
	r := &memoryRepo{opportunities: map[uuid.UUID]bool{}, budgets: map[uuid.UUID]Budget{}}
	for _, id := range opportunities {
		r.opportunities[id] = true
	}
	return r
}

func (r *memoryRepo) OpportunityExists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opportunities[id], nil
}

func (r *memoryRepo) CreateVersion(_ context.Context, d Draft) (Budget, []uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opportunities[d.OpportunityID] {
		return Budget{}, nil, ErrOpportunityNotFound
	}
	version := 0
	var demoted []uuid.UUID
	for id, b := range r.budgets {
		if b.OpportunityID != d.OpportunityID {
			continue
		}
		if b.Version > version {
			version = b.Version
		}
		if b.IsPrimary || !b.IsHistorical {
			b.IsPrimary = false
			b.IsHistorical = true
			r.budgets[id] = b
			demoted = append(demoted, id)
		}
	}
	now := time.Now().UTC()
	b := Budget{
		ID:            uuid.New(),
		OpportunityID: d.OpportunityID,
		Version:       version + 1,
		IsPrimary:     true,
		Region:        d.Region,
		Selection:     d.Selection,
		Breakdown:     d.Breakdown,
		LegalText:     d.LegalText,
		LineItems:     d.LineItems,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.budgets[b.ID] = b
	return b, demoted, nil
}

func (r *memoryRepo) UpdateVersion(_ context.Context, id uuid.UUID, d Draft) (Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.budgets[id]
	if !ok {
		return Budget{}, ErrNotFound
	}
	b.Region = d.Region
	b.Selection = d.Selection
	b.Breakdown = d.Breakdown
	b.LegalText = d.LegalText
	b.LineItems = d.LineItems
	b.UpdatedAt = time.Now().UTC()
	r.budgets[id] = b
	return b, nil
}

func (r *memoryRepo) SetPrimary(_ context.Context, id uuid.UUID) (Budget, []uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.budgets[id]
	if !ok {
		return Budget{}, nil, ErrNotFound
	}
	var demoted []uuid.UUID
	for otherID, b := range r.budgets {
		if b.OpportunityID != target.OpportunityID {
			continue
		}
		if otherID != id && b.IsPrimary {
			demoted = append(demoted, otherID)
		}
		b.IsPrimary = otherID == id
		b.IsHistorical = otherID != id
		r.budgets[otherID] = b
	}
	return r.budgets[id], demoted, nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.budgets[id]
	if !ok {
		return Budget{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryRepo) ListByOpportunity(_ context.Context, opportunityID uuid.UUID) ([]Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Budget
	for _, b := range r.budgets {
		if b.OpportunityID == opportunityID {
			b.LineItems = nil
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *memoryRepo) Primary(_ context.Context, opportunityID uuid.UUID) (Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.budgets {
		if b.OpportunityID == opportunityID && b.IsPrimary {
			return b, nil
		}
	}
	return Budget{}, ErrNotFound
}

func (r *memoryRepo) primaries(opportunityID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.budgets {
		if b.OpportunityID == opportunityID && b.IsPrimary {
			n++
		}
	}
	return n
}

type fakeCatalog struct {
	options    map[uuid.UUID]catalog.Option
	membership packs.Membership
}

func (f *fakeCatalog) add(category catalog.Category, name, price string, export ...string) uuid.UUID {
	opt := catalog.Option{ID: uuid.New(), Category: category, Name: name, StandardPrice: money(price), Active: true}
	if len(export) > 0 {
		e := money(export[0])
		opt.ExportPrice = &e
	}
	f.options[opt.ID] = opt
	return opt.ID
}

func (f *fakeCatalog) ByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Option, error) {
	out := map[uuid.UUID]catalog.Option{}
	for _, id := range ids {
		opt, ok := f.options[id]
		if !ok {
			return nil, common.Validation("unknown catalog options", nil)
		}
		out[id] = opt
	}
	return out, nil
}

func (f *fakeCatalog) Membership(context.Context) (packs.Membership, error) {
	return f.membership, nil
}

type fakeTaxes struct {
	stored map[pricing.Region]*pricing.TaxConfig
}

func (f fakeTaxes) Stored(_ context.Context, r pricing.Region) (*pricing.TaxConfig, error) {
	return f.stored[r], nil
}

type captureEvents struct {
	mu     sync.Mutex
	topics []string
	items  []map[string]any
}

func (c *captureEvents) Emit(_ context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	if m, ok := payload.(map[string]any); ok {
		c.items = append(c.items, m)
	}
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}
