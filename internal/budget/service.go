// Package budget prices camper configurations and stores them as versioned
// budgets with at most one primary version per opportunity.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/camper-budget/internal/cache"
	"github.com/noah-isme/camper-budget/internal/catalog"
	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/db"
	"github.com/noah-isme/camper-budget/internal/events"
	"github.com/noah-isme/camper-budget/internal/lock"
	"github.com/noah-isme/camper-budget/internal/obs"
	"github.com/noah-isme/camper-budget/internal/packs"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Catalog resolves selected option IDs.
type Catalog interface {
	ByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Option, error)
	Membership(ctx context.Context) (packs.Membership, error)
}

// TaxConfigs returns the stored configuration of a region, nil when the fallback applies.
type TaxConfigs interface {
	Stored(ctx context.Context, region pricing.Region) (*pricing.TaxConfig, error)
}

// EventEmitter publishes domain events.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Locker serialises writers of one opportunity.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ServiceConfig groups Service dependencies. Events, Locker and Cache are optional.
type ServiceConfig struct {
	Repository Repository
	Catalog    Catalog
	TaxConfigs TaxConfigs
	Events     EventEmitter
	Locker     Locker
	LockTTL    time.Duration
	Cache      *cache.Cache
	Validator  *validator.Validate
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Service implements budget quoting and persistence.
type Service struct {
	repo      Repository
	catalog   Catalog
	taxes     TaxConfigs
	events    EventEmitter
	locker    Locker
	lockTTL   time.Duration
	cache     *cache.Cache
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
	tracer    trace.Tracer
	quoteHist metric.Float64Histogram
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("budget: repository is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("budget: catalog is required")
	}
	if cfg.TaxConfigs == nil {
		return nil, errors.New("budget: tax configs are required")
	}
	if cfg.Validator == nil {
		cfg.Validator = common.NewValidator()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	hist, err := otel.Meter("camper-budget/budget").Float64Histogram(
		"budget.quote.total_with_surcharge",
		metric.WithDescription("Quoted total with surcharge"),
		metric.WithUnit("EUR"),
	)
	if err != nil {
		return nil, fmt.Errorf("budget: quote histogram: %w", err)
	}
	return &Service{
		repo:      cfg.Repository,
		catalog:   cfg.Catalog,
		taxes:     cfg.TaxConfigs,
		events:    cfg.Events,
		locker:    cfg.Locker,
		lockTTL:   cfg.LockTTL,
		cache:     cfg.Cache,
		validate:  cfg.Validator,
		logger:    cfg.Logger,
		now:       cfg.Now,
		tracer:    otel.Tracer("camper-budget/budget"),
		quoteHist: hist,
	}, nil
}

// Quote prices a selection without persisting it.
func (s *Service) Quote(ctx context.Context, in Input) (Quote, error) {
	ctx, span := s.tracer.Start(ctx, "budget.Quote")
	defer span.End()

	if err := common.ValidateStruct(s.validate, in); err != nil {
		return Quote{}, err
	}
	p, err := s.price(ctx, recordFrom(in))
	if err != nil {
		obs.IncQuote(in.Region, "error")
		return Quote{}, err
	}
	obs.IncQuote(string(p.region), "ok")
	if s.quoteHist != nil {
		total, _ := p.result.TotalWithSurcharge.Float64()
		s.quoteHist.Record(ctx, total)
	}
	span.SetAttributes(attribute.String("budget.region", string(p.region)))
	return Quote{Region: p.region, Breakdown: p.result, LegalText: p.legalText, LineItems: p.lines}, nil
}

// Create validates the opportunity reference, prices the selection and stores
// it as the new primary version.
func (s *Service) Create(ctx context.Context, in Input) (Budget, error) {
	ctx, span := s.tracer.Start(ctx, "budget.Create")
	defer span.End()

	raw := strings.TrimSpace(in.OpportunityID)
	if raw == "" {
		return Budget{}, common.Validation("opportunity reference is required", map[string]string{"opportunity_id": "required"})
	}
	oppID, err := uuid.Parse(raw)
	if err != nil {
		return Budget{}, common.Validation("opportunity reference is malformed", map[string]string{"opportunity_id": "uuid"})
	}
	if err := common.ValidateStruct(s.validate, in); err != nil {
		return Budget{}, err
	}
	exists, err := s.repo.OpportunityExists(ctx, oppID)
	if err != nil {
		return Budget{}, err
	}
	if !exists {
		return Budget{}, unknownOpportunity()
	}
	p, err := s.price(ctx, recordFrom(in))
	if err != nil {
		return Budget{}, err
	}

	var (
		created Budget
		demoted []uuid.UUID
	)
	err = s.withOpportunityLock(ctx, oppID, func(ctx context.Context) error {
		var err error
		created, demoted, err = s.repo.CreateVersion(ctx, p.draft(oppID))
		return err
	})
	if err != nil {
		return Budget{}, s.mapWriteError(err)
	}
	span.SetAttributes(attribute.String("budget.id", created.ID.String()), attribute.Int("budget.version", created.Version))
	obs.IncBudgetCreated(string(created.Region))
	s.logger.Info().
		Str("budget_id", created.ID.String()).
		Str("opportunity_id", oppID.String()).
		Int("version", created.Version).
		Str("total_with_surcharge", created.Breakdown.TotalWithSurcharge.StringFixed(2)).
		Msg("budget created")

	s.dropSummaries(ctx, demoted...)
	s.emit(ctx, events.TopicBudgetCreated, created, demoted)
	return created, nil
}

// Update applies discount or selection edits to a budget and recomputes it.
// Historical versions are read-only.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (Budget, error) {
	ctx, span := s.tracer.Start(ctx, "budget.Update", trace.WithAttributes(attribute.String("budget.id", id.String())))
	defer span.End()

	if err := common.ValidateStruct(s.validate, patch); err != nil {
		return Budget{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Budget{}, err
	}
	if current.IsHistorical {
		return Budget{}, common.Conflict("historical budget versions cannot be edited", nil)
	}

	rec := current.Selection
	if patch.Selection != nil {
		rec.SelectionInput = *patch.Selection
	}
	if strings.TrimSpace(rec.Region) == "" {
		rec.Region = string(current.Region)
	}
	if patch.PercentageDiscount != nil {
		rec.PercentageDiscount = *patch.PercentageDiscount
	}
	if patch.FixedDiscount != nil {
		rec.FixedDiscount = *patch.FixedDiscount
	}
	p, err := s.price(ctx, rec)
	if err != nil {
		return Budget{}, err
	}

	var updated Budget
	err = s.withOpportunityLock(ctx, current.OpportunityID, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdateVersion(ctx, id, p.draft(current.OpportunityID))
		return err
	})
	if err != nil {
		return Budget{}, s.mapWriteError(err)
	}
	s.dropSummaries(ctx, id)
	s.emit(ctx, events.TopicBudgetUpdated, updated, nil)
	return updated, nil
}

// SetPrimary makes id the only primary budget of its opportunity.
func (s *Service) SetPrimary(ctx context.Context, id uuid.UUID) (Budget, error) {
	ctx, span := s.tracer.Start(ctx, "budget.SetPrimary", trace.WithAttributes(attribute.String("budget.id", id.String())))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Budget{}, s.mapReadError(err)
	}
	var (
		primary Budget
		demoted []uuid.UUID
	)
	err = s.withOpportunityLock(ctx, current.OpportunityID, func(ctx context.Context) error {
		var err error
		primary, demoted, err = s.repo.SetPrimary(ctx, id)
		return err
	})
	if err != nil {
		return Budget{}, s.mapWriteError(err)
	}
	obs.IncPrimaryChange()
	s.logger.Info().
		Str("budget_id", id.String()).
		Str("opportunity_id", primary.OpportunityID.String()).
		Int("demoted", len(demoted)).
		Msg("primary budget changed")

	s.dropSummaries(ctx, append([]uuid.UUID{id}, demoted...)...)
	s.emit(ctx, events.TopicBudgetPrimaryChanged, primary, demoted)
	return primary, nil
}

// Get returns a budget with its line items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Budget, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return Budget{}, s.mapReadError(err)
	}
	return b, nil
}

// List returns every version of an opportunity's budgets, newest first.
func (s *Service) List(ctx context.Context, opportunityID uuid.UUID) ([]Budget, error) {
	return s.repo.ListByOpportunity(ctx, opportunityID)
}

// Primary returns the primary budget of an opportunity.
func (s *Service) Primary(ctx context.Context, opportunityID uuid.UUID) (Budget, error) {
	b, err := s.repo.Primary(ctx, opportunityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Budget{}, common.NotFound("opportunity has no primary budget")
		}
		return Budget{}, err
	}
	return b, nil
}

func (s *Service) withOpportunityLock(ctx context.Context, opportunityID uuid.UUID, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, lock.OpportunityKey(opportunityID), s.lockTTL, fn)
}

func (s *Service) emit(ctx context.Context, topic string, b Budget, affected []uuid.UUID) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"opportunity_id": b.OpportunityID,
		"version":        b.Version,
		"is_primary":     b.IsPrimary,
	}
	if len(affected) > 0 {
		payload["affected_budget_ids"] = affected
	}
	if _, err := s.events.Emit(ctx, topic, b.ID, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Str("budget_id", b.ID.String()).Msg("emit budget event")
	}
}

func (s *Service) mapReadError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("budget not found")
	}
	return err
}

func (s *Service) mapWriteError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("budget not found")
	case errors.Is(err, ErrOpportunityNotFound):
		return unknownOpportunity()
	case errors.Is(err, lock.ErrNotAcquired):
		return common.Conflict("another budget write for this opportunity is in progress", err)
	case db.IsUniqueViolation(err):
		return common.Conflict("concurrent budget write detected", err)
	default:
		return err
	}
}

func unknownOpportunity() error {
	return common.Validation("opportunity reference is unknown", map[string]string{"opportunity_id": "exists"})
}
