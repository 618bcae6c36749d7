// Package tasks defines the asynchronous jobs processed by cmd/worker.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/camper-budget/internal/events"
	"github.com/noah-isme/camper-budget/internal/obs"
)

// TypeSummaryRefresh rebuilds the cached print summary of one budget.
const TypeSummaryRefresh = "budget:summary:refresh"

// SummaryRefreshPayload is the task body of TypeSummaryRefresh.
type SummaryRefreshPayload struct {
	BudgetID uuid.UUID `json:"budget_id"`
}

// NewSummaryRefreshTask builds a refresh task for budgetID.
func NewSummaryRefreshTask(budgetID uuid.UUID, opts ...asynq.Option) (*asynq.Task, error) {
	if budgetID == uuid.Nil {
		return nil, errors.New("tasks: budget id is required")
	}
	payload, err := json.Marshal(SummaryRefreshPayload{BudgetID: budgetID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSummaryRefresh, payload, opts...), nil
}

// TaskClient is the subset of *asynq.Client used to enqueue work.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer is an events.Notifier that schedules summary refreshes for every
// budget touched by an event.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	MaxRetry int
	Logger   zerolog.Logger
}

// AffectedBudgets is the optional event payload field listing budgets other
// than the aggregate whose summary went stale.
type AffectedBudgets struct {
	AffectedBudgetIDs []uuid.UUID `json:"affected_budget_ids,omitempty"`
}

func (e Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if e.Client == nil {
		return nil
	}
	ids := []uuid.UUID{ev.AggregateID}
	var extra AffectedBudgets
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &extra); err != nil {
			return fmt.Errorf("tasks: decode event payload: %w", err)
		}
	}
	for _, id := range extra.AffectedBudgetIDs {
		if id != uuid.Nil && id != ev.AggregateID {
			ids = append(ids, id)
		}
	}

	var joined error
	for _, id := range ids {
		opts := []asynq.Option{asynq.TaskID(ev.ID.String() + ":" + id.String())}
		if e.Queue != "" {
			opts = append(opts, asynq.Queue(e.Queue))
		}
		if e.MaxRetry > 0 {
			opts = append(opts, asynq.MaxRetry(e.MaxRetry))
		}
		task, err := NewSummaryRefreshTask(id, opts...)
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		info, err := e.Client.EnqueueContext(ctx, task)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			joined = errors.Join(joined, fmt.Errorf("tasks: enqueue refresh %s: %w", id, err))
			continue
		}
		e.Logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Str("budget_id", id.String()).Msg("summary refresh enqueued")
	}
	return joined
}

// SummaryRefresher rebuilds and caches a budget summary.
type SummaryRefresher interface {
	RefreshSummary(ctx context.Context, budgetID uuid.UUID) error
}

// Handler processes summary refresh tasks.
type Handler struct {
	Refresher SummaryRefresher
	Logger    zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p SummaryRefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.BudgetID == uuid.Nil {
		obs.IncSummaryRefresh("invalid")
		return fmt.Errorf("tasks: invalid %s payload: %w", t.Type(), asynq.SkipRetry)
	}
	if err := h.Refresher.RefreshSummary(ctx, p.BudgetID); err != nil {
		obs.IncSummaryRefresh("error")
		h.Logger.Error().Err(err).Str("budget_id", p.BudgetID.String()).Msg("summary refresh failed")
		return err
	}
	obs.IncSummaryRefresh("ok")
	h.Logger.Info().Str("budget_id", p.BudgetID.String()).Msg("summary refreshed")
	return nil
}

// NewServeMux routes every task type to its handler.
func NewServeMux(h Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSummaryRefresh, h)
	return mux
}
