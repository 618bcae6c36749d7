package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-budget/internal/events"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: "default", Type: task.Type()}, nil
}

type fakeRefresher struct {
	ids []uuid.UUID
	err error
}

func (f *fakeRefresher) RefreshSummary(_ context.Context, id uuid.UUID) error {
	f.ids = append(f.ids, id)
	return f.err
}

func decodeBudgetID(t *testing.T, task *asynq.Task) uuid.UUID {
	t.Helper()
	var p SummaryRefreshPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	return p.BudgetID
}

func TestEnqueuerSchedulesAggregateAndAffectedBudgets(t *testing.T) {
	client := &fakeClient{}
	enq := Enqueuer{Client: client, Queue: "summaries", MaxRetry: 3, Logger: zerolog.Nop()}

	target := uuid.New()
	demoted := uuid.New()
	payload, _ := json.Marshal(AffectedBudgets{AffectedBudgetIDs: []uuid.UUID{demoted, target, uuid.Nil}})
	err := enq.Notify(context.Background(), events.Event{
		ID:          uuid.New(),
		Topic:       events.TopicBudgetPrimaryChanged,
		AggregateID: target,
		Payload:     payload,
	})
	require.NoError(t, err)
	require.Len(t, client.tasks, 2)
	require.Equal(t, TypeSummaryRefresh, client.tasks[0].Type())
	require.Equal(t, target, decodeBudgetID(t, client.tasks[0]))
	require.Equal(t, demoted, decodeBudgetID(t, client.tasks[1]))
}

func TestEnqueuerIgnoresDuplicateTaskIDs(t *testing.T) {
	enq := Enqueuer{Client: &fakeClient{err: asynq.ErrTaskIDConflict}}
	err := enq.Notify(context.Background(), events.Event{ID: uuid.New(), AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	enq = Enqueuer{Client: &fakeClient{err: errors.New("redis down")}}
	err = enq.Notify(context.Background(), events.Event{ID: uuid.New(), AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)})
	require.Error(t, err)
}

func TestHandlerProcessTask(t *testing.T) {
	refresher := &fakeRefresher{}
	h := Handler{Refresher: refresher, Logger: zerolog.Nop()}
	id := uuid.New()
	task, err := NewSummaryRefreshTask(id)
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Equal(t, []uuid.UUID{id}, refresher.ids)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeSummaryRefresh, []byte(`{"budget_id":"nope"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	refresher.err = errors.New("db down")
	err = h.ProcessTask(context.Background(), task)
	require.EqualError(t, err, "db down")
}

func TestNewSummaryRefreshTaskRequiresID(t *testing.T) {
	_, err := NewSummaryRefreshTask(uuid.Nil)
	require.Error(t, err)
}
