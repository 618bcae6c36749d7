package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-budget/internal/events"
)

type stubStore struct {
	inserted []events.Event
	err      error
}

func (s *stubStore) Insert(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	ev := events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}
	s.inserted = append(s.inserted, ev)
	return ev, nil
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier, nil}}

	budgetID := uuid.New()
	ev, err := bus.Emit(context.Background(), events.TopicBudgetCreated, budgetID, map[string]any{"version": 2})
	require.NoError(t, err)
	require.Equal(t, events.TopicBudgetCreated, ev.Topic)
	require.Equal(t, budgetID, ev.AggregateID)
	require.Len(t, store.inserted, 1)
	require.Len(t, notifier.events, 1)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, 2, payload["version"])
}

func TestEmitValidatesInput(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicBudgetUpdated, uuid.Nil, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicBudgetUpdated, uuid.New(), "{not json")
	require.Error(t, err)

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), events.TopicBudgetUpdated, uuid.New(), nil)
	require.Error(t, err)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	first := errors.New("queue down")
	second := errors.New("log sink down")
	bus := &events.Bus{
		Store: &stubStore{},
		Notifiers: []events.Notifier{
			events.NotifierFunc(func(context.Context, events.Event) error { return first }),
			events.NotifierFunc(func(context.Context, events.Event) error { return second }),
		},
	}
	ev, err := bus.Emit(context.Background(), events.TopicBudgetPrimaryChanged, uuid.New(), nil)
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.JSONEq(t, `{}`, string(ev.Payload))
}

func TestEmitStoreFailure(t *testing.T) {
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: &stubStore{err: errors.New("db down")}, Notifiers: []events.Notifier{notifier}}
	_, err := bus.Emit(context.Background(), events.TopicBudgetCreated, uuid.New(), nil)
	require.Error(t, err)
	require.Empty(t, notifier.events)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := events.LogNotifier{Logger: zerolog.New(&buf)}
	ev := events.Event{ID: uuid.New(), Topic: events.TopicBudgetCreated, AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":1}`)}
	require.NoError(t, n.Notify(context.Background(), ev))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "domain_event", entry["message"])
	require.Equal(t, events.TopicBudgetCreated, entry["topic"])
	require.Equal(t, map[string]any{"version": float64(1)}, entry["payload"])
}
