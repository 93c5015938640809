package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/testutil"
	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservingSender_RunsObserversInOrder(t *testing.T) {
	var order []string
	record := func(name string) NamedObserver {
		return NamedObserver{Name: name, Observer: chat.ObserverFunc(func(ctx context.Context, msg *chat.Message) error {
			order = append(order, name)
			return nil
		})}
	}
	s := NewObservingSender(&testutil.MockChatSender{}, newTestMetrics(), zerolog.Nop(), record("first"), record("second"))

	msg, err := s.Send(context.Background(), chat.NewMessage{ConversationID: uuid.New(), Content: "hi"}, "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1", msg.SenderUserID)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestObservingSender_IsolatesObserverFailures(t *testing.T) {
	metrics := newTestMetrics()
	var lastRan bool
	s := NewObservingSender(&testutil.MockChatSender{}, metrics, zerolog.Nop(),
		NamedObserver{Name: "failing", Observer: chat.ObserverFunc(func(ctx context.Context, msg *chat.Message) error {
			return errors.New("boom")
		})},
		NamedObserver{Name: "panicking", Observer: chat.ObserverFunc(func(ctx context.Context, msg *chat.Message) error {
			panic("nil map")
		})},
		NamedObserver{Name: "last", Observer: chat.ObserverFunc(func(ctx context.Context, msg *chat.Message) error {
			lastRan = true
			return nil
		})},
	)

	msg, err := s.Send(context.Background(), chat.NewMessage{ConversationID: uuid.New(), Content: "hi"}, "U1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, lastRan)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.ObserverFailures.WithLabelValues("failing")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.ObserverFailures.WithLabelValues("panicking")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.MessagesSent))
}

func TestObservingSender_InnerFailureSkipsObservers(t *testing.T) {
	sendErr := errors.New("store failed")
	inner := &testutil.MockChatSender{SendFunc: func(ctx context.Context, in chat.NewMessage, actor string) (*chat.Message, error) {
		return nil, sendErr
	}}
	var ran bool
	s := NewObservingSender(inner, newTestMetrics(), zerolog.Nop(), NamedObserver{Name: "o", Observer: chat.ObserverFunc(
		func(ctx context.Context, msg *chat.Message) error {
			ran = true
			return nil
		})})

	_, err := s.Send(context.Background(), chat.NewMessage{ConversationID: uuid.New(), Content: "hi"}, "U1")
	assert.ErrorIs(t, err, sendErr)
	assert.False(t, ran)
}

func TestObservingSender_WithStoringSenderAndMentions(t *testing.T) {
	messages := &testutil.MockMessageRepository{}
	dir := testutil.NewMockDirectory(testutil.NewUser("U2", "alice", "alice@example.com", "Alice"))
	enq := &testutil.MockEnqueuer{}
	detector := NewMentionDetector(dir, dir, dir, enq, 0, newTestMetrics(), zerolog.Nop())

	s := NewObservingSender(chat.NewStoringSender(messages, nil), newTestMetrics(), zerolog.Nop(),
		NamedObserver{Name: "mentions", Observer: detector})

	_, err := s.Send(context.Background(), chat.NewMessage{ConversationID: uuid.New(), Content: "hey @alice"}, "U1")
	require.NoError(t, err)
	assert.Len(t, messages.Messages(), 1)
	assert.Len(t, enq.Events(), 1)
}

func TestObservingSender_BroadcastFailureStillRunsObservers(t *testing.T) {
	messages := &testutil.MockMessageRepository{}
	dir := testutil.NewMockDirectory(testutil.NewUser("U2", "alice", "alice@example.com", "Alice"))
	enq := &testutil.MockEnqueuer{}
	detector := NewMentionDetector(dir, dir, dir, enq, 0, newTestMetrics(), zerolog.Nop())

	inner := chat.NewStoringSender(messages, &testutil.MockBroadcaster{BroadcastFunc: func(ctx context.Context, msg *chat.Message) error {
		return errors.New("stream unavailable")
	}})
	var failed int
	inner.BroadcastFailed = func(ctx context.Context, msg *chat.Message, err error) { failed++ }
	s := NewObservingSender(inner, newTestMetrics(), zerolog.Nop(), NamedObserver{Name: "mentions", Observer: detector})

	msg, err := s.Send(context.Background(), chat.NewMessage{ConversationID: uuid.New(), Content: "hey @alice"}, "U1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 1, failed)
	assert.Len(t, messages.Messages(), 1)
	assert.Len(t, enq.Events(), 1)
}
