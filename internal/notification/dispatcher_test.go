package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/carepoints/internal/liveevents"
	obscontext "github.com/smallbiznis/carepoints/internal/observability/context"
	"github.com/smallbiznis/carepoints/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Deliver(ctx context.Context, event Event) error {
	userID, _ := usercontext.UserIDFromContext(ctx)
	args := m.Called(event.Type, userID.String(), obscontext.RequestIDFromContext(ctx))
	return args.Error(0)
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)

	failing := &mockSink{}
	failing.On("Deliver", EventRewardRedeemed, "42", "req-1").Return(errors.New("down")).Run(func(mock.Arguments) { wg.Done() })
	healthy := &mockSink{}
	healthy.On("Deliver", EventRewardRedeemed, "42", "req-1").Return(nil).Run(func(mock.Arguments) { wg.Done() })

	d := newDispatcher(zap.NewNop(), []Sink{failing, nil, healthy}, 8, 1)
	d.Start()

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	d.Publish(ctx, NewEvent(EventRewardRedeemed, 42, time.Now(), map[string]any{"reward_id": "1"}))

	wg.Wait()
	require.NoError(t, d.Stop(context.Background()))
	failing.AssertExpectations(t)
	healthy.AssertExpectations(t)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sink := &mockSink{}
	d := newDispatcher(zap.NewNop(), []Sink{sink}, 1, 1)

	d.Publish(context.Background(),
		NewEvent(EventActivityRecorded, 1, time.Now(), nil),
		NewEvent(EventActivityRecorded, 1, time.Now(), nil),
	)
	assert.Len(t, d.queue, 1)
}

func TestLiveSinkPublishesToHub(t *testing.T) {
	hub := liveevents.NewHub()
	sub, _, err := hub.Subscribe("42")
	require.NoError(t, err)
	defer sub.Close()

	sink := NewLiveSink(hub)
	require.NoError(t, sink.Deliver(context.Background(), NewEvent(EventAchievementUnlocked, 42, time.Now(), map[string]any{"level": 2})))

	select {
	case event := <-sub.Events():
		assert.Equal(t, EventAchievementUnlocked, event.Type)
		assert.Equal(t, "42", event.UserID)
	case <-time.After(time.Second):
		t.Fatal("expected live event")
	}
}
