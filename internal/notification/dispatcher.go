package notification

import (
	"context"
	"sync"
	"time"

	obscontext "github.com/smallbiznis/carepoints/internal/observability/context"
	"github.com/smallbiznis/carepoints/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 1024
	defaultWorkers      = 2
	defaultDeliverAfter = 5 * time.Second
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Log       *zap.Logger
	Sinks     []Sink `group:"notification.sinks"`
}

// Dispatcher queues events in memory and fans them out to sinks on
// background workers. A full queue drops events rather than blocking.
type Dispatcher struct {
	log     *zap.Logger
	sinks   []Sink
	queue   chan Event
	workers int
	timeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewDispatcher(p Params) *Dispatcher {
	d := newDispatcher(p.Log, p.Sinks, defaultQueueSize, defaultWorkers)
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				d.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return d.Stop(ctx)
			},
		})
	}
	return d
}

func newDispatcher(log *zap.Logger, sinks []Sink, queueSize, workers int) *Dispatcher {
	filtered := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &Dispatcher{
		log:     log.Named("notification.dispatcher"),
		sinks:   filtered,
		queue:   make(chan Event, queueSize),
		workers: workers,
		timeout: defaultDeliverAfter,
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run()
		}
	})
}

// Stop drains queued events, waiting at most until ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.queue) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Publish(ctx context.Context, events ...Event) {
	if d == nil {
		return
	}
	requestID := obscontext.RequestIDFromContext(ctx)
	for _, event := range events {
		if event.RequestID == "" {
			event.RequestID = requestID
		}
		select {
		case d.queue <- event:
		default:
			d.log.Warn("notification queue full, event dropped",
				zap.String("event_type", event.Type),
				zap.String("event_id", event.ID),
			)
		}
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		ctx = obscontext.WithRequestID(ctx, event.RequestID)
		ctx = usercontext.WithUserID(ctx, event.UserID)
		if err := sink.Deliver(ctx, event); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event_type", event.Type),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
		cancel()
	}
}
