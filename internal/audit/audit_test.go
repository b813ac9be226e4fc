package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Write(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestPublisherWorkerDelivery(t *testing.T) {
	publisher := NewPublisher(nil)
	sink := &captureSink{}
	worker := NewWorker(sink, publisher.Events(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	publisher.Emit(ctx, Event{Action: ActionLoginSucceeded, Phone: "******7890"})
	publisher.Emit(ctx, Event{Action: ActionAccountLocked, Phone: "******7890"})

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	events := sink.snapshot()
	assert.Equal(t, ActionLoginSucceeded, events[0].Action)
	assert.Equal(t, ActionAccountLocked, events[1].Action)
	assert.False(t, events[0].Timestamp.IsZero())

	cancel()
	<-done
}

func TestWorkerStopsCleanlyOnCancel(t *testing.T) {
	publisher := NewPublisher(nil)
	worker := NewWorker(&captureSink{}, publisher.Events(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- worker.Run(ctx)
	}()

	cancel()
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	publisher := NewPublisher(nil)

	// No worker draining: overflow past the buffer must drop, not block.
	for i := 0; i < defaultBuffer+10; i++ {
		publisher.Emit(context.Background(), Event{Action: ActionLoginFailed})
	}
}
