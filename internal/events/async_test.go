package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"accessgate/internal/events/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.AccessEvent
	emitErr error
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.AccessEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.AccessEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitterAndEvent(t *testing.T) {
	ctx := context.Background()

	// Neither may panic.
	EmitAsync(nil, ctx, &domain.AccessEvent{EventType: domain.TypeGateDecision})

	emitter := &mockEventEmitter{}
	EmitAsync(emitter, ctx, nil)
	time.Sleep(10 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := &domain.AccessEvent{
		UserID:    "user-1",
		IP:        "203.0.113.7",
		EventType: domain.TypeChallengePassed,
		Source:    "gate",
	}

	EmitAsync(emitter, context.Background(), event)
	time.Sleep(100 * time.Millisecond)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != "user-1" || events[0].EventType != domain.TypeChallengePassed {
		t.Errorf("event = %+v", events[0])
	}
}

func TestEmitAsync_UsesBackgroundContext(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Emits even though the request context is already cancelled.
	EmitAsync(emitter, ctx, &domain.AccessEvent{EventType: domain.TypeGateDecision})
	time.Sleep(100 * time.Millisecond)

	if n := len(emitter.getEvents()); n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}
}

func TestEmitAsync_ErrorHandling(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded}

	// The error is logged and does not reach the caller.
	EmitAsync(emitter, context.Background(), &domain.AccessEvent{EventType: domain.TypeGateDecision})
	time.Sleep(100 * time.Millisecond)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, context.Background(), &domain.AccessEvent{EventType: domain.TypeGateDecision})
		}()
	}
	wg.Wait()
	time.Sleep(200 * time.Millisecond)

	if n := len(emitter.getEvents()); n != 10 {
		t.Errorf("expected 10 events, got %d", n)
	}
}
