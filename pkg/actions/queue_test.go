package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func fastQueue(d Dispatcher) *Queue {
	return NewQueue(QueueConfig{
		Size:        8,
		MinInterval: 10 * time.Millisecond,
		PacingFor:   func(Command) time.Duration { return 10 * time.Millisecond },
	}, d, nil)
}

func TestQueueDispatchesInFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var starts []time.Time
	mock := &MockDispatcher{DispatchFunc: func(ctx context.Context, cmd Command) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil
	}}
	q := fastQueue(mock)

	ids := []string{"9", "10", "15", "7", "22"}
	for _, id := range ids {
		cmd, _ := NewCommand(id, 1)
		if err := q.Enqueue(cmd); err != nil {
			t.Fatalf("Enqueue(%s) error: %v", id, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := len(starts)
		mu.Unlock()
		if n == len(ids) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d of %d commands dispatched", n, len(ids))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	got := mock.Commands()
	for i, id := range ids {
		if got[i].ActionID != id {
			t.Errorf("dispatch %d: expected action %s, got %s", i, id, got[i].ActionID)
		}
	}

	// Dispatch starts must be at least the pacing interval apart.
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < 10*time.Millisecond {
			t.Errorf("dispatches %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestQueueSingleConsumerNoOverlap(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	mock := &MockDispatcher{DispatchFunc: func(ctx context.Context, cmd Command) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}}
	q := fastQueue(mock)

	for i := 0; i < 5; i++ {
		_ = q.Enqueue(WaveCommand())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = q.Run(ctx)

	if maxInFlight != 1 {
		t.Errorf("expected at most one in-flight dispatch, saw %d", maxInFlight)
	}
}

func TestQueueClear(t *testing.T) {
	mock := &MockDispatcher{}
	q := fastQueue(mock)

	for i := 0; i < 3; i++ {
		_ = q.Enqueue(WaveCommand())
	}
	if q.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", q.Depth())
	}

	if drained := q.Clear(); drained != 3 {
		t.Errorf("Clear() drained %d, want 3", drained)
	}
	if q.Depth() != 0 {
		t.Errorf("expected depth 0 after clear, got %d", q.Depth())
	}

	// A command enqueued right after clear is preserved.
	if err := q.Enqueue(WaveCommand()); err != nil {
		t.Fatal(err)
	}
	if q.Depth() != 1 {
		t.Errorf("expected depth 1, got %d", q.Depth())
	}
	if len(mock.Commands()) != 0 {
		t.Error("cleared commands were dispatched")
	}
}

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue(QueueConfig{Size: 2}, &MockDispatcher{}, nil)
	if err := q.Enqueue(WaveCommand()); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(WaveCommand()); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(WaveCommand()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestQueueDispatchFailureDropsCommand(t *testing.T) {
	wantErr := errors.New("device unreachable")
	mock := &MockDispatcher{Err: wantErr}
	q := fastQueue(mock)

	var failed []Command
	var mu sync.Mutex
	q.OnError = func(cmd Command, err error) {
		mu.Lock()
		failed = append(failed, cmd)
		mu.Unlock()
	}

	_ = q.Enqueue(WaveCommand())
	_ = q.Enqueue(WaveCommand())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = q.Run(ctx)

	// Both commands were attempted once each; no retries.
	if got := len(mock.Commands()); got != 2 {
		t.Errorf("expected 2 dispatch attempts, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 2 {
		t.Errorf("expected 2 failure callbacks, got %d", len(failed))
	}
}

func TestQueueClampsAtEnqueue(t *testing.T) {
	mock := &MockDispatcher{}
	q := fastQueue(mock)

	_ = q.Enqueue(Command{Kind: SingleDigit, ActionID: "9", RepeatCount: 99})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = q.Run(ctx)

	got := mock.Commands()
	if len(got) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(got))
	}
	if got[0].RepeatCount != MaxRepeat {
		t.Errorf("expected repeat clamped to %d at enqueue, got %d", MaxRepeat, got[0].RepeatCount)
	}
}

func TestRoutinesUseQueueOnly(t *testing.T) {
	mock := &MockDispatcher{}
	q := fastQueue(mock)
	r := NewRoutines(q, nil)

	r.WingChun()
	if q.Depth() != len(wingChun) {
		t.Fatalf("expected %d queued steps, got %d", len(wingChun), q.Depth())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = q.Run(ctx)

	got := mock.Commands()
	if len(got) != len(wingChun) {
		t.Fatalf("expected %d dispatches, got %d", len(wingChun), len(got))
	}
	for i, s := range wingChun {
		if got[i].ActionID != s.actionID || got[i].RepeatCount != s.repeat {
			t.Errorf("step %d: got %s x%d, want %s x%d",
				i, got[i].ActionID, got[i].RepeatCount, s.actionID, s.repeat)
		}
	}
}

func TestRandomDanceEnqueuesKnownRoutine(t *testing.T) {
	q := fastQueue(&MockDispatcher{})
	r := NewRoutines(q, nil)

	name := r.RandomDance()
	steps, ok := dances[name]
	if !ok {
		t.Fatalf("RandomDance returned unknown routine %q", name)
	}
	if q.Depth() != len(steps) {
		t.Errorf("expected %d queued steps for %s, got %d", len(steps), name, q.Depth())
	}
}
