package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vtc-robotics/raspbot/pkg/capture"
)

func testRecording() *capture.Recording {
	return &capture.Recording{Samples: make([]int16, 3200), SampleRate: 16000, Channels: 1}
}

func TestSelectorLazyInit(t *testing.T) {
	var built []Mode
	mock := &MockTranscriber{Result: "hello"}
	sel, err := NewSelector(ModeLocal, "zh", func(mode Mode) (Transcriber, error) {
		built = append(built, mode)
		return mock, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewSelector() error: %v", err)
	}

	if len(built) != 0 {
		t.Fatal("backend built before first transcription")
	}
	if sel.Status().Initialized {
		t.Error("expected uninitialized status before first use")
	}

	text, err := sel.Transcribe(context.Background(), testRecording())
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected %q, got %q", "hello", text)
	}
	if len(built) != 1 || built[0] != ModeLocal {
		t.Errorf("expected one local backend build, got %v", built)
	}

	// Second call reuses the backend.
	if _, err := sel.Transcribe(context.Background(), testRecording()); err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if len(built) != 1 {
		t.Errorf("expected backend reuse, got %d builds", len(built))
	}
	if !sel.Status().Initialized {
		t.Error("expected initialized status after first use")
	}
}

func TestSelectorSwitchResetsInitialization(t *testing.T) {
	var built []*MockTranscriber
	sel, err := NewSelector(ModeLocal, "zh", func(Mode) (Transcriber, error) {
		m := &MockTranscriber{Result: "ok"}
		built = append(built, m)
		return m, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewSelector() error: %v", err)
	}

	if _, err := sel.Transcribe(context.Background(), testRecording()); err != nil {
		t.Fatal(err)
	}

	// Local -> Cloud -> Local ends uninitialized in local mode.
	if err := sel.SwitchMode(ModeCloud); err != nil {
		t.Fatalf("SwitchMode(cloud) error: %v", err)
	}
	if err := sel.SwitchMode(ModeLocal); err != nil {
		t.Fatalf("SwitchMode(local) error: %v", err)
	}

	st := sel.Status()
	if st.Mode != ModeLocal {
		t.Errorf("expected mode local, got %v", st.Mode)
	}
	if st.Initialized {
		t.Error("expected uninitialized after mode switches")
	}

	// The abandoned backend is released by the next utterance, not by
	// the switch itself.
	if built[0].Closed {
		t.Error("backend closed eagerly on switch")
	}
	if _, err := sel.Transcribe(context.Background(), testRecording()); err != nil {
		t.Fatal(err)
	}
	if !built[0].Closed {
		t.Error("abandoned backend never closed")
	}
	if len(built) != 2 {
		t.Fatalf("expected a fresh backend after switching, got %d builds", len(built))
	}
}

func TestSelectorSwitchDuringTranscription(t *testing.T) {
	release := make(chan struct{})
	inFlight := &MockTranscriber{
		TranscribeFunc: func(ctx context.Context, rec *capture.Recording) (string, error) {
			<-release
			return "slow result", nil
		},
	}
	builds := 0
	sel, err := NewSelector(ModeLocal, "zh", func(Mode) (Transcriber, error) {
		builds++
		if builds == 1 {
			return inFlight, nil
		}
		return &MockTranscriber{Result: "fast"}, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewSelector() error: %v", err)
	}

	results := make(chan string, 1)
	go func() {
		text, _ := sel.Transcribe(context.Background(), testRecording())
		results <- text
	}()

	// Wait for the worker to be inside the backend call.
	for {
		inFlight.mu.Lock()
		started := len(inFlight.Calls) > 0
		inFlight.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := sel.SwitchMode(ModeCloud); err != nil {
		t.Fatalf("SwitchMode() error: %v", err)
	}
	if inFlight.Closed {
		t.Fatal("backend closed while a transcription was in flight")
	}

	close(release)
	if text := <-results; text != "slow result" {
		t.Errorf("in-flight result = %q, want %q", text, "slow result")
	}

	// The next utterance runs on the new backend and releases the old.
	if text, err := sel.Transcribe(context.Background(), testRecording()); err != nil || text != "fast" {
		t.Fatalf("Transcribe() = %q, %v", text, err)
	}
	if !inFlight.Closed {
		t.Error("retired backend never closed")
	}
}

func TestSelectorInitFailureYieldsEmptyResult(t *testing.T) {
	calls := 0
	sel, err := NewSelector(ModeCloud, "zh", func(Mode) (Transcriber, error) {
		calls++
		return nil, errors.New("missing api key")
	}, nil)
	if err != nil {
		t.Fatalf("NewSelector() error: %v", err)
	}

	text, err := sel.Transcribe(context.Background(), testRecording())
	if err != nil {
		t.Fatalf("expected nil error on init failure, got %v", err)
	}
	if text != "" {
		t.Errorf("expected empty transcript on init failure, got %q", text)
	}

	// Next utterance retries initialization.
	if _, err := sel.Transcribe(context.Background(), testRecording()); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected init retry on next utterance, got %d attempts", calls)
	}
}

func TestSelectorRejectsInvalidMode(t *testing.T) {
	sel, err := NewSelector(ModeLocal, "zh", func(Mode) (Transcriber, error) {
		return &MockTranscriber{}, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewSelector() error: %v", err)
	}
	if err := sel.SwitchMode(Mode("hybrid")); err == nil {
		t.Error("expected error for invalid mode")
	}
	if _, err := NewSelector(Mode("hybrid"), "zh", func(Mode) (Transcriber, error) {
		return nil, nil
	}, nil); err == nil {
		t.Error("expected error for invalid initial mode")
	}
}

func TestSelectorTranscriptionErrorPropagates(t *testing.T) {
	wantErr := errors.New("network down")
	sel, err := NewSelector(ModeCloud, "zh", func(Mode) (Transcriber, error) {
		return &MockTranscriber{Err: wantErr}, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewSelector() error: %v", err)
	}
	if _, err := sel.Transcribe(context.Background(), testRecording()); !errors.Is(err, wantErr) {
		t.Errorf("expected backend error, got %v", err)
	}
}
