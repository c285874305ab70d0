package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vtc-robotics/raspbot/pkg/actions"
	"github.com/vtc-robotics/raspbot/pkg/history"
	"github.com/vtc-robotics/raspbot/pkg/hub"
	"github.com/vtc-robotics/raspbot/pkg/phone"
	"github.com/vtc-robotics/raspbot/pkg/stt"
)

type fakePhone struct {
	active   bool
	startErr error
	startCtx context.Context
}

func (f *fakePhone) Start(ctx context.Context) error {
	f.startCtx = ctx
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakePhone) Stop()        { f.active = false }
func (f *fakePhone) Active() bool { return f.active }

type fakeQueue struct {
	depth    int
	cleared  int
	enqueued []actions.Command
	full     bool
}

func (f *fakeQueue) Enqueue(cmd actions.Command) error {
	if f.full {
		return actions.ErrQueueFull
	}
	f.enqueued = append(f.enqueued, cmd)
	f.depth++
	return nil
}

func (f *fakeQueue) Depth() int { return f.depth }
func (f *fakeQueue) Clear() int {
	f.cleared = f.depth
	f.depth = 0
	return f.cleared
}

type fakeSTT struct {
	mode stt.Mode
}

func (f *fakeSTT) SwitchMode(mode stt.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q", mode)
	}
	f.mode = mode
	return nil
}

func (f *fakeSTT) Status() stt.Status {
	return stt.Status{Mode: f.mode}
}

func newTestServer(t *testing.T, p PhoneController, q ActionQueue, s STTControl, tr Transcript) *Server {
	t.Helper()
	return NewServer(Config{Port: "0"}, p, q, s, tr, hub.New(nil), nil)
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestPhoneStartStop(t *testing.T) {
	p := &fakePhone{}
	s := newTestServer(t, p, &fakeQueue{}, &fakeSTT{mode: stt.ModeLocal}, nil)

	resp := doRequest(t, s, http.MethodPost, "/api/phone/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if !p.active {
		t.Error("expected phone active")
	}

	resp = doRequest(t, s, http.MethodPost, "/api/phone/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}
	if p.active {
		t.Error("expected phone inactive")
	}
}

func TestPhoneStartOutlivesRequestContext(t *testing.T) {
	p := &fakePhone{}
	s := newTestServer(t, p, &fakeQueue{}, &fakeSTT{}, nil)

	doRequest(t, s, http.MethodPost, "/api/phone/start", nil)

	// The loop must not be parented on the recycled request context.
	if p.startCtx != context.Background() {
		t.Errorf("start ctx = %v, want background", p.startCtx)
	}
}

func TestPhoneStartConflict(t *testing.T) {
	p := &fakePhone{startErr: phone.ErrAlreadyActive}
	s := newTestServer(t, p, &fakeQueue{}, &fakeSTT{}, nil)

	resp := doRequest(t, s, http.MethodPost, "/api/phone/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestActionsStatusAndClear(t *testing.T) {
	q := &fakeQueue{depth: 3}
	s := newTestServer(t, &fakePhone{}, q, &fakeSTT{}, nil)

	resp := doRequest(t, s, http.MethodGet, "/api/actions/status", nil)
	var status struct {
		Depth int `json:"depth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Depth != 3 {
		t.Errorf("depth = %d, want 3", status.Depth)
	}

	resp = doRequest(t, s, http.MethodPost, "/api/actions/clear", nil)
	var cleared struct {
		Cleared int `json:"cleared"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cleared); err != nil {
		t.Fatal(err)
	}
	if cleared.Cleared != 3 || q.depth != 0 {
		t.Errorf("cleared = %d, depth = %d", cleared.Cleared, q.depth)
	}
}

func TestActionsEnqueue(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(t, &fakePhone{}, q, &fakeSTT{}, nil)

	// Repeat as a digit string, the way controller apps send it.
	body, _ := json.Marshal(map[string]any{"action_id": "9", "repeat": "3"})
	resp := doRequest(t, s, http.MethodPost, "/api/actions", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(q.enqueued))
	}
	if cmd := q.enqueued[0]; cmd.ActionID != "9" || cmd.RepeatCount != 3 {
		t.Errorf("cmd = %+v", cmd)
	}

	// Out-of-range numeric repeat is clamped, not rejected.
	body, _ = json.Marshal(map[string]any{"action_id": "10", "repeat": 15})
	doRequest(t, s, http.MethodPost, "/api/actions", body)
	if cmd := q.enqueued[1]; cmd.RepeatCount != 10 {
		t.Errorf("repeat = %d, want 10", cmd.RepeatCount)
	}

	body, _ = json.Marshal(map[string]any{"action_id": "walk"})
	resp = doRequest(t, s, http.MethodPost, "/api/actions", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", resp.StatusCode)
	}
}

func TestActionsEnqueueQueueFull(t *testing.T) {
	s := newTestServer(t, &fakePhone{}, &fakeQueue{full: true}, &fakeSTT{}, nil)

	body, _ := json.Marshal(map[string]any{"action_id": "9", "repeat": 1})
	resp := doRequest(t, s, http.MethodPost, "/api/actions", body)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSTTModeSwitch(t *testing.T) {
	ctl := &fakeSTT{mode: stt.ModeLocal}
	s := newTestServer(t, &fakePhone{}, &fakeQueue{}, ctl, nil)

	body, _ := json.Marshal(map[string]string{"mode": "cloud"})
	resp := doRequest(t, s, http.MethodPost, "/api/stt/mode", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ctl.mode != stt.ModeCloud {
		t.Errorf("mode = %q, want cloud", ctl.mode)
	}

	body, _ = json.Marshal(map[string]string{"mode": "telepathy"})
	resp = doRequest(t, s, http.MethodPost, "/api/stt/mode", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d, want 400", resp.StatusCode)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	log := history.NewLog("", nil)
	log.Append(history.TypeSent, "你好", "")
	s := newTestServer(t, &fakePhone{}, &fakeQueue{}, &fakeSTT{}, log)

	resp := doRequest(t, s, http.MethodGet, "/api/history", nil)
	var out struct {
		Messages []history.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(out.Messages))
	}

	resp = doRequest(t, s, http.MethodPost, "/api/history/clear", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
	if len(log.Messages()) != 0 {
		t.Error("expected transcript cleared")
	}
}
