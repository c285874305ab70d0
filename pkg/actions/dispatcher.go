package actions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vtc-robotics/raspbot/internal/httpc"
)

// Dispatcher sends one command to the physical device.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
}

// rpcRequestID is a fixed JSON-RPC id; the device firmware ignores it
// but rejects requests without one.
const rpcRequestID = 1732853986186

// RPCDispatcher talks to the device's JSON-RPC endpoint. The firmware
// is picky about its transport: it expects the Android controller
// app's exact header set and rejects requests that deviate, so the
// headers below mirror that client.
type RPCDispatcher struct {
	endpoint string
	deviceID string
	client   *http.Client
	logger   *slog.Logger
}

// NewRPCDispatcher creates a dispatcher for the given device endpoint.
func NewRPCDispatcher(endpoint, deviceID string, logger *slog.Logger) *RPCDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCDispatcher{
		endpoint: endpoint,
		deviceID: deviceID,
		client:   httpc.Client,
		logger:   logger.With("component", "actions.rpc"),
	}
}

// Dispatch posts a RunAction call to the device.
func (d *RPCDispatcher) Dispatch(ctx context.Context, cmd Command) error {
	body := fmt.Sprintf(`{"id":%d,"jsonrpc":"2.0","method":"RunAction","params":["%s","%d"]}`,
		rpcRequestID, cmd.ActionID, cmd.RepeatCount)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("actions: build request: %w", err)
	}
	req.Header.Set("deviceid", d.deviceID)
	req.Header.Set("X-JSON-RPC", "RunAction")
	req.Header.Set("er", "false")
	req.Header.Set("dr", "false")
	req.Header.Set("Content-Type", "text/x-markdown; charset=utf-8")
	req.Header.Set("Connection", "Keep-Alive")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", "okhttp/4.9.1")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("actions: dispatch %s x%d: %w", cmd.ActionID, cmd.RepeatCount, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("actions: device returned %d for action %s", resp.StatusCode, cmd.ActionID)
	}

	d.logger.Info("action dispatched",
		"action", ActionName(cmd.ActionID),
		"action_id", cmd.ActionID,
		"repeat", cmd.RepeatCount,
	)
	return nil
}

// Verify RPCDispatcher implements Dispatcher at compile time.
var _ Dispatcher = (*RPCDispatcher)(nil)

// MockDispatcher records dispatched commands for tests.
type MockDispatcher struct {
	mu sync.Mutex

	// DispatchFunc, if set, handles each call.
	DispatchFunc func(ctx context.Context, cmd Command) error

	// Err is returned when DispatchFunc is nil.
	Err error

	// Dispatched records commands in dispatch order.
	Dispatched []Command
}

func (m *MockDispatcher) Dispatch(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	m.Dispatched = append(m.Dispatched, cmd)
	fn := m.DispatchFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, cmd)
	}
	return m.Err
}

// Commands returns a copy of the dispatched commands.
func (m *MockDispatcher) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.Dispatched))
	copy(out, m.Dispatched)
	return out
}

// Verify MockDispatcher implements Dispatcher at compile time.
var _ Dispatcher = (*MockDispatcher)(nil)
