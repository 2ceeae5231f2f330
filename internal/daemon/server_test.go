package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/internal/tools"
	"github.com/aigent-dev/aigent/pkg/models"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := memory.Open(filepath.Join(dir, "events.jsonl"), memory.Config{})
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	registry := tools.NewRegistry()
	registry.RegisterNative(&stubTool{name: "ping_tool", output: "pong"})
	executor := tools.NewExecutor(registry, nil, m, tools.Config{Policy: models.ExecutionPolicy{ApprovalMode: models.ApprovalAutonomous}}, nil)

	socket := filepath.Join(dir, "aigent.sock")
	srv := New(Config{
		SocketPath: socket,
		Manager:    m,
		Registry:   registry,
		Executor:   executor,
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go srv.Serve()
	return srv, socket
}

type stubTool struct {
	name   string
	output string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) ReadOnly() bool       { return true }
func (s *stubTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	return s.output, nil
}

func dial(t *testing.T, socket string) *conn {
	t.Helper()
	nc, err := net.DialTimeout("unix", socket, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return newConn(nc)
}

func TestPingReturnsAck(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	c := dial(t, socket)
	defer c.close()
	c.enc.Encode(models.Request{Kind: models.ReqPing, ID: "1"})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtAck || e.RequestID != "1" {
		t.Errorf("event = %+v, want an ack for request 1", e)
	}
}

func TestGetStatusReportsConnections(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	c := dial(t, socket)
	defer c.close()
	c.enc.Encode(models.Request{Kind: models.ReqGetStatus, ID: "1"})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtStatus {
		t.Fatalf("kind = %v, want status", e.Kind)
	}
	var status models.DaemonStatus
	if err := json.Unmarshal(e.Body, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.ActiveConnections < 1 {
		t.Errorf("ActiveConnections = %d, want >= 1", status.ActiveConnections)
	}
}

func TestExecuteToolRoundTrip(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	c := dial(t, socket)
	defer c.close()
	body, _ := json.Marshal(models.ExecuteToolBody{Name: "ping_tool"})
	c.enc.Encode(models.Request{Kind: models.ReqExecuteTool, ID: "1", Body: body})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtToolResult {
		t.Fatalf("kind = %v, want tool_result", e.Kind)
	}
	var result models.ToolResult
	if err := json.Unmarshal(e.Body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Success || result.Output != "pong" {
		t.Errorf("result = %+v, want success with pong", result)
	}
}

func TestListToolsReturnsRegisteredTools(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	c := dial(t, socket)
	defer c.close()
	c.enc.Encode(models.Request{Kind: models.ReqListTools, ID: "1"})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var specs []models.ToolSpec
	if err := json.Unmarshal(e.Body, &specs); err != nil {
		t.Fatalf("unmarshal specs: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "ping_tool" {
		t.Errorf("specs = %+v, want exactly ping_tool", specs)
	}
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	c := dial(t, socket)
	defer c.close()
	c.enc.Encode(models.Request{Kind: models.ReqSubscribe, ID: "1"})

	time.Sleep(50 * time.Millisecond)
	srv.Broadcast(models.Event{Kind: models.EvtBeliefAdded})

	c.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtBeliefAdded {
		t.Errorf("kind = %v, want belief_added", e.Kind)
	}
}

func TestApprovalRoundTrip(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	requester := dial(t, socket)
	defer requester.close()
	requester.enc.Encode(models.Request{Kind: models.ReqSubscribe, ID: "sub"})

	resultCh := make(chan bool, 1)
	errCh := make(chan error, 1)
	go func() {
		approved, err := srv.gate.RequestApproval(context.Background(), models.ApprovalRequest{
			ToolName: "run_shell",
			Args:     `{"command":"rm -rf /tmp/x"}`,
		})
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- approved
	}()

	requester.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e models.Event
	if err := requester.dec.Decode(&e); err != nil {
		t.Fatalf("decode approval request: %v", err)
	}
	if e.Kind != models.EvtApprovalRequest {
		t.Fatalf("kind = %v, want approval_request", e.Kind)
	}
	var req models.ApprovalRequest
	if err := json.Unmarshal(e.Body, &req); err != nil {
		t.Fatalf("unmarshal approval request: %v", err)
	}

	responder := dial(t, socket)
	defer responder.close()
	respBody, _ := json.Marshal(models.ApprovalResponseBody{RequestID: req.ID, Approve: true})
	responder.enc.Encode(models.Request{Kind: models.ReqApprovalResponse, ID: "r1", Body: respBody})

	var ack models.Event
	if err := responder.dec.Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Kind != models.EvtAck {
		t.Fatalf("kind = %v, want ack", ack.Kind)
	}

	select {
	case approved := <-resultCh:
		if !approved {
			t.Error("approved = false, want true")
		}
	case err := <-errCh:
		t.Fatalf("RequestApproval returned error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for approval to resolve")
	}
}

func TestShutdownRemovesSocketFile(t *testing.T) {
	srv, socket := newTestServer(t)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := net.DialTimeout("unix", socket, 100*time.Millisecond); err == nil {
		t.Error("expected the socket to be gone after Shutdown")
	}
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Errorf("expected the socket file to be removed after Shutdown, stat error = %v", err)
	}
}
