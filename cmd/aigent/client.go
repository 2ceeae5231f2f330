package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/aigent-dev/aigent/pkg/models"
)

// ipcClient is a thin client for the daemon's local socket protocol:
// one JSON object per line, request/response correlated by ID. It
// deliberately does not import internal/daemon (whose conn type is
// unexported) and instead re-implements the same newline-delimited
// framing directly against pkg/models.
type ipcClient struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *bufio.Scanner
}

func dialDaemon(socketPath string, timeout time.Duration) (*ipcClient, error) {
	nc, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial daemon at %s: %w", socketPath, err)
	}
	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &ipcClient{conn: nc, enc: json.NewEncoder(nc), dec: scanner}, nil
}

func (c *ipcClient) Close() error {
	return c.conn.Close()
}

// call sends one request and returns its first matching response
// event. Broadcast traffic intermixed on the same connection (there
// should be none outside Subscribe) is ignored.
func (c *ipcClient) call(kind models.RequestKind, body any) (*models.Event, error) {
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		raw = b
	}
	req := models.Request{Kind: kind, ID: uuid.NewString(), Body: raw}
	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	for c.dec.Scan() {
		var e models.Event
		if err := json.Unmarshal(c.dec.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if e.RequestID != "" && e.RequestID != req.ID {
			continue
		}
		return &e, nil
	}
	if err := c.dec.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return nil, fmt.Errorf("daemon closed the connection without a response")
}

// stream sends req and hands every subsequent decoded event to fn
// until fn returns false, the connection closes, or an EvtDone/EvtError
// with a matching RequestID arrives. Used for SubmitTurn, whose
// response is a series of Token events terminated by Done or Error.
func (c *ipcClient) stream(kind models.RequestKind, body any, fn func(models.Event) bool) error {
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		raw = b
	}
	req := models.Request{Kind: kind, ID: uuid.NewString(), Body: raw}
	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	for c.dec.Scan() {
		var e models.Event
		if err := json.Unmarshal(c.dec.Bytes(), &e); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if e.RequestID != "" && e.RequestID != req.ID {
			continue
		}
		if !fn(e) {
			return nil
		}
		if e.Kind == models.EvtDone || e.Kind == models.EvtError {
			return nil
		}
	}
	return c.dec.Err()
}

// eventError returns the error message carried in an EvtError event's
// body, or a generic message if the body isn't the expected shape.
func eventError(e models.Event) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err == nil && body.Error != "" {
		return fmt.Errorf("%s", body.Error)
	}
	return fmt.Errorf("daemon returned an error")
}
