package daemon

import (
	"encoding/json"
	"net"
	"time"

	"github.com/aigent-dev/aigent/pkg/models"
)

// conn wraps a net.Conn with newline-delimited JSON framing: one
// Request or Event object per line, per the spec's "implementation
// choice; must be consistent" framing note.
type conn struct {
	nc  net.Conn
	dec *json.Decoder
	enc *json.Encoder
}

func newConn(nc net.Conn) *conn {
	return &conn{nc: nc, dec: json.NewDecoder(nc), enc: json.NewEncoder(nc)}
}

func (c *conn) readRequest() (models.Request, error) {
	var req models.Request
	err := c.dec.Decode(&req)
	return req, err
}

func (c *conn) writeEvent(e models.Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return c.enc.Encode(e)
}

func (c *conn) close() error {
	return c.nc.Close()
}

func ackEvent(requestID string) models.Event {
	return models.Event{Kind: models.EvtAck, RequestID: requestID, At: time.Now()}
}

func errorEvent(requestID string, err error) models.Event {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return models.Event{Kind: models.EvtError, RequestID: requestID, Body: body, At: time.Now()}
}

func bodyEvent(kind models.EventKind, requestID string, payload interface{}) (models.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{Kind: kind, RequestID: requestID, Body: body, At: time.Now()}, nil
}
