// Package wire owns the byte-level HTTP exchange: reading one bounded
// request from a TCP connection and writing exactly one response to it.
//
// The Envelope is the unit of transfer between actors. Whoever holds the
// Envelope owns the connection; sends through channels move that ownership
// and the sender must not touch the connection afterwards.
package wire

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Header is a single response header pair.
type Header struct {
	Key   string
	Value string
}

// Envelope wraps an accepted connection with its request id and birth time.
// Metrics checkpoints travel with the connection implicitly via ID and the
// onClose hook, which fires once when a response has been written.
type Envelope struct {
	ID    uint64
	Conn  net.Conn
	Birth time.Time

	// Ctx carries the request-scoped context (tracing span, request id).
	Ctx context.Context

	onClose func(id uint64)
	replied atomic.Bool
}

// NewEnvelope returns an Envelope owning conn. onClose may be nil.
func NewEnvelope(id uint64, conn net.Conn, onClose func(id uint64)) *Envelope {
	return &Envelope{
		ID:      id,
		Conn:    conn,
		Birth:   time.Now(),
		Ctx:     context.Background(),
		onClose: onClose,
	}
}

// Reply writes a full HTTP/1.1 response and closes the connection. The
// second and later calls on the same envelope are rejected, keeping the
// one-response-per-connection invariant even on buggy double-send paths.
func (e *Envelope) Reply(status int, contentType string, body []byte, extra ...Header) error {
	if !e.replied.CompareAndSwap(false, true) {
		return fmt.Errorf("connection %d: response already written", e.ID)
	}
	defer e.Conn.Close()

	buf := make([]byte, 0, 256+len(body))
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(status), 10)
	buf = append(buf, ' ')
	buf = append(buf, http.StatusText(status)...)
	buf = append(buf, "\r\n"...)
	if contentType != "" {
		buf = appendHeader(buf, "Content-Type", contentType)
	}
	buf = appendHeader(buf, "Content-Length", strconv.Itoa(len(body)))
	buf = appendHeader(buf, "Connection", "close")
	for _, h := range extra {
		buf = appendHeader(buf, h.Key, h.Value)
	}
	buf = append(buf, "\r\n"...)
	buf = append(buf, body...)

	_, err := e.Conn.Write(buf)
	if e.onClose != nil {
		e.onClose(e.ID)
	}
	if err != nil {
		return fmt.Errorf("write response %d: %w", e.ID, err)
	}
	return nil
}

func appendHeader(buf []byte, key, value string) []byte {
	buf = append(buf, key...)
	buf = append(buf, ": "...)
	buf = append(buf, value...)
	return append(buf, "\r\n"...)
}

// ReplyJSON writes a JSON response.
func (e *Envelope) ReplyJSON(status int, body []byte, extra ...Header) error {
	return e.Reply(status, "application/json", body, extra...)
}

// ReplyError writes {"error":"<code>"} with the given status.
func (e *Envelope) ReplyError(status int, code string) error {
	return e.ReplyJSON(status, []byte(`{"error":"`+code+`"}`))
}

// ReplyEmpty writes a bodyless response.
func (e *Envelope) ReplyEmpty(status int) error {
	return e.Reply(status, "", nil)
}
