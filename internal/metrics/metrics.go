// Package metrics implements the latency-checkpoint actor. Every actor a
// request passes through reports Arrive/Leave checkpoints keyed by the
// request id; the response writer reports StreamClose. The actor owns the
// whole table and mutates it only from its message loop.
//
// Checkpoint sends never block: a full channel drops the message. Lost
// checkpoints degrade the aggregates, never correctness elsewhere.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/apetbrz/budget-app-project/internal/wire"
)

const channelSize = 1024

// Checkpoint is a stage in a request's life.
type Checkpoint uint8

const (
	// CheckInit marks collector startup.
	CheckInit Checkpoint = iota
	// CheckStart allocates the metric for a fresh request id.
	CheckStart
	// CheckArrive opens the per-source interval.
	CheckArrive
	// CheckLeave closes the per-source interval.
	CheckLeave
	// CheckStreamClose marks the response as sent.
	CheckStreamClose
	// CheckQuery asks for the aggregate, replied on the carried connection.
	CheckQuery
)

// Message is one checkpoint report.
type Message struct {
	Source     string
	ID         uint64
	Checkpoint Checkpoint
	Env        *wire.Envelope // CheckQuery only; ownership moves with the send
}

// interval is an open or closed time span.
type interval struct {
	start time.Time
	dur   time.Duration
	done  bool
}

func newInterval() interval { return interval{start: time.Now()} }

func (iv *interval) end() {
	iv.dur = time.Since(iv.start)
	iv.done = true
}

// streamMetric tracks one request across actors.
type streamMetric struct {
	id           uint64
	responseTime interval // start until the response hit the socket
	realTime     interval // start until every interval closed
	sources      map[string]*interval
}

func (m *streamMetric) complete() bool {
	if !m.responseTime.done {
		return false
	}
	for _, iv := range m.sources {
		if !iv.done {
			return false
		}
	}
	return true
}

// Collector is the metrics actor.
type Collector struct {
	ch     chan Message
	nextID atomic.Uint64

	// table is touched only by the Run loop (and by tests driving apply).
	table []*streamMetric
}

// NewCollector returns a Collector ready to Run.
func NewCollector() *Collector {
	return &Collector{ch: make(chan Message, channelSize)}
}

// send enqueues without blocking; drops when the channel is full.
func (c *Collector) send(msg Message) bool {
	select {
	case c.ch <- msg:
		return true
	default:
		return false
	}
}

// NextID allocates a fresh request id and registers its metric.
func (c *Collector) NextID() uint64 {
	id := c.nextID.Add(1) - 1
	c.send(Message{Source: "listener", ID: id, Checkpoint: CheckStart})
	return id
}

// Arrive opens the interval for source on request id.
func (c *Collector) Arrive(source string, id uint64) {
	c.send(Message{Source: source, ID: id, Checkpoint: CheckArrive})
}

// Leave closes the interval for source on request id.
func (c *Collector) Leave(source string, id uint64) {
	c.send(Message{Source: source, ID: id, Checkpoint: CheckLeave})
}

// StreamClose marks the response for id as sent. Wired as the envelope's
// close hook so the checkpoint travels with the connection.
func (c *Collector) StreamClose(id uint64) {
	c.send(Message{ID: id, Checkpoint: CheckStreamClose})
}

// Query moves env to the actor, which replies with the aggregate JSON. If
// the channel is full the collector still honors the single-response
// invariant by answering 503 here.
func (c *Collector) Query(env *wire.Envelope) {
	if !c.send(Message{ID: env.ID, Checkpoint: CheckQuery, Env: env}) {
		_ = env.ReplyEmpty(http.StatusServiceUnavailable)
	}
}

// Run processes checkpoints until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	slog.Info("metrics collector started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.ch:
			c.apply(msg)
		}
	}
}

func (c *Collector) apply(msg Message) {
	switch msg.Checkpoint {
	case CheckInit:
		// startup marker only

	case CheckStart:
		for uint64(len(c.table)) <= msg.ID {
			c.table = append(c.table, nil)
		}
		c.table[msg.ID] = &streamMetric{
			id:           msg.ID,
			responseTime: newInterval(),
			realTime:     newInterval(),
			sources:      make(map[string]*interval),
		}

	case CheckArrive:
		if m := c.lookup(msg.ID, msg.Source, "arrive"); m != nil {
			iv := newInterval()
			m.sources[msg.Source] = &iv
		}

	case CheckLeave:
		m := c.lookup(msg.ID, msg.Source, "leave")
		if m == nil {
			return
		}
		iv, ok := m.sources[msg.Source]
		if !ok {
			slog.Warn("interval closed without opening", "id", msg.ID, "source", msg.Source)
			return
		}
		iv.end()
		c.finishIfComplete(m)

	case CheckStreamClose:
		if m := c.lookup(msg.ID, msg.Source, "close"); m != nil {
			m.responseTime.end()
			c.finishIfComplete(m)
		}

	case CheckQuery:
		c.replyAggregate(msg.Env)
	}
}

func (c *Collector) lookup(id uint64, source, op string) *streamMetric {
	if id >= uint64(len(c.table)) || c.table[id] == nil {
		slog.Warn("checkpoint for unknown request", "id", id, "source", source, "op", op)
		return nil
	}
	return c.table[id]
}

func (c *Collector) finishIfComplete(m *streamMetric) {
	if m.realTime.done || !m.complete() {
		return
	}
	m.realTime.end()
	attrs := []slog.Attr{
		slog.Uint64("id", m.id),
		slog.Duration("response", m.responseTime.dur),
		slog.Duration("processing", m.realTime.dur),
	}
	for source, iv := range m.sources {
		attrs = append(attrs, slog.Duration(source, iv.dur))
	}
	slog.LogAttrs(context.Background(), slog.LevelInfo, "request complete", attrs...)
}

// aggregate is the /probe_telemetry response shape.
type aggregate struct {
	AverageResponseLatency  string            `json:"average_response_latency"`
	AverageProcessorLatency string            `json:"average_processor_latency"`
	AverageThreadLatencies  map[string]string `json:"average_thread_latencies"`
}

func (c *Collector) replyAggregate(env *wire.Envelope) {
	var (
		count    int64
		respSum  time.Duration
		procSum  time.Duration
		perSrc   = make(map[string]time.Duration)
		perCount = make(map[string]int64)
	)
	for _, m := range c.table {
		if m == nil || !m.realTime.done {
			continue
		}
		count++
		respSum += m.responseTime.dur
		procSum += m.realTime.dur
		for source, iv := range m.sources {
			perSrc[source] += iv.dur
			perCount[source]++
		}
	}

	agg := aggregate{
		AverageResponseLatency:  "0s",
		AverageProcessorLatency: "0s",
		AverageThreadLatencies:  make(map[string]string, len(perSrc)),
	}
	if count > 0 {
		agg.AverageResponseLatency = (respSum / time.Duration(count)).String()
		agg.AverageProcessorLatency = (procSum / time.Duration(count)).String()
	}
	for source, sum := range perSrc {
		agg.AverageThreadLatencies[source] = (sum / time.Duration(perCount[source])).String()
	}

	body, err := json.Marshal(agg)
	if err != nil {
		_ = env.ReplyEmpty(http.StatusInternalServerError)
		return
	}
	if err := env.ReplyJSON(http.StatusOK, body); err != nil {
		slog.Warn("telemetry reply failed", "id", env.ID, "error", err)
	}
}
