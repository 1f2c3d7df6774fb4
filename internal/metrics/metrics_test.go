package metrics

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/apetbrz/budget-app-project/internal/wire"
)

// drain applies every queued message synchronously.
func drain(c *Collector) {
	for {
		select {
		case msg := <-c.ch:
			c.apply(msg)
		default:
			return
		}
	}
}

func TestLifecycleCompletes(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	id := c.NextID()
	c.Arrive("listener", id)
	c.Leave("listener", id)
	c.Arrive("auth", id)
	c.StreamClose(id)
	c.Leave("auth", id)
	drain(c)

	m := c.table[id]
	if m == nil {
		t.Fatal("no metric recorded")
	}
	if !m.realTime.done {
		t.Error("metric not marked complete after all intervals closed")
	}
	if !m.responseTime.done {
		t.Error("response interval not closed")
	}
	if len(m.sources) != 2 {
		t.Errorf("sources = %d, want 2", len(m.sources))
	}
}

func TestIncompleteUntilStreamClose(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	id := c.NextID()
	c.Arrive("auth", id)
	c.Leave("auth", id)
	drain(c)

	if c.table[id].realTime.done {
		t.Error("metric completed before the response was written")
	}

	c.StreamClose(id)
	drain(c)
	if !c.table[id].realTime.done {
		t.Error("metric still incomplete after StreamClose")
	}
}

func TestUnknownIDIgnored(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.Arrive("auth", 42)
	c.Leave("auth", 42)
	c.StreamClose(42)
	drain(c) // must not panic or grow the table
	if len(c.table) != 0 {
		t.Errorf("table grew to %d on unknown ids", len(c.table))
	}
}

func TestIDsAreSequential(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	for want := uint64(0); want < 5; want++ {
		if got := c.NextID(); got != want {
			t.Fatalf("NextID = %d, want %d", got, want)
		}
	}
}

func TestQueryAggregate(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	// Two completed requests with fixed durations, bypassing the clock.
	for i := 0; i < 2; i++ {
		c.table = append(c.table, &streamMetric{
			id:           uint64(i),
			responseTime: interval{dur: 10 * time.Millisecond, done: true},
			realTime:     interval{dur: 30 * time.Millisecond, done: true},
			sources: map[string]*interval{
				"auth": {dur: 20 * time.Millisecond, done: true},
			},
		})
	}
	// One still in flight; excluded from the averages.
	c.table = append(c.table, &streamMetric{
		id:      2,
		sources: map[string]*interval{},
	})

	client, server := net.Pipe()
	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := http.ReadResponse(bufio.NewReader(client), nil)
		if err != nil {
			t.Error(err)
			respCh <- nil
			return
		}
		respCh <- resp
	}()

	c.Query(wire.NewEnvelope(7, server, nil))
	drain(c)

	resp := <-respCh
	if resp == nil {
		t.Fatal("no response")
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	var agg struct {
		Response string            `json:"average_response_latency"`
		Proc     string            `json:"average_processor_latency"`
		Threads  map[string]string `json:"average_thread_latencies"`
	}
	if err := json.Unmarshal(body, &agg); err != nil {
		t.Fatalf("bad aggregate JSON %q: %v", body, err)
	}
	if agg.Response != "10ms" {
		t.Errorf("average_response_latency = %q, want 10ms", agg.Response)
	}
	if agg.Proc != "30ms" {
		t.Errorf("average_processor_latency = %q, want 30ms", agg.Proc)
	}
	if agg.Threads["auth"] != "20ms" {
		t.Errorf("average_thread_latencies[auth] = %q, want 20ms", agg.Threads["auth"])
	}
}

func TestQueryEmptyTable(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	client, server := net.Pipe()
	bodyCh := make(chan string, 1)
	go func() {
		resp, err := http.ReadResponse(bufio.NewReader(client), nil)
		if err != nil {
			bodyCh <- ""
			return
		}
		b, _ := io.ReadAll(resp.Body)
		bodyCh <- string(b)
	}()

	c.Query(wire.NewEnvelope(0, server, nil))
	drain(c)

	body := <-bodyCh
	if !strings.Contains(body, `"average_response_latency":"0s"`) {
		t.Errorf("empty-table aggregate = %q", body)
	}
}

func TestCheckpointNeverBlocks(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < channelSize*2; i++ {
			c.Arrive("auth", 0)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checkpoint send blocked on a full channel")
	}
}
