package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/theapemachine/bub-go/pkg/metrics"
)

/*
TapeEvent is the payload broadcast to /events subscribers whenever the tape
changes. Type is one of "message", "handoff", or "reset".
*/
type TapeEvent struct {
	Type            string    `json:"type"`
	Tape            string    `json:"tape"`
	Entries         int       `json:"entries"`
	EstimatedTokens int       `json:"estimated_tokens"`
	At              time.Time `json:"at"`
}

/*
Broker maintains a set of subscribers and broadcasts JSON-encoded tape
events to them. Each event is sent as a single-line SSE message of the form:

data: {json}\n\n
*/
type Broker struct {
	mu       sync.RWMutex
	clients  map[chan []byte]struct{}
	metrics  *metrics.StreamingMetrics
	closed   bool
	testMode bool
}

/*
NewBroker creates a new Broker.
*/
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[chan []byte]struct{}),
		metrics: metrics.NewStreamingMetrics(),
	}
}

/*
NewTestBroker creates a broker with a shorter heartbeat interval for testing
*/
func NewTestBroker() *Broker {
	return &Broker{
		clients:  make(map[chan []byte]struct{}),
		metrics:  metrics.NewStreamingMetrics(),
		testMode: true,
	}
}

// Metrics reports delivery counters for the event stream.
func (broker *Broker) Metrics() map[string]any {
	return broker.metrics.Snapshot()
}

/*
Subscribe upgrades the HTTP connection to an SSE stream and blocks until the
client disconnects. Use from an HTTP handler:

broker.Subscribe(w, r)
*/
func (broker *Broker) Subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 8)
	broker.mu.Lock()

	if broker.closed {
		broker.mu.Unlock()
		http.Error(w, "broker closed", http.StatusGone)
		return
	}

	broker.clients[ch] = struct{}{}
	broker.mu.Unlock()
	broker.metrics.RecordConnection(true, 0)

	// heartbeat ticker to keep the connection alive across proxies.
	tickerInterval := 25 * time.Second

	if broker.testMode {
		tickerInterval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			broker.remove(ch)
			return
		case msg := <-ch:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			// comment heartbeat
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}

/*
Broadcast marshals v to JSON and sends it to all connected clients.
*/
func (broker *Broker) Broadcast(v any) error {
	msg, err := json.Marshal(v)

	if err != nil {
		return err
	}

	broker.mu.RLock()
	defer broker.mu.RUnlock()

	if broker.closed {
		return nil
	}

	for ch := range broker.clients {
		select {
		case ch <- msg:
			broker.metrics.RecordEvent(false, 0)
		default:
			// slow client, drop the message to avoid blocking.
			broker.metrics.RecordEvent(true, 0)
		}
	}

	return nil
}

/*
Close disconnects all clients and prevents further subscriptions.
*/
func (broker *Broker) Close() {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return
	}

	broker.closed = true

	for ch := range broker.clients {
		close(ch)
	}

	broker.clients = map[chan []byte]struct{}{}
}

/*
remove removes a client from the broker.
*/
func (broker *Broker) remove(ch chan []byte) {
	broker.mu.Lock()

	if _, ok := broker.clients[ch]; ok {
		delete(broker.clients, ch)
		close(ch)
	}

	broker.mu.Unlock()
}
