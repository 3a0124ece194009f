// Package sse streams scan lifecycle notifications as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Event types sent to clients.
const (
	TypeScanStarted   = "scan.started"
	TypeScanCompleted = "scan.completed"
	TypeScanFailed    = "scan.failed"
)

// clientBuffer is the number of frames a slow client may lag behind before
// frames are dropped for it.
const clientBuffer = 64

// ScanSummary is the payload of a scan.completed event.
type ScanSummary struct {
	Files          int   `json:"files"`
	References     int   `json:"total_references"`
	MissingModules int   `json:"missing_modules"`
	MissingAssets  int   `json:"missing_assets"`
	DurationMS     int64 `json:"duration_ms"`
}

// Change is one file change folded into the next scan.started event.
type Change struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// StartedPayload is the payload of a scan.started event.
type StartedPayload struct {
	Changes []Change `json:"changes"`
}

// FailedPayload is the payload of a scan.failed event.
type FailedPayload struct {
	Error string `json:"error"`
}

// Broker fans scan events out to connected clients.
//
// File changes are not broadcast one by one. They accumulate until the next
// scan starts and travel with its scan.started event. The outcome of the
// latest scan is replayed to every new subscriber so that a client always
// starts from the current state.
type Broker struct {
	heartbeat time.Duration

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	seq     uint64
	last    []byte
	pending map[string]string
	closed  bool
}

// NewBroker creates a broker. Connected clients receive a comment line every
// heartbeat interval; zero disables heartbeats.
func NewBroker(heartbeat time.Duration) *Broker {
	return &Broker{
		heartbeat: heartbeat,
		clients:   make(map[chan []byte]struct{}),
		pending:   make(map[string]string),
	}
}

// frame encodes an event and assigns it the next id. Callers hold b.mu.
func (b *Broker) frame(typ string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("sse: encode %s: %w", typ, err)
	}
	b.seq++
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", b.seq, typ, payload)), nil
}

// broadcast sends raw to every client without blocking. Callers hold b.mu.
func (b *Broker) broadcast(raw []byte) {
	for ch := range b.clients {
		select {
		case ch <- raw:
		default:
		}
	}
}

func (b *Broker) emit(typ string, data any, replay bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	raw, err := b.frame(typ, data)
	if err != nil {
		return
	}
	if replay {
		b.last = raw
	}
	b.broadcast(raw)
}

// FileChanged records a change for the next scan.started event. A later
// change to the same path replaces an earlier one. Kinds other than created,
// updated and deleted are ignored.
func (b *Broker) FileChanged(kind, path string) {
	switch kind {
	case "created", "updated", "deleted":
	default:
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.pending[path] = kind
}

// ScanStarted announces a scan together with the changes recorded since the
// previous one.
func (b *Broker) ScanStarted() {
	b.mu.Lock()
	changes := make([]Change, 0, len(b.pending))
	for p, k := range b.pending {
		changes = append(changes, Change{Path: p, Kind: k})
	}
	clear(b.pending)
	b.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	b.emit(TypeScanStarted, StartedPayload{Changes: changes}, false)
}

// ScanCompleted announces a finished scan.
func (b *Broker) ScanCompleted(s ScanSummary) {
	b.emit(TypeScanCompleted, s, true)
}

// ScanFailed announces a failed scan.
func (b *Broker) ScanFailed(err error) {
	b.emit(TypeScanFailed, FailedPayload{Error: err.Error()}, true)
}

// Subscribe adds a client. The channel starts with the outcome of the latest
// scan, if any, and is closed by Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	if b.last != nil {
		ch <- b.last
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client. Later calls are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		close(ch)
	}
	clear(b.clients)
}

// ServeHTTP is the SSE endpoint handler (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
