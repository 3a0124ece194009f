package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()

	assert.Equal(t, 0, b.ClientCount())
	ch := b.Subscribe()
	assert.Equal(t, 1, b.ClientCount())
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.ClientCount())

	_, ok := <-ch
	assert.False(t, ok, "channel closed on unsubscribe")
}

func TestScanCompleted(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.ScanCompleted(ScanSummary{Files: 3, References: 4, MissingModules: 1, MissingAssets: 2})

	msgs := drain(ch)
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "id: 1\nevent: scan.completed\n"))
	assert.Contains(t, msgs[0], `"missing_modules":1`)
	assert.Contains(t, msgs[0], `"missing_assets":2`)
	assert.True(t, strings.HasSuffix(msgs[0], "\n\n"))
}

func TestScanFailed(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.ScanFailed(errors.New("scan: list source root: boom"))

	msgs := drain(ch)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "event: scan.failed")
	assert.Contains(t, msgs[0], `"error":"scan: list source root: boom"`)
}

func TestScanStarted_CarriesPendingChanges(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.FileChanged("created", "src/b.js")
	b.FileChanged("updated", "src/a.js")
	b.FileChanged("deleted", "src/b.js")
	b.FileChanged("renamed", "src/c.js")
	assert.Empty(t, drain(ch), "file changes are not broadcast on their own")

	b.ScanStarted()
	msgs := drain(ch)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "event: scan.started")
	assert.Contains(t, msgs[0],
		`"changes":[{"path":"src/a.js","kind":"updated"},{"path":"src/b.js","kind":"deleted"}]`)

	b.ScanStarted()
	msgs = drain(ch)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], `"changes":[]`, "pending changes are consumed")
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.ScanStarted()
	b.ScanCompleted(ScanSummary{})
	b.ScanStarted()

	msgs := drain(ch)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.True(t, strings.HasPrefix(m, fmt.Sprintf("id: %d\n", i+1)), m)
	}
}

func TestSubscribe_ReplaysLatestOutcome(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()

	b.ScanCompleted(ScanSummary{MissingModules: 7})
	b.ScanStarted()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	msgs := drain(ch)
	require.Len(t, msgs, 1, "only the outcome is replayed")
	assert.Contains(t, msgs[0], "event: scan.completed")
	assert.Contains(t, msgs[0], `"missing_modules":7`)

	b.ScanFailed(errors.New("boom"))
	late := b.Subscribe()
	defer b.Unsubscribe(late)
	msgs = drain(late)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "event: scan.failed")
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b.FileChanged("deleted", "src/x.vue")
	b.ScanStarted()
	require.Eventually(t, func() bool {
		body := w.body()
		return strings.Contains(body, "event: scan.started") && strings.Contains(body, ": ping")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Contains(t, w.body(), `"path":"src/x.vue"`)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, 0, b.ClientCount(), "client not cleaned up after disconnect")
}

func TestBroadcastDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.ScanStarted()
	}
	assert.Len(t, drain(ch), clientBuffer)
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(0)
	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Close()
	b.Close()

	_, ok := <-ch
	require.False(t, ok, "expected subscriber channel to be closed")
	assert.Equal(t, 0, b.ClientCount())

	b.ScanCompleted(ScanSummary{})
	b.FileChanged("updated", "x.js")
	b.ScanStarted()
	b.Unsubscribe(ch)

	late := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribe after close returns a closed channel")
}

type lockedRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (l *lockedRecorder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Write(p)
}

func (l *lockedRecorder) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ResponseRecorder.Flush()
}

func (l *lockedRecorder) body() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Body.String()
}
