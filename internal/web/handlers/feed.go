package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/kozaktomas/class-attendance/internal/session"
)

// noticeBuffer is the per-listener channel capacity. A listener that
// falls this far behind starts losing notices rather than stalling the
// detection loop.
const noticeBuffer = 64

// Feed broadcasts detection notices to SSE subscribers. It implements
// session.Notifier, so it plugs straight into the detection loop.
type Feed struct {
	mu        sync.Mutex
	listeners []chan session.Notice
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Publish fans the notice out to all listeners without blocking. Slow
// listeners drop notices.
func (f *Feed) Publish(n session.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.listeners {
		select {
		case ch <- n:
		default:
		}
	}
}

// addListener registers a new subscriber channel.
func (f *Feed) addListener() chan session.Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan session.Notice, noticeBuffer)
	f.listeners = append(f.listeners, ch)
	return ch
}

// removeListener unregisters and closes a subscriber channel.
func (f *Feed) removeListener(ch chan session.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, listener := range f.listeners {
		if listener == ch {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Events streams detection notices as server-sent events until the
// client disconnects.
func (f *Feed) Events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := f.addListener()
	defer f.removeListener(ch)

	sendSSEEvent(w, flusher, "status", map[string]string{"state": "listening"})

	for {
		select {
		case <-r.Context().Done():
			return
		case notice, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, notice.Kind, notice)
		}
	}
}

// sendSSEEvent writes a single SSE event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
