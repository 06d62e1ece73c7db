package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/iudd/soradeno/internal/domain/ports/adapter"
)

// Compile-time assurance the writer satisfies the sink port
var _ adapter.EventSink = (*sseWriter)(nil)

// sseWriter relays events as server-sent-event frames: `data: <json>\n\n`,
// flushed per frame. Headers are written lazily on the first frame so a run
// that fails before producing anything can still get a plain HTTP status.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher

	mu      sync.Mutex
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, f: f}, true
}

// Started reports whether any frame reached the client yet.
func (s *sseWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *sseWriter) Send(ev adapter.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = s.w.Write([]byte("data: "))
	_, _ = s.w.Write(b)
	_, _ = s.w.Write([]byte("\n\n"))
	s.f.Flush()
}
