package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iudd/soradeno/internal/domain"
	"github.com/iudd/soradeno/internal/domain/model"
	"github.com/iudd/soradeno/internal/domain/ports/adapter"
	"github.com/iudd/soradeno/internal/usecase"
)

// ---- Fake use case ----

type fakeUC struct {
	configured bool
	tasks      map[string]*model.Task

	runErr   error
	runRes   *usecase.Result
	batchRes *usecase.BatchResult
	runFrames []adapter.Event // frames pushed through the sink during Run
}

var _ usecase.GenerationUseCase = (*fakeUC)(nil)

func (f *fakeUC) Configured() bool { return f.configured }

func (f *fakeUC) ListAll(ctx context.Context, limit int) ([]*model.Task, error) {
	if !f.configured {
		return nil, domain.ErrNotConfigured
	}
	out := make([]*model.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeUC) ListPending(ctx context.Context, limit int) ([]*model.Task, error) {
	return f.ListAll(ctx, limit)
}

func (f *fakeUC) Get(ctx context.Context, id string) (*model.Task, error) {
	if t := f.tasks[id]; t != nil {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUC) Run(ctx context.Context, id string, sink adapter.EventSink) (*usecase.Result, error) {
	for _, ev := range f.runFrames {
		sink.Send(ev)
	}
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.runRes, nil
}

func (f *fakeUC) RunBatch(ctx context.Context, limit int, sink adapter.EventSink) (*usecase.BatchResult, error) {
	return f.batchRes, nil
}

func testServer(uc usecase.GenerationUseCase) http.Handler {
	l := zerolog.Nop()
	return NewServer(uc, "", 100, &l).Router()
}

// decodeFrames splits an SSE body into its JSON frames.
func decodeFrames(t *testing.T, body string) []adapter.Event {
	t.Helper()
	var frames []adapter.Event
	for _, part := range strings.Split(body, "\n\n") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "data: ") {
			continue
		}
		var ev adapter.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(part, "data: ")), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", part, err)
		}
		frames = append(frames, ev)
	}
	return frames
}

// ---- Tests ----

func TestHandleStatus(t *testing.T) {
	srv := testServer(&fakeUC{configured: true})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]bool
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if !body["configured"] {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHandleTask_NotFound(t *testing.T) {
	srv := testServer(&fakeUC{configured: true, tasks: map[string]*model.Task{}})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleRecords_Unconfigured(t *testing.T) {
	srv := testServer(&fakeUC{configured: false})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 for unconfigured store", rec.Code)
	}
}

func TestHandleGenerate_SkippedResultFrame(t *testing.T) {
	uc := &fakeUC{
		configured: true,
		runRes: &usecase.Result{
			Skipped: true,
			Results: model.ResultSet{PrimaryURL: "https://cdn.example/old.mp4"},
		},
		runFrames: []adapter.Event{{Type: adapter.EventLog, Message: "loaded"}},
	}
	srv := testServer(uc)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate/r1", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	frames := decodeFrames(t, rec.Body.String())
	last := frames[len(frames)-1]
	if last.Type != adapter.EventResult || !last.Success || !last.Skipped {
		t.Fatalf("terminal frame = %+v, want skipped success result", last)
	}
	if last.PrimaryURL != "https://cdn.example/old.mp4" {
		t.Fatalf("terminal frame urls = %+v", last)
	}
}

func TestHandleGenerate_BusyBeforeStream(t *testing.T) {
	srv := testServer(&fakeUC{configured: true, runErr: domain.ErrBusy})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate/r1", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 when nothing was streamed yet", rec.Code)
	}
}

func TestHandleGenerate_ErrorFrameMidStream(t *testing.T) {
	uc := &fakeUC{
		configured: true,
		runErr:     domain.NewUpstreamError(500, "quota exceeded"),
		runFrames:  []adapter.Event{{Type: adapter.EventStream, Content: "partial"}},
	}
	srv := testServer(uc)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate/r1", nil))

	frames := decodeFrames(t, rec.Body.String())
	last := frames[len(frames)-1]
	if last.Type != adapter.EventError || !strings.Contains(last.Message, "quota exceeded") {
		t.Fatalf("terminal frame = %+v, want error with upstream body", last)
	}
}

func TestHandleGenerateBatch_AggregateFrame(t *testing.T) {
	uc := &fakeUC{
		configured: true,
		batchRes:   &usecase.BatchResult{Total: 3, SuccessCount: 2, FailCount: 1},
	}
	srv := testServer(uc)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate/batch", strings.NewReader(`{"limit":3}`)))

	frames := decodeFrames(t, rec.Body.String())
	last := frames[len(frames)-1]
	if last.Type != adapter.EventResult || last.Total != 3 || last.SuccessCount != 2 || last.FailCount != 1 {
		t.Fatalf("terminal frame = %+v", last)
	}
	if last.Success {
		t.Fatal("a batch with failures must not report success=true")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(&fakeUC{configured: true})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/status", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(&fakeUC{configured: true})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
