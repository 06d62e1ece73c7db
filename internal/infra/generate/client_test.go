package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iudd/soradeno/internal/config"
	"github.com/iudd/soradeno/internal/domain"
	"github.com/iudd/soradeno/internal/domain/ports/adapter"
)

func testGenClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	l := zerolog.Nop()
	return NewClient(config.GenerateConfig{
		BaseURL:      srv.URL,
		APIKey:       "key",
		DefaultModel: "sora-video-portrait-10s",
		Timeout:      5 * time.Second,
		Shapes: []config.RequestShape{
			{Kind: "chat", Path: "/v1/chat/completions"},
			{Kind: "simple", Path: "/v1/video/generations"},
		},
		Classify: testRules(),
	}, &l)
}

func TestInvoke_DirectJSONShortCircuit(t *testing.T) {
	c := testGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"video_url": "https://cdn.example/a.mp4"})
	}))

	rs, err := c.Invoke(context.Background(), adapter.GenerationRequest{Prompt: "p"}, adapter.NopSink)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rs.PrimaryURL != "https://cdn.example/a.mp4" {
		t.Fatalf("primary = %q", rs.PrimaryURL)
	}
}

func TestInvoke_DirectJSONNestedKeys(t *testing.T) {
	c := testGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"url": "https://drive.google.com/x"},
		})
	}))

	rs, err := c.Invoke(context.Background(), adapter.GenerationRequest{Prompt: "p"}, adapter.NopSink)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rs.MirrorURL != "https://drive.google.com/x" {
		t.Fatalf("mirror = %q", rs.MirrorURL)
	}
}

func TestInvoke_FallbackShape(t *testing.T) {
	var paths []string
	c := testGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/v1/chat/completions" {
			http.Error(w, "unknown route", http.StatusNotFound)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] != "p" {
			t.Errorf("fallback body = %v, want simple {prompt} shape", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"url": "https://cdn.example/b.mp4"})
	}))

	rs, err := c.Invoke(context.Background(), adapter.GenerationRequest{Prompt: "p"}, adapter.NopSink)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rs.PrimaryURL != "https://cdn.example/b.mp4" {
		t.Fatalf("primary = %q", rs.PrimaryURL)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v, want primary then fallback", paths)
	}
}

func TestInvoke_AllShapesFail(t *testing.T) {
	c := testGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusInternalServerError)
	}))

	_, err := c.Invoke(context.Background(), adapter.GenerationRequest{Prompt: "p"}, adapter.NopSink)
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if !strings.Contains(ue.Body, "quota exceeded") {
		t.Fatalf("upstream body not propagated: %q", ue.Body)
	}
}

func TestInvoke_MultimodalTurn(t *testing.T) {
	var got map[string]any
	c := testGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"url": "https://cdn.example/c.mp4"})
	}))

	_, err := c.Invoke(context.Background(), adapter.GenerationRequest{
		Prompt:         "a cat",
		Model:          "sora-video-portrait-10s",
		ReferenceImage: "https://img.example/ref.png",
	}, adapter.NopSink)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if got["stream"] != true {
		t.Fatalf("stream = %v, must always request streaming", got["stream"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v, want a single user turn", msgs)
	}
	turn, _ := msgs[0].(map[string]any)
	parts, ok := turn["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("content = %v, want multimodal [text, image_url] parts", turn["content"])
	}
	img, _ := parts[1].(map[string]any)
	iu, _ := img["image_url"].(map[string]any)
	if iu["url"] != "https://img.example/ref.png" {
		t.Fatalf("image part = %v", parts[1])
	}
}

func TestInvoke_PlainTextTurnWithoutImage(t *testing.T) {
	var got map[string]any
	c := testGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"url": "https://cdn.example/c.mp4"})
	}))

	if _, err := c.Invoke(context.Background(), adapter.GenerationRequest{Prompt: "a cat"}, adapter.NopSink); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	msgs, _ := got["messages"].([]any)
	turn, _ := msgs[0].(map[string]any)
	if _, isString := turn["content"].(string); !isString {
		t.Fatalf("content = %v, want plain string without reference image", turn["content"])
	}
}

func TestInvoke_StreamingResponse(t *testing.T) {
	c := testGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"https://cdn.example/s.mp4"}}]}` + "\n\ndata: [DONE]\n\n"))
	}))

	rs, err := c.Invoke(context.Background(), adapter.GenerationRequest{Prompt: "p"}, adapter.NopSink)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rs.PrimaryURL != "https://cdn.example/s.mp4" {
		t.Fatalf("primary = %q", rs.PrimaryURL)
	}
}
