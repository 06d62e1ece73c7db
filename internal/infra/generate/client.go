package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iudd/soradeno/internal/config"
	"github.com/iudd/soradeno/internal/domain"
	"github.com/iudd/soradeno/internal/domain/model"
	"github.com/iudd/soradeno/internal/domain/ports/adapter"
)

// Compile-time assurance this client satisfies the port
var _ adapter.Generator = (*Client)(nil)

// Client invokes the upstream generation API. The provider exposes an
// OpenAI-compatible chat-completions surface, but its shape is not stable
// across deployments, so the request shapes to try come from config and are
// attempted in order until one accepts.
type Client struct {
	base         string
	apiKey       string
	defaultModel string
	shapes       []config.RequestShape
	classifier   *Classifier
	extractor    *Extractor
	client       *http.Client
	log          *zerolog.Logger
}

func NewClient(cfg config.GenerateConfig, logger *zerolog.Logger) *Client {
	classifier := NewClassifier(cfg.Classify, cfg.BaseURL)
	return &Client{
		base:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		shapes:       cfg.Shapes,
		classifier:   classifier,
		extractor:    NewExtractor(classifier, logger),
		client:       &http.Client{Timeout: cfg.Timeout},
		log:          logger,
	}
}

// chatContentPart is one element of a multimodal user turn.
type chatContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

func (c *Client) body(shape config.RequestShape, req adapter.GenerationRequest) ([]byte, error) {
	mdl := req.Model
	if mdl == "" {
		mdl = c.defaultModel
	}
	switch shape.Kind {
	case "simple":
		simple := map[string]any{"prompt": req.Prompt}
		if mdl != "" {
			simple["model"] = mdl
		}
		if req.ReferenceImage != "" {
			simple["image_url"] = req.ReferenceImage
		}
		return json.Marshal(simple)
	default: // chat
		var content any = req.Prompt
		if req.ReferenceImage != "" {
			img := struct {
				URL string `json:"url"`
			}{URL: req.ReferenceImage}
			content = []chatContentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &img},
			}
		}
		return json.Marshal(map[string]any{
			"model": mdl,
			"messages": []map[string]any{
				{"role": "user", "content": content},
			},
			"stream": true,
		})
	}
}

// Invoke tries each configured request shape until one responds with a
// success status, then reads the result either from a direct JSON body or
// through the stream extractor.
func (c *Client) Invoke(ctx context.Context, req adapter.GenerationRequest, sink adapter.EventSink) (model.ResultSet, error) {
	var lastErr error
	for _, shape := range c.shapes {
		b, err := c.body(shape, req)
		if err != nil {
			return model.ResultSet{}, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+shape.Path, bytes.NewReader(b))
		if err != nil {
			return model.ResultSet{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Str("path", shape.Path).Msg("generation request failed, trying next shape")
			continue
		}

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = domain.NewUpstreamError(resp.StatusCode, string(raw))
			c.log.Warn().Int("status", resp.StatusCode).Str("path", shape.Path).
				Msg("generation endpoint rejected request, trying next shape")
			continue
		}

		defer resp.Body.Close()
		sink.Send(adapter.Event{Type: adapter.EventLog, Message: "已连接生成服务，等待输出..."})

		if isJSONDirect(resp.Header.Get("Content-Type")) {
			return c.direct(resp.Body)
		}
		start := time.Now()
		rs, err := c.extractor.Run(ctx, resp.Body, sink)
		if err != nil {
			return rs, err
		}
		c.log.Info().Dur("duration", time.Since(start)).Msg("stream extraction finished")
		return rs, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no generation request shapes configured")
	}
	return model.ResultSet{}, lastErr
}

func isJSONDirect(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

// resultKeys are the known places a direct JSON body hides its result URL.
var resultKeys = []string{"video_url", "url", "video", "result"}

// direct short-circuits the streaming path: a non-stream JSON body is probed
// for a result URL under the known keys, including one level of nesting
// under data/output.
func (c *Client) direct(r io.Reader) (model.ResultSet, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return model.ResultSet{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.ResultSet{}, fmt.Errorf("decode generation response: %w", err)
	}

	var rs model.ResultSet
	for _, u := range probeURLs(doc, 0) {
		cleaned := c.classifier.Clean(u)
		if cleaned != "" {
			rs.SetIfAbsent(c.classifier.Classify(cleaned), cleaned)
		}
	}
	if !rs.Any() {
		return rs, fmt.Errorf("%w (body: %s)", domain.ErrNoResult, domain.Truncate(string(raw), 500))
	}
	return rs, nil
}

func probeURLs(doc any, depth int) []string {
	if depth > 3 {
		return nil
	}
	var urls []string
	switch v := doc.(type) {
	case map[string]any:
		for _, key := range resultKeys {
			if s, ok := v[key].(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		for _, key := range []string{"data", "output", "result"} {
			if nested, ok := v[key]; ok {
				urls = append(urls, probeURLs(nested, depth+1)...)
			}
		}
	case []any:
		for _, item := range v {
			urls = append(urls, probeURLs(item, depth+1)...)
		}
	}
	return urls
}
