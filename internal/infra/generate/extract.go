package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iudd/soradeno/internal/domain"
	"github.com/iudd/soradeno/internal/domain/model"
	"github.com/iudd/soradeno/internal/domain/ports/adapter"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	tailBytes    = 500
)

// delta is one incremental fragment of a streaming response. The upstream's
// shape varies across deployments, so every field is optional and probed in
// precedence order.
type delta struct {
	Error  json.RawMessage `json:"error"`
	Output []struct {
		URL string `json:"url"`
	} `json:"output"`
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Progress *float64 `json:"progress"`
}

// errorMessage unwraps the upstream error field, which arrives either as a
// bare string or as an object with a message.
func (d *delta) errorMessage() string {
	if len(d.Error) == 0 || string(d.Error) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(d.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(d.Error)
}

// Extractor turns an SSE-style byte stream of uncertain shape into a set of
// classified result URLs, relaying readable progress through a sink.
//
// The strategy is layered: structured output objects are authoritative,
// free-text deltas are regex-scanned as a fallback, and on stream end the
// whole accumulated text gets one last broad rescan. A more capable upstream
// short-circuits the noisier layers.
type Extractor struct {
	classifier *Classifier
	log        *zerolog.Logger
}

func NewExtractor(classifier *Classifier, logger *zerolog.Logger) *Extractor {
	return &Extractor{classifier: classifier, log: logger}
}

// Run consumes the stream until EOF or a fatal upstream error. An explicit
// error delta aborts immediately; finding no URL at all after every layer
// fails with ErrNoResult carrying a bounded tail of the accumulated text.
func (e *Extractor) Run(ctx context.Context, r io.Reader, sink adapter.EventSink) (model.ResultSet, error) {
	var (
		rs      model.ResultSet
		text    strings.Builder // all free-text deltas, for the final rescan
		pending string          // trailing partial line, kept for the next chunk
		chunk   = make([]byte, 4096)
	)

	for {
		if err := ctx.Err(); err != nil {
			return rs, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			pending += string(chunk[:n])
			lines := strings.Split(pending, "\n")
			// The last element may be incomplete; hold it back.
			pending = lines[len(lines)-1]
			for _, line := range lines[:len(lines)-1] {
				if ferr := e.line(line, &rs, &text, sink); ferr != nil {
					return rs, ferr
				}
			}
		}
		if err == io.EOF {
			// EOF completes whatever was buffered.
			if ferr := e.line(pending, &rs, &text, sink); ferr != nil {
				return rs, ferr
			}
			break
		}
		if err != nil {
			return rs, fmt.Errorf("read stream: %w", err)
		}
	}

	if !rs.Any() {
		e.classifier.ScanBroad(text.String(), &rs)
	}
	if !rs.Any() {
		return rs, fmt.Errorf("%w (tail: %s)", domain.ErrNoResult, tail(text.String()))
	}
	return rs, nil
}

// line processes one complete logical line. A non-nil return aborts the run.
func (e *Extractor) line(line string, rs *model.ResultSet, text *strings.Builder, sink adapter.EventSink) error {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	payload := line
	if strings.HasPrefix(line, dataPrefix) {
		payload = strings.TrimSpace(line[len(dataPrefix):])
	}
	if payload == doneSentinel {
		// Stream-end marker, not an error.
		return nil
	}

	var d delta
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		// Not JSON: forward raw and fall back to pattern scanning.
		text.WriteString(payload)
		text.WriteString("\n")
		sink.Send(adapter.Event{Type: adapter.EventStream, Content: payload})
		e.classifier.Scan(payload, rs)
		return nil
	}

	if msg := d.errorMessage(); msg != "" {
		return fmt.Errorf("upstream reported error: %s", msg)
	}

	// Structured output objects are the authoritative source when present.
	for _, out := range d.Output {
		if out.URL == "" {
			continue
		}
		u := e.classifier.Clean(out.URL)
		if u == "" {
			continue
		}
		slot := e.classifier.Classify(u)
		if rs.SetIfAbsent(slot, u) {
			e.log.Info().Str("slot", string(slot)).Str("url", u).Msg("result url from structured output")
			sink.Send(adapter.Event{Type: adapter.EventLog, Message: fmt.Sprintf("获取到%s结果: %s", slot, u)})
		}
	}

	for _, ch := range d.Choices {
		for _, content := range []string{ch.Delta.Content, ch.Delta.Reasoning} {
			if content == "" {
				continue
			}
			text.WriteString(content)
			sink.Send(adapter.Event{Type: adapter.EventStream, Content: content})
			e.classifier.Scan(content, rs)
		}
	}

	if d.Progress != nil {
		sink.Send(adapter.Event{Type: adapter.EventLog, Message: fmt.Sprintf("进度 %.0f%%", *d.Progress*100)})
	}
	return nil
}

func tail(s string) string {
	if len(s) <= tailBytes {
		return s
	}
	return "..." + s[len(s)-tailBytes:]
}
