package adapter

import (
	"context"

	"github.com/iudd/soradeno/internal/domain/model"
)

// GenerationRequest carries everything the upstream call needs. The
// reference image, when present, switches the request to a multimodal turn.
type GenerationRequest struct {
	Prompt         string
	Model          string
	ReferenceImage string
}

// Generator is the port for the upstream media generation API. Invoke blocks
// until the upstream run finishes, relaying progress through sink, and
// returns the classified result URLs.
type Generator interface {
	Invoke(ctx context.Context, req GenerationRequest, sink EventSink) (model.ResultSet, error)
}
