package bitable

import (
	"regexp"
	"time"

	"github.com/iudd/soradeno/internal/domain/model"
)

// record is the raw row shape returned by the store.
type record struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

// modelIDPattern matches the leading token that looks like a literal model
// identifier. Model cells may carry a free-text annotation in full-width
// parentheses after the id, e.g. "sora-video-portrait-10s（竖屏10秒）".
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*`)

// ParseModelID strips a trailing human annotation, keeping only the literal
// model id prefix. Unparseable values come back unchanged.
func ParseModelID(display string) string {
	if m := modelIDPattern.FindString(display); m != "" {
		return m
	}
	return display
}

// ParseTask normalizes one raw row into a Task. It never fails: every field
// except the record id is optional at this layer, and an empty prompt is for
// the use case to reject when it needs one.
func ParseTask(rec record, defaultModel string) *model.Task {
	f := rec.Fields
	t := &model.Task{
		RecordID:       rec.RecordID,
		Prompt:         cellText(f[fieldPrompt]),
		Character:      cellText(f[fieldCharacter]),
		GenerationType: model.GenerationVideo,
		Status:         model.TaskStatusPending,
		IsGenerated:    cellBool(f[fieldIsGenerated]),
		ReferenceImage: cellAttachment(f[fieldRefImage]),
		Error:          cellText(f[fieldError]),
		Results: model.ResultSet{
			PrimaryURL:       cellLink(f[fieldVideoURL]),
			WatermarkFreeURL: cellLink(f[fieldNoWatermark]),
			MirrorURL:        cellLink(f[fieldMirrorURL]),
		},
	}

	t.ModelDisplay = cellText(f[fieldModel])
	if t.ModelDisplay == "" {
		t.ModelDisplay = defaultModel
	}
	t.Model = ParseModelID(t.ModelDisplay)

	if gt := cellText(f[fieldGenerationTyp]); gt == generationTypeImage {
		t.GenerationType = model.GenerationImage
	}
	if t.GenerationType == model.GenerationImage && t.Results.PrimaryURL == "" {
		t.Results.PrimaryURL = cellLink(f[fieldImageURL])
	}

	if s, ok := statusFromStore[cellText(f[fieldStatus])]; ok {
		t.Status = s
	}
	if ms := cellMillis(f[fieldCreatedTime]); ms > 0 {
		ts := time.UnixMilli(ms)
		t.CreatedTime = &ts
	}
	return t
}
