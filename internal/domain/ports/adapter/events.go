package adapter

// EventType is the frame vocabulary shared with SSE consumers.
type EventType string

const (
	EventLog    EventType = "log"
	EventStream EventType = "stream"
	EventResult EventType = "result"
	EventError  EventType = "error"
)

// Event is one progress frame relayed to an observer during a run.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Content string    `json:"content,omitempty"`

	// Result fields, set on the terminal result frame.
	Success          bool   `json:"success,omitempty"`
	Skipped          bool   `json:"skipped,omitempty"`
	PrimaryURL       string `json:"primaryUrl,omitempty"`
	WatermarkFreeURL string `json:"watermarkFreeUrl,omitempty"`
	MirrorURL        string `json:"mirrorUrl,omitempty"`

	// Batch aggregate fields.
	Total        int `json:"total,omitempty"`
	SuccessCount int `json:"successCount,omitempty"`
	FailCount    int `json:"failCount,omitempty"`
}

// EventSink receives progress frames. Implementations must tolerate being
// called after the consumer went away; Send never blocks a run indefinitely.
type EventSink interface {
	Send(ev Event)
}

// SinkFunc adapts a function to the EventSink port.
type SinkFunc func(ev Event)

func (f SinkFunc) Send(ev Event) { f(ev) }

// NopSink discards all events.
var NopSink = SinkFunc(func(Event) {})
