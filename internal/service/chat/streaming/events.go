package streaming

// EventType tags the normalized stream events sent to the client.
type EventType string

const (
	EventStart EventType = "start"
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Mode declares how the client must interpret delta content for the rest of
// the stream: prose, a canvas document body, or a code artifact body. One
// stream carries exactly one mode.
type Mode string

const (
	ModeText   Mode = "text"
	ModeCanvas Mode = "canvas"
	ModeCode   Mode = "code"
)

// Event is the normalized three-state stream unit: exactly one start, zero or
// more deltas (each carrying only newly-appended content), and one terminal
// done or error.
type Event struct {
	Type     EventType `json:"type"`
	Mode     Mode      `json:"mode"`
	Content  string    `json:"content,omitempty"`
	Label    string    `json:"label,omitempty"`
	Language string    `json:"language,omitempty"`
	// Recovered marks done events whose content came from partial-JSON
	// recovery after the gateway truncated the payload. Degraded, not equal
	// to a cleanly parsed artifact.
	Recovered bool `json:"recovered,omitempty"`
	// WasContinued marks done events whose content was stitched together
	// across one or more continuation calls after truncation.
	WasContinued bool   `json:"wasContinued,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Emitter delivers events to the client in order. Implementations must not be
// called concurrently; the transform engine is single-writer.
type Emitter func(Event) error
