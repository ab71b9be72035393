package extract

import "context"

// BoundingBox locates a recognized region in image pixel space.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Field is one extracted name/value pair.
type Field struct {
	Name        string       `json:"name"`
	Value       string       `json:"value"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// TableRow is one row of an extracted table.
type TableRow struct {
	Cells      []string `json:"cells"`
	Confidence float64  `json:"confidence"`
}

// Table is an extracted tabular region.
type Table struct {
	Rows        []TableRow   `json:"rows"`
	Headers     []string     `json:"headers,omitempty"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// Result is the extraction outcome. It is never partially constructed:
// either a full success or a full, typed failure with Success=false,
// Confidence=0 and empty Fields. ProcessingTime is wall-clock
// milliseconds.
type Result struct {
	Success        bool    `json:"success"`
	Fields         []Field `json:"fields"`
	Tables         []Table `json:"tables,omitempty"`
	RawText        string  `json:"rawText"`
	Confidence     float64 `json:"confidence"`
	Error          string  `json:"error,omitempty"`
	ProcessingTime float64 `json:"processingTime,omitempty"`
}

// Input is an opaque captured-image handle: either raw encoded bytes, a
// locally resolvable URI, or a URL the remote service can fetch itself.
type Input struct {
	Data   []byte
	URI    string
	Width  int
	Height int
}

// Backend is one extraction strategy. Backends may return errors; the
// coordinator is the layer that guarantees a well-formed Result.
type Backend interface {
	Name() string
	Extract(ctx context.Context, in Input) (Result, error)
}

// TokenProvider supplies the bearer credential for remote extraction
// calls. Injected so this package stays ignorant of auth flows.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// RecognizedLine is one line of on-device recognized text.
type RecognizedLine struct {
	Text       string
	Confidence float64
}

// RecognizedWord is one word with its recognition confidence.
type RecognizedWord struct {
	Text        string
	Confidence  float64
	BoundingBox *BoundingBox
}

// Recognized is the raw output of an on-device recognition engine.
type Recognized struct {
	Lines    []RecognizedLine
	Words    []RecognizedWord
	FullText string
}

// Engine is the injected on-device recognition backend. Implementations
// should check ctx between recognition sub-phases; cancellation is
// cooperative, not preemptive.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Recognized, error)
}
