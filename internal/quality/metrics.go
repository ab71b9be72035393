package quality

import "github.com/joseph-ayodele/doccapture/constants"

// Issue describes one detected frame problem, ordered by detection pass.
type Issue struct {
	Type     constants.IssueType `json:"type"`
	Severity constants.Severity  `json:"severity"`
	Message  string              `json:"message"`
}

// Metrics is the per-frame score bundle. All scores are in [0,1].
// Derived, recomputed every frame; never persisted.
type Metrics struct {
	Overall   float64 `json:"overall"`
	Focus     float64 `json:"focus"`
	Lighting  float64 `json:"lighting"`
	Stability float64 `json:"stability"`
	IsFramed  bool    `json:"isFramed"`
	Issues    []Issue `json:"issues"`
}

// Point is a 2D coordinate in frame pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EdgePoints are the four corners of a detected document quadrilateral,
// supplied by an external edge detector.
type EdgePoints struct {
	TopLeft     Point `json:"topLeft"`
	TopRight    Point `json:"topRight"`
	BottomRight Point `json:"bottomRight"`
	BottomLeft  Point `json:"bottomLeft"`
}

// Acceptable is the predicate the capture controller gates on.
func Acceptable(m Metrics) bool {
	return m.Overall >= 0.6 && len(m.Issues) == 0
}
