package constants

// IssueType identifies a class of frame quality problem.
type IssueType string

const (
	IssueBlur     IssueType = "blur"
	IssueLowLight IssueType = "low_light"
	IssueGlare    IssueType = "glare"
	IssueMotion   IssueType = "motion"
	IssueUnknown  IssueType = "unknown" // metric itself is degraded (no pixel data)
)

// Severity grades how strongly an issue should block auto-capture.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// QualityPreset selects the output size/compression trade-off for
// prepared images.
type QualityPreset string

const (
	PresetLow    QualityPreset = "low"
	PresetMedium QualityPreset = "medium"
	PresetHigh   QualityPreset = "high"
)

// IsValidPreset reports whether p is a known quality preset.
func IsValidPreset(p string) bool {
	switch QualityPreset(p) {
	case PresetLow, PresetMedium, PresetHigh:
		return true
	}
	return false
}
