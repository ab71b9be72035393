package quality

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/joseph-ayodele/doccapture/constants"
	"github.com/joseph-ayodele/doccapture/internal/common"
)

// Scoring constants. Focus normalizes Laplacian variance linearly over
// [focusVarMin, focusVarMax]; stability normalizes mean absolute
// inter-frame difference against motionThreshold.
const (
	focusVarMin     = 100.0
	focusVarMax     = 500.0
	motionThreshold = 15.0

	brightLow  = 80.0
	brightHigh = 180.0

	weightFocus     = 0.35
	weightLighting  = 0.25
	weightStability = 0.20
	weightFraming   = 0.20
)

// Analyzer scores RGBA frames for focus, lighting and motion stability.
// It retains the previous grayscale frame for the stability comparison,
// so calls must not overlap; callers that receive frames faster than
// Analyze returns should drop frames, not queue them.
type Analyzer struct {
	mu     sync.Mutex
	prev   []float64
	prevW  int
	prevH  int
	logger *slog.Logger
}

func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Reset drops the retained previous frame. The next Analyze call reports
// full stability, as if it were the first frame.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.prev = nil
	a.prevW, a.prevH = 0, 0
	a.mu.Unlock()
}

// Analyze scores one RGBA frame. framed reports whether an external edge
// detector found a document quadrilateral in this frame. The buffer must
// hold exactly width*height*4 bytes; anything else is a caller error.
func (a *Analyzer) Analyze(buf []byte, width, height int, framed bool) (Metrics, error) {
	if width <= 0 || height <= 0 {
		return Metrics{}, common.NewAppError("ANALYZE_ERROR",
			fmt.Sprintf("invalid dimensions %dx%d", width, height), common.ErrInvalidInput)
	}
	if len(buf) != width*height*4 {
		return Metrics{}, common.NewAppError("ANALYZE_ERROR",
			fmt.Sprintf("buffer length %d does not match %dx%d RGBA", len(buf), width, height),
			common.ErrInvalidInput)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	gray := toGrayscale(buf, width, height)

	focus := focusScore(gray, width, height)
	lighting := lightingScore(gray)
	stability := a.stabilityScore(gray, width, height)

	framing := 0.0
	if framed {
		framing = 1.0
	}
	overall := weightFocus*focus + weightLighting*lighting +
		weightStability*stability + weightFraming*framing

	m := Metrics{
		Overall:   overall,
		Focus:     focus,
		Lighting:  lighting,
		Stability: stability,
		IsFramed:  framed,
		Issues:    deriveIssues(focus, lighting, stability),
	}

	a.prev = gray
	a.prevW, a.prevH = width, height

	a.logger.Debug("quality.frame.scored",
		"overall", round2(overall),
		"focus", round2(focus),
		"lighting", round2(lighting),
		"stability", round2(stability),
		"framed", framed,
		"issues", len(m.Issues),
	)
	return m, nil
}

// AnalyzeHints is the degraded path for callers that only have coarse
// declared brightness/sharpness hints instead of pixel data. The result
// carries a low-severity unknown issue so downstream code does not treat
// it as a normal pass/fail signal.
func (a *Analyzer) AnalyzeHints(brightness, sharpness float64, framed bool) Metrics {
	focus := clamp01(sharpness)
	lighting := clamp01(brightness)
	framing := 0.0
	if framed {
		framing = 1.0
	}
	// No pixel data, no prior frame: assume stable.
	overall := weightFocus*focus + weightLighting*lighting +
		weightStability*1.0 + weightFraming*framing

	issues := deriveIssues(focus, lighting, 1.0)
	issues = append(issues, Issue{
		Type:     constants.IssueUnknown,
		Severity: constants.SeverityLow,
		Message:  "no pixel data available, metrics derived from capture hints",
	})
	a.logger.Debug("quality.frame.hints", "overall", round2(overall), "framed", framed)
	return Metrics{
		Overall:   overall,
		Focus:     focus,
		Lighting:  lighting,
		Stability: 1.0,
		IsFramed:  framed,
		Issues:    issues,
	}
}

// toGrayscale converts an RGBA buffer using ITU-R BT.601 luma weights.
func toGrayscale(buf []byte, width, height int) []float64 {
	gray := make([]float64, width*height)
	for i := 0; i < width*height; i++ {
		o := i * 4
		gray[i] = 0.299*float64(buf[o]) + 0.587*float64(buf[o+1]) + 0.114*float64(buf[o+2])
	}
	return gray
}

// focusScore applies a 3x3 Laplacian to every interior pixel and maps the
// variance of the responses onto [0,1]. Sharp frames have high variance.
func focusScore(gray []float64, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}
	n := 0
	sum := 0.0
	sumSq := 0.0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			lap := gray[i-width] + gray[i-1] - 4*gray[i] + gray[i+1] + gray[i+width]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return clamp01((variance - focusVarMin) / (focusVarMax - focusVarMin))
}

// lightingScore blends brightness, contrast, clipping and a low-contrast
// penalty from a 256-bin histogram: 0.4/0.3/0.2/0.1.
func lightingScore(gray []float64) float64 {
	var hist [256]int
	total := len(gray)
	sum := 0.0
	for _, g := range gray {
		b := int(g)
		if b > 255 {
			b = 255
		}
		hist[b]++
		sum += g
	}
	mean := sum / float64(total)

	sumSq := 0.0
	for _, g := range gray {
		d := g - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(total))

	brightness := 1.0
	if mean < brightLow {
		brightness = clamp01(1 - (brightLow-mean)/brightLow)
	} else if mean > brightHigh {
		brightness = clamp01(1 - (mean-brightHigh)/(255-brightHigh))
	}

	contrast := math.Min(1, stddev/60)

	clipped := 0
	for b := 0; b <= 5; b++ {
		clipped += hist[b]
	}
	for b := 250; b <= 255; b++ {
		clipped += hist[b]
	}
	clipRatio := float64(clipped) / float64(total)
	clipPenalty := math.Max(0, 1-clipRatio*5)

	lowContrast := 1.0
	if stddev < 30 {
		lowContrast = 0.5
	}

	return 0.4*brightness + 0.3*contrast + 0.2*clipPenalty + 0.1*lowContrast
}

// stabilityScore compares against the retained previous frame with a
// spatial sample stride; without a comparable prior frame it reports 1.
func (a *Analyzer) stabilityScore(gray []float64, width, height int) float64 {
	if a.prev == nil || a.prevW != width || a.prevH != height {
		return 1.0
	}
	stride := int(math.Sqrt(float64(width*height) / 1000))
	if stride < 1 {
		stride = 1
	}
	n := 0
	diff := 0.0
	for y := 0; y < height; y += stride {
		for x := 0; x < width; x += stride {
			i := y*width + x
			diff += math.Abs(gray[i] - a.prev[i])
			n++
		}
	}
	meanDiff := diff / float64(n)
	return math.Max(0, 1-meanDiff/motionThreshold)
}

// deriveIssues maps scores to the ordered issue list. Order is stable:
// blur, low light, glare, motion.
func deriveIssues(focus, lighting, stability float64) []Issue {
	var issues []Issue
	switch {
	case focus < 0.3:
		issues = append(issues, Issue{constants.IssueBlur, constants.SeverityHigh, "image is too blurry"})
	case focus < 0.5:
		issues = append(issues, Issue{constants.IssueBlur, constants.SeverityMedium, "image is slightly blurry"})
	}
	switch {
	case lighting < 0.3:
		issues = append(issues, Issue{constants.IssueLowLight, constants.SeverityHigh, "lighting is too dark"})
	case lighting < 0.5:
		issues = append(issues, Issue{constants.IssueLowLight, constants.SeverityMedium, "lighting is poor"})
	case lighting > 0.95:
		issues = append(issues, Issue{constants.IssueGlare, constants.SeverityMedium, "possible glare on document"})
	}
	switch {
	case stability < 0.5:
		issues = append(issues, Issue{constants.IssueMotion, constants.SeverityHigh, "hold the device steady"})
	case stability < 0.7:
		issues = append(issues, Issue{constants.IssueMotion, constants.SeverityMedium, "slight movement detected"})
	}
	return issues
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
