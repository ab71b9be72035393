package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/doccapture/internal/common"
)

// localConfidenceCap keeps on-device results below the remote baseline;
// device recognition is usable but less trustworthy than the service.
const localConfidenceCap = 0.75

// LocalBackend adapts an injected on-device recognition engine and runs
// the heuristic field-parsing rules over its output.
type LocalBackend struct {
	engine Engine
	rules  []FieldRule
	logger *slog.Logger
}

// NewLocalBackend wires an engine with an ordered rule list. Passing nil
// rules yields raw text only, no parsed fields.
func NewLocalBackend(engine Engine, rules []FieldRule, logger *slog.Logger) (*LocalBackend, error) {
	if engine == nil {
		return nil, common.NewAppError("EXTRACT_ERROR", "recognition engine is nil", common.ErrNoBackend)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBackend{engine: engine, rules: rules, logger: logger}, nil
}

func (b *LocalBackend) Name() string { return "local" }

// Extract recognizes text on device and parses fields. Cancellation is
// checked between the recognition and parsing sub-phases.
func (b *LocalBackend) Extract(ctx context.Context, in Input) (Result, error) {
	rec, err := b.engine.Recognize(ctx, in)
	if err != nil {
		return Result{}, common.WrapError(err, "on-device recognition")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rec.FullText = Normalize(rec.FullText)
	fields := ParseFields(rec, b.rules)

	confidence := meanWordConfidence(rec.Words)
	if confidence > localConfidenceCap {
		confidence = localConfidenceCap
	}

	b.logger.Debug("extract.local.ok",
		"engine", b.engine.Name(),
		"lines", len(rec.Lines),
		"fields", len(fields),
		"confidence", confidence,
	)
	return Result{
		Success:    true,
		Fields:     fields,
		RawText:    rec.FullText,
		Confidence: confidence,
	}, nil
}

func meanWordConfidence(words []RecognizedWord) float64 {
	if len(words) == 0 {
		return defaultWholeTextConfidence
	}
	sum := 0.0
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
