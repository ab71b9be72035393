package extract

import (
	"regexp"
	"strings"
)

// defaultWholeTextConfidence is used for whole-document matches with no
// overlapping recognized words to average over.
const defaultWholeTextConfidence = 0.6

// FieldRule names one pattern applied to recognized text. Rules are
// applied in order; the first match per rule wins. If the pattern has a
// capture group, group 1 is the value, otherwise the whole match.
type FieldRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultFieldRules is the built-in heuristic rule set. It is a clearly
// ad hoc post-processing stage: callers with a recognition engine that
// yields structured fields directly should pass their own rules or none.
func DefaultFieldRules() []FieldRule {
	return []FieldRule{
		{Name: "document_date", Pattern: regexp.MustCompile(`\b(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4}-\d{2}-\d{2})\b`)},
		{Name: "identification_number", Pattern: regexp.MustCompile(`\b([A-Z]{1,3}[- ]?\d{6,12})\b`)},
		{Name: "amount", Pattern: regexp.MustCompile(`\b(\d{1,3}(?:[.,]\d{3})*[.,]\d{2})\b`)},
		{Name: "reference", Pattern: regexp.MustCompile(`(?i)\bref(?:erence)?[.:\s]+([A-Z0-9-]{4,})`)},
	}
}

// ParseFields applies rules against line-level text first (the
// higher-trust source), falling back to the whole document text when no
// line matched. Whole-text match confidence is the mean confidence of
// recognized words overlapping the matched value.
func ParseFields(rec Recognized, rules []FieldRule) []Field {
	var fields []Field
	for _, rule := range rules {
		if f, ok := matchLines(rec.Lines, rule); ok {
			fields = append(fields, f)
			continue
		}
		if f, ok := matchWholeText(rec, rule); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func matchLines(lines []RecognizedLine, rule FieldRule) (Field, bool) {
	for _, line := range lines {
		if m := rule.Pattern.FindStringSubmatch(line.Text); m != nil {
			return Field{
				Name:       rule.Name,
				Value:      matchValue(m),
				Confidence: line.Confidence,
			}, true
		}
	}
	return Field{}, false
}

func matchWholeText(rec Recognized, rule FieldRule) (Field, bool) {
	m := rule.Pattern.FindStringSubmatch(rec.FullText)
	if m == nil {
		return Field{}, false
	}
	value := matchValue(m)
	return Field{
		Name:       rule.Name,
		Value:      value,
		Confidence: overlapConfidence(rec.Words, value),
	}, true
}

func matchValue(m []string) string {
	if len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return m[0]
}

// overlapConfidence averages the confidences of words appearing inside
// the matched value.
func overlapConfidence(words []RecognizedWord, value string) float64 {
	sum := 0.0
	n := 0
	for _, w := range words {
		if w.Text != "" && strings.Contains(value, w.Text) {
			sum += w.Confidence
			n++
		}
	}
	if n == 0 {
		return defaultWholeTextConfidence
	}
	return sum / float64(n)
}
