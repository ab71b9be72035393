package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	in := "LINE ONE\r\n\r\n\r\n\r\nLINE\tTWO   spaced   \nend "
	out := Normalize(in)
	assert.Equal(t, "LINE ONE\n\nLINE TWO spaced\nend", out)
	assert.Empty(t, Normalize(""))
}

func TestParseFieldsPrefersLines(t *testing.T) {
	rec := Recognized{
		Lines: []RecognizedLine{
			{Text: "SOME HEADER", Confidence: 0.95},
			{Text: "Date: 12/03/2024", Confidence: 0.9},
		},
		FullText: "SOME HEADER\nDate: 12/03/2024",
	}

	fields := ParseFields(rec, DefaultFieldRules())
	require.NotEmpty(t, fields)
	assert.Equal(t, "document_date", fields[0].Name)
	assert.Equal(t, "12/03/2024", fields[0].Value)
	assert.InDelta(t, 0.9, fields[0].Confidence, 1e-9, "line match inherits the line confidence")
}

func TestParseFieldsWholeTextFallback(t *testing.T) {
	rec := Recognized{
		// No individual line carries the full pattern.
		Lines: []RecognizedLine{
			{Text: "garbage", Confidence: 0.4},
		},
		Words: []RecognizedWord{
			{Text: "AB", Confidence: 0.8},
			{Text: "123456", Confidence: 0.6},
			{Text: "elsewhere", Confidence: 0.1},
		},
		FullText: "garbage AB-123456 trailing",
	}

	fields := ParseFields(rec, DefaultFieldRules())
	var id *Field
	for i := range fields {
		if fields[i].Name == "identification_number" {
			id = &fields[i]
		}
	}
	require.NotNil(t, id)
	assert.Equal(t, "AB-123456", id.Value)
	// Mean of the two overlapping word confidences.
	assert.InDelta(t, 0.7, id.Confidence, 1e-9)
}

func TestParseFieldsDefaultConfidenceWithoutOverlap(t *testing.T) {
	rec := Recognized{
		FullText: "ref: INV-20240001",
	}
	fields := ParseFields(rec, DefaultFieldRules())
	var ref *Field
	for i := range fields {
		if fields[i].Name == "reference" {
			ref = &fields[i]
		}
	}
	require.NotNil(t, ref)
	assert.Equal(t, "INV-20240001", ref.Value)
	assert.InDelta(t, defaultWholeTextConfidence, ref.Confidence, 1e-9,
		"no recognized words overlap, fall back to the default")
}

func TestParseFieldsNilRules(t *testing.T) {
	rec := Recognized{FullText: "Date: 12/03/2024"}
	assert.Empty(t, ParseFields(rec, nil))
}
