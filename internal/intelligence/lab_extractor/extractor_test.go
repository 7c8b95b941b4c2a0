package lab_extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

func names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestExtract_EmptyAndProse(t *testing.T) {
	x := NewExtractor()
	assert.Empty(t, x.Extract(""))
	assert.Empty(t, x.Extract("   \n\t "))
	assert.Empty(t, x.Extract("Patient feels fine today."))
}

func TestExtract_SingleMeasurement(t *testing.T) {
	cs := NewExtractor().Extract("Hemoglobin: 14.2 g/dL (13.8-17.2)")
	require.Len(t, cs, 1)
	c := cs[0]
	assert.Equal(t, "Hemoglobin", c.Name)
	assert.Equal(t, 14.2, c.Value)
	assert.Equal(t, "g/dL", c.Unit)
	assert.Equal(t, &lab.Range{Low: 13.8, High: 17.2}, c.InlineRange)
	assert.Equal(t, RuleSeparated, c.Rule)
	assert.Equal(t, 1, c.Line)
}

func TestExtract_MultiplePerLine(t *testing.T) {
	cs := NewExtractor().Extract("Hemoglobin 14.2 g/dL, Glucose 108 mg/dL; Sodium: 140")
	require.Len(t, cs, 3)
	assert.Equal(t, []string{"Hemoglobin", "Glucose", "Sodium"}, names(cs))
	assert.Equal(t, RuleAdjacent, cs[0].Rule)
	assert.Equal(t, RuleSeparated, cs[2].Rule)
	assert.Equal(t, 140.0, cs[2].Value)
}

func TestExtract_OrderAndSpans(t *testing.T) {
	text := "Na 140\nHemoglobin: 14.2 g/dL\n\nGlucose: 108 mg/dL (70-100)"
	cs := NewExtractor().Extract(text)
	require.Len(t, cs, 3)
	assert.Equal(t, []string{"Na", "Hemoglobin", "Glucose"}, names(cs))
	assert.Equal(t, []int{1, 2, 4}, []int{cs[0].Line, cs[1].Line, cs[2].Line})

	normalized := Normalize(text)
	for _, c := range cs {
		assert.Equal(t, c.Raw, normalized[c.Span.Start:c.Span.End])
	}
	assert.Equal(t, 7, cs[1].Span.Start)
	assert.False(t, cs[0].Span.Overlaps(cs[1].Span))
}

func TestExtract_TableRows(t *testing.T) {
	text := strings.Join([]string{
		"Test            Result   Unit     Reference",
		"| Hemoglobin | 14.2 | g/dL | 13.8-17.2 |",
		"| Platelets  | 1,250 | 10^9/L | 150-450 |",
	}, "\n")
	cs := NewExtractor().Extract(text)
	require.Len(t, cs, 2)
	assert.Equal(t, RuleRanged, cs[0].Rule)
	assert.Equal(t, 1250.0, cs[1].Value)
	assert.Equal(t, "10^9/L", cs[1].Unit)
	assert.Equal(t, &lab.Range{Low: 150, High: 450}, cs[1].InlineRange)
}

func TestExtract_WholeTextFallback(t *testing.T) {
	cs := NewExtractor().Extract("Hemoglobin:\n14.2 g/dL")
	require.Len(t, cs, 1)
	assert.Equal(t, "Hemoglobin", cs[0].Name)
	assert.Equal(t, 0, cs[0].Line)
	assert.Equal(t, "Hemoglobin: 14.2 g/dL", cs[0].Raw)
}

func TestExtract_SkipsReportFurniture(t *testing.T) {
	text := "Date: 12/05/2024\nAge: 45 years\nPage 1\nBP 120/80\nGlucose: 108 mg/dL"
	cs := NewExtractor().Extract(text)
	require.Len(t, cs, 1)
	assert.Equal(t, "Glucose", cs[0].Name)
}

func TestExtract_FullWidthInput(t *testing.T) {
	cs := NewExtractor().Extract("Glucose：１０８ mg/dL")
	require.Len(t, cs, 1)
	assert.Equal(t, 108.0, cs[0].Value)
}

func TestExtract_Idempotent(t *testing.T) {
	text := "WBC 7.5 x10^9/L\nPotassium: 7.5 mEq/L (3.5-5.0)\nTSH 2.1"
	x := NewExtractor()
	assert.Equal(t, x.Extract(text), x.Extract(text))
}

func TestExtract_LowConfidenceIsLoggedNotRaised(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	x := NewExtractor(WithLogger(logging.NewLoggerFromCore(core)))

	cs := x.Extract("Hemoglobin 14.2 15.1 16.0\nCreatinine 1.2.3")
	assert.Empty(t, cs)
	assert.Equal(t, 1, logs.FilterMessage("low-confidence line skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("discarding malformed numeric token").Len())
}

func TestExtract_CustomRules(t *testing.T) {
	x := NewExtractor(WithRules(Rule{Name: RuleAdjacent, Apply: matchAdjacent}))
	assert.Equal(t, []string{RuleAdjacent}, x.Rules())
	assert.Empty(t, x.Extract("Hemoglobin: 14.2"))
	assert.Len(t, x.Extract("Hemoglobin 14.2"), 1)
}

func TestNewExtractor_NilLogger(t *testing.T) {
	x := NewExtractor(WithLogger(nil))
	assert.NotPanics(t, func() { x.Extract("a 1 2 3") })
}

func TestSpan_Overlaps(t *testing.T) {
	assert.True(t, Span{0, 5}.Overlaps(Span{4, 8}))
	assert.False(t, Span{0, 5}.Overlaps(Span{5, 8}))
	assert.True(t, Span{2, 3}.Overlaps(Span{0, 10}))
}
