package lab

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, StatusCriticalHigh.IsCritical())
	assert.True(t, StatusCriticalLow.IsAbnormal())
	assert.True(t, StatusLow.IsAbnormal())
	assert.False(t, StatusLow.IsCritical())
	assert.False(t, StatusNormal.IsAbnormal())
	assert.False(t, StatusUnknown.IsAbnormal())
	assert.False(t, Status("slightly-high").IsValid())
	for _, s := range AllStatuses() {
		assert.True(t, s.IsValid(), s)
	}
}

func TestStatus_Label(t *testing.T) {
	assert.Equal(t, "Critically High", StatusCriticalHigh.Label())
	assert.Equal(t, "Review Needed", StatusUnknown.Label())
}

func TestStatus_Indicator(t *testing.T) {
	assert.Equal(t, "🚨", StatusCriticalLow.Indicator())
	assert.Equal(t, "🔺", StatusHigh.Indicator())
	assert.Equal(t, "✅", StatusNormal.Indicator())
	assert.Equal(t, "📋", Status("bogus").Indicator())
}

func TestCategory_IsKnown(t *testing.T) {
	assert.True(t, CategoryLipidPanel.IsKnown())
	assert.False(t, CategoryUnclassified.IsKnown())
	assert.False(t, Category("cardiac").IsKnown())
	assert.Equal(t, "Thyroid Function", CategoryThyroidFunction.Label())
}

func TestRange_ContainsIsInclusive(t *testing.T) {
	r := Range{Low: 13.8, High: 17.2}
	assert.True(t, r.Contains(13.8))
	assert.True(t, r.Contains(17.2))
	assert.False(t, r.Contains(13.79))
	assert.False(t, r.Contains(17.21))
	assert.Equal(t, "13.8-17.2", r.String())
	assert.False(t, Range{Low: 5, High: 1}.Valid())
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "150", FormatNumber(150))
	assert.Equal(t, "0.7", FormatNumber(0.7))
	assert.Equal(t, "1250.5", FormatNumber(1250.5))
}

func TestSimplifyResponse_JSONShape(t *testing.T) {
	resp := SimplifyResponse{
		ReportType: "General",
		Summary: SummaryDTO{
			StatusCounts: map[Status]int{StatusHigh: 1},
		},
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "General", decoded["report_type"])
	summary := decoded["summary"].(map[string]interface{})
	assert.Equal(t, float64(1), summary["status_counts"].(map[string]interface{})["high"])
}
