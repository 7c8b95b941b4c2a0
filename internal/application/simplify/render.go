package simplify

import (
	"fmt"
	"strings"

	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

const (
	headerRule  = 50
	sectionRule = 30
)

// RenderText lays a response out as plain text, one block per measurement,
// grouped by category.
func RenderText(resp *lab.SimplifyResponse) string {
	var b strings.Builder
	b.WriteString("MEDICAL REPORT SIMPLIFICATION\n")
	b.WriteString(strings.Repeat("=", headerRule) + "\n")
	fmt.Fprintf(&b, "Report Type: %s\n", strings.ToUpper(resp.ReportType))
	fmt.Fprintf(&b, "Analysis Date: %s\n\n", resp.Timestamp.Format("2006-01-02 15:04"))

	if resp.Summary.TestsFound == 0 {
		b.WriteString("No structured test results found in the report.\n")
		b.WriteString("Please ensure your report contains values with normal ranges.\n")
		return b.String()
	}

	for _, c := range resp.Categories {
		b.WriteString(strings.ToUpper(c.Label) + "\n")
		b.WriteString(strings.Repeat("-", sectionRule) + "\n")
		for _, m := range c.Measurements {
			fmt.Fprintf(&b, "%s %s: %s", m.Indicator, m.DisplayName, lab.FormatNumber(m.Value))
			if m.Unit != "" {
				b.WriteString(" " + m.Unit)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "   Status: %s", m.StatusLabel)
			if m.Range != nil {
				fmt.Fprintf(&b, " (range %s)", m.Range)
			}
			b.WriteString("\n")
			if m.Explanation != "" {
				fmt.Fprintf(&b, "   What it means: %s\n", m.Explanation)
			}
			if m.Note != "" {
				fmt.Fprintf(&b, "   Note: %s\n", m.Note)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderRecommendations lists recommendations one per line.
func RenderRecommendations(recs []string) string {
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("RECOMMENDATIONS\n")
	b.WriteString(strings.Repeat("-", sectionRule) + "\n")
	for _, r := range recs {
		b.WriteString(r + "\n")
	}
	return b.String()
}
