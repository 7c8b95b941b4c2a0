package report_builder

import (
	"strings"

	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

const (
	fallbackExplanation  = "{name}: {description}. Your result is {value} {unit}."
	fallbackUnclassified = "{name} is not a recognized test. Your result is {value} {unit}."
	rangeNotAvailable    = "not available"
)

func (s *Simplifier) explain(m *Measurement) string {
	t := s.kb.Templates()
	tpl := t.Explanation
	switch {
	case m.Entry == nil:
		tpl = t.UnclassifiedExplanation
		if tpl == "" {
			tpl = fallbackUnclassified
		}
	case m.Entry.ExplanationTemplate != "":
		tpl = m.Entry.ExplanationTemplate
	case tpl == "":
		tpl = fallbackExplanation
	}
	return render(tpl, m)
}

func (s *Simplifier) note(m *Measurement) string {
	if m.Entry != nil {
		if n, ok := m.Entry.Note(m.Status); ok {
			return render(n, m)
		}
	}
	if n := s.kb.Templates().Notes[m.Status]; n != "" {
		return render(n, m)
	}
	return m.Status.Label()
}

// render substitutes {name} {value} {unit} {range} {low} {high} {status} and
// {description} in tpl.
func render(tpl string, m *Measurement) string {
	rng, low, high := rangeNotAvailable, "", ""
	if m.Range != nil {
		rng = m.Range.String()
		low = lab.FormatNumber(m.Range.Low)
		high = lab.FormatNumber(m.Range.High)
	}
	desc := ""
	if m.Entry != nil {
		desc = m.Entry.Description
	}
	out := strings.NewReplacer(
		"{name}", m.DisplayName(),
		"{value}", lab.FormatNumber(m.Value),
		"{unit}", m.Unit,
		"{range}", rng,
		"{low}", low,
		"{high}", high,
		"{status}", m.Status.Label(),
		"{description}", desc,
	).Replace(tpl)
	return tidy(out)
}

var punctuationSpacing = strings.NewReplacer(" .", ".", " ,", ",", "( ", "(", " )", ")")

// tidy collapses the whitespace left behind by empty placeholders.
func tidy(s string) string {
	return punctuationSpacing.Replace(strings.Join(strings.Fields(s), " "))
}

// recommend builds the recommendation list in priority order: urgent advice
// when anything is critical, advice for each category with a result outside
// its range (group order), follow-up when anything is abnormal, the general
// items, then the disclaimer. Duplicates are dropped.
func (s *Simplifier) recommend(r *Report) []string {
	adv := s.kb.Advice()
	out := make([]string, 0, 16)
	seen := make(map[string]bool)
	add := func(items []string) {
		for _, it := range items {
			if it == "" || seen[it] {
				continue
			}
			seen[it] = true
			out = append(out, it)
		}
	}

	if r.HasCritical() {
		add(adv.Urgent)
	}
	if r.Summary.Abnormal() > 0 {
		for _, g := range r.Groups {
			if groupAbnormal(g) {
				add(adv.Categories[g.Category])
			}
		}
		add(adv.FollowUp)
	}
	add(adv.General)
	add(adv.Disclaimer)
	return out
}

func groupAbnormal(g CategoryGroup) bool {
	for _, m := range g.Measurements {
		if m.Status.IsAbnormal() {
			return true
		}
	}
	return false
}
