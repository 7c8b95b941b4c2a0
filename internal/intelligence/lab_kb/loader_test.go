package lab_kb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

func TestLoadEmbedded(t *testing.T) {
	kb, err := LoadEmbedded()
	require.NoError(t, err)
	assert.NotEmpty(t, kb.Version())
	assert.GreaterOrEqual(t, kb.Len(), 30)

	for _, e := range kb.Entries() {
		assert.True(t, e.Category.IsKnown(), e.Key)
		assert.NotEmpty(t, e.Description, e.Key)
		require.NotNil(t, e.Range, e.Key)
	}

	for _, c := range lab.KnownCategories() {
		assert.NotEmpty(t, kb.CategoryAdvice(c), c)
	}
	assert.NotEmpty(t, kb.Advice().Urgent)
	assert.NotEmpty(t, kb.Advice().Disclaimer)
	for _, s := range lab.AllStatuses() {
		assert.NotEmpty(t, kb.Templates().Notes[s], s)
	}
}

func TestLoadEmbedded_ReferenceEntries(t *testing.T) {
	kb := MustLoadEmbedded()

	hgb, ok := kb.Lookup("Hemoglobin")
	require.True(t, ok)
	assert.Equal(t, lab.CategoryBloodCount, hgb.Category)
	assert.Equal(t, lab.Range{Low: 13.8, High: 17.2}, *hgb.Range)

	k, ok := kb.Lookup("potassium")
	require.True(t, ok)
	require.NotNil(t, k.CriticalHigh)
	assert.Equal(t, 6.5, *k.CriticalHigh)

	chol, ok := kb.Lookup("Total Cholesterol")
	require.True(t, ok)
	assert.Equal(t, "cholesterol-total", chol.Key)

	a1c, ok := kb.Lookup("Hemoglobin A1c")
	require.True(t, ok)
	assert.Equal(t, "hba1c", a1c.Key)

	inr, ok := kb.Lookup("INR")
	require.True(t, ok)
	assert.Nil(t, inr.CriticalLow)
	assert.NotNil(t, inr.CriticalHigh)

	vitD, ok := kb.Lookup("25-OH Vitamin D")
	require.True(t, ok)
	assert.Equal(t, "vitamin-d", vitD.Key)
	assert.Equal(t, lab.CategoryOther, vitD.Category)
	assert.Equal(t, "ng/mL", vitD.Unit)
	assert.Equal(t, lab.Range{Low: 30, High: 100}, *vitD.Range)
}

func TestLoadEmbedded_CoversReferenceTerms(t *testing.T) {
	kb := MustLoadEmbedded()
	terms := []string{
		"hemoglobin", "wbc", "rbc", "platelets", "hematocrit", "mcv",
		"glucose", "creatinine", "bun", "sodium", "potassium", "chloride", "calcium", "egfr",
		"alt", "ast", "alkaline phosphatase", "bilirubin", "albumin",
		"cholesterol", "ldl", "hdl", "triglycerides",
		"tsh", "t4", "t3",
		"hba1c", "vitamin d", "iron", "ferritin", "psa", "inr",
	}
	for _, term := range terms {
		_, ok := kb.Lookup(term)
		assert.True(t, ok, term)
	}
	assert.Equal(t, len(terms)+1, kb.Len(), "reference terms plus fasting glucose")
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "   \n"},
		{"not yaml", "tests: [\n"},
		{"missing version", "tests:\n  - key: a\n    name: A\n    category: other\n"},
		{"unknown category", "version: v\ntests:\n  - key: a\n    name: A\n    category: cardiac\n"},
		{"bad key pattern", "version: v\ntests:\n  - key: 'Hemo Globin'\n    name: A\n    category: other\n"},
		{"range missing high", "version: v\ntests:\n  - key: a\n    name: A\n    category: other\n    range: {low: 1}\n"},
		{"unknown field", "version: v\ntests:\n  - key: a\n    name: A\n    category: other\n    loinc: 123\n"},
		{"note for bad status", "version: v\ntests:\n  - key: a\n    name: A\n    category: other\n    notes: {borderline: x}\n"},
		{"no tests", "version: v\ntests: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeKBSchemaViolation), err.Error())
		})
	}
}

func TestParse_Valid(t *testing.T) {
	doc, err := Parse([]byte(`
version: "1"
tests:
  - key: glucose
    name: Blood Sugar
    category: metabolic-panel
    unit: mg/dL
    range: {low: 70, high: 100}
    critical: {high: 400}
    synonyms: [glu]
`))
	require.NoError(t, err)
	require.Len(t, doc.Tests, 1)
	assert.Equal(t, "glucose", doc.Tests[0].Key)
	require.NotNil(t, doc.Tests[0].Critical)
	assert.Nil(t, doc.Tests[0].Critical.Low)
	assert.Equal(t, 400.0, *doc.Tests[0].Critical.High)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "file"
tests:
  - key: tsh
    name: TSH
    category: thyroid-function
    range: {low: 0.4, high: 4.0}
`), 0o600))

	kb, err := Load(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "file", kb.Version())
	assert.Equal(t, "file:"+path, FileSource{Path: path}.Name())

	_, err = Load(context.Background(), FileSource{Path: filepath.Join(dir, "missing.yaml")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKBSourceUnavailable))
}

func TestLoad_SemanticErrorAfterSchema(t *testing.T) {
	_, err := Parse([]byte("version: v\ntests:\n  - key: a\n    name: A\n    category: other\n  - key: a\n    name: B\n    category: other\n"))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v\ntests:\n  - key: a\n    name: A\n    category: other\n  - key: a\n    name: B\n    category: other\n"), 0o600))
	_, err = Load(context.Background(), FileSource{Path: path})
	assert.True(t, errors.IsCode(err, errors.ErrCodeKBDuplicateKey))
}
