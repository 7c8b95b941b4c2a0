package lab_kb

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/sneharawat080/medsimplify/pkg/errors"
)

//go:embed data/lab_tests.yaml
var embeddedDocument []byte

//go:embed data/schema.json
var documentSchema string

// Document is the on-disk representation of the knowledge base.
type Document struct {
	Version   string       `yaml:"version"`
	Templates TemplatesDef `yaml:"templates"`
	Advice    AdviceDef    `yaml:"advice"`
	Tests     []TestDef    `yaml:"tests"`
}

// TemplatesDef holds document-wide text templates.
type TemplatesDef struct {
	Explanation  string            `yaml:"explanation"`
	Unclassified string            `yaml:"unclassified"`
	Notes        map[string]string `yaml:"notes"`
}

// AdviceDef holds the recommendation blocks keyed by purpose and category.
type AdviceDef struct {
	General    []string            `yaml:"general"`
	Urgent     []string            `yaml:"urgent"`
	FollowUp   []string            `yaml:"follow_up"`
	Disclaimer []string            `yaml:"disclaimer"`
	Categories map[string][]string `yaml:"categories"`
}

// TestDef is one test definition.
type TestDef struct {
	Key         string            `yaml:"key"`
	Name        string            `yaml:"name"`
	Category    string            `yaml:"category"`
	Unit        string            `yaml:"unit"`
	Range       *RangeDef         `yaml:"range"`
	Critical    *CriticalDef      `yaml:"critical"`
	Synonyms    []string          `yaml:"synonyms"`
	Description string            `yaml:"description"`
	Explanation string            `yaml:"explanation"`
	Notes       map[string]string `yaml:"notes"`
}

// RangeDef is an inclusive reference interval.
type RangeDef struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// CriticalDef holds optional escalation thresholds.
type CriticalDef struct {
	Low  *float64 `yaml:"low"`
	High *float64 `yaml:"high"`
}

// Source supplies the raw knowledge base document. Implementations exist for
// the embedded default, local files and object storage.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// EmbeddedSource serves the document compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded" }

func (EmbeddedSource) Fetch(_ context.Context) ([]byte, error) {
	return embeddedDocument, nil
}

// FileSource reads the document from a local path.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKBSourceUnavailable, "read knowledge base file").WithDetail(s.Path)
	}
	return data, nil
}

// Parse validates data against the document schema and decodes it.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New(errors.ErrCodeKBSchemaViolation, "knowledge base document is empty")
	}

	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKBSchemaViolation, "knowledge base is not valid YAML")
	}
	if err := validateSchema(generic); err != nil {
		return nil, err
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKBSchemaViolation, "decode knowledge base")
	}
	return &doc, nil
}

func validateSchema(doc interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeKBSchemaViolation, "validate knowledge base schema")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return errors.New(errors.ErrCodeKBSchemaViolation, "knowledge base does not match schema").
		WithDetail(strings.Join(msgs, "; "))
}

// Load fetches, parses and builds a KnowledgeBase from src.
func Load(ctx context.Context, src Source) (*KnowledgeBase, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(doc)
}

// LoadEmbedded builds the default knowledge base compiled into the binary.
func LoadEmbedded() (*KnowledgeBase, error) {
	return Load(context.Background(), EmbeddedSource{})
}

// MustLoadEmbedded is LoadEmbedded that panics on error. The embedded
// document is covered by tests, so a failure here is a build defect.
func MustLoadEmbedded() *KnowledgeBase {
	kb, err := LoadEmbedded()
	if err != nil {
		panic(fmt.Sprintf("lab_kb: embedded knowledge base is invalid: %v", err))
	}
	return kb
}
