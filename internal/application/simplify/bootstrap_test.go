package simplify

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/config"
	"github.com/sneharawat080/medsimplify/internal/testutil"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

func TestKnowledgeBaseSource(t *testing.T) {
	cfg := config.Default()

	src, closeFn, err := KnowledgeBaseSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "embedded", src.Name())
	assert.NoError(t, closeFn())

	cfg.KB.Source = config.KBSourceFile
	cfg.KB.Path = "/etc/medsimplify/kb.yaml"
	src, _, err = KnowledgeBaseSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "file:/etc/medsimplify/kb.yaml", src.Name())

	cfg.KB.Source = config.KBSourceMinIO
	cfg.KB.Bucket, cfg.KB.Object = "kb", "lab_tests.yaml"
	cfg.MinIO.Endpoint = "127.0.0.1:9000"
	src, closeFn, err = KnowledgeBaseSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "minio://kb/lab_tests.yaml", src.Name())
	assert.NoError(t, closeFn())

	cfg.KB.Source = "ftp"
	_, _, err = KnowledgeBaseSource(cfg, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestLoadKnowledgeBase_File(t *testing.T) {
	cfg := config.Default()
	cfg.KB.Source = config.KBSourceFile
	cfg.KB.Path = filepath.Join("..", "..", "intelligence", "lab_kb", "data", "lab_tests.yaml")

	logger := testutil.NewMockLogger()
	kb, err := LoadKnowledgeBase(context.Background(), cfg, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, 33, kb.Len())

	msg, ok := logger.Find("info", "knowledge base loaded")
	require.True(t, ok)
	v, _ := msg.Field("tests")
	assert.Equal(t, 33, v)
}

func TestLoadKnowledgeBase_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.KB.Source = config.KBSourceFile
	cfg.KB.Path = filepath.Join(t.TempDir(), "absent.yaml")

	logger := testutil.NewMockLogger()
	_, err := LoadKnowledgeBase(context.Background(), cfg, logger, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKBSourceUnavailable))
	assert.True(t, logger.HasMessage("error", "failed to load knowledge base"))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.MaxTextLength = 10

	svc, kb, err := NewFromConfig(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, kb.Version(), svc.KnowledgeBaseVersion())

	_, err = svc.SimplifyText(context.Background(), &lab.SimplifyTextRequest{Text: "Sodium: 140 mmol/L"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSimplifyTextTooLong))
}
