package minio

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minio/minio-go/v7"

	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/internal/testutil"
	apperrors "github.com/sneharawat080/medsimplify/pkg/errors"
)

var _ lab_kb.Source = (*KBSource)(nil)

func TestKBSource_Name(t *testing.T) {
	src := NewKBSource(nil, "medsimplify-kb", "lab_tests.yaml")
	assert.Equal(t, "minio://medsimplify-kb/lab_tests.yaml", src.Name())
}

func TestKBSource_LoadsKnowledgeBase(t *testing.T) {
	doc, err := os.ReadFile("../../../intelligence/lab_kb/data/lab_tests.yaml")
	require.NoError(t, err)

	api := new(mockObjectAPI)
	api.On("GetObject", mock.Anything, "kb", "lab_tests.yaml").
		Return(io.NopCloser(bytes.NewReader(doc)), nil)

	src := NewKBSource(NewClientWithAPI(api, Config{}, testutil.NewMockLogger()), "kb", "lab_tests.yaml")
	kb, err := lab_kb.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Greater(t, kb.Len(), 0)

	_, ok := kb.Lookup("hemoglobin")
	assert.True(t, ok)
}

func TestKBSource_MissingObject(t *testing.T) {
	api := new(mockObjectAPI)
	api.On("GetObject", mock.Anything, "kb", "nope.yaml").
		Return(nil, minio.ErrorResponse{Code: "NoSuchBucket"})

	src := NewKBSource(NewClientWithAPI(api, Config{}, nil), "kb", "nope.yaml")
	_, err := lab_kb.Load(context.Background(), src)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeKBSourceUnavailable))
}

func TestKBSource_Publish(t *testing.T) {
	api := new(mockObjectAPI)
	api.On("BucketExists", mock.Anything, "kb").Return(true, nil)
	api.On("PutObject", mock.Anything, "kb", "lab_tests.yaml", mock.Anything, int64(4),
		minio.PutObjectOptions{ContentType: "application/yaml"}).
		Return(minio.UploadInfo{Size: 4}, nil)

	src := NewKBSource(NewClientWithAPI(api, Config{}, nil), "kb", "lab_tests.yaml")
	require.NoError(t, src.Publish(context.Background(), []byte("a: 1")))
	api.AssertExpectations(t)
}

