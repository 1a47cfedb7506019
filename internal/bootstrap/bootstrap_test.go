package bootstrap

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/motionphoto/internal/config"
	"github.com/maauso/motionphoto/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            8080,
		TempDir:         "/work",
		MediaRoot:       "/media",
		CollisionPolicy: "rename",
		ScanWorkers:     2,
		WatchSettleMs:   100,
		LogFormat:       "text",
		LogLevel:        "info",
	}
}

func TestNewDependencies_Local(t *testing.T) {
	fsys := afero.NewMemMapFs()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := newDependencies(testConfig(), logger, fsys)
	require.NoError(t, err)

	assert.IsType(t, &storage.LocalStorage{}, deps.Store)
	assert.NotNil(t, deps.Engine)
	assert.NotNil(t, deps.Service)
	assert.NotNil(t, deps.Scanner)
	assert.NotNil(t, deps.Watcher)

	exists, _ := afero.DirExists(fsys, "/work")
	assert.True(t, exists)
}

func TestNewDependencies_S3(t *testing.T) {
	cfg := testConfig()
	cfg.S3Bucket = "bucket"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := newDependencies(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), afero.NewMemMapFs())
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Storage{}, deps.Store)
}

func TestDependencies_Handler(t *testing.T) {
	fsys := afero.NewMemMapFs()
	photo := bytes.Repeat([]byte{0x5a}, 200_000)
	copy(photo[150_000:], []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p'})
	require.NoError(t, afero.WriteFile(fsys, "/media/a.jpg", photo, 0o644))

	deps, err := newDependencies(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), fsys)
	require.NoError(t, err)
	h := deps.Handler()

	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"path":"a.jpg"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_container":true`)

	req = httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"path":"/etc/passwd"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
