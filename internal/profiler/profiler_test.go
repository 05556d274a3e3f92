package profiler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDisabledProfilerIsNoop(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	p := New(Config{}, zap.New(core))

	require.NoError(t, p.Start(context.Background()))
	p.LogMemStats()
	require.NoError(t, p.Stop())
	assert.Zero(t, logs.Len())
}

func TestHandlerInfoPage(t *testing.T) {
	t.Parallel()

	p := New(Config{Enable: true, HTTPPort: 6061}, zap.NewNop())
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	index, err := http.Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	defer index.Body.Close()
	assert.Equal(t, http.StatusOK, index.StatusCode)
}

func TestProfilesWrittenOnStop(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Enable:      true,
		CPUProfile:  filepath.Join(dir, "cpu.pprof"),
		MemProfile:  filepath.Join(dir, "mem.pprof"),
		ProfileTime: 60,
	}

	core, logs := observer.New(zapcore.InfoLevel)
	p := New(cfg, zap.New(core))

	require.NoError(t, p.Start(context.Background()))
	p.LogMemStats()
	require.NoError(t, p.Stop())
	require.NoError(t, p.stopCPUProfile())

	for _, path := range []string{cfg.CPUProfile, cfg.MemProfile} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Equal(t, 1, logs.FilterMessage("Memory statistics").Len())
}
