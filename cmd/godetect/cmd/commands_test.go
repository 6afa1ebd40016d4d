package cmd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/godetect/internal/cache"
	"github.com/MeKo-Tech/godetect/internal/config"
	"github.com/MeKo-Tech/godetect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageCommand(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteTestImage(t, dir, "a.png", 100, 100)
	b := testutil.WriteTestImage(t, dir, "b.jpg", 100, 100)

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, "image", a, b)
		require.NoError(t, err)
		var results []map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &results))
		assert.Len(t, results, 2)
	})

	t.Run("table", func(t *testing.T) {
		stdout, _, err := execute(t, "image", "--format", "table", a)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Person")
		assert.Contains(t, stdout, "TOTAL")
	})

	t.Run("text without title case", func(t *testing.T) {
		stdout, _, err := execute(t, "image", "-f", "text", "--title-case=false", a)
		require.NoError(t, err)
		assert.Contains(t, stdout, "person 0.920")
	})

	t.Run("csv to file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "res", "out.csv")
		stdout, _, err := execute(t, "image", "--format", "csv", "--output", out, a)
		require.NoError(t, err)
		assert.Empty(t, stdout)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(data), "source,label,score,x1,y1,x2,y2")
	})

	t.Run("no args", func(t *testing.T) {
		_, _, err := execute(t, "image")
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, _, err := execute(t, "image", "--format", "xml", a)
		assert.Error(t, err)
	})
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTestImage(t, dir, "a.png", 32, 32)
	testutil.WriteTestImage(t, filepath.Join(dir, "nested"), "b.png", 32, 32)

	stdout, _, err := execute(t, "batch", dir)
	require.NoError(t, err)
	var flat struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &flat))
	assert.Equal(t, 1, flat.Count)

	stdout, stderr, err := execute(t, "batch", "--recursive", "--workers", "2", "--stats", dir)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &flat))
	assert.Equal(t, 2, flat.Count)
	assert.Contains(t, stderr, "Processing Statistics")

	_, _, err = execute(t, "batch", t.TempDir())
	assert.Error(t, err)

	_, _, err = execute(t, "batch", "--workers", "0", dir)
	assert.Error(t, err)
}

func TestPDFCommandErrors(t *testing.T) {
	_, _, err := execute(t, "pdf", "--pages", "3-1", "doc.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page range")

	_, _, err = execute(t, "pdf", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	file := filepath.Join(t.TempDir(), "godetect.yaml")

	stdout, _, err := execute(t, "config", "init", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration written")
	assert.True(t, testutil.FileExists(file))

	_, _, err = execute(t, "config", "init", file)
	assert.Error(t, err, "existing file needs --force")
	_, _, err = execute(t, "config", "init", "--force", file)
	assert.NoError(t, err)

	stdout, stderr, err := execute(t, "--config", file, "--score-threshold", "0.7", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "score_threshold: 0.7")
	assert.Contains(t, stderr, "Configuration file used: "+file)

	stdout, _, err = execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "valid")

	_, _, err = execute(t, "--on-missing", "ignore", "config", "validate")
	assert.Error(t, err)
}

func TestModelsCommands(t *testing.T) {
	modelsDir := t.TempDir()
	stdout, _, err := execute(t, "--models-dir", modelsDir, "models", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ssdlite-mobilenet-v2")
	assert.Contains(t, stdout, "no")

	src := filepath.Join(t.TempDir(), "ssd.onnx")
	require.NoError(t, os.WriteFile(src, []byte("onnx"), 0o600))
	stdout, _, err = execute(t, "--models-dir", modelsDir, "models", "fetch", "--url", src)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Model available at")
	assert.True(t, testutil.FileExists(filepath.Join(modelsDir, "detection", "ssdlite_mobilenet_v2.onnx")))

	_, _, err = execute(t, "--models-dir", modelsDir, "models", "fetch")
	assert.Error(t, err, "no URL configured")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "godetect dev")
	assert.Contains(t, stdout, "commit:")
}

func TestServeInvalidPort(t *testing.T) {
	_, _, err := execute(t, "serve", "--port", "70000")
	require.Error(t, err)
}

func TestServerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMinute = 5
	cfg.Server.RateLimit.MaxDataPerDayMB = 2
	cfg.Cache.Backend = cache.BackendMemory
	a := &app{cfg: &cfg}

	sc := a.serverConfig()
	require.NotNil(t, sc.RateLimit)
	assert.Equal(t, 5, sc.RateLimit.RequestsPerMinute)
	assert.Equal(t, int64(2*1024*1024), sc.RateLimit.MaxDataPerDay)
	assert.Equal(t, cache.BackendMemory, sc.Cache.Backend)
	assert.Equal(t, int64(cfg.Server.MaxUploadMB), sc.MaxUploadMB)
	assert.True(t, sc.Format.TitleCase)

	cfg.Server.RateLimit.Enabled = false
	assert.Nil(t, a.serverConfig().RateLimit)
}

func TestServeUntilDone(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		ReadHeaderTimeout: time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, srv, time.Second) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestBenchCommand(t *testing.T) {
	img := testutil.WriteTestImage(t, t.TempDir(), "street.png", 120, 80)

	stdout, _, err := execute(t, "bench", "--iterations", "2", "--warmup", "0", img)
	require.NoError(t, err)
	assert.Contains(t, stdout, "street.png")
	assert.Contains(t, stdout, "120x80")

	_, _, err = execute(t, "bench", "--iterations", "0", img)
	require.ErrorContains(t, err, "iterations must be positive")

	_, _, err = execute(t, "bench", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
