// Package support holds the godog step definitions for the CLI feature suite.
package support

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/godetect/cmd/godetect/cmd"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/server"
	"github.com/MeKo-Tech/godetect/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastOutput  string
	LastStderr  string
	LastError   error

	// Test environment
	TempDir   string
	ModelsDir string
	Engine    *testutil.FakeEngine

	// HTTP state
	Server           *server.Server
	HTTPServer       *httptest.Server
	LastHTTPStatus   int
	LastHTTPResponse string
	LastHTTPHeaders  map[string]string

	restoreFactory func()
	restoreEnv     []func()
}

// NewTestContext creates a scenario context with its own temp dir and fake engine.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "godetect-cli-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	modelsDir := filepath.Join(tempDir, "models")
	if err := os.MkdirAll(modelsDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create models dir: %w", err)
	}

	testCtx := &TestContext{
		TempDir:         tempDir,
		ModelsDir:       modelsDir,
		Engine:          testutil.NewFakeEngine(),
		LastHTTPHeaders: make(map[string]string),
	}
	testCtx.restoreFactory = cmd.SetInferencerFactory(func(pipeline.Config) (pipeline.Inferencer, error) {
		return testCtx.Engine, nil
	})
	testCtx.setEnv("GODETECT_MODELS_DIR", modelsDir)
	return testCtx, nil
}

// setEnv sets an environment variable until Cleanup runs.
func (testCtx *TestContext) setEnv(name, value string) {
	prev, had := os.LookupEnv(name)
	_ = os.Setenv(name, value)
	testCtx.restoreEnv = append(testCtx.restoreEnv, func() {
		if had {
			_ = os.Setenv(name, prev)
		} else {
			_ = os.Unsetenv(name)
		}
	})
}

// Path resolves a scenario-relative path inside the temp dir.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, filepath.FromSlash(name))
}

// expand replaces {tmp} in step arguments with the scenario temp dir.
func (testCtx *TestContext) expand(s string) string {
	return strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
}

// Cleanup stops the server, restores globals and removes the temp dir.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Server != nil {
		_ = testCtx.Server.Close()
		testCtx.Server = nil
	}
	if testCtx.restoreFactory != nil {
		testCtx.restoreFactory()
	}
	for i := len(testCtx.restoreEnv) - 1; i >= 0; i-- {
		testCtx.restoreEnv[i]()
	}
	testCtx.restoreEnv = nil

	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		return fmt.Errorf("failed to remove temp dir: %w", err)
	}
	return nil
}
