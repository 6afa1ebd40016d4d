package benchmark

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T) (*pipeline.Pipeline, *testutil.FakeEngine) {
	t.Helper()
	engine := testutil.NewFakeEngine()
	pl, err := pipeline.NewBuilder().BuildWith(engine)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })
	return pl, engine
}

func TestRun(t *testing.T) {
	pl, engine := newPipeline(t)
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))

	res := Run(context.Background(), pl, Input{Name: "scene", Image: img}, Options{Iterations: 3, Warmup: 2})
	require.NoError(t, res.Error)
	assert.Equal(t, 5, engine.Calls(), "warmup runs are not timed but still execute")
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 48, res.Height)
	assert.Equal(t, 2, res.Objects)
	assert.LessOrEqual(t, res.Min, res.Average())
	assert.LessOrEqual(t, res.Average(), res.Max)
	assert.Positive(t, res.ImagesPerSecond())
	assert.Contains(t, res.String(), "scene: 3 iterations")
}

func TestRunDefaultsToOneIteration(t *testing.T) {
	pl, _ := newPipeline(t)
	res := Run(context.Background(), pl, Input{Name: "a", Image: image.NewNRGBA(image.Rect(0, 0, 8, 8))}, Options{})
	require.NoError(t, res.Error)
	assert.Equal(t, 1, res.Iterations)
}

func TestRunErrors(t *testing.T) {
	pl, engine := newPipeline(t)

	res := Run(context.Background(), pl, Input{Name: "nil"}, Options{Iterations: 1})
	require.Error(t, res.Error)
	assert.Contains(t, res.String(), "ERROR")

	engine.SetErr(errors.New("boom"))
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	res = Run(context.Background(), pl, Input{Name: "w", Image: img}, Options{Iterations: 1, Warmup: 1})
	require.ErrorContains(t, res.Error, "warmup failed")

	res = Run(context.Background(), pl, Input{Name: "i", Image: img}, Options{Iterations: 2})
	require.ErrorContains(t, res.Error, "iteration 1 failed")
	assert.Zero(t, res.Iterations)
	assert.Zero(t, res.Average())
	assert.Zero(t, res.ImagesPerSecond())
}

func TestRunAll(t *testing.T) {
	pl, _ := newPipeline(t)
	inputs := []Input{
		{Name: "small", Image: image.NewNRGBA(image.Rect(0, 0, 16, 16))},
		{Name: "large", Image: image.NewNRGBA(image.Rect(0, 0, 320, 240))},
	}

	results := RunAll(context.Background(), pl, inputs, Options{Iterations: 2})
	require.Len(t, results, 2)
	assert.Equal(t, "small", results[0].Name)
	assert.Equal(t, "large", results[1].Name)

	out := Table(results)
	assert.Contains(t, out, "IMG/S", "light style upper-cases headers")
	assert.Contains(t, out, "320x240")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results = RunAll(ctx, pl, inputs, Options{})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
	assert.True(t, strings.Contains(Table(results), "error:"))
}

func TestMemoryStats(t *testing.T) {
	stats := GetMemoryStats()
	assert.Positive(t, stats.SysBytes)
	assert.Contains(t, stats.String(), "Alloc:")
}
