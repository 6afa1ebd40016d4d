package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overlapScenario returns three boxes where boxes 0 and 1 have IoU 0.8 and box 2 is disjoint.
func overlapScenario() ([]Box, []float32) {
	boxes := []Box{
		{MinY: 0.0, MinX: 0.0, MaxY: 0.5, MaxX: 0.5},
		// Same height, shifted so that intersection/union = 0.225/0.28125 = 0.8.
		{MinY: 0.0, MinX: 0.05, MaxY: 0.5, MaxX: 0.5625},
		{MinY: 0.7, MinX: 0.7, MaxY: 0.9, MaxX: 0.9},
	}
	return boxes, []float32{0.9, 0.95, 0.2}
}

func TestOverlapScenarioIoU(t *testing.T) {
	boxes, _ := overlapScenario()
	assert.InDelta(t, 0.8, ComputeIoU(boxes[0], boxes[1]), 1e-4)
	assert.Zero(t, ComputeIoU(boxes[0], boxes[2]))
	assert.Zero(t, ComputeIoU(boxes[1], boxes[2]))
}

func TestSuppress_Scenarios(t *testing.T) {
	boxes, scores := overlapScenario()

	tests := []struct {
		name string
		opts SuppressionOptions
		want []int
	}{
		{
			name: "defaults drop overlap and sub-threshold disjoint box",
			opts: SuppressionOptions{MaxOutputs: 5, IoUThreshold: 0.5, ScoreThreshold: 0.5},
			want: []int{1},
		},
		{
			name: "low score threshold admits disjoint box",
			opts: SuppressionOptions{MaxOutputs: 5, IoUThreshold: 0.5, ScoreThreshold: 0.1},
			want: []int{1, 2},
		},
		{
			name: "score threshold above every score",
			opts: SuppressionOptions{MaxOutputs: 5, IoUThreshold: 0.5, ScoreThreshold: 0.96},
			want: []int{},
		},
		{
			name: "iou threshold above overlap keeps both",
			opts: SuppressionOptions{MaxOutputs: 5, IoUThreshold: 0.85, ScoreThreshold: 0.1},
			want: []int{1, 0, 2},
		},
		{
			name: "max outputs caps selection",
			opts: SuppressionOptions{MaxOutputs: 1, IoUThreshold: 0.85, ScoreThreshold: 0.1},
			want: []int{1},
		},
		{
			name: "zero max outputs",
			opts: SuppressionOptions{MaxOutputs: 0, IoUThreshold: 0.5, ScoreThreshold: 0.1},
			want: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Suppress(boxes, scores, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Box 1 suppresses box 0 and the disjoint box survives once it clears the score threshold.
func TestSuppress_OverlapAndDisjoint(t *testing.T) {
	boxes, _ := overlapScenario()
	scores := []float32{0.9, 0.95, 0.6}

	got, err := Suppress(boxes, scores, DefaultSuppressionOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

func TestSuppress_DoesNotMutateInputs(t *testing.T) {
	boxes, scores := overlapScenario()
	boxesCopy := append([]Box(nil), boxes...)
	scoresCopy := append([]float32(nil), scores...)

	_, err := Suppress(boxes, scores, SuppressionOptions{MaxOutputs: 5, IoUThreshold: 0.5, ScoreThreshold: 0.1})
	require.NoError(t, err)
	assert.Equal(t, boxesCopy, boxes)
	assert.Equal(t, scoresCopy, scores)
}

func TestSuppress_TiePolicies(t *testing.T) {
	t.Run("equal scores prefer lower index", func(t *testing.T) {
		boxes := []Box{
			{0, 0, 0.1, 0.1},
			{0.5, 0.5, 0.6, 0.6},
			{0.8, 0.8, 0.9, 0.9},
		}
		got, err := Suppress(boxes, []float32{0.7, 0.9, 0.7}, DefaultSuppressionOptions())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0, 2}, got)
	})

	t.Run("score equal to threshold is not eligible", func(t *testing.T) {
		boxes := []Box{{0, 0, 0.1, 0.1}}
		got, err := Suppress(boxes, []float32{0.5}, DefaultSuppressionOptions())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("iou equal to threshold does not suppress", func(t *testing.T) {
		// Half-width box inside a unit box: IoU is exactly 0.5.
		boxes := []Box{
			{MinY: 0, MinX: 0, MaxY: 1, MaxX: 1},
			{MinY: 0, MinX: 0, MaxY: 1, MaxX: 0.5},
		}
		require.Equal(t, 0.5, ComputeIoU(boxes[0], boxes[1]))
		got, err := Suppress(boxes, []float32{0.9, 0.8}, DefaultSuppressionOptions())
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, got)
	})
}

func TestSuppress_Errors(t *testing.T) {
	_, err := Suppress([]Box{{}}, []float32{0.1, 0.2}, DefaultSuppressionOptions())
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Suppress(nil, nil, SuppressionOptions{MaxOutputs: 5, IoUThreshold: 1.5})
	assert.Error(t, err)

	got, err := Suppress(nil, nil, DefaultSuppressionOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{name: "identical", a: Box{0, 0, 1, 1}, b: Box{0, 0, 1, 1}, want: 1},
		{name: "disjoint", a: Box{0, 0, 0.2, 0.2}, b: Box{0.5, 0.5, 0.7, 0.7}, want: 0},
		{name: "touching edges", a: Box{0, 0, 0.5, 0.5}, b: Box{0, 0.5, 0.5, 1}, want: 0},
		{name: "half overlap", a: Box{0, 0, 1, 1}, b: Box{0, 0, 1, 0.5}, want: 0.5},
		{name: "zero area boxes", a: Box{0.3, 0.3, 0.3, 0.3}, b: Box{0.3, 0.3, 0.3, 0.3}, want: 0},
		{name: "flipped corners", a: Box{1, 1, 0, 0}, b: Box{0, 0, 1, 1}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ComputeIoU(tt.a, tt.b), 1e-6)
			assert.InDelta(t, tt.want, ComputeIoU(tt.b, tt.a), 1e-6)
		})
	}
}

func TestBoxesFromFlat(t *testing.T) {
	boxes, err := BoxesFromFlat([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8})
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.Equal(t, Box{MinY: 0.1, MinX: 0.2, MaxY: 0.3, MaxX: 0.4}, boxes[0])

	_, err = BoxesFromFlat([]float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
