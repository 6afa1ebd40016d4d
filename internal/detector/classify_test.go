package detector

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	scores := []float32{
		0.1, 0.7, 0.2,
		0.5, 0.5, 0.1, // tie keeps the first index
		0.0, 0.0, 0.3,
	}
	got, err := Classify(scores, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.7, 0.5, 0.3}, got.MaxScores)
	assert.Equal(t, []int{1, 0, 2}, got.Classes)
	assert.Equal(t, 3, got.Len())
}

func TestClassify_ZeroClasses(t *testing.T) {
	got, err := Classify(nil, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -1, -1, -1}, got.MaxScores)
	assert.Equal(t, []int{-1, -1, -1, -1}, got.Classes)
}

func TestClassify_ZeroBoxes(t *testing.T) {
	got, err := Classify(nil, 0, 90)
	require.NoError(t, err)
	assert.Empty(t, got.MaxScores)
	assert.Empty(t, got.Classes)
}

func TestClassify_ShapeErrors(t *testing.T) {
	_, err := Classify(make([]float32, 5), 2, 3)
	require.ErrorIs(t, err, ErrShapeMismatch)

	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "classify", shapeErr.Op)

	_, err = Classify(nil, -1, 3)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	// 1<<62 boxes x 4 classes wraps to 0 in int arithmetic.
	_, err = Classify(nil, 1<<62, 4)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

// TestClassify_RowMaximum checks every box gets the true row maximum at its first index.
func TestClassify_RowMaximum(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("max score and first max index per row", prop.ForAll(
		func(numBoxes, numClasses int, seed []float32) bool {
			scores := make([]float32, numBoxes*numClasses)
			for i := range scores {
				// Quantize to force frequent ties.
				scores[i] = float32(int(seed[i%len(seed)]*10)) / 10
			}

			got, err := Classify(scores, numBoxes, numClasses)
			if err != nil || len(got.MaxScores) != numBoxes || len(got.Classes) != numBoxes {
				return false
			}

			for i := range numBoxes {
				row := scores[i*numClasses : (i+1)*numClasses]
				want := row[0]
				wantIdx := 0
				for j, v := range row {
					if v > want {
						want, wantIdx = v, j
					}
				}
				if got.MaxScores[i] != want || got.Classes[i] != wantIdx {
					return false
				}
				if row[got.Classes[i]] != got.MaxScores[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 20),
		gen.IntRange(1, 12),
		gen.SliceOfN(17, gen.Float32Range(0, 1)),
	))

	properties.Property("zero classes yields sentinel entries", prop.ForAll(
		func(numBoxes int) bool {
			got, err := Classify(nil, numBoxes, 0)
			if err != nil || got.Len() != numBoxes {
				return false
			}
			for i := range numBoxes {
				if got.MaxScores[i] != -1 || got.Classes[i] != -1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
