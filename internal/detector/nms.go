package detector

import (
	"fmt"
	"math"
	"sort"
)

const (
	defaultMaxOutputs     = 5
	defaultIoUThreshold   = 0.5
	defaultScoreThreshold = 0.5
)

// Box is a normalized box in model storage order.
type Box struct {
	MinY float32
	MinX float32
	MaxY float32
	MaxX float32
}

// BoxesFromFlat reinterprets a flat [N*4] slice as N boxes.
func BoxesFromFlat(data []float32) ([]Box, error) {
	if len(data)%4 != 0 {
		return nil, shapeErrorf("boxes", "data length %d is not a multiple of 4", len(data))
	}
	boxes := make([]Box, len(data)/4)
	for i := range boxes {
		o := i * 4
		boxes[i] = Box{MinY: data[o], MinX: data[o+1], MaxY: data[o+2], MaxX: data[o+3]}
	}
	return boxes, nil
}

// SuppressionOptions configures greedy non-maximum suppression.
type SuppressionOptions struct {
	MaxOutputs     int     // cap on the number of selected boxes
	IoUThreshold   float64 // boxes overlapping a selected box by more than this are dropped
	ScoreThreshold float64 // boxes must score strictly above this to be eligible
}

// DefaultSuppressionOptions returns {MaxOutputs: 5, IoUThreshold: 0.5, ScoreThreshold: 0.5}.
func DefaultSuppressionOptions() SuppressionOptions {
	return SuppressionOptions{
		MaxOutputs:     defaultMaxOutputs,
		IoUThreshold:   defaultIoUThreshold,
		ScoreThreshold: defaultScoreThreshold,
	}
}

// Validate checks that the options are usable.
func (o SuppressionOptions) Validate() error {
	if math.IsNaN(o.IoUThreshold) || o.IoUThreshold < 0 || o.IoUThreshold > 1 {
		return fmt.Errorf("invalid iou threshold: %v (must be between 0.0 and 1.0)", o.IoUThreshold)
	}
	if math.IsNaN(o.ScoreThreshold) {
		return fmt.Errorf("invalid score threshold: %v", o.ScoreThreshold)
	}
	return nil
}

// Suppress runs greedy NMS and returns the indices of the kept boxes in selection order.
//
// Candidates are visited by descending score, equal scores in ascending index order.
// The inputs are not modified.
func Suppress(boxes []Box, scores []float32, opts SuppressionOptions) ([]int, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(boxes) != len(scores) {
		return nil, shapeErrorf("suppress", "%d boxes but %d scores", len(boxes), len(scores))
	}
	if opts.MaxOutputs <= 0 || len(boxes) == 0 {
		return []int{}, nil
	}

	candidates := eligibleByScore(scores, opts.ScoreThreshold)
	selected := make([]int, 0, min(opts.MaxOutputs, len(candidates)))

	for _, c := range candidates {
		if len(selected) >= opts.MaxOutputs {
			break
		}
		keep := true
		for _, s := range selected {
			if ComputeIoU(boxes[c], boxes[s]) > opts.IoUThreshold {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		}
	}

	return selected, nil
}

// eligibleByScore returns indices scoring above threshold, sorted by descending score.
func eligibleByScore(scores []float32, threshold float64) []int {
	indices := make([]int, 0, len(scores))
	for i, s := range scores {
		if float64(s) > threshold {
			indices = append(indices, i)
		}
	}

	sort.SliceStable(indices, func(i, j int) bool {
		return scores[indices[i]] > scores[indices[j]]
	})

	return indices
}

// ComputeIoU computes intersection-over-union of two boxes.
// Corners are canonicalized first; an empty union yields 0.
func ComputeIoU(a, b Box) float64 {
	aMinY, aMaxY := minMax(a.MinY, a.MaxY)
	aMinX, aMaxX := minMax(a.MinX, a.MaxX)
	bMinY, bMaxY := minMax(b.MinY, b.MaxY)
	bMinX, bMaxX := minMax(b.MinX, b.MaxX)

	areaA := (aMaxY - aMinY) * (aMaxX - aMinX)
	areaB := (bMaxY - bMinY) * (bMaxX - bMinX)
	if areaA <= 0 || areaB <= 0 {
		return 0
	}

	interMinY := math.Max(aMinY, bMinY)
	interMinX := math.Max(aMinX, bMinX)
	interMaxY := math.Min(aMaxY, bMaxY)
	interMaxX := math.Min(aMaxX, bMaxX)

	interArea := math.Max(interMaxY-interMinY, 0) * math.Max(interMaxX-interMinX, 0)
	unionArea := areaA + areaB - interArea
	if unionArea <= 0 {
		return 0
	}
	return interArea / unionArea
}

func minMax(a, b float32) (float64, float64) {
	x, y := float64(a), float64(b)
	if x > y {
		return y, x
	}
	return x, y
}
