package detector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/godetect/internal/onnx"
)

// suppressFunc matches Suppress; swapped out in tests to observe calls.
type suppressFunc func(boxes []Box, scores []float32, opts SuppressionOptions) ([]int, error)

// Postprocessor turns raw SSD score and box tensors into detected objects.
// It holds no mutable state and is safe for concurrent use.
type Postprocessor struct {
	opts     SuppressionOptions
	labels   LabelLookup
	suppress suppressFunc
}

// NewPostprocessor creates a post-processor using the given NMS options and label table.
func NewPostprocessor(opts SuppressionOptions, labels LabelLookup) (*Postprocessor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if labels == nil {
		return nil, fmt.Errorf("label lookup is required")
	}
	return &Postprocessor{opts: opts, labels: labels, suppress: Suppress}, nil
}

// Options returns the suppression options in use.
func (p *Postprocessor) Options() SuppressionOptions { return p.opts }

// Run classifies, suppresses and assembles detections for one image.
//
// scores must have shape [1, N, C] and boxes [1, N, 1, 4]. height and width are the
// original image dimensions used for denormalization. Cancellation is only observed
// before any work starts.
func (p *Postprocessor) Run(ctx context.Context, scores, boxes onnx.Tensor, height, width int) ([]DetectedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	numBoxes, numClasses, err := checkOutputShapes(scores, boxes)
	if err != nil {
		return nil, err
	}
	if numBoxes == 0 {
		return []DetectedObject{}, nil
	}

	slog.Debug("calculating classes and max scores", "boxes", numBoxes, "classes", numClasses)
	assignment, err := Classify(scores.Data, numBoxes, numClasses)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	boxSet, err := BoxesFromFlat(boxes.Data)
	if err != nil {
		return nil, err
	}

	slog.Debug("calculating box indexes",
		"max_outputs", p.opts.MaxOutputs,
		"iou_threshold", p.opts.IoUThreshold,
		"score_threshold", p.opts.ScoreThreshold)
	indices, err := p.suppress(boxSet, assignment.MaxScores, p.opts)
	if err != nil {
		return nil, fmt.Errorf("suppress: %w", err)
	}

	objects, err := Assemble(boxes.Data, assignment.MaxScores, indices, assignment.Classes, height, width, p.labels)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	slog.Debug("post-processing complete", "detections", len(objects))
	return objects, nil
}

// checkOutputShapes validates the raw tensors and returns (numBoxes, numClasses).
func checkOutputShapes(scores, boxes onnx.Tensor) (int, int, error) {
	if len(scores.Shape) != 3 {
		return 0, 0, shapeErrorf("scores", "expected rank 3 [1,N,C], got shape %v", scores.Shape)
	}
	if len(boxes.Shape) != 4 {
		return 0, 0, shapeErrorf("boxes", "expected rank 4 [1,N,1,4], got shape %v", boxes.Shape)
	}
	if scores.Shape[0] != 1 || boxes.Shape[0] != 1 {
		return 0, 0, shapeErrorf("tensors", "batch dimension must be 1, got scores %v boxes %v", scores.Shape, boxes.Shape)
	}
	if boxes.Shape[3] != 4 {
		return 0, 0, shapeErrorf("boxes", "last dimension must be 4, got %d", boxes.Shape[3])
	}
	if boxes.Shape[2] != 1 {
		return 0, 0, shapeErrorf("boxes", "expected one box per anchor, got %d", boxes.Shape[2])
	}

	numBoxes := int(scores.Shape[1])
	numClasses := int(scores.Shape[2])
	if numBoxes < 0 || numClasses < 0 {
		return 0, 0, shapeErrorf("scores", "negative dimension in shape %v", scores.Shape)
	}
	if int(boxes.Shape[1]) != numBoxes {
		return 0, 0, shapeErrorf("tensors", "scores have %d boxes but boxes tensor has %d", numBoxes, boxes.Shape[1])
	}
	if err := scores.Verify(); err != nil {
		return 0, 0, shapeErrorf("scores", "%v", err)
	}
	if err := boxes.Verify(); err != nil {
		return 0, 0, shapeErrorf("boxes", "%v", err)
	}

	return numBoxes, numClasses, nil
}
