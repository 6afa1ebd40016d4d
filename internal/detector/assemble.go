package detector

// LabelLookup resolves a model class index to a display label.
// Implementations return an error matching ErrLabelLookupMiss for unknown indices.
type LabelLookup interface {
	Lookup(classIndex int) (string, error)
}

// LabelLookupFunc adapts a plain function to LabelLookup.
type LabelLookupFunc func(classIndex int) (string, error)

// Lookup calls f.
func (f LabelLookupFunc) Lookup(classIndex int) (string, error) { return f(classIndex) }

// DetectedObject is one final detection in pixel space.
// BBox is ordered [minX, minY, maxX, maxY].
type DetectedObject struct {
	BBox  [4]float64 `json:"bbox"`
	Label string     `json:"label"`
	Score float64    `json:"score"`
}

// Width returns the box width in pixels.
func (o DetectedObject) Width() float64 { return o.BBox[2] - o.BBox[0] }

// Height returns the box height in pixels.
func (o DetectedObject) Height() float64 { return o.BBox[3] - o.BBox[1] }

// Assemble maps selected box indices to denormalized detections.
//
// boxes is the flat [N*4] coordinate data in (minY, minX, maxY, maxX) order; scores and
// classes are the parallel ClassAssignment slices. Objects are emitted in the order of
// indices. A label lookup miss aborts assembly and is returned unchanged.
func Assemble(boxes []float32, scores []float32, indices []int, classes []int,
	height, width int, labels LabelLookup,
) ([]DetectedObject, error) {
	if len(scores) != len(classes) {
		return nil, shapeErrorf("assemble", "%d scores but %d classes", len(scores), len(classes))
	}
	if labels == nil {
		return nil, shapeErrorf("assemble", "no label lookup provided")
	}

	h, w := float64(height), float64(width)
	objects := make([]DetectedObject, 0, len(indices))

	for _, idx := range indices {
		if idx < 0 || idx >= len(scores) || idx*4+4 > len(boxes) {
			return nil, shapeErrorf("assemble", "selected index %d out of range for %d boxes", idx, len(scores))
		}

		label, err := labels.Lookup(classes[idx])
		if err != nil {
			return nil, err
		}

		o := idx * 4
		minY := float64(boxes[o]) * h
		minX := float64(boxes[o+1]) * w
		maxY := float64(boxes[o+2]) * h
		maxX := float64(boxes[o+3]) * w

		objects = append(objects, DetectedObject{
			BBox:  [4]float64{minX, minY, maxX, maxY},
			Label: label,
			Score: float64(scores[idx]),
		})
	}

	return objects, nil
}
