package detector

import (
	"encoding/json"
	"fmt"
	"math"
)

// ObjectsToJSON renders detections as indented JSON. A nil slice renders as [].
func ObjectsToJSON(objs []DetectedObject) ([]byte, error) {
	if objs == nil {
		objs = []DetectedObject{}
	}
	return json.MarshalIndent(objs, "", "  ")
}

// ObjectsFromJSON parses the output of ObjectsToJSON.
func ObjectsFromJSON(data []byte) ([]DetectedObject, error) {
	var objs []DetectedObject
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, fmt.Errorf("failed to parse detections: %w", err)
	}
	return objs, nil
}

// ValidateObjects performs basic sanity checks on assembled detections.
// Boxes may extend past the image; only non-finite values and inverted boxes are rejected.
func ValidateObjects(objs []DetectedObject) error {
	for i, o := range objs {
		for _, v := range o.BBox {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("object %d has non-finite coordinate", i)
			}
		}
		if o.Width() < 0 || o.Height() < 0 {
			return fmt.Errorf("object %d has inverted box %v", i, o.BBox)
		}
		if o.Label == "" {
			return fmt.Errorf("object %d has no label", i)
		}
		if math.IsNaN(o.Score) {
			return fmt.Errorf("object %d has NaN score", i)
		}
	}
	return nil
}
