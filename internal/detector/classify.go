package detector

// noClass is the score and class index reported for a box when the model emits no classes.
const noClass = -1

// ClassAssignment holds the best class per box, parallel to the box set.
type ClassAssignment struct {
	MaxScores []float32
	Classes   []int
}

// Len returns the number of boxes covered by the assignment.
func (a ClassAssignment) Len() int { return len(a.Classes) }

// Classify scans a row-major [numBoxes][numClasses] score matrix and returns the
// maximum score and its class index for every box.
//
// Ties keep the first class index that reached the maximum. With numClasses == 0
// every box gets score -1 and class -1.
func Classify(scores []float32, numBoxes, numClasses int) (ClassAssignment, error) {
	if numBoxes < 0 || numClasses < 0 {
		return ClassAssignment{}, shapeErrorf("classify", "negative dimensions %dx%d", numBoxes, numClasses)
	}
	if (numClasses != 0 && numBoxes > len(scores)/numClasses) || len(scores) != numBoxes*numClasses {
		return ClassAssignment{}, shapeErrorf("classify",
			"score data length %d does not match %d boxes x %d classes", len(scores), numBoxes, numClasses)
	}

	out := ClassAssignment{
		MaxScores: make([]float32, numBoxes),
		Classes:   make([]int, numBoxes),
	}

	for i := range numBoxes {
		maxScore := float32(noClass)
		classIndex := noClass

		row := scores[i*numClasses : (i+1)*numClasses]
		for j, s := range row {
			if s > maxScore {
				maxScore = s
				classIndex = j
			}
		}

		out.MaxScores[i] = maxScore
		out.Classes[i] = classIndex
	}

	return out, nil
}
