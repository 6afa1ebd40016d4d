package detector

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/godetect/internal/onnx"
	ort "github.com/yalue/onnxruntime_go"
)

// outputBinding records where the score and box tensors sit in the session outputs.
type outputBinding struct {
	ScoresName string
	BoxesName  string
}

// names returns the output names in session order.
func (b outputBinding) names() []string { return []string{b.ScoresName, b.BoxesName} }

// modelIO is the subset of model metadata the engine depends on.
type modelIO struct {
	Input   ort.InputOutputInfo
	Outputs outputBinding
}

// inspectModel reads model metadata and binds the input and the two SSD outputs.
func inspectModel(modelPath string, config Config) (modelIO, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return modelIO{}, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	return bindModelIO(inputs, outputs, config)
}

// bindModelIO validates the model signature against what the engine can feed and read.
func bindModelIO(inputs, outputs []ort.InputOutputInfo, config Config) (modelIO, error) {
	if len(inputs) != 1 {
		return modelIO{}, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	in := inputs[0]
	if len(in.Dimensions) != 4 {
		return modelIO{}, fmt.Errorf("expected 4D NHWC input tensor, got %dD", len(in.Dimensions))
	}
	if c := in.Dimensions[3]; c > 0 && c != 3 {
		return modelIO{}, fmt.Errorf("expected 3 input channels, got %d", c)
	}
	switch in.DataType {
	case ort.TensorElementDataTypeUint8, ort.TensorElementDataTypeFloat:
	default:
		return modelIO{}, fmt.Errorf("unsupported input element type %v", in.DataType)
	}

	binding, err := resolveOutputs(outputs, config.ScoresOutput, config.BoxesOutput)
	if err != nil {
		return modelIO{}, err
	}
	return modelIO{Input: in, Outputs: binding}, nil
}

// resolveOutputs picks the score and box outputs by name, or by shape when a name is empty.
// Boxes are the rank-4 output ending in 4; scores are the rank-3 output.
func resolveOutputs(outputs []ort.InputOutputInfo, scoresName, boxesName string) (outputBinding, error) {
	byName := make(map[string]ort.InputOutputInfo, len(outputs))
	for _, o := range outputs {
		byName[o.Name] = o
	}

	pick := func(want string, match func(ort.Shape) bool, kind string, exclude string) (string, error) {
		if want != "" {
			if _, ok := byName[want]; !ok {
				return "", fmt.Errorf("model has no output named %q", want)
			}
			return want, nil
		}
		found := ""
		for _, o := range outputs {
			if o.Name == exclude || !match(o.Dimensions) {
				continue
			}
			if found != "" {
				return "", fmt.Errorf("ambiguous %s output: %q and %q both match, set it explicitly", kind, found, o.Name)
			}
			found = o.Name
		}
		if found == "" {
			return "", fmt.Errorf("no %s output found among %d outputs", kind, len(outputs))
		}
		return found, nil
	}

	boxes, err := pick(boxesName, func(s ort.Shape) bool { return len(s) == 4 && s[3] == 4 }, "boxes", scoresName)
	if err != nil {
		return outputBinding{}, err
	}
	scores, err := pick(scoresName, func(s ort.Shape) bool { return len(s) == 3 }, "scores", boxes)
	if err != nil {
		return outputBinding{}, err
	}
	if scores == boxes {
		return outputBinding{}, fmt.Errorf("scores and boxes resolve to the same output %q", scores)
	}
	return outputBinding{ScoresName: scores, BoxesName: boxes}, nil
}

// inputDims returns the (height, width) fed to the model. Fixed graph dimensions win over
// the configured size.
func inputDims(in ort.InputOutputInfo, configured int) (int, int) {
	if configured <= 0 {
		configured = DefaultInputSize
	}
	h, w := configured, configured
	if len(in.Dimensions) == 4 {
		if d := in.Dimensions[1]; d > 0 {
			h = int(d)
		}
		if d := in.Dimensions[2]; d > 0 {
			w = int(d)
		}
	}
	return h, w
}

// createSession creates the ONNX session with the given configuration.
func createSession(modelPath string, io modelIO, config Config) (*ort.DynamicAdvancedSession, error) {
	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(sessionOptions, config.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}

	if config.NumThreads > 0 {
		if err = sessionOptions.SetIntraOpNumThreads(config.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{io.Input.Name}, io.Outputs.names(), sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}
