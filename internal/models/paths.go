package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File name constants for the bundled SSD detector and its label table.
const (
	DetectionSSDLite = "ssdlite_mobilenet_v2.onnx"
	LabelsCOCO       = "coco_labels.yaml"
)

// Asset type directories under the models dir.
const (
	TypeDetection = "detection"
	TypeLabels    = "labels"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "GODETECT_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (go.mod not found)")
}

// ModelInfo contains metadata about a model asset.
type ModelInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Present     bool   `json:"present"`
}

// GetModelsDir returns the models directory path.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath resolves a filename to models/<type>/<filename>, falling back to the
// flat models/<filename> layout when only that file exists.
func ResolveModelPath(modelsDir, assetType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	organized := filepath.Join(baseDir, assetType, filename)
	if _, err := os.Stat(organized); err == nil {
		return organized
	}
	flat := filepath.Join(baseDir, filename)
	if _, err := os.Stat(flat); err == nil {
		return flat
	}
	return organized
}

// GetDetectionModelPath returns the path for the SSD detection model.
func GetDetectionModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, DetectionSSDLite)
}

// GetLabelsPath returns the path for the label table override file.
func GetLabelsPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeLabels, LabelsCOCO)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns the known assets with their resolved paths.
func ListAvailableModels(modelsDir string) []ModelInfo {
	assets := []ModelInfo{
		{
			Name:        "ssdlite-mobilenet-v2",
			Type:        TypeDetection,
			Description: "SSDLite MobileNet v2 COCO object detector",
			Filename:    DetectionSSDLite,
			Path:        GetDetectionModelPath(modelsDir),
		},
		{
			Name:        "coco-labels",
			Type:        TypeLabels,
			Description: "COCO label table override (embedded table used when absent)",
			Filename:    LabelsCOCO,
			Path:        GetLabelsPath(modelsDir),
		},
	}
	for i := range assets {
		assets[i].Present = ValidateModelExists(assets[i].Path) == nil
	}
	return assets
}
