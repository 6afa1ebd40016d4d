package support

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/godetect/internal/testutil"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) aTestImageOfSize(name string, width, height int) error {
	img := testutil.CreateSceneImage(width, height, image.Rect(width/4, height/4, width/2, height/2))
	return testutil.SaveImage(testCtx.Path(name), img)
}

func (testCtx *TestContext) aDirectoryWithTestImages(dir string, count int) error {
	if err := os.MkdirAll(testCtx.Path(dir), 0o750); err != nil {
		return err
	}
	for i := range count {
		name := filepath.Join(dir, fmt.Sprintf("image_%02d.png", i+1))
		if err := testCtx.aTestImageOfSize(name, 160, 120); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) aTextFile(name string) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("not an image\n"), 0o600)
}

func (testCtx *TestContext) theModelWillFailWith(message string) error {
	testCtx.Engine.SetErr(errors.New(message))
	return nil
}

func (testCtx *TestContext) theModelReportsNoObjects() error {
	testCtx.Engine.Detections = nil
	return nil
}

// RegisterImageSteps registers input fixture steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a test image "([^"]*)" of size (\d+)x(\d+)$`, testCtx.aTestImageOfSize)
	sc.Step(`^a directory "([^"]*)" with (\d+) test images?$`, testCtx.aDirectoryWithTestImages)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^the model will fail with "([^"]*)"$`, testCtx.theModelWillFailWith)
	sc.Step(`^the model reports no objects$`, testCtx.theModelReportsNoObjects)
}
