package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/godetect/cmd/godetect/cmd"
	"github.com/cucumber/godog"
)

// iRun executes a godetect command line in-process.
func (testCtx *TestContext) iRun(command string) error {
	command = testCtx.expand(command)
	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "godetect" {
		args = args[1:]
	}

	root := cmd.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	testCtx.LastCommand = command
	testCtx.LastError = root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr: %s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded unexpectedly\noutput: %s", testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain %q\noutput: %s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output unexpectedly contains %q\noutput: %s", unexpected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(expected string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error but the command succeeded")
	}
	if !strings.Contains(testCtx.LastError.Error(), expected) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, expected)
	}
	return nil
}

func (testCtx *TestContext) theLogsShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastStderr, expected) {
		return fmt.Errorf("stderr does not contain %q\nstderr: %s", expected, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastOutput)) {
		return fmt.Errorf("output is not valid JSON: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldReportDetections counts detections in any of the JSON
// shapes the CLI emits: a bare object list, one result or a result list.
func (testCtx *TestContext) theOutputShouldReportDetections(expected int) error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	if got := countDetections(v); got != expected {
		return fmt.Errorf("expected %d detections, got %d\noutput: %s", expected, got, testCtx.LastOutput)
	}
	return nil
}

func countDetections(v any) int {
	switch t := v.(type) {
	case []any:
		n := 0
		for _, item := range t {
			n += countDetections(item)
		}
		return n
	case map[string]any:
		if _, ok := t["label"]; ok {
			return 1
		}
		for _, key := range []string{"objects", "images", "pages", "results", "result"} {
			if child, ok := t[key]; ok {
				return countDetections(child)
			}
		}
	}
	return 0
}

func (testCtx *TestContext) theFileShouldExist(path string) error {
	path = testCtx.Path(testCtx.expand(path))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(path, expected string) error {
	path = testCtx.Path(testCtx.expand(path))
	data, err := os.ReadFile(path) //nolint:gosec // scenario temp path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("%s does not contain %q\ncontent: %s", path, expected, data)
	}
	return nil
}

func (testCtx *TestContext) theModelShouldHaveRun(times int) error {
	if got := testCtx.Engine.Calls(); got != times {
		return fmt.Errorf("expected %d inference calls, got %d", times, got)
	}
	return nil
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRun)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the logs should contain "([^"]*)"$`, testCtx.theLogsShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should report (\d+) detections?$`, testCtx.theOutputShouldReportDetections)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the model should have run (\d+) times?$`, testCtx.theModelShouldHaveRun)
}
