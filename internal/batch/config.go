package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/render"
)

// Config holds batch processing settings beyond the pipeline itself.
type Config struct {
	// File discovery
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output
	Format     string
	OutputFile string
	OverlayDir string
	Overlay    render.Options
	Labels     pipeline.FormatOptions

	// Progress
	ShowProgress bool
	Quiet        bool
}

// Result holds the outcome of a batch run.
type Result struct {
	Items       []pipeline.BatchItem
	Duration    time.Duration
	WorkerCount int
	Labels      pipeline.FormatOptions
}

// Succeeded returns the results of the items that were processed.
func (r *Result) Succeeded() []*pipeline.ImageResult {
	out := make([]*pipeline.ImageResult, 0, len(r.Items))
	for _, it := range r.Items {
		if it.Result != nil {
			out = append(out, it.Result)
		}
	}
	return out
}

// Failed returns the number of items that errored.
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Error != "" {
			n++
		}
	}
	return n
}

// FormatResults renders the batch in the given format. JSON includes failed items.
func (r *Result) FormatResults(format string) (string, error) {
	if strings.EqualFold(format, pipeline.FormatJSON) || format == "" {
		return formatJSON(r.Items)
	}
	return pipeline.FormatWith(r.Succeeded(), format, r.Labels)
}

// SaveResults writes the formatted results to outputFile, or to w when empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}

	if outputFile == "" {
		_, err = io.WriteString(w, output)
		return err
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// PrintStats writes processing statistics to w.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Items)
	failed := r.Failed()
	objects := 0
	for _, res := range r.Succeeded() {
		objects += len(res.Objects)
	}

	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", total-failed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", failed)
	_, _ = fmt.Fprintf(w, "  Objects: %d\n", objects)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 && r.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(total)/r.Duration.Seconds())
	}
}
