// Package benchmark measures detection latency and memory use.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Detector is the part of the pipeline a benchmark drives.
type Detector interface {
	ProcessImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
}

// Input is one named image to benchmark.
type Input struct {
	Name  string
	Image image.Image
}

// Options controls how often each input runs.
type Options struct {
	Iterations int // Timed runs per input (default: 1)
	Warmup     int // Untimed runs before measuring
}

// Result holds the measurements for one input.
type Result struct {
	Name         string
	Width        int
	Height       int
	Iterations   int
	Objects      int
	Total        time.Duration
	Min          time.Duration
	Max          time.Duration
	Inference    time.Duration // summed over iterations
	Postprocess  time.Duration // summed over iterations
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Error        error
}

// Average returns the mean end-to-end time per iteration.
func (r Result) Average() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Iterations)
}

// ImagesPerSecond returns the measured throughput.
func (r Result) ImagesPerSecond() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Iterations) / r.Total.Seconds()
}

// String returns a formatted string representation of the result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}

	memDiff := int64(r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) //nolint:gosec // G115: display only
	return fmt.Sprintf("%s: %d iterations, avg: %v, min: %v, max: %v, objects: %d, alloc: +%d KB",
		r.Name, r.Iterations, r.Average(), r.Min, r.Max, r.Objects, memDiff/1024)
}

// Run benchmarks det on one image.
func Run(ctx context.Context, det Detector, in Input, opts Options) Result {
	if opts.Iterations <= 0 {
		opts.Iterations = 1
	}
	res := Result{Name: in.Name}
	if in.Image == nil {
		res.Error = errors.New("image is nil")
		return res
	}
	b := in.Image.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	for range opts.Warmup {
		if _, err := det.ProcessImage(ctx, in.Image); err != nil {
			res.Error = fmt.Errorf("warmup failed: %w", err)
			return res
		}
	}

	runtime.GC()
	res.MemoryBefore = GetMemoryStats()
	for i := range opts.Iterations {
		start := time.Now()
		out, err := det.ProcessImage(ctx, in.Image)
		elapsed := time.Since(start)
		if err != nil {
			res.Error = fmt.Errorf("iteration %d failed: %w", i+1, err)
			return res
		}

		res.Iterations++
		res.Total += elapsed
		if res.Min == 0 || elapsed < res.Min {
			res.Min = elapsed
		}
		res.Max = max(res.Max, elapsed)
		res.Inference += time.Duration(out.Processing.InferenceNs)
		res.Postprocess += time.Duration(out.Processing.PostprocessNs)
		res.Objects = len(out.Objects)
	}
	res.MemoryAfter = GetMemoryStats()
	return res
}

// RunAll benchmarks every input in order and stops early when ctx is cancelled.
func RunAll(ctx context.Context, det Detector, inputs []Input, opts Options) []Result {
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Name: in.Name, Error: err})
			break
		}
		results = append(results, Run(ctx, det, in, opts))
	}
	return results
}

// Table renders results as an aligned text table.
func Table(results []Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Image", "Size", "Iter", "Avg", "Min", "Max", "Inference", "Postprocess", "Img/s", "Objects"})
	for _, r := range results {
		if r.Error != nil {
			t.AppendRow(table.Row{r.Name, "", "", "error: " + r.Error.Error()})
			continue
		}
		n := time.Duration(max(r.Iterations, 1))
		t.AppendRow(table.Row{
			r.Name,
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			r.Iterations,
			r.Average().Round(time.Microsecond),
			r.Min.Round(time.Microsecond),
			r.Max.Round(time.Microsecond),
			(r.Inference / n).Round(time.Microsecond),
			(r.Postprocess / n).Round(time.Microsecond),
			fmt.Sprintf("%.1f", r.ImagesPerSecond()),
			r.Objects,
		})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}
