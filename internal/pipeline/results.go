package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Output formats understood by Format.
const (
	FormatJSON  = "json"
	FormatText  = "text"
	FormatCSV   = "csv"
	FormatTable = "table"
)

// SupportedFormats lists the output formats in display order.
var SupportedFormats = []string{FormatJSON, FormatText, FormatCSV, FormatTable}

// FormatOptions tunes the human-readable formats.
type FormatOptions struct {
	TitleCase bool // "teddy bear" -> "Teddy Bear" in text and table output
}

// DefaultFormatOptions returns the options used by Format.
func DefaultFormatOptions() FormatOptions { return FormatOptions{TitleCase: true} }

func (o FormatOptions) label(s string) string {
	if o.TitleCase {
		// Casers are stateful and cannot be shared between goroutines.
		return cases.Title(language.English).String(s)
	}
	return s
}

// Format renders image results in the named format with default options.
func Format(results []*ImageResult, format string) (string, error) {
	return FormatWith(results, format, DefaultFormatOptions())
}

// FormatWith renders image results in the named format.
func FormatWith(results []*ImageResult, format string, opts FormatOptions) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return ToJSON(results)
	case FormatText:
		return ToText(results, opts), nil
	case FormatCSV:
		return ToCSV(results)
	case FormatTable:
		return ToTable(results, opts), nil
	default:
		return "", fmt.Errorf("unsupported format %q (supported: %s)", format, strings.Join(SupportedFormats, ", "))
	}
}

// ToJSON serializes results as indented JSON. A single result is emitted as an object.
func ToJSON(results []*ImageResult) (string, error) {
	var v any = results
	if len(results) == 1 {
		v = results[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToText emits one line per detection: "<Label> <score> [x1 y1 x2 y2]".
func ToText(results []*ImageResult, opts FormatOptions) string {
	var sb strings.Builder
	for i, res := range results {
		if res == nil {
			continue
		}
		if len(results) > 1 {
			if i > 0 {
				sb.WriteByte('\n')
			}
			fmt.Fprintf(&sb, "# %s\n", sourceName(res, i))
		}
		if len(res.Objects) == 0 {
			sb.WriteString("no objects detected\n")
			continue
		}
		for _, o := range res.Objects {
			fmt.Fprintf(&sb, "%s %.3f [%.1f %.1f %.1f %.1f]\n",
				opts.label(o.Label), o.Score, o.BBox[0], o.BBox[1], o.BBox[2], o.BBox[3])
		}
	}
	return sb.String()
}

// ToCSV exports one row per detection with a header.
func ToCSV(results []*ImageResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"source", "label", "score", "x1", "y1", "x2", "y2"})
	for i, res := range results {
		if res == nil {
			continue
		}
		for _, o := range res.Objects {
			_ = w.Write([]string{
				sourceName(res, i),
				o.Label,
				strconv.FormatFloat(o.Score, 'f', 4, 64),
				strconv.FormatFloat(o.BBox[0], 'f', 2, 64),
				strconv.FormatFloat(o.BBox[1], 'f', 2, 64),
				strconv.FormatFloat(o.BBox[2], 'f', 2, 64),
				strconv.FormatFloat(o.BBox[3], 'f', 2, 64),
			})
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToTable renders detections as an aligned text table.
func ToTable(results []*ImageResult, opts FormatOptions) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Source", "Label", "Score", "Box (x1, y1, x2, y2)"})
	n := 0
	for i, res := range results {
		if res == nil {
			continue
		}
		for _, o := range res.Objects {
			n++
			t.AppendRow(table.Row{
				n,
				sourceName(res, i),
				opts.label(o.Label),
				fmt.Sprintf("%.3f", o.Score),
				fmt.Sprintf("%.1f, %.1f, %.1f, %.1f", o.BBox[0], o.BBox[1], o.BBox[2], o.BBox[3]),
			})
		}
	}
	t.AppendFooter(table.Row{"", "", "", "Total", n})
	return t.Render()
}

// PDFToJSON serializes a PDF result as indented JSON.
func PDFToJSON(res *PDFResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PDFImages flattens a PDF result into per-image results for the tabular formats.
func PDFImages(res *PDFResult) []*ImageResult {
	if res == nil {
		return nil
	}
	var out []*ImageResult
	for _, p := range res.Pages {
		out = append(out, p.Images...)
	}
	return out
}

func sourceName(res *ImageResult, idx int) string {
	if res.Source != "" {
		return res.Source
	}
	return fmt.Sprintf("image %d", idx)
}
