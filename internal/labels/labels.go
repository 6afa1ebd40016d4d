// Package labels maps SSD class indices to display names.
package labels

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/MeKo-Tech/godetect/internal/detector"
	"gopkg.in/yaml.v3"
)

// Label-miss policies.
const (
	OnMissingError       = "error"
	OnMissingPlaceholder = "placeholder"
)

// cocoIndexOffset maps SSD class 0 to COCO category id 1.
const cocoIndexOffset = 1

//go:embed coco.yaml
var cocoYAML []byte

// file is the on-disk label table layout. The index offset is configuration,
// not part of the file.
type file struct {
	Name   string         `yaml:"name"`
	Labels map[int]string `yaml:"labels"`
}

// Table is an immutable label table. Lookup(i) returns the label with id i+Offset.
type Table struct {
	name   string
	offset int
	labels map[int]string
}

// COCO returns the embedded COCO table with offset 1.
func COCO() *Table {
	t, err := Parse(cocoYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded COCO labels are invalid: %v", err))
	}
	return t.WithOffset(cocoIndexOffset)
}

// Parse decodes a YAML label table. Unknown fields are rejected. The returned
// table has offset 0.
func Parse(data []byte) (*Table, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse label table: %w", err)
	}
	if len(f.Labels) == 0 {
		return nil, errors.New("label table has no labels")
	}
	for id, name := range f.Labels {
		if name == "" {
			return nil, fmt.Errorf("label id %d has an empty name", id)
		}
	}
	return &Table{name: f.Name, labels: f.Labels}, nil
}

// Load reads a YAML label table from path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided label file
	if err != nil {
		return nil, fmt.Errorf("failed to read label table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WithOffset returns a copy of t using a different index offset.
func (t *Table) WithOffset(offset int) *Table {
	return &Table{name: t.name, offset: offset, labels: t.labels}
}

// Lookup returns the label for a model class index.
func (t *Table) Lookup(classIndex int) (string, error) {
	if name, ok := t.labels[classIndex+t.offset]; ok {
		return name, nil
	}
	return "", &detector.LabelLookupError{Index: classIndex}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Offset returns the index offset.
func (t *Table) Offset() int { return t.offset }

// Len returns the number of labels.
func (t *Table) Len() int { return len(t.labels) }

// IDs returns the label ids in ascending order.
func (t *Table) IDs() []int {
	ids := make([]int, 0, len(t.labels))
	for id := range t.labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Placeholder wraps a lookup and substitutes "unknown_<idx>" for misses.
type Placeholder struct {
	Inner detector.LabelLookup
}

// Lookup implements detector.LabelLookup.
func (p Placeholder) Lookup(classIndex int) (string, error) {
	name, err := p.Inner.Lookup(classIndex)
	if errors.Is(err, detector.ErrLabelLookupMiss) {
		slog.Warn("no label for class index, using placeholder", "class_index", classIndex)
		return fmt.Sprintf("unknown_%d", classIndex), nil
	}
	return name, err
}

// Options selects and configures a label table.
type Options struct {
	Path        string // YAML override; empty uses the embedded COCO table
	IndexOffset int    // Added to the class index before lookup
	OnMissing   string // OnMissingError (default) or OnMissingPlaceholder
}

// New builds the lookup described by opts.
func New(opts Options) (detector.LabelLookup, error) {
	table := COCO()
	if opts.Path != "" {
		loaded, err := Load(opts.Path)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	table = table.WithOffset(opts.IndexOffset)

	slog.Debug("label table ready", "name", table.Name(), "labels", table.Len(), "index_offset", table.Offset())

	switch opts.OnMissing {
	case "", OnMissingError:
		return table, nil
	case OnMissingPlaceholder:
		return Placeholder{Inner: table}, nil
	default:
		return nil, fmt.Errorf("invalid on_missing policy %q (must be %q or %q)",
			opts.OnMissing, OnMissingError, OnMissingPlaceholder)
	}
}
