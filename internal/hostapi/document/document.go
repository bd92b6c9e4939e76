// Package document implements hostapi.Host over a YAML or JSON document file.
//
// A document is a flat list of objects. Text objects can be bound to document
// variables, which is what the setvar operation does. The document keeps an
// active selection like an interactive editor would, and saves back
// atomically.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rshade/varbatch/internal/atomicfile"
	"github.com/rshade/varbatch/internal/hostapi"
)

// Format is the on-disk encoding of a document.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Document errors.
var (
	ErrDuplicateID  = errors.New("duplicate object id")
	ErrEmptyID      = errors.New("object id cannot be empty")
	ErrNotSelected  = errors.New("object is not selected")
	ErrNotText      = errors.New("object is not a text object")
	ErrNoPath       = errors.New("document has no path")
	ErrInvalidInput = errors.New("invalid document")
)

// Object is one document object.
type Object struct {
	ID       string `yaml:"id" json:"id"`
	Kind     string `yaml:"kind" json:"kind"`
	Text     string `yaml:"text,omitempty" json:"text,omitempty"`
	Variable string `yaml:"variable,omitempty" json:"variable,omitempty"`
}

// Variable is a named document variable bound to an object.
type Variable struct {
	Name   string `yaml:"name" json:"name"`
	Object string `yaml:"object" json:"object"`
}

// File is the serialized document.
type File struct {
	Objects   []Object   `yaml:"objects" json:"objects"`
	Variables []Variable `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Options filter which objects form the processed collection.
type Options struct {
	// Kinds keeps only objects of these kinds; empty keeps all.
	Kinds []string
	// IDs keeps only these objects, in document order; empty keeps all.
	IDs []string
}

type handle string

func (h handle) ID() string { return string(h) }

// Document is an in-memory document host. It is safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	path     string
	format   Format
	file     File
	index    map[string]int
	view     []int
	selected map[string]bool
}

var _ hostapi.Host = (*Document)(nil)

// Load reads a document from path. The format follows the file extension.
func Load(path string, opts Options) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	d, err := Parse(data, FormatFromPath(path), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.path = path
	return d, nil
}

// FormatFromPath returns FormatJSON for .json files and FormatYAML otherwise.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse builds a document from raw bytes.
func Parse(data []byte, format Format, opts Options) (*Document, error) {
	var f File
	var err error
	if format == FormatJSON {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return New(f, format, opts)
}

// New builds a document from an already decoded file.
func New(f File, format Format, opts Options) (*Document, error) {
	d := &Document{
		format:   format,
		file:     f,
		index:    make(map[string]int, len(f.Objects)),
		selected: map[string]bool{},
	}
	for i, o := range f.Objects {
		if o.ID == "" {
			return nil, fmt.Errorf("%w (object %d)", ErrEmptyID, i+1)
		}
		if _, dup := d.index[o.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, o.ID)
		}
		d.index[o.ID] = i
	}

	for i, o := range f.Objects {
		if len(opts.Kinds) > 0 && !slices.Contains(opts.Kinds, o.Kind) {
			continue
		}
		if len(opts.IDs) > 0 && !slices.Contains(opts.IDs, o.ID) {
			continue
		}
		d.view = append(d.view, i)
	}
	return d, nil
}

// Path returns the file the document was loaded from.
func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// Len returns the size of the processed collection. It never fails.
func (d *Document) Len() (int, error) {
	return d.Count(), nil
}

// Count returns the size of the processed collection.
func (d *Document) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.view)
}

// Item returns the object at the 1-based index of the processed collection.
func (d *Document) Item(index int) (hostapi.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 1 || index > len(d.view) {
		return nil, hostapi.NotFound(index)
	}
	return handle(d.file.Objects[d.view[index-1]].ID), nil
}

// ClearSelection deselects everything.
func (d *Document) ClearSelection() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.selected)
	return nil
}

// Select adds item to the selection.
func (d *Document) Select(item hostapi.Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.objectLocked(item.ID()); err != nil {
		return err
	}
	d.selected[item.ID()] = true
	return nil
}

// Selected returns the selected object IDs in document order.
func (d *Document) Selected() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, o := range d.file.Objects {
		if d.selected[o.ID] {
			out = append(out, o.ID)
		}
	}
	return out
}

// IsSelected reports whether the object is selected.
func (d *Document) IsSelected(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected[id]
}

// Kind returns the object kind.
func (d *Document) Kind(item hostapi.Item) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, err := d.objectLocked(item.ID())
	if err != nil {
		return "", err
	}
	return o.Kind, nil
}

// Text returns the contents of text objects; ok is false for other kinds.
func (d *Document) Text(item hostapi.Item) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, err := d.objectLocked(item.ID())
	if err != nil {
		return "", false, err
	}
	if o.Kind != hostapi.KindText {
		return "", false, nil
	}
	return o.Text, true, nil
}

// VariableCount returns the number of document variables.
func (d *Document) VariableCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.file.Variables), nil
}

// Object returns a copy of the object with the given id.
func (d *Document) Object(id string) (Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objectLocked(id)
}

// Variables returns a copy of the document variables.
func (d *Document) Variables() []Variable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.file.Variables)
}

// SetText replaces the text of a text object.
func (d *Document) SetText(id, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("%q: %w", id, hostapi.ErrItemNotFound)
	}
	if d.file.Objects[i].Kind != hostapi.KindText {
		return fmt.Errorf("%q: %w", id, ErrNotText)
	}
	d.file.Objects[i].Text = text
	return nil
}

// BindVariable creates the next "{prefix}{n}" variable for a text object and
// returns its name. An object that is already bound keeps its variable.
func (d *Document) BindVariable(id, prefix string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return "", fmt.Errorf("%q: %w", id, hostapi.ErrItemNotFound)
	}
	o := &d.file.Objects[i]
	if o.Kind != hostapi.KindText {
		return "", fmt.Errorf("%q (%s): %w", id, o.Kind, ErrNotText)
	}
	if o.Variable != "" {
		return o.Variable, nil
	}

	name := d.nextVariableLocked(prefix)
	o.Variable = name
	d.file.Variables = append(d.file.Variables, Variable{Name: name, Object: id})
	return name, nil
}

func (d *Document) nextVariableLocked(prefix string) string {
	taken := make(map[string]bool, len(d.file.Variables))
	for _, v := range d.file.Variables {
		taken[v.Name] = true
	}
	for n := len(d.file.Variables) + 1; ; n++ {
		name := fmt.Sprintf("%s%d", prefix, n)
		if !taken[name] {
			return name
		}
	}
}

// Marshal encodes the document in its format.
func (d *Document) Marshal() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.format == FormatJSON {
		return json.MarshalIndent(d.file, "", "  ")
	}
	return yaml.Marshal(d.file)
}

// Save writes the document to path atomically. An empty path saves over the
// file it was loaded from.
func (d *Document) Save(path string) error {
	if path == "" {
		path = d.Path()
	}
	if path == "" {
		return ErrNoPath
	}
	data, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err = atomicfile.WriteFile(path, data, 0); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (d *Document) objectLocked(id string) (Object, error) {
	i, ok := d.index[id]
	if !ok {
		return Object{}, fmt.Errorf("%q: %w", id, hostapi.ErrItemNotFound)
	}
	return d.file.Objects[i], nil
}
