// Package statusdoc defines the published status document.
//
// The document is the contract between minder and the appliance's
// presentation layer: a versioned mapping from display label to a typed
// stat. It is rewritten whole on every telemetry cycle and must never be
// observable in a partially written state, so publication goes through an
// atomic rename.
package statusdoc

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"minder/internal/fileutil"
)

// Version tags the document layout for forward compatibility.
const Version = 2

// TypeString is the value kind for plain text stats.
const TypeString = "string"

// Stat is one labeled entry in the published document.
type Stat struct {
	Type        string  `yaml:"type"`
	Value       string  `yaml:"value"`
	Description *string `yaml:"description"`
	Copyable    bool    `yaml:"copyable"`
	QR          bool    `yaml:"qr"`
	Masked      bool    `yaml:"masked"`
}

// Describe returns a description pointer for use in Stat literals.
func Describe(text string) *string {
	return &text
}

// Entry pairs a display label with its stat.
type Entry struct {
	Label string
	Stat  Stat
}

// Document is the versioned status artifact. Entries keep insertion order
// when serialized.
type Document struct {
	Version int
	Entries []Entry
}

// New returns an empty document at the current version.
func New() *Document {
	return &Document{Version: Version}
}

// Add appends a labeled stat, replacing any earlier entry with the same label.
func (d *Document) Add(label string, stat Stat) {
	for i := range d.Entries {
		if d.Entries[i].Label == label {
			d.Entries[i].Stat = stat
			return
		}
	}
	d.Entries = append(d.Entries, Entry{Label: label, Stat: stat})
}

// Lookup returns the stat stored under label.
func (d *Document) Lookup(label string) (Stat, bool) {
	for _, entry := range d.Entries {
		if entry.Label == label {
			return entry.Stat, true
		}
	}
	return Stat{}, false
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.Entries)
}

// MarshalYAML emits the version tag plus a data mapping in entry order.
func (d *Document) MarshalYAML() (any, error) {
	data := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range d.Entries {
		var key, value yaml.Node
		key.SetString(entry.Label)
		if err := value.Encode(entry.Stat); err != nil {
			return nil, fmt.Errorf("encode stat %q: %w", entry.Label, err)
		}
		data.Content = append(data.Content, &key, &value)
	}

	var versionKey, versionValue, dataKey yaml.Node
	versionKey.SetString("version")
	if err := versionValue.Encode(d.Version); err != nil {
		return nil, err
	}
	dataKey.SetString("data")

	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content, &versionKey, &versionValue, &dataKey, data)
	return root, nil
}

// UnmarshalYAML reads a published document, preserving entry order.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.New("status document: expected a mapping")
	}
	d.Version = 0
	d.Entries = nil
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "version":
			if err := value.Decode(&d.Version); err != nil {
				return fmt.Errorf("status document version: %w", err)
			}
		case "data":
			if value.Kind != yaml.MappingNode {
				return errors.New("status document: data must be a mapping")
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				var stat Stat
				if err := value.Content[j+1].Decode(&stat); err != nil {
					return fmt.Errorf("status document entry %q: %w", value.Content[j].Value, err)
				}
				d.Entries = append(d.Entries, Entry{Label: value.Content[j].Value, Stat: stat})
			}
		}
	}
	return nil
}

// Publish serializes the document and atomically replaces the file at path.
// A reader polling path sees either the previous document or this one, never
// a mixture.
func Publish(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal status document: %w", err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("publish status document: %w", err)
	}
	return nil
}

// Read loads a previously published document.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status document: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse status document: %w", err)
	}
	return &doc, nil
}
