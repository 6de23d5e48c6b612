package graph

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Document is the on-disk form of a material node tree used by the CLI's
// reference host. Editors persist their own graphs; this format only exists
// so the pipeline can run outside an editor.
type Document struct {
	Material string `json:"material,omitempty"`
	Nodes    []Node `json:"nodes"`
	Links    []Link `json:"links"`
}

// ReadDocument loads a JSON graph document.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("graph: parse %s: %w", path, err)
	}
	return &doc, nil
}

// WriteDocument saves a graph document as indented JSON.
func WriteDocument(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("graph: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("graph: write %s: %w", path, err)
	}
	return nil
}

// LoadMemory builds a Memory host from a document. Nodes without an ID get
// one; links must reference nodes present in the document.
func LoadMemory(doc *Document, catalog Catalog, logger *zap.Logger) (*Memory, error) {
	m := NewMemory(catalog, logger)
	for _, n := range doc.Nodes {
		if _, err := m.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, l := range doc.Links {
		if _, ok := m.nodes[l.From.Node]; !ok {
			return nil, fmt.Errorf("graph: link %s: %w: %s", l, ErrNodeNotFound, l.From.Node)
		}
		if _, ok := m.nodes[l.To.Node]; !ok {
			return nil, fmt.Errorf("graph: link %s: %w: %s", l, ErrNodeNotFound, l.To.Node)
		}
		m.links = append(m.links, l)
	}
	return m, nil
}

// Document exports the current graph.
func (m *Memory) Document(material string) *Document {
	snap, _ := m.Snapshot()
	return &Document{Material: material, Nodes: snap.Nodes, Links: snap.Links}
}
