// Package texture describes the image textures fed into the wiring core and
// reads what it needs from the files themselves.
package texture

import (
	"path/filepath"
	"strings"

	"pbr-autowire/internal/graph"
)

// Source is one texture offered to the planner: an image on disk, an
// existing texture node, or both.
type Source struct {
	Path   string       `json:"path,omitempty"`
	Label  string       `json:"label,omitempty"`
	Node   graph.NodeID `json:"node,omitempty"` // existing texture node, empty to create one
	Format string       `json:"format,omitempty"`
	Width  int          `json:"width,omitempty"`
	Height int          `json:"height,omitempty"`
}

// FromNode returns the source backing an existing texture node.
func FromNode(n graph.Node) Source {
	return Source{Path: n.Image, Label: n.Label, Node: n.ID}
}

// Names returns the strings to classify, label first.
func (s Source) Names() []string {
	var names []string
	if s.Label != "" {
		names = append(names, s.Label)
	}
	if s.Path != "" {
		names = append(names, s.Path)
	}
	return names
}

// Name is a short display name for reports.
func (s Source) Name() string {
	switch {
	case s.Path != "":
		return filepath.Base(strings.ReplaceAll(s.Path, "\\", "/"))
	case s.Label != "":
		return s.Label
	default:
		return string(s.Node)
	}
}

// SamePath reports whether two image paths refer to the same file name
// after cleaning.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	clean := func(p string) string {
		return filepath.Clean(strings.ReplaceAll(p, "\\", "/"))
	}
	return clean(a) == clean(b)
}
