// Package graph models the host's material node graph as seen by the
// wiring core: value snapshots of nodes and links, and the Host interface
// through which all mutations go.
package graph

import (
	"fmt"
	"math"
	"reflect"
)

// NodeID is the host-assigned identity of a node.
type NodeID string

// Socket identifies one input or output socket on a node.
type Socket struct {
	Node NodeID `json:"node"`
	Name string `json:"socket"`
}

func (s Socket) String() string {
	return fmt.Sprintf("%s[%s]", s.Node, s.Name)
}

// Link connects an output socket to an input socket.
type Link struct {
	From Socket `json:"from"`
	To   Socket `json:"to"`
}

func (l Link) String() string {
	return l.From.String() + " -> " + l.To.String()
}

// Node is a read-only copy of one host node.
type Node struct {
	ID     NodeID         `json:"id"`
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"` // unique within a graph
	Label  string         `json:"label,omitempty"`
	Image  string         `json:"image,omitempty"` // assigned image resource, texture nodes only
	Params map[string]any `json:"params,omitempty"`
}

// NodeSpec describes a node to create.
type NodeSpec struct {
	Type  string
	Name  string
	Label string
	Image string
}

// Host is the node-graph API the wiring core consumes. Implementations
// serialize all calls on the host's own thread; the core never calls a
// Host from more than one goroutine.
type Host interface {
	Snapshot() (*Snapshot, error)
	CreateNode(spec NodeSpec) (NodeID, error)
	DeleteNode(id NodeID) error
	SetParameter(id NodeID, name string, value any) error
	CreateLink(from, to Socket) error
	RemoveLink(from, to Socket) error
}

// Snapshot is a point-in-time copy of a graph. It is never shared across
// actions; callers capture a new one each time.
type Snapshot struct {
	Nodes []Node
	Links []Link

	byID   map[NodeID]int
	byName map[string]int
}

// NewSnapshot builds an indexed snapshot. Nodes and links are used as given.
func NewSnapshot(nodes []Node, links []Link) *Snapshot {
	s := &Snapshot{
		Nodes:  nodes,
		Links:  links,
		byID:   make(map[NodeID]int, len(nodes)),
		byName: make(map[string]int, len(nodes)),
	}
	for i, n := range nodes {
		s.byID[n.ID] = i
		if n.Name != "" {
			s.byName[n.Name] = i
		}
	}
	return s
}

// Node returns the node with the given ID.
func (s *Snapshot) Node(id NodeID) (Node, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// NodeByName returns the node with the given unique name.
func (s *Snapshot) NodeByName(name string) (Node, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// LinkInto returns the link feeding an input socket. Inputs take at most
// one link.
func (s *Snapshot) LinkInto(to Socket) (Link, bool) {
	for _, l := range s.Links {
		if l.To == to {
			return l, true
		}
	}
	return Link{}, false
}

// LinksFrom returns every link leaving the given node.
func (s *Snapshot) LinksFrom(id NodeID) []Link {
	var out []Link
	for _, l := range s.Links {
		if l.From.Node == id {
			out = append(out, l)
		}
	}
	return out
}

// LinksTo returns every link entering the given node.
func (s *Snapshot) LinksTo(id NodeID) []Link {
	var out []Link
	for _, l := range s.Links {
		if l.To.Node == id {
			out = append(out, l)
		}
	}
	return out
}

// HasLink reports whether the exact link exists.
func (s *Snapshot) HasLink(l Link) bool {
	for _, have := range s.Links {
		if have == l {
			return true
		}
	}
	return false
}

// Upstream reports whether from reaches to by following links forward.
func (s *Snapshot) Upstream(from, to NodeID) bool {
	seen := map[NodeID]bool{from: true}
	queue := []NodeID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, l := range s.LinksFrom(cur) {
			next := l.To.Node
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// ParamEqual compares parameter values, treating all numeric kinds as
// float64 since JSON-backed hosts lose the distinction.
func ParamEqual(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return math.Abs(fa-fb) < 1e-9
	}
	if okA != okB {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
