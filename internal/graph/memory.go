package graph

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNodeNotFound     = errors.New("graph: node not found")
	ErrLinkNotFound     = errors.New("graph: link not found")
	ErrUnknownNodeType  = errors.New("graph: unknown node type")
	ErrUnknownSocket    = errors.New("graph: unknown socket")
	ErrUnknownParameter = errors.New("graph: unknown parameter")
	ErrDuplicateName    = errors.New("graph: duplicate node name")
)

// NodeType declares the sockets and parameters of one host node type.
// Empty lists mean "not checked".
type NodeType struct {
	Inputs  []string
	Outputs []string
	Params  []string
}

// Catalog maps node type identifiers to their declarations, playing the
// role of the host's node registry.
type Catalog map[string]NodeType

// Memory is an in-process Host. It rejects the same things a real editor
// would: unknown node types, unknown sockets, dangling links.
type Memory struct {
	mu      sync.Mutex
	nodes   map[NodeID]*Node
	order   []NodeID // creation order, keeps snapshots deterministic
	links   []Link
	names   map[string]NodeID
	catalog Catalog
	log     *zap.Logger
}

var _ Host = (*Memory)(nil)

// NewMemory returns an empty graph. A nil catalog accepts any node type.
func NewMemory(catalog Catalog, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		nodes:   make(map[NodeID]*Node),
		names:   make(map[string]NodeID),
		catalog: catalog,
		log:     logger.Named("memory_host"),
	}
}

// Snapshot returns a deep copy of the graph.
func (m *Memory) Snapshot() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := make([]Node, 0, len(m.order))
	for _, id := range m.order {
		nodes = append(nodes, cloneNode(*m.nodes[id]))
	}
	return NewSnapshot(nodes, slices.Clone(m.links)), nil
}

// CreateNode adds a node of a catalogued type.
func (m *Memory) CreateNode(spec NodeSpec) (NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalog != nil {
		if _, ok := m.catalog[spec.Type]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, spec.Type)
		}
	}
	n := Node{
		ID:    NodeID(uuid.NewString()),
		Type:  spec.Type,
		Name:  spec.Name,
		Label: spec.Label,
		Image: spec.Image,
	}
	if err := m.insert(n); err != nil {
		return "", err
	}
	m.log.Debug("Node created", zap.String("id", string(n.ID)), zap.String("type", n.Type), zap.String("name", n.Name))
	return n.ID, nil
}

// AddNode inserts a fully specified node, bypassing the catalog. It is how
// documents and tests seed a graph.
func (m *Memory) AddNode(n Node) (NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" {
		n.ID = NodeID(uuid.NewString())
	}
	if _, exists := m.nodes[n.ID]; exists {
		return "", fmt.Errorf("graph: node %s already exists", n.ID)
	}
	if err := m.insert(cloneNode(n)); err != nil {
		return "", err
	}
	return n.ID, nil
}

func (m *Memory) insert(n Node) error {
	if n.Name != "" {
		if _, taken := m.names[n.Name]; taken {
			return fmt.Errorf("%w: %q", ErrDuplicateName, n.Name)
		}
		m.names[n.Name] = n.ID
	}
	m.nodes[n.ID] = &n
	m.order = append(m.order, n.ID)
	return nil
}

// DeleteNode removes a node and every link touching it.
func (m *Memory) DeleteNode(id NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Name != "" {
		delete(m.names, n.Name)
	}
	delete(m.nodes, id)
	m.order = slices.DeleteFunc(m.order, func(o NodeID) bool { return o == id })
	m.links = slices.DeleteFunc(m.links, func(l Link) bool { return l.From.Node == id || l.To.Node == id })
	return nil
}

// SetParameter writes one node parameter.
func (m *Memory) SetParameter(id NodeID, name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if t, ok := m.catalog[n.Type]; ok && len(t.Params) > 0 && !slices.Contains(t.Params, name) {
		return fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParameter, n.Type, name)
	}
	if n.Params == nil {
		n.Params = make(map[string]any)
	}
	n.Params[name] = value
	return nil
}

// CreateLink connects two sockets. An input holds one link, so an existing
// link into the same input is replaced, as node editors do.
func (m *Memory) CreateLink(from, to Socket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.nodes[from.Node]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from.Node)
	}
	dst, ok := m.nodes[to.Node]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to.Node)
	}
	if from.Node == to.Node {
		return fmt.Errorf("graph: cannot link node %s to itself", from.Node)
	}
	if t, ok := m.catalog[src.Type]; ok && len(t.Outputs) > 0 && !slices.Contains(t.Outputs, from.Name) {
		return fmt.Errorf("%w: %s has no output %q", ErrUnknownSocket, src.Type, from.Name)
	}
	if t, ok := m.catalog[dst.Type]; ok && len(t.Inputs) > 0 && !slices.Contains(t.Inputs, to.Name) {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownSocket, dst.Type, to.Name)
	}

	link := Link{From: from, To: to}
	for i, l := range m.links {
		if l.To == to {
			m.links[i] = link
			return nil
		}
	}
	m.links = append(m.links, link)
	return nil
}

// RemoveLink deletes an existing link.
func (m *Memory) RemoveLink(from, to Socket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := Link{From: from, To: to}
	for i, l := range m.links {
		if l == target {
			m.links = slices.Delete(m.links, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLinkNotFound, target)
}

func cloneNode(n Node) Node {
	if n.Params != nil {
		params := make(map[string]any, len(n.Params))
		for k, v := range n.Params {
			params[k] = v
		}
		n.Params = params
	}
	return n
}
