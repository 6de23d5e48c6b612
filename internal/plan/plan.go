// Package plan turns the desired channel assignments and an inspected graph
// into the minimal list of graph operations that brings the graph to the
// desired wiring.
package plan

import (
	"fmt"

	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/texture"
)

// Kind is the type of a plan operation. Each maps to one host primitive.
type Kind int

const (
	CreateNode Kind = iota
	SetParameter
	CreateLink
	RemoveLink
)

var kindNames = [...]string{"create_node", "set_parameter", "create_link", "remove_link"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// phase is the position of an op kind in a finished plan: nodes first,
// then their parameters, then link removals, then new links.
func (k Kind) phase() int {
	switch k {
	case CreateNode:
		return 0
	case SetParameter:
		return 1
	case RemoveLink:
		return 2
	}
	return 3
}

// Ref names a node inside a plan: an existing host ID, or the stable key of
// a node the plan creates. Keys are stored as the node's unique name.
type Ref struct {
	ID  graph.NodeID
	Key string
}

func (r Ref) String() string {
	if r.ID != "" {
		return string(r.ID)
	}
	return r.Key
}

// Endpoint is a socket on a referenced node.
type Endpoint struct {
	Node   Ref
	Socket string
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s[%s]", e.Node, e.Socket)
}

// Op is one plan step, tagged with the channel it serves.
type Op struct {
	Kind    Kind
	Channel pbr.Channel
	Node    Ref            // CreateNode, SetParameter
	Spec    graph.NodeSpec // CreateNode; Spec.Name equals Node.Key
	Param   string
	Value   any
	From    Endpoint // CreateLink, RemoveLink
	To      Endpoint
}

func (o Op) String() string {
	switch o.Kind {
	case CreateNode:
		return fmt.Sprintf("create %s %s", o.Spec.Type, o.Node)
	case SetParameter:
		return fmt.Sprintf("set %s.%s = %v", o.Node, o.Param, o.Value)
	case CreateLink:
		return fmt.Sprintf("link %s -> %s", o.From, o.To)
	case RemoveLink:
		return fmt.Sprintf("unlink %s -> %s", o.From, o.To)
	}
	return o.Kind.String()
}

// Reason says why a texture was left out.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonAmbiguous
	ReasonDuplicate
	ReasonCovered
	ReasonNeedsBaseColor
	ReasonSlotTaken
	ReasonNoRoute
)

var reasonNames = [...]string{
	"unknown channel",
	"ambiguous",
	"duplicate",
	"covered by packed texture",
	"needs base color",
	"slot taken",
	"no route",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// MarshalText renders the reason for JSON reports.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Skip records one texture that was not wired, and why.
type Skip struct {
	Source  texture.Source `json:"source"`
	Channel pbr.Channel    `json:"channel"`
	Reason  Reason         `json:"reason"`
	Detail  string         `json:"detail,omitempty"`
}

// Plan is the ordered operation list for one action. It is discarded once
// applied.
type Plan struct {
	Target  graph.NodeID
	Ops     []Op
	Skipped []Skip
	Wired   []pbr.Channel // channels whose sources this plan routes

	// Transferred lists the target inputs that receive a value copied from
	// the source shader.
	Transferred []string
}

// Empty reports whether applying the plan would do nothing.
func (p *Plan) Empty() bool {
	return len(p.Ops) == 0
}

// Count returns the number of operations of one kind.
func (p *Plan) Count(k Kind) int {
	n := 0
	for _, op := range p.Ops {
		if op.Kind == k {
			n++
		}
	}
	return n
}

// ForChannel returns the operations tagged with ch, in order.
func (p *Plan) ForChannel(ch pbr.Channel) []Op {
	var out []Op
	for _, op := range p.Ops {
		if op.Channel == ch {
			out = append(out, op)
		}
	}
	return out
}
