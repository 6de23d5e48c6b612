// Package inspect reads a graph snapshot and annotates it with what the
// planner needs: which texture nodes exist, what channel each carries,
// whether each already reaches its shader input, and which intermediate
// nodes can be reused.
package inspect

import (
	"errors"
	"fmt"
	"strings"

	"pbr-autowire/internal/classify"
	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/shader"
	"pbr-autowire/internal/texture"
)

var (
	ErrTargetShaderMissing = errors.New("inspect: target shader node not found")
	ErrNotAShader          = errors.New("inspect: node is not a target shader")
)

// TextureNode is one existing image texture node.
type TextureNode struct {
	Node     graph.Node
	Channel  pbr.Channel
	Class    classify.Result // zero when the channel came from the node key
	Keyed    bool            // named with a pbr:tex key
	Upstream bool            // feeds the shader through any path
	Linked   bool            // reaches the channel's routed slot
}

// Inspection is a snapshot annotated for planning. It is only valid for the
// action that captured it.
type Inspection struct {
	Snapshot      *graph.Snapshot
	Shader        graph.Node
	Textures      []TextureNode
	Intermediates map[string]graph.Node // recognized nodes by purpose
}

// Texture returns the preferred existing node for a channel: a keyed node
// first, then one already feeding the shader, then the first found.
func (in *Inspection) Texture(ch pbr.Channel) (TextureNode, bool) {
	best := -1
	score := func(t TextureNode) int {
		s := 0
		if t.Keyed {
			s += 2
		}
		if t.Upstream {
			s++
		}
		return s
	}
	for i, t := range in.Textures {
		if t.Channel != ch {
			continue
		}
		if best < 0 || score(t) > score(in.Textures[best]) {
			best = i
		}
	}
	if best < 0 {
		return TextureNode{}, false
	}
	return in.Textures[best], true
}

// TextureByImage finds a texture node showing the given image.
func (in *Inspection) TextureByImage(path string) (TextureNode, bool) {
	for _, t := range in.Textures {
		if texture.SamePath(t.Node.Image, path) {
			return t, true
		}
	}
	return TextureNode{}, false
}

// TextureByID finds a texture node by host ID.
func (in *Inspection) TextureByID(id graph.NodeID) (TextureNode, bool) {
	for _, t := range in.Textures {
		if t.Node.ID == id {
			return t, true
		}
	}
	return TextureNode{}, false
}

// Inspector is stateless apart from its immutable configuration.
type Inspector struct {
	classifier *classify.Classifier
	profile    *shader.Profile
}

// New returns an inspector. Nil arguments select the defaults.
func New(c *classify.Classifier, p *shader.Profile) *Inspector {
	if c == nil {
		c = classify.New(nil)
	}
	if p == nil {
		p = shader.DefaultProfile()
	}
	return &Inspector{classifier: c, profile: p}
}

// Inspect annotates snap relative to the target shader node.
func (i *Inspector) Inspect(snap *graph.Snapshot, target graph.NodeID) (*Inspection, error) {
	node, ok := snap.Node(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetShaderMissing, target)
	}
	if !i.profile.Shader.Accepts(node.Type) {
		return nil, fmt.Errorf("%w: %s has type %q", ErrNotAShader, target, node.Type)
	}

	in := &Inspection{
		Snapshot:      snap,
		Shader:        node,
		Intermediates: make(map[string]graph.Node),
	}
	in.Textures = i.textures(snap, func(n graph.Node) bool { return true })
	for k := range in.Textures {
		t := &in.Textures[k]
		t.Upstream = snap.Upstream(t.Node.ID, target)
		t.Linked = i.linked(snap, *t, target)
	}
	i.recognize(in)
	return in, nil
}

// Feeding returns the classified texture nodes upstream of any node, e.g.
// the source shader of a conversion. The node may be of any type.
func (i *Inspector) Feeding(snap *graph.Snapshot, id graph.NodeID) ([]TextureNode, error) {
	if _, ok := snap.Node(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetShaderMissing, id)
	}
	out := i.textures(snap, func(n graph.Node) bool { return snap.Upstream(n.ID, id) })
	for k := range out {
		out[k].Upstream = true
	}
	return out, nil
}

func (i *Inspector) textures(snap *graph.Snapshot, keep func(graph.Node) bool) []TextureNode {
	var out []TextureNode
	for _, n := range snap.Nodes {
		if !i.profile.Texture.IsTexture(n.Type) || !keep(n) {
			continue
		}
		t := TextureNode{Node: n}
		if ch, ok := channelFromKey(n.Name); ok {
			t.Channel = ch
			t.Keyed = true
		} else {
			t.Class = i.classifier.ClassifyName(n.Label, n.Name, n.Image)
			t.Channel = t.Class.Channel
		}
		out = append(out, t)
	}
	return out
}

// channelFromKey parses "pbr:tex:<channel>" with an optional ".N" suffix.
func channelFromKey(name string) (pbr.Channel, bool) {
	rest, ok := strings.CutPrefix(name, "pbr:tex:")
	if !ok {
		return pbr.Unknown, false
	}
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		rest = rest[:dot]
	}
	ch, err := pbr.Parse(rest)
	if err != nil {
		return pbr.Unknown, false
	}
	return ch, true
}

// linked reports whether a texture reaches the input its channel is routed
// to, directly or through intermediates. Packed textures only need to reach
// the shader.
func (i *Inspector) linked(snap *graph.Snapshot, t TextureNode, target graph.NodeID) bool {
	route, ok := i.profile.Route(t.Channel)
	if !ok {
		return false
	}
	if t.Channel.Packed() {
		return t.Upstream
	}
	return reaches(snap, t.Node.ID, graph.Socket{Node: target, Name: route.Slot})
}

func reaches(snap *graph.Snapshot, from graph.NodeID, input graph.Socket) bool {
	seen := map[graph.NodeID]bool{from: true}
	queue := []graph.NodeID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, l := range snap.LinksFrom(cur) {
			if l.To == input {
				return true
			}
			if l.To.Node != input.Node && !seen[l.To.Node] {
				seen[l.To.Node] = true
				queue = append(queue, l.To.Node)
			}
		}
	}
	return false
}

// recognize finds reusable intermediates: by key name first, otherwise by
// node type plus the link pattern the role implies.
func (i *Inspector) recognize(in *Inspection) {
	snap := in.Snapshot
	for purpose, im := range i.profile.Intermediates {
		if n, ok := snap.NodeByName(im.Key()); ok && n.Type == im.NodeType {
			in.Intermediates[purpose] = n
			continue
		}
		if n, ok := i.byPattern(in, im); ok {
			in.Intermediates[purpose] = n
		}
	}
}

func (i *Inspector) byPattern(in *Inspection, im shader.Intermediate) (graph.Node, bool) {
	snap := in.Snapshot
	for _, n := range snap.Nodes {
		if n.Type != im.NodeType {
			continue
		}
		switch im.Role {
		case shader.Convert, shader.Combine:
			for _, r := range i.profile.Routes {
				if r.Via != im.Purpose {
					continue
				}
				out := graph.Socket{Node: n.ID, Name: im.Outputs[0]}
				slot := graph.Socket{Node: in.Shader.ID, Name: r.Slot}
				if snap.HasLink(graph.Link{From: out, To: slot}) {
					return n, true
				}
			}
		case shader.Split:
			feed, ok := snap.LinkInto(graph.Socket{Node: n.ID, Name: im.Inputs[0]})
			if !ok {
				continue
			}
			for _, t := range in.Textures {
				if t.Node.ID != feed.From.Node {
					continue
				}
				if r, ok := i.profile.Route(t.Channel); ok && r.Via == im.Purpose {
					return n, true
				}
			}
		case shader.Mapping:
			return n, true
		}
	}
	return graph.Node{}, false
}
