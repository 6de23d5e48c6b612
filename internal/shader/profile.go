// Package shader holds the static description of the target shader node and
// how each PBR channel is routed into it.
package shader

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/pbr"
)

// DataKind is the kind of data a shader input expects.
type DataKind int

const (
	Scalar DataKind = iota
	Color
	Vector
)

func (k DataKind) String() string {
	switch k {
	case Color:
		return "color"
	case Vector:
		return "vector"
	default:
		return "scalar"
	}
}

func parseKind(s string) (DataKind, error) {
	switch s {
	case "", "scalar":
		return Scalar, nil
	case "color":
		return Color, nil
	case "vector", "normal":
		return Vector, nil
	}
	return Scalar, fmt.Errorf("shader: unknown data kind %q", s)
}

// Slot is one named input socket on the shader node.
type Slot struct {
	Name string
	Kind DataKind
}

// Descriptor lists the inputs a physically-based shader node exposes.
type Descriptor struct {
	Name      string
	NodeTypes []string // accepted host type identifiers
	Output    string
	Slots     []Slot
}

// Slot looks up an input by name.
func (d *Descriptor) Slot(name string) (Slot, bool) {
	for _, s := range d.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// Accepts reports whether a host node type is this shader.
func (d *Descriptor) Accepts(nodeType string) bool {
	return slices.Contains(d.NodeTypes, nodeType)
}

// TextureSpec describes image texture nodes.
type TextureSpec struct {
	NodeType        string   // type used when creating texture nodes
	Types           []string // every type recognized as an image texture
	Output          string
	Outputs         []string
	MappingInput    string
	ColorSpaceParam string
	ColorValue      string
	NonColorValue   string
}

// ColorSpace returns the colour-space value for textures of ch.
func (t *TextureSpec) ColorSpace(ch pbr.Channel) string {
	if ch.ColorData() {
		return t.ColorValue
	}
	return t.NonColorValue
}

// IsTexture reports whether a host node type is an image texture.
func (t *TextureSpec) IsTexture(nodeType string) bool {
	return nodeType == t.NodeType || slices.Contains(t.Types, nodeType)
}

// Role says how the planner uses an intermediate node.
type Role int

const (
	// Convert sits between one texture and one shader input.
	Convert Role = iota
	// Combine merges the routed channel with a partner channel, e.g. AO
	// multiplied onto base colour. Inputs[0] takes the partner.
	Combine
	// Split fans a packed texture out into its R, G, B channels.
	Split
	// Mapping is one shared UV mapping node feeding every texture.
	Mapping
)

func (r Role) String() string {
	switch r {
	case Combine:
		return "combine"
	case Split:
		return "split"
	case Mapping:
		return "mapping"
	default:
		return "convert"
	}
}

func parseRole(s string) (Role, error) {
	switch s {
	case "", "convert":
		return Convert, nil
	case "combine":
		return Combine, nil
	case "split":
		return Split, nil
	case "mapping":
		return Mapping, nil
	}
	return Convert, fmt.Errorf("shader: unknown role %q", s)
}

// Intermediate declares a conversion node and its default parameters.
type Intermediate struct {
	Purpose  string
	Role     Role
	NodeType string
	Label    string
	Inputs   []string
	Outputs  []string // Outputs[0] feeds the routed slot
	Params   map[string]any
	Partner  pbr.Channel // Combine only
}

// Key is the stable node name used to find this intermediate again.
func (i *Intermediate) Key() string {
	return "pbr:" + i.Purpose
}

// Route says where a channel ends up. Via names an intermediate purpose;
// empty means a direct link. Packed routes have no Slot.
type Route struct {
	Channel pbr.Channel
	Slot    string
	Via     string
}

// Transfer copies an input value of the source shader onto the target
// shader when a material is converted. From lists alternative source input
// names, first present wins.
type Transfer struct {
	From   []string
	To     string
	Invert bool // scalar 1-x, e.g. coat roughness onto clearcoat gloss
}

// Convert prepares a source value for the target input. Colours drop their
// alpha component; inverted transfers accept numbers only.
func (t *Transfer) Convert(v any) (any, bool) {
	switch c := v.(type) {
	case []any:
		if t.Invert {
			return nil, false
		}
		if len(c) == 4 {
			return slices.Clone(c[:3]), true
		}
		return c, true
	case []float64:
		if t.Invert {
			return nil, false
		}
		if len(c) == 4 {
			return slices.Clone(c[:3]), true
		}
		return c, true
	}
	if !t.Invert {
		return v, true
	}
	switch n := v.(type) {
	case float64:
		return 1 - n, true
	case float32:
		return 1 - float64(n), true
	case int:
		return 1 - float64(n), true
	}
	return nil, false
}

// Profile is the complete, immutable routing configuration for one target
// shader. Route order decides which channel keeps a slot when two compete.
type Profile struct {
	Name          string
	Shader        Descriptor
	Texture       TextureSpec
	Intermediates map[string]Intermediate
	Routes        []Route
	Transfers     []Transfer
	Mapping       string // purpose of the shared mapping node, "" disables it
}

var ErrInvalidProfile = errors.New("shader: invalid profile")

// Route returns the route for a channel.
func (p *Profile) Route(ch pbr.Channel) (Route, bool) {
	for _, r := range p.Routes {
		if r.Channel == ch {
			return r, true
		}
	}
	return Route{}, false
}

// Via returns the intermediate a route passes through.
func (p *Profile) Via(r Route) (Intermediate, bool) {
	if r.Via == "" {
		return Intermediate{}, false
	}
	im, ok := p.Intermediates[r.Via]
	return im, ok
}

// MappingNode returns the shared mapping intermediate when enabled.
func (p *Profile) MappingNode() (Intermediate, bool) {
	if p.Mapping == "" {
		return Intermediate{}, false
	}
	im, ok := p.Intermediates[p.Mapping]
	return im, ok
}

// TextureKey is the stable node name of the texture node created for ch.
func TextureKey(ch pbr.Channel) string {
	return "pbr:tex:" + ch.String()
}

// Validate checks internal consistency.
func (p *Profile) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidProfile, p.Name, fmt.Sprintf(format, args...))
	}
	if len(p.Shader.NodeTypes) == 0 {
		return fail("shader has no node types")
	}
	if p.Texture.NodeType == "" || p.Texture.Output == "" {
		return fail("texture spec needs node_type and output")
	}
	for purpose, im := range p.Intermediates {
		if im.Purpose != purpose {
			return fail("intermediate %q has purpose %q", purpose, im.Purpose)
		}
		if im.NodeType == "" || len(im.Outputs) == 0 {
			return fail("intermediate %q needs node_type and outputs", purpose)
		}
		switch im.Role {
		case Convert, Split:
			if len(im.Inputs) < 1 {
				return fail("intermediate %q needs an input", purpose)
			}
		case Combine:
			if len(im.Inputs) < 2 || im.Partner == pbr.Unknown {
				return fail("combine %q needs two inputs and a partner channel", purpose)
			}
		}
	}
	seen := map[pbr.Channel]bool{}
	for _, r := range p.Routes {
		if seen[r.Channel] {
			return fail("channel %s routed twice", r.Channel)
		}
		seen[r.Channel] = true

		im, hasVia := p.Via(r)
		if r.Via != "" && !hasVia {
			return fail("route %s uses unknown intermediate %q", r.Channel, r.Via)
		}
		if r.Channel.Packed() {
			if !hasVia || im.Role != Split || len(im.Outputs) < len(r.Channel.Covers()) {
				return fail("packed route %s needs a split intermediate with %d outputs", r.Channel, len(r.Channel.Covers()))
			}
			continue
		}
		slot, ok := p.Shader.Slot(r.Slot)
		if !ok {
			return fail("route %s targets unknown slot %q", r.Channel, r.Slot)
		}
		if r.Channel.ColorData() && slot.Kind != Color {
			return fail("colour channel %s routed into %s slot %q", r.Channel, slot.Kind, r.Slot)
		}
		if hasVia && (im.Role == Split || im.Role == Mapping) {
			return fail("route %s cannot pass through %s node %q", r.Channel, im.Role, r.Via)
		}
		if hasVia && im.Role == Combine {
			if _, ok := p.Route(im.Partner); !ok {
				return fail("combine %q partner %s has no route", r.Via, im.Partner)
			}
		}
	}
	for _, t := range p.Transfers {
		if len(t.From) == 0 {
			return fail("transfer to %q has no source inputs", t.To)
		}
		if _, ok := p.Shader.Slot(t.To); !ok {
			return fail("transfer targets unknown slot %q", t.To)
		}
	}
	if p.Mapping != "" {
		im, ok := p.Intermediates[p.Mapping]
		if !ok || im.Role != Mapping {
			return fail("mapping %q is not a mapping intermediate", p.Mapping)
		}
		if p.Texture.MappingInput == "" {
			return fail("mapping enabled but texture spec has no mapping input")
		}
	}
	return nil
}

// WithMapping returns a copy of the profile with the shared mapping node
// enabled or disabled.
func (p *Profile) WithMapping(enabled bool) *Profile {
	cp := *p
	cp.Mapping = ""
	if enabled {
		for purpose, im := range p.Intermediates {
			if im.Role == Mapping {
				cp.Mapping = purpose
				break
			}
		}
	}
	return &cp
}

// Catalog derives the host node registry implied by the profile, used to
// give the in-memory host the same socket checks an editor performs.
func (p *Profile) Catalog() graph.Catalog {
	cat := graph.Catalog{}
	slotNames := make([]string, 0, len(p.Shader.Slots))
	for _, s := range p.Shader.Slots {
		slotNames = append(slotNames, s.Name)
	}
	for _, t := range p.Shader.NodeTypes {
		cat[t] = graph.NodeType{Inputs: slotNames, Outputs: []string{p.Shader.Output}}
	}

	texOutputs := p.Texture.Outputs
	if len(texOutputs) == 0 {
		texOutputs = []string{p.Texture.Output}
	}
	var texInputs []string
	if p.Texture.MappingInput != "" {
		texInputs = []string{p.Texture.MappingInput}
	}
	texType := graph.NodeType{Inputs: texInputs, Outputs: texOutputs, Params: []string{p.Texture.ColorSpaceParam}}
	cat[p.Texture.NodeType] = texType
	for _, t := range p.Texture.Types {
		cat[t] = texType
	}

	purposes := make([]string, 0, len(p.Intermediates))
	for purpose := range p.Intermediates {
		purposes = append(purposes, purpose)
	}
	sort.Strings(purposes)
	for _, purpose := range purposes {
		im := p.Intermediates[purpose]
		nt := cat[im.NodeType]
		nt.Inputs = mergeNames(nt.Inputs, im.Inputs)
		nt.Outputs = mergeNames(nt.Outputs, im.Outputs)
		params := make([]string, 0, len(im.Params))
		for k := range im.Params {
			params = append(params, k)
		}
		sort.Strings(params)
		nt.Params = mergeNames(nt.Params, params)
		cat[im.NodeType] = nt
	}
	return cat
}

func mergeNames(a, b []string) []string {
	out := slices.Clone(a)
	for _, n := range b {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
