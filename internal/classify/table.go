package classify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pbr-autowire/internal/pbr"
)

// Rule associates token patterns with a channel. Exact patterns must equal
// a candidate token; Contains patterns may appear anywhere inside one.
type Rule struct {
	Channel  pbr.Channel
	Priority int
	Exact    []string
	Contains []string
}

// Table is an immutable, ordered set of rules.
type Table struct {
	rules []Rule
}

var ErrEmptyTable = errors.New("classify: rule table is empty")

// NewTable validates rules and returns a table holding private copies of
// them. Patterns are lowercased.
func NewTable(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table{rules: make([]Rule, 0, len(rules))}
	for i, r := range rules {
		if r.Channel == pbr.Unknown {
			return nil, fmt.Errorf("classify: rule %d: channel must not be unknown", i)
		}
		if len(r.Exact)+len(r.Contains) == 0 {
			return nil, fmt.Errorf("classify: rule %d (%s): no patterns", i, r.Channel)
		}
		exact, err := lowerAll(r.Exact)
		if err != nil {
			return nil, fmt.Errorf("classify: rule %d (%s): %w", i, r.Channel, err)
		}
		contains, err := lowerAll(r.Contains)
		if err != nil {
			return nil, fmt.Errorf("classify: rule %d (%s): %w", i, r.Channel, err)
		}
		t.rules = append(t.rules, Rule{
			Channel:  r.Channel,
			Priority: r.Priority,
			Exact:    exact,
			Contains: contains,
		})
	}
	return t, nil
}

func lowerAll(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return nil, errors.New("empty pattern")
		}
		out = append(out, p)
	}
	return out, nil
}

// Rules returns a copy of the table's rules.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = Rule{
			Channel:  r.Channel,
			Priority: r.Priority,
			Exact:    append([]string(nil), r.Exact...),
			Contains: append([]string(nil), r.Contains...),
		}
	}
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.rules) }

// DefaultRules is the built-in naming-convention table. Priorities follow
// the order in which a texture is most likely meant when a name mentions
// several roles: packed maps first, then colour, emission, normal, and so on.
func DefaultRules() []Rule {
	return []Rule{
		{Channel: pbr.PackedORM, Priority: 100,
			Exact: []string{"orm", "arm", "mro"},
			Contains: []string{"occlusionroughnessmetallic", "ambientroughnessmetallic",
				"metallicroughness", "roughnessmetallic", "metalroughness", "roughnessmetal"}},
		{Channel: pbr.PackedORS, Priority: 90,
			Exact: []string{"ors"},
			Contains: []string{"occlusionroughnessspecular", "roughnessspecularocclusion",
				"specularroughnessocclusion", "ambientroughnessspecular"}},
		{Channel: pbr.BaseColor, Priority: 80,
			Exact:    []string{"col", "color", "colour", "diff", "albedo", "diffuse"},
			Contains: []string{"basecolor", "basecolour", "albedo", "diffuse"}},
		{Channel: pbr.Emission, Priority: 75,
			Exact:    []string{"emit", "glow"},
			Contains: []string{"emission", "emissive"}},
		{Channel: pbr.Normal, Priority: 70,
			Exact:    []string{"nrm", "nor", "norm", "nrml"},
			Contains: []string{"normal"}},
		{Channel: pbr.Metallic, Priority: 60,
			Exact:    []string{"met", "mtl", "metal"},
			Contains: []string{"metallic", "metalness", "metallness"}},
		{Channel: pbr.Roughness, Priority: 50,
			Exact:    []string{"rgh"},
			Contains: []string{"rough"}},
		{Channel: pbr.Specular, Priority: 40,
			Exact:    []string{"spec", "spc"},
			Contains: []string{"specular"}},
		{Channel: pbr.Height, Priority: 30,
			Exact:    []string{"disp", "bmp"},
			Contains: []string{"height", "displacement", "bump"}},
		{Channel: pbr.Alpha, Priority: 20,
			Exact:    []string{"mask", "opac"},
			Contains: []string{"opacity", "alpha", "transparency", "transparent"}},
		{Channel: pbr.AmbientOcclusion, Priority: 10,
			Exact:    []string{"ao", "occ"},
			Contains: []string{"occlusion", "cavity"}},
	}
}

// DefaultTable returns a table built from DefaultRules.
func DefaultTable() *Table {
	t, err := NewTable(DefaultRules())
	if err != nil {
		panic(err) // built-in table is known to be valid
	}
	return t
}

type tableFile struct {
	Rules []ruleFile `yaml:"rules"`
}

type ruleFile struct {
	Channel  string   `yaml:"channel"`
	Priority int      `yaml:"priority"`
	Exact    []string `yaml:"exact"`
	Contains []string `yaml:"contains"`
}

// ParseTable decodes a YAML rule table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("classify: parse rules: %w", err)
	}
	rules := make([]Rule, 0, len(f.Rules))
	for i, rf := range f.Rules {
		ch, err := pbr.Parse(rf.Channel)
		if err != nil {
			return nil, fmt.Errorf("classify: rule %d: %w", i, err)
		}
		rules = append(rules, Rule{
			Channel:  ch,
			Priority: rf.Priority,
			Exact:    rf.Exact,
			Contains: rf.Contains,
		})
	}
	return NewTable(rules)
}

// LoadTable reads a YAML rule table from disk.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classify: read %s: %w", path, err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return t, nil
}

// MarshalYAML renders the table in the same shape LoadTable reads, so the
// built-in table can be dumped and edited.
func (t *Table) MarshalYAML() (any, error) {
	f := tableFile{Rules: make([]ruleFile, 0, len(t.rules))}
	for _, r := range t.rules {
		f.Rules = append(f.Rules, ruleFile{
			Channel:  r.Channel.String(),
			Priority: r.Priority,
			Exact:    r.Exact,
			Contains: r.Contains,
		})
	}
	return f, nil
}
