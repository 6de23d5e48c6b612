package shader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pbr-autowire/internal/pbr"
)

type profileFile struct {
	Name          string                      `yaml:"name"`
	Shader        shaderFile                  `yaml:"shader"`
	Texture       textureFile                 `yaml:"texture"`
	Intermediates map[string]intermediateFile `yaml:"intermediates"`
	Routes        []routeFile                 `yaml:"routes"`
	Transfers     []transferFile              `yaml:"transfers,omitempty"`
	Mapping       string                      `yaml:"mapping,omitempty"`
}

type shaderFile struct {
	Name      string     `yaml:"name"`
	NodeTypes []string   `yaml:"node_types"`
	Output    string     `yaml:"output"`
	Slots     []slotFile `yaml:"slots"`
}

type slotFile struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"`
}

type textureFile struct {
	NodeType        string   `yaml:"node_type"`
	Types           []string `yaml:"types,omitempty"`
	Output          string   `yaml:"output"`
	Outputs         []string `yaml:"outputs,omitempty"`
	MappingInput    string   `yaml:"mapping_input,omitempty"`
	ColorSpaceParam string   `yaml:"color_space_param"`
	ColorValue      string   `yaml:"color_value"`
	NonColorValue   string   `yaml:"non_color_value"`
}

type intermediateFile struct {
	Role     string         `yaml:"role,omitempty"`
	NodeType string         `yaml:"node_type"`
	Label    string         `yaml:"label,omitempty"`
	Inputs   []string       `yaml:"inputs,omitempty"`
	Outputs  []string       `yaml:"outputs"`
	Params   map[string]any `yaml:"params,omitempty"`
	Partner  string         `yaml:"partner,omitempty"`
}

type routeFile struct {
	Channel string `yaml:"channel"`
	Slot    string `yaml:"slot,omitempty"`
	Via     string `yaml:"via,omitempty"`
}

type transferFile struct {
	From   []string `yaml:"from"`
	To     string   `yaml:"to"`
	Invert bool     `yaml:"invert,omitempty"`
}

// LoadProfile reads a YAML profile from disk.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: read %s: %w", path, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("shader: parse profile: %w", err)
	}

	p := &Profile{
		Name: f.Name,
		Shader: Descriptor{
			Name:      f.Shader.Name,
			NodeTypes: f.Shader.NodeTypes,
			Output:    f.Shader.Output,
		},
		Texture: TextureSpec{
			NodeType:        f.Texture.NodeType,
			Types:           f.Texture.Types,
			Output:          f.Texture.Output,
			Outputs:         f.Texture.Outputs,
			MappingInput:    f.Texture.MappingInput,
			ColorSpaceParam: f.Texture.ColorSpaceParam,
			ColorValue:      f.Texture.ColorValue,
			NonColorValue:   f.Texture.NonColorValue,
		},
		Intermediates: make(map[string]Intermediate, len(f.Intermediates)),
		Mapping:       f.Mapping,
	}
	for _, s := range f.Shader.Slots {
		kind, err := parseKind(s.Kind)
		if err != nil {
			return nil, err
		}
		p.Shader.Slots = append(p.Shader.Slots, Slot{Name: s.Name, Kind: kind})
	}
	for purpose, im := range f.Intermediates {
		role, err := parseRole(im.Role)
		if err != nil {
			return nil, err
		}
		partner := pbr.Unknown
		if im.Partner != "" {
			if partner, err = pbr.Parse(im.Partner); err != nil {
				return nil, err
			}
		}
		p.Intermediates[purpose] = Intermediate{
			Purpose:  purpose,
			Role:     role,
			NodeType: im.NodeType,
			Label:    im.Label,
			Inputs:   im.Inputs,
			Outputs:  im.Outputs,
			Params:   im.Params,
			Partner:  partner,
		}
	}
	for _, r := range f.Routes {
		ch, err := pbr.Parse(r.Channel)
		if err != nil {
			return nil, err
		}
		p.Routes = append(p.Routes, Route{Channel: ch, Slot: r.Slot, Via: r.Via})
	}
	for _, t := range f.Transfers {
		p.Transfers = append(p.Transfers, Transfer{From: t.From, To: t.To, Invert: t.Invert})
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MarshalYAML renders the profile in the format ParseProfile reads.
func (p *Profile) MarshalYAML() (any, error) {
	f := profileFile{
		Name: p.Name,
		Shader: shaderFile{
			Name:      p.Shader.Name,
			NodeTypes: p.Shader.NodeTypes,
			Output:    p.Shader.Output,
		},
		Texture: textureFile{
			NodeType:        p.Texture.NodeType,
			Types:           p.Texture.Types,
			Output:          p.Texture.Output,
			Outputs:         p.Texture.Outputs,
			MappingInput:    p.Texture.MappingInput,
			ColorSpaceParam: p.Texture.ColorSpaceParam,
			ColorValue:      p.Texture.ColorValue,
			NonColorValue:   p.Texture.NonColorValue,
		},
		Intermediates: make(map[string]intermediateFile, len(p.Intermediates)),
		Mapping:       p.Mapping,
	}
	for _, s := range p.Shader.Slots {
		f.Shader.Slots = append(f.Shader.Slots, slotFile{Name: s.Name, Kind: s.Kind.String()})
	}
	for purpose, im := range p.Intermediates {
		imf := intermediateFile{
			Role:     im.Role.String(),
			NodeType: im.NodeType,
			Label:    im.Label,
			Inputs:   im.Inputs,
			Outputs:  im.Outputs,
			Params:   im.Params,
		}
		if im.Partner != pbr.Unknown {
			imf.Partner = im.Partner.String()
		}
		f.Intermediates[purpose] = imf
	}
	for _, r := range p.Routes {
		f.Routes = append(f.Routes, routeFile{Channel: r.Channel.String(), Slot: r.Slot, Via: r.Via})
	}
	for _, t := range p.Transfers {
		f.Transfers = append(f.Transfers, transferFile{From: t.From, To: t.To, Invert: t.Invert})
	}
	return f, nil
}
