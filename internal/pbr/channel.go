// Package pbr defines the semantic texture channels of a physically-based material.
package pbr

import (
	"fmt"
	"strings"
)

// Channel is the semantic role a texture plays in a PBR material.
type Channel int

const (
	Unknown Channel = iota
	BaseColor
	Normal
	Roughness
	Metallic
	Specular
	Height
	AmbientOcclusion
	Emission
	Alpha
	PackedORM // R=occlusion, G=roughness, B=metallic
	PackedORS // R=occlusion, G=roughness, B=specular
)

var channelNames = [...]string{
	Unknown:          "unknown",
	BaseColor:        "base_color",
	Normal:           "normal",
	Roughness:        "roughness",
	Metallic:         "metallic",
	Specular:         "specular",
	Height:           "height",
	AmbientOcclusion: "ambient_occlusion",
	Emission:         "emission",
	Alpha:            "alpha",
	PackedORM:        "orm",
	PackedORS:        "ors",
}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return "unknown"
	}
	return channelNames[c]
}

// All returns every known channel except Unknown, in declaration order.
func All() []Channel {
	out := make([]Channel, 0, len(channelNames)-1)
	for c := BaseColor; int(c) < len(channelNames); c++ {
		out = append(out, c)
	}
	return out
}

// Parse maps a channel name back to its Channel. A few common aliases are
// accepted so CLI users can type "ao" or "basecolor".
func Parse(s string) (Channel, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range channelNames {
		if name == key {
			return Channel(i), nil
		}
	}
	switch key {
	case "ao", "occlusion":
		return AmbientOcclusion, nil
	case "basecolor", "color", "albedo":
		return BaseColor, nil
	case "displacement", "bump":
		return Height, nil
	case "opacity":
		return Alpha, nil
	}
	return Unknown, fmt.Errorf("pbr: unknown channel %q", s)
}

// ColorData reports whether textures of this channel carry colour data.
// Everything else is sampled as non-colour data.
func (c Channel) ColorData() bool {
	return c == BaseColor || c == Emission
}

// Packed reports whether the channel is a multi-channel packed texture.
func (c Channel) Packed() bool {
	return c == PackedORM || c == PackedORS
}

// Covers returns the channels a packed texture provides, ordered R, G, B.
func (c Channel) Covers() []Channel {
	switch c {
	case PackedORM:
		return []Channel{AmbientOcclusion, Roughness, Metallic}
	case PackedORS:
		return []Channel{AmbientOcclusion, Roughness, Specular}
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Channel) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
