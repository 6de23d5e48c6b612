package token

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Tokens
	}{
		{"camel case and resolution", "Floor_BaseColor_4k.png", Tokens{"floor", "base", "color"}},
		{"short alias", "Floor_nrm.jpg", Tokens{"floor", "nrm"}},
		{"numeric resolution", "wood-rough-4096.tif", Tokens{"wood", "rough"}},
		{"tiling index", "Rock_Height-1.exr", Tokens{"rock", "height"}},
		{"pixel size", "metal_plate_metallic_2048x2048.png", Tokens{"metal", "plate", "metallic"}},
		{"acronym", "Brick_AOMap.tga", Tokens{"brick", "ao", "map"}},
		{"windows path", `C:\tex\Tile_normalheight.png`, Tokens{"tile", "normalheight"}},
		{"unix path", "/srv/tex/Tile_Emissive.webp", Tokens{"tile", "emissive"}},
		{"host duplicate suffix", "Floor_Roughness.png.001", Tokens{"floor", "roughness"}},
		{"unknown extension kept as token", "notes.txt", Tokens{"notes", "txt"}},
		{"spaces", "Image Texture", Tokens{"image", "texture"}},
		{"numbers only", "IMG_003.png", Tokens{"img"}},
		{"mixed gl suffix", "Rock_normalGL.png", Tokens{"rock", "normal", "gl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestNormalizeDegenerateInputs(t *testing.T) {
	for _, in := range []string{"", "   ", "___", "4k", "2k.png", "/"} {
		assert.Empty(t, Normalize(in), "input %q", in)
	}
}

func TestNormalizeIsPure(t *testing.T) {
	in := "Floor_BaseColor_4k.png"
	first := Normalize(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Normalize(in))
	}
}
