package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/token"
)

func TestClassifyNamingConventions(t *testing.T) {
	c := New(nil)
	tests := []struct {
		name string
		want pbr.Channel
	}{
		{"Floor_BaseColor_4k.png", pbr.BaseColor},
		{"Floor_nrm.jpg", pbr.Normal},
		{"Floor_rough.png", pbr.Roughness},
		{"Floor_height.png", pbr.Height},
		{"Floor_Albedo.jpg", pbr.BaseColor},
		{"Floor_diffuse_2k.png", pbr.BaseColor},
		{"Floor_col.png", pbr.BaseColor},
		{"Floor_Metalness.png", pbr.Metallic},
		{"Floor_metal.png", pbr.Metallic},
		{"Floor_Roughness.png", pbr.Roughness},
		{"Floor_Displacement.exr", pbr.Height},
		{"Floor_bump.png", pbr.Height},
		{"Floor_AO.png", pbr.AmbientOcclusion},
		{"Floor_AmbientOcclusion.png", pbr.AmbientOcclusion},
		{"Floor_cavity.png", pbr.AmbientOcclusion},
		{"Floor_Emissive.png", pbr.Emission},
		{"Floor_emit.png", pbr.Emission},
		{"Floor_Specular.png", pbr.Specular},
		{"Floor_spec.png", pbr.Specular},
		{"Floor_Opacity.png", pbr.Alpha},
		{"Floor_alpha.png", pbr.Alpha},
		{"Floor_transparency.png", pbr.Alpha},
		{"Floor_NormalGL_4k.png", pbr.Normal},
		{"Floor_ORM.png", pbr.PackedORM},
		{"Floor_OcclusionRoughnessMetallic.png", pbr.PackedORM},
		{"Floor_MetallicRoughness.png", pbr.PackedORM},
		{"Floor_ORS.png", pbr.PackedORS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.ClassifyName(tt.name)
			assert.Equal(t, tt.want, res.Channel, "tokens=%v", token.Normalize(tt.name))
			assert.Equal(t, Matched, res.Outcome)
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	c := New(nil)
	for _, name := range []string{"IMG_003.png", "", "texture", "Untitled.001"} {
		res := c.ClassifyName(name)
		assert.Equal(t, pbr.Unknown, res.Channel, name)
		assert.Equal(t, NoMatch, res.Outcome, name)
	}
}

func TestClassifyAmbiguousNameResolvesByPriority(t *testing.T) {
	c := New(nil)
	first := c.ClassifyName("Tile_normalheight.png")
	require.Equal(t, Matched, first.Outcome)
	assert.Equal(t, pbr.Normal, first.Channel)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.ClassifyName("Tile_normalheight.png"))
	}
}

func TestClassifyLongerPatternBreaksPriorityTie(t *testing.T) {
	table, err := NewTable([]Rule{
		{Channel: pbr.Roughness, Priority: 5, Exact: []string{"col"}},
		{Channel: pbr.BaseColor, Priority: 5, Contains: []string{"basecolor"}},
	})
	require.NoError(t, err)

	res := New(table).ClassifyName("Floor_col_BaseColor")
	assert.Equal(t, pbr.BaseColor, res.Channel)
	assert.Equal(t, "basecolor", res.Pattern)
}

func TestClassifyTieBreaksOnPatternNotCandidateLength(t *testing.T) {
	table, err := NewTable([]Rule{
		{Channel: pbr.Roughness, Priority: 5, Contains: []string{"ro"}},
		{Channel: pbr.Metallic, Priority: 5, Exact: []string{"mtl"}},
	})
	require.NoError(t, err)

	res := New(table).ClassifyName("roughnessmap_mtl")
	assert.Equal(t, pbr.Metallic, res.Channel)
	assert.Equal(t, "mtl", res.Pattern)
	assert.Equal(t, "mtl", res.Candidate)
}

func TestClassifyUnresolvableTieIsAmbiguous(t *testing.T) {
	table, err := NewTable([]Rule{
		{Channel: pbr.Normal, Priority: 5, Contains: []string{"abcd"}},
		{Channel: pbr.Height, Priority: 5, Contains: []string{"wxyz"}},
	})
	require.NoError(t, err)

	res := New(table).ClassifyName("abcd_wxyz")
	assert.Equal(t, Ambiguous, res.Outcome)
	assert.Equal(t, pbr.Unknown, res.Channel)
	assert.Equal(t, []pbr.Channel{pbr.Normal, pbr.Height}, res.Contenders)
}

func TestClassifyGroupsDoNotJoinAcrossLabels(t *testing.T) {
	table, err := NewTable([]Rule{
		{Channel: pbr.AmbientOcclusion, Priority: 1, Exact: []string{"ao"}},
	})
	require.NoError(t, err)
	c := New(table)

	assert.Equal(t, pbr.Unknown, c.ClassifyName("a", "o").Channel)
	assert.Equal(t, pbr.AmbientOcclusion, c.ClassifyName("a_o").Channel)
}

func TestClassifyCombinesLabelAndImageName(t *testing.T) {
	res := New(nil).ClassifyName("Image Texture.002", "Wall_Normal_2k.png")
	assert.Equal(t, pbr.Normal, res.Channel)
}

func TestNewTableValidation(t *testing.T) {
	_, err := NewTable(nil)
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = NewTable([]Rule{{Channel: pbr.Unknown, Exact: []string{"x"}}})
	assert.Error(t, err)

	_, err = NewTable([]Rule{{Channel: pbr.Normal}})
	assert.Error(t, err)

	_, err = NewTable([]Rule{{Channel: pbr.Normal, Exact: []string{"  "}}})
	assert.Error(t, err)
}

func TestTableCopiesRules(t *testing.T) {
	rules := []Rule{{Channel: pbr.Normal, Priority: 1, Exact: []string{"NRM"}}}
	table, err := NewTable(rules)
	require.NoError(t, err)

	rules[0].Exact[0] = "changed"
	got := table.Rules()
	assert.Equal(t, []string{"nrm"}, got[0].Exact)

	got[0].Exact[0] = "mutated"
	assert.Equal(t, []string{"nrm"}, table.Rules()[0].Exact)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - channel: roughness
    priority: 10
    exact: [gloss_inv]
    contains: [rauheit]
  - channel: ao
    priority: 5
    exact: [ao]
`), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	c := New(table)
	assert.Equal(t, pbr.Roughness, c.ClassifyName("Holz_Rauheit.png").Channel)
	assert.Equal(t, pbr.AmbientOcclusion, c.ClassifyName("Holz_AO.png").Channel)
	assert.Equal(t, pbr.Unknown, c.ClassifyName("Holz_BaseColor.png").Channel)
}

func TestLoadTableErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTable(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - channel: sheen\n    exact: [x]\n"), 0o644))
	_, err = LoadTable(bad)
	assert.ErrorContains(t, err, "sheen")
}

func TestDefaultTableYAMLRoundTrip(t *testing.T) {
	data, err := yaml.Marshal(DefaultTable())
	require.NoError(t, err)

	table, err := ParseTable(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultTable().Rules(), table.Rules())
}
