package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbr-autowire/internal/classify"
	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/shader"
)

func link(from graph.NodeID, out string, to graph.NodeID, in string) graph.Link {
	return graph.Link{From: graph.Socket{Node: from, Name: out}, To: graph.Socket{Node: to, Name: in}}
}

func materialGraph() *graph.Snapshot {
	nodes := []graph.Node{
		{ID: "disney", Type: "LuxCoreNodeMatDisney"},
		{ID: "principled", Type: "ShaderNodeBsdfPrincipled"},
		{ID: "base", Type: "LuxCoreNodeTexImagemap", Image: "//textures/Floor_BaseColor_4k.png"},
		{ID: "nrm", Type: "ShaderNodeTexImage", Label: "Normal", Image: "tex_07.png"},
		{ID: "nmap", Type: "LuxCoreNodeTexNormalmap"},
		{ID: "keyed", Type: "LuxCoreNodeTexImagemap", Name: "pbr:tex:roughness", Image: "IMG_003.png"},
		{ID: "orphan", Type: "LuxCoreNodeTexImagemap", Image: "Floor_height.png"},
		{ID: "mystery", Type: "LuxCoreNodeTexImagemap", Image: "IMG_004.png"},
		{ID: "mix", Type: "LuxCoreNodeTexMath"},
	}
	links := []graph.Link{
		link("base", "Color", "disney", "Base Color"),
		link("nrm", "Color", "nmap", "Color"),
		link("nmap", "Bump", "disney", "Bump"),
		link("keyed", "Color", "disney", "Metallic"),
		link("mystery", "Color", "principled", "Base Color"),
	}
	return graph.NewSnapshot(nodes, links)
}

func TestInspectAnnotatesTextures(t *testing.T) {
	in, err := New(nil, nil).Inspect(materialGraph(), "disney")
	require.NoError(t, err)
	require.Len(t, in.Textures, 5)

	byID := map[graph.NodeID]TextureNode{}
	for _, tn := range in.Textures {
		byID[tn.Node.ID] = tn
	}

	base := byID["base"]
	assert.Equal(t, pbr.BaseColor, base.Channel)
	assert.Equal(t, classify.Matched, base.Class.Outcome)
	assert.True(t, base.Upstream)
	assert.True(t, base.Linked)

	nrm := byID["nrm"]
	assert.Equal(t, pbr.Normal, nrm.Channel, "label wins where the image name says nothing")
	assert.True(t, nrm.Linked, "reaches Bump through the normal map node")

	keyed := byID["keyed"]
	assert.Equal(t, pbr.Roughness, keyed.Channel)
	assert.True(t, keyed.Keyed)
	assert.True(t, keyed.Upstream)
	assert.False(t, keyed.Linked, "wired into Metallic, not Roughness")

	orphan := byID["orphan"]
	assert.Equal(t, pbr.Height, orphan.Channel)
	assert.False(t, orphan.Upstream)

	assert.Equal(t, pbr.Unknown, byID["mystery"].Channel)
	assert.False(t, byID["mystery"].Upstream, "feeds another shader")
}

func TestInspectRecognizesIntermediates(t *testing.T) {
	in, err := New(nil, nil).Inspect(materialGraph(), "disney")
	require.NoError(t, err)

	nm, ok := in.Intermediates[shader.PurposeNormalMap]
	require.True(t, ok)
	assert.Equal(t, graph.NodeID("nmap"), nm.ID)

	_, ok = in.Intermediates[shader.PurposeAOMultiply]
	assert.False(t, ok, "a math node not feeding Base Color is not the AO multiply")
}

func TestInspectRecognizesKeyedAndSplitNodes(t *testing.T) {
	nodes := []graph.Node{
		{ID: "disney", Type: "LuxCoreNodeMatDisney"},
		{ID: "orm", Type: "LuxCoreNodeTexImagemap", Image: "Crate_ORM.png"},
		{ID: "split", Type: "LuxCoreNodeTexSplitFloat3"},
		{ID: "disp", Type: "LuxCoreNodeShapeHeightDisplacement", Name: "pbr:displacement"},
		{ID: "map", Type: "LuxCoreNodeTexMapping2D"},
	}
	links := []graph.Link{
		link("orm", "Color", "split", "Color"),
		link("split", "G", "disney", "Roughness"),
	}
	in, err := New(nil, nil).Inspect(graph.NewSnapshot(nodes, links), "disney")
	require.NoError(t, err)

	assert.Equal(t, graph.NodeID("split"), in.Intermediates[shader.PurposeSplitORM].ID)
	_, ok := in.Intermediates[shader.PurposeSplitORS]
	assert.False(t, ok, "split is fed by an ORM texture")
	assert.Equal(t, graph.NodeID("disp"), in.Intermediates[shader.PurposeDisplacement].ID)
	assert.Equal(t, graph.NodeID("map"), in.Intermediates[shader.PurposeMapping].ID)

	orm, ok := in.Texture(pbr.PackedORM)
	require.True(t, ok)
	assert.True(t, orm.Linked)
}

func TestInspectionLookups(t *testing.T) {
	in, err := New(nil, nil).Inspect(materialGraph(), "disney")
	require.NoError(t, err)

	tn, ok := in.TextureByImage(`//textures\Floor_BaseColor_4k.png`)
	require.True(t, ok)
	assert.Equal(t, graph.NodeID("base"), tn.Node.ID)

	_, ok = in.TextureByImage("")
	assert.False(t, ok)

	tn, ok = in.TextureByID("nrm")
	require.True(t, ok)
	assert.Equal(t, "Normal", tn.Node.Label)

	_, ok = in.Texture(pbr.Emission)
	assert.False(t, ok)
}

func TestTexturePrefersKeyedThenUpstream(t *testing.T) {
	nodes := []graph.Node{
		{ID: "disney", Type: "LuxCoreNodeMatDisney"},
		{ID: "loose", Type: "LuxCoreNodeTexImagemap", Image: "a_rough.png"},
		{ID: "wired", Type: "LuxCoreNodeTexImagemap", Image: "b_rough.png"},
	}
	snap := graph.NewSnapshot(nodes, []graph.Link{link("wired", "Color", "disney", "Roughness")})
	in, err := New(nil, nil).Inspect(snap, "disney")
	require.NoError(t, err)
	tn, _ := in.Texture(pbr.Roughness)
	assert.Equal(t, graph.NodeID("wired"), tn.Node.ID)

	nodes = append(nodes, graph.Node{ID: "ours", Type: "LuxCoreNodeTexImagemap", Name: "pbr:tex:roughness.1"})
	in, err = New(nil, nil).Inspect(graph.NewSnapshot(nodes, snap.Links), "disney")
	require.NoError(t, err)
	tn, _ = in.Texture(pbr.Roughness)
	assert.Equal(t, graph.NodeID("ours"), tn.Node.ID)
}

func TestInspectMissingShader(t *testing.T) {
	_, err := New(nil, nil).Inspect(materialGraph(), "nope")
	assert.ErrorIs(t, err, ErrTargetShaderMissing)

	_, err = New(nil, nil).Inspect(materialGraph(), "principled")
	assert.ErrorIs(t, err, ErrNotAShader)
}

func TestFeeding(t *testing.T) {
	textures, err := New(nil, nil).Feeding(materialGraph(), "principled")
	require.NoError(t, err)
	require.Len(t, textures, 1)
	assert.Equal(t, graph.NodeID("mystery"), textures[0].Node.ID)

	_, err = New(nil, nil).Feeding(materialGraph(), "nope")
	assert.ErrorIs(t, err, ErrTargetShaderMissing)
}

func TestChannelFromKey(t *testing.T) {
	ch, ok := channelFromKey("pbr:tex:ambient_occlusion.2")
	assert.True(t, ok)
	assert.Equal(t, pbr.AmbientOcclusion, ch)

	_, ok = channelFromKey("pbr:tex:sparkle")
	assert.False(t, ok)
	_, ok = channelFromKey("Image Texture")
	assert.False(t, ok)
}
