package plan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/inspect"
	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/shader"
	"pbr-autowire/internal/texture"
)

var disney = graph.Node{ID: "disney", Type: "LuxCoreNodeMatDisney", Name: "Disney"}

func texNode(id, image, colorSpace string) graph.Node {
	return graph.Node{
		ID:     graph.NodeID(id),
		Type:   "LuxCoreNodeTexImagemap",
		Image:  image,
		Params: map[string]any{"color_space": colorSpace},
	}
}

func link(from graph.NodeID, out string, to graph.NodeID, in string) graph.Link {
	return graph.Link{From: graph.Socket{Node: from, Name: out}, To: graph.Socket{Node: to, Name: in}}
}

func inspectGraph(t *testing.T, p *shader.Profile, nodes []graph.Node, links []graph.Link) *inspect.Inspection {
	t.Helper()
	in, err := inspect.New(nil, p).Inspect(graph.NewSnapshot(nodes, links), disney.ID)
	require.NoError(t, err)
	return in
}

func opStrings(p *Plan) []string {
	out := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		out = append(out, op.String())
	}
	return out
}

func src(path string) texture.Source { return texture.Source{Path: path} }

func TestPlanHeightUsesDisplacementNode(t *testing.T) {
	in := inspectGraph(t, nil, []graph.Node{disney}, nil)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.Height: src("Floor_height.png")})

	want := []string{
		"create LuxCoreNodeTexImagemap pbr:tex:height",
		"create LuxCoreNodeShapeHeightDisplacement pbr:displacement",
		"set pbr:tex:height.color_space = Non-Color",
		"set pbr:displacement.height = 0.01",
		"set pbr:displacement.normal_smooth = true",
		"set pbr:displacement.scale = 0.02",
		"link pbr:tex:height[Color] -> pbr:displacement[Height]",
		"link pbr:displacement[Shape] -> disney[Displacement]",
	}
	if diff := cmp.Diff(want, opStrings(p)); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []pbr.Channel{pbr.Height}, p.Wired)

	for _, op := range p.Ops {
		if op.Kind == CreateLink && op.To.Node.ID == disney.ID {
			assert.Equal(t, Ref{Key: "pbr:displacement"}, op.From.Node, "no direct texture link into the shader")
		}
	}
}

func TestPlanAOMultipliesOntoBaseColor(t *testing.T) {
	in := inspectGraph(t, nil,
		[]graph.Node{disney, texNode("b", "B.png", "sRGB")},
		[]graph.Link{link("b", "Color", "disney", "Base Color")},
	)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{
		pbr.BaseColor:        src("B.png"),
		pbr.AmbientOcclusion: src("A.png"),
	})

	want := []string{
		"create LuxCoreNodeTexImagemap pbr:tex:ambient_occlusion",
		"create LuxCoreNodeTexMath pbr:ao_multiply",
		"set pbr:tex:ambient_occlusion.color_space = Non-Color",
		"set pbr:ao_multiply.mode = multiply",
		"unlink b[Color] -> disney[Base Color]",
		"link b[Color] -> pbr:ao_multiply[Value 1]",
		"link pbr:tex:ambient_occlusion[Color] -> pbr:ao_multiply[Value 2]",
		"link pbr:ao_multiply[Value] -> disney[Base Color]",
	}
	if diff := cmp.Diff(want, opStrings(p)); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []pbr.Channel{pbr.BaseColor, pbr.AmbientOcclusion}, p.Wired)
	assert.Empty(t, p.Skipped)
}

func TestPlanAOPairsWithExistingBaseColor(t *testing.T) {
	in := inspectGraph(t, nil,
		[]graph.Node{disney, texNode("b", "Floor_BaseColor.png", "sRGB")},
		[]graph.Link{link("b", "Color", "disney", "Base Color")},
	)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.AmbientOcclusion: src("A.png")})

	assert.Contains(t, opStrings(p), "link b[Color] -> pbr:ao_multiply[Value 1]")
	assert.Equal(t, []pbr.Channel{pbr.AmbientOcclusion}, p.Wired)
}

func TestPlanAOWithoutBaseColorIsSkipped(t *testing.T) {
	in := inspectGraph(t, nil, []graph.Node{disney}, nil)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.AmbientOcclusion: src("A.png")})

	assert.True(t, p.Empty())
	require.Len(t, p.Skipped, 1)
	assert.Equal(t, ReasonNeedsBaseColor, p.Skipped[0].Reason)
}

func TestPlanUnknownContributesNothing(t *testing.T) {
	in := inspectGraph(t, nil, []graph.Node{disney}, nil)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.Unknown: src("IMG_003.png")})

	assert.True(t, p.Empty())
	assert.Empty(t, p.Wired)
	require.Len(t, p.Skipped, 1)
	assert.Equal(t, ReasonUnknown, p.Skipped[0].Reason)
	assert.Equal(t, "IMG_003.png", p.Skipped[0].Source.Name())
}

func TestPlanCorrectlyWiredIsEmpty(t *testing.T) {
	in := inspectGraph(t, nil,
		[]graph.Node{disney, texNode("r", "R.png", "Non-Color")},
		[]graph.Link{link("r", "Color", "disney", "Roughness")},
	)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.Roughness: src("R.png")})

	assert.True(t, p.Empty(), "got %v", opStrings(p))
	assert.Equal(t, []pbr.Channel{pbr.Roughness}, p.Wired)
}

func TestPlanFixesMislinkedTexture(t *testing.T) {
	in := inspectGraph(t, nil,
		[]graph.Node{disney, texNode("r", "R.png", "sRGB")},
		[]graph.Link{link("r", "Color", "disney", "Metallic")},
	)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.Roughness: src("R.png")})

	want := []string{
		"set r.color_space = Non-Color",
		"unlink r[Color] -> disney[Metallic]",
		"link r[Color] -> disney[Roughness]",
	}
	if diff := cmp.Diff(want, opStrings(p)); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, p.Count(CreateNode), "existing node is never recreated")
}

func TestPlanReplacesStaleLinkIntoSlot(t *testing.T) {
	in := inspectGraph(t, nil,
		[]graph.Node{disney, texNode("old", "old_rough.png", "Non-Color")},
		[]graph.Link{link("old", "Color", "disney", "Roughness")},
	)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.Roughness: src("new_rough.png")})

	ops := opStrings(p)
	assert.Contains(t, ops, "unlink old[Color] -> disney[Roughness]")
	assert.Contains(t, ops, "link pbr:tex:roughness[Color] -> disney[Roughness]")
}

func TestPlanReusesRecognizedIntermediate(t *testing.T) {
	nm := graph.Node{ID: "nm", Type: "LuxCoreNodeTexNormalmap", Label: "Normal Map"}
	in := inspectGraph(t, nil,
		[]graph.Node{disney, nm},
		[]graph.Link{link("nm", "Bump", "disney", "Bump")},
	)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.Normal: src("Floor_nrm.png")})

	want := []string{
		"create LuxCoreNodeTexImagemap pbr:tex:normal",
		"set pbr:tex:normal.color_space = Non-Color",
		"link pbr:tex:normal[Color] -> nm[Color]",
	}
	if diff := cmp.Diff(want, opStrings(p)); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanPackedORM(t *testing.T) {
	in := inspectGraph(t, nil, []graph.Node{disney}, nil)
	p := New(nil, nil).Plan(in, map[pbr.Channel]texture.Source{
		pbr.BaseColor: src("Crate_BaseColor.png"),
		pbr.PackedORM: src("Crate_ORM.png"),
		pbr.Roughness: src("Crate_Roughness.png"),
	})

	require.Len(t, p.Skipped, 1)
	assert.Equal(t, pbr.Roughness, p.Skipped[0].Channel)
	assert.Equal(t, ReasonCovered, p.Skipped[0].Reason)

	ops := opStrings(p)
	assert.Contains(t, ops, "link pbr:tex:orm[Color] -> pbr:split_orm[Color]")
	assert.Contains(t, ops, "link pbr:split_orm[R] -> pbr:ao_multiply[Value 2]")
	assert.Contains(t, ops, "link pbr:split_orm[G] -> disney[Roughness]")
	assert.Contains(t, ops, "link pbr:split_orm[B] -> disney[Metallic]")
	assert.Equal(t, 1, countPrefix(ops, "create LuxCoreNodeTexSplitFloat3"), "one split node")
	assert.Equal(t,
		[]pbr.Channel{pbr.BaseColor, pbr.AmbientOcclusion, pbr.Roughness, pbr.Metallic, pbr.PackedORM},
		p.Wired)
}

func TestPlanSlotTaken(t *testing.T) {
	prof := shader.DefaultProfile()
	for i, r := range prof.Routes {
		if r.Channel == pbr.Specular {
			prof.Routes[i].Slot = "Roughness"
		}
	}
	in := inspectGraph(t, prof, []graph.Node{disney}, nil)
	p := New(prof, nil).Plan(in, map[pbr.Channel]texture.Source{
		pbr.Roughness: src("R.png"),
		pbr.Specular:  src("S.png"),
	})

	require.Len(t, p.Skipped, 1)
	assert.Equal(t, pbr.Specular, p.Skipped[0].Channel)
	assert.Equal(t, ReasonSlotTaken, p.Skipped[0].Reason)
	assert.Empty(t, p.ForChannel(pbr.Specular))
}

func TestPlanSharedMapping(t *testing.T) {
	prof := shader.DefaultProfile().WithMapping(true)
	in := inspectGraph(t, prof, []graph.Node{disney}, nil)
	p := New(prof, nil).Plan(in, map[pbr.Channel]texture.Source{
		pbr.Roughness: src("R.png"),
		pbr.Metallic:  src("M.png"),
	})

	ops := opStrings(p)
	assert.Equal(t, 1, countPrefix(ops, "create LuxCoreNodeTexMapping2D"))
	assert.Contains(t, ops, "link pbr:mapping[2D Mapping] -> pbr:tex:roughness[2D Mapping]")
	assert.Contains(t, ops, "link pbr:mapping[2D Mapping] -> pbr:tex:metallic[2D Mapping]")
}

func TestPlanIsDeterministic(t *testing.T) {
	sources := map[pbr.Channel]texture.Source{
		pbr.BaseColor:        src("B.png"),
		pbr.Normal:           src("N.png"),
		pbr.Roughness:        src("R.png"),
		pbr.Height:           src("H.png"),
		pbr.AmbientOcclusion: src("A.png"),
		pbr.Emission:         src("E.png"),
	}
	in := inspectGraph(t, nil, []graph.Node{disney}, nil)
	first := opStrings(New(nil, nil).Plan(in, sources))
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, opStrings(New(nil, nil).Plan(in, sources))); diff != "" {
			t.Fatalf("plan changed between runs:\n%s", diff)
		}
	}
}

func TestPlanOrdersPhasesPerChannel(t *testing.T) {
	prof := shader.DefaultProfile().WithMapping(true)
	in := inspectGraph(t, prof,
		[]graph.Node{disney, texNode("old", "old_rough.png", "Non-Color")},
		[]graph.Link{link("old", "Color", "disney", "Roughness")},
	)
	p := New(prof, nil).Plan(in, map[pbr.Channel]texture.Source{
		pbr.Height:           src("H.png"),
		pbr.Roughness:        src("R.png"),
		pbr.BaseColor:        src("B.png"),
		pbr.AmbientOcclusion: src("A.png"),
		pbr.Normal:           src("N.png"),
		pbr.PackedORS:        src("ORS.png"),
	})
	require.NotZero(t, p.Count(RemoveLink))

	channels := map[pbr.Channel]bool{}
	for _, op := range p.Ops {
		channels[op.Channel] = true
	}
	for ch := range channels {
		last := -1
		for _, op := range p.ForChannel(ch) {
			assert.GreaterOrEqual(t, op.Kind.phase(), last, "%s out of order for channel %s", op, ch)
			last = op.Kind.phase()
		}
	}

	created := map[string]bool{}
	for _, op := range p.Ops {
		switch op.Kind {
		case CreateNode:
			created[op.Node.Key] = true
		case SetParameter:
			if op.Node.Key != "" {
				assert.True(t, created[op.Node.Key], "%s before create", op)
			}
		case CreateLink:
			for _, ref := range []Ref{op.From.Node, op.To.Node} {
				if ref.Key != "" {
					assert.True(t, created[ref.Key], "%s before create", op)
				}
			}
		}
	}
}

func TestPlanHeightWithMappingCreatesBeforeLinking(t *testing.T) {
	prof := shader.DefaultProfile().WithMapping(true)
	in := inspectGraph(t, prof, []graph.Node{disney}, nil)
	p := New(prof, nil).Plan(in, map[pbr.Channel]texture.Source{pbr.Height: src("H.png")})

	want := []string{
		"create LuxCoreNodeTexImagemap pbr:tex:height",
		"create LuxCoreNodeTexMapping2D pbr:mapping",
		"create LuxCoreNodeShapeHeightDisplacement pbr:displacement",
	}
	var creates []string
	for _, op := range p.ForChannel(pbr.Height) {
		if op.Kind == CreateNode {
			creates = append(creates, op.String())
		}
	}
	if diff := cmp.Diff(want, creates); diff != "" {
		t.Errorf("creates mismatch (-want +got):\n%s", diff)
	}
	ops := p.ForChannel(pbr.Height)
	for i, op := range ops[:len(ops)-1] {
		if op.Kind == CreateLink {
			assert.Equal(t, CreateLink, ops[i+1].Kind, "%s followed by %s", op, ops[i+1])
		}
	}
}

var principled = graph.Node{
	ID:   "principled",
	Type: "ShaderNodeBsdfPrincipled",
	Params: map[string]any{
		"Base Color":         []any{0.8, 0.2, 0.1, 1.0},
		"Metallic":           1.0,
		"Roughness":          0.3,
		"Specular IOR Level": 0.5,
		"Specular":           0.9,
		"Coat Roughness":     0.25,
	},
}

func TestPlanConversionTransfersUnlinkedValues(t *testing.T) {
	in := inspectGraph(t, nil,
		[]graph.Node{disney, principled, texNode("m", "Rock_Metal.png", "Non-Color")},
		[]graph.Link{link("m", "Color", "principled", "Metallic")},
	)
	p := New(nil, nil).PlanConversion(in, map[pbr.Channel]texture.Source{pbr.Roughness: src("R.png")}, principled)

	ops := opStrings(p)
	assert.Contains(t, ops, "set disney.Base Color = [0.8 0.2 0.1]", "alpha dropped")
	assert.Contains(t, ops, "set disney.Specular = 0.5", "newer socket name first")
	assert.Contains(t, ops, "set disney.Clearcoat Gloss = 0.75", "roughness inverted to gloss")
	assert.NotContains(t, ops, "set disney.Roughness = 0.3", "target input fed by a texture")
	for _, op := range ops {
		assert.NotContains(t, op, "disney.Metallic", "source input fed by a texture")
	}
	assert.Equal(t, []string{"Base Color", "Specular", "Clearcoat Gloss"}, p.Transferred)
}

func TestPlanConversionSkipsValuesInPlace(t *testing.T) {
	target := disney
	target.Params = map[string]any{"Roughness": 0.3}
	in, err := inspect.New(nil, nil).Inspect(graph.NewSnapshot([]graph.Node{target, principled}, nil), disney.ID)
	require.NoError(t, err)

	p := New(nil, nil).PlanConversion(in, nil, principled)
	assert.NotContains(t, p.Transferred, "Roughness")
	assert.Contains(t, p.Transferred, "Metallic")
	assert.Empty(t, p.ForChannel(pbr.Roughness))

	plain := New(nil, nil).Plan(in, nil)
	assert.True(t, plain.Empty(), "values only move on conversion")
}

func countPrefix(ops []string, prefix string) int {
	n := 0
	for _, op := range ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
