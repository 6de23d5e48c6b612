package shader

import "pbr-autowire/internal/pbr"

// Purposes of the intermediates in the default profile.
const (
	PurposeNormalMap    = "normal_map"
	PurposeDisplacement = "displacement"
	PurposeAOMultiply   = "ao_multiply"
	PurposeEmission     = "emission"
	PurposeSplitORM     = "split_orm"
	PurposeSplitORS     = "split_ors"
	PurposeMapping      = "mapping"
)

// DefaultProfile targets the LuxCore Disney material node.
func DefaultProfile() *Profile {
	return &Profile{
		Name: "luxcore-disney",
		Shader: Descriptor{
			Name:      "Disney",
			NodeTypes: []string{"LuxCoreNodeMatDisney", "LuxCoreNodeMatDisney2", "luxcore_material_disney"},
			Output:    "Material",
			Slots: []Slot{
				{Name: "Base Color", Kind: Color},
				{Name: "Subsurface", Kind: Scalar},
				{Name: "Metallic", Kind: Scalar},
				{Name: "Specular", Kind: Scalar},
				{Name: "Specular Tint", Kind: Scalar},
				{Name: "Roughness", Kind: Scalar},
				{Name: "Anisotropic", Kind: Scalar},
				{Name: "Sheen", Kind: Scalar},
				{Name: "Sheen Tint", Kind: Scalar},
				{Name: "Clearcoat", Kind: Scalar},
				{Name: "Clearcoat Gloss", Kind: Scalar},
				{Name: "Opacity", Kind: Scalar},
				{Name: "Bump", Kind: Vector},
				{Name: "Emission", Kind: Color},
				{Name: "Displacement", Kind: Vector},
			},
		},
		Texture: TextureSpec{
			NodeType:        "LuxCoreNodeTexImagemap",
			Types:           []string{"LuxCoreNodeTexImagemap", "ShaderNodeTexImage"},
			Output:          "Color",
			Outputs:         []string{"Color", "Alpha"},
			MappingInput:    "2D Mapping",
			ColorSpaceParam: "color_space",
			ColorValue:      "sRGB",
			NonColorValue:   "Non-Color",
		},
		Intermediates: map[string]Intermediate{
			PurposeNormalMap: {
				Purpose:  PurposeNormalMap,
				NodeType: "LuxCoreNodeTexNormalmap",
				Label:    "Normal Map",
				Inputs:   []string{"Color"},
				Outputs:  []string{"Bump"},
				Params:   map[string]any{"scale": 1.0},
			},
			PurposeDisplacement: {
				Purpose:  PurposeDisplacement,
				NodeType: "LuxCoreNodeShapeHeightDisplacement",
				Label:    "Height Displacement",
				Inputs:   []string{"Height"},
				Outputs:  []string{"Shape"},
				Params:   map[string]any{"height": 0.01, "scale": 0.02, "normal_smooth": true},
			},
			PurposeAOMultiply: {
				Purpose:  PurposeAOMultiply,
				Role:     Combine,
				NodeType: "LuxCoreNodeTexMath",
				Label:    "AO Multiply",
				Inputs:   []string{"Value 1", "Value 2"},
				Outputs:  []string{"Value"},
				Params:   map[string]any{"mode": "multiply"},
				Partner:  pbr.BaseColor,
			},
			PurposeEmission: {
				Purpose:  PurposeEmission,
				NodeType: "LuxCoreNodeMatEmission",
				Label:    "Emission",
				Inputs:   []string{"Color"},
				Outputs:  []string{"Emission"},
				Params:   map[string]any{"gain": 1.0},
			},
			PurposeSplitORM: {
				Purpose:  PurposeSplitORM,
				Role:     Split,
				NodeType: "LuxCoreNodeTexSplitFloat3",
				Label:    "Split ORM",
				Inputs:   []string{"Color"},
				Outputs:  []string{"R", "G", "B"},
			},
			PurposeSplitORS: {
				Purpose:  PurposeSplitORS,
				Role:     Split,
				NodeType: "LuxCoreNodeTexSplitFloat3",
				Label:    "Split ORS",
				Inputs:   []string{"Color"},
				Outputs:  []string{"R", "G", "B"},
			},
			PurposeMapping: {
				Purpose:  PurposeMapping,
				Role:     Mapping,
				NodeType: "LuxCoreNodeTexMapping2D",
				Label:    "Shared UV Mapping",
				Outputs:  []string{"2D Mapping"},
				Params:   map[string]any{"uscale": 1.0, "vscale": 1.0},
			},
		},
		Routes: []Route{
			{Channel: pbr.BaseColor, Slot: "Base Color"},
			{Channel: pbr.AmbientOcclusion, Slot: "Base Color", Via: PurposeAOMultiply},
			{Channel: pbr.Normal, Slot: "Bump", Via: PurposeNormalMap},
			{Channel: pbr.Roughness, Slot: "Roughness"},
			{Channel: pbr.Metallic, Slot: "Metallic"},
			{Channel: pbr.Specular, Slot: "Specular"},
			{Channel: pbr.Height, Slot: "Displacement", Via: PurposeDisplacement},
			{Channel: pbr.Emission, Slot: "Emission", Via: PurposeEmission},
			{Channel: pbr.Alpha, Slot: "Opacity"},
			{Channel: pbr.PackedORM, Via: PurposeSplitORM},
			{Channel: pbr.PackedORS, Via: PurposeSplitORS},
		},
		// Principled BSDF inputs, under both the 4.x and 3.x socket names.
		Transfers: []Transfer{
			{From: []string{"Base Color"}, To: "Base Color"},
			{From: []string{"Metallic"}, To: "Metallic"},
			{From: []string{"Roughness"}, To: "Roughness"},
			{From: []string{"Specular IOR Level", "Specular"}, To: "Specular"},
			{From: []string{"Sheen Weight", "Sheen"}, To: "Sheen"},
			{From: []string{"Sheen Tint"}, To: "Sheen Tint"},
			{From: []string{"Coat Weight", "Clearcoat"}, To: "Clearcoat"},
			{From: []string{"Coat Roughness", "Clearcoat Roughness"}, To: "Clearcoat Gloss", Invert: true},
			{From: []string{"Alpha"}, To: "Opacity"},
		},
	}
}
