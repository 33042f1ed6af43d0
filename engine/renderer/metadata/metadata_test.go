package metadata

import (
	"go/format"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textureArrayLayout(count uint32) DescriptorSetLayoutDescription {
	return NewDescriptorSetLayout().
		AddBinding(0, DescriptorKindCombinedImageSampler, count, ShaderStageFragment)
}

func TestLayoutHashIsStructural(t *testing.T) {
	a := textureArrayLayout(4)
	b := textureArrayLayout(4)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), textureArrayLayout(7).Hash())
	assert.NotEqual(t, a.Hash(), a.WithFlags(LayoutFlagUpdateAfterBindPool).Hash())
}

func TestLayoutHashIsOrderSensitive(t *testing.T) {
	ab := NewDescriptorSetLayout().
		AddBinding(0, DescriptorKindUniformBuffer, 1, ShaderStageVertex).
		AddBinding(1, DescriptorKindCombinedImageSampler, 1, ShaderStageFragment)
	ba := NewDescriptorSetLayout().
		AddBinding(1, DescriptorKindCombinedImageSampler, 1, ShaderStageFragment).
		AddBinding(0, DescriptorKindUniformBuffer, 1, ShaderStageVertex)

	assert.NotEqual(t, ab.Hash(), ba.Hash())
	assert.Equal(t, ab.Sorted().Hash(), ba.Sorted().Hash())
	// Sorted must not touch the receiver.
	assert.Equal(t, uint32(1), ba.Bindings[0].Binding)
}

func TestAddBindingDoesNotAlias(t *testing.T) {
	base := NewDescriptorSetLayout().AddBinding(0, DescriptorKindUniformBuffer, 1, ShaderStageVertex)
	x := base.AddBinding(1, DescriptorKindSampler, 1, ShaderStageFragment)
	y := base.AddBinding(1, DescriptorKindStorageBuffer, 1, ShaderStageFragment)
	assert.Len(t, base.Bindings, 1)
	assert.Equal(t, DescriptorKindSampler, x.Bindings[1].Kind)
	assert.Equal(t, DescriptorKindStorageBuffer, y.Bindings[1].Kind)
}

func TestPoolSizesAggregatesByKind(t *testing.T) {
	d := NewDescriptorSetLayout().
		AddBinding(0, DescriptorKindUniformBuffer, 1, ShaderStageVertex).
		AddBinding(1, DescriptorKindCombinedImageSampler, 3, ShaderStageFragment).
		AddBinding(2, DescriptorKindUniformBuffer, 2, ShaderStageFragment)

	assert.Equal(t, []PoolSize{
		{Kind: DescriptorKindCombinedImageSampler, Count: 3},
		{Kind: DescriptorKindUniformBuffer, Count: 3},
	}, d.PoolSizes())
}

func TestRefVariantsHashApart(t *testing.T) {
	byDesc := NewPipelineLayout(LayoutByDescription(textureArrayLayout(4)))
	byHandle := NewPipelineLayout(LayoutByHandle(1))
	assert.NotEqual(t, byDesc.Hash(), byHandle.Hash())
	assert.Equal(t, byHandle.Hash(), NewPipelineLayout(LayoutByHandle(1)).Hash())
	assert.NotEqual(t, byHandle.Hash(), NewPipelineLayout(LayoutByHandle(2)).Hash())
}

func TestRefResolve(t *testing.T) {
	calls := 0
	create := func(d DescriptorSetLayoutDescription) (DescriptorSetLayoutHandle, error) {
		calls++
		return 9, nil
	}

	h, err := LayoutByHandle(3).Resolve(create)
	require.NoError(t, err)
	assert.Equal(t, DescriptorSetLayoutHandle(3), h)
	assert.Zero(t, calls)

	h, err = LayoutByDescription(textureArrayLayout(1)).Resolve(create)
	require.NoError(t, err)
	assert.Equal(t, DescriptorSetLayoutHandle(9), h)
	assert.Equal(t, 1, calls)

	var unset LayoutRef
	assert.False(t, unset.IsSet())
	h, err = unset.Resolve(create)
	require.NoError(t, err)
	assert.Equal(t, DescriptorSetLayoutHandle(InvalidHandle), h)
}

func TestPipelineHashCoversFields(t *testing.T) {
	base := GraphicsPipelineDescription{
		Stages: []ShaderStageDescription{
			{Stage: ShaderStageVertex, Module: ShaderByHandle(1), EntryPoint: "main"},
			{Stage: ShaderStageFragment, Module: ShaderByHandle(2), EntryPoint: "main"},
		},
		VertexStride: 12,
		Attributes:   []VertexAttribute{{Location: 0, Format: FormatRGB32Float}},
		CullMode:     FaceCullModeBack,
		DepthTest:    true,
		Layout:       PipelineLayoutByHandle(5),
		Pass:         RenderPassByHandle(6),
	}

	variants := map[string]func(d *GraphicsPipelineDescription){
		"entry":     func(d *GraphicsPipelineDescription) { d.Stages[1].EntryPoint = "frag" },
		"stride":    func(d *GraphicsPipelineDescription) { d.VertexStride = 16 },
		"cull":      func(d *GraphicsPipelineDescription) { d.CullMode = FaceCullModeNone },
		"wireframe": func(d *GraphicsPipelineDescription) { d.Wireframe = true },
		"blend":     func(d *GraphicsPipelineDescription) { d.Blend = BlendModeAlpha },
		"layout":    func(d *GraphicsPipelineDescription) { d.Layout = PipelineLayoutByHandle(7) },
		"pass":      func(d *GraphicsPipelineDescription) { d.Pass = RenderPassByDescription(NewRenderPass()) },
		"subpass":   func(d *GraphicsPipelineDescription) { d.Subpass = 1 },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			d := base
			d.Stages = append([]ShaderStageDescription(nil), base.Stages...)
			mutate(&d)
			assert.NotEqual(t, base.Hash(), d.Hash())
		})
	}
}

func TestSamplerHash(t *testing.T) {
	a := DefaultSampler()
	b := DefaultSampler()
	assert.Equal(t, a.Hash(), b.Hash())
	b.MaxAnisotropy = 16
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestShaderHashUsesContent(t *testing.T) {
	a := ShaderModuleDescription{Stage: ShaderStageVertex, Code: []byte{1, 2, 3}}
	b := ShaderModuleDescription{Stage: ShaderStageVertex, Code: []byte{1, 2, 3}}
	c := ShaderModuleDescription{Stage: ShaderStageFragment, Code: []byte{1, 2, 3}}
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestTextureShape(t *testing.T) {
	assert.Equal(t, uint32(1), MipLevelCount(1, 1))
	assert.Equal(t, uint32(9), MipLevelCount(256, 3))

	s := Shape2D(64, 32, FormatRGBA8Unorm)
	require.NoError(t, s.Validate())
	assert.Equal(t, uint32(7), s.MipLevels)

	w, h := s.LevelExtent(6)
	assert.Equal(t, uint32(1), w)
	assert.Equal(t, uint32(1), h)

	assert.Error(t, TextureShape{Width: 4, Height: 4, Format: FormatRGBA8Unorm, MipLevels: 4, Layers: 1}.Validate())
	assert.Error(t, TextureShape{Width: 4, Height: 0, Format: FormatRGBA8Unorm, MipLevels: 1, Layers: 1}.Validate())
}

func TestRegionWithin(t *testing.T) {
	s := Shape2D(16, 16, FormatRGBA8Unorm)
	assert.True(t, FullRegion(s).Within(s))
	assert.True(t, Region{X: 4, Y: 4, Width: 4, Height: 4, MipLevel: 1}.Within(s))
	assert.False(t, Region{X: 4, Y: 4, Width: 8, Height: 4, MipLevel: 1}.Within(s))
	assert.False(t, Region{Width: 1, Height: 1, MipLevel: 5}.Within(s))
	assert.Equal(t, 16*16*4, FullRegion(s).ByteSize(s.Format))

	assert.True(t, AllLevels(s).Within(s))
	assert.False(t, LevelRange{Base: 0, Count: 1}.Within(s))
	assert.False(t, LevelRange{Base: 4, Count: 2}.Within(s))
}

func TestFormatRoundTrip(t *testing.T) {
	f, ok := ParseFormat(FormatRGBA8Srgb.String())
	require.True(t, ok)
	assert.Equal(t, FormatRGBA8Srgb, f)
	_, ok = ParseFormat("nope")
	assert.False(t, ok)
}

func TestDescriptorSourceIsFormatted(t *testing.T) {
	src, err := os.ReadFile("descriptor.go")
	require.NoError(t, err)
	formatted, err := format.Source(src)
	require.NoError(t, err)
	assert.Equal(t, string(formatted), string(src))
}
