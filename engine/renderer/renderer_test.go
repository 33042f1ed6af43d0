package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/resident/engine/config"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
	"github.com/spaghettifunk/resident/engine/renderer/software"
)

func newRenderer(t *testing.T) (*Renderer, *software.Backend) {
	t.Helper()
	backend := software.New(software.DefaultOptions())
	cfg := config.Default()
	cfg.Bindless.MaxTextures = 16
	r, err := New(cfg, backend, nil)
	require.NoError(t, err)
	return r, backend
}

func materialLayout() metadata.DescriptorSetLayoutDescription {
	return metadata.NewDescriptorSetLayout().
		AddBinding(0, metadata.DescriptorKindUniformBuffer, 1, metadata.ShaderStageVertex|metadata.ShaderStageFragment).
		AddBinding(1, metadata.DescriptorKindCombinedImageSampler, 2, metadata.ShaderStageFragment)
}

func TestBeginFrameWithoutTextures(t *testing.T) {
	r, _ := newRenderer(t)
	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.BeginFrame())
	assert.Equal(t, uint64(2), r.Frame())
}

func TestBeginFrameSyncsTextures(t *testing.T) {
	r, backend := newRenderer(t)
	shape := metadata.TextureShape{Width: 4, Height: 4, Format: metadata.FormatRGBA8Unorm, MipLevels: 1, Layers: 1}
	index, err := r.Textures().AllocateTexture(shape)
	require.NoError(t, err)

	require.NoError(t, r.BeginFrame())
	active := r.Textures().Views().CurrentView()
	assert.False(t, active.Stale())

	tex, _ := r.Textures().Texture(index)
	w, ok := backend.Descriptor(active.Set(), 0, uint32(index))
	require.True(t, ok)
	assert.Equal(t, tex, w.Texture)
}

func TestDescriptorSetsShareCachedLayouts(t *testing.T) {
	r, backend := newRenderer(t)
	before := r.Storage().Len()

	a, err := r.AllocateDescriptorSet(materialLayout())
	require.NoError(t, err)
	b, err := r.AllocateDescriptorSet(materialLayout())
	require.NoError(t, err)

	assert.Equal(t, a.Layout, b.Layout)
	assert.NotEqual(t, a.Set, b.Set)
	assert.Equal(t, before+1, r.Storage().Len())
	assert.Equal(t, 1, r.Pools().PoolCount())
	assert.Equal(t, 2, backend.Calls("CreateDescriptorPool"))

	require.NoError(t, r.FreeDescriptorSet(a))
	require.NoError(t, r.FreeDescriptorSet(b))
	assert.ErrorIs(t, r.FreeDescriptorSet(a), core.ErrLogic)
}

func TestShutdownReleasesEverything(t *testing.T) {
	r, backend := newRenderer(t)
	_, err := r.Textures().AllocateTexture(metadata.TextureShape{Width: 2, Height: 2, Format: metadata.FormatRGBA8Unorm, MipLevels: 1, Layers: 1})
	require.NoError(t, err)
	_, err = r.AllocateDescriptorSet(materialLayout())
	require.NoError(t, err)
	require.NoError(t, r.BeginFrame())

	require.NoError(t, r.Shutdown())
	assert.Zero(t, backend.Live())
	assert.Zero(t, r.Storage().Len())

	require.NoError(t, r.Shutdown())
	assert.ErrorIs(t, r.BeginFrame(), core.ErrLogic)
}

func TestNewRollsBackOnFailure(t *testing.T) {
	backend := software.New(software.DefaultOptions())
	backend.FailNext("CreateSampler", errors.New("no samplers left"))

	_, err := New(config.Default(), backend, nil)
	require.Error(t, err)
	assert.Zero(t, backend.Live())
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Pool.Sizes = map[string]uint32{"not_a_kind": 4}
	_, err := New(cfg, software.New(software.DefaultOptions()), nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = New(config.Default(), nil, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}
