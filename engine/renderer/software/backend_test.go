package software

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

func TestHandlesAreNeverZero(t *testing.T) {
	b := New(DefaultOptions())
	h, err := b.CreateSampler(metadata.DefaultSampler())
	require.NoError(t, err)
	assert.NotEqual(t, metadata.SamplerHandle(metadata.InvalidHandle), h)

	require.NoError(t, b.DestroySampler(h))
	assert.ErrorIs(t, b.DestroySampler(h), core.ErrLogic)
	assert.Zero(t, b.Live())
}

func TestFailNextFailsOnce(t *testing.T) {
	b := New(DefaultOptions())
	boom := errors.New("boom")
	b.FailNext("CreateRenderPass", boom)

	_, err := b.CreateRenderPass(metadata.NewRenderPass())
	assert.ErrorIs(t, err, boom)
	_, err = b.CreateRenderPass(metadata.NewRenderPass())
	assert.NoError(t, err)
	assert.Equal(t, 2, b.Calls("CreateRenderPass"))
}

func TestDescriptorPoolCapacity(t *testing.T) {
	b := New(DefaultOptions())
	layout, err := b.CreateDescriptorSetLayout(metadata.NewDescriptorSetLayout().
		AddBinding(0, metadata.DescriptorKindCombinedImageSampler, 3, metadata.ShaderStageFragment))
	require.NoError(t, err)

	pool, err := b.CreateDescriptorPool(metadata.DescriptorPoolDescription{
		MaxSets: 4,
		Sizes:   []metadata.PoolSize{{Kind: metadata.DescriptorKindCombinedImageSampler, Count: 7}},
		Flags:   metadata.DescriptorPoolFlagFreeSets,
	})
	require.NoError(t, err)

	a, err := b.AllocateDescriptorSet(pool, layout)
	require.NoError(t, err)
	_, err = b.AllocateDescriptorSet(pool, layout)
	require.NoError(t, err)
	_, err = b.AllocateDescriptorSet(pool, layout)
	assert.ErrorIs(t, err, core.ErrResourceExhausted)

	require.NoError(t, b.FreeDescriptorSet(pool, a))
	remaining, ok := b.PoolRemaining(pool)
	require.True(t, ok)
	assert.Equal(t, uint32(4), remaining[metadata.DescriptorKindCombinedImageSampler])

	require.NoError(t, b.ResetDescriptorPool(pool))
	remaining, _ = b.PoolRemaining(pool)
	assert.Equal(t, uint32(7), remaining[metadata.DescriptorKindCombinedImageSampler])
	require.NoError(t, b.DestroyDescriptorPool(pool))
}

func TestWriteAndBind(t *testing.T) {
	b := New(DefaultOptions())
	layout, err := b.CreateDescriptorSetLayout(metadata.NewDescriptorSetLayout().
		AddBinding(0, metadata.DescriptorKindCombinedImageSampler, 2, metadata.ShaderStageFragment))
	require.NoError(t, err)
	pool, err := b.CreateDescriptorPool(metadata.DescriptorPoolDescription{
		MaxSets: 1,
		Sizes:   []metadata.PoolSize{{Kind: metadata.DescriptorKindCombinedImageSampler, Count: 2}},
	})
	require.NoError(t, err)
	set, err := b.AllocateDescriptorSet(pool, layout)
	require.NoError(t, err)
	tex, err := b.CreateTexture(metadata.Shape2D(4, 4, metadata.FormatRGBA8Unorm), "t")
	require.NoError(t, err)

	err = b.WriteTextureDescriptors(set, []metadata.DescriptorWrite{{Binding: 0, ArrayElement: 2, Texture: tex}})
	assert.ErrorIs(t, err, core.ErrLogic)
	assert.Zero(t, b.Written(set))

	require.NoError(t, b.WriteTextureDescriptors(set, []metadata.DescriptorWrite{{Binding: 0, ArrayElement: 1, Texture: tex}}))
	w, ok := b.Descriptor(set, 0, 1)
	require.True(t, ok)
	assert.Equal(t, tex, w.Texture)

	require.NoError(t, b.BindDescriptorSet(metadata.BindPointGraphics, 0, set))
	assert.Equal(t, set, b.Bound(metadata.BindPointGraphics))
	assert.Equal(t, metadata.DescriptorSetHandle(metadata.InvalidHandle), b.Bound(metadata.BindPointCompute))

	// no free-sets flag on this pool
	assert.ErrorIs(t, b.FreeDescriptorSet(pool, set), core.ErrLogic)
}

func TestUploadAndMipmaps(t *testing.T) {
	b := New(DefaultOptions())
	shape := metadata.Shape2D(4, 4, metadata.FormatRGBA8Unorm)
	tex, err := b.CreateTexture(shape, "white")
	require.NoError(t, err)

	pixels := make([]byte, 4*4*4)
	for i := range pixels {
		pixels[i] = 0xff
	}
	require.NoError(t, b.UploadTexture(tex, metadata.FullRegion(shape), pixels))
	require.NoError(t, b.GenerateMipmaps(tex, metadata.AllLevels(shape)))

	last, ok := b.Pixels(tex, shape.MipLevels-1)
	require.True(t, ok)
	require.Len(t, last, 4)
	for _, c := range last {
		assert.GreaterOrEqual(t, c, byte(0xfe))
	}

	err = b.UploadTexture(tex, metadata.Region{X: 2, Width: 4, Height: 1}, make([]byte, 16))
	assert.ErrorIs(t, err, core.ErrPreconditionViolation)
	err = b.UploadTexture(tex, metadata.Region{Width: 2, Height: 2}, make([]byte, 3))
	assert.ErrorIs(t, err, core.ErrPreconditionViolation)
}

func TestPartialUpload(t *testing.T) {
	b := New(DefaultOptions())
	shape := metadata.TextureShape{Width: 4, Height: 2, Format: metadata.FormatR8Unorm, MipLevels: 1, Layers: 1}
	tex, err := b.CreateTexture(shape, "gray")
	require.NoError(t, err)

	require.NoError(t, b.UploadTexture(tex, metadata.Region{X: 1, Y: 1, Width: 2, Height: 1}, []byte{7, 9}))
	pixels, _ := b.Pixels(tex, 0)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 7, 9, 0}, pixels)
}

func TestTextureLimits(t *testing.T) {
	opts := DefaultOptions()
	opts.Limits.MaxTextureDimension = 16
	b := New(opts)
	_, err := b.CreateTexture(metadata.Shape2D(32, 4, metadata.FormatRGBA8Unorm), "big")
	assert.ErrorIs(t, err, core.ErrResourceExhausted)
	assert.Zero(t, b.Textures())
}
