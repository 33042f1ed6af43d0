package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[log]
level = "debug"

[bindless]
frames_in_flight = 3
max_textures = 64

[bindless.sampler]
filter = "nearest"
repeat = "clamp_to_edge"
anisotropy = 8.0
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Bindless.FramesInFlight)
	assert.Equal(t, uint32(64), cfg.Bindless.MaxTextures)
	assert.Equal(t, uint32(256), cfg.Pool.MaxSets)

	d, err := cfg.Bindless.Sampler.Description()
	require.NoError(t, err)
	assert.Equal(t, metadata.TextureFilterModeNearest, d.FilterMinify)
	assert.Equal(t, metadata.TextureRepeatClampToEdge, d.RepeatW)
	assert.Equal(t, float32(8), d.MaxAnisotropy)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"one view", "[bindless]\nframes_in_flight = 1\n"},
		{"four views", "[bindless]\nframes_in_flight = 4\n"},
		{"no textures", "[bindless]\nmax_textures = 0\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"bad filter", "[bindless.sampler]\nfilter = \"cubic\"\n"},
		{"unknown kind", "[pool.sizes]\nmagic = 3\n"},
		{"unknown key", "[bindless]\nviews = 2\n"},
		{"no sets", "[pool]\nmax_sets = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("[bindless"))
	assert.Error(t, err)
}

func TestPoolSizesAreOrdered(t *testing.T) {
	sizes, err := Default().Pool.PoolSizes()
	require.NoError(t, err)
	assert.Equal(t, []metadata.PoolSize{
		{Kind: metadata.DescriptorKindCombinedImageSampler, Count: 1024},
		{Kind: metadata.DescriptorKindUniformBuffer, Count: 256},
		{Kind: metadata.DescriptorKindStorageBuffer, Count: 128},
	}, sizes)
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Bindless.MaxTextures = 16
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "resident.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", loaded.Log.Level)
	assert.Equal(t, uint32(16), loaded.Bindless.MaxTextures)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
