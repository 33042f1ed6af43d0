package systems

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/resident/engine/config"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/bindless"
	"github.com/spaghettifunk/resident/engine/renderer/cache"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
	"github.com/spaghettifunk/resident/engine/renderer/software"
)

func writeImage(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func newTextureSystem(t *testing.T, jobs *JobSystem, max uint32) (*TextureSystem, *bindless.Manager, *software.Backend) {
	t.Helper()
	backend := software.New(software.DefaultOptions())
	cfg := config.Default().Bindless
	cfg.MaxTextures = 32
	m, err := bindless.NewManager(cfg, cache.NewStorage(backend, nil), backend, nil)
	require.NoError(t, err)
	ts, err := NewTextureSystem(TextureSystemConfig{MaxTextureCount: max}, m, jobs)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())
	return ts, m, backend
}

func TestDefaultTextureIsChecker(t *testing.T) {
	ts, m, backend := newTextureSystem(t, nil, 4)
	def := ts.GetDefaultTexture()
	require.True(t, def.Loaded())
	assert.Equal(t, metadata.Shape2D(2, 2, metadata.FormatRGBA8Unorm), def.Shape)

	h, ok := m.Texture(def.Slot)
	require.True(t, ok)
	pixels, ok := backend.Pixels(h, 0)
	require.True(t, ok)
	assert.Equal(t, []byte{255, 255, 255, 255}, pixels[:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, pixels[4:8])
	assert.False(t, def.HasTransparency)

	got, err := ts.Acquire(metadata.DEFAULT_TEXTURE_NAME, "", true)
	require.NoError(t, err)
	assert.Same(t, def, got)
}

func TestLoadUploadsAllLevels(t *testing.T) {
	ts, m, backend := newTextureSystem(t, nil, 4)
	path := filepath.Join(t.TempDir(), "red.png")
	writeImage(t, path, 4, 4, color.NRGBA{R: 255, A: 255})

	tex, err := ts.Load("red", path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), tex.Generation)
	assert.NotEqual(t, ts.GetDefaultTexture().Slot, tex.Slot)
	assert.Equal(t, uint32(3), tex.Shape.MipLevels)

	h, _ := m.Texture(tex.Slot)
	top, ok := backend.Pixels(h, 2)
	require.True(t, ok)
	assert.Equal(t, []byte{255, 0, 0, 255}, top)

	again, err := ts.Load("red", path)
	require.NoError(t, err)
	assert.Same(t, tex, again)
	assert.Equal(t, 1, ts.Len())

	_, err = ts.Load("missing", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
	_, ok = ts.Get("missing")
	assert.False(t, ok)
}

func TestAutoRelease(t *testing.T) {
	ts, m, _ := newTextureSystem(t, nil, 4)
	path := filepath.Join(t.TempDir(), "glass.png")
	writeImage(t, path, 2, 2, color.NRGBA{B: 255, A: 100})

	tex, err := ts.Acquire("glass", path, true)
	require.NoError(t, err)
	assert.True(t, tex.HasTransparency)
	_, err = ts.Acquire("glass", path, true)
	require.NoError(t, err)
	freed := m.FreeCount()

	require.NoError(t, ts.Release("glass"))
	_, ok := ts.Get("glass")
	assert.True(t, ok)

	require.NoError(t, ts.Release("glass"))
	_, ok = ts.Get("glass")
	assert.False(t, ok)
	assert.Equal(t, freed+1, m.FreeCount())
	assert.False(t, tex.Loaded())

	assert.ErrorIs(t, ts.Release("glass"), core.ErrNotFound)
	assert.NoError(t, ts.Release(metadata.DEFAULT_TEXTURE_NAME))
}

func TestAcquireLoadsInBackground(t *testing.T) {
	jobs, err := NewJobSystem(1, 4)
	require.NoError(t, err)
	defer jobs.Shutdown()
	ts, _, _ := newTextureSystem(t, jobs, 4)

	path := filepath.Join(t.TempDir(), "green.png")
	writeImage(t, path, 8, 8, color.NRGBA{G: 255, A: 255})

	tex, err := ts.Acquire("green", path, false)
	require.NoError(t, err)
	assert.False(t, tex.Loaded())
	assert.Equal(t, ts.GetDefaultTexture().Slot, tex.Slot)

	require.Eventually(t, func() bool {
		jobs.Update()
		return tex.Loaded()
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint32(8), tex.Shape.Width)
	assert.NotEqual(t, ts.GetDefaultTexture().Slot, tex.Slot)
}

func TestReloadKeepsSlot(t *testing.T) {
	ts, m, backend := newTextureSystem(t, nil, 4)
	dir := t.TempDir()
	path := filepath.Join(dir, "wall.png")
	writeImage(t, path, 4, 4, color.NRGBA{R: 255, A: 255})
	tex, err := ts.Load("wall", path)
	require.NoError(t, err)
	slot := tex.Slot

	writeImage(t, path, 4, 4, color.NRGBA{G: 255, A: 255})
	require.NoError(t, ts.Reload("wall", path))
	assert.Equal(t, slot, tex.Slot)
	assert.Equal(t, uint32(1), tex.Generation)
	h, _ := m.Texture(slot)
	pixels, _ := backend.Pixels(h, 0)
	assert.Equal(t, []byte{0, 255, 0, 255}, pixels[:4])

	writeImage(t, path, 16, 8, color.NRGBA{B: 255, A: 255})
	require.NoError(t, ts.Reload("wall", path))
	assert.Equal(t, slot, tex.Slot)
	shape, _ := m.Shape(slot)
	assert.Equal(t, uint32(16), shape.Width)

	assert.ErrorIs(t, ts.Reload("nope", path), core.ErrNotFound)
}

func TestTextureSystemCapacity(t *testing.T) {
	ts, _, _ := newTextureSystem(t, nil, 1)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	writeImage(t, a, 2, 2, color.NRGBA{A: 255})

	_, err := ts.Load("a", a)
	require.NoError(t, err)
	_, err = ts.Load("b", a)
	assert.ErrorIs(t, err, core.ErrResourceExhausted)
}

func TestShutdownFreesSlots(t *testing.T) {
	ts, m, _ := newTextureSystem(t, nil, 4)
	path := filepath.Join(t.TempDir(), "a.png")
	writeImage(t, path, 2, 2, color.NRGBA{A: 255})
	_, err := ts.Load("a", path)
	require.NoError(t, err)

	require.NoError(t, ts.Shutdown())
	assert.Equal(t, m.Len(), m.FreeCount())
	assert.Nil(t, ts.GetDefaultTexture())
}

func TestWriteData(t *testing.T) {
	ts, m, backend := newTextureSystem(t, nil, 4)
	path := filepath.Join(t.TempDir(), "a.png")
	writeImage(t, path, 2, 2, color.NRGBA{A: 255})
	tex, err := ts.Load("a", path)
	require.NoError(t, err)

	region := metadata.Region{X: 1, Y: 1, Width: 1, Height: 1}
	require.NoError(t, ts.WriteData(tex, region, []byte{9, 8, 7, 255}))
	h, _ := m.Texture(tex.Slot)
	pixels, _ := backend.Pixels(h, 0)
	assert.Equal(t, []byte{9, 8, 7, 255}, pixels[12:16])
	assert.Equal(t, uint32(1), tex.Generation)

	pending := &Texture{Name: "pending", Generation: InvalidGeneration}
	assert.ErrorIs(t, ts.WriteData(pending, region, []byte{1, 2, 3, 4}), core.ErrPreconditionViolation)
}
