package systems

import (
	"errors"
	"fmt"
	"math"

	"github.com/spaghettifunk/resident/engine/assets/loaders"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/bindless"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// InvalidGeneration marks a texture whose pixels were never uploaded.
const InvalidGeneration uint32 = math.MaxUint32

type TextureSystemConfig struct {
	/** @brief The maximum number of named textures that can be loaded at once. */
	MaxTextureCount uint32
	/** @brief Flip decoded images so that the first row is the bottom one. */
	FlipY bool
}

// Texture is a named texture living in a bindless slot. Until its first
// upload it points at the slot of the default texture.
type Texture struct {
	Name            string
	Path            string
	Slot            bindless.SlotIndex
	Shape           metadata.TextureShape
	Generation      uint32
	HasTransparency bool

	owned bool
}

func (t *Texture) Loaded() bool {
	return t.Generation != InvalidGeneration
}

type textureReference struct {
	texture        *Texture
	referenceCount uint64
	autoRelease    bool
}

// TextureSystem keeps named textures in the bindless table. It is not safe
// for concurrent use; job callbacks run from JobSystem.Update on the same
// goroutine.
type TextureSystem struct {
	Config         TextureSystemConfig
	DefaultTexture *Texture
	// Hashtable for texture lookups.
	RegisteredTextureTable map[string]*textureReference

	manager *bindless.Manager
	jobs    *JobSystem
	images  *loaders.ImageLoader
}

func NewTextureSystem(config TextureSystemConfig, manager *bindless.Manager, jobs *JobSystem) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("texture system max texture count must be > 0: %w", core.ErrInvalidConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	if manager == nil {
		return nil, fmt.Errorf("texture system without a bindless manager: %w", core.ErrInvalidConfiguration)
	}
	return &TextureSystem{
		Config:                 config,
		RegisteredTextureTable: make(map[string]*textureReference),
		manager:                manager,
		jobs:                   jobs,
		images:                 &loaders.ImageLoader{FlipY: config.FlipY},
	}, nil
}

// Initialize creates the default texture, a 2x2 checker.
func (ts *TextureSystem) Initialize() error {
	const on, off = 255, 0
	img := &loaders.Image{
		Width:  2,
		Height: 2,
		Pixels: []byte{
			on, on, on, 255, off, off, on, 255,
			off, off, on, 255, on, on, on, 255,
		},
	}
	t := &Texture{Name: metadata.DEFAULT_TEXTURE_NAME, Generation: InvalidGeneration}
	if err := ts.upload(t, img); err != nil {
		return fmt.Errorf("default texture: %w", err)
	}
	ts.DefaultTexture = t
	core.LogDebug("default texture created in slot %d", t.Slot)
	return nil
}

// Shutdown frees every texture, the default one included.
func (ts *TextureSystem) Shutdown() error {
	var errs []error
	for name, ref := range ts.RegisteredTextureTable {
		errs = append(errs, ts.destroyTexture(ref.texture))
		delete(ts.RegisteredTextureTable, name)
	}
	if ts.DefaultTexture != nil {
		errs = append(errs, ts.destroyTexture(ts.DefaultTexture))
		ts.DefaultTexture = nil
	}
	return errors.Join(errs...)
}

func (ts *TextureSystem) GetDefaultTexture() *Texture {
	return ts.DefaultTexture
}

func (ts *TextureSystem) Get(name string) (*Texture, bool) {
	ref, ok := ts.RegisteredTextureTable[name]
	if !ok {
		return nil, false
	}
	return ref.texture, true
}

func (ts *TextureSystem) Len() int {
	return len(ts.RegisteredTextureTable)
}

// Load decodes the file at path and uploads it under name right away. A
// texture loaded this way is never auto released.
func (ts *TextureSystem) Load(name, path string) (*Texture, error) {
	t, created, err := ts.reference(name, path, false)
	if err != nil {
		return nil, err
	}
	if !created {
		return t, nil
	}
	img, err := ts.decode(path)
	if err == nil {
		err = ts.upload(t, img)
	}
	if err != nil {
		delete(ts.RegisteredTextureTable, name)
		core.LogError("failed to load texture '%s': %s", name, err)
		return nil, err
	}
	return t, nil
}

// Acquire returns the texture named name, loading path in the background the
// first time. Until the load completes the texture shows the default one.
func (ts *TextureSystem) Acquire(name, path string, autoRelease bool) (*Texture, error) {
	// Return default texture, but warn about it since this should be returned via GetDefaultTexture();
	if name == metadata.DEFAULT_TEXTURE_NAME {
		core.LogWarn("texture system Acquire called for the default texture. Use GetDefaultTexture instead")
		return ts.DefaultTexture, nil
	}
	t, created, err := ts.reference(name, path, autoRelease)
	if err != nil || !created {
		return t, err
	}
	if ts.jobs == nil {
		img, err := ts.decode(path)
		if err == nil {
			err = ts.upload(t, img)
		}
		if err != nil {
			delete(ts.RegisteredTextureTable, name)
			return nil, err
		}
		return t, nil
	}
	err = ts.jobs.Submit(Job{
		Name: "load texture " + name,
		// Only handles loading from disk to CPU. The upload happens on completion.
		Run: func() (interface{}, error) {
			return ts.decode(path)
		},
		OnComplete: func(result interface{}) {
			ts.completeLoad(name, t, result.(*loaders.Image))
		},
		OnFailure: func(err error) {
			core.LogError("failed to load texture '%s': %s", name, err)
		},
	})
	if err != nil {
		delete(ts.RegisteredTextureTable, name)
		return nil, err
	}
	return t, nil
}

func (ts *TextureSystem) completeLoad(name string, t *Texture, img *loaders.Image) {
	ref, ok := ts.RegisteredTextureTable[name]
	if !ok || ref.texture != t {
		core.LogDebug("texture '%s' was released before its load finished", name)
		return
	}
	if err := ts.upload(t, img); err != nil {
		core.LogError("failed to upload texture '%s': %s", name, err)
		return
	}
	core.LogDebug("successfully loaded texture '%s'", name)
}

// Release drops one reference. An auto released texture is destroyed with
// its last reference.
func (ts *TextureSystem) Release(name string) error {
	// Ignore release requests for the default texture.
	if name == metadata.DEFAULT_TEXTURE_NAME {
		return nil
	}
	ref, ok := ts.RegisteredTextureTable[name]
	if !ok {
		return fmt.Errorf("release of texture '%s': %w", name, core.ErrNotFound)
	}
	if ref.referenceCount == 0 {
		core.LogWarn("tried to release texture '%s' with no references left", name)
		return nil
	}
	ref.referenceCount--
	if ref.referenceCount > 0 || !ref.autoRelease {
		return nil
	}
	delete(ts.RegisteredTextureTable, name)
	core.LogDebug("released texture '%s', unloaded because reference count=0 and autoRelease=true", name)
	return ts.destroyTexture(ref.texture)
}

// Reload replaces the pixels of a loaded texture with the file at path,
// resizing its slot when the shape changed. Shaders keep the same index.
func (ts *TextureSystem) Reload(name, path string) error {
	t, ok := ts.Get(name)
	if !ok {
		return fmt.Errorf("reload of texture '%s': %w", name, core.ErrNotFound)
	}
	img, err := ts.decode(path)
	if err != nil {
		return err
	}
	t.Path = path
	if err := ts.upload(t, img); err != nil {
		return err
	}
	core.LogInfo("reloaded texture '%s' (generation %d)", name, t.Generation)
	return nil
}

// WriteData copies pixels into a region of a loaded texture.
func (ts *TextureSystem) WriteData(t *Texture, region metadata.Region, pixels []byte) error {
	if t == nil || !t.owned {
		return fmt.Errorf("write into a texture without its own slot: %w", core.ErrPreconditionViolation)
	}
	if err := ts.manager.Upload(t.Slot, pixels, region); err != nil {
		return err
	}
	t.Generation++
	return nil
}

// reference increments the count of name, creating the entry if needed.
func (ts *TextureSystem) reference(name, path string, autoRelease bool) (*Texture, bool, error) {
	if ref, ok := ts.RegisteredTextureTable[name]; ok {
		ref.referenceCount++
		return ref.texture, false, nil
	}
	if uint32(len(ts.RegisteredTextureTable)) >= ts.Config.MaxTextureCount {
		err := fmt.Errorf("texture system cannot hold more than %d textures: %w", ts.Config.MaxTextureCount, core.ErrResourceExhausted)
		core.LogError(err.Error())
		return nil, false, err
	}
	t := &Texture{Name: name, Path: path, Generation: InvalidGeneration}
	if ts.DefaultTexture != nil {
		t.Slot = ts.DefaultTexture.Slot
		t.Shape = ts.DefaultTexture.Shape
	}
	ts.RegisteredTextureTable[name] = &textureReference{
		texture:        t,
		referenceCount: 1,
		autoRelease:    autoRelease,
	}
	return t, true, nil
}

func (ts *TextureSystem) decode(path string) (*loaders.Image, error) {
	out, err := ts.images.Load(path)
	if err != nil {
		return nil, err
	}
	return out.(*loaders.Image), nil
}

func (ts *TextureSystem) upload(t *Texture, img *loaders.Image) error {
	shape := img.Shape()
	switch {
	case !t.owned:
		slot, err := ts.manager.AllocateTexture(shape)
		if err != nil {
			return err
		}
		t.Slot = slot
		t.owned = true
	case t.Shape != shape:
		if err := ts.manager.ResizeTexture(t.Slot, shape); err != nil {
			return err
		}
	}
	t.Shape = shape

	if err := ts.manager.Upload(t.Slot, img.Pixels, metadata.FullRegion(shape)); err != nil {
		return err
	}
	if shape.MipLevels > 1 {
		if err := ts.manager.GenerateDerivedLevels(t.Slot, metadata.AllLevels(shape)); err != nil {
			return err
		}
	}
	t.HasTransparency = hasTransparency(img.Pixels)
	if t.Generation == InvalidGeneration {
		t.Generation = 0
	} else {
		t.Generation++
	}
	return nil
}

func (ts *TextureSystem) destroyTexture(t *Texture) error {
	if !t.owned {
		return nil
	}
	t.owned = false
	t.Generation = InvalidGeneration
	return ts.manager.FreeTexture(t.Slot)
}

func hasTransparency(rgba []byte) bool {
	for i := 3; i < len(rgba); i += 4 {
		if rgba[i] < 255 {
			return true
		}
	}
	return false
}
