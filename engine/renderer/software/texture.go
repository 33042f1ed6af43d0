package software

import (
	"fmt"
	"image"
	"slices"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type texture struct {
	label string
	shape metadata.TextureShape
	// levels[layer][mip] holds tightly packed rows
	levels [][][]byte
}

func (b *Backend) CreateTexture(shape metadata.TextureShape, label string) (metadata.TextureHandle, error) {
	if err := b.enter("CreateTexture"); err != nil {
		return metadata.InvalidHandle, err
	}
	if err := shape.Validate(); err != nil {
		return metadata.InvalidHandle, fmt.Errorf("create texture %q: %w", label, err)
	}
	limits := b.options.Limits
	if shape.Width > limits.MaxTextureDimension || shape.Height > limits.MaxTextureDimension || shape.Layers > limits.MaxTextureLayers {
		return metadata.InvalidHandle, fmt.Errorf("texture %q of %s exceeds device limits: %w", label, shape, core.ErrResourceExhausted)
	}

	bpp := int(shape.Format.BytesPerPixel())
	t := &texture{label: label, shape: shape, levels: make([][][]byte, shape.Layers)}
	for layer := range t.levels {
		t.levels[layer] = make([][]byte, shape.MipLevels)
		for mip := range t.levels[layer] {
			w, h := shape.LevelExtent(uint32(mip))
			t.levels[layer][mip] = make([]byte, int(w)*int(h)*bpp)
		}
	}
	h := metadata.TextureHandle(b.acquire(t))
	b.textures[h] = t
	return h, nil
}

func (b *Backend) DestroyTexture(h metadata.TextureHandle) error {
	if err := b.enter("DestroyTexture"); err != nil {
		return err
	}
	if _, ok := b.textures[h]; !ok {
		return fmt.Errorf("texture %d: %w", h, core.ErrLogic)
	}
	delete(b.textures, h)
	return b.release(uint64(h))
}

func (b *Backend) UploadTexture(h metadata.TextureHandle, region metadata.Region, pixels []byte) error {
	if err := b.enter("UploadTexture"); err != nil {
		return err
	}
	t, ok := b.textures[h]
	if !ok {
		return fmt.Errorf("texture %d: %w", h, core.ErrNotFound)
	}
	if !region.Within(t.shape) {
		return fmt.Errorf("region %+v outside texture %s: %w", region, t.shape, core.ErrPreconditionViolation)
	}
	if len(pixels) != region.ByteSize(t.shape.Format) {
		return fmt.Errorf("upload of %d bytes into a region of %d: %w", len(pixels), region.ByteSize(t.shape.Format), core.ErrPreconditionViolation)
	}

	bpp := int(t.shape.Format.BytesPerPixel())
	w, _ := t.shape.LevelExtent(region.MipLevel)
	level := t.levels[region.Layer][region.MipLevel]
	rowBytes := int(region.Width) * bpp
	for row := 0; row < int(region.Height); row++ {
		dst := ((int(region.Y)+row)*int(w) + int(region.X)) * bpp
		copy(level[dst:dst+rowBytes], pixels[row*rowBytes:(row+1)*rowBytes])
	}
	return nil
}

// GenerateMipmaps fills every level of levels by bilinear downscaling of the
// level before it.
func (b *Backend) GenerateMipmaps(h metadata.TextureHandle, levels metadata.LevelRange) error {
	if err := b.enter("GenerateMipmaps"); err != nil {
		return err
	}
	t, ok := b.textures[h]
	if !ok {
		return fmt.Errorf("texture %d: %w", h, core.ErrNotFound)
	}
	if !levels.Within(t.shape) {
		return fmt.Errorf("levels %+v outside texture %s: %w", levels, t.shape, core.ErrPreconditionViolation)
	}

	for layer := range t.levels {
		for mip := levels.Base; mip < levels.Base+levels.Count; mip++ {
			src, err := t.image(layer, mip-1)
			if err != nil {
				return err
			}
			dst, err := t.image(layer, mip)
			if err != nil {
				return err
			}
			draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		}
	}
	return nil
}

// image wraps one level without copying it.
func (t *texture) image(layer int, mip uint32) (draw.Image, error) {
	w, h := t.shape.LevelExtent(mip)
	rect := image.Rect(0, 0, int(w), int(h))
	pix := t.levels[layer][mip]
	switch t.shape.Format {
	case metadata.FormatRGBA8Unorm, metadata.FormatRGBA8Srgb, metadata.FormatBGRA8Unorm:
		return &image.RGBA{Pix: pix, Stride: int(w) * 4, Rect: rect}, nil
	case metadata.FormatR8Unorm:
		return &image.Gray{Pix: pix, Stride: int(w), Rect: rect}, nil
	default:
		return nil, fmt.Errorf("no mip generation for %s textures", t.shape.Format)
	}
}

// Pixels returns a copy of one level of layer 0.
func (b *Backend) Pixels(h metadata.TextureHandle, mip uint32) ([]byte, bool) {
	t, ok := b.textures[h]
	if !ok || mip >= t.shape.MipLevels {
		return nil, false
	}
	return slices.Clone(t.levels[0][mip]), true
}

func (b *Backend) TextureShape(h metadata.TextureHandle) (metadata.TextureShape, bool) {
	t, ok := b.textures[h]
	if !ok {
		return metadata.TextureShape{}, false
	}
	return t.shape, true
}

func (b *Backend) TextureLabel(h metadata.TextureHandle) string {
	if t, ok := b.textures[h]; ok {
		return t.label
	}
	return ""
}

// Textures is the number of live textures.
func (b *Backend) Textures() int {
	return len(b.textures)
}
