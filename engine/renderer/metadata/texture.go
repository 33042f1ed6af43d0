package metadata

import "fmt"

const (
	/** @brief The default texture name. */
	DEFAULT_TEXTURE_NAME string = "default"
)

/**
 * @brief The shape of a texture. Two textures with equal shapes are
 * interchangeable storage, which is what slot recycling keys on.
 */
type TextureShape struct {
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief The pixel format. */
	Format Format
	/** @brief Number of mip levels, at least 1. */
	MipLevels uint32
	/** @brief Number of array layers, at least 1. */
	Layers uint32
}

// Shape2D is a single layer texture with a full mip chain.
func Shape2D(width, height uint32, format Format) TextureShape {
	return TextureShape{
		Width:     width,
		Height:    height,
		Format:    format,
		MipLevels: MipLevelCount(width, height),
		Layers:    1,
	}
}

// MipLevelCount returns floor(log2(max(w, h))) + 1.
func MipLevelCount(width, height uint32) uint32 {
	size := max(width, height)
	levels := uint32(1)
	for size > 1 {
		size >>= 1
		levels++
	}
	return levels
}

// LevelExtent returns the size of a mip level, never below 1x1.
func (s TextureShape) LevelExtent(level uint32) (uint32, uint32) {
	return max(s.Width>>level, 1), max(s.Height>>level, 1)
}

func (s TextureShape) Validate() error {
	if s.Width == 0 || s.Height == 0 {
		return fmt.Errorf("texture shape %dx%d has a zero extent", s.Width, s.Height)
	}
	if s.Format == FormatUndefined {
		return fmt.Errorf("texture shape has no format")
	}
	if s.MipLevels == 0 || s.MipLevels > MipLevelCount(s.Width, s.Height) {
		return fmt.Errorf("texture shape %dx%d cannot hold %d mip levels", s.Width, s.Height, s.MipLevels)
	}
	if s.Layers == 0 {
		return fmt.Errorf("texture shape has no layers")
	}
	return nil
}

func (s TextureShape) String() string {
	return fmt.Sprintf("%dx%d %s mips=%d layers=%d", s.Width, s.Height, s.Format, s.MipLevels, s.Layers)
}

/** @brief A rectangle of one level and layer of a texture. */
type Region struct {
	X, Y          uint32
	Width, Height uint32
	MipLevel      uint32
	Layer         uint32
}

// FullRegion covers the whole of level 0, layer 0.
func FullRegion(s TextureShape) Region {
	return Region{Width: s.Width, Height: s.Height}
}

// Within reports whether r fits inside s.
func (r Region) Within(s TextureShape) bool {
	if r.MipLevel >= s.MipLevels || r.Layer >= s.Layers || r.Width == 0 || r.Height == 0 {
		return false
	}
	w, h := s.LevelExtent(r.MipLevel)
	return uint64(r.X)+uint64(r.Width) <= uint64(w) && uint64(r.Y)+uint64(r.Height) <= uint64(h)
}

// ByteSize is the number of bytes pixel data for r must hold in format f.
func (r Region) ByteSize(f Format) int {
	return int(r.Width) * int(r.Height) * int(f.BytesPerPixel())
}

/** @brief A range of mip levels. */
type LevelRange struct {
	Base  uint32
	Count uint32
}

// AllLevels is every level after the base one.
func AllLevels(s TextureShape) LevelRange {
	return LevelRange{Base: 1, Count: s.MipLevels - 1}
}

func (l LevelRange) Within(s TextureShape) bool {
	return l.Base >= 1 && l.Count > 0 && uint64(l.Base)+uint64(l.Count) <= uint64(s.MipLevels)
}
