package metadata

import (
	"github.com/spaghettifunk/resident/engine/renderer/hashing"
)

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

type TextureRepeat int

const (
	TextureRepeatRepeat         TextureRepeat = 0x1
	TextureRepeatMirroredRepeat TextureRepeat = 0x2
	TextureRepeatClampToEdge    TextureRepeat = 0x3
	TextureRepeatClampToBorder  TextureRepeat = 0x4
)

/**
 * @brief Sampler configuration. Equal configurations share one sampler.
 */
type SamplerDescription struct {
	/** @brief Texture filtering mode for minification. */
	FilterMinify TextureFilter
	/** @brief Texture filtering mode for magnification. */
	FilterMagnify TextureFilter
	/** @brief Filtering between mip levels. */
	FilterMip TextureFilter
	/** @brief The repeat mode on the U axis (or X, or S) */
	RepeatU TextureRepeat
	/** @brief The repeat mode on the V axis (or Y, or T) */
	RepeatV TextureRepeat
	/** @brief The repeat mode on the W axis (or Z, or U) */
	RepeatW TextureRepeat
	/** @brief Anisotropy, disabled when <= 1. */
	MaxAnisotropy float32
	MinLod        float32
	MaxLod        float32
}

// DefaultSampler is linear filtering with repeat on every axis.
func DefaultSampler() SamplerDescription {
	return SamplerDescription{
		FilterMinify:  TextureFilterModeLinear,
		FilterMagnify: TextureFilterModeLinear,
		FilterMip:     TextureFilterModeLinear,
		RepeatU:       TextureRepeatRepeat,
		RepeatV:       TextureRepeatRepeat,
		RepeatW:       TextureRepeatRepeat,
		MaxAnisotropy: 1,
		MinLod:        0,
		MaxLod:        1000,
	}
}

func (d SamplerDescription) Hash() hashing.Key {
	h := hashing.New()
	hashing.Integer(h, d.FilterMinify)
	hashing.Integer(h, d.FilterMagnify)
	hashing.Integer(h, d.FilterMip)
	hashing.Integer(h, d.RepeatU)
	hashing.Integer(h, d.RepeatV)
	hashing.Integer(h, d.RepeatW)
	h.Float32(d.MaxAnisotropy)
	h.Float32(d.MinLod)
	h.Float32(d.MaxLod)
	return h.Sum()
}
