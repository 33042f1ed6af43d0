package metadata

/** @brief Pixel and vertex attribute formats understood by the backends. */
type Format int

const (
	FormatUndefined Format = iota
	/** @brief 8 bit RGBA, linear. */
	FormatRGBA8Unorm
	/** @brief 8 bit RGBA, sRGB encoded. */
	FormatRGBA8Srgb
	/** @brief 8 bit BGRA, linear (common swapchain format). */
	FormatBGRA8Unorm
	/** @brief Single 8 bit channel. */
	FormatR8Unorm
	/** @brief Two 8 bit channels. */
	FormatRG8Unorm
	/** @brief 16 bit float RGBA. */
	FormatRGBA16Float
	/** @brief 32 bit float RGBA, also used for vec4 vertex attributes. */
	FormatRGBA32Float
	/** @brief 32 bit float depth. */
	FormatDepth32Float
	/** @brief float vertex attribute. */
	FormatR32Float
	/** @brief vec2 vertex attribute. */
	FormatRG32Float
	/** @brief vec3 vertex attribute. */
	FormatRGB32Float
)

// BytesPerPixel returns the size of one texel (or one attribute) in bytes, 0 if unknown.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatRG8Unorm:
		return 2
	case FormatRGBA8Unorm, FormatRGBA8Srgb, FormatBGRA8Unorm, FormatDepth32Float, FormatR32Float:
		return 4
	case FormatRGBA16Float, FormatRG32Float:
		return 8
	case FormatRGB32Float:
		return 12
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// IsDepth reports whether the format is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA8Srgb:
		return "rgba8srgb"
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	case FormatR8Unorm:
		return "r8unorm"
	case FormatRG8Unorm:
		return "rg8unorm"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatDepth32Float:
		return "depth32float"
	case FormatR32Float:
		return "r32float"
	case FormatRG32Float:
		return "rg32float"
	case FormatRGB32Float:
		return "rgb32float"
	default:
		return "undefined"
	}
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, bool) {
	for f := FormatRGBA8Unorm; f <= FormatRGB32Float; f++ {
		if f.String() == s {
			return f, true
		}
	}
	return FormatUndefined, false
}
