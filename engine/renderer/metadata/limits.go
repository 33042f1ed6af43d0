package metadata

/** @brief Hard limits reported by a backend. */
type Limits struct {
	/** @brief Most sampled image descriptors one update-after-bind set may hold. */
	MaxSampledImages uint32
	/** @brief Largest width or height of a 2D texture. */
	MaxTextureDimension uint32
	/** @brief Most array layers of a texture. */
	MaxTextureLayers uint32
}
