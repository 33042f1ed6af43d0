package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/** @brief How vertices are assembled into primitives. */
type PrimitiveTopology int

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
	PrimitiveTopologyPointList
)

/** @brief Colour blending applied to every colour attachment. */
type BlendMode int

const (
	/** @brief Blending disabled, source replaces destination. */
	BlendModeOpaque BlendMode = iota
	/** @brief src*alpha + dst*(1-alpha). */
	BlendModeAlpha
	/** @brief src + dst. */
	BlendModeAdditive
)
