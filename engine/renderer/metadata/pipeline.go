package metadata

import (
	"slices"

	"github.com/spaghettifunk/resident/engine/renderer/hashing"
)

/** @brief One vertex attribute read from the single vertex buffer binding. */
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

/**
 * @brief Everything needed to build a graphics pipeline. Shader modules,
 * the pipeline layout and the render pass may be given as descriptions or
 * as handles that already exist.
 */
type GraphicsPipelineDescription struct {
	Stages       []ShaderStageDescription
	VertexStride uint32
	Attributes   []VertexAttribute
	Topology     PrimitiveTopology
	CullMode     FaceCullMode
	/** @brief Draw as lines instead of filled polygons. */
	Wireframe  bool
	DepthTest  bool
	DepthWrite bool
	Blend      BlendMode
	Layout     PipelineLayoutRef
	Pass       RenderPassRef
	Subpass    uint32
}

// Sorted returns a copy with stages ordered by stage bit and attributes by
// location.
func (d GraphicsPipelineDescription) Sorted() GraphicsPipelineDescription {
	d.Stages = slices.Clone(d.Stages)
	slices.SortStableFunc(d.Stages, func(a, b ShaderStageDescription) int { return int(a.Stage) - int(b.Stage) })
	d.Attributes = slices.Clone(d.Attributes)
	slices.SortStableFunc(d.Attributes, func(a, b VertexAttribute) int { return int(a.Location) - int(b.Location) })
	return d
}

func (d GraphicsPipelineDescription) Hash() hashing.Key {
	h := hashing.New()
	hashing.Slice(h, d.Stages, func(h *hashing.Hasher, s ShaderStageDescription) {
		hashing.Integer(h, s.Stage)
		s.Module.hash(h)
		h.String(s.EntryPoint)
	})
	h.Uint32(d.VertexStride)
	hashing.Slice(h, d.Attributes, func(h *hashing.Hasher, a VertexAttribute) {
		h.Uint32(a.Location)
		hashing.Integer(h, a.Format)
		h.Uint32(a.Offset)
	})
	hashing.Integer(h, d.Topology)
	hashing.Integer(h, d.CullMode)
	h.Bool(d.Wireframe)
	h.Bool(d.DepthTest)
	h.Bool(d.DepthWrite)
	hashing.Integer(h, d.Blend)
	d.Layout.hash(h)
	d.Pass.hash(h)
	h.Uint32(d.Subpass)
	return h.Sum()
}
