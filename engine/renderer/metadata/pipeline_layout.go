package metadata

import (
	"slices"

	"github.com/spaghettifunk/resident/engine/renderer/hashing"
)

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

// PipelineLayoutDescription lists the set layouts (by description or handle)
// and push constant ranges of a pipeline layout.
type PipelineLayoutDescription struct {
	SetLayouts    []LayoutRef
	PushConstants []PushConstantRange
}

func NewPipelineLayout(sets ...LayoutRef) PipelineLayoutDescription {
	return PipelineLayoutDescription{SetLayouts: sets}
}

func (d PipelineLayoutDescription) AddPushConstant(stages ShaderStage, offset, size uint32) PipelineLayoutDescription {
	d.PushConstants = append(slices.Clip(d.PushConstants), PushConstantRange{Stages: stages, Offset: offset, Size: size})
	return d
}

func (d PipelineLayoutDescription) Hash() hashing.Key {
	h := hashing.New()
	hashing.Slice(h, d.SetLayouts, func(h *hashing.Hasher, r LayoutRef) { r.hash(h) })
	hashing.Slice(h, d.PushConstants, func(h *hashing.Hasher, p PushConstantRange) {
		hashing.Integer(h, p.Stages)
		h.Uint32(p.Offset)
		h.Uint32(p.Size)
	})
	return h.Sum()
}
