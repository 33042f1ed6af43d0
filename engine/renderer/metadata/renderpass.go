package metadata

import (
	"slices"

	"github.com/spaghettifunk/resident/engine/renderer/hashing"
)

type LoadOp int

const (
	LoadOpDontCare LoadOp = iota
	LoadOpLoad
	LoadOpClear
)

type StoreOp int

const (
	StoreOpDontCare StoreOp = iota
	StoreOpStore
)

/** @brief The layout an attachment is left in when the pass ends. */
type FinalLayout int

const (
	FinalLayoutColorAttachment FinalLayout = iota
	FinalLayoutDepthStencilAttachment
	FinalLayoutShaderRead
	FinalLayoutPresent
)

type AttachmentDescription struct {
	Format      Format
	Samples     uint32
	Load        LoadOp
	Store       StoreOp
	FinalLayout FinalLayout
}

// RenderPassDescription describes a single subpass render pass. Depth
// attachments are recognised by their format.
type RenderPassDescription struct {
	Attachments []AttachmentDescription
}

func NewRenderPass() RenderPassDescription {
	return RenderPassDescription{}
}

func (d RenderPassDescription) AddAttachment(a AttachmentDescription) RenderPassDescription {
	d.Attachments = append(slices.Clip(d.Attachments), a)
	return d
}

func (d RenderPassDescription) Hash() hashing.Key {
	h := hashing.New()
	hashing.Slice(h, d.Attachments, func(h *hashing.Hasher, a AttachmentDescription) {
		hashing.Integer(h, a.Format)
		h.Uint32(a.Samples)
		hashing.Integer(h, a.Load)
		hashing.Integer(h, a.Store)
		hashing.Integer(h, a.FinalLayout)
	})
	return h.Sum()
}
