package metadata

import (
	"github.com/spaghettifunk/resident/engine/renderer/hashing"
)

// Hashable is implemented by every description value.
type Hashable interface {
	Hash() hashing.Key
}

type refKind uint8

const (
	refNone refKind = iota
	refDescription
	refHandle
)

// Ref is a field that accepts either a description to build from or a handle
// that already exists. It is resolved to a handle once, where it is used.
type Ref[D Hashable, H ~uint64] struct {
	kind   refKind
	desc   D
	handle H
}

func refByDescription[D Hashable, H ~uint64](d D) Ref[D, H] {
	return Ref[D, H]{kind: refDescription, desc: d}
}

func refByHandle[D Hashable, H ~uint64](h H) Ref[D, H] {
	return Ref[D, H]{kind: refHandle, handle: h}
}

// IsSet reports whether the reference holds either variant.
func (r Ref[D, H]) IsSet() bool {
	return r.kind != refNone
}

// IsHandle reports whether the reference already holds a handle.
func (r Ref[D, H]) IsHandle() bool {
	return r.kind == refHandle
}

func (r Ref[D, H]) Handle() H {
	return r.handle
}

func (r Ref[D, H]) Description() D {
	return r.desc
}

// Resolve returns the handle, creating it through create for the description variant.
// An unset reference resolves to the zero handle.
func (r Ref[D, H]) Resolve(create func(D) (H, error)) (H, error) {
	switch r.kind {
	case refHandle:
		return r.handle, nil
	case refDescription:
		return create(r.desc)
	default:
		var zero H
		return zero, nil
	}
}

func (r Ref[D, H]) hash(h *hashing.Hasher) {
	hashing.Integer(h, r.kind)
	switch r.kind {
	case refHandle:
		h.Uint64(uint64(r.handle))
	case refDescription:
		h.Key(r.desc.Hash())
	}
}

type LayoutRef = Ref[DescriptorSetLayoutDescription, DescriptorSetLayoutHandle]

func LayoutByDescription(d DescriptorSetLayoutDescription) LayoutRef {
	return refByDescription[DescriptorSetLayoutDescription, DescriptorSetLayoutHandle](d)
}

func LayoutByHandle(h DescriptorSetLayoutHandle) LayoutRef {
	return refByHandle[DescriptorSetLayoutDescription](h)
}

type PipelineLayoutRef = Ref[PipelineLayoutDescription, PipelineLayoutHandle]

func PipelineLayoutByDescription(d PipelineLayoutDescription) PipelineLayoutRef {
	return refByDescription[PipelineLayoutDescription, PipelineLayoutHandle](d)
}

func PipelineLayoutByHandle(h PipelineLayoutHandle) PipelineLayoutRef {
	return refByHandle[PipelineLayoutDescription](h)
}

type RenderPassRef = Ref[RenderPassDescription, RenderPassHandle]

func RenderPassByDescription(d RenderPassDescription) RenderPassRef {
	return refByDescription[RenderPassDescription, RenderPassHandle](d)
}

func RenderPassByHandle(h RenderPassHandle) RenderPassRef {
	return refByHandle[RenderPassDescription](h)
}

type ShaderRef = Ref[ShaderModuleDescription, ShaderModuleHandle]

func ShaderByDescription(d ShaderModuleDescription) ShaderRef {
	return refByDescription[ShaderModuleDescription, ShaderModuleHandle](d)
}

func ShaderByHandle(h ShaderModuleHandle) ShaderRef {
	return refByHandle[ShaderModuleDescription](h)
}
