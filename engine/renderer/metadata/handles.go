package metadata

// Handles are opaque references issued by a backend. The zero value of every
// handle type is invalid.

type DescriptorSetLayoutHandle uint64

type PipelineLayoutHandle uint64

type ShaderModuleHandle uint64

type RenderPassHandle uint64

type SamplerHandle uint64

type PipelineHandle uint64

type DescriptorPoolHandle uint64

type DescriptorSetHandle uint64

type TextureHandle uint64

const InvalidHandle = 0

// BindPoint selects the kind of work a descriptor set is attached to.
type BindPoint int

const (
	BindPointGraphics BindPoint = iota
	BindPointCompute
)

func (b BindPoint) String() string {
	switch b {
	case BindPointGraphics:
		return "graphics"
	case BindPointCompute:
		return "compute"
	default:
		return "unknown"
	}
}
