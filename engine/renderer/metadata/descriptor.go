package metadata

import (
	"slices"

	"github.com/spaghettifunk/resident/engine/renderer/hashing"
)

/** @brief The kind of resource a descriptor points at. Also the unit pool capacity is counted in. */
type DescriptorKind int

const (
	DescriptorKindSampler DescriptorKind = iota
	DescriptorKindCombinedImageSampler
	DescriptorKindSampledImage
	DescriptorKindStorageImage
	DescriptorKindUniformBuffer
	DescriptorKindStorageBuffer
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorKindSampler:
		return "sampler"
	case DescriptorKindCombinedImageSampler:
		return "combined_image_sampler"
	case DescriptorKindSampledImage:
		return "sampled_image"
	case DescriptorKindStorageImage:
		return "storage_image"
	case DescriptorKindUniformBuffer:
		return "uniform_buffer"
	case DescriptorKindStorageBuffer:
		return "storage_buffer"
	default:
		return "unknown"
	}
}

// ParseDescriptorKind is the inverse of DescriptorKind.String.
func ParseDescriptorKind(s string) (DescriptorKind, bool) {
	for k := DescriptorKindSampler; k <= DescriptorKindStorageBuffer; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

/** @brief Shader stages, usable as a bit set. */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageGeometry ShaderStage = 0x00000002
	ShaderStageFragment ShaderStage = 0x00000004
	ShaderStageCompute  ShaderStage = 0x00000008
)

/** @brief Per binding flags, mostly needed by bindless arrays. */
type BindingFlags int

const (
	BindingFlagPartiallyBound  BindingFlags = 0x1
	BindingFlagUpdateAfterBind BindingFlags = 0x2
	BindingFlagVariableCount   BindingFlags = 0x4
)

type LayoutFlags int

const (
	/** @brief The layout may be used with update-after-bind bindings. */
	LayoutFlagUpdateAfterBindPool LayoutFlags = 0x1
)

type DescriptorBinding struct {
	Binding uint32
	Kind    DescriptorKind
	Count   uint32
	Stages  ShaderStage
	Flags   BindingFlags
}

func (b DescriptorBinding) hash(h *hashing.Hasher) {
	h.Uint32(b.Binding)
	hashing.Integer(h, b.Kind)
	h.Uint32(b.Count)
	hashing.Integer(h, b.Stages)
	hashing.Integer(h, b.Flags)
}

// DescriptorSetLayoutDescription describes one descriptor set layout.
// Bindings are hashed in the order they are stored.
type DescriptorSetLayoutDescription struct {
	Bindings []DescriptorBinding
	Flags    LayoutFlags
}

// NewDescriptorSetLayout starts an empty description.
func NewDescriptorSetLayout() DescriptorSetLayoutDescription {
	return DescriptorSetLayoutDescription{}
}

// AddBinding returns a copy with b appended.
func (d DescriptorSetLayoutDescription) AddBinding(binding uint32, kind DescriptorKind, count uint32, stages ShaderStage) DescriptorSetLayoutDescription {
	d.Bindings = append(slices.Clip(d.Bindings), DescriptorBinding{
		Binding: binding,
		Kind:    kind,
		Count:   count,
		Stages:  stages,
	})
	return d
}

func (d DescriptorSetLayoutDescription) WithFlags(flags LayoutFlags) DescriptorSetLayoutDescription {
	d.Flags = flags
	return d
}

// Sorted returns a copy with bindings ordered by binding number, for callers
// that want insertion order not to matter.
func (d DescriptorSetLayoutDescription) Sorted() DescriptorSetLayoutDescription {
	d.Bindings = slices.Clone(d.Bindings)
	slices.SortStableFunc(d.Bindings, func(a, b DescriptorBinding) int {
		return int(a.Binding) - int(b.Binding)
	})
	return d
}

// PoolSizes returns the descriptor counts one set of this layout consumes.
func (d DescriptorSetLayoutDescription) PoolSizes() []PoolSize {
	counts := map[DescriptorKind]uint32{}
	for _, b := range d.Bindings {
		counts[b.Kind] += b.Count
	}
	sizes := make([]PoolSize, 0, len(counts))
	for k, c := range counts {
		sizes = append(sizes, PoolSize{Kind: k, Count: c})
	}
	slices.SortFunc(sizes, func(a, b PoolSize) int { return int(a.Kind) - int(b.Kind) })
	return sizes
}

func (d DescriptorSetLayoutDescription) Hash() hashing.Key {
	h := hashing.New()
	hashing.Slice(h, d.Bindings, func(h *hashing.Hasher, b DescriptorBinding) { b.hash(h) })
	hashing.Integer(h, d.Flags)
	return h.Sum()
}

/** @brief A number of descriptors of one kind. */
type PoolSize struct {
	Kind  DescriptorKind
	Count uint32
}

type DescriptorPoolFlags int

const (
	DescriptorPoolFlagFreeSets        DescriptorPoolFlags = 0x1
	DescriptorPoolFlagUpdateAfterBind DescriptorPoolFlags = 0x2
)

// DescriptorPoolDescription is what a backend needs to create one pool.
type DescriptorPoolDescription struct {
	MaxSets uint32
	Sizes   []PoolSize
	Flags   DescriptorPoolFlags
}

// DescriptorWrite points one array element of a binding at a texture.
type DescriptorWrite struct {
	Binding      uint32
	ArrayElement uint32
	Kind         DescriptorKind
	Texture      TextureHandle
	Sampler      SamplerHandle
}
