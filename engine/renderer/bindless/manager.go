// Package bindless exposes a sparse set of textures as one indexable array.
//
// Textures live in slots of a SlotTable. The table is exposed to shaders
// through N descriptor sets, one per frame in flight, so a set can be
// rewritten while the device may still read the others. Changes are queued in
// every view and written into a view only when it becomes active.
package bindless

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/resident/engine/config"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/cache"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
	"github.com/spaghettifunk/resident/engine/renderer/pool"
)

// Backend is everything the manager needs from the device.
type Backend interface {
	pool.Backend
	TextureBackend
	DescriptorWriter
	UploadTexture(h metadata.TextureHandle, region metadata.Region, pixels []byte) error
	GenerateMipmaps(h metadata.TextureHandle, levels metadata.LevelRange) error
	BindDescriptorSet(point metadata.BindPoint, layout metadata.PipelineLayoutHandle, set metadata.DescriptorSetHandle) error
	Limits() metadata.Limits
}

type Manager struct {
	backend        Backend
	table          *SlotTable
	chain          *DescriptorChain
	allocator      *pool.Allocator
	allocations    []*pool.Allocation
	layout         metadata.DescriptorSetLayoutHandle
	pipelineLayout metadata.PipelineLayoutHandle
	sampler        metadata.SamplerHandle
}

// Layout is the descriptor set layout of a bindless table holding maxTextures
// combined image samplers at binding.
func Layout(binding, maxTextures uint32) metadata.DescriptorSetLayoutDescription {
	return metadata.DescriptorSetLayoutDescription{
		Bindings: []metadata.DescriptorBinding{{
			Binding: binding,
			Kind:    metadata.DescriptorKindCombinedImageSampler,
			Count:   maxTextures,
			Stages:  metadata.ShaderStageFragment | metadata.ShaderStageCompute,
			Flags:   metadata.BindingFlagPartiallyBound | metadata.BindingFlagUpdateAfterBind,
		}},
		Flags: metadata.LayoutFlagUpdateAfterBindPool,
	}
}

func NewManager(cfg config.Bindless, storage *cache.Storage, backend Backend, metrics *core.Metrics) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if limit := backend.Limits().MaxSampledImages; cfg.MaxTextures > limit {
		return nil, fmt.Errorf("bindless max_textures %d above the device limit %d: %w", cfg.MaxTextures, limit, core.ErrInvalidConfiguration)
	}

	m := &Manager{backend: backend}
	var err error
	layoutDesc := Layout(cfg.Binding, cfg.MaxTextures)
	if m.layout, err = storage.DescriptorSetLayout(layoutDesc); err != nil {
		return nil, err
	}
	if m.pipelineLayout, err = storage.PipelineLayout(metadata.NewPipelineLayout(metadata.LayoutByHandle(m.layout))); err != nil {
		return nil, err
	}
	samplerDesc, err := cfg.Sampler.Description()
	if err != nil {
		return nil, err
	}
	if m.sampler, err = storage.Sampler(samplerDesc); err != nil {
		return nil, err
	}

	views := uint32(cfg.FramesInFlight)
	m.allocator, err = pool.New(backend, pool.Profile{
		MaxSets: views,
		Sizes:   []metadata.PoolSize{{Kind: metadata.DescriptorKindCombinedImageSampler, Count: views * cfg.MaxTextures}},
		Flags:   metadata.DescriptorPoolFlagFreeSets | metadata.DescriptorPoolFlagUpdateAfterBind,
	}, metrics)
	if err != nil {
		return nil, err
	}

	sets := make([]metadata.DescriptorSetHandle, 0, views)
	for i := uint32(0); i < views; i++ {
		alloc, err := m.allocator.Allocate(m.layout, layoutDesc.PoolSizes())
		if err != nil {
			m.allocator.Destroy()
			return nil, err
		}
		m.allocations = append(m.allocations, alloc)
		sets = append(sets, alloc.Set)
	}

	m.table = NewSlotTable(backend, cfg.MaxTextures, func(i SlotIndex) { m.chain.MarkDirty(i) }, metrics)
	m.chain, err = NewDescriptorChain(backend, sets, cfg.Binding, m.sampler, m.table.Texture, metrics)
	if err != nil {
		m.allocator.Destroy()
		return nil, err
	}

	core.LogInfo("bindless table ready: %d textures, %d views", cfg.MaxTextures, views)
	return m, nil
}

// AllocateTexture returns a slot holding a texture of shape, reusing a freed
// slot of the same shape when there is one.
func (m *Manager) AllocateTexture(shape metadata.TextureShape) (SlotIndex, error) {
	if err := shape.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", err, core.ErrPreconditionViolation)
	}
	index, _, err := m.table.Allocate(shape)
	if err != nil {
		core.LogError("bindless allocation of %s failed: %s", shape, err)
		return 0, err
	}
	return index, nil
}

func (m *Manager) FreeTexture(index SlotIndex) error {
	return m.table.Free(index)
}

// ResizeTexture gives index a new texture of shape. Its contents are lost.
// The old texture is destroyed once every view that pointed at it was
// rewritten.
func (m *Manager) ResizeTexture(index SlotIndex, shape metadata.TextureShape) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("%w: %w", err, core.ErrPreconditionViolation)
	}
	old, err := m.table.Replace(index, shape)
	if err != nil {
		return err
	}
	m.chain.Retire(old)
	return m.destroyRetired(m.chain.Collect())
}

func (m *Manager) destroyRetired(textures []metadata.TextureHandle) error {
	var errs []error
	for _, h := range textures {
		if err := m.backend.DestroyTexture(h); err != nil {
			errs = append(errs, fmt.Errorf("destroy retired texture %d: %w", h, err))
		}
	}
	return errors.Join(errs...)
}

// Upload copies pixels into region of the texture of index. Descriptors are
// not touched, they already point at this texture.
func (m *Manager) Upload(index SlotIndex, pixels []byte, region metadata.Region) error {
	h, shape, err := m.used(index)
	if err != nil {
		return err
	}
	if !region.Within(shape) {
		return fmt.Errorf("upload region %+v outside %s: %w", region, shape, core.ErrPreconditionViolation)
	}
	if len(pixels) != region.ByteSize(shape.Format) {
		return fmt.Errorf("upload of %d bytes into a region of %d: %w", len(pixels), region.ByteSize(shape.Format), core.ErrPreconditionViolation)
	}
	return m.backend.UploadTexture(h, region, pixels)
}

// GenerateDerivedLevels fills levels from the level below each of them.
func (m *Manager) GenerateDerivedLevels(index SlotIndex, levels metadata.LevelRange) error {
	h, shape, err := m.used(index)
	if err != nil {
		return err
	}
	if !levels.Within(shape) {
		return fmt.Errorf("levels %+v outside %s: %w", levels, shape, core.ErrPreconditionViolation)
	}
	return m.backend.GenerateMipmaps(h, levels)
}

func (m *Manager) used(index SlotIndex) (metadata.TextureHandle, metadata.TextureShape, error) {
	if !m.table.InUse(index) {
		return metadata.InvalidHandle, metadata.TextureShape{}, fmt.Errorf("bindless slot %d is not allocated: %w", index, core.ErrLogic)
	}
	h, _ := m.table.Texture(index)
	shape, _ := m.table.Shape(index)
	return h, shape, nil
}

// Update moves to the next view and brings it up to date. Call it once per
// frame.
func (m *Manager) Update() (*View, error) {
	m.chain.Advance()
	v, err := m.chain.Bind()
	if err != nil {
		return nil, err
	}
	if err := m.destroyRetired(m.chain.Collect()); err != nil {
		return nil, err
	}
	return v, nil
}

// Bind syncs the active view and attaches it at point.
func (m *Manager) Bind(point metadata.BindPoint) error {
	v, err := m.chain.Bind()
	if err != nil {
		return err
	}
	if err := m.destroyRetired(m.chain.Collect()); err != nil {
		return err
	}
	return m.backend.BindDescriptorSet(point, m.pipelineLayout, v.Set())
}

// Destroy releases the textures and the descriptor sets. Cached layouts and
// the sampler stay with the storage they came from.
func (m *Manager) Destroy() error {
	var errs []error
	errs = append(errs, m.destroyRetired(m.chain.Drain()))
	errs = append(errs, m.table.Destroy())
	for _, alloc := range m.allocations {
		errs = append(errs, m.allocator.Free(alloc))
	}
	m.allocations = nil
	errs = append(errs, m.allocator.Destroy())
	return errors.Join(errs...)
}

func (m *Manager) Texture(index SlotIndex) (metadata.TextureHandle, bool) {
	return m.table.Texture(index)
}

func (m *Manager) Shape(index SlotIndex) (metadata.TextureShape, bool) {
	return m.table.Shape(index)
}

func (m *Manager) Len() int {
	return m.table.Len()
}

func (m *Manager) FreeCount() int {
	return m.table.FreeCount()
}

// Retired is the number of replaced textures not destroyed yet.
func (m *Manager) Retired() int {
	return m.chain.Retired()
}

func (m *Manager) Views() *DescriptorChain {
	return m.chain
}

func (m *Manager) PipelineLayout() metadata.PipelineLayoutHandle {
	return m.pipelineLayout
}

func (m *Manager) Sampler() metadata.SamplerHandle {
	return m.sampler
}
