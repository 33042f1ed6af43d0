package software

import (
	"fmt"
	"maps"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type descriptorPool struct {
	desc          metadata.DescriptorPoolDescription
	remainingSets uint32
	remaining     map[metadata.DescriptorKind]uint32
	sets          map[metadata.DescriptorSetHandle]struct{}
}

func (p *descriptorPool) capacity() map[metadata.DescriptorKind]uint32 {
	c := make(map[metadata.DescriptorKind]uint32, len(p.desc.Sizes))
	for _, s := range p.desc.Sizes {
		c[s.Kind] += s.Count
	}
	return c
}

type slot struct {
	binding uint32
	element uint32
}

type descriptorSet struct {
	pool     metadata.DescriptorPoolHandle
	layout   metadata.DescriptorSetLayoutHandle
	consumed map[metadata.DescriptorKind]uint32
	writes   map[slot]metadata.DescriptorWrite
}

type boundSet struct {
	layout metadata.PipelineLayoutHandle
	set    metadata.DescriptorSetHandle
}

func (b *Backend) CreateDescriptorPool(d metadata.DescriptorPoolDescription) (metadata.DescriptorPoolHandle, error) {
	if err := b.enter("CreateDescriptorPool"); err != nil {
		return metadata.InvalidHandle, err
	}
	if d.MaxSets == 0 {
		return metadata.InvalidHandle, fmt.Errorf("descriptor pool without sets: %w", core.ErrInvalidConfiguration)
	}
	p := &descriptorPool{
		desc:          d,
		remainingSets: d.MaxSets,
		sets:          make(map[metadata.DescriptorSetHandle]struct{}),
	}
	p.remaining = p.capacity()
	h := metadata.DescriptorPoolHandle(b.acquire(p))
	b.pools[h] = p
	return h, nil
}

func (b *Backend) ResetDescriptorPool(h metadata.DescriptorPoolHandle) error {
	if err := b.enter("ResetDescriptorPool"); err != nil {
		return err
	}
	return b.resetPool(h)
}

func (b *Backend) resetPool(h metadata.DescriptorPoolHandle) error {
	p, ok := b.pools[h]
	if !ok {
		return fmt.Errorf("descriptor pool %d: %w", h, core.ErrLogic)
	}
	for set := range p.sets {
		if err := b.dropSet(set); err != nil {
			return err
		}
	}
	clear(p.sets)
	p.remainingSets = p.desc.MaxSets
	p.remaining = p.capacity()
	return nil
}

func (b *Backend) DestroyDescriptorPool(h metadata.DescriptorPoolHandle) error {
	if err := b.enter("DestroyDescriptorPool"); err != nil {
		return err
	}
	if err := b.resetPool(h); err != nil {
		return err
	}
	delete(b.pools, h)
	return b.release(uint64(h))
}

func (b *Backend) AllocateDescriptorSet(pool metadata.DescriptorPoolHandle, layout metadata.DescriptorSetLayoutHandle) (metadata.DescriptorSetHandle, error) {
	if err := b.enter("AllocateDescriptorSet"); err != nil {
		return metadata.InvalidHandle, err
	}
	p, ok := b.pools[pool]
	if !ok {
		return metadata.InvalidHandle, fmt.Errorf("descriptor pool %d: %w", pool, core.ErrNotFound)
	}
	l, ok := b.layouts[layout]
	if !ok {
		return metadata.InvalidHandle, fmt.Errorf("descriptor set layout %d: %w", layout, core.ErrNotFound)
	}

	if p.remainingSets == 0 {
		return metadata.InvalidHandle, fmt.Errorf("descriptor pool %d has no sets left: %w", pool, core.ErrResourceExhausted)
	}
	consumed := make(map[metadata.DescriptorKind]uint32)
	for _, s := range l.PoolSizes() {
		if p.remaining[s.Kind] < s.Count {
			return metadata.InvalidHandle, fmt.Errorf("descriptor pool %d is out of %s descriptors: %w", pool, s.Kind, core.ErrResourceExhausted)
		}
		consumed[s.Kind] = s.Count
	}
	for k, n := range consumed {
		p.remaining[k] -= n
	}
	p.remainingSets--

	set := &descriptorSet{
		pool:     pool,
		layout:   layout,
		consumed: consumed,
		writes:   make(map[slot]metadata.DescriptorWrite),
	}
	h := metadata.DescriptorSetHandle(b.acquire(set))
	b.sets[h] = set
	p.sets[h] = struct{}{}
	return h, nil
}

func (b *Backend) FreeDescriptorSet(pool metadata.DescriptorPoolHandle, set metadata.DescriptorSetHandle) error {
	if err := b.enter("FreeDescriptorSet"); err != nil {
		return err
	}
	p, ok := b.pools[pool]
	if !ok {
		return fmt.Errorf("descriptor pool %d: %w", pool, core.ErrLogic)
	}
	if _, ok := p.sets[set]; !ok {
		return fmt.Errorf("descriptor set %d is not from pool %d: %w", set, pool, core.ErrLogic)
	}
	if p.desc.Flags&metadata.DescriptorPoolFlagFreeSets == 0 {
		return fmt.Errorf("descriptor pool %d does not allow freeing sets: %w", pool, core.ErrLogic)
	}
	s := b.sets[set]
	for k, n := range s.consumed {
		p.remaining[k] += n
	}
	p.remainingSets++
	delete(p.sets, set)
	return b.dropSet(set)
}

func (b *Backend) dropSet(set metadata.DescriptorSetHandle) error {
	delete(b.sets, set)
	return b.release(uint64(set))
}

func (b *Backend) WriteTextureDescriptors(set metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error {
	if err := b.enter("WriteTextureDescriptors"); err != nil {
		return err
	}
	s, ok := b.sets[set]
	if !ok {
		return fmt.Errorf("descriptor set %d: %w", set, core.ErrNotFound)
	}
	layout := b.layouts[s.layout]
	for _, w := range writes {
		var binding *metadata.DescriptorBinding
		for i := range layout.Bindings {
			if layout.Bindings[i].Binding == w.Binding {
				binding = &layout.Bindings[i]
				break
			}
		}
		if binding == nil || w.ArrayElement >= binding.Count {
			return fmt.Errorf("descriptor set %d has no element %d at binding %d: %w", set, w.ArrayElement, w.Binding, core.ErrLogic)
		}
		if _, ok := b.textures[w.Texture]; !ok {
			return fmt.Errorf("write of unknown texture %d: %w", w.Texture, core.ErrNotFound)
		}
	}
	for _, w := range writes {
		s.writes[slot{binding: w.Binding, element: w.ArrayElement}] = w
	}
	return nil
}

func (b *Backend) BindDescriptorSet(point metadata.BindPoint, layout metadata.PipelineLayoutHandle, set metadata.DescriptorSetHandle) error {
	if err := b.enter("BindDescriptorSet"); err != nil {
		return err
	}
	if _, ok := b.sets[set]; !ok {
		return fmt.Errorf("descriptor set %d: %w", set, core.ErrNotFound)
	}
	b.bound[point] = boundSet{layout: layout, set: set}
	return nil
}

// Descriptor returns what element of binding in set currently points at.
func (b *Backend) Descriptor(set metadata.DescriptorSetHandle, binding, element uint32) (metadata.DescriptorWrite, bool) {
	s, ok := b.sets[set]
	if !ok {
		return metadata.DescriptorWrite{}, false
	}
	w, ok := s.writes[slot{binding: binding, element: element}]
	return w, ok
}

// Written returns how many elements of set were ever written.
func (b *Backend) Written(set metadata.DescriptorSetHandle) int {
	if s, ok := b.sets[set]; ok {
		return len(s.writes)
	}
	return 0
}

// Bound returns the set last bound at point.
func (b *Backend) Bound(point metadata.BindPoint) metadata.DescriptorSetHandle {
	return b.bound[point].set
}

// PoolRemaining reports the remaining per kind capacity of a pool.
func (b *Backend) PoolRemaining(h metadata.DescriptorPoolHandle) (map[metadata.DescriptorKind]uint32, bool) {
	p, ok := b.pools[h]
	if !ok {
		return nil, false
	}
	return maps.Clone(p.remaining), true
}
