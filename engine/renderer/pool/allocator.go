package pool

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// Backend owns the device side of descriptor pools and sets.
type Backend interface {
	CreateDescriptorPool(d metadata.DescriptorPoolDescription) (metadata.DescriptorPoolHandle, error)
	ResetDescriptorPool(h metadata.DescriptorPoolHandle) error
	DestroyDescriptorPool(h metadata.DescriptorPoolHandle) error
	AllocateDescriptorSet(pool metadata.DescriptorPoolHandle, layout metadata.DescriptorSetLayoutHandle) (metadata.DescriptorSetHandle, error)
	FreeDescriptorSet(pool metadata.DescriptorPoolHandle, set metadata.DescriptorSetHandle) error
}

// Profile is the capacity every new pool is created with.
type Profile struct {
	MaxSets uint32
	Sizes   []metadata.PoolSize
	Flags   metadata.DescriptorPoolFlags
}

// DefaultProfile is a general purpose profile sized for per-material sets.
func DefaultProfile() Profile {
	return Profile{
		MaxSets: 256,
		Sizes: []metadata.PoolSize{
			{Kind: metadata.DescriptorKindUniformBuffer, Count: 256},
			{Kind: metadata.DescriptorKindCombinedImageSampler, Count: 1024},
			{Kind: metadata.DescriptorKindStorageBuffer, Count: 128},
		},
		Flags: metadata.DescriptorPoolFlagFreeSets,
	}
}

func (p Profile) capacity() map[metadata.DescriptorKind]uint32 {
	c := make(map[metadata.DescriptorKind]uint32, len(p.Sizes))
	for _, s := range p.Sizes {
		c[s.Kind] += s.Count
	}
	return c
}

func (p Profile) Validate() error {
	if p.MaxSets == 0 {
		return fmt.Errorf("pool profile allows no sets: %w", core.ErrInvalidConfiguration)
	}
	if len(p.Sizes) == 0 {
		return fmt.Errorf("pool profile has no descriptor sizes: %w", core.ErrInvalidConfiguration)
	}
	return nil
}

// Pool is one fixed capacity descriptor pool.
type Pool struct {
	handle        metadata.DescriptorPoolHandle
	maxSets       uint32
	remainingSets uint32
	capacity      map[metadata.DescriptorKind]uint32
	remaining     map[metadata.DescriptorKind]uint32
}

func (p *Pool) Handle() metadata.DescriptorPoolHandle {
	return p.handle
}

func (p *Pool) fits(req map[metadata.DescriptorKind]uint32) bool {
	if p.remainingSets == 0 {
		return false
	}
	for k, n := range req {
		if p.remaining[k] < n {
			return false
		}
	}
	return true
}

func (p *Pool) reserve(req map[metadata.DescriptorKind]uint32) {
	p.remainingSets--
	for k, n := range req {
		p.remaining[k] -= n
	}
}

func (p *Pool) credit(req map[metadata.DescriptorKind]uint32) {
	p.remainingSets++
	for k, n := range req {
		p.remaining[k] += n
	}
}

func (p *Pool) empty() bool {
	return p.remainingSets == p.maxSets
}

// Allocation is one descriptor set taken from a pool.
type Allocation struct {
	ID     uuid.UUID
	Layout metadata.DescriptorSetLayoutHandle
	Sizes  []metadata.PoolSize
	Set    metadata.DescriptorSetHandle

	pool *Pool
	req  map[metadata.DescriptorKind]uint32
}

func (a *Allocation) Pool() metadata.DescriptorPoolHandle {
	return a.pool.handle
}

// PoolStats is a snapshot of one pool's counters.
type PoolStats struct {
	Handle        metadata.DescriptorPoolHandle
	MaxSets       uint32
	RemainingSets uint32
	Capacity      map[metadata.DescriptorKind]uint32
	Remaining     map[metadata.DescriptorKind]uint32
	// Consumed is the sum of the requests of the live allocations of this pool.
	Consumed map[metadata.DescriptorKind]uint32
	Live     int
}

// Allocator hands out descriptor sets from a growing list of pools, first
// fit in creation order. Pools are never destroyed before Destroy; a pool
// whose sets all came back is reset and reused.
type Allocator struct {
	backend     Backend
	profile     Profile
	capacity    map[metadata.DescriptorKind]uint32
	pools       []*Pool
	allocations map[uuid.UUID]*Allocation
	metrics     *core.Metrics
}

func New(backend Backend, profile Profile, metrics *core.Metrics) (*Allocator, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{
		backend:     backend,
		profile:     profile,
		capacity:    profile.capacity(),
		allocations: make(map[uuid.UUID]*Allocation),
		metrics:     metrics,
	}, nil
}

func aggregate(sizes []metadata.PoolSize) map[metadata.DescriptorKind]uint32 {
	req := make(map[metadata.DescriptorKind]uint32, len(sizes))
	for _, s := range sizes {
		if s.Count > 0 {
			req[s.Kind] += s.Count
		}
	}
	return req
}

// Allocate takes one set of layout whose bindings consume requested.
func (a *Allocator) Allocate(layout metadata.DescriptorSetLayoutHandle, requested []metadata.PoolSize) (*Allocation, error) {
	req := aggregate(requested)
	for k, n := range req {
		if n > a.capacity[k] {
			return nil, fmt.Errorf("request of %d %s descriptors exceeds the pool profile (%d): %w", n, k, a.capacity[k], core.ErrInvalidConfiguration)
		}
	}

	var pool *Pool
	for _, p := range a.pools {
		if p.fits(req) {
			pool = p
			break
		}
	}
	grown := pool == nil
	if grown {
		p, err := a.grow()
		if err != nil {
			return nil, err
		}
		pool = p
	}

	pool.reserve(req)
	set, err := a.backend.AllocateDescriptorSet(pool.handle, layout)
	if err != nil {
		pool.credit(req)
		core.LogError("failed to allocate descriptor set from pool %d: %s", pool.handle, err)
		err = fmt.Errorf("allocate descriptor set: %w", err)
		if grown {
			err = errors.Join(err, a.shrink(pool))
		}
		return nil, err
	}

	alloc := &Allocation{
		ID:     uuid.New(),
		Layout: layout,
		Sizes:  slices.Clone(requested),
		Set:    set,
		pool:   pool,
		req:    req,
	}
	a.allocations[alloc.ID] = alloc
	a.metrics.AddPoolAllocations(1)
	return alloc, nil
}

func (a *Allocator) grow() (*Pool, error) {
	handle, err := a.backend.CreateDescriptorPool(metadata.DescriptorPoolDescription{
		MaxSets: a.profile.MaxSets,
		Sizes:   slices.Clone(a.profile.Sizes),
		Flags:   a.profile.Flags,
	})
	if err != nil {
		core.LogError("failed to create descriptor pool: %s", err)
		return nil, fmt.Errorf("create descriptor pool: %w", err)
	}
	p := &Pool{
		handle:        handle,
		maxSets:       a.profile.MaxSets,
		remainingSets: a.profile.MaxSets,
		capacity:      a.profile.capacity(),
		remaining:     a.profile.capacity(),
	}
	a.pools = append(a.pools, p)
	a.metrics.AddDescriptorPools(1)
	core.LogDebug("created descriptor pool %d (%d total)", handle, len(a.pools))
	return p, nil
}

// shrink destroys p, a pool created by an allocation that then failed.
func (a *Allocator) shrink(p *Pool) error {
	a.pools = slices.DeleteFunc(a.pools, func(q *Pool) bool { return q == p })
	a.metrics.AddDescriptorPools(-1)
	if err := a.backend.DestroyDescriptorPool(p.handle); err != nil {
		return fmt.Errorf("destroy descriptor pool %d: %w", p.handle, err)
	}
	return nil
}

// Free returns alloc's capacity to its pool. Freeing an allocation twice, or
// one this allocator did not make, is an error.
func (a *Allocator) Free(alloc *Allocation) error {
	if alloc == nil || a.allocations[alloc.ID] != alloc {
		return fmt.Errorf("free of untracked descriptor allocation: %w", core.ErrLogic)
	}
	delete(a.allocations, alloc.ID)
	a.metrics.AddPoolAllocations(-1)

	pool := alloc.pool
	pool.credit(alloc.req)
	if pool.empty() {
		// every set is back, recycle the whole pool at once
		if err := a.backend.ResetDescriptorPool(pool.handle); err != nil {
			return fmt.Errorf("reset descriptor pool %d: %w", pool.handle, err)
		}
		a.metrics.PoolReset()
		core.LogDebug("reset descriptor pool %d", pool.handle)
		return nil
	}
	if err := a.backend.FreeDescriptorSet(pool.handle, alloc.Set); err != nil {
		return fmt.Errorf("free descriptor set %d: %w", alloc.Set, err)
	}
	return nil
}

func (a *Allocator) PoolCount() int {
	return len(a.pools)
}

func (a *Allocator) Live() int {
	return len(a.allocations)
}

func (a *Allocator) Stats() []PoolStats {
	stats := make([]PoolStats, len(a.pools))
	index := make(map[*Pool]int, len(a.pools))
	for i, p := range a.pools {
		index[p] = i
		stats[i] = PoolStats{
			Handle:        p.handle,
			MaxSets:       p.maxSets,
			RemainingSets: p.remainingSets,
			Capacity:      maps.Clone(p.capacity),
			Remaining:     maps.Clone(p.remaining),
			Consumed:      make(map[metadata.DescriptorKind]uint32),
		}
	}
	for _, alloc := range a.allocations {
		s := &stats[index[alloc.pool]]
		s.Live++
		for k, n := range alloc.req {
			s.Consumed[k] += n
		}
	}
	return stats
}

// Destroy destroys every pool. Outstanding allocations become invalid.
func (a *Allocator) Destroy() error {
	var firstErr error
	for _, p := range a.pools {
		if err := a.backend.DestroyDescriptorPool(p.handle); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("destroy descriptor pool %d: %w", p.handle, err)
		}
	}
	a.metrics.AddDescriptorPools(-len(a.pools))
	a.metrics.AddPoolAllocations(-len(a.allocations))
	a.pools = nil
	clear(a.allocations)
	return firstErr
}
