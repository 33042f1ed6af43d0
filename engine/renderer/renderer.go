// Package renderer ties the resource cache, the descriptor pools and the
// bindless texture table to one device backend.
package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/resident/engine/config"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/bindless"
	"github.com/spaghettifunk/resident/engine/renderer/cache"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
	"github.com/spaghettifunk/resident/engine/renderer/pool"
)

// Backend is the device surface the renderer drives. Both the vulkan and the
// software backends implement it.
type Backend interface {
	cache.Backend
	bindless.Backend
}

type Renderer struct {
	backend  Backend
	storage  *cache.Storage
	pools    *pool.Allocator
	textures *bindless.Manager
	metrics  *core.Metrics

	mu       sync.Mutex
	frame    uint64
	shutdown bool
}

func New(cfg config.Config, backend Backend, metrics *core.Metrics) (*Renderer, error) {
	if backend == nil {
		return nil, fmt.Errorf("renderer without a backend: %w", core.ErrInvalidConfiguration)
	}
	sizes, err := cfg.Pool.PoolSizes()
	if err != nil {
		return nil, err
	}
	storage := cache.NewStorage(backend, metrics)
	pools, err := pool.New(backend, pool.Profile{
		MaxSets: cfg.Pool.MaxSets,
		Sizes:   sizes,
		Flags:   metadata.DescriptorPoolFlagFreeSets,
	}, metrics)
	if err != nil {
		return nil, err
	}
	textures, err := bindless.NewManager(cfg.Bindless, storage, backend, metrics)
	if err != nil {
		return nil, errors.Join(err, pools.Destroy(), storage.ReleaseAll())
	}
	core.LogInfo("renderer initialized with %d bindless views of %d textures", cfg.Bindless.FramesInFlight, cfg.Bindless.MaxTextures)
	return &Renderer{
		backend:  backend,
		storage:  storage,
		pools:    pools,
		textures: textures,
		metrics:  metrics,
	}, nil
}

// BeginFrame advances the bindless table to the view of the next frame. A
// table that never held a texture has nothing to sync and is skipped.
func (r *Renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return fmt.Errorf("begin frame after shutdown: %w", core.ErrLogic)
	}
	r.frame++
	if _, err := r.textures.Update(); err != nil && !errors.Is(err, core.ErrPreconditionViolation) {
		return fmt.Errorf("frame %d: %w", r.frame, err)
	}
	return nil
}

// Frame is the number of frames begun so far.
func (r *Renderer) Frame() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// AllocateDescriptorSet resolves the layout through the cache and allocates a
// set for it from the general pools.
func (r *Renderer) AllocateDescriptorSet(d metadata.DescriptorSetLayoutDescription) (*pool.Allocation, error) {
	layout, err := r.storage.DescriptorSetLayout(d)
	if err != nil {
		return nil, err
	}
	return r.pools.Allocate(layout, d.PoolSizes())
}

func (r *Renderer) FreeDescriptorSet(alloc *pool.Allocation) error {
	return r.pools.Free(alloc)
}

func (r *Renderer) Storage() *cache.Storage {
	return r.storage
}

func (r *Renderer) Textures() *bindless.Manager {
	return r.textures
}

func (r *Renderer) Pools() *pool.Allocator {
	return r.pools
}

// Shutdown tears everything down in dependency order. It is safe to call more
// than once.
func (r *Renderer) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return nil
	}
	r.shutdown = true
	err := errors.Join(
		r.textures.Destroy(),
		r.pools.Destroy(),
		r.storage.ReleaseAll(),
	)
	if err != nil {
		core.LogError("renderer shutdown: %s", err)
	}
	return err
}
