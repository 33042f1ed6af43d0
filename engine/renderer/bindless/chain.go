package bindless

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spaghettifunk/resident/engine/containers"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// ViewIndex identifies one of the buffered views of the table.
type ViewIndex uint32

// DescriptorWriter applies descriptor writes to a set.
type DescriptorWriter interface {
	WriteTextureDescriptors(set metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error
}

// View is one descriptor set exposing the whole table. It is stale while it
// has pending slots or was never synced.
type View struct {
	index   ViewIndex
	set     metadata.DescriptorSetHandle
	pending map[SlotIndex]struct{}
	synced  bool
}

func (v *View) Index() ViewIndex {
	return v.index
}

func (v *View) Set() metadata.DescriptorSetHandle {
	return v.set
}

// Pending returns the slots waiting to be written, ascending.
func (v *View) Pending() []SlotIndex {
	return slices.Sorted(maps.Keys(v.pending))
}

func (v *View) Stale() bool {
	return !v.synced || len(v.pending) > 0
}

// DescriptorChain keeps N views of the table and brings each one up to date
// only when it is about to be used.
type DescriptorChain struct {
	writer  DescriptorWriter
	views   *containers.Ring[*View]
	binding uint32
	sampler metadata.SamplerHandle
	texture func(SlotIndex) (metadata.TextureHandle, bool)
	touched bool
	retired []*retiredTexture
	metrics *core.Metrics
}

// retiredTexture left the table but is still referenced by views.
type retiredTexture struct {
	texture metadata.TextureHandle
	views   map[ViewIndex]struct{}
}

// NewDescriptorChain wraps one descriptor set per view. texture resolves a
// slot to the texture its descriptor must point at.
func NewDescriptorChain(writer DescriptorWriter, sets []metadata.DescriptorSetHandle, binding uint32, sampler metadata.SamplerHandle,
	texture func(SlotIndex) (metadata.TextureHandle, bool), metrics *core.Metrics) (*DescriptorChain, error) {
	if len(sets) < 2 || len(sets) > 3 {
		return nil, fmt.Errorf("descriptor chain needs 2 or 3 views, got %d: %w", len(sets), core.ErrInvalidConfiguration)
	}
	views := make([]*View, len(sets))
	for i, set := range sets {
		views[i] = &View{index: ViewIndex(i), set: set, pending: make(map[SlotIndex]struct{})}
	}
	return &DescriptorChain{
		writer:  writer,
		views:   containers.NewRing(views...),
		binding: binding,
		sampler: sampler,
		texture: texture,
		metrics: metrics,
	}, nil
}

// MarkDirty queues index in every view.
func (c *DescriptorChain) MarkDirty(index SlotIndex) {
	c.touched = true
	c.views.Each(func(_ int, v *View) {
		v.pending[index] = struct{}{}
	})
}

// Sync writes every pending slot of v in one batch. A current view is left
// untouched.
func (c *DescriptorChain) Sync(v *View) error {
	if !v.Stale() {
		return nil
	}
	pending := v.Pending()
	writes := make([]metadata.DescriptorWrite, 0, len(pending))
	for _, index := range pending {
		tex, ok := c.texture(index)
		if !ok {
			return fmt.Errorf("view %d has pending slot %d that does not exist: %w", v.index, index, core.ErrLogic)
		}
		writes = append(writes, metadata.DescriptorWrite{
			Binding:      c.binding,
			ArrayElement: uint32(index),
			Kind:         metadata.DescriptorKindCombinedImageSampler,
			Texture:      tex,
			Sampler:      c.sampler,
		})
	}
	if len(writes) > 0 {
		if err := c.writer.WriteTextureDescriptors(v.set, writes); err != nil {
			return fmt.Errorf("sync view %d: %w", v.index, err)
		}
		c.metrics.ViewSynced(len(writes))
		core.LogDebug("synced %d slots into view %d", len(writes), v.index)
	}
	clear(v.pending)
	v.synced = true
	for _, r := range c.retired {
		delete(r.views, v.index)
	}
	return nil
}

// Retire records that h no longer backs any slot. Every view written before
// keeps it referenced until its next sync.
func (c *DescriptorChain) Retire(h metadata.TextureHandle) {
	r := &retiredTexture{texture: h, views: make(map[ViewIndex]struct{})}
	c.views.Each(func(_ int, v *View) {
		if v.synced {
			r.views[v.index] = struct{}{}
		}
	})
	c.retired = append(c.retired, r)
}

// Collect removes and returns the retired textures no view references.
func (c *DescriptorChain) Collect() []metadata.TextureHandle {
	var done []metadata.TextureHandle
	c.retired = slices.DeleteFunc(c.retired, func(r *retiredTexture) bool {
		if len(r.views) > 0 {
			return false
		}
		done = append(done, r.texture)
		return true
	})
	return done
}

// Drain removes and returns every retired texture.
func (c *DescriptorChain) Drain() []metadata.TextureHandle {
	done := make([]metadata.TextureHandle, 0, len(c.retired))
	for _, r := range c.retired {
		done = append(done, r.texture)
	}
	c.retired = nil
	return done
}

// Retired is the number of textures waiting for views to move past them.
func (c *DescriptorChain) Retired() int {
	return len(c.retired)
}

// Advance moves to the next view. It is the only way the active view changes.
func (c *DescriptorChain) Advance() *View {
	return c.views.Advance()
}

// CurrentView returns the active view as it is.
func (c *DescriptorChain) CurrentView() *View {
	return c.views.Current()
}

// Bind syncs the active view and returns it. It fails with
// core.ErrPreconditionViolation until a slot was marked at least once.
func (c *DescriptorChain) Bind() (*View, error) {
	if !c.touched {
		return nil, fmt.Errorf("bind of a bindless table that never held a texture: %w", core.ErrPreconditionViolation)
	}
	v := c.views.Current()
	if err := c.Sync(v); err != nil {
		return nil, err
	}
	return v, nil
}

// View returns view i.
func (c *DescriptorChain) View(i ViewIndex) *View {
	return c.views.At(int(i))
}

func (c *DescriptorChain) Len() int {
	return c.views.Len()
}
