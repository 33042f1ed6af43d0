package bindless

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/resident/engine/containers"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// SlotIndex is a position in the bindless texture array, stable for as long
// as the texture is allocated.
type SlotIndex uint32

// TextureBackend creates the textures behind slots.
type TextureBackend interface {
	CreateTexture(shape metadata.TextureShape, label string) (metadata.TextureHandle, error)
	DestroyTexture(h metadata.TextureHandle) error
}

type slot struct {
	texture metadata.TextureHandle
	shape   metadata.TextureShape
	used    bool
}

// SlotTable is the growable array of texture slots. Freed slots keep their
// texture and are handed out again to a request of the exact same shape.
type SlotTable struct {
	backend  TextureBackend
	capacity uint32
	slots    []slot
	free     map[metadata.TextureShape]*containers.Stack[SlotIndex]
	freed    int
	dirty    func(SlotIndex)
	metrics  *core.Metrics
}

// NewSlotTable makes an empty table of at most capacity slots. dirty is
// called for every slot whose texture changed.
func NewSlotTable(backend TextureBackend, capacity uint32, dirty func(SlotIndex), metrics *core.Metrics) *SlotTable {
	if dirty == nil {
		dirty = func(SlotIndex) {}
	}
	return &SlotTable{
		backend:  backend,
		capacity: capacity,
		free:     make(map[metadata.TextureShape]*containers.Stack[SlotIndex]),
		dirty:    dirty,
		metrics:  metrics,
	}
}

// Allocate returns a slot holding a texture of shape. fresh reports whether
// a new texture was created for it; a recycled slot is returned as it was
// left and is not marked dirty.
func (t *SlotTable) Allocate(shape metadata.TextureShape) (index SlotIndex, fresh bool, err error) {
	if stack, ok := t.free[shape]; ok && !stack.Empty() {
		index = stack.Pop()
		t.slots[index].used = true
		t.freed--
		t.report()
		return index, false, nil
	}

	if uint32(len(t.slots)) >= t.capacity {
		return 0, false, fmt.Errorf("bindless table is full (%d slots): %w", t.capacity, core.ErrResourceExhausted)
	}

	index = SlotIndex(len(t.slots))
	h, err := t.backend.CreateTexture(shape, label(index))
	if err != nil {
		return 0, false, fmt.Errorf("create texture for slot %d: %w", index, err)
	}
	t.slots = append(t.slots, slot{texture: h, shape: shape, used: true})
	t.dirty(index)
	t.report()
	core.LogDebug("bindless slot %d created for %s", index, shape)
	return index, true, nil
}

func label(index SlotIndex) string {
	return fmt.Sprintf("bindless[%d]-%s", index, uuid.NewString()[:8])
}

// Free puts index back on the free list of its shape. The texture and the
// descriptors pointing at it are left alone.
func (t *SlotTable) Free(index SlotIndex) error {
	s, err := t.slot(index)
	if err != nil {
		return err
	}
	if !s.used {
		return fmt.Errorf("double free of bindless slot %d: %w", index, core.ErrLogic)
	}
	s.used = false
	stack, ok := t.free[s.shape]
	if !ok {
		stack = &containers.Stack[SlotIndex]{}
		t.free[s.shape] = stack
	}
	stack.Push(index)
	t.freed++
	t.report()
	return nil
}

// Replace gives an allocated slot a new texture of shape and returns the old
// one. The caller owns the old texture: views may still point at it.
func (t *SlotTable) Replace(index SlotIndex, shape metadata.TextureShape) (metadata.TextureHandle, error) {
	s, err := t.slot(index)
	if err != nil {
		return metadata.InvalidHandle, err
	}
	if !s.used {
		return metadata.InvalidHandle, fmt.Errorf("replace of free bindless slot %d: %w", index, core.ErrLogic)
	}
	h, err := t.backend.CreateTexture(shape, label(index))
	if err != nil {
		return metadata.InvalidHandle, fmt.Errorf("create texture for slot %d: %w", index, err)
	}
	old := s.texture
	s.texture, s.shape = h, shape
	t.dirty(index)
	return old, nil
}

func (t *SlotTable) slot(index SlotIndex) (*slot, error) {
	if int(index) >= len(t.slots) {
		return nil, fmt.Errorf("bindless slot %d out of range (len=%d): %w", index, len(t.slots), core.ErrLogic)
	}
	return &t.slots[index], nil
}

// Texture returns the texture of index, allocated or free.
func (t *SlotTable) Texture(index SlotIndex) (metadata.TextureHandle, bool) {
	if int(index) >= len(t.slots) {
		return metadata.InvalidHandle, false
	}
	return t.slots[index].texture, true
}

func (t *SlotTable) Shape(index SlotIndex) (metadata.TextureShape, bool) {
	if int(index) >= len(t.slots) {
		return metadata.TextureShape{}, false
	}
	return t.slots[index].shape, true
}

// InUse reports whether index is currently allocated.
func (t *SlotTable) InUse(index SlotIndex) bool {
	return int(index) < len(t.slots) && t.slots[index].used
}

// Len is the number of slots ever created.
func (t *SlotTable) Len() int {
	return len(t.slots)
}

// FreeCount is the number of slots waiting for reuse.
func (t *SlotTable) FreeCount() int {
	return t.freed
}

func (t *SlotTable) Capacity() uint32 {
	return t.capacity
}

// Destroy destroys every texture, allocated or free, and empties the table.
func (t *SlotTable) Destroy() error {
	var errs []error
	for i, s := range t.slots {
		if err := t.backend.DestroyTexture(s.texture); err != nil {
			errs = append(errs, fmt.Errorf("destroy texture of slot %d: %w", i, err))
		}
	}
	t.slots = nil
	clear(t.free)
	t.freed = 0
	t.report()
	return errors.Join(errs...)
}

func (t *SlotTable) report() {
	t.metrics.SetSlots(len(t.slots)-t.freed, t.freed)
}
