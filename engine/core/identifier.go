package core

import "fmt"

// IdentifierPool hands out small integer ids and reuses released ones.
// Backends use it to issue opaque handles for objects they own.
type IdentifierPool struct {
	owners []interface{}
	live   int
}

func NewIdentifierPool(initial int) *IdentifierPool {
	return &IdentifierPool{
		owners: make([]interface{}, 0, initial),
	}
}

// Acquire stores owner under the lowest free id.
func (p *IdentifierPool) Acquire(owner interface{}) uint32 {
	if owner == nil {
		panic("identifier pool: nil owner")
	}
	length := uint32(len(p.owners))
	for i := uint32(0); i < length; i++ {
		// Existing free spot. Take it.
		if p.owners[i] == nil {
			p.owners[i] = owner
			p.live++
			return i
		}
	}

	// No existing free slots, push one.
	p.owners = append(p.owners, owner)
	p.live++
	return uint32(len(p.owners)) - 1
}

// Owner returns what was stored under id.
func (p *IdentifierPool) Owner(id uint32) (interface{}, bool) {
	if id >= uint32(len(p.owners)) || p.owners[id] == nil {
		return nil, false
	}
	return p.owners[id], true
}

func (p *IdentifierPool) Release(id uint32) error {
	length := uint32(len(p.owners))
	if id >= length {
		return fmt.Errorf("identifier %d out of range (max=%d): %w", id, length, ErrLogic)
	}
	if p.owners[id] == nil {
		return fmt.Errorf("identifier %d already released: %w", id, ErrLogic)
	}

	// Just zero out the entry, making it available for use.
	p.owners[id] = nil
	p.live--
	return nil
}

// Len is the number of ids currently held.
func (p *IdentifierPool) Len() int {
	return p.live
}
