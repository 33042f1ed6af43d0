package cache

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/hashing"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type entry[D metadata.Hashable] struct {
	key  hashing.Key
	desc D
	seq  uint64
}

// Category memoizes the creation of one kind of resource. Descriptions that
// hash to the same key share one handle until it is released.
//
// A Category is not safe for concurrent use.
type Category[D metadata.Hashable, H ~uint64] struct {
	name     string
	create   func(D) (H, error)
	destroy  func(H) error
	metrics  *core.Metrics
	byKey    map[hashing.Key]H
	byHandle map[H]*entry[D]
	seq      uint64
}

func NewCategory[D metadata.Hashable, H ~uint64](name string, create func(D) (H, error), destroy func(H) error, metrics *core.Metrics) *Category[D, H] {
	return &Category[D, H]{
		name:     name,
		create:   create,
		destroy:  destroy,
		metrics:  metrics,
		byKey:    make(map[hashing.Key]H),
		byHandle: make(map[H]*entry[D]),
	}
}

// GetOrCreate returns the handle stored for d's key, creating it on a miss.
// A failed creation records nothing and returns the creation error.
func (c *Category[D, H]) GetOrCreate(d D) (H, error) {
	key := d.Hash()
	if h, ok := c.byKey[key]; ok {
		c.metrics.CacheLookup(c.name, "hit")
		return h, nil
	}

	h, err := c.create(d)
	if err != nil {
		c.metrics.CacheLookup(c.name, "error")
		core.LogError("failed to create %s %016x: %s", c.name, uint64(key), err)
		var zero H
		return zero, fmt.Errorf("create %s: %w", c.name, err)
	}

	c.seq++
	c.byKey[key] = h
	c.byHandle[h] = &entry[D]{key: key, desc: d, seq: c.seq}
	c.metrics.CacheLookup(c.name, "miss")
	c.metrics.SetCacheEntries(c.name, len(c.byHandle))
	core.LogDebug("created %s %d for key %016x", c.name, uint64(h), uint64(key))
	return h, nil
}

// Description returns the description h was created from.
func (c *Category[D, H]) Description(h H) (D, error) {
	e, ok := c.byHandle[h]
	if !ok {
		var zero D
		return zero, fmt.Errorf("%s %d: %w", c.name, uint64(h), core.ErrNotFound)
	}
	return e.desc, nil
}

// Key returns the structural key h is stored under.
func (c *Category[D, H]) Key(h H) (hashing.Key, bool) {
	e, ok := c.byHandle[h]
	if !ok {
		return 0, false
	}
	return e.key, true
}

// Lookup returns the handle for d without creating anything.
func (c *Category[D, H]) Lookup(d D) (H, bool) {
	h, ok := c.byKey[d.Hash()]
	return h, ok
}

// Release destroys h and forgets its entry. The entry is kept when the
// backend fails to destroy it.
func (c *Category[D, H]) Release(h H) error {
	e, ok := c.byHandle[h]
	if !ok {
		return fmt.Errorf("release %s %d: %w", c.name, uint64(h), core.ErrLogic)
	}
	if err := c.destroy(h); err != nil {
		return fmt.Errorf("destroy %s %d: %w", c.name, uint64(h), err)
	}
	delete(c.byHandle, h)
	delete(c.byKey, e.key)
	c.metrics.SetCacheEntries(c.name, len(c.byHandle))
	return nil
}

// ReleaseAll destroys every entry, newest first. Entries are forgotten even
// when destroying them fails; the failures are joined into the result.
func (c *Category[D, H]) ReleaseAll() error {
	if len(c.byHandle) == 0 {
		return nil
	}
	handles := slices.SortedFunc(maps.Keys(c.byHandle), func(a, b H) int {
		return cmp.Compare(c.byHandle[b].seq, c.byHandle[a].seq)
	})

	var errs []error
	for _, h := range handles {
		if err := c.destroy(h); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s %d: %w", c.name, uint64(h), err))
		}
	}
	core.LogDebug("released %d %s entries", len(handles), c.name)

	clear(c.byHandle)
	clear(c.byKey)
	c.metrics.SetCacheEntries(c.name, 0)
	return errors.Join(errs...)
}

func (c *Category[D, H]) Len() int {
	return len(c.byHandle)
}

func (c *Category[D, H]) Name() string {
	return c.name
}
