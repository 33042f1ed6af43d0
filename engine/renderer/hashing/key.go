// Package hashing computes structural keys for resource descriptions.
//
// A key is built by folding the hash of every field, in a fixed order, into a
// seed with Combine. Collections contribute their length followed by their
// elements in stored order, so two lists holding the same elements in a
// different order produce different keys.
package hashing

import (
	"math"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// Key is the structural identity of a resource description.
type Key uint64

const golden = 0x9e3779b97f4a7c15

// Combine folds v into seed.
func Combine(seed, v uint64) uint64 {
	return seed ^ (v + golden + (seed << 6) + (seed >> 2))
}

// Hasher accumulates field hashes. The zero value is ready to use.
type Hasher struct {
	seed uint64
}

func New() *Hasher {
	return &Hasher{}
}

func (h *Hasher) Uint64(v uint64) *Hasher {
	h.seed = Combine(h.seed, v)
	return h
}

func (h *Hasher) Uint32(v uint32) *Hasher {
	return h.Uint64(uint64(v))
}

func (h *Hasher) Int(v int) *Hasher {
	return h.Uint64(uint64(v))
}

func (h *Hasher) Bool(v bool) *Hasher {
	if v {
		return h.Uint64(1)
	}
	return h.Uint64(0)
}

func (h *Hasher) Float32(v float32) *Hasher {
	return h.Uint64(uint64(math.Float32bits(v)))
}

func (h *Hasher) String(v string) *Hasher {
	return h.Uint64(xxhash.Sum64String(v))
}

func (h *Hasher) Bytes(v []byte) *Hasher {
	return h.Uint64(xxhash.Sum64(v))
}

// Key folds another key in, used for nested descriptions.
func (h *Hasher) Key(k Key) *Hasher {
	return h.Uint64(uint64(k))
}

// Sum returns the key accumulated so far.
func (h *Hasher) Sum() Key {
	return Key(h.seed)
}

// Integer folds any integer kind, including the enum types of the metadata package.
func Integer[T constraints.Integer](h *Hasher, v T) *Hasher {
	return h.Uint64(uint64(v))
}

// Slice folds the length of s and then every element through fn.
func Slice[T any](h *Hasher, s []T, fn func(h *Hasher, e T)) *Hasher {
	h.Int(len(s))
	for _, e := range s {
		fn(h, e)
	}
	return h
}
