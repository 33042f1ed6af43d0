package containers

// Ring is a fixed-size ring of elements with a single cursor. The cursor only
// moves through Advance, wrapping at the end.
type Ring[T any] struct {
	data   []T
	size   int
	cursor int
}

// Create a new Ring holding elements in order, the cursor on the first one.
func NewRing[T any](elements ...T) *Ring[T] {
	if len(elements) == 0 {
		panic("ring: no elements")
	}
	data := make([]T, len(elements))
	copy(data, elements)
	return &Ring[T]{
		data: data,
		size: len(data),
	}
}

// Current returns the element under the cursor.
func (r *Ring[T]) Current() T {
	return r.data[r.cursor]
}

// Cursor returns the position of the cursor.
func (r *Ring[T]) Cursor() int {
	return r.cursor
}

// Advance moves the cursor to the next element and returns it.
func (r *Ring[T]) Advance() T {
	r.cursor = (r.cursor + 1) % r.size
	return r.data[r.cursor]
}

// At returns the element at position i.
func (r *Ring[T]) At(i int) T {
	return r.data[i]
}

func (r *Ring[T]) Len() int {
	return r.size
}

// Each calls fn for every element, starting from position 0.
func (r *Ring[T]) Each(fn func(i int, e T)) {
	for i, e := range r.data {
		fn(i, e)
	}
}
