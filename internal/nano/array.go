package nano

// Array is a fixed-capacity ring. Pushing into a full Array overwrites the
// oldest element; that is the intended behaviour for rolling windows.
// Index 0 is always the oldest retained element.
type Array[T any] struct {
	buf   []T
	head  int
	count int
}

// NewArray allocates an Array holding at most capacity elements.
func NewArray[T any](capacity int) *Array[T] {
	if capacity <= 0 {
		panic("nano: array capacity must be positive")
	}
	return &Array[T]{buf: make([]T, capacity)}
}

// Push appends item, dropping the oldest element when full.
func (a *Array[T]) Push(item T) {
	idx := a.head + a.count
	if idx >= len(a.buf) {
		idx -= len(a.buf)
	}
	a.buf[idx] = item
	if a.count < len(a.buf) {
		a.count++
		return
	}
	a.head++
	if a.head == len(a.buf) {
		a.head = 0
	}
}

// Get returns the element at index, oldest first.
func (a *Array[T]) Get(index int) (T, error) {
	if index < 0 || index >= a.count {
		var zero T
		return zero, &IndexError{Index: index, Length: a.count}
	}
	return a.at(index), nil
}

// Last returns the newest element and false when empty.
func (a *Array[T]) Last() (T, bool) {
	if a.count == 0 {
		var zero T
		return zero, false
	}
	return a.at(a.count - 1), true
}

// Len is the number of retained elements.
func (a *Array[T]) Len() int { return a.count }

// Cap is the fixed capacity.
func (a *Array[T]) Cap() int { return len(a.buf) }

// Tail calls fn for the newest n elements, oldest of them first.
// n <= 0 or n > Len visits everything.
func (a *Array[T]) Tail(n int, fn func(T)) {
	if n <= 0 || n > a.count {
		n = a.count
	}
	for i := a.count - n; i < a.count; i++ {
		fn(a.at(i))
	}
}

// Slice copies the retained elements, oldest first.
func (a *Array[T]) Slice() []T {
	out := make([]T, 0, a.count)
	a.Tail(0, func(v T) { out = append(out, v) })
	return out
}

func (a *Array[T]) at(i int) T {
	idx := a.head + i
	if idx >= len(a.buf) {
		idx -= len(a.buf)
	}
	return a.buf[idx]
}
