package engine

// valueStack emulates a native call stack for runtimes that hand arguments
// to host functions as a slice instead of exposing their own stack.
type valueStack[T any] struct {
	slots []T
	undef T
}

// newCallStack lays out a call frame: receiver, then args, padded with
// undef up to arity.
func newCallStack[T any](undef T, this T, args []T, arity int) *valueStack[T] {
	n := len(args)
	if n < arity {
		n = arity
	}
	s := &valueStack[T]{slots: make([]T, 0, n+2), undef: undef}
	s.slots = append(s.slots, this)
	s.slots = append(s.slots, args...)
	for len(s.slots) < n+1 {
		s.slots = append(s.slots, undef)
	}
	return s
}

func (s *valueStack[T]) index(idx int) (int, bool) {
	if idx < 0 {
		idx += len(s.slots)
	}
	return idx, idx >= 0 && idx < len(s.slots)
}

func (s *valueStack[T]) get(idx int) T {
	i, ok := s.index(idx)
	if !ok {
		return s.undef
	}
	return s.slots[i]
}

func (s *valueStack[T]) push(v T) {
	s.slots = append(s.slots, v)
}

func (s *valueStack[T]) pop() T {
	if len(s.slots) == 0 {
		return s.undef
	}
	v := s.slots[len(s.slots)-1]
	s.slots = s.slots[:len(s.slots)-1]
	return v
}

func (s *valueStack[T]) top() int {
	return len(s.slots)
}

// returned is the value a native call returns: the top of the stack if
// the native pushed anything above base, undef otherwise.
func (s *valueStack[T]) returned(base int) T {
	if s.top() <= base {
		return s.undef
	}
	return s.get(-1)
}
