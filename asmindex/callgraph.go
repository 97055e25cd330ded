package asmindex

// stack is a LIFO worklist.
type stack[T any] struct {
	items []T
}

func (s *stack[T]) Push(value T) {
	s.items = append(s.items, value)
}

func (s *stack[T]) Pop() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	val := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return val, true
}

// Reachable computes the transitive closure of DirectCallees starting at
// name: every function reachable through at least one call edge. Cycles are
// handled with a visited set keyed by function name; the closure includes the
// start function only if a cycle leads back to it. Unresolved destinations
// encountered anywhere in the walk are collected, deduplicated.
func (x *Index) Reachable(name string) (callees []Function, unresolved []string, err error) {
	var (
		work           stack[string]
		visited        = make(map[string]bool)
		emitted        = make(map[string]bool)
		seenUnresolved = make(map[string]bool)
	)

	if _, _, err := x.DirectCallees(name); err != nil {
		return nil, nil, err
	}

	work.Push(name)
	for {
		current, ok := work.Pop()
		if !ok {
			break
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		direct, missing, err := x.DirectCallees(current)
		if err != nil {
			return nil, nil, err
		}
		for _, m := range missing {
			if !seenUnresolved[m] {
				seenUnresolved[m] = true
				unresolved = append(unresolved, m)
			}
		}
		for _, fn := range direct {
			if !emitted[fn.Name] {
				emitted[fn.Name] = true
				callees = append(callees, fn)
			}
			work.Push(fn.Name)
		}
	}
	return callees, unresolved, nil
}
