package pool

type queue[T any] []T

func (q *queue[T]) Len() int { return len(*q) }

func (q *queue[T]) Pop() (T, bool) {
	old := *q
	if len(old) == 0 {
		var zero T
		return zero, false
	}
	x := old[0]
	*q = old[1:]
	return x, true
}

func (q *queue[T]) Push(t T) {
	*q = append(*q, t)
}

// PushFront queues t ahead of everything already waiting. Yielded jobs
// re-enter here so partially completed work is not starved behind fresh
// submissions.
func (q *queue[T]) PushFront(t T) {
	*q = append([]T{t}, *q...)
}
