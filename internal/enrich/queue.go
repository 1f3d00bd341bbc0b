package enrich

// readyQueue is the FIFO of units whose dependencies are all satisfied.
// Only the control goroutine touches it.
type readyQueue struct {
	items []Identity
	head  int
}

func newReadyQueue(initial []Identity) *readyQueue {
	q := &readyQueue{items: make([]Identity, 0, len(initial))}
	q.items = append(q.items, initial...)
	return q
}

func (q *readyQueue) push(id Identity) {
	q.items = append(q.items, id)
}

func (q *readyQueue) pop() (Identity, bool) {
	if q.head >= len(q.items) {
		return "", false
	}
	id := q.items[q.head]
	q.items[q.head] = ""
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return id, true
}

func (q *readyQueue) len() int {
	return len(q.items) - q.head
}
