package worker

// WorkQueue is a FIFO of chunk offers with a per-file set of queued indices.
// It is not safe for concurrent use; the server loop owns it.
type WorkQueue struct {
	pending map[string]map[uint32]struct{}
	fifo    []WorkItem
	head    int
}

// NewWorkQueue creates an empty pending set for every file
func NewWorkQueue(files []string) *WorkQueue {
	q := &WorkQueue{pending: make(map[string]map[uint32]struct{}, len(files))}
	for _, name := range files {
		q.pending[name] = make(map[uint32]struct{})
	}
	return q
}

// Enqueue appends every index of file that is not queued already and returns how many were added
func (q *WorkQueue) Enqueue(file string, indices []uint32) int {
	set, ok := q.pending[file]
	if !ok {
		return 0
	}
	added := 0
	for _, idx := range indices {
		if _, queued := set[idx]; queued {
			continue
		}
		set[idx] = struct{}{}
		q.fifo = append(q.fifo, WorkItem{File: file, Index: idx})
		added++
	}
	return added
}

// Dequeue pops the oldest item. The index leaves the pending set before the
// chunk is transmitted, so a request arriving during the send queues it again.
func (q *WorkQueue) Dequeue() (WorkItem, bool) {
	if q.head == len(q.fifo) {
		return WorkItem{}, false
	}
	item := q.fifo[q.head]
	q.fifo[q.head] = WorkItem{}
	q.head++
	// Reuse the backing array once drained.
	if q.head == len(q.fifo) {
		q.fifo = q.fifo[:0]
		q.head = 0
	}
	delete(q.pending[item.File], item.Index)
	return item, true
}

// Len returns the number of queued items
func (q *WorkQueue) Len() int {
	return len(q.fifo) - q.head
}

// Queued reports whether a chunk is waiting to be sent
func (q *WorkQueue) Queued(file string, index uint32) bool {
	_, ok := q.pending[file][index]
	return ok
}
