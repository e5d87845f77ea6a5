package worker

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestWorkQueueFIFO(t *testing.T) {
	c := qt.New(t)
	q := NewWorkQueue([]string{"a", "b"})

	c.Assert(q.Enqueue("a", []uint32{0, 1}), qt.Equals, 2)
	c.Assert(q.Enqueue("b", []uint32{5}), qt.Equals, 1)
	c.Assert(q.Enqueue("a", []uint32{2}), qt.Equals, 1)
	c.Assert(q.Len(), qt.Equals, 4)

	var order []WorkItem
	for {
		item, ok := q.Dequeue()
		if !ok {
			break
		}
		order = append(order, item)
	}
	c.Assert(order, qt.DeepEquals, []WorkItem{{"a", 0}, {"a", 1}, {"b", 5}, {"a", 2}})
	c.Assert(q.Len(), qt.Equals, 0)
}

func TestWorkQueueDeduplicatesOverlappingRequests(t *testing.T) {
	c := qt.New(t)
	q := NewWorkQueue([]string{"f"})

	c.Assert(q.Enqueue("f", []uint32{0, 1, 2}), qt.Equals, 3)
	c.Assert(q.Enqueue("f", []uint32{1, 2, 3, 3}), qt.Equals, 1)
	c.Assert(q.Len(), qt.Equals, 4)

	seen := map[uint32]int{}
	for q.Len() > 0 {
		item, _ := q.Dequeue()
		seen[item.Index]++
	}
	c.Assert(seen, qt.DeepEquals, map[uint32]int{0: 1, 1: 1, 2: 1, 3: 1})
}

func TestWorkQueueDequeueClearsPendingBeforeSend(t *testing.T) {
	c := qt.New(t)
	q := NewWorkQueue([]string{"f"})
	q.Enqueue("f", []uint32{7})
	c.Assert(q.Queued("f", 7), qt.IsTrue)

	item, ok := q.Dequeue()
	c.Assert(ok, qt.IsTrue)
	c.Assert(item, qt.Equals, WorkItem{File: "f", Index: 7})
	c.Assert(q.Queued("f", 7), qt.IsFalse)

	// A request arriving while the chunk is on the wire queues it again.
	c.Assert(q.Enqueue("f", []uint32{7}), qt.Equals, 1)
}

func TestWorkQueueIgnoresUnknownFiles(t *testing.T) {
	c := qt.New(t)
	q := NewWorkQueue([]string{"f"})
	c.Assert(q.Enqueue("g", []uint32{0}), qt.Equals, 0)
	c.Assert(q.Len(), qt.Equals, 0)
	_, ok := q.Dequeue()
	c.Assert(ok, qt.IsFalse)
}
