package sim

import (
	"container/heap"
	"container/list"
)

// eventQueue holds pending events ordered by (time, insertion sequence).
type eventQueue interface {
	Push(evt *event)
	Pop() *event
	Peek() *event
	Remove(evt *event) bool
	Len() int
	Clear()
}

// heapEventQueue is the default eventQueue, backed by a binary heap.
type heapEventQueue struct {
	events eventHeap
}

func newHeapEventQueue() *heapEventQueue {
	q := new(heapEventQueue)
	q.events = make([]*event, 0)
	heap.Init(&q.events)

	return q
}

// Push adds an event to the event queue.
func (q *heapEventQueue) Push(evt *event) {
	heap.Push(&q.events, evt)
}

// Pop removes and returns the next earliest event, or nil if the queue is
// empty.
func (q *heapEventQueue) Pop() *event {
	if len(q.events) == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*event)
}

// Peek returns the event in front of the queue without removing it from the
// queue.
func (q *heapEventQueue) Peek() *event {
	if len(q.events) == 0 {
		return nil
	}

	return q.events[0]
}

// Remove takes an event out of the queue. It returns false if the event is not
// in the queue.
func (q *heapEventQueue) Remove(evt *event) bool {
	if evt.index < 0 || evt.index >= len(q.events) || q.events[evt.index] != evt {
		return false
	}

	heap.Remove(&q.events, evt.index)

	return true
}

// Len returns the number of events in the queue.
func (q *heapEventQueue) Len() int {
	return len(q.events)
}

// Clear discards all the events.
func (q *heapEventQueue) Clear() {
	for _, evt := range q.events {
		evt.index = -1
	}

	q.events = q.events[:0]
}

type eventHeap []*event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return h[i].before(h[j])
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	evt := x.(*event)
	evt.index = len(*h)
	*h = append(*h, evt)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	evt.index = -1
	*h = old[0 : n-1]

	return evt
}

// insertionQueue is an eventQueue based on insertion sort. It is slower than
// the heap for large queues.
type insertionQueue struct {
	l     *list.List
	elems map[*event]*list.Element
}

func newInsertionQueue() *insertionQueue {
	return &insertionQueue{
		l:     list.New(),
		elems: make(map[*event]*list.Element),
	}
}

// Push adds an event to the event queue. Events with equal time stay in
// insertion order.
func (q *insertionQueue) Push(evt *event) {
	var ele *list.Element

	for ele = q.l.Back(); ele != nil; ele = ele.Prev() {
		if !evt.before(ele.Value.(*event)) {
			break
		}
	}

	if ele != nil {
		q.elems[evt] = q.l.InsertAfter(evt, ele)
	} else {
		q.elems[evt] = q.l.PushFront(evt)
	}

	evt.index = 0
}

// Pop returns the event with the smallest time, and removes it from the queue.
func (q *insertionQueue) Pop() *event {
	front := q.l.Front()
	if front == nil {
		return nil
	}

	evt := q.l.Remove(front).(*event)
	delete(q.elems, evt)
	evt.index = -1

	return evt
}

// Peek returns the event at the front of the queue without removing it from
// the queue.
func (q *insertionQueue) Peek() *event {
	front := q.l.Front()
	if front == nil {
		return nil
	}

	return front.Value.(*event)
}

// Remove takes an event out of the queue.
func (q *insertionQueue) Remove(evt *event) bool {
	ele, found := q.elems[evt]
	if !found {
		return false
	}

	q.l.Remove(ele)
	delete(q.elems, evt)
	evt.index = -1

	return true
}

// Len return the number of events in the queue.
func (q *insertionQueue) Len() int {
	return q.l.Len()
}

// Clear discards all the events.
func (q *insertionQueue) Clear() {
	for evt := range q.elems {
		evt.index = -1
	}

	q.l.Init()
	q.elems = make(map[*event]*list.Element)
}
