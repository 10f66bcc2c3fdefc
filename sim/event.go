package sim

// Callback is the action an event performs when it fires. A returned error is
// fatal to the run.
type Callback func() error

// event is the queue's record of something going to happen in the future.
type event struct {
	time      VTime
	seq       uint64
	component string
	callback  Callback

	// index is the position in the owning queue, or -1 once the event has left
	// the queue (fired, cancelled or discarded).
	index     int
	cancelled bool
}

func (e *event) before(o *event) bool {
	if e.time != o.time {
		return e.time < o.time
	}

	return e.seq < o.seq
}

// EventHandle identifies a scheduled event so that it can be cancelled. The
// zero value refers to no event.
type EventHandle struct {
	evt *event
}

// Pending returns true if the event is still waiting to fire.
func (h EventHandle) Pending() bool {
	return h.evt != nil && h.evt.index >= 0 && !h.evt.cancelled
}

// Time returns the time at which the event is (or was) scheduled to fire.
func (h EventHandle) Time() VTime {
	if h.evt == nil {
		return 0
	}

	return h.evt.time
}

// ID returns the insertion sequence number of the event. IDs are unique within
// one engine.
func (h EventHandle) ID() uint64 {
	if h.evt == nil {
		return 0
	}

	return h.evt.seq
}

// EventInfo describes an event to hooks.
type EventInfo struct {
	Time      VTime
	Seq       uint64
	Component string
}

func (e *event) info() EventInfo {
	return EventInfo{
		Time:      e.time,
		Seq:       e.seq,
		Component: e.component,
	}
}
