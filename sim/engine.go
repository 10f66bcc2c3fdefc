package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTime
}

// EventScheduler can be used to schedule and cancel future events.
type EventScheduler interface {
	TimeTeller

	// Schedule registers cb to run delay after the current time. The component
	// names the owner of the event in traces and failure reports.
	Schedule(delay VTime, component string, cb Callback) (EventHandle, error)

	// ScheduleAt registers cb to run at an absolute time.
	ScheduleAt(t VTime, component string, cb Callback) (EventHandle, error)

	// Cancel prevents a pending event from firing. Cancelling an event that
	// already fired or was already cancelled does nothing.
	Cancel(h EventHandle)
}

// A DestroyHandler is notified when the engine is destroyed.
type DestroyHandler interface {
	Destroy(now VTime)
}

// An Engine is a unit that keeps the discrete event simulation run.
type Engine interface {
	Hookable
	EventScheduler

	// Run processes events until the queue is empty or Stop is called.
	Run() error

	// RunUntil processes events with time no later than stop.
	RunUntil(stop VTime) error

	// Stop halts the run after the currently executing callback returns.
	Stop()

	// Destroy discards pending events, tears down registered state and makes
	// every further scheduling call fail.
	Destroy()

	// RegisterDestroyHandler registers state that must be released on
	// Destroy.
	RegisterDestroyHandler(h DestroyHandler)
}
