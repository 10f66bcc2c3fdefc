package sim

import (
	"fmt"
)

// A SerialEngine is an Engine that always run events one after another.
//
// The engine is single-threaded: all of its methods must be called from the
// goroutine that drives Run, including from inside callbacks.
type SerialEngine struct {
	HookableBase

	now     VTime
	nextSeq uint64
	queue   eventQueue

	running   bool
	stopping  bool
	destroyed bool
	failure   error

	executed        uint64
	destroyHandlers []DestroyHandler
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return newSerialEngineWithQueue(newHeapEventQueue())
}

func newSerialEngineWithQueue(q eventQueue) *SerialEngine {
	return &SerialEngine{queue: q}
}

// Now returns the current virtual time. Specifically, the time of the event
// being executed or most recently executed.
func (e *SerialEngine) Now() VTime {
	return e.now
}

// Schedule registers an event to happen delay after the current time.
func (e *SerialEngine) Schedule(
	delay VTime,
	component string,
	cb Callback,
) (EventHandle, error) {
	if e.destroyed {
		return EventHandle{}, ErrSimulatorDestroyed
	}

	t, ok := addDelay(e.now, delay)
	if !ok {
		return EventHandle{}, fmt.Errorf(
			"%w: delay %d from %s", ErrInvalidSchedule, int64(delay), e.now)
	}

	return e.push(t, component, cb), nil
}

// ScheduleAt registers an event to happen at time t.
func (e *SerialEngine) ScheduleAt(
	t VTime,
	component string,
	cb Callback,
) (EventHandle, error) {
	if e.destroyed {
		return EventHandle{}, ErrSimulatorDestroyed
	}

	if t < e.now {
		return EventHandle{}, fmt.Errorf(
			"%w: time %s is earlier than now %s", ErrInvalidSchedule, t, e.now)
	}

	return e.push(t, component, cb), nil
}

func (e *SerialEngine) push(t VTime, component string, cb Callback) EventHandle {
	if cb == nil {
		panic("callback must not be nil")
	}

	evt := &event{
		time:      t,
		seq:       e.nextSeq,
		component: component,
		callback:  cb,
	}
	e.nextSeq++

	e.queue.Push(evt)

	return EventHandle{evt: evt}
}

// Cancel removes a pending event from the queue. It is a no-op for events that
// already fired or were already cancelled.
func (e *SerialEngine) Cancel(h EventHandle) {
	if h.evt == nil || h.evt.cancelled || h.evt.index < 0 {
		return
	}

	h.evt.cancelled = true
	e.queue.Remove(h.evt)
}

// PendingEvents returns the number of events waiting in the queue.
func (e *SerialEngine) PendingEvents() int {
	return e.queue.Len()
}

// ExecutedEvents returns the number of callbacks executed so far.
func (e *SerialEngine) ExecutedEvents() uint64 {
	return e.executed
}

// Run processes all the events until the queue is empty or Stop is called.
func (e *SerialEngine) Run() error {
	return e.run(MaxVTime, false)
}

// RunUntil processes the events scheduled no later than stop. Events after
// stop stay in the queue. Unless the run is stopped early, the clock is
// advanced to stop.
func (e *SerialEngine) RunUntil(stop VTime) error {
	if stop < e.now {
		return fmt.Errorf(
			"%w: stop time %s is earlier than now %s",
			ErrInvalidSchedule, stop, e.now)
	}

	return e.run(stop, true)
}

func (e *SerialEngine) run(stop VTime, advanceToStop bool) error {
	if err := e.mustBeRunnable(); err != nil {
		return err
	}

	e.running = true
	e.stopping = false
	defer func() { e.running = false }()

	for !e.stopping {
		evt := e.queue.Peek()
		if evt == nil || evt.time > stop {
			break
		}

		e.queue.Pop()

		if evt.time < e.now {
			panic(fmt.Sprintf(
				"cannot run event in the past, evt @ %s, now %s",
				evt.time, e.now))
		}

		e.now = evt.time

		if err := e.execute(evt); err != nil {
			e.failure = err
			return err
		}
	}

	if advanceToStop && !e.stopping && e.now < stop {
		e.now = stop
	}

	return nil
}

func (e *SerialEngine) mustBeRunnable() error {
	if e.destroyed {
		return ErrSimulatorDestroyed
	}

	if e.failure != nil {
		return e.failure
	}

	if e.running {
		return ErrEngineRunning
	}

	return nil
}

func (e *SerialEngine) execute(evt *event) (err error) {
	var hookCtx HookCtx

	if e.NumHooks() > 0 {
		hookCtx = HookCtx{
			Domain: e,
			Pos:    HookPosBeforeEvent,
			Item:   evt.info(),
		}
		e.InvokeHook(hookCtx)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{
				Component: evt.component,
				Time:      evt.time,
				Err:       &PanicError{Value: r},
			}
		}
	}()

	e.executed++

	if cbErr := evt.callback(); cbErr != nil {
		return &CallbackError{
			Component: evt.component,
			Time:      evt.time,
			Err:       cbErr,
		}
	}

	if hookCtx.Pos != nil {
		hookCtx.Pos = HookPosAfterEvent
		e.InvokeHook(hookCtx)
	}

	return nil
}

// Stop makes the current run return once the executing callback returns. It
// does not interrupt the callback.
func (e *SerialEngine) Stop() {
	e.stopping = true
}

// RegisterDestroyHandler registers a handler to be called on Destroy.
func (e *SerialEngine) RegisterDestroyHandler(h DestroyHandler) {
	e.destroyHandlers = append(e.destroyHandlers, h)
}

// Destroy discards all pending events and releases registered state. Later
// scheduling calls fail with ErrSimulatorDestroyed. Destroying twice is
// harmless.
func (e *SerialEngine) Destroy() {
	if e.destroyed {
		return
	}

	e.destroyed = true
	e.queue.Clear()

	for _, h := range e.destroyHandlers {
		h.Destroy(e.now)
	}

	e.destroyHandlers = nil
}

// Destroyed returns true once Destroy has been called.
func (e *SerialEngine) Destroyed() bool {
	return e.destroyed
}
