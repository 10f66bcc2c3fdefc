package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSchedule is returned when an event is scheduled with a negative
	// delay or at an absolute time earlier than the current time.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrSimulatorDestroyed is returned by any operation issued after Destroy.
	ErrSimulatorDestroyed = errors.New("simulator destroyed")

	// ErrFatalCallback marks a failure raised inside an event callback. Such a
	// failure aborts the run.
	ErrFatalCallback = errors.New("fatal callback failure")

	// ErrEngineRunning is returned when Run is invoked while the engine is
	// already running, for example from inside a callback.
	ErrEngineRunning = errors.New("engine is already running")
)

// CallbackError reports which component failed and when.
type CallbackError struct {
	Component string
	Time      VTime
	Err       error
}

func (e *CallbackError) Error() string {
	component := e.Component
	if component == "" {
		component = "<anonymous>"
	}

	return fmt.Sprintf("%s: component %s at %s: %v",
		ErrFatalCallback, component, e.Time, e.Err)
}

// Unwrap allows errors.Is to see both ErrFatalCallback and the cause.
func (e *CallbackError) Unwrap() []error {
	return []error{ErrFatalCallback, e.Err}
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
