package sim

import (
	"go.uber.org/zap"
)

// EventLogger is a hook that logs every event before it is executed.
type EventLogger struct {
	logger *zap.Logger
}

// NewEventLogger returns a new EventLogger which writes into the logger at
// debug level.
func NewEventLogger(logger *zap.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	info, ok := ctx.Item.(EventInfo)
	if !ok {
		return
	}

	if ce := h.logger.Check(zap.DebugLevel, "event"); ce != nil {
		ce.Write(
			zap.Stringer("time", info.Time),
			zap.Uint64("seq", info.Seq),
			zap.String("component", info.Component),
		)
	}
}
