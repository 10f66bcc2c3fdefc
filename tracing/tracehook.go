package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

// CollectTrace lets the tracer receive the packet events of a device. Devices
// without a tracer invoke no hooks, so tracing costs nothing unless enabled.
func CollectTrace(
	timeTeller sim.TimeTeller,
	device *network.Device,
	tracer Tracer,
) {
	for _, hook := range device.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"device %s already has tracer %s",
				device.Name(), reflect.TypeOf(tracer)))
		}
	}

	h := &traceHook{
		timeTeller: timeTeller,
		t:          tracer,
		node:       device.Node().ID(),
		index:      deviceIndex(device),
	}
	device.AcceptHook(h)
}

// CollectTraceFromAll attaches the tracer to every device of the registry.
func CollectTraceFromAll(
	timeTeller sim.TimeTeller,
	registry *network.Registry,
	tracer Tracer,
) {
	for _, d := range registry.Devices() {
		CollectTrace(timeTeller, d, tracer)
	}
}

func deviceIndex(device *network.Device) int {
	for i, d := range device.Node().Devices() {
		if d == device {
			return i
		}
	}

	panic("device is not owned by its node")
}

// A traceHook turns device hook invocations into trace records.
type traceHook struct {
	timeTeller sim.TimeTeller
	t          Tracer
	node       network.NodeID
	index      int
}

// Func converts the hook context to a record and forwards it to the tracer.
func (h *traceHook) Func(ctx sim.HookCtx) {
	var kind Kind

	switch ctx.Pos {
	case network.HookPosPacketTx:
		kind = KindTx
	case network.HookPosPacketRx:
		kind = KindRx
	case network.HookPosPacketDrop:
		kind = KindDrop
	default:
		return
	}

	device := ctx.Domain.(*network.Device)
	rec := Record{
		Time:        h.timeTeller.Now(),
		Kind:        kind,
		Node:        h.node,
		Device:      device.ID(),
		DeviceIndex: h.index,
		Packet:      ctx.Item.(network.Packet),
	}

	if reason, ok := ctx.Detail.(string); ok {
		rec.Detail = reason
	}

	h.t.Trace(rec)
}
