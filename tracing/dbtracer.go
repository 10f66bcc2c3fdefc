package tracing

import (
	"github.com/sarchlab/netsim/datarecording"
)

// TraceTable is the name of the table DBTracer writes to.
const TraceTable = "trace"

// TraceEntry is the row layout of the trace table.
type TraceEntry struct {
	Time     int64
	TimeSec  float64
	Kind     string
	Node     uint32
	Device   uint32
	PacketID uint64
	Protocol string
	Src      string
	Dst      string
	Flags    string
	Seq      uint32
	Size     int
	Detail   string
}

// DBTracer is a tracer that stores records into a data recorder.
type DBTracer struct {
	backend datarecording.DataRecorder
	filter  Filter
}

// NewDBTracer creates the trace table in the backend and returns a tracer
// writing into it. A nil filter accepts every record.
func NewDBTracer(
	backend datarecording.DataRecorder,
	filter Filter,
) (*DBTracer, error) {
	if err := backend.CreateTable(TraceTable, TraceEntry{}); err != nil {
		return nil, err
	}

	return &DBTracer{backend: backend, filter: filter}, nil
}

// Trace inserts a record into the trace table.
func (t *DBTracer) Trace(rec Record) {
	if t.filter != nil && !t.filter(rec) {
		return
	}

	t.backend.InsertData(TraceTable, TraceEntry{
		Time:     int64(rec.Time),
		TimeSec:  rec.Time.InSec(),
		Kind:     string(rec.Kind),
		Node:     uint32(rec.Node),
		Device:   uint32(rec.DeviceIndex),
		PacketID: rec.Packet.ID,
		Protocol: rec.Packet.Protocol.String(),
		Src:      rec.Packet.Src.String(),
		Dst:      rec.Packet.Dst.String(),
		Flags:    rec.Packet.Flags.String(),
		Seq:      rec.Packet.Seq,
		Size:     rec.Packet.WireSize(),
		Detail:   rec.Detail,
	})
}
