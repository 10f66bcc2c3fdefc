package tracing

import (
	"sync"
)

// CountTracer counts the records accepted by a filter together with the
// payload bytes they carry.
type CountTracer struct {
	filter Filter

	lock         sync.Mutex
	count        uint64
	payloadBytes uint64
	wireBytes    uint64
}

// NewCountTracer creates a new CountTracer. A nil filter accepts every
// record.
func NewCountTracer(filter Filter) *CountTracer {
	return &CountTracer{filter: filter}
}

// Trace counts the record if the filter accepts it.
func (t *CountTracer) Trace(rec Record) {
	if t.filter != nil && !t.filter(rec) {
		return
	}

	t.lock.Lock()
	t.count++
	t.payloadBytes += uint64(rec.Packet.PayloadSize())
	t.wireBytes += uint64(rec.Packet.WireSize())
	t.lock.Unlock()
}

// Count returns the number of accepted records.
func (t *CountTracer) Count() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// PayloadBytes returns the payload bytes of the accepted records.
func (t *CountTracer) PayloadBytes() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.payloadBytes
}

// WireBytes returns the on-link size of the accepted records.
func (t *CountTracer) WireBytes() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.wireBytes
}
