package tracing

// MemoryTracer keeps every record in memory.
type MemoryTracer struct {
	records []Record
}

// NewMemoryTracer creates an empty MemoryTracer.
func NewMemoryTracer() *MemoryTracer {
	return &MemoryTracer{}
}

// Trace appends the record.
func (t *MemoryTracer) Trace(rec Record) {
	t.records = append(t.records, rec)
}

// Records returns the records in the order they were traced.
func (t *MemoryTracer) Records() []Record {
	return t.records
}

// Reset forgets all records.
func (t *MemoryTracer) Reset() {
	t.records = nil
}
