package tracing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sarchlab/netsim/sim"
)

// ErrTraceFileExists is returned when a trace file would overwrite an
// existing file.
var ErrTraceFileExists = errors.New("trace file already exists")

var csvHeader = []string{
	"Time", "Kind", "Node", "Device", "PacketID", "Protocol",
	"Src", "Dst", "Flags", "Seq", "Size", "Detail",
}

// CSVTraceWriter is a tracer that stores the records into a CSV file.
type CSVTraceWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer

	records    []Record
	bufferSize int
}

// NewCSVTraceWriter creates a new CSVTraceWriter. The file is named
// path + ".csv"; an empty path selects a unique name.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the trace file. The file is flushed and closed by atexit.Exit
// if it is still open then.
func (t *CSVTraceWriter) Init() error {
	if t.path == "" {
		t.path = "netsim_trace_" + sim.NewUniqueIDGenerator().Generate()
	}

	filename := t.Filename()

	_, err := os.Stat(filename)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrTraceFileExists, filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	t.file = file
	t.writer = csv.NewWriter(file)

	if err := t.writer.Write(csvHeader); err != nil {
		return err
	}

	closeAtExit(t)

	return nil
}

// Filename returns the name of the trace file.
func (t *CSVTraceWriter) Filename() string {
	return t.path + ".csv"
}

// Trace buffers a record.
func (t *CSVTraceWriter) Trace(rec Record) {
	t.records = append(t.records, rec)
	if len(t.records) >= t.bufferSize {
		if err := t.Flush(); err != nil {
			panic(err)
		}
	}
}

// Flush writes the buffered records to the CSV file.
func (t *CSVTraceWriter) Flush() error {
	if t.writer == nil {
		return nil
	}

	for _, rec := range t.records {
		err := t.writer.Write([]string{
			strconv.FormatInt(int64(rec.Time), 10),
			string(rec.Kind),
			strconv.FormatUint(uint64(rec.Node), 10),
			strconv.Itoa(rec.DeviceIndex),
			strconv.FormatUint(rec.Packet.ID, 10),
			rec.Packet.Protocol.String(),
			rec.Packet.Src.String(),
			rec.Packet.Dst.String(),
			rec.Packet.Flags.String(),
			strconv.FormatUint(uint64(rec.Packet.Seq), 10),
			strconv.Itoa(rec.Packet.WireSize()),
			rec.Detail,
		})
		if err != nil {
			return err
		}
	}

	t.records = nil
	t.writer.Flush()

	return t.writer.Error()
}

// Close flushes the records and closes the file. Closing twice does nothing.
func (t *CSVTraceWriter) Close() error {
	if t.file == nil {
		return nil
	}

	forgetAtExit(t)

	err := t.Flush()

	closeErr := t.file.Close()
	t.file = nil
	t.writer = nil

	if err != nil {
		return err
	}

	return closeErr
}
