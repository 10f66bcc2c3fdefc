// Package simulation wires the engine, the entity registry and the optional
// observability services of one simulation run.
package simulation

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/logging"
	"github.com/sarchlab/netsim/monitoring"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
	"github.com/sarchlab/netsim/tracing"
)

// Tables written into the data recorder when a simulation terminates.
const (
	RunTable    = "run_summary"
	DeviceTable = "device_summary"
)

// A Simulation owns every piece of state of one run. Nothing is shared
// between simulations.
type Simulation struct {
	id      string
	prefix  string
	engine  *sim.SerialEngine
	rand    *rand.Rand
	logging *logging.Factory

	registry *network.Registry
	monitor  *monitoring.Monitor

	dataRecorder datarecording.DataRecorder
	trace        TraceOptions
	tracers      []tracing.Tracer
	csvWriter    *tracing.CSVTraceWriter
	pcapTracer   *tracing.PcapTracer
	tracingOn    bool

	terminated bool
}

// ID returns the unique ID of the run.
func (s *Simulation) ID() string {
	return s.id
}

// OutputPrefix returns the prefix of the output files.
func (s *Simulation) OutputPrefix() string {
	return s.prefix
}

// Engine returns the engine used in the simulation.
func (s *Simulation) Engine() *sim.SerialEngine {
	return s.engine
}

// Registry returns the entity registry of the simulation.
func (s *Simulation) Registry() *network.Registry {
	return s.registry
}

// Rand returns the random source of the simulation.
func (s *Simulation) Rand() *rand.Rand {
	return s.rand
}

// Logging returns the logger factory of the simulation.
func (s *Simulation) Logging() *logging.Factory {
	return s.logging
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// DataRecorder returns the data recorder, or nil when DB tracing is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// AddTracer adds a tracer that receives the packet events of every device.
func (s *Simulation) AddTracer(t tracing.Tracer) {
	s.tracers = append(s.tracers, t)

	if s.tracingOn {
		tracing.CollectTraceFromAll(s.engine, s.registry, t)
	}
}

// StartTracing attaches the tracers to all the devices created so far. It is
// called once the topology is built. Without tracers no hook is attached.
func (s *Simulation) StartTracing() {
	if s.tracingOn {
		return
	}

	s.tracingOn = true

	for _, t := range s.tracers {
		tracing.CollectTraceFromAll(s.engine, s.registry, t)
	}
}

// RunUntil runs the simulation until the stop time.
func (s *Simulation) RunUntil(stop sim.VTime) error {
	if s.monitor != nil {
		s.monitor.TrackVirtualTime(stop)
	}

	logger := s.logging.For("Simulation")
	logger.Info("run started", zap.Stringer("stop", stop))

	err := s.engine.RunUntil(stop)

	if s.monitor != nil {
		s.monitor.Publish()
	}

	logger.Info("run finished",
		zap.Stringer("now", s.engine.Now()),
		zap.Uint64("events", s.engine.ExecutedEvents()),
		zap.Error(err))

	return err
}

// Run runs the simulation until no event is left or Stop is called.
func (s *Simulation) Run() error {
	err := s.engine.Run()

	if s.monitor != nil {
		s.monitor.Publish()
	}

	return err
}

// Summary describes the state of a run.
type Summary struct {
	ID             string          `yaml:"id"`
	VirtualTime    float64         `yaml:"virtual_time"`
	ExecutedEvents uint64          `yaml:"executed_events"`
	Devices        []DeviceSummary `yaml:"devices"`
}

// DeviceSummary holds the counters of one device.
type DeviceSummary struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	TxPackets      uint64 `yaml:"tx_packets"`
	TxBytes        uint64 `yaml:"tx_bytes"`
	RxPackets      uint64 `yaml:"rx_packets"`
	RxPayloadBytes uint64 `yaml:"rx_payload_bytes"`
	DroppedPackets uint64 `yaml:"dropped_packets"`
}

// RunRecord is the row layout of the run table.
type RunRecord struct {
	ID             string
	VirtualTime    float64
	ExecutedEvents uint64
}

// Summary collects the current state of the run. After Terminate the device
// list is empty.
func (s *Simulation) Summary() Summary {
	summary := Summary{
		ID:             s.id,
		VirtualTime:    s.engine.Now().InSec(),
		ExecutedEvents: s.engine.ExecutedEvents(),
	}

	if s.registry.Destroyed() {
		return summary
	}

	for _, d := range s.registry.Devices() {
		stats := d.Stats()
		ds := DeviceSummary{
			Name:           d.Name(),
			TxPackets:      stats.TxPackets,
			TxBytes:        stats.TxBytes,
			RxPackets:      stats.RxPackets,
			RxPayloadBytes: stats.RxPayloadBytes,
			DroppedPackets: stats.DroppedPackets,
		}

		if d.Address().IsValid() {
			ds.Address = d.Address().String()
		}

		summary.Devices = append(summary.Devices, ds)
	}

	return summary
}

// WriteSummary writes the summary of the run as YAML.
func (s *Simulation) WriteSummary(w io.Writer) error {
	return writeYAML(w, s.Summary())
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}

func (s *Simulation) recordSummary() error {
	summary := s.Summary()

	if err := s.dataRecorder.CreateTable(RunTable, RunRecord{}); err != nil {
		return err
	}

	if err := s.dataRecorder.CreateTable(DeviceTable, DeviceSummary{}); err != nil {
		return err
	}

	s.dataRecorder.InsertData(RunTable, RunRecord{
		ID:             summary.ID,
		VirtualTime:    summary.VirtualTime,
		ExecutedEvents: summary.ExecutedEvents,
	})

	for _, d := range summary.Devices {
		s.dataRecorder.InsertData(DeviceTable, d)
	}

	return nil
}

// Terminate records the run summary, flushes the trace outputs, stops the
// monitor and destroys the engine. Calling it twice does nothing.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	var errs []error

	if s.dataRecorder != nil {
		errs = append(errs, s.recordSummary())
	}

	errs = append(errs, s.closeOutputs())

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		errs = append(errs, s.monitor.Shutdown(ctx))
		cancel()
	}

	s.engine.Destroy()

	_ = s.logging.Sync()

	return errors.Join(errs...)
}

func (s *Simulation) closeOutputs() error {
	var errs []error

	if s.csvWriter != nil {
		errs = append(errs, s.csvWriter.Close())
	}

	if s.pcapTracer != nil {
		errs = append(errs, s.pcapTracer.Close())
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	return errors.Join(errs...)
}
