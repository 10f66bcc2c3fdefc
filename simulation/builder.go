package simulation

import (
	"errors"
	"math/rand"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/logging"
	"github.com/sarchlab/netsim/monitoring"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
	"github.com/sarchlab/netsim/tracing"
)

// EngineComponent is the logger name of the engine. Setting it to debug logs
// every event.
const EngineComponent = "Engine"

// TraceOptions selects the trace outputs of a simulation.
type TraceOptions struct {
	// CSV writes a packet trace into <prefix>.csv.
	CSV bool

	// Pcap writes one <prefix>-<node>-<device>.pcap file per device.
	Pcap bool

	// DB writes the packet trace and the run summary into
	// <prefix>.sqlite3.
	DB bool
}

// Enabled tells if any trace output is selected.
func (o TraceOptions) Enabled() bool {
	return o.CSV || o.Pcap || o.DB
}

// Builder can be used to build a simulation.
type Builder struct {
	seed         int64
	logging      *logging.Factory
	monitorOn    bool
	monitorPort  int
	trace        TraceOptions
	outputPrefix string
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		seed: 1,
	}
}

// WithSeed sets the seed of the simulation random source.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithLogging sets the logger factory.
func (b Builder) WithLogging(f *logging.Factory) Builder {
	b.logging = f
	return b
}

// WithMonitoring turns on the monitoring server.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithTracing selects the trace outputs.
func (b Builder) WithTracing(opts TraceOptions) Builder {
	b.trace = opts
	return b
}

// WithOutputPrefix sets the prefix of the output files. The default is
// "netsim_" followed by the run ID.
func (b Builder) WithOutputPrefix(prefix string) Builder {
	b.outputPrefix = prefix
	return b
}

func (b Builder) parametersMustBeValid() error {
	if !b.monitorOn && b.monitorPort != 0 {
		return errors.New(
			"monitor port cannot be set when monitoring is disabled")
	}

	return nil
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	s := &Simulation{
		id:      sim.NewUniqueIDGenerator().Generate(),
		logging: b.logging,
		trace:   b.trace,
	}

	if s.logging == nil {
		s.logging = logging.Nop()
	}

	s.prefix = b.outputPrefix
	if s.prefix == "" {
		s.prefix = "netsim_" + s.id
	}

	s.engine = sim.NewSerialEngine()
	if s.logging.Enabled(EngineComponent, zapcore.DebugLevel) {
		s.engine.AcceptHook(sim.NewEventLogger(s.logging.For(EngineComponent)))
	}

	s.rand = rand.New(rand.NewSource(b.seed))
	s.registry = network.MakeRegistryBuilder().
		WithEngine(s.engine).
		WithLogging(s.logging).
		WithRand(s.rand).
		Build()

	if err := s.buildTracers(); err != nil {
		s.closeOutputs()
		return nil, err
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().
			WithLogger(s.logging.For("Monitor")).
			WithPortNumber(b.monitorPort)
		s.monitor.RegisterEngine(s.engine)
		s.monitor.RegisterRegistry(s.registry)

		if _, err := s.monitor.StartServer(); err != nil {
			s.closeOutputs()
			return nil, err
		}
	}

	s.logging.For("Simulation").Info("simulation built",
		zap.String("id", s.id),
		zap.Int64("seed", b.seed))

	return s, nil
}

func (s *Simulation) buildTracers() error {
	if s.trace.DB {
		recorder, err := datarecording.New(s.prefix)
		if err != nil {
			return err
		}

		s.dataRecorder = recorder

		dbTracer, err := tracing.NewDBTracer(recorder, nil)
		if err != nil {
			return err
		}

		s.tracers = append(s.tracers, dbTracer)
	}

	if s.trace.CSV {
		s.csvWriter = tracing.NewCSVTraceWriter(s.prefix)
		if err := s.csvWriter.Init(); err != nil {
			s.csvWriter = nil
			return err
		}

		s.tracers = append(s.tracers, s.csvWriter)
	}

	if s.trace.Pcap {
		s.pcapTracer = tracing.NewPcapTracer(s.prefix)
		s.tracers = append(s.tracers, s.pcapTracer)
	}

	return nil
}
