package network

import (
	"fmt"
	"math/rand"
	"net/netip"

	"github.com/sarchlab/netsim/sim"
	"go.uber.org/zap"
)

// AppID identifies an application within a registry.
type AppID uint32

// An Application is a traffic generator or consumer driven by its start and
// stop events.
type Application interface {
	// Name is used as the component name of the application's events and
	// logger.
	Name() string

	// StartApplication is called by the start event. The context stays valid
	// for the lifetime of the application.
	StartApplication(ctx AppContext) error

	// StopApplication is called by the stop event, after the context has
	// stopped accepting sends and the pending events of the application have
	// been cancelled.
	StopApplication() error

	// OnPacketReceived is called for every packet delivered to a port bound
	// by the application. It is still called after stop for packets already
	// in flight.
	OnPacketReceived(pkt Packet)
}

// An AppContext is what an application sees of the simulation.
type AppContext interface {
	sim.TimeTeller

	// Schedule registers an internal event of the application.
	Schedule(delay sim.VTime, cb sim.Callback) (sim.EventHandle, error)

	// Cancel cancels an internal event.
	Cancel(h sim.EventHandle)

	// Send routes a packet out of the node. The source address is filled in
	// from the outgoing device. A zero source port is replaced by a port
	// bound to the application.
	Send(pkt Packet) (DeliveryOutcome, error)

	// Bind reserves a port for the application. Port 0 picks a free
	// ephemeral port. The bound port is returned.
	Bind(proto Protocol, port uint16) (uint16, error)

	// Address returns the address of the node.
	Address() netip.Addr

	// Logger returns the logger of the application.
	Logger() *zap.Logger

	// Rand returns the random source of the simulation.
	Rand() *rand.Rand

	// Stopped tells if the stop event has fired.
	Stopped() bool
}

// ApplicationConfig describes an application to attach to a node.
type ApplicationConfig struct {
	App   Application
	Start sim.VTime
	Stop  sim.VTime
}

// AppState is the lifecycle state of an application.
type AppState int

// Application states.
const (
	AppPending AppState = iota
	AppRunning
	AppStopped
)

func (s AppState) String() string {
	switch s {
	case AppPending:
		return "Pending"
	case AppRunning:
		return "Running"
	case AppStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("AppState(%d)", int(s))
	}
}

// An AppHandle is the registry's record of an attached application.
type AppHandle struct {
	id    AppID
	app   Application
	node  *Node
	start sim.VTime
	stop  sim.VTime
	state AppState

	startEvt sim.EventHandle
	stopEvt  sim.EventHandle
	ctx      *appContext
	ports    []portKey
}

// ID returns the ID of the application.
func (h *AppHandle) ID() AppID {
	return h.id
}

// App returns the application.
func (h *AppHandle) App() Application {
	return h.app
}

// Node returns the node that hosts the application.
func (h *AppHandle) Node() *Node {
	return h.node
}

// StartTime returns when the application starts.
func (h *AppHandle) StartTime() sim.VTime {
	return h.start
}

// StopTime returns when the application stops.
func (h *AppHandle) StopTime() sim.VTime {
	return h.stop
}

// State returns the lifecycle state of the application.
func (h *AppHandle) State() AppState {
	return h.state
}

func (h *AppHandle) handleStart() error {
	h.state = AppRunning
	h.ctx.logger.Debug("application started",
		zap.Stringer("time", h.ctx.Now()),
		zap.String("node", h.node.Name()))

	return h.app.StartApplication(h.ctx)
}

func (h *AppHandle) handleStop() error {
	h.state = AppStopped
	h.ctx.stop()
	h.ctx.logger.Debug("application stopped",
		zap.Stringer("time", h.ctx.Now()),
		zap.String("node", h.node.Name()))

	return h.app.StopApplication()
}

func (h *AppHandle) receive(pkt Packet) {
	if h.state == AppPending {
		return
	}

	h.app.OnPacketReceived(pkt)
}

type appContext struct {
	handle  *AppHandle
	reg     *Registry
	logger  *zap.Logger
	stopped bool
	pending map[uint64]sim.EventHandle
}

func (c *appContext) Now() sim.VTime {
	return c.reg.engine.Now()
}

func (c *appContext) Schedule(
	delay sim.VTime,
	cb sim.Callback,
) (sim.EventHandle, error) {
	if c.stopped {
		return sim.EventHandle{}, fmt.Errorf("%w: %s",
			ErrApplicationStopped, c.handle.app.Name())
	}

	var id uint64

	h, err := c.reg.engine.Schedule(delay, c.handle.app.Name(),
		func() error {
			delete(c.pending, id)
			return cb()
		})
	if err != nil {
		return sim.EventHandle{}, err
	}

	id = h.ID()
	c.pending[id] = h

	return h, nil
}

func (c *appContext) Cancel(h sim.EventHandle) {
	c.reg.engine.Cancel(h)
	delete(c.pending, h.ID())
}

func (c *appContext) Send(pkt Packet) (DeliveryOutcome, error) {
	if c.stopped {
		return DeliveryOutcome{}, fmt.Errorf("%w: %s",
			ErrApplicationStopped, c.handle.app.Name())
	}

	node := c.handle.node

	dev, err := node.Route(pkt.Dst.Addr())
	if err != nil {
		return DeliveryOutcome{}, err
	}

	srcPort := pkt.Src.Port()
	if srcPort == 0 {
		srcPort, err = c.localPort(pkt.Protocol)
		if err != nil {
			return DeliveryOutcome{}, err
		}
	}

	pkt.Src = netip.AddrPortFrom(dev.addr, srcPort)
	pkt.ID = c.reg.nextPacketID()

	return dev.Send(pkt)
}

func (c *appContext) localPort(proto Protocol) (uint16, error) {
	for _, key := range c.handle.ports {
		if key.proto == proto {
			return key.port, nil
		}
	}

	return c.handle.node.bind(proto, 0, c.handle)
}

func (c *appContext) Bind(proto Protocol, port uint16) (uint16, error) {
	return c.handle.node.bind(proto, port, c.handle)
}

func (c *appContext) Address() netip.Addr {
	return c.handle.node.Address()
}

func (c *appContext) Logger() *zap.Logger {
	return c.logger
}

func (c *appContext) Rand() *rand.Rand {
	return c.reg.rand
}

func (c *appContext) Stopped() bool {
	return c.stopped
}

func (c *appContext) stop() {
	c.stopped = true

	for id, h := range c.pending {
		c.reg.engine.Cancel(h)
		delete(c.pending, id)
	}
}
