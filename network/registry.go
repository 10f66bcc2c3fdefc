// Package network defines the simulated hosts, their interfaces and the
// contracts of the channels and applications plugged into them.
package network

import (
	"fmt"
	"math/rand"
	"net/netip"

	"github.com/sarchlab/netsim/ipv4"
	"github.com/sarchlab/netsim/logging"
	"github.com/sarchlab/netsim/sim"
	"go.uber.org/zap"
)

// Engine is the part of the simulation engine a registry relies on.
type Engine interface {
	sim.EventScheduler
	RegisterDestroyHandler(h sim.DestroyHandler)
}

// An AddressAllocator hands out device addresses.
type AddressAllocator interface {
	AssignNext(base, mask netip.Addr) (netip.Addr, error)
}

// A Registry creates nodes and attaches devices and applications to them.
// Identifiers are sequential and never reused within a registry.
type Registry struct {
	engine    Engine
	allocator AddressAllocator
	logging   *logging.Factory
	logger    *zap.Logger
	rand      *rand.Rand

	nodes   []*Node
	devices []*Device
	apps    []*AppHandle

	nextPacket uint64
	destroyed  bool
}

// CreateNodes creates count nodes.
func (r *Registry) CreateNodes(count int) ([]*Node, error) {
	if r.destroyed {
		return nil, sim.ErrSimulatorDestroyed
	}

	if count < 0 {
		panic("node count must not be negative")
	}

	nodes := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		n := newNode(NodeID(len(r.nodes)), r)
		r.nodes = append(r.nodes, n)
		nodes = append(nodes, n)
	}

	return nodes, nil
}

// AttachDevice creates a device on the node. The device is attached to the
// channel of the config, if any, and gets the next address of the configured
// subnet. If any step fails, the node, the channel and the subnet are left
// unchanged.
func (r *Registry) AttachDevice(node *Node, cfg DeviceConfig) (*Device, error) {
	if err := r.mustOwn(node); err != nil {
		return nil, err
	}

	d := &Device{
		id:       DeviceID(len(r.devices)),
		node:     node,
		dataRate: cfg.DataRate,
	}

	// The channel may refuse the device, so it goes first. An address is
	// only taken once nothing else can fail.
	if cfg.Channel != nil {
		if err := cfg.Channel.Attach(d); err != nil {
			return nil, fmt.Errorf("attaching %s to %s: %w",
				d.Name(), cfg.Channel.Name(), err)
		}
	}

	if cfg.Base.IsValid() {
		if err := r.assignAddress(d, cfg.Base, cfg.Mask); err != nil {
			if cfg.Channel != nil {
				cfg.Channel.Detach(d)
			}

			return nil, err
		}
	}

	d.channel = cfg.Channel

	node.devices = append(node.devices, d)
	r.devices = append(r.devices, d)

	r.logger.Debug("device attached",
		zap.String("device", d.Name()),
		zap.Stringer("address", d.addr))

	return d, nil
}

func (r *Registry) assignAddress(d *Device, base, mask netip.Addr) error {
	if r.allocator == nil {
		panic("registry has no address allocator")
	}

	addr, err := r.allocator.AssignNext(base, mask)
	if err != nil {
		return fmt.Errorf("assigning address to %s: %w", d.Name(), err)
	}

	bits, err := ipv4.MaskBits(mask)
	if err != nil {
		return err
	}

	d.addr = addr
	d.prefix = netip.PrefixFrom(addr, bits).Masked()

	return nil
}

// Connect attaches a device that has no channel to a channel.
func (r *Registry) Connect(d *Device, ch Channel) error {
	if err := r.mustOwn(d.node); err != nil {
		return err
	}

	if d.channel != nil {
		return fmt.Errorf("%w: %s is on %s",
			ErrChannelAttached, d.Name(), d.channel.Name())
	}

	if err := ch.Attach(d); err != nil {
		return err
	}

	d.channel = ch

	return nil
}

// Disconnect detaches a device from its channel.
func (r *Registry) Disconnect(d *Device) {
	if d.channel == nil {
		return
	}

	d.channel.Detach(d)
	d.channel = nil
}

// AttachApplication binds an application to a node and registers its start
// and stop events.
func (r *Registry) AttachApplication(
	node *Node,
	cfg ApplicationConfig,
) (*AppHandle, error) {
	if err := r.mustOwn(node); err != nil {
		return nil, err
	}

	if cfg.App == nil {
		return nil, ErrNilApplication
	}

	if cfg.Start < 0 || cfg.Stop <= cfg.Start {
		return nil, fmt.Errorf("%w: %s start %s stop %s",
			ErrInvalidAppWindow, cfg.App.Name(), cfg.Start, cfg.Stop)
	}

	h := &AppHandle{
		id:    AppID(len(r.apps)),
		app:   cfg.App,
		node:  node,
		start: cfg.Start,
		stop:  cfg.Stop,
	}
	h.ctx = &appContext{
		handle:  h,
		reg:     r,
		logger:  r.logging.For(cfg.App.Name()),
		pending: make(map[uint64]sim.EventHandle),
	}

	var err error

	h.startEvt, err = r.engine.ScheduleAt(cfg.Start, cfg.App.Name(), h.handleStart)
	if err != nil {
		return nil, err
	}

	h.stopEvt, err = r.engine.ScheduleAt(cfg.Stop, cfg.App.Name(), h.handleStop)
	if err != nil {
		r.engine.Cancel(h.startEvt)
		return nil, err
	}

	node.apps = append(node.apps, h)
	r.apps = append(r.apps, h)

	return h, nil
}

func (r *Registry) mustOwn(node *Node) error {
	if r.destroyed {
		return sim.ErrSimulatorDestroyed
	}

	if node == nil || node.registry != r {
		return ErrForeignNode
	}

	return nil
}

// Node returns the node with the given ID.
func (r *Registry) Node(id NodeID) (*Node, bool) {
	if int(id) >= len(r.nodes) {
		return nil, false
	}

	return r.nodes[id], true
}

// Nodes returns all the nodes in creation order.
func (r *Registry) Nodes() []*Node {
	return append([]*Node(nil), r.nodes...)
}

// Device returns the device with the given ID.
func (r *Registry) Device(id DeviceID) (*Device, bool) {
	if int(id) >= len(r.devices) {
		return nil, false
	}

	return r.devices[id], true
}

// Devices returns all the devices in creation order.
func (r *Registry) Devices() []*Device {
	return append([]*Device(nil), r.devices...)
}

// Applications returns all the applications in attach order.
func (r *Registry) Applications() []*AppHandle {
	return append([]*AppHandle(nil), r.apps...)
}

// Destroyed tells if the registry has been torn down.
func (r *Registry) Destroyed() bool {
	return r.destroyed
}

// Destroy releases all the nodes, devices and applications. It is called by
// the engine on teardown.
func (r *Registry) Destroy(now sim.VTime) {
	if r.destroyed {
		return
	}

	for _, d := range r.devices {
		r.Disconnect(d)
	}

	for _, h := range r.apps {
		if h.state == AppRunning {
			h.ctx.stop()
		}
	}

	r.logger.Debug("registry destroyed",
		zap.Stringer("time", now),
		zap.Int("nodes", len(r.nodes)),
		zap.Int("devices", len(r.devices)),
		zap.Int("apps", len(r.apps)))

	r.destroyed = true
	r.nodes = nil
	r.devices = nil
	r.apps = nil
}

func (r *Registry) nextPacketID() uint64 {
	r.nextPacket++
	return r.nextPacket
}
