package network

import (
	"math/rand"

	"github.com/sarchlab/netsim/ipv4"
	"github.com/sarchlab/netsim/logging"
)

// RegistryBuilder can build registries.
type RegistryBuilder struct {
	engine    Engine
	allocator AddressAllocator
	logging   *logging.Factory
	rand      *rand.Rand
}

// MakeRegistryBuilder creates a RegistryBuilder with default parameters.
func MakeRegistryBuilder() RegistryBuilder {
	return RegistryBuilder{}
}

// WithEngine sets the engine that runs the application events.
func (b RegistryBuilder) WithEngine(e Engine) RegistryBuilder {
	b.engine = e
	return b
}

// WithAllocator sets the address allocator. By default, a fresh
// ipv4.SubnetAllocator is used.
func (b RegistryBuilder) WithAllocator(a AddressAllocator) RegistryBuilder {
	b.allocator = a
	return b
}

// WithLogging sets the factory of the application loggers.
func (b RegistryBuilder) WithLogging(f *logging.Factory) RegistryBuilder {
	b.logging = f
	return b
}

// WithRand sets the random source handed to applications.
func (b RegistryBuilder) WithRand(r *rand.Rand) RegistryBuilder {
	b.rand = r
	return b
}

// Build creates the registry and registers it for teardown with the engine.
func (b RegistryBuilder) Build() *Registry {
	if b.engine == nil {
		panic("registry requires an engine")
	}

	r := &Registry{
		engine:    b.engine,
		allocator: b.allocator,
		logging:   b.logging,
		rand:      b.rand,
	}

	if r.allocator == nil {
		r.allocator = ipv4.NewSubnetAllocator()
	}

	if r.logging == nil {
		r.logging = logging.Nop()
	}

	if r.rand == nil {
		r.rand = rand.New(rand.NewSource(1))
	}

	r.logger = r.logging.For("Registry")

	b.engine.RegisterDestroyHandler(r)

	return r
}
