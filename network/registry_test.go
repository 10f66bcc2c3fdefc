package network

import (
	"errors"
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/netsim/ipv4"
	"github.com/sarchlab/netsim/sim"
)

var (
	testBase = netip.MustParseAddr("10.1.1.0")
	testMask = netip.MustParseAddr("255.255.255.0")
)

var _ = Describe("Registry", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *sim.SerialEngine
		registry *Registry
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		registry = MakeRegistryBuilder().
			WithEngine(engine).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should create nodes with sequential IDs", func() {
		first, err := registry.CreateNodes(2)
		Expect(err).NotTo(HaveOccurred())
		second, err := registry.CreateNodes(1)
		Expect(err).NotTo(HaveOccurred())

		Expect(first[0].ID()).To(Equal(NodeID(0)))
		Expect(first[1].ID()).To(Equal(NodeID(1)))
		Expect(second[0].ID()).To(Equal(NodeID(2)))
		Expect(registry.Nodes()).To(HaveLen(3))

		n, found := registry.Node(2)
		Expect(found).To(BeTrue())
		Expect(n).To(BeIdenticalTo(second[0]))

		_, found = registry.Node(3)
		Expect(found).To(BeFalse())
	})

	Context("when attaching devices", func() {
		var nodes []*Node

		BeforeEach(func() {
			var err error
			nodes, err = registry.CreateNodes(3)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should assign addresses in attach order", func() {
			for i, n := range nodes {
				d, err := registry.AttachDevice(n, DeviceConfig{
					Base: testBase,
					Mask: testMask,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(d.ID()).To(Equal(DeviceID(i)))
				Expect(d.Node()).To(BeIdenticalTo(n))
				Expect(d.Prefix()).To(Equal(netip.MustParsePrefix("10.1.1.0/24")))
			}

			Expect(nodes[0].Address()).To(Equal(netip.MustParseAddr("10.1.1.1")))
			Expect(nodes[2].Address()).To(Equal(netip.MustParseAddr("10.1.1.3")))
		})

		It("should attach the device to its channel", func() {
			ch := NewMockChannel(mockCtrl)
			ch.EXPECT().Attach(gomock.Any()).Return(nil)

			d, err := registry.AttachDevice(nodes[0], DeviceConfig{Channel: ch})

			Expect(err).NotTo(HaveOccurred())
			Expect(d.Channel()).To(BeIdenticalTo(ch))
		})

		It("should leave the node unchanged when the channel refuses", func() {
			ch := NewMockChannel(mockCtrl)
			ch.EXPECT().Name().Return("ch").AnyTimes()
			ch.EXPECT().Attach(gomock.Any()).Return(errors.New("full"))

			_, err := registry.AttachDevice(nodes[0], DeviceConfig{Channel: ch})

			Expect(err).To(MatchError(ContainSubstring("full")))
			Expect(nodes[0].Devices()).To(BeEmpty())
			Expect(registry.Devices()).To(BeEmpty())
		})

		It("should not use up an address when the channel refuses", func() {
			ch := NewMockChannel(mockCtrl)
			ch.EXPECT().Name().Return("ch").AnyTimes()
			ch.EXPECT().Attach(gomock.Any()).Return(errors.New("full"))

			_, err := registry.AttachDevice(nodes[0], DeviceConfig{
				Channel: ch,
				Base:    testBase,
				Mask:    testMask,
			})
			Expect(err).To(HaveOccurred())

			d, err := registry.AttachDevice(nodes[1], DeviceConfig{
				Base: testBase,
				Mask: testMask,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(d.Address()).To(Equal(netip.MustParseAddr("10.1.1.1")))
		})

		It("should detach the device when the subnet is exhausted", func() {
			allocator := NewMockAddressAllocator(mockCtrl)
			registry = MakeRegistryBuilder().
				WithEngine(engine).
				WithAllocator(allocator).
				Build()
			nodes, _ = registry.CreateNodes(1)

			ch := NewMockChannel(mockCtrl)
			gomock.InOrder(
				ch.EXPECT().Attach(gomock.Any()).Return(nil),
				allocator.EXPECT().
					AssignNext(testBase, testMask).
					Return(netip.Addr{}, ipv4.ErrAddressSpaceExhausted),
				ch.EXPECT().Detach(gomock.Any()),
			)

			_, err := registry.AttachDevice(nodes[0], DeviceConfig{
				Channel: ch,
				Base:    testBase,
				Mask:    testMask,
			})

			Expect(err).To(MatchError(ipv4.ErrAddressSpaceExhausted))
			Expect(nodes[0].Devices()).To(BeEmpty())
		})

		It("should fail when the subnet is exhausted", func() {
			mask := netip.MustParseAddr("255.255.255.252")

			for i := 0; i < 2; i++ {
				_, err := registry.AttachDevice(nodes[i], DeviceConfig{
					Base: testBase,
					Mask: mask,
				})
				Expect(err).NotTo(HaveOccurred())
			}

			_, err := registry.AttachDevice(nodes[2], DeviceConfig{
				Base: testBase,
				Mask: mask,
			})

			Expect(err).To(MatchError(ipv4.ErrAddressSpaceExhausted))
			Expect(nodes[2].Devices()).To(BeEmpty())
		})

		It("should use the configured allocator", func() {
			allocator := NewMockAddressAllocator(mockCtrl)
			registry = MakeRegistryBuilder().
				WithEngine(engine).
				WithAllocator(allocator).
				Build()
			nodes, _ = registry.CreateNodes(1)

			allocator.EXPECT().
				AssignNext(testBase, testMask).
				Return(netip.MustParseAddr("10.1.1.200"), nil)

			d, err := registry.AttachDevice(nodes[0], DeviceConfig{
				Base: testBase,
				Mask: testMask,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(d.Address()).To(Equal(netip.MustParseAddr("10.1.1.200")))
		})

		It("should reject nodes of another registry", func() {
			other := MakeRegistryBuilder().WithEngine(engine).Build()
			foreign, _ := other.CreateNodes(1)

			_, err := registry.AttachDevice(foreign[0], DeviceConfig{})

			Expect(err).To(MatchError(ErrForeignNode))
		})

		It("should not connect a device twice", func() {
			ch1 := NewMockChannel(mockCtrl)
			ch2 := NewMockChannel(mockCtrl)
			ch1.EXPECT().Name().Return("ch1").AnyTimes()
			ch1.EXPECT().Attach(gomock.Any()).Return(nil)

			d, err := registry.AttachDevice(nodes[0], DeviceConfig{Channel: ch1})
			Expect(err).NotTo(HaveOccurred())

			Expect(registry.Connect(d, ch2)).To(MatchError(ErrChannelAttached))

			ch1.EXPECT().Detach(d)
			registry.Disconnect(d)

			ch2.EXPECT().Attach(d).Return(nil)
			Expect(registry.Connect(d, ch2)).To(Succeed())
			Expect(d.Channel()).To(BeIdenticalTo(ch2))
		})
	})

	Context("when attaching applications", func() {
		var (
			node *Node
			app  *MockApplication
		)

		BeforeEach(func() {
			nodes, err := registry.CreateNodes(1)
			Expect(err).NotTo(HaveOccurred())
			node = nodes[0]
			app = NewMockApplication(mockCtrl)
			app.EXPECT().Name().Return("App").AnyTimes()
		})

		It("should start and stop the application at the configured times", func() {
			h, err := registry.AttachApplication(node, ApplicationConfig{
				App:   app,
				Start: sim.Second,
				Stop:  3 * sim.Second,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(h.State()).To(Equal(AppPending))
			Expect(engine.PendingEvents()).To(Equal(2))

			start := app.EXPECT().
				StartApplication(gomock.Any()).
				DoAndReturn(func(ctx AppContext) error {
					Expect(ctx.Now()).To(Equal(sim.Second))
					return nil
				})
			app.EXPECT().
				StopApplication().
				DoAndReturn(func() error {
					Expect(engine.Now()).To(Equal(3 * sim.Second))
					return nil
				}).
				After(start)

			Expect(engine.Run()).To(Succeed())
			Expect(h.State()).To(Equal(AppStopped))
			Expect(node.Applications()).To(ConsistOf(h))
		})

		It("should propagate start failures as fatal", func() {
			_, err := registry.AttachApplication(node, ApplicationConfig{
				App:   app,
				Start: sim.Second,
				Stop:  2 * sim.Second,
			})
			Expect(err).NotTo(HaveOccurred())

			app.EXPECT().StartApplication(gomock.Any()).Return(errors.New("no socket"))

			err = engine.Run()

			var cbErr *sim.CallbackError
			Expect(errors.As(err, &cbErr)).To(BeTrue())
			Expect(cbErr.Component).To(Equal("App"))
			Expect(cbErr.Time).To(Equal(sim.Second))
		})

		It("should reject invalid windows", func() {
			_, err := registry.AttachApplication(node, ApplicationConfig{
				App:   app,
				Start: 2 * sim.Second,
				Stop:  sim.Second,
			})
			Expect(err).To(MatchError(ErrInvalidAppWindow))

			_, err = registry.AttachApplication(node, ApplicationConfig{
				App:   app,
				Start: -1,
				Stop:  sim.Second,
			})
			Expect(err).To(MatchError(ErrInvalidAppWindow))
			Expect(engine.PendingEvents()).To(Equal(0))
		})

		It("should reject nil applications", func() {
			_, err := registry.AttachApplication(node, ApplicationConfig{
				Stop: sim.Second,
			})

			Expect(err).To(MatchError(ErrNilApplication))
		})

		It("should not schedule in the past", func() {
			_, err := engine.Schedule(5*sim.Second, "test", func() error {
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(engine.Run()).To(Succeed())

			_, err = registry.AttachApplication(node, ApplicationConfig{
				App:   app,
				Start: sim.Second,
				Stop:  10 * sim.Second,
			})

			Expect(err).To(MatchError(sim.ErrInvalidSchedule))
			Expect(engine.PendingEvents()).To(Equal(0))
		})
	})

	Context("when destroyed", func() {
		It("should detach devices and refuse further changes", func() {
			nodes, _ := registry.CreateNodes(1)
			ch := NewMockChannel(mockCtrl)
			ch.EXPECT().Attach(gomock.Any()).Return(nil)
			d, err := registry.AttachDevice(nodes[0], DeviceConfig{Channel: ch})
			Expect(err).NotTo(HaveOccurred())

			ch.EXPECT().Detach(d)
			engine.Destroy()

			Expect(registry.Destroyed()).To(BeTrue())
			Expect(registry.Nodes()).To(BeEmpty())

			_, err = registry.CreateNodes(1)
			Expect(err).To(MatchError(sim.ErrSimulatorDestroyed))

			_, err = registry.AttachDevice(nodes[0], DeviceConfig{})
			Expect(err).To(MatchError(sim.ErrSimulatorDestroyed))
		})
	})
})
