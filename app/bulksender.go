package app

import (
	"net/netip"

	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
	"go.uber.org/zap"
)

// A BulkSender pushes TCP segments to a sink as fast as its window admits,
// until its byte budget is spent or it is stopped. Each segment must be
// acknowledged within the ack timeout; a segment that is not is counted as
// lost and frees its slot in the window. Lost segments are not resent.
type BulkSender struct {
	name       string
	remote     netip.AddrPort
	sendSize   int
	maxBytes   uint64
	window     int
	ackTimeout sim.VTime

	ctx       network.AppContext
	nextSeq   uint32
	inFlight  map[uint32]sim.EventHandle
	totalSent uint64
	acked     uint64
	lost      uint64
}

// BulkSenderBuilder can build bulk senders.
type BulkSenderBuilder struct {
	remote     netip.AddrPort
	sendSize   int
	maxBytes   uint64
	window     int
	ackTimeout sim.VTime
}

// MakeBulkSenderBuilder creates a BulkSenderBuilder with 512-byte segments, a
// window of 64 segments, a 200 ms ack timeout and no byte budget.
func MakeBulkSenderBuilder() BulkSenderBuilder {
	return BulkSenderBuilder{
		sendSize:   512,
		window:     64,
		ackTimeout: 200 * sim.Millisecond,
	}
}

// WithRemote sets the address and port of the sink.
func (b BulkSenderBuilder) WithRemote(remote netip.AddrPort) BulkSenderBuilder {
	b.remote = remote
	return b
}

// WithSendSize sets the payload size of each segment.
func (b BulkSenderBuilder) WithSendSize(n int) BulkSenderBuilder {
	b.sendSize = n
	return b
}

// WithMaxBytes sets the byte budget. Zero means no limit.
func (b BulkSenderBuilder) WithMaxBytes(n uint64) BulkSenderBuilder {
	b.maxBytes = n
	return b
}

// WithWindow sets how many segments may be unacknowledged at once.
func (b BulkSenderBuilder) WithWindow(n int) BulkSenderBuilder {
	b.window = n
	return b
}

// WithAckTimeout sets how long to wait for the ack of a segment.
func (b BulkSenderBuilder) WithAckTimeout(d sim.VTime) BulkSenderBuilder {
	b.ackTimeout = d
	return b
}

// Build creates a BulkSender.
func (b BulkSenderBuilder) Build(name string) *BulkSender {
	if !b.remote.IsValid() {
		panic("bulk sender requires a remote address")
	}

	if b.sendSize <= 0 || b.window <= 0 || b.ackTimeout <= 0 {
		panic("send size, window and ack timeout must be positive")
	}

	return &BulkSender{
		name:       name,
		remote:     b.remote,
		sendSize:   b.sendSize,
		maxBytes:   b.maxBytes,
		window:     b.window,
		ackTimeout: b.ackTimeout,
		inFlight:   make(map[uint32]sim.EventHandle),
	}
}

// Name returns the name of the sender.
func (s *BulkSender) Name() string {
	return s.name
}

// TotalBytesSent returns the payload bytes sent.
func (s *BulkSender) TotalBytesSent() uint64 {
	return s.totalSent
}

// SegmentsAcked returns the number of acknowledged segments.
func (s *BulkSender) SegmentsAcked() uint64 {
	return s.acked
}

// SegmentsLost returns the number of segments whose ack timed out.
func (s *BulkSender) SegmentsLost() uint64 {
	return s.lost
}

// InFlight returns the number of unacknowledged segments.
func (s *BulkSender) InFlight() int {
	return len(s.inFlight)
}

// Done tells if the whole byte budget has been sent and settled.
func (s *BulkSender) Done() bool {
	return s.maxBytes > 0 &&
		s.totalSent >= s.maxBytes &&
		len(s.inFlight) == 0
}

// StartApplication fills the window.
func (s *BulkSender) StartApplication(ctx network.AppContext) error {
	s.ctx = ctx

	if _, err := ctx.Bind(network.ProtocolTCP, 0); err != nil {
		return err
	}

	return s.fillWindow()
}

// StopApplication logs the totals.
func (s *BulkSender) StopApplication() error {
	s.ctx.Logger().Info("bulk send stopped",
		zap.Stringer("time", s.ctx.Now()),
		zap.Uint64("bytes", s.totalSent),
		zap.Uint64("acked", s.acked),
		zap.Uint64("lost", s.lost),
		zap.Int("inFlight", len(s.inFlight)))

	return nil
}

func (s *BulkSender) budgetLeft() int {
	if s.maxBytes == 0 {
		return s.sendSize
	}

	if s.totalSent >= s.maxBytes {
		return 0
	}

	return int(min(s.maxBytes-s.totalSent, uint64(s.sendSize)))
}

func (s *BulkSender) fillWindow() error {
	for len(s.inFlight) < s.window {
		size := s.budgetLeft()
		if size == 0 {
			return nil
		}

		if err := s.sendSegment(size); err != nil {
			return err
		}
	}

	return nil
}

func (s *BulkSender) sendSegment(size int) error {
	payload := make([]byte, size)
	s.ctx.Rand().Read(payload)

	seq := s.nextSeq
	pkt := network.Packet{
		Protocol: network.ProtocolTCP,
		Dst:      s.remote,
		Flags:    network.FlagData,
		Seq:      seq,
		Payload:  payload,
	}

	if _, err := s.ctx.Send(pkt); err != nil {
		return err
	}

	s.nextSeq++
	s.totalSent += uint64(size)

	timeout, err := s.ctx.Schedule(s.ackTimeout, func() error {
		return s.handleTimeout(seq)
	})
	if err != nil {
		return err
	}

	s.inFlight[seq] = timeout

	return nil
}

func (s *BulkSender) handleTimeout(seq uint32) error {
	delete(s.inFlight, seq)
	s.lost++

	s.ctx.Logger().Debug("segment lost",
		zap.Stringer("time", s.ctx.Now()),
		zap.Uint32("seq", seq))

	return s.fillWindow()
}

// OnPacketReceived handles an ack and refills the window.
func (s *BulkSender) OnPacketReceived(pkt network.Packet) {
	if pkt.Flags&network.FlagAck == 0 {
		return
	}

	timeout, found := s.inFlight[pkt.Seq]
	if !found {
		return
	}

	s.ctx.Cancel(timeout)
	delete(s.inFlight, pkt.Seq)
	s.acked++

	if s.ctx.Stopped() {
		return
	}

	if err := s.fillWindow(); err != nil {
		s.ctx.Logger().Error("bulk send failed", zap.Error(err))
	}
}
