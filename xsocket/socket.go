package xsocket

import (
	"github.com/penguintech/xdpcore/arena"
	"github.com/penguintech/xdpcore/ring"
	"github.com/penguintech/xdpcore/xdplog"
	"golang.org/x/time/rate"
)

// Socket is one AF_XDP rx/tx ring pair bound to a network interface
// queue, mediating chunk ownership through an arena.Accessor.
type Socket struct {
	fd           int
	ifname       string
	queueIndex   uint32
	accessor     arena.Accessor
	rx           *ring.ConsRing
	tx           *ring.ProdRing
	scheduleMode ScheduleMode
	stats        Stats
	log          *xdplog.Logger
	shortfallLim *rate.Limiter
	rings        ringMem
}

func newSocket(fd int, ifname string, queueIndex uint32, accessor arena.Accessor, rx *ring.ConsRing, tx *ring.ProdRing, mode ScheduleMode) *Socket {
	return &Socket{
		fd:           fd,
		ifname:       ifname,
		queueIndex:   queueIndex,
		accessor:     accessor,
		rx:           rx,
		tx:           tx,
		scheduleMode: mode,
		log:          xdplog.Default().WithField("ifname", ifname).WithField("queue", queueIndex),
		shortfallLim: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// Fd returns the socket's raw file descriptor, for an external
// collaborator to drive readiness with unix.Poll or an epoll wrapper.
// The socket itself never calls a blocking wait.
func (s *Socket) Fd() int { return s.fd }

func (s *Socket) Ifname() string { return s.ifname }

func (s *Socket) QueueIndex() uint32 { return s.queueIndex }

// Stats returns a point-in-time copy of the socket's Statistics
// block.
func (s *Socket) Stats() Stats { return s.stats.snapshot() }

// Allocate draws n fresh app frames from the socket's accessor.
func (s *Socket) Allocate(n int) ([]arena.AppFrame, error) {
	return s.accessor.Allocate(n)
}

// Recv receives at most one frame, returning (frame, true) if one was
// available.
func (s *Socket) Recv() (arena.RxFrame, bool, error) {
	frames, err := s.RecvBulk(1)
	if err != nil {
		return arena.RxFrame{}, false, err
	}
	if len(frames) == 0 {
		return arena.RxFrame{}, false, nil
	}
	return frames[0], true, nil
}

// RecvBulk peeks up to n entries off the rx ring, wraps each in an
// RxFrame, and replenishes the fill ring by the number consumed. When
// the rx ring is empty it instead issues the rx wakeup kick per the
// socket's schedule mode and returns no frames.
func (s *Socket) RecvBulk(n int) ([]arena.RxFrame, error) {
	start, peeked := s.rx.Peek(uint32(n))
	if peeked == 0 {
		if err := s.maybeWakeupRx(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	s.stats.addRxBatch()

	frames := make([]arena.RxFrame, peeked)
	var totalBytes uint64
	for i := uint32(0); i < peeked; i++ {
		desc := s.rx.DescAt(start + i)
		addr, length := desc.Addr, desc.Len
		totalBytes += uint64(length)
		chunk := s.accessor.ExtractRecv(addr)
		frames[i] = arena.NewRxFrame(chunk, s.accessor, addr, length)
	}
	s.rx.Release(peeked)
	s.stats.addRx(uint64(peeked), totalBytes)

	filled, err := s.accessor.Fill(int(peeked))
	if err != nil {
		return frames, err
	}
	if uint32(filled) < peeked && s.shortfallLim.Allow() {
		s.log.WithField("filled", filled).WithField("received", peeked).
			Warn("fill ring replenished short of rx batch size")
	}
	return frames, nil
}

func (s *Socket) maybeWakeupRx() error {
	switch s.scheduleMode {
	case ScheduleLegacy, ScheduleBusyPolling:
		s.stats.addRxWakeup()
		return ring.WakeupRx(s.fd)
	case ScheduleCooperative:
		if s.accessor.NeedWakeup() {
			s.stats.addRxWakeup()
			return ring.WakeupRx(s.fd)
		}
	}
	return nil
}

// Send sends a single frame; see SendBulk. sent is false if the tx
// ring could not accept the frame, in which case the caller still owns
// it and may retry.
func (s *Socket) Send(frame arena.TxFrame) (sent bool, err error) {
	remaining, err := s.SendBulk([]arena.TxFrame{frame})
	if err != nil {
		return false, err
	}
	return len(remaining) == 0, nil
}

// SendBulk recycles the completion ring, reserves tx ring slots for
// frames, writes descriptors for as many as were reserved, and issues
// the tx wakeup kick per the socket's schedule mode. Frames that could
// not be reserved a slot are returned to the caller unsent.
func (s *Socket) SendBulk(frames []arena.TxFrame) ([]arena.TxFrame, error) {
	if _, err := s.accessor.Recycle(); err != nil {
		return frames, err
	}

	start, reserved := s.tx.Reserve(uint32(len(frames)))

	// Validate every frame that would actually be published before
	// touching any ring or accessor state: once a descriptor is
	// written and its chunk handed to RegisterSend, there is no way to
	// undo that hand-off, so a mismatch discovered partway through
	// would otherwise strand the already-processed chunks in flight
	// with nothing to reap them and drop the rejected frame on the
	// floor. Validating first keeps a rejection a true no-op.
	for i := uint32(0); i < reserved; i++ {
		if !frames[i].AccessorEqual(s.accessor) {
			s.tx.Cancel(reserved)
			return frames, &arena.InvalidArgumentError{Msg: "tx frame was allocated against a different accessor"}
		}
	}

	if reserved > 0 {
		s.stats.addTxBatch()
	}

	remaining := make([]arena.TxFrame, 0, len(frames)-int(reserved))
	var sentBytes uint64
	for i, f := range frames {
		if uint32(i) >= reserved {
			remaining = append(remaining, f)
			continue
		}
		desc := s.tx.DescAt(start + uint32(i))
		desc.Addr = f.XDPAddress()
		desc.Len = f.Len()
		desc.Options = 0
		sentBytes += uint64(f.Len())
		s.accessor.RegisterSend(f.Take())
	}
	s.stats.addTx(uint64(reserved), sentBytes)
	s.tx.Submit(reserved)

	if err := s.maybeWakeupTx(); err != nil {
		return remaining, err
	}
	return remaining, nil
}

func (s *Socket) maybeWakeupTx() error {
	// Legacy and BusyPolling always kick the kernel on send; only
	// Cooperative checks the need-wakeup flag first.
	switch s.scheduleMode {
	case ScheduleLegacy, ScheduleBusyPolling:
		s.stats.addTxWakeup()
		return ring.WakeupTx(s.fd)
	case ScheduleCooperative:
		if s.tx.NeedsWakeup() {
			s.stats.addTxWakeup()
			return ring.WakeupTx(s.fd)
		}
	}
	return nil
}

// Close releases the socket's own fd and rings. The arena and its
// accessor are not touched: a socket does not own the arena it was
// built against.
func (s *Socket) Close() {
	s.closeKernel()
}
