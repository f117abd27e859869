package xsocket

import (
	"github.com/penguintech/xdpcore/arena"
)

// XDPMode selects the kernel-side XDP attachment path a socket binds
// against.
type XDPMode int

const (
	ModeGeneric XDPMode = iota
	ModeDriver
	ModeHardware
)

// ScheduleMode governs when a socket issues the rx/tx wakeup kick.
type ScheduleMode int

const (
	// ScheduleLegacy always wakes the kernel, regardless of the
	// need-wakeup flag: the historical, pre-XDP_USE_NEED_WAKEUP
	// behavior.
	ScheduleLegacy ScheduleMode = iota
	// ScheduleCooperative only wakes the kernel when it has asked for
	// it via the ring's needs-wakeup flag.
	ScheduleCooperative
	// ScheduleBusyPolling always wakes the kernel and additionally
	// configures SO_PREFER_BUSY_POLL/SO_BUSY_POLL/SO_BUSY_POLL_BUDGET.
	ScheduleBusyPolling
)

const (
	defaultRxSize = 2048
	defaultTxSize = 2048

	busyPollBudget = 16
	busyPollTimeUS = 10
)

// Builder configures a Socket.
type Builder struct {
	ifname      string
	queueIndex  uint32
	rxSize      uint32
	txSize      uint32
	mode        XDPMode
	zeroCopy    bool
	cooperate   bool
	busyPolling bool
}

// NewBuilder returns a Builder seeded with libxdp's default ring
// sizes and driver-mode XDP attachment.
func NewBuilder(ifname string, queueIndex uint32) *Builder {
	return &Builder{
		ifname:     ifname,
		queueIndex: queueIndex,
		rxSize:     defaultRxSize,
		txSize:     defaultTxSize,
		mode:       ModeDriver,
	}
}

func (b *Builder) RxSize(n uint32) *Builder { b.rxSize = n; return b }
func (b *Builder) TxSize(n uint32) *Builder { b.txSize = n; return b }
func (b *Builder) Mode(m XDPMode) *Builder { b.mode = m; return b }
func (b *Builder) ZeroCopy(z bool) *Builder { b.zeroCopy = z; return b }
func (b *Builder) Cooperate(c bool) *Builder { b.cooperate = c; return b }
func (b *Builder) BusyPolling(bp bool) *Builder { b.busyPolling = bp; return b }

func (b *Builder) construct() (*Builder, error) {
	if b.ifname == "" {
		return nil, &arena.InvalidArgumentError{Msg: "interface name must be set"}
	}
	if b.rxSize == 0 && b.txSize == 0 {
		return nil, &arena.InvalidArgumentError{Msg: "at least one of rx/tx ring size must be non-zero"}
	}
	if !isPowerOfTwo(b.rxSize) || !isPowerOfTwo(b.txSize) {
		return nil, &arena.InvalidArgumentError{Msg: "rx and tx ring sizes must be powers of two"}
	}
	return b, nil
}

// scheduleMode derives the socket's wakeup regime from the builder's
// flags: BusyPolling takes precedence over Cooperative, which takes
// precedence over the Legacy default.
func (b *Builder) scheduleMode() ScheduleMode {
	switch {
	case b.busyPolling:
		return ScheduleBusyPolling
	case b.cooperate:
		return ScheduleCooperative
	default:
		return ScheduleLegacy
	}
}

func isPowerOfTwo(n uint32) bool { return n != 0 && n&(n-1) == 0 }
