package xsocket

import "sync/atomic"

// Stats is the Statistics block: per-socket rx/tx counters, updated
// with atomic adds on the hot path and read back via Socket.Stats.
type Stats struct {
	RxPackets uint64
	RxBytes   uint64
	RxWakeup  uint64
	RxBatch   uint64
	TxPackets uint64
	TxBytes   uint64
	TxWakeup  uint64
	TxBatch   uint64
}

func (s *Stats) addRx(packets, bytes uint64) {
	atomic.AddUint64(&s.RxPackets, packets)
	atomic.AddUint64(&s.RxBytes, bytes)
}

func (s *Stats) addRxWakeup() { atomic.AddUint64(&s.RxWakeup, 1) }
func (s *Stats) addRxBatch()  { atomic.AddUint64(&s.RxBatch, 1) }

func (s *Stats) addTx(packets, bytes uint64) {
	atomic.AddUint64(&s.TxPackets, packets)
	atomic.AddUint64(&s.TxBytes, bytes)
}

func (s *Stats) addTxWakeup() { atomic.AddUint64(&s.TxWakeup, 1) }
func (s *Stats) addTxBatch()  { atomic.AddUint64(&s.TxBatch, 1) }

// snapshot returns a copy safe to hand to a caller without exposing
// the live atomics.
func (s *Stats) snapshot() Stats {
	return Stats{
		RxPackets: atomic.LoadUint64(&s.RxPackets),
		RxBytes:   atomic.LoadUint64(&s.RxBytes),
		RxWakeup:  atomic.LoadUint64(&s.RxWakeup),
		RxBatch:   atomic.LoadUint64(&s.RxBatch),
		TxPackets: atomic.LoadUint64(&s.TxPackets),
		TxBytes:   atomic.LoadUint64(&s.TxBytes),
		TxWakeup:  atomic.LoadUint64(&s.TxWakeup),
		TxBatch:   atomic.LoadUint64(&s.TxBatch),
	}
}
