// Package xstats exposes xsocket.Stats as Prometheus metrics.
package xstats

import (
	"strconv"
	"sync"

	"github.com/penguintech/xdpcore/xsocket"
	"github.com/prometheus/client_golang/prometheus"
)

// socketKey identifies one socket by interface and queue, matching
// how a process typically runs one Socket per queue.
type socketKey struct {
	ifname string
	queue  uint32
}

// Registry is a prometheus.Collector exposing counters and gauges for
// every Socket registered with it. Collect reads a fresh Stats
// snapshot from each socket on every scrape rather than tracking its
// own running totals, so counters never drift from the socket's own
// bookkeeping.
type Registry struct {
	mu      sync.RWMutex
	sockets map[socketKey]*xsocket.Socket

	rxPackets *prometheus.Desc
	rxBytes   *prometheus.Desc
	rxWakeups *prometheus.Desc
	rxBatches *prometheus.Desc
	txPackets *prometheus.Desc
	txBytes   *prometheus.Desc
	txWakeups *prometheus.Desc
	txBatches *prometheus.Desc
}

// NewRegistry builds an empty Registry. namespace/subsystem follow
// the usual prometheus.BuildFQName convention.
func NewRegistry(namespace, subsystem string) *Registry {
	labels := []string{"ifname", "queue"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &Registry{
		sockets:   make(map[socketKey]*xsocket.Socket),
		rxPackets: desc("rx_packets_total", "Total packets received"),
		rxBytes:   desc("rx_bytes_total", "Total bytes received"),
		rxWakeups: desc("rx_wakeups_total", "Total rx wakeup syscalls issued"),
		rxBatches: desc("rx_batches_total", "Total non-empty recv batches"),
		txPackets: desc("tx_packets_total", "Total packets sent"),
		txBytes:   desc("tx_bytes_total", "Total bytes sent"),
		txWakeups: desc("tx_wakeups_total", "Total tx wakeup syscalls issued"),
		txBatches: desc("tx_batches_total", "Total non-empty send batches"),
	}
}

// Register adds a socket to the registry, keyed by its own
// ifname/queue. Registering a socket already present replaces it.
func (r *Registry) Register(s *xsocket.Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[socketKey{s.Ifname(), s.QueueIndex()}] = s
}

// Unregister removes a socket by ifname/queue, e.g. once its queue is
// torn down.
func (r *Registry) Unregister(ifname string, queue uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sockets, socketKey{ifname, queue})
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.rxPackets
	ch <- r.rxBytes
	ch <- r.rxWakeups
	ch <- r.rxBatches
	ch <- r.txPackets
	ch <- r.txBytes
	ch <- r.txWakeups
	ch <- r.txBatches
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key, s := range r.sockets {
		stats := s.Stats()
		queue := strconv.FormatUint(uint64(key.queue), 10)
		ch <- prometheus.MustNewConstMetric(r.rxPackets, prometheus.CounterValue, float64(stats.RxPackets), key.ifname, queue)
		ch <- prometheus.MustNewConstMetric(r.rxBytes, prometheus.CounterValue, float64(stats.RxBytes), key.ifname, queue)
		ch <- prometheus.MustNewConstMetric(r.rxWakeups, prometheus.CounterValue, float64(stats.RxWakeup), key.ifname, queue)
		ch <- prometheus.MustNewConstMetric(r.rxBatches, prometheus.CounterValue, float64(stats.RxBatch), key.ifname, queue)
		ch <- prometheus.MustNewConstMetric(r.txPackets, prometheus.CounterValue, float64(stats.TxPackets), key.ifname, queue)
		ch <- prometheus.MustNewConstMetric(r.txBytes, prometheus.CounterValue, float64(stats.TxBytes), key.ifname, queue)
		ch <- prometheus.MustNewConstMetric(r.txWakeups, prometheus.CounterValue, float64(stats.TxWakeup), key.ifname, queue)
		ch <- prometheus.MustNewConstMetric(r.txBatches, prometheus.CounterValue, float64(stats.TxBatch), key.ifname, queue)
	}
}

