package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// simCollector exports the state last published by the monitor hook.
type simCollector struct {
	m *Monitor

	now      *prometheus.Desc
	executed *prometheus.Desc
	pending  *prometheus.Desc
	txPkts   *prometheus.Desc
	txBytes  *prometheus.Desc
	rxPkts   *prometheus.Desc
	rxBytes  *prometheus.Desc
	dropped  *prometheus.Desc
}

func newSimCollector(m *Monitor) *simCollector {
	deviceLabels := []string{"device", "address"}

	return &simCollector{
		m: m,
		now: prometheus.NewDesc("netsim_virtual_time_seconds",
			"Current virtual time of the simulation.", nil, nil),
		executed: prometheus.NewDesc("netsim_events_executed_total",
			"Number of events executed by the engine.", nil, nil),
		pending: prometheus.NewDesc("netsim_events_pending",
			"Number of events waiting in the queue.", nil, nil),
		txPkts: prometheus.NewDesc("netsim_device_tx_packets_total",
			"Packets sent by a device.", deviceLabels, nil),
		txBytes: prometheus.NewDesc("netsim_device_tx_bytes_total",
			"Bytes sent by a device, headers included.", deviceLabels, nil),
		rxPkts: prometheus.NewDesc("netsim_device_rx_packets_total",
			"Packets accepted by a device.", deviceLabels, nil),
		rxBytes: prometheus.NewDesc("netsim_device_rx_payload_bytes_total",
			"Payload bytes accepted by a device.", deviceLabels, nil),
		dropped: prometheus.NewDesc("netsim_device_dropped_packets_total",
			"Packets addressed to a device that the channel lost.",
			deviceLabels, nil),
	}
}

func (c *simCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.now
	ch <- c.executed
	ch <- c.pending
	ch <- c.txPkts
	ch <- c.txBytes
	ch <- c.rxPkts
	ch <- c.rxBytes
	ch <- c.dropped
}

func (c *simCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.m.Status()

	ch <- prometheus.MustNewConstMetric(
		c.now, prometheus.GaugeValue, status.Now)
	ch <- prometheus.MustNewConstMetric(
		c.executed, prometheus.CounterValue, float64(status.ExecutedEvents))
	ch <- prometheus.MustNewConstMetric(
		c.pending, prometheus.GaugeValue, float64(status.PendingEvents))

	for _, d := range c.m.Devices() {
		labels := []string{d.Name, d.Address}

		ch <- prometheus.MustNewConstMetric(c.txPkts,
			prometheus.CounterValue, float64(d.Stats.TxPackets), labels...)
		ch <- prometheus.MustNewConstMetric(c.txBytes,
			prometheus.CounterValue, float64(d.Stats.TxBytes), labels...)
		ch <- prometheus.MustNewConstMetric(c.rxPkts,
			prometheus.CounterValue, float64(d.Stats.RxPackets), labels...)
		ch <- prometheus.MustNewConstMetric(c.rxBytes,
			prometheus.CounterValue, float64(d.Stats.RxPayloadBytes), labels...)
		ch <- prometheus.MustNewConstMetric(c.dropped,
			prometheus.CounterValue, float64(d.Stats.DroppedPackets), labels...)
	}
}

func newMetricsRegistry(m *Monitor) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newSimCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}
