// Package ametrics exposes the framework's runtime counters through
// prometheus/client_golang, the metrics library the retrieved corpus
// standardizes on.
package ametrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters/gauges SPEC_FULL.md's components update:
// selector pool occupancy, IPC delivery outcomes, and filemgr transfer
// results.
type Metrics struct {
	SelectorWorkers  *prometheus.GaugeVec
	SelectorObjects  *prometheus.GaugeVec
	IPCBuffersSent   prometheus.Counter
	IPCBuffersResent prometheus.Counter
	IPCReconnects    prometheus.Counter
	FileStreamResult *prometheus.CounterVec
}

// New registers every metric against reg and returns the bundle. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// registry across parallel test binaries.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SelectorWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "asyncframe",
			Subsystem: "selector",
			Name:      "workers",
			Help:      "Number of live workers per selector pool flavor.",
		}, []string{"flavor"}),
		SelectorObjects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "asyncframe",
			Subsystem: "selector",
			Name:      "objects",
			Help:      "Number of objects currently resident per selector pool flavor.",
		}, []string{"flavor"}),
		IPCBuffersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "asyncframe",
			Subsystem: "ipc",
			Name:      "buffers_sent_total",
			Help:      "Total datagrams sent by the IPC talker.",
		}),
		IPCBuffersResent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "asyncframe",
			Subsystem: "ipc",
			Name:      "buffers_resent_total",
			Help:      "Total datagrams retransmitted by the IPC talker.",
		}),
		IPCReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "asyncframe",
			Subsystem: "ipc",
			Name:      "reconnects_total",
			Help:      "Total connector reconnect procedures triggered by retry exhaustion.",
		}),
		FileStreamResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asyncframe",
			Subsystem: "filemgr",
			Name:      "stream_result_total",
			Help:      "FileManager.Stream outcomes by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.SelectorWorkers, m.SelectorObjects, m.IPCBuffersSent, m.IPCBuffersResent, m.IPCReconnects, m.FileStreamResult)
	return m
}
