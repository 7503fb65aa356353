package sim

import (
	"net/http"
	"strconv"

	"github.com/mame82/cdcboot/bootloader"
	"github.com/mame82/cdcboot/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics counts what the engine does. It is a bootloader.Observer.
type Metrics struct {
	registry *prometheus.Registry

	bytes    *prometheus.CounterVec
	replies  *prometheus.CounterVec
	chunks   *prometheus.CounterVec
	sessions prometheus.Counter
	handOffs prometheus.Counter
	state    prometheus.Gauge
	index    prometheus.Gauge
}

func NewMetrics(targetName string) *Metrics {
	labels := prometheus.Labels{"target": targetName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "cdcboot",
				Subsystem:   "engine",
				Name:        "bytes_total",
				Help:        "Host bytes handled, by engine state.",
				ConstLabels: labels,
			},
			[]string{"state"},
		),
		replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "cdcboot",
				Subsystem:   "engine",
				Name:        "replies_total",
				Help:        "Reply bytes sent to the host, by value.",
				ConstLabels: labels,
			},
			[]string{"value"},
		),
		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "cdcboot",
				Subsystem:   "flash",
				Name:        "chunks_total",
				Help:        "Chunk commits, by result.",
				ConstLabels: labels,
			},
			[]string{"success"},
		),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cdcboot",
			Subsystem:   "engine",
			Name:        "write_sessions_total",
			Help:        "Write sessions started.",
			ConstLabels: labels,
		}),
		handOffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cdcboot",
			Subsystem:   "engine",
			Name:        "handoffs_total",
			Help:        "Hand-offs to the application.",
			ConstLabels: labels,
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cdcboot",
			Subsystem:   "engine",
			Name:        "writing",
			Help:        "1 while a write session is open.",
			ConstLabels: labels,
		}),
		index: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cdcboot",
			Subsystem:   "flash",
			Name:        "last_chunk",
			Help:        "Index of the last chunk commit attempt.",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.bytes, m.replies, m.chunks, m.sessions, m.handOffs, m.state, m.index)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ByteHandled(in byte, from, to bootloader.State, resp bootloader.Response) {
	m.bytes.WithLabelValues(from.String()).Inc()
	for _, b := range resp.Replies {
		m.replies.WithLabelValues(strconv.Itoa(int(b))).Inc()
	}
	if resp.HandOff {
		m.handOffs.Inc()
	}
	if from == bootloader.WaitingForCommand && protocol.Command(in) == protocol.BootloaderEraseAndWriteProgram {
		m.sessions.Inc()
	}
	if to == bootloader.WritingFirmware {
		m.state.Set(1)
	} else {
		m.state.Set(0)
	}
}

func (m *Metrics) ChunkCommitted(index int, ok bool) {
	m.chunks.WithLabelValues(strconv.FormatBool(ok)).Inc()
	m.index.Set(float64(index))
}

// Serve exposes the metrics on addr under /metrics until the listener fails.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("Serving metrics")
	return http.ListenAndServe(addr, mux)
}
