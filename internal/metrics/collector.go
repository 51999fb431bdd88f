// Package metrics provides Prometheus metrics for go-dash-emulator.
//
// Each session gets its own Collector backed by its own registry, so
// parallel batch sessions never fight over metric registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamtools/go-dash-emulator/internal/buffer"
	"github.com/streamtools/go-dash-emulator/internal/stats"
	"github.com/streamtools/go-dash-emulator/internal/throughput"
)

// Collector exports session state as Prometheus metrics. It observes the
// scheduler loop through the Observer interface; reads are served by the
// metrics server from the registry.
type Collector struct {
	registry  *prometheus.Registry
	estimator *throughput.Estimator

	info               *prometheus.GaugeVec
	segmentsDownloaded prometheus.Counter
	segmentsFailed     prometheus.Counter
	bytesDownloaded    prometheus.Counter
	switches           prometheus.Counter

	bufferLevel    prometheus.Gauge
	playbackTime   prometheus.Gauge
	stallCount     prometheus.Gauge
	stallSeconds   prometheus.Gauge
	currentBitrate prometheus.Gauge
	estimate       prometheus.Gauge

	lastRepByASet map[string]string
}

// NewCollector creates a Collector and registers its metrics.
// estimator may be nil; the estimate gauge then stays at zero.
func NewCollector(manifestURL, algorithm string, estimator *throughput.Estimator) *Collector {
	c := &Collector{
		registry:  prometheus.NewRegistry(),
		estimator: estimator,

		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dash_emulator_info",
				Help: "Information about the emulation session (value always 1)",
			},
			[]string{"manifest_url", "abr_algorithm"},
		),
		segmentsDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dash_emulator_segments_downloaded_total",
			Help: "Total media segments downloaded successfully",
		}),
		segmentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dash_emulator_segments_failed_total",
			Help: "Total segment cycles that exhausted their retries",
		}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dash_emulator_bytes_downloaded_total",
			Help: "Total bytes downloaded",
		}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dash_emulator_quality_switches_total",
			Help: "Total representation switches across adjacent decisions",
		}),
		bufferLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dash_emulator_buffer_level_seconds",
			Help: "Current buffered media duration",
		}),
		playbackTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dash_emulator_playback_time_seconds",
			Help: "Simulated playback position",
		}),
		stallCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dash_emulator_stalls",
			Help: "Number of stalls so far",
		}),
		stallSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dash_emulator_stall_seconds_total",
			Help: "Cumulative stall duration",
		}),
		currentBitrate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dash_emulator_current_bitrate_bits",
			Help: "Bitrate of the most recently chosen representation",
		}),
		estimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dash_emulator_throughput_estimate_bits",
			Help: "Current throughput estimate in bits per second",
		}),

		lastRepByASet: make(map[string]string),
	}

	c.registry.MustRegister(
		c.info,
		c.segmentsDownloaded,
		c.segmentsFailed,
		c.bytesDownloaded,
		c.switches,
		c.bufferLevel,
		c.playbackTime,
		c.stallCount,
		c.stallSeconds,
		c.currentBitrate,
		c.estimate,
	)
	c.info.WithLabelValues(manifestURL, algorithm).Set(1)
	return c
}

// Registry returns the session's metric registry for the HTTP server.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// OnCycle implements the scheduler observer: one call per completed cycle.
func (c *Collector) OnCycle(rec stats.CycleRecord, snap buffer.Snapshot) {
	if rec.Failed {
		c.segmentsFailed.Inc()
	} else {
		c.segmentsDownloaded.Inc()
		c.bytesDownloaded.Add(float64(rec.Bytes))
	}

	if last, ok := c.lastRepByASet[rec.AdaptationSetID]; ok && last != rec.RepresentationID {
		c.switches.Inc()
	}
	c.lastRepByASet[rec.AdaptationSetID] = rec.RepresentationID

	c.bufferLevel.Set(snap.Level.Seconds())
	c.playbackTime.Set(snap.PlaybackTime.Seconds())
	c.stallCount.Set(float64(snap.StallCount))
	c.stallSeconds.Set(snap.StallDuration.Seconds())
	c.currentBitrate.Set(float64(rec.Bitrate))

	if c.estimator != nil {
		if est, err := c.estimator.Estimate(); err == nil {
			c.estimate.Set(est)
		}
	}
}
