// Package metrics exposes camwatch counters and gauges on a per-daemon
// prometheus registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"camwatch/internal/capture"
	"camwatch/internal/resources"
	"camwatch/internal/services"
)

// Metrics holds every collector the daemon updates.
type Metrics struct {
	Registry *prometheus.Registry

	FramesAccepted *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	TicksSkipped   *prometheus.CounterVec
	Restarts       *prometheus.CounterVec
	CapturesSaved  *prometheus.CounterVec
	SaveFailures   *prometheus.CounterVec

	TargetFPS      *prometheus.GaugeVec
	SessionRunning *prometheus.GaugeVec
	HostCPU        prometheus.Gauge
	HostMemory     prometheus.Gauge

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FramesAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camwatch_frames_accepted_total",
			Help: "Frames published to the frame buffer",
		}, []string{"camera"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camwatch_frames_dropped_total",
			Help: "Reads that failed or were rejected by the quality gate",
		}, []string{"camera"}),
		TicksSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camwatch_ticks_skipped_total",
			Help: "Capture ticks skipped under CPU pressure",
		}, []string{"camera"}),
		Restarts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camwatch_restarts_total",
			Help: "Capture loop restarts by reason",
		}, []string{"camera", "reason"}),
		CapturesSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camwatch_captures_saved_total",
			Help: "Captures written to disk",
		}, []string{"camera"}),
		SaveFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camwatch_save_failures_total",
			Help: "Failed capture saves by reason",
		}, []string{"camera", "reason"}),
		TargetFPS: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camwatch_target_fps",
			Help: "Current adaptive target frame rate",
		}, []string{"camera"}),
		SessionRunning: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camwatch_session_running",
			Help: "1 while a capture loop is alive",
		}, []string{"camera"}),
		HostCPU: f.NewGauge(prometheus.GaugeOpts{
			Name: "camwatch_host_cpu_percent",
			Help: "Host CPU utilisation at the last sample",
		}),
		HostMemory: f.NewGauge(prometheus.GaugeOpts{
			Name: "camwatch_host_memory_percent",
			Help: "Host memory utilisation at the last sample",
		}),
		RequestCount: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camwatch_api_requests_total",
			Help: "HTTP API requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camwatch_api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Observer returns the capture observer feeding the frame counters for camera.
func (m *Metrics) Observer(camera string) capture.Observer {
	return cameraObserver{
		accepted: m.FramesAccepted.WithLabelValues(camera),
		dropped:  m.FramesDropped.WithLabelValues(camera),
		skipped:  m.TicksSkipped.WithLabelValues(camera),
	}
}

// ObserveSample records a host load sample.
func (m *Metrics) ObserveSample(s resources.Sample) {
	m.HostCPU.Set(s.CPU)
	m.HostMemory.Set(s.Memory)
}

// ObserveSave counts a save outcome.
func (m *Metrics) ObserveSave(camera string, err error) {
	if err == nil {
		m.CapturesSaved.WithLabelValues(camera).Inc()
		return
	}
	reason := services.ErrorKind(err)
	var saveErr *services.SaveError
	if errors.As(err, &saveErr) {
		reason = string(saveErr.Reason)
	}
	m.SaveFailures.WithLabelValues(camera, reason).Inc()
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

type cameraObserver struct {
	accepted prometheus.Counter
	dropped  prometheus.Counter
	skipped  prometheus.Counter
}

func (o cameraObserver) FrameAccepted() { o.accepted.Inc() }
func (o cameraObserver) FrameDropped()  { o.dropped.Inc() }
func (o cameraObserver) TickSkipped()   { o.skipped.Inc() }
