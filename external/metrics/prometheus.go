package metrics

import (
	"time"

	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livescribe"

// PrometheusRecorder exports pipeline events as Prometheus metrics.
type PrometheusRecorder struct {
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	AudioBytes       prometheus.Counter
	PCMBytes         prometheus.Counter
	Results          *prometheus.CounterVec
	TranscoderErrors prometheus.Counter
	RecognizerErrors prometheus.Counter
}

func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of open transcription sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of sessions started",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions ended, by reason",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Lifetime of transcription sessions",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_received_bytes_total",
			Help:      "Compressed audio bytes received from clients",
		}),
		PCMBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pcm_decoded_bytes_total",
			Help:      "PCM bytes produced by the transcoder",
		}),
		Results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_emitted_total",
			Help:      "Recognition results sent to clients, by kind",
		}, []string{"kind"}),
		TranscoderErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcoder_failures_total",
			Help:      "Transcoder start or I/O failures",
		}),
		RecognizerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_failures_total",
			Help:      "Recognizer construction or per-frame failures",
		}),
	}
}

var _ metrics.Recorder = (*PrometheusRecorder)(nil)

func (r *PrometheusRecorder) SessionStarted() {
	r.ActiveSessions.Inc()
	r.SessionsStarted.Inc()
}

func (r *PrometheusRecorder) SessionEnded(reason string, duration time.Duration) {
	r.ActiveSessions.Dec()
	r.SessionsEnded.WithLabelValues(reason).Inc()
	r.SessionDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) AudioReceived(bytes int) {
	r.AudioBytes.Add(float64(bytes))
}

func (r *PrometheusRecorder) FrameDecoded(bytes int) {
	r.PCMBytes.Add(float64(bytes))
}

func (r *PrometheusRecorder) ResultEmitted(final bool) {
	kind := "partial"
	if final {
		kind = "final"
	}
	r.Results.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) TranscoderFailed() {
	r.TranscoderErrors.Inc()
}

func (r *PrometheusRecorder) RecognizerFailed() {
	r.RecognizerErrors.Inc()
}
