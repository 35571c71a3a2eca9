package metrics

import (
	"errors"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "powertrack"

// Recorder exports session and rule reconciler activity as Prometheus metrics.
type Recorder struct {
	sessionsStarted *prometheus.CounterVec // By product
	sessionsActive  *prometheus.GaugeVec   // By product
	activities      *prometheus.CounterVec // By product
	activityBytes   *prometheus.CounterVec // By product
	events          *prometheus.CounterVec // By product and channel
	streamErrors    *prometheus.CounterVec // By product and error_type

	ruleBatches *prometheus.CounterVec // By op and result
	rules       *prometheus.CounterVec // By op, successful batches only
}

var (
	_ ports.StreamMetrics = (*Recorder)(nil)
	_ ports.RuleMetrics   = (*Recorder)(nil)
)

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_started_total",
			Help:      "Total number of stream connections opened",
		}, []string{"product"}),

		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_active",
			Help:      "Stream sessions currently connected or streaming",
		}, []string{"product"}),

		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "activities_total",
			Help:      "Total number of decoded activities",
		}, []string{"product"}),

		activityBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "activity_bytes_total",
			Help:      "Total decompressed bytes of decoded activities",
		}, []string{"product"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of events emitted per channel kind",
		}, []string{"product", "channel"}),

		streamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Total number of stream errors",
		}, []string{"product", "error_type"}), // error_type: connection, status, encoding, malformed, malformed_fatal, configuration, other

		ruleBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "batches_total",
			Help:      "Total number of rule API calls",
		}, []string{"op", "result"}),

		rules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "rules_total",
			Help:      "Total number of rules sent in successful batches",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{
		r.sessionsStarted,
		r.sessionsActive,
		r.activities,
		r.activityBytes,
		r.events,
		r.streamErrors,
		r.ruleBatches,
		r.rules,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Recorder) SessionStarted(product domain.Product) {
	r.sessionsStarted.WithLabelValues(string(product)).Inc()
	r.sessionsActive.WithLabelValues(string(product)).Inc()
}

func (r *Recorder) SessionEnded(product domain.Product) {
	r.sessionsActive.WithLabelValues(string(product)).Dec()
}

func (r *Recorder) ActivityDecoded(product domain.Product, bytes int) {
	r.activities.WithLabelValues(string(product)).Inc()
	r.activityBytes.WithLabelValues(string(product)).Add(float64(bytes))
}

func (r *Recorder) Emitted(product domain.Product, kind domain.ChannelKind) {
	r.events.WithLabelValues(string(product), kind.String()).Inc()
}

func (r *Recorder) StreamError(product domain.Product, err error) {
	r.streamErrors.WithLabelValues(string(product), errorType(err)).Inc()
}

func (r *Recorder) RuleBatch(op string, size int, err error) {
	if err != nil {
		r.ruleBatches.WithLabelValues(op, "error").Inc()
		return
	}
	r.ruleBatches.WithLabelValues(op, "success").Inc()
	r.rules.WithLabelValues(op).Add(float64(size))
}

func errorType(err error) string {
	var (
		connErr      *domain.ConnectionError
		statusErr    *domain.StatusError
		encodingErr  *domain.UnsupportedEncodingError
		malformedErr *domain.MalformedStreamError
	)
	switch {
	case errors.As(err, &malformedErr):
		if malformedErr.Fatal {
			return "malformed_fatal"
		}
		return "malformed"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &encodingErr):
		return "encoding"
	case errors.As(err, &connErr):
		return "connection"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	default:
		return "other"
	}
}
