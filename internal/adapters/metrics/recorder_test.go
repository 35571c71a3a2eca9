package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderStreamMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.SessionStarted(domain.ProductTrack)
	r.ActivityDecoded(domain.ProductTrack, 120)
	r.ActivityDecoded(domain.ProductTrack, 80)
	r.Emitted(domain.ProductTrack, domain.ChannelData)
	r.Emitted(domain.ProductTrack, domain.ChannelVerb)
	r.Emitted(domain.ProductTrack, domain.ChannelVerb)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsActive.WithLabelValues("track")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.activities.WithLabelValues("track")))
	assert.Equal(t, 200.0, testutil.ToFloat64(r.activityBytes.WithLabelValues("track")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("track", "verb")))

	r.SessionEnded(domain.ProductTrack)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.sessionsActive.WithLabelValues("track")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsStarted.WithLabelValues("track")))
}

func TestRecorderClassifiesStreamErrors(t *testing.T) {
	t.Parallel()

	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	tests := []struct {
		err  error
		want string
	}{
		{err: &domain.ConnectionError{Op: "read", Err: errors.New("reset")}, want: "connection"},
		{err: &domain.StatusError{Code: 401}, want: "status"},
		{err: &domain.UnsupportedEncodingError{Encoding: "br"}, want: "encoding"},
		{err: &domain.MalformedStreamError{Reason: "invalid JSON value"}, want: "malformed"},
		{err: &domain.MalformedStreamError{Reason: "stray byte", Fatal: true}, want: "malformed_fatal"},
		{err: errors.New("boom"), want: "other"},
	}

	for _, tt := range tests {
		r.StreamError(domain.ProductCompliance, tt.err)
		assert.Equal(t, 1.0, testutil.ToFloat64(r.streamErrors.WithLabelValues("compliance", tt.want)), tt.want)
	}
}

func TestRecorderRuleBatches(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.RuleBatch("add", 1000, nil)
	r.RuleBatch("add", 500, nil)
	r.RuleBatch("remove", 10, &domain.PayloadTooLargeError{})

	expected := `
# HELP powertrack_rules_batches_total Total number of rule API calls
# TYPE powertrack_rules_batches_total counter
powertrack_rules_batches_total{op="add",result="success"} 2
powertrack_rules_batches_total{op="remove",result="error"} 1
# HELP powertrack_rules_rules_total Total number of rules sent in successful batches
# TYPE powertrack_rules_rules_total counter
powertrack_rules_rules_total{op="add"} 1500
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"powertrack_rules_batches_total", "powertrack_rules_rules_total"))
}

func TestNewRecorderRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}
