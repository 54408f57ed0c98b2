package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	Start(p, "guide").Done(nil)
	Start(p, "guide").Done(nil)
	Start(p, "rig").Done(errors.New("boom"))
	Start(p, "rig").DoneWith(StatusSkipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.Stages().WithLabelValues("guide", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Stages().WithLabelValues("rig", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Stages().WithLabelValues("rig", StatusSkipped)))
	assert.Equal(t, 2, testutil.CollectAndCount(p.duration))

	_, err = NewPrometheus(reg)
	assert.Error(t, err, "collectors can only be registered once")
}

func TestNilRecorderFallsBackToNop(t *testing.T) {
	assert.NotPanics(t, func() { Start(nil, "guide").Done(nil) })
}
