package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestSampleRatio(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"", 1},
		{"0.25", 0.25},
		{"0", 0},
		{"1.5", 1},
		{"-0.1", 1},
		{"half", 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sampleRatio(c.raw), c.raw)
	}
}

func TestResourceCarriesEnvironment(t *testing.T) {
	res := newResource("staging")

	env, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
	require.True(t, ok)
	assert.Equal(t, "staging", env.AsString())

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, serviceName, name.AsString())
}

func TestDisabledTracerIsNoop(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")

	shutdown := InitTracer("test")

	assert.NoError(t, shutdown(context.Background()))
}
