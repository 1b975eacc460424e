package telemetry

import (
	"context"
	"testing"

	"pdf-rag-chatbot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	m, err := InitMetrics("test-service")
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.RecordRequest("POST", "/chat", "success", 0.2)
		m.RecordIngest(1.5, "success", "primary", 4)
		m.RecordStorageFallback("put")
		m.RecordCorpusCacheLookup(true)
		m.RecordIndexBuild(0.8, 12, true)
		m.RecordGeneration(2.1, "gemini-2.5-flash", false)
		m.RecordCircuitBreakerState("gemini", "open")
	})
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/health", "success", 0)
		m.RecordIngest(0, "failed", "fallback", 0)
		m.RecordCorpusCacheLookup(false)
		m.RecordIndexBuild(0, 0, false)
	})
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(&config.Config{TracingEnabled: false})
	require.NoError(t, err)
	assert.NotPanics(t, func() { shutdown(context.Background()) })
}
