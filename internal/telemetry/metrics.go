package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	IngestDuration      metric.Float64Histogram
	ChunksCreated       metric.Int64Counter
	StorageFallbacks    metric.Int64Counter
	CorpusCacheLookups  metric.Int64Counter
	IndexBuildDuration  metric.Float64Histogram
	IndexedChunks       metric.Int64Gauge
	GenerationDuration  metric.Float64Histogram
	GenerationFailures  metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics(serviceName string) (*Metrics, error) {
	meter := otel.Meter(serviceName)
	m := &Metrics{}
	var err error

	if m.RequestCounter, err = meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.IngestDuration, err = meter.Float64Histogram(
		"rag.ingest.duration",
		metric.WithDescription("PDF ingestion duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.ChunksCreated, err = meter.Int64Counter(
		"rag.chunks.created",
		metric.WithDescription("Chunks produced by ingestion"),
	); err != nil {
		return nil, err
	}

	if m.StorageFallbacks, err = meter.Int64Counter(
		"rag.storage.fallbacks",
		metric.WithDescription("Durable writes that fell back to the in-memory store"),
	); err != nil {
		return nil, err
	}

	if m.CorpusCacheLookups, err = meter.Int64Counter(
		"rag.corpus_cache.lookups",
		metric.WithDescription("Corpus cache lookups by result"),
	); err != nil {
		return nil, err
	}

	if m.IndexBuildDuration, err = meter.Float64Histogram(
		"rag.index.build.duration",
		metric.WithDescription("Vector index build duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.IndexedChunks, err = meter.Int64Gauge(
		"rag.index.chunks",
		metric.WithDescription("Chunks in the current vector index"),
	); err != nil {
		return nil, err
	}

	if m.GenerationDuration, err = meter.Float64Histogram(
		"gemini.generation.duration",
		metric.WithDescription("Gemini generation latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.GenerationFailures, err = meter.Int64Counter(
		"gemini.generation.failures",
		metric.WithDescription("Failed Gemini generations"),
	); err != nil {
		return nil, err
	}

	if m.CircuitBreakerState, err = meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)
	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// RecordIngest records one ingestion attempt.
func (m *Metrics) RecordIngest(duration float64, status, backend string, chunks int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("ingest.status", status),
		attribute.String("storage.backend", backend),
	)
	m.IngestDuration.Record(context.Background(), duration, attrs)
	if chunks > 0 {
		m.ChunksCreated.Add(context.Background(), int64(chunks), attrs)
	}
}

func (m *Metrics) RecordStorageFallback(operation string) {
	if m == nil {
		return
	}
	m.StorageFallbacks.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("db.operation", operation)))
}

func (m *Metrics) RecordCorpusCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CorpusCacheLookups.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("cache.result", result)))
}

func (m *Metrics) RecordIndexBuild(duration float64, chunks int, success bool) {
	if m == nil {
		return
	}
	m.IndexBuildDuration.Record(context.Background(), duration,
		metric.WithAttributes(attribute.Bool("index.success", success)))
	if success {
		m.IndexedChunks.Record(context.Background(), int64(chunks))
	}
}

func (m *Metrics) RecordGeneration(duration float64, model string, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("gemini.model", model))
	m.GenerationDuration.Record(context.Background(), duration, attrs)
	if !success {
		m.GenerationFailures.Add(context.Background(), 1, attrs)
	}
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}
