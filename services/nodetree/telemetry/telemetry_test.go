// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("NODETREE_ENV", "")

	cfg := DefaultConfig()
	assert.Equal(t, "nodetree", cfg.ServiceName)
	assert.Equal(t, "none", cfg.TraceExporter)
	assert.Equal(t, "prometheus", cfg.MetricExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "development", cfg.Environment)
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("NODETREE_ENV", "production")

	cfg := DefaultConfig()
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.Equal(t, "production", cfg.Environment)
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_NoopExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_StdoutTracer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "carrier-pigeon"

	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)

	cfg.TraceExporter = "none"
	cfg.MetricExporter = "smoke-signals"
	_, err = Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestNewSampler(t *testing.T) {
	root := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       [16]byte{0xff, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		Name:          "tree",
	}
	assert.Equal(t, sdktrace.RecordAndSample, newSampler(1).ShouldSample(root).Decision)
	assert.Equal(t, sdktrace.Drop, newSampler(0).ShouldSample(root).Decision)
}

func TestNewResource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "nodetree-test"
	cfg.Environment = "ci"

	attrs := map[string]string{}
	for _, kv := range newResource(cfg).Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "nodetree-test", attrs["service.name"])
	assert.Equal(t, "ci", attrs["deployment.environment"])
}

func TestOTLPCredentials(t *testing.T) {
	creds, err := otlpCredentials("")
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)

	_, err = otlpCredentials("/nonexistent/ca.pem")
	assert.Error(t, err)
}

func metricNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTreeQuery(ctx, time.Now(), 12, nil)
	m.RecordRendered(ctx, "minimal", 12)
	m.RecordChangeQuery(ctx, "unpublished", errors.New("boom"))
	m.RecordSkippedChange(ctx, "node_not_found")
	m.RecordHTTPRequest(ctx, "POST", "/v1/nodetree/tree", 200, time.Millisecond)
	m.TrackActiveRequest(ctx)()

	names := metricNames(t, reader)
	for _, want := range []string{
		"nodetree_tree_queries_total",
		"nodetree_tree_query_duration_seconds",
		"nodetree_tree_nodes",
		"nodetree_records_rendered_total",
		"nodetree_change_queries_total",
		"nodetree_changes_skipped_total",
		"nodetree_http_requests_total",
		"nodetree_http_request_duration_seconds",
		"nodetree_http_active_requests",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordTreeQuery(ctx, time.Now(), 1, nil)
		m.RecordRendered(ctx, "full", 1)
		m.RecordChangeQuery(ctx, "targets", nil)
		m.RecordSkippedChange(ctx, "x")
		m.RecordHTTPRequest(ctx, "GET", "/", 200, 0)
	})
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))
	assert.Empty(t, TraceID(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	LoggerWithTrace(ctx, logger).Info("hello")
	assert.Contains(t, buf.String(), `"trace_id":"`+span.SpanContext().TraceID().String()+`"`)
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceID(ctx))
}

func TestRecordError_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(nil, errors.New("x"))
		SetSpanOK(nil)
	})

	_, span := StartSpan(context.Background(), "test", "op")
	defer span.End()
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	SetSpanOK(span)
}
