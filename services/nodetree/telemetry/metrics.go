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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the instruments of the nodetree service.
//
// Description:
//
//	All metrics use the "nodetree_" prefix. Methods are safe to call on a
//	nil *Metrics and then record nothing.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks in-flight HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Tree Metrics ---

	// TreeQueriesTotal counts tree materializations by status.
	TreeQueriesTotal metric.Int64Counter

	// TreeQueryDuration records tree materialization duration in seconds.
	TreeQueryDuration metric.Float64Histogram

	// TreeNodes records the number of nodes per materialized tree.
	TreeNodes metric.Int64Histogram

	// RecordsRenderedTotal counts rendered node records by mode.
	RecordsRenderedTotal metric.Int64Counter

	// --- Change Tracking Metrics ---

	// ChangeQueriesTotal counts change tracker queries by operation and status.
	ChangeQueriesTotal metric.Int64Counter

	// ChangesSkippedTotal counts pending changes skipped as inconsistent, by reason.
	ChangesSkippedTotal metric.Int64Counter
}

// NewMetrics registers all instruments with meter.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter("nodetree"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"nodetree_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"nodetree_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"nodetree_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	m.TreeQueriesTotal, err = meter.Int64Counter(
		"nodetree_tree_queries_total",
		metric.WithDescription("Total tree materializations"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tree_queries_total: %w", err)
	}

	m.TreeQueryDuration, err = meter.Float64Histogram(
		"nodetree_tree_query_duration_seconds",
		metric.WithDescription("Tree materialization duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("create tree_query_duration: %w", err)
	}

	m.TreeNodes, err = meter.Int64Histogram(
		"nodetree_tree_nodes",
		metric.WithDescription("Nodes per materialized tree"),
		metric.WithUnit("{node}"),
		metric.WithExplicitBucketBoundaries(1, 10, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return nil, fmt.Errorf("create tree_nodes: %w", err)
	}

	m.RecordsRenderedTotal, err = meter.Int64Counter(
		"nodetree_records_rendered_total",
		metric.WithDescription("Total node records rendered"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create records_rendered_total: %w", err)
	}

	m.ChangeQueriesTotal, err = meter.Int64Counter(
		"nodetree_change_queries_total",
		metric.WithDescription("Total workspace change tracker queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create change_queries_total: %w", err)
	}

	m.ChangesSkippedTotal, err = meter.Int64Counter(
		"nodetree_changes_skipped_total",
		metric.WithDescription("Pending changes skipped because the graph no longer resolves them"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create changes_skipped_total: %w", err)
	}

	return m, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordTreeQuery records one tree materialization.
func (m *Metrics) RecordTreeQuery(ctx context.Context, started time.Time, nodes int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status(err)))
	m.TreeQueriesTotal.Add(ctx, 1, attrs)
	m.TreeQueryDuration.Record(ctx, time.Since(started).Seconds(), attrs)
	if err == nil {
		m.TreeNodes.Record(ctx, int64(nodes))
	}
}

// RecordRendered counts n rendered records of the given mode.
func (m *Metrics) RecordRendered(ctx context.Context, mode string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsRenderedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordChangeQuery records one change tracker operation.
func (m *Metrics) RecordChangeQuery(ctx context.Context, operation string, err error) {
	if m == nil {
		return
	}
	m.ChangeQueriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status(err)),
	))
}

// RecordSkippedChange counts one skipped pending change.
func (m *Metrics) RecordSkippedChange(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.ChangesSkippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordHTTPRequest records one finished HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", code),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// TrackActiveRequest increments the in-flight request gauge and returns
// the matching decrement.
func (m *Metrics) TrackActiveRequest(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.HTTPActiveRequests.Add(ctx, 1)
	return func() { m.HTTPActiveRequests.Add(ctx, -1) }
}
