// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// nodeCacheLookups counts node cache lookups by result (hit|miss).
	nodeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodetree_store_node_cache_lookups_total",
		Help: "Node cache lookups in the projection store by result",
	}, []string{"result"})

	nodeCacheHits   = nodeCacheLookups.WithLabelValues("hit")
	nodeCacheMisses = nodeCacheLookups.WithLabelValues("miss")
)

// nodeCacheObserver feeds cache outcomes to Prometheus.
type nodeCacheObserver struct{}

func (nodeCacheObserver) Hit()  { nodeCacheHits.Inc() }
func (nodeCacheObserver) Miss() { nodeCacheMisses.Inc() }
