// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the permission resolution engine.
var (
	// resolveDuration tracks the latency of full resolution calls.
	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perm_resolve_duration_seconds",
		Help:    "Histogram of permission resolution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// metadataCacheLookups counts metadata cache lookups by outcome.
	metadataCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perm_metadata_cache_lookups_total",
		Help: "Total number of metadata cache lookups",
	}, []string{"kind", "outcome"})

	// expiredMemberships counts memberships removed by the expiration
	// scheduler.
	expiredMemberships = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perm_expired_memberships_total",
		Help: "Total number of group memberships removed on expiration",
	})

	// refreshQueueDepth tracks players waiting for a permission refresh.
	refreshQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perm_refresh_queue_depth",
		Help: "Number of players queued for a permission refresh",
	})
)
