// Package metrics holds the Prometheus collectors shared by the builder,
// the status client and the node service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DescriptorsBuilt counts descriptor builds by role and result.
	DescriptorsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvboot_descriptors_built_total",
			Help: "Descriptors rendered, by role and result.",
		},
		[]string{"role", "result"},
	)

	// StatusQueries counts status client queries by kind and result.
	StatusQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvboot_status_queries_total",
			Help: "Status queries issued, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	StatusQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvboot_status_query_duration_seconds",
			Help:    "Latency of status queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// RPCServed counts JSON-RPC calls answered by a node.
	RPCServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvboot_rpc_served_total",
			Help: "JSON-RPC calls served by the node, by method and result.",
		},
		[]string{"method", "result"},
	)
)
