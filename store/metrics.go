// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plexus_store_mutations_total",
		Help: "Total applied mutations by store, entity kind and operation",
	}, []string{"store", "kind", "op"})

	mutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plexus_store_mutation_duration_seconds",
		Help:    "Mutation latency by store and operation",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"store", "op"})

	queryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plexus_store_query_duration_seconds",
		Help:    "Read/query latency by store and operation",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
	}, []string{"store", "op"})

	txCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plexus_store_tx_commits_total",
		Help: "Transaction commit outcomes by store",
	}, []string{"store", "outcome"})
)

func recordMutation(store, kind, op string, d time.Duration) {
	mutationsTotal.WithLabelValues(store, kind, op).Inc()
	mutationLatency.WithLabelValues(store, op).Observe(d.Seconds())
}

func recordQuery(store, op string, d time.Duration) {
	queryLatency.WithLabelValues(store, op).Observe(d.Seconds())
}

func recordTxOutcome(store, outcome string) {
	txCommits.WithLabelValues(store, outcome).Inc()
}
