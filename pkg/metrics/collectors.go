/*
Copyright 2025 The Aibrix Team.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors holds the fixed, always-registered dataplane metrics: one
// set of vectors shared by every model's batcher and worker runtime,
// keyed by the "model" label rather than by a dynamically registered
// metric name. Ad hoc, rarely-added metrics still go through
// SetGaugeMetric/IncrementCounterMetric; anything on the hot batching
// path uses these pre-built vectors instead, so the lookup in
// customGauges/customCounters never sits between a request and its
// worker.
type Collectors struct {
	QueueDepth      *prometheus.GaugeVec
	BatchSize       *prometheus.HistogramVec
	BatchFillLatency *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec
}

// NewCollectors registers the fixed dataplane vectors against reg. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests that need isolation.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inferd_queue_depth",
			Help: "Number of requests currently sitting in a model's ingress queue.",
		}, []string{"model"}),
		BatchSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inferd_batch_size",
			Help:    "Number of requests emitted per batch.",
			Buckets: prometheus.LinearBuckets(1, 4, 8),
		}, []string{"model"}),
		BatchFillLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inferd_batch_fill_latency_seconds",
			Help:    "Time between the first request entering a batch and the batch being emitted to the worker.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inferd_requests_total",
			Help: "Inference requests submitted per model.",
		}, []string{"model"}),
		RequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inferd_request_errors_total",
			Help: "Inference requests that completed with a non-nil error, by error kind.",
		}, []string{"model", "kind"}),
	}
}
