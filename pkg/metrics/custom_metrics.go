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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// customGauges and customCounters back SetGaugeMetric/IncrementCounterMetric:
// an ad hoc metric registry for call sites that report a metric too
// rarely to earn a dedicated field on Collectors, registering each name
// against the default registerer the first time it's used.
var (
	customGauges   = make(map[string]*prometheus.GaugeVec)
	customGaugesMu sync.RWMutex

	customCounters   = make(map[string]*prometheus.CounterVec)
	customCountersMu sync.RWMutex
)

// SetGaugeMetric sets the gauge identified by name to value, registering
// it with help and labelNames on first use.
func SetGaugeMetric(name string, help string, value float64, labelNames []string, labelValues ...string) {
	customGaugesMu.RLock()
	gauge, ok := customGauges[name]
	customGaugesMu.RUnlock()

	if !ok {
		customGaugesMu.Lock()
		gauge, ok = customGauges[name]
		if !ok {
			gauge = promauto.NewGaugeVec(
				prometheus.GaugeOpts{Name: name, Help: help},
				labelNames,
			)
			customGauges[name] = gauge
		}
		customGaugesMu.Unlock()
	}

	gauge.WithLabelValues(labelValues...).Set(value)
}

// IncrementCounterMetric adds value to the counter identified by name,
// registering it with help and labelNames on first use.
func IncrementCounterMetric(name string, help string, value float64, labelNames []string, labelValues ...string) {
	customCountersMu.RLock()
	counter, ok := customCounters[name]
	customCountersMu.RUnlock()

	if !ok {
		customCountersMu.Lock()
		counter, ok = customCounters[name]
		if !ok {
			counter = promauto.NewCounterVec(
				prometheus.CounterOpts{Name: name, Help: help},
				labelNames,
			)
			customCounters[name] = counter
		}
		customCountersMu.Unlock()
	}

	counter.WithLabelValues(labelValues...).Add(value)
}
