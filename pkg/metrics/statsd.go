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
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog"
)

// StatsdSink mirrors the Prometheus collectors onto a StatsD/DogStatsD
// agent, for deployments that already ship a telegraf or datadog-agent
// sidecar instead of scraping /metrics. It is optional: a nil *StatsdSink
// is safe to call every method on, so callers can wire it unconditionally
// and simply not construct one when no agent address is configured.
type StatsdSink struct {
	client *statsd.Client
	tags   []string
	logger zerolog.Logger
}

// NewStatsdSink dials addr (host:port of a dogstatsd-compatible agent)
// and tags every metric with globalTags. Dialing a UDP statsd endpoint
// does not itself fail on a missing agent, so the returned error only
// reflects malformed configuration, not agent reachability.
func NewStatsdSink(addr string, globalTags []string, logger zerolog.Logger) (*StatsdSink, error) {
	client, err := statsd.New(addr, statsd.WithTags(globalTags))
	if err != nil {
		return nil, err
	}
	return &StatsdSink{client: client, tags: globalTags, logger: logger}, nil
}

func (s *StatsdSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *StatsdSink) QueueDepth(model string, depth int64) {
	if s == nil {
		return
	}
	s.gauge("inferd.queue_depth", float64(depth), model)
}

func (s *StatsdSink) BatchEmitted(model string, size int, fillLatency time.Duration) {
	if s == nil {
		return
	}
	s.gauge("inferd.batch_size", float64(size), model)
	s.timing("inferd.batch_fill_latency", fillLatency, model)
}

func (s *StatsdSink) RequestCompleted(model string, errKind string) {
	if s == nil {
		return
	}
	tags := []string{"model:" + model}
	if errKind != "" {
		tags = append(tags, "kind:"+errKind)
	}
	if err := s.client.Count("inferd.requests_total", 1, tags, 1); err != nil {
		s.logger.Warn().Err(err).Msg("statsd count failed")
	}
}

func (s *StatsdSink) gauge(name string, value float64, model string) {
	if err := s.client.Gauge(name, value, []string{"model:" + model}, 1); err != nil {
		s.logger.Warn().Err(err).Msg("statsd gauge failed")
	}
}

func (s *StatsdSink) timing(name string, value time.Duration, model string) {
	if err := s.client.Timing(name, value, []string{"model:" + model}, 1); err != nil {
		s.logger.Warn().Err(err).Msg("statsd timing failed")
	}
}
