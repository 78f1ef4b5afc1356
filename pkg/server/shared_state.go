/*
Copyright 2024 The Aibrix Team.

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

// Package server implements the SharedState façade: the single surface
// every front-end adapter (HTTP, gRPC, CLI) drives. It forwards load/
// unload/metadata calls to Endpoints and dispatches inference requests
// onto a model's WorkerRuntime ingress queue.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/amdinfer/inferd/pkg/endpoints"
	"github.com/amdinfer/inferd/pkg/history"
	"github.com/amdinfer/inferd/pkg/metrics"
	"github.com/amdinfer/inferd/pkg/types"
)

// ModelResolver turns a model-repository name into the worker kind and
// load parameters ModelLoad needs. pkg/repository implements this once
// a descriptor cache exists; SharedState only depends on the interface
// so it can be built and tested without a filesystem watcher running.
type ModelResolver interface {
	Resolve(modelName string) (kind string, params types.ParameterMap, err error)
}

// Snapshot is what ServerMetadata reports about this build.
type Snapshot struct {
	Name       string
	Version    string
	Extensions []string
}

// SharedState is the single façade every front-end adapter drives. It
// is built once per process and injected into every front-end adapter;
// it holds no package-level singleton state, so multiple SharedState
// instances never interfere with each other.
type SharedState struct {
	meta      Snapshot
	startedAt time.Time

	endpoints *endpoints.Endpoints
	resolver  ModelResolver
	logger    zerolog.Logger
	dedup     *Dedup
	history   *history.Sink

	collectors *metrics.Collectors
	statsd     *metrics.StatsdSink
}

// New builds a SharedState backed by reg. resolver may be nil; ModelLoad
// then always fails with NotFound.
func New(meta Snapshot, reg *endpoints.Endpoints, resolver ModelResolver, logger zerolog.Logger) *SharedState {
	return &SharedState{
		meta:      meta,
		startedAt: time.Now(),
		endpoints: reg,
		resolver:  resolver,
		logger:    logger,
	}
}

// WithDedup installs a distributed Dedup used to reject retried request
// IDs within a TTL window. Passing nil disables deduplication, which is
// also the default.
func (s *SharedState) WithDedup(dedup *Dedup) *SharedState {
	s.dedup = dedup
	return s
}

// WithHistory installs a Sink that records one audit entry per completed
// inference request. Passing nil disables recording, which is also the
// default.
func (s *SharedState) WithHistory(sink *history.Sink) *SharedState {
	s.history = sink
	return s
}

// WithMetrics installs the Prometheus collectors and/or StatsD mirror
// that ModelInfer reports request counts and error kinds to. Either
// argument may be nil.
func (s *SharedState) WithMetrics(collectors *metrics.Collectors, statsd *metrics.StatsdSink) *SharedState {
	s.collectors = collectors
	s.statsd = statsd
	return s
}

// ServerMetadata reports the build identity and available extensions.
func (s *SharedState) ServerMetadata() Snapshot { return s.meta }

// ServerLive reports whether the process is accepting connections at
// all; it is true from construction onward.
func (s *SharedState) ServerLive() bool { return true }

// ServerReady reports whether the server can currently serve inference,
// which for this façade is identical to ServerLive: there is no
// additional startup phase once New returns.
func (s *SharedState) ServerReady() bool { return true }

// ModelList returns every loaded endpoint name.
func (s *SharedState) ModelList() []string { return s.endpoints.List() }

// ModelReady reports whether name is loaded and its worker is Running.
func (s *SharedState) ModelReady(name string) (bool, error) {
	return s.endpoints.ModelReady(name)
}

// ModelMetadata returns the declared tensor shapes/dtypes for name.
func (s *SharedState) ModelMetadata(name string) (types.ModelMetadata, error) {
	return s.endpoints.Metadata(name)
}

// WorkerLoad instantiates (or reuses, per sharing rules) a worker of
// kind and returns its endpoint name.
func (s *SharedState) WorkerLoad(kind string, params types.ParameterMap) (string, error) {
	return s.endpoints.Load(kind, params)
}

// WorkerUnload and ModelUnload are the same operation under the two
// names the façade exposes it as.
func (s *SharedState) WorkerUnload(name string) error { return s.endpoints.Unload(name) }
func (s *SharedState) ModelUnload(name string) error   { return s.endpoints.Unload(name) }

// ModelLoad resolves modelName against the configured repository and
// loads the resulting worker kind, differing from WorkerLoad only in
// where the parameters come from.
func (s *SharedState) ModelLoad(modelName string) (string, error) {
	if s.resolver == nil {
		return "", fmt.Errorf("server: no model repository configured: %w", types.ErrNotFound)
	}
	kind, params, err := s.resolver.Resolve(modelName)
	if err != nil {
		return "", err
	}
	return s.endpoints.Load(kind, params)
}

// ModelInfer validates name is ready, then enqueues container's request
// onto its worker's ingress queue. The request's own callback, not this
// call, carries the eventual response.
func (s *SharedState) ModelInfer(name string, container RequestContainer) error {
	ready, err := s.endpoints.ModelReady(name)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("server: model %q not ready: %w", name, types.ErrFailedPrecondition)
	}

	req := container.Request
	if err := req.Validate(); err != nil {
		return err
	}

	first, err := s.dedup.Admit(context.Background(), req.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", string(req.ID)).Msg("server: dedup check failed, admitting request")
	}
	if !first {
		return fmt.Errorf("server: request %s already submitted: %w", req.ID, types.ErrAlreadyExists)
	}

	if s.history != nil || s.collectors != nil || s.statsd != nil {
		start := time.Now()
		original := req.Callback()
		req.SetCallback(func(resp types.InferenceResponse) {
			s.history.RecordResponse(resp, start)
			s.recordMetrics(resp)
			if original != nil {
				original(resp)
			}
		})
	}

	rt, err := s.endpoints.Runtime(name)
	if err != nil {
		return err
	}
	return rt.Submit(req)
}

// recordMetrics reports resp's completion against whichever of
// collectors/statsd are configured. Either or both may be nil.
func (s *SharedState) recordMetrics(resp types.InferenceResponse) {
	errKind := ""
	if resp.IsError() {
		errKind = types.KindOf(resp.Err).Error()
	}
	if s.collectors != nil {
		s.collectors.RequestsTotal.WithLabelValues(resp.Model).Inc()
		if resp.IsError() {
			s.collectors.RequestErrors.WithLabelValues(resp.Model, errKind).Inc()
		}
	}
	s.statsd.RequestCompleted(resp.Model, errKind)
}

// Close releases resources held by the façade's optional Dedup cache
// and history sink.
func (s *SharedState) Close() error {
	s.history.Close()
	return s.dedup.Close()
}

// HasHardware reports whether at least count instances of the given
// allocator kind's backing hardware are usable. This façade runs
// entirely on host-visible allocators (no device enumeration), so it
// answers from the allocator kind alone: CPU-family kinds are always
// available, device kinds are never available. A real device_allocator
// binding would answer this from its driver handle instead.
func (s *SharedState) HasHardware(kind types.AllocatorKind, count int) bool {
	if count <= 0 {
		return true
	}
	switch kind {
	case types.AllocatorCpu, types.AllocatorCpuPinned:
		return true
	default:
		return false
	}
}
