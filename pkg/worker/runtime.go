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

package worker

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amdinfer/inferd/pkg/batching"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/metrics"
	"github.com/amdinfer/inferd/pkg/types"
)

const (
	defaultQueueDepth = 64
	defaultBatchSize  = 1
)

// Runtime owns one running worker instance: its plug-in, its dedicated
// goroutine, its ingress request queue feeding a Batcher, its batch
// queue feeding the worker, and its lifecycle state machine.
type Runtime struct {
	Kind string

	mu    sync.Mutex
	state State

	impl     Worker
	pool     *memorypool.Pool
	logger   zerolog.Logger
	metadata types.ModelMetadata

	ingress chan *types.InferenceRequest
	batches chan *batching.Batch
	done    chan struct{}
	crashed bool

	collectors *metrics.Collectors
	statsd     *metrics.StatsdSink
}

// New builds a Runtime for kind backed by impl, sharing pool for buffer
// allocation.
func New(kind string, impl Worker, pool *memorypool.Pool, logger zerolog.Logger) *Runtime {
	return &Runtime{
		Kind:   kind,
		impl:   impl,
		pool:   pool,
		logger: logger,
		state:  Uninitialized,
	}
}

// WithMetrics installs the Prometheus collectors and/or StatsD mirror
// this runtime reports ingress queue depth and batch fill metrics to.
// Either argument may be nil.
func (wr *Runtime) WithMetrics(collectors *metrics.Collectors, statsd *metrics.StatsdSink) *Runtime {
	wr.collectors = collectors
	wr.statsd = statsd
	return wr
}

// State returns the runtime's current lifecycle state.
func (wr *Runtime) State() State {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return wr.state
}

// Metadata returns the tensor metadata declared during Acquire.
func (wr *Runtime) Metadata() types.ModelMetadata {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return wr.metadata
}

func (wr *Runtime) transition(from, to State) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.state != from {
		return fmt.Errorf("worker %s: cannot move %s -> %s from state %s: %w",
			wr.Kind, from, to, wr.state, types.ErrFailedPrecondition)
	}
	wr.state = to
	return nil
}

// Init drives the worker through doInit: pure setup, no external
// resources. Uninitialized -> Initialized.
func (wr *Runtime) Init(params types.ParameterMap) error {
	if err := wr.impl.DoInit(params); err != nil {
		return fmt.Errorf("worker %s: init: %w", wr.Kind, err)
	}
	return wr.transition(Uninitialized, Initialized)
}

// Acquire drives the worker through doAcquire: allocates external
// resources and populates the declared tensor metadata. Initialized ->
// Acquired.
func (wr *Runtime) Acquire(params types.ParameterMap) error {
	meta, err := wr.impl.DoAcquire(params)
	if err != nil {
		return fmt.Errorf("worker %s: acquire: %w", wr.Kind, err)
	}
	wr.mu.Lock()
	wr.metadata = meta
	wr.mu.Unlock()
	return wr.transition(Initialized, Acquired)
}

// Spawn builds the worker's batcher, starts the batcher and worker
// goroutines, and moves Acquired -> Running.
func (wr *Runtime) Spawn() error {
	if err := wr.transition(Acquired, Running); err != nil {
		return err
	}

	batcher := wr.impl.MakeBatcher(wr.pool)
	wr.ingress = make(chan *types.InferenceRequest, defaultQueueDepth)
	wr.batches = make(chan *batching.Batch, 1)
	wr.done = make(chan struct{})

	produced := make(chan *batching.Batch, 1)
	go batcher.Run(wr.ingress, produced)
	go wr.forwardBatches(produced)
	go wr.runWorker()
	return nil
}

// forwardBatches sits between the batcher and the worker goroutine,
// recording batch-size and fill-latency metrics for every batch the
// batcher emits before handing it on to DoRun unchanged.
func (wr *Runtime) forwardBatches(produced <-chan *batching.Batch) {
	for batch := range produced {
		if batch != nil {
			wr.recordBatchMetrics(batch)
		}
		wr.batches <- batch
		if batch == nil {
			return
		}
	}
}

func (wr *Runtime) recordBatchMetrics(batch *batching.Batch) {
	var fill time.Duration
	if len(batch.StartTimes) > 0 {
		fill = time.Since(batch.StartTimes[0])
	}
	if wr.collectors != nil {
		wr.collectors.BatchSize.WithLabelValues(wr.Kind).Observe(float64(batch.Len()))
		wr.collectors.BatchFillLatency.WithLabelValues(wr.Kind).Observe(fill.Seconds())
	}
	wr.statsd.BatchEmitted(wr.Kind, batch.Len(), fill)
}

// reportQueueDepth publishes the current ingress queue length after a
// successful Submit.
func (wr *Runtime) reportQueueDepth() {
	depth := float64(len(wr.ingress))
	if wr.collectors != nil {
		wr.collectors.QueueDepth.WithLabelValues(wr.Kind).Set(depth)
	}
	wr.statsd.QueueDepth(wr.Kind, int64(depth))
}

// runWorker wraps the plug-in's DoRun with panic recovery: only
// unrecoverable errors may terminate the run loop early, and when that
// happens every request still waiting in the ingress queue must be
// failed with Unavailable before the goroutine exits.
func (wr *Runtime) runWorker() {
	defer close(wr.done)
	defer func() {
		if r := recover(); r != nil {
			wr.handleCrash(fmt.Errorf("worker %s: panic: %v", wr.Kind, r))
		}
	}()
	wr.impl.DoRun(wr.batches, wr.pool)
}

// handleCrash marks the runtime crashed and fails every request still
// sitting in the ingress queue (and any already-formed batch waiting for
// the worker) with Unavailable, since no worker goroutine remains to
// process them.
func (wr *Runtime) handleCrash(cause error) {
	wr.logger.Error().Err(cause).Str("kind", wr.Kind).Msg("worker crashed, draining pending requests")

	wr.mu.Lock()
	wr.crashed = true
	wr.mu.Unlock()

drainRequests:
	for {
		select {
		case req, ok := <-wr.ingress:
			if !ok || req == nil {
				break drainRequests
			}
			req.RunCallbackError(fmt.Errorf("worker %s unavailable: %w", wr.Kind, types.ErrUnavailable))
		default:
			break drainRequests
		}
	}

drainBatches:
	for {
		select {
		case batch := <-wr.batches:
			if batch == nil {
				break drainBatches
			}
			for _, req := range batch.Requests {
				req.RunCallbackError(fmt.Errorf("worker %s unavailable: %w", wr.Kind, types.ErrUnavailable))
			}
			for _, buf := range batch.InputBuffers {
				wr.pool.Put(buf)
			}
			for _, buf := range batch.OutputBuffers {
				wr.pool.Put(buf)
			}
		default:
			break drainBatches
		}
	}
}

// Crashed reports whether the worker's run loop terminated on an
// unrecoverable error rather than a clean shutdown.
func (wr *Runtime) Crashed() bool {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return wr.crashed
}

// Submit hands req to the runtime's ingress queue. Returns
// ErrFailedPrecondition if the runtime is not Running, and
// ErrResourceExhausted if the queue is full.
func (wr *Runtime) Submit(req *types.InferenceRequest) error {
	wr.mu.Lock()
	state := wr.state
	crashed := wr.crashed
	wr.mu.Unlock()

	if state != Running || crashed {
		return fmt.Errorf("worker %s: not running: %w", wr.Kind, types.ErrFailedPrecondition)
	}

	select {
	case wr.ingress <- req:
		wr.reportQueueDepth()
		return nil
	default:
		return fmt.Errorf("worker %s: ingress queue full: %w", wr.Kind, types.ErrResourceExhausted)
	}
}

// Stop signals shutdown by enqueueing the nil sentinel, waits for the
// worker goroutine to observe the propagated null batch and exit, then
// drives doRelease. Running -> Released.
func (wr *Runtime) Stop() error {
	wr.mu.Lock()
	if wr.state != Running {
		wr.mu.Unlock()
		return fmt.Errorf("worker %s: cannot stop from state %s: %w", wr.Kind, wr.state, types.ErrFailedPrecondition)
	}
	wr.mu.Unlock()

	wr.ingress <- nil
	<-wr.done

	wr.impl.DoRelease()
	return wr.transition(Running, Released)
}

// Destroy drives doDestroy, reversing Init. Released -> Destroyed.
func (wr *Runtime) Destroy() error {
	wr.impl.DoDestroy()
	return wr.transition(Released, Destroyed)
}

// Allocators forwards to the underlying worker's getAllocators().
func (wr *Runtime) Allocators() []types.AllocatorKind {
	return wr.impl.GetAllocators()
}
