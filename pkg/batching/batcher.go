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

package batching

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/types"
)

// Batcher consumes a request queue belonging to one worker and produces
// Batch objects onto that worker's batch queue, per a batching policy.
type Batcher interface {
	// Run blocks, pulling from in and pushing onto out, until in delivers
	// a nil request (the shutdown sentinel). On shutdown it flushes any
	// in-flight partial batch, then pushes a nil batch onto out and
	// returns.
	Run(in <-chan *types.InferenceRequest, out chan<- *Batch)
}

// Config carries everything a Batcher needs to size and validate batches:
// the worker's declared tensor metadata, the allocator kinds it accepts,
// and the batch-size/flush-timeout policy knobs.
type Config struct {
	Pool        *memorypool.Pool
	Allocators  []types.AllocatorKind
	InputMeta   []types.TensorMetadata
	OutputMeta  []types.TensorMetadata
	BatchSize   int
	FlushEvery  time.Duration
	Logger      zerolog.Logger
	Model       string
	EnableTrace bool
	EnableTime  bool
	Tracer      trace.Tracer
}

// startSpan opens a trace span for req if tracing is enabled and a tracer
// was configured, otherwise returns nil. The span is carried on the
// Batch so a worker can close it once the request's output is ready.
func startSpan(cfg Config, req *types.InferenceRequest) trace.Span {
	if !cfg.EnableTrace || cfg.Tracer == nil {
		return nil
	}
	_, span := cfg.Tracer.Start(context.Background(), cfg.Model+".batch")
	return span
}

// ingressTime returns time.Now() if timing is enabled, otherwise the
// zero time (which Batch.Add treats as "no timestamp recorded").
func ingressTime(cfg Config) time.Time {
	if cfg.EnableTime {
		return time.Now()
	}
	return time.Time{}
}

// validateRequest checks a request's input shapes against the worker's
// declared input metadata. A mismatch is an InvalidArgument failed
// locally via the request's own callback; the request never enters a
// batch.
func validateRequest(cfg Config, req *types.InferenceRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if len(cfg.InputMeta) == 0 {
		return nil
	}
	if len(req.Inputs) != len(cfg.InputMeta) {
		return fmt.Errorf("model %s: expected %d inputs, got %d: %w",
			cfg.Model, len(cfg.InputMeta), len(req.Inputs), types.ErrInvalidArgument)
	}
	for i, in := range req.Inputs {
		meta := cfg.InputMeta[i]
		if in.Dtype != meta.Dtype {
			return fmt.Errorf("model %s: input %q expected dtype %v, got %v: %w",
				cfg.Model, meta.Name, meta.Dtype, in.Dtype, types.ErrInvalidArgument)
		}
		if !in.SameShape(meta.Shape) {
			return fmt.Errorf("model %s: input %q expected shape %v, got %v: %w",
				cfg.Model, meta.Name, meta.Shape, in.Shape, types.ErrInvalidArgument)
		}
	}
	return nil
}

// reserveBuffers asks the pool for one input buffer per declared input
// tensor and one output buffer per declared output tensor, sized for
// batchSize requests, drawing allocators from cfg.Allocators.
func reserveBuffers(cfg Config, batchSize int) (inputs, outputs []types.Buffer, err error) {
	inputs = make([]types.Buffer, 0, len(cfg.InputMeta))
	for _, meta := range cfg.InputMeta {
		buf, allocErr := cfg.Pool.Get(cfg.Allocators, types.Tensor{Shape: meta.Shape, Dtype: meta.Dtype}, batchSize)
		if allocErr != nil {
			return nil, nil, allocErr
		}
		inputs = append(inputs, buf)
	}

	outputs = make([]types.Buffer, 0, len(cfg.OutputMeta))
	for _, meta := range cfg.OutputMeta {
		buf, allocErr := cfg.Pool.Get(cfg.Allocators, types.Tensor{Shape: meta.Shape, Dtype: meta.Dtype}, batchSize)
		if allocErr != nil {
			for _, b := range inputs {
				cfg.Pool.Put(b)
			}
			for _, b := range outputs {
				cfg.Pool.Put(b)
			}
			return nil, nil, allocErr
		}
		outputs = append(outputs, buf)
	}
	return inputs, outputs, nil
}

// finalizeBatch reserves buffers for the whole of b at once and pushes it
// onto out. If that reservation fails, every request in b is failed
// through its callback and the batch is dropped; no part of b is emitted.
func finalizeBatch(cfg Config, b *Batch, out chan<- *Batch) {
	if b.Empty() {
		return
	}
	inputs, outputs, err := reserveBuffers(cfg, b.Len())
	if err != nil {
		cfg.Logger.Warn().Err(err).Str("model", cfg.Model).Int("batch_size", b.Len()).
			Msg("failed to reserve buffers, failing batch")
		for _, req := range b.Requests {
			req.RunCallbackError(err)
		}
		b.EndTraces()
		return
	}
	b.SetBuffers(inputs, outputs)
	out <- b
}
