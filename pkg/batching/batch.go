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

// Package batching assembles requests into worker-sized Batches under a
// time/size policy and hands them to a worker's ingress queue.
package batching

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/amdinfer/inferd/pkg/types"
)

// Batch is the mutable collection of requests a Batcher produces: the
// requests themselves, their paired input/output buffer sets, and
// optional per-request trace spans and ingress timestamps. A nil *Batch
// is the sentinel used to propagate worker shutdown through the queue.
type Batch struct {
	Requests      []*types.InferenceRequest
	InputBuffers  []types.Buffer
	OutputBuffers []types.Buffer

	// Traces and StartTimes, when non-nil, have exactly len(Requests)
	// entries: one trace span and one start time per request in the
	// batch, in the same order.
	Traces     []trace.Span
	StartTimes []time.Time
}

// New builds an empty batch with capacity for n requests.
func New(n int) *Batch {
	return &Batch{Requests: make([]*types.InferenceRequest, 0, n)}
}

// Add appends one request to the batch, along with its trace span and
// ingress timestamp if tracing/timing is enabled for this batch.
func (b *Batch) Add(req *types.InferenceRequest, span trace.Span, ingress time.Time) {
	b.Requests = append(b.Requests, req)
	if span != nil {
		b.Traces = append(b.Traces, span)
	}
	if !ingress.IsZero() {
		b.StartTimes = append(b.StartTimes, ingress)
	}
}

// Len returns the number of requests in the batch.
func (b *Batch) Len() int { return len(b.Requests) }

// Empty reports whether the batch has no requests.
func (b *Batch) Empty() bool { return len(b.Requests) == 0 }

// SetBuffers installs the input/output buffer sets the batcher reserved
// for this batch from the memory pool.
func (b *Batch) SetBuffers(inputs, outputs []types.Buffer) {
	b.InputBuffers = inputs
	b.OutputBuffers = outputs
}

// EndTraces finishes every trace span carried on the batch, called once
// the worker has produced responses for all requests.
func (b *Batch) EndTraces() {
	for _, span := range b.Traces {
		span.End()
	}
}
