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

// Package worker owns a worker plug-in instance, its dedicated goroutine,
// its ingress batch queue, and its init -> acquire -> run -> release ->
// destroy lifecycle state machine.
package worker

import (
	"github.com/amdinfer/inferd/pkg/batching"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/types"
)

// Worker is the narrow plug-in boundary every worker kind implements:
// DoInit/DoAcquire/DoRun/DoRelease/DoDestroy/GetAllocators/MakeBatcher.
// No inheritance hierarchy is required, just this interface.
type Worker interface {
	// DoInit declares batch size and internal limits; pure setup, no
	// external resources.
	DoInit(params types.ParameterMap) error
	// DoAcquire allocates external resources (model weights, device
	// handles) and returns the tensor metadata this worker will declare
	// for modelMetadata().
	DoAcquire(params types.ParameterMap) (types.ModelMetadata, error)
	// GetAllocators lists, in preference order, the allocator kinds this
	// worker's back-end can consume directly.
	GetAllocators() []types.AllocatorKind
	// MakeBatcher builds the batcher this worker wants to run in front
	// of it. Workers may override the default HardBatcher policy.
	MakeBatcher(pool *memorypool.Pool) batching.Batcher
	// DoRun owns the dedicated goroutine: dequeue batches from in until a
	// nil sentinel, run inference, invoke each request's callback exactly
	// once (or runCallbackError on per-request failure), then return the
	// batch's buffers to pool. Only unrecoverable errors may cause DoRun
	// to return before observing the sentinel; Runtime treats that as a
	// worker crash and drains the remaining ingress queue itself.
	DoRun(in <-chan *batching.Batch, pool *memorypool.Pool)
	// DoRelease reverses DoAcquire.
	DoRelease()
	// DoDestroy reverses DoInit.
	DoDestroy()
}

// Factory constructs a fresh Worker instance for one worker kind.
type Factory func() Worker
