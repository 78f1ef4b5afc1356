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

package memorypool

import (
	"fmt"

	"github.com/amdinfer/inferd/pkg/types"
)

// Pool hands out Buffer handles of a requested size and allocator kind,
// and accepts them back for reuse. It is the single point where
// back-end-specific memory enters the dataplane.
type Pool struct {
	allocators *allocatorRegistry
}

// NewPool builds an empty pool. Callers register allocators with Register
// before the pool is used; inferd registers the built-in kinds at startup.
func NewPool() *Pool {
	return &Pool{allocators: newAllocatorRegistry()}
}

// Register adds an allocator under its own kind, overwriting any allocator
// previously registered for that kind.
func (p *Pool) Register(a Allocator) {
	p.allocators.register(a)
}

// Get picks the first allocator in candidates that is registered and can
// satisfy size = elements(input) * dtype.Size() * batchSize, and returns a
// Buffer from it. It fails with ErrAllocatorUnavailable if none of the
// candidates is registered, or the last-tried candidate's
// ErrOutOfMemory if it is registered but cannot satisfy the size.
func (p *Pool) Get(candidates []types.AllocatorKind, input types.Tensor, batchSize int) (types.Buffer, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("memorypool: no candidate allocators given: %w", types.ErrAllocatorUnavailable)
	}

	size := int(input.Elements()) * input.Dtype.Size() * batchSize
	if size <= 0 {
		size = input.Dtype.Size() * batchSize
	}

	var lastErr error
	registered := false
	for _, kind := range candidates {
		a, ok := p.allocators.get(kind)
		if !ok {
			continue
		}
		registered = true
		buf, err := a.Alloc(size)
		if err == nil {
			return buf, nil
		}
		lastErr = err
	}

	if !registered {
		return nil, fmt.Errorf("memorypool: no registered allocator among %v: %w", candidates, types.ErrAllocatorUnavailable)
	}
	return nil, lastErr
}

// Put returns buf to the allocator that produced it, for reuse.
func (p *Pool) Put(buf types.Buffer) {
	if buf == nil {
		return
	}
	a, ok := p.allocators.get(buf.Allocator())
	if !ok {
		return
	}
	a.Free(buf)
}
