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

// Package memorypool hands out typed, allocator-tagged Buffer handles for
// zero-copy request data. It is the single point where back-end-specific
// memory — pinned host memory for GPU DMA, FPGA tensor buffers — enters
// the dataplane.
package memorypool

import "github.com/amdinfer/inferd/pkg/types"

// Allocator produces and reclaims buffers of one AllocatorKind. A MemoryPool
// holds a registry of these, keyed by kind, and is free-threaded from the
// caller's perspective: Allocator implementations must be safe for
// concurrent Alloc/Free.
type Allocator interface {
	Kind() types.AllocatorKind
	// Alloc returns a Buffer of at least size bytes, or an error wrapping
	// types.ErrOutOfMemory if the allocator cannot satisfy the request.
	Alloc(size int) (types.Buffer, error)
	// Free returns a buffer previously produced by Alloc for reuse.
	Free(buf types.Buffer)
}
