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

package allocators

import (
	"fmt"
	"sync"

	"github.com/amdinfer/inferd/pkg/types"
)

// RocmDevice models a ROCm device memory allocator. Without a live GPU
// binding available in this package, allocation is capacity-bounded
// host-side staging memory standing in for device memory; Capacity 0
// means unbounded, matching a host fallback used in CPU-only test
// environments.
type RocmDevice struct {
	mu        sync.Mutex
	capacity  int
	allocated int
	nextHandle uintptr
}

// NewRocmDevice builds a device allocator with the given total capacity in
// bytes. capacity <= 0 means unbounded.
func NewRocmDevice(capacity int) *RocmDevice {
	return &RocmDevice{capacity: capacity}
}

func (a *RocmDevice) Kind() types.AllocatorKind { return types.AllocatorRocmDevice }

func (a *RocmDevice) Alloc(size int) (types.Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capacity > 0 && a.allocated+size > a.capacity {
		return nil, fmt.Errorf("rocm device: cannot satisfy %d bytes (used %d/%d): %w",
			size, a.allocated, a.capacity, types.ErrOutOfMemory)
	}
	a.nextHandle++
	a.allocated += size
	return newDeviceBuffer(a.nextHandle, size), nil
}

func (a *RocmDevice) Free(buf types.Buffer) {
	b, ok := buf.(*deviceBuffer)
	if !ok {
		return
	}
	a.mu.Lock()
	a.allocated -= b.Size()
	if a.allocated < 0 {
		a.allocated = 0
	}
	a.mu.Unlock()
}
