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
	"sync"

	"github.com/amdinfer/inferd/pkg/types"
)

// allocatorRegistry is a map of AllocatorKind -> Allocator guarded by an
// RWMutex; Get walks its candidates with one map lookup each.
type allocatorRegistry struct {
	mu    sync.RWMutex
	byKind map[types.AllocatorKind]Allocator
}

func newAllocatorRegistry() *allocatorRegistry {
	return &allocatorRegistry{byKind: make(map[types.AllocatorKind]Allocator)}
}

func (r *allocatorRegistry) register(a Allocator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[a.Kind()] = a
}

func (r *allocatorRegistry) get(kind types.AllocatorKind) (Allocator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byKind[kind]
	return a, ok
}
