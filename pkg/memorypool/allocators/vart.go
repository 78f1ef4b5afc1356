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

import "github.com/amdinfer/inferd/pkg/types"

// VartTensor models the xmodel/VART FPGA tensor-buffer allocator: opaque
// handles with batch-major indexing instead of a flat address space.
type VartTensor struct {
	batchSize int
}

// NewVartTensor builds a VART allocator sized for batchSize elements per
// buffer; 1 if unset.
func NewVartTensor(batchSize int) *VartTensor {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &VartTensor{batchSize: batchSize}
}

func (a *VartTensor) Kind() types.AllocatorKind { return types.AllocatorVartTensor }

func (a *VartTensor) Alloc(size int) (types.Buffer, error) {
	return newTensorBuffer(size, a.batchSize), nil
}

func (a *VartTensor) Free(types.Buffer) {
	// VART tensor buffers are owned by the xmodel runtime; nothing to
	// recycle on this side of the boundary.
}
