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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/amdinfer/inferd/pkg/types"
)

// poolBuffer backs the Cpu and CpuPinned allocator kinds: a flat byte
// slice with a stable address for its lifetime, recycled through a
// sync.Pool keyed by size. CpuPinned differs from Cpu only in the kind it
// reports; the pinning itself is a hint consumed by GPU DMA paths outside
// this package.
type poolBuffer struct {
	kind types.AllocatorKind
	raw  []byte
}

func newBuffer(kind types.AllocatorKind, raw []byte) *poolBuffer {
	return &poolBuffer{kind: kind, raw: raw}
}

func (b *poolBuffer) Allocator() types.AllocatorKind { return b.kind }
func (b *poolBuffer) Size() int                      { return len(b.raw) }

func (b *poolBuffer) Data(offset int) []byte {
	if offset < 0 || offset > len(b.raw) {
		return nil
	}
	return b.raw[offset:]
}

func (b *poolBuffer) Write(value any, offset int) (int, error) {
	return writeAt(b.raw, value, offset)
}

// writeAt encodes value into buf at offset, returning the new offset. It
// is shared by every contiguous-memory buffer variant (Cpu, CpuPinned,
// device staging). String values are null-terminated and advance the
// offset by len(value)+1.
func writeAt(buf []byte, value any, offset int) (int, error) {
	switch v := value.(type) {
	case string:
		n := copy(buf[offset:], v)
		buf[offset+n] = 0
		return offset + n + 1, nil
	case []byte:
		n := copy(buf[offset:], v)
		return offset + n, nil
	case bool:
		if v {
			buf[offset] = 1
		} else {
			buf[offset] = 0
		}
		return offset + 1, nil
	case uint8:
		buf[offset] = v
		return offset + 1, nil
	case int8:
		buf[offset] = byte(v)
		return offset + 1, nil
	case uint16:
		binary.LittleEndian.PutUint16(buf[offset:], v)
		return offset + 2, nil
	case int16:
		binary.LittleEndian.PutUint16(buf[offset:], uint16(v))
		return offset + 2, nil
	case uint32:
		binary.LittleEndian.PutUint32(buf[offset:], v)
		return offset + 4, nil
	case int32:
		binary.LittleEndian.PutUint32(buf[offset:], uint32(v))
		return offset + 4, nil
	case uint64:
		binary.LittleEndian.PutUint64(buf[offset:], v)
		return offset + 8, nil
	case int64:
		binary.LittleEndian.PutUint64(buf[offset:], uint64(v))
		return offset + 8, nil
	case float32:
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
		return offset + 4, nil
	case float64:
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(v))
		return offset + 8, nil
	default:
		return offset, fmt.Errorf("allocators: unsupported write value type %T: %w", value, types.ErrInvalidArgument)
	}
}

// deviceBuffer models memory on a ROCm device: the host side only ever
// sees a handle, and Data/Write here operate on a host-side staging copy
// that a real driver binding would DMA to/from the device.
type deviceBuffer struct {
	handle  uintptr
	staging []byte
}

func newDeviceBuffer(handle uintptr, size int) *deviceBuffer {
	return &deviceBuffer{handle: handle, staging: make([]byte, size)}
}

func (b *deviceBuffer) Allocator() types.AllocatorKind { return types.AllocatorRocmDevice }
func (b *deviceBuffer) Size() int                      { return len(b.staging) }
func (b *deviceBuffer) Data(offset int) []byte {
	if offset < 0 || offset > len(b.staging) {
		return nil
	}
	return b.staging[offset:]
}
func (b *deviceBuffer) Write(value any, offset int) (int, error) {
	return writeAt(b.staging, value, offset)
}

// tensorBuffer models an opaque FPGA (VART/xmodel) tensor-buffer handle
// with batch-major indexing.
type tensorBuffer struct {
	data        []byte
	batchStride int
}

func newTensorBuffer(size, batchSize int) *tensorBuffer {
	stride := size
	if batchSize > 0 {
		stride = size / batchSize
	}
	return &tensorBuffer{data: make([]byte, size), batchStride: stride}
}

func (b *tensorBuffer) Allocator() types.AllocatorKind { return types.AllocatorVartTensor }
func (b *tensorBuffer) Size() int                      { return len(b.data) }

func (b *tensorBuffer) Data(offset int) []byte {
	if offset < 0 || offset > len(b.data) {
		return nil
	}
	return b.data[offset:]
}

func (b *tensorBuffer) Write(value any, offset int) (int, error) {
	return writeAt(b.data, value, offset)
}

// BatchStride reports the per-batch-element byte stride for a
// VART-style tensor buffer, letting callers compute batch-major offsets
// as batchIndex*BatchStride()+elementOffset.
func (b *tensorBuffer) BatchStride() int { return b.batchStride }
