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

// Package allocators implements the concrete Allocator kinds a MemoryPool
// can register: plain host memory, pinned host memory, ROCm device memory
// and opaque VART tensor buffers.
package allocators

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/amdinfer/inferd/pkg/types"
)

// spillThreshold is the buffer size, in bytes, above which a freed CPU
// buffer is zstd-compressed into the cold tier instead of sitting in the
// sync.Pool uncompressed. This bounds resident pool memory under bursty
// large-tensor load at the cost of a decompression on the next matching
// Alloc.
const spillThreshold = 1 << 20 // 1 MiB

// Cpu is the default allocator: plain host memory recycled through a
// per-size sync.Pool, with a zstd-backed cold tier for large buffers.
type Cpu struct {
	kind types.AllocatorKind

	mu    sync.Mutex
	pools map[int]*sync.Pool
	cold  map[int][]byte // size -> most recent zstd-compressed buffer

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCpu builds a host-memory allocator. kind lets the same implementation
// back both AllocatorCpu and AllocatorCpuPinned, since pinning is a hint
// consumed by GPU DMA paths outside this package, not a different byte
// layout.
func NewCpu(kind types.AllocatorKind) *Cpu {
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &Cpu{
		kind:    kind,
		pools:   make(map[int]*sync.Pool),
		cold:    make(map[int][]byte),
		encoder: enc,
		decoder: dec,
	}
}

func (a *Cpu) Kind() types.AllocatorKind { return a.kind }

func (a *Cpu) poolFor(size int) *sync.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pools[size]
	if !ok {
		p = &sync.Pool{New: func() any { return make([]byte, size) }}
		a.pools[size] = p
	}
	return p
}

func (a *Cpu) Alloc(size int) (types.Buffer, error) {
	if size <= 0 {
		return nil, nil
	}

	if raw := a.takeCold(size); raw != nil {
		return newBuffer(a.kind, raw), nil
	}

	buf := a.poolFor(size).Get().([]byte)
	if len(buf) != size {
		buf = make([]byte, size)
	}
	return newBuffer(a.kind, buf), nil
}

func (a *Cpu) takeCold(size int) []byte {
	a.mu.Lock()
	compressed, ok := a.cold[size]
	if ok {
		delete(a.cold, size)
	}
	a.mu.Unlock()
	if !ok {
		return nil
	}
	raw, err := a.decoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil || len(raw) != size {
		return nil
	}
	return raw
}

func (a *Cpu) Free(buf types.Buffer) {
	b, ok := buf.(*poolBuffer)
	if !ok {
		return
	}
	size := len(b.raw)
	if size >= spillThreshold {
		var dst bytes.Buffer
		a.encoder.Reset(&dst)
		_, _ = a.encoder.Write(b.raw)
		if err := a.encoder.Close(); err == nil {
			a.mu.Lock()
			a.cold[size] = append([]byte(nil), dst.Bytes()...)
			a.mu.Unlock()
			return
		}
	}
	a.poolFor(size).Put(b.raw)
}
