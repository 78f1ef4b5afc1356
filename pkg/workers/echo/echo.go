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

// Package echo holds the simplest worker kinds, used for smoke-testing a
// server build without any real model back-end: echo increments a single
// uint32 and echoMulti fans one batch's inputs out across several
// differently-shaped outputs.
package echo

import (
	"encoding/binary"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/amdinfer/inferd/pkg/batching"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/types"
	"github.com/amdinfer/inferd/pkg/worker"
)

func init() {
	worker.Register("echo", func() worker.Worker { return &Echo{} })
	worker.Register("echo_multi", func() worker.Worker { return &EchoMulti{} })
}

const defaultEchoBatchSize = 1
const defaultFlush = 100 * time.Millisecond

// rawBuffer is an ad hoc, non-pooled byte buffer for a single response
// tensor, the Go analogue of a local std::vector<std::byte>: it is
// produced once per response and never returned to a MemoryPool.
type rawBuffer struct {
	data []byte
}

func newRawBuffer(size int) *rawBuffer { return &rawBuffer{data: make([]byte, size)} }

func (b *rawBuffer) Allocator() types.AllocatorKind { return types.AllocatorCpu }
func (b *rawBuffer) Size() int                      { return len(b.data) }
func (b *rawBuffer) Data(offset int) []byte {
	if offset < 0 || offset > len(b.data) {
		return nil
	}
	return b.data[offset:]
}
func (b *rawBuffer) Write(value any, offset int) (int, error) {
	switch v := value.(type) {
	case uint32:
		binary.LittleEndian.PutUint32(b.data[offset:], v)
		return offset + 4, nil
	default:
		return offset, types.ErrInvalidArgument
	}
}

// Echo accepts any number of uint32 input tensors and returns the same
// number of output tensors, each one greater than its input. It exists
// to exercise the batching and worker-runtime machinery end to end
// without needing a real model backend.
type Echo struct {
	batchSize int
	logger    zerolog.Logger
}

func (e *Echo) DoInit(params types.ParameterMap) error {
	e.batchSize = int(params.IntOr("batch_size", defaultEchoBatchSize))
	return nil
}

func (e *Echo) DoAcquire(params types.ParameterMap) (types.ModelMetadata, error) {
	return types.ModelMetadata{
		Name:     "echo",
		Platform: "echo",
		Inputs: []types.TensorMetadata{
			{Name: "input", Shape: []int64{1}, Dtype: types.DataTypeUint32},
		},
		Outputs: []types.TensorMetadata{
			{Name: "output", Shape: []int64{1}, Dtype: types.DataTypeUint32},
		},
	}, nil
}

func (e *Echo) GetAllocators() []types.AllocatorKind {
	return []types.AllocatorKind{types.AllocatorCpu, types.AllocatorCpuPinned}
}

func (e *Echo) MakeBatcher(pool *memorypool.Pool) batching.Batcher {
	return batching.NewHardBatcher(batching.Config{
		Pool:       pool,
		Allocators: e.GetAllocators(),
		InputMeta: []types.TensorMetadata{
			{Name: "input", Shape: []int64{1}, Dtype: types.DataTypeUint32},
		},
		OutputMeta: []types.TensorMetadata{
			{Name: "output", Shape: []int64{1}, Dtype: types.DataTypeUint32},
		},
		BatchSize:   e.batchSize,
		FlushEvery:  defaultFlush,
		Logger:      e.logger,
		Model:       "echo",
		EnableTrace: true,
		Tracer:      otel.Tracer("inferd/echo"),
	})
}

func (e *Echo) DoRun(in <-chan *batching.Batch, pool *memorypool.Pool) {
	for batch := range in {
		if batch == nil {
			return
		}
		for _, req := range batch.Requests {
			outputs := make([]types.Tensor, 0, len(req.Inputs))
			for i, input := range req.Inputs {
				value := readUint32(input)
				value++

				outName := "output"
				if i < len(req.Outputs) && req.Outputs[i].Name != "" {
					outName = req.Outputs[i].Name
				} else if input.Name != "" {
					outName = input.Name
				}

				out := types.NewTensor(outName, []int64{1}, types.DataTypeUint32)
				buf := newRawBuffer(4)
				_, _ = buf.Write(value, 0)
				out.Data = buf
				outputs = append(outputs, out)
			}

			req.RunCallbackOnce(types.InferenceResponse{
				ID:      req.ID,
				Model:   "echo",
				Outputs: outputs,
			})
		}
		releaseBatch(pool, batch)
	}
}

func (e *Echo) DoRelease() {}
func (e *Echo) DoDestroy() {}

func readUint32(t types.Tensor) uint32 {
	if t.Data == nil {
		return 0
	}
	raw := t.Data.Data(t.Offset)
	if len(raw) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(raw)
}

func releaseBatch(pool *memorypool.Pool, batch *batching.Batch) {
	for _, buf := range batch.InputBuffers {
		pool.Put(buf)
	}
	for _, buf := range batch.OutputBuffers {
		pool.Put(buf)
	}
	batch.EndTraces()
}
