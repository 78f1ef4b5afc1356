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

package echo

import (
	"encoding/binary"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/amdinfer/inferd/pkg/batching"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/types"
)

var echoMultiInputLengths = []int64{1, 2}
var echoMultiOutputLengths = []int64{1, 4, 3}

// EchoMulti declares a fixed, mismatched set of input and output shapes
// and cyclically replays the concatenated input elements across the
// output tensors, exercising fan-out batching with differently shaped
// tensors.
type EchoMulti struct {
	batchSize int
	logger    zerolog.Logger
}

func (e *EchoMulti) DoInit(params types.ParameterMap) error {
	e.batchSize = int(params.IntOr("batch_size", defaultEchoBatchSize))
	return nil
}

func (e *EchoMulti) DoAcquire(params types.ParameterMap) (types.ModelMetadata, error) {
	return types.ModelMetadata{
		Name:     "echo_multi",
		Platform: "echo_multi",
		Inputs:   e.inputMeta(),
		Outputs:  e.outputMeta(),
	}, nil
}

func (e *EchoMulti) inputMeta() []types.TensorMetadata {
	meta := make([]types.TensorMetadata, len(echoMultiInputLengths))
	for i, n := range echoMultiInputLengths {
		meta[i] = types.TensorMetadata{Name: "input" + strconv.Itoa(i), Shape: []int64{n}, Dtype: types.DataTypeUint32}
	}
	return meta
}

func (e *EchoMulti) outputMeta() []types.TensorMetadata {
	meta := make([]types.TensorMetadata, len(echoMultiOutputLengths))
	for i, n := range echoMultiOutputLengths {
		meta[i] = types.TensorMetadata{Name: "output" + strconv.Itoa(i), Shape: []int64{n}, Dtype: types.DataTypeUint32}
	}
	return meta
}

func (e *EchoMulti) GetAllocators() []types.AllocatorKind {
	return []types.AllocatorKind{types.AllocatorCpu, types.AllocatorCpuPinned}
}

func (e *EchoMulti) MakeBatcher(pool *memorypool.Pool) batching.Batcher {
	return batching.NewHardBatcher(batching.Config{
		Pool:       pool,
		Allocators: e.GetAllocators(),
		InputMeta:  e.inputMeta(),
		OutputMeta: e.outputMeta(),
		BatchSize:  e.batchSize,
		FlushEvery: defaultFlush,
		Logger:     e.logger,
		Model:      "echo_multi",
	})
}

func (e *EchoMulti) DoRun(in <-chan *batching.Batch, pool *memorypool.Pool) {
	for batch := range in {
		if batch == nil {
			return
		}
		for _, req := range batch.Requests {
			args := make([]uint32, 0, totalLength(echoMultiInputLengths))
			for i, input := range req.Inputs {
				if i >= len(echoMultiInputLengths) {
					break
				}
				args = append(args, readUint32Elements(input, int(echoMultiInputLengths[i]))...)
			}
			if len(args) == 0 {
				req.RunCallbackError(types.ErrInvalidArgument)
				continue
			}

			outputs := make([]types.Tensor, 0, len(echoMultiOutputLengths))
			argIndex := 0
			for i, length := range echoMultiOutputLengths {
				buf := newRawBuffer(int(length) * 4)
				for k := int64(0); k < length; k++ {
					_, _ = buf.Write(args[argIndex%len(args)], int(k)*4)
					argIndex++
				}
				out := types.NewTensor("output"+strconv.Itoa(i), []int64{length}, types.DataTypeUint32)
				out.Data = buf
				outputs = append(outputs, out)
			}

			req.RunCallbackOnce(types.InferenceResponse{
				ID:      req.ID,
				Model:   "echo_multi",
				Outputs: outputs,
			})
		}
		releaseBatch(pool, batch)
	}
}

func (e *EchoMulti) DoRelease() {}
func (e *EchoMulti) DoDestroy() {}

func readUint32Elements(t types.Tensor, n int) []uint32 {
	out := make([]uint32, n)
	if t.Data == nil {
		return out
	}
	raw := t.Data.Data(t.Offset)
	for i := 0; i < n; i++ {
		if (i+1)*4 > len(raw) {
			break
		}
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out
}

func totalLength(lengths []int64) int {
	var total int64
	for _, n := range lengths {
		total += n
	}
	return int(total)
}
