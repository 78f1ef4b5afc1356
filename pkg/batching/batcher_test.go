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

package batching

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/memorypool/allocators"
	"github.com/amdinfer/inferd/pkg/types"
)

func testConfig(batchSize int, flush time.Duration) Config {
	pool := memorypool.NewPool()
	pool.Register(allocators.NewCpu(types.AllocatorCpu))
	return Config{
		Pool:       pool,
		Allocators: []types.AllocatorKind{types.AllocatorCpu},
		InputMeta: []types.TensorMetadata{
			{Name: "input", Shape: []int64{1}, Dtype: types.DataTypeUint32},
		},
		OutputMeta: []types.TensorMetadata{
			{Name: "output", Shape: []int64{1}, Dtype: types.DataTypeUint32},
		},
		BatchSize:  batchSize,
		FlushEvery: flush,
		Model:      "echo",
	}
}

func newEchoRequest() *types.InferenceRequest {
	return types.NewInferenceRequest("echo", []types.Tensor{
		types.NewTensor("input", []int64{1}, types.DataTypeUint32),
	}, nil)
}

func TestHardBatcherAssemblesExactlyN(t *testing.T) {
	cfg := testConfig(2, time.Hour)
	hb := NewHardBatcher(cfg)

	in := make(chan *types.InferenceRequest)
	out := make(chan *Batch)
	go hb.Run(in, out)

	in <- newEchoRequest()
	in <- newEchoRequest()

	batch := <-out
	require.NotNil(t, batch)
	assert.Equal(t, 2, batch.Len())

	in <- nil
	require.Nil(t, <-out)
}

func TestHardBatcherFlushesOnTimeoutWithPartialBatch(t *testing.T) {
	cfg := testConfig(10, 20*time.Millisecond)
	hb := NewHardBatcher(cfg)

	in := make(chan *types.InferenceRequest)
	out := make(chan *Batch)
	go hb.Run(in, out)

	in <- newEchoRequest()

	select {
	case batch := <-out:
		require.NotNil(t, batch)
		assert.Equal(t, 1, batch.Len())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush")
	}

	in <- nil
	require.Nil(t, <-out)
}

func TestHardBatcherInvalidShapeFailsLocallyWithoutEnteringBatch(t *testing.T) {
	cfg := testConfig(1, time.Hour)
	hb := NewHardBatcher(cfg)

	in := make(chan *types.InferenceRequest)
	out := make(chan *Batch)
	go hb.Run(in, out)

	var mu sync.Mutex
	var got types.InferenceResponse
	req := types.NewInferenceRequest("echo", []types.Tensor{
		types.NewTensor("input", []int64{2}, types.DataTypeUint32), // wrong shape
	}, func(resp types.InferenceResponse) {
		mu.Lock()
		got = resp
		mu.Unlock()
	})
	in <- req

	// A valid request still must reach the batcher output.
	valid := newEchoRequest()
	in <- valid
	batch := <-out
	require.NotNil(t, batch)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, valid.ID, batch.Requests[0].ID)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, got.IsError())

	in <- nil
	require.Nil(t, <-out)
}

func TestSoftBatcherEmitsImmediatelyAndCoalesces(t *testing.T) {
	cfg := testConfig(4, time.Hour)
	sb := NewSoftBatcher(cfg)

	in := make(chan *types.InferenceRequest, 4)
	out := make(chan *Batch)
	go sb.Run(in, out)

	in <- newEchoRequest()
	in <- newEchoRequest()
	in <- newEchoRequest()

	batch := <-out
	require.NotNil(t, batch)
	assert.GreaterOrEqual(t, batch.Len(), 1)
	assert.LessOrEqual(t, batch.Len(), 4)

	in <- nil
	require.Nil(t, <-out)
}

func TestSoftBatcherNeverExceedsN(t *testing.T) {
	cfg := testConfig(2, time.Hour)
	sb := NewSoftBatcher(cfg)

	in := make(chan *types.InferenceRequest, 8)
	out := make(chan *Batch)
	go sb.Run(in, out)

	for i := 0; i < 6; i++ {
		in <- newEchoRequest()
	}

	seen := 0
	for seen < 6 {
		batch := <-out
		require.NotNil(t, batch)
		assert.LessOrEqual(t, batch.Len(), 2)
		seen += batch.Len()
	}

	in <- nil
	require.Nil(t, <-out)
}
