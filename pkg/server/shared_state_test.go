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

package server

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inferd/pkg/endpoints"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/memorypool/allocators"
	"github.com/amdinfer/inferd/pkg/types"
	"github.com/amdinfer/inferd/pkg/worker"
	"github.com/amdinfer/inferd/pkg/workers/echo"
)

func newTestState(t *testing.T) (*SharedState, *endpoints.Endpoints) {
	t.Helper()
	kinds := worker.NewKinds()
	kinds.Register("echo", func() worker.Worker { return &echo.Echo{} })

	pool := memorypool.NewPool()
	pool.Register(allocators.NewCpu(types.AllocatorCpu))

	reg := endpoints.New(kinds, pool, zerolog.Nop())
	s := New(Snapshot{Name: "inferd", Version: "test"}, reg, nil, zerolog.Nop())
	return s, reg
}

func TestModelInferRoundTripsThroughEchoWorker(t *testing.T) {
	s, _ := newTestState(t)

	name, err := s.WorkerLoad("echo", types.ParameterMap{})
	require.NoError(t, err)

	ready, err := s.ModelReady(name)
	require.NoError(t, err)
	assert.True(t, ready)

	input := types.NewTensor("input", []int64{1}, types.DataTypeUint32)
	buf := allocMustBuffer(t)
	_, err = buf.Write(uint32(7), 0)
	require.NoError(t, err)
	input.Data = buf

	var mu sync.Mutex
	var resp types.InferenceResponse
	done := make(chan struct{})
	req := types.NewInferenceRequest("echo", []types.Tensor{input}, func(r types.InferenceResponse) {
		mu.Lock()
		resp = r
		mu.Unlock()
		close(done)
	})

	require.NoError(t, s.ModelInfer(name, NewRequestContainer(req)))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echo response")
	}

	mu.Lock()
	defer mu.Unlock()
	require.False(t, resp.IsError())
	require.Len(t, resp.Outputs, 1)
}

func TestModelInferUnknownNameFailsNotFound(t *testing.T) {
	s, _ := newTestState(t)
	req := types.NewInferenceRequest("echo", []types.Tensor{types.NewTensor("input", []int64{1}, types.DataTypeUint32)}, nil)
	err := s.ModelInfer("missing", NewRequestContainer(req))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestModelLoadWithoutResolverFailsNotFound(t *testing.T) {
	s, _ := newTestState(t)
	_, err := s.ModelLoad("resnet50")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestHasHardware(t *testing.T) {
	s, _ := newTestState(t)
	assert.True(t, s.HasHardware(types.AllocatorCpu, 1))
	assert.False(t, s.HasHardware(types.AllocatorRocmDevice, 1))
	assert.True(t, s.HasHardware(types.AllocatorRocmDevice, 0))
}

func TestWithDedupNilAdmitsEveryRequest(t *testing.T) {
	s, _ := newTestState(t)
	s.WithDedup(nil)

	name, err := s.WorkerLoad("echo", types.ParameterMap{})
	require.NoError(t, err)

	input := types.NewTensor("input", []int64{1}, types.DataTypeUint32)
	input.Data = allocMustBuffer(t)
	req := types.NewInferenceRequest("echo", []types.Tensor{input}, nil)

	require.NoError(t, s.ModelInfer(name, NewRequestContainer(req)))
	require.NoError(t, s.Close())
}

func TestWithMetricsNilIsSafe(t *testing.T) {
	s, _ := newTestState(t)
	s.WithMetrics(nil, nil)

	name, err := s.WorkerLoad("echo", types.ParameterMap{})
	require.NoError(t, err)

	input := types.NewTensor("input", []int64{1}, types.DataTypeUint32)
	input.Data = allocMustBuffer(t)
	req := types.NewInferenceRequest("echo", []types.Tensor{input}, nil)

	require.NoError(t, s.ModelInfer(name, NewRequestContainer(req)))
}

func TestWithHistoryNilIsSafe(t *testing.T) {
	s, _ := newTestState(t)
	s.WithHistory(nil)

	name, err := s.WorkerLoad("echo", types.ParameterMap{})
	require.NoError(t, err)

	input := types.NewTensor("input", []int64{1}, types.DataTypeUint32)
	input.Data = allocMustBuffer(t)
	req := types.NewInferenceRequest("echo", []types.Tensor{input}, nil)

	require.NoError(t, s.ModelInfer(name, NewRequestContainer(req)))
}

func allocMustBuffer(t *testing.T) types.Buffer {
	t.Helper()
	a := allocators.NewCpu(types.AllocatorCpu)
	buf, err := a.Alloc(4)
	require.NoError(t, err)
	return buf
}
