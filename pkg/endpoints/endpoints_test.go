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

package endpoints

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/memorypool/allocators"
	"github.com/amdinfer/inferd/pkg/types"
	"github.com/amdinfer/inferd/pkg/worker"
	"github.com/amdinfer/inferd/pkg/workers/echo"
)

func newTestRegistry() *Endpoints {
	kinds := worker.NewKinds()
	kinds.Register("echo", func() worker.Worker { return &echo.Echo{} })

	pool := memorypool.NewPool()
	pool.Register(allocators.NewCpu(types.AllocatorCpu))

	return New(kinds, pool, zerolog.Nop())
}

func TestLoadUnloadRoundTrip(t *testing.T) {
	reg := newTestRegistry()

	name, err := reg.Load("echo", types.ParameterMap{})
	require.NoError(t, err)
	assert.Equal(t, "echo", name)

	ready, err := reg.ModelReady(name)
	require.NoError(t, err)
	assert.True(t, ready)

	require.NoError(t, reg.Unload(name))

	_, err = reg.ModelReady(name)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLoadTwiceWithSharingReusesEndpoint(t *testing.T) {
	reg := newTestRegistry()

	name1, err := reg.Load("echo", types.ParameterMap{})
	require.NoError(t, err)
	name2, err := reg.Load("echo", types.ParameterMap{})
	require.NoError(t, err)

	assert.Equal(t, name1, name2)

	// Two loads outstanding; one unload must not tear the worker down.
	require.NoError(t, reg.Unload(name1))
	ready, err := reg.ModelReady(name2)
	require.NoError(t, err)
	assert.True(t, ready)

	require.NoError(t, reg.Unload(name2))
	_, err = reg.ModelReady(name1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLoadWithoutSharingGetsDistinctNames(t *testing.T) {
	reg := newTestRegistry()

	params := types.ParameterMap{"share": types.BoolParameter(false)}
	name1, err := reg.Load("echo", params)
	require.NoError(t, err)
	name2, err := reg.Load("echo", params)
	require.NoError(t, err)

	assert.NotEqual(t, name1, name2)
}

func TestConcurrentLoadsWithSameKeyProduceOneWorker(t *testing.T) {
	reg := newTestRegistry()

	const n = 8
	names := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			name, err := reg.Load("echo", types.ParameterMap{})
			require.NoError(t, err)
			names[i] = name
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, names[0], names[i])
	}
	assert.Len(t, reg.List(), 1)
}

func TestConcurrentUnsharedLoadsProduceIndependentWorkers(t *testing.T) {
	reg := newTestRegistry()
	params := types.ParameterMap{"share": types.BoolParameter(false)}

	const n = 8
	names := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			name, err := reg.Load("echo", params)
			require.NoError(t, err)
			names[i] = name
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, name := range names {
		assert.False(t, seen[name], "unshared loads must never be handed back the same endpoint name")
		seen[name] = true
	}
	assert.Len(t, reg.List(), n)

	require.NoError(t, reg.Unload(names[0]))
	ready, err := reg.ModelReady(names[1])
	require.NoError(t, err)
	assert.True(t, ready, "unloading one unshared endpoint must not affect another")
}

func TestUnloadUnknownEndpointFailsNotFound(t *testing.T) {
	reg := newTestRegistry()
	err := reg.Unload("does-not-exist")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestWithLeaseNilDisablesCrossProcessSerialization(t *testing.T) {
	reg := newTestRegistry().WithLease(nil)

	name, err := reg.Load("echo", types.ParameterMap{})
	require.NoError(t, err)
	assert.Equal(t, "echo", name)
	require.NoError(t, reg.Unload(name))
}

func TestWithEventsNilIsSafe(t *testing.T) {
	reg := newTestRegistry().WithEvents(nil)

	name, err := reg.Load("echo", types.ParameterMap{})
	require.NoError(t, err)
	require.NoError(t, reg.Unload(name))
}
