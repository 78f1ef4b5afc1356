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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inferd/pkg/types"
)

func TestCpuAllocRoundTrip(t *testing.T) {
	a := NewCpu(types.AllocatorCpu)
	buf, err := a.Alloc(4)
	require.NoError(t, err)

	_, err = buf.Write(uint32(42), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 0, 0, 0}, buf.Data(0))

	a.Free(buf)
	buf2, err := a.Alloc(4)
	require.NoError(t, err)
	assert.Equal(t, 4, buf2.Size())
}

func TestCpuAllocSpillsLargeBuffersThroughColdTier(t *testing.T) {
	a := NewCpu(types.AllocatorCpu)
	size := spillThreshold + 16

	buf, err := a.Alloc(size)
	require.NoError(t, err)
	_, err = buf.Write([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)

	a.Free(buf) // large enough to go through the zstd cold tier

	buf2, err := a.Alloc(size)
	require.NoError(t, err)
	assert.Equal(t, size, buf2.Size())
	assert.Equal(t, byte(1), buf2.Data(0)[0])
}

func TestVartTensorBufferStride(t *testing.T) {
	alloc := NewVartTensor(4)
	buf, err := alloc.Alloc(16)
	require.NoError(t, err)

	tb, ok := buf.(*tensorBuffer)
	require.True(t, ok)
	assert.Equal(t, 4, tb.BatchStride())
	assert.Equal(t, types.AllocatorVartTensor, buf.Allocator())
}
