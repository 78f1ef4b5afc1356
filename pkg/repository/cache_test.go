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

package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorCacheRoundTrip(t *testing.T) {
	cache, err := OpenDescriptorCache("")
	require.NoError(t, err)
	defer cache.Close()

	_, _, ok, err := cache.Lookup("/models/resnet", 100)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store("/models/resnet", 100, "tensorflow_graphdef", []byte("platform: \"tensorflow_graphdef\"")))

	raw, platform, ok, err := cache.Lookup("/models/resnet", 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tensorflow_graphdef", platform)
	assert.Contains(t, string(raw), "tensorflow_graphdef")
}

func TestDescriptorCacheMissOnMtimeChange(t *testing.T) {
	cache, err := OpenDescriptorCache("")
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Store("/models/resnet", 100, "tensorflow_graphdef", []byte("x")))

	_, _, ok, err := cache.Lookup("/models/resnet", 200)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescriptorCacheForget(t *testing.T) {
	cache, err := OpenDescriptorCache("")
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Store("/models/resnet", 100, "tensorflow_graphdef", []byte("x")))
	require.NoError(t, cache.Forget("/models/resnet"))

	_, _, ok, err := cache.Lookup("/models/resnet", 100)
	require.NoError(t, err)
	assert.False(t, ok)
}
