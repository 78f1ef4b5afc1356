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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDedupWithEmptyAddrIsNil(t *testing.T) {
	assert.Nil(t, NewDedup("", 0))
}

func TestNilDedupAlwaysAdmits(t *testing.T) {
	var d *Dedup

	first, err := d.Admit(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.Admit(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, first)

	assert.NoError(t, d.Close())
}

func TestDedupKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "inferd:dedup:req-1", dedupKey("req-1"))
}
