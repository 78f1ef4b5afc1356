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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeaseWithEmptyAddrIsNil(t *testing.T) {
	assert.Nil(t, NewLease("", 0))
}

func TestNilLeaseAcquireAndReleaseAreNoops(t *testing.T) {
	var l *Lease

	token, err := l.Acquire(context.Background(), "resnet")
	require.NoError(t, err)
	assert.Empty(t, token)

	assert.NoError(t, l.Release(context.Background(), "resnet", token))
	assert.NoError(t, l.Close())
}

func TestLeaseKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "inferd:lease:resnet", leaseKey("resnet"))
}
