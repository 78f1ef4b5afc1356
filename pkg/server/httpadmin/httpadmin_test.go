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

package httpadmin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inferd/pkg/endpoints"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/memorypool/allocators"
	"github.com/amdinfer/inferd/pkg/server"
	"github.com/amdinfer/inferd/pkg/types"
	"github.com/amdinfer/inferd/pkg/worker"
	"github.com/amdinfer/inferd/pkg/workers/echo"
)

func newTestRouter() *httptest.Server {
	kinds := worker.NewKinds()
	kinds.Register("echo", func() worker.Worker { return &echo.Echo{} })
	pool := memorypool.NewPool()
	pool.Register(allocators.NewCpu(types.AllocatorCpu))
	reg := endpoints.New(kinds, pool, zerolog.Nop())
	state := server.New(server.Snapshot{Name: "inferd", Version: "test"}, reg, nil, zerolog.Nop())
	return httptest.NewServer(Router(state, zerolog.Nop()))
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestRouter()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadThenModelsListsIt(t *testing.T) {
	srv := newTestRouter()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v2/repository/models/echo/load", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/v2/models")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestModelReadyUnknownReturnsNotFound(t *testing.T) {
	srv := newTestRouter()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/models/does-not-exist/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoadWithInvalidKindReturnsNotFound(t *testing.T) {
	srv := newTestRouter()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v2/repository/models/unknown_kind/load",
		"application/json", strings.NewReader(`{"parameters":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
