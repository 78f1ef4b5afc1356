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

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPostsParametersAndReturnsName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/repository/models/echo/load", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Parameters map[string]interface{} `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body.Parameters["share"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "echo-1"})
	}))
	defer srv.Close()

	name, err := newAdminClient(srv.URL).load("echo", map[string]interface{}{"share": true})
	require.NoError(t, err)
	assert.Equal(t, "echo-1", name)
}

func TestDoSurfacesAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer srv.Close()

	_, err := newAdminClient(srv.URL).ready("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListReturnsModelNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]string{"models": {"echo", "echo-1"}})
	}))
	defer srv.Close()

	names, err := newAdminClient(srv.URL).list()
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "echo-1"}, names)
}

func TestParseParamsInfersBoolsAndNumbers(t *testing.T) {
	params, err := parseParams([]string{"share=true", "batch_size=8", "name=resnet"})
	require.NoError(t, err)
	assert.Equal(t, true, params["share"])
	assert.Equal(t, 8.0, params["batch_size"])
	assert.Equal(t, "resnet", params["name"])
}

func TestParseParamsRejectsMalformedPair(t *testing.T) {
	_, err := parseParams([]string{"no-equals-sign"})
	assert.Error(t, err)
}
