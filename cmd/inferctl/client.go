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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// adminClient talks to a running inferd process's httpadmin surface.
// It never touches the gRPC inference path; inferctl is a control-plane
// tool, not a benchmarking client.
type adminClient struct {
	baseURL string
	http    *http.Client
}

func newAdminClient(baseURL string) *adminClient {
	return &adminClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Message string `json:"error"`
}

func (c *adminClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inferctl: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Message != "" {
			return fmt.Errorf("inferctl: %s %s: %s", method, path, apiErr.Message)
		}
		return fmt.Errorf("inferctl: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *adminClient) load(kind string, params map[string]interface{}) (string, error) {
	body := struct {
		Parameters map[string]interface{} `json:"parameters"`
	}{Parameters: params}

	var out struct {
		Name string `json:"name"`
	}
	if err := c.do(http.MethodPost, "/v2/repository/models/"+kind+"/load", body, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

func (c *adminClient) unload(name string) error {
	return c.do(http.MethodPost, "/v2/repository/models/"+name+"/unload", nil, nil)
}

func (c *adminClient) list() ([]string, error) {
	var out struct {
		Models []string `json:"models"`
	}
	if err := c.do(http.MethodGet, "/v2/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *adminClient) ready(name string) (bool, error) {
	var out struct {
		Ready bool `json:"ready"`
	}
	if err := c.do(http.MethodGet, "/v2/models/"+name+"/ready", nil, &out); err != nil {
		return false, err
	}
	return out.Ready, nil
}

func (c *adminClient) live() (bool, error) {
	var out struct {
		Live bool `json:"live"`
	}
	if err := c.do(http.MethodGet, "/v2/health/live", nil, &out); err != nil {
		return false, err
	}
	return out.Live, nil
}
