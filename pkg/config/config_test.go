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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv("INFERD_REPOSITORY_PATH", "/var/run/inferd/models")
	t.Setenv("INFERD_BATCH_DEFAULT_SIZE", "32")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/run/inferd/models", cfg.RepositoryPath)
	assert.Equal(t, 32, cfg.BatchDefaultSize)
	assert.Equal(t, 50*time.Millisecond, cfg.BatchDefaultTimeout)
}

func TestLoadUnknownFileReturnsError(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadAppliesInlineTomlOverrideLast(t *testing.T) {
	t.Setenv("INFERD_REPOSITORY_PATH", "/var/run/inferd/models")
	t.Setenv("INFERD_CONFIG_INLINE_TOML", `repository_path = "/mnt/models"
batch_default_size = 64`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/models", cfg.RepositoryPath)
	assert.Equal(t, 64, cfg.BatchDefaultSize)
}
