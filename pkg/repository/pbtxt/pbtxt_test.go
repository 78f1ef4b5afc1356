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

package pbtxt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inferd/pkg/types"
)

const sample = `
# resnet50 descriptor
platform: "tensorflow_graphdef"

inputs {
  name: "input"
  data_type: "FP32"
  dims: [1, 224, 224, 3]
}

outputs {
  name: "output"
  data_type: "FP32"
  dims: [1, 1000]
}

parameters {
  key: "batch_size"
  value: "8"
}
`

func TestParseRoundTripsFields(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "tensorflow_graphdef", cfg.Platform)
	require.Len(t, cfg.Inputs, 1)
	assert.Equal(t, "input", cfg.Inputs[0].Name)
	assert.Equal(t, []int64{1, 224, 224, 3}, cfg.Inputs[0].Dims)
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, "output", cfg.Outputs[0].Name)
	assert.Equal(t, "8", cfg.Parameters["batch_size"])
}

func TestParseMissingPlatformFails(t *testing.T) {
	_, err := Parse([]byte(`inputs { name: "x" data_type: "FP32" dims: [1] }`))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestTensorMetadataResolvesDataType(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	meta, err := TensorMetadata(cfg.Inputs)
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.Equal(t, types.DataTypeFp32, meta[0].Dtype)
}

func TestTensorMetadataRejectsUnknownDataType(t *testing.T) {
	_, err := TensorMetadata([]TensorSpec{{Name: "x", DataType: "BOGUS"}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
