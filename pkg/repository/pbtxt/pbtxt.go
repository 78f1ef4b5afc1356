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

// Package pbtxt parses a model's config.pbtxt descriptor: a small,
// flat text-format dialect carrying platform, inputs[], outputs[] and
// parameters{}. The grammar is a deliberate subset (scalar fields,
// repeated blocks, one level of map nesting) of the text-format
// protobuf a model-repository config would normally use, parsed with a
// hand-written scanner rather than google.golang.org/protobuf's
// prototext: prototext only accepts an actual generated proto.Message
// implementation, and synthesizing one without running protoc adds a
// full file-descriptor/dynamicpb detour for four fields.
package pbtxt

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/amdinfer/inferd/pkg/types"
)

// TensorSpec is one entry of an inputs[] or outputs[] block.
type TensorSpec struct {
	Name     string
	DataType string
	Dims     []int64
}

// ModelConfig is the parsed contents of a config.pbtxt file.
type ModelConfig struct {
	Platform   string
	Inputs     []TensorSpec
	Outputs    []TensorSpec
	Parameters map[string]string
}

// Parse reads a config.pbtxt document of the form:
//
//	platform: "tensorflow_graphdef"
//	inputs {
//	  name: "input"
//	  data_type: "UINT32"
//	  dims: [1]
//	}
//	parameters {
//	  key: "batch_size"
//	  value: "8"
//	}
func Parse(data []byte) (ModelConfig, error) {
	cfg := ModelConfig{Parameters: map[string]string{}}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "platform:"):
			cfg.Platform = stringValue(line)
		case strings.HasPrefix(line, "inputs"):
			spec, err := parseTensorBlock(scanner)
			if err != nil {
				return cfg, fmt.Errorf("pbtxt: inputs block: %w", err)
			}
			cfg.Inputs = append(cfg.Inputs, spec)
		case strings.HasPrefix(line, "outputs"):
			spec, err := parseTensorBlock(scanner)
			if err != nil {
				return cfg, fmt.Errorf("pbtxt: outputs block: %w", err)
			}
			cfg.Outputs = append(cfg.Outputs, spec)
		case strings.HasPrefix(line, "parameters"):
			key, value, err := parseParameterBlock(scanner)
			if err != nil {
				return cfg, fmt.Errorf("pbtxt: parameters block: %w", err)
			}
			cfg.Parameters[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	if cfg.Platform == "" {
		return cfg, fmt.Errorf("pbtxt: missing required field \"platform\": %w", types.ErrInvalidArgument)
	}
	return cfg, nil
}

func parseTensorBlock(scanner *bufio.Scanner) (TensorSpec, error) {
	var spec TensorSpec
	for scanner.Scan() {
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}
		if line == "}" {
			return spec, nil
		}
		switch {
		case strings.HasPrefix(line, "name:"):
			spec.Name = stringValue(line)
		case strings.HasPrefix(line, "data_type:"):
			spec.DataType = stringValue(line)
		case strings.HasPrefix(line, "dims:"):
			dims, err := parseDims(line)
			if err != nil {
				return spec, err
			}
			spec.Dims = dims
		}
	}
	return spec, fmt.Errorf("unterminated block: %w", types.ErrInvalidArgument)
}

func parseParameterBlock(scanner *bufio.Scanner) (key, value string, err error) {
	for scanner.Scan() {
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}
		if line == "}" {
			return key, value, nil
		}
		switch {
		case strings.HasPrefix(line, "key:"):
			key = stringValue(line)
		case strings.HasPrefix(line, "value:"):
			value = stringValue(line)
		}
	}
	return key, value, fmt.Errorf("unterminated block: %w", types.ErrInvalidArgument)
}

func stringValue(line string) string {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(rest), `"`)
}

func parseDims(line string) ([]int64, error) {
	_, rest, _ := strings.Cut(line, ":")
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "[")
	rest = strings.TrimSuffix(rest, "]")
	if rest == "" {
		return nil, nil
	}
	parts := strings.Split(rest, ",")
	dims := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid dim %q: %w", p, err)
		}
		dims = append(dims, n)
	}
	return dims, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		return line[:i]
	}
	return line
}

// TensorMetadata converts the parsed spec list into the types package's
// tensor-metadata shape, resolving each DataType string via
// types.ParseDataType.
func TensorMetadata(specs []TensorSpec) ([]types.TensorMetadata, error) {
	out := make([]types.TensorMetadata, 0, len(specs))
	for _, s := range specs {
		dt, ok := types.ParseDataType(s.DataType)
		if !ok {
			return nil, fmt.Errorf("pbtxt: tensor %q: unknown data_type %q: %w", s.Name, s.DataType, types.ErrInvalidArgument)
		}
		out = append(out, types.TensorMetadata{Name: s.Name, Shape: s.Dims, Dtype: dt})
	}
	return out, nil
}
