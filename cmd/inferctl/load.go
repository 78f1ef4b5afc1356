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
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var loadParams []string

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringArrayVarP(&loadParams, "param", "p", nil, "load parameter as key=value, repeatable")
}

var loadCmd = &cobra.Command{
	Use:   "load KIND",
	Short: "Load a worker of the given kind",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	params, err := parseParams(loadParams)
	if err != nil {
		return err
	}

	name, err := newAdminClient(addr).load(args[0], params)
	if err != nil {
		return err
	}
	fmt.Println(name)
	return nil
}

// parseParams turns "key=value" pairs into a JSON-friendly map,
// inferring bool and numeric types the way the admin route's
// loadRequest.toParameterMap expects to receive them.
func parseParams(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("inferctl: malformed --param %q, want key=value", pair)
		}
		out[k] = inferValue(v)
	}
	return out, nil
}

func inferValue(v string) interface{} {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
