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

// Command inferctl is a control-plane client for a running inferd
// process: load and unload workers, list loaded endpoints, and check
// readiness, all against the admin HTTP surface rather than the gRPC
// inference path.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addr string

var rootCmd = &cobra.Command{
	Use:   "inferctl",
	Short: "Control-plane client for inferd",
	Long:  "inferctl drives a running inferd process's load/unload/list/ready admin routes.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", defaultAddr(), "inferd admin address, e.g. http://localhost:8000")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAddr() string {
	if v := os.Getenv("INFERCTL_ADDR"); v != "" {
		return v
	}
	return "http://localhost:8000"
}
