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

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(liveCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every loaded endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := newAdminClient(addr).list()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready NAME",
	Short: "Report whether an endpoint is ready to serve inference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ready, err := newAdminClient(addr).ready(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ready)
		return nil
	},
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Report whether the inferd process is accepting connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		live, err := newAdminClient(addr).live()
		if err != nil {
			return err
		}
		fmt.Println(live)
		return nil
	},
}
