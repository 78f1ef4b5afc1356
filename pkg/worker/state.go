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

package worker

// State is one point in the WorkerRuntime lifecycle. Runtime only moves
// forward through these states; it has no path from Released back to
// Acquired or Running.
type State int

const (
	Uninitialized State = iota
	Initialized
	Acquired
	Running
	Released
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Acquired:
		return "acquired"
	case Running:
		return "running"
	case Released:
		return "released"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
