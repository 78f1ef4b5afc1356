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

package server

import "github.com/amdinfer/inferd/pkg/types"

// RequestContainer is the transport envelope a front-end adapter builds
// around one InferenceRequest before handing it to SharedState.ModelInfer.
// It carries only the request: any per-request trace span and ingress
// timestamp are attached later, by the model's Batcher, using the Tracer
// that the worker's MakeBatcher configured.
type RequestContainer struct {
	Request *types.InferenceRequest
}

// NewRequestContainer wraps req for submission to SharedState.ModelInfer.
func NewRequestContainer(req *types.InferenceRequest) RequestContainer {
	return RequestContainer{Request: req}
}
