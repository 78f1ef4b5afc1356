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

package batching

import "github.com/amdinfer/inferd/pkg/types"

// SoftBatcher emits a batch as soon as one request is available, but
// opportunistically coalesces anything already queued, up to N. Unlike
// HardBatcher it never waits for a timeout to fill a batch.
type SoftBatcher struct {
	cfg Config
}

// NewSoftBatcher builds a SoftBatcher from cfg. cfg.BatchSize must be
// positive; cfg.FlushEvery is unused by this policy.
func NewSoftBatcher(cfg Config) *SoftBatcher {
	return &SoftBatcher{cfg: cfg}
}

func (sb *SoftBatcher) Run(in <-chan *types.InferenceRequest, out chan<- *Batch) {
	cfg := sb.cfg

	for {
		req, ok := <-in
		if !ok || req == nil {
			out <- nil
			return
		}

		batch := New(cfg.BatchSize)
		sb.addIfValid(batch, req)

		// Opportunistically coalesce whatever is already queued, without
		// blocking for more to arrive.
	drain:
		for batch.Len() < cfg.BatchSize {
			select {
			case next, ok := <-in:
				if !ok || next == nil {
					// Shutdown observed mid-coalesce: flush what we have,
					// then propagate the sentinel.
					finalizeBatch(cfg, batch, out)
					out <- nil
					return
				}
				sb.addIfValid(batch, next)
			default:
				break drain
			}
		}

		finalizeBatch(cfg, batch, out)
	}
}

// addIfValid validates req against the worker's declared metadata,
// failing it locally and leaving it out of batch on mismatch.
func (sb *SoftBatcher) addIfValid(batch *Batch, req *types.InferenceRequest) {
	cfg := sb.cfg
	if err := validateRequest(cfg, req); err != nil {
		req.RunCallbackError(err)
		return
	}
	batch.Add(req, startSpan(cfg, req), ingressTime(cfg))
}
