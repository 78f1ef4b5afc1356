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

import (
	"time"

	"github.com/amdinfer/inferd/pkg/types"
)

// HardBatcher is the default policy: assemble exactly N requests, or
// flush on timeout T. On flush, any partial batch already assembled is
// emitted as-is.
type HardBatcher struct {
	cfg Config
}

// NewHardBatcher builds a HardBatcher from cfg. cfg.BatchSize and
// cfg.FlushEvery must both be positive.
func NewHardBatcher(cfg Config) *HardBatcher {
	return &HardBatcher{cfg: cfg}
}

func (hb *HardBatcher) Run(in <-chan *types.InferenceRequest, out chan<- *Batch) {
	cfg := hb.cfg
	current := New(cfg.BatchSize)
	timer := time.NewTimer(cfg.FlushEvery)
	defer timer.Stop()
	timerActive := true

	flush := func() {
		finalizeBatch(cfg, current, out)
		current = New(cfg.BatchSize)
	}

	for {
		select {
		case req, ok := <-in:
			if !ok || req == nil {
				flush()
				out <- nil
				return
			}

			if err := validateRequest(cfg, req); err != nil {
				req.RunCallbackError(err)
				continue
			}

			if current.Empty() {
				timer.Reset(cfg.FlushEvery)
				timerActive = true
			}
			current.Add(req, startSpan(cfg, req), ingressTime(cfg))

			if current.Len() >= cfg.BatchSize {
				if timerActive {
					timer.Stop()
					timerActive = false
				}
				flush()
			}

		case <-timer.C:
			timerActive = false
			flush()
		}
	}
}

