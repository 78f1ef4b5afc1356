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

package history

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/amdinfer/inferd/pkg/types"
)

func TestNilSinkIsSafe(t *testing.T) {
	var s *Sink
	assert.NotPanics(t, func() {
		s.Record(Entry{RequestID: "r1"})
		s.RecordResponse(types.InferenceResponse{ID: "r1", Model: "resnet"}, time.Now())
		s.Close()
	})
}

func TestSchemaNamesKeyspaceAndTable(t *testing.T) {
	schema := Schema("inferd")
	assert.Contains(t, schema, "inferd.inference_history")
	assert.Contains(t, schema, "request_id")
}

func TestRecordResponseCarriesErrorKind(t *testing.T) {
	resp := types.NewErrorResponse("r1", "resnet", errors.New("boom: "+types.ErrOutOfMemory.Error()))

	entries := make(chan Entry, 1)
	s := &Sink{queue: entries, logger: zerolog.Nop()}
	s.RecordResponse(types.InferenceResponse{ID: resp.ID, Model: resp.Model, Err: types.ErrOutOfMemory}, time.Now().Add(-5*time.Millisecond))

	select {
	case e := <-entries:
		assert.Equal(t, "resnet", e.Model)
		assert.Equal(t, types.ErrOutOfMemory.Error(), e.ErrorKind)
		assert.GreaterOrEqual(t, e.Latency, time.Duration(0))
	default:
		t.Fatal("expected an entry to be queued")
	}
}

func TestRecordDropsWhenQueueFull(t *testing.T) {
	s := &Sink{queue: make(chan Entry, 1), logger: zerolog.Nop()}
	s.Record(Entry{RequestID: "r1"})

	assert.NotPanics(t, func() {
		s.Record(Entry{RequestID: "r2"})
	})
	assert.Len(t, s.queue, 1)
}
