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

// Package history records an audit trail of completed inference
// requests to Cassandra. Recording never sits on the hot path: Record
// enqueues onto a buffered channel and returns immediately, and a
// queue that's full simply drops the entry rather than blocking the
// caller.
package history

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"

	"github.com/amdinfer/inferd/pkg/types"
)

// Entry is one audited request completion.
type Entry struct {
	RequestID types.RequestID
	Model     string
	Latency   time.Duration
	ErrorKind string // empty on success
	Timestamp time.Time
}

const insertEntry = `INSERT INTO %s.inference_history
	(request_id, model, latency_micros, error_kind, recorded_at)
	VALUES (?, ?, ?, ?, ?)`

// Sink appends Entries to Cassandra on a background goroutine. The zero
// value is not usable; construct with NewSink. A nil *Sink is safe to
// call Record on, so callers can wire history unconditionally.
type Sink struct {
	session  *gocql.Session
	keyspace string
	logger   zerolog.Logger
	queue    chan Entry
	done     chan struct{}
}

// NewSink connects to the given Cassandra hosts and starts the
// background writer. queueDepth bounds how many pending entries may
// wait for a write before Record starts dropping them.
func NewSink(hosts []string, keyspace string, queueDepth int, logger zerolog.Logger) (*Sink, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("history: failed to connect to cassandra: %w", err)
	}

	s := &Sink{
		session:  session,
		keyspace: keyspace,
		logger:   logger,
		queue:    make(chan Entry, queueDepth),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Sink) run() {
	defer close(s.done)
	query := fmt.Sprintf(insertEntry, s.keyspace)
	for e := range s.queue {
		err := s.session.Query(query,
			string(e.RequestID), e.Model, e.Latency.Microseconds(), e.ErrorKind, e.Timestamp,
		).Exec()
		if err != nil {
			s.logger.Warn().Err(err).Str("request_id", string(e.RequestID)).Msg("history: write failed")
		}
	}
}

// Record enqueues e for writing. If the queue is full the entry is
// dropped and a warning is logged, since audit history must never
// apply backpressure to request completion.
func (s *Sink) Record(e Entry) {
	if s == nil {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.logger.Warn().Str("request_id", string(e.RequestID)).Msg("history: queue full, dropping entry")
	}
}

// RecordResponse is a convenience wrapper building an Entry from a
// completed InferenceResponse and the time the request started.
func (s *Sink) RecordResponse(resp types.InferenceResponse, start time.Time) {
	if s == nil {
		return
	}
	kind := ""
	if resp.IsError() {
		kind = types.KindOf(resp.Err).Error()
	}
	s.Record(Entry{
		RequestID: resp.ID,
		Model:     resp.Model,
		Latency:   time.Since(start),
		ErrorKind: kind,
		Timestamp: time.Now().UTC(),
	})
}

// Close stops accepting new entries and waits for the queue to drain
// before releasing the session.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	close(s.queue)
	<-s.done
	s.session.Close()
}

// Schema returns the CQL statement that creates the history table,
// for callers that want to provision the keyspace themselves.
func Schema(keyspace string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.inference_history (
	request_id text,
	model text,
	latency_micros bigint,
	error_kind text,
	recorded_at timestamp,
	PRIMARY KEY (request_id)
)`, keyspace)
}
