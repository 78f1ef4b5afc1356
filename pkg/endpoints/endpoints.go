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

// Package endpoints maintains the name-to-worker mapping that makes a
// worker instance shareable across multiple model names, and serializes
// the load/unload races that sharing creates.
package endpoints

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/amdinfer/inferd/pkg/events"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/metrics"
	"github.com/amdinfer/inferd/pkg/types"
	"github.com/amdinfer/inferd/pkg/worker"
)

// entry is one row of the registry: a named endpoint, the runtime backing
// it, and the refcount that tracks how many load calls are sharing it.
type entry struct {
	name     string
	kind     string
	key      string
	runtime  *worker.Runtime
	refcount int
}

// Endpoints is the name-to-worker registry. The sharing map is keyed by
// (worker_kind, parameters); the name map is keyed by the unique endpoint
// name handed back from load. singleflight.Group coalesces concurrent
// loads with an identical sharing key into exactly one worker
// instantiation.
type Endpoints struct {
	mu      sync.RWMutex
	byName  map[string]*entry
	byKey   map[string]*entry
	nextSeq map[string]int

	kinds  *worker.Kinds
	pool   *memorypool.Pool
	logger zerolog.Logger
	group  singleflight.Group
	lease  *Lease
	events *events.Publisher

	collectors *metrics.Collectors
	statsd     *metrics.StatsdSink
}

// New builds an empty registry. kinds resolves worker-kind names to
// factories; pool is shared by every worker this registry loads.
func New(kinds *worker.Kinds, pool *memorypool.Pool, logger zerolog.Logger) *Endpoints {
	return &Endpoints{
		byName:  make(map[string]*entry),
		byKey:   make(map[string]*entry),
		nextSeq: make(map[string]int),
		kinds:   kinds,
		pool:    pool,
		logger:  logger,
	}
}

// WithLease installs a distributed Lease used to serialize Load/Unload
// for a given sharing key across multiple inferd processes. Passing nil
// disables cross-process serialization, which is also the default.
func (e *Endpoints) WithLease(lease *Lease) *Endpoints {
	e.lease = lease
	return e
}

// WithEvents installs a Publisher that receives a lifecycle event each
// time a worker is spawned, fails to spawn, or is torn down. Passing
// nil disables event emission, which is also the default.
func (e *Endpoints) WithEvents(pub *events.Publisher) *Endpoints {
	e.events = pub
	return e
}

// WithMetrics installs the Prometheus collectors and/or StatsD mirror
// every worker this registry spawns reports queue depth and batch
// metrics to. Either argument may be nil.
func (e *Endpoints) WithMetrics(collectors *metrics.Collectors, statsd *metrics.StatsdSink) *Endpoints {
	e.collectors = collectors
	e.statsd = statsd
	return e
}

// sharingKey derives a deterministic key from (kind, parameters), used
// to decide whether two load calls should reuse the same worker. The
// "share" parameter itself is excluded from the key since it only
// toggles whether the key is consulted at all.
func sharingKey(kind string, params types.ParameterMap) string {
	names := make([]string, 0, len(params))
	for k := range params {
		if k == "share" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(kind)
	for _, name := range names {
		b.WriteByte('\x1f')
		b.WriteString(name)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", params[name])
	}
	return b.String()
}

// Load instantiates (or, when sharing applies, reuses) a worker of the
// given kind, driving it through init/acquire/spawn, and returns its
// endpoint name.
func (e *Endpoints) Load(kind string, params types.ParameterMap) (string, error) {
	share := params.BoolOr("share", true)
	key := sharingKey(kind, params)

	if share {
		if ent := e.lookupByKey(key); ent != nil {
			e.mu.Lock()
			ent.refcount++
			e.mu.Unlock()
			return ent.name, nil
		}
	}

	// Unshared loads must never coalesce with each other: two concurrent
	// share=false calls with identical (kind, params) would otherwise
	// land on the same singleflight key and be handed back the same
	// entry, leaving both callers believing they hold an independent
	// worker while only one refcount exists between them. Suffixing the
	// group key with a fresh token forces each to spawn its own.
	groupKey := key
	if !share {
		groupKey = key + "\x1f" + uuid.New().String()
	}

	result, err, _ := e.group.Do(groupKey, func() (interface{}, error) {
		if share {
			if ent := e.lookupByKey(key); ent != nil {
				return ent, nil
			}
		}

		token, err := e.lease.Acquire(context.Background(), key)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := e.lease.Release(context.Background(), key, token); err != nil {
				e.logger.Warn().Err(err).Str("key", key).Msg("endpoints: lease release failed")
			}
		}()

		if share {
			if ent := e.lookupByKey(key); ent != nil {
				return ent, nil
			}
		}
		return e.spawn(kind, key, params, share)
	})
	if err != nil {
		return "", err
	}
	ent := result.(*entry)

	if share {
		e.mu.Lock()
		if ent.refcount == 0 {
			ent.refcount = 1
		} else {
			ent.refcount++
		}
		e.mu.Unlock()
	}
	return ent.name, nil
}

func (e *Endpoints) lookupByKey(key string) *entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.byKey[key]
}

// spawn instantiates a fresh worker, drives it through init, acquire and
// spawn, assigns it a unique name, and registers it under key.
func (e *Endpoints) spawn(kind, key string, params types.ParameterMap, share bool) (*entry, error) {
	impl, err := e.kinds.New(kind)
	if err != nil {
		return nil, err
	}

	rt := worker.New(kind, impl, e.pool, e.logger).WithMetrics(e.collectors, e.statsd)
	if err := rt.Init(params); err != nil {
		e.events.Failed(key, kind, err.Error())
		return nil, err
	}
	if err := rt.Acquire(params); err != nil {
		e.events.Failed(key, kind, err.Error())
		return nil, err
	}
	if err := rt.Spawn(); err != nil {
		e.events.Failed(key, kind, err.Error())
		return nil, err
	}

	name := e.allocateName(kind)
	// A shared entry starts at 0: Load increments it for every caller
	// handed this entry, including the one that spawned it.
	refcount := 1
	if share {
		refcount = 0
	}
	ent := &entry{name: name, kind: kind, key: key, runtime: rt, refcount: refcount}

	e.mu.Lock()
	e.byName[name] = ent
	if share {
		e.byKey[key] = ent
	}
	e.mu.Unlock()

	e.events.Load(name, kind)
	e.events.Ready(name, kind)
	return ent, nil
}

// allocateName derives a unique endpoint name from kind, appending a
// numeric suffix on collision. Must be called with e.mu unlocked; it
// takes the lock itself.
func (e *Endpoints) allocateName(kind string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.nextSeq[kind]
	name := kind
	if seq > 0 {
		name = kind + "-" + strconv.Itoa(seq)
	}
	for {
		if _, exists := e.byName[name]; !exists {
			break
		}
		seq++
		name = kind + "-" + strconv.Itoa(seq)
	}
	e.nextSeq[kind] = seq + 1
	return name
}

// Unload decrements name's refcount; at zero it stops the worker's
// thread, drives release/destroy, and removes the entry from the
// registry.
func (e *Endpoints) Unload(name string) error {
	e.mu.Lock()
	ent, ok := e.byName[name]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("endpoints: unknown endpoint %q: %w", name, types.ErrNotFound)
	}
	ent.refcount--
	remaining := ent.refcount
	if remaining <= 0 {
		delete(e.byName, name)
		if e.byKey[ent.key] == ent {
			delete(e.byKey, ent.key)
		}
	}
	e.mu.Unlock()

	if remaining > 0 {
		return nil
	}

	if err := ent.runtime.Stop(); err != nil {
		e.logger.Warn().Err(err).Str("endpoint", name).Msg("worker stop failed during unload")
	}
	err := ent.runtime.Destroy()
	e.events.Unload(name, ent.kind)
	return err
}

// ModelReady reports whether name exists and its worker is Running.
func (e *Endpoints) ModelReady(name string) (bool, error) {
	e.mu.RLock()
	ent, ok := e.byName[name]
	e.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("endpoints: unknown endpoint %q: %w", name, types.ErrNotFound)
	}
	return ent.runtime.State() == worker.Running, nil
}

// List returns every registered endpoint name.
func (e *Endpoints) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.byName))
	for name := range e.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runtime returns the worker.Runtime backing name, for submitting
// requests to it.
func (e *Endpoints) Runtime(name string) (*worker.Runtime, error) {
	e.mu.RLock()
	ent, ok := e.byName[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("endpoints: unknown endpoint %q: %w", name, types.ErrNotFound)
	}
	return ent.runtime, nil
}

// Close releases resources held by the registry's optional Lease. It
// does not unload any registered endpoint.
func (e *Endpoints) Close() error {
	return e.lease.Close()
}

// Metadata returns the declared tensor metadata for name.
func (e *Endpoints) Metadata(name string) (types.ModelMetadata, error) {
	rt, err := e.Runtime(name)
	if err != nil {
		return types.ModelMetadata{}, err
	}
	return rt.Metadata(), nil
}
