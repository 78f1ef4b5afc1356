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

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amdinfer/inferd/pkg/types"
)

// Dedup rejects a retried request ID within a TTL window, so a client
// that retries ModelInfer after a network timeout can't have its
// request run twice against a non-idempotent worker. A nil *Dedup
// admits every request, which is also the default.
type Dedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedup builds a Dedup backed by the Redis instance at addr.
func NewDedup(addr string, ttl time.Duration) *Dedup {
	if addr == "" {
		return nil
	}
	return &Dedup{client: redis.NewClient(&redis.Options{Addr: addr}), ttl: ttl}
}

// Admit records id as seen and reports whether this is its first
// sighting within the TTL window. A request that fails the Redis round
// trip is admitted rather than rejected, since availability of the
// inference path matters more than duplicate suppression.
func (d *Dedup) Admit(ctx context.Context, id types.RequestID) (bool, error) {
	if d == nil {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, dedupKey(id), 1, d.ttl).Result()
	if err != nil {
		return true, fmt.Errorf("server: dedup lookup for %q: %w", id, err)
	}
	return ok, nil
}

// Close releases the underlying Redis connection pool.
func (d *Dedup) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

func dedupKey(id types.RequestID) string {
	return "inferd:dedup:" + string(id)
}
