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

package endpoints

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/amdinfer/inferd/pkg/types"
)

// Lease is a distributed lock held in Redis, used to serialize load and
// unload for a given sharing key across multiple inferd processes that
// watch the same model repository. A nil *Lease always grants the lock
// immediately and Release is a no-op, so a single-process deployment
// with no Redis configured pays no cost.
type Lease struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLease builds a Lease backed by the Redis instance at addr.
func NewLease(addr string, ttl time.Duration) *Lease {
	if addr == "" {
		return nil
	}
	return &Lease{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Acquire blocks until it holds the lock for key or ctx is done,
// returning a token that must be passed to Release. Acquisition is a
// Redis SETNX with a TTL, so a process that crashes while holding the
// lease still releases it once the TTL expires.
func (l *Lease) Acquire(ctx context.Context, key string) (string, error) {
	if l == nil {
		return "", nil
	}

	token := uuid.New().String()
	redisKey := leaseKey(key)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("endpoints: lease acquire for %q: %w", key, err)
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("endpoints: lease acquire for %q timed out: %w", key, types.ErrUnavailable)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release drops the lock for key if token still owns it, using a
// compare-and-delete script so a process never releases a lease it no
// longer holds after its TTL expired and someone else acquired it.
func (l *Lease) Release(ctx context.Context, key, token string) error {
	if l == nil || token == "" {
		return nil
	}

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	_, err := script.Run(ctx, l.client, []string{leaseKey(key)}, token).Result()
	if err != nil {
		return fmt.Errorf("endpoints: lease release for %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (l *Lease) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}

func leaseKey(key string) string {
	return "inferd:lease:" + key
}
