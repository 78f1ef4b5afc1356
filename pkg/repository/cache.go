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

package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DescriptorCache is a local SQLite cache of raw config.pbtxt bytes and
// their platform, keyed by the descriptor file's path and mtime, so a
// descriptor that hasn't changed is read from the cache instead of disk.
// It does not hold parsed results; Resolve parses the bytes every time.
type DescriptorCache struct {
	db *sql.DB
}

var cacheMigrations = []string{
	`CREATE TABLE IF NOT EXISTS descriptors (
		path       TEXT PRIMARY KEY,
		mtime_unix INTEGER NOT NULL,
		platform   TEXT NOT NULL,
		raw_pbtxt  BLOB NOT NULL
	)`,
}

// OpenDescriptorCache opens (creating if necessary) a SQLite database at
// path and applies its schema migrations. An empty path opens an
// in-memory database, useful for tests and for servers that don't want
// scan state to persist across restarts.
func OpenDescriptorCache(path string) (*DescriptorCache, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open descriptor cache: %w", err)
	}
	for _, stmt := range cacheMigrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("repository: migrate descriptor cache: %w", err)
		}
	}
	return &DescriptorCache{db: db}, nil
}

func (c *DescriptorCache) Close() error { return c.db.Close() }

// Lookup returns the cached raw config.pbtxt bytes and platform for
// path if the cache entry's mtime matches mtimeUnix, and false
// otherwise (cache miss, or the file has changed since caching).
func (c *DescriptorCache) Lookup(path string, mtimeUnix int64) (rawPbtxt []byte, platform string, ok bool, err error) {
	row := c.db.QueryRow(`SELECT mtime_unix, platform, raw_pbtxt FROM descriptors WHERE path = ?`, path)

	var cachedMtime int64
	if err := row.Scan(&cachedMtime, &platform, &rawPbtxt); err != nil {
		if err == sql.ErrNoRows {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}
	if cachedMtime != mtimeUnix {
		return nil, "", false, nil
	}
	return rawPbtxt, platform, true, nil
}

// Store records path's raw descriptor bytes and platform, replacing any
// prior entry.
func (c *DescriptorCache) Store(path string, mtimeUnix int64, platform string, rawPbtxt []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO descriptors (path, mtime_unix, platform, raw_pbtxt)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime_unix = excluded.mtime_unix,
			platform   = excluded.platform,
			raw_pbtxt  = excluded.raw_pbtxt
	`, path, mtimeUnix, platform, rawPbtxt)
	return err
}

// Forget removes path's cache entry, called once its directory is gone.
func (c *DescriptorCache) Forget(path string) error {
	_, err := c.db.Exec(`DELETE FROM descriptors WHERE path = ?`, path)
	return err
}
