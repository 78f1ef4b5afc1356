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

// Package repository watches a model-repository directory tree for
// config.pbtxt add/delete events and drives a Loader's load/unload
// calls after a settle delay, so a burst of filesystem writes (a model
// directory being copied in) collapses into a single load rather than
// one per intermediate write.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amdinfer/inferd/pkg/metrics"
	"github.com/amdinfer/inferd/pkg/repository/pbtxt"
	"github.com/amdinfer/inferd/pkg/types"
)

// PlatformKinds maps a config.pbtxt "platform" value to the worker kind
// that serves it.
var PlatformKinds = map[string]string{
	"tensorflow_graphdef": "tfzendnn",
	"pytorch_torchscript": "ptzendnn",
	"onnx_onnxv1":         "migraphx",
	"migraphx_mxr":        "migraphx",
	"vitis_xmodel":        "xmodel",
}

// Resolver implements server.ModelResolver by looking up modelName as a
// subdirectory of a model-repository path and parsing its config.pbtxt,
// independent of whether the Watcher has already (or ever will) load it
// proactively. SharedState.ModelLoad uses this for on-demand loads of
// models the watcher hasn't gotten to yet.
type Resolver struct {
	Path  string
	Cache *DescriptorCache

	// Defaults fills in parameters config.pbtxt leaves unset, such as
	// batch_size and batch_timeout falling back to process-wide config.
	Defaults types.ParameterMap
}

func (r Resolver) Resolve(modelName string) (kind string, params types.ParameterMap, err error) {
	descriptorPath := filepath.Join(r.Path, modelName, "config.pbtxt")
	if _, statErr := os.Stat(descriptorPath); statErr != nil {
		return "", nil, fmt.Errorf("repository: model %q: %w", modelName, types.ErrNotFound)
	}
	kind, params, err = Resolve(descriptorPath, r.Cache)
	if err != nil {
		return "", nil, err
	}
	return kind, withDefaults(params, r.Defaults), nil
}

// withDefaults returns params with every key in defaults that params
// doesn't already set.
func withDefaults(params, defaults types.ParameterMap) types.ParameterMap {
	if len(defaults) == 0 {
		return params
	}
	merged := make(types.ParameterMap, len(params)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// Loader is the subset of server.SharedState the repository watcher and
// resolver need. SharedState satisfies this directly.
type Loader interface {
	WorkerLoad(kind string, params types.ParameterMap) (string, error)
	WorkerUnload(name string) error
}

// Watcher polls path for model subdirectories containing config.pbtxt,
// calling loader.WorkerLoad/WorkerUnload as they come and go.
type Watcher struct {
	path   string
	poll   time.Duration
	settle time.Duration
	loader Loader
	cache  *DescriptorCache
	logger zerolog.Logger

	mu       sync.Mutex
	loaded   map[string]string // model directory name -> endpoint name
	pending  map[string]time.Time
	defaults types.ParameterMap
}

// WithDefaults installs fallback load parameters merged into every
// descriptor this Watcher resolves, for keys config.pbtxt leaves unset.
func (w *Watcher) WithDefaults(defaults types.ParameterMap) *Watcher {
	w.defaults = defaults
	return w
}

// NewWatcher builds a Watcher over path. cache may be nil, in which
// case every load reads its config.pbtxt from disk.
func NewWatcher(path string, poll, settle time.Duration, loader Loader, cache *DescriptorCache, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:    path,
		poll:    poll,
		settle:  settle,
		loader:  loader,
		cache:   cache,
		logger:  logger,
		loaded:  make(map[string]string),
		pending: make(map[string]time.Time),
	}
}

// Run polls the repository until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		if err := w.scan(); err != nil {
			w.logger.Warn().Err(err).Str("path", w.path).Msg("repository scan failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		modelDir := e.Name()
		descriptorPath := filepath.Join(w.path, modelDir, "config.pbtxt")
		if _, err := os.Stat(descriptorPath); err != nil {
			continue
		}
		seen[modelDir] = true
		w.observe(modelDir, descriptorPath)
	}

	w.mu.Lock()
	var removed []string
	for modelDir := range w.loaded {
		if !seen[modelDir] {
			removed = append(removed, modelDir)
		}
	}
	w.mu.Unlock()

	for _, modelDir := range removed {
		w.unload(modelDir)
	}

	metrics.SetGaugeMetric("inferd_repository_entries", "config.pbtxt directories currently seen under the watched path",
		float64(len(seen)), []string{"path"}, w.path)
	return nil
}

// observe debounces modelDir's config.pbtxt: the first time it's seen
// it starts a settle timer; load fires on the first scan after w.settle
// has elapsed since then. Changes to the file during that window do not
// restart the timer.
func (w *Watcher) observe(modelDir, descriptorPath string) {
	w.mu.Lock()
	_, alreadyLoaded := w.loaded[modelDir]
	firstSeen, pending := w.pending[modelDir]
	if !pending && !alreadyLoaded {
		w.pending[modelDir] = time.Now()
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	if alreadyLoaded || !pending {
		return
	}
	if time.Since(firstSeen) < w.settle {
		return
	}

	w.mu.Lock()
	delete(w.pending, modelDir)
	w.mu.Unlock()

	w.load(modelDir, descriptorPath)
}

func (w *Watcher) load(modelDir, descriptorPath string) {
	kind, params, err := Resolve(descriptorPath, w.cache)
	if err != nil {
		w.logger.Error().Err(err).Str("model", modelDir).Msg("repository: failed to parse descriptor")
		return
	}

	params = withDefaults(params, w.defaults)
	name, err := w.loader.WorkerLoad(kind, params)
	if err != nil {
		w.logger.Error().Err(err).Str("model", modelDir).Str("kind", kind).Msg("repository: load failed")
		return
	}

	w.mu.Lock()
	w.loaded[modelDir] = name
	w.mu.Unlock()
	w.logger.Info().Str("model", modelDir).Str("kind", kind).Str("endpoint", name).Msg("repository: loaded")
	metrics.IncrementCounterMetric("inferd_repository_loads_total", "models loaded from the watched repository path by worker kind",
		1, []string{"kind"}, kind)
}

func (w *Watcher) unload(modelDir string) {
	w.mu.Lock()
	name, ok := w.loaded[modelDir]
	delete(w.loaded, modelDir)
	delete(w.pending, modelDir)
	w.mu.Unlock()
	if !ok {
		return
	}

	if err := w.loader.WorkerUnload(name); err != nil {
		w.logger.Error().Err(err).Str("model", modelDir).Str("endpoint", name).Msg("repository: unload failed")
		return
	}
	if w.cache != nil {
		_ = w.cache.Forget(filepath.Join(w.path, modelDir, "config.pbtxt"))
	}
	w.logger.Info().Str("model", modelDir).Str("endpoint", name).Msg("repository: unloaded")
}

// Resolve parses descriptorPath's config.pbtxt (using cache when its
// mtime-keyed entry is still valid) and maps its platform to a worker
// kind and load parameter set.
func Resolve(descriptorPath string, cache *DescriptorCache) (kind string, params types.ParameterMap, err error) {
	info, err := os.Stat(descriptorPath)
	if err != nil {
		return "", nil, err
	}
	mtime := info.ModTime().Unix()

	var raw []byte
	if cache != nil {
		if cached, _, ok, lookupErr := cache.Lookup(descriptorPath, mtime); lookupErr == nil && ok {
			raw = cached
		}
	}
	if raw == nil {
		raw, err = os.ReadFile(descriptorPath)
		if err != nil {
			return "", nil, err
		}
	}

	cfg, err := pbtxt.Parse(raw)
	if err != nil {
		return "", nil, err
	}

	kind, ok := PlatformKinds[cfg.Platform]
	if !ok {
		return "", nil, fmt.Errorf("repository: unsupported platform %q: %w", cfg.Platform, types.ErrInvalidArgument)
	}

	if cache != nil {
		_ = cache.Store(descriptorPath, mtime, cfg.Platform, raw)
	}

	params = make(types.ParameterMap, len(cfg.Parameters))
	for k, v := range cfg.Parameters {
		params[k] = types.StringParameter(v)
	}
	return kind, params, nil
}
