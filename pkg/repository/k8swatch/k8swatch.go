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

// Package k8swatch is an optional Kubernetes-backed model source: a
// controller-runtime manager and reconciler that treats labeled
// ConfigMaps as model descriptors, calling the same load/unload path
// the filesystem repository watcher uses. It lets inferd run inside a
// cluster where model descriptors are applied as Kubernetes objects
// rather than files on a shared volume.
package k8swatch

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/amdinfer/inferd/pkg/repository"
	"github.com/amdinfer/inferd/pkg/repository/pbtxt"
	"github.com/amdinfer/inferd/pkg/types"
)

// ModelConfigLabel marks a ConfigMap as a model descriptor source.
// Its Data["config.pbtxt"] key holds the same text this repository
// package parses off disk; the ConfigMap's Name is the model name.
const ModelConfigLabel = "inferd.io/model-config"

// Reconciler loads or unloads a worker each time a labeled ConfigMap is
// created, updated or deleted.
type Reconciler struct {
	client.Client
	Loader    repository.Loader
	Namespace string

	loaded map[string]string // configmap name -> endpoint name
}

// SetupWithManager registers the reconciler against mgr, watching
// ConfigMaps in Namespace.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.loaded == nil {
		r.loaded = make(map[string]string)
	}
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.ConfigMap{}).
		Complete(r)
}

// Reconcile implements reconcile.Reconciler.
func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	if r.Namespace != "" && req.Namespace != r.Namespace {
		return ctrl.Result{}, nil
	}

	var cm corev1.ConfigMap
	err := r.Get(ctx, req.NamespacedName, &cm)
	switch {
	case apierrors.IsNotFound(err):
		r.unload(req.Name)
		return ctrl.Result{}, nil
	case err != nil:
		return ctrl.Result{}, err
	}

	if cm.Labels[ModelConfigLabel] != "true" {
		r.unload(req.Name)
		return ctrl.Result{}, nil
	}

	raw, ok := cm.Data["config.pbtxt"]
	if !ok {
		return ctrl.Result{}, fmt.Errorf("k8swatch: configmap %s/%s missing config.pbtxt key: %w",
			cm.Namespace, cm.Name, types.ErrInvalidArgument)
	}

	cfg, err := pbtxt.Parse([]byte(raw))
	if err != nil {
		return ctrl.Result{}, err
	}
	kind, ok := repository.PlatformKinds[cfg.Platform]
	if !ok {
		return ctrl.Result{}, fmt.Errorf("k8swatch: unsupported platform %q: %w", cfg.Platform, types.ErrInvalidArgument)
	}

	params := make(types.ParameterMap, len(cfg.Parameters))
	for k, v := range cfg.Parameters {
		params[k] = types.StringParameter(v)
	}

	r.unload(req.Name)
	name, err := r.Loader.WorkerLoad(kind, params)
	if err != nil {
		return ctrl.Result{}, err
	}
	if r.loaded == nil {
		r.loaded = make(map[string]string)
	}
	r.loaded[req.Name] = name
	return ctrl.Result{}, nil
}

func (r *Reconciler) unload(configMapName string) {
	name, ok := r.loaded[configMapName]
	if !ok {
		return
	}
	delete(r.loaded, configMapName)
	_ = r.Loader.WorkerUnload(name)
}

// VerifyNamespace checks that namespace exists in the cluster cfg points
// at, using a plain clientset rather than the manager's cached client,
// so a typo in the configured namespace fails fast at startup instead of
// the reconciler silently watching nothing.
func VerifyNamespace(cfg *rest.Config, namespace string) error {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return fmt.Errorf("k8swatch: building clientset: %w", err)
	}
	if _, err := clientset.CoreV1().Namespaces().Get(context.Background(), namespace, metav1.GetOptions{}); err != nil {
		return fmt.Errorf("k8swatch: namespace %q: %w", namespace, err)
	}
	return nil
}

// Scheme returns the runtime.Scheme the manager needs to decode
// ConfigMap objects; callers build their manager with this.
func Scheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}
