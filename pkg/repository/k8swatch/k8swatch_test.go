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

package k8swatch

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inferdtypes "github.com/amdinfer/inferd/pkg/types"
)

type fakeLoader struct {
	loaded   []string
	unloaded []string
}

func (f *fakeLoader) WorkerLoad(kind string, params inferdtypes.ParameterMap) (string, error) {
	name := kind + "-1"
	f.loaded = append(f.loaded, name)
	return name, nil
}

func (f *fakeLoader) WorkerUnload(name string) error {
	f.unloaded = append(f.unloaded, name)
	return nil
}

func TestReconcileLoadsOnLabeledConfigMap(t *testing.T) {
	scheme, err := Scheme()
	require.NoError(t, err)

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "resnet",
			Namespace: "default",
			Labels:    map[string]string{ModelConfigLabel: "true"},
		},
		Data: map[string]string{
			"config.pbtxt": `platform: "tensorflow_graphdef"`,
		},
	}

	fc := fake.NewClientBuilder().WithScheme(scheme).WithObjects(cm).Build()
	loader := &fakeLoader{}
	r := &Reconciler{Client: fc, Loader: loader}

	_, err = r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "resnet"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tfzendnn-1"}, loader.loaded)
}

func TestReconcileUnloadsOnDeletedConfigMap(t *testing.T) {
	scheme, err := Scheme()
	require.NoError(t, err)

	fc := fake.NewClientBuilder().WithScheme(scheme).Build()
	loader := &fakeLoader{}
	r := &Reconciler{Client: fc, Loader: loader, loaded: map[string]string{"resnet": "tfzendnn-1"}}

	_, err = r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "resnet"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tfzendnn-1"}, loader.unloaded)
}
