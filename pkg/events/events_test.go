// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
)

const group = "triliovault.trilio.io"

func newEvent(name, apiVersion, kind, namespace, objName, reason string) unstructured.Unstructured {
	return unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Event",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"involvedObject": map[string]interface{}{
			"apiVersion": apiVersion,
			"kind":       kind,
			"namespace":  namespace,
			"name":       objName,
		},
		"reason": reason,
	}}
}

func TestKey(t *testing.T) {
	assert.Equal(t, `pod\foo`, Key("Pod", "foo"))
	assert.Equal(t, `backupplan\nightly`, Key("BackupPlan", "nightly"))
}

func TestMatched(t *testing.T) {
	m := Matched{}
	m.Add("Pod", types.NamespacedName{Namespace: "ns1", Name: "foo"})
	m.Add("Pod", types.NamespacedName{Namespace: "ns1", Name: "bar"})

	assert.True(t, m.Has("Pod", types.NamespacedName{Namespace: "ns1", Name: "foo"}))
	assert.False(t, m.Has("Pod", types.NamespacedName{Namespace: "ns2", Name: "foo"}))
	assert.False(t, m.Has("Pod", types.NamespacedName{Name: "foo"}), "empty namespace is distinct")
	assert.False(t, m.Has("Job", types.NamespacedName{Namespace: "ns1", Name: "foo"}))
}

func TestAggregateMatchedPod(t *testing.T) {
	matched := Matched{}
	matched.Add("Pod", types.NamespacedName{Namespace: "ns1", Name: "foo"})

	evs := []unstructured.Unstructured{
		newEvent("e1", "v1", "Pod", "ns1", "foo", "Scheduled"),
		newEvent("e2", "v1", "Pod", "ns2", "foo", "Scheduled"),
		newEvent("e3", "v1", "Pod", "ns1", "other", "Pulled"),
		newEvent("e4", "v1", "Pod", "ns1", "foo", "Started"),
	}

	idx := Aggregate(evs, matched, group)
	require.Len(t, idx, 1)
	require.Contains(t, idx, "ns1")

	got := idx["ns1"][`pod\foo`]
	require.Len(t, got, 2)
	assert.Equal(t, "Scheduled", got[0]["reason"])
	assert.Equal(t, "Started", got[1]["reason"])
	assert.Equal(t, 2, idx.Len())
}

func TestAggregateApplicationGroup(t *testing.T) {
	evs := []unstructured.Unstructured{
		newEvent("e1", "triliovault.trilio.io/v1", "Backup", "trilio", "b1", "InProgress"),
		newEvent("e2", "triliovault.trilio.io/v1", "Target", "", "t1", "Available"),
		newEvent("e3", "apps/v1", "Deployment", "trilio", "web", "ScalingReplicaSet"),
	}

	idx := Aggregate(evs, Matched{}, group)
	assert.Len(t, idx["trilio"][`backup\b1`], 1)
	assert.Len(t, idx[""][`target\t1`], 1)
	assert.Equal(t, 2, idx.Len())
}

func TestAggregateStripsIdentityWithoutMutatingInput(t *testing.T) {
	evs := []unstructured.Unstructured{
		newEvent("e1", "triliovault.trilio.io/v1", "Restore", "trilio", "r1", "Completed"),
	}

	idx := Aggregate(evs, nil, group)
	stored := idx["trilio"][`restore\r1`][0]
	assert.NotContains(t, stored, "metadata")
	assert.NotContains(t, stored, "involvedObject")
	assert.Equal(t, "Completed", stored["reason"])

	assert.Contains(t, evs[0].Object, "metadata")
	assert.Contains(t, evs[0].Object, "involvedObject")
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, Matched{}, group))
}
