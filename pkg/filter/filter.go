// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package filter decides which listed objects belong to the target application.
// Every predicate is a pure function of its inputs.
package filter

import (
	"strings"

	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"

	"github.com/confighub/tvk-harvest/pkg/catalog"
)

// OperationAnnotation marks jobs created for a restore operation.
const OperationAnnotation = "operation"

// Target describes the application whose objects are harvested.
type Target struct {
	// Group is the application's API group. Owner references and events
	// whose apiVersion starts with it belong to the application.
	Group string

	// NamePrefix marks objects the application installs by name.
	NamePrefix string

	// CRDGroups are the groups whose CRDs are harvested.
	CRDGroups []string

	// JobOperations are values of the operation annotation on restore jobs.
	JobOperations []string
}

// TrilioVault is the harvested application.
var TrilioVault = Target{
	Group:         catalog.TrilioVaultGroup,
	NamePrefix:    "k8s-triliovault",
	CRDGroups:     []string{catalog.TrilioVaultGroup, catalog.SnapshotStorageGroup, catalog.CSIStorageGroup},
	JobOperations: []string{"metadata-restore-validation", "data-restore", "metadata-restore"},
}

// HasNamePrefix reports whether obj is named with the application prefix.
func (t Target) HasNamePrefix(obj *unstructured.Unstructured) bool {
	return strings.HasPrefix(obj.GetName(), t.NamePrefix)
}

// KeepCSV keeps operator ClusterServiceVersions of the application.
func (t Target) KeepCSV(obj *unstructured.Unstructured) bool {
	return t.HasNamePrefix(obj)
}

// KeepWebhook keeps admission webhook configurations of the application.
func (t Target) KeepWebhook(obj *unstructured.Unstructured) bool {
	return t.HasNamePrefix(obj)
}

// KeepCRD keeps CRDs that define resources in one of the harvested groups.
func (t Target) KeepCRD(obj *unstructured.Unstructured) bool {
	group, _, _ := unstructured.NestedString(obj.Object, "spec", "group")
	return lo.Contains(t.CRDGroups, group)
}

// KeepJob keeps restore jobs and jobs controlled by an application resource.
func (t Target) KeepJob(obj *unstructured.Unstructured) bool {
	if lo.Contains(t.JobOperations, obj.GetAnnotations()[OperationAnnotation]) {
		return true
	}
	for _, owner := range obj.GetOwnerReferences() {
		if owner.Controller != nil && *owner.Controller && strings.HasPrefix(owner.APIVersion, t.Group) {
			return true
		}
	}
	return false
}

// JobController returns the name of the batch/v1 Job controlling pod, or "".
// When several references qualify the last one wins.
func JobController(pod *unstructured.Unstructured) string {
	var name string
	for _, owner := range pod.GetOwnerReferences() {
		if owner.Controller != nil && *owner.Controller && owner.APIVersion == catalog.BatchGV && owner.Kind == "Job" {
			name = owner.Name
		}
	}
	return name
}

// KeepPod keeps pods named with the application prefix and pods controlled
// by one of jobNames.
func (t Target) KeepPod(pod *unstructured.Unstructured, jobNames map[string]struct{}) bool {
	if t.HasNamePrefix(pod) {
		return true
	}
	controller := JobController(pod)
	if controller == "" {
		return false
	}
	_, ok := jobNames[controller]
	return ok
}

// Predicate is a single-object filter.
type Predicate func(obj *unstructured.Unstructured) bool

// Apply returns the objects accepted by keep, in source order.
func Apply(objs []unstructured.Unstructured, keep Predicate) []unstructured.Unstructured {
	return lo.Filter(objs, func(obj unstructured.Unstructured, _ int) bool {
		return keep(&obj)
	})
}

// CSVs filters ClusterServiceVersions.
func (t Target) CSVs(objs []unstructured.Unstructured) []unstructured.Unstructured {
	return Apply(objs, t.KeepCSV)
}

// CRDs filters CustomResourceDefinitions.
func (t Target) CRDs(objs []unstructured.Unstructured) []unstructured.Unstructured {
	return Apply(objs, t.KeepCRD)
}

// Webhooks filters admission webhook configurations of any kind.
func (t Target) Webhooks(objs []unstructured.Unstructured) []unstructured.Unstructured {
	return Apply(objs, t.KeepWebhook)
}

// Jobs filters batch Jobs.
func (t Target) Jobs(objs []unstructured.Unstructured) []unstructured.Unstructured {
	return Apply(objs, t.KeepJob)
}

// Pods filters pods against jobs, which must already be the output of Jobs.
// It returns the kept pods and their namespaced names in the same order.
func (t Target) Pods(pods, jobs []unstructured.Unstructured) ([]unstructured.Unstructured, []types.NamespacedName) {
	jobNames := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		jobNames[job.GetName()] = struct{}{}
	}

	var kept []unstructured.Unstructured
	var keys []types.NamespacedName
	for i := range pods {
		if !t.KeepPod(&pods[i], jobNames) {
			continue
		}
		kept = append(kept, pods[i])
		keys = append(keys, types.NamespacedName{Namespace: pods[i].GetNamespace(), Name: pods[i].GetName()})
	}
	return kept, keys
}

// ObjectNames returns metadata.name of every object.
func ObjectNames(objs []unstructured.Unstructured) []string {
	return lo.Map(objs, func(obj unstructured.Unstructured, _ int) string {
		return obj.GetName()
	})
}
