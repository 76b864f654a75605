// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package catalog is the fixed table of API groups and resources the harvester collects.
package catalog

// API groups
const (
	OperatorGroup              = "operators.coreos.com"
	APIExtensionsGroup         = "apiextensions.k8s.io"
	SnapshotStorageGroup       = "snapshot.storage.k8s.io"
	AdmissionRegistrationGroup = "admissionregistration.k8s.io"
	TrilioVaultGroup           = "triliovault.trilio.io"
	CSIStorageGroup            = "csi.storage.k8s.io"
)

// Group versions that are always served, so they are not resolved through discovery.
const (
	CoreGV    = "v1"
	BatchGV   = "batch/v1"
	StorageGV = "storage.k8s.io/v1"
)

// Resource names as reported by discovery
const (
	Namespaces             = "namespaces"
	Events                 = "events"
	Pods                   = "pods"
	Jobs                   = "jobs"
	CRDs                   = "customresourcedefinitions"
	StorageClasses         = "storageclasses"
	VolumeSnapshots        = "volumesnapshots"
	VolumeSnapshotClasses  = "volumesnapshotclasses"
	ClusterServiceVersions = "clusterserviceversions"
)

// Archive layout
const (
	// K8sPrefix marks directories holding core kinds whose names clash with
	// TrilioVault kinds (batch Jobs vs the application's own resources).
	K8sPrefix = "K8s_"
	EventsDir = "Events"
)

// VersionPolicy says how a group's version is resolved from discovery.
type VersionPolicy int

const (
	// Fixed uses Entry.GroupVersion as-is.
	Fixed VersionPolicy = iota
	// Preferred uses the version the server marks as preferred.
	Preferred
	// AllVersions searches every served version of the group.
	AllVersions
)

// Filter names the ownership predicate applied to a catalog entry.
type Filter string

const (
	FilterNone    Filter = ""
	FilterCSV     Filter = "csv"
	FilterCRD     Filter = "crd"
	FilterWebhook Filter = "webhook"
	FilterJob     Filter = "job"
	FilterPod     Filter = "pod"
)

// Entry describes one step of a harvest: which resources to list and how to keep them.
type Entry struct {
	// Title is logged as "Checking <Title>".
	Title string

	// Group is resolved through discovery unless Policy is Fixed.
	Group        string
	GroupVersion string
	Policy       VersionPolicy

	// Resource is the discovery name to look up. Empty means every listable
	// resource of the group.
	Resource string

	// DirPrefix is prepended to the object's Kind to form its archive directory.
	DirPrefix string

	Filter Filter
}

// Entries returns the harvest steps in execution order. Jobs come before pods
// because the pod filter consumes the filtered jobs.
func Entries() []Entry {
	return []Entry{
		{Title: "Cluster Service Version", Group: OperatorGroup, Policy: AllVersions, Resource: ClusterServiceVersions, Filter: FilterCSV},
		{Title: "API Extension Group", Group: APIExtensionsGroup, Policy: Preferred, Resource: CRDs, Filter: FilterCRD},
		{Title: "Volume Snapshots", Group: SnapshotStorageGroup, Policy: Preferred, Resource: VolumeSnapshots},
		{Title: "Volume Snapshot Classes", Group: SnapshotStorageGroup, Policy: Preferred, Resource: VolumeSnapshotClasses},
		{Title: "Admission Registration Group", Group: AdmissionRegistrationGroup, Policy: Preferred, Filter: FilterWebhook},
		{Title: "Storage Group", GroupVersion: StorageGV, Policy: Fixed, Resource: StorageClasses},
		{Title: "Trilio Group", Group: TrilioVaultGroup, Policy: Preferred},
		{Title: "Batch Group", GroupVersion: BatchGV, Policy: Fixed, Resource: Jobs, DirPrefix: K8sPrefix, Filter: FilterJob},
		{Title: "Core Group", GroupVersion: CoreGV, Policy: Fixed, Resource: Pods, Filter: FilterPod},
	}
}

// KindDir returns the archive directory for objects of kind listed under e.
func (e Entry) KindDir(kind string) string {
	return e.DirPrefix + kind
}
