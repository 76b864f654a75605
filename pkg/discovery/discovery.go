// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package discovery resolves API group versions and their listable resources
// from a live cluster. Every call goes to the server; nothing is cached.
package discovery

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
)

// GroupVersion is "v1" for the core group and "<group>/<version>" otherwise.
// The empty value means the group is not installed.
type GroupVersion string

// Path returns the REST path the group version is served under.
func (gv GroupVersion) Path() string {
	if gv == "v1" {
		return "/api/v1"
	}
	return "/apis/" + string(gv)
}

// Resource returns the GroupVersionResource for resource name under gv.
func (gv GroupVersion) Resource(name string) schema.GroupVersionResource {
	parsed, err := schema.ParseGroupVersion(string(gv))
	if err != nil {
		// ParseGroupVersion only fails on more than one slash, which the
		// server never reports.
		return schema.GroupVersionResource{Version: string(gv), Resource: name}
	}
	return parsed.WithResource(name)
}

// ResourceDescriptor is a resource discovered under a group version.
type ResourceDescriptor struct {
	GroupVersion GroupVersion
	Name         string
	Kind         string
	Namespaced   bool
	Verbs        []string
}

// GVR returns the descriptor's GroupVersionResource.
func (d ResourceDescriptor) GVR() schema.GroupVersionResource {
	return d.GroupVersion.Resource(d.Name)
}

func (d ResourceDescriptor) String() string {
	return fmt.Sprintf("%s %s", d.GroupVersion.Path(), d.Name)
}

// Listable reports whether the server supports the list verb on d.
func (d ResourceDescriptor) Listable() bool {
	return lo.Contains(d.Verbs, "list")
}

// Client reads the cluster's discovery endpoints.
type Client struct {
	disc discovery.DiscoveryInterface
}

// NewClient wraps a discovery interface.
func NewClient(disc discovery.DiscoveryInterface) *Client {
	return &Client{disc: disc}
}

// Groups returns the API groups served by the cluster.
func (c *Client) Groups() ([]metav1.APIGroup, error) {
	list, err := c.disc.ServerGroups()
	if err != nil {
		return nil, fmt.Errorf("list api groups: %w", err)
	}
	return list.Groups, nil
}

// Resources returns the listable resources of gv. An empty gv, or one the
// server does not know, yields no resources and no error.
func (c *Client) Resources(gv GroupVersion) ([]ResourceDescriptor, error) {
	if gv == "" {
		return nil, nil
	}
	list, err := c.disc.ServerResourcesForGroupVersion(string(gv))
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list resources for %s: %w", gv, err)
	}

	var out []ResourceDescriptor
	for _, r := range list.APIResources {
		// Subresources such as pods/log are reported alongside their parent.
		if strings.Contains(r.Name, "/") {
			continue
		}
		d := ResourceDescriptor{
			GroupVersion: gv,
			Name:         r.Name,
			Kind:         r.Kind,
			Namespaced:   r.Namespaced,
			Verbs:        r.Verbs,
		}
		if !d.Listable() {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// VersionResources holds the resources found under one version of a group.
type VersionResources struct {
	GroupVersion GroupVersion
	Resources    []ResourceDescriptor
}

// ResourcesByVersion calls Resources for each gv in order.
func (c *Client) ResourcesByVersion(gvs []GroupVersion) ([]VersionResources, error) {
	out := make([]VersionResources, 0, len(gvs))
	for _, gv := range gvs {
		resources, err := c.Resources(gv)
		if err != nil {
			return nil, err
		}
		out = append(out, VersionResources{GroupVersion: gv, Resources: resources})
	}
	return out, nil
}

// PreferredVersion returns the server's preferred version of the named group,
// or "" when the group is not served.
func PreferredVersion(groups []metav1.APIGroup, name string) GroupVersion {
	group, ok := lo.Find(groups, func(g metav1.APIGroup) bool { return g.Name == name })
	if !ok {
		return ""
	}
	return GroupVersion(group.PreferredVersion.GroupVersion)
}

// AllVersions returns every served version of the named group in server order.
func AllVersions(groups []metav1.APIGroup, name string) []GroupVersion {
	group, ok := lo.Find(groups, func(g metav1.APIGroup) bool { return g.Name == name })
	if !ok {
		return nil
	}
	return lo.Map(group.Versions, func(v metav1.GroupVersionForDiscovery, _ int) GroupVersion {
		return GroupVersion(v.GroupVersion)
	})
}

// Find returns the first descriptor named name, or nil.
func Find(resources []ResourceDescriptor, name string) *ResourceDescriptor {
	for i := range resources {
		if resources[i].Name == name {
			return &resources[i]
		}
	}
	return nil
}

// FindEach returns the descriptor named name from each version that serves it.
func FindEach(byVersion []VersionResources, name string) []ResourceDescriptor {
	var out []ResourceDescriptor
	for _, vr := range byVersion {
		if d := Find(vr.Resources, name); d != nil {
			out = append(out, *d)
		}
	}
	return out
}
