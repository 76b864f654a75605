// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package lister fetches live objects for discovered resources.
package lister

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"

	"github.com/confighub/tvk-harvest/pkg/discovery"
)

// Lister lists objects cluster-wide, or per namespace when given a namespace scope.
type Lister struct {
	client     dynamic.Interface
	namespaces []string
}

// New creates a lister. A non-empty namespaces slice puts it in namespaced mode.
func New(client dynamic.Interface, namespaces []string) *Lister {
	return &Lister{client: client, namespaces: namespaces}
}

// Namespaced reports whether the lister fans out over a namespace scope.
func (l *Lister) Namespaced() bool {
	return len(l.namespaces) > 0
}

// List returns every object of the described resource. A nil descriptor
// (resource not served by the cluster) yields no objects.
func (l *Lister) List(ctx context.Context, desc *discovery.ResourceDescriptor) ([]unstructured.Unstructured, error) {
	if desc == nil {
		return nil, nil
	}
	ri := l.client.Resource(desc.GVR())

	if desc.Namespaced && l.Namespaced() {
		var items []unstructured.Unstructured
		for _, ns := range l.namespaces {
			list, err := ri.Namespace(ns).List(ctx, metav1.ListOptions{})
			if err != nil {
				return nil, fmt.Errorf("list %s in namespace %s: %w", desc, ns, err)
			}
			items = append(items, list.Items...)
		}
		return items, nil
	}

	list, err := ri.List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", desc, err)
	}
	return list.Items, nil
}

// ListEach lists every descriptor in order and concatenates the results.
func (l *Lister) ListEach(ctx context.Context, descs []discovery.ResourceDescriptor) ([]unstructured.Unstructured, error) {
	var items []unstructured.Unstructured
	for i := range descs {
		objs, err := l.List(ctx, &descs[i])
		if err != nil {
			return nil, err
		}
		items = append(items, objs...)
	}
	return items, nil
}
