// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package events groups cluster events by the harvested objects they describe.
package events

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

// KeySeparator joins the involved object's kind and name in an index key.
// Archives produced by earlier releases use a backslash, so it stays.
const KeySeparator = `\`

var kindCaser = cases.Lower(language.Und)

// Matched holds the harvested objects of each kind, keyed by namespaced name.
type Matched map[string]sets.Set[types.NamespacedName]

// Add records keys as harvested objects of kind.
func (m Matched) Add(kind string, keys ...types.NamespacedName) {
	if _, ok := m[kind]; !ok {
		m[kind] = sets.New[types.NamespacedName]()
	}
	m[kind].Insert(keys...)
}

// Has reports whether the object kind/key was harvested.
func (m Matched) Has(kind string, key types.NamespacedName) bool {
	set, ok := m[kind]
	return ok && set.Has(key)
}

// Index maps namespace to object key to events in listing order.
type Index map[string]map[string][]map[string]interface{}

// Key returns the index key for an involved object.
func Key(kind, name string) string {
	return kindCaser.String(kind) + KeySeparator + name
}

// Len returns the number of indexed events.
func (idx Index) Len() int {
	var n int
	for _, byKey := range idx {
		for _, evs := range byKey {
			n += len(evs)
		}
	}
	return n
}

func (idx Index) add(namespace, key string, event map[string]interface{}) {
	byKey, ok := idx[namespace]
	if !ok {
		byKey = make(map[string][]map[string]interface{})
		idx[namespace] = byKey
	}
	byKey[key] = append(byKey[key], event)
}

// Aggregate keeps events whose involved object belongs to group, or is one of
// the matched objects, and indexes them by namespace and object. Stored
// events have their metadata and involvedObject removed; the inputs are not
// modified.
func Aggregate(evs []unstructured.Unstructured, matched Matched, group string) Index {
	idx := make(Index)
	for i := range evs {
		ev := evs[i].Object
		apiVersion, _, _ := unstructured.NestedString(ev, "involvedObject", "apiVersion")
		kind, _, _ := unstructured.NestedString(ev, "involvedObject", "kind")
		namespace, _, _ := unstructured.NestedString(ev, "involvedObject", "namespace")
		name, _, _ := unstructured.NestedString(ev, "involvedObject", "name")

		if !strings.HasPrefix(apiVersion, group) &&
			!matched.Has(kind, types.NamespacedName{Namespace: namespace, Name: name}) {
			continue
		}

		stored := evs[i].DeepCopy().Object
		delete(stored, "metadata")
		delete(stored, "involvedObject")
		idx.add(namespace, Key(kind, name), stored)
	}
	return idx
}
