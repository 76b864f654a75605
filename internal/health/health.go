// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package health classifies harvested objects so the run summary can point
// at the ones worth looking at first.
package health

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Status constants for resources.
const (
	StatusReady    = "Ready"
	StatusNotReady = "NotReady"
	StatusFailed   = "Failed"
	StatusPending  = "Pending"
	StatusUnknown  = "Unknown"
)

// waitingFailures are container waiting reasons that mean the pod is broken
// rather than starting.
var waitingFailures = map[string]bool{
	"CrashLoopBackOff":           true,
	"ImagePullBackOff":           true,
	"ErrImagePull":               true,
	"CreateContainerConfigError": true,
	"InvalidImageName":           true,
}

// Result is the status of one object and the reason behind it.
type Result struct {
	Status string
	Reason string
}

// Check determines the status of a harvested object from its status block.
func Check(obj *unstructured.Unstructured) Result {
	status, _, _ := unstructured.NestedMap(obj.Object, "status")
	if status == nil {
		return Result{Status: StatusUnknown}
	}

	switch obj.GetKind() {
	case "Pod":
		return checkPod(obj)
	case "Job":
		return checkJob(obj)
	}

	// TrilioVault resources report progress in status.status.
	if s, ok := status["status"].(string); ok {
		return checkApplicationStatus(s)
	}

	if r, ok := readyCondition(obj); ok {
		return r
	}
	return Result{Status: StatusUnknown}
}

// IsHealthy reports whether the object needs no attention. Unknown counts as healthy.
func (r Result) IsHealthy() bool {
	return r.Status == StatusReady || r.Status == StatusUnknown
}

func checkPod(obj *unstructured.Unstructured) Result {
	for _, field := range []string{"initContainerStatuses", "containerStatuses"} {
		statuses, _, _ := unstructured.NestedSlice(obj.Object, "status", field)
		for _, s := range statuses {
			cs, ok := s.(map[string]interface{})
			if !ok {
				continue
			}
			reason, _, _ := unstructured.NestedString(cs, "state", "waiting", "reason")
			if waitingFailures[reason] {
				name, _ := cs["name"].(string)
				return Result{Status: StatusFailed, Reason: name + ": " + reason}
			}
		}
	}

	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	switch phase {
	case "Running", "Succeeded":
		return Result{Status: StatusReady}
	case "Pending":
		return Result{Status: StatusPending, Reason: phase}
	case "Failed":
		reason, _, _ := unstructured.NestedString(obj.Object, "status", "reason")
		if reason == "" {
			reason = phase
		}
		return Result{Status: StatusFailed, Reason: reason}
	}
	return Result{Status: StatusUnknown}
}

func checkJob(obj *unstructured.Unstructured) Result {
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok || cond["status"] != "True" {
			continue
		}
		switch cond["type"] {
		case "Complete":
			return Result{Status: StatusReady}
		case "Failed":
			reason, _ := cond["reason"].(string)
			return Result{Status: StatusFailed, Reason: reason}
		}
	}

	active, _, _ := unstructured.NestedInt64(obj.Object, "status", "active")
	if active > 0 {
		return Result{Status: StatusPending, Reason: "Active"}
	}
	return Result{Status: StatusUnknown}
}

func checkApplicationStatus(s string) Result {
	switch s {
	case "Available", "Completed", "Coalesced":
		return Result{Status: StatusReady}
	case "InProgress", "Pending":
		return Result{Status: StatusPending, Reason: s}
	case "Failed", "Error":
		return Result{Status: StatusFailed, Reason: s}
	case "Unavailable":
		return Result{Status: StatusNotReady, Reason: s}
	}
	return Result{Status: StatusUnknown, Reason: s}
}

// readyCondition reads the Ready condition, if any.
func readyCondition(obj *unstructured.Unstructured) (Result, bool) {
	conditions, found, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if !found {
		return Result{}, false
	}
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if condType, _ := cond["type"].(string); condType != "Ready" {
			continue
		}
		reason, _ := cond["reason"].(string)
		switch cond["status"] {
		case "True":
			return Result{Status: StatusReady}, true
		case "False":
			return Result{Status: StatusNotReady, Reason: reason}, true
		default:
			return Result{Status: StatusPending, Reason: reason}, true
		}
	}
	return Result{}, false
}
