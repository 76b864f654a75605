// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package podlogs decides which container logs a pod has and fetches them.
package podlogs

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
)

// Container lists the logs available for one container.
type Container struct {
	Name     string
	Current  bool
	Previous bool
}

// Eligible returns the containers of pod with their log availability.
// Init container statuses follow regular ones; a repeated name keeps its
// first position and takes the later status.
func Eligible(pod *unstructured.Unstructured) ([]Container, error) {
	var typed corev1.Pod
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(pod.Object, &typed); err != nil {
		return nil, fmt.Errorf("read status of pod %s/%s: %w", pod.GetNamespace(), pod.GetName(), err)
	}

	var out []Container
	pos := make(map[string]int)
	add := func(statuses []corev1.ContainerStatus) {
		for _, cs := range statuses {
			c := Container{
				Name:     cs.Name,
				Current:  cs.State.Running != nil || cs.State.Terminated != nil,
				Previous: cs.LastTerminationState.Terminated != nil,
			}
			if i, ok := pos[cs.Name]; ok {
				out[i] = c
				continue
			}
			pos[cs.Name] = len(out)
			out = append(out, c)
		}
	}
	add(typed.Status.ContainerStatuses)
	add(typed.Status.InitContainerStatuses)
	return out, nil
}

// Source fetches the log of one container.
type Source interface {
	Fetch(ctx context.Context, namespace, pod, container string, previous bool) ([]byte, error)
}

// ClientSource reads logs through the core API.
type ClientSource struct {
	client kubernetes.Interface
}

// NewClientSource creates a Source backed by client.
func NewClientSource(client kubernetes.Interface) *ClientSource {
	return &ClientSource{client: client}
}

// Fetch implements Source.
func (s *ClientSource) Fetch(ctx context.Context, namespace, pod, container string, previous bool) ([]byte, error) {
	return s.client.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{
		Container: container,
		Previous:  previous,
	}).DoRaw(ctx)
}

// Outcome classifies a log fetch.
type Outcome int

const (
	// Fetched means Result.Data holds the log.
	Fetched Outcome = iota
	// Unavailable means the container is still being created.
	Unavailable
	// Failed means Result.Err holds a fatal error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Fetched:
		return "fetched"
	case Unavailable:
		return "unavailable"
	default:
		return "failed"
	}
}

// Result is the outcome of one log fetch.
type Result struct {
	Outcome Outcome
	Data    []byte
	Err     error
}

// containerCreating appears in the API error for pods whose containers have not started.
const containerCreating = "ContainerCreating"

// Fetch reads one container log and classifies the outcome.
func Fetch(ctx context.Context, src Source, namespace, pod, container string, previous bool) Result {
	data, err := src.Fetch(ctx, namespace, pod, container, previous)
	switch {
	case err == nil:
		return Result{Outcome: Fetched, Data: data}
	case strings.Contains(err.Error(), containerCreating):
		return Result{Outcome: Unavailable, Err: err}
	default:
		return Result{Outcome: Failed, Err: fmt.Errorf("fetch log of %s/%s container %s: %w", namespace, pod, container, err)}
	}
}

// Suffix names the log file kind: "curr" or "prev".
func Suffix(previous bool) string {
	if previous {
		return "prev"
	}
	return "curr"
}
