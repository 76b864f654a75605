// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package harvest runs one collection: discover, list, filter, write, aggregate
// events and compress.
package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	clientdiscovery "k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"

	"github.com/confighub/tvk-harvest/internal/health"
	"github.com/confighub/tvk-harvest/internal/logging"
	"github.com/confighub/tvk-harvest/pkg/archive"
	"github.com/confighub/tvk-harvest/pkg/catalog"
	"github.com/confighub/tvk-harvest/pkg/discovery"
	"github.com/confighub/tvk-harvest/pkg/events"
	"github.com/confighub/tvk-harvest/pkg/filter"
	"github.com/confighub/tvk-harvest/pkg/lister"
	"github.com/confighub/tvk-harvest/pkg/podlogs"
)

// Options configures a Harvester.
type Options struct {
	// Root is the output tree; the archive is written next to it as Root.zip.
	Root string

	// Namespaces restricts namespaced kinds to these namespaces. Empty means clustered.
	Namespaces []string

	// Clean removes a stale tree before the run and the tree after the zip.
	Clean bool

	// Version, Cluster and Command are recorded in summary.yaml and harvest.log.
	Version string
	Cluster string
	Command string

	// Target defaults to filter.TrilioVault.
	Target *filter.Target
}

// Harvester collects the objects, logs and events of one application.
type Harvester struct {
	disc   *discovery.Client
	lister *lister.Lister
	logs   podlogs.Source
	writer *archive.Writer
	log    *logrus.Logger
	opts   Options
	target filter.Target
}

// New creates a harvester from cluster clients. A nil logger uses the
// logrus standard logger.
func New(disc clientdiscovery.DiscoveryInterface, dyn dynamic.Interface, logs podlogs.Source, logger *logrus.Logger, opts Options) *Harvester {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	target := filter.TrilioVault
	if opts.Target != nil {
		target = *opts.Target
	}
	return &Harvester{
		disc:   discovery.NewClient(disc),
		lister: lister.New(dyn, opts.Namespaces),
		logs:   logs,
		writer: archive.NewWriter(opts.Root),
		log:    logger,
		opts:   opts,
		target: target,
	}
}

// run holds the state that flows between steps of one Run.
type run struct {
	*Harvester
	groups  []metav1.APIGroup
	summary *archive.Summary
	jobs    []unstructured.Unstructured
	matched events.Matched
}

// Run performs the harvest and returns the path of the zip archive.
// A namespace scope error is returned before anything is written.
func (h *Harvester) Run(ctx context.Context) (string, error) {
	r := &run{
		Harvester: h,
		summary:   archive.NewSummary(h.opts.Version, h.opts.Cluster, h.opts.Namespaces),
		matched:   events.Matched{},
	}

	h.log.Info("Fetching API group list")
	groups, err := h.disc.Groups()
	if err != nil {
		return "", err
	}
	r.groups = groups

	if err := r.checkScope(ctx); err != nil {
		return "", err
	}

	if err := h.writer.Prepare(h.opts.Clean); err != nil {
		return "", err
	}

	runLog, err := logging.NewRunLog(h.writer.Root(), h.opts.Command)
	if err != nil {
		return "", err
	}
	restore := h.attach(runLog)
	defer restore()

	if err := r.collect(ctx); err != nil {
		h.log.WithError(err).Error("Harvest failed")
		_ = runLog.Close()
		return "", err
	}

	r.summary.FinishedAt = time.Now().UTC()
	h.log.WithFields(logrus.Fields{
		"objects": r.summary.Total(),
		"logs":    r.summary.Logs,
		"events":  r.summary.Events,
	}).Info("Collection finished")
	if err := h.writer.WriteSummary(r.summary); err != nil {
		_ = runLog.Close()
		return "", err
	}

	// The run log must be complete before it is zipped.
	restore()
	if err := runLog.Close(); err != nil {
		return "", err
	}

	zipPath, err := h.writer.Finalize(h.opts.Clean)
	if err != nil {
		return "", err
	}
	h.log.WithField("archive", zipPath).Info("Archive written")
	return zipPath, nil
}

// attach adds hook to the logger and returns a func that restores the
// previous hooks. The returned func may be called more than once.
func (h *Harvester) attach(hook logrus.Hook) func() {
	hooks := make(logrus.LevelHooks)
	for level, hs := range h.log.Hooks {
		hooks[level] = append([]logrus.Hook(nil), hs...)
	}
	hooks.Add(hook)
	previous := h.log.ReplaceHooks(hooks)

	restored := false
	return func() {
		if restored {
			return
		}
		restored = true
		h.log.ReplaceHooks(previous)
	}
}

func (r *run) checkScope(ctx context.Context) error {
	r.log.Info("Checking Namespaces")
	core, err := r.disc.Resources(catalog.CoreGV)
	if err != nil {
		return err
	}
	namespaces, err := r.lister.List(ctx, discovery.Find(core, catalog.Namespaces))
	if err != nil {
		return err
	}
	if err := filter.CheckScope(filter.ObjectNames(namespaces), r.opts.Namespaces); err != nil {
		r.log.WithError(err).Error("Specified namespaces don't exist in the cluster")
		return err
	}
	return nil
}

func (r *run) collect(ctx context.Context) error {
	for _, entry := range catalog.Entries() {
		r.log.Infof("Checking %s", entry.Title)
		descs, err := r.resolve(entry)
		if err != nil {
			return err
		}
		if len(descs) == 0 {
			r.log.WithFields(logrus.Fields{
				"group":    entry.Group + entry.GroupVersion,
				"resource": entry.Resource,
			}).Info("Not served by the cluster, skipping")
			continue
		}
		// A named resource served in several versions is listed as one kind.
		if entry.Resource != "" {
			if err := r.collectResource(ctx, entry, descs); err != nil {
				return err
			}
			continue
		}
		for i := range descs {
			if err := r.collectResource(ctx, entry, descs[i:i+1]); err != nil {
				return err
			}
		}
	}
	return r.collectEvents(ctx)
}

// resolve turns a catalog entry into the descriptors to list.
func (r *run) resolve(entry catalog.Entry) ([]discovery.ResourceDescriptor, error) {
	var gvs []discovery.GroupVersion
	switch entry.Policy {
	case catalog.Fixed:
		gvs = []discovery.GroupVersion{discovery.GroupVersion(entry.GroupVersion)}
	case catalog.Preferred:
		if gv := discovery.PreferredVersion(r.groups, entry.Group); gv != "" {
			gvs = []discovery.GroupVersion{gv}
		}
	case catalog.AllVersions:
		gvs = discovery.AllVersions(r.groups, entry.Group)
	}

	byVersion, err := r.disc.ResourcesByVersion(gvs)
	if err != nil {
		return nil, err
	}
	if entry.Resource != "" {
		return discovery.FindEach(byVersion, entry.Resource), nil
	}
	var all []discovery.ResourceDescriptor
	for _, vr := range byVersion {
		all = append(all, vr.Resources...)
	}
	return all, nil
}

func (r *run) collectResource(ctx context.Context, entry catalog.Entry, descs []discovery.ResourceDescriptor) error {
	objs, err := r.lister.ListEach(ctx, descs)
	if err != nil {
		return err
	}
	kind := descs[0].Kind
	kept := r.keep(entry.Filter, kind, objs)
	kindDir := entry.KindDir(kind)

	r.log.WithFields(logrus.Fields{
		"kind":   kind,
		"listed": len(objs),
		"kept":   len(kept),
	}).Debug("Filtered objects")

	for i := range kept {
		obj := &kept[i]
		if _, err := r.writer.WriteObject(kindDir, obj); err != nil {
			return err
		}
		r.summary.CountObject(kindDir)
		if res := health.Check(obj); !res.IsHealthy() {
			r.summary.AddFinding(kindDir, obj.GetNamespace(), obj.GetName(), res.Status, res.Reason)
			r.log.WithFields(logrus.Fields{
				"kind":      kind,
				"namespace": obj.GetNamespace(),
				"name":      obj.GetName(),
				"status":    res.Status,
				"reason":    res.Reason,
			}).Warn("Unhealthy object")
		}
		if entry.Filter == catalog.FilterPod {
			if err := r.collectLogs(ctx, kindDir, obj); err != nil {
				return err
			}
		}
	}
	return nil
}

// keep applies the entry's filter. Kept jobs and pods are recorded for the
// pod filter and the event aggregator.
func (r *run) keep(f catalog.Filter, kind string, objs []unstructured.Unstructured) []unstructured.Unstructured {
	switch f {
	case catalog.FilterCSV:
		return r.target.CSVs(objs)
	case catalog.FilterCRD:
		return r.target.CRDs(objs)
	case catalog.FilterWebhook:
		return r.target.Webhooks(objs)
	case catalog.FilterJob:
		jobs := r.target.Jobs(objs)
		r.jobs = append(r.jobs, jobs...)
		r.matched.Add(kind, namespacedNames(jobs)...)
		return jobs
	case catalog.FilterPod:
		pods, keys := r.target.Pods(objs, r.jobs)
		r.matched.Add(kind, keys...)
		return pods
	default:
		return objs
	}
}

func (r *run) collectLogs(ctx context.Context, kindDir string, pod *unstructured.Unstructured) error {
	containers, err := podlogs.Eligible(pod)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.Current {
			if err := r.collectLog(ctx, kindDir, pod, c.Name, false); err != nil {
				return err
			}
		}
		if c.Previous {
			if err := r.collectLog(ctx, kindDir, pod, c.Name, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) collectLog(ctx context.Context, kindDir string, pod *unstructured.Unstructured, container string, previous bool) error {
	ns, name := pod.GetNamespace(), pod.GetName()
	res := podlogs.Fetch(ctx, r.logs, ns, name, container, previous)
	switch res.Outcome {
	case podlogs.Fetched:
		if _, err := r.writer.WriteLog(kindDir, ns, name, container, previous, res.Data); err != nil {
			return err
		}
		r.summary.Logs++
	case podlogs.Unavailable:
		r.log.WithFields(logrus.Fields{
			"namespace": ns,
			"pod":       name,
			"container": container,
		}).Info("Container log not available yet, skipping")
		r.summary.SkippedLogs = append(r.summary.SkippedLogs,
			fmt.Sprintf("%s/%s.%s.%s", ns, name, container, podlogs.Suffix(previous)))
	default:
		return res.Err
	}
	return nil
}

func (r *run) collectEvents(ctx context.Context) error {
	r.log.Info("Checking Events")
	core, err := r.disc.Resources(catalog.CoreGV)
	if err != nil {
		return err
	}
	evs, err := r.lister.List(ctx, discovery.Find(core, catalog.Events))
	if err != nil {
		return err
	}
	idx := events.Aggregate(evs, r.matched, r.target.Group)
	if err := r.writer.WriteEvents(idx); err != nil {
		return err
	}
	r.summary.Events = idx.Len()
	return nil
}

func namespacedNames(objs []unstructured.Unstructured) []types.NamespacedName {
	keys := make([]types.NamespacedName, 0, len(objs))
	for i := range objs {
		keys = append(keys, types.NamespacedName{Namespace: objs[i].GetNamespace(), Name: objs[i].GetName()})
	}
	return keys
}
