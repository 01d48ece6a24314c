/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"github.com/rcrowley/go-metrics"
)

const (
	InstancesCreatedCounter   = "cdi.instances.created"
	InstancesDestroyedCounter = "cdi.instances.destroyed"
	StoreHitsCounter          = "cdi.store.hits"
	StoreMissesCounter        = "cdi.store.misses"
	StoreRacesCounter         = "cdi.store.races"
	ResolutionFailuresCounter = "cdi.resolution.failures"
	EventsFiredCounter        = "cdi.events.fired"
	ObserversNotifiedCounter  = "cdi.observers.notified"
	CreateLatencyTimer        = "cdi.instances.create_latency"
	ConversationsGauge        = "cdi.conversations.active"
)

/**
Use this option to collect container metrics in the given registry instead of a private one
*/
type Metrics struct {
	Registry metrics.Registry
}

func (t Metrics) apply(c *container) {
	if t.Registry != nil {
		c.metrics = t.Registry
	}
}

type containerStats struct {
	created       metrics.Counter
	destroyed     metrics.Counter
	hits          metrics.Counter
	misses        metrics.Counter
	races         metrics.Counter
	failures      metrics.Counter
	fired         metrics.Counter
	notified      metrics.Counter
	createLatency metrics.Timer
	conversations metrics.Gauge
}

func newContainerStats(r metrics.Registry) *containerStats {
	return &containerStats{
		created:       metrics.GetOrRegisterCounter(InstancesCreatedCounter, r),
		destroyed:     metrics.GetOrRegisterCounter(InstancesDestroyedCounter, r),
		hits:          metrics.GetOrRegisterCounter(StoreHitsCounter, r),
		misses:        metrics.GetOrRegisterCounter(StoreMissesCounter, r),
		races:         metrics.GetOrRegisterCounter(StoreRacesCounter, r),
		failures:      metrics.GetOrRegisterCounter(ResolutionFailuresCounter, r),
		fired:         metrics.GetOrRegisterCounter(EventsFiredCounter, r),
		notified:      metrics.GetOrRegisterCounter(ObserversNotifiedCounter, r),
		createLatency: metrics.GetOrRegisterTimer(CreateLatencyTimer, r),
		conversations: metrics.GetOrRegisterGauge(ConversationsGauge, r),
	}
}
