/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package shard

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	usedBytesDesc = prometheus.NewDesc(
		"tlsf_shard_arena_used_bytes",
		"Bytes currently allocated out of an arena.",
		[]string{"arena"}, nil,
	)
	freeBytesDesc = prometheus.NewDesc(
		"tlsf_shard_arena_free_bytes",
		"Bytes currently free within an arena.",
		[]string{"arena"}, nil,
	)
	largestFreeBytesDesc = prometheus.NewDesc(
		"tlsf_shard_arena_largest_free_bytes",
		"Exact size of the largest single free block available in an arena.",
		[]string{"arena"}, nil,
	)
	fallbackTotalDesc = prometheus.NewDesc(
		"tlsf_shard_fallback_total",
		"Number of allocations that could not be satisfied by the round-robin candidate arena and fell back to scanning or blocking.",
		nil, nil,
	)
)

// Describe implements prometheus.Collector.
func (s *Shard) Describe(ch chan<- *prometheus.Desc) {
	ch <- usedBytesDesc
	ch <- freeBytesDesc
	ch <- largestFreeBytesDesc
	ch <- fallbackTotalDesc
}

// Collect implements prometheus.Collector. It acquires each arena's
// lock briefly to read a consistent snapshot, the same way Stats and
// Check do.
func (s *Shard) Collect(ch chan<- prometheus.Metric) {
	for i := range s.arenas {
		a := &s.arenas[i]
		label := arenaLabel(i)

		a.lock.Acquire()
		st := a.pool.Stats()
		a.lock.Release()

		ch <- prometheus.MustNewConstMetric(usedBytesDesc, prometheus.GaugeValue, float64(st.UsedBytes), label)
		ch <- prometheus.MustNewConstMetric(freeBytesDesc, prometheus.GaugeValue, float64(st.FreeBytes), label)
		ch <- prometheus.MustNewConstMetric(largestFreeBytesDesc, prometheus.GaugeValue, float64(st.LargestFree), label)
	}
	ch <- prometheus.MustNewConstMetric(fallbackTotalDesc, prometheus.CounterValue, float64(s.fallbackCount.load()))
}

func arenaLabel(i int) string {
	return strconv.Itoa(i)
}
