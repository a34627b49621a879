/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package shard

import "sync/atomic"

// atomicCounter is a lock-free monotonic counter, used both to pick a
// round-robin candidate arena and to tally fallback-path hits for the
// Prometheus collector.
type atomicCounter struct {
	v uint64
}

func (c *atomicCounter) add(delta uint64) uint64 {
	return atomic.AddUint64(&c.v, delta)
}

func (c *atomicCounter) load() uint64 {
	return atomic.LoadUint64(&c.v)
}
