/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

// Package tlsf implements a Two-Level Segregated Fit memory allocator.
//
// TLSF maps an allocation size to a two-dimensional array of free lists
// (a first-level class and a second-level subdivision within it) and
// finds a suitable free block by scanning two bitmaps with constant-time
// bit operations. Allocation, deallocation and reallocation all run in
// O(1) worst case, which makes the allocator suitable for real-time and
// embedded workloads where predictable latency matters more than average
// throughput.
//
// A Pool draws from one or more memory regions: a fixed-size region
// supplied up front (NewFixed), regions added later with Append, or
// regions a dynamic pool (NewDynamic) obtains on demand through a
// caller-supplied Resize callback. Pool is NOT
// goroutine-safe; concurrent access from multiple goroutines requires
// external synchronization, or the sharded wrapper in the shard
// subpackage.
package tlsf
