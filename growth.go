/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import "go.uber.org/zap"

// defaultGrowChunk is the minimum increment a dynamic pool asks its
// Resize callback for, even when an individual request needs less. It
// amortizes the cost of repeated small Resize calls (and the syscalls
// or bookkeeping most Resize implementations will do) the same way the
// original arena_grow backs off from a generous first guess.
const defaultGrowChunk = 64 * 1024

// growFor attempts to grow a dynamic pool by enough to satisfy a
// request of adjustedSize bytes, trying progressively smaller
// increments the way arena_grow backs off from an optimistic first
// guess down to the bare minimum before giving up. It reports whether
// growth succeeded.
func (p *Pool) growFor(adjustedSize uintptr) bool {
	if p.resize == nil {
		return false
	}
	// findSuitable searches from the bin of the rounded size, so the new
	// region's free block must be at least that large to be found.
	minNeeded := roundBlockSize(adjustedSize) + 2*wordSize + blockOverhead

	for _, want := range []uintptr{defaultGrowChunk, minNeeded} {
		if want < minNeeded {
			want = minNeeded
		}
		regionPtr := p.resize(want)
		if regionPtr == nil {
			continue
		}
		if _, err := p.addRegion(regionPtr, want); err != nil {
			p.logger.Warn("tlsf: grow region rejected", zap.Error(err))
			continue
		}
		p.logger.Debug("tlsf: pool grown", zap.Uint64("bytes", uint64(want)), zap.Uint64("total", uint64(p.size)))
		return true
	}
	return false
}

// shrinkRegion drops the region at index ri from the pool entirely,
// mirroring arena_shrink: the region's only block (by construction, the
// caller has already verified it covers the whole region, end sentinel
// included) is not reinserted into the free list at all, and the region
// is handed back via Release if the pool was configured with one. This
// is the Go-safe analogue of tlsf_resize(t, t->size) shrinking the
// arena in place: a Go region is one atomic allocation and can only be
// released as a whole, never trimmed from the end like a realloc-backed
// C arena, so shrink here always means "drop the whole region."
func (p *Pool) shrinkRegion(ri int) {
	r := p.regions[ri]
	p.regions = append(p.regions[:ri:ri], p.regions[ri+1:]...)
	p.size -= r.size
	if p.release != nil {
		p.release(r.ptr, r.size)
	}
	p.logger.Debug("tlsf: region shrunk", zap.Uint64("bytes", uint64(r.size)), zap.Uint64("total", uint64(p.size)))
}
