/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import "unsafe"

// Free returns a block previously obtained from Malloc, Aalloc, or
// Realloc to the pool, merging it with either physical neighbor that is
// also free. A nil ptr is a no-op, matching tlsf_free/C's free.
func (p *Pool) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	p.freeBlock(p.refFromPayload(ptr))
}

// freeBlock merges ref with any free physical neighbors. If the merged
// block now spans its entire owning region — its next physical neighbor
// is that region's own end sentinel — and the pool is dynamic, the
// region is shrunk out of the pool instead of being reinserted into the
// free list, mirroring arena_shrink: tlsf_free only ever releases memory
// back to the backend when the freed block borders the arena's end
// sentinel, never for an arbitrary mid-pool free run. Fixed pools
// (p.resize == nil) never shrink, matching t->arena's effect in the
// original.
func (p *Pool) freeBlock(ref blockRef) {
	size := p.blockSize(ref)

	if p.isPrevFree(ref) {
		prev := p.prevPhys(ref)
		p.removeBlock(prev)
		size += p.blockSize(prev) + blockOverhead
		ref = prev
		// Write the merged size back immediately: nextPhys below must
		// see ref's new size, not the smaller pre-merge one.
		p.setBlockSize(ref, size)
	}

	next := p.nextPhys(ref)
	if p.isFree(next) {
		p.removeBlock(next)
		size += p.blockSize(next) + blockOverhead
		p.setBlockSize(ref, size)
		next = p.nextPhys(ref)
	}

	if p.resize != nil && p.blockSize(next) == 0 {
		if ri := p.regionIndexAt(uintptr(ref)); ri >= 0 && p.regions[ri].start == ref {
			p.shrinkRegion(ri)
			return
		}
	}

	p.setFree(ref, true)
	p.insertBlock(ref)
}
