/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import "unsafe"

// Realloc resizes the allocation at ptr to n bytes, preserving its
// contents up to the smaller of the old and new sizes. ptr == nil
// behaves like Malloc(n); n == 0 behaves like Free(ptr) followed by a
// nil return. Matches tlsf_realloc, including its in-place merge
// fast paths before falling back to allocate+copy+free.
func (p *Pool) Realloc(ptr unsafe.Pointer, n uintptr) unsafe.Pointer {
	if ptr == nil {
		return p.Malloc(n)
	}
	if n == 0 {
		p.Free(ptr)
		return nil
	}

	size := adjustSize(n)
	if size > maxSize(p.flMax) {
		return nil
	}
	ref := p.refFromPayload(ptr)
	cur := p.blockSize(ref)

	if size <= cur {
		p.shrinkInPlace(ref, size)
		return p.payload(ref)
	}

	next := p.nextPhys(ref)
	nextFree := p.isFree(next)
	if nextFree && cur+blockOverhead+p.blockSize(next) >= size {
		p.mergeNextInto(ref, next)
		p.shrinkInPlace(ref, size)
		return p.payload(ref)
	}

	// Backward merge: combined = prev + current (+ next if free), as
	// tlsf_realloc computes before deciding whether an in-place
	// triple-merge can satisfy the grow request. A next contribution
	// only counts if next is free and wasn't already folded in above.
	if p.isPrevFree(ref) {
		prev := p.prevPhys(ref)
		combined := p.blockSize(prev) + blockOverhead + cur
		if nextFree {
			combined += blockOverhead + p.blockSize(next)
		}
		if combined >= size {
			if nextFree {
				p.mergeNextInto(ref, next)
			}
			newRef := p.mergeIntoPrev(ref, prev)
			src := p.payload(ref)
			dst := p.payload(newRef)
			moveBytes(dst, src, cur)
			p.shrinkInPlace(newRef, size)
			return p.payload(newRef)
		}
	}

	newPtr := p.Malloc(n)
	if newPtr == nil {
		return nil
	}
	moveBytes(newPtr, ptr, cur)
	p.Free(ptr)
	return newPtr
}

// moveBytes copies n bytes from src to dst, which may overlap (a
// backward merge slides a block's payload toward a lower address).
func moveBytes(dst, src unsafe.Pointer, n uintptr) {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	if uintptr(dst) < uintptr(src) {
		for i := uintptr(0); i < n; i++ {
			d[i] = s[i]
		}
	} else {
		for i := n; i > 0; i-- {
			d[i-1] = s[i-1]
		}
	}
}

// shrinkInPlace splits a used block down to exactly size bytes when the
// remainder clears the pool's split threshold, freeing (and coalescing)
// the trailing remainder.
func (p *Pool) shrinkInPlace(ref blockRef, size uintptr) {
	if !p.canTrim(ref, size) {
		return
	}
	rest := p.split(ref, size)
	p.setFree(ref, false) // no-op on the free bit (already used); clears rest's prev_free bit
	p.freeBlock(rest)
}

// mergeNextInto absorbs the free block physically following ref
// (already confirmed free by the caller) without changing ref's used
// status: ref stays used, it simply grows.
func (p *Pool) mergeNextInto(ref, next blockRef) {
	p.removeBlock(next)
	size := p.blockSize(ref) + blockOverhead + p.blockSize(next)
	p.setBlockSize(ref, size)
	// ref was already used (bit already clear); setFree still must run
	// to clear prev_free on the block now following ref.
	p.setFree(ref, false)
}

// mergeIntoPrev absorbs ref into its free physical predecessor prev,
// shifting the used block's start backward. The caller is responsible
// for moving the live payload from ref's old address to prev's.
func (p *Pool) mergeIntoPrev(ref, prev blockRef) blockRef {
	p.removeBlock(prev)
	size := p.blockSize(prev) + blockOverhead + p.blockSize(ref)
	p.setBlockSize(prev, size)
	p.setFree(prev, false) // prev was free; now carries the used block
	return prev
}
