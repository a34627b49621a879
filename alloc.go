/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import "unsafe"

// Malloc returns a pointer to at least n usable bytes, or nil if the
// pool is exhausted (and, for a dynamic pool, its Resize callback
// cannot grow it further). Matches tlsf_malloc.
func (p *Pool) Malloc(n uintptr) unsafe.Pointer {
	size := adjustSize(n)
	if size > maxSize(p.flMax) {
		return nil
	}

	ref, fl, sl := p.findSuitable(size)
	for ref == sentinelRef {
		if !p.growFor(size) {
			return nil
		}
		ref, fl, sl = p.findSuitable(size)
	}

	p.allocateBlock(ref, fl, sl, size)
	return p.payload(ref)
}

// Aalloc is Malloc with an additional alignment guarantee: the returned
// pointer is a multiple of align, which must be a power of two. It
// over-allocates and left-trims the matched block so the excess before
// the aligned payload becomes its own free block, matching tlsf_aalloc.
func (p *Pool) Aalloc(align, n uintptr) unsafe.Pointer {
	if align <= wordSize {
		return p.Malloc(n)
	}

	size := adjustSize(n)
	// A leading gap trimmed off in front of the aligned payload becomes a
	// free block of its own, so it needs room for a header word plus at
	// least blockSizeMin bytes of payload.
	const gapMinimum = blockSizeMin + blockOverhead
	// Worst case the matched block's payload starts just short of an
	// aligned address, leaving too small a gap to trim off (see the
	// gapMinimum adjustment below) — reserve align-1 bytes of slack plus
	// gapMinimum so the payload still fits after sliding forward.
	adjust := alignUp(size+align-1+gapMinimum, align)
	if adjust > maxSize(p.flMax) {
		return nil
	}

	ref, fl, sl := p.findSuitable(adjust)
	for ref == sentinelRef {
		if !p.growFor(adjust) {
			return nil
		}
		ref, fl, sl = p.findSuitable(adjust)
	}

	p.removeBlockAt(ref, fl, sl)

	aligned := alignPtr(p.payload(ref), align)
	gotGap := uintptr(aligned) - uintptr(p.payload(ref))
	if gotGap != 0 && gotGap < gapMinimum {
		// Too small a leading gap to be its own free block: slide to
		// the next aligned address instead.
		aligned = alignPtr(unsafe.Add(p.payload(ref), gapMinimum), align)
		gotGap = uintptr(aligned) - uintptr(p.payload(ref))
	}
	if gotGap != 0 {
		// The remainder's header word sits inside the gap, so the leading
		// free block's payload is one word shorter than the gap itself.
		ref = p.ltrimFree(ref, gotGap-blockOverhead)
	}

	p.finishUsedBlock(ref, size)
	return p.payload(ref)
}

// allocateBlock removes ref (already located at bin fl/sl) from the
// free list and hands it to the caller, splitting off a trailing free
// remainder when ref is comfortably larger than size.
func (p *Pool) allocateBlock(ref blockRef, fl, sl uint32, size uintptr) {
	p.removeBlockAt(ref, fl, sl)
	p.finishUsedBlock(ref, size)
}

// finishUsedBlock marks a just-removed free block (already unlinked
// from the free list) used, splitting off a free remainder first when
// worthwhile.
func (p *Pool) finishUsedBlock(ref blockRef, size uintptr) {
	if p.canTrim(ref, size) {
		rest := p.split(ref, size)
		p.setFree(ref, false)
		p.setFree(rest, true)
		p.insertBlock(rest)
	} else {
		p.setFree(ref, false)
	}
}

// ltrimFree splits off and frees a leading gap bytes of ref, returning
// the ref of the remaining (still free, still unlinked) block. Used by
// Aalloc to discard the slack before an aligned payload. gap must leave
// at least blockSizeMin bytes in the remainder.
func (p *Pool) ltrimFree(ref blockRef, gap uintptr) blockRef {
	gap = adjustSize(gap)
	prevFreeBit := p.isPrevFree(ref)
	origSize := p.blockSize(ref)

	rest := ref + blockRef(gap) + blockRef(wordSize)
	restSize := origSize - (gap + blockOverhead)
	p.setHeader(rest, restSize)

	p.setHeader(ref, gap)
	p.setPrevFree(ref, prevFreeBit)
	// setFree(ref, true) both marks ref free and, via linkNext, stamps
	// rest's prev_phys/prev_free — rest is about to become the used
	// block finishUsedBlock hands to the caller.
	p.setFree(ref, true)
	p.insertBlock(ref)

	return rest
}
