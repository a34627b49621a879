/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

// insertBlock links a free block into the head of its (fl, sl) bin and
// marks both bitmap bits, using size currently recorded in its header.
func (p *Pool) insertBlock(ref blockRef) {
	fl, sl := mapping(p.blockSize(ref))
	head := p.heads[fl][sl]

	p.setNextFree(ref, head)
	p.setPrevFreeLink(ref, sentinelRef)
	p.setPrevFreeLink(head, ref)

	p.heads[fl][sl] = ref
	p.flBmp |= 1 << fl
	p.slBmp[fl] |= 1 << sl
}

// removeBlockAt unlinks a free block from its (fl, sl) bin, clearing
// either bitmap bit that becomes empty as a result. fl and sl are
// passed in rather than recomputed, since callers that locate a block
// via findSuitable already know them.
func (p *Pool) removeBlockAt(ref blockRef, fl, sl uint32) {
	next := p.nextFree(ref)
	prev := p.prevFree(ref)

	p.setNextFree(prev, next)
	p.setPrevFreeLink(next, prev)

	if p.heads[fl][sl] == ref {
		p.heads[fl][sl] = next
		if next == sentinelRef {
			p.slBmp[fl] &^= 1 << sl
			if p.slBmp[fl] == 0 {
				p.flBmp &^= 1 << fl
			}
		}
	}
}

// removeBlock unlinks ref from the free list, recomputing its bin from
// its current size.
func (p *Pool) removeBlock(ref blockRef) {
	fl, sl := mapping(p.blockSize(ref))
	p.removeBlockAt(ref, fl, sl)
}

// findSuitable locates a free block of at least size bytes: the head of
// the lowest non-empty bin at or above size's rounded-up class. Rounding
// size up first makes the search land directly on a bin known to
// satisfy it (the "good fit" property of TLSF's two-level bitmap), so a
// smaller block that would still fit, in a bin below the rounded class,
// is not considered. It
// returns sentinelRef, 0, 0 if no such block exists.
func (p *Pool) findSuitable(size uintptr) (ref blockRef, fl, sl uint32) {
	size = roundBlockSize(size)
	fl, sl = mapping(size)

	slMap := p.slBmp[fl] & (^uint32(0) << sl)
	if slMap == 0 {
		flMap := p.flBmp & (^uint32(0) << (fl + 1))
		if flMap == 0 {
			return sentinelRef, 0, 0
		}
		fl = ffs(flMap)
		slMap = p.slBmp[fl]
	}
	sl = ffs(slMap)
	return p.heads[fl][sl], fl, sl
}
