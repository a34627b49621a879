/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import "unsafe"

// blockRef is a logical byte offset identifying a block by the address
// of its header word, measured from the start of whatever region
// currently claims that offset range — NOT from a single pool-wide
// base. Blocks are never modeled as owned Go objects: a blockRef is
// resolved to a real address on every access via Pool.word, which looks
// up the owning region. This indirection is what lets a pool span
// several independently-allocated Go byte slices (NewFixed's region,
// any Append-ed or Resize-grown ones) without ever computing pointer
// arithmetic that crosses from one allocation into another.
//
// Physical layout of a block, relative to its ref (h = ref):
//
//	[h-W: prev_phys]  [h: header]  [h+W: next_free]  [h+2W: prev_free]  ...payload...
//
// prev_phys is only meaningful when the PHYSICALLY preceding block is
// free: it then holds that block's ref. It physically overlaps the last
// word of the preceding block's payload, so it must never be read
// unless isPrevFree(ref) is true first.
//
// next_free/prev_free alias the first two words of the block's own
// payload and are only meaningful while the block is free.
type blockRef uintptr

// sentinelRef is the free-list terminator. It can never collide with a
// real offset because every pool is bounded by 1<<flMax, strictly less
// than the all-ones uintptr.
const sentinelRef blockRef = ^blockRef(0)

// Status bits packed into the low bits of the header word alongside the
// block's (always word-aligned) size.
const (
	bitFree     uintptr = 1 << 0
	bitPrevFree uintptr = 1 << 1
	bitsMask    uintptr = bitFree | bitPrevFree
)

// word returns a pointer to the machine word at logical byte offset
// off, resolved against whichever region currently owns that offset.
func (p *Pool) word(off uintptr) *uintptr {
	r := p.regionAt(off)
	return (*uintptr)(unsafe.Add(r.ptr, off-uintptr(r.start)))
}

// regionAt returns the region owning logical offset off.
func (p *Pool) regionAt(off uintptr) region {
	i := p.regionIndexAt(off)
	if i < 0 {
		panic("tlsf: blockRef out of range")
	}
	return p.regions[i]
}

// regionIndexAt returns the index into p.regions of the region owning
// logical offset off, or -1 if none does. Regions are searched
// newest-first: the region most recently added (the common case being
// the one most recently touched, e.g. right after a growth step) is
// checked before older ones. The region list only grows via
// Append/Resize-driven growth, both rare compared to block accesses, so
// a linear scan over it — rather than a pool-wide base pointer unsound
// across separate allocations — is the cost this safety buys.
func (p *Pool) regionIndexAt(off uintptr) int {
	for i := len(p.regions) - 1; i >= 0; i-- {
		r := p.regions[i]
		if off >= uintptr(r.start) && off < uintptr(r.start)+r.size {
			return i
		}
	}
	return -1
}

// regionForAddr returns the region whose real address range contains
// ptr, the inverse lookup of regionAt — used to recover a blockRef from
// a pointer a caller handed back to Free/Realloc/UsableSize.
func (p *Pool) regionForAddr(ptr unsafe.Pointer) region {
	addr := uintptr(ptr)
	for i := len(p.regions) - 1; i >= 0; i-- {
		r := p.regions[i]
		base := uintptr(r.ptr)
		if addr >= base && addr < base+r.size {
			return r
		}
	}
	panic("tlsf: pointer not owned by this pool")
}

func (p *Pool) header(ref blockRef) uintptr {
	return *p.word(uintptr(ref))
}

func (p *Pool) setHeader(ref blockRef, v uintptr) {
	*p.word(uintptr(ref)) = v
}

// blockSize returns the payload size recorded in ref's header, with the
// status bits masked off.
func (p *Pool) blockSize(ref blockRef) uintptr {
	return p.header(ref) &^ bitsMask
}

func (p *Pool) setBlockSize(ref blockRef, size uintptr) {
	p.setHeader(ref, size|(p.header(ref)&bitsMask))
}

func (p *Pool) isFree(ref blockRef) bool {
	return p.header(ref)&bitFree != 0
}

func (p *Pool) isPrevFree(ref blockRef) bool {
	return p.header(ref)&bitPrevFree != 0
}

func (p *Pool) setPrevFree(ref blockRef, free bool) {
	h := p.header(ref)
	if free {
		p.setHeader(ref, h|bitPrevFree)
	} else {
		p.setHeader(ref, h&^bitPrevFree)
	}
}

// payload returns the address of the usable memory of the block at ref.
func (p *Pool) payload(ref blockRef) unsafe.Pointer {
	off := uintptr(ref) + wordSize
	r := p.regionAt(uintptr(ref))
	return unsafe.Add(r.ptr, off-uintptr(r.start))
}

// refFromPayload recovers a block's ref from a pointer previously
// returned to a caller.
func (p *Pool) refFromPayload(ptr unsafe.Pointer) blockRef {
	r := p.regionForAddr(ptr)
	return blockRef(uintptr(r.start) + (uintptr(ptr) - uintptr(r.ptr)) - wordSize)
}

// nextPhys returns the ref of the block immediately following ref in
// physical memory. Valid for any block that is not the end sentinel.
func (p *Pool) nextPhys(ref blockRef) blockRef {
	return ref + blockRef(p.blockSize(ref)) + blockRef(wordSize)
}

// prevPhys returns the ref of the block immediately preceding ref in
// physical memory. The caller MUST have checked isPrevFree(ref) first:
// the prev_phys slot overlaps the preceding block's payload and is
// otherwise garbage (real caller data, in the common case).
func (p *Pool) prevPhys(ref blockRef) blockRef {
	return blockRef(*p.word(uintptr(ref) - wordSize))
}

func (p *Pool) setPrevPhys(ref, prev blockRef) {
	*p.word(uintptr(ref)-wordSize) = uintptr(prev)
}

// nextFree/prevFree read and write a free block's list links. The
// sentinel's own links live in two Pool-level scalar fields rather than
// in the byte region, so that insert/remove can write them
// unconditionally (branchless) without ever touching memory that
// doesn't exist for an empty pool.
func (p *Pool) nextFree(ref blockRef) blockRef {
	if ref == sentinelRef {
		return p.sentinelNext
	}
	return blockRef(*p.word(uintptr(ref) + wordSize))
}

func (p *Pool) setNextFree(ref, next blockRef) {
	if ref == sentinelRef {
		p.sentinelNext = next
		return
	}
	*p.word(uintptr(ref)+wordSize) = uintptr(next)
}

func (p *Pool) prevFree(ref blockRef) blockRef {
	if ref == sentinelRef {
		return p.sentinelPrev
	}
	return blockRef(*p.word(uintptr(ref) + 2*wordSize))
}

func (p *Pool) setPrevFreeLink(ref, prev blockRef) {
	if ref == sentinelRef {
		p.sentinelPrev = prev
		return
	}
	*p.word(uintptr(ref)+2*wordSize) = uintptr(prev)
}

// linkNext points the block physically following ref back at ref via
// prev_phys, and returns that next block's ref. Used whenever a block's
// size changes and its successor might need to know where it starts.
func (p *Pool) linkNext(ref blockRef) blockRef {
	next := p.nextPhys(ref)
	p.setPrevPhys(next, ref)
	return next
}

// setFree flips a block's free bit and informs its physical successor
// via the successor's prev_free bit. The successor's prev_phys slot is
// written only when ref becomes free: for a used block that slot is the
// last word of the caller's payload.
func (p *Pool) setFree(ref blockRef, free bool) {
	h := p.header(ref)
	if free {
		p.setHeader(ref, h|bitFree)
		p.setPrevFree(p.linkNext(ref), true)
	} else {
		p.setHeader(ref, h&^bitFree)
		p.setPrevFree(p.nextPhys(ref), false)
	}
}

// canTrim reports whether ref can be split into a prefix of size size
// and a remainder of at least the pool's configured split threshold,
// which may be larger than the bare minimum to avoid scattering tiny,
// metadata-dominated free fragments.
func (p *Pool) canTrim(ref blockRef, size uintptr) bool {
	return p.blockSize(ref) >= blockOverhead+p.splitThreshold+size
}

// split divides ref into a used prefix of size bytes and a free
// remainder, returning the remainder's ref. The remainder is left
// unlinked (neither inserted into a bin nor connected to its own
// successor via linkNext) — callers finish wiring it.
func (p *Pool) split(ref blockRef, size uintptr) blockRef {
	rest := ref + blockRef(size) + blockRef(wordSize)
	restSize := p.blockSize(ref) - (size + blockOverhead)
	p.setHeader(rest, restSize|bitFree)
	p.setBlockSize(ref, size)
	return rest
}
