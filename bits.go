/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import (
	"math/bits"
	"unsafe"
)

// Second-level subdivisions per first-level class. Fixed at 32: the
// free-list bin matrix is addressed by two uint32 bitmaps, and both
// fl and sl indices must fit within a single bitmap word.
const (
	slShift = 5
	slCount = 1 << slShift // 32
)

// wordSize is ALIGN: every address and every block size this allocator
// hands out is a multiple of the machine word.
const wordSize = unsafe.Sizeof(uintptr(0))

// alignShift is log2(wordSize): 3 on 64-bit, 2 on 32-bit.
var alignShift = bits.TrailingZeros(uint(wordSize))

// flShift is the boundary between the linear (fl=0) and logarithmic
// binning regimes: SL_SHIFT + log2(ALIGN).
var flShift = slShift + alignShift

// blockSizeSmall is the size threshold at which binning switches from
// linear (one bin per ALIGN bytes) to logarithmic (32 bins per
// power-of-two octave).
var blockSizeSmall = uintptr(1) << uint(flShift)

// blockOverhead is the metadata visible across two adjacent blocks: a
// single header word. See block.go for the full layout rationale.
const blockOverhead = wordSize

// blockSizeMin is the smallest payload a block can have and still carry
// free-list links (next_free, prev_free) plus the bytes a physically
// following block's prev-pointer slot overlaps.
const blockSizeMin = 3 * wordSize

// defaultFLMax returns the default FL_MAX for this platform's pointer
// width: 39 bits on 64-bit, 31 bits on 32-bit. Pool construction may
// lower it (WithFLMax) to shrink the control structure when the caller
// commits to a smaller maximum pool size.
func defaultFLMax() uint {
	if wordSize == 8 {
		return 39
	}
	return 31
}

// flCount returns FL_COUNT for a given FL_MAX.
func flCount(flMax uint) uint {
	return flMax - uint(flShift) + 1
}

// maxSize returns TLSF_MAX_SIZE for a given FL_MAX: the largest request
// this pool configuration will ever accept.
func maxSize(flMax uint) uintptr {
	return (uintptr(1) << (flMax - 1)) - wordSize
}

// alignUp rounds x up to the next multiple of align, align a power of two.
func alignUp(x, align uintptr) uintptr {
	return (x - 1 | (align - 1)) + 1
}

// alignPtr returns the first address >= p that is a multiple of align,
// preserving p's pointer provenance (the result is always derived from
// p via unsafe.Add, never synthesized from a bare integer).
func alignPtr(p unsafe.Pointer, align uintptr) unsafe.Pointer {
	addr := uintptr(p)
	return unsafe.Add(p, alignUp(addr, align)-addr)
}

// adjustSize clamps a requested size to the allocator's granularity: at
// least blockSizeMin, rounded up to ALIGN. Bounds are checked by the
// caller BEFORE this runs, because align_up wraps near the top of the
// address space and would otherwise bypass a TLSF_MAX_SIZE check.
func adjustSize(size uintptr) uintptr {
	size = alignUp(size, wordSize)
	if size < blockSizeMin {
		return blockSizeMin
	}
	return size
}

// log2Floor returns floor(log2(x)) for x > 0, via the hardware
// count-leading-zeros intrinsic math/bits compiles to on every
// supported architecture.
func log2Floor(x uintptr) uint {
	return uint(bits.UintSize-1) - uint(bits.LeadingZeros(uint(x)))
}

// roundBlockSize rounds size up to the next second-level bin boundary
// in the logarithmic regime; it is the identity below blockSizeSmall.
// This is the "good-fit" rounding that guarantees the first non-empty
// bin block_find_suitable locates is large enough.
func roundBlockSize(size uintptr) uintptr {
	lg := log2Floor(size)
	if lg < uint(flShift) {
		return size
	}
	round := uintptr(1) << (lg - slShift)
	mask := round - 1
	return (size + mask) &^ mask
}

// mapping maps a size to its (fl, sl) bin indices. Below blockSizeSmall
// the mapping is linear (one bin per word); at or above it, fl tracks
// the power-of-two octave and sl subdivides that octave into slCount
// bins.
func mapping(size uintptr) (fl, sl uint32) {
	if size < blockSizeSmall {
		return 0, uint32(size >> uint(alignShift))
	}
	t := log2Floor(size)
	fl = uint32(t) - uint32(flShift) + 1
	sl = uint32(size>>(t-slShift)) ^ slCount
	return fl, sl
}

// mappingSize returns the minimum block size that falls into bin
// (fl, sl): the size a request drawn from that bin is rounded up to,
// so that freeing it returns the block to the very same bin.
func mappingSize(fl, sl uint32) uintptr {
	if fl == 0 {
		return uintptr(sl) * (blockSizeSmall / slCount)
	}
	size := uintptr(1) << (uint(fl) + uint(flShift) - 1)
	return size + uintptr(sl)*(size>>slShift)
}

// ffs returns the index of the least-significant set bit of x. The
// caller must ensure x != 0.
func ffs(x uint32) uint32 {
	return uint32(bits.TrailingZeros32(x))
}
