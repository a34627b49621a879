/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import (
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Resize supplies a dynamic pool with a brand-new region of at least
// wantBytes bytes, or returns nil if that much memory cannot be
// obtained. A dynamic pool never asks a Resize callback to grow or
// relocate memory it has already handed out — every call asks for an
// entirely new, independently-backed region, which the pool links in
// alongside its existing ones (see addRegion). This keeps pool growth
// safe to implement with an ordinary allocation (make([]byte, n)), an
// mmap, or a sync.Pool-backed arena, without requiring realloc-style
// move semantics.
type Resize func(wantBytes uintptr) unsafe.Pointer

// Release is called when freeing a block leaves one of a dynamic pool's
// regions entirely free, all the way out to that region's own end
// sentinel: rather than keep the region linked as free capacity, the
// pool drops it and hands the backing memory back via Release, mirroring
// arena_shrink's call into the backend to relinquish pages. It receives
// the exact pointer and byte length addRegion was given for that region.
// A dynamic pool configured with no Release still drops the region from
// its own bookkeeping; only the notification to the backend is skipped.
// Fixed pools (NewFixed) never shrink, matching the original: a fixed
// pool's arena pointer is caller-owned and outlives the Pool regardless.
type Release func(ptr unsafe.Pointer, bytes uintptr)

// region tracks one span of real memory handed to the pool, either via
// NewFixed/Append or via a Resize growth step. Spans need not be
// adjacent in the address space or share a common base pointer — each
// blockRef is an offset into a region's own logical range
// [start, start+size), resolved back to a real address via that
// region's ptr. This indirection (rather than one pool-wide base and
// raw pointer arithmetic across independently-allocated Go byte slices)
// is required for soundness: unsafe.Pointer arithmetic that strays
// outside the allocation it started from has no defined behavior in
// Go, even though it happens to compute the right bits under the
// current non-moving garbage collector.
type region struct {
	ptr   unsafe.Pointer
	start blockRef // logical offset of this region's first block
	size  uintptr  // byte length of the backing slice, header overhead included
}

// Pool is a single-arena TLSF allocator. It owns one or more spans of
// memory (NewFixed's initial region, any Append-ed or grown regions)
// and is not safe for concurrent use; see the shard subpackage for a
// sharded, goroutine-safe wrapper built on top of Pool.
type Pool struct {
	flMax   uint
	flCnt   uint
	flBmp   uint32
	slBmp   []uint32
	heads   [][]blockRef // [flCnt][slCount]

	sentinelNext blockRef
	sentinelPrev blockRef

	regions []region
	size    uintptr // sum of region sizes currently mapped

	splitThreshold uintptr

	resize  Resize  // nil for fixed pools
	release Release // optional; see WithRelease

	logger *zap.Logger
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithFLMax overrides the default first-level class count, letting a
// caller that knows its pool will never exceed a given size shrink the
// control structure's bitmap and head-table footprint. bits must be at
// least flShift+1; values above the platform default are clamped to it.
func WithFLMax(bits uint) Option {
	return func(p *Pool) {
		def := defaultFLMax()
		if bits > def {
			bits = def
		}
		if bits < uint(flShift)+1 {
			bits = uint(flShift) + 1
		}
		p.flMax = bits
	}
}

// WithSplitThreshold sets the minimum remainder size below which a
// matched free block is handed to the caller whole instead of being
// split. The default is blockSizeMin, the smallest a free block is ever
// allowed to be; raising it trades a little internal fragmentation for
// fewer, larger free fragments. Values below blockSizeMin are clamped
// up to it, since a smaller remainder couldn't carry free-list links.
func WithSplitThreshold(bytes uintptr) Option {
	return func(p *Pool) {
		if bytes < blockSizeMin {
			bytes = blockSizeMin
		}
		p.splitThreshold = bytes
	}
}

// WithLogger attaches a zap.Logger the pool uses for diagnostic
// messages: pool growth and shrink (debug), and a grown region or an
// Append that addRegion rejects (warn). Check failures are returned as
// errors, not logged. The default, like passing nil, disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		if l == nil {
			l = zap.NewNop()
		}
		p.logger = l
	}
}

// WithRelease attaches a Release callback a dynamic pool invokes when a
// region becomes entirely free and is shrunk out of the pool. Fixed
// pools ignore it: shrink never fires for them.
func WithRelease(fn Release) Option {
	return func(p *Pool) { p.release = fn }
}

func newPool(opts ...Option) *Pool {
	p := &Pool{
		flMax:          defaultFLMax(),
		sentinelNext:   sentinelRef,
		sentinelPrev:   sentinelRef,
		splitThreshold: blockSizeMin,
		logger:         zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	p.flCnt = flCount(p.flMax)
	p.slBmp = make([]uint32, p.flCnt)
	p.heads = make([][]blockRef, p.flCnt)
	for i := range p.heads {
		p.heads[i] = make([]blockRef, slCount)
		for j := range p.heads[i] {
			p.heads[i][j] = sentinelRef
		}
	}
	return p
}

// NewFixed builds a Pool over a single caller-owned byte slice that will
// never grow. It returns the usable payload size of the pool's initial
// free block, mirroring tlsf_pool_init's return of the pool's capacity.
func NewFixed(mem []byte, opts ...Option) (*Pool, uintptr, error) {
	if len(mem) == 0 {
		return nil, 0, errors.New("tlsf: NewFixed requires a non-empty region")
	}
	p := newPool(opts...)
	usable, err := p.addRegion(unsafe.Pointer(&mem[0]), uintptr(len(mem)))
	if err != nil {
		return nil, 0, err
	}
	return p, usable, nil
}

// NewDynamic builds a Pool with no initial memory: the first call that
// needs space invokes resize to obtain a new region, and every
// subsequent allocation that can't be satisfied from existing regions
// grows the pool the same way. resize returns nil to signal growth is
// no longer possible.
func NewDynamic(resize Resize, opts ...Option) *Pool {
	p := newPool(opts...)
	p.resize = resize
	return p
}

// addRegion links a span of bytes backed by the real memory at
// regionPtr into the free list as a new region. regionPtr need not be
// adjacent, or even related, to any existing region's allocation: each
// region is assigned the slice of the pool's logical offset space that
// begins where the newest region's range ends (regions are kept in the
// order they were added, so no live region's range is ever reused),
// independent of where its real bytes happen to live, so regions
// scattered anywhere in the address space — or backed by entirely
// separate Go slices — work the same way a single contiguous arena would.
func (p *Pool) addRegion(regionPtr unsafe.Pointer, bytes uintptr) (uintptr, error) {
	const poolOverhead = 2 * wordSize
	if bytes <= poolOverhead {
		return 0, errors.New("tlsf: region too small")
	}
	poolBytes := alignDownSize(bytes-poolOverhead, wordSize)
	if poolBytes < blockSizeMin {
		return 0, errors.New("tlsf: region too small")
	}

	start := blockRef(0)
	if n := len(p.regions); n > 0 {
		last := p.regions[n-1]
		start = last.start + blockRef(last.size)
	}
	p.regions = append(p.regions, region{ptr: regionPtr, start: start, size: bytes})

	p.setHeader(start, poolBytes|bitFree)
	p.insertBlock(start)

	end := start + blockRef(poolBytes) + blockRef(wordSize)
	p.setPrevPhys(end, start)
	p.setHeader(end, 0) // used, prev-free implied by next two lines
	p.setPrevFree(end, true)

	p.size += bytes

	return poolBytes, nil
}

func alignDownSize(x, align uintptr) uintptr {
	return x &^ (align - 1)
}

// Append adds a caller-supplied region to a pool constructed with
// NewFixed, growing its total capacity without a Resize callback. It
// returns the usable payload size contributed by mem. Appended regions
// need not be adjacent to the pool's existing memory.
func (p *Pool) Append(mem []byte) uintptr {
	if len(mem) == 0 {
		return 0
	}
	usable, err := p.addRegion(unsafe.Pointer(&mem[0]), uintptr(len(mem)))
	if err != nil {
		p.logger.Warn("tlsf: append rejected", zap.Error(err))
		return 0
	}
	return usable
}

// Reset invalidates every outstanding allocation in O(regions) time and
// reinitializes each region's free block, as if the pool had just been
// constructed. It does not release memory back to the OS or to a
// dynamic pool's Resize callback; use it to reuse a pool's footprint
// across otherwise-unrelated phases of a program without re-allocating
// the backing storage.
func (p *Pool) Reset() error {
	if len(p.regions) == 0 {
		return errors.New("tlsf: Reset on empty pool")
	}
	for i := range p.heads {
		p.slBmp[i] = 0
		for j := range p.heads[i] {
			p.heads[i][j] = sentinelRef
		}
	}
	p.flBmp = 0
	p.sentinelNext = sentinelRef
	p.sentinelPrev = sentinelRef

	regions := p.regions
	p.regions = nil
	p.size = 0
	for _, r := range regions {
		if _, err := p.addRegion(r.ptr, r.size); err != nil {
			return err
		}
	}
	return nil
}

// usableSize returns the number of bytes a caller can use in the block
// at ref without running into its header (the payload size minus
// nothing — the header sits before the payload and is never counted
// against it), matching tlsf_usable_size's contract.
func (p *Pool) usableSize(ref blockRef) uintptr {
	return p.blockSize(ref)
}

// UsableSize returns the number of bytes of payload available at ptr, a
// pointer previously returned by Malloc, Aalloc, or Realloc. It may be
// larger than the size originally requested: TLSF hands out whole
// blocks, and a request is only split when the leftover clears the
// pool's split threshold. Matches tlsf_usable_size.
func (p *Pool) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}
	return p.usableSize(p.refFromPayload(ptr))
}
