/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

// Package shard wraps the tlsf package's single-arena Pool in a
// goroutine-safe layer: the backing memory is split into several
// independent arenas, each with its own Pool and Lock, so concurrent
// allocators rarely contend on the same arena.
//
// Go has no analogue of the original allocator's OS thread-hint
// (pthread_self()-derived affinity): goroutines migrate between OS
// threads and have no stable, cheap-to-read identity a library can hash.
// Shard instead picks a candidate arena with a lock-free round-robin
// counter and falls back to scanning the other arenas — first
// non-blocking, then blocking — the same two-phase strategy the
// original's arena_fallback_malloc uses once its hash-selected arena is
// contended.
package shard

import (
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tlsf-go/tlsf"
)

// defaultArenaCount mirrors the original TLSF_ARENA_COUNT default.
const defaultArenaCount = 4

// minArenaBytes is the viability threshold below which splitting into
// one more arena stops paying for itself (TLSF_ARENA_MIN_SIZE analogue).
const minArenaBytes = 256

// defaultCachelineSize mirrors the original TLSF_CACHELINE_SIZE default,
// used to pad each arena's share so two arenas never share a cache line.
const defaultCachelineSize = 64

type arena struct {
	pool  *tlsf.Pool
	lock  Lock
	base  uintptr
	bytes uintptr
}

// Shard is a goroutine-safe TLSF allocator built from several
// independent Pool arenas.
type Shard struct {
	arenas []arena
	next   atomicCounter
	lockF  func() Lock
	logger *zap.Logger

	fallbackCount atomicCounter
}

// Option configures a Shard at construction time.
type Option func(*shardConfig)

type shardConfig struct {
	arenaCount    int
	cachelineSize uintptr
	lockFactory   func() Lock
	logger        *zap.Logger
}

// WithArenaCount overrides the default number of arenas (4). The actual
// count used may be lower: New halves it as many times as needed to
// keep each arena's share at or above minArenaBytes.
func WithArenaCount(n int) Option {
	return func(c *shardConfig) { c.arenaCount = n }
}

// WithCachelineSize overrides the assumed CPU cache line size (default
// 64) used to align each arena's share, avoiding false sharing between
// arenas used by different goroutines.
func WithCachelineSize(n int) Option {
	return func(c *shardConfig) { c.cachelineSize = uintptr(n) }
}

// WithLockFactory supplies a constructor for the Lock implementation
// each arena uses. The default is a sync.Mutex-backed Lock.
func WithLockFactory(f func() Lock) Option {
	return func(c *shardConfig) { c.lockFactory = f }
}

// WithLogger attaches a zap.Logger for diagnostics: a warning when Free
// or Realloc is given a pointer no arena owns, plus each arena Pool's
// own growth/shrink and rejected-region messages. Fallbacks to other
// arenas and Check() failures are not logged; fallbacks are counted by
// the Prometheus collector and Check() returns its error.
func WithLogger(l *zap.Logger) Option {
	return func(c *shardConfig) { c.logger = l }
}

// New splits mem into several independent arenas and returns a Shard
// ready to allocate from them, along with the total usable capacity
// across all arenas.
func New(mem []byte, opts ...Option) (*Shard, uintptr, error) {
	if len(mem) == 0 {
		return nil, 0, errors.New("tlsf/shard: New requires a non-empty region")
	}
	cfg := shardConfig{
		arenaCount:    defaultArenaCount,
		cachelineSize: defaultCachelineSize,
		lockFactory:   newMutexLock,
		logger:        zap.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	count := cfg.arenaCount
	if count < 1 {
		count = 1
	}
	for count > 1 && uintptr(len(mem))/uintptr(count) < minArenaBytes {
		count /= 2
	}

	share := alignDown(uintptr(len(mem))/uintptr(count), cfg.cachelineSize)
	if share == 0 {
		share = uintptr(len(mem)) / uintptr(count)
	}

	s := &Shard{lockF: cfg.lockFactory, logger: cfg.logger}
	offset := uintptr(0)
	var total uintptr
	for i := 0; i < count; i++ {
		end := offset + share
		if i == count-1 {
			end = uintptr(len(mem))
		}
		region := mem[offset:end]
		pool, usable, err := tlsf.NewFixed(region, tlsf.WithLogger(cfg.logger))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "tlsf/shard: arena %d", i)
		}
		s.arenas = append(s.arenas, arena{
			pool:  pool,
			lock:  cfg.lockFactory(),
			base:  uintptr(unsafe.Pointer(&mem[offset])),
			bytes: end - offset,
		})
		total += usable
		offset = end
	}

	return s, total, nil
}

func alignDown(x, align uintptr) uintptr {
	if align == 0 {
		return x
	}
	return x &^ (align - 1)
}

// pick returns a candidate arena index via a lock-free round-robin
// counter.
func (s *Shard) pick() int {
	return int(s.next.add(1)) % len(s.arenas)
}

// findOwner returns the index of the arena whose byte range contains
// ptr, or -1 if none does (a caller bug: freeing/reallocating a pointer
// this Shard never handed out).
func (s *Shard) findOwner(ptr unsafe.Pointer) int {
	addr := uintptr(ptr)
	for i, a := range s.arenas {
		if addr >= a.base && addr < a.base+a.bytes {
			return i
		}
	}
	return -1
}

// Malloc tries the round-robin candidate arena without blocking, then
// every other arena without blocking, then falls back to blocking on
// each arena in turn, starting with the candidate. It returns nil only
// when no arena can satisfy n. This mirrors arena_fallback_malloc's
// two-phase try-then-block strategy.
func (s *Shard) Malloc(n uintptr) unsafe.Pointer {
	start := s.pick()
	if ptr := s.tryArena(start, n); ptr != nil {
		return ptr
	}
	for i := 1; i < len(s.arenas); i++ {
		idx := (start + i) % len(s.arenas)
		if ptr := s.tryArena(idx, n); ptr != nil {
			s.fallbackCount.add(1)
			return ptr
		}
	}
	s.fallbackCount.add(1)
	for i := 0; i < len(s.arenas); i++ {
		a := &s.arenas[(start+i)%len(s.arenas)]
		a.lock.Acquire()
		ptr := a.pool.Malloc(n)
		a.lock.Release()
		if ptr != nil {
			return ptr
		}
	}
	return nil
}

func (s *Shard) tryArena(idx int, n uintptr) unsafe.Pointer {
	a := &s.arenas[idx]
	if !a.lock.TryAcquire() {
		return nil
	}
	defer a.lock.Release()
	return a.pool.Malloc(n)
}

// Aalloc is Malloc with an alignment guarantee; see tlsf.Pool.Aalloc.
func (s *Shard) Aalloc(align, n uintptr) unsafe.Pointer {
	start := s.pick()
	if ptr := s.tryArenaAligned(start, align, n); ptr != nil {
		return ptr
	}
	for i := 1; i < len(s.arenas); i++ {
		idx := (start + i) % len(s.arenas)
		if ptr := s.tryArenaAligned(idx, align, n); ptr != nil {
			s.fallbackCount.add(1)
			return ptr
		}
	}
	s.fallbackCount.add(1)
	for i := 0; i < len(s.arenas); i++ {
		a := &s.arenas[(start+i)%len(s.arenas)]
		a.lock.Acquire()
		ptr := a.pool.Aalloc(align, n)
		a.lock.Release()
		if ptr != nil {
			return ptr
		}
	}
	return nil
}

func (s *Shard) tryArenaAligned(idx int, align, n uintptr) unsafe.Pointer {
	a := &s.arenas[idx]
	if !a.lock.TryAcquire() {
		return nil
	}
	defer a.lock.Release()
	return a.pool.Aalloc(align, n)
}

// Free returns ptr to the arena that owns it. A pointer this Shard
// never allocated is a caller bug: it is ignored after a warning on
// the configured logger. A nil pointer is ignored, matching tlsf_free.
func (s *Shard) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	idx := s.findOwner(ptr)
	if idx < 0 {
		s.logger.Warn("tlsf/shard: Free called with a pointer owned by no arena")
		return
	}
	a := &s.arenas[idx]
	a.lock.Acquire()
	defer a.lock.Release()
	a.pool.Free(ptr)
}

// Realloc resizes the allocation at ptr. If the arena that owns ptr can
// satisfy the new size in place, the pointer is preserved; otherwise
// the data is copied into a freshly Malloc-ed block (which may land in
// a different arena) and the original is freed, capturing its usable
// size under the owning arena's lock before releasing it, exactly as
// the original's cross-arena realloc path does to avoid a second
// lock acquisition racing a concurrent Free of the same pointer.
func (s *Shard) Realloc(ptr unsafe.Pointer, n uintptr) unsafe.Pointer {
	if ptr == nil {
		return s.Malloc(n)
	}
	if n == 0 {
		s.Free(ptr)
		return nil
	}

	idx := s.findOwner(ptr)
	if idx < 0 {
		s.logger.Warn("tlsf/shard: Realloc called with a pointer owned by no arena")
		return nil
	}
	a := &s.arenas[idx]

	a.lock.Acquire()
	newPtr := a.pool.Realloc(ptr, n)
	if newPtr != nil {
		a.lock.Release()
		return newPtr
	}
	// The owning arena could not satisfy n, neither in place nor by
	// relocating within itself: capture the live size, then
	// release before allocating elsewhere so we never hold two arena
	// locks at once.
	oldSize := a.pool.UsableSize(ptr)
	a.lock.Release()

	relocated := s.Malloc(n)
	if relocated == nil {
		return nil
	}
	copyBytes(relocated, ptr, oldSize)
	s.Free(ptr)
	return relocated
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	d := unsafe.Slice((*byte)(dst), int(n))
	s := unsafe.Slice((*byte)(src), int(n))
	copy(d, s)
}

// Stats aggregates Stats across every arena. LargestFree is the largest
// single free block across all arenas, not their sum: a request can
// only ever be satisfied from one arena's contiguous free block.
func (s *Shard) Stats() tlsf.Stats {
	var total tlsf.Stats
	for _, a := range s.arenas {
		a.lock.Acquire()
		st := a.pool.Stats()
		a.lock.Release()
		total.TotalBytes += st.TotalBytes
		total.UsedBytes += st.UsedBytes
		total.FreeBytes += st.FreeBytes
		total.BlockCount += st.BlockCount
		total.FreeCount += st.FreeCount
		total.Overhead += st.Overhead
		total.Regions += st.Regions
		if st.LargestFree > total.LargestFree {
			total.LargestFree = st.LargestFree
		}
	}
	return total
}

// Check runs tlsf.Pool.Check against every arena, returning the first
// failure encountered.
func (s *Shard) Check() error {
	for i := range s.arenas {
		a := &s.arenas[i]
		a.lock.Acquire()
		err := a.pool.Check()
		a.lock.Release()
		if err != nil {
			return errors.Wrapf(err, "tlsf/shard: arena %d", i)
		}
	}
	return nil
}

// Destroy releases the Shard's bookkeeping. The backing memory itself
// is owned by the caller of New and is not freed here.
func (s *Shard) Destroy() {
	s.arenas = nil
}
