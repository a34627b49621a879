/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

// Stats reports a snapshot of a Pool's bookkeeping. Matches
// tlsf_stats_t: total region bytes, used/free payload bytes, the largest free block
// actually present, block and free-block counts, and header overhead.
type Stats struct {
	// TotalBytes is the sum of every region's raw byte length, including
	// per-region header overhead.
	TotalBytes uintptr
	// UsedBytes is the sum of live allocations' payload sizes.
	UsedBytes uintptr
	// FreeBytes is the sum of free blocks' payload sizes, excluding
	// their own headers.
	FreeBytes uintptr
	// LargestFree is the exact size of the single largest free block
	// currently in the pool, or 0 if none.
	LargestFree uintptr
	// BlockCount is the total number of blocks, used and free, excluding
	// each region's end sentinel.
	BlockCount uintptr
	// FreeCount is the number of free blocks among BlockCount — a
	// fragmentation indicator: many small free blocks summing to the
	// same FreeBytes as one big one is worse fragmentation.
	FreeCount uintptr
	// Overhead is the total header bytes spent on metadata: one word per
	// block plus one word per region's end sentinel.
	Overhead uintptr
	// Regions is the number of discrete memory spans backing the pool:
	// one for NewFixed's region, one per Append call and one per dynamic
	// growth step, less any region a dynamic pool has shrunk away (a
	// dynamic pool starts with none).
	Regions int
}

// Stats returns the pool's current usage snapshot, computed by walking
// every block in every region — the same approach tlsf_get_stats takes,
// since no O(1) running counter can report an exact largest-free size
// (or an exact block/free count) without a full scan. Not intended for
// the hot allocate/free path, but cheap enough for a periodic metrics
// scrape or test assertion.
func (p *Pool) Stats() Stats {
	var st Stats
	st.Regions = len(p.regions)
	for _, r := range p.regions {
		st.TotalBytes += r.size
		ref := r.start
		for {
			size := p.blockSize(ref)
			if size == 0 {
				st.Overhead += blockOverhead // the region's end sentinel
				break
			}
			st.BlockCount++
			st.Overhead += blockOverhead
			if p.isFree(ref) {
				st.FreeCount++
				st.FreeBytes += size
				if size > st.LargestFree {
					st.LargestFree = size
				}
			} else {
				st.UsedBytes += size
			}
			ref = p.nextPhys(ref)
		}
	}
	return st
}

// LargestFree returns the exact size of the largest free block the pool
// could satisfy a request from, or 0 if the pool has no free blocks.
// Matches the largest_free field of tlsf_stats_t.
func (p *Pool) LargestFree() uintptr {
	return p.Stats().LargestFree
}
