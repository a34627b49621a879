/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import "github.com/pkg/errors"

// Check walks the pool's internal structures and reports the first
// inconsistency found, or nil if none is found. It runs in three
// phases: a physical block-chain walk per region, a free-list walk
// with cycle detection, and a cross-check that both phases agree on
// how many blocks are free. Intended for tests and debug builds, not
// the hot allocate/free path — it touches every live block and every
// free list entry.
func (p *Pool) Check() error {
	chainFree, err := p.checkBlockChains()
	if err != nil {
		return err
	}
	listFree, err := p.checkFreeLists()
	if err != nil {
		return err
	}
	if chainFree != listFree {
		return errors.Wrapf(ErrFreeCountMismatch, "chain saw %d free blocks, free lists saw %d", chainFree, listFree)
	}
	return nil
}

// checkBlockChains walks every region from its first block to its
// terminating sentinel, validating size bookkeeping and the
// "no two adjacent free blocks" coalescing invariant. It returns the
// number of free blocks it encountered.
func (p *Pool) checkBlockChains() (int, error) {
	free := 0
	for ri, r := range p.regions {
		ref := r.start
		prevWasFree := false
		for {
			size := p.blockSize(ref)
			if size%wordSize != 0 {
				return 0, errors.Wrapf(ErrBadBlockSize, "region %d block %#x size %d", ri, ref, size)
			}
			if p.isPrevFree(ref) != prevWasFree {
				return 0, errors.Wrapf(ErrPrevFreeMismatch, "region %d block %#x", ri, ref)
			}

			isFree := p.isFree(ref)
			if isFree {
				if size < blockSizeMin {
					return 0, errors.Wrapf(ErrBadBlockSize, "region %d free block %#x below minimum", ri, ref)
				}
				if prevWasFree {
					return 0, errors.Wrapf(ErrAdjacentFree, "region %d block %#x", ri, ref)
				}
				free++
			}

			if size == 0 {
				// The region's terminating sentinel: zero size, used.
				if isFree {
					return 0, errors.Wrapf(ErrBadSentinel, "region %d", ri)
				}
				break
			}

			prevWasFree = isFree
			ref = p.nextPhys(ref)
		}
	}
	return free, nil
}

// checkFreeLists walks every (fl, sl) bin, verifying each linked block
// is actually free, maps back to the bin it's listed under, and that
// the list has no cycle. It returns the total number of free blocks
// found across all bins.
func (p *Pool) checkFreeLists() (int, error) {
	total := 0
	for fl := uint32(0); fl < uint32(p.flCnt); fl++ {
		for sl := uint32(0); sl < slCount; sl++ {
			n, err := p.checkOneFreeList(fl, sl)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func (p *Pool) checkOneFreeList(fl, sl uint32) (int, error) {
	slow := p.heads[fl][sl]
	fast := slow
	count := 0

	for slow != sentinelRef {
		if !p.isFree(slow) {
			return 0, errors.Wrapf(ErrFreeListNotFree, "bin (%d,%d) block %#x", fl, sl, slow)
		}
		wfl, wsl := mapping(p.blockSize(slow))
		if wfl != fl || wsl != sl {
			return 0, errors.Wrapf(ErrFreeListBinMismatch, "bin (%d,%d) block %#x belongs in (%d,%d)", fl, sl, slow, wfl, wsl)
		}
		count++
		slow = p.nextFree(slow)

		if fast != sentinelRef {
			fast = p.nextFree(fast)
		}
		if fast != sentinelRef {
			fast = p.nextFree(fast)
		}
		if fast != sentinelRef && fast == slow {
			return 0, errors.Wrapf(ErrFreeListCycle, "bin (%d,%d)", fl, sl)
		}
	}
	return count, nil
}
