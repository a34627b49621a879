/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import "github.com/pkg/errors"

// Sentinel errors Check can wrap with positional context via
// github.com/pkg/errors.Wrapf. Callers that only care about the failure
// class should compare with errors.Is.
var (
	// ErrBadSentinel reports that a region's terminating used,
	// zero-size block was overwritten or never initialized correctly.
	ErrBadSentinel = errors.New("tlsf: corrupt region sentinel")
	// ErrAdjacentFree reports two physically adjacent free blocks,
	// meaning a coalesce was missed or a free list was corrupted.
	ErrAdjacentFree = errors.New("tlsf: adjacent free blocks were not coalesced")
	// ErrPrevFreeMismatch reports that a block's prev_free bit disagrees
	// with its physical predecessor's actual free state.
	ErrPrevFreeMismatch = errors.New("tlsf: prev_free bit inconsistent with predecessor")
	// ErrBadBlockSize reports a block whose recorded size is not a
	// multiple of the word size, or is below the allocator's minimum.
	ErrBadBlockSize = errors.New("tlsf: block size invalid")
	// ErrFreeListCycle reports a cycle in a free-list bin's linked list,
	// detected via a tortoise-and-hare traversal.
	ErrFreeListCycle = errors.New("tlsf: cycle detected in free list")
	// ErrFreeListBinMismatch reports a block linked into a (fl, sl) bin
	// its own size does not map to.
	ErrFreeListBinMismatch = errors.New("tlsf: free block listed under the wrong bin")
	// ErrFreeListNotFree reports a block reachable from a free list
	// whose free bit is not set.
	ErrFreeListNotFree = errors.New("tlsf: free list contains a used block")
	// ErrFreeCountMismatch reports that phase 1's block-chain walk and
	// phase 2's free-list walk disagree on how many blocks are free.
	ErrFreeCountMismatch = errors.New("tlsf: free block count mismatch between block chain and free lists")
)
