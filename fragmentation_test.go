/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestInternalFragmentationBound matches spec.md §8 scenario S8 and the
// logarithmic-regime bound of §8 point 7: for a sweep of request sizes,
// the actual block handed out must exceed the request by under 5% per
// size, and by under 3% on average across the sweep.
func TestInternalFragmentationBound(t *testing.T) {
	sizes := []uintptr{257, 400, 511, 513, 800, 1000, 1500, 2000, 3000, 5000, 10000, 100000}

	p := newFixedPool(t, 4<<20)
	var totalRatio float64
	for _, n := range sizes {
		ptr := p.Malloc(n)
		require.NotNilf(t, ptr, "size %d", n)
		actual := p.UsableSize(ptr)
		require.GreaterOrEqual(t, actual, n)

		ratio := float64(actual-n) / float64(n)
		require.Lessf(t, ratio, 0.05, "size %d overhead ratio %f exceeds 5%%", n, ratio)
		totalRatio += ratio
	}
	avg := totalRatio / float64(len(sizes))
	require.Lessf(t, avg, 0.03, "average overhead ratio %f exceeds 3%%", avg)
}
