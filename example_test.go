/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package tlsf_test

import (
	"fmt"
	"unsafe"

	"github.com/tlsf-go/tlsf"
)

// Example demonstrates allocating from a fixed-size region and freeing
// it, the way a caller embedding the allocator over a single pre-sized
// arena would use it.
func Example() {
	mem := make([]byte, 1<<20)
	pool, usable, err := tlsf.NewFixed(mem)
	if err != nil {
		panic(err)
	}
	fmt.Println(usable > 0)

	ptr := pool.Malloc(256)
	buf := unsafe.Slice((*byte)(ptr), 256)
	for i := range buf {
		buf[i] = byte(i)
	}
	pool.Free(ptr)

	if err := pool.Check(); err != nil {
		panic(err)
	}

	// Output:
	// true
}
