// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build linux

package hybrid

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// int32Arena is a fixed-size []int32 backed by an anonymous mapping with
// MADV_HUGEPAGE, to reduce TLB misses during signature lookups. Ubuntu, by
// default, activates THPs only for madvised regions, so we bypass Go's
// standard memory allocator.
type int32Arena struct {
	mapped []byte
	vals   []int32
}

func newInt32Arena(n int) (*int32Arena, error) {
	if n == 0 {
		return &int32Arena{}, nil
	}
	mapped, err := unix.Mmap(-1, 0, n*int(unsafe.Sizeof(int32(0))),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	// Hugepages are an optimization. Kernels without THP reject the advice.
	_ = unix.Madvise(mapped, unix.MADV_HUGEPAGE)
	return &int32Arena{
		mapped: mapped,
		vals:   unsafe.Slice((*int32)(unsafe.Pointer(&mapped[0])), n),
	}, nil
}

func (a *int32Arena) free() error {
	if a.mapped == nil {
		return nil
	}
	err := unix.Munmap(a.mapped)
	a.mapped, a.vals = nil, nil
	return err
}
