// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !linux

package hybrid

type int32Arena struct {
	vals []int32
}

func newInt32Arena(n int) (*int32Arena, error) {
	return &int32Arena{vals: make([]int32, n)}, nil
}

func (a *int32Arena) free() error {
	a.vals = nil
	return nil
}
