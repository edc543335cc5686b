// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
)

// parallelEach calls fn(i) for i in [0, n) on up to parallelism goroutines.
// Items are split into contiguous shards, one per job. A job stops at its
// first error; the error of the lowest failing job is returned. A panic in fn
// is returned as an error.
func parallelEach(parallelism, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if parallelism > n {
		parallelism = n
	}
	if parallelism < 1 {
		parallelism = 1
	}
	errs := make([]error, parallelism)
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * n) / parallelism
		endIdx := ((jobIdx + 1) * n) / parallelism
		for i := startIdx; i < endIdx; i++ {
			if err := callRecover(fn, i); err != nil {
				errs[jobIdx] = err
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func callRecover(fn func(i int) error, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.E(fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn(i)
}
