// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Error kinds used by this package:
//
//   errors.Invalid: malformed input (non-increasing sites, missing map
//   length, bad motif).
//
//   errors.Precondition: bad configuration (k, round lists).
//
//   errors.Integrity: a window referenced by an accepted chain is missing
//   from the index.
//
// Anything else returned by a worker is reported as-is inside a RoundError.

func malformedErrorf(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf(format, args...))
}

func configErrorf(format string, args ...interface{}) error {
	return errors.E(errors.Precondition, fmt.Sprintf(format, args...))
}

func integrityErrorf(format string, args ...interface{}) error {
	return errors.E(errors.Integrity, fmt.Sprintf(format, args...))
}

// RoundError is returned by Assembler.RunRound. The index and the merged
// sequences are unchanged when a round fails.
type RoundError struct {
	// Round is the 1-based round index. It is zero for errors raised before
	// the first round.
	Round int
	// Contig is the name of the contig whose worker failed, if any.
	Contig string
	// Err is the underlying error.
	Err error
}

func (e *RoundError) Error() string {
	if e.Contig != "" {
		return fmt.Sprintf("round %d: contig %s: %v", e.Round, e.Contig, e.Err)
	}
	return fmt.Sprintf("round %d: %v", e.Round, e.Err)
}

// Unwrap returns the underlying error.
func (e *RoundError) Unwrap() error { return e.Err }

func workerError(contig string, err error) error {
	return &RoundError{Contig: contig, Err: err}
}

// cause strips any RoundError wrapping.
func cause(err error) error {
	for {
		re, ok := err.(*RoundError)
		if !ok {
			return err
		}
		err = re.Err
	}
}

// IsMalformedInput reports whether err is caused by malformed input.
func IsMalformedInput(err error) bool { return errors.Is(errors.Invalid, cause(err)) }

// IsConfiguration reports whether err is caused by bad configuration.
func IsConfiguration(err error) bool { return errors.Is(errors.Precondition, cause(err)) }

// IsIndexIntegrity reports whether err is caused by a missing index entry.
func IsIndexIntegrity(err error) bool { return errors.Is(errors.Integrity, cause(err)) }
