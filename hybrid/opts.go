// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"gopkg.in/yaml.v3"
)

// maxMotifLength is the longest motif that fits in one 2-bit encoded kmer.
const maxMotifLength = 32

// Round is the matching parameter pair of one assembly round.
type Round struct {
	// Tolerance is the max per-component difference between a read and a map
	// distance signature for the two windows to match. 0 requires exact
	// equality.
	Tolerance int `yaml:"tolerance"`
	// MinChainLength is the exclusive lower bound on accepted chain length: a
	// chain is kept iff its length > MinChainLength.
	MinChainLength int `yaml:"min_chain_length"`
}

// Opts defines the assembly parameters.
type Opts struct {
	// K is the number of consecutive inter-site distances in one signature
	// window.
	K int
	// Motif is the enzyme recognition site, e.g. "GCTCTTC". Only ACGT are
	// allowed.
	Motif string
	// Rounds lists the (tolerance, min chain length) pairs, applied in order.
	Rounds []Round
	// Parallelism is the worker pool size.
	Parallelism int
	// Placeholder fills unmapped intervals after the motif.
	Placeholder byte
	// MaximalChainsOnly seeds chains only at candidates that don't extend an
	// earlier candidate. When false, every candidate seeds a chain, so nested
	// chains covering the same region are produced and left to the resolver.
	MaximalChainsOnly bool
	// PadFlanks makes the merged sequence also cover [0, first site) and [last
	// site, length) of each map contig with placeholders.
	PadFlanks bool
}

// DefaultOpts sets the default values to Opts. Motif has no default.
var DefaultOpts = Opts{
	K: 5, // -k
	Rounds: []Round{ // -deviations, -overlap-lengths
		{Tolerance: 500, MinChainLength: 6},
		{Tolerance: 1000, MinChainLength: 8},
		{Tolerance: 2000, MinChainLength: 10},
	},
	Parallelism:       runtime.NumCPU(), // -parallelism
	Placeholder:       'N',
	MaximalChainsOnly: false, // -maximal-chains-only
	PadFlanks:         false, // -pad-flanks
}

// Validate checks the options once before any index is built.
func (o Opts) Validate() error {
	if err := ValidateMotif(o.Motif); err != nil {
		return err
	}
	if o.K < 1 {
		return configErrorf("k must be >= 1, got %d", o.K)
	}
	if len(o.Rounds) == 0 {
		return configErrorf("at least one round is required")
	}
	for i, r := range o.Rounds {
		if r.Tolerance < 0 {
			return configErrorf("round %d: tolerance must be >= 0, got %d", i+1, r.Tolerance)
		}
		if r.MinChainLength < 0 {
			return configErrorf("round %d: min chain length must be >= 0, got %d", i+1, r.MinChainLength)
		}
	}
	if o.Parallelism < 1 {
		return configErrorf("parallelism must be >= 1, got %d", o.Parallelism)
	}
	if o.Placeholder == 0 {
		return configErrorf("placeholder must be set")
	}
	return nil
}

// ValidateMotif checks that the motif is a non-empty string of ACGT (either
// case) that fits in a kmer.
func ValidateMotif(motif string) error {
	if motif == "" {
		return malformedErrorf("empty enzyme motif")
	}
	if len(motif) > maxMotifLength {
		return malformedErrorf("enzyme motif %q is longer than %d bases", motif, maxMotifLength)
	}
	for i := 0; i < len(motif); i++ {
		if asciiToKmerMap[motif[i]] == invalidKmerBits {
			return malformedErrorf("enzyme motif %q: invalid base %q at %d", motif, motif[i], i)
		}
	}
	return nil
}

// ParseRounds pairs up comma-separated tolerances and min chain lengths, e.g.
// ParseRounds("500,1000,2000", "6,8,10").
func ParseRounds(tolerances, minChainLengths string) ([]Round, error) {
	tols, err := parseIntList(tolerances)
	if err != nil {
		return nil, configErrorf("tolerances: %v", err)
	}
	lens, err := parseIntList(minChainLengths)
	if err != nil {
		return nil, configErrorf("min chain lengths: %v", err)
	}
	if len(tols) != len(lens) {
		return nil, configErrorf("%d tolerances but %d min chain lengths", len(tols), len(lens))
	}
	rounds := make([]Round, len(tols))
	for i := range tols {
		rounds[i] = Round{Tolerance: tols[i], MinChainLength: lens[i]}
	}
	return rounds, nil
}

func parseIntList(s string) ([]int, error) {
	var vals []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// yamlOpts is the on-disk form of Opts. Unset fields keep the base values.
type yamlOpts struct {
	K                 *int    `yaml:"k"`
	Motif             *string `yaml:"motif"`
	Parallelism       *int    `yaml:"parallelism"`
	Placeholder       *string `yaml:"placeholder"`
	MaximalChainsOnly *bool   `yaml:"maximal_chains_only"`
	PadFlanks         *bool   `yaml:"pad_flanks"`
	Rounds            []Round `yaml:"rounds"`
}

// LoadOpts overlays a YAML document on base. For example:
//
//   k: 5
//   motif: GCTCTTC
//   rounds:
//     - {tolerance: 500, min_chain_length: 6}
//     - {tolerance: 1000, min_chain_length: 8}
//
// The result is not validated.
func LoadOpts(r io.Reader, base Opts) (Opts, error) {
	var y yamlOpts
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&y); err != nil {
		if err == io.EOF {
			return base, nil
		}
		return base, errors.E(errors.Precondition, "parse config", err)
	}
	opts := base
	if y.K != nil {
		opts.K = *y.K
	}
	if y.Motif != nil {
		opts.Motif = *y.Motif
	}
	if y.Parallelism != nil {
		opts.Parallelism = *y.Parallelism
	}
	if y.Placeholder != nil {
		if len(*y.Placeholder) != 1 {
			return base, configErrorf("placeholder must be a single character, got %q", *y.Placeholder)
		}
		opts.Placeholder = (*y.Placeholder)[0]
	}
	if y.MaximalChainsOnly != nil {
		opts.MaximalChainsOnly = *y.MaximalChainsOnly
	}
	if y.PadFlanks != nil {
		opts.PadFlanks = *y.PadFlanks
	}
	if y.Rounds != nil {
		opts.Rounds = append([]Round(nil), y.Rounds...)
	}
	return opts, nil
}

// String renders the round parameters as "tol/minlen" pairs for logging.
func (r Round) String() string {
	return fmt.Sprintf("%d/%d", r.Tolerance, r.MinChainLength)
}
