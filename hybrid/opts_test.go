// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hybrid

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testOpts() Opts {
	opts := DefaultOpts
	opts.Motif = "GCTCTTC"
	opts.Parallelism = 2
	return opts
}

func TestValidate(t *testing.T) {
	expect.NoError(t, testOpts().Validate())

	opts := DefaultOpts
	expect.True(t, IsMalformedInput(opts.Validate()), "no motif")

	for _, mod := range []func(o *Opts){
		func(o *Opts) { o.K = 0 },
		func(o *Opts) { o.Rounds = nil },
		func(o *Opts) { o.Rounds = []Round{{Tolerance: -1, MinChainLength: 1}} },
		func(o *Opts) { o.Rounds = []Round{{Tolerance: 1, MinChainLength: -1}} },
		func(o *Opts) { o.Parallelism = 0 },
		func(o *Opts) { o.Placeholder = 0 },
	} {
		opts := testOpts()
		mod(&opts)
		err := opts.Validate()
		expect.True(t, IsConfiguration(err), "%+v: %v", opts, err)
	}
}

func TestParseRounds(t *testing.T) {
	rounds, err := ParseRounds("500,1000,2000", "6, 8, 10")
	assert.NoError(t, err)
	expect.EQ(t, rounds, DefaultOpts.Rounds)

	_, err = ParseRounds("500,1000", "6")
	expect.True(t, IsConfiguration(err), "%v", err)
	_, err = ParseRounds("500,x", "6,8")
	expect.True(t, IsConfiguration(err), "%v", err)

	rounds, err = ParseRounds("", "")
	assert.NoError(t, err)
	expect.EQ(t, len(rounds), 0)
}

func TestLoadOpts(t *testing.T) {
	const config = `
k: 3
motif: gctcttc
parallelism: 4
placeholder: X
pad_flanks: true
rounds:
  - {tolerance: 0, min_chain_length: 2}
  - tolerance: 250
    min_chain_length: 4
`
	opts, err := LoadOpts(strings.NewReader(config), DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, opts.K, 3)
	expect.EQ(t, opts.Motif, "gctcttc")
	expect.EQ(t, opts.Parallelism, 4)
	expect.EQ(t, opts.Placeholder, byte('X'))
	expect.True(t, opts.PadFlanks)
	expect.False(t, opts.MaximalChainsOnly)
	expect.EQ(t, opts.Rounds, []Round{{0, 2}, {250, 4}})
	expect.NoError(t, opts.Validate())

	// Unset fields keep the base values.
	opts, err = LoadOpts(strings.NewReader("maximal_chains_only: true\n"), testOpts())
	assert.NoError(t, err)
	expect.True(t, opts.MaximalChainsOnly)
	expect.EQ(t, opts.Motif, "GCTCTTC")
	expect.EQ(t, opts.Rounds, DefaultOpts.Rounds)

	opts, err = LoadOpts(strings.NewReader(""), testOpts())
	assert.NoError(t, err)
	expect.EQ(t, opts.K, DefaultOpts.K)

	_, err = LoadOpts(strings.NewReader("kmer_length: 3\n"), DefaultOpts)
	expect.True(t, IsConfiguration(err), "unknown key: %v", err)
	_, err = LoadOpts(strings.NewReader("placeholder: NN\n"), DefaultOpts)
	expect.True(t, IsConfiguration(err), "long placeholder: %v", err)
}

func TestRoundString(t *testing.T) {
	expect.EQ(t, Round{Tolerance: 500, MinChainLength: 6}.String(), "500/6")
}
