// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/stretchr/testify/require"
)

// testView is a ChainView over a list of block versions.  The salt sets the
// branch the blocks belong to so two views with different salts share no
// block hashes.
type testView struct {
	versions []int32
	salt     byte
}

func (v *testView) Height() int32 {
	return int32(len(v.versions)) - 1
}

func (v *testView) BlockByHeight(height int32) (chainhash.Hash, int32, bool) {
	if height < 0 || int(height) >= len(v.versions) {
		return chainhash.Hash{}, 0, false
	}
	var buf [5]byte
	buf[0] = v.salt
	binary.BigEndian.PutUint32(buf[1:], uint32(height))
	return chainhash.HashH(buf[:]), v.versions[height], true
}

// extend appends n blocks to the view.  When signal is true each block takes
// the version the tracker expects, otherwise the bare version bits version.
func (v *testView) extend(t *testing.T, tracker *DeploymentTracker, n int,
	signal bool) {

	for i := 0; i < n; i++ {
		version := int32(VBTopBits)
		if signal {
			var err error
			version, err = tracker.CalcBlockVersion(v, v.Height()+1)
			require.NoError(t, err)
		}
		v.versions = append(v.versions, version)
	}
}

// testParams returns a copy of the regression test network parameters with the
// cold staking deployment voted between the provided heights.
func testParams(start, expire int32) *chaincfg.Params {
	params := chaincfg.RegressionNetParams
	params.Deployments[chaincfg.DeploymentColdStaking].StartHeight = start
	params.Deployments[chaincfg.DeploymentColdStaking].ExpireHeight = expire
	return &params
}

func nextState(t *testing.T, tracker *DeploymentTracker, view ChainView) DeploymentState {
	state, err := tracker.NextState(view, chaincfg.DeploymentColdStaking)
	require.NoError(t, err)
	return state
}

// TestThresholdStateFullSignalling ensures the deployment moves through its
// states at the expected window boundaries of the regression test network
// when every block signals.
func TestThresholdStateFullSignalling(t *testing.T) {
	t.Parallel()

	params := &chaincfg.RegressionNetParams
	tracker := NewDeploymentTracker(params)
	view := &testView{versions: []int32{1}}

	tests := []struct {
		tip   int32
		state ThresholdState
		since int32
	}{
		{0, ThresholdDefined, 0},
		{98, ThresholdDefined, 0},
		{99, ThresholdStarted, 100},
		{100, ThresholdStarted, 100},
		{198, ThresholdStarted, 100},
		{199, ThresholdLockedIn, 200},
		{200, ThresholdLockedIn, 200},
		{299, ThresholdActive, 300},
		{300, ThresholdActive, 300},
		{1000, ThresholdActive, 300},
	}
	for _, test := range tests {
		view.extend(t, tracker, int(test.tip-view.Height()), true)
		state := nextState(t, tracker, view)
		require.Equal(t, test.state, state.State, "tip %d", test.tip)
		require.Equal(t, test.since, state.Since, "tip %d", test.tip)
		require.Equal(t, "coldstaking", state.Name)
		require.Equal(t, uint8(3), state.Bit)
	}
}

// TestThresholdStateVoteCount ensures the deployment locks in exactly when
// the number of signalling blocks of a window reaches the threshold.
func TestThresholdStateVoteCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		votes int
		want  ThresholdState
	}{
		{"no votes", 0, ThresholdStarted},
		{"one short", 74, ThresholdStarted},
		{"exact threshold", 75, ThresholdLockedIn},
		{"all votes", 100, ThresholdLockedIn},
	}
	for _, test := range tests {
		tracker := NewDeploymentTracker(&chaincfg.RegressionNetParams)
		view := &testView{versions: []int32{1}}
		view.extend(t, tracker, 99, false)
		require.Equal(t, ThresholdStarted, nextState(t, tracker, view).State)

		view.extend(t, tracker, test.votes, true)
		view.extend(t, tracker, 100-test.votes, false)
		require.Equal(t, test.want, nextState(t, tracker, view).State,
			test.name)
	}
}

// TestThresholdStateNoBits ensures versions outside of the version bits scheme
// never count as votes even with the deployment bit set.
func TestThresholdStateNoBits(t *testing.T) {
	t.Parallel()

	tracker := NewDeploymentTracker(&chaincfg.RegressionNetParams)
	view := &testView{versions: []int32{1}}
	view.extend(t, tracker, 99, false)
	for i := 0; i < 100; i++ {
		view.versions = append(view.versions, 1<<3)
	}
	require.Equal(t, ThresholdStarted, nextState(t, tracker, view).State)
}

// TestThresholdStateStartAndExpire ensures the start and expire heights of a
// deployment are honoured.
func TestThresholdStateStartAndExpire(t *testing.T) {
	t.Parallel()

	// Voting starts at the boundary of height 200.
	tracker := NewDeploymentTracker(testParams(200, math.MaxInt32))
	view := &testView{versions: []int32{1}}
	view.extend(t, tracker, 198, true)
	require.Equal(t, ThresholdDefined, nextState(t, tracker, view).State)
	view.extend(t, tracker, 1, true)
	state := nextState(t, tracker, view)
	require.Equal(t, ThresholdStarted, state.State)
	require.Equal(t, int32(200), state.Since)

	// A start height inside a window takes effect at the next boundary.
	tracker = NewDeploymentTracker(testParams(150, math.MaxInt32))
	view = &testView{versions: []int32{1}}
	view.extend(t, tracker, 99, true)
	require.Equal(t, ThresholdDefined, nextState(t, tracker, view).State)
	view.extend(t, tracker, 100, true)
	require.Equal(t, ThresholdStarted, nextState(t, tracker, view).State)

	// Without enough votes the deployment fails at the expire height and
	// stays failed even if every later block signals.
	tracker = NewDeploymentTracker(testParams(0, 300))
	view = &testView{versions: []int32{1}}
	view.extend(t, tracker, 299, false)
	state = nextState(t, tracker, view)
	require.Equal(t, ThresholdFailed, state.State)
	require.Equal(t, int32(300), state.Since)
	view.extend(t, tracker, 300, true)
	require.Equal(t, ThresholdFailed, nextState(t, tracker, view).State)

	// Expiring before the start height fails straight from defined.
	tracker = NewDeploymentTracker(testParams(500, 200))
	view = &testView{versions: []int32{1}}
	view.extend(t, tracker, 199, true)
	require.Equal(t, ThresholdFailed, nextState(t, tracker, view).State)

	// Locking in before the expire height wins over expiry.
	tracker = NewDeploymentTracker(testParams(0, 300))
	view = &testView{versions: []int32{1}}
	view.extend(t, tracker, 399, true)
	require.Equal(t, ThresholdActive, nextState(t, tracker, view).State)
}

// TestThresholdStateMonotonic ensures states only ever move forward along a
// chain regardless of the vote pattern.
func TestThresholdStateMonotonic(t *testing.T) {
	t.Parallel()

	order := map[ThresholdState]int{
		ThresholdDefined:  0,
		ThresholdStarted:  1,
		ThresholdLockedIn: 2,
		ThresholdActive:   3,
		ThresholdFailed:   2,
	}

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 20; run++ {
		tracker := NewDeploymentTracker(testParams(100, 800))
		view := &testView{versions: []int32{1}}
		prev := ThresholdDefined
		for view.Height() < 1000 {
			view.extend(t, tracker, 1, rng.Intn(100) < 70+run)
			state := nextState(t, tracker, view).State
			require.GreaterOrEqual(t, order[state], order[prev],
				"run %d height %d: %v after %v", run,
				view.Height(), state, prev)
			if prev == ThresholdFailed || prev == ThresholdActive {
				require.Equal(t, prev, state)
			}
			if prev == ThresholdLockedIn {
				require.NotEqual(t, ThresholdFailed, state)
			}
			prev = state
		}
	}
}

// TestThresholdStateBranches ensures cached states of one branch are never
// used for another one.
func TestThresholdStateBranches(t *testing.T) {
	t.Parallel()

	tracker := NewDeploymentTracker(&chaincfg.RegressionNetParams)
	signalling := &testView{versions: []int32{1}, salt: 1}
	signalling.extend(t, tracker, 299, true)
	require.Equal(t, ThresholdActive, nextState(t, tracker, signalling).State)

	silent := &testView{versions: []int32{1}, salt: 2}
	silent.extend(t, tracker, 299, false)
	require.Equal(t, ThresholdStarted, nextState(t, tracker, silent).State)

	// Asking again is answered from the cache with the same result.
	require.Equal(t, ThresholdActive, nextState(t, tracker, signalling).State)
}

// TestThresholdStateErrors ensures unknown deployments and heights the view
// can not answer for are reported.
func TestThresholdStateErrors(t *testing.T) {
	t.Parallel()

	tracker := NewDeploymentTracker(&chaincfg.RegressionNetParams)
	view := &testView{versions: []int32{1}}

	_, err := tracker.State(view, 1, chaincfg.DefinedDeployments)
	require.ErrorAs(t, err, new(DeploymentError))

	_, err = tracker.State(view, 250, chaincfg.DeploymentColdStaking)
	require.ErrorAs(t, err, new(AssertError))
}

// TestCalcBlockVersion ensures the deployment bit is only set while the
// deployment is started or locked in.
func TestCalcBlockVersion(t *testing.T) {
	t.Parallel()

	tracker := NewDeploymentTracker(&chaincfg.RegressionNetParams)
	view := &testView{versions: []int32{1}}
	tests := []struct {
		tip  int32
		want int32
	}{
		{0, VBTopBits},
		{99, VBTopBits | 1<<3},
		{199, VBTopBits | 1<<3},
		{299, VBTopBits},
	}
	for _, test := range tests {
		view.extend(t, tracker, int(test.tip-view.Height()), true)
		version, err := tracker.CalcBlockVersion(view, view.Height()+1)
		require.NoError(t, err)
		require.Equal(t, test.want, version, "tip %d", test.tip)
	}

	require.True(t, SignalsDeployment(VBTopBits|1<<3, 3))
	require.False(t, SignalsDeployment(VBTopBits|1<<2, 3))
	require.False(t, SignalsDeployment(0x40000000|1<<3, 3))
	require.False(t, SignalsDeployment(VBTopBits|1<<3, 30))
}

// TestThresholdStateStringer tests the stringized output for the
// ThresholdState type.
func TestThresholdStateStringer(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ThresholdLockedIn", ThresholdLockedIn.String())
	require.Equal(t, "Unknown ThresholdState (99)", ThresholdState(99).String())
	require.Len(t, thresholdStateStrings, int(numThresholdsStates))
}
