// Copyright (c) 2016-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/navcoin/coldstaked/chaincfg"
)

const (
	// VBTopBits defines the bits to set in the version to signal that the
	// version bits scheme is being used.
	VBTopBits = 0x20000000

	// VBTopMask is the bitmask to use to determine whether or not the
	// version bits scheme is in use.
	VBTopMask = 0xe0000000

	// vbNumBits is the total number of bits available for use with the
	// version bits scheme.
	vbNumBits = 29
)

// deploymentChecker provides a thresholdConditionChecker which can be used to
// test a specific deployment rule.  This is required for properly detecting
// and activating consensus rule changes.
type deploymentChecker struct {
	deployment *chaincfg.ConsensusDeployment
	params     *chaincfg.Params
}

// Ensure the deploymentChecker type implements the thresholdConditionChecker
// interface.
var _ thresholdConditionChecker = deploymentChecker{}

// StartHeight returns the height of the first window boundary at which voting
// on the rule change may start.
//
// This implementation returns the value defined by the specific deployment the
// checker is associated with.
//
// This is part of the thresholdConditionChecker interface implementation.
func (c deploymentChecker) StartHeight() int32 {
	return c.deployment.StartHeight
}

// ExpireHeight returns the height of the window boundary at which an attempted
// rule change fails if it has not already been locked in or activated.
//
// This implementation returns the value defined by the specific deployment the
// checker is associated with.
//
// This is part of the thresholdConditionChecker interface implementation.
func (c deploymentChecker) ExpireHeight() int32 {
	return c.deployment.ExpireHeight
}

// RuleChangeActivationThreshold is the number of blocks for which the condition
// must be true in order to lock in a rule change.
//
// This implementation returns the value defined by the chain params the checker
// is associated with.
//
// This is part of the thresholdConditionChecker interface implementation.
func (c deploymentChecker) RuleChangeActivationThreshold() uint32 {
	return c.params.RuleChangeActivationThreshold
}

// MinerConfirmationWindow is the number of blocks in each threshold state
// retarget window.
//
// This implementation returns the value defined by the chain params the checker
// is associated with.
//
// This is part of the thresholdConditionChecker interface implementation.
func (c deploymentChecker) MinerConfirmationWindow() uint32 {
	return c.params.MinerConfirmationWindow
}

// Condition returns true when the specific bit defined by the deployment
// associated with the checker is set and the version bits scheme is in use.
//
// This is part of the thresholdConditionChecker interface implementation.
func (c deploymentChecker) Condition(version int32) bool {
	return SignalsDeployment(version, c.deployment.BitNumber)
}

// SignalsDeployment returns whether a block version votes for the deployment
// using the provided bit.
func SignalsDeployment(version int32, bit uint8) bool {
	if bit >= vbNumBits {
		return false
	}
	conditionMask := uint32(1) << bit
	return uint32(version)&VBTopMask == VBTopBits &&
		uint32(version)&conditionMask != 0
}

// CalcBlockVersion calculates the version the block at the provided height of
// the chain view should have: the version bits scheme with the bit of every
// deployment that is started or locked in set.
func (t *DeploymentTracker) CalcBlockVersion(view ChainView, height int32) (int32, error) {
	expectedVersion := uint32(VBTopBits)
	for id := uint32(0); id < chaincfg.DefinedDeployments; id++ {
		state, err := t.State(view, height, id)
		if err != nil {
			return 0, err
		}
		if state.State == ThresholdStarted ||
			state.State == ThresholdLockedIn {

			expectedVersion |= uint32(1) << state.Bit
		}
	}
	return int32(expectedVersion), nil
}
