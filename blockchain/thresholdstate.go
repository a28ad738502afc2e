// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/navcoin/coldstaked/chaincfg"
)

// ThresholdState define the various threshold states used when voting on
// consensus changes.
type ThresholdState byte

// These constants are used to identify specific threshold states.
const (
	// ThresholdDefined is the first state for each deployment and is the
	// state for the genesis block has by definition for all deployments.
	ThresholdDefined ThresholdState = iota

	// ThresholdStarted is the state for a deployment once its start
	// height has been reached.
	ThresholdStarted

	// ThresholdLockedIn is the state for a deployment during the retarget
	// period which is after the ThresholdStarted state period and the
	// number of blocks that have voted for the deployment equal or exceed
	// the required number of votes for the deployment.
	ThresholdLockedIn

	// ThresholdActive is the state for a deployment for all blocks after a
	// retarget period in which the deployment was in the ThresholdLockedIn
	// state.
	ThresholdActive

	// ThresholdFailed is the state for a deployment once its expiration
	// height has been reached and it did not reach the ThresholdLockedIn
	// state.
	ThresholdFailed

	// numThresholdsStates is the maximum number of threshold states used in
	// tests.
	numThresholdsStates
)

// thresholdStateStrings is a map of ThresholdState values back to their
// constant names for pretty printing.
var thresholdStateStrings = map[ThresholdState]string{
	ThresholdDefined:  "ThresholdDefined",
	ThresholdStarted:  "ThresholdStarted",
	ThresholdLockedIn: "ThresholdLockedIn",
	ThresholdActive:   "ThresholdActive",
	ThresholdFailed:   "ThresholdFailed",
}

// String returns the ThresholdState as a human-readable name.
func (t ThresholdState) String() string {
	if s := thresholdStateStrings[t]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ThresholdState (%d)", int(t))
}

// thresholdStateTuple is a threshold state along with the height of the
// window boundary at which it was entered.
type thresholdStateTuple struct {
	state ThresholdState
	since int32
}

// thresholdConditionChecker provides a generic interface that is invoked to
// determine when a consensus rule change threshold should be changed.
type thresholdConditionChecker interface {
	// StartHeight returns the height of the first window boundary at which
	// voting on the rule change may start.
	StartHeight() int32

	// ExpireHeight returns the height of the window boundary at which an
	// attempted rule change fails if it has not already been locked in or
	// activated.
	ExpireHeight() int32

	// RuleChangeActivationThreshold is the number of blocks for which the
	// condition must be true in order to lock in a rule change.
	RuleChangeActivationThreshold() uint32

	// MinerConfirmationWindow is the number of blocks in each threshold
	// state retarget window.
	MinerConfirmationWindow() uint32

	// Condition returns true when the block with the provided version
	// votes for the rule change.
	Condition(version int32) bool
}

// thresholdStateCache provides a type to cache the threshold states of each
// threshold window for a deployment.  Entries are keyed by the hash of the last
// block of the window preceding the boundary, so blocks of another branch never
// hit entries of the current one.
type thresholdStateCache struct {
	mtx     sync.Mutex
	entries map[chainhash.Hash]thresholdStateTuple
}

// Lookup returns the threshold state associated with the given hash along with
// a boolean that indicates whether or not it is valid.
func (c *thresholdStateCache) Lookup(hash chainhash.Hash) (thresholdStateTuple, bool) {
	c.mtx.Lock()
	state, ok := c.entries[hash]
	c.mtx.Unlock()
	return state, ok
}

// Update updates the cache to contain the provided hash to threshold state
// mapping.
func (c *thresholdStateCache) Update(hash chainhash.Hash, state thresholdStateTuple) {
	c.mtx.Lock()
	c.entries[hash] = state
	c.mtx.Unlock()
}

// thresholdState returns the rule change threshold state that applies to the
// block at the provided height of the chain.  The state only changes at window
// boundaries, so it is evaluated at the last boundary at or below the height.
// Evaluating the boundary requires the view to contain the block right before
// it.  The cache is used to ensure the threshold states for previous windows
// are only calculated once.
func thresholdState(view ChainView, height int32, checker thresholdConditionChecker,
	cache *thresholdStateCache) (thresholdStateTuple, error) {

	// The threshold state for the window that contains the genesis block is
	// defined by definition.
	window := int32(checker.MinerConfirmationWindow())
	boundary := height - height%window
	if boundary <= 0 {
		return thresholdStateTuple{state: ThresholdDefined}, nil
	}
	if boundary-1 > view.Height() {
		str := fmt.Sprintf("thresholdState: height %d is beyond the "+
			"next block of a chain of height %d", height,
			view.Height())
		return thresholdStateTuple{state: ThresholdFailed}, AssertError(str)
	}

	// Iterate backwards through each of the previous confirmation windows
	// to find the most recently cached threshold state.  Each window is
	// identified by the last block before its boundary.
	type windowEnd struct {
		hash   chainhash.Hash
		height int32
	}
	var neededStates []windowEnd
	var cached *thresholdStateTuple
	for end := boundary - 1; end >= window-1; end -= window {
		hash, _, ok := view.BlockByHeight(end)
		if !ok {
			str := fmt.Sprintf("thresholdState: no block at "+
				"height %d", end)
			return thresholdStateTuple{state: ThresholdFailed},
				AssertError(str)
		}

		// Nothing more to do if the state of the block is already
		// cached.
		if state, ok := cache.Lookup(hash); ok {
			cached = &state
			break
		}

		neededStates = append(neededStates, windowEnd{hash, end})
	}

	// Start with the threshold state for the most recent confirmation
	// window that has a cached state.
	stateTuple := thresholdStateTuple{state: ThresholdDefined}
	if cached != nil {
		stateTuple = *cached
	}

	// Since each threshold state depends on the state of the previous
	// window, iterate starting from the oldest unknown window.
	for neededNum := len(neededStates) - 1; neededNum >= 0; neededNum-- {
		end := neededStates[neededNum]
		boundary := end.height + 1

		next := stateTuple.state
		switch stateTuple.state {
		case ThresholdDefined:
			// The deployment of the rule change fails if it expires
			// before it is accepted and locked in.
			if boundary >= checker.ExpireHeight() {
				next = ThresholdFailed
				break
			}

			// The state for the rule moves to the started state
			// once its start height has been reached (and it hasn't
			// already expired per the above).
			if boundary >= checker.StartHeight() {
				next = ThresholdStarted
			}

		case ThresholdStarted:
			// The deployment of the rule change fails if it expires
			// before it is accepted and locked in.
			if boundary >= checker.ExpireHeight() {
				next = ThresholdFailed
				break
			}

			// At this point, the rule change is still being voted
			// on by the miners, so iterate backwards through the
			// confirmation window to count all of the votes in it.
			var count uint32
			for h := end.height; h > end.height-window; h-- {
				_, version, ok := view.BlockByHeight(h)
				if !ok {
					str := fmt.Sprintf("thresholdState: "+
						"no block at height %d", h)
					return thresholdStateTuple{
						state: ThresholdFailed,
					}, AssertError(str)
				}
				if checker.Condition(version) {
					count++
				}
			}

			// The state is locked in if the number of blocks in the
			// period that voted for the rule change meets the
			// activation threshold.
			if count >= checker.RuleChangeActivationThreshold() {
				next = ThresholdLockedIn
			}

		case ThresholdLockedIn:
			// The new rule becomes active when its previous state
			// was locked in.
			next = ThresholdActive

		// Nothing to do if the previous state is active or failed since
		// they are both terminal states.
		case ThresholdActive:
		case ThresholdFailed:
		}

		if next != stateTuple.state {
			log.Debugf("Deployment state changed to %v at height %d",
				next, boundary)
			stateTuple = thresholdStateTuple{state: next, since: boundary}
		}

		// Update the cache to avoid recalculating the state in the
		// future.
		cache.Update(end.hash, stateTuple)
	}

	return stateTuple, nil
}

// DeploymentState is the state of a consensus deployment as seen by a block
// at a given height.
type DeploymentState struct {
	Name         string
	Bit          uint8
	StartHeight  int32
	ExpireHeight int32
	State        ThresholdState

	// Since is the height of the window boundary at which the deployment
	// entered State.
	Since int32
}

// DeploymentTracker evaluates the deployments of a network against chain
// views.  It holds no chain state of its own: states are a function of the
// view and the height, memoized per window.
//
// It is safe for concurrent access.
type DeploymentTracker struct {
	params *chaincfg.Params
	caches [chaincfg.DefinedDeployments]thresholdStateCache
}

// NewDeploymentTracker returns a deployment tracker for the network.
func NewDeploymentTracker(params *chaincfg.Params) *DeploymentTracker {
	t := &DeploymentTracker{params: params}
	for i := range t.caches {
		t.caches[i].entries = make(map[chainhash.Hash]thresholdStateTuple)
	}
	return t
}

// State returns the state of the deployment that applies to the block at the
// provided height of the chain view.  The view must contain at least the
// block preceding the last window boundary at or below the height.
func (t *DeploymentTracker) State(view ChainView, height int32,
	deploymentID uint32) (DeploymentState, error) {

	if deploymentID >= uint32(len(t.params.Deployments)) {
		return DeploymentState{}, DeploymentError(deploymentID)
	}

	deployment := &t.params.Deployments[deploymentID]
	checker := deploymentChecker{deployment: deployment, params: t.params}
	tuple, err := thresholdState(view, height, checker,
		&t.caches[deploymentID])
	if err != nil {
		return DeploymentState{}, err
	}

	return DeploymentState{
		Name:         chaincfg.DeploymentName(deploymentID),
		Bit:          deployment.BitNumber,
		StartHeight:  deployment.StartHeight,
		ExpireHeight: deployment.ExpireHeight,
		State:        tuple.state,
		Since:        tuple.since,
	}, nil
}

// NextState returns the state of the deployment for the block after the tip
// of the chain view.
func (t *DeploymentTracker) NextState(view ChainView,
	deploymentID uint32) (DeploymentState, error) {

	return t.State(view, view.Height()+1, deploymentID)
}

// IsActive returns whether the deployment is active for the block at the
// provided height of the chain view.
func (t *DeploymentTracker) IsActive(view ChainView, height int32,
	deploymentID uint32) (bool, error) {

	state, err := t.State(view, height, deploymentID)
	if err != nil {
		return false, err
	}
	return state.State == ThresholdActive, nil
}
