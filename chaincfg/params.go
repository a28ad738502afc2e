// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	btcdcfg "github.com/btcsuite/btcd/chaincfg"
)

// These are the deployment IDs of the height based consensus deployments
// tracked by the threshold state machine.  They index Params.Deployments.
const (
	// DeploymentColdStaking defines the rule change deployment ID for the
	// cold staking output type.
	DeploymentColdStaking = iota

	// NOTE: DefinedDeployments must always come last since it is used to
	// determine how many defined deployments there currently are.

	// DefinedDeployments is the number of currently defined deployments.
	DefinedDeployments
)

// deploymentNames maps deployment IDs to the names reported by the
// getblockchaininfo RPC.
var deploymentNames = [DefinedDeployments]string{
	DeploymentColdStaking: "coldstaking",
}

// DeploymentName returns the human readable name of the deployment ID or an
// empty string when the ID is unknown.
func DeploymentName(id uint32) string {
	if id >= DefinedDeployments {
		return ""
	}
	return deploymentNames[id]
}

// ConsensusDeployment defines details related to a specific consensus rule
// change that is voted in by version bits.  Unlike BIP0009, the voting window
// is delimited by block heights instead of median block times.
type ConsensusDeployment struct {
	// BitNumber defines the specific bit number within the block version
	// this particular soft-fork deployment refers to.
	BitNumber uint8

	// StartHeight is the height of the first window boundary at which
	// voting on the deployment may start.
	StartHeight int32

	// ExpireHeight is the height of the window boundary after which the
	// deployment fails if it has not been locked in.
	ExpireHeight int32
}

// Params defines a cold staking capable network by its parameters.  The base
// bitcoin style parameters (address and key identifiers, genesis block,
// confirmation window, activation threshold and coinbase maturity) live in
// the embedded btcd parameters so the btcutil address and key helpers can be
// used with them directly.
type Params struct {
	*btcdcfg.Params

	// CoinName is the name used in user facing error messages.
	CoinName string

	// ColdStakingAddrID is the version byte of base58 encoded cold staking
	// addresses.
	ColdStakingAddrID byte

	// Deployments define the height based consensus rule changes.  It
	// shadows the time based table of the embedded parameters.
	Deployments [DefinedDeployments]ConsensusDeployment

	// StakeMinConfirmations is the number of blocks an output must be
	// buried before it contributes to the staking weight.
	StakeMinConfirmations int32

	// BaseSubsidy is the amount a coinbase may claim on top of the fees of
	// the block.
	BaseSubsidy btcutil.Amount

	// CoinStakeReward is the amount a coinstake may mint on top of the
	// value of the inputs it claims.
	CoinStakeReward btcutil.Amount

	// GenerateSupported reports whether blocks may be produced on demand
	// through the generate RPC.
	GenerateSupported bool

	// RPCPort is the default port of the JSON-RPC server.
	RPCPort string
}

// cloneBase returns a copy of the provided btcd parameters so the copy may be
// mutated without affecting the registered btcd networks.
func cloneBase(base *btcdcfg.Params) *btcdcfg.Params {
	p := *base
	return &p
}

// noExpiry is used for deployments that never time out.
const noExpiry = math.MaxInt32

var (
	// ErrUnknownNet describes an error where the network name passed to
	// ParamsForNet is not known.
	ErrUnknownNet = errors.New("unknown network name")
)

// ParamsForNet returns the network parameters for the provided network name.
func ParamsForNet(name string) (*Params, error) {
	switch name {
	case MainNetParams.Name:
		return &MainNetParams, nil
	case TestNetParams.Name:
		return &TestNetParams, nil
	case RegressionNetParams.Name:
		return &RegressionNetParams, nil
	}
	return nil, ErrUnknownNet
}
