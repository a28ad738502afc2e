// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	btcdcfg "github.com/btcsuite/btcd/chaincfg"
)

// regNetBase returns the base parameters of the regression test network.
func regNetBase() *btcdcfg.Params {
	p := cloneBase(&btcdcfg.RegressionNetParams)
	p.Name = "regtest"
	p.Bech32HRPSegwit = ""

	// Address encoding magics, shared with the test network.
	p.PubKeyHashAddrID = 0x6f
	p.ScriptHashAddrID = 0xc4
	p.PrivateKeyID = 0xef

	// Accelerated voting: windows of 100 blocks, 75 signalling blocks
	// lock a deployment in.
	p.MinerConfirmationWindow = 100
	p.RuleChangeActivationThreshold = 75
	p.CoinbaseMaturity = 10
	return p
}

// RegressionNetParams defines the network parameters for the regression test
// network.  Not to be confused with the test network, this network is
// intended for local testing: blocks are produced on demand and every
// deployment is votable from the first window.
var RegressionNetParams = Params{
	Params:            regNetBase(),
	CoinName:          "NavCoin",
	ColdStakingAddrID: 0x3f,
	Deployments: [DefinedDeployments]ConsensusDeployment{
		DeploymentColdStaking: {
			BitNumber:    3,
			StartHeight:  0,
			ExpireHeight: noExpiry,
		},
	},
	StakeMinConfirmations: 10,
	BaseSubsidy:           50 * 1e8,
	CoinStakeReward:       2 * 1e8,
	GenerateSupported:     true,
	RPCPort:               "44446",
}
