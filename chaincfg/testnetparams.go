// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	btcdcfg "github.com/btcsuite/btcd/chaincfg"
)

// testNetBase returns the base parameters of the test network.
func testNetBase() *btcdcfg.Params {
	p := cloneBase(&btcdcfg.TestNet3Params)
	p.Name = "testnet"
	p.Bech32HRPSegwit = ""

	// Address encoding magics
	p.PubKeyHashAddrID = 0x6f // starts with m or n
	p.ScriptHashAddrID = 0xc4 // starts with 2
	p.PrivateKeyID = 0xef     // starts with 9 (uncompressed) or c (compressed)

	p.MinerConfirmationWindow = 2016
	p.RuleChangeActivationThreshold = 1512
	p.CoinbaseMaturity = 50
	return p
}

// TestNetParams defines the network parameters for the test network.
var TestNetParams = Params{
	Params:            testNetBase(),
	CoinName:          "NavCoin",
	ColdStakingAddrID: 0x3f, // starts with 2
	Deployments: [DefinedDeployments]ConsensusDeployment{
		DeploymentColdStaking: {
			BitNumber:    3,
			StartHeight:  0,
			ExpireHeight: noExpiry,
		},
	},
	StakeMinConfirmations: 10,
	BaseSubsidy:           0,
	CoinStakeReward:       2 * 1e8,
	GenerateSupported:     false,
	RPCPort:               "44445",
}
