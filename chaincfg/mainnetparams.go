// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	btcdcfg "github.com/btcsuite/btcd/chaincfg"
)

// mainNetBase returns the base parameters of the main network.
func mainNetBase() *btcdcfg.Params {
	p := cloneBase(&btcdcfg.MainNetParams)
	p.Name = "mainnet"
	p.Bech32HRPSegwit = ""

	// Address encoding magics
	p.PubKeyHashAddrID = 0x35 // starts with N
	p.ScriptHashAddrID = 0x55 // starts with b
	p.PrivateKeyID = 0x96     // starts with P (uncompressed)

	// Version bit voting on a two week window of 30 second blocks with a
	// 75% activation threshold.
	p.MinerConfirmationWindow = 20160
	p.RuleChangeActivationThreshold = 15120
	p.CoinbaseMaturity = 50
	return p
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Params:            mainNetBase(),
	CoinName:          "NavCoin",
	ColdStakingAddrID: 0x15, // starts with X
	Deployments: [DefinedDeployments]ConsensusDeployment{
		DeploymentColdStaking: {
			BitNumber:    3,
			StartHeight:  2318400,
			ExpireHeight: 2923200,
		},
	},
	StakeMinConfirmations: 80,
	BaseSubsidy:           0,
	CoinStakeReward:       2 * 1e8,
	GenerateSupported:     false,
	RPCPort:               "44444",
}
