// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"github.com/btcsuite/btcd/btcjson"
)

// GetColdStakingAddressCmd defines the getcoldstakingaddress JSON-RPC command.
type GetColdStakingAddressCmd struct {
	StakingAddress  string
	SpendingAddress string
}

// NewGetColdStakingAddressCmd returns a new instance which can be used to
// issue a getcoldstakingaddress JSON-RPC command.
func NewGetColdStakingAddressCmd(stakingAddress, spendingAddress string) *GetColdStakingAddressCmd {
	return &GetColdStakingAddressCmd{
		StakingAddress:  stakingAddress,
		SpendingAddress: spendingAddress,
	}
}

// GetStakingInfoCmd defines the getstakinginfo JSON-RPC command.
type GetStakingInfoCmd struct{}

// NewGetStakingInfoCmd returns a new instance which can be used to issue a
// getstakinginfo JSON-RPC command.
func NewGetStakingInfoCmd() *GetStakingInfoCmd {
	return &GetStakingInfoCmd{}
}

func init() {
	flags := btcjson.UFWalletOnly

	btcjson.MustRegisterCmd("getcoldstakingaddress",
		(*GetColdStakingAddressCmd)(nil), flags)
	btcjson.MustRegisterCmd("getstakinginfo", (*GetStakingInfoCmd)(nil),
		flags)
}

// GetStakingInfoResult models the data returned from the getstakinginfo
// command.
type GetStakingInfoResult struct {
	Enabled       bool   `json:"enabled"`
	Staking       bool   `json:"staking"`
	Errors        string `json:"errors"`
	CurrentHeight int32  `json:"currentheight"`
	Weight        int64  `json:"weight"`
	ExpectedTime  int64  `json:"expectedtime"`
}

// Bip9SoftForkDescription describes the current state of a height based
// version bits deployment.
type Bip9SoftForkDescription struct {
	Status        string `json:"status"`
	Bit           uint8  `json:"bit"`
	StartHeight   int32  `json:"startheight"`
	TimeoutHeight int32  `json:"timeoutheight"`
	Since         int32  `json:"since"`
}

// GetBlockChainInfoResult models the data returned from the getblockchaininfo
// command.
type GetBlockChainInfoResult struct {
	Chain         string                              `json:"chain"`
	Blocks        int32                               `json:"blocks"`
	Headers       int32                               `json:"headers"`
	BestBlockHash string                              `json:"bestblockhash"`
	Bip9SoftForks map[string]*Bip9SoftForkDescription `json:"bip9_softforks"`
}

// ValidateAddressResult models the data returned by the validateaddress
// command.
type ValidateAddressResult struct {
	IsValid         bool   `json:"isvalid"`
	Address         string `json:"address,omitempty"`
	ScriptPubKey    string `json:"scriptPubKey,omitempty"`
	IsMine          bool   `json:"ismine"`
	IsScript        bool   `json:"isscript"`
	IsColdStaking   bool   `json:"iscoldstaking"`
	StakingAddress  string `json:"stakingaddress,omitempty"`
	SpendingAddress string `json:"spendingaddress,omitempty"`
}

// ListUnspentResult models a successful response from the listunspent request.
type ListUnspentResult struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Address       string  `json:"address"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Amount        float64 `json:"amount"`
	Confirmations int64   `json:"confirmations"`
	Spendable     bool    `json:"spendable"`
	Stakeable     bool    `json:"stakeable"`
}
