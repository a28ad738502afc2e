// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stake

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/address"
)

// ColdStakingOutput is an output that may be staked with one key and spent
// with another.
type ColdStakingOutput struct {
	StakingKeyHash  [address.KeyHashSize]byte
	SpendingKeyHash [address.KeyHashSize]byte
	Value           btcutil.Amount
	PkScript        []byte
}

// BuildColdStakingOutput returns a cold staking output of the provided value
// for the staking and spending key hashes.  It fails with
// address.ErrInvalidKeyHash or address.ErrDuplicateKey.
func BuildColdStakingOutput(stakingKeyHash, spendingKeyHash []byte,
	value btcutil.Amount) (*ColdStakingOutput, error) {

	pkScript, err := ColdStakingScript(stakingKeyHash, spendingKeyHash)
	if err != nil {
		return nil, err
	}

	out := &ColdStakingOutput{Value: value, PkScript: pkScript}
	copy(out.StakingKeyHash[:], stakingKeyHash)
	copy(out.SpendingKeyHash[:], spendingKeyHash)
	return out, nil
}

// ParseColdStakingOutput returns the cold staking output carried by the
// transaction output or an ErrMalformedScript error.
func ParseColdStakingOutput(txOut *wire.TxOut) (*ColdStakingOutput, error) {
	staking, spending, err := ExtractColdStakingKeyHashes(txOut.PkScript)
	if err != nil {
		return nil, err
	}

	out := &ColdStakingOutput{
		Value:    btcutil.Amount(txOut.Value),
		PkScript: txOut.PkScript,
	}
	copy(out.StakingKeyHash[:], staking)
	copy(out.SpendingKeyHash[:], spending)
	return out, nil
}

// TxOut returns the output as a wire transaction output.
func (o *ColdStakingOutput) TxOut() *wire.TxOut {
	return wire.NewTxOut(int64(o.Value), o.PkScript)
}
