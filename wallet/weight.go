// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
)

// StakeWeightEntry is an output the wallet holds the staking right of.
type StakeWeightEntry struct {
	OutPoint wire.OutPoint
	Value    btcutil.Amount

	// Eligible reports whether the output counts towards the weight: it
	// is buried deep enough and unspent.
	Eligible bool
}

// stakingKeyHash returns the key hash that may stake the output: the key hash
// of a pay-to-pubkey-hash output or the staking key hash of a cold staking
// output.  Other outputs can not be staked.
func stakingKeyHash(pkScript []byte) []byte {
	switch stake.GetScriptClass(pkScript) {
	case stake.PubKeyHashTy:
		return stake.ExtractPubKeyHash(pkScript)
	case stake.ColdStakingTy:
		staking, _, _ := stake.ExtractColdStakingKeyHashes(pkScript)
		return staking
	}
	return nil
}

// spendingKeyHash returns the key hash that may spend the output: the key hash
// of a pay-to-pubkey-hash output or the spending key hash of a cold staking
// output.
func spendingKeyHash(pkScript []byte) []byte {
	switch stake.GetScriptClass(pkScript) {
	case stake.PubKeyHashTy:
		return stake.ExtractPubKeyHash(pkScript)
	case stake.ColdStakingTy:
		_, spending, _ := stake.ExtractColdStakingKeyHashes(pkScript)
		return spending
	}
	return nil
}

// sortedOutPoints returns the outpoints of the view in a stable order.
func sortedOutPoints(view *blockchain.UtxoViewpoint) []wire.OutPoint {
	entries := view.Entries()
	outpoints := make([]wire.OutPoint, 0, len(entries))
	for outpoint := range entries {
		outpoints = append(outpoints, outpoint)
	}
	sort.Slice(outpoints, func(i, j int) bool {
		c := bytes.Compare(outpoints[i].Hash[:], outpoints[j].Hash[:])
		if c != 0 {
			return c < 0
		}
		return outpoints[i].Index < outpoints[j].Index
	})
	return outpoints
}

// ComputeWeight returns the staking weight of the keys at the provided height
// along with every output they hold the staking right of.  An output counts
// when the keys may stake it, it has at least StakeMinConfirmations
// confirmations and it is unspent in the view.  Outputs of pending
// transactions never count.
//
// The view is only read, so the weight of a snapshot may be computed
// concurrently with anything else reading it.
func ComputeWeight(view *blockchain.UtxoViewpoint, keys KeyOwner, height int32,
	params *chaincfg.Params) (btcutil.Amount, []StakeWeightEntry) {

	var weight btcutil.Amount
	var entries []StakeWeightEntry
	for _, outpoint := range sortedOutPoints(view) {
		entry := view.LookupEntry(outpoint)
		if entry == nil {
			continue
		}
		keyHash := stakingKeyHash(entry.PkScript())
		if keyHash == nil || !keys.HaveKey(keyHash) {
			continue
		}

		eligible := !entry.IsSpent() &&
			entry.IsMature(height, params.StakeMinConfirmations)
		value := btcutil.Amount(entry.Amount())
		if eligible {
			weight += value
		}
		entries = append(entries, StakeWeightEntry{
			OutPoint: outpoint,
			Value:    value,
			Eligible: eligible,
		})
	}
	return weight, entries
}

// credit is an output the wallet may spend.
type credit struct {
	outPoint    wire.OutPoint
	amount      btcutil.Amount
	pkScript    []byte
	blockHeight int32
	keyHash     []byte
}

// byAmount defines the methods needed to satisify sort.Interface to sort
// credits by their amount.
type byAmount []credit

func (u byAmount) Len() int           { return len(u) }
func (u byAmount) Less(i, j int) bool { return u[i].amount < u[j].amount }
func (u byAmount) Swap(i, j int)      { u[i], u[j] = u[j], u[i] }

// spendableCredits returns the unspent outputs of the view the keys may spend
// in the block after the provided height.  Coinbase and coinstake outputs must
// have reached the coinbase maturity.  Outputs of pending transactions are
// only included when includePending is set.
func spendableCredits(view *blockchain.UtxoViewpoint, keys KeyOwner,
	height int32, params *chaincfg.Params, includePending bool) []credit {

	var credits []credit
	for _, outpoint := range sortedOutPoints(view) {
		entry := view.LookupEntry(outpoint)
		if entry == nil || entry.IsSpent() {
			continue
		}
		keyHash := spendingKeyHash(entry.PkScript())
		if keyHash == nil || !keys.HaveKey(keyHash) {
			continue
		}

		pending := entry.BlockHeight() == blockchain.UnminedHeight
		if pending && !includePending {
			continue
		}
		if entry.IsCoinBase() || entry.IsCoinStake() {
			maturity := int32(params.CoinbaseMaturity)
			if !entry.IsMature(height+1, maturity) {
				continue
			}
		}

		credits = append(credits, credit{
			outPoint:    outpoint,
			amount:      btcutil.Amount(entry.Amount()),
			pkScript:    entry.PkScript(),
			blockHeight: entry.BlockHeight(),
			keyHash:     keyHash,
		})
	}
	return credits
}

// ComputeBalance returns the value of the outputs of the view the keys may
// spend, pending ones included.
func ComputeBalance(view *blockchain.UtxoViewpoint, keys KeyOwner, height int32,
	params *chaincfg.Params) btcutil.Amount {

	var balance btcutil.Amount
	for _, c := range spendableCredits(view, keys, height, params, true) {
		balance += c.amount
	}
	return balance
}
