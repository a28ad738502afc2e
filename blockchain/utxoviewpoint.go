// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/stake"
)

// UnminedHeight is the block height recorded for outputs of transactions
// that are not in a block yet.
const UnminedHeight int32 = -1

// txoFlags is a bitmask defining additional information and state for a
// transaction output in a utxo view.
type txoFlags uint8

const (
	// tfCoinBase indicates that a txout was contained in a coinbase tx.
	tfCoinBase txoFlags = 1 << iota

	// tfCoinStake indicates that a txout was contained in a coinstake tx.
	tfCoinStake

	// tfSpent indicates that a txout is spent.
	tfSpent

	// tfModified indicates that a txout has been modified since it was
	// loaded.
	tfModified
)

// UtxoEntry houses details about an individual transaction output in a utxo
// view such as whether or not it was contained in a coinbase or coinstake tx,
// the height of the block that contains the tx, whether or not it is spent,
// its public key script, and how much it pays.
type UtxoEntry struct {
	amount      int64
	pkScript    []byte // The public key script for the output.
	blockHeight int32  // Height of block containing tx.

	// packedFlags contains additional info about output such as whether it
	// is a coinbase, a coinstake, whether it is spent, and whether it has
	// been modified since it was loaded.
	packedFlags txoFlags
}

// NewUtxoEntry returns a new unspent entry for the provided output.
func NewUtxoEntry(txOut *wire.TxOut, blockHeight int32, isCoinBase,
	isCoinStake bool) *UtxoEntry {

	var flags txoFlags
	if isCoinBase {
		flags |= tfCoinBase
	}
	if isCoinStake {
		flags |= tfCoinStake
	}
	return &UtxoEntry{
		amount:      txOut.Value,
		pkScript:    txOut.PkScript,
		blockHeight: blockHeight,
		packedFlags: flags,
	}
}

// IsModified returns whether or not the output has been modified since it was
// loaded.
func (entry *UtxoEntry) IsModified() bool {
	return entry.packedFlags&tfModified == tfModified
}

// IsCoinBase returns whether or not the output was contained in a coinbase
// transaction.
func (entry *UtxoEntry) IsCoinBase() bool {
	return entry.packedFlags&tfCoinBase == tfCoinBase
}

// IsCoinStake returns whether or not the output was contained in a coinstake
// transaction.
func (entry *UtxoEntry) IsCoinStake() bool {
	return entry.packedFlags&tfCoinStake == tfCoinStake
}

// BlockHeight returns the height of the block containing the output, or
// UnminedHeight for outputs of unconfirmed transactions.
func (entry *UtxoEntry) BlockHeight() int32 {
	return entry.blockHeight
}

// IsSpent returns whether or not the output has been spent based upon the
// current state of the unspent transaction output view it was obtained from.
func (entry *UtxoEntry) IsSpent() bool {
	return entry.packedFlags&tfSpent == tfSpent
}

// Spend marks the output as spent.  Spending an output that is already spent
// has no effect.
func (entry *UtxoEntry) Spend() {
	// Nothing to do if the output is already spent.
	if entry.IsSpent() {
		return
	}

	// Mark the output as spent and modified.
	entry.packedFlags |= tfSpent | tfModified
}

// Amount returns the amount of the output.
func (entry *UtxoEntry) Amount() int64 {
	return entry.amount
}

// PkScript returns the public key script for the output.
func (entry *UtxoEntry) PkScript() []byte {
	return entry.pkScript
}

// ScriptClass returns the class of the public key script for the output.
func (entry *UtxoEntry) ScriptClass() stake.ScriptClass {
	return stake.GetScriptClass(entry.pkScript)
}

// IsMature returns whether an output created at the entry height may be
// spent, or staked, by a block at the provided height given the required
// number of confirmations.  Unmined outputs are never mature.
func (entry *UtxoEntry) IsMature(height, confirmations int32) bool {
	if entry.blockHeight == UnminedHeight {
		return false
	}
	return height-entry.blockHeight >= confirmations
}

// Clone returns a shallow copy of the utxo entry.
func (entry *UtxoEntry) Clone() *UtxoEntry {
	if entry == nil {
		return nil
	}

	newEntry := *entry
	return &newEntry
}

// UtxoViewpoint represents a view into the set of unspent transaction outputs
// from a specific point of view in the chain.  For example, it could be for
// the end of the main chain, some point in the history of the main chain, or
// down a side chain.
//
// The unspent outputs are needed by other transactions for things such as
// script validation and double spend prevention.
type UtxoViewpoint struct {
	entries  map[wire.OutPoint]*UtxoEntry
	bestHash chainhash.Hash
}

// BestHash returns the hash of the best block in the chain the view currently
// respresents.
func (view *UtxoViewpoint) BestHash() *chainhash.Hash {
	return &view.bestHash
}

// SetBestHash sets the hash of the best block in the chain the view currently
// respresents.
func (view *UtxoViewpoint) SetBestHash(hash *chainhash.Hash) {
	view.bestHash = *hash
}

// LookupEntry returns information about a given transaction output according to
// the current state of the view.  It will return nil if the passed output does
// not exist in the view or is otherwise not available such as when it has been
// disconnected during a reorg.
func (view *UtxoViewpoint) LookupEntry(outpoint wire.OutPoint) *UtxoEntry {
	return view.entries[outpoint]
}

// AddEntry adds the provided entry for the outpoint to the view, replacing
// any existing one.
func (view *UtxoViewpoint) AddEntry(outpoint wire.OutPoint, entry *UtxoEntry) {
	view.entries[outpoint] = entry
}

// addTxOut adds the specified output to the view if it is not provably
// unspendable.  When the view already has an entry for the output, it will be
// marked unspent.  All fields will be updated for existing entries since it's
// possible it has changed during a reorg.
func (view *UtxoViewpoint) addTxOut(outpoint wire.OutPoint, txOut *wire.TxOut,
	isCoinBase, isCoinStake bool, blockHeight int32) {

	// Don't add provably unspendable outputs.  The empty marker output of
	// a coinstake carries nothing either.
	if txscript.IsUnspendable(txOut.PkScript) {
		return
	}
	if txOut.Value == 0 && len(txOut.PkScript) == 0 {
		return
	}

	entry := NewUtxoEntry(txOut, blockHeight, isCoinBase, isCoinStake)
	entry.packedFlags |= tfModified
	view.entries[outpoint] = entry
}

// AddTxOuts adds all outputs in the passed transaction which are not provably
// unspendable to the view.  When the view already has entries for any of the
// outputs, they are simply marked unspent.  All fields will be updated for
// existing entries since it's possible it has changed during a reorg.
func (view *UtxoViewpoint) AddTxOuts(tx *btcutil.Tx, blockHeight int32) {
	// Loop all of the transaction outputs and add those which are not
	// provably unspendable.
	msgTx := tx.MsgTx()
	isCoinBase := stake.IsCoinBaseTx(msgTx)
	isCoinStake := stake.IsCoinStake(msgTx)
	prevOut := wire.OutPoint{Hash: *tx.Hash()}
	for txOutIdx, txOut := range msgTx.TxOut {
		// Update existing entries.  All fields are updated because it's
		// possible (although extremely unlikely) that the existing
		// entry is being replaced by a different transaction with the
		// same hash.  This is allowed so long as the previous
		// transaction is fully spent.
		prevOut.Index = uint32(txOutIdx)
		view.addTxOut(prevOut, txOut, isCoinBase, isCoinStake,
			blockHeight)
	}
}

// spendTxInputs marks the outputs referenced by the inputs of the transaction
// as spent.  Every referenced output must already be in the view.
func (view *UtxoViewpoint) spendTxInputs(tx *btcutil.Tx) error {
	for _, txIn := range tx.MsgTx().TxIn {
		entry := view.entries[txIn.PreviousOutPoint]
		if entry == nil {
			return AssertError(fmt.Sprintf("view missing input %v",
				txIn.PreviousOutPoint))
		}
		entry.Spend()
	}
	return nil
}

// connectTransaction updates the view by adding all new utxos created by the
// passed transaction and marking all utxos that the transactions spend as
// spent.
func (view *UtxoViewpoint) connectTransaction(tx *btcutil.Tx, blockHeight int32) error {
	// Coinbase transactions don't have any inputs to spend.
	if !stake.IsCoinBaseTx(tx.MsgTx()) {
		if err := view.spendTxInputs(tx); err != nil {
			return err
		}
	}

	// Add the transaction's outputs as available utxos.
	view.AddTxOuts(tx, blockHeight)
	return nil
}

// ConnectTransaction marks the outputs spent by the transaction as spent and
// adds its outputs at the provided height.  The wallet uses it with
// UnminedHeight to apply pending transactions to a snapshot.
func (view *UtxoViewpoint) ConnectTransaction(tx *btcutil.Tx, blockHeight int32) error {
	return view.connectTransaction(tx, blockHeight)
}

// Entries returns the underlying map that stores of all the utxo entries.
func (view *UtxoViewpoint) Entries() map[wire.OutPoint]*UtxoEntry {
	return view.entries
}

// commit prunes all entries marked spent from the view and clears the
// modified flag of the remaining ones.
func (view *UtxoViewpoint) commit() {
	for outpoint, entry := range view.entries {
		if entry == nil || entry.IsSpent() {
			delete(view.entries, outpoint)
			continue
		}

		entry.packedFlags &^= tfModified
	}
}

// Clone returns a deep copy of the view.  Changes to the clone, spending
// entries included, do not affect the original.
func (view *UtxoViewpoint) Clone() *UtxoViewpoint {
	clone := &UtxoViewpoint{
		entries:  make(map[wire.OutPoint]*UtxoEntry, len(view.entries)),
		bestHash: view.bestHash,
	}
	for outpoint, entry := range view.entries {
		clone.entries[outpoint] = entry.Clone()
	}
	return clone
}

// fetchUtxos loads the unspent transaction outputs for the provided set of
// outputs into the view from the store as needed.  Outputs already in the view
// are left untouched.
func (view *UtxoViewpoint) fetchUtxos(store ChainStore, outpoints map[wire.OutPoint]struct{}) error {
	for outpoint := range outpoints {
		if _, ok := view.entries[outpoint]; ok {
			continue
		}

		entry, err := store.FetchUtxoEntry(outpoint)
		if err != nil {
			return err
		}
		if entry != nil {
			view.entries[outpoint] = entry
		}
	}
	return nil
}

// fetchInputUtxos loads the unspent transaction outputs for the inputs
// referenced by the transactions in the given block into the view from the
// store as needed.  In particular, referenced entries that are earlier in
// the block are added to the view and entries that are already in the view
// are not modified.
func (view *UtxoViewpoint) fetchInputUtxos(store ChainStore, block *btcutil.Block) error {
	// Build a map of in-flight transactions because some of the inputs in
	// this block could be referencing other transactions earlier in this
	// block which are not yet in the chain.
	txInFlight := map[chainhash.Hash]int{}
	transactions := block.Transactions()
	for i, tx := range transactions {
		txInFlight[*tx.Hash()] = i
	}

	// Loop through all of the transaction inputs (except for the coinbase
	// which has no inputs) collecting them into sets of what is needed and
	// what is already known (in-flight).
	needed := make(map[wire.OutPoint]struct{})
	for i, tx := range transactions[1:] {
		for _, txIn := range tx.MsgTx().TxIn {
			// It is acceptable for a transaction input to reference
			// the output of another transaction in this block only
			// if the referenced transaction comes before the
			// current one in this block.  Those outputs are added
			// when the referenced transaction is connected.
			originHash := &txIn.PreviousOutPoint.Hash
			if inFlightIndex, ok := txInFlight[*originHash]; ok &&
				i >= inFlightIndex {

				continue
			}

			// Don't request entries that are already in the view
			// from the database.
			if _, ok := view.entries[txIn.PreviousOutPoint]; ok {
				continue
			}

			needed[txIn.PreviousOutPoint] = struct{}{}
		}
	}

	// Request the input utxos from the database.
	return view.fetchUtxos(store, needed)
}

// NewUtxoViewpoint returns a new empty unspent transaction output view.
func NewUtxoViewpoint() *UtxoViewpoint {
	return &UtxoViewpoint{
		entries: make(map[wire.OutPoint]*UtxoEntry),
	}
}
