// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
)

// TxDesc is a descriptor about a transaction in a transaction source along with
// additional metadata.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *btcutil.Tx

	// Added is the time when the entry was added to the source pool.
	Added time.Time

	// Height is the block height when the entry was added to the source
	// pool.
	Height int32

	// Fee is the total fee the transaction associated with the entry pays.
	Fee int64
}

// TxSource represents a source of transactions to consider for inclusion in
// new blocks.
//
// The interface contract requires that all of these methods are safe for
// concurrent access with respect to the source.
type TxSource interface {
	// MiningDescs returns a slice of mining descriptors for all the
	// transactions in the source pool in the order they were accepted.
	MiningDescs() []*TxDesc
}

// TxPoolConfig is a descriptor containing the transaction pool configuration.
type TxPoolConfig struct {
	// Chain is the chain the transactions are validated against.
	Chain *blockchain.BlockChain

	// SigCache defines a signature cache to use when validating cold
	// staking inputs.
	SigCache *stake.SigCache
}

// TxPool is used as a source of transactions that need to be mined into
// blocks.  Transactions are validated against the tip of the chain with the
// outputs of the transactions already in the pool available as inputs.  It is
// safe for concurrent access.
type TxPool struct {
	mtx       sync.RWMutex
	cfg       TxPoolConfig
	pool      map[chainhash.Hash]*TxDesc
	order     []*TxDesc
	outpoints map[wire.OutPoint]*btcutil.Tx
}

// Ensure the TxPool type implements the TxSource interface.
var _ TxSource = (*TxPool)(nil)

// NewTxPool returns a new memory pool for validating and storing standalone
// transactions until they are mined into a block.
func NewTxPool(cfg *TxPoolConfig) *TxPool {
	return &TxPool{
		cfg:       *cfg,
		pool:      make(map[chainhash.Hash]*TxDesc),
		outpoints: make(map[wire.OutPoint]*btcutil.Tx),
	}
}

// removeTransaction is the internal function which implements the public
// RemoveTransaction.  See the comment for RemoveTransaction for more details.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) removeTransaction(tx *btcutil.Tx, removeRedeemers bool) {
	txHash := tx.Hash()
	if removeRedeemers {
		// Remove any transactions which rely on this one.
		for i := uint32(0); i < uint32(len(tx.MsgTx().TxOut)); i++ {
			prevOut := wire.OutPoint{Hash: *txHash, Index: i}
			if txRedeemer, exists := mp.outpoints[prevOut]; exists {
				mp.removeTransaction(txRedeemer, true)
			}
		}
	}

	// Remove the transaction if needed.
	txDesc, exists := mp.pool[*txHash]
	if !exists {
		return
	}

	// Mark the referenced outpoints as unspent by the pool.
	for _, txIn := range txDesc.Tx.MsgTx().TxIn {
		delete(mp.outpoints, txIn.PreviousOutPoint)
	}
	delete(mp.pool, *txHash)
	for i, desc := range mp.order {
		if desc == txDesc {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// RemoveTransaction removes the passed transaction from the mempool. When the
// removeRedeemers flag is set, any transactions that redeem outputs from the
// removed transaction will also be removed recursively from the mempool, as
// they would otherwise become orphans.
//
// This function is safe for concurrent access.
func (mp *TxPool) RemoveTransaction(tx *btcutil.Tx, removeRedeemers bool) {
	// Protect concurrent access.
	mp.mtx.Lock()
	mp.removeTransaction(tx, removeRedeemers)
	mp.mtx.Unlock()
}

// removeDoubleSpends removes all transactions which spend outputs spent by
// the passed transaction from the memory pool.  Removing those transactions
// then leads to removing all transactions which rely on them, recursively.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) removeDoubleSpends(tx *btcutil.Tx) {
	for _, txIn := range tx.MsgTx().TxIn {
		if txRedeemer, ok := mp.outpoints[txIn.PreviousOutPoint]; ok {
			if !txRedeemer.Hash().IsEqual(tx.Hash()) {
				mp.removeTransaction(txRedeemer, true)
			}
		}
	}
}

// addTransaction adds the passed transaction to the memory pool.  It should
// not be called directly as it doesn't perform any validation.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) addTransaction(tx *btcutil.Tx, height int32, fee int64) *TxDesc {
	// Add the transaction to the pool and mark the referenced outpoints
	// as spent by the pool.
	txD := &TxDesc{
		Tx:     tx,
		Added:  time.Now(),
		Height: height,
		Fee:    fee,
	}
	mp.pool[*tx.Hash()] = txD
	mp.order = append(mp.order, txD)
	for _, txIn := range tx.MsgTx().TxIn {
		mp.outpoints[txIn.PreviousOutPoint] = tx
	}
	return txD
}

// checkPoolDoubleSpend checks whether or not the passed transaction is
// attempting to spend coins already spent by other transactions in the pool.
// Note it does not check for double spends against transactions already in the
// main chain.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) checkPoolDoubleSpend(tx *btcutil.Tx) error {
	for _, txIn := range tx.MsgTx().TxIn {
		if txR, exists := mp.outpoints[txIn.PreviousOutPoint]; exists {
			str := fmt.Sprintf("output %v already spent by "+
				"transaction %v in the memory pool",
				txIn.PreviousOutPoint, txR.Hash())
			return txRuleError(wire.RejectDuplicate, str)
		}
	}

	return nil
}

// fetchInputUtxos loads utxo details about the input transactions referenced by
// the passed transaction.  First, it loads the details form the viewpoint of
// the main chain, then it adjusts them based upon the contents of the
// transaction pool.
//
// This function MUST be called with the mempool lock held (for reads).
func (mp *TxPool) fetchInputUtxos(tx *btcutil.Tx) (*blockchain.UtxoViewpoint, error) {
	utxoView, err := mp.cfg.Chain.FetchUtxoView(tx)
	if err != nil {
		return nil, err
	}

	// Attempt to populate any missing inputs from the transaction pool.
	for _, txIn := range tx.MsgTx().TxIn {
		prevOut := &txIn.PreviousOutPoint
		if entry := utxoView.LookupEntry(*prevOut); entry != nil {
			continue
		}

		if poolTxDesc, exists := mp.pool[prevOut.Hash]; exists {
			utxoView.AddTxOuts(poolTxDesc.Tx, blockchain.UnminedHeight)
		}
	}
	return utxoView, nil
}

// maybeAcceptTransaction validates the transaction against the tip of the
// chain and the pool and adds it to the pool when it passes.
//
// This function MUST be called with the mempool lock held (for writes).
func (mp *TxPool) maybeAcceptTransaction(tx *btcutil.Tx) (*TxDesc, error) {
	txHash := tx.Hash()

	// Don't accept the transaction if it already exists in the pool.
	if _, exists := mp.pool[*txHash]; exists {
		str := fmt.Sprintf("already have transaction %v", txHash)
		return nil, txRuleError(wire.RejectDuplicate, str)
	}

	// Perform preliminary sanity checks on the transaction.  This makes
	// use of blockchain which contains the invariant rules for what
	// transactions are allowed into blocks.
	if err := blockchain.CheckTransactionSanity(tx); err != nil {
		return nil, wrapChainError(err)
	}

	// A standalone transaction must not be a coinbase or a coinstake
	// transaction.  Both only exist at a fixed position of a block.
	msgTx := tx.MsgTx()
	if stake.IsCoinBaseTx(msgTx) {
		str := fmt.Sprintf("transaction %v is an individual coinbase",
			txHash)
		return nil, txRuleError(wire.RejectInvalid, str)
	}
	if stake.IsCoinStake(msgTx) {
		str := fmt.Sprintf("transaction %v is an individual coinstake",
			txHash)
		return nil, txRuleError(wire.RejectInvalid, str)
	}

	// A standalone transaction will be mined into the next block at best,
	// so its height is at least one more than the current height.
	nextBlockHeight := mp.cfg.Chain.BestSnapshot().Height + 1

	// The transaction may not use any of the same outputs as other
	// transactions already in the pool as that would ultimately result in a
	// double spend.
	if err := mp.checkPoolDoubleSpend(tx); err != nil {
		return nil, err
	}

	utxoView, err := mp.fetchInputUtxos(tx)
	if err != nil {
		return nil, wrapChainError(err)
	}

	// Don't allow the transaction if it exists in the main chain and is not
	// already fully spent.
	prevOut := wire.OutPoint{Hash: *txHash}
	for txOutIdx := range msgTx.TxOut {
		prevOut.Index = uint32(txOutIdx)
		entry := utxoView.LookupEntry(prevOut)
		if entry != nil && !entry.IsSpent() {
			return nil, txRuleError(wire.RejectDuplicate,
				"transaction already exists")
		}
	}

	// Cold staking outputs are only relayed once they may be mined.
	coldStakingActive, err := mp.cfg.Chain.IsDeploymentActive(
		chaincfg.DeploymentColdStaking)
	if err != nil {
		return nil, err
	}
	err = blockchain.CheckTransactionOutputs(tx, coldStakingActive)
	if err != nil {
		return nil, wrapChainError(err)
	}

	// Perform several checks on the transaction inputs using the invariant
	// rules in blockchain for what transactions are allowed into blocks.
	// Also returns the fees associated with the transaction which will be
	// used later.
	txFee, err := blockchain.CheckTransactionInputs(tx, nextBlockHeight,
		utxoView, mp.cfg.Chain.Params())
	if err != nil {
		return nil, wrapChainError(err)
	}

	// Verify crypto signatures for each input and reject the transaction
	// if any don't verify.
	err = blockchain.ValidateTransactionScripts(tx, utxoView,
		txscript.StandardVerifyFlags, mp.cfg.SigCache)
	if err != nil {
		return nil, wrapChainError(err)
	}

	txD := mp.addTransaction(tx, nextBlockHeight-1, txFee)

	log.Debugf("Accepted transaction %v (pool size: %v)", txHash,
		len(mp.pool))

	return txD, nil
}

// ProcessTransaction is the main workhorse for handling insertion of new
// free-standing transactions into the memory pool.  It includes functionality
// such as rejecting duplicate transactions, ensuring transactions follow all
// rules and spending authorizations, and inserting the transaction into the
// memory pool.  Transactions spending outputs that are neither in the main
// chain nor in the pool are rejected.
//
// This function is safe for concurrent access.
func (mp *TxPool) ProcessTransaction(tx *btcutil.Tx) error {
	log.Tracef("Processing transaction %v", tx.Hash())

	// Protect concurrent access.
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	_, err := mp.maybeAcceptTransaction(tx)
	return err
}

// PendingTransactions returns the transactions of the pool in the order they
// were accepted, so every transaction comes after the ones it spends from.
//
// This function is safe for concurrent access.
func (mp *TxPool) PendingTransactions() []*btcutil.Tx {
	mp.mtx.RLock()
	txs := make([]*btcutil.Tx, len(mp.order))
	for i, desc := range mp.order {
		txs[i] = desc.Tx
	}
	mp.mtx.RUnlock()

	return txs
}

// HaveTransaction returns whether or not the passed transaction already exists
// in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) HaveTransaction(hash *chainhash.Hash) bool {
	mp.mtx.RLock()
	_, exists := mp.pool[*hash]
	mp.mtx.RUnlock()

	return exists
}

// Count returns the number of transactions in the pool.
//
// This function is safe for concurrent access.
func (mp *TxPool) Count() int {
	mp.mtx.RLock()
	count := len(mp.pool)
	mp.mtx.RUnlock()

	return count
}

// MiningDescs returns a slice of mining descriptors for all the transactions
// in the pool.
//
// This is part of the TxSource interface implementation and is safe for
// concurrent access as required by the interface contract.
func (mp *TxPool) MiningDescs() []*TxDesc {
	mp.mtx.RLock()
	descs := make([]*TxDesc, len(mp.order))
	copy(descs, mp.order)
	mp.mtx.RUnlock()

	return descs
}

// HandleChainNotification removes the transactions of every connected block
// from the pool along with the pool transactions they conflict with.  It is
// meant to be registered with blockchain.BlockChain.Subscribe.
func (mp *TxPool) HandleChainNotification(n *blockchain.Notification) {
	if n.Type != blockchain.NTBlockConnected {
		return
	}
	data, ok := n.Data.(*blockchain.BlockConnectedNtfnsData)
	if !ok {
		log.Warnf("Chain connected notification is not a block.")
		return
	}

	mp.mtx.Lock()
	for _, tx := range data.Block.Transactions()[1:] {
		mp.removeTransaction(tx, false)
		mp.removeDoubleSpends(tx)
	}
	remaining := len(mp.pool)
	mp.mtx.Unlock()

	log.Debugf("Block %v at height %d connected (pool size: %v)",
		data.Block.Hash(), data.Height, remaining)
}
