// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	btcdchain "github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
)

// CalcBlockSubsidy returns the amount a coinbase at the provided height may
// claim on top of the fees of its block.
func CalcBlockSubsidy(height int32, params *chaincfg.Params) int64 {
	if height <= 0 {
		return 0
	}
	return int64(params.BaseSubsidy)
}

// CheckTransactionSanity performs some preliminary checks on a transaction to
// ensure it is sane.  These checks are context free: no inputs, no outputs,
// out of range values, duplicate inputs and malformed coinbases are rejected.
func CheckTransactionSanity(tx *btcutil.Tx) error {
	if err := btcdchain.CheckTransactionSanity(tx); err != nil {
		e := ruleError(ErrBadTransaction, err.Error())
		e.Err = err
		return e
	}
	return nil
}

// CheckTransactionOutputs ensures the outputs of the transaction are allowed
// at the height of the block that includes it.  Cold staking outputs are only
// allowed once the cold staking deployment is active.
func CheckTransactionOutputs(tx *btcutil.Tx, coldStakingActive bool) error {
	if coldStakingActive {
		return nil
	}

	for txOutIdx, txOut := range tx.MsgTx().TxOut {
		if stake.IsColdStakingScript(txOut.PkScript) {
			str := fmt.Sprintf("output %d of transaction %v is a "+
				"cold staking output but cold staking is not "+
				"active", txOutIdx, tx.Hash())
			return ruleError(ErrFeatureNotActive, str)
		}
	}
	return nil
}

// CheckTransactionInputs performs a series of checks on the inputs to a
// transaction to ensure they are valid.  An example of some of the checks
// include verifying all inputs exist, ensuring the coinbase and coinstake
// maturity requirements are met, and ensuring the transaction does not spend
// more than its inputs.  Coinstake transactions may mint up to the stake reward
// on top of their inputs.  It returns the fees of the transaction.
//
// NOTE: The transaction MUST have already been sanity checked with the
// CheckTransactionSanity function prior to calling this function.
func CheckTransactionInputs(tx *btcutil.Tx, txHeight int32, view *UtxoViewpoint,
	params *chaincfg.Params) (int64, error) {

	// Coinbase transactions have no inputs.
	msgTx := tx.MsgTx()
	if stake.IsCoinBaseTx(msgTx) {
		return 0, nil
	}

	txHash := tx.Hash()
	coinStake := stake.IsCoinStake(msgTx)
	var totalSatoshiIn int64
	for txInIndex, txIn := range msgTx.TxIn {
		// Ensure the referenced input transaction is available.
		utxo := view.LookupEntry(txIn.PreviousOutPoint)
		if utxo == nil || utxo.IsSpent() {
			str := fmt.Sprintf("output %v referenced from "+
				"transaction %s:%d either does not exist or "+
				"has already been spent", txIn.PreviousOutPoint,
				txHash, txInIndex)
			return 0, ruleError(ErrMissingTxOut, str)
		}

		// Ensure the transaction is not spending coins which have not
		// yet reached the required coinbase maturity.
		if utxo.IsCoinBase() || utxo.IsCoinStake() {
			maturity := int32(params.CoinbaseMaturity)
			if !utxo.IsMature(txHeight, maturity) {
				str := fmt.Sprintf("tried to spend coinbase or "+
					"coinstake output %v from height %v at "+
					"height %v before required maturity "+
					"of %v blocks", txIn.PreviousOutPoint,
					utxo.BlockHeight(), txHeight, maturity)
				return 0, ruleError(ErrImmatureSpend, str)
			}
		}

		// Ensure a coinstake only stakes outputs buried deep enough.
		if coinStake && !utxo.IsMature(txHeight,
			params.StakeMinConfirmations) {

			str := fmt.Sprintf("coinstake %s stakes output %v from "+
				"height %v at height %v before the required %v "+
				"confirmations", txHash, txIn.PreviousOutPoint,
				utxo.BlockHeight(), txHeight,
				params.StakeMinConfirmations)
			return 0, ruleError(ErrImmatureStake, str)
		}

		// Ensure the transaction amounts are in range.  Each of the
		// output values of the input transactions must not be negative
		// or more than the max allowed per transaction.  All amounts in
		// a transaction are in a unit value known as a satoshi.
		originTxSatoshi := utxo.Amount()
		if originTxSatoshi < 0 {
			str := fmt.Sprintf("transaction output has negative "+
				"value of %v", btcutil.Amount(originTxSatoshi))
			return 0, ruleError(ErrBadTxOutValue, str)
		}
		if originTxSatoshi > btcutil.MaxSatoshi {
			str := fmt.Sprintf("transaction output value of %v is "+
				"higher than max allowed value of %v",
				btcutil.Amount(originTxSatoshi),
				btcutil.Amount(btcutil.MaxSatoshi))
			return 0, ruleError(ErrBadTxOutValue, str)
		}

		// The total of all outputs must not be more than the max
		// allowed per transaction.  Also, we could potentially
		// overflow the accumulator so check for overflow.
		lastSatoshiIn := totalSatoshiIn
		totalSatoshiIn += originTxSatoshi
		if totalSatoshiIn < lastSatoshiIn ||
			totalSatoshiIn > btcutil.MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction "+
				"inputs is %v which is higher than max "+
				"allowed value of %v", totalSatoshiIn,
				btcutil.MaxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}
	}

	// Calculate the total output amount for this transaction.  It is safe
	// to ignore overflow and out of range errors here because those error
	// conditions would have already been caught by checkTransactionSanity.
	var totalSatoshiOut int64
	for _, txOut := range msgTx.TxOut {
		totalSatoshiOut += txOut.Value
	}

	// A coinstake may mint the stake reward and pays no fees.
	if coinStake {
		maxOut := totalSatoshiIn + int64(params.CoinStakeReward)
		if totalSatoshiOut > maxOut {
			str := fmt.Sprintf("coinstake %v pays %v which is more "+
				"than its inputs of %v plus the stake reward of "+
				"%v", txHash, btcutil.Amount(totalSatoshiOut),
				btcutil.Amount(totalSatoshiIn),
				params.CoinStakeReward)
			return 0, ruleError(ErrSpendTooHigh, str)
		}
		return 0, nil
	}

	// Ensure the transaction does not spend more than its inputs.
	if totalSatoshiIn < totalSatoshiOut {
		str := fmt.Sprintf("total value of all transaction inputs for "+
			"transaction %v is %v which is less than the amount "+
			"spent of %v", txHash, totalSatoshiIn, totalSatoshiOut)
		return 0, ruleError(ErrSpendTooHigh, str)
	}

	return totalSatoshiIn - totalSatoshiOut, nil
}

// ValidateTransactionScripts validates the scripts for the passed transaction.
// Inputs claiming cold staking outputs are authorized by the stake rules, all
// other inputs are executed by the script engine.
//
// NOTE: The transaction MUST have already been checked with the
// CheckTransactionInputs function prior to calling this function.
func ValidateTransactionScripts(tx *btcutil.Tx, view *UtxoViewpoint,
	flags txscript.ScriptFlags, sigCache *stake.SigCache) error {

	msgTx := tx.MsgTx()
	if stake.IsCoinBaseTx(msgTx) {
		return nil
	}

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(msgTx.TxIn))
	for _, txIn := range msgTx.TxIn {
		utxo := view.LookupEntry(txIn.PreviousOutPoint)
		if utxo == nil {
			return AssertError(fmt.Sprintf("unable to find unspent "+
				"output %v referenced from transaction %s",
				txIn.PreviousOutPoint, tx.Hash()))
		}
		prevOuts[txIn.PreviousOutPoint] = wire.NewTxOut(utxo.Amount(),
			utxo.PkScript())
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	hashCache := txscript.NewTxSigHashes(msgTx, fetcher)

	for txInIdx, txIn := range msgTx.TxIn {
		prevOut := prevOuts[txIn.PreviousOutPoint]

		if stake.IsColdStakingScript(prevOut.PkScript) {
			verdict, err := stake.Authorize(fetcher, msgTx, txInIdx,
				sigCache)
			if err != nil {
				str := fmt.Sprintf("input %d of transaction %v "+
					"claims cold staking output %v without "+
					"authorization: %v", txInIdx, tx.Hash(),
					txIn.PreviousOutPoint, err)
				return RuleError{ErrorCode: ErrAuthorization,
					Description: str, Err: err}
			}
			log.Tracef("Input %d of transaction %v authorized by the "+
				"%v branch", txInIdx, tx.Hash(), verdict)
			continue
		}

		vm, err := txscript.NewEngine(prevOut.PkScript, msgTx, txInIdx,
			flags, nil, hashCache, prevOut.Value, fetcher)
		if err != nil {
			str := fmt.Sprintf("failed to parse input %s:%d which "+
				"references output %v - %v", tx.Hash(), txInIdx,
				txIn.PreviousOutPoint, err)
			return ruleError(ErrScriptValidation, str)
		}
		if err := vm.Execute(); err != nil {
			str := fmt.Sprintf("failed to validate input %s:%d which "+
				"references output %v - %v", tx.Hash(), txInIdx,
				txIn.PreviousOutPoint, err)
			return ruleError(ErrScriptValidation, str)
		}
	}

	return nil
}

// checkBlockSanity performs some preliminary checks on a block to ensure it is
// sane before continuing with block processing.  These checks are context
// free.
func checkBlockSanity(block *btcutil.Block) error {
	// A block must have at least one transaction.
	transactions := block.Transactions()
	if len(transactions) == 0 {
		return ruleError(ErrNoTransactions, "block does not contain "+
			"any transactions")
	}

	// The first transaction in a block must be a coinbase.
	if !stake.IsCoinBaseTx(transactions[0].MsgTx()) {
		str := "first transaction in block is not a coinbase"
		return ruleError(ErrFirstTxNotCoinbase, str)
	}

	// A block must not have more than one coinbase and a coinstake may
	// only directly follow the coinbase.
	for i, tx := range transactions[1:] {
		if stake.IsCoinBaseTx(tx.MsgTx()) {
			str := fmt.Sprintf("block contains second coinbase at "+
				"index %d", i+1)
			return ruleError(ErrMultipleCoinbases, str)
		}
		if i > 0 && stake.IsCoinStake(tx.MsgTx()) {
			str := fmt.Sprintf("block contains a coinstake at "+
				"index %d", i+1)
			return ruleError(ErrBadCoinStake, str)
		}
	}

	// Do some preliminary checks on each transaction to ensure they are
	// sane before continuing.
	for _, tx := range transactions {
		if err := CheckTransactionSanity(tx); err != nil {
			return err
		}
	}

	// Build merkle tree and ensure the calculated merkle root matches the
	// entry in the block header.
	header := &block.MsgBlock().Header
	calculatedMerkleRoot := btcdchain.CalcMerkleRoot(transactions, false)
	if !header.MerkleRoot.IsEqual(&calculatedMerkleRoot) {
		str := fmt.Sprintf("block merkle root is invalid - block "+
			"header indicates %v, but calculated value is %v",
			header.MerkleRoot, calculatedMerkleRoot)
		return ruleError(ErrBadMerkleRoot, str)
	}

	// Check for duplicate transactions.  This check will be fairly quick
	// since the transaction hashes are already cached due to building the
	// merkle tree above.
	existingTxHashes := make(map[chainhash.Hash]struct{})
	for _, tx := range transactions {
		hash := tx.Hash()
		if _, exists := existingTxHashes[*hash]; exists {
			str := fmt.Sprintf("block contains duplicate "+
				"transaction %v", hash)
			return ruleError(ErrDuplicateTx, str)
		}
		existingTxHashes[*hash] = struct{}{}
	}

	return nil
}

// checkConnectBlock performs several checks to confirm connecting the passed
// block to the chain represented by the passed view does not violate any
// rules.  In addition, the passed view is updated to spend all of the
// referenced outputs and add all of the new utxos created by block.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) checkConnectBlock(node *blockNode, block *btcutil.Block,
	view *UtxoViewpoint) error {

	// Load all of the utxos referenced by the inputs for all transactions
	// in the block don't already exist in the utxo view from the store.
	if err := view.fetchInputUtxos(b.store, block); err != nil {
		return err
	}

	coldStakingActive, err := b.deployments.IsActive(b.bestChain,
		node.height, chaincfg.DeploymentColdStaking)
	if err != nil {
		return err
	}

	// Perform several checks on the inputs for each transaction.  Also
	// accumulate the total fees.  The outputs of each transaction are added
	// to the view once it is checked so later transactions of the block
	// may spend them.
	var totalFees int64
	for _, tx := range block.Transactions() {
		if err := CheckTransactionOutputs(tx, coldStakingActive); err != nil {
			return err
		}

		txFee, err := CheckTransactionInputs(tx, node.height, view,
			b.params)
		if err != nil {
			return err
		}

		// Sum the total fees and ensure we don't overflow the
		// accumulator.
		lastTotalFees := totalFees
		totalFees += txFee
		if totalFees < lastTotalFees {
			return ruleError(ErrBadTxOutValue, "total fees for "+
				"block overflows accumulator")
		}

		err = ValidateTransactionScripts(tx, view,
			txscript.StandardVerifyFlags, b.sigCache)
		if err != nil {
			return err
		}

		if err := view.connectTransaction(tx, node.height); err != nil {
			return err
		}
	}

	// The total output values of the coinbase transaction must not exceed
	// the expected subsidy value plus total transaction fees gained from
	// mining the block.
	var totalSatoshiOut int64
	for _, txOut := range block.Transactions()[0].MsgTx().TxOut {
		totalSatoshiOut += txOut.Value
	}
	expectedSatoshiOut := CalcBlockSubsidy(node.height, b.params) + totalFees
	if totalSatoshiOut > expectedSatoshiOut {
		str := fmt.Sprintf("coinbase transaction for block pays %v "+
			"which is more than expected value of %v",
			btcutil.Amount(totalSatoshiOut),
			btcutil.Amount(expectedSatoshiOut))
		return ruleError(ErrBadCoinbaseValue, str)
	}

	return nil
}
