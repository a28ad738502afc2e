// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/navcoin/coldstaked/address"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
)

// UtxoSource provides consistent snapshots of the unspent outputs controlled
// by a set of key hashes.
type UtxoSource interface {
	Snapshot(keyHashes [][]byte) (*blockchain.UtxoViewpoint, int32, error)
}

// TxPool accepts transactions for inclusion in the next blocks and lists the
// ones not mined yet in the order they were accepted.
type TxPool interface {
	ProcessTransaction(tx *btcutil.Tx) error
	PendingTransactions() []*btcutil.Tx
}

// Config is a descriptor containing the wallet configuration.
type Config struct {
	// ChainParams identifies the network of the wallet.
	ChainParams *chaincfg.Params

	// Keys holds the private keys of the wallet.
	Keys *Keyring

	// Utxos provides the unspent outputs of the main chain.
	Utxos UtxoSource

	// Pool is where new transactions are published to.
	Pool TxPool

	// RelayFee is the fee per kilobyte paid by created transactions.  Zero
	// selects txrules.DefaultRelayFeePerKb.
	RelayFee btcutil.Amount
}

// Wallet tracks the outputs its keys may spend or stake and creates
// transactions spending them.
//
// It is safe for concurrent access.
type Wallet struct {
	params   *chaincfg.Params
	keys     *Keyring
	utxos    UtxoSource
	pool     TxPool
	relayFee btcutil.Amount
}

// New returns a wallet using the provided configuration.
func New(cfg *Config) *Wallet {
	relayFee := cfg.RelayFee
	if relayFee == 0 {
		relayFee = txrules.DefaultRelayFeePerKb
	}
	return &Wallet{
		params:   cfg.ChainParams,
		keys:     cfg.Keys,
		utxos:    cfg.Utxos,
		pool:     cfg.Pool,
		relayFee: relayFee,
	}
}

// Keys returns the keyring of the wallet.
func (w *Wallet) Keys() *Keyring {
	return w.keys
}

// Snapshot returns the outputs controlled by the keys of the wallet as of the
// current tip with the pending transactions of the pool applied, along with
// the tip height.  The view is owned by the caller.
//
// The pool is read before the chain, so a transaction mined in between is
// found in both.  Its spent inputs are already gone from the chain and its
// outputs keep their mined height.
func (w *Wallet) Snapshot() (*blockchain.UtxoViewpoint, int32, error) {
	pending := w.pool.PendingTransactions()
	view, height, err := w.utxos.Snapshot(w.keys.KeyHashes())
	if err != nil {
		return nil, 0, err
	}

	for _, tx := range pending {
		msgTx := tx.MsgTx()
		for _, txIn := range msgTx.TxIn {
			if entry := view.LookupEntry(txIn.PreviousOutPoint); entry != nil {
				entry.Spend()
			}
		}
		outpoint := wire.OutPoint{Hash: *tx.Hash()}
		for i, txOut := range msgTx.TxOut {
			outpoint.Index = uint32(i)
			if view.LookupEntry(outpoint) != nil ||
				txscript.IsUnspendable(txOut.PkScript) {

				continue
			}
			view.AddEntry(outpoint, blockchain.NewUtxoEntry(txOut,
				blockchain.UnminedHeight, false, false))
		}
	}
	return view, height, nil
}

// StakingWeight returns the current staking weight of the wallet and the tip
// height it was computed at.
func (w *Wallet) StakingWeight() (btcutil.Amount, int32, error) {
	view, height, err := w.Snapshot()
	if err != nil {
		return 0, 0, err
	}
	weight, _ := ComputeWeight(view, w.keys, height, w.params)
	return weight, height, nil
}

// Balance returns the value the wallet may spend, pending outputs included.
func (w *Wallet) Balance() (btcutil.Amount, error) {
	view, height, err := w.Snapshot()
	if err != nil {
		return 0, err
	}
	return ComputeBalance(view, w.keys, height, w.params), nil
}

// UnspentOutput describes an output the wallet holds the spending or the
// staking right of.
type UnspentOutput struct {
	OutPoint      wire.OutPoint
	Address       string
	Amount        btcutil.Amount
	PkScript      []byte
	Confirmations int32
	Spendable     bool
	Stakeable     bool
}

// ListUnspent returns every unspent output the wallet holds a key of.
func (w *Wallet) ListUnspent() ([]UnspentOutput, error) {
	view, height, err := w.Snapshot()
	if err != nil {
		return nil, err
	}

	var unspent []UnspentOutput
	for _, outpoint := range sortedOutPoints(view) {
		entry := view.LookupEntry(outpoint)
		if entry == nil || entry.IsSpent() {
			continue
		}
		pkScript := entry.PkScript()
		spendable := w.keys.HaveKey(spendingKeyHash(pkScript))
		stakeable := w.keys.HaveKey(stakingKeyHash(pkScript))
		if !spendable && !stakeable {
			continue
		}

		var confirmations int32
		if entry.BlockHeight() != blockchain.UnminedHeight {
			confirmations = height - entry.BlockHeight() + 1
		}
		unspent = append(unspent, UnspentOutput{
			OutPoint:      outpoint,
			Address:       w.scriptAddress(pkScript),
			Amount:        btcutil.Amount(entry.Amount()),
			PkScript:      pkScript,
			Confirmations: confirmations,
			Spendable:     spendable,
			Stakeable:     stakeable,
		})
	}
	return unspent, nil
}

// scriptAddress returns the encoded address paid by the script or an empty
// string when it pays none.
func (w *Wallet) scriptAddress(pkScript []byte) string {
	var addr btcutil.Address
	var err error
	switch stake.GetScriptClass(pkScript) {
	case stake.PubKeyHashTy:
		addr, err = btcutil.NewAddressPubKeyHash(
			stake.ExtractPubKeyHash(pkScript), w.params.Params)
	case stake.ColdStakingTy:
		staking, spending, _ := stake.ExtractColdStakingKeyHashes(pkScript)
		addr, err = address.NewAddressColdStaking(staking, spending,
			w.params)
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	return addr.EncodeAddress()
}

// selectInputs selects the minimum number possible of credits, which must be
// sorted by amount in reverse order, to create a new transaction that spends
// amt plus fee.  It returns InsufficientFunds if there are not enough credits.
func selectInputs(eligible []credit, amt, fee btcutil.Amount) ([]credit, btcutil.Amount, error) {
	// Iterate through eligible credits, appending to selected and
	// increasing out.  This is finished when out is greater than the
	// requested amt to spend.
	selected := make([]credit, 0, len(eligible))
	var out btcutil.Amount
	for _, e := range eligible {
		selected = append(selected, e)
		out += e.amount
		if out >= amt+fee {
			return selected, out, nil
		}
	}
	return nil, 0, InsufficientFunds{out, amt, fee}
}

// SendToAddress creates a transaction paying amount to the address, signs it
// and publishes it to the pool.  Any output the wallet holds the spending key
// of may be selected, including the outputs of its pending transactions, so
// the whole balance is spendable.  Change is returned to a new address of the
// wallet.
func (w *Wallet) SendToAddress(addr btcutil.Address, amount btcutil.Amount) (*chainhash.Hash, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	pkScript, err := stake.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	txOut := wire.NewTxOut(int64(amount), pkScript)
	if err := txrules.CheckOutput(txOut, w.relayFee); err != nil {
		return nil, err
	}

	view, height, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	eligible := spendableCredits(view, w.keys, height, w.params, true)

	// Sort eligible inputs, as selectInputs expects these to be sorted by
	// amount in reverse order.
	sort.Stable(sort.Reverse(byAmount(eligible)))

	// changeScript is nil until a change output is needed, and reused in
	// case a later fee estimate needs one again.
	var changeScript []byte
	var msgTx *wire.MsgTx
	var inputs []credit
	fee := btcutil.Amount(0)
	for {
		msgTx = wire.NewMsgTx(wire.TxVersion)
		msgTx.AddTxOut(txOut)

		// Select eligible outputs to be used in transaction based on the
		// amount needed to be sent, and the current fee estimation.
		var in btcutil.Amount
		inputs, in, err = selectInputs(eligible, amount, fee)
		if err != nil {
			return nil, err
		}
		for i := range inputs {
			msgTx.AddTxIn(wire.NewTxIn(&inputs[i].outPoint, nil, nil))
		}

		// Return leftover coins to the wallet unless they are dust.
		change := in - amount - fee
		if change > 0 {
			if changeScript == nil {
				changeAddr, err := w.keys.NewAddress()
				if err != nil {
					return nil, err
				}
				changeScript, err = txscript.PayToAddrScript(changeAddr)
				if err != nil {
					return nil, err
				}
			}
			changeOut := wire.NewTxOut(int64(change), changeScript)
			if !txrules.IsDustOutput(changeOut, w.relayFee) {
				msgTx.AddTxOut(changeOut)
			}
		}

		size := txsizes.EstimateSerializeSize(len(inputs), msgTx.TxOut,
			false)
		minFee := txrules.FeeForSerializeSize(w.relayFee, size)
		if fee >= minFee {
			break
		}
		fee = minFee
	}

	if err := w.signInputs(msgTx, inputs, false); err != nil {
		return nil, err
	}

	tx := btcutil.NewTx(msgTx)
	if err := w.pool.ProcessTransaction(tx); err != nil {
		return nil, err
	}
	log.Infof("Sent %v to %v in transaction %v (fee %v)", amount,
		addr.EncodeAddress(), tx.Hash(), fee)
	return tx.Hash(), nil
}

// signInputs signs every input of the transaction, spending the credits in
// the same order.  Cold staking inputs are signed with the staking key when
// staking is set and with the spending key otherwise.
func (w *Wallet) signInputs(msgTx *wire.MsgTx, inputs []credit, staking bool) error {
	for i := range inputs {
		pkScript := inputs[i].pkScript
		var sigScript []byte
		var err error
		switch stake.GetScriptClass(pkScript) {
		case stake.ColdStakingTy:
			keyHash := spendingKeyHash(pkScript)
			if staking {
				keyHash = stakingKeyHash(pkScript)
			}
			wif, ok := w.keys.Key(keyHash)
			if !ok {
				return fmt.Errorf("no key for input %d", i)
			}
			sigScript, err = stake.SignColdStakingInput(msgTx, i,
				pkScript, txscript.SigHashAll, wif.PrivKey,
				wif.CompressPubKey)

		case stake.PubKeyHashTy:
			wif, ok := w.keys.Key(stake.ExtractPubKeyHash(pkScript))
			if !ok {
				return fmt.Errorf("no key for input %d", i)
			}
			sigScript, err = txscript.SignatureScript(msgTx, i, pkScript,
				txscript.SigHashAll, wif.PrivKey, wif.CompressPubKey)

		default:
			return fmt.Errorf("input %d spends an unsupported script", i)
		}
		if err != nil {
			return fmt.Errorf("cannot create sigscript: %w", err)
		}
		msgTx.TxIn[i].SignatureScript = sigScript
	}
	return nil
}

// CreateCoinStake returns a coinstake claiming the largest output eligible for
// staking and returning it, plus the stake reward, to the very same script.
// Cold staking outputs are claimed with the staking key, so custody never
// changes.  It returns ErrNoStakeableOutput when no output is eligible.
func (w *Wallet) CreateCoinStake() (*wire.MsgTx, error) {
	view, height, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	_, entries := ComputeWeight(view, w.keys, height, w.params)

	var best *StakeWeightEntry
	for i := range entries {
		if !entries[i].Eligible {
			continue
		}
		if best == nil || entries[i].Value > best.Value {
			best = &entries[i]
		}
	}
	if best == nil {
		return nil, ErrNoStakeableOutput
	}

	entry := view.LookupEntry(best.OutPoint)
	stakeIn := credit{
		outPoint: best.OutPoint,
		amount:   best.Value,
		pkScript: entry.PkScript(),
	}
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(wire.NewTxIn(&stakeIn.outPoint, nil, nil))
	msgTx.AddTxOut(wire.NewTxOut(0, nil))
	msgTx.AddTxOut(wire.NewTxOut(int64(best.Value+w.params.CoinStakeReward),
		stakeIn.pkScript))

	if err := w.signInputs(msgTx, []credit{stakeIn}, true); err != nil {
		return nil, err
	}
	log.Debugf("Created coinstake %v staking %v", msgTx.TxHash(),
		best.OutPoint)
	return msgTx, nil
}
