// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"sync"
	"testing"
	"time"

	btcdchain "github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
	"github.com/stretchr/testify/require"
)

// memStore is a ChainStore that keeps everything in memory.
type memStore struct {
	mtx     sync.Mutex
	utxos   map[wire.OutPoint]*UtxoEntry
	headers []wire.BlockHeader
}

func newMemStore() *memStore {
	return &memStore{utxos: make(map[wire.OutPoint]*UtxoEntry)}
}

func (s *memStore) FetchUtxoEntry(outpoint wire.OutPoint) (*UtxoEntry, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	entry := s.utxos[outpoint]
	if entry == nil {
		return nil, nil
	}
	return entry.Clone(), nil
}

func (s *memStore) FetchBlockHeaders() ([]wire.BlockHeader, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return append([]wire.BlockHeader(nil), s.headers...), nil
}

func (s *memStore) ConnectBlock(block *btcutil.Block, height int32,
	view *UtxoViewpoint) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	for outpoint, entry := range view.Entries() {
		switch {
		case entry.IsSpent():
			delete(s.utxos, outpoint)
		case entry.IsModified():
			clone := entry.Clone()
			clone.packedFlags &^= tfModified
			s.utxos[outpoint] = clone
		}
	}
	s.headers = append(s.headers, block.MsgBlock().Header)
	return nil
}

// testKey returns a deterministic private key derived from the seed byte.
func testKey(seed byte) *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return key
}

func keyHash(key *btcec.PrivateKey) []byte {
	return btcutil.Hash160(key.PubKey().SerializeCompressed())
}

// chainHarness drives a regression test chain whose coinbases all pay to a
// single key.
type chainHarness struct {
	t        *testing.T
	params   *chaincfg.Params
	store    *memStore
	chain    *BlockChain
	key      *btcec.PrivateKey
	pkScript []byte
	cache    *stake.SigCache

	// coinbases holds the coinbase transaction of every block by height.
	coinbases map[int32]*wire.MsgTx
}

func newChainHarness(t *testing.T) *chainHarness {
	t.Helper()

	params := &chaincfg.RegressionNetParams
	store := newMemStore()
	cache := stake.NewSigCache(100)
	chain, err := New(&Config{
		ChainParams: params,
		Store:       store,
		SigCache:    cache,
	})
	require.NoError(t, err)

	key := testKey(1)
	addr, err := btcutil.NewAddressPubKeyHash(keyHash(key), params.Params)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return &chainHarness{
		t:         t,
		params:    params,
		store:     store,
		chain:     chain,
		key:       key,
		pkScript:  pkScript,
		cache:     cache,
		coinbases: make(map[int32]*wire.MsgTx),
	}
}

// coinbase returns a coinbase for the block at the provided height paying
// value to the harness key.
func (h *chainHarness) coinbase(height int32, value int64) *wire.MsgTx {
	sigScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(height)).AddInt64(0).Script()
	require.NoError(h.t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&zeroHash,
			wire.MaxPrevOutIndex),
		SignatureScript: sigScript,
		Sequence:        wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, h.pkScript))
	return tx
}

// nextBlockWithCoinbase returns a block extending the tip with the provided
// coinbase and transactions.
func (h *chainHarness) nextBlockWithCoinbase(coinbase *wire.MsgTx,
	txs ...*wire.MsgTx) *btcutil.Block {

	best := h.chain.BestSnapshot()
	version, err := h.chain.CalcNextBlockVersion()
	require.NoError(h.t, err)

	msgBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   version,
			PrevBlock: best.Hash,
			Timestamp: best.Timestamp.Add(time.Second),
			Bits:      h.params.PowLimitBits,
		},
	}
	msgBlock.AddTransaction(coinbase)
	for _, tx := range txs {
		msgBlock.AddTransaction(tx)
	}
	block := btcutil.NewBlock(msgBlock)
	msgBlock.Header.MerkleRoot = btcdchain.CalcMerkleRoot(
		block.Transactions(), false)
	return btcutil.NewBlock(msgBlock)
}

// nextBlock returns a block extending the tip with a full subsidy coinbase
// and the provided transactions.
func (h *chainHarness) nextBlock(txs ...*wire.MsgTx) *btcutil.Block {
	height := h.chain.BestSnapshot().Height + 1
	coinbase := h.coinbase(height, int64(h.params.BaseSubsidy))
	return h.nextBlockWithCoinbase(coinbase, txs...)
}

// accept processes the block and requires it to be connected.
func (h *chainHarness) accept(block *btcutil.Block) {
	h.t.Helper()

	require.NoError(h.t, h.chain.ProcessBlock(block))
	height := h.chain.BestSnapshot().Height
	h.coinbases[height] = block.MsgBlock().Transactions[0]
}

// mineTo extends the chain with empty blocks up to the provided height.
func (h *chainHarness) mineTo(height int32) {
	h.t.Helper()

	for h.chain.BestSnapshot().Height < height {
		h.accept(h.nextBlock())
	}
}

// coinbaseOut returns the outpoint of the coinbase output at the height.
func (h *chainHarness) coinbaseOut(height int32) (wire.OutPoint, int64) {
	tx := h.coinbases[height]
	require.NotNil(h.t, tx, "no coinbase at height %d", height)
	return wire.OutPoint{Hash: tx.TxHash()}, tx.TxOut[0].Value
}

// spendCoinbase returns a transaction spending the coinbase output at the
// height to the provided outputs.
func (h *chainHarness) spendCoinbase(height int32, outs ...*wire.TxOut) *wire.MsgTx {
	h.t.Helper()

	prevOut, _ := h.coinbaseOut(height)
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&prevOut, nil, nil))
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	sigScript, err := txscript.SignatureScript(tx, 0, h.pkScript,
		txscript.SigHashAll, h.key, true)
	require.NoError(h.t, err)
	tx.TxIn[0].SignatureScript = sigScript
	return tx
}
