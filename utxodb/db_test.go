// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package utxodb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/stake"
	"github.com/stretchr/testify/require"
)

var (
	stakingHash  = bytes.Repeat([]byte{0x11}, 20)
	spendingHash = bytes.Repeat([]byte{0x22}, 20)
	ownerHash    = bytes.Repeat([]byte{0x33}, 20)
)

func p2pkhScript(t *testing.T, keyHash []byte) []byte {
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).AddData(keyHash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)
	return script
}

func openTestStore(t *testing.T) *Store {
	store, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testBlock returns a block with the provided transactions on top of prev.
func testBlock(prev chainhash.Hash, txs ...*wire.MsgTx) *btcutil.Block {
	msgBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{Version: 1, PrevBlock: prev},
	}
	for _, tx := range txs {
		msgBlock.AddTransaction(tx)
	}
	return btcutil.NewBlock(msgBlock)
}

// fundingTx returns a coinbase style transaction paying to a key hash and to
// a cold staking output.
func fundingTx(t *testing.T) *wire.MsgTx {
	coldScript, err := stake.ColdStakingScript(stakingHash, spendingHash)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			wire.MaxPrevOutIndex),
		SignatureScript: []byte{0x51, 0x51},
	})
	tx.AddTxOut(wire.NewTxOut(5e8, p2pkhScript(t, ownerHash)))
	tx.AddTxOut(wire.NewTxOut(7e8, coldScript))
	tx.AddTxOut(wire.NewTxOut(0, []byte{txscript.OP_RETURN}))
	return tx
}

// TestConnectBlock ensures connected blocks update the set, the index and the
// stored headers.
func TestConnectBlock(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	funding := fundingTx(t)
	block1 := testBlock(chainhash.Hash{}, funding)

	view := blockchain.NewUtxoViewpoint()
	require.NoError(t, view.ConnectTransaction(block1.Transactions()[0], 1))
	require.NoError(t, store.ConnectBlock(block1, 1, view))

	fundingHash := funding.TxHash()
	entry, err := store.FetchUtxoEntry(wire.OutPoint{Hash: fundingHash})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, int64(5e8), entry.Amount())
	require.Equal(t, int32(1), entry.BlockHeight())
	require.True(t, entry.IsCoinBase())
	require.False(t, entry.IsModified())

	coldOut := wire.OutPoint{Hash: fundingHash, Index: 1}
	entry, err = store.FetchUtxoEntry(coldOut)
	require.NoError(t, err)
	require.Equal(t, stake.ColdStakingTy, entry.ScriptClass())

	// Unspendable outputs are never stored.
	entry, err = store.FetchUtxoEntry(wire.OutPoint{Hash: fundingHash,
		Index: 2})
	require.NoError(t, err)
	require.Nil(t, entry)

	// Both keys of the cold staking output find it.
	for _, keyHash := range [][]byte{stakingHash, spendingHash} {
		snap, height, err := store.Snapshot([][]byte{keyHash})
		require.NoError(t, err)
		require.Len(t, snap.Entries(), 1, spew.Sdump(snap.Entries()))
		require.NotNil(t, snap.LookupEntry(coldOut))
		require.Equal(t, *block1.Hash(), *snap.BestHash())
		require.Equal(t, int32(1), height)
	}

	snap, _, err := store.Snapshot([][]byte{ownerHash, stakingHash,
		spendingHash})
	require.NoError(t, err)
	require.Len(t, snap.Entries(), 2)

	// Spend the cold staking output in a second block.
	spend := wire.NewMsgTx(wire.TxVersion)
	spend.AddTxIn(wire.NewTxIn(&coldOut, nil, nil))
	spend.AddTxOut(wire.NewTxOut(6e8, p2pkhScript(t, ownerHash)))
	block2 := testBlock(*block1.Hash(), spend)

	view = blockchain.NewUtxoViewpoint()
	entry, err = store.FetchUtxoEntry(coldOut)
	require.NoError(t, err)
	view.AddEntry(coldOut, entry)
	require.NoError(t, view.ConnectTransaction(btcutil.NewTx(spend), 2))
	require.NoError(t, store.ConnectBlock(block2, 2, view))

	entry, err = store.FetchUtxoEntry(coldOut)
	require.NoError(t, err)
	require.Nil(t, entry)

	snap, _, err = store.Snapshot([][]byte{stakingHash, spendingHash})
	require.NoError(t, err)
	require.Empty(t, snap.Entries())

	snap, _, err = store.Snapshot([][]byte{ownerHash})
	require.NoError(t, err)
	require.Len(t, snap.Entries(), 2)

	headers, err := store.FetchBlockHeaders()
	require.NoError(t, err)
	require.Len(t, headers, 2)
	require.Equal(t, block1.MsgBlock().Header, headers[0])
	require.Equal(t, block2.MsgBlock().Header, headers[1])

	hash, height, err := store.BestBlock()
	require.NoError(t, err)
	require.Equal(t, *block2.Hash(), hash)
	require.Equal(t, int32(2), height)
}

// TestEmptyStore ensures an empty store answers queries without errors.
func TestEmptyStore(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	headers, err := store.FetchBlockHeaders()
	require.NoError(t, err)
	require.Empty(t, headers)

	hash, height, err := store.BestBlock()
	require.NoError(t, err)
	require.Equal(t, chainhash.Hash{}, hash)
	require.Zero(t, height)

	snap, height, err := store.Snapshot([][]byte{ownerHash})
	require.NoError(t, err)
	require.Empty(t, snap.Entries())
	require.Zero(t, height)
	require.Equal(t, chainhash.Hash{}, *snap.BestHash())
}

// TestReopen ensures the contents of an on-disk store survive reopening it.
func TestReopen(t *testing.T) {
	t.Parallel()

	path := t.TempDir()
	store, err := Open(path)
	require.NoError(t, err)

	funding := fundingTx(t)
	block := testBlock(chainhash.Hash{}, funding)
	view := blockchain.NewUtxoViewpoint()
	require.NoError(t, view.ConnectTransaction(block.Transactions()[0], 1))
	require.NoError(t, store.ConnectBlock(block, 1, view))
	require.NoError(t, store.Close())

	_, err = store.FetchUtxoEntry(wire.OutPoint{Hash: funding.TxHash()})
	require.True(t, IsErrorCode(err, ErrDbNotOpen), spew.Sdump(err))

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	entry, err := store.FetchUtxoEntry(wire.OutPoint{Hash: funding.TxHash()})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, int64(5e8), entry.Amount())
}

// TestUtxoEntrySerialization ensures entries keep their flags and fields
// across serialization and that short values are reported as corruption.
func TestUtxoEntrySerialization(t *testing.T) {
	t.Parallel()

	txOut := wire.NewTxOut(123456789, []byte{0x51, 0x52})
	entry := blockchain.NewUtxoEntry(txOut, 77, false, true)
	got, err := deserializeUtxoEntry(serializeUtxoEntry(entry))
	require.NoError(t, err)
	require.Equal(t, entry, got)

	_, err = deserializeUtxoEntry(make([]byte, utxoHeaderSize-1))
	require.True(t, IsErrorCode(err, ErrCorruption))

	_, err = decodeIndexKey([]byte("k"))
	require.True(t, IsErrorCode(err, ErrCorruption))
}

// TestErrorCodeStringer tests the stringized output for the ErrorCode type.
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	require.Len(t, errorCodeStrings, int(numErrorCodes))
	require.Equal(t, "ErrCorruption", ErrCorruption.String())
	require.Equal(t, "Unknown ErrorCode (9)", ErrorCode(9).String())

	err := storeError(ErrDriverSpecific, "open", errors.New("inner"))
	require.Equal(t, "open: inner", err.Error())
}
