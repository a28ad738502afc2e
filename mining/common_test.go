// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/address"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
	"github.com/navcoin/coldstaked/utxodb"
	"github.com/navcoin/coldstaked/wallet"
	"github.com/stretchr/testify/require"
)

// testNode is a regression test node: a chain backed by an in memory store,
// a transaction pool, a block generator and a funding wallet the generated
// coinbases pay to.
type testNode struct {
	t      *testing.T
	params *chaincfg.Params
	store  *utxodb.Store
	chain  *blockchain.BlockChain
	pool   *TxPool
	gen    *Generator

	// funder is the wallet every coinbase pays to.
	funder     *wallet.Wallet
	miningAddr *btcutil.AddressPubKeyHash
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	params := &chaincfg.RegressionNetParams
	store, err := utxodb.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cache := stake.NewSigCache(1000)
	chain, err := blockchain.New(&blockchain.Config{
		ChainParams: params,
		Store:       store,
		SigCache:    cache,
	})
	require.NoError(t, err)

	pool := NewTxPool(&TxPoolConfig{Chain: chain, SigCache: cache})
	chain.Subscribe(pool.HandleChainNotification)

	keys, err := wallet.NewKeyring(params, nil)
	require.NoError(t, err)
	miningAddr, err := keys.NewAddress()
	require.NoError(t, err)

	n := &testNode{
		t:          t,
		params:     params,
		store:      store,
		chain:      chain,
		pool:       pool,
		miningAddr: miningAddr,
	}
	n.funder = n.newWallet(keys)
	n.gen = NewGenerator(&GeneratorConfig{
		ChainParams: params,
		Chain:       chain,
		TxSource:    pool,
		MiningAddrs: []btcutil.Address{miningAddr},
	})
	return n
}

// newWallet returns a wallet of the node holding the provided keys.
func (n *testNode) newWallet(keys *wallet.Keyring) *wallet.Wallet {
	return wallet.New(&wallet.Config{
		ChainParams: n.params,
		Keys:        keys,
		Utxos:       n.store,
		Pool:        n.pool,
	})
}

// height returns the height of the tip.
func (n *testNode) height() int32 {
	return n.chain.BestSnapshot().Height
}

// generateTo generates blocks until the tip reaches the height.
func (n *testNode) generateTo(height int32) {
	n.t.Helper()

	if cur := n.height(); cur < height {
		_, err := n.gen.GenerateNBlocks(uint32(height - cur))
		require.NoError(n.t, err)
	}
	require.Equal(n.t, height, n.height())
}

// thresholdState returns the cold staking state for the next block.
func (n *testNode) thresholdState() blockchain.ThresholdState {
	state, err := n.chain.ThresholdState(chaincfg.DeploymentColdStaking)
	require.NoError(n.t, err)
	return state
}

// testKey returns a deterministic private key derived from the seed byte.
func testKey(seed byte) *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return key
}

func keyHash(key *btcec.PrivateKey) []byte {
	return btcutil.Hash160(key.PubKey().SerializeCompressed())
}

// importKey imports the private key into the keyring.
func importKey(t *testing.T, keys *wallet.Keyring, key *btcec.PrivateKey) {
	t.Helper()

	wif, err := btcutil.NewWIF(key, chaincfg.RegressionNetParams.Params, true)
	require.NoError(t, err)
	_, err = keys.ImportWIF(wif)
	require.NoError(t, err)
}

// coldAddress returns the cold staking address of the two keys.
func coldAddress(t *testing.T, staking, spending *btcec.PrivateKey) *address.AddressColdStaking {
	t.Helper()

	addr, err := address.NewAddressColdStaking(keyHash(staking),
		keyHash(spending), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	return addr
}

// findOutput returns the outpoint of the first output of the transaction
// paying to the script.
func findOutput(t *testing.T, tx *btcutil.Tx, pkScript []byte) (wire.OutPoint, int64) {
	t.Helper()

	for i, txOut := range tx.MsgTx().TxOut {
		if bytes.Equal(txOut.PkScript, pkScript) {
			return wire.OutPoint{Hash: *tx.Hash(), Index: uint32(i)},
				txOut.Value
		}
	}
	t.Fatalf("transaction %v does not pay to %x", tx.Hash(), pkScript)
	return wire.OutPoint{}, 0
}

// p2pkhScript returns the pay-to-pubkey-hash script of the key.
func p2pkhScript(t *testing.T, key *btcec.PrivateKey) []byte {
	t.Helper()

	addr, err := btcutil.NewAddressPubKeyHash(keyHash(key),
		chaincfg.RegressionNetParams.Params)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}
