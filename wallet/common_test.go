// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
	"github.com/stretchr/testify/require"
)

var testParams = &chaincfg.RegressionNetParams

// testKey returns a deterministic private key derived from the seed byte.
func testKey(seed byte) *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return key
}

func keyHash(key *btcec.PrivateKey) []byte {
	return btcutil.Hash160(key.PubKey().SerializeCompressed())
}

func p2pkhScript(t *testing.T, key *btcec.PrivateKey) []byte {
	t.Helper()

	addr, err := btcutil.NewAddressPubKeyHash(keyHash(key), testParams.Params)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

func coldScript(t *testing.T, staking, spending *btcec.PrivateKey) []byte {
	t.Helper()

	script, err := stake.ColdStakingScript(keyHash(staking), keyHash(spending))
	require.NoError(t, err)
	return script
}

// keySet is a KeyOwner holding a fixed set of keys.
type keySet map[string]struct{}

func newKeySet(keys ...*btcec.PrivateKey) keySet {
	set := make(keySet)
	for _, key := range keys {
		set[string(keyHash(key))] = struct{}{}
	}
	return set
}

func (s keySet) HaveKey(keyHash []byte) bool {
	_, ok := s[string(keyHash)]
	return ok
}

// newKeyring returns a keyring holding the provided keys.
func newKeyring(t *testing.T, keys ...*btcec.PrivateKey) *Keyring {
	t.Helper()

	keyring, err := NewKeyring(testParams, nil)
	require.NoError(t, err)
	for _, key := range keys {
		wif, err := btcutil.NewWIF(key, testParams.Params, true)
		require.NoError(t, err)
		_, err = keyring.ImportWIF(wif)
		require.NoError(t, err)
	}
	return keyring
}

// utxoFixture describes an output of a fake utxo source.
type utxoFixture struct {
	pkScript  []byte
	value     int64
	height    int32
	coinBase  bool
	coinStake bool
	spent     bool
}

// fakeSource is a UtxoSource serving a fixed set of outputs at a fixed tip
// height.  Every snapshot is a fresh copy.
type fakeSource struct {
	mtx    sync.Mutex
	view   *blockchain.UtxoViewpoint
	height int32

	// beforeSnapshot runs at the start of every snapshot when set.
	beforeSnapshot func()
}

func newFakeSource(height int32, fixtures ...utxoFixture) *fakeSource {
	view := blockchain.NewUtxoViewpoint()
	for i, f := range fixtures {
		entry := blockchain.NewUtxoEntry(wire.NewTxOut(f.value, f.pkScript),
			f.height, f.coinBase, f.coinStake)
		if f.spent {
			entry.Spend()
		}
		view.AddEntry(fixtureOutPoint(i), entry)
	}
	return &fakeSource{view: view, height: height}
}

// fixtureOutPoint returns the outpoint of the fixture at the index.
func fixtureOutPoint(i int) wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.Hash{byte(i + 1)}}
}

func (s *fakeSource) Snapshot(keyHashes [][]byte) (*blockchain.UtxoViewpoint, int32, error) {
	if s.beforeSnapshot != nil {
		s.beforeSnapshot()
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.view.Clone(), s.height, nil
}

// connect applies the transactions as a block at the next height.
func (s *fakeSource) connect(txs ...*btcutil.Tx) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.height++
	entries := s.view.Entries()
	for _, tx := range txs {
		for _, txIn := range tx.MsgTx().TxIn {
			delete(entries, txIn.PreviousOutPoint)
		}
		s.view.AddTxOuts(tx, s.height)
	}
}

func (s *fakeSource) setHeight(height int32) {
	s.mtx.Lock()
	s.height = height
	s.mtx.Unlock()
}

// fakePool is a TxPool accepting every transaction.
type fakePool struct {
	mtx sync.Mutex
	txs []*btcutil.Tx
	err error
}

func (p *fakePool) ProcessTransaction(tx *btcutil.Tx) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.err != nil {
		return p.err
	}
	p.txs = append(p.txs, tx)
	return nil
}

func (p *fakePool) PendingTransactions() []*btcutil.Tx {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return append([]*btcutil.Tx(nil), p.txs...)
}

// newTestWallet returns a wallet holding the keys on top of the source.
func newTestWallet(t *testing.T, source *fakeSource,
	keys ...*btcec.PrivateKey) (*Wallet, *fakePool) {

	pool := &fakePool{}
	w := New(&Config{
		ChainParams: testParams,
		Keys:        newKeyring(t, keys...),
		Utxos:       source,
		Pool:        pool,
	})
	return w, pool
}
