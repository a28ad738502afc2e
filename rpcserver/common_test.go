// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/mining"
	"github.com/navcoin/coldstaked/stake"
	"github.com/navcoin/coldstaked/utxodb"
	"github.com/navcoin/coldstaked/wallet"
	"github.com/stretchr/testify/require"
)

const (
	testUser = "user"
	testPass = "pass"
)

// testHarness is a regression test node answering RPC requests through an
// HTTP test server.
type testHarness struct {
	t      *testing.T
	params *chaincfg.Params
	store  *utxodb.Store
	chain  *blockchain.BlockChain
	pool   *mining.TxPool
	gen    *mining.Generator
	wallet *wallet.Wallet
	server *Server
	http   *httptest.Server
}

func newTestHarness(t *testing.T) *testHarness {
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

	pool := mining.NewTxPool(&mining.TxPoolConfig{
		Chain:    chain,
		SigCache: cache,
	})
	chain.Subscribe(pool.HandleChainNotification)

	h := &testHarness{
		t:      t,
		params: params,
		store:  store,
		chain:  chain,
		pool:   pool,
	}
	keys, err := wallet.NewKeyring(params, nil)
	require.NoError(t, err)
	miningAddr, err := keys.NewAddress()
	require.NoError(t, err)
	h.wallet = h.newWallet(keys)
	h.gen = mining.NewGenerator(&mining.GeneratorConfig{
		ChainParams: params,
		Chain:       chain,
		TxSource:    pool,
		MiningAddrs: []btcutil.Address{miningAddr},
	})
	h.server, h.http = h.newServer(h.wallet, nil)
	return h
}

// newWallet returns a wallet of the node holding the provided keys.
func (h *testHarness) newWallet(keys *wallet.Keyring) *wallet.Wallet {
	return wallet.New(&wallet.Config{
		ChainParams: h.params,
		Keys:        keys,
		Utxos:       h.store,
		Pool:        h.pool,
	})
}

// newServer returns an RPC server of the node serving the wallet.
func (h *testHarness) newServer(w *wallet.Wallet,
	staker *mining.Staker) (*Server, *httptest.Server) {

	s := New(&Config{
		Username:    testUser,
		Password:    testPass,
		ChainParams: h.params,
		Chain:       h.chain,
		Generator:   h.gen,
		Wallet:      w,
		Staker:      staker,
	})
	ts := httptest.NewServer(s.Handler())
	h.t.Cleanup(ts.Close)
	return s, ts
}

// post sends the raw body with the provided credentials.
func post(t *testing.T, ts *httptest.Server, body []byte,
	user, pass string) *http.Response {

	t.Helper()

	req, err := http.NewRequest("POST", ts.URL, bytes.NewReader(body))
	require.NoError(t, err)
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// callServer issues the command to the server and returns the raw result or
// the RPC error.
func callServer(t *testing.T, ts *httptest.Server, method string,
	params ...interface{}) (json.RawMessage, *btcjson.RPCError) {

	t.Helper()

	if params == nil {
		params = []interface{}{}
	}
	req, err := btcjson.NewRequest(btcjson.RpcVersion1, 1, method, params)
	require.NoError(t, err)
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp := post(t, ts, body, testUser, testPass)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply btcjson.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	if reply.Error != nil {
		return nil, reply.Error
	}
	return reply.Result, nil
}

// call issues the command to the harness server and decodes the result into
// result, failing the test on an RPC error.
func (h *testHarness) call(result interface{}, method string,
	params ...interface{}) {

	h.t.Helper()

	raw, rpcErr := callServer(h.t, h.http, method, params...)
	require.Nil(h.t, rpcErr, "%s failed: %v", method, rpcErr)
	if result != nil {
		require.NoError(h.t, json.Unmarshal(raw, result))
	}
}

// callErr issues the command to the harness server and returns the RPC error
// it must fail with.
func (h *testHarness) callErr(method string, params ...interface{}) *btcjson.RPCError {
	h.t.Helper()

	_, rpcErr := callServer(h.t, h.http, method, params...)
	require.NotNil(h.t, rpcErr, "%s unexpectedly succeeded", method)
	return rpcErr
}

// generate mines blocks through the generate command.
func (h *testHarness) generate(n uint32) []string {
	h.t.Helper()

	var hashes []string
	h.call(&hashes, "generate", n)
	require.Len(h.t, hashes, int(n))
	return hashes
}

// testKey returns a deterministic private key derived from the seed byte.
func testKey(seed byte) *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return key
}

// keyAddress returns the pay-to-pubkey-hash address of the key.
func keyAddress(t *testing.T, key *btcec.PrivateKey) string {
	t.Helper()

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()),
		chaincfg.RegressionNetParams.Params)
	require.NoError(t, err)
	return addr.EncodeAddress()
}
