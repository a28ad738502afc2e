// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/navcoin/coldstaked/address"
	"github.com/navcoin/coldstaked/chaincfg"
)

// KeyOwner reports whether the private key of a public key hash is held.
type KeyOwner interface {
	HaveKey(keyHash []byte) bool
}

// Keyring holds the private keys of a wallet indexed by public key hash.
//
// It is safe for concurrent access.
type Keyring struct {
	params *chaincfg.Params
	store  *KeyStore

	mtx    sync.RWMutex
	keys   map[[address.KeyHashSize]byte]*btcutil.WIF
	hashes [][]byte
}

// Ensure Keyring implements the KeyOwner interface.
var _ KeyOwner = (*Keyring)(nil)

// NewKeyring returns a keyring for the network.  When store is not nil the
// keys it holds are loaded and every new key is persisted to it.
func NewKeyring(params *chaincfg.Params, store *KeyStore) (*Keyring, error) {
	k := &Keyring{
		params: params,
		store:  store,
		keys:   make(map[[address.KeyHashSize]byte]*btcutil.WIF),
	}
	if store == nil {
		return k, nil
	}

	wifs, err := store.load()
	if err != nil {
		return nil, err
	}
	for _, wif := range wifs {
		k.add(wif)
	}
	log.Infof("Loaded %d keys", len(wifs))
	return k, nil
}

// add inserts the key and returns its public key hash.  It returns false when
// the key was already held.
//
// This function MUST be called with the keyring lock held (for writes).
func (k *Keyring) add(wif *btcutil.WIF) ([]byte, bool) {
	keyHash := btcutil.Hash160(wif.SerializePubKey())
	var id [address.KeyHashSize]byte
	copy(id[:], keyHash)
	if _, ok := k.keys[id]; ok {
		return keyHash, false
	}
	k.keys[id] = wif
	k.hashes = append(k.hashes, keyHash)
	return keyHash, true
}

// ImportWIF adds the private key to the keyring and returns the pay-to-pubkey-
// hash address it controls.  Importing a held key again is not an error.
func (k *Keyring) ImportWIF(wif *btcutil.WIF) (*btcutil.AddressPubKeyHash, error) {
	if !wif.IsForNet(k.params.Params) {
		return nil, ErrWrongNet
	}

	k.mtx.Lock()
	keyHash, added := k.add(wif)
	k.mtx.Unlock()

	if added && k.store != nil {
		if err := k.store.put(keyHash, wif); err != nil {
			return nil, err
		}
	}
	return btcutil.NewAddressPubKeyHash(keyHash, k.params.Params)
}

// ImportPrivKey decodes the WIF encoded private key and adds it to the
// keyring.
func (k *Keyring) ImportPrivKey(encoded string) (*btcutil.AddressPubKeyHash, error) {
	wif, err := btcutil.DecodeWIF(encoded)
	if err != nil {
		return nil, err
	}
	return k.ImportWIF(wif)
}

// NewAddress generates a new key and returns its pay-to-pubkey-hash address.
func (k *Keyring) NewAddress() (*btcutil.AddressPubKeyHash, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	wif, err := btcutil.NewWIF(privKey, k.params.Params, true)
	if err != nil {
		return nil, err
	}
	return k.ImportWIF(wif)
}

// HaveKey returns whether the private key of the public key hash is held.
func (k *Keyring) HaveKey(keyHash []byte) bool {
	_, ok := k.Key(keyHash)
	return ok
}

// Key returns the private key of the public key hash.
func (k *Keyring) Key(keyHash []byte) (*btcutil.WIF, bool) {
	if len(keyHash) != address.KeyHashSize {
		return nil, false
	}
	var id [address.KeyHashSize]byte
	copy(id[:], keyHash)

	k.mtx.RLock()
	wif, ok := k.keys[id]
	k.mtx.RUnlock()
	return wif, ok
}

// KeyHashes returns the public key hashes of all held keys in the order they
// were added.
func (k *Keyring) KeyHashes() [][]byte {
	k.mtx.RLock()
	hashes := make([][]byte, len(k.hashes))
	copy(hashes, k.hashes)
	k.mtx.RUnlock()
	return hashes
}
