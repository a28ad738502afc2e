// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// keyPrefix prefixes the key hash of every stored private key.
var keyPrefix = []byte("key")

// KeyStore persists the private keys of a Keyring in a leveldb database.
// Keys are stored WIF encoded under their public key hash.
type KeyStore struct {
	db *leveldb.DB
}

// OpenKeyStore opens the key store at the provided path, creating it when
// needed.
func OpenKeyStore(path string) (*KeyStore, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		Strict: opt.DefaultStrict,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}
	return &KeyStore{db: ldb}, nil
}

// Close closes the key store.
func (s *KeyStore) Close() error {
	return s.db.Close()
}

// put stores the key under its public key hash.
func (s *KeyStore) put(keyHash []byte, wif *btcutil.WIF) error {
	key := append(append([]byte(nil), keyPrefix...), keyHash...)
	return s.db.Put(key, []byte(wif.String()), &opt.WriteOptions{Sync: true})
}

// load returns every stored key.
func (s *KeyStore) load() ([]*btcutil.WIF, error) {
	iter := s.db.NewIterator(util.BytesPrefix(keyPrefix), nil)
	defer iter.Release()

	var wifs []*btcutil.WIF
	for iter.Next() {
		wif, err := btcutil.DecodeWIF(string(iter.Value()))
		if err != nil {
			return nil, fmt.Errorf("corrupt key under %x: %w",
				iter.Key(), err)
		}
		wifs = append(wifs, wif)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return wifs, nil
}
