// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package address implements the cold staking address format.

A cold staking address commits to two public key hashes: the hash of the key
allowed to stake the funds and the hash of the key allowed to spend them.  It
is encoded as base58check with a network specific version byte:

	version (1) || staking key hash (20) || spending key hash (20) || checksum (4)

Both component hashes must come from pay-to-pubkey-hash addresses of the same
network and they must differ, so an address can never stake and spend with
the same key and a cold staking address can never be nested inside another.
*/
package address
