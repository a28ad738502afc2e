// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	btcdcfg "github.com/btcsuite/btcd/chaincfg"
	"github.com/navcoin/coldstaked/chaincfg"
)

const (
	// KeyHashSize is the size of a public key hash.
	KeyHashSize = 20

	// payloadSize is the size of the payload of a cold staking address:
	// the staking key hash followed by the spending key hash.
	payloadSize = 2 * KeyHashSize
)

// AddressColdStaking is an address paying to an output that may be staked
// by the owner of one key and spent by the owner of another.
//
// The encoded form is the base58check encoding of the network's cold staking
// version byte followed by the staking key hash and the spending key hash.
type AddressColdStaking struct {
	netID        byte
	stakingHash  [KeyHashSize]byte
	spendingHash [KeyHashSize]byte
}

// Ensure AddressColdStaking implements the btcutil.Address interface.
var _ btcutil.Address = (*AddressColdStaking)(nil)

// NewAddressColdStaking returns a new cold staking address for the provided
// staking and spending key hashes.  Both hashes must be 20 bytes and they must
// differ.
func NewAddressColdStaking(stakingKeyHash, spendingKeyHash []byte,
	params *chaincfg.Params) (*AddressColdStaking, error) {

	return newAddressColdStaking(stakingKeyHash, spendingKeyHash,
		params.ColdStakingAddrID)
}

// CheckKeyHashPair returns an error unless both key hashes are 20 bytes and
// differ from each other.  These are the rules every cold staking address and
// output must satisfy.
func CheckKeyHashPair(stakingKeyHash, spendingKeyHash []byte) error {
	if len(stakingKeyHash) != KeyHashSize {
		str := fmt.Sprintf("staking key hash must be %d bytes, got %d",
			KeyHashSize, len(stakingKeyHash))
		return addressError(ErrInvalidKeyHash, str, nil)
	}
	if len(spendingKeyHash) != KeyHashSize {
		str := fmt.Sprintf("spending key hash must be %d bytes, got %d",
			KeyHashSize, len(spendingKeyHash))
		return addressError(ErrInvalidKeyHash, str, nil)
	}
	if bytes.Equal(stakingKeyHash, spendingKeyHash) {
		return addressError(ErrDuplicateKey, "staking and spending key "+
			"hashes are identical", nil)
	}
	return nil
}

// newAddressColdStaking is the internal API to create a cold staking address
// with a known leading identifier byte.
func newAddressColdStaking(stakingKeyHash, spendingKeyHash []byte,
	netID byte) (*AddressColdStaking, error) {

	if err := CheckKeyHashPair(stakingKeyHash, spendingKeyHash); err != nil {
		return nil, err
	}

	addr := &AddressColdStaking{netID: netID}
	copy(addr.stakingHash[:], stakingKeyHash)
	copy(addr.spendingHash[:], spendingKeyHash)
	return addr, nil
}

// EncodeAddress returns the string encoding of the address.  Part of the
// btcutil.Address interface.
func (a *AddressColdStaking) EncodeAddress() string {
	return base58.CheckEncode(a.ScriptAddress(), a.netID)
}

// ScriptAddress returns the staking key hash followed by the spending key
// hash.  Part of the btcutil.Address interface.
func (a *AddressColdStaking) ScriptAddress() []byte {
	payload := make([]byte, 0, payloadSize)
	payload = append(payload, a.stakingHash[:]...)
	return append(payload, a.spendingHash[:]...)
}

// IsForNet returns whether or not the cold staking address is associated
// with the passed network.  The btcd parameters carry no cold staking
// identifier, so the address is compared against the networks defined in
// chaincfg sharing the same name.
func (a *AddressColdStaking) IsForNet(net *btcdcfg.Params) bool {
	params, err := chaincfg.ParamsForNet(net.Name)
	if err != nil {
		return false
	}
	return a.netID == params.ColdStakingAddrID
}

// IsForColdStakingNet returns whether or not the address is associated with
// the passed network.
func (a *AddressColdStaking) IsForColdStakingNet(params *chaincfg.Params) bool {
	return a.netID == params.ColdStakingAddrID
}

// String returns a human-readable string for the cold staking address.
func (a *AddressColdStaking) String() string {
	return a.EncodeAddress()
}

// StakingKeyHash returns the hash of the key allowed to stake the output.
func (a *AddressColdStaking) StakingKeyHash() *[KeyHashSize]byte {
	return &a.stakingHash
}

// SpendingKeyHash returns the hash of the key allowed to spend the output.
func (a *AddressColdStaking) SpendingKeyHash() *[KeyHashSize]byte {
	return &a.spendingHash
}

// StakingAddress returns the pay-to-pubkey-hash address of the staking key.
func (a *AddressColdStaking) StakingAddress(params *chaincfg.Params) *btcutil.AddressPubKeyHash {
	addr, _ := btcutil.NewAddressPubKeyHash(a.stakingHash[:], params.Params)
	return addr
}

// SpendingAddress returns the pay-to-pubkey-hash address of the spending key.
func (a *AddressColdStaking) SpendingAddress(params *chaincfg.Params) *btcutil.AddressPubKeyHash {
	addr, _ := btcutil.NewAddressPubKeyHash(a.spendingHash[:], params.Params)
	return addr
}

// DecodeColdStakingAddress decodes the string encoding of a cold staking
// address for the provided network.
func DecodeColdStakingAddress(addr string,
	params *chaincfg.Params) (*AddressColdStaking, error) {

	payload, netID, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, addressError(ErrMalformedAddress,
			fmt.Sprintf("decoded address is malformed: %v", err), err)
	}
	if len(payload) != payloadSize {
		str := fmt.Sprintf("decoded address payload is %d bytes, "+
			"want %d", len(payload), payloadSize)
		return nil, addressError(ErrMalformedAddress, str, nil)
	}
	if netID != params.ColdStakingAddrID {
		str := fmt.Sprintf("address version %d is not a cold staking "+
			"address of network %s", netID, params.Name)
		return nil, addressError(ErrMalformedAddress, str, nil)
	}

	a, err := newAddressColdStaking(payload[:KeyHashSize],
		payload[KeyHashSize:], netID)
	if err != nil {
		// A well formed encoding of identical hashes is still not a
		// valid cold staking address.
		return nil, addressError(ErrMalformedAddress, err.Error(), err)
	}
	return a, nil
}

// DecodeKeyHashAddress decodes a pay-to-pubkey-hash address of the provided
// network.  Every other kind of string, cold staking addresses included, is
// rejected with ErrInvalidKeyHash.
func DecodeKeyHashAddress(addr string,
	params *chaincfg.Params) (*btcutil.AddressPubKeyHash, error) {

	payload, netID, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, addressError(ErrInvalidKeyHash,
			fmt.Sprintf("%q is not a key hash address: %v", addr, err),
			err)
	}
	if len(payload) != KeyHashSize || netID != params.PubKeyHashAddrID {
		str := fmt.Sprintf("%q is not a key hash address of network %s",
			addr, params.Name)
		return nil, addressError(ErrInvalidKeyHash, str, nil)
	}
	return btcutil.NewAddressPubKeyHash(payload, params.Params)
}

// NewAddressColdStakingFromAddresses returns the cold staking address made of
// the provided staking and spending pay-to-pubkey-hash addresses.  The error
// descriptions are suitable for display to users.
func NewAddressColdStakingFromAddresses(stakingAddr, spendingAddr string,
	params *chaincfg.Params) (*AddressColdStaking, error) {

	staking, err := DecodeKeyHashAddress(stakingAddr, params)
	if err != nil {
		str := fmt.Sprintf("Staking address is not a valid %s address",
			params.CoinName)
		return nil, addressError(ErrInvalidKeyHash, str, err)
	}
	spending, err := DecodeKeyHashAddress(spendingAddr, params)
	if err != nil {
		str := fmt.Sprintf("Spending address is not a valid %s address",
			params.CoinName)
		return nil, addressError(ErrInvalidKeyHash, str, err)
	}

	a, err := NewAddressColdStaking(staking.ScriptAddress(),
		spending.ScriptAddress(), params)
	if IsErrorCode(err, ErrDuplicateKey) {
		return nil, addressError(ErrDuplicateKey, "The staking address "+
			"should be different to the spending address", err)
	}
	return a, err
}

// DecodeAddress decodes the string encoding of any address the node accepts
// as a payment destination: cold staking, pay-to-pubkey-hash and
// pay-to-script-hash addresses of the provided network.
func DecodeAddress(addr string, params *chaincfg.Params) (btcutil.Address, error) {
	if a, err := DecodeColdStakingAddress(addr, params); err == nil {
		return a, nil
	}

	a, err := btcutil.DecodeAddress(addr, params.Params)
	if err != nil {
		return nil, addressError(ErrMalformedAddress,
			fmt.Sprintf("failed to decode address %q: %v", addr, err),
			err)
	}
	switch a.(type) {
	case *btcutil.AddressPubKeyHash, *btcutil.AddressScriptHash:
	default:
		str := fmt.Sprintf("address %q has an unsupported type", addr)
		return nil, addressError(ErrMalformedAddress, str, nil)
	}
	if !a.IsForNet(params.Params) {
		str := fmt.Sprintf("address %q is not for network %s", addr,
			params.Name)
		return nil, addressError(ErrMalformedAddress, str, nil)
	}
	return a, nil
}
