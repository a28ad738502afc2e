// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stake

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/navcoin/coldstaked/address"
)

// OP_COINSTAKE pushes true when the script is evaluated for an input of a
// coinstake transaction and false otherwise.  It takes the place of the
// reserved OP_UNKNOWN198 opcode.
const OP_COINSTAKE = 0xc6

// ScriptClass is an enumeration for the list of output script types the node
// tracks ownership of.
type ScriptClass byte

// Classes of script payment known about in the blockchain.
const (
	NonStandardTy ScriptClass = iota // None of the recognized forms.
	PubKeyHashTy                     // Pay pubkey hash.
	ColdStakingTy                    // Staking key hash and spending key hash.
)

// scriptClassToName houses the human-readable strings which describe each
// script class.
var scriptClassToName = []string{
	NonStandardTy: "nonstandard",
	PubKeyHashTy:  "pubkeyhash",
	ColdStakingTy: "coldstaking",
}

// String implements the Stringer interface by returning the name of
// the enum script class.  If the enum is invalid then "Invalid" will be
// returned.
func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// coldStakingTemplate is the sequence of opcodes of a cold staking script.
// The two OP_DATA_20 entries carry the staking and the spending key hash in
// that order.
var coldStakingTemplate = [...]byte{
	OP_COINSTAKE,
	txscript.OP_IF,
	txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20,
	txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG,
	txscript.OP_ELSE,
	txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20,
	txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG,
	txscript.OP_ENDIF,
}

// ColdStakingScriptLen is the length of a cold staking script.
const ColdStakingScriptLen = len(coldStakingTemplate) + 2*address.KeyHashSize

// extractColdStakingHashes walks the script with a tokenizer and returns the
// staking and spending key hashes when it matches the cold staking template.
func extractColdStakingHashes(script []byte) ([]byte, []byte, bool) {
	if len(script) != ColdStakingScriptLen {
		return nil, nil, false
	}

	var hashes [][]byte
	i := 0
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if i >= len(coldStakingTemplate) ||
			tokenizer.Opcode() != coldStakingTemplate[i] {

			return nil, nil, false
		}
		if tokenizer.Opcode() == txscript.OP_DATA_20 {
			hashes = append(hashes, tokenizer.Data())
		}
		i++
	}
	if tokenizer.Err() != nil || i != len(coldStakingTemplate) {
		return nil, nil, false
	}
	return hashes[0], hashes[1], true
}

// extractPubKeyHash extracts the public key hash from the passed script if it
// is a standard pay-to-pubkey-hash script.  It will return nil otherwise.
func extractPubKeyHash(script []byte) []byte {
	// A pay-to-pubkey-hash script is of the form:
	//  OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG
	if len(script) == 25 &&
		script[0] == txscript.OP_DUP &&
		script[1] == txscript.OP_HASH160 &&
		script[2] == txscript.OP_DATA_20 &&
		script[23] == txscript.OP_EQUALVERIFY &&
		script[24] == txscript.OP_CHECKSIG {

		return script[3:23]
	}
	return nil
}

// IsColdStakingScript returns whether or not the passed script follows the
// cold staking template with two distinct key hashes.
func IsColdStakingScript(script []byte) bool {
	return GetScriptClass(script) == ColdStakingTy
}

// GetScriptClass returns the class of the script passed.
//
// NonStandardTy will be returned when the script does not parse.
func GetScriptClass(script []byte) ScriptClass {
	if extractPubKeyHash(script) != nil {
		return PubKeyHashTy
	}
	staking, spending, ok := extractColdStakingHashes(script)
	if ok && address.CheckKeyHashPair(staking, spending) == nil {
		return ColdStakingTy
	}
	return NonStandardTy
}

// ExtractPubKeyHash returns the key hash of a pay-to-pubkey-hash script or
// nil when the script is of any other form.
func ExtractPubKeyHash(script []byte) []byte {
	return extractPubKeyHash(script)
}

// ExtractColdStakingKeyHashes returns the staking and the spending key hash
// committed to by a cold staking script.
func ExtractColdStakingKeyHashes(script []byte) (staking, spending []byte, err error) {
	staking, spending, ok := extractColdStakingHashes(script)
	if !ok {
		return nil, nil, ruleError(ErrMalformedScript, "script does "+
			"not follow the cold staking template")
	}
	if err := address.CheckKeyHashPair(staking, spending); err != nil {
		return nil, nil, ruleError(ErrMalformedScript, err.Error())
	}
	return staking, spending, nil
}

// ColdStakingScript returns a script that may be claimed in a coinstake
// transaction by the staking key and in any other transaction by the
// spending key.  It fails under the same rules as cold staking addresses.
func ColdStakingScript(stakingKeyHash, spendingKeyHash []byte) ([]byte, error) {
	if err := address.CheckKeyHashPair(stakingKeyHash, spendingKeyHash); err != nil {
		return nil, err
	}

	return txscript.NewScriptBuilder().
		AddOp(OP_COINSTAKE).
		AddOp(txscript.OP_IF).
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(stakingKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_ELSE).
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(spendingKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_ENDIF).
		Script()
}

// PayToAddrScript creates a new script to pay a transaction output to the
// specified address.  Cold staking addresses produce a cold staking script;
// every other address is handed to txscript.
func PayToAddrScript(addr btcutil.Address) ([]byte, error) {
	if a, ok := addr.(*address.AddressColdStaking); ok {
		return ColdStakingScript(a.StakingKeyHash()[:],
			a.SpendingKeyHash()[:])
	}
	return txscript.PayToAddrScript(addr)
}
