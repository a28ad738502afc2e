// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stake

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Verdict is the outcome of authorizing an input that claims a cold staking
// output.
type Verdict byte

const (
	// VerdictRejected means neither branch of the output is satisfied.
	VerdictRejected Verdict = iota

	// VerdictSpend means the spending key signed a regular transaction.
	// The funds may move to any destination.
	VerdictSpend

	// VerdictStake means the staking key signed a coinstake that keeps the
	// funds in the custody of the same pair of keys.
	VerdictStake
)

var verdictStrings = [...]string{
	VerdictRejected: "rejected",
	VerdictSpend:    "spend",
	VerdictStake:    "stake",
}

// String returns the Verdict as a human-readable name.
func (v Verdict) String() string {
	if int(v) >= len(verdictStrings) {
		return fmt.Sprintf("Unknown Verdict (%d)", byte(v))
	}
	return verdictStrings[v]
}

// parseSigScript splits a cold staking signature script into the signature
// with its hash type and the serialized public key.
func parseSigScript(sigScript []byte) ([]byte, txscript.SigHashType, []byte, error) {
	if !txscript.IsPushOnlyScript(sigScript) {
		return nil, 0, nil, ruleError(ErrInsufficientAuthorization,
			"signature script is not push only")
	}
	pushes, err := txscript.PushedData(sigScript)
	if err != nil || len(pushes) != 2 {
		return nil, 0, nil, ruleError(ErrInsufficientAuthorization,
			"signature script must push a signature and a public key")
	}

	sig, pubKey := pushes[0], pushes[1]
	if len(sig) == 0 {
		return nil, 0, nil, ruleError(ErrInsufficientAuthorization,
			"empty signature")
	}
	hashType := txscript.SigHashType(sig[len(sig)-1])
	switch hashType &^ txscript.SigHashAnyOneCanPay {
	case txscript.SigHashAll, txscript.SigHashNone, txscript.SigHashSingle:
	default:
		str := fmt.Sprintf("invalid hash type 0x%x", uint32(hashType))
		return nil, 0, nil, ruleError(ErrInsufficientAuthorization, str)
	}
	return sig[:len(sig)-1], hashType, pubKey, nil
}

// verifySignature returns whether sig is a valid signature of pubKey over the
// signature hash of input idx of tx.
func verifySignature(pkScript []byte, tx *wire.MsgTx, idx int,
	hashType txscript.SigHashType, sig, pubKey []byte, sigCache *SigCache) bool {

	sigHash, err := txscript.CalcSignatureHash(pkScript, hashType, tx, idx)
	if err != nil {
		return false
	}
	if sigCache.Exists(sigHash, sig, pubKey) {
		return true
	}

	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	signature, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	if !signature.Verify(sigHash, key) {
		return false
	}

	sigCache.Add(sigHash, sig, pubKey)
	return true
}

// claimedValue returns the total value of the inputs of tx claiming an output
// paying to pkScript.  Every input must have its previous output available.
func claimedValue(prevOuts txscript.PrevOutputFetcher, tx *wire.MsgTx,
	pkScript []byte) (int64, error) {

	var claimed int64
	for i, txIn := range tx.TxIn {
		prevOut := prevOuts.FetchPrevOutput(txIn.PreviousOutPoint)
		if prevOut == nil {
			str := fmt.Sprintf("missing previous output %v of input %d",
				txIn.PreviousOutPoint, i)
			return 0, ruleError(ErrInsufficientAuthorization, str)
		}
		if bytes.Equal(prevOut.PkScript, pkScript) {
			claimed += prevOut.Value
		}
	}
	return claimed, nil
}

// custodyKept returns whether the outputs of tx paying to the cold staking
// script carry at least the claimed value.
func custodyKept(tx *wire.MsgTx, pkScript []byte, claimed int64) bool {
	var kept int64
	for _, txOut := range tx.TxOut {
		if bytes.Equal(txOut.PkScript, pkScript) {
			kept += txOut.Value
		}
	}
	return kept > 0 && kept >= claimed
}

// Authorize decides which branch of the cold staking output claimed by input
// idx of tx, if any, is satisfied.  The previous outputs of every input of tx
// are looked up through prevOuts.
//
// The spending key may claim the output in any transaction other than a
// coinstake.  The staking key may only claim it in a coinstake whose outputs
// paying to the very same cold staking script carry at least the total value
// of all the inputs claiming that script.  A staking key signature anywhere
// else is an ErrStakeCustodyViolation; every other failure is an
// ErrInsufficientAuthorization.
//
// The verdict only depends on the previous outputs and tx.  The optional
// signature cache only skips the verification of signatures already found
// valid.
func Authorize(prevOuts txscript.PrevOutputFetcher, tx *wire.MsgTx, idx int,
	sigCache *SigCache) (Verdict, error) {

	if idx < 0 || idx >= len(tx.TxIn) {
		str := fmt.Sprintf("input index %d out of range for a "+
			"transaction with %d inputs", idx, len(tx.TxIn))
		return VerdictRejected, ruleError(ErrInsufficientAuthorization, str)
	}
	prevOut := prevOuts.FetchPrevOutput(tx.TxIn[idx].PreviousOutPoint)
	if prevOut == nil {
		str := fmt.Sprintf("missing previous output %v of input %d",
			tx.TxIn[idx].PreviousOutPoint, idx)
		return VerdictRejected, ruleError(ErrInsufficientAuthorization, str)
	}
	out, err := ParseColdStakingOutput(prevOut)
	if err != nil {
		return VerdictRejected, err
	}

	sig, hashType, pubKey, err := parseSigScript(tx.TxIn[idx].SignatureScript)
	if err != nil {
		return VerdictRejected, err
	}

	keyHash := btcutil.Hash160(pubKey)
	isStaking := bytes.Equal(keyHash, out.StakingKeyHash[:])
	isSpending := bytes.Equal(keyHash, out.SpendingKeyHash[:])
	if !isStaking && !isSpending {
		return VerdictRejected, ruleError(ErrInsufficientAuthorization,
			"public key matches neither the staking nor the "+
				"spending key")
	}

	if !verifySignature(prevOut.PkScript, tx, idx, hashType, sig, pubKey,
		sigCache) {

		return VerdictRejected, ruleError(ErrInsufficientAuthorization,
			"signature verification failed")
	}

	coinStake := IsCoinStake(tx)
	switch {
	case isSpending && !coinStake:
		return VerdictSpend, nil

	case isSpending:
		return VerdictRejected, ruleError(ErrInsufficientAuthorization,
			"the spending key can not claim a cold staking output "+
				"in a coinstake")

	case !coinStake:
		return VerdictRejected, ruleError(ErrStakeCustodyViolation,
			"the staking key can only claim a cold staking output "+
				"in a coinstake")
	}

	claimed, err := claimedValue(prevOuts, tx, prevOut.PkScript)
	if err != nil {
		return VerdictRejected, err
	}
	if !custodyKept(tx, prevOut.PkScript, claimed) {
		str := fmt.Sprintf("coinstake %v does not return %v to the "+
			"cold staking script of input %d", tx.TxHash(),
			btcutil.Amount(claimed), idx)
		return VerdictRejected, ruleError(ErrStakeCustodyViolation, str)
	}

	log.Tracef("Input %d of coinstake %v staked %v", idx, tx.TxHash(),
		btcutil.Amount(prevOut.Value))
	return VerdictStake, nil
}

// SignColdStakingInput returns the signature script claiming the cold
// staking output pkScript with input idx of tx.  The key must be either the
// staking or the spending key of the output, serialized compressed when
// compress is set.
func SignColdStakingInput(tx *wire.MsgTx, idx int, pkScript []byte,
	hashType txscript.SigHashType, key *btcec.PrivateKey,
	compress bool) ([]byte, error) {

	staking, spending, err := ExtractColdStakingKeyHashes(pkScript)
	if err != nil {
		return nil, err
	}
	var pubKey []byte
	if compress {
		pubKey = key.PubKey().SerializeCompressed()
	} else {
		pubKey = key.PubKey().SerializeUncompressed()
	}
	keyHash := btcutil.Hash160(pubKey)
	if !bytes.Equal(keyHash, staking) && !bytes.Equal(keyHash, spending) {
		return nil, ruleError(ErrInsufficientAuthorization, "key is "+
			"neither the staking nor the spending key of the output")
	}

	return txscript.SignatureScript(tx, idx, pkScript, hashType, key,
		compress)
}
