// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stake

import (
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// zeroHash is the zero value for a chainhash.Hash and is defined as
// a package level variable to avoid the need to create a new instance
// every time a check is needed.
var zeroHash chainhash.Hash

// IsCoinBaseTx determines whether or not a transaction is a coinbase.  A
// coinbase is a special transaction created by miners that has no inputs.
// This is represented in the block chain by a transaction with a single input
// that has a previous output transaction index set to the maximum value along
// with a zero hash.
func IsCoinBaseTx(msgTx *wire.MsgTx) bool {
	// A coin base must only have one transaction input.
	if len(msgTx.TxIn) != 1 {
		return false
	}

	// The previous output of a coin base must have a max value index and
	// a zero hash.
	prevOut := &msgTx.TxIn[0].PreviousOutPoint
	if prevOut.Index != math.MaxUint32 || prevOut.Hash != zeroHash {
		return false
	}

	return true
}

// IsCoinStake determines whether or not a transaction is a coinstake.  A
// coinstake claims existing outputs to produce a block: it is not a coinbase,
// it has at least one input and at least two outputs, and its first output
// is empty, carrying neither value nor script.
func IsCoinStake(msgTx *wire.MsgTx) bool {
	if IsCoinBaseTx(msgTx) {
		return false
	}
	if len(msgTx.TxIn) < 1 || len(msgTx.TxOut) < 2 {
		return false
	}

	marker := msgTx.TxOut[0]
	return marker.Value == 0 && len(marker.PkScript) == 0
}
