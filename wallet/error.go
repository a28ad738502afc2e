// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// InsufficientFunds represents an error where there are not enough
// funds from unspent tx outputs for a wallet to create a transaction.
// Outputs the wallet may only stake, but not spend, never count as funds.
type InsufficientFunds struct {
	in, out, fee btcutil.Amount
}

// Error satisifies the builtin error interface.
func (e InsufficientFunds) Error() string {
	total := e.out + e.fee
	if e.fee == 0 {
		return fmt.Sprintf("insufficient funds: transaction requires "+
			"%s input but only %v spendable", total, e.in)
	}
	return fmt.Sprintf("insufficient funds: transaction requires %s input "+
		"(%v output + %v fee) but only %v spendable", total, e.out,
		e.fee, e.in)
}

var (
	// ErrNonPositiveAmount represents an error where an amount is not
	// positive (either negative, or zero).
	ErrNonPositiveAmount = errors.New("amount is not positive")

	// ErrWrongNet describes an error where a private key was encoded for
	// another network.
	ErrWrongNet = errors.New("private key is for the wrong network")

	// ErrNoStakeableOutput describes an error where no output of the wallet
	// is eligible for staking.
	ErrNoStakeableOutput = errors.New("no output is eligible for staking")
)
