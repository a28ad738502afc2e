// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"fmt"
)

// DeploymentError identifies an error that indicates a deployment ID was
// specified that does not exist.
type DeploymentError uint32

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e DeploymentError) Error() string {
	return fmt.Sprintf("deployment ID %d does not exist", uint32(e))
}

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrFeatureNotActive indicates a transaction creates a cold staking
	// output before the cold staking deployment is active.  The output is
	// well formed, it is just not allowed yet.
	ErrFeatureNotActive ErrorCode = iota

	// ErrBadTransaction indicates a transaction failed the context free
	// sanity checks.
	ErrBadTransaction

	// ErrMissingTxOut indicates a transaction output referenced by an input
	// either does not exist or has already been spent.
	ErrMissingTxOut

	// ErrImmatureSpend indicates a transaction is attempting to spend a
	// coinbase or coinstake output that has not yet reached the required
	// maturity.
	ErrImmatureSpend

	// ErrImmatureStake indicates a coinstake claims an output that is not
	// buried deep enough to be staked.
	ErrImmatureStake

	// ErrSpendTooHigh indicates a transaction is attempting to spend more
	// value than the sum of all of its inputs, or a coinstake mints more
	// than the stake reward.
	ErrSpendTooHigh

	// ErrBadTxOutValue indicates an output value for a transaction is
	// invalid in some way such as being out of range.
	ErrBadTxOutValue

	// ErrScriptValidation indicates the result of executing the signature
	// script of an input against the script of the output it spends failed.
	ErrScriptValidation

	// ErrAuthorization indicates an input claiming a cold staking output
	// satisfies neither of its branches.  The wrapped stake.RuleError
	// carries the precise reason.
	ErrAuthorization

	// ErrNoTransactions indicates the block does not have at least one
	// transaction.  A valid block must have at least the coinbase
	// transaction.
	ErrNoTransactions

	// ErrFirstTxNotCoinbase indicates the first transaction in a block
	// is not a coinbase transaction.
	ErrFirstTxNotCoinbase

	// ErrMultipleCoinbases indicates a block contains more than one
	// coinbase transaction.
	ErrMultipleCoinbases

	// ErrBadCoinbaseValue indicates the amount of a coinbase value does
	// not match the expected value of the subsidy plus the sum of all fees.
	ErrBadCoinbaseValue

	// ErrBadCoinStake indicates a coinstake transaction appears anywhere
	// but directly after the coinbase.
	ErrBadCoinStake

	// ErrDuplicateTx indicates a block contains an identical transaction
	// (or at least two transactions which hash to the same value).
	ErrDuplicateTx

	// ErrBadMerkleRoot indicates the calculated merkle root does not match
	// the expected value.
	ErrBadMerkleRoot

	// ErrPrevBlockNotBest indicates that the block's previous block is not
	// the current chain tip.
	ErrPrevBlockNotBest

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrFeatureNotActive:   "ErrFeatureNotActive",
	ErrBadTransaction:     "ErrBadTransaction",
	ErrMissingTxOut:       "ErrMissingTxOut",
	ErrImmatureSpend:      "ErrImmatureSpend",
	ErrImmatureStake:      "ErrImmatureStake",
	ErrSpendTooHigh:       "ErrSpendTooHigh",
	ErrBadTxOutValue:      "ErrBadTxOutValue",
	ErrScriptValidation:   "ErrScriptValidation",
	ErrAuthorization:      "ErrAuthorization",
	ErrNoTransactions:     "ErrNoTransactions",
	ErrFirstTxNotCoinbase: "ErrFirstTxNotCoinbase",
	ErrMultipleCoinbases:  "ErrMultipleCoinbases",
	ErrBadCoinbaseValue:   "ErrBadCoinbaseValue",
	ErrBadCoinStake:       "ErrBadCoinStake",
	ErrDuplicateTx:        "ErrDuplicateTx",
	ErrBadMerkleRoot:      "ErrBadMerkleRoot",
	ErrPrevBlockNotBest:   "ErrPrevBlockNotBest",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a block or transaction failed due to one of the many validation
// rules.  The caller can use type assertions to determine if a failure was
// specifically due to a rule violation and access the ErrorCode field to
// ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error, if any
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates an RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether err is a RuleError, or wraps one, with the
// provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var e RuleError
	return errors.As(err, &e) && e.ErrorCode == c
}
