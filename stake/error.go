// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stake

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of cold staking rule violation.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrStakeCustodyViolation indicates the staking key claimed a cold
	// staking output without returning its value to an output with the
	// same staking and spending key hashes, or claimed it outside of a
	// coinstake transaction.
	ErrStakeCustodyViolation ErrorCode = iota

	// ErrInsufficientAuthorization indicates no signature of either key of
	// a cold staking output validates, or the spending key signed a
	// coinstake transaction.
	ErrInsufficientAuthorization

	// ErrMalformedScript indicates a script that was expected to follow
	// the cold staking template does not.
	ErrMalformedScript

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrStakeCustodyViolation:     "ErrStakeCustodyViolation",
	ErrInsufficientAuthorization: "ErrInsufficientAuthorization",
	ErrMalformedScript:           "ErrMalformedScript",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a transaction failed due to one of the many cold staking
// rules.  The caller can use type assertions or IsErrorCode to determine the
// specific reason for the failure.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
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
