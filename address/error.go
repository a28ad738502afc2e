// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of address error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidKeyHash indicates a component of a cold staking address is
	// not a well formed public key hash of the active network.  This
	// includes component strings that are themselves cold staking
	// addresses.
	ErrInvalidKeyHash ErrorCode = iota

	// ErrDuplicateKey indicates the staking and spending key hashes of a
	// cold staking address are identical.
	ErrDuplicateKey

	// ErrMalformedAddress indicates an encoded address failed the checksum,
	// has the wrong length or carries an unexpected version byte.
	ErrMalformedAddress

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidKeyHash:   "ErrInvalidKeyHash",
	ErrDuplicateKey:     "ErrDuplicateKey",
	ErrMalformedAddress: "ErrMalformedAddress",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies an address encoding or decoding failure.  The description
// is meant to be shown to users verbatim.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying decoding error, if any
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying decoding error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// addressError creates an Error given a set of arguments.
func addressError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether err is an Error, or wraps one, with the provided
// error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == c
}
