// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package sampleconfig provides a single constant that contains the contents of
the sample configuration file for coldstaked.  It is written as the default
configuration file on first start so the generated file not only includes the
RPC credentials, but also provides samples of the other configuration options.
*/
package sampleconfig
