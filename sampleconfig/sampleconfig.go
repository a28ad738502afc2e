// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sampleconfig

// FileContents is a string containing the commented example config for
// coldstaked.
const FileContents = `[Application Options]

; ------------------------------------------------------------------------------
; Data settings
; ------------------------------------------------------------------------------

; The directory to store the utxo set and the wallet keys.  The network name is
; appended to it.  Environment variables are expanded so they may be used.
; NOTE: Windows environment variables are typically %VARIABLE%, but they must
; be accessed with $VARIABLE here.
; datadir=~/.coldstaked/data

; The directory to store the rotated log files.
; logdir=~/.coldstaked/logs


; ------------------------------------------------------------------------------
; Network settings
; ------------------------------------------------------------------------------

; Use the test network.
; testnet=1

; Use the regression test network.  Blocks can be produced on demand with the
; generate RPC.
; regtest=1


; ------------------------------------------------------------------------------
; RPC server options - The following options control the built-in RPC server
; which is used to control and query information from a running coldstaked
; process.
;
; NOTE: The RPC server is disabled by default if rpcuser AND rpcpass are not
; specified.
; ------------------------------------------------------------------------------

; Secure the RPC API by specifying the username and password.
; rpcuser=
; rpcpass=

; Specify the interfaces for the RPC server listen on.  One listen address per
; line.  NOTE: The default port is modified by some options such as 'testnet',
; so it is recommended to not specify a port and allow a proper default to be
; chosen unless you have a specific reason to do otherwise.  By default, the
; RPC server will only listen on localhost.
; rpclisten=                ; all interfaces on default port
; rpclisten=0.0.0.0         ; all ipv4 interfaces on default port
; rpclisten=127.0.0.1:44444 ; ipv4 localhost on port 44444

; Specify the maximum number of concurrent RPC clients for standard
; connections.
; rpcmaxclients=10

; Use the following setting to disable the RPC server even if the rpcuser and
; rpcpass are specified above.
; norpc=1


; ------------------------------------------------------------------------------
; Staking and block generation
; ------------------------------------------------------------------------------

; Stake blocks with the outputs of the wallet, including cold staking outputs
; the wallet holds the staking key of.
; staking=1

; Time between two stake attempts.  Valid time units are {s, m, h}.
; stakeinterval=30s

; Add addresses to pay generated blocks to.  A wallet address is used when none
; is specified.  One address per line.
; miningaddr=


; ------------------------------------------------------------------------------
; Debug
; ------------------------------------------------------------------------------

; Debug logging level.
; Valid levels are {trace, debug, info, warn, error, critical}
; You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set
; log level for individual subsystems.  Use coldstaked --debuglevel=show to
; list available subsystems.
; debuglevel=info
`
