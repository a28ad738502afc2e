// Copyright (c) 2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mining produces the blocks of a cold staking node.

Overview

TxPool holds the validated transactions that are not mined yet.  Generator
assembles them into blocks on top of the current tip, signalling the rule
changes that are started or locked in through the block version, and
optionally includes a coinstake right after the coinbase.  Staker drives the
generator from a wallet in the background: whenever the wallet has staking
weight it asks for a coinstake and submits a block carrying it.

Blocks are produced on demand and carry no proof of work.  Choosing which
stake wins a slot is left to the caller through the staking interval.
*/
package mining
