// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/navcoin/coldstaked/blockchain"
)

// StakeWeightMonitor recomputes the staking weight of a wallet in the
// background every time the tip of the chain changes and publishes the last
// result.  A snapshot that goes stale while the weight is computed is simply
// replaced by the next one.
type StakeWeightMonitor struct {
	wallet *Wallet

	last atomic.Pointer[stakeWeight]

	started  int32
	shutdown int32
	update   chan struct{}
	quit     chan struct{}
	wg       sync.WaitGroup
}

// stakeWeight is a weight along with the tip height it was computed at.
type stakeWeight struct {
	weight btcutil.Amount
	height int32
}

// NewStakeWeightMonitor returns a monitor of the wallet.  It must be started
// with Start.
func NewStakeWeightMonitor(w *Wallet) *StakeWeightMonitor {
	return &StakeWeightMonitor{
		wallet: w,
		update: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

// Start begins monitoring and computes the initial weight.
func (m *StakeWeightMonitor) Start() {
	if atomic.AddInt32(&m.started, 1) != 1 {
		return
	}

	m.wg.Add(1)
	go m.handler()
	m.Refresh()
}

// Stop stops monitoring and waits for the background goroutine to exit.
func (m *StakeWeightMonitor) Stop() {
	if atomic.AddInt32(&m.shutdown, 1) != 1 {
		return
	}

	close(m.quit)
	m.wg.Wait()
}

// Refresh requests the weight to be recomputed.  It never blocks: requests
// made while one is pending are merged into it.
func (m *StakeWeightMonitor) Refresh() {
	select {
	case m.update <- struct{}{}:
	default:
	}
}

// HandleChainNotification refreshes the weight on every connected block.  It
// is meant to be registered with blockchain.BlockChain.Subscribe.
func (m *StakeWeightMonitor) HandleChainNotification(n *blockchain.Notification) {
	if n.Type == blockchain.NTBlockConnected {
		m.Refresh()
	}
}

// Weight returns the last computed weight and the tip height it applies to.
func (m *StakeWeightMonitor) Weight() (btcutil.Amount, int32) {
	last := m.last.Load()
	if last == nil {
		return 0, 0
	}
	return last.weight, last.height
}

// handler recomputes the weight on request until the monitor is stopped.
//
// This must be run as a goroutine.
func (m *StakeWeightMonitor) handler() {
	defer m.wg.Done()

	for {
		select {
		case <-m.update:
			weight, height, err := m.wallet.StakingWeight()
			if err != nil {
				log.Errorf("Failed to compute staking weight: %v",
					err)
				continue
			}
			m.last.Store(&stakeWeight{weight: weight, height: height})
			log.Debugf("Staking weight %v at height %d", weight,
				height)

		case <-m.quit:
			return
		}
	}
}
