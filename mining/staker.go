// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"errors"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

const (
	// DefaultStakeInterval is the default time between two stake attempts.
	DefaultStakeInterval = 30 * time.Second
)

// CoinStaker creates coinstakes claiming outputs the caller holds the staking
// right of.
type CoinStaker interface {
	CreateCoinStake() (*wire.MsgTx, error)
}

// StakerConfig is a descriptor containing the staker configuration.
type StakerConfig struct {
	// Generator is used to create and submit the staked blocks.
	Generator *Generator

	// CoinStaker creates the coinstake of every staked block.
	CoinStaker CoinStaker

	// ErrNoStake is the error CreateCoinStake returns when nothing is
	// eligible for staking.  It is not logged.
	ErrNoStake error

	// StakingWeight returns the last known staking weight.  No stake is
	// attempted while it is zero.
	StakingWeight func() btcutil.Amount

	// Interval is the time between two stake attempts.  Zero selects
	// DefaultStakeInterval.
	Interval time.Duration
}

// Staker periodically stakes blocks in the background in a concurrency-safe
// manner.
type Staker struct {
	sync.Mutex
	cfg     StakerConfig
	started bool
	wg      sync.WaitGroup
	quit    chan struct{}
}

// NewStaker returns a new instance of a staker for the provided
// configuration.  Use Start to begin staking.
func NewStaker(cfg *StakerConfig) *Staker {
	s := &Staker{cfg: *cfg}
	if s.cfg.Interval == 0 {
		s.cfg.Interval = DefaultStakeInterval
	}
	return s
}

// Interval returns the time between two stake attempts.
func (s *Staker) Interval() time.Duration {
	return s.cfg.Interval
}

// StakeBlock attempts to stake a single block.  It returns false when the
// wallet has nothing to stake.
func (s *Staker) StakeBlock() (bool, error) {
	if s.cfg.StakingWeight() == 0 {
		return false, nil
	}

	coinStake, err := s.cfg.CoinStaker.CreateCoinStake()
	if err != nil {
		if s.cfg.ErrNoStake != nil && errors.Is(err, s.cfg.ErrNoStake) {
			return false, nil
		}
		return false, err
	}

	hash, err := s.cfg.Generator.GenerateBlock(coinStake)
	if err != nil {
		return false, err
	}
	log.Infof("Staked block %v with coinstake %v", hash,
		coinStake.TxHash())
	return true, nil
}

// stakeBlocks attempts to stake a block every interval until the staker is
// stopped.
//
// It must be run as a goroutine.
func (s *Staker) stakeBlocks(quit chan struct{}) {
	defer s.wg.Done()

	log.Tracef("Starting stake blocks worker")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
out:
	for {
		select {
		case <-ticker.C:
			if _, err := s.StakeBlock(); err != nil {
				log.Errorf("Failed to stake block: %v", err)
			}

		case <-quit:
			break out
		}
	}

	log.Tracef("Stake blocks worker done")
}

// Start begins the staking process.  Calling this function when the staker
// has already been started will have no effect.
//
// This function is safe for concurrent access.
func (s *Staker) Start() {
	s.Lock()
	defer s.Unlock()

	// Nothing to do if the staker is already running.
	if s.started {
		return
	}

	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.stakeBlocks(s.quit)

	s.started = true
	log.Infof("Staker started")
}

// Stop gracefully stops the staking process.  Calling this function when the
// staker has not already been started will have no effect.
//
// This function is safe for concurrent access.
func (s *Staker) Stop() {
	s.Lock()
	defer s.Unlock()

	// Nothing to do if the staker is not currently running.
	if !s.started {
		return
	}

	close(s.quit)
	s.wg.Wait()
	s.started = false
	log.Infof("Staker stopped")
}

// IsStaking returns whether or not the staker has been started and is
// therefore currently staking.
//
// This function is safe for concurrent access.
func (s *Staker) IsStaking() bool {
	s.Lock()
	defer s.Unlock()

	return s.started
}
