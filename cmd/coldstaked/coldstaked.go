// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/mining"
	"github.com/navcoin/coldstaked/rpcserver"
	"github.com/navcoin/coldstaked/stake"
	"github.com/navcoin/coldstaked/utxodb"
	"github.com/navcoin/coldstaked/wallet"
)

const (
	// defaultSigCacheMaxSize is the maximum number of cold staking input
	// signatures kept in the signature cache.
	defaultSigCacheMaxSize = 100000

	utxoDbName   = "utxo"
	walletDbName = "wallet"
)

// miningAddrs returns the configured mining addresses or, when none was
// configured, an address of the wallet.
func miningAddrs(cfg *config, keys *wallet.Keyring) ([]btcutil.Address, error) {
	if len(cfg.miningAddrs) > 0 {
		return cfg.miningAddrs, nil
	}

	if keyHashes := keys.KeyHashes(); len(keyHashes) > 0 {
		addr, err := btcutil.NewAddressPubKeyHash(keyHashes[0],
			cfg.params.Params)
		if err != nil {
			return nil, err
		}
		return []btcutil.Address{addr}, nil
	}

	addr, err := keys.NewAddress()
	if err != nil {
		return nil, err
	}
	return []btcutil.Address{addr}, nil
}

// coldstakedMain is the real main function for coldstaked.  It is necessary
// to work around the fact that deferred functions do not run when os.Exit()
// is called.
func coldstakedMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	err = initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Get a channel that will be closed when a shutdown signal has been
	// triggered from an OS signal such as SIGINT (Ctrl+C).
	interrupt := interruptListener()
	defer cstkLog.Info("Shutdown complete")

	cstkLog.Infof("Version %s", appVersion)
	cstkLog.Infof("Active network: %s", cfg.params.Name)

	store, err := utxodb.Open(filepath.Join(cfg.DataDir, utxoDbName))
	if err != nil {
		cstkLog.Errorf("Unable to open the utxo database: %v", err)
		return err
	}
	defer func() {
		cstkLog.Infof("Gracefully shutting down the utxo database...")
		store.Close()
	}()

	keyStore, err := wallet.OpenKeyStore(filepath.Join(cfg.DataDir,
		walletDbName))
	if err != nil {
		cstkLog.Errorf("Unable to open the key store: %v", err)
		return err
	}
	defer keyStore.Close()

	keys, err := wallet.NewKeyring(cfg.params, keyStore)
	if err != nil {
		cstkLog.Errorf("Unable to load the wallet keys: %v", err)
		return err
	}

	sigCache := stake.NewSigCache(defaultSigCacheMaxSize)
	chain, err := blockchain.New(&blockchain.Config{
		ChainParams: cfg.params,
		Store:       store,
		SigCache:    sigCache,
	})
	if err != nil {
		cstkLog.Errorf("Unable to load the chain: %v", err)
		return err
	}

	pool := mining.NewTxPool(&mining.TxPoolConfig{
		Chain:    chain,
		SigCache: sigCache,
	})
	chain.Subscribe(pool.HandleChainNotification)

	w := wallet.New(&wallet.Config{
		ChainParams: cfg.params,
		Keys:        keys,
		Utxos:       store,
		Pool:        pool,
	})
	monitor := wallet.NewStakeWeightMonitor(w)
	chain.Subscribe(monitor.HandleChainNotification)
	monitor.Start()
	defer monitor.Stop()

	addrs, err := miningAddrs(cfg, keys)
	if err != nil {
		cstkLog.Errorf("Unable to select a mining address: %v", err)
		return err
	}
	gen := mining.NewGenerator(&mining.GeneratorConfig{
		ChainParams: cfg.params,
		Chain:       chain,
		TxSource:    pool,
		MiningAddrs: addrs,
	})

	var staker *mining.Staker
	if cfg.Staking {
		staker = mining.NewStaker(&mining.StakerConfig{
			Generator:  gen,
			CoinStaker: w,
			ErrNoStake: wallet.ErrNoStakeableOutput,
			StakingWeight: func() btcutil.Amount {
				weight, _ := monitor.Weight()
				return weight
			},
			Interval: cfg.StakeInterval,
		})
		staker.Start()
		defer staker.Stop()
	}

	if !cfg.DisableRPC {
		listeners := make([]net.Listener, 0, len(cfg.RPCListeners))
		for _, addr := range cfg.RPCListeners {
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				cstkLog.Warnf("Can't listen on %s: %v", addr, err)
				continue
			}
			listeners = append(listeners, listener)
		}
		if len(listeners) == 0 {
			return fmt.Errorf("no valid listen address")
		}

		server := rpcserver.New(&rpcserver.Config{
			Listeners:   listeners,
			Username:    cfg.RPCUser,
			Password:    cfg.RPCPass,
			MaxClients:  cfg.RPCMaxClients,
			ChainParams: cfg.params,
			Chain:       chain,
			Generator:   gen,
			Wallet:      w,
			Staker:      staker,
		})
		server.Start()
		defer func() {
			cstkLog.Infof("Gracefully shutting down the RPC server...")
			server.Stop()
		}()
	}

	// Wait until the interrupt signal is received from an OS signal.
	<-interrupt
	return nil
}

func main() {
	if err := coldstakedMain(); err != nil {
		os.Exit(1)
	}
}
