// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	btcdchain "github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
)

const (
	// CoinbaseFlags is added to the coinbase script of a generated block
	// and is used to monitor BIP16 support as well as blocks that are
	// generated via coldstaked.
	CoinbaseFlags = "/P2SH/coldstaked/"
)

// GeneratorConfig is a descriptor containing the block generator
// configuration.
type GeneratorConfig struct {
	// ChainParams identifies which chain parameters the generator is
	// associated with.
	ChainParams *chaincfg.Params

	// Chain is the chain generated blocks extend.
	Chain *blockchain.BlockChain

	// TxSource provides the transactions to include in generated blocks.
	TxSource TxSource

	// MiningAddrs is a list of payment addresses to use for the generated
	// blocks.  Each generated block will randomly choose one of them.
	MiningAddrs []btcutil.Address
}

// Generator assembles blocks from the transaction source on top of the tip of
// the chain and submits them.  Block submission is serialized.
type Generator struct {
	cfg             GeneratorConfig
	submitBlockLock sync.Mutex
}

// NewGenerator returns a block generator for the provided configuration.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	return &Generator{cfg: *cfg}
}

// standardCoinbaseScript returns a standard script suitable for use as the
// signature script of the coinbase transaction of a new block.  In particular,
// it starts with the block height that is required by version 2 blocks and
// adds the extra nonce as well as additional coinbase flags.
func standardCoinbaseScript(nextBlockHeight int32, extraNonce uint64) ([]byte, error) {
	return txscript.NewScriptBuilder().AddInt64(int64(nextBlockHeight)).
		AddInt64(int64(extraNonce)).AddData([]byte(CoinbaseFlags)).
		Script()
}

// createCoinbaseTx returns a coinbase transaction paying an appropriate subsidy
// based on the passed block height to the provided address.
func createCoinbaseTx(coinbaseScript []byte, value int64,
	addr btcutil.Address) (*btcutil.Tx, error) {

	pkScript, err := stake.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		// Coinbase transactions have no inputs, so previous outpoint is
		// zero hash and max index.
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			wire.MaxPrevOutIndex),
		SignatureScript: coinbaseScript,
		Sequence:        wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    value,
		PkScript: pkScript,
	})
	return btcutil.NewTx(tx), nil
}

// selectTransactions returns the descriptors of the source in order, leaving
// out the ones spending an output already spent by the coinstake or by an
// earlier selected transaction along with every transaction depending on one
// left out.
func selectTransactions(descs []*TxDesc, coinStake *wire.MsgTx) []*TxDesc {
	spent := make(map[wire.OutPoint]struct{})
	if coinStake != nil {
		for _, txIn := range coinStake.TxIn {
			spent[txIn.PreviousOutPoint] = struct{}{}
		}
	}

	skipped := make(map[chainhash.Hash]struct{})
	selected := make([]*TxDesc, 0, len(descs))
nextTx:
	for _, desc := range descs {
		msgTx := desc.Tx.MsgTx()
		for _, txIn := range msgTx.TxIn {
			_, conflict := spent[txIn.PreviousOutPoint]
			_, orphaned := skipped[txIn.PreviousOutPoint.Hash]
			if conflict || orphaned {
				log.Debugf("Skipping transaction %v which "+
					"conflicts with the block", desc.Tx.Hash())
				skipped[*desc.Tx.Hash()] = struct{}{}
				continue nextTx
			}
		}
		for _, txIn := range msgTx.TxIn {
			spent[txIn.PreviousOutPoint] = struct{}{}
		}
		selected = append(selected, desc)
	}
	return selected
}

// NewBlock returns a block extending the current tip that carries the
// optional coinstake right after the coinbase and the transactions of the
// source.  The coinbase claims the subsidy and the fees of the block.
func (g *Generator) NewBlock(coinStake *wire.MsgTx) (*btcutil.Block, error) {
	if len(g.cfg.MiningAddrs) == 0 {
		return nil, ErrNoMiningAddrs
	}

	chain := g.cfg.Chain
	best := chain.BestSnapshot()
	nextBlockHeight := best.Height + 1

	version, err := chain.CalcNextBlockVersion()
	if err != nil {
		return nil, err
	}

	var descs []*TxDesc
	if g.cfg.TxSource != nil {
		descs = selectTransactions(g.cfg.TxSource.MiningDescs(), coinStake)
	}
	var totalFees int64
	for _, desc := range descs {
		totalFees += desc.Fee
	}

	// Choose a payment address at random.
	payToAddr := g.cfg.MiningAddrs[rand.Intn(len(g.cfg.MiningAddrs))]
	coinbaseScript, err := standardCoinbaseScript(nextBlockHeight, 0)
	if err != nil {
		return nil, err
	}
	subsidy := blockchain.CalcBlockSubsidy(nextBlockHeight, g.cfg.ChainParams)
	coinbaseTx, err := createCoinbaseTx(coinbaseScript, subsidy+totalFees,
		payToAddr)
	if err != nil {
		return nil, err
	}

	// Blocks are timestamped with the current time unless that does not
	// come after the tip.
	ts := time.Unix(time.Now().Unix(), 0)
	if !ts.After(best.Timestamp) {
		ts = best.Timestamp.Add(time.Second)
	}

	msgBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   version,
			PrevBlock: best.Hash,
			Timestamp: ts,
			Bits:      g.cfg.ChainParams.PowLimitBits,
		},
	}
	if err := msgBlock.AddTransaction(coinbaseTx.MsgTx()); err != nil {
		return nil, err
	}
	if coinStake != nil {
		if err := msgBlock.AddTransaction(coinStake); err != nil {
			return nil, err
		}
	}
	for _, desc := range descs {
		if err := msgBlock.AddTransaction(desc.Tx.MsgTx()); err != nil {
			return nil, err
		}
	}

	block := btcutil.NewBlock(msgBlock)
	msgBlock.Header.MerkleRoot = btcdchain.CalcMerkleRoot(
		block.Transactions(), false)

	log.Debugf("Created new block with %d transactions at height %d "+
		"(version %#08x)", len(msgBlock.Transactions), nextBlockHeight,
		version)

	return btcutil.NewBlock(msgBlock), nil
}

// submitBlock submits the passed block to the chain after ensuring it passes
// all of the consensus validation rules.
func (g *Generator) submitBlock(block *btcutil.Block) error {
	err := g.cfg.Chain.ProcessBlock(block)
	if err != nil {
		// Anything other than a rule violation is an unexpected error,
		// so log that error as an internal error.
		var rerr blockchain.RuleError
		if !errors.As(err, &rerr) {
			log.Errorf("Unexpected error while processing "+
				"generated block: %v", err)
			return err
		}

		log.Debugf("Generated block rejected: %v", err)
		return err
	}

	// The block was accepted.
	coinbaseTx := block.MsgBlock().Transactions[0].TxOut[0]
	log.Infof("Generated block accepted (hash %s, amount %v)",
		block.Hash(), btcutil.Amount(coinbaseTx.Value))
	return nil
}

// GenerateBlock creates a block carrying the optional coinstake and submits
// it.  It returns the hash of the connected block.
//
// This function is safe for concurrent access.
func (g *Generator) GenerateBlock(coinStake *wire.MsgTx) (*chainhash.Hash, error) {
	g.submitBlockLock.Lock()
	defer g.submitBlockLock.Unlock()

	block, err := g.NewBlock(coinStake)
	if err != nil {
		return nil, err
	}
	if err := g.submitBlock(block); err != nil {
		return nil, err
	}
	return block.Hash(), nil
}

// GenerateNBlocks generates the requested number of blocks without a
// coinstake.  The function returns a list of the hashes of generated blocks.
//
// This function is safe for concurrent access.
func (g *Generator) GenerateNBlocks(n uint32) ([]*chainhash.Hash, error) {
	log.Tracef("Generating %d blocks", n)

	blockHashes := make([]*chainhash.Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		hash, err := g.GenerateBlock(nil)
		if err != nil {
			return blockHashes, fmt.Errorf("failed to generate "+
				"block %d of %d: %w", i+1, n, err)
		}
		blockHashes = append(blockHashes, hash)
	}

	log.Tracef("Generated %d blocks", n)
	return blockHashes, nil
}
