// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
)

// ChainStore is the persistent state of the main chain: the headers of the
// connected blocks and the set of unspent transaction outputs.
type ChainStore interface {
	// FetchUtxoEntry returns the unspent output for the outpoint or nil
	// when there is none.
	FetchUtxoEntry(outpoint wire.OutPoint) (*UtxoEntry, error)

	// FetchBlockHeaders returns the headers of all stored blocks after the
	// genesis block, ordered by height.
	FetchBlockHeaders() ([]wire.BlockHeader, error)

	// ConnectBlock atomically stores the block header at the provided
	// height along with every modified entry of the view.  Spent entries
	// are removed from the set.
	ConnectBlock(block *btcutil.Block, height int32, view *UtxoViewpoint) error
}

// BestState houses information about the current best block and other info
// related to the state of the main chain as it exists from the point of view of
// the current best block.
//
// The BestSnapshot method can be used to obtain access to this information
// in a concurrent safe manner and the data will not be changed out from under
// the caller when chain state changes occur as the function name implies.
// However, the returned snapshot must be treated as immutable since it is
// shared by all callers.
type BestState struct {
	Hash      chainhash.Hash // The hash of the block.
	Height    int32          // The height of the block.
	Version   int32          // The version of the block.
	Timestamp time.Time      // The timestamp of the block.
	NumTxns   uint64         // The number of txns in the block.
}

// newBestState returns a new best stats instance for the given parameters.
func newBestState(node *blockNode, numTxns uint64) *BestState {
	return &BestState{
		Hash:      node.hash,
		Height:    node.height,
		Version:   node.version,
		Timestamp: time.Unix(node.timestamp, 0),
		NumTxns:   numTxns,
	}
}

// BlockChain provides functions for working with the cold staking capable
// block chain.  It includes functionality such as rejecting blocks that
// violate the cold staking rules, tracking the deployment that activates them
// and keeping the unspent output set current.
type BlockChain struct {
	params      *chaincfg.Params
	store       ChainStore
	sigCache    *stake.SigCache
	deployments *DeploymentTracker

	// chainLock protects concurrent access to the vast majority of the
	// fields in this struct below this point.  Validation and connection
	// of blocks are serialized under it.
	chainLock sync.RWMutex

	// bestChain tracks the current active chain by making use of an
	// efficient chain view into the block index.
	bestChain *chainView

	// These fields are related to handling of the best state snapshot.
	stateLock     sync.RWMutex
	stateSnapshot *BestState

	// The notifications field stores a slice of callbacks to be executed on
	// certain blockchain events.
	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

// Config is a descriptor which specifies the blockchain instance configuration.
type Config struct {
	// ChainParams identifies which chain parameters the chain is associated
	// with.
	//
	// This field is required.
	ChainParams *chaincfg.Params

	// Store holds the headers and the unspent outputs of the main chain.
	//
	// This field is required.
	Store ChainStore

	// SigCache defines a signature cache to use when validating cold
	// staking inputs.
	//
	// This field can be nil if the caller is not interested in using a
	// signature cache.
	SigCache *stake.SigCache
}

// New returns a BlockChain instance using the provided configuration details.
// The main chain stored by the configured store is loaded on top of the
// genesis block of the network.
func New(config *Config) (*BlockChain, error) {
	// Enforce required config fields.
	if config.ChainParams == nil {
		return nil, AssertError("blockchain.New chain parameters nil")
	}
	if config.Store == nil {
		return nil, AssertError("blockchain.New store is nil")
	}

	params := config.ChainParams
	b := BlockChain{
		params:      params,
		store:       config.Store,
		sigCache:    config.SigCache,
		deployments: NewDeploymentTracker(params),
	}

	tip := newBlockNode(&params.GenesisBlock.Header, nil)
	headers, err := b.store.FetchBlockHeaders()
	if err != nil {
		return nil, err
	}
	for i := range headers {
		header := &headers[i]
		if header.PrevBlock != tip.hash {
			return nil, AssertError(fmt.Sprintf("stored block %v "+
				"at height %d does not extend %v",
				header.BlockHash(), tip.height+1, tip.hash))
		}
		tip = newBlockNode(header, tip)
	}
	b.bestChain = newChainView(tip)
	b.stateSnapshot = newBestState(tip, 0)

	log.Infof("Chain state (height %d, hash %v)", tip.height, tip.hash)
	return &b, nil
}

// BestSnapshot returns information about the current best chain block and
// related state as of the current point in time.  The returned instance must be
// treated as immutable since it is shared by all callers.
//
// This function is safe for concurrent access.
func (b *BlockChain) BestSnapshot() *BestState {
	b.stateLock.RLock()
	snapshot := b.stateSnapshot
	b.stateLock.RUnlock()
	return snapshot
}

// Params returns the network parameters of the chain.
func (b *BlockChain) Params() *chaincfg.Params {
	return b.params
}

// ProcessBlock is the main workhorse for handling insertion of new blocks into
// the block chain.  The block must extend the current tip.  It rejects blocks
// that fail any of the validation rules, cold staking outputs before the
// deployment is active and cold staking inputs that satisfy neither branch of
// the output they claim included.
//
// This function is safe for concurrent access.
func (b *BlockChain) ProcessBlock(block *btcutil.Block) error {
	b.chainLock.Lock()

	blockHash := block.Hash()
	log.Tracef("Processing block %v", blockHash)

	node, err := b.connectBestChain(block)
	b.chainLock.Unlock()
	if err != nil {
		return err
	}

	log.Debugf("Connected block %v (height %d)", blockHash, node.height)

	// Notify the caller that the block was connected to the main chain.
	// The chain lock is released to allow the callback to query the chain.
	b.sendNotification(NTBlockConnected, &BlockConnectedNtfnsData{
		Block:  block,
		Height: node.height,
	})
	return nil
}

// connectBestChain validates the block against the current tip and connects
// it.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) connectBestChain(block *btcutil.Block) (*blockNode, error) {
	if err := checkBlockSanity(block); err != nil {
		return nil, err
	}

	tip := b.bestChain.Tip()
	header := &block.MsgBlock().Header
	if header.PrevBlock != tip.hash {
		str := fmt.Sprintf("previous block %v of block %v is not the "+
			"current tip %v", header.PrevBlock, block.Hash(), tip.hash)
		return nil, ruleError(ErrPrevBlockNotBest, str)
	}

	node := newBlockNode(header, tip)
	view := NewUtxoViewpoint()
	view.SetBestHash(&tip.hash)
	if err := b.checkConnectBlock(node, block, view); err != nil {
		return nil, err
	}

	view.SetBestHash(&node.hash)
	if err := b.store.ConnectBlock(block, node.height, view); err != nil {
		return nil, err
	}
	view.commit()

	b.bestChain.SetTip(node)
	state := newBestState(node, uint64(len(block.MsgBlock().Transactions)))
	b.stateLock.Lock()
	b.stateSnapshot = state
	b.stateLock.Unlock()

	return node, nil
}

// FetchUtxoEntry loads and returns the requested unspent transaction output
// from the point of view of the end of the main chain.  It returns nil when
// the output does not exist or is spent.
//
// This function is safe for concurrent access however the returned entry (if
// any) is NOT.
func (b *BlockChain) FetchUtxoEntry(outpoint wire.OutPoint) (*UtxoEntry, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	return b.store.FetchUtxoEntry(outpoint)
}

// FetchUtxoView loads unspent transaction outputs for the inputs referenced by
// the passed transaction from the point of view of the end of the main chain.
// It also attempts to fetch the utxos for the outputs of the transaction
// itself so the returned view can be examined for duplicate transactions.
//
// This function is safe for concurrent access however the returned view is NOT.
func (b *BlockChain) FetchUtxoView(tx *btcutil.Tx) (*UtxoViewpoint, error) {
	// Create a set of needed outputs based on those referenced by the
	// inputs of the passed transaction and the outputs of the transaction
	// itself.
	needed := make(map[wire.OutPoint]struct{})
	prevOut := wire.OutPoint{Hash: *tx.Hash()}
	for txOutIdx := range tx.MsgTx().TxOut {
		prevOut.Index = uint32(txOutIdx)
		needed[prevOut] = struct{}{}
	}
	if !stake.IsCoinBaseTx(tx.MsgTx()) {
		for _, txIn := range tx.MsgTx().TxIn {
			needed[txIn.PreviousOutPoint] = struct{}{}
		}
	}

	// Request the utxos from the point of view of the end of the main
	// chain.
	view := NewUtxoViewpoint()
	b.chainLock.RLock()
	err := view.fetchUtxos(b.store, needed)
	b.chainLock.RUnlock()
	return view, err
}

// DeploymentState returns the state of the deployment for the block after the
// end of the current best chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) DeploymentState(deploymentID uint32) (DeploymentState, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	return b.deployments.NextState(b.bestChain, deploymentID)
}

// ThresholdState returns the current rule change threshold state of the given
// deployment ID for the block AFTER the end of the current best chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) ThresholdState(deploymentID uint32) (ThresholdState, error) {
	state, err := b.DeploymentState(deploymentID)
	if err != nil {
		return ThresholdFailed, err
	}
	return state.State, nil
}

// IsDeploymentActive returns true if the target deploymentID is active, and
// false otherwise, for the block after the end of the current best chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) IsDeploymentActive(deploymentID uint32) (bool, error) {
	state, err := b.ThresholdState(deploymentID)
	if err != nil {
		return false, err
	}
	return state == ThresholdActive, nil
}

// CalcNextBlockVersion calculates the expected version of the block after the
// end of the current best chain based on the state of started and locked in
// rule change deployments.
//
// This function is safe for concurrent access.
func (b *BlockChain) CalcNextBlockVersion() (int32, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	return b.deployments.CalcBlockVersion(b.bestChain,
		b.bestChain.Height()+1)
}

// ErrHeightNotFound is returned by HeaderByHeight for heights past the tip.
var ErrHeightNotFound = errors.New("no block at requested height")

// HeaderByHeight returns the header of the main chain block at the provided
// height.
//
// This function is safe for concurrent access.
func (b *BlockChain) HeaderByHeight(height int32) (wire.BlockHeader, error) {
	node := b.bestChain.NodeByHeight(height)
	if node == nil {
		return wire.BlockHeader{}, ErrHeightNotFound
	}
	return node.Header(), nil
}
