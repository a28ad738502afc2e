// Copyright (c) 2015-2017 The btcsuite developers
// Copyright (c) 2016-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package utxodb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/stake"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// The store keeps four kinds of records:
//
//   u<txid><index>          -> serialized utxo entry
//   k<keyhash><txid><index> -> empty, one per key hash that controls the output
//   h<height>               -> serialized block header
//   bestchain               -> <hash><height> of the tip
//
// Heights and output indexes are big endian so iteration follows their order.
var (
	utxoKeyPrefix   = []byte("u")
	indexKeyPrefix  = []byte("k")
	headerKeyPrefix = []byte("h")
	bestChainKey    = []byte("bestchain")
)

const (
	// outpointKeySize is the size of a serialized outpoint.
	outpointKeySize = chainhash.HashSize + 4

	// utxoHeaderSize is the size of the fixed part of a serialized utxo
	// entry: height, flags and amount.
	utxoHeaderSize = 4 + 1 + 8

	// bestChainSize is the size of the serialized best chain state.
	bestChainSize = chainhash.HashSize + 4
)

// Flags of serialized utxo entries.
const (
	utxoFlagCoinBase  = 1 << 0
	utxoFlagCoinStake = 1 << 1
)

// Store is a goleveldb backed set of unspent transaction outputs along with
// the headers of the main chain.  It implements blockchain.ChainStore and
// indexes every output by the key hashes that control it, so the outputs of a
// wallet can be loaded without walking the whole set.
//
// It is safe for concurrent access.
type Store struct {
	db *leveldb.DB
}

// Ensure Store implements the blockchain.ChainStore interface.
var _ blockchain.ChainStore = (*Store)(nil)

// Open opens the store at the provided path, creating it when needed.
func Open(path string) (*Store, error) {
	opts := opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10),
	}
	ldb, err := leveldb.OpenFile(path, &opts)
	if err != nil {
		return nil, convertErr("failed to open utxo store", err)
	}
	log.Infof("Opened utxo store at %s", path)
	return &Store{db: ldb}, nil
}

// OpenMemory opens a store that lives in memory only.
func OpenMemory() (*Store, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, convertErr("failed to open utxo store", err)
	}
	return &Store{db: ldb}, nil
}

// Close closes the store.  Using it afterwards fails with ErrDbNotOpen.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return convertErr("failed to close utxo store", err)
	}
	return nil
}

// outpointKey returns the key of the utxo entry of the outpoint.
func outpointKey(prefix []byte, outpoint wire.OutPoint) []byte {
	key := make([]byte, len(prefix)+outpointKeySize)
	n := copy(key, prefix)
	n += copy(key[n:], outpoint.Hash[:])
	binary.BigEndian.PutUint32(key[n:], outpoint.Index)
	return key
}

func utxoKey(outpoint wire.OutPoint) []byte {
	return outpointKey(utxoKeyPrefix, outpoint)
}

// indexPrefix returns the common prefix of all index keys of the key hash.
func indexPrefix(keyHash []byte) []byte {
	prefix := make([]byte, 0, len(indexKeyPrefix)+len(keyHash))
	prefix = append(prefix, indexKeyPrefix...)
	return append(prefix, keyHash...)
}

func indexKey(keyHash []byte, outpoint wire.OutPoint) []byte {
	return outpointKey(indexPrefix(keyHash), outpoint)
}

// decodeIndexKey returns the outpoint carried by the index key.
func decodeIndexKey(key []byte) (wire.OutPoint, error) {
	var outpoint wire.OutPoint
	if len(key) < outpointKeySize {
		return outpoint, storeError(ErrCorruption, fmt.Sprintf("index "+
			"key %x is too short", key), nil)
	}
	key = key[len(key)-outpointKeySize:]
	copy(outpoint.Hash[:], key)
	outpoint.Index = binary.BigEndian.Uint32(key[chainhash.HashSize:])
	return outpoint, nil
}

func headerKey(height int32) []byte {
	key := make([]byte, len(headerKeyPrefix)+4)
	n := copy(key, headerKeyPrefix)
	binary.BigEndian.PutUint32(key[n:], uint32(height))
	return key
}

// indexedKeyHashes returns the key hashes an output is indexed by: the key
// hash of pay-to-pubkey-hash outputs and both key hashes of cold staking
// outputs.
func indexedKeyHashes(pkScript []byte) [][]byte {
	switch stake.GetScriptClass(pkScript) {
	case stake.PubKeyHashTy:
		return [][]byte{stake.ExtractPubKeyHash(pkScript)}

	case stake.ColdStakingTy:
		staking, spending, err := stake.ExtractColdStakingKeyHashes(pkScript)
		if err != nil {
			return nil
		}
		return [][]byte{staking, spending}
	}
	return nil
}

// serializeUtxoEntry returns the entry serialized as
//
//   <block height><flags><amount><pkscript>
//
//   Field         Type     Size
//   block height  uint32   4
//   flags         byte     1
//   amount        uint64   8
//   pkscript      []byte   variable
func serializeUtxoEntry(entry *blockchain.UtxoEntry) []byte {
	pkScript := entry.PkScript()
	serialized := make([]byte, utxoHeaderSize+len(pkScript))
	binary.BigEndian.PutUint32(serialized[0:4], uint32(entry.BlockHeight()))
	var flags byte
	if entry.IsCoinBase() {
		flags |= utxoFlagCoinBase
	}
	if entry.IsCoinStake() {
		flags |= utxoFlagCoinStake
	}
	serialized[4] = flags
	binary.LittleEndian.PutUint64(serialized[5:13], uint64(entry.Amount()))
	copy(serialized[utxoHeaderSize:], pkScript)
	return serialized
}

// deserializeUtxoEntry decodes an entry serialized by serializeUtxoEntry.
func deserializeUtxoEntry(serialized []byte) (*blockchain.UtxoEntry, error) {
	if len(serialized) < utxoHeaderSize {
		return nil, storeError(ErrCorruption, fmt.Sprintf("utxo entry "+
			"of %d bytes is too short", len(serialized)), nil)
	}

	height := int32(binary.BigEndian.Uint32(serialized[0:4]))
	flags := serialized[4]
	amount := int64(binary.LittleEndian.Uint64(serialized[5:13]))
	pkScript := make([]byte, len(serialized)-utxoHeaderSize)
	copy(pkScript, serialized[utxoHeaderSize:])

	txOut := wire.NewTxOut(amount, pkScript)
	return blockchain.NewUtxoEntry(txOut, height,
		flags&utxoFlagCoinBase != 0, flags&utxoFlagCoinStake != 0), nil
}

// FetchUtxoEntry returns the unspent output for the outpoint or nil when there
// is none.  Part of the blockchain.ChainStore interface.
func (s *Store) FetchUtxoEntry(outpoint wire.OutPoint) (*blockchain.UtxoEntry, error) {
	serialized, err := s.db.Get(utxoKey(outpoint), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, convertErr(fmt.Sprintf("failed to fetch utxo %v",
			outpoint), err)
	}
	return deserializeUtxoEntry(serialized)
}

// FetchBlockHeaders returns the headers of all stored blocks ordered by
// height.  Part of the blockchain.ChainStore interface.
func (s *Store) FetchBlockHeaders() ([]wire.BlockHeader, error) {
	iter := s.db.NewIterator(util.BytesPrefix(headerKeyPrefix), nil)
	defer iter.Release()

	var headers []wire.BlockHeader
	for iter.Next() {
		var header wire.BlockHeader
		err := header.Deserialize(bytes.NewReader(iter.Value()))
		if err != nil {
			return nil, storeError(ErrCorruption, fmt.Sprintf(
				"corrupt header under key %x", iter.Key()), err)
		}
		headers = append(headers, header)
	}
	if err := iter.Error(); err != nil {
		return nil, convertErr("failed to iterate headers", err)
	}
	return headers, nil
}

// ConnectBlock atomically stores the header of the block at the provided
// height, every modified entry of the view and the new tip.  Spent entries are
// removed from the set and from the index.  Part of the
// blockchain.ChainStore interface.
func (s *Store) ConnectBlock(block *btcutil.Block, height int32,
	view *blockchain.UtxoViewpoint) error {

	batch := new(leveldb.Batch)
	for outpoint, entry := range view.Entries() {
		switch {
		case entry == nil:
			continue

		case entry.IsSpent():
			batch.Delete(utxoKey(outpoint))
			for _, keyHash := range indexedKeyHashes(entry.PkScript()) {
				batch.Delete(indexKey(keyHash, outpoint))
			}

		case entry.IsModified():
			batch.Put(utxoKey(outpoint), serializeUtxoEntry(entry))
			for _, keyHash := range indexedKeyHashes(entry.PkScript()) {
				batch.Put(indexKey(keyHash, outpoint), nil)
			}
		}
	}

	var header bytes.Buffer
	if err := block.MsgBlock().Header.Serialize(&header); err != nil {
		return err
	}
	batch.Put(headerKey(height), header.Bytes())

	best := make([]byte, bestChainSize)
	copy(best, block.Hash()[:])
	binary.BigEndian.PutUint32(best[chainhash.HashSize:], uint32(height))
	batch.Put(bestChainKey, best)

	if err := s.db.Write(batch, nil); err != nil {
		return convertErr(fmt.Sprintf("failed to store block %v",
			block.Hash()), err)
	}

	log.Tracef("Stored block %v at height %d with %d utxo changes",
		block.Hash(), height, batch.Len()-2)
	return nil
}

// BestBlock returns the hash and height of the last stored block.  An empty
// store reports a zero hash at height 0.
func (s *Store) BestBlock() (chainhash.Hash, int32, error) {
	serialized, err := s.db.Get(bestChainKey, nil)
	if err == leveldb.ErrNotFound {
		return chainhash.Hash{}, 0, nil
	}
	if err != nil {
		return chainhash.Hash{}, 0, convertErr("failed to fetch best "+
			"block", err)
	}
	return deserializeBestChain(serialized)
}

func deserializeBestChain(serialized []byte) (chainhash.Hash, int32, error) {
	var hash chainhash.Hash
	if len(serialized) != bestChainSize {
		return hash, 0, storeError(ErrCorruption, fmt.Sprintf("best "+
			"chain state of %d bytes", len(serialized)), nil)
	}
	copy(hash[:], serialized)
	height := binary.BigEndian.Uint32(serialized[chainhash.HashSize:])
	return hash, int32(height), nil
}

// Snapshot returns a view holding every unspent output controlled by any of
// the provided key hashes, as of a single point in time, along with the height
// of the tip the outputs were read at.  The best hash of the view is the hash
// of that tip.  The view is owned by the caller.
func (s *Store) Snapshot(keyHashes [][]byte) (*blockchain.UtxoViewpoint, int32, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, 0, convertErr("failed to take snapshot", err)
	}
	defer snap.Release()

	view := blockchain.NewUtxoViewpoint()
	var height int32
	serialized, err := snap.Get(bestChainKey, nil)
	switch {
	case err == leveldb.ErrNotFound:
	case err != nil:
		return nil, 0, convertErr("failed to fetch best block", err)
	default:
		var hash chainhash.Hash
		hash, height, err = deserializeBestChain(serialized)
		if err != nil {
			return nil, 0, err
		}
		view.SetBestHash(&hash)
	}

	for _, keyHash := range keyHashes {
		iter := snap.NewIterator(util.BytesPrefix(indexPrefix(keyHash)), nil)
		for iter.Next() {
			outpoint, err := decodeIndexKey(iter.Key())
			if err != nil {
				iter.Release()
				return nil, 0, err
			}
			if view.LookupEntry(outpoint) != nil {
				continue
			}

			serialized, err := snap.Get(utxoKey(outpoint), nil)
			if err != nil {
				iter.Release()
				return nil, 0, storeError(ErrCorruption, fmt.Sprintf(
					"index refers to missing utxo %v",
					outpoint), err)
			}
			entry, err := deserializeUtxoEntry(serialized)
			if err != nil {
				iter.Release()
				return nil, 0, err
			}
			view.AddEntry(outpoint, entry)
		}
		err := iter.Error()
		iter.Release()
		if err != nil {
			return nil, 0, convertErr("failed to iterate index", err)
		}
	}

	return view, height, nil
}
