// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/stake"
	"github.com/stretchr/testify/require"
)

// TestDeploymentActivation ensures the cold staking deployment of a chain
// where every block signals becomes active at height 300.
func TestDeploymentActivation(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t)
	tests := []struct {
		tip  int32
		want ThresholdState
	}{
		{0, ThresholdDefined},
		{50, ThresholdDefined},
		{100, ThresholdStarted},
		{150, ThresholdStarted},
		{200, ThresholdLockedIn},
		{250, ThresholdLockedIn},
		{300, ThresholdActive},
	}
	for _, test := range tests {
		h.mineTo(test.tip)
		state, err := h.chain.ThresholdState(chaincfg.DeploymentColdStaking)
		require.NoError(t, err)
		require.Equal(t, test.want, state, "tip %d", test.tip)
	}

	active, err := h.chain.IsDeploymentActive(chaincfg.DeploymentColdStaking)
	require.NoError(t, err)
	require.True(t, active)

	_, err = h.chain.DeploymentState(chaincfg.DefinedDeployments)
	require.ErrorAs(t, err, new(DeploymentError))

	// Blocks between the boundaries carry the deployment bit only while
	// voting is in progress.
	header, err := h.chain.HeaderByHeight(150)
	require.NoError(t, err)
	require.True(t, SignalsDeployment(header.Version, 3))
	header, err = h.chain.HeaderByHeight(300)
	require.NoError(t, err)
	require.False(t, SignalsDeployment(header.Version, 3))

	_, err = h.chain.HeaderByHeight(301)
	require.ErrorIs(t, err, ErrHeightNotFound)
}

// TestChainReload ensures a chain loaded from a populated store resumes at the
// stored tip.
func TestChainReload(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t)
	h.mineTo(210)

	chain, err := New(&Config{
		ChainParams: h.params,
		Store:       h.store,
	})
	require.NoError(t, err)
	require.Equal(t, h.chain.BestSnapshot().Hash, chain.BestSnapshot().Hash)
	require.Equal(t, int32(210), chain.BestSnapshot().Height)

	state, err := chain.ThresholdState(chaincfg.DeploymentColdStaking)
	require.NoError(t, err)
	require.Equal(t, ThresholdLockedIn, state)

	// A store whose headers do not link up is refused.
	broken := newMemStore()
	broken.headers = append(broken.headers, h.store.headers[1:3]...)
	_, err = New(&Config{ChainParams: h.params, Store: broken})
	require.ErrorAs(t, err, new(AssertError))

	_, err = New(&Config{ChainParams: h.params})
	require.Error(t, err)
}

// TestColdStakingOutputActivation ensures cold staking outputs are rejected
// until the deployment is active.
func TestColdStakingOutputActivation(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t)
	h.mineTo(20)

	out, err := stake.BuildColdStakingOutput(keyHash(testKey(2)),
		keyHash(testKey(3)), 10e8)
	require.NoError(t, err)
	tx := h.spendCoinbase(1, out.TxOut())

	err = h.chain.ProcessBlock(h.nextBlock(tx))
	require.True(t, IsErrorCode(err, ErrFeatureNotActive), spew.Sdump(err))
	require.Equal(t, int32(20), h.chain.BestSnapshot().Height)

	h.mineTo(299)
	h.accept(h.nextBlock(tx))

	entry, err := h.chain.FetchUtxoEntry(wire.OutPoint{Hash: tx.TxHash()})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, stake.ColdStakingTy, entry.ScriptClass())
	require.Equal(t, int64(10e8), entry.Amount())
	require.Equal(t, int32(300), entry.BlockHeight())

	// The spent coinbase is gone from the set.
	prevOut, _ := h.coinbaseOut(1)
	entry, err = h.chain.FetchUtxoEntry(prevOut)
	require.NoError(t, err)
	require.Nil(t, entry)
}

// coldStakingFixture is an active chain with a single cold staking output.
type coldStakingFixture struct {
	*chainHarness
	staking  *btcec.PrivateKey
	spending *btcec.PrivateKey
	outPoint wire.OutPoint
	pkScript []byte
	value    int64
}

// newColdStakingFixture returns a fixture whose output may be staked in the
// next block.
func newColdStakingFixture(t *testing.T) *coldStakingFixture {
	f := fundColdStakingFixture(t)
	f.mineTo(f.chain.BestSnapshot().Height + f.params.StakeMinConfirmations - 1)
	return f
}

// fundColdStakingFixture returns a fixture whose output was created by the
// tip block at height 300.
func fundColdStakingFixture(t *testing.T) *coldStakingFixture {
	h := newChainHarness(t)
	h.mineTo(299)

	f := &coldStakingFixture{
		chainHarness: h,
		staking:      testKey(2),
		spending:     testKey(3),
		value:        10e8,
	}
	out, err := stake.BuildColdStakingOutput(keyHash(f.staking),
		keyHash(f.spending), btcutil.Amount(f.value))
	require.NoError(t, err)
	tx := h.spendCoinbase(1, out.TxOut())
	h.accept(h.nextBlock(tx))

	f.outPoint = wire.OutPoint{Hash: tx.TxHash()}
	f.pkScript = out.PkScript
	return f
}

// claim returns a transaction claiming the cold staking output with the
// provided key.  A coinstake returns the value plus the stake reward to
// payTo, a regular transaction pays the value less a fee to payTo.
func (f *coldStakingFixture) claim(key *btcec.PrivateKey, coinStake bool,
	payTo []byte) *wire.MsgTx {

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&f.outPoint, nil, nil))
	if coinStake {
		tx.AddTxOut(wire.NewTxOut(0, nil))
		tx.AddTxOut(wire.NewTxOut(f.value+
			int64(f.params.CoinStakeReward), payTo))
	} else {
		tx.AddTxOut(wire.NewTxOut(f.value-1e4, payTo))
	}
	sigScript, err := stake.SignColdStakingInput(tx, 0, f.pkScript,
		txscript.SigHashAll, key, true)
	require.NoError(f.t, err)
	tx.TxIn[0].SignatureScript = sigScript
	return tx
}

// TestColdStakingAuthorization ensures the chain accepts claims of cold
// staking outputs only through the branch the claiming key controls.
func TestColdStakingAuthorization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		staking   bool
		coinStake bool
		toOther   bool
		err       stake.ErrorCode
		ok        bool
	}{{
		name: "spending key pays elsewhere",
		ok:   true,
	}, {
		name:      "staking key stakes in place",
		staking:   true,
		coinStake: true,
		ok:        true,
	}, {
		name:    "staking key pays elsewhere",
		staking: true,
		toOther: true,
		err:     stake.ErrStakeCustodyViolation,
	}, {
		name:      "staking key coinstake pays elsewhere",
		staking:   true,
		coinStake: true,
		toOther:   true,
		err:       stake.ErrStakeCustodyViolation,
	}, {
		name:      "spending key coinstake",
		coinStake: true,
		err:       stake.ErrInsufficientAuthorization,
	}}

	for _, test := range tests {
		f := newColdStakingFixture(t)
		key := f.spending
		if test.staking {
			key = f.staking
		}
		payTo := f.pkScript
		if test.toOther || (!test.coinStake && !test.staking) {
			payTo = f.chainHarness.pkScript
		}
		tx := f.claim(key, test.coinStake, payTo)

		err := f.chain.ProcessBlock(f.nextBlock(tx))
		if test.ok {
			require.NoError(t, err, test.name)
			entry, err := f.chain.FetchUtxoEntry(f.outPoint)
			require.NoError(t, err)
			require.Nil(t, entry, test.name)
			continue
		}

		require.True(t, IsErrorCode(err, ErrAuthorization), test.name)
		require.True(t, stake.IsErrorCode(err, test.err),
			"%s: %v", test.name, err)
		entry, err := f.chain.FetchUtxoEntry(f.outPoint)
		require.NoError(t, err)
		require.NotNil(t, entry, test.name)
	}
}

// TestCoinStakeOutput ensures outputs of an accepted coinstake are flagged as
// such and are subject to the coinbase maturity.
func TestCoinStakeOutput(t *testing.T) {
	t.Parallel()

	f := newColdStakingFixture(t)
	coinStake := f.claim(f.staking, true, f.pkScript)
	f.accept(f.nextBlock(coinStake))

	outPoint := wire.OutPoint{Hash: coinStake.TxHash(), Index: 1}
	entry, err := f.chain.FetchUtxoEntry(outPoint)
	require.NoError(t, err)
	require.True(t, entry.IsCoinStake())

	// The empty marker output is not part of the set.
	entry, err = f.chain.FetchUtxoEntry(wire.OutPoint{
		Hash: coinStake.TxHash(),
	})
	require.NoError(t, err)
	require.Nil(t, entry)

	// The spending key may not move the fresh coinstake output yet.
	f.outPoint = outPoint
	f.value = coinStake.TxOut[1].Value
	tx := f.claim(f.spending, false, f.chainHarness.pkScript)
	err = f.chain.ProcessBlock(f.nextBlock(tx))
	require.True(t, IsErrorCode(err, ErrImmatureSpend), spew.Sdump(err))

	f.mineTo(f.chain.BestSnapshot().Height + 9)
	f.accept(f.nextBlock(tx))

	// A coinstake minting more than the reward is rejected.
	f = newColdStakingFixture(t)
	coinStake = f.claim(f.staking, true, f.pkScript)
	coinStake.TxOut[1].Value++
	sigScript, err := stake.SignColdStakingInput(coinStake, 0, f.pkScript,
		txscript.SigHashAll, f.staking, true)
	require.NoError(t, err)
	coinStake.TxIn[0].SignatureScript = sigScript
	err = f.chain.ProcessBlock(f.nextBlock(coinStake))
	require.True(t, IsErrorCode(err, ErrSpendTooHigh), spew.Sdump(err))
}

// TestCoinStakeMaturity ensures a coinstake may only claim outputs with at
// least the stake minimum confirmations.
func TestCoinStakeMaturity(t *testing.T) {
	t.Parallel()

	f := fundColdStakingFixture(t)
	coinStake := f.claim(f.staking, true, f.pkScript)
	err := f.chain.ProcessBlock(f.nextBlock(coinStake))
	require.True(t, IsErrorCode(err, ErrImmatureStake), spew.Sdump(err))

	// One block short of the required depth.
	funded := f.chain.BestSnapshot().Height
	f.mineTo(funded + f.params.StakeMinConfirmations - 2)
	err = f.chain.ProcessBlock(f.nextBlock(coinStake))
	require.True(t, IsErrorCode(err, ErrImmatureStake), spew.Sdump(err))

	f.mineTo(funded + f.params.StakeMinConfirmations - 1)
	f.accept(f.nextBlock(coinStake))
}

// TestProcessBlockErrors ensures blocks violating the block level rules are
// rejected with the expected error codes and leave the tip untouched.
func TestProcessBlockErrors(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t)
	h.mineTo(20)
	subsidy := int64(h.params.BaseSubsidy)
	payBack := func() *wire.TxOut {
		return wire.NewTxOut(subsidy-1e4, h.pkScript)
	}

	tests := []struct {
		name  string
		block func() *btcutil.Block
		code  ErrorCode
	}{{
		name: "immature coinbase spend",
		block: func() *btcutil.Block {
			return h.nextBlock(h.spendCoinbase(15, payBack()))
		},
		code: ErrImmatureSpend,
	}, {
		name: "coinbase pays too much",
		block: func() *btcutil.Block {
			height := h.chain.BestSnapshot().Height + 1
			return h.nextBlockWithCoinbase(h.coinbase(height,
				subsidy+1))
		},
		code: ErrBadCoinbaseValue,
	}, {
		name: "output above input",
		block: func() *btcutil.Block {
			out := wire.NewTxOut(subsidy+1, h.pkScript)
			return h.nextBlock(h.spendCoinbase(2, out))
		},
		code: ErrSpendTooHigh,
	}, {
		name: "missing input",
		block: func() *btcutil.Block {
			tx := h.spendCoinbase(2, payBack())
			tx.TxIn[0].PreviousOutPoint.Index = 1
			return h.nextBlock(tx)
		},
		code: ErrMissingTxOut,
	}, {
		name: "double spend within block",
		block: func() *btcutil.Block {
			tx1 := h.spendCoinbase(2, payBack())
			tx2 := h.spendCoinbase(2, wire.NewTxOut(1e8, h.pkScript))
			return h.nextBlock(tx1, tx2)
		},
		code: ErrMissingTxOut,
	}, {
		name: "bad signature",
		block: func() *btcutil.Block {
			tx := h.spendCoinbase(2, payBack())
			tx.TxOut[0].Value--
			return h.nextBlock(tx)
		},
		code: ErrScriptValidation,
	}, {
		name: "bad merkle root",
		block: func() *btcutil.Block {
			block := h.nextBlock()
			block.MsgBlock().Header.MerkleRoot = chainhash.Hash{1}
			return btcutil.NewBlock(block.MsgBlock())
		},
		code: ErrBadMerkleRoot,
	}, {
		name: "does not extend tip",
		block: func() *btcutil.Block {
			block := h.nextBlock()
			block.MsgBlock().Header.PrevBlock = chainhash.Hash{1}
			return btcutil.NewBlock(block.MsgBlock())
		},
		code: ErrPrevBlockNotBest,
	}, {
		name: "no coinbase",
		block: func() *btcutil.Block {
			block := h.nextBlock(h.spendCoinbase(2, payBack()))
			msgBlock := block.MsgBlock()
			msgBlock.Transactions = msgBlock.Transactions[1:]
			return btcutil.NewBlock(msgBlock)
		},
		code: ErrFirstTxNotCoinbase,
	}, {
		name: "duplicate transaction",
		block: func() *btcutil.Block {
			tx := h.spendCoinbase(2, payBack())
			return h.nextBlock(tx, tx)
		},
		code: ErrDuplicateTx,
	}}

	for _, test := range tests {
		best := h.chain.BestSnapshot()
		err := h.chain.ProcessBlock(test.block())
		require.True(t, IsErrorCode(err, test.code), "%s: %v",
			test.name, err)
		require.Equal(t, best, h.chain.BestSnapshot(), test.name)
	}

	// The chain still accepts valid blocks spending in-block outputs.
	tx1 := h.spendCoinbase(2, payBack())
	tx1Hash := tx1.TxHash()
	tx2 := wire.NewMsgTx(wire.TxVersion)
	tx2.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&tx1Hash, 0), nil, nil))
	tx2.AddTxOut(wire.NewTxOut(subsidy-2e4, h.pkScript))
	sigScript, err := txscript.SignatureScript(tx2, 0, h.pkScript,
		txscript.SigHashAll, h.key, true)
	require.NoError(t, err)
	tx2.TxIn[0].SignatureScript = sigScript

	height := h.chain.BestSnapshot().Height + 1
	h.accept(h.nextBlockWithCoinbase(h.coinbase(height, subsidy+2e4),
		tx1, tx2))
}

// TestNotifications ensures subscribers are told about every connected block.
func TestNotifications(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t)
	var heights []int32
	h.chain.Subscribe(func(n *Notification) {
		require.Equal(t, NTBlockConnected, n.Type)
		data := n.Data.(*BlockConnectedNtfnsData)
		require.Equal(t, *data.Block.Hash(), h.chain.BestSnapshot().Hash)
		heights = append(heights, data.Height)
	})

	h.mineTo(3)
	require.Equal(t, []int32{1, 2, 3}, heights)

	// Rejected blocks are not announced.
	block := h.nextBlock()
	block.MsgBlock().Header.MerkleRoot = chainhash.Hash{}
	require.Error(t, h.chain.ProcessBlock(btcutil.NewBlock(block.MsgBlock())))
	require.Len(t, heights, 3)
}

// TestFetchUtxoView ensures the view for a transaction holds its inputs from
// the main chain.
func TestFetchUtxoView(t *testing.T) {
	t.Parallel()

	h := newChainHarness(t)
	h.mineTo(12)

	tx := h.spendCoinbase(2, wire.NewTxOut(1e8, h.pkScript))
	view, err := h.chain.FetchUtxoView(btcutil.NewTx(tx))
	require.NoError(t, err)

	prevOut, value := h.coinbaseOut(2)
	entry := view.LookupEntry(prevOut)
	require.NotNil(t, entry)
	require.Equal(t, value, entry.Amount())
	require.True(t, entry.IsCoinBase())
	require.Nil(t, view.LookupEntry(wire.OutPoint{Hash: tx.TxHash()}))

	_, err = CheckTransactionInputs(btcutil.NewTx(tx), 13, view, h.params)
	require.NoError(t, err)
	require.NoError(t, ValidateTransactionScripts(btcutil.NewTx(tx), view,
		txscript.StandardVerifyFlags, nil))
}
