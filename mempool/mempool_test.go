// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockrelay/relaycore/blockrelay"
	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
	"github.com/blockrelay/relaycore/model/wire"
	"github.com/blockrelay/relaycore/testutil"
)

func TestAddAndLookup(t *testing.T) {
	tp := New()
	tx := testutil.NewTestTx(1)
	hash := tx.TxHash()

	_, err := tp.AddTransaction(tx)
	assert.NoError(t, err)
	assert.True(t, tp.HaveTransaction(&hash))
	assert.Equal(t, 1, tp.Count())

	got, ok := tp.Lookup(&hash)
	assert.True(t, ok)
	assert.Equal(t, tx, got)

	// A second add of the same transaction is refused.
	_, err = tp.AddTransaction(tx)
	assert.Error(t, err)
}

func TestNullTransactionRefused(t *testing.T) {
	tp := New()
	_, err := tp.AddTransaction(wire.NewMsgTx(wire.TxVersion))
	assert.Error(t, err)
}

func TestRecentlyRemovedRefused(t *testing.T) {
	tp := New()
	tx := testutil.NewTestTx(1)
	hash := tx.TxHash()

	_, err := tp.AddTransaction(tx)
	assert.NoError(t, err)
	tp.RemoveTransaction(&hash)
	assert.False(t, tp.HaveTransaction(&hash))

	// Re-adding a transaction that just left the pool is refused.
	_, err = tp.AddTransaction(tx)
	assert.Error(t, err)
}

func TestScanPinsSurviveRemoval(t *testing.T) {
	tp := New()
	tx := testutil.NewTestTx(1)
	hash := tx.TxHash()
	_, err := tp.AddTransaction(tx)
	assert.NoError(t, err)

	// Take a retention reference during the scan.
	tp.ScanLocked(func(h *chainhash.Hash, _ *wire.MsgTx) bool {
		return *h == hash
	})
	assert.Equal(t, int32(1), tp.refCount(&hash))

	// The entry survives removal while referenced.
	tp.RemoveTransaction(&hash)
	assert.False(t, tp.HaveTransaction(&hash))
	got, ok := tp.Lookup(&hash)
	assert.True(t, ok)
	assert.Equal(t, tx, got)

	// Releasing the last reference drops it for good.
	tp.Unpin(&hash)
	_, ok = tp.Lookup(&hash)
	assert.False(t, ok)
	assert.Equal(t, int32(0), tp.refCount(&hash))
}

func TestUnpinWhileStillPooled(t *testing.T) {
	tp := New()
	tx := testutil.NewTestTx(1)
	hash := tx.TxHash()
	_, err := tp.AddTransaction(tx)
	assert.NoError(t, err)

	tp.ScanLocked(func(h *chainhash.Hash, _ *wire.MsgTx) bool {
		return true
	})
	tp.Unpin(&hash)

	// The entry is still pooled; only the reference went away.
	assert.True(t, tp.HaveTransaction(&hash))
	assert.Equal(t, int32(0), tp.refCount(&hash))
}

// TestPinBalanceThroughReconstruction drives a full reconstruction against a
// real pool and checks every retention count returns to zero.
func TestPinBalanceThroughReconstruction(t *testing.T) {
	block := testutil.NewTestBlock(5)
	tp := New()
	for _, tx := range block.Transactions[1:] {
		_, err := tp.AddTransaction(tx)
		assert.NoError(t, err)
	}

	ann, err := wire.NewMsgCmpctBlockFromBlock(block)
	assert.NoError(t, err)

	pb := blockrelay.NewPartialBlock(tp)
	assert.Equal(t, blockrelay.StatusOK, pb.InitData(ann))

	// One reference per resolved non-prefilled slot.
	for _, tx := range block.Transactions[1:] {
		hash := tx.TxHash()
		assert.Equal(t, int32(1), tp.refCount(&hash))
	}

	full, status := pb.FillBlock(nil)
	assert.Equal(t, blockrelay.StatusOK, status)
	wantBytes, err := block.SerializeToBytes()
	assert.NoError(t, err)
	gotBytes, err := full.SerializeToBytes()
	assert.NoError(t, err)
	assert.Equal(t, wantBytes, gotBytes)

	pb.Close()
	for _, tx := range block.Transactions[1:] {
		hash := tx.TxHash()
		assert.Equal(t, int32(0), tp.refCount(&hash))
	}
}

// TestPinBalanceWithoutFill checks an abandoned reconstruction releases its
// references, including for entries evicted in the meantime.
func TestPinBalanceWithoutFill(t *testing.T) {
	block := testutil.NewTestBlock(4)
	tp := New()
	for _, tx := range block.Transactions[1:] {
		_, err := tp.AddTransaction(tx)
		assert.NoError(t, err)
	}

	ann, err := wire.NewMsgCmpctBlockFromBlock(block)
	assert.NoError(t, err)

	pb := blockrelay.NewPartialBlock(tp)
	assert.Equal(t, blockrelay.StatusOK, pb.InitData(ann))

	// Evict one referenced entry before the reconstruction finishes.
	evicted := block.Transactions[2].TxHash()
	tp.RemoveTransaction(&evicted)
	_, ok := tp.Lookup(&evicted)
	assert.True(t, ok)

	// Dropping the reconstruction releases everything.
	pb.Close()
	for _, tx := range block.Transactions[1:] {
		hash := tx.TxHash()
		assert.Equal(t, int32(0), tp.refCount(&hash))
	}
	_, ok = tp.Lookup(&evicted)
	assert.False(t, ok)

	// Close is idempotent.
	pb.Close()
	for _, tx := range block.Transactions[1:] {
		hash := tx.TxHash()
		assert.Equal(t, int32(0), tp.refCount(&hash))
	}
}
