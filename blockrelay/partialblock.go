// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package blockrelay

import (
	"fmt"

	"github.com/blockrelay/relaycore/logger"
	"github.com/blockrelay/relaycore/metrics"
	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
	"github.com/blockrelay/relaycore/model/wire"
)

// zeroHash marks a slot whose transaction hash is not known yet.  A real
// transaction id is never all zeros.
var zeroHash chainhash.Hash

// PartialBlock reconstructs a full block from a compact announcement and the
// local transaction pool.  The zero value is empty; a single InitData call
// resolves the announcement against the pool, after which the missing
// transactions reported by UnknownIndexes can be requested from the peer and
// handed to FillBlock.  Close must be called in every state to release the
// retention references taken on pool entries.
//
// A PartialBlock is owned by a single goroutine and is not safe for
// concurrent use.
type PartialBlock struct {
	header    wire.BlockHeader
	txHashes  []chainhash.Hash
	prefilled []wire.PrefilledTx
	pool      MempoolView
	closed    bool
}

// NewPartialBlock returns an empty PartialBlock bound to the given pool.
func NewPartialBlock(pool MempoolView) *PartialBlock {
	return &PartialBlock{pool: pool}
}

// InitData resolves a compact announcement against the transaction pool.
//
// StatusInvalid reports an announcement no honest peer produces: a null
// header, an announcement naming no transactions at all or more than a block
// can hold, a null or unreachable prefilled transaction.  StatusFailed
// reports a short ID collision between two of the announcement's short IDs;
// the announcement is well formed but unusable, and the peer may retry under
// a fresh nonce.
//
// On StatusOK every prefilled slot is known, and exactly one retention
// reference has been taken on the pool entry behind every other known slot.
// Failures take no references.
func (pb *PartialBlock) InitData(ann *wire.MsgCmpctBlock) ReadStatus {
	if ann.Header.IsNull() ||
		(len(ann.ShortIDs) == 0 && len(ann.PrefilledTxs) == 0) {
		metrics.Metric.ReconstructionCnt.WithLabelValues("invalid").Inc()
		return StatusInvalid
	}
	if ann.BlockTxCount() > wire.MaxBlockTxCount {
		metrics.Metric.ReconstructionCnt.WithLabelValues("invalid").Inc()
		return StatusInvalid
	}

	if !pb.header.IsNull() || len(pb.txHashes) != 0 {
		panic("blockrelay: InitData on a non-empty PartialBlock")
	}

	txHashes := make([]chainhash.Hash, ann.BlockTxCount())
	prefilled := make([]wire.PrefilledTx, 0, len(ann.PrefilledTxs))
	lastIndex := -1
	for i, pt := range ann.PrefilledTxs {
		if pt.Tx.IsNull() {
			metrics.Metric.ReconstructionCnt.WithLabelValues("invalid").Inc()
			return StatusInvalid
		}
		if int(pt.Index) <= lastIndex {
			metrics.Metric.ReconstructionCnt.WithLabelValues("invalid").Inc()
			return StatusInvalid
		}
		lastIndex = int(pt.Index)

		// A prefilled transaction claiming a position past the ones
		// reachable with all short IDs plus the prefills seen so far
		// names a slot nothing can ever fill.
		if int(pt.Index) > len(ann.ShortIDs)+i {
			metrics.Metric.ReconstructionCnt.WithLabelValues("invalid").Inc()
			return StatusInvalid
		}

		txHashes[pt.Index] = pt.Tx.TxHash()
		prefilled = append(prefilled, pt)
	}

	// Map each short ID to its slot in the block, skipping over the slots
	// the prefilled transactions occupy.
	shortIDs := make(map[uint64]uint16, len(ann.ShortIDs))
	indexOffset := 0
	for i := range ann.ShortIDs {
		for indexOffset < len(prefilled) &&
			uint16(i+indexOffset) == prefilled[indexOffset].Index {
			indexOffset++
		}
		shortIDs[ann.ShortIDs[i]] = uint16(i + indexOffset)
	}
	if len(shortIDs) != len(ann.ShortIDs) {
		// Two short IDs collided.  The peer can rebuild the
		// announcement under a fresh nonce.
		logger.RelayLogger().Debugf("Short ID collision in announcement "+
			"for block %v", ann.Header.BlockHash())
		metrics.Metric.ReconstructionCnt.WithLabelValues("failed").Inc()
		return StatusFailed
	}

	pb.header = ann.Header
	pb.txHashes = txHashes
	pb.prefilled = prefilled

	// Resolve the remaining slots against the pool.  The shared lock is
	// held for exactly the duration of the scan; matched entries get a
	// retention reference so they survive eviction until Close.  Two pool
	// entries fingerprinting to the same short ID are not an error here:
	// the first one scanned takes the slot and the second is not mapped; a
	// wrong pick surfaces at block validation, not here.
	pb.pool.ScanLocked(func(txHash *chainhash.Hash, tx *wire.MsgTx) bool {
		sid := ann.ShortID(txHash)
		slot, ok := shortIDs[sid]
		if !ok {
			return false
		}
		pb.txHashes[slot] = *txHash
		delete(shortIDs, sid)
		return true
	})

	if len(shortIDs) > 0 {
		metrics.Metric.MissingTxCnt.Add(float64(len(shortIDs)))
	}
	logger.RelayLogger().Debugf("Initialized partial block %v: %d "+
		"transactions, %d prefilled, %d missing",
		pb.header.BlockHash(), len(pb.txHashes), len(pb.prefilled),
		len(shortIDs))
	metrics.Metric.AnnouncementCnt.WithLabelValues("in").Inc()
	return StatusOK
}

// IsTxAvailable returns whether the transaction at the given position in the
// block is already known, either prefilled or resolved from the pool.
func (pb *PartialBlock) IsTxAvailable(index int) bool {
	if pb.header.IsNull() {
		panic("blockrelay: IsTxAvailable before InitData")
	}
	if index < 0 || index >= len(pb.txHashes) {
		panic(fmt.Sprintf("blockrelay: slot index %d out of range [0, %d)",
			index, len(pb.txHashes)))
	}
	return pb.txHashes[index] != zeroHash
}

// UnknownIndexes returns the positions of the transactions that could not be
// resolved locally, in ascending order.  The result is what a getblocktxn
// request for this block should carry.
func (pb *PartialBlock) UnknownIndexes() []uint32 {
	if pb.header.IsNull() {
		panic("blockrelay: UnknownIndexes before InitData")
	}
	indexes := make([]uint32, 0)
	for i := range pb.txHashes {
		if pb.txHashes[i] == zeroHash {
			indexes = append(indexes, uint32(i))
		}
	}
	return indexes
}

// FillBlock assembles the full block, consuming the peer-supplied missing
// transactions in slot order.  StatusInvalid reports a response carrying too
// few or too many transactions.  The assembled block matches the producer's
// block byte for byte unless a short ID collision resolved a slot to the
// wrong pool entry; detecting that is the block validator's job.
func (pb *PartialBlock) FillBlock(missing []*wire.MsgTx) (*wire.MsgBlock, ReadStatus) {
	if pb.header.IsNull() {
		panic("blockrelay: FillBlock before InitData")
	}

	block := wire.MsgBlock{
		Header:       pb.header,
		Transactions: make([]*wire.MsgTx, len(pb.txHashes)),
	}

	missingOffset := 0
	prefilledOffset := 0
	for i := range pb.txHashes {
		if pb.txHashes[i] == zeroHash {
			if missingOffset >= len(missing) {
				metrics.Metric.ReconstructionCnt.WithLabelValues("invalid").Inc()
				return nil, StatusInvalid
			}
			block.Transactions[i] = missing[missingOffset]
			missingOffset++
			continue
		}

		if prefilledOffset < len(pb.prefilled) &&
			int(pb.prefilled[prefilledOffset].Index) == i {
			block.Transactions[i] = pb.prefilled[prefilledOffset].Tx
			prefilledOffset++
			continue
		}

		// The retention reference taken in InitData keeps the entry
		// reachable, so this lookup cannot miss.
		tx, ok := pb.pool.Lookup(&pb.txHashes[i])
		if !ok {
			panic(fmt.Sprintf("blockrelay: referenced transaction "+
				"%v vanished from the pool", pb.txHashes[i]))
		}
		block.Transactions[i] = tx
	}
	if prefilledOffset != len(pb.prefilled) {
		panic("blockrelay: prefilled transactions left after fill")
	}
	if missingOffset != len(missing) {
		metrics.Metric.ReconstructionCnt.WithLabelValues("invalid").Inc()
		return nil, StatusInvalid
	}

	logger.RelayLogger().Debugf("Filled block %v with %d peer-supplied "+
		"transactions", block.BlockHash(), len(missing))
	metrics.Metric.ReconstructionCnt.WithLabelValues("ok").Inc()
	return &block, StatusOK
}

// Close releases the retention references taken by InitData.  It is safe to
// call in any state, including after a failed InitData, and is idempotent.
func (pb *PartialBlock) Close() {
	if pb.closed {
		return
	}
	pb.closed = true

	if pb.header.IsNull() {
		return
	}

	// Release exactly the references taken in InitData: one per known
	// slot that is not prefilled.
	prefilledOffset := 0
	for i := range pb.txHashes {
		if pb.txHashes[i] == zeroHash {
			continue
		}
		if prefilledOffset < len(pb.prefilled) &&
			int(pb.prefilled[prefilledOffset].Index) == i {
			prefilledOffset++
			continue
		}
		pb.pool.Unpin(&pb.txHashes[i])
	}
}
