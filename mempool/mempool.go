// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package mempool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/blockrelay/relaycore/blockrelay"
	"github.com/blockrelay/relaycore/logger"
	"github.com/blockrelay/relaycore/metrics"
	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
	"github.com/blockrelay/relaycore/model/wire"
)

// TxPool satisfies the view the compact block reconstructor consumes.
var _ blockrelay.MempoolView = (*TxPool)(nil)

// rejectedCacheSize is the number of recently removed transaction ids kept
// around so a re-broadcast of a transaction that just left the pool can be
// refused without deserializing it again.
const rejectedCacheSize = 5000

// TxDesc contains a transaction in the pool along with metadata recorded when
// it was accepted.
type TxDesc struct {
	Tx *wire.MsgTx

	// Added is the time when the entry was accepted into the pool.
	Added time.Time
}

// entry wraps a pool transaction together with the retention count held by
// in-flight block reconstructions.  The count is adjusted atomically because
// references are taken while the pool scan only holds the shared lock.
type entry struct {
	desc TxDesc
	refs int32
}

// TxPool holds pending transactions keyed by their hash.  Entries removed
// from the pool while a reconstruction still references them are parked in the
// retained set until the last reference is released, so a retention reference
// guarantees Lookup keeps succeeding across evictions.
type TxPool struct {
	mtx      sync.RWMutex
	pool     map[chainhash.Hash]*entry
	retained map[chainhash.Hash]*entry
	rejected *lru.Cache
}

// New returns a new empty transaction pool.
func New() *TxPool {
	rejected, err := lru.New(rejectedCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &TxPool{
		pool:     make(map[chainhash.Hash]*entry),
		retained: make(map[chainhash.Hash]*entry),
		rejected: rejected,
	}
}

// AddTransaction adds a transaction to the pool.  A transaction that is
// already present, or whose id was removed from the pool recently, is
// refused.
func (tp *TxPool) AddTransaction(tx *wire.MsgTx) (*TxDesc, error) {
	if tx.IsNull() {
		return nil, fmt.Errorf("refusing null transaction")
	}
	hash := tx.TxHash()

	tp.mtx.Lock()
	defer tp.mtx.Unlock()

	if _, exist := tp.pool[hash]; exist {
		return nil, fmt.Errorf("transaction %v already in pool", hash)
	}
	if tp.rejected.Contains(hash) {
		return nil, fmt.Errorf("transaction %v was removed recently", hash)
	}

	e := &entry{
		desc: TxDesc{
			Tx:    tx,
			Added: time.Now(),
		},
	}
	tp.pool[hash] = e
	metrics.Metric.PendingTxNum.Set(float64(len(tp.pool)))
	logger.MempoolLogger().Debugf("Accepted transaction %v (pool size %d)",
		hash, len(tp.pool))
	return &e.desc, nil
}

// RemoveTransaction removes the transaction with the given hash from the
// pool.  An entry still referenced by an in-flight reconstruction is parked
// in the retained set instead of being dropped, and survives until the last
// reference is released.
func (tp *TxPool) RemoveTransaction(txHash *chainhash.Hash) {
	tp.mtx.Lock()
	defer tp.mtx.Unlock()

	e, exist := tp.pool[*txHash]
	if !exist {
		return
	}
	delete(tp.pool, *txHash)
	tp.rejected.Add(*txHash, struct{}{})

	if atomic.LoadInt32(&e.refs) > 0 {
		tp.retained[*txHash] = e
		metrics.Metric.RetainedTxNum.Set(float64(len(tp.retained)))
		logger.MempoolLogger().Debugf("Retaining removed transaction %v "+
			"(%d references)", txHash, atomic.LoadInt32(&e.refs))
	}
	metrics.Metric.PendingTxNum.Set(float64(len(tp.pool)))
}

// HaveTransaction returns whether the pool currently contains the transaction
// with the given hash.  Retained entries do not count; they are only
// reachable through Lookup.
func (tp *TxPool) HaveTransaction(txHash *chainhash.Hash) bool {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()

	_, exist := tp.pool[*txHash]
	return exist
}

// Count returns the current number of transactions in the pool.
func (tp *TxPool) Count() int {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()

	return len(tp.pool)
}

// TxHashes returns the hashes of every transaction currently in the pool.
func (tp *TxPool) TxHashes() []chainhash.Hash {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()

	hashes := make([]chainhash.Hash, 0, len(tp.pool))
	for hash := range tp.pool {
		hashes = append(hashes, hash)
	}
	return hashes
}

// ScanLocked iterates every pool entry under the pool's shared lock.  The
// callback returning true takes one retention reference on the entry; the
// reference must eventually be released with Unpin.  The lock is held for
// exactly the duration of the scan, so the callback must not block or call
// back into the pool.
func (tp *TxPool) ScanLocked(f func(txHash *chainhash.Hash, tx *wire.MsgTx) bool) {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()

	for hash, e := range tp.pool {
		hash := hash
		if f(&hash, e.desc.Tx) {
			atomic.AddInt32(&e.refs, 1)
		}
	}
}

// Unpin releases one retention reference taken during a ScanLocked callback.
// When the last reference on an entry that has already left the pool is
// released, the entry is dropped.
func (tp *TxPool) Unpin(txHash *chainhash.Hash) {
	tp.mtx.Lock()
	defer tp.mtx.Unlock()

	e, exist := tp.pool[*txHash]
	if !exist {
		e, exist = tp.retained[*txHash]
		if !exist {
			logger.MempoolLogger().Warnf("Unpin of unknown "+
				"transaction %v", txHash)
			return
		}
	}

	if atomic.AddInt32(&e.refs, -1) == 0 {
		if _, parked := tp.retained[*txHash]; parked {
			delete(tp.retained, *txHash)
			metrics.Metric.RetainedTxNum.Set(float64(len(tp.retained)))
		}
	}
}

// Lookup fetches the transaction with the given hash.  It succeeds for every
// pool entry and for removed entries that are still referenced.
func (tp *TxPool) Lookup(txHash *chainhash.Hash) (*wire.MsgTx, bool) {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()

	if e, exist := tp.pool[*txHash]; exist {
		return e.desc.Tx, true
	}
	if e, exist := tp.retained[*txHash]; exist {
		return e.desc.Tx, true
	}
	return nil, false
}

// refCount returns the current retention count for the given transaction.
// The tests use it to check reference balance.
func (tp *TxPool) refCount(txHash *chainhash.Hash) int32 {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()

	if e, exist := tp.pool[*txHash]; exist {
		return atomic.LoadInt32(&e.refs)
	}
	if e, exist := tp.retained[*txHash]; exist {
		return atomic.LoadInt32(&e.refs)
	}
	return 0
}
