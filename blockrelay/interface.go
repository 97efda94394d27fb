// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package blockrelay

import (
	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
	"github.com/blockrelay/relaycore/model/wire"
)

// MempoolView is the contract a transaction pool has to satisfy for compact
// block reconstruction.  The pool hands out retention references rather than
// borrows into its storage because a PartialBlock outlives the pool scan: a
// referenced entry must stay reachable through Lookup even if the pool evicts
// it before the reconstruction finishes.
type MempoolView interface {
	// ScanLocked iterates every pool entry under the pool's shared lock.
	// The callback returning true takes one retention reference on the
	// entry.  The callback must not block or call back into the pool.
	ScanLocked(f func(txHash *chainhash.Hash, tx *wire.MsgTx) bool)

	// Unpin releases one retention reference taken during a ScanLocked
	// callback.
	Unpin(txHash *chainhash.Hash)

	// Lookup fetches a transaction.  It succeeds for every pool entry and
	// for removed entries that are still referenced.
	Lookup(txHash *chainhash.Hash) (*wire.MsgTx, bool)
}
