// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package testutil

import (
	"encoding/binary"
	"time"

	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
	"github.com/blockrelay/relaycore/model/wire"
)

// fakeBlockTime keeps generated headers deterministic across test runs.
var fakeBlockTime = time.Unix(1560000000, 0)

// NewTestTx builds a deterministic single-input, single-output transaction.
// Distinct seeds yield transactions with distinct hashes.
func NewTestTx(seed uint32) *wire.MsgTx {
	var prevHash chainhash.Hash
	binary.LittleEndian.PutUint32(prevHash[:4], seed)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, seed), []byte{0x51}))
	tx.AddTxOut(wire.NewTxOut(int64(seed)*1000, []byte{0x76, 0xa9, byte(seed)}))
	return tx
}

// NewTestCoinbase builds a deterministic coinbase-shaped transaction: a
// single input spending the all-zero outpoint with the max index.
func NewTestCoinbase(height uint32) *wire.MsgTx {
	var zero chainhash.Hash
	script := make([]byte, 4)
	binary.LittleEndian.PutUint32(script, height)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&zero, 0xffffffff), script))
	tx.AddTxOut(wire.NewTxOut(5000000000, []byte{0x76, 0xa9, 0x00}))
	return tx
}

// NewTestBlock builds a deterministic block with a coinbase followed by
// numTx-1 regular transactions.  The header is never null.
func NewTestBlock(numTx int) *wire.MsgBlock {
	var prevBlock, merkleRoot chainhash.Hash
	prevBlock[0] = 0x01
	merkleRoot[0] = 0x02

	hdr := wire.NewBlockHeader(wire.BlockVersion, &prevBlock, &merkleRoot,
		0x1d00ffff, 0x9962e301)
	hdr.Timestamp = fakeBlockTime

	block := wire.NewMsgBlock(hdr)
	block.AddTransaction(NewTestCoinbase(1))
	for i := 1; i < numTx; i++ {
		block.AddTransaction(NewTestTx(uint32(i)))
	}
	return block
}
