// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package wire

import (
	"encoding/binary"
	"time"

	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
)

// fakeBlockTime keeps generated headers deterministic across test runs.
var fakeBlockTime = time.Unix(1560000000, 0)

// fakeTx returns a deterministic single-input, single-output transaction.
// Distinct seeds yield transactions with distinct hashes.
func fakeTx(seed uint32) *MsgTx {
	var prevHash chainhash.Hash
	binary.LittleEndian.PutUint32(prevHash[:4], seed)

	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(NewTxIn(NewOutPoint(&prevHash, seed), []byte{0x51}))
	tx.AddTxOut(NewTxOut(int64(seed)*1000, []byte{0x76, 0xa9, byte(seed)}))
	return tx
}

// fakeCoinbase returns a deterministic coinbase-shaped transaction.
func fakeCoinbase() *MsgTx {
	var zero chainhash.Hash
	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(NewTxIn(NewOutPoint(&zero, 0xffffffff), []byte{0x04, 0x01, 0x00, 0x00, 0x00}))
	tx.AddTxOut(NewTxOut(5000000000, []byte{0x76, 0xa9, 0x00}))
	return tx
}

// fakeHeader returns a deterministic non-null block header.
func fakeHeader() BlockHeader {
	var prevBlock, merkleRoot chainhash.Hash
	prevBlock[0] = 0x01
	merkleRoot[0] = 0x02

	hdr := NewBlockHeader(BlockVersion, &prevBlock, &merkleRoot,
		0x1d00ffff, 0x9962e301)
	hdr.Timestamp = fakeBlockTime
	return *hdr
}

// fakeBlock returns a deterministic block with a coinbase followed by
// numTx-1 regular transactions.
func fakeBlock(numTx int) *MsgBlock {
	hdr := fakeHeader()
	block := NewMsgBlock(&hdr)
	block.AddTransaction(fakeCoinbase())
	for i := 1; i < numTx; i++ {
		block.AddTransaction(fakeTx(uint32(i)))
	}
	return block
}
