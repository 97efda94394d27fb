// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package wire

import (
	"fmt"
	"io"

	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
)

// MsgBlockTxn implements the Message interface and carries the transactions a
// peer requested with getblocktxn, in the order they were requested.  The
// block hash binds the response to the announcement it answers.
type MsgBlockTxn struct {
	BlockHash    chainhash.Hash
	Transactions []*MsgTx
}

// AddTransaction adds a transaction to the message.
func (msg *MsgBlockTxn) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgBlockTxn) BtcDecode(r io.Reader, pver uint32, enc MessageEncoding) error {
	err := readElement(r, &msg.BlockHash)
	if err != nil {
		return err
	}

	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxBlockTxCount {
		str := fmt.Sprintf("too many returned transactions for a "+
			"block [count %d, max %d]", count, MaxBlockTxCount)
		return messageError("MsgBlockTxn.BtcDecode", str)
	}

	// Grow in bounded chunks so the declared count has to be backed by
	// payload bytes before large allocations happen.
	msg.Transactions = make([]*MsgTx, 0, minUint64(count, cmpctBlockAllocChunk))
	for uint64(len(msg.Transactions)) < count {
		chunk := minUint64(count-uint64(len(msg.Transactions)),
			cmpctBlockAllocChunk)
		for i := uint64(0); i < chunk; i++ {
			tx := MsgTx{}
			err = tx.BtcDecode(r, pver, enc)
			if err != nil {
				return err
			}
			msg.Transactions = append(msg.Transactions, &tx)
		}
	}

	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgBlockTxn) BtcEncode(w io.Writer, pver uint32, enc MessageEncoding) error {
	err := writeElement(w, &msg.BlockHash)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, pver, uint64(len(msg.Transactions)))
	if err != nil {
		return err
	}

	for _, tx := range msg.Transactions {
		err = tx.BtcEncode(w, pver, enc)
		if err != nil {
			return err
		}
	}

	return nil
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgBlockTxn) Command() string {
	return CmdBlockTxn
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgBlockTxn) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}

// NewMsgBlockTxn returns a new blocktxn message that conforms to the Message
// interface.
func NewMsgBlockTxn(blockHash *chainhash.Hash) *MsgBlockTxn {
	return &MsgBlockTxn{
		BlockHash:    *blockHash,
		Transactions: make([]*MsgTx, 0),
	}
}

// NewMsgBlockTxnFromReq builds an empty response shell bound to the block a
// getblocktxn request named, sized for the number of requested transactions.
func NewMsgBlockTxnFromReq(req *MsgGetBlockTxn) *MsgBlockTxn {
	return &MsgBlockTxn{
		BlockHash:    req.BlockHash,
		Transactions: make([]*MsgTx, 0, len(req.Indexes)),
	}
}
