// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package wire

import (
	"fmt"
	"io"
	"math"

	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
)

// MsgGetBlockTxn implements the Message interface and requests the
// transactions of a previously announced compact block that could not be
// resolved from the local transaction pool.  Indexes are absolute positions in
// the announced block, strictly ascending; on the wire they are stored
// differentially (first index verbatim, then gaps minus one) as varints.
type MsgGetBlockTxn struct {
	BlockHash chainhash.Hash
	Indexes   []uint32
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgGetBlockTxn) BtcDecode(r io.Reader, pver uint32, enc MessageEncoding) error {
	err := readElement(r, &msg.BlockHash)
	if err != nil {
		return err
	}

	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxBlockTxCount {
		str := fmt.Sprintf("too many requested transactions for a "+
			"block [count %d, max %d]", count, MaxBlockTxCount)
		return messageError("MsgGetBlockTxn.BtcDecode", str)
	}

	// Read the stored gaps in bounded chunks, restoring the absolute
	// indexes additively.  The running sum must stay within 32 bits.
	msg.Indexes = make([]uint32, 0, minUint64(count, cmpctBlockAllocChunk))
	offset := uint64(0)
	for uint64(len(msg.Indexes)) < count {
		chunk := minUint64(count-uint64(len(msg.Indexes)),
			cmpctBlockAllocChunk)
		for i := uint64(0); i < chunk; i++ {
			diff, err := ReadVarInt(r, pver)
			if err != nil {
				return err
			}
			index := diff + offset
			if index < diff || index > math.MaxUint32 {
				str := fmt.Sprintf("requested index overflows "+
					"32 bits [index %d]", index)
				return messageError("MsgGetBlockTxn.BtcDecode", str)
			}
			msg.Indexes = append(msg.Indexes, uint32(index))
			offset = index + 1
		}
	}

	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgGetBlockTxn) BtcEncode(w io.Writer, pver uint32, enc MessageEncoding) error {
	err := writeElement(w, &msg.BlockHash)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, pver, uint64(len(msg.Indexes)))
	if err != nil {
		return err
	}

	for i, index := range msg.Indexes {
		diff := uint64(index)
		if i > 0 {
			prev := msg.Indexes[i-1]
			if index <= prev {
				str := fmt.Sprintf("requested indexes not "+
					"strictly ascending [index %d after %d]",
					index, prev)
				return messageError("MsgGetBlockTxn.BtcEncode", str)
			}
			diff = uint64(index) - uint64(prev) - 1
		}
		err = WriteVarInt(w, pver, diff)
		if err != nil {
			return err
		}
	}

	return nil
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgGetBlockTxn) Command() string {
	return CmdGetBlockTxn
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgGetBlockTxn) MaxPayloadLength(pver uint32) uint32 {
	// Block hash + varint count + up to 5 varint bytes per requested
	// index.
	return chainhash.HashSize + 9 + MaxBlockTxCount*5
}

// NewMsgGetBlockTxn returns a new getblocktxn message that conforms to the
// Message interface.  The provided indexes must be strictly ascending.
func NewMsgGetBlockTxn(blockHash *chainhash.Hash, indexes []uint32) *MsgGetBlockTxn {
	return &MsgGetBlockTxn{
		BlockHash: *blockHash,
		Indexes:   indexes,
	}
}
