// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package wire

import (
	"fmt"
	"io"
	"math"

	"lukechampine.com/frand"

	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
)

// MaxBlockTxCount is the maximum number of transactions a single block could
// possibly announce.  It is a cheap decode-time bound derived from the
// consensus block size ceiling and the minimum possible transaction size, and
// rejects hostile announcements before any large allocation happens.
const MaxBlockTxCount = MaxBlockPayload / MinTxPayload

// cmpctBlockAllocChunk bounds the growth of decode-time slices.  Declared
// counts are not trusted; slices grow by at most this many entries between
// reads so a forged count cannot force a huge allocation up front.
const cmpctBlockAllocChunk = 1000

// PrefilledTx is a transaction shipped in full inside a compact block
// announcement together with its absolute position in the block.  The sender
// prefills transactions it expects the receiver not to have, always including
// the coinbase.
type PrefilledTx struct {
	Index uint16
	Tx    *MsgTx
}

// MsgCmpctBlock implements the Message interface and represents a compact
// block announcement: the block header, a per-announcement nonce, the 48-bit
// short IDs of most transactions, and the handful of prefilled transactions
// carried in full.  Prefilled indexes are stored differentially on the wire
// (first index verbatim, then gaps minus one) which makes strictly ascending
// order a free decode-time guarantee; in memory the indexes are absolute.
//
// The selector digest keying the short ID function is derived from the header
// and nonce when the message is built or decoded and is immutable afterwards.
type MsgCmpctBlock struct {
	Header       BlockHeader
	Nonce        uint64
	ShortIDs     []uint64
	PrefilledTxs []PrefilledTx

	selector chainhash.Hash
	sipKey0  uint64
	sipKey1  uint64
}

// fillSelector recomputes the selector digest and SipHash key words from the
// current header and nonce.
func (msg *MsgCmpctBlock) fillSelector() {
	msg.selector = shortIDSelector(&msg.Header, msg.Nonce)
	msg.sipKey0, msg.sipKey1 = shortIDKeys(&msg.selector)
}

// Selector returns the 32-byte digest derived from the header and nonce whose
// leading 128 bits key the short ID function.
func (msg *MsgCmpctBlock) Selector() chainhash.Hash {
	return msg.selector
}

// ShortID computes the 48-bit fingerprint of the given transaction hash under
// this announcement's selector.
func (msg *MsgCmpctBlock) ShortID(txHash *chainhash.Hash) uint64 {
	return shortID(msg.sipKey0, msg.sipKey1, txHash)
}

// BlockTxCount returns the total number of transactions in the announced
// block.
func (msg *MsgCmpctBlock) BlockTxCount() uint32 {
	return uint32(len(msg.ShortIDs) + len(msg.PrefilledTxs))
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgCmpctBlock) BtcDecode(r io.Reader, pver uint32, enc MessageEncoding) error {
	err := readBlockHeader(r, pver, &msg.Header)
	if err != nil {
		return err
	}

	msg.Nonce, err = binarySerializer.Uint64(r, littleEndian)
	if err != nil {
		return err
	}

	shortIDCount, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if shortIDCount > MaxBlockTxCount {
		str := fmt.Sprintf("too many short IDs for a block [count %d, "+
			"max %d]", shortIDCount, MaxBlockTxCount)
		return messageError("MsgCmpctBlock.BtcDecode", str)
	}

	// Grow the slice in bounded chunks and interleave reads so the declared
	// count has to be backed by actual payload bytes.
	msg.ShortIDs = make([]uint64, 0, minUint64(shortIDCount, cmpctBlockAllocChunk))
	for uint64(len(msg.ShortIDs)) < shortIDCount {
		chunk := minUint64(shortIDCount-uint64(len(msg.ShortIDs)),
			cmpctBlockAllocChunk)
		for i := uint64(0); i < chunk; i++ {
			sid, err := readShortID(r)
			if err != nil {
				return err
			}
			msg.ShortIDs = append(msg.ShortIDs, sid)
		}
	}

	prefilledCount, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if shortIDCount+prefilledCount > MaxBlockTxCount {
		str := fmt.Sprintf("announcement names too many transactions "+
			"[count %d, max %d]", shortIDCount+prefilledCount,
			MaxBlockTxCount)
		return messageError("MsgCmpctBlock.BtcDecode", str)
	}

	msg.PrefilledTxs = make([]PrefilledTx, 0,
		minUint64(prefilledCount, cmpctBlockAllocChunk))
	lastIndex := -1
	for uint64(len(msg.PrefilledTxs)) < prefilledCount {
		chunk := minUint64(prefilledCount-uint64(len(msg.PrefilledTxs)),
			cmpctBlockAllocChunk)
		for i := uint64(0); i < chunk; i++ {
			diff, err := ReadVarInt(r, pver)
			if err != nil {
				return err
			}

			// Restore the absolute index from the stored gap and
			// make sure the running sum still fits the 16-bit
			// index space.
			if diff > math.MaxUint16 {
				str := fmt.Sprintf("prefilled index gap too "+
					"large [gap %d, max %d]", diff,
					math.MaxUint16)
				return messageError("MsgCmpctBlock.BtcDecode", str)
			}
			index := int64(lastIndex) + 1 + int64(diff)
			if index > math.MaxUint16 {
				str := fmt.Sprintf("prefilled index overflow "+
					"[index %d, max %d]", index,
					math.MaxUint16)
				return messageError("MsgCmpctBlock.BtcDecode", str)
			}
			lastIndex = int(index)

			tx := MsgTx{}
			err = tx.BtcDecode(r, pver, enc)
			if err != nil {
				return err
			}
			msg.PrefilledTxs = append(msg.PrefilledTxs, PrefilledTx{
				Index: uint16(index),
				Tx:    &tx,
			})
		}
	}

	msg.fillSelector()
	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgCmpctBlock) BtcEncode(w io.Writer, pver uint32, enc MessageEncoding) error {
	err := writeBlockHeader(w, pver, &msg.Header)
	if err != nil {
		return err
	}

	err = binarySerializer.PutUint64(w, littleEndian, msg.Nonce)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, pver, uint64(len(msg.ShortIDs)))
	if err != nil {
		return err
	}
	for _, sid := range msg.ShortIDs {
		err = writeShortID(w, sid)
		if err != nil {
			return err
		}
	}

	err = WriteVarInt(w, pver, uint64(len(msg.PrefilledTxs)))
	if err != nil {
		return err
	}
	lastIndex := -1
	for _, pt := range msg.PrefilledTxs {
		if int(pt.Index) <= lastIndex {
			str := fmt.Sprintf("prefilled indexes not strictly "+
				"ascending [index %d after %d]", pt.Index,
				lastIndex)
			return messageError("MsgCmpctBlock.BtcEncode", str)
		}
		diff := uint64(int(pt.Index) - lastIndex - 1)
		lastIndex = int(pt.Index)

		err = WriteVarInt(w, pver, diff)
		if err != nil {
			return err
		}
		err = pt.Tx.BtcEncode(w, pver, enc)
		if err != nil {
			return err
		}
	}

	return nil
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgCmpctBlock) Command() string {
	return CmdCmpctBlock
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgCmpctBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}

// NewMsgCmpctBlockFromBlock builds a compact announcement for the given block
// under a fresh random nonce.  The coinbase is always prefilled at index 0 and
// every other transaction is referenced by its short ID.  Callers relaying a
// block they expect peers to be missing pieces of may append further prefilled
// transactions before encoding, as long as the indexes stay ascending.
func NewMsgCmpctBlockFromBlock(block *MsgBlock) (*MsgCmpctBlock, error) {
	if len(block.Transactions) == 0 {
		return nil, messageError("NewMsgCmpctBlockFromBlock",
			"block has no coinbase transaction")
	}
	if len(block.Transactions) > MaxBlockTxCount {
		str := fmt.Sprintf("block has too many transactions [count "+
			"%d, max %d]", len(block.Transactions), MaxBlockTxCount)
		return nil, messageError("NewMsgCmpctBlockFromBlock", str)
	}

	msg := &MsgCmpctBlock{
		Header:       block.Header,
		Nonce:        frand.Uint64n(math.MaxUint64),
		ShortIDs:     make([]uint64, 0, len(block.Transactions)-1),
		PrefilledTxs: make([]PrefilledTx, 0, 1),
	}
	msg.fillSelector()

	msg.PrefilledTxs = append(msg.PrefilledTxs, PrefilledTx{
		Index: 0,
		Tx:    block.Transactions[0],
	})
	for _, tx := range block.Transactions[1:] {
		txHash := tx.TxHash()
		msg.ShortIDs = append(msg.ShortIDs, msg.ShortID(&txHash))
	}

	return msg, nil
}

// readShortID reads a 6-byte little-endian short transaction ID from r.
func readShortID(r io.Reader) (uint64, error) {
	var buf [8]byte
	_, err := io.ReadFull(r, buf[:ShortIDSize])
	if err != nil {
		return 0, err
	}
	return littleEndian.Uint64(buf[:]), nil
}

// writeShortID writes the low 6 bytes of sid to w in little-endian order.
func writeShortID(w io.Writer, sid uint64) error {
	var buf [8]byte
	littleEndian.PutUint64(buf[:], sid)
	_, err := w.Write(buf[:ShortIDSize])
	return err
}

// minUint64 returns the smaller of two uint64 values.
func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
