// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package wire

import (
	"bytes"
	"reflect"
	"testing"
)

// TestCmpctBlockFromBlock tests the producer-side construction invariants.
func TestCmpctBlockFromBlock(t *testing.T) {
	block := fakeBlock(5)
	msg, err := NewMsgCmpctBlockFromBlock(block)
	if err != nil {
		t.Fatalf("NewMsgCmpctBlockFromBlock failure, err: %v", err)
	}

	if len(msg.PrefilledTxs) != 1 {
		t.Fatalf("prefilled count got: %d, want: 1", len(msg.PrefilledTxs))
	}
	if msg.PrefilledTxs[0].Index != 0 {
		t.Errorf("coinbase prefilled at index %d, want 0",
			msg.PrefilledTxs[0].Index)
	}
	if len(msg.ShortIDs) != len(block.Transactions)-1 {
		t.Errorf("short ID count got: %d, want: %d", len(msg.ShortIDs),
			len(block.Transactions)-1)
	}
	if msg.BlockTxCount() != uint32(len(block.Transactions)) {
		t.Errorf("BlockTxCount got: %d, want: %d", msg.BlockTxCount(),
			len(block.Transactions))
	}

	// Every short ID keeps its top 16 bits clear and matches the
	// announcement's own fingerprint of the corresponding transaction.
	for i, sid := range msg.ShortIDs {
		if sid>>48 != 0 {
			t.Errorf("short ID #%d uses more than 48 bits: %x", i, sid)
		}
		txHash := block.Transactions[i+1].TxHash()
		if want := msg.ShortID(&txHash); sid != want {
			t.Errorf("short ID #%d got: %x, want: %x", i, sid, want)
		}
	}
}

// TestCmpctBlockEmptyBlock ensures a block without a coinbase is refused.
func TestCmpctBlockEmptyBlock(t *testing.T) {
	block := &MsgBlock{Header: fakeHeader()}
	if _, err := NewMsgCmpctBlockFromBlock(block); err == nil {
		t.Errorf("expected error for block without transactions")
	}
}

// TestCmpctBlockEncodeDecode tests encode and decode round trip, including
// the derived selector.
func TestCmpctBlockEncodeDecode(t *testing.T) {
	block := fakeBlock(6)
	msg, err := NewMsgCmpctBlockFromBlock(block)
	if err != nil {
		t.Fatalf("NewMsgCmpctBlockFromBlock failure, err: %v", err)
	}

	var buf bytes.Buffer
	if err := msg.BtcEncode(&buf, ProtocolVersion, BaseEncoding); err != nil {
		t.Fatalf("MsgCmpctBlock encoding failure, err: %v", err)
	}

	var decoded MsgCmpctBlock
	if err := decoded.BtcDecode(&buf, ProtocolVersion, BaseEncoding); err != nil {
		t.Fatalf("MsgCmpctBlock decoding failure, err: %v", err)
	}

	if !reflect.DeepEqual(decoded, *msg) {
		t.Errorf("announcement mismatch after round trip")
	}
	if decoded.Selector() != msg.Selector() {
		t.Errorf("selector mismatch: got %v, want %v",
			decoded.Selector(), msg.Selector())
	}
}

// TestCmpctBlockExtraPrefills tests the differential index encoding with
// prefilled transactions past the coinbase.
func TestCmpctBlockExtraPrefills(t *testing.T) {
	block := fakeBlock(6)
	msg, err := NewMsgCmpctBlockFromBlock(block)
	if err != nil {
		t.Fatalf("NewMsgCmpctBlockFromBlock failure, err: %v", err)
	}

	// Prefill transactions 3 and 5 in addition to the coinbase and drop
	// their short IDs, as a producer that expects the receiver to be
	// missing them would.
	msg.PrefilledTxs = append(msg.PrefilledTxs,
		PrefilledTx{Index: 3, Tx: block.Transactions[3]},
		PrefilledTx{Index: 5, Tx: block.Transactions[5]},
	)
	msg.ShortIDs = append(msg.ShortIDs[:2], msg.ShortIDs[3:4]...)

	var buf bytes.Buffer
	if err := msg.BtcEncode(&buf, ProtocolVersion, BaseEncoding); err != nil {
		t.Fatalf("MsgCmpctBlock encoding failure, err: %v", err)
	}
	var decoded MsgCmpctBlock
	if err := decoded.BtcDecode(&buf, ProtocolVersion, BaseEncoding); err != nil {
		t.Fatalf("MsgCmpctBlock decoding failure, err: %v", err)
	}

	wantIndexes := []uint16{0, 3, 5}
	if len(decoded.PrefilledTxs) != len(wantIndexes) {
		t.Fatalf("prefilled count got: %d, want: %d",
			len(decoded.PrefilledTxs), len(wantIndexes))
	}
	for i, want := range wantIndexes {
		if decoded.PrefilledTxs[i].Index != want {
			t.Errorf("prefilled #%d index got: %d, want: %d", i,
				decoded.PrefilledTxs[i].Index, want)
		}
	}
}

// TestCmpctBlockEncodeUnsortedPrefills ensures encoding refuses prefilled
// indexes that are not strictly ascending.
func TestCmpctBlockEncodeUnsortedPrefills(t *testing.T) {
	block := fakeBlock(4)
	msg, err := NewMsgCmpctBlockFromBlock(block)
	if err != nil {
		t.Fatalf("NewMsgCmpctBlockFromBlock failure, err: %v", err)
	}
	msg.PrefilledTxs = append(msg.PrefilledTxs,
		PrefilledTx{Index: 2, Tx: block.Transactions[2]},
		PrefilledTx{Index: 2, Tx: block.Transactions[2]},
	)

	var buf bytes.Buffer
	err = msg.BtcEncode(&buf, ProtocolVersion, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Errorf("expected MessageError for unsorted prefills, got %v", err)
	}
}

// TestCmpctBlockDecodePrefillOverflow ensures a prefilled index running past
// the 16-bit index space is rejected.  With a single short ID, gaps [0,
// 65535] place the second prefill at index 65536.
func TestCmpctBlockDecodePrefillOverflow(t *testing.T) {
	hdr := fakeHeader()
	tx := fakeCoinbase()

	var buf bytes.Buffer
	if err := writeBlockHeader(&buf, ProtocolVersion, &hdr); err != nil {
		t.Fatalf("writeBlockHeader failure, err: %v", err)
	}
	if err := binarySerializer.PutUint64(&buf, littleEndian, 0x0102030405060708); err != nil {
		t.Fatalf("PutUint64 failure, err: %v", err)
	}
	// One short ID.
	if err := WriteVarInt(&buf, ProtocolVersion, 1); err != nil {
		t.Fatalf("WriteVarInt failure, err: %v", err)
	}
	if err := writeShortID(&buf, 0x0000010203040506); err != nil {
		t.Fatalf("writeShortID failure, err: %v", err)
	}
	// Two prefills with gaps 0 and 65535.
	if err := WriteVarInt(&buf, ProtocolVersion, 2); err != nil {
		t.Fatalf("WriteVarInt failure, err: %v", err)
	}
	if err := WriteVarInt(&buf, ProtocolVersion, 0); err != nil {
		t.Fatalf("WriteVarInt failure, err: %v", err)
	}
	if err := tx.BtcEncode(&buf, ProtocolVersion, BaseEncoding); err != nil {
		t.Fatalf("MsgTx encoding failure, err: %v", err)
	}
	if err := WriteVarInt(&buf, ProtocolVersion, 65535); err != nil {
		t.Fatalf("WriteVarInt failure, err: %v", err)
	}
	if err := tx.BtcEncode(&buf, ProtocolVersion, BaseEncoding); err != nil {
		t.Fatalf("MsgTx encoding failure, err: %v", err)
	}

	var decoded MsgCmpctBlock
	err := decoded.BtcDecode(&buf, ProtocolVersion, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Errorf("expected MessageError for prefill index overflow, got %v",
			err)
	}
}

// TestCmpctBlockDecodeBogusShortIDCount ensures a hostile short ID count is
// rejected before any payload has to back it.
func TestCmpctBlockDecodeBogusShortIDCount(t *testing.T) {
	hdr := fakeHeader()

	var buf bytes.Buffer
	if err := writeBlockHeader(&buf, ProtocolVersion, &hdr); err != nil {
		t.Fatalf("writeBlockHeader failure, err: %v", err)
	}
	if err := binarySerializer.PutUint64(&buf, littleEndian, 1); err != nil {
		t.Fatalf("PutUint64 failure, err: %v", err)
	}
	// Declare a billion short IDs with no payload behind them.
	if err := WriteVarInt(&buf, ProtocolVersion, 1000000000); err != nil {
		t.Fatalf("WriteVarInt failure, err: %v", err)
	}

	var decoded MsgCmpctBlock
	err := decoded.BtcDecode(&buf, ProtocolVersion, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Errorf("expected MessageError for bogus short ID count, got %v",
			err)
	}
}

// TestCmpctBlockSelectorDeterministic ensures the selector only depends on
// the header and nonce.
func TestCmpctBlockSelectorDeterministic(t *testing.T) {
	block := fakeBlock(3)

	a := MsgCmpctBlock{Header: block.Header, Nonce: 42}
	a.fillSelector()
	b := MsgCmpctBlock{Header: block.Header, Nonce: 42}
	b.fillSelector()
	if a.Selector() != b.Selector() {
		t.Errorf("selector differs for identical header and nonce")
	}

	c := MsgCmpctBlock{Header: block.Header, Nonce: 43}
	c.fillSelector()
	if a.Selector() == c.Selector() {
		t.Errorf("selector identical across nonces")
	}

	txHash := block.Transactions[1].TxHash()
	if a.ShortID(&txHash) == c.ShortID(&txHash) {
		t.Errorf("short ID identical across nonces")
	}
}

// TestCmpctBlockCommand tests the protocol command string.
func TestCmpctBlockCommand(t *testing.T) {
	msg := &MsgCmpctBlock{}
	if cmd := msg.Command(); cmd != CmdCmpctBlock {
		t.Errorf("Command want: %s, actual: %s", CmdCmpctBlock, cmd)
	}
}
