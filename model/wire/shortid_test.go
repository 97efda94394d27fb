// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/dchest/siphash"
)

// TestShortIDSelectorDerivation recomputes the selector from first
// principles: SHA256 over the serialized header followed by the nonce in
// little endian.
func TestShortIDSelectorDerivation(t *testing.T) {
	hdr := fakeHeader()
	nonce := uint64(0xdeadbeef12345678)

	var hdrBuf bytes.Buffer
	if err := hdr.Serialize(&hdrBuf); err != nil {
		t.Fatalf("BlockHeader serialize failure, err: %v", err)
	}
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	want := sha256.Sum256(append(hdrBuf.Bytes(), nonceBytes[:]...))

	got := shortIDSelector(&hdr, nonce)
	if !bytes.Equal(got[:], want[:]) {
		t.Errorf("selector mismatch\n got: %x\nwant: %x", got[:], want[:])
	}
}

// TestShortIDKeyedHash recomputes a short ID with SipHash-2-4 directly,
// keyed by the leading 16 selector bytes, and checks the 48-bit truncation.
func TestShortIDKeyedHash(t *testing.T) {
	hdr := fakeHeader()
	msg := MsgCmpctBlock{Header: hdr, Nonce: 7}
	msg.fillSelector()

	selector := msg.Selector()
	k0 := binary.LittleEndian.Uint64(selector[0:8])
	k1 := binary.LittleEndian.Uint64(selector[8:16])

	txHash := fakeTx(11).TxHash()
	want := siphash.Hash(k0, k1, txHash[:]) & ((1 << 48) - 1)

	got := msg.ShortID(&txHash)
	if got != want {
		t.Errorf("short ID got: %x, want: %x", got, want)
	}
	if got>>48 != 0 {
		t.Errorf("short ID uses more than 48 bits: %x", got)
	}
}
