// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/dchest/siphash"

	"github.com/blockrelay/relaycore/model/chaincfg/chainhash"
)

// ShortIDSize is the number of bytes a short transaction ID occupies on the
// wire.  Short IDs are 48-bit keyed fingerprints, so the top two bytes of the
// in-memory uint64 representation are always zero.
const ShortIDSize = 6

// shortIDMask keeps the low 48 bits of a keyed hash.
const shortIDMask = (uint64(1) << 48) - 1

// shortIDSelector derives the 32-byte selector digest that keys the short ID
// function for a single announcement.  The digest is
// SHA256(serialize(header) || nonce) with the nonce appended in little endian.
// Binding the key to the nonce randomizes which transactions collide across
// announcements, so a transaction that collides under one announcement will
// almost certainly not collide under the next.
func shortIDSelector(header *BlockHeader, nonce uint64) chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, blockHeaderLen+8))
	_ = writeBlockHeader(buf, 0, header)

	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	buf.Write(nonceBytes[:])

	return chainhash.Hash(sha256.Sum256(buf.Bytes()))
}

// shortIDKeys interprets the leading 16 bytes of a selector digest as the two
// little-endian 64-bit words keying SipHash-2-4.
func shortIDKeys(selector *chainhash.Hash) (k0, k1 uint64) {
	k0 = binary.LittleEndian.Uint64(selector[0:8])
	k1 = binary.LittleEndian.Uint64(selector[8:16])
	return k0, k1
}

// shortID computes the 48-bit fingerprint of a transaction hash under the
// given SipHash-2-4 key words.
func shortID(k0, k1 uint64, txHash *chainhash.Hash) uint64 {
	return siphash.Hash(k0, k1, txHash[:]) & shortIDMask
}
