// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package blockrelay

import "fmt"

// ReadStatus is the outcome of feeding peer-supplied relay data into a
// PartialBlock.
type ReadStatus int

const (
	// StatusOK means the operation succeeded.
	StatusOK ReadStatus = iota

	// StatusInvalid means the peer sent structurally malformed or
	// impossible data.  Callers should disconnect the peer.
	StatusInvalid

	// StatusFailed means the data was well formed but could not be
	// processed locally, such as a short ID collision inside a single
	// announcement.  Callers should fall back to requesting the full
	// block.
	StatusFailed
)

// rsStrings is a map of read statuses back to their constant names for
// pretty printing.
var rsStrings = map[ReadStatus]string{
	StatusOK:      "StatusOK",
	StatusInvalid: "StatusInvalid",
	StatusFailed:  "StatusFailed",
}

// String returns the ReadStatus in human-readable form.
func (rs ReadStatus) String() string {
	if s, ok := rsStrings[rs]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ReadStatus (%d)", int(rs))
}
