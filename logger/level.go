// Copyright (c) 2019-present, The blockrelay developers.
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// This file used to set the log level of subsystem logger

package logger

import "github.com/btcsuite/btclog"

const (
	// WireLogLevel -> wire
	WireLogLevel = btclog.LevelInfo
	// MempoolLogLevel -> mempool
	MempoolLogLevel = btclog.LevelInfo
	// RelayLogLevel -> blockrelay
	RelayLogLevel = btclog.LevelInfo
)
