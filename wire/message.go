// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

// MaxMessagePayload is the maximum bytes a message can be regardless of other individual limits
//   imposed by messages themselves; reused here as the ReadVarBytes ceiling for protocol fields
//   (signatures, scripts, raw transactions) that have no tighter domain-specific bound.
const MaxMessagePayload = 0x0000ffffffffffff
