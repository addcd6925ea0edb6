// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

// MaxTxInSequenceNum is the maximum sequence number the sequence field of a transaction input can
//   be; used as the fallback locktime-disabled sequence value when a compiled input carries no
//   explicit sequence override.
const MaxTxInSequenceNum uint32 = 0xffffffff
