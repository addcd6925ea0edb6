package txsign

import (
	"crypto/sha256"
	"crypto/subtle"
	"hash"

	"github.com/tokenized/signcore/bitcoin"
)

// PrevTxVerifier streams a previous transaction — either structured messages or an opaque raw
//   byte stream — recomputes its txid, and verifies it against a current input's prev_hash
//   (§4.2). The amount of the referenced output (at prevIndex) is captured along the way.
//
// Structured and raw mode share the same running SHA-256 context: every byte of the canonical
//   serialization, regardless of source, is mixed in identically.
type PrevTxVerifier struct {
	hasher hash.Hash
	raw    *rawTxParser // nil in structured mode

	prevIndex uint64

	// structured-mode bookkeeping
	inputCount, inputsSeen   uint64
	outputCount, outputsSeen uint64
	structured               bool
	lockTimeWritten          bool

	matchedValue uint64
	matched      bool
}

// NewStructuredPrevTxVerifier begins structured-mode streaming: the host has already sent the
//   previous tx's metadata (§4.2's REQUEST_2_PREV_META).
func NewStructuredPrevTxVerifier(meta PrevMeta, prevIndex uint64) *PrevTxVerifier {
	v := &PrevTxVerifier{
		hasher:      sha256.New(),
		prevIndex:   prevIndex,
		inputCount:  uint64(meta.InputCount),
		outputCount: uint64(meta.OutputCount),
		structured:  true,
	}
	var ver [4]byte
	putUint32LE(ver[:], uint32(meta.Version))
	v.hasher.Write(ver[:])
	v.hasher.Write(encodeVarInt(v.inputCount))
	if v.inputCount == 0 {
		v.hasher.Write(encodeVarInt(v.outputCount))
	}
	return v
}

// NewRawPrevTxVerifier begins raw-mode streaming: the host streams opaque previous-tx bytes and
//   the parallel rawTxParser (§4.3) tracks position to find output `prevIndex`'s value.
func NewRawPrevTxVerifier(prevIndex uint64) *PrevTxVerifier {
	return &PrevTxVerifier{
		hasher: sha256.New(),
		raw:    newRawTxParser(prevIndex),
	}
}

// FeedPrevInput hashes one previous-tx input (serialize_input_hash), structured mode only.
func (v *PrevTxVerifier) FeedPrevInput(in PrevInput) {
	v.hasher.Write(in.PrevHash[:])
	var idx [4]byte
	putUint32LE(idx[:], in.PrevIndex)
	v.hasher.Write(idx[:])
	v.hasher.Write(encodeVarInt(uint64(len(in.UnlockingScript))))
	v.hasher.Write(in.UnlockingScript)
	var seq [4]byte
	putUint32LE(seq[:], in.Sequence)
	v.hasher.Write(seq[:])

	v.inputsSeen++
	if v.inputsSeen == v.inputCount {
		v.hasher.Write(encodeVarInt(v.outputCount))
	}
}

// FeedPrevOutput hashes one previous-tx output (serialize_output_hash), structured mode only.
// When this is the output referenced by the owning input (outputsSeen == prevIndex), its amount
//   is captured for §4.2's "add the amount of previous-output input.prev_index to to_spend".
func (v *PrevTxVerifier) FeedPrevOutput(out PrevOutput) {
	var val [8]byte
	putUint64LE(val[:], out.Amount)
	v.hasher.Write(val[:])
	v.hasher.Write(encodeVarInt(uint64(len(out.LockingScript))))
	v.hasher.Write(out.LockingScript)

	if v.outputsSeen == v.prevIndex {
		v.matchedValue = out.Amount
		v.matched = true
	}

	v.outputsSeen++
	if v.outputsSeen == v.outputCount {
		// caller supplies locktime via FeedLockTime
	}
}

// FeedLockTime writes the previous tx's locktime, completing structured-mode hashing.
func (v *PrevTxVerifier) FeedLockTime(lockTime uint32) {
	var lt [4]byte
	putUint32LE(lt[:], lockTime)
	v.hasher.Write(lt[:])
	v.lockTimeWritten = true
}

// FeedRawByte mixes one raw previous-tx byte into the hash and advances the parallel parser
//   (§4.3), raw mode only.
func (v *PrevTxVerifier) FeedRawByte(b byte) error {
	v.hasher.Write([]byte{b})
	if err := v.raw.Feed(b); err != nil {
		return err
	}
	if val, ok := v.raw.MatchedValue(); ok && !v.matched {
		v.matchedValue = val
		v.matched = true
	}
	return nil
}

// Done reports whether the previous tx's full stream has been consumed.
func (v *PrevTxVerifier) Done() bool {
	if v.raw != nil {
		return v.raw.Done()
	}
	return v.lockTimeWritten
}

// MatchedValue returns the amount of previous output `prevIndex`, once observed.
func (v *PrevTxVerifier) MatchedValue() (uint64, bool) {
	return v.matchedValue, v.matched
}

// Verify finalizes the double-SHA-256 txid and compares it to the current input's prev_hash in
//   constant time, per §4.2. A mismatch is fatal ("Encountered invalid prevhash").
func (v *PrevTxVerifier) Verify(prevHash bitcoin.Hash32) error {
	first := v.hasher.Sum(nil)
	second := sha256.Sum256(first)

	if subtle.ConstantTimeCompare(second[:], prevHash[:]) != 1 {
		return newError(ErrorCodeInvalidPrevHash, "")
	}
	return nil
}
