package txsign

import (
	"crypto/sha256"
	"hash"

	"github.com/tokenized/signcore/bitcoin"
)

// SigHashType mirrors txbuilder.SigHashType (sig_hash.go) — the hash-type bits appended to a
//   signature, generalized here to cover both the legacy and BIP-143 digest builders.
type SigHashType uint32

const (
	SigHashAll    SigHashType = 0x1
	SigHashForkID SigHashType = 0x40
)

// legacyDigestBuilder accumulates the legacy (pre-BIP-143) signature pre-image: the whole
//   serialized transaction with exactly one input's script_sig populated, followed by the 4-byte
//   sighash trailer. Streamed incrementally as inputs/outputs arrive in phase 2's inner sweeps
//   (§4.6 "Legacy"), never buffered in full.
type legacyDigestBuilder struct {
	h hash.Hash
}

func newLegacyDigestBuilder() *legacyDigestBuilder {
	return &legacyDigestBuilder{h: sha256.New()}
}

func (b *legacyDigestBuilder) WriteVersion(version int32) {
	var buf [4]byte
	putUint32LE(buf[:], uint32(version))
	b.h.Write(buf[:])
}

func (b *legacyDigestBuilder) WriteVarInt(v uint64) {
	b.h.Write(encodeVarInt(v))
}

// WriteInput writes one input's prevout, script (only for the input being signed; empty
//   otherwise), and sequence.
func (b *legacyDigestBuilder) WriteInput(prevHash bitcoin.Hash32, prevIndex uint32, script []byte,
	sequence uint32) {

	b.h.Write(prevHash[:])
	var idx [4]byte
	putUint32LE(idx[:], prevIndex)
	b.h.Write(idx[:])
	b.WriteVarInt(uint64(len(script)))
	b.h.Write(script)
	var seq [4]byte
	putUint32LE(seq[:], sequence)
	b.h.Write(seq[:])
}

func (b *legacyDigestBuilder) WriteOutput(amount uint64, script []byte) {
	var val [8]byte
	putUint64LE(val[:], amount)
	b.h.Write(val[:])
	b.WriteVarInt(uint64(len(script)))
	b.h.Write(script)
}

func (b *legacyDigestBuilder) WriteLockTime(lockTime uint32) {
	var buf [4]byte
	putUint32LE(buf[:], lockTime)
	b.h.Write(buf[:])
}

// Finalize appends the sighash trailer and returns the double-SHA-256 digest.
func (b *legacyDigestBuilder) Finalize(hashType SigHashType) [32]byte {
	var buf [4]byte
	putUint32LE(buf[:], uint32(hashType))
	b.h.Write(buf[:])

	first := b.h.Sum(nil)
	second := sha256.Sum256(first)
	var out [32]byte
	copy(out[:], second[:])
	return out
}

// BIP143Digest builds the six-field fork-id pre-image described in §4.6 and returns its final
//   digest (single extra SHA-256 applied over the pre-image's own SHA-256, matching
//   writeSignatureHashPreimageBytes in the teacher's txbuilder/sig_hash.go).
func BIP143Digest(version int32, hashPrevouts, hashSequence [32]byte, prevHash bitcoin.Hash32,
	prevIndex uint32, lockScript []byte, amount uint64, sequence uint32, hashOutputs [32]byte,
	lockTime uint32, forkID uint8, hashType SigHashType) [32]byte {

	h := sha256.New()

	var v [4]byte
	putUint32LE(v[:], uint32(version))
	h.Write(v[:])

	h.Write(hashPrevouts[:])
	h.Write(hashSequence[:])

	h.Write(prevHash[:])
	var idx [4]byte
	putUint32LE(idx[:], prevIndex)
	h.Write(idx[:])

	h.Write(encodeVarInt(uint64(len(lockScript))))
	h.Write(lockScript)

	var val [8]byte
	putUint64LE(val[:], amount)
	h.Write(val[:])

	var seq [4]byte
	putUint32LE(seq[:], sequence)
	h.Write(seq[:])

	h.Write(hashOutputs[:])

	var lt [4]byte
	putUint32LE(lt[:], lockTime)
	h.Write(lt[:])

	sighash := uint32(forkID)<<8 | uint32(hashType)
	var sh [4]byte
	putUint32LE(sh[:], sighash)
	h.Write(sh[:])

	first := h.Sum(nil)
	second := sha256.Sum256(first)
	var out [32]byte
	copy(out[:], second[:])
	return out
}

func encodeVarInt(v uint64) []byte {
	if v < 0xfd {
		return []byte{byte(v)}
	}
	if v <= 0xffff {
		buf := make([]byte, 3)
		buf[0] = 0xfd
		buf[1] = byte(v)
		buf[2] = byte(v >> 8)
		return buf
	}
	if v <= 0xffffffff {
		buf := make([]byte, 5)
		buf[0] = 0xfe
		putUint32LE(buf[1:], uint32(v))
		return buf
	}
	buf := make([]byte, 9)
	buf[0] = 0xff
	putUint64LE(buf[1:], v)
	return buf
}
