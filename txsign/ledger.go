package txsign

import (
	"crypto/sha256"
	"hash"

	"github.com/tokenized/signcore/bitcoin"
)

// hashLedger holds the rolling SHA-256 contexts described in SPEC_FULL.md §5.2: three BIP-143
//   accumulators (prevouts, sequence, outputs) and the phase-1 commit hash. The per-input legacy
//   digest context used during phase 2 is held separately, on Session.legacy.
//
// Append-only while open; finalization is one-shot per context, and the BIP-143 three take a
//   second SHA-256 pass to produce the double hash the rest of the core consumes.
type hashLedger struct {
	prevouts hash.Hash
	sequence hash.Hash
	outputs  hash.Hash

	hashPrevouts [32]byte
	hashSequence [32]byte
	hashOutputs  [32]byte
	hashCheck    [32]byte

	commit hash.Hash
}

func newHashLedger() *hashLedger {
	return &hashLedger{
		prevouts: sha256.New(),
		sequence: sha256.New(),
		outputs:  sha256.New(),
		commit:   sha256.New(),
	}
}

func (l *hashLedger) WritePrevout(prevHash bitcoin.Hash32, prevIndex uint32) {
	l.prevouts.Write(prevHash[:])
	var idx [4]byte
	putUint32LE(idx[:], prevIndex)
	l.prevouts.Write(idx[:])
}

func (l *hashLedger) WriteSequence(seq uint32) {
	var b [4]byte
	putUint32LE(b[:], seq)
	l.sequence.Write(b[:])
}

func (l *hashLedger) WriteOutput(compiled []byte) {
	l.outputs.Write(compiled)
}

func (l *hashLedger) WriteCommit(b []byte) {
	l.commit.Write(b)
}

// FinalizeInputHashes double-SHA-256s the prevouts and sequence accumulators. Called once, at
//   the end of phase-1's input sweep (§4.5 step 3).
func (l *hashLedger) FinalizeInputHashes() {
	copy(l.hashPrevouts[:], doubleSum(l.prevouts))
	copy(l.hashSequence[:], doubleSum(l.sequence))
}

// FinalizeOutputsHash double-SHA-256s the outputs accumulator. Called at the end of phase-1's
//   output sweep (§4.5 step 4).
func (l *hashLedger) FinalizeOutputsHash() {
	copy(l.hashOutputs[:], doubleSum(l.outputs))
}

// FinalizeCommit finalizes the running commit hash (single SHA-256, matching §4.5 step 4's
//   "finalize current_tx_hash into hash_check").
func (l *hashLedger) FinalizeCommit() [32]byte {
	var out [32]byte
	copy(out[:], l.commit.Sum(nil))
	l.hashCheck = out
	return out
}

// ResetCommit opens a fresh commit-hash context, used at the start of each inner sweep in phase 2
//   (§4.5 step 5, "initialize ti and a fresh commit hash on idx2 == 0").
func (l *hashLedger) ResetCommit() {
	l.commit = sha256.New()
}

func doubleSum(h hash.Hash) []byte {
	first := h.Sum(nil)
	second := sha256.Sum256(first)
	return second[:]
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
