package txsign

import (
	"crypto/sha256"
	"testing"

	"github.com/tokenized/signcore/bitcoin"
)

// Testable Property 1 ("Prevhash-round-trip"): the structured verifier's finalized hash equals
//   DoubleSHA256 of the transaction's canonical serialization, built independently here.
func Test_StructuredPrevTxVerifier_MatchesManualTxid(t *testing.T) {
	meta := PrevMeta{Version: 1, LockTime: 0, InputCount: 1, OutputCount: 2}
	v := NewStructuredPrevTxVerifier(meta, 1)

	in := PrevInput{UnlockingScript: []byte{0x51}, Sequence: 0xffffffff}
	v.FeedPrevInput(in)

	out0 := PrevOutput{Amount: 10_000, LockingScript: []byte{0x51}}
	out1 := PrevOutput{Amount: 20_000, LockingScript: []byte{0x52, 0x53}}
	v.FeedPrevOutput(out0)
	v.FeedPrevOutput(out1)
	v.FeedLockTime(meta.LockTime)

	val, ok := v.MatchedValue()
	if !ok || val != 20_000 {
		t.Fatalf("MatchedValue = %d, %v, want 20000, true", val, ok)
	}

	h := sha256.New()
	h.Write([]byte{1, 0, 0, 0}) // version
	h.Write([]byte{1})          // input count varint
	h.Write(in.PrevHash[:])
	h.Write([]byte{0, 0, 0, 0})
	h.Write([]byte{1, 0x51})
	h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	h.Write([]byte{2}) // output count varint
	h.Write([]byte{0x10, 0x27, 0, 0, 0, 0, 0, 0})
	h.Write([]byte{1, 0x51})
	h.Write([]byte{0x20, 0x4e, 0, 0, 0, 0, 0, 0})
	h.Write([]byte{2, 0x52, 0x53})
	h.Write([]byte{0, 0, 0, 0}) // locktime

	first := h.Sum(nil)
	var want bitcoin.Hash32
	wantSum := sha256.Sum256(first)
	copy(want[:], wantSum[:])

	if err := v.Verify(want); err != nil {
		t.Fatalf("Verify against manually computed txid failed: %s", err)
	}
}

// Scenario S6: a mismatched prevhash must fail with ErrorCodeInvalidPrevHash.
func Test_StructuredPrevTxVerifier_MismatchIsInvalidPrevHash(t *testing.T) {
	meta := PrevMeta{Version: 1, LockTime: 0, InputCount: 0, OutputCount: 1}
	v := NewStructuredPrevTxVerifier(meta, 0)
	v.FeedPrevOutput(PrevOutput{Amount: 1, LockingScript: []byte{0x51}})
	v.FeedLockTime(0)

	var wrong bitcoin.Hash32
	wrong[0] = 0xff

	err := v.Verify(wrong)
	if err == nil {
		t.Fatalf("expected a mismatch error")
	}
	if !IsErrorCode(err, ErrorCodeInvalidPrevHash) {
		t.Fatalf("expected ErrorCodeInvalidPrevHash, got %s", err)
	}
}

func Test_RawPrevTxVerifier_FeedsParserAndHashesSameBytes(t *testing.T) {
	raw := buildRawTx(t, 1, 1, []uint64{5_000, 6_000}, 0)

	v := NewRawPrevTxVerifier(1)
	for _, b := range raw {
		if err := v.FeedRawByte(b); err != nil {
			t.Fatalf("FeedRawByte: %s", err)
		}
	}
	if !v.Done() {
		t.Fatalf("expected Done")
	}
	val, ok := v.MatchedValue()
	if !ok || val != 6_000 {
		t.Fatalf("MatchedValue = %d, %v, want 6000, true", val, ok)
	}

	first := sha256.Sum256(raw)
	want := sha256.Sum256(first[:])
	var wantHash bitcoin.Hash32
	copy(wantHash[:], want[:])

	if err := v.Verify(wantHash); err != nil {
		t.Fatalf("Verify: %s", err)
	}
}
