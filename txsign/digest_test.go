package txsign

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/tokenized/signcore/bitcoin"
)

// Testable Property 5 ("Fork-id digest"): for a BIP-143 input with a known fixture, the
//   computed digest matches a reference vector built independently by hand in this test.
func Test_BIP143Digest_KnownVector(t *testing.T) {
	var prevHash bitcoin.Hash32
	for i := range prevHash {
		prevHash[i] = byte(i)
	}
	script := []byte{0x76, 0xa9, 0x14} // truncated P2PKH prefix, enough to exercise varint+bytes
	script = append(script, bytes.Repeat([]byte{0xaa}, 20)...)
	script = append(script, 0x88, 0xac)

	hashPrevouts := sha256.Sum256([]byte("prevouts"))
	hashSequence := sha256.Sum256([]byte("sequence"))
	hashOutputs := sha256.Sum256([]byte("outputs"))

	got := BIP143Digest(2, hashPrevouts, hashSequence, prevHash, 1, script, 200_000, 0xffffffff,
		hashOutputs, 0, 0, SigHashAll|SigHashForkID)

	// Rebuild the pre-image by hand and take its double-SHA-256, mirroring
	//   writeSignatureHashPreimageBytes rather than reusing encodeVarInt/putUint32LE from
	//   digest.go, so the test doesn't just check the implementation against itself.
	var preimage bytes.Buffer
	preimage.Write([]byte{2, 0, 0, 0})
	preimage.Write(hashPrevouts[:])
	preimage.Write(hashSequence[:])
	preimage.Write(prevHash[:])
	preimage.Write([]byte{1, 0, 0, 0})
	preimage.WriteByte(byte(len(script)))
	preimage.Write(script)
	preimage.Write([]byte{0x40, 0x0d, 0x03, 0, 0, 0, 0, 0}) // 200_000 little-endian uint64
	preimage.Write([]byte{0xff, 0xff, 0xff, 0xff})
	preimage.Write(hashOutputs[:])
	preimage.Write([]byte{0, 0, 0, 0})
	preimage.Write([]byte{0x41, 0, 0, 0}) // sighash = forkid(0)<<8 | (ALL|FORKID=0x41)

	first := sha256.Sum256(preimage.Bytes())
	want := sha256.Sum256(first[:])

	if got != want {
		t.Fatalf("BIP143Digest mismatch:\ngot  %x\nwant %x", got, want)
	}
}

// Scenario S3's sighash byte: ALL|FORKID must encode as 0x41, the literal value spec.md names.
func Test_SigHash_AllForkID_Is0x41(t *testing.T) {
	if got := byte(SigHashAll) | byte(SigHashForkID); got != 0x41 {
		t.Fatalf("SigHashAll|SigHashForkID = 0x%02x, want 0x41", got)
	}
}

func Test_LegacyDigestBuilder_Deterministic(t *testing.T) {
	var prevHash bitcoin.Hash32
	prevHash[0] = 1

	build := func() [32]byte {
		b := newLegacyDigestBuilder()
		b.WriteVersion(1)
		b.WriteVarInt(1)
		b.WriteInput(prevHash, 0, []byte{0x51}, 0xffffffff)
		b.WriteVarInt(1)
		b.WriteOutput(90_000, []byte{0x51})
		b.WriteLockTime(0)
		return b.Finalize(SigHashAll)
	}

	a := build()
	b := build()
	if a != b {
		t.Fatalf("legacy digest not deterministic: %x != %x", a, b)
	}

	// Changing any streamed field must change the digest (the phase-1/phase-2 tamper-detection
	//   property the commit hash and this digest both exist to support).
	bTampered := newLegacyDigestBuilder()
	bTampered.WriteVersion(1)
	bTampered.WriteVarInt(1)
	bTampered.WriteInput(prevHash, 0, []byte{0x51}, 0xffffffff)
	bTampered.WriteVarInt(1)
	bTampered.WriteOutput(90_001, []byte{0x51}) // +1 satoshi
	bTampered.WriteLockTime(0)
	tampered := bTampered.Finalize(SigHashAll)

	if a == tampered {
		t.Fatalf("digest did not change when output amount changed")
	}
}

func Test_EncodeVarInt(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{0xfc, []byte{0xfc}},
		{0xfd, []byte{0xfd, 0xfd, 0x00}},
		{0xffff, []byte{0xfd, 0xff, 0xff}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		got := encodeVarInt(c.v)
		if !bytes.Equal(got, c.want) {
			t.Errorf("encodeVarInt(%d) = %x, want %x", c.v, got, c.want)
		}
	}
}
