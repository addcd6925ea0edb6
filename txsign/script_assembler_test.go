package txsign

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/tokenized/signcore/bitcoin"
)

// Testable Property 6 ("Script-sig roundtrip"): a signed single-sig input, when re-verified with
//   the derived public key, passes ECDSA verification.
func Test_AssembleSingleSig_RoundtripsAndVerifies(t *testing.T) {
	key, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("GenerateKey: %s", err)
	}
	digest := sha256.Sum256([]byte("some signing digest"))
	var hash32 bitcoin.Hash32
	copy(hash32[:], digest[:])

	sig, err := key.Sign(hash32)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}
	sigBytes := append(append([]byte{}, sig.Bytes()...), byte(SigHashAll))
	pubkeyBytes := key.PublicKey().Bytes()

	script, err := AssembleSingleSig(sigBytes, pubkeyBytes)
	if err != nil {
		t.Fatalf("AssembleSingleSig: %s", err)
	}

	// Re-parse the two push-data elements back out and confirm they round-trip.
	gotSig, gotPub, rest := parseTwoPushes(t, script)
	if len(rest) != 0 {
		t.Fatalf("unexpected trailing bytes in script_sig: %x", rest)
	}
	if !bytes.Equal(gotSig, sigBytes) {
		t.Fatalf("signature did not round-trip through the script")
	}
	if !bytes.Equal(gotPub, pubkeyBytes) {
		t.Fatalf("pubkey did not round-trip through the script")
	}

	if !sig.Verify(hash32, key.PublicKey()) {
		t.Fatalf("signature does not verify against the original digest and public key")
	}
}

// parseTwoPushes decodes two consecutive single-byte-length push-data elements, matching the
//   shape AssembleSingleSig produces for keys/signatures well under 0x4c bytes.
func parseTwoPushes(t *testing.T, script []byte) (a, b, rest []byte) {
	t.Helper()
	if len(script) == 0 {
		t.Fatalf("empty script")
	}
	n := int(script[0])
	a = script[1 : 1+n]
	script = script[1+n:]
	if len(script) == 0 {
		t.Fatalf("script truncated before second push")
	}
	n = int(script[0])
	b = script[1 : 1+n]
	rest = script[1+n:]
	return a, b, rest
}

func Test_AssembleMultisig_SignedAndUnsignedSlots(t *testing.T) {
	info := &MultisigInfo{
		PublicKeys:         [][]byte{{1, 1}, {2, 2}, {3, 3}},
		SignaturesRequired: 2,
	}
	sigs := [][]byte{{0xaa}, nil, {0xcc}} // slot 1 unsigned

	script, err := AssembleMultisig(info, sigs)
	if err != nil {
		t.Fatalf("AssembleMultisig: %s", err)
	}

	redeemScript, err := CompileMultisigRedeemScript(info)
	if err != nil {
		t.Fatalf("CompileMultisigRedeemScript: %s", err)
	}

	// OP_0 placeholder, then each present signature in ascending slot order (the unsigned slot 1
	//   is simply omitted), then the compiled redeem script as the final push.
	want := []byte{bitcoin.OP_0}
	want = append(want, 1, 0xaa) // push sig[0]
	want = append(want, 1, 0xcc) // push sig[2]
	want = append(want, byte(len(redeemScript)))
	want = append(want, redeemScript...)

	if !bytes.Equal(script, want) {
		t.Fatalf("AssembleMultisig script mismatch:\ngot  %x\nwant %x", script, want)
	}
}

func Test_AssembleMultisig_MismatchedLengths(t *testing.T) {
	info := &MultisigInfo{PublicKeys: [][]byte{{1}, {2}}, SignaturesRequired: 1}
	_, err := AssembleMultisig(info, [][]byte{{1}})
	if err == nil {
		t.Fatalf("expected an error for mismatched pubkey/signature counts")
	}
}
