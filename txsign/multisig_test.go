package txsign

import (
	"bytes"
	"testing"

	"github.com/tokenized/signcore/bitcoin"
)

func Test_MultisigFingerprint_OrderIndependent(t *testing.T) {
	a := &MultisigInfo{PublicKeys: [][]byte{{1}, {2}, {3}}, SignaturesRequired: 2}
	b := &MultisigInfo{PublicKeys: [][]byte{{3}, {1}, {2}}, SignaturesRequired: 2}

	if MultisigFingerprint(a) != MultisigFingerprint(b) {
		t.Fatalf("fingerprint must be independent of public key order")
	}
}

func Test_MultisigFingerprint_RequiredCountDistinguishes(t *testing.T) {
	a := &MultisigInfo{PublicKeys: [][]byte{{1}, {2}}, SignaturesRequired: 1}
	b := &MultisigInfo{PublicKeys: [][]byte{{1}, {2}}, SignaturesRequired: 2}

	if MultisigFingerprint(a) == MultisigFingerprint(b) {
		t.Fatalf("fingerprint must distinguish differing signature thresholds")
	}
}

func Test_SlotMultisigSignature_PlacesAtCorrectIndex(t *testing.T) {
	info := &MultisigInfo{PublicKeys: [][]byte{{1}, {2}, {3}}, SignaturesRequired: 2}
	sigs := make([][]byte, 3)

	if err := SlotMultisigSignature(info, sigs, []byte{2}, []byte{0xaa}); err != nil {
		t.Fatalf("SlotMultisigSignature: %s", err)
	}
	if sigs[0] != nil || sigs[2] != nil {
		t.Fatalf("signature placed in the wrong slot: %v", sigs)
	}
	if string(sigs[1]) != string([]byte{0xaa}) {
		t.Fatalf("signature not placed at matching pubkey's slot")
	}
}

func Test_CompileMultisigRedeemScript_StandardLayout(t *testing.T) {
	info := &MultisigInfo{PublicKeys: [][]byte{{1, 1}, {2, 2}, {3, 3}}, SignaturesRequired: 2}

	got, err := CompileMultisigRedeemScript(info)
	if err != nil {
		t.Fatalf("CompileMultisigRedeemScript: %s", err)
	}

	want := []byte{
		bitcoin.OP_1 + 1, // OP_2 (SignaturesRequired)
		2, 1, 1,
		2, 2, 2,
		2, 3, 3,
		bitcoin.OP_1 + 2, // OP_3 (len(PublicKeys))
		bitcoin.OP_CHECKMULTISIG,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("redeem script mismatch:\ngot  %x\nwant %x", got, want)
	}
}

func Test_CompileMultisigRedeemScript_RequiredCountOutOfRange(t *testing.T) {
	info := &MultisigInfo{PublicKeys: [][]byte{{1}, {2}}, SignaturesRequired: 3}
	if _, err := CompileMultisigRedeemScript(info); err == nil {
		t.Fatalf("expected an error when SignaturesRequired exceeds the public key count")
	}
}

func Test_SlotMultisigSignature_UnknownPubkey(t *testing.T) {
	info := &MultisigInfo{PublicKeys: [][]byte{{1}, {2}}, SignaturesRequired: 1}
	sigs := make([][]byte, 2)

	err := SlotMultisigSignature(info, sigs, []byte{9}, []byte{0xaa})
	if err == nil {
		t.Fatalf("expected an error for a pubkey not in the descriptor")
	}
	if !IsErrorCode(err, ErrorCodeUnknownPubkey) {
		t.Fatalf("expected ErrorCodeUnknownPubkey, got %s", err)
	}
}
