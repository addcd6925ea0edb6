package txsign

import (
	"testing"

	"github.com/tokenized/signcore/bitcoin"
)

func sessionWithMultisigFP(fp [32]byte, mismatch bool) *Session {
	return &Session{multisigFP: fp, multisigFPSet: true, multisigFPMismatch: mismatch}
}

func Test_IsChangeOutput_PKH_WithPath_Unspecified(t *testing.T) {
	out := &Output{ScriptType: bitcoin.ScriptTypePKH, AddressPath: []uint32{0, 1}}
	s := &Session{}
	if !isChangeOutput(out, s) {
		t.Fatalf("expected PKH output with a derivation path and no address type to qualify as change")
	}
}

func Test_IsChangeOutput_PKH_Explicit_External(t *testing.T) {
	out := &Output{ScriptType: bitcoin.ScriptTypePKH, AddressPath: []uint32{0, 1},
		AddressType: AddressTypeExternal}
	s := &Session{}
	if isChangeOutput(out, s) {
		t.Fatalf("an explicitly external PKH output must not qualify as change")
	}
}

func Test_IsChangeOutput_PKH_NoPath(t *testing.T) {
	out := &Output{ScriptType: bitcoin.ScriptTypePKH}
	s := &Session{}
	if isChangeOutput(out, s) {
		t.Fatalf("a PKH output with a zero-length derivation path must not qualify as change")
	}
}

func Test_IsChangeOutput_Multisig_FingerprintMatch(t *testing.T) {
	info := &MultisigInfo{PublicKeys: [][]byte{{1, 2, 3}, {4, 5, 6}}, SignaturesRequired: 2}
	fp := MultisigFingerprint(info)

	out := &Output{ScriptType: bitcoin.ScriptTypeMultiPKH, Multisig: info}
	s := sessionWithMultisigFP(fp, false)

	if !isChangeOutput(out, s) {
		t.Fatalf("expected a multisig output whose fingerprint matches the inputs' to qualify as change")
	}
}

func Test_IsChangeOutput_Multisig_FingerprintMismatchNeverQualifies(t *testing.T) {
	info := &MultisigInfo{PublicKeys: [][]byte{{1, 2, 3}}, SignaturesRequired: 1}
	fp := MultisigFingerprint(info)

	out := &Output{ScriptType: bitcoin.ScriptTypeMultiPKH, Multisig: info}
	s := sessionWithMultisigFP(fp, true) // mismatch already observed across inputs

	if isChangeOutput(out, s) {
		t.Fatalf("a session with a multisig fingerprint mismatch must never report change, even if " +
			"this particular output's fingerprint happens to match")
	}
}

// Testable Property 3 ("Single-change invariant") is enforced by the dispatcher, not
// isChangeOutput itself; this only checks the classifier's per-output verdict is stable across
// repeated calls so the dispatcher's "first one wins, second one fails" bookkeeping is sound.
func Test_IsChangeOutput_Deterministic(t *testing.T) {
	out := &Output{ScriptType: bitcoin.ScriptTypePKH, AddressPath: []uint32{5}}
	s := &Session{}
	first := isChangeOutput(out, s)
	second := isChangeOutput(out, s)
	if first != second {
		t.Fatalf("isChangeOutput is not stable across repeated calls")
	}
}
