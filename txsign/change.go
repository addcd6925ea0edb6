package txsign

import "github.com/tokenized/signcore/bitcoin"

// isChangeOutput classifies one current-transaction output per §4.4. At most one output may
//   qualify across a session; the caller (machine.go) enforces that and raises
//   ErrorCodeDuplicateChange on a second match.
func isChangeOutput(out *Output, s *Session) bool {
	if out.ScriptType == bitcoin.ScriptTypeMultiPKH && out.Multisig != nil &&
		s.multisigFPSet && !s.multisigFPMismatch {
		fp := MultisigFingerprint(out.Multisig)
		if fp == s.multisigFP {
			return true
		}
	}

	if out.ScriptType == bitcoin.ScriptTypePKH && len(out.AddressPath) > 0 {
		if out.AddressType == AddressTypeChange || out.AddressType == AddressTypeUnspecified {
			return true
		}
	}

	return false
}
