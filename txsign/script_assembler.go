package txsign

import (
	"bytes"

	"github.com/tokenized/signcore/bitcoin"

	"github.com/pkg/errors"
)

// AssembleSingleSig builds a `<sig><pubkey>` script_sig, matching the teacher's
//   P2PKHUnlockingScript (txbuilder/sign.go): each element length-prefixed via
//   bitcoin.WritePushDataScript.
func AssembleSingleSig(sig []byte, pubkey []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(sig)+len(pubkey)+2))
	if err := bitcoin.WritePushDataScript(buf, sig); err != nil {
		return nil, err
	}
	if err := bitcoin.WritePushDataScript(buf, pubkey); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AssembleMultisig builds the standard P2SH multisig unlocking script: an OP_0 placeholder (the
//   well-known off-by-one dummy element OP_CHECKMULTISIG pops and ignores), each present
//   signature length-prefixed in ascending descriptor order, followed by the compiled redeem
//   script. Slots with no signature yet are simply omitted — OP_CHECKMULTISIG matches supplied
//   signatures against the redeem script's public keys in order, it does not require one slot per
//   key. Grounded on the standard OP_0 <sig>... <redeemScript> layout described in §4.7; the
//   redeem-script compiler lives in multisig.go.
func AssembleMultisig(info *MultisigInfo, sigs [][]byte) ([]byte, error) {
	if len(info.PublicKeys) != len(sigs) {
		return nil, errors.New("same number of public keys and signatures required")
	}

	redeemScript, err := CompileMultisigRedeemScript(info)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := buf.WriteByte(bitcoin.OP_0); err != nil {
		return nil, err
	}
	for _, sig := range sigs {
		if len(sig) == 0 {
			continue
		}
		if err := bitcoin.WritePushDataScript(buf, sig); err != nil {
			return nil, err
		}
	}
	if err := bitcoin.WritePushDataScript(buf, redeemScript); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// SlotMultisigSignature places sig into the index determined by matching pubkey against the
//   multisig descriptor. Returns ErrorCodeUnknownPubkey if pubkey isn't one of the descriptor's
//   signers.
func SlotMultisigSignature(info *MultisigInfo, sigs [][]byte, pubkey, sig []byte) error {
	idx := multisigPubkeyIndex(info, pubkey)
	if idx < 0 {
		return newError(ErrorCodeUnknownPubkey, "")
	}
	sigs[idx] = sig
	return nil
}
