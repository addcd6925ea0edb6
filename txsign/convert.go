package txsign

import (
	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/txsign/proto"

	"github.com/pkg/errors"
)

func multisigFromAck(pubkeys [][]byte, required int, has bool) *MultisigInfo {
	if !has {
		return nil
	}
	return &MultisigInfo{PublicKeys: pubkeys, SignaturesRequired: required}
}

// inputFromAck converts one proto.AckInput (current-tx sweep) into an Input.
func inputFromAck(a proto.AckInput) Input {
	return Input{
		PrevHash:    a.PrevHash,
		PrevIndex:   a.PrevIndex,
		Sequence:    a.Sequence,
		HasSequence: a.HasSequence,
		ScriptType:  a.ScriptType,
		AddressPath: a.AddressPath,
		Multisig:    multisigFromAck(a.MultisigPubKeys, a.MultisigReq, a.HasMultisig),
	}
}

// outputFromAck converts one proto.AckOutput into an Output, decoding the host's raw address
//   bytes if present.
func outputFromAck(a proto.AckOutput) (Output, error) {
	out := Output{
		Amount:      a.Amount,
		ScriptType:  a.ScriptType,
		AddressPath: a.AddressPath,
		AddressType: AddressType(a.AddressType),
		Multisig:    multisigFromAck(a.MultisigPubKeys, a.MultisigReq, a.HasMultisig),
	}

	if len(a.RawAddress) > 0 {
		ra, err := bitcoin.DecodeRawAddress(a.RawAddress)
		if err != nil {
			return Output{}, errors.Wrap(err, "raw address")
		}
		out.RawAddress = &ra
	}

	return out, nil
}

func prevInputFromAck(a proto.AckInput) PrevInput {
	return PrevInput{
		PrevHash:        a.PrevHash,
		PrevIndex:       a.PrevIndex,
		UnlockingScript: a.UnlockingScript,
		Sequence:        a.Sequence,
	}
}

func prevOutputFromAck(a proto.AckBinOutput) PrevOutput {
	return PrevOutput{Amount: a.Amount, LockingScript: a.LockingScript}
}

func prevMetaFromAck(m proto.AckMeta) PrevMeta {
	return PrevMeta{
		Version:     m.Version,
		LockTime:    m.LockTime,
		InputCount:  m.InputCount,
		OutputCount: m.OutputCount,
	}
}
