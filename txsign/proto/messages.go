// Package proto defines the host pull-protocol messages described in SPEC_FULL.md §6: the device
//   emits a typed TxRequest and suspends until the host replies with a TxAck. Framing uses
//   varint-length-prefixed fields built on wire/common.go's varint helpers rather than bitcoin's
//   fixed P2P header, since this is a device/host link, not a peer-to-peer network.
package proto

import (
	"io"

	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/wire"

	"github.com/pkg/errors"
)

// RequestType enumerates the request kinds the device can issue.
type RequestType uint8

const (
	RequestTxInput RequestType = iota
	RequestTxOutput
	RequestTxMeta
	RequestTxFinished
)

// Serialized carries a just-signed/serialized fragment alongside a request, emitted during
//   phase 2 (§4.5 steps 5-6).
type Serialized struct {
	SignatureIndex uint32
	Signature      []byte
	SerializedTx   []byte
}

// TxRequest is the device-to-host message.
type TxRequest struct {
	RequestType  RequestType
	RequestIndex *uint32
	TxHash       *bitcoin.Hash32 // set when asking about a previous transaction
	Serialized   *Serialized
}

// TxAck is the host-to-device reply, symmetric with TxRequest: either structured single-element
//   lists or a raw byte slice, per §6.
type TxAck struct {
	Inputs      []AckInput
	Outputs     []AckOutput
	BinOutputs  []AckBinOutput
	Meta        *AckMeta
	RawBytes    []byte
	HasRawBytes bool
}

// AckMeta carries a previous transaction's header fields (§4.2's REQUEST_2_PREV_META). Raw
//   selects byte-stream verification for the remainder of that previous tx; InputCount/OutputCount
//   are meaningless in that mode since the raw parser discovers them from the stream itself.
type AckMeta struct {
	Version     int32
	LockTime    uint32
	InputCount  uint32
	OutputCount uint32
	Raw         bool
}

// AckInput carries one current- or previous-transaction input field set, reused for both (the
//   wire shape is identical; only which sweep consumes it differs).
type AckInput struct {
	PrevHash        bitcoin.Hash32
	PrevIndex       uint32
	Sequence        uint32
	HasSequence     bool
	ScriptType      byte
	AddressPath     []uint32
	MultisigPubKeys [][]byte
	MultisigReq     int
	HasMultisig     bool

	// Previous-input only (structured previous-tx sweep).
	UnlockingScript []byte
}

// AckOutput carries one current-transaction output description (§4.4/§4.5 step 4).
type AckOutput struct {
	Amount          uint64
	ScriptType      byte
	AddressPath     []uint32
	AddressType     int
	MultisigPubKeys [][]byte
	MultisigReq     int
	HasMultisig     bool
	RawAddress      []byte // pre-encoded bitcoin.RawAddress bytes, if the host supplies one directly
}

// AckBinOutput carries one previous-transaction output (amount + locking script), structured mode.
type AckBinOutput struct {
	Amount        uint64
	LockingScript []byte
}

// WriteMessage frames and writes a TxRequest, grounded on wire.WriteVarBytes/WriteVarInt for its
//   variable-length fields.
func WriteMessage(w io.Writer, req *TxRequest) error {
	if err := writeByte(w, byte(req.RequestType)); err != nil {
		return errors.Wrap(err, "request type")
	}

	if err := writeOptionalUint32(w, req.RequestIndex); err != nil {
		return errors.Wrap(err, "request index")
	}

	if req.TxHash != nil {
		if err := writeByte(w, 1); err != nil {
			return err
		}
		if _, err := w.Write(req.TxHash[:]); err != nil {
			return errors.Wrap(err, "tx hash")
		}
	} else if err := writeByte(w, 0); err != nil {
		return err
	}

	if req.Serialized != nil {
		if err := writeByte(w, 1); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(req.Serialized.SignatureIndex)); err != nil {
			return errors.Wrap(err, "signature index")
		}
		if err := wire.WriteVarBytes(w, 0, req.Serialized.Signature); err != nil {
			return errors.Wrap(err, "signature")
		}
		if err := wire.WriteVarBytes(w, 0, req.Serialized.SerializedTx); err != nil {
			return errors.Wrap(err, "serialized tx")
		}
	} else if err := writeByte(w, 0); err != nil {
		return err
	}

	return nil
}

// ReadMessage reads back a TxRequest written by WriteMessage. Used by the demo host transport and
//   by tests that round-trip fixtures over an in-memory pipe.
func ReadMessage(r io.Reader) (*TxRequest, error) {
	req := &TxRequest{}

	b, err := readByte(r)
	if err != nil {
		return nil, errors.Wrap(err, "request type")
	}
	req.RequestType = RequestType(b)

	idx, err := readOptionalUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "request index")
	}
	req.RequestIndex = idx

	hasHash, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if hasHash == 1 {
		var hash bitcoin.Hash32
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, errors.Wrap(err, "tx hash")
		}
		req.TxHash = &hash
	}

	hasSerialized, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if hasSerialized == 1 {
		s := &Serialized{}
		sigIndex, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, errors.Wrap(err, "signature index")
		}
		s.SignatureIndex = uint32(sigIndex)

		s.Signature, err = wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "signature")
		if err != nil {
			return nil, errors.Wrap(err, "signature")
		}

		s.SerializedTx, err = wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "serialized tx")
		if err != nil {
			return nil, errors.Wrap(err, "serialized tx")
		}
		req.Serialized = s
	}

	return req, nil
}

// WriteAck frames and writes a TxAck, the host's reply to a TxRequest. Grounded on the same
//   wire.WriteVarInt/WriteVarBytes primitives as WriteMessage.
func WriteAck(w io.Writer, ack *TxAck) error {
	if err := writeVarIntSlice(w, len(ack.Inputs), func(i int) error {
		return writeAckInput(w, ack.Inputs[i])
	}); err != nil {
		return errors.Wrap(err, "inputs")
	}

	if err := writeVarIntSlice(w, len(ack.Outputs), func(i int) error {
		return writeAckOutput(w, ack.Outputs[i])
	}); err != nil {
		return errors.Wrap(err, "outputs")
	}

	if err := writeVarIntSlice(w, len(ack.BinOutputs), func(i int) error {
		o := ack.BinOutputs[i]
		if err := wire.WriteVarInt(w, 0, o.Amount); err != nil {
			return err
		}
		return wire.WriteVarBytes(w, 0, o.LockingScript)
	}); err != nil {
		return errors.Wrap(err, "bin outputs")
	}

	if ack.Meta != nil {
		if err := writeByte(w, 1); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(uint32(ack.Meta.Version))); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(ack.Meta.LockTime)); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(ack.Meta.InputCount)); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(ack.Meta.OutputCount)); err != nil {
			return err
		}
		raw := byte(0)
		if ack.Meta.Raw {
			raw = 1
		}
		if err := writeByte(w, raw); err != nil {
			return err
		}
	} else if err := writeByte(w, 0); err != nil {
		return err
	}

	hasRaw := byte(0)
	if ack.HasRawBytes {
		hasRaw = 1
	}
	if err := writeByte(w, hasRaw); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, ack.RawBytes)
}

// ReadAck reads back a TxAck written by WriteAck.
func ReadAck(r io.Reader) (*TxAck, error) {
	ack := &TxAck{}

	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, errors.Wrap(err, "input count")
	}
	for i := uint64(0); i < n; i++ {
		in, err := readAckInput(r)
		if err != nil {
			return nil, errors.Wrap(err, "input")
		}
		ack.Inputs = append(ack.Inputs, in)
	}

	n, err = wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, errors.Wrap(err, "output count")
	}
	for i := uint64(0); i < n; i++ {
		out, err := readAckOutput(r)
		if err != nil {
			return nil, errors.Wrap(err, "output")
		}
		ack.Outputs = append(ack.Outputs, out)
	}

	n, err = wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, errors.Wrap(err, "bin output count")
	}
	for i := uint64(0); i < n; i++ {
		amount, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}
		script, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "locking script")
		if err != nil {
			return nil, err
		}
		ack.BinOutputs = append(ack.BinOutputs, AckBinOutput{Amount: amount, LockingScript: script})
	}

	hasMeta, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if hasMeta == 1 {
		version, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}
		lockTime, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}
		inputCount, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}
		outputCount, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}
		raw, err := readByte(r)
		if err != nil {
			return nil, err
		}
		ack.Meta = &AckMeta{
			Version:     int32(uint32(version)),
			LockTime:    uint32(lockTime),
			InputCount:  uint32(inputCount),
			OutputCount: uint32(outputCount),
			Raw:         raw == 1,
		}
	}

	hasRaw, err := readByte(r)
	if err != nil {
		return nil, err
	}
	ack.HasRawBytes = hasRaw == 1
	ack.RawBytes, err = wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "raw bytes")
	if err != nil {
		return nil, err
	}

	return ack, nil
}

func writeVarIntSlice(w io.Writer, n int, writeOne func(i int) error) error {
	if err := wire.WriteVarInt(w, 0, uint64(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := writeOne(i); err != nil {
			return err
		}
	}
	return nil
}

func writeAddressPath(w io.Writer, path []uint32) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(path))); err != nil {
		return err
	}
	for _, step := range path {
		if err := wire.WriteVarInt(w, 0, uint64(step)); err != nil {
			return err
		}
	}
	return nil
}

func readAddressPath(r io.Reader) ([]uint32, error) {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	path := make([]uint32, n)
	for i := range path {
		v, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, err
		}
		path[i] = uint32(v)
	}
	return path, nil
}

func writeMultisig(w io.Writer, has bool, pubkeys [][]byte, required int) error {
	if !has {
		return writeByte(w, 0)
	}
	if err := writeByte(w, 1); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, uint64(required)); err != nil {
		return err
	}
	return writeVarIntSlice(w, len(pubkeys), func(i int) error {
		return wire.WriteVarBytes(w, 0, pubkeys[i])
	})
}

func readMultisig(r io.Reader) (bool, [][]byte, int, error) {
	has, err := readByte(r)
	if err != nil {
		return false, nil, 0, err
	}
	if has == 0 {
		return false, nil, 0, nil
	}
	required, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return false, nil, 0, err
	}
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return false, nil, 0, err
	}
	pubkeys := make([][]byte, n)
	for i := range pubkeys {
		pubkeys[i], err = wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "pubkey")
		if err != nil {
			return false, nil, 0, err
		}
	}
	return true, pubkeys, int(required), nil
}

func writeAckInput(w io.Writer, in AckInput) error {
	if _, err := w.Write(in.PrevHash[:]); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, uint64(in.PrevIndex)); err != nil {
		return err
	}
	hasSeq := byte(0)
	if in.HasSequence {
		hasSeq = 1
	}
	if err := writeByte(w, hasSeq); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, uint64(in.Sequence)); err != nil {
		return err
	}
	if err := writeByte(w, in.ScriptType); err != nil {
		return err
	}
	if err := writeAddressPath(w, in.AddressPath); err != nil {
		return err
	}
	if err := writeMultisig(w, in.HasMultisig, in.MultisigPubKeys, in.MultisigReq); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, in.UnlockingScript)
}

func readAckInput(r io.Reader) (AckInput, error) {
	in := AckInput{}
	if _, err := io.ReadFull(r, in.PrevHash[:]); err != nil {
		return in, err
	}
	prevIndex, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return in, err
	}
	in.PrevIndex = uint32(prevIndex)

	hasSeq, err := readByte(r)
	if err != nil {
		return in, err
	}
	in.HasSequence = hasSeq == 1

	seq, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return in, err
	}
	in.Sequence = uint32(seq)

	in.ScriptType, err = readByte(r)
	if err != nil {
		return in, err
	}

	in.AddressPath, err = readAddressPath(r)
	if err != nil {
		return in, err
	}

	in.HasMultisig, in.MultisigPubKeys, in.MultisigReq, err = readMultisig(r)
	if err != nil {
		return in, err
	}

	in.UnlockingScript, err = wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "unlocking script")
	return in, err
}

func writeAckOutput(w io.Writer, out AckOutput) error {
	if err := wire.WriteVarInt(w, 0, out.Amount); err != nil {
		return err
	}
	if err := writeByte(w, out.ScriptType); err != nil {
		return err
	}
	if err := writeAddressPath(w, out.AddressPath); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, uint64(int64(out.AddressType))); err != nil {
		return err
	}
	if err := writeMultisig(w, out.HasMultisig, out.MultisigPubKeys, out.MultisigReq); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, out.RawAddress)
}

func readAckOutput(r io.Reader) (AckOutput, error) {
	out := AckOutput{}
	amount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return out, err
	}
	out.Amount = amount

	out.ScriptType, err = readByte(r)
	if err != nil {
		return out, err
	}

	out.AddressPath, err = readAddressPath(r)
	if err != nil {
		return out, err
	}

	addressType, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return out, err
	}
	out.AddressType = int(addressType)

	out.HasMultisig, out.MultisigPubKeys, out.MultisigReq, err = readMultisig(r)
	if err != nil {
		return out, err
	}

	out.RawAddress, err = wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "raw address")
	return out, err
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeOptionalUint32(w io.Writer, v *uint32) error {
	if v == nil {
		return writeByte(w, 0)
	}
	if err := writeByte(w, 1); err != nil {
		return err
	}
	return wire.WriteVarInt(w, 0, uint64(*v))
}

func readOptionalUint32(r io.Reader) (*uint32, error) {
	has, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if has == 0 {
		return nil, nil
	}
	v, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	result := uint32(v)
	return &result, nil
}
