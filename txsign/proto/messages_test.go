package proto

import (
	"bytes"
	"testing"

	"github.com/tokenized/signcore/bitcoin"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"
)

func Test_WriteReadMessage_RoundTrip(t *testing.T) {
	idx := uint32(3)
	var hash bitcoin.Hash32
	for i := range hash {
		hash[i] = byte(i)
	}

	req := &TxRequest{
		RequestType:  RequestTxInput,
		RequestIndex: &idx,
		TxHash:       &hash,
		Serialized: &Serialized{
			SignatureIndex: 1,
			Signature:      []byte{0x30, 0x44, 0x02},
			SerializedTx:   []byte{0xde, 0xad, 0xbe, 0xef},
		},
	}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, req); err != nil {
		t.Fatalf("WriteMessage: %s", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %s", err)
	}

	if diff := deep.Equal(req, got); diff != nil {
		t.Fatalf("round trip mismatch: %v\nsent: %s\ngot:  %s", diff, spew.Sdump(req), spew.Sdump(got))
	}
}

func Test_WriteReadMessage_NoOptionalFields(t *testing.T) {
	req := &TxRequest{RequestType: RequestTxFinished}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, req); err != nil {
		t.Fatalf("WriteMessage: %s", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %s", err)
	}
	if diff := deep.Equal(req, got); diff != nil {
		t.Fatalf("round trip mismatch: %v", diff)
	}
}

func Test_WriteReadAck_RoundTrip(t *testing.T) {
	var hash bitcoin.Hash32
	for i := range hash {
		hash[i] = byte(2 * i)
	}

	ack := &TxAck{
		Inputs: []AckInput{
			{
				PrevHash:        hash,
				PrevIndex:       2,
				Sequence:        0xffffffff,
				HasSequence:     true,
				ScriptType:      bitcoin.ScriptTypePKH,
				AddressPath:     []uint32{0, 1, 2},
				UnlockingScript: []byte{0x47, 0x30},
			},
		},
		Outputs: []AckOutput{
			{
				Amount:      50_000,
				ScriptType:  bitcoin.ScriptTypeMultiPKH,
				AddressPath: []uint32{1, 0},
				AddressType: 1,
				HasMultisig: true,
				MultisigReq: 2,
				MultisigPubKeys: [][]byte{
					{0x02, 0x01},
					{0x03, 0x04},
				},
				RawAddress: []byte{0x20, 0xaa, 0xbb},
			},
		},
		BinOutputs: []AckBinOutput{
			{Amount: 12_345, LockingScript: []byte{0x76, 0xa9}},
		},
		Meta: &AckMeta{Version: 2, LockTime: 500_000, InputCount: 1, OutputCount: 1, Raw: false},
	}

	var buf bytes.Buffer
	if err := WriteAck(&buf, ack); err != nil {
		t.Fatalf("WriteAck: %s", err)
	}

	got, err := ReadAck(&buf)
	if err != nil {
		t.Fatalf("ReadAck: %s", err)
	}

	if diff := deep.Equal(ack, got); diff != nil {
		t.Fatalf("round trip mismatch: %v\nsent: %s\ngot:  %s", diff, spew.Sdump(ack), spew.Sdump(got))
	}
}

func Test_WriteReadAck_RawBytes(t *testing.T) {
	ack := &TxAck{HasRawBytes: true, RawBytes: []byte{0x01, 0x02, 0x03, 0x04}}

	var buf bytes.Buffer
	if err := WriteAck(&buf, ack); err != nil {
		t.Fatalf("WriteAck: %s", err)
	}

	got, err := ReadAck(&buf)
	if err != nil {
		t.Fatalf("ReadAck: %s", err)
	}
	if diff := deep.Equal(ack, got); diff != nil {
		t.Fatalf("round trip mismatch: %v", diff)
	}
}
