package txsign

import "github.com/tokenized/signcore/bitcoin"

// AddressType mirrors the host's optional output address-type annotation used by the Change
//   Detector. The zero value means "absent", which is itself change-qualifying for P2A outputs.
type AddressType int

const (
	AddressTypeUnspecified AddressType = iota
	AddressTypeChange
	AddressTypeExternal
)

// MultisigInfo describes the multisig descriptor attached to an input or output. The fingerprint
//   over this descriptor is what the Change Detector compares across inputs/outputs; the core
//   never inspects the public keys beyond that.
type MultisigInfo struct {
	PublicKeys         [][]byte
	SignaturesRequired int
}

// Input is the current-transaction input as streamed from the host in stage REQUEST_1_INPUT.
type Input struct {
	PrevHash  bitcoin.Hash32
	PrevIndex uint32

	// HasSequence distinguishes an explicit sequence from one the host omitted. See the open
	//   question on sequence fallback in SPEC_FULL.md.
	Sequence    uint32
	HasSequence bool

	ScriptType  byte // one of bitcoin.ScriptTypePKH, ScriptTypeMultiPKH, ...
	AddressPath []uint32
	Multisig    *MultisigInfo

	// Amount is the value of the referenced previous output. Required for fork-id coins; an
	//   absent amount on a fork-id coin is fatal (§4.5 tie-break policy).
	Amount    uint64
	HasAmount bool
}

// Output is the current-transaction output as streamed from the host in stage REQUEST_3_OUTPUT.
type Output struct {
	Amount      uint64
	ScriptType  byte
	AddressPath []uint32
	AddressType AddressType
	Multisig    *MultisigInfo

	// RawAddress is populated directly by the host for outputs that don't need policy-driven
	//   derivation (e.g. a plain OP_RETURN or a pre-built locking script).
	RawAddress *bitcoin.RawAddress
}

// CompiledOutput is the policy module's result: an amount plus ready-to-hash/serialize script
//   bytes, per the glossary's "Compiled output" entry.
type CompiledOutput struct {
	Amount uint64
	Script []byte
}

// PrevMeta carries the metadata the host sends at the start of structured previous-tx streaming.
type PrevMeta struct {
	Version      int32
	LockTime     uint32
	InputCount   uint32
	OutputCount  uint32
	ExtraDataLen uint32 // trailing payload some forks append after outputs (e.g. BSV extended format)
}

// PrevInput is one previous-transaction input streamed in structured mode.
type PrevInput struct {
	PrevHash        bitcoin.Hash32
	PrevIndex       uint32
	UnlockingScript []byte
	Sequence        uint32
}

// PrevOutput is one previous-transaction output streamed in structured mode.
type PrevOutput struct {
	Amount        uint64
	LockingScript []byte
}
