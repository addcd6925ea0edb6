package txsign

import (
	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/coin"
)

// Stage is one of the eight symbolic states from §4.5. The zero value, StageRequestInput, is the
//   initial state of every session.
type Stage int

const (
	StageRequestInput      Stage = iota // REQUEST_1_INPUT
	StageRequestPrevMeta                // REQUEST_2_PREV_META
	StageRequestPrevInput                // REQUEST_2_PREV_INPUT
	StageRequestPrevOutput                // REQUEST_2_PREV_OUTPUT
	StageRequestOutput                  // REQUEST_3_OUTPUT
	StageRequestSignInput                // REQUEST_4_INPUT
	StageRequestSignOutput                // REQUEST_4_OUTPUT
	StageRequestFinalOutput              // REQUEST_5_OUTPUT
	stageTerminal                       // session finished; any further Step is UnexpectedMessage
)

func (s Stage) String() string {
	switch s {
	case StageRequestInput:
		return "REQUEST_1_INPUT"
	case StageRequestPrevMeta:
		return "REQUEST_2_PREV_META"
	case StageRequestPrevInput:
		return "REQUEST_2_PREV_INPUT"
	case StageRequestPrevOutput:
		return "REQUEST_2_PREV_OUTPUT"
	case StageRequestOutput:
		return "REQUEST_3_OUTPUT"
	case StageRequestSignInput:
		return "REQUEST_4_INPUT"
	case StageRequestSignOutput:
		return "REQUEST_4_OUTPUT"
	case StageRequestFinalOutput:
		return "REQUEST_5_OUTPUT"
	default:
		return "TERMINAL"
	}
}

// Session is the single, process-wide signing session (§3), owned exclusively by a Dispatcher
//   rather than held at module/package scope (Design Notes §9).
type Session struct {
	InputsCount  uint32
	OutputsCount uint32
	Version      int32
	LockTime     uint32
	Coin         coin.Params
	Root         bitcoin.ExtendedKey

	idx1, idx2 uint32
	stage      Stage

	// changeSpend is the single change output's compiled amount, captured when isChangeOutput
	//   first fires; toSpend-changeSpend is the external total shown on the confirmation screens.
	toSpend, spending, changeSpend uint64

	multisigFP         [32]byte
	multisigFPSet      bool
	multisigFPMismatch bool
	changeSeen         bool

	ledger *hashLedger

	// hashCheckPhase1 is the tamper-detection digest fixed at the end of phase 1 (§4.5 step 4):
	//   the finalized phase-1 commit hash, for every coin. Phase 2 recomputes the commit hash for
	//   the input being signed and compares it against this value.
	hashCheckPhase1 [32]byte

	prevVerifier *PrevTxVerifier
	prevMeta     PrevMeta

	// input is the most recently received current-transaction input, retained across stages
	//   REQUEST_2_* and REQUEST_4_INPUT (§3).
	input *Input

	// inputAmounts holds each input's verified previous-output value, in phase-1 sweep order.
	//   Phase 2 never re-streams this (the host resends only path/script/prevhash), so it has to
	//   survive from phase 1 for the fork-id digest and the per-input funds check.
	inputAmounts []uint64

	legacy *legacyDigestBuilder

	fee uint64

	// signing bookkeeping for the input currently being signed (idx2 == idx1 in the phase-2
	//   inner sweep); populated when that input is seen, consumed at the sweep's last output.
	signIdx       uint32
	signPrevHash  bitcoin.Hash32
	signPrevIndex uint32
	signScript    []byte
	signAmount    uint64
	signSequence  uint32
	signMultisig  *MultisigInfo
	signSigs      [][]byte

	// scratch, zeroed on Abort
	privkey *bitcoin.Key
	pubkey  []byte
	sig     []byte
}

// Init creates a new session. The caller (Dispatcher) is responsible for rejecting a second Init
//   while one session is already live (§5's singleton rule).
func Init(inputsCount, outputsCount uint32, version int32, lockTime uint32, c coin.Params,
	root bitcoin.ExtendedKey) *Session {

	return &Session{
		InputsCount:  inputsCount,
		OutputsCount: outputsCount,
		Version:      version,
		LockTime:     lockTime,
		Coin:         c,
		Root:         root,
		stage:        StageRequestInput,
		ledger:       newHashLedger(),
	}
}

func (s *Session) Stage() Stage { return s.stage }

// Abort wipes session state, including the scratch fields holding secrets, per §5's cancellation
//   rules. The Session is left in a terminal state; any further Step returns UnexpectedMessage.
func (s *Session) Abort() {
	if s.privkey != nil {
		zeroKey(s.privkey)
	}
	for i := range s.pubkey {
		s.pubkey[i] = 0
	}
	for i := range s.sig {
		s.sig[i] = 0
	}
	s.privkey = nil
	s.pubkey = nil
	s.sig = nil
	s.stage = stageTerminal
}

func zeroKey(k *bitcoin.Key) {
	*k = bitcoin.Key{}
}
