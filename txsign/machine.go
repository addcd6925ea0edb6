package txsign

import (
	"context"

	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/coin"
	"github.com/tokenized/signcore/confirm"
	"github.com/tokenized/signcore/logger"
	"github.com/tokenized/signcore/policy"
	"github.com/tokenized/signcore/txsign/proto"
	"github.com/tokenized/signcore/wire"

	"github.com/pkg/errors"
)

// Dispatcher drives one Session through its eight stages (§4.5), translating each incoming
//   proto.TxAck into the next proto.TxRequest. It owns the Session and the external collaborators
//   a real device wires separately: the Confirmation Gate and the policy compiler. One Step call
//   consumes exactly one TxAck and produces exactly one TxRequest (Design Notes §9).
type Dispatcher struct {
	session *Session
	gate    *confirm.Gate
}

// NewDispatcher wires a Dispatcher against a UI implementation. No Session exists until Begin is
//   called.
func NewDispatcher(ui confirm.UI) *Dispatcher {
	return &Dispatcher{gate: confirm.New(ui)}
}

// InitParams describes the transaction the device is about to sign, sent once by the host before
//   the pull protocol begins (§3's per-session parameters).
type InitParams struct {
	InputsCount  uint32
	OutputsCount uint32
	Version      int32
	LockTime     uint32
	Coin         coin.Params
	Root         bitcoin.ExtendedKey
}

// Begin starts a new session, rejecting a second Begin while one is already live (§5's
//   singleton rule).
func (d *Dispatcher) Begin(ctx context.Context, params InitParams) (*proto.TxRequest, error) {
	if d.session != nil && d.session.Stage() != stageTerminal {
		return nil, newError(ErrorCodeUnexpectedMessage, "a session is already in progress")
	}
	if params.InputsCount == 0 || params.OutputsCount == 0 {
		return nil, newError(ErrorCodePolicy, "inputs_count and outputs_count must be > 0")
	}

	logger.Info(ctx, "Starting signing session : %d inputs, %d outputs", params.InputsCount,
		params.OutputsCount)

	d.session = Init(params.InputsCount, params.OutputsCount, params.Version, params.LockTime,
		params.Coin, params.Root)

	idx := uint32(0)
	return &proto.TxRequest{RequestType: proto.RequestTxInput, RequestIndex: &idx}, nil
}

// Stage reports the current session's stage, for callers that want to observe progress (e.g. the
//   demo host's status broadcaster) without driving the Step loop themselves.
func (d *Dispatcher) Stage() Stage {
	if d.session == nil {
		return stageTerminal
	}
	return d.session.Stage()
}

// Abort cancels the current session and returns the UI to its home screen.
func (d *Dispatcher) Abort(ctx context.Context, message string) {
	if d.session != nil {
		d.session.Abort()
	}
	d.gate.Abort(ctx, message)
}

func (d *Dispatcher) fail(ctx context.Context, err error) (*proto.TxRequest, error) {
	if d.session != nil {
		d.session.Abort()
	}
	d.gate.Abort(ctx, ErrorMessage(err))
	return nil, err
}

// Step advances the session by exactly one stage transition, given the host's reply to the most
//   recent TxRequest.
func (d *Dispatcher) Step(ctx context.Context, ack *proto.TxAck) (*proto.TxRequest, error) {
	s := d.session
	if s == nil || s.Stage() == stageTerminal {
		return nil, newError(ErrorCodeUnexpectedMessage, "no active session")
	}

	switch s.Stage() {
	case StageRequestInput:
		return d.stepInput(ctx, s, ack)
	case StageRequestPrevMeta:
		return d.stepPrevMeta(ctx, s, ack)
	case StageRequestPrevInput:
		return d.stepPrevInput(ctx, s, ack)
	case StageRequestPrevOutput:
		return d.stepPrevOutput(ctx, s, ack)
	case StageRequestOutput:
		return d.stepOutput(ctx, s, ack)
	case StageRequestSignInput:
		return d.stepSignInput(ctx, s, ack)
	case StageRequestSignOutput:
		return d.stepSignOutput(ctx, s, ack)
	case StageRequestFinalOutput:
		return d.stepFinalOutput(ctx, s, ack)
	default:
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, s.Stage().String()))
	}
}

// effectiveSequence resolves the open question on an input's missing sequence number: it passes
//   through as the wire default rather than inventing a fallback (SPEC_FULL.md §11(a)).
func effectiveSequence(in Input) uint32 {
	if in.HasSequence {
		return in.Sequence
	}
	return wire.MaxTxInSequenceNum
}

func (d *Dispatcher) stepInput(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if len(ack.Inputs) != 1 {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected one input"))
	}
	in := inputFromAck(ack.Inputs[0])
	s.input = &in

	if in.Multisig != nil {
		fp := MultisigFingerprint(in.Multisig)
		if !s.multisigFPSet {
			s.multisigFP = fp
			s.multisigFPSet = true
		} else if fp != s.multisigFP {
			s.multisigFPMismatch = true
		}
	} else {
		// Change detection's multisig branch requires every input to share one fingerprint;
		//   an input with no descriptor at all can never satisfy that.
		s.multisigFPMismatch = true
	}

	seq := effectiveSequence(in)
	s.ledger.WriteCommit(commitInput(in, seq))
	s.ledger.WritePrevout(in.PrevHash, in.PrevIndex)
	s.ledger.WriteSequence(seq)

	s.stage = StageRequestPrevMeta
	return &proto.TxRequest{RequestType: proto.RequestTxMeta, TxHash: &in.PrevHash}, nil
}

func (d *Dispatcher) stepPrevMeta(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if ack.Meta == nil {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected previous-tx metadata"))
	}

	if ack.Meta.Raw {
		s.prevVerifier = NewRawPrevTxVerifier(uint64(s.input.PrevIndex))
	} else {
		s.prevMeta = prevMetaFromAck(*ack.Meta)
		s.prevVerifier = NewStructuredPrevTxVerifier(s.prevMeta, uint64(s.input.PrevIndex))
	}
	s.idx2 = 0

	s.stage = StageRequestPrevInput
	zero := uint32(0)
	return &proto.TxRequest{RequestType: proto.RequestTxInput, RequestIndex: &zero,
		TxHash: &s.input.PrevHash}, nil
}

func (d *Dispatcher) stepPrevInput(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if s.prevVerifier.raw != nil {
		return d.stepPrevRaw(ctx, s, ack)
	}

	if len(ack.Inputs) != 1 {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected one previous input"))
	}
	s.prevVerifier.FeedPrevInput(prevInputFromAck(ack.Inputs[0]))
	s.idx2++

	if s.idx2 < s.prevMeta.InputCount {
		idx := s.idx2
		return &proto.TxRequest{RequestType: proto.RequestTxInput, RequestIndex: &idx,
			TxHash: &s.input.PrevHash}, nil
	}

	s.idx2 = 0
	s.stage = StageRequestPrevOutput
	zero := uint32(0)
	return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &zero,
		TxHash: &s.input.PrevHash}, nil
}

func (d *Dispatcher) stepPrevOutput(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if len(ack.BinOutputs) != 1 {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected one previous output"))
	}
	s.prevVerifier.FeedPrevOutput(prevOutputFromAck(ack.BinOutputs[0]))
	s.idx2++

	if s.idx2 < s.prevMeta.OutputCount {
		idx := s.idx2
		return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &idx,
			TxHash: &s.input.PrevHash}, nil
	}

	s.prevVerifier.FeedLockTime(s.prevMeta.LockTime)
	if err := s.prevVerifier.Verify(s.input.PrevHash); err != nil {
		return d.fail(ctx, err)
	}
	val, _ := s.prevVerifier.MatchedValue()
	s.toSpend += val
	s.input.Amount = val
	s.input.HasAmount = true
	s.inputAmounts = append(s.inputAmounts, val)

	return d.advanceAfterPrevTx(ctx, s)
}

// stepPrevRaw handles both structured-unreachable raw-mode bytes regardless of which named
//   sub-stage dispatched here: raw mode has no separate input/output phases (§4.3).
func (d *Dispatcher) stepPrevRaw(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if !ack.HasRawBytes {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected raw previous-tx bytes"))
	}
	for _, b := range ack.RawBytes {
		if s.prevVerifier.Done() {
			return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "previous tx already fully parsed"))
		}
		if err := s.prevVerifier.FeedRawByte(b); err != nil {
			return d.fail(ctx, errors.Wrap(err, "raw previous tx"))
		}
	}

	if !s.prevVerifier.Done() {
		return &proto.TxRequest{RequestType: proto.RequestTxInput, TxHash: &s.input.PrevHash}, nil
	}

	if err := s.prevVerifier.Verify(s.input.PrevHash); err != nil {
		return d.fail(ctx, err)
	}
	val, _ := s.prevVerifier.MatchedValue()
	s.toSpend += val
	s.input.Amount = val
	s.input.HasAmount = true
	s.inputAmounts = append(s.inputAmounts, val)

	return d.advanceAfterPrevTx(ctx, s)
}

func (d *Dispatcher) advanceAfterPrevTx(ctx context.Context, s *Session) (*proto.TxRequest, error) {
	s.idx1++
	if s.idx1 < s.InputsCount {
		s.stage = StageRequestInput
		idx := s.idx1
		return &proto.TxRequest{RequestType: proto.RequestTxInput, RequestIndex: &idx}, nil
	}

	s.ledger.FinalizeInputHashes()
	s.idx1 = 0
	s.stage = StageRequestOutput
	zero := uint32(0)
	return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &zero}, nil
}

func (d *Dispatcher) stepOutput(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if len(ack.Outputs) != 1 {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected one output"))
	}
	out, err := outputFromAck(ack.Outputs[0])
	if err != nil {
		return d.fail(ctx, err)
	}

	isChange := isChangeOutput(&out, s)
	if isChange {
		if s.changeSeen {
			return d.fail(ctx, newError(ErrorCodeDuplicateChange, ""))
		}
		s.changeSeen = true
	}

	compiled, needsConfirm, err := policy.CompileOutput(s.Coin, policy.Output{
		Amount: out.Amount, RawAddress: out.RawAddress, AddressPath: out.AddressPath,
	})
	if err != nil {
		return d.fail(ctx, newError(ErrorCodePolicy, err.Error()))
	}
	if needsConfirm {
		logger.Verbose(ctx, "Non-standard output requires individual confirmation : %d", compiled.Amount)
	}

	if isChange {
		s.changeSpend = compiled.Amount
	}
	s.spending += compiled.Amount
	commitBytes := commitOutput(compiled.Amount, compiled.Script)
	s.ledger.WriteCommit(commitBytes)
	s.ledger.WriteOutput(commitBytes)

	s.idx1++
	if s.idx1 < s.OutputsCount {
		idx := s.idx1
		return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &idx}, nil
	}

	if s.spending > s.toSpend {
		return d.fail(ctx, newError(ErrorCodeNotEnoughFunds, ""))
	}
	s.fee = s.toSpend - s.spending

	// externalSpend excludes the user's own change output: the confirmation screens show what is
	//   actually leaving the wallet, not the change coming back to it.
	externalSpend := s.toSpend - s.changeSpend

	sizeKB := policy.EstimateSizeKB(int(s.InputsCount), int(s.OutputsCount))
	if float64(s.fee) > sizeKB*float64(s.Coin.MaxFeeKB) {
		if !d.gate.ConfirmFee(ctx, s.fee, externalSpend) {
			return d.fail(ctx, newError(ErrorCodeActionCancelled, "fee"))
		}
	}
	if !d.gate.ConfirmTransaction(ctx, externalSpend, s.fee) {
		return d.fail(ctx, newError(ErrorCodeActionCancelled, "transaction"))
	}

	s.ledger.FinalizeOutputsHash()
	s.hashCheckPhase1 = s.ledger.FinalizeCommit()

	s.idx1 = 0
	s.idx2 = 0
	s.stage = StageRequestSignInput
	zero := uint32(0)
	return &proto.TxRequest{RequestType: proto.RequestTxInput, RequestIndex: &zero}, nil
}

func (d *Dispatcher) stepSignInput(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if len(ack.Inputs) != 1 {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected one input"))
	}
	in := inputFromAck(ack.Inputs[0])
	seq := effectiveSequence(in)

	if s.idx2 == 0 {
		s.ledger.ResetCommit()
		s.legacy = newLegacyDigestBuilder()
		s.legacy.WriteVersion(s.Version)
		s.legacy.WriteVarInt(uint64(s.InputsCount))
	}
	s.ledger.WriteCommit(commitInput(in, seq))

	var script []byte
	if s.idx2 == s.idx1 {
		priv, pub, err := derive(s.Root, in.AddressPath)
		if err != nil {
			return d.fail(ctx, newError(ErrorCodeCrypto, err.Error()))
		}

		scriptCode, err := scriptCodeFor(in, pub)
		if err != nil {
			return d.fail(ctx, newError(ErrorCodeCrypto, err.Error()))
		}

		if int(s.idx1) >= len(s.inputAmounts) {
			return d.fail(ctx, newError(ErrorCodePolicy, "input amount was never recorded in phase 1"))
		}
		amount := s.inputAmounts[s.idx1]

		if s.Coin.HasForkID {
			if amount > s.toSpend {
				return d.fail(ctx, newError(ErrorCodeChanged, ""))
			}
			s.toSpend -= amount
		}

		s.privkey = &priv
		s.pubkey = pub
		s.signIdx = s.idx2
		s.signPrevHash = in.PrevHash
		s.signPrevIndex = in.PrevIndex
		s.signScript = scriptCode
		s.signAmount = amount
		s.signSequence = seq
		s.signMultisig = in.Multisig
		script = scriptCode
	}

	s.legacy.WriteInput(in.PrevHash, in.PrevIndex, script, seq)

	s.idx2++
	if s.idx2 < s.InputsCount {
		idx := s.idx2
		return &proto.TxRequest{RequestType: proto.RequestTxInput, RequestIndex: &idx}, nil
	}

	s.idx2 = 0
	s.stage = StageRequestSignOutput
	s.legacy.WriteVarInt(uint64(s.OutputsCount))
	zero := uint32(0)
	return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &zero}, nil
}

func (d *Dispatcher) stepSignOutput(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if len(ack.Outputs) != 1 {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected one output"))
	}
	out, err := outputFromAck(ack.Outputs[0])
	if err != nil {
		return d.fail(ctx, err)
	}
	compiled, _, err := policy.CompileOutput(s.Coin, policy.Output{
		Amount: out.Amount, RawAddress: out.RawAddress, AddressPath: out.AddressPath,
	})
	if err != nil {
		return d.fail(ctx, newError(ErrorCodePolicy, err.Error()))
	}

	s.ledger.WriteCommit(commitOutput(compiled.Amount, compiled.Script))
	s.legacy.WriteOutput(compiled.Amount, compiled.Script)

	s.idx2++
	if s.idx2 < s.OutputsCount {
		idx := s.idx2
		return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &idx}, nil
	}

	return d.finishSignInput(ctx, s)
}

// finishSignInput computes the tamper-check digest and the actual signing digest for the input
//   selected at idx2 == idx1, producing that input's signed, serialized bytes (§4.5 step 5,
//   §4.6).
func (d *Dispatcher) finishSignInput(ctx context.Context, s *Session) (*proto.TxRequest, error) {
	s.legacy.WriteLockTime(s.LockTime)

	if check := s.ledger.FinalizeCommit(); check != s.hashCheckPhase1 {
		return d.fail(ctx, newError(ErrorCodeChanged, ""))
	}

	signDigest := s.legacy.Finalize(SigHashAll)
	if s.Coin.HasForkID {
		signDigest = BIP143Digest(s.Version, s.ledger.hashPrevouts, s.ledger.hashSequence, s.signPrevHash,
			s.signPrevIndex, s.signScript, s.signAmount, s.signSequence, s.ledger.hashOutputs,
			s.LockTime, s.Coin.ForkID, SigHashAll|SigHashForkID)
	}
	hash32 := bitcoin.Hash32(signDigest)
	sig, err := s.privkey.Sign(hash32)
	if err != nil {
		return d.fail(ctx, newError(ErrorCodeCrypto, err.Error()))
	}

	sigHashByte := byte(SigHashAll)
	if s.Coin.HasForkID {
		sigHashByte |= byte(SigHashForkID)
	}
	sigBytes := append(append([]byte{}, sig.Bytes()...), sigHashByte)

	var scriptSig []byte
	if s.signMultisig != nil {
		if len(s.signSigs) == 0 {
			s.signSigs = make([][]byte, len(s.signMultisig.PublicKeys))
		}
		if err := SlotMultisigSignature(s.signMultisig, s.signSigs, s.pubkey, sigBytes); err != nil {
			return d.fail(ctx, err)
		}
		scriptSig, err = AssembleMultisig(s.signMultisig, s.signSigs)
	} else {
		scriptSig, err = AssembleSingleSig(sigBytes, s.pubkey)
	}
	if err != nil {
		return d.fail(ctx, newError(ErrorCodeCrypto, err.Error()))
	}

	serialized := serializeFinalInput(s.signPrevHash, s.signPrevIndex, scriptSig, s.signSequence)

	for i := range s.pubkey {
		s.pubkey[i] = 0
	}
	zeroKey(s.privkey)
	s.privkey = nil
	s.pubkey = nil
	s.signSigs = nil

	signedIdx := s.signIdx
	s.idx1++
	s.idx2 = 0

	if s.idx1 < s.InputsCount {
		s.stage = StageRequestSignInput
		zero := uint32(0)
		return &proto.TxRequest{RequestType: proto.RequestTxInput, RequestIndex: &zero, Serialized: &proto.Serialized{
			SignatureIndex: signedIdx, Signature: sigBytes, SerializedTx: serialized,
		}}, nil
	}

	s.idx1 = 0
	s.stage = StageRequestFinalOutput
	zero := uint32(0)
	return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &zero, Serialized: &proto.Serialized{
		SignatureIndex: signedIdx, Signature: sigBytes, SerializedTx: serialized,
	}}, nil
}

func (d *Dispatcher) stepFinalOutput(ctx context.Context, s *Session, ack *proto.TxAck) (*proto.TxRequest, error) {
	if len(ack.Outputs) != 1 {
		return d.fail(ctx, newError(ErrorCodeUnexpectedMessage, "expected one output"))
	}
	out, err := outputFromAck(ack.Outputs[0])
	if err != nil {
		return d.fail(ctx, err)
	}
	compiled, _, err := policy.CompileOutput(s.Coin, policy.Output{
		Amount: out.Amount, RawAddress: out.RawAddress, AddressPath: out.AddressPath,
	})
	if err != nil {
		return d.fail(ctx, newError(ErrorCodePolicy, err.Error()))
	}

	serialized := serializeFinalOutput(compiled.Amount, compiled.Script)

	s.idx1++
	if s.idx1 < s.OutputsCount {
		idx := s.idx1
		return &proto.TxRequest{RequestType: proto.RequestTxOutput, RequestIndex: &idx, Serialized: &proto.Serialized{
			SerializedTx: serialized,
		}}, nil
	}

	logger.Info(ctx, "Signing session complete")
	s.stage = stageTerminal
	return &proto.TxRequest{RequestType: proto.RequestTxFinished, Serialized: &proto.Serialized{
		SerializedTx: serialized,
	}}, nil
}

// derive walks the session's root extended key down an address path and returns the resulting
//   private key and its public key bytes.
func derive(root bitcoin.ExtendedKey, path []uint32) (bitcoin.Key, []byte, error) {
	child, err := root.ChildKeyForPath(path)
	if err != nil {
		return bitcoin.Key{}, nil, errors.Wrap(err, "derive child key")
	}
	priv := child.Key(bitcoin.MainNet)
	if priv.IsEmpty() {
		return bitcoin.Key{}, nil, errors.New("derived key is not private")
	}
	return priv, priv.PublicKey().Bytes(), nil
}

// scriptCodeFor builds the locking script of the output being spent, used as the BIP-143
//   scriptCode and, for single-sig inputs, the legacy digest's script_sig substitute (§4.6).
func scriptCodeFor(in Input, pubkey []byte) ([]byte, error) {
	if in.Multisig != nil {
		pkhs := make([][]byte, len(in.Multisig.PublicKeys))
		for i, pk := range in.Multisig.PublicKeys {
			hash, err := bitcoin.NewHash20FromData(pk)
			if err != nil {
				return nil, err
			}
			pkhs[i] = hash[:]
		}
		var ra bitcoin.RawAddress
		if err := ra.SetMultiPKH(in.Multisig.SignaturesRequired, pkhs); err != nil {
			return nil, err
		}
		script, err := ra.LockingScript()
		return []byte(script), err
	}

	hash, err := bitcoin.NewHash20FromData(pubkey)
	if err != nil {
		return nil, err
	}
	var ra bitcoin.RawAddress
	if err := ra.SetPKH(hash[:]); err != nil {
		return nil, err
	}
	script, err := ra.LockingScript()
	return []byte(script), err
}
