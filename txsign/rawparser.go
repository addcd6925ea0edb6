package txsign

import "github.com/pkg/errors"

// rawStage is the eight-state raw-tx byte parser from SPEC_FULL.md §5.4. Unlike the C firmware
//   this parser advances state explicitly on every Feed call instead of falling through a switch
//   (Design Notes §9's "global-fallthrough switch" anti-pattern is not reproduced here).
type rawStage int

const (
	rawStageNotParsing rawStage = iota
	rawStageVersion
	rawStageInputCount
	rawStageInputs
	rawStageOutputCount
	rawStageOutputsValue
	rawStageOutputs
	rawStageLockTime
	rawStageDone
)

// rawInputField walks the fixed+variable fields of one previous-tx input while rawStageInputs is
//   active: prev-hash, prev-index, script length, script bytes, sequence.
type rawInputField int

const (
	rawInputPrevHash rawInputField = iota
	rawInputPrevIndex
	rawInputScriptLen
	rawInputScript
	rawInputSequence
)

// rawOutputField walks the variable-length fields of one previous-tx output while rawStageOutputs
//   is active: script length, then script bytes. The output's value is read separately under
//   rawStageOutputsValue.
type rawOutputField int

const (
	rawOutputScriptLen rawOutputField = iota
	rawOutputScript
)

// rawTxParser is a byte-at-a-time parser over an opaque previous-transaction stream, used when
//   the host cannot send structured previous-tx messages. It tracks its position purely with
//   indexed counters on typed fields, never an untyped byte pointer (Design Notes §9).
type rawTxParser struct {
	stage rawStage

	// fixed-size field cursor, consumed by Version/PrevHash/PrevIndex/Sequence/OutputValue/LockTime
	fieldPos  int
	fieldBuf  [8]byte
	fieldSize int

	// varint accumulator, shared by InputCount/OutputCount/ScriptLen
	varPos   int
	varNeed  int // 0 while reading the discriminant byte
	varValue uint64

	inputField  rawInputField
	outputField rawOutputField

	inputCount, inputsSeen   uint64
	outputCount, outputsSeen uint64
	scriptRemaining          uint64

	// prevIndex is the output index this sweep is hunting a value for (the current input's
	//   prev_index); curOutputVal accumulates that output's 8-byte little-endian value.
	prevIndex    uint64
	curOutputVal [8]byte
	matchedValue uint64
	matched      bool
}

func newRawTxParser(prevIndex uint64) *rawTxParser {
	return &rawTxParser{stage: rawStageNotParsing, prevIndex: prevIndex}
}

// Done reports whether the locktime field has been fully consumed.
func (p *rawTxParser) Done() bool {
	return p.stage == rawStageDone
}

// MatchedValue returns the amount of previous output `prevIndex`, if it has been observed yet.
func (p *rawTxParser) MatchedValue() (uint64, bool) {
	return p.matchedValue, p.matched
}

// Feed consumes one byte of the previous-transaction stream, advancing the parser. The byte has
//   already been mixed into the caller's running previous-tx hash; this only tracks position.
func (p *rawTxParser) Feed(b byte) error {
	switch p.stage {
	case rawStageNotParsing:
		p.stage = rawStageVersion
		return p.Feed(b)

	case rawStageVersion:
		p.fieldPos++
		if p.fieldPos == 4 {
			p.fieldPos = 0
			p.stage = rawStageInputCount
			p.resetVarInt()
		}
		return nil

	case rawStageInputCount:
		done, err := p.feedVarInt(b)
		if err != nil {
			return err
		}
		if done {
			p.inputCount = p.varValue
			p.inputsSeen = 0
			if p.inputCount == 0 {
				p.stage = rawStageOutputCount
				p.resetVarInt()
			} else {
				p.stage = rawStageInputs
				p.inputField = rawInputPrevHash
				p.fieldPos = 0
			}
		}
		return nil

	case rawStageInputs:
		return p.feedInput(b)

	case rawStageOutputCount:
		done, err := p.feedVarInt(b)
		if err != nil {
			return err
		}
		if done {
			p.outputCount = p.varValue
			p.outputsSeen = 0
			if p.outputCount == 0 {
				p.stage = rawStageLockTime
				p.fieldPos = 0
			} else {
				p.stage = rawStageOutputsValue
				p.fieldPos = 0
			}
		}
		return nil

	case rawStageOutputsValue:
		p.curOutputVal[p.fieldPos] = b
		p.fieldPos++
		if p.fieldPos == 8 {
			if p.outputsSeen == p.prevIndex {
				p.matchedValue = leUint64(p.curOutputVal[:])
				p.matched = true
			}
			p.fieldPos = 0
			p.stage = rawStageOutputs
			p.outputField = rawOutputScriptLen
			p.resetVarInt()
		}
		return nil

	case rawStageOutputs:
		return p.feedOutput(b)

	case rawStageLockTime:
		p.fieldPos++
		if p.fieldPos == 4 {
			p.stage = rawStageDone
		}
		return nil

	case rawStageDone:
		return errors.New("raw tx parser fed past locktime")

	default:
		return errors.Errorf("unknown raw parser stage %d", p.stage)
	}
}

func (p *rawTxParser) feedInput(b byte) error {
	switch p.inputField {
	case rawInputPrevHash:
		p.fieldPos++
		if p.fieldPos == 32 {
			p.fieldPos = 0
			p.inputField = rawInputPrevIndex
		}
	case rawInputPrevIndex:
		p.fieldPos++
		if p.fieldPos == 4 {
			p.fieldPos = 0
			p.inputField = rawInputScriptLen
			p.resetVarInt()
		}
	case rawInputScriptLen:
		done, err := p.feedVarInt(b)
		if err != nil {
			return err
		}
		if done {
			p.scriptRemaining = p.varValue
			if p.scriptRemaining == 0 {
				p.inputField = rawInputSequence
				p.fieldPos = 0
			} else {
				p.inputField = rawInputScript
			}
		}
	case rawInputScript:
		p.scriptRemaining--
		if p.scriptRemaining == 0 {
			p.inputField = rawInputSequence
			p.fieldPos = 0
		}
	case rawInputSequence:
		p.fieldPos++
		if p.fieldPos == 4 {
			p.inputsSeen++
			if p.inputsSeen == p.inputCount {
				p.stage = rawStageOutputCount
				p.resetVarInt()
			} else {
				p.inputField = rawInputPrevHash
				p.fieldPos = 0
			}
		}
	}
	return nil
}

func (p *rawTxParser) feedOutput(b byte) error {
	switch p.outputField {
	case rawOutputScriptLen:
		done, err := p.feedVarInt(b)
		if err != nil {
			return err
		}
		if done {
			p.scriptRemaining = p.varValue
			if p.scriptRemaining == 0 {
				p.completeOutput()
			} else {
				p.outputField = rawOutputScript
			}
		}
	case rawOutputScript:
		p.scriptRemaining--
		if p.scriptRemaining == 0 {
			p.completeOutput()
		}
	}
	return nil
}

func (p *rawTxParser) completeOutput() {
	p.outputsSeen++
	if p.outputsSeen == p.outputCount {
		p.stage = rawStageLockTime
		p.fieldPos = 0
	} else {
		p.stage = rawStageOutputsValue
		p.fieldPos = 0
	}
}

func (p *rawTxParser) resetVarInt() {
	p.varPos = 0
	p.varNeed = 0
	p.varValue = 0
}

// feedVarInt decodes a Bitcoin varint one byte at a time: a prefix byte <0xFD is the value
//   itself; 0xFD/0xFE/0xFF select a 2/4/8-byte little-endian payload that follows.
func (p *rawTxParser) feedVarInt(b byte) (bool, error) {
	if p.varNeed == 0 && p.varPos == 0 {
		switch {
		case b < 0xfd:
			p.varValue = uint64(b)
			return true, nil
		case b == 0xfd:
			p.varNeed = 2
		case b == 0xfe:
			p.varNeed = 4
		case b == 0xff:
			p.varNeed = 8
		}
		p.varPos = 1
		return false, nil
	}

	p.fieldBuf[p.varPos-1] = b
	p.varPos++
	if p.varPos-1 == p.varNeed {
		p.varValue = leUint64(p.fieldBuf[:p.varNeed])
		return true, nil
	}
	return false, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}
