// Package policy turns an abstract transaction output into the compiled (amount, script) pair the
//   signing core hashes and serializes, generalizing the teacher's txbuilder/outputs.go +
//   txbuilder/fees.go output-construction flow to an output description streamed one at a time
//   rather than assembled in a batch wire.MsgTx.
package policy

import (
	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/coin"

	"github.com/pkg/errors"
)

// EstimatedP2PKHInputSize mirrors txbuilder.MaximumP2PKHInputSize: txid(32) + index(4) +
//   script-length(1) + signature push(74) + pubkey push(34) + sequence(4).
const EstimatedP2PKHInputSize = 32 + 4 + 1 + 74 + 34 + 4

// EstimatedP2PKHOutputSize mirrors txbuilder.P2PKHOutputSize: value(8) + script-length(1) +
//   locking script(25).
const EstimatedP2PKHOutputSize = 8 + 1 + 25

// BaseTxSize mirrors txbuilder.BaseTxSize: version(4) + locktime(4).
const BaseTxSize = 8

// Output is the abstract description of an output the host streams to the core, before policy
//   has turned it into locking-script bytes.
type Output struct {
	Amount      uint64
	RawAddress  *bitcoin.RawAddress
	AddressPath []uint32
}

// Compiled is the (amount, script_pubkey_bytes) pair ready for hashing and serialization, per the
//   glossary's "Compiled output" entry.
type Compiled struct {
	Amount uint64
	Script []byte
}

// CompileOutput realizes run_policy_compile_output (§6): given the coin's address-type byte and
//   an output description, produce its locking script. needsConfirm reports whether the
//   Confirmation Gate must show this output to the user individually (non-standard scripts do;
//   plain payments to a derived or explicit address do not beyond the aggregate total/fee prompt).
func CompileOutput(c coin.Params, out Output) (Compiled, bool, error) {
	if out.RawAddress == nil {
		return Compiled{}, false, errors.New("output missing address")
	}

	script, err := out.RawAddress.LockingScript()
	if err != nil {
		return Compiled{}, false, errors.Wrap(err, "locking script")
	}

	needsConfirm := out.RawAddress.Type() == bitcoin.ScriptTypeNonStandard
	return Compiled{Amount: out.Amount, Script: []byte(script)}, needsConfirm, nil
}

// EstimateSizeKB estimates the final transaction's size in KB, assuming all inputs are P2PKH,
//   for the fee-confirmation check in §4.5 step 4 ("fee > estimated_size * maxfee_kb").
func EstimateSizeKB(inputCount, outputCount int) float64 {
	total := BaseTxSize + varIntSize(uint64(inputCount)) + varIntSize(uint64(outputCount)) +
		inputCount*EstimatedP2PKHInputSize + outputCount*EstimatedP2PKHOutputSize
	return float64(total) / 1000.0
}

func varIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
