package policy

import (
	"testing"

	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/coin"
)

func pkhAddress(t *testing.T) bitcoin.RawAddress {
	t.Helper()
	var hash bitcoin.Hash20
	for i := range hash {
		hash[i] = byte(i)
	}
	var ra bitcoin.RawAddress
	if err := ra.SetPKH(hash[:]); err != nil {
		t.Fatalf("SetPKH: %s", err)
	}
	return ra
}

func Test_CompileOutput_PKH_NoConfirmNeeded(t *testing.T) {
	ra := pkhAddress(t)
	compiled, needsConfirm, err := CompileOutput(coin.BCH, Output{Amount: 50_000, RawAddress: &ra})
	if err != nil {
		t.Fatalf("CompileOutput: %s", err)
	}
	if needsConfirm {
		t.Fatalf("a plain P2PKH output should not require individual confirmation")
	}
	if compiled.Amount != 50_000 {
		t.Fatalf("compiled amount = %d, want 50000", compiled.Amount)
	}
	if len(compiled.Script) == 0 {
		t.Fatalf("expected a non-empty locking script")
	}
}

func Test_CompileOutput_NonStandard_NeedsConfirm(t *testing.T) {
	var ra bitcoin.RawAddress
	if err := ra.SetNonStandard([]byte{0x6a, 0x01, 0x02}); err != nil {
		t.Fatalf("SetNonStandard: %s", err)
	}

	compiled, needsConfirm, err := CompileOutput(coin.BCH, Output{Amount: 0, RawAddress: &ra})
	if err != nil {
		t.Fatalf("CompileOutput: %s", err)
	}
	if !needsConfirm {
		t.Fatalf("a non-standard output should require individual confirmation")
	}
	if len(compiled.Script) != 3 {
		t.Fatalf("expected the raw script to pass through unchanged, got %x", compiled.Script)
	}
}

func Test_CompileOutput_MissingAddress(t *testing.T) {
	_, _, err := CompileOutput(coin.BCH, Output{Amount: 1})
	if err == nil {
		t.Fatalf("expected an error for an output with no address")
	}
}

func Test_EstimateSizeKB_GrowsWithCounts(t *testing.T) {
	small := EstimateSizeKB(1, 1)
	large := EstimateSizeKB(5, 5)
	if large <= small {
		t.Fatalf("EstimateSizeKB(5,5) = %f should exceed EstimateSizeKB(1,1) = %f", large, small)
	}
}

// Testable Property 4 ("Fee correctness"): the base-case building block is that size estimation
//   for a one-in-one-out transaction is small and strictly positive, the quantity the fee check
//   multiplies by coin.MaxFeeKB.
func Test_EstimateSizeKB_OneInOneOut_Positive(t *testing.T) {
	got := EstimateSizeKB(1, 1)
	if got <= 0 {
		t.Fatalf("EstimateSizeKB(1,1) = %f, want > 0", got)
	}
}
