package coin

import (
	"context"
	"testing"
)

func Test_NewStore_NoBucket_ReturnsDefaults(t *testing.T) {
	s, err := NewStore("", "")
	if err != nil {
		t.Fatalf("NewStore: %s", err)
	}

	bch, err := s.Get(context.Background(), "BCH")
	if err != nil {
		t.Fatalf("Get BCH: %s", err)
	}
	if !bch.HasForkID {
		t.Fatalf("expected BCH to carry HasForkID = true")
	}

	btc, err := s.Get(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Get BTC: %s", err)
	}
	if btc.HasForkID {
		t.Fatalf("expected BTC to carry HasForkID = false")
	}
}

func Test_Store_Get_UnknownSymbol(t *testing.T) {
	s, err := NewStore("", "")
	if err != nil {
		t.Fatalf("NewStore: %s", err)
	}
	if _, err := s.Get(context.Background(), "NOPE"); err == nil {
		t.Fatalf("expected an error for an unknown coin symbol")
	}
}

func Test_Store_Put_UpdatesCache(t *testing.T) {
	s, err := NewStore("", "")
	if err != nil {
		t.Fatalf("NewStore: %s", err)
	}

	custom := Params{Symbol: "TEST", HasForkID: true, ForkID: 0x01, MaxFeeKB: 1000}
	if err := s.Put(context.Background(), "TEST", custom); err != nil {
		t.Fatalf("Put: %s", err)
	}

	got, err := s.Get(context.Background(), "TEST")
	if err != nil {
		t.Fatalf("Get TEST: %s", err)
	}
	if got != custom {
		t.Fatalf("Get after Put = %+v, want %+v", got, custom)
	}
}
