// Package coin holds the coin-parameter table the signing core consults for fork-id presence,
//   fee limits, and address framing, grounded on bitcoin/network.go's Network parameter rows.
package coin

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/tokenized/signcore/storage"

	"github.com/pkg/errors"
)

// Params describes one supported coin, the external "coin" collaborator from SPEC_FULL.md §6/§7.
type Params struct {
	Symbol      string `json:"symbol"`
	HasForkID   bool   `json:"has_forkid"`
	ForkID      uint8  `json:"forkid"`
	MaxFeeKB    uint64 `json:"maxfee_kb"`
	AddressType byte   `json:"address_type"`
}

// BCH is the default fork-id coin row used by the demo host and tests.
var BCH = Params{Symbol: "BCH", HasForkID: true, ForkID: 0, MaxFeeKB: 5000, AddressType: 0x00}

// BTC is the default legacy (non-fork-id) coin row used by the demo host and tests.
var BTC = Params{Symbol: "BTC", HasForkID: false, ForkID: 0, MaxFeeKB: 5000, AddressType: 0x00}

// Store loads named coin rows from a pluggable key/value backend (filesystem, mock, or S3 per
//   storage.CreateStorage's bucket-prefix dispatch), falling back to the in-memory defaults above
//   when unconfigured. This repurposes the teacher's storage package (storage/storage.go) rather
//   than introducing a bespoke persistence layer.
type Store struct {
	backend storage.Storage
	cache   map[string]Params
}

// NewStore opens a coin table backed by the given bucket ("" selects the in-memory-only table).
func NewStore(bucket, root string) (*Store, error) {
	s := &Store{cache: map[string]Params{"BCH": BCH, "BTC": BTC}}
	if bucket == "" {
		return s, nil
	}

	backend, err := storage.CreateStorage(bucket, root, 3, 2000)
	if err != nil {
		return nil, errors.Wrap(err, "create coin storage")
	}
	s.backend = backend
	return s, nil
}

// Get returns the parameters for symbol, consulting the backend before falling back to the
//   in-memory defaults.
func (s *Store) Get(ctx context.Context, symbol string) (Params, error) {
	if s.backend != nil {
		b, err := s.backend.Read(ctx, "coin/"+symbol+".json")
		if err == nil {
			var p Params
			if err := json.NewDecoder(bytes.NewReader(b)).Decode(&p); err != nil {
				return Params{}, errors.Wrap(err, "decode coin params")
			}
			return p, nil
		}
	}

	p, ok := s.cache[symbol]
	if !ok {
		return Params{}, errors.Errorf("unknown coin: %s", symbol)
	}
	return p, nil
}

// Put persists symbol's parameters to the backend, if one is configured, and updates the cache.
func (s *Store) Put(ctx context.Context, symbol string, p Params) error {
	s.cache[symbol] = p
	if s.backend == nil {
		return nil
	}

	b, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal coin params")
	}
	return s.backend.Write(ctx, "coin/"+symbol+".json", b, nil)
}
