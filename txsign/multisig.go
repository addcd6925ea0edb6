package txsign

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/tokenized/signcore/bitcoin"

	"github.com/pkg/errors"
)

// MultisigFingerprint computes the opaque 32-byte descriptor fingerprint the Change Detector
//   compares across inputs and outputs (§4.4). The core treats the result as opaque; it is a
//   deterministic hash over the sorted public-key set and the required-signature count so that
//   the same wallet descriptor always fingerprints identically regardless of key order.
func MultisigFingerprint(info *MultisigInfo) [32]byte {
	keys := make([][]byte, len(info.PublicKeys))
	copy(keys, info.PublicKeys)
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	h := sha256.New()
	for _, k := range keys {
		h.Write(k)
	}
	var required [2]byte
	required[0] = byte(info.SignaturesRequired)
	required[1] = byte(info.SignaturesRequired >> 8)
	h.Write(required[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CompileMultisigRedeemScript builds the standard `OP_m <pubkey>... OP_n OP_CHECKMULTISIG` redeem
//   script for a descriptor, in the descriptor's own public-key order (not the sorted order
//   MultisigFingerprint uses) since a redeem script's key order is consensus-critical and must
//   match what the host originally compiled into the output/address.
func CompileMultisigRedeemScript(info *MultisigInfo) ([]byte, error) {
	n := len(info.PublicKeys)
	m := info.SignaturesRequired
	if n == 0 || n > 16 {
		return nil, errors.New("multisig descriptor must have between 1 and 16 public keys")
	}
	if m <= 0 || m > n {
		return nil, errors.New("multisig required-signature count out of range")
	}

	buf := &bytes.Buffer{}
	if err := buf.WriteByte(bitcoin.OP_1 + byte(m-1)); err != nil {
		return nil, err
	}
	for _, pk := range info.PublicKeys {
		if err := bitcoin.WritePushDataScript(buf, pk); err != nil {
			return nil, err
		}
	}
	if err := buf.WriteByte(bitcoin.OP_1 + byte(n-1)); err != nil {
		return nil, err
	}
	if err := buf.WriteByte(bitcoin.OP_CHECKMULTISIG); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// multisigPubkeyIndex returns the slot a pubkey occupies within a multisig descriptor, or -1 if
//   the pubkey isn't one of the descriptor's signers. Mirrors cryptoMultisigPubkeyIndex (§6).
func multisigPubkeyIndex(info *MultisigInfo, pubkey []byte) int {
	for i, k := range info.PublicKeys {
		if bytes.Equal(k, pubkey) {
			return i
		}
	}
	return -1
}
