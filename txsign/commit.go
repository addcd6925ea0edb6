package txsign

import "github.com/tokenized/signcore/bitcoin"

// commitInput serializes the fields of an input the device actually observed in phase 1, for
//   both the running commit hash and (via the caller) the BIP-143 prevouts/sequence accumulators.
//   This is not a wire-format transaction input; it exists only so phase 2's recomputation can
//   detect any discrepancy against what phase 1 committed to (§3's tamper-detection invariant).
func commitInput(in Input, effectiveSeq uint32) []byte {
	buf := make([]byte, 0, 32+4+1+4+4*len(in.AddressPath))
	buf = append(buf, in.PrevHash[:]...)

	var idx [4]byte
	putUint32LE(idx[:], in.PrevIndex)
	buf = append(buf, idx[:]...)

	buf = append(buf, in.ScriptType)

	var seq [4]byte
	putUint32LE(seq[:], effectiveSeq)
	buf = append(buf, seq[:]...)

	buf = append(buf, encodeVarInt(uint64(len(in.AddressPath)))...)
	for _, step := range in.AddressPath {
		var b [4]byte
		putUint32LE(b[:], step)
		buf = append(buf, b[:]...)
	}

	return buf
}

// commitOutput serializes a compiled output's (amount, script) pair. The same bytes feed both the
//   running commit hash and the BIP-143 outputs accumulator (§4.5 step 4).
func commitOutput(amount uint64, script []byte) []byte {
	buf := make([]byte, 0, 8+9+len(script))

	var val [8]byte
	putUint64LE(val[:], amount)
	buf = append(buf, val[:]...)

	buf = append(buf, encodeVarInt(uint64(len(script)))...)
	buf = append(buf, script...)
	return buf
}

// serializeFinalInput produces the wire-format bytes of one signed transaction input, emitted with
//   the request that follows the last REQUEST_4_OUTPUT reply of that input's signing sweep (§4.5
//   step 5) and assembled by the host into the final tx.
func serializeFinalInput(prevHash bitcoin.Hash32, prevIndex uint32, scriptSig []byte,
	sequence uint32) []byte {

	buf := make([]byte, 0, 32+4+9+len(scriptSig)+4)
	buf = append(buf, prevHash[:]...)

	var idx [4]byte
	putUint32LE(idx[:], prevIndex)
	buf = append(buf, idx[:]...)

	buf = append(buf, encodeVarInt(uint64(len(scriptSig)))...)
	buf = append(buf, scriptSig...)

	var seq [4]byte
	putUint32LE(seq[:], sequence)
	buf = append(buf, seq[:]...)
	return buf
}

// serializeFinalOutput produces the wire-format bytes of one transaction output, emitted in
//   stage REQUEST_5_OUTPUT's response (§4.5 step 6).
func serializeFinalOutput(amount uint64, script []byte) []byte {
	buf := make([]byte, 0, 8+9+len(script))

	var val [8]byte
	putUint64LE(val[:], amount)
	buf = append(buf, val[:]...)

	buf = append(buf, encodeVarInt(uint64(len(script)))...)
	buf = append(buf, script...)
	return buf
}
