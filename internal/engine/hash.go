package engine

import (
	"encoding/binary"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// CanonicalPair orders two token ids bytewise so every unordered pair has one
// canonical representation.
func CanonicalPair(tokenA, tokenB string) (string, string) {
	if strings.Compare(tokenA, tokenB) <= 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

// PoolID derives the pool identifier for a token pair: the Keccak-256 digest
// of the length-prefixed canonical pair, hex-encoded. Length prefixes keep
// distinct pairs from colliding under concatenation.
func PoolID(tokenA, tokenB string) string {
	token0, token1 := CanonicalPair(tokenA, tokenB)
	buf := make([]byte, 0, len(token0)+len(token1)+2*binary.MaxVarintLen64)
	buf = appendField(buf, token0)
	buf = appendField(buf, token1)
	return crypto.Keccak256Hash(buf).Hex()
}

// opHash digests one applied operation for the event log. The sequence number
// keeps hashes unique even for identical parameters.
func opHash(seq uint64, op, poolID string, fields ...string) string {
	buf := binary.BigEndian.AppendUint64(nil, seq)
	buf = appendField(buf, op)
	buf = appendField(buf, poolID)
	for _, f := range fields {
		buf = appendField(buf, f)
	}
	return crypto.Keccak256Hash(buf).Hex()
}

func appendField(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}
