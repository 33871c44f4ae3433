package expr

import (
	"reflect"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// structurallyEqual reports whether two expressions are the identical
// term, used by smart constructors for trivial simplifications like
// Sub{x,x} -> 0 and Eq{x,x} -> 1 without needing an SMT round-trip.
func structurallyEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// keccak256ToUint256 hashes bytes with Keccak256 and loads the digest as
// a big-endian 256-bit integer, the concrete-folding path for NewKeccak.
func keccak256ToUint256(data []byte) *uint256.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	digest := h.Sum(nil)
	var v uint256.Int
	v.SetBytes(digest)
	return &v
}
