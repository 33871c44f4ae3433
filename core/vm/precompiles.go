package vm

import (
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/hevmgo/sevm/crypto"
)

// isPrecompile reports whether addr names one of the nine standard
// precompiled contracts (spec §4.7/§6.3). CALL-family dispatch checks
// this before looking the address up in Env.Contracts.
func isPrecompile(addr [20]byte) (byte, bool) {
	for i := 0; i < 19; i++ {
		if addr[i] != 0 {
			return 0, false
		}
	}
	if addr[19] >= 1 && addr[19] <= 9 {
		return addr[19], true
	}
	return 0, false
}

var sigRecover = crypto.NewSigRecover()

// runPrecompile executes the precompile at id against input, returning
// its output and whether it succeeded. Gas is charged by the caller via
// gas_table.go's precompileCost before this runs (spec §5's bill-before-effect
// ordering).
func runPrecompile(id byte, input []byte) ([]byte, bool) {
	switch id {
	case 1:
		return runEcrecover(input)
	case 2:
		return runSha256(input)
	case 3:
		return runRipemd160(input)
	case 4:
		return runIdentity(input)
	case 5:
		return runModExp(input)
	case 6:
		out, err := crypto.BN254Add(input)
		return out, err == nil
	case 7:
		out, err := crypto.BN254ScalarMul(input)
		return out, err == nil
	case 8:
		out, err := crypto.BN254PairingCheck(input)
		return out, err == nil
	case 9:
		out, err := crypto.Blake2F(input)
		return out, err == nil
	}
	return nil, false
}

func runEcrecover(input []byte) ([]byte, bool) {
	out := sigRecover.EcRecoverPrecompile(input)
	if out == nil {
		return nil, false
	}
	return out, true
}

func runSha256(input []byte) ([]byte, bool) {
	sum := sha256.Sum256(input)
	return sum[:], true
}

func runRipemd160(input []byte) ([]byte, bool) {
	h := ripemd160.New()
	_, _ = h.Write(input)
	digest := h.Sum(nil)
	out := make([]byte, 32)
	copy(out[32-len(digest):], digest)
	return out, true
}

func runIdentity(input []byte) ([]byte, bool) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, true
}

// runModExp implements EIP-198: the input is a 96-byte header of
// big-endian lengths (baseLen, expLen, modLen) followed by the three
// operands, each padded to its stated length.
func runModExp(input []byte) ([]byte, bool) {
	padded := make([]byte, 96)
	copy(padded, input)
	baseLen := new(big.Int).SetBytes(padded[0:32]).Uint64()
	expLen := new(big.Int).SetBytes(padded[32:64]).Uint64()
	modLen := new(big.Int).SetBytes(padded[64:96]).Uint64()

	var rest []byte
	if len(input) > 96 {
		rest = input[96:]
	}
	base := modExpSlice(rest, 0, baseLen)
	exp := modExpSlice(rest, baseLen, expLen)
	mod := modExpSlice(rest, baseLen+expLen, modLen)

	m := new(big.Int).SetBytes(mod)
	out := make([]byte, modLen)
	if m.Sign() == 0 {
		return out, true
	}
	b := new(big.Int).SetBytes(base)
	e := new(big.Int).SetBytes(exp)
	r := new(big.Int).Exp(b, e, m)
	rb := r.Bytes()
	copy(out[modLen-uint64(len(rb)):], rb)
	return out, true
}

// modExpSlice reads length bytes starting at off from data, zero-padding
// past the end rather than panicking on a short precompile call.
func modExpSlice(data []byte, off, length uint64) []byte {
	out := make([]byte, length)
	if off >= uint64(len(data)) {
		return out
	}
	end := off + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[off:end])
	return out
}
