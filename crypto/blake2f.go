package crypto

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// errBlake2FInvalidLength is returned when the precompile input is not the
// 213 bytes required by EIP-152.
var errBlake2FInvalidLength = errors.New("blake2f: invalid input length")

// Blake2F runs the BLAKE2b F compression function (precompile 0x09, EIP-152).
// Input layout: rounds(4) || h(64) || m(128) || t0(8) || t1(8) || f(1) = 213 bytes.
func Blake2F(input []byte) ([]byte, error) {
	if len(input) != 213 {
		return nil, errBlake2FInvalidLength
	}
	rounds := binary.BigEndian.Uint32(input[0:4])

	var h [8]uint64
	for i := 0; i < 8; i++ {
		h[i] = binary.LittleEndian.Uint64(input[4+i*8 : 12+i*8])
	}
	var m [16]uint64
	for i := 0; i < 16; i++ {
		m[i] = binary.LittleEndian.Uint64(input[68+i*8 : 76+i*8])
	}
	t0 := binary.LittleEndian.Uint64(input[196:204])
	t1 := binary.LittleEndian.Uint64(input[204:212])

	final := input[212]
	if final != 0 && final != 1 {
		return nil, errors.New("blake2f: invalid final flag")
	}

	blake2b.F(rounds, &h, m, [2]uint64{t0, t1}, final == 1)

	out := make([]byte, 64)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(out[i*8:i*8+8], h[i])
	}
	return out, nil
}
