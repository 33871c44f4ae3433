// Package expr implements the tagged expression algebra that the symbolic
// EVM threads through every operation (spec §3.1, §4.1). Each sort — Word,
// Byte, Buf, Storage, Prop — is its own Go interface so that smart
// constructors are rejected by the compiler when sorts are misused; there
// are no runtime sort tags to check.
package expr

// Word is a 256-bit EVM value: a stack slot, a memory word, a storage
// value. Lit wraps a concrete holiman/uint256.Int; every other variant is
// either a named free variable or an operator over other Words.
type Word interface {
	isWord()
}

// Byte is a single EVM byte, as read out of a word or a buffer.
type Byte interface {
	isByte()
}

// Buf is a byte buffer: calldata, memory, return data, init code.
type Buf interface {
	isBuf()
}

// Storage is a full account/slot store, either for one contract's view or
// (when AbstractStore) for the universe of all contracts.
type Storage interface {
	isStorage()
}

// Prop is a boolean proposition over Words, accumulated as path
// constraints and handed to the SMT collaborator (spec §4.8).
type Prop interface {
	isProp()
}
