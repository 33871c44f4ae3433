package vm

import (
	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
)

// ContractCode is the sum type of spec §3.3: init code (still running as
// a creation frame) vs runtime code once installed.
type ContractCode interface {
	isContractCode()
	// Bytes returns the concrete byte view of the code where one exists;
	// ok is false for a SymbolicRuntime whose bytes are not all Lit.
	Bytes() (b []byte, ok bool)
	// Buf returns the code as an Expr<Buf>, for CODECOPY/EXTCODECOPY of
	// a symbolic runtime.
	Buf() expr.Buf
}

// InitCode is the code of a contract still being created: a concrete
// prefix (the compiled constructor) with an abstract tail (constructor
// arguments, which may be symbolic).
type InitCode struct {
	ConcretePrefix []byte
	AbstractTail   expr.Buf // nil means "no abstract tail"
}

func (InitCode) isContractCode() {}

func (c InitCode) Bytes() ([]byte, bool) {
	if c.AbstractTail == nil {
		return c.ConcretePrefix, true
	}
	if ab, ok := c.AbstractTail.(expr.ConcreteBuf); ok {
		out := make([]byte, 0, len(c.ConcretePrefix)+len(ab.Bytes))
		out = append(out, c.ConcretePrefix...)
		out = append(out, ab.Bytes...)
		return out, true
	}
	return nil, false
}

// Buf folds to a ConcreteBuf when the abstract tail is itself concrete
// (see Bytes); otherwise the exact byte offsets of the tail depend on a
// length the engine doesn't statically know, so it is surfaced as its
// own abstract buffer rather than a mis-sized concatenation.
func (c InitCode) Buf() expr.Buf {
	if b, ok := c.Bytes(); ok {
		return expr.ConcreteBuf{Bytes: b}
	}
	return c.AbstractTail
}

// ConcreteRuntime is fully known runtime code.
type ConcreteRuntime struct{ Code []byte }

func (ConcreteRuntime) isContractCode()         {}
func (c ConcreteRuntime) Bytes() ([]byte, bool) { return c.Code, true }
func (c ConcreteRuntime) Buf() expr.Buf         { return expr.ConcreteBuf{Bytes: c.Code} }

// SymbolicRuntime is runtime code with symbolic bytes (e.g. a contract
// deployed with a symbolic constructor return value).
type SymbolicRuntime struct{ Ops []expr.Byte }

func (SymbolicRuntime) isContractCode() {}

func (c SymbolicRuntime) Bytes() ([]byte, bool) {
	out := make([]byte, len(c.Ops))
	for i, b := range c.Ops {
		lb, ok := b.(expr.LitByte)
		if !ok {
			return nil, false
		}
		out[i] = lb.B
	}
	return out, true
}

func (c SymbolicRuntime) Buf() expr.Buf {
	if b, ok := c.Bytes(); ok {
		return expr.ConcreteBuf{Bytes: b}
	}
	var buf expr.Buf = expr.AbstractBuf{Name: "symbolic-runtime"}
	for i, b := range c.Ops {
		buf = expr.NewWriteByte(expr.LitU64(uint64(i)), b, buf)
	}
	return buf
}

// CodeOp is one decoded instruction, paired with the byte offset it
// starts at (spec §3.3 codeOps).
type CodeOp struct {
	ByteIx uint64
	Op     OpCode
}

// Contract is spec §3.3's account-code-plus-bookkeeping record.
type Contract struct {
	Code     ContractCode
	Balance  *uint256.Int
	Nonce    uint64
	Codehash types.Hash
	OpIxMap  []int
	CodeOps  []CodeOp
	External bool // true iff fetched via PleaseFetchContract (affects SLOAD, spec §4.5)
}

// mkOpIxMap scans code once, building a byte-index -> operation-index
// vector that accounts for PUSH immediates (spec §4.3).
func mkOpIxMap(code []byte) []int {
	m := make([]int, len(code))
	opIx := 0
	i := 0
	for i < len(code) {
		op := OpCode(code[i])
		m[i] = opIx
		n := pushBytes(op)
		for j := 1; j <= n && i+j < len(code); j++ {
			m[i+j] = opIx
		}
		i += n + 1
		opIx++
	}
	return m
}

// mkCodeOps decodes code into the ordered (byteIx, op) sequence used by
// the stepper and by jumpdest validation.
func mkCodeOps(code []byte) []CodeOp {
	ops := make([]CodeOp, 0, len(code))
	i := 0
	for i < len(code) {
		op := OpCode(code[i])
		ops = append(ops, CodeOp{ByteIx: uint64(i), Op: op})
		i += pushBytes(op) + 1
	}
	return ops
}

// isValidJumpDest reports whether byte index i is a legitimate JUMPDEST:
// the byte there is 0x5b *and* it is the first byte of its operation,
// i.e. not a PUSH immediate (spec §4.3).
func isValidJumpDest(c *Contract, code []byte, i uint64) bool {
	if i >= uint64(len(code)) {
		return false
	}
	if code[i] != byte(JUMPDEST) {
		return false
	}
	opIx := c.OpIxMap[i]
	if opIx < 0 || opIx >= len(c.CodeOps) {
		return false
	}
	return c.CodeOps[opIx].Op == JUMPDEST && c.CodeOps[opIx].ByteIx == i
}

// NewContract builds a Contract from runtime code, computing opIxMap and
// codeOps once up front the way the teacher's contract.go precomputes
// its jump-destination bitmap at construction time.
func NewContract(code ContractCode, balance *uint256.Int, nonce uint64, codehash types.Hash, external bool) *Contract {
	c := &Contract{Code: code, Balance: balance, Nonce: nonce, Codehash: codehash, External: external}
	if b, ok := code.Bytes(); ok {
		c.OpIxMap = mkOpIxMap(b)
		c.CodeOps = mkCodeOps(b)
	}
	return c
}
