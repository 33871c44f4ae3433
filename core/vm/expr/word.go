package expr

import (
	"github.com/holiman/uint256"
)

// Lit is a concrete 256-bit unsigned word. It is the only Word variant that
// smart constructors fold toward; every arithmetic constructor below
// collapses to a Lit when all of its operands are already Lit.
type Lit struct {
	Val *uint256.Int
}

func (Lit) isWord() {}

// LitU64 wraps a uint64 as a Lit.
func LitU64(v uint64) Lit { return Lit{Val: uint256.NewInt(v)} }

// Var is an abstract (unknown) 256-bit word, e.g. an unconstrained
// calldata word or a symbolic storage slot.
type Var struct {
	Name string
}

func (Var) isWord() {}

// asLit reports whether w is a concrete literal, returning its value.
func asLit(w Word) (*uint256.Int, bool) {
	if l, ok := w.(Lit); ok {
		return l.Val, true
	}
	return nil, false
}

type (
	Add    struct{ L, R Word }
	Sub    struct{ L, R Word }
	Mul    struct{ L, R Word }
	Div    struct{ L, R Word }
	SDiv   struct{ L, R Word }
	Mod    struct{ L, R Word }
	SMod   struct{ L, R Word }
	Exp    struct{ L, R Word }
	Lt     struct{ L, R Word }
	Gt     struct{ L, R Word }
	SLt    struct{ L, R Word }
	SGt    struct{ L, R Word }
	Eq     struct{ L, R Word }
	And    struct{ L, R Word }
	Or     struct{ L, R Word }
	Xor    struct{ L, R Word }
	Shl    struct{ L, R Word } // Shl{L: shift amount, R: value}
	Shr    struct{ L, R Word }
	Sar    struct{ L, R Word }
)

func (Add) isWord()  {}
func (Sub) isWord()  {}
func (Mul) isWord()  {}
func (Div) isWord()  {}
func (SDiv) isWord() {}
func (Mod) isWord()  {}
func (SMod) isWord() {}
func (Exp) isWord()  {}
func (Lt) isWord()   {}
func (Gt) isWord()   {}
func (SLt) isWord()  {}
func (SGt) isWord()  {}
func (Eq) isWord()   {}
func (And) isWord()  {}
func (Or) isWord()   {}
func (Xor) isWord()  {}
func (Shl) isWord()  {}
func (Shr) isWord()  {}
func (Sar) isWord()  {}

// AddMod, MulMod take three operands (Yellow Paper ternary ops).
type AddMod struct{ X, Y, M Word }
type MulMod struct{ X, Y, M Word }

func (AddMod) isWord() {}
func (MulMod) isWord() {}

// IsZero, Not are the unary Word operators.
type IsZero struct{ X Word }
type Not struct{ X Word }

func (IsZero) isWord() {}
func (Not) isWord()    {}

// SEx is SIGNEXTEND(byteIndex, word): sign-extend w treating byte
// byteIndex (0-indexed from the least significant byte) as the sign byte.
type SEx struct{ ByteIndex, W Word }

func (SEx) isWord() {}

// Keccak256(buf), lifted to Word. Folds to Lit when buf is a ConcreteBuf;
// the engine (not this pure constructor) is responsible for recording the
// resulting preimage equality into VM.keccakEqs (spec §4.1, §3.2).
type KeccakExpr struct{ Buf Buf }

func (KeccakExpr) isWord() {}

// BlockHashExpr is the symbolic form of BLOCKHASH for a non-concrete block
// number; concrete lookups fold directly to Lit in the engine (spec §4.5).
type BlockHashExpr struct{ BlockNum Word }

func (BlockHashExpr) isWord() {}

// CodeSizeExpr is EXTCODESIZE/CODESIZE for a symbolic or not-yet-fetched
// address/account.
type CodeSizeExpr struct{ Addr Word }

func (CodeSizeExpr) isWord() {}

// ReadWordExpr reads 32 bytes from a Buf at a symbolic or concrete index,
// used when the read cannot be folded to a concrete or structural result.
type ReadWordExpr struct {
	Ix  Word
	Buf Buf
}

func (ReadWordExpr) isWord() {}

// SLoadExpr is a symbolic storage read that could not be resolved
// statically by readStorage (spec §4.2): the store is undetermined at
// (Addr, Slot) and the value remains a free term tied to that store.
type SLoadExpr struct {
	Addr, Slot Word
	Store      Storage
}

func (SLoadExpr) isWord() {}

// WordFromByte widens a Byte expression to a full Word (the EVM BYTE
// opcode's result sort, despite IndexWord itself being byte-sorted).
type WordFromByte struct{ B Byte }

func (WordFromByte) isWord() {}

// --- smart constructors -----------------------------------------------

func lit(v *uint256.Int) Word { return Lit{Val: v} }

func NewAdd(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Add(a, b)) // uint256.Int.Add wraps mod 2**256
		}
		if a.IsZero() {
			return r
		}
	}
	if b, ok := asLit(r); ok && b.IsZero() {
		return l
	}
	return Add{L: l, R: r}
}

func NewSub(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Sub(a, b))
		}
	}
	if b, ok := asLit(r); ok && b.IsZero() {
		return l
	}
	if structurallyEqual(l, r) {
		return LitU64(0)
	}
	return Sub{L: l, R: r}
}

func NewMul(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Mul(a, b))
		}
		if a.IsZero() {
			return LitU64(0)
		}
		if a.IsOne() {
			return r
		}
	}
	if b, ok := asLit(r); ok {
		if b.IsZero() {
			return LitU64(0)
		}
		if b.IsOne() {
			return l
		}
	}
	return Mul{L: l, R: r}
}

func NewDiv(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Div(a, b)) // uint256.Div is 0 on divide-by-zero, matching EVM
		}
	}
	if b, ok := asLit(r); ok && b.IsOne() {
		return l
	}
	return Div{L: l, R: r}
}

func NewSDiv(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).SDiv(a, b))
		}
	}
	return SDiv{L: l, R: r}
}

func NewMod(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Mod(a, b))
		}
	}
	return Mod{L: l, R: r}
}

func NewSMod(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).SMod(a, b))
		}
	}
	return SMod{L: l, R: r}
}

func NewAddMod(x, y, m Word) Word {
	if a, ok := asLit(x); ok {
		if b, ok := asLit(y); ok {
			if c, ok := asLit(m); ok {
				return lit(new(uint256.Int).AddMod(a, b, c))
			}
		}
	}
	return AddMod{X: x, Y: y, M: m}
}

func NewMulMod(x, y, m Word) Word {
	if a, ok := asLit(x); ok {
		if b, ok := asLit(y); ok {
			if c, ok := asLit(m); ok {
				return lit(new(uint256.Int).MulMod(a, b, c))
			}
		}
	}
	return MulMod{X: x, Y: y, M: m}
}

func NewExp(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Exp(a, b))
		}
	}
	if b, ok := asLit(r); ok && b.IsZero() {
		return LitU64(1)
	}
	return Exp{L: l, R: r}
}

func boolWord(b bool) Word {
	if b {
		return LitU64(1)
	}
	return LitU64(0)
}

func NewLt(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return boolWord(a.Lt(b))
		}
	}
	return Lt{L: l, R: r}
}

func NewGt(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return boolWord(a.Gt(b))
		}
	}
	return Gt{L: l, R: r}
}

func NewSLt(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return boolWord(a.Slt(b))
		}
	}
	return SLt{L: l, R: r}
}

func NewSGt(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return boolWord(a.Sgt(b))
		}
	}
	return SGt{L: l, R: r}
}

func NewEq(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return boolWord(a.Eq(b))
		}
	}
	if structurallyEqual(l, r) {
		return LitU64(1)
	}
	return Eq{L: l, R: r}
}

func NewIsZero(x Word) Word {
	if a, ok := asLit(x); ok {
		return boolWord(a.IsZero())
	}
	return IsZero{X: x}
}

func NewAnd(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).And(a, b))
		}
		if a.IsZero() {
			return LitU64(0)
		}
	}
	if b, ok := asLit(r); ok && b.IsZero() {
		return LitU64(0)
	}
	return And{L: l, R: r}
}

func NewOr(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Or(a, b))
		}
	}
	return Or{L: l, R: r}
}

func NewXor(l, r Word) Word {
	if a, ok := asLit(l); ok {
		if b, ok := asLit(r); ok {
			return lit(new(uint256.Int).Xor(a, b))
		}
	}
	if structurallyEqual(l, r) {
		return LitU64(0)
	}
	return Xor{L: l, R: r}
}

func NewNot(x Word) Word {
	if a, ok := asLit(x); ok {
		return lit(new(uint256.Int).Not(a))
	}
	return Not{X: x}
}

// NewShl/NewShr/NewSar take (shiftAmount, value) like the EVM stack order.
func NewShl(shift, val Word) Word {
	if s, ok := asLit(shift); ok {
		if v, ok := asLit(val); ok {
			if s.GtUint64(255) {
				return LitU64(0)
			}
			return lit(new(uint256.Int).Lsh(v, uint(s.Uint64())))
		}
	}
	return Shl{L: shift, R: val}
}

func NewShr(shift, val Word) Word {
	if s, ok := asLit(shift); ok {
		if v, ok := asLit(val); ok {
			if s.GtUint64(255) {
				return LitU64(0)
			}
			return lit(new(uint256.Int).Rsh(v, uint(s.Uint64())))
		}
	}
	return Shr{L: shift, R: val}
}

func NewSar(shift, val Word) Word {
	if s, ok := asLit(shift); ok {
		if v, ok := asLit(val); ok {
			if s.GtUint64(255) {
				if v.Sign() >= 0 {
					return LitU64(0)
				}
				allOnes := new(uint256.Int).SetAllOne()
				return lit(allOnes)
			}
			return lit(new(uint256.Int).SRsh(v, uint(s.Uint64())))
		}
	}
	return Sar{L: shift, R: val}
}

// NewSEx is SIGNEXTEND(byteIndex, w): if byteIndex >= 31 the word is
// already full width and returned unchanged.
func NewSEx(byteIndex, w Word) Word {
	if bi, ok := asLit(byteIndex); ok {
		if bi.GtUint64(30) {
			return w
		}
		if wv, ok := asLit(w); ok {
			return lit(new(uint256.Int).ExtendSign(wv, bi))
		}
	}
	return SEx{ByteIndex: byteIndex, W: w}
}

func NewKeccak(b Buf) Word {
	if cb, ok := b.(ConcreteBuf); ok {
		return lit(keccak256ToUint256(cb.Bytes))
	}
	return KeccakExpr{Buf: b}
}

func NewWordFromByte(b Byte) Word {
	if lb, ok := b.(LitByte); ok {
		return LitU64(uint64(lb.B))
	}
	return WordFromByte{B: b}
}

