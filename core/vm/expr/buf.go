package expr

import "github.com/holiman/uint256"

// ConcreteBuf is a fully known byte buffer: calldata on a concrete
// transaction, literal init code, etc.
type ConcreteBuf struct {
	Bytes []byte
}

func (ConcreteBuf) isBuf() {}

// AbstractBuf is a named buffer of unknown/partially-known content, used
// for symbolic calldata and symbolic return data (spec §4.2).
type AbstractBuf struct {
	Name string
}

func (AbstractBuf) isBuf() {}

// WriteWord overlays a 32-byte word onto Prev at a byte offset Ix.
type WriteWord struct {
	Ix   Word
	Val  Word
	Prev Buf
}

func (WriteWord) isBuf() {}

// WriteByte overlays a single byte onto Prev at a byte offset Ix.
type WriteByte struct {
	Ix   Word
	Val  Byte
	Prev Buf
}

func (WriteByte) isBuf() {}

// CopySlice copies Size bytes from Src (at SrcOff) into Dst (at DstOff),
// the symbolic form of MCOPY / CALLDATACOPY / CODECOPY / RETURNDATACOPY.
type CopySlice struct {
	SrcOff, DstOff, Size Word
	Src, Dst             Buf
}

func (CopySlice) isBuf() {}

// NewWriteWord drops writes that are immediately fully overwritten by a
// structurally identical write (the common re-entrant MSTORE pattern)
// and otherwise constructs the overlay node directly; full constant
// folding of overlapping concrete writes is left to bufLength/readWord,
// which walk the overlay chain lazily rather than eagerly flattening it.
func NewWriteWord(ix, val Word, prev Buf) Buf {
	if prevWW, ok := prev.(WriteWord); ok && structurallyEqual(prevWW.Ix, ix) {
		return WriteWord{Ix: ix, Val: val, Prev: prevWW.Prev}
	}
	return WriteWord{Ix: ix, Val: val, Prev: prev}
}

// NewWriteByte collapses a write that is shadowed by an identical-index
// write directly beneath it, otherwise it builds the overlay node.
func NewWriteByte(ix Word, val Byte, prev Buf) Buf {
	if prevWB, ok := prev.(WriteByte); ok && structurallyEqual(prevWB.Ix, ix) {
		return WriteByte{Ix: ix, Val: val, Prev: prevWB.Prev}
	}
	return WriteByte{Ix: ix, Val: val, Prev: prev}
}

// NewCopySlice folds to a ConcreteBuf when every operand is concrete, and
// drops the copy entirely when Size is the literal zero.
func NewCopySlice(srcOff, dstOff, size Word, src, dst Buf) Buf {
	if sz, ok := asLit(size); ok && sz.IsZero() {
		return dst
	}
	so, soOk := asLit(srcOff)
	do, doOk := asLit(dstOff)
	sz, szOk := asLit(size)
	srcBuf, srcOk := src.(ConcreteBuf)
	dstBuf, dstOk := dst.(ConcreteBuf)
	if soOk && doOk && szOk && srcOk && dstOk {
		n := sz.Uint64()
		out := make([]byte, len(dstBuf.Bytes))
		copy(out, dstBuf.Bytes)
		needed := do.Uint64() + n
		if uint64(len(out)) < needed {
			grown := make([]byte, needed)
			copy(grown, out)
			out = grown
		}
		for i := uint64(0); i < n; i++ {
			srcIx := so.Uint64() + i
			var b byte
			if srcIx < uint64(len(srcBuf.Bytes)) {
				b = srcBuf.Bytes[srcIx]
			}
			out[do.Uint64()+i] = b
		}
		return ConcreteBuf{Bytes: out}
	}
	return CopySlice{SrcOff: srcOff, DstOff: dstOff, Size: size, Src: src, Dst: dst}
}

// bufLength returns the statically known length of buf when it can be
// determined without consulting an external collaborator; ok is false
// for an AbstractBuf or any overlay built on one (spec §4.2).
func bufLength(buf Buf) (uint64, bool) {
	switch b := buf.(type) {
	case ConcreteBuf:
		return uint64(len(b.Bytes)), true
	case AbstractBuf:
		return 0, false
	case WriteWord:
		base, ok := bufLength(b.Prev)
		if !ok {
			return 0, false
		}
		if ix, ok := asLit(b.Ix); ok {
			end := ix.Uint64() + 32
			if end > base {
				return end, true
			}
			return base, true
		}
		return 0, false
	case WriteByte:
		base, ok := bufLength(b.Prev)
		if !ok {
			return 0, false
		}
		if ix, ok := asLit(b.Ix); ok {
			end := ix.Uint64() + 1
			if end > base {
				return end, true
			}
			return base, true
		}
		return 0, false
	case CopySlice:
		return bufLength(b.Dst)
	}
	return 0, false
}

// BufLength exposes bufLength to other packages (spec §4.2's CODESIZE,
// RETURNDATASIZE, and the stepper's precompile-input extraction all need
// a buffer's statically-known length).
func BufLength(buf Buf) (uint64, bool) { return bufLength(buf) }

// ConcreteBytes extracts length bytes from buf starting at offset 0 when
// every byte resolves statically, for callers (precompile dispatch,
// EXTCODEHASH, SHA3 on a concrete region) that need a raw []byte rather
// than a lazily-read Word/Byte.
func ConcreteBytes(buf Buf, length uint64) ([]byte, bool) {
	out := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		b, ok := tryReadConcreteByte(buf, new(uint256.Int).SetUint64(i))
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// NewReadWord reads 32 bytes from buf starting at ix, folding to a Lit
// when every byte in range resolves statically and otherwise staying
// symbolic (spec §4.1 readWord). Reads past a statically-known buffer
// length are zero-padded, matching CALLDATALOAD's EVM semantics.
func NewReadWord(ix Word, buf Buf) Word {
	iv, ok := asLit(ix)
	if !ok {
		return ReadWordExpr{Ix: ix, Buf: buf}
	}
	var out [32]byte
	base := iv.Uint64()
	for i := 0; i < 32; i++ {
		b, ok := tryReadConcreteByte(buf, new(uint256.Int).SetUint64(base+uint64(i)))
		if !ok {
			return ReadWordExpr{Ix: ix, Buf: buf}
		}
		out[i] = b
	}
	var v uint256.Int
	v.SetBytes(out[:])
	return lit(&v)
}

// tryReadConcreteByte walks an overlay chain looking for a byte at a
// concrete index, stopping at the first write that shadows it or the
// first index it cannot resolve statically.
func tryReadConcreteByte(buf Buf, idx *uint256.Int) (byte, bool) {
	ix := idx.Uint64()
	for {
		switch b := buf.(type) {
		case ConcreteBuf:
			if ix < uint64(len(b.Bytes)) {
				return b.Bytes[ix], true
			}
			return 0, true
		case WriteByte:
			if wix, ok := asLit(b.Ix); ok {
				if wix.Uint64() == ix {
					if lb, ok := b.Val.(LitByte); ok {
						return lb.B, true
					}
					return 0, false
				}
				buf = b.Prev
				continue
			}
			return 0, false
		case WriteWord:
			if wix, ok := asLit(b.Ix); ok {
				if ix >= wix.Uint64() && ix < wix.Uint64()+32 {
					if wv, ok := asLit(b.Val); ok {
						word := wv.Bytes32()
						return word[ix-wix.Uint64()], true
					}
					return 0, false
				}
				buf = b.Prev
				continue
			}
			return 0, false
		default:
			return 0, false
		}
	}
}
