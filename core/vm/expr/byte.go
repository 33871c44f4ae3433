package expr

// LitByte is a concrete byte value (0-255).
type LitByte struct {
	B byte
}

func (LitByte) isByte() {}

// IndexWord is byte i of word w, counted from the most significant side
// (0 = top byte), mirroring holiman/uint256.Int.Byte's indexing and the
// EVM BYTE opcode's semantics (spec §4.1, §4.5).
type IndexWord struct {
	I Word
	W Word
}

func (IndexWord) isByte() {}

// ReadByte reads a single byte from a Buf at a symbolic or concrete
// index, used when the read can't fold against a ConcreteBuf/WriteByte
// chain (spec §4.2).
type ReadByte struct {
	Ix  Word
	Buf Buf
}

func (ReadByte) isByte() {}

// NewIndexWord folds when both the index and the word are concrete.
func NewIndexWord(i, w Word) Byte {
	if ii, ok := asLit(i); ok {
		if ii.GtUint64(31) {
			return LitByte{B: 0}
		}
		if wv, ok := asLit(w); ok {
			b := wv.Bytes32()
			return LitByte{B: b[ii.Uint64()]}
		}
	}
	return IndexWord{I: i, W: w}
}

// NewReadByte folds a concrete index against a ConcreteBuf.
func NewReadByte(ix Word, buf Buf) Byte {
	if iv, ok := asLit(ix); ok {
		if b, ok := tryReadConcreteByte(buf, iv); ok {
			return LitByte{B: b}
		}
	}
	return ReadByte{Ix: ix, Buf: buf}
}
