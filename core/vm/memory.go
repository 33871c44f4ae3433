package vm

import "github.com/hevmgo/sevm/core/vm/expr"

// Memory is a single Expr<Buf> plus the separately tracked byte size
// that grows monotonically to the next 32-byte multiple covering any
// accessed range (spec §4.2, §8 property 3).
type Memory struct {
	buf  expr.Buf
	size uint64
}

func newMemory() *Memory {
	return &Memory{buf: expr.ConcreteBuf{Bytes: nil}, size: 0}
}

// grow charges for and performs the expansion needed to access
// [off, off+length), returning the marginal gas cost.
func (m *Memory) grow(fee FeeSchedule, off, length uint64) (uint64, error) {
	newSize, cost, err := accessMemoryRange(fee, m.size, off, length)
	if err != nil {
		return 0, err
	}
	m.size = newSize
	return cost, nil
}

func (m *Memory) writeWord(ix expr.Word, val expr.Word) {
	m.buf = expr.NewWriteWord(ix, val, m.buf)
}

func (m *Memory) writeByte(ix expr.Word, val expr.Byte) {
	m.buf = expr.NewWriteByte(ix, val, m.buf)
}

// writeRange overlays a buffer's bytes onto memory at offset off,
// copying size bytes from src starting at srcOff (CALLDATACOPY,
// CODECOPY, EXTCODECOPY, RETURNDATACOPY, MCOPY all reduce to this).
func (m *Memory) writeRange(off expr.Word, src expr.Buf, srcOff, size expr.Word) {
	m.buf = expr.NewCopySlice(srcOff, off, size, src, m.buf)
}

// readWordAt reads 32 bytes from memory at a concrete byte offset,
// producing a Word the same way readMemory/readWord would in the
// expression layer (spec §4.1 readWord, §4.2 readMemory).
func (m *Memory) readWordAt(off expr.Word) expr.Word {
	return readWordFromBuf(off, m.buf)
}

// readRange is spec §4.2's readMemory(off, size, vm): copySlice(off, 0,
// size, vm.memory, empty-buf).
func (m *Memory) readRange(off, size expr.Word) expr.Buf {
	return expr.NewCopySlice(off, expr.LitU64(0), size, m.buf, expr.ConcreteBuf{Bytes: nil})
}

func (m *Memory) clone() *Memory {
	return &Memory{buf: m.buf, size: m.size} // Buf nodes are immutable, safe to alias
}

// readWordFromBuf reads 32 bytes from buf at byte offset ix; a concrete
// offset against a ConcreteBuf/overlay chain folds to a Lit, otherwise
// it stays a symbolic ReadWordExpr (spec §4.1).
func readWordFromBuf(ix expr.Word, buf expr.Buf) expr.Word {
	return expr.NewReadWord(ix, buf)
}
