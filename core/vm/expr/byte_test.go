package expr

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestNewIndexWordLowByte(t *testing.T) {
	w := Lit{Val: uint256.NewInt(0x0102030405060708)}
	got := NewIndexWord(LitU64(31), w)
	lb, ok := got.(LitByte)
	if !ok {
		t.Fatalf("expected LitByte, got %T", got)
	}
	if lb.B != 0x08 {
		t.Errorf("byte 31 (LSB) = 0x%02x, want 0x08", lb.B)
	}
}

func TestNewIndexWordOutOfRange(t *testing.T) {
	got := NewIndexWord(LitU64(32), LitU64(0xff))
	lb, ok := got.(LitByte)
	if !ok || lb.B != 0 {
		t.Errorf("byte index >= 32 should fold to LitByte{0}, got %#v", got)
	}
}

func TestNewIndexWordSymbolic(t *testing.T) {
	x := Var{Name: "x"}
	got := NewIndexWord(Var{Name: "i"}, x)
	if _, ok := got.(IndexWord); !ok {
		t.Fatalf("expected symbolic IndexWord, got %T", got)
	}
}

func TestNewReadByteFoldsConcreteBuf(t *testing.T) {
	buf := ConcreteBuf{Bytes: []byte{1, 2, 3, 4}}
	got := NewReadByte(LitU64(2), buf)
	lb, ok := got.(LitByte)
	if !ok || lb.B != 3 {
		t.Errorf("ReadByte(2, [1,2,3,4]) = %#v, want LitByte{3}", got)
	}
}

func TestNewReadByteOutOfBounds(t *testing.T) {
	buf := ConcreteBuf{Bytes: []byte{1, 2}}
	got := NewReadByte(LitU64(5), buf)
	lb, ok := got.(LitByte)
	if !ok || lb.B != 0 {
		t.Errorf("out-of-bounds concrete read should fold to LitByte{0}, got %#v", got)
	}
}
