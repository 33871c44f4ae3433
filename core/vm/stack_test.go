package vm

import (
	"testing"

	"github.com/hevmgo/sevm/core/vm/expr"
)

func TestStackPushPop(t *testing.T) {
	s := newStack()
	if err := s.push(expr.LitU64(10)); err != nil {
		t.Fatalf("push(10): %v", err)
	}
	if err := s.push(expr.LitU64(20)); err != nil {
		t.Fatalf("push(20): %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	w, err := s.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if lit, ok := w.(expr.Lit); !ok || lit.Val.Uint64() != 20 {
		t.Errorf("pop() = %v, want Lit(20)", w)
	}

	w, err = s.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if lit, ok := w.(expr.Lit); !ok || lit.Val.Uint64() != 10 {
		t.Errorf("pop() = %v, want Lit(10)", w)
	}

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after popping all", s.Len())
	}
}

func TestStackPopUnderrun(t *testing.T) {
	s := newStack()
	_, err := s.pop()
	if _, ok := err.(ErrStackUnderrun); !ok {
		t.Errorf("pop on empty stack: got %v, want ErrStackUnderrun", err)
	}
}

func TestStackPeekDoesNotPop(t *testing.T) {
	s := newStack()
	_ = s.push(expr.LitU64(42))
	_ = s.push(expr.LitU64(99))

	w, err := s.peek(0)
	if err != nil {
		t.Fatalf("peek(0): %v", err)
	}
	if lit, ok := w.(expr.Lit); !ok || lit.Val.Uint64() != 99 {
		t.Errorf("peek(0) = %v, want Lit(99)", w)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d after peek, want 2", s.Len())
	}
}

func TestStackOverflow(t *testing.T) {
	s := newStack()
	for i := 0; i < stackLimit; i++ {
		if err := s.push(expr.LitU64(uint64(i))); err != nil {
			t.Fatalf("push #%d: %v", i, err)
		}
	}
	if err := s.push(expr.LitU64(0)); err == nil {
		t.Fatal("expected ErrStackLimitExceeded at depth 1024")
	} else if _, ok := err.(ErrStackLimitExceeded); !ok {
		t.Errorf("got %v, want ErrStackLimitExceeded", err)
	}
}

// DUP1 duplicates the top of stack (n=0); SWAP1 exchanges top with the
// element directly beneath it (n=1) — spec §4.5's DUP/SWAP indexing.
func TestStackDupSwapIndexing(t *testing.T) {
	s := newStack()
	_ = s.push(expr.LitU64(1))
	_ = s.push(expr.LitU64(2))
	_ = s.push(expr.LitU64(3))

	if err := s.dup(0); err != nil { // DUP1
		t.Fatalf("dup(0): %v", err)
	}
	top, _ := s.peek(0)
	if lit, ok := top.(expr.Lit); !ok || lit.Val.Uint64() != 3 {
		t.Errorf("after dup(0) top = %v, want Lit(3)", top)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d after dup, want 4", s.Len())
	}

	if err := s.swap(1); err != nil { // SWAP1
		t.Fatalf("swap(1): %v", err)
	}
	top, _ = s.peek(0)
	second, _ := s.peek(1)
	if lit, ok := top.(expr.Lit); !ok || lit.Val.Uint64() != 3 {
		t.Errorf("after swap(1) top = %v, want Lit(3)", top)
	}
	if lit, ok := second.(expr.Lit); !ok || lit.Val.Uint64() != 3 {
		t.Errorf("after swap(1) second = %v, want Lit(3)", second)
	}
}

func TestStackPop2Pop3Order(t *testing.T) {
	s := newStack()
	_ = s.push(expr.LitU64(1)) // bottom
	_ = s.push(expr.LitU64(2))
	_ = s.push(expr.LitU64(3)) // top

	a, b, c, err := s.pop3()
	if err != nil {
		t.Fatalf("pop3: %v", err)
	}
	for name, w := range map[string]expr.Word{"a": a, "b": b, "c": c} {
		if _, ok := w.(expr.Lit); !ok {
			t.Fatalf("pop3 %s not a Lit: %v", name, w)
		}
	}
	if a.(expr.Lit).Val.Uint64() != 3 || b.(expr.Lit).Val.Uint64() != 2 || c.(expr.Lit).Val.Uint64() != 1 {
		t.Errorf("pop3() = (%v,%v,%v), want (3,2,1)", a, b, c)
	}
}

func TestStackCloneIsIndependent(t *testing.T) {
	s := newStack()
	_ = s.push(expr.LitU64(7))
	clone := s.clone()
	_ = s.push(expr.LitU64(8))

	if clone.Len() != 1 {
		t.Fatalf("clone.Len() = %d, want 1 (unaffected by later push)", clone.Len())
	}
	if s.Len() != 2 {
		t.Fatalf("s.Len() = %d, want 2", s.Len())
	}
}
