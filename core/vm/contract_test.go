package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
)

func TestMkOpIxMapSkipsPushImmediates(t *testing.T) {
	// PUSH2 0xAABB, JUMPDEST
	code := []byte{byte(PUSH1 + 1), 0xAA, 0xBB, byte(JUMPDEST)}
	m := mkOpIxMap(code)
	if m[0] != 0 || m[1] != 0 || m[2] != 0 {
		t.Errorf("PUSH2 and its immediates all map to op-index 0, got %v", m[0:3])
	}
	if m[3] != 1 {
		t.Errorf("JUMPDEST maps to op-index %d, want 1", m[3])
	}
}

func TestIsValidJumpDestRejectsPushImmediate(t *testing.T) {
	// PUSH1 0x5b (an immediate that happens to equal JUMPDEST's byte),
	// then a real JUMPDEST.
	code := []byte{byte(PUSH1), byte(JUMPDEST), byte(JUMPDEST)}
	c := NewContract(ConcreteRuntime{Code: code}, uint256.NewInt(0), 0, types.Hash{}, false)

	if isValidJumpDest(c, code, 1) {
		t.Error("byte 1 is a PUSH1 immediate, not a real JUMPDEST, but was accepted")
	}
	if !isValidJumpDest(c, code, 2) {
		t.Error("byte 2 is a real JUMPDEST, but was rejected")
	}
}

func TestIsValidJumpDestOutOfRange(t *testing.T) {
	code := []byte{byte(STOP)}
	c := NewContract(ConcreteRuntime{Code: code}, uint256.NewInt(0), 0, types.Hash{}, false)
	if isValidJumpDest(c, code, 99) {
		t.Error("out-of-range index accepted as a valid jump destination")
	}
}

func TestNewContractPrecomputesJumpTables(t *testing.T) {
	code := []byte{byte(PUSH1), 0x00, byte(JUMPDEST), byte(STOP)}
	c := NewContract(ConcreteRuntime{Code: code}, uint256.NewInt(0), 0, types.Hash{}, false)
	if len(c.OpIxMap) != len(code) {
		t.Fatalf("OpIxMap len = %d, want %d", len(c.OpIxMap), len(code))
	}
	if len(c.CodeOps) != 3 {
		t.Errorf("CodeOps len = %d, want 3 (PUSH1, JUMPDEST, STOP)", len(c.CodeOps))
	}
}

func TestInitCodeBytesNilTail(t *testing.T) {
	ic := InitCode{
		ConcretePrefix: []byte{0x60, 0x01},
		AbstractTail:   nil,
	}
	b, ok := ic.Bytes()
	if !ok {
		t.Fatal("InitCode.Bytes() ok = false with a nil abstract tail")
	}
	if len(b) != 2 {
		t.Errorf("len(b) = %d, want 2", len(b))
	}
}
