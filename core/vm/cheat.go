package vm

import (
	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
	"github.com/hevmgo/sevm/crypto"
)

// cheatAddress is keccak256("hevm cheat code")[12..] (spec §6.2).
var cheatAddress = types.BytesToAddress(crypto.Keccak256([]byte("hevm cheat code"))[12:])

type cheatOutcome int

const (
	cheatOK cheatOutcome = iota
	cheatRevert
	cheatBadSelector
	cheatPending // an FFI query was just issued; the caller must pause on it
)

type cheatHandler func(vm *VM, calldata []byte) ([]byte, cheatOutcome)

var cheatTable = map[[4]byte]cheatHandler{
	selectorOf("warp(uint256)"):                  cheatWarp,
	selectorOf("roll(uint256)"):                  cheatRoll,
	selectorOf("store(address,bytes32,bytes32)"): cheatStore,
	selectorOf("load(address,bytes32)"):           cheatLoad,
	selectorOf("sign(uint256,bytes32)"):           cheatSign,
	selectorOf("addr(uint256)"):                   cheatAddr,
	selectorOf("prank(address)"):                  cheatPrank,
	selectorOf("ffi(string[])"):                   cheatFFI,
}

func selectorOf(sig string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
	return sel
}

// dispatchCheatCode implements spec §6.2's fixed selector table. It
// runs synchronously within the CALL/STATICCALL handler, the same way
// a precompile does — no new frame is pushed.
func dispatchCheatCode(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	if len(calldata) < 4 {
		return nil, cheatBadSelector
	}
	var sel [4]byte
	copy(sel[:], calldata[:4])
	h, ok := cheatTable[sel]
	if !ok {
		return nil, cheatBadSelector
	}
	return h(vm, calldata)
}

func cheatWord(calldata []byte, i int) []byte {
	start := 4 + 32*i
	out := make([]byte, 32)
	if start >= len(calldata) {
		return out
	}
	end := start + 32
	if end > len(calldata) {
		end = len(calldata)
	}
	copy(out, calldata[start:end])
	return out
}

func cheatWarp(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	var v uint256.Int
	v.SetBytes(cheatWord(calldata, 0))
	vm.Block.Timestamp = &v
	return nil, cheatOK
}

func cheatRoll(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	var v uint256.Int
	v.SetBytes(cheatWord(calldata, 0))
	vm.Block.Number = &v
	return nil, cheatOK
}

func cheatStore(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	addr := types.BytesToAddress(cheatWord(calldata, 0)[12:])
	var slot, val [32]byte
	copy(slot[:], cheatWord(calldata, 1))
	copy(val[:], cheatWord(calldata, 2))

	ensureAccount(vm, addr)
	var slotWord, valWord uint256.Int
	slotWord.SetBytes(slot[:])
	valWord.SetBytes(val[:])
	vm.Env.Storage = expr.NewSStore(addrToWord(addr), lit256(&slotWord), lit256(&valWord), vm.Env.Storage)
	return nil, cheatOK
}

func cheatLoad(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	addr := types.BytesToAddress(cheatWord(calldata, 0)[12:])
	var slot [32]byte
	copy(slot[:], cheatWord(calldata, 1))
	var slotWord uint256.Int
	slotWord.SetBytes(slot[:])

	w := expr.NewSLoad(addrToWord(addr), lit256(&slotWord), vm.Env.Storage)
	out := make([]byte, 32)
	if lw, ok := w.(expr.Lit); ok {
		b := lw.Val.Bytes32()
		copy(out, b[:])
	}
	return out, cheatOK
}

// cheatSign signs digest with the private key uint256, deriving the
// legacy recovery byte from the signature's actual parity rather than
// hard-coding v=28 (spec §9's flagged correction: a hard-coded v silently
// breaks on roughly half of all keys/digests).
func cheatSign(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	keyBytes := cheatWord(calldata, 0)
	digest := cheatWord(calldata, 1)

	prv, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, cheatRevert
	}
	sig, err := crypto.Sign(digest, prv)
	if err != nil || len(sig) != 65 {
		return nil, cheatRevert
	}
	v := crypto.EncodeVLegacy(sig[64])

	out := make([]byte, 96)
	out[31] = v
	copy(out[32:64], sig[0:32])
	copy(out[64:96], sig[32:64])
	return out, cheatOK
}

func cheatAddr(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	keyBytes := cheatWord(calldata, 0)
	prv, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, cheatRevert
	}
	addr := crypto.PubkeyToAddress(prv.PublicKey)
	out := make([]byte, 32)
	copy(out[12:], addr[:])
	return out, cheatOK
}

func cheatPrank(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	addr := types.BytesToAddress(cheatWord(calldata, 0)[12:])
	vm.OverrideCaller = &addr
	return nil, cheatOK
}

// cheatFFI decodes a dynamic string[] argument and either answers from
// an already-resolved Cache entry (on resume) or pauses with
// PleaseDoFFI; a disallowed call reverts with a plain string, per
// spec §6.2.
func cheatFFI(vm *VM, calldata []byte) ([]byte, cheatOutcome) {
	if !vm.AllowFFI {
		return []byte("ffi disabled"), cheatRevert
	}
	key := iterKey{Addr: vm.State.Contract, PC: vm.State.PC}
	if out, ok := vm.Cache.FFIAnswers[key]; ok {
		return out, cheatOK
	}
	argv, ok := decodeStringArray(calldata[4:])
	if !ok {
		return nil, cheatBadSelector
	}
	vm.Result = &Result{Success: false, Err: ErrQuery{Q: &Query{Kind: PleaseDoFFI, Argv: argv, PC: key}}}
	return nil, cheatPending
}

// decodeStringArray parses ABI-encoded string[] calldata (offset,
// length, then per-element offsets/lengths/bytes).
func decodeStringArray(data []byte) ([]string, bool) {
	if len(data) < 32 {
		return nil, false
	}
	headOff := new(uint256.Int).SetBytes(data[:32]).Uint64()
	if uint64(len(data)) < headOff+32 {
		return nil, false
	}
	n := new(uint256.Int).SetBytes(data[headOff : headOff+32]).Uint64()
	out := make([]string, 0, n)
	base := headOff + 32
	for i := uint64(0); i < n; i++ {
		offWordStart := base + i*32
		if uint64(len(data)) < offWordStart+32 {
			return nil, false
		}
		elemOff := base + new(uint256.Int).SetBytes(data[offWordStart:offWordStart+32]).Uint64()
		if uint64(len(data)) < elemOff+32 {
			return nil, false
		}
		strLen := new(uint256.Int).SetBytes(data[elemOff : elemOff+32]).Uint64()
		strStart := elemOff + 32
		if uint64(len(data)) < strStart+strLen {
			return nil, false
		}
		out = append(out, string(data[strStart:strStart+strLen]))
	}
	return out, true
}
