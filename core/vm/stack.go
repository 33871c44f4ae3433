package vm

import "github.com/hevmgo/sevm/core/vm/expr"

// stackLimit is the EVM's hard cap on stack depth (spec §3.2, §8 property 2).
const stackLimit = 1024

// Stack is an Expr<Word> stack, top at the end of data, matching the teacher's own
// array-backed Stack in core/vm/stack.go but holding symbolic words
// instead of *uint256.Int.
type Stack struct {
	data []expr.Word
}

func newStack() *Stack { return &Stack{data: make([]expr.Word, 0, 16)} }

func (s *Stack) Len() int { return len(s.data) }

func (s *Stack) push(w expr.Word) error {
	if len(s.data) >= stackLimit {
		return ErrStackLimitExceeded{}
	}
	s.data = append(s.data, w)
	return nil
}

func (s *Stack) pop() (expr.Word, error) {
	if len(s.data) == 0 {
		return nil, ErrStackUnderrun{}
	}
	n := len(s.data) - 1
	w := s.data[n]
	s.data = s.data[:n]
	return w, nil
}

// peek returns the nth-from-top element (0 = top) without popping.
func (s *Stack) peek(n int) (expr.Word, error) {
	ix := len(s.data) - 1 - n
	if ix < 0 {
		return nil, ErrStackUnderrun{}
	}
	return s.data[ix], nil
}

// dup pushes a copy of the nth-from-top element (DUP1 -> n=0).
func (s *Stack) dup(n int) error {
	w, err := s.peek(n)
	if err != nil {
		return err
	}
	return s.push(w)
}

// swap exchanges the top element with the nth-from-top element
// (SWAP1 -> n=1).
func (s *Stack) swap(n int) error {
	top := len(s.data) - 1
	other := top - n
	if other < 0 {
		return ErrStackUnderrun{}
	}
	s.data[top], s.data[other] = s.data[other], s.data[top]
	return nil
}

// pop1/pop2/pop3 are the shared shape of spec §4.5's stackOp1/2/3:
// underrun on any operand returns StackUnderrun before any gas is billed.
func (s *Stack) pop1() (expr.Word, error) {
	return s.pop()
}

func (s *Stack) pop2() (expr.Word, expr.Word, error) {
	a, err := s.pop()
	if err != nil {
		return nil, nil, err
	}
	b, err := s.pop()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (s *Stack) pop3() (expr.Word, expr.Word, expr.Word, error) {
	a, err := s.pop()
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := s.pop()
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := s.pop()
	if err != nil {
		return nil, nil, nil, err
	}
	return a, b, c, nil
}

func (s *Stack) clone() *Stack {
	out := make([]expr.Word, len(s.data))
	copy(out, s.data)
	return &Stack{data: out}
}
