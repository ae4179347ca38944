package codec

import (
	"fmt"

	"github.com/chazu/slotvm/vm/opcode"
)

type decoded struct {
	op   opcode.Opcode
	arg  int
	pc   int // position of the instruction itself
	next int // position of the following instruction
}

// decode resolves EXTENDED_ARG prefixes. The result is indexed by code
// position; a prefix maps to the instruction it extends.
func decode(code []uint16) ([]decoded, error) {
	out := make([]decoded, len(code))
	ext, start := 0, 0
	for pc, w := range code {
		op, b := opcode.Split(w)
		if !op.Valid() {
			return nil, fmt.Errorf("invalid opcode %d at %d", byte(op), pc)
		}
		arg := ext | int(b)
		if op == opcode.ExtendedArg {
			ext = arg << 8
			continue
		}
		d := decoded{op: op, arg: arg, pc: pc, next: pc + 1}
		for i := start; i <= pc; i++ {
			out[i] = d
		}
		ext, start = 0, pc+1
	}
	if start != len(code) {
		return nil, fmt.Errorf("trailing EXTENDED_ARG at %d", start)
	}
	return out, nil
}

// StackDepth computes the maximum operand stack depth of code by walking
// every path from the entry. Paths reaching the same instruction at
// different depths are an error, as is a pop from an empty stack.
func StackDepth(code []uint16) (int, error) {
	instrs, err := decode(code)
	if err != nil {
		return 0, err
	}
	if len(code) == 0 {
		return 0, nil
	}

	seen := map[int]int{}
	max := 0
	type work struct{ pc, depth int }
	stack := []work{{0, 0}}

	visit := func(pc, depth int) error {
		if pc < 0 || pc >= len(code) {
			return fmt.Errorf("jump target %d out of range", pc)
		}
		pc = instrs[pc].pc
		if d, ok := seen[pc]; ok {
			if d != depth {
				return fmt.Errorf("inconsistent stack depth at %d: %d and %d", pc, d, depth)
			}
			return nil
		}
		stack = append(stack, work{pc, depth})
		return nil
	}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		in := instrs[w.pc]
		w.pc = in.pc
		if d, ok := seen[w.pc]; ok {
			if d != w.depth {
				return 0, fmt.Errorf("inconsistent stack depth at %d: %d and %d", w.pc, d, w.depth)
			}
			continue
		}
		seen[w.pc] = w.depth

		depth := w.depth
		if in.op == opcode.ForIter {
			// The exhausted path pops the iterator and jumps.
			if depth < 1 {
				return 0, fmt.Errorf("stack underflow at %d", w.pc)
			}
			if err := visit(in.next+in.arg, depth-1); err != nil {
				return 0, err
			}
		}
		after := depth + opcode.StackEffect(in.op, in.arg)
		if after < 0 || (in.op == opcode.ReturnValue && depth < 1) {
			return 0, fmt.Errorf("stack underflow at %d", w.pc)
		}
		if after > max {
			max = after
		}

		switch in.op {
		case opcode.ReturnValue:
			continue
		case opcode.JumpForward:
			if err := visit(in.next+in.arg, after); err != nil {
				return 0, err
			}
			continue
		case opcode.JumpBackward:
			if err := visit(in.next-in.arg, after); err != nil {
				return 0, err
			}
			continue
		case opcode.PopJumpIfFalse, opcode.PopJumpIfTrue:
			if err := visit(in.arg, after); err != nil {
				return 0, err
			}
		case opcode.JumpIfFalseOrPop, opcode.JumpIfTrueOrPop:
			if err := visit(in.arg, depth); err != nil {
				return 0, err
			}
		}
		if in.next >= len(code) {
			return 0, fmt.Errorf("execution falls off the end at %d", w.pc)
		}
		if err := visit(in.next, after); err != nil {
			return 0, err
		}
	}
	return max, nil
}
