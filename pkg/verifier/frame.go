// Package verifier implements the per-method data-flow type checker: it
// walks a method's instructions holding a current StackFrame, merging with
// declared stack-map frames and applying each opcode's type transition.
package verifier

import "github.com/igor-laevsky/gojvm-core/pkg/types"

// StackFrame is the verifier's notion of program state at one program
// point: a local-variable slot vector and an operand-stack slot vector.
// Two-word types (Long, Double) occupy two consecutive slots: the type
// itself followed by an implicit Top continuation slot. Every public
// operation preserves that shape -- a two-word slot is never followed by
// anything but Top, and that Top is never popped or read on its own.
type StackFrame struct {
	Locals []types.Type
	Stack  []types.Type
}

// NewStackFrame builds an empty frame with locals pre-sized to maxLocals
// slots, all Top (unwritten).
func NewStackFrame(maxLocals int) StackFrame {
	locals := make([]types.Type, maxLocals)
	for i := range locals {
		locals[i] = types.Top
	}
	return StackFrame{Locals: locals}
}

// Clone returns a deep copy so mutating the result never aliases f.
func (f StackFrame) Clone() StackFrame {
	locals := make([]types.Type, len(f.Locals))
	copy(locals, f.Locals)
	stack := make([]types.Type, len(f.Stack))
	copy(stack, f.Stack)
	return StackFrame{Locals: locals, Stack: stack}
}

// StackDepth is the number of occupied operand-stack slots, two-word types
// counting as 2.
func (f StackFrame) StackDepth() int { return len(f.Stack) }

// Push appends t to the stack, following a two-word type with an implicit
// Top continuation slot.
func (f *StackFrame) Push(t types.Type) {
	f.Stack = append(f.Stack, t)
	if types.SizeOf(t) == 2 {
		f.Stack = append(f.Stack, types.Top)
	}
}

// Pop removes and returns the top logical value: for a two-word type this
// consumes both its slot and the Top continuation above it (the
// continuation sits above the type on the stack, i.e. at the very top).
// Returns ok=false on an empty stack.
func (f *StackFrame) Pop() (types.Type, bool) {
	n := len(f.Stack)
	if n == 0 {
		return types.Void, false
	}
	top := f.Stack[n-1]
	if top.Equal(types.Top) && n >= 2 && types.SizeOf(f.Stack[n-2]) == 2 {
		t := f.Stack[n-2]
		f.Stack = f.Stack[:n-2]
		return t, true
	}
	f.Stack = f.Stack[:n-1]
	return top, true
}

// SetLocal writes t at slot i, growing Locals (Top-padded) if needed, and
// writing the two-word continuation slot i+1 when t is two-word.
func (f *StackFrame) SetLocal(i int, t types.Type) {
	need := i + 1
	if types.SizeOf(t) == 2 {
		need = i + 2
	}
	for len(f.Locals) < need {
		f.Locals = append(f.Locals, types.Top)
	}
	f.Locals[i] = t
	if types.SizeOf(t) == 2 {
		f.Locals[i+1] = types.Top
	}
}

// GetLocal reads slot i, or Top if i is past the end.
func (f StackFrame) GetLocal(i int) types.Type {
	if i < 0 || i >= len(f.Locals) {
		return types.Top
	}
	return f.Locals[i]
}

// SubstituteLocals replaces every local slot equal to old (per Type.Equal,
// so a bare UninitializedOffset() or a specific UninitializedOffsetAt(bci)
// both match) with replacement.
func (f *StackFrame) SubstituteLocals(old, replacement types.Type) {
	for i, t := range f.Locals {
		if t.Equal(old) {
			f.Locals[i] = replacement
		}
	}
}

// SubstituteStack is SubstituteLocals's counterpart for the operand stack.
func (f *StackFrame) SubstituteStack(old, replacement types.Type) {
	for i, t := range f.Stack {
		if t.Equal(old) {
			f.Stack[i] = replacement
		}
	}
}

// SubstituteEverywhere applies SubstituteLocals and SubstituteStack together
// -- both the `new` bci-token resolution and invokespecial-on-<init> need
// every occurrence of old, in locals and on the stack, replaced at once.
func (f *StackFrame) SubstituteEverywhere(old, replacement types.Type) {
	f.SubstituteLocals(old, replacement)
	f.SubstituteStack(old, replacement)
}

// Assignable reports whether from (the current frame) may flow into to (a
// declared target frame): equal stack depths, pairwise-assignable stack
// slots, and pairwise-assignable local slots with the shorter vector padded
// with Top.
func Assignable(from, to StackFrame) bool {
	if len(from.Stack) != len(to.Stack) {
		return false
	}
	for i := range from.Stack {
		if !types.IsAssignable(from.Stack[i], to.Stack[i]) {
			return false
		}
	}

	n := len(from.Locals)
	if len(to.Locals) > n {
		n = len(to.Locals)
	}
	for i := 0; i < n; i++ {
		if !types.IsAssignable(from.GetLocal(i), to.GetLocal(i)) {
			return false
		}
	}
	return true
}
