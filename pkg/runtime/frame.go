package runtime

import (
	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
)

// Frame is one activation record: a function name (for diagnostics), a
// locals vector indexed by a u16 slot number, and an operand stack. Every entry, local or
// stacked, is one Value cell regardless of whether the JVM-level type is
// one-word or two-word (Long/Double collapse to a single cell here).
type Frame struct {
	MethodName string
	Class      *classfile.Class
	Method     *classfile.Method
	Locals     []Value
	Stack      []Value
}

// NewFrame allocates a frame with maxLocals local slots (zeroed to
// JavaInt(0)) and an empty operand stack reserved to maxStack capacity.
func NewFrame(cls *classfile.Class, m *classfile.Method) *Frame {
	locals := make([]Value, m.MaxLocals)
	for i := range locals {
		locals[i] = NewInt(0)
	}
	return &Frame{
		MethodName: m.Name,
		Class:      cls,
		Method:     m,
		Locals:     locals,
		Stack:      make([]Value, 0, m.MaxStack),
	}
}

func (f *Frame) Push(v Value) { f.Stack = append(f.Stack, v) }

func (f *Frame) Pop() (Value, error) {
	if len(f.Stack) == 0 {
		return Value{}, vmerrors.NewRuntimeError("operand stack underflow in %s", f.MethodName)
	}
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v, nil
}

func (f *Frame) LocalAt(i uint16) (Value, error) {
	if int(i) >= len(f.Locals) {
		return Value{}, vmerrors.NewRuntimeError("local index %d out of range in %s", i, f.MethodName)
	}
	return f.Locals[i], nil
}

func (f *Frame) SetLocal(i uint16, v Value) error {
	if int(i) >= len(f.Locals) {
		return vmerrors.NewRuntimeError("local index %d out of range in %s", i, f.MethodName)
	}
	f.Locals[i] = v
	return nil
}
