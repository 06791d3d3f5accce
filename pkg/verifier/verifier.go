package verifier

import (
	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/igor-laevsky/gojvm-core/pkg/vmlog"
)

// entryFrame synthesizes the frame a method starts executing with: its
// receiver slot (if any) followed by its argument types, each promoted to
// its stack representation. A non-static <init> starts with UninitializedThis,
// except in a class with no superclass, whose <init> has no super
// constructor to call and starts with Class; any other instance method
// starts with Class; static methods get no receiver slot at all.
func entryFrame(cls *classfile.Class, m *classfile.Method) StackFrame {
	f := NewStackFrame(0)
	idx := 0
	if !m.IsStatic() {
		recv := types.Class
		if m.IsInit() && cls.SuperClass != "" {
			recv = types.UninitializedThis
		}
		f.SetLocal(idx, recv)
		idx += types.SizeOf(recv)
	}
	for _, a := range m.ArgTypes {
		promoted := types.PromoteToStack(a)
		f.SetLocal(idx, promoted)
		idx += types.SizeOf(promoted)
	}
	return f
}

func containsUninitializedThis(f StackFrame) bool {
	for _, t := range f.Locals {
		if t.Equal(types.UninitializedThis) {
			return true
		}
	}
	for _, t := range f.Stack {
		if t.Equal(types.UninitializedThis) {
			return true
		}
	}
	return false
}

// VerifyClass verifies every method of cls, stopping at the first failure.
func VerifyClass(cls *classfile.Class) error {
	for i := range cls.Methods {
		if err := Verify(cls, &cls.Methods[i]); err != nil {
			vmlog.Warn().Str("class", cls.Name).Str("method", cls.Methods[i].Name).Err(err).Msg("verification failed")
			return err
		}
	}
	return nil
}

// Verify runs the per-method data-flow check described in the package doc:
// a single forward pass over m's instructions in bci order, merging against
// declared stack-map frames and applying each opcode's type transition.
func Verify(cls *classfile.Class, m *classfile.Method) error {
	entry := entryFrame(cls, m)
	declared := buildDeclaredFrames(m.StackMapFrames, entry)
	current := entry.Clone()

	maxStack := int(m.MaxStack)
	maxLocals := int(m.MaxLocals)

	checkBounds := func(bci bytecode.Bci) error {
		if current.StackDepth() > maxStack {
			return vmerrors.NewVerificationError("operand stack exceeds max_stack at bci %d in %s", bci, m.Name)
		}
		if len(current.Locals) > maxLocals {
			return vmerrors.NewVerificationError("locals exceed max_locals at bci %d in %s", bci, m.Name)
		}
		return nil
	}

	mergeAt := func(bci bytecode.Bci) error {
		df, ok := declaredFrameAt(declared, bci)
		if !ok {
			return nil
		}
		target := df.asStackFrame()
		if !Assignable(current, target) {
			return vmerrors.NewVerificationError("frame at bci %d is not assignable to the declared frame in %s", bci, m.Name)
		}
		current = target
		return nil
	}

	checkBranchTarget := func(from StackFrame, target bytecode.Bci, bci bytecode.Bci) error {
		df, ok := declaredFrameAt(declared, target)
		if !ok {
			return vmerrors.NewVerificationError("branch at bci %d in %s has no declared frame at target %d", bci, m.Name, target)
		}
		if !Assignable(from, df.asStackFrame()) {
			return vmerrors.NewVerificationError("branch at bci %d in %s cannot merge into target frame at %d", bci, m.Name, target)
		}
		return nil
	}

	for _, in := range m.Instructions {
		if err := mergeAt(in.Bci); err != nil {
			return err
		}

		if err := stepInstruction(cls, m, &current, in, checkBranchTarget); err != nil {
			return err
		}

		if err := checkBounds(in.Bci); err != nil {
			return err
		}
	}

	return nil
}

// stepInstruction applies one instruction's type transition to current,
// grouped per the projection accessors on Instruction where the opcode
// family has one (constant-value, comparison, load/store-index), and a
// plain opcode switch for everything else.
func stepInstruction(
	cls *classfile.Class,
	m *classfile.Method,
	current *StackFrame,
	in bytecode.Instruction,
	checkBranchTarget func(from StackFrame, target, bci bytecode.Bci) error,
) error {
	if kind, _, _ := in.ConstantValue(); kind != bytecode.ConstNone {
		switch kind {
		case bytecode.ConstInt:
			current.Push(types.Int)
		case bytecode.ConstDouble:
			current.Push(types.Double)
		}
		return nil
	}

	switch in.Opcode {
	case bytecode.OpAconstNull:
		current.Push(types.Null)
		return nil
	case bytecode.OpBipush:
		current.Push(types.Int)
		return nil
	}

	if slot, isLoad, ok := in.LocalIndex(); ok {
		return stepLocalAccess(m, current, in, slot, isLoad)
	}

	if op, isUnary, target := in.Comparison(); op != bytecode.CompNone {
		n := 2
		if isUnary {
			n = 1
		}
		for i := 0; i < n; i++ {
			v, ok := current.Pop()
			if !ok {
				return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
			}
			if !v.Equal(types.Int) {
				return vmerrors.NewVerificationError("comparison operand is not Int at bci %d in %s", in.Bci, m.Name)
			}
		}
		return checkBranchTarget(*current, target, in.Bci)
	}

	if target, ok := in.IsGoto(); ok {
		return checkBranchTarget(*current, target, in.Bci)
	}

	switch in.Opcode {
	case bytecode.OpDup:
		top, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		if types.SizeOf(top) != 1 {
			return vmerrors.NewVerificationError("dup on a two-word type at bci %d in %s", in.Bci, m.Name)
		}
		current.Push(top)
		current.Push(top)
		return nil

	case bytecode.OpIadd, bytecode.OpIsub, bytecode.OpImul, bytecode.OpIdiv, bytecode.OpIrem:
		for i := 0; i < 2; i++ {
			v, ok := current.Pop()
			if !ok {
				return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
			}
			if !v.Equal(types.Int) {
				return vmerrors.NewVerificationError("%s operand is not Int at bci %d in %s", in.Mnemonic(), in.Bci, m.Name)
			}
		}
		current.Push(types.Int)
		return nil

	case bytecode.OpIneg:
		v, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		if !v.Equal(types.Int) {
			return vmerrors.NewVerificationError("ineg operand is not Int at bci %d in %s", in.Bci, m.Name)
		}
		current.Push(types.Int)
		return nil

	case bytecode.OpIinc:
		local := current.GetLocal(int(in.IincIndex))
		if !local.Equal(types.Int) {
			return vmerrors.NewVerificationError("iinc on non-Int local %d at bci %d in %s", in.IincIndex, in.Bci, m.Name)
		}
		return nil

	case bytecode.OpGetstatic, bytecode.OpPutstatic, bytecode.OpGetfield, bytecode.OpPutfield:
		return stepFieldAccess(cls, m, current, in)

	case bytecode.OpNew:
		if _, err := cls.Pool.ClassName(classfile.ClassRef(in.Index)); err != nil {
			return vmerrors.NewVerificationError("new at bci %d in %s references an invalid class: %v", in.Bci, m.Name, err)
		}
		current.Push(types.UninitializedOffsetAt(uint32(in.Bci)))
		return nil

	case bytecode.OpInvokespecial:
		return stepInvokespecial(cls, m, current, in)

	case bytecode.OpReturn:
		if !m.ReturnType.Equal(types.Void) {
			return vmerrors.NewVerificationError("return in non-void method %s at bci %d", m.Name, in.Bci)
		}
		if containsUninitializedThis(*current) {
			return vmerrors.NewVerificationError("return with uninitialized this in %s at bci %d", m.Name, in.Bci)
		}
		return nil

	case bytecode.OpIreturn:
		if !m.ReturnType.Equal(types.Int) {
			return vmerrors.NewVerificationError("ireturn return-type mismatch in %s at bci %d", m.Name, in.Bci)
		}
		v, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		if !v.Equal(types.Int) {
			return vmerrors.NewVerificationError("ireturn operand is not Int at bci %d in %s", in.Bci, m.Name)
		}
		return nil

	case bytecode.OpDreturn:
		if !m.ReturnType.Equal(types.Double) {
			return vmerrors.NewVerificationError("dreturn return-type mismatch in %s at bci %d", m.Name, in.Bci)
		}
		v, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		if !v.Equal(types.Double) {
			return vmerrors.NewVerificationError("dreturn operand is not Double at bci %d in %s", in.Bci, m.Name)
		}
		return nil
	}

	return vmerrors.NewVerificationError("unhandled opcode %s at bci %d in %s", in.Mnemonic(), in.Bci, m.Name)
}

func stepLocalAccess(m *classfile.Method, current *StackFrame, in bytecode.Instruction, slot uint16, isLoad bool) error {
	if isLoad {
		local := current.GetLocal(int(slot))
		if in.IsReferenceLocal() {
			if !types.IsAssignable(local, types.Reference) {
				return vmerrors.NewVerificationError("aload from non-reference local %d at bci %d in %s", slot, in.Bci, m.Name)
			}
			current.Push(local)
			return nil
		}
		if !local.Equal(types.Int) {
			return vmerrors.NewVerificationError("iload from non-Int local %d at bci %d in %s", slot, in.Bci, m.Name)
		}
		current.Push(types.Int)
		return nil
	}

	v, ok := current.Pop()
	if !ok {
		return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
	}
	if in.IsReferenceLocal() {
		if !types.IsAssignable(v, types.Reference) {
			return vmerrors.NewVerificationError("astore of non-reference value at bci %d in %s", in.Bci, m.Name)
		}
		current.SetLocal(int(slot), v)
		return nil
	}
	if !v.Equal(types.Int) {
		return vmerrors.NewVerificationError("istore of non-Int value at bci %d in %s", in.Bci, m.Name)
	}
	current.SetLocal(int(slot), types.Int)
	return nil
}

func stepFieldAccess(cls *classfile.Class, m *classfile.Method, current *StackFrame, in bytecode.Instruction) error {
	fr, err := cls.Pool.ResolveFieldRef(classfile.FieldRefRef(in.Index))
	if err != nil {
		return vmerrors.NewVerificationError("field access at bci %d in %s references an invalid FieldRef: %v", in.Bci, m.Name, err)
	}
	ft, _, err := types.ParseFieldDescriptor(fr.Descriptor)
	if err != nil {
		return vmerrors.NewVerificationError("field access at bci %d in %s has an unparseable descriptor: %v", in.Bci, m.Name, err)
	}
	promoted := types.PromoteToStack(ft)

	switch in.Opcode {
	case bytecode.OpGetstatic:
		current.Push(promoted)
	case bytecode.OpPutstatic:
		v, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		if !types.IsAssignable(v, promoted) {
			return vmerrors.NewVerificationError("putstatic value type mismatch at bci %d in %s", in.Bci, m.Name)
		}
	case bytecode.OpGetfield:
		recv, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		if !types.IsAssignable(recv, types.Class) {
			return vmerrors.NewVerificationError("getfield receiver not assignable to the owning class at bci %d in %s", in.Bci, m.Name)
		}
		current.Push(promoted)
	case bytecode.OpPutfield:
		v, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		recv, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		if !types.IsAssignable(recv, types.Class) {
			return vmerrors.NewVerificationError("putfield receiver not assignable to the owning class at bci %d in %s", in.Bci, m.Name)
		}
		if !types.IsAssignable(v, promoted) {
			return vmerrors.NewVerificationError("putfield value type mismatch at bci %d in %s", in.Bci, m.Name)
		}
	}
	return nil
}

// stepInvokespecial handles the one invokespecial shape this core verifies:
// a call to an <init> method, whose receiver must be an uninitialized
// reference (UninitializedThis or a `new`'s UninitializedOffset) that gets
// substituted with Class everywhere in the frame once the call type-checks.
func stepInvokespecial(cls *classfile.Class, m *classfile.Method, current *StackFrame, in bytecode.Instruction) error {
	mr, err := cls.Pool.ResolveMethodRef(classfile.MethodRefRef(in.Index))
	if err != nil {
		return vmerrors.NewVerificationError("invokespecial at bci %d in %s references an invalid MethodRef: %v", in.Bci, m.Name, err)
	}
	if mr.Name != "<init>" {
		return vmerrors.NewVerificationError("invokespecial on %s at bci %d in %s is not supported by this core", mr.Name, in.Bci, m.Name)
	}

	_, args, err := types.ParseMethodDescriptor(mr.Descriptor)
	if err != nil {
		return vmerrors.NewVerificationError("invokespecial at bci %d in %s has an unparseable descriptor: %v", in.Bci, m.Name, err)
	}

	for i := len(args) - 1; i >= 0; i-- {
		v, ok := current.Pop()
		if !ok {
			return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
		}
		promoted := types.PromoteToStack(args[i])
		if !types.IsAssignable(v, promoted) {
			return vmerrors.NewVerificationError("invokespecial argument %d type mismatch at bci %d in %s", i, in.Bci, m.Name)
		}
	}

	receiver, ok := current.Pop()
	if !ok {
		return vmerrors.NewVerificationError("operand stack underflow at bci %d in %s", in.Bci, m.Name)
	}

	switch {
	case receiver.Equal(types.UninitializedThis):
		if mr.ClassName != cls.Name && mr.ClassName != cls.SuperClass {
			return vmerrors.NewVerificationError("invokespecial on uninitialized this at bci %d in %s must call %s or its superclass's <init>, not %s", in.Bci, m.Name, cls.Name, mr.ClassName)
		}
		current.SubstituteEverywhere(types.UninitializedThis, types.Class)
	case receiver.Tag() == types.TagUninitializedOffset:
		current.SubstituteEverywhere(receiver, types.Class)
	default:
		return vmerrors.NewVerificationError("invokespecial receiver is not an uninitialized reference at bci %d in %s", in.Bci, m.Name)
	}

	return nil
}
