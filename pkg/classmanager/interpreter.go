package classmanager

import (
	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/runtime"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/igor-laevsky/gojvm-core/pkg/vmlog"
)

// ExecuteMethod runs m to completion on a fresh Frame seeded with args
// (args[0] is the receiver for an instance method, matching how
// invokespecial below builds its callee's argument vector) and returns its
// result. A void method returns the zero Value, which callers must not
// treat as meaningful.
func (cm *ClassManager) ExecuteMethod(cls *classfile.Class, m *classfile.Method, args []runtime.Value) (runtime.Value, error) {
	if cm.maxDepth > 0 && cm.depth >= cm.maxDepth {
		return runtime.Value{}, vmerrors.NewRuntimeError("max frame depth %d exceeded calling %s.%s", cm.maxDepth, cls.Name, m.Name)
	}
	cm.depth++
	defer func() { cm.depth-- }()

	frame := runtime.NewFrame(cls, m)
	for i, a := range args {
		if err := frame.SetLocal(uint16(i), a); err != nil {
			return runtime.Value{}, err
		}
	}

	vmlog.Debug().Str("class", cls.Name).Str("method", m.Name).Int("depth", cm.depth).Msg("executing method")

	it := m.InstructionsByBci.Begin()
	for it != m.InstructionsByBci.End() {
		in := m.InstructionsByBci.Value(it)
		next := m.InstructionsByBci.Next(it)

		branchTo, branched, ret, done, err := cm.step(cls, m, frame, in, it)
		if err != nil {
			return runtime.Value{}, err
		}
		if done {
			return ret, nil
		}
		if branched {
			it = branchTo
		} else {
			it = next
		}
	}

	return runtime.Value{}, nil
}

// step executes one instruction against frame. Returns either a target
// iterator to continue from (branched), a result value (done), or neither
// (fall through to the caller's next).
func (cm *ClassManager) step(
	cls *classfile.Class,
	m *classfile.Method,
	frame *runtime.Frame,
	in bytecode.Instruction,
	it bytecode.Iter,
) (branchTo bytecode.Iter, branched bool, ret runtime.Value, done bool, err error) {

	if kind, ival, dval := in.ConstantValue(); kind != bytecode.ConstNone {
		if kind == bytecode.ConstInt {
			frame.Push(runtime.NewInt(ival))
		} else {
			frame.Push(runtime.NewDouble(dval))
		}
		return
	}

	if slot, isLoad, ok := in.LocalIndex(); ok {
		if isLoad {
			v, e := frame.LocalAt(slot)
			if e != nil {
				err = e
				return
			}
			frame.Push(v)
		} else {
			v, e := frame.Pop()
			if e != nil {
				err = e
				return
			}
			err = frame.SetLocal(slot, v)
		}
		return
	}

	if op, isUnary, _ := in.Comparison(); op != bytecode.CompNone {
		var a, b int32
		if isUnary {
			v, e := frame.Pop()
			if e != nil {
				err = e
				return
			}
			a, err = v.GetAsInt()
		} else {
			vb, e := frame.Pop()
			if e != nil {
				err = e
				return
			}
			va, e2 := frame.Pop()
			if e2 != nil {
				err = e2
				return
			}
			b, err = vb.GetAsInt()
			if err == nil {
				a, err = va.GetAsInt()
			}
		}
		if err != nil {
			return
		}
		if compareTake(op, a, b) {
			branchTo = m.InstructionsByBci.OffsetTo(it, int32(in.BranchOffset))
			if branchTo == m.InstructionsByBci.End() {
				err = vmerrors.NewRuntimeError("branch target missing at bci %d", in.Bci)
				return
			}
			branched = true
		}
		return
	}

	if _, isGoto := in.IsGoto(); isGoto {
		branchTo = m.InstructionsByBci.OffsetTo(it, int32(in.BranchOffset))
		if branchTo == m.InstructionsByBci.End() {
			err = vmerrors.NewRuntimeError("goto target missing at bci %d", in.Bci)
			return
		}
		branched = true
		return
	}

	switch in.Opcode {
	case bytecode.OpAconstNull:
		frame.Push(runtime.NewRef(runtime.NullHandle))

	case bytecode.OpBipush:
		frame.Push(runtime.NewInt(int32(int8(in.Byte))))

	case bytecode.OpDup:
		v, e := frame.Pop()
		if e != nil {
			err = e
			return
		}
		frame.Push(v)
		frame.Push(v)

	case bytecode.OpIadd, bytecode.OpIsub, bytecode.OpImul, bytecode.OpIdiv, bytecode.OpIrem:
		b, e := frame.Pop()
		if e != nil {
			err = e
			return
		}
		a, e2 := frame.Pop()
		if e2 != nil {
			err = e2
			return
		}
		ai, e3 := a.GetAsInt()
		bi, e4 := b.GetAsInt()
		if e3 != nil {
			err = e3
			return
		}
		if e4 != nil {
			err = e4
			return
		}
		switch in.Opcode {
		case bytecode.OpIadd:
			frame.Push(runtime.NewInt(ai + bi))
		case bytecode.OpIsub:
			frame.Push(runtime.NewInt(ai - bi))
		case bytecode.OpImul:
			frame.Push(runtime.NewInt(ai * bi))
		case bytecode.OpIdiv:
			if bi == 0 {
				err = vmerrors.NewRuntimeError("/ by zero at bci %d", in.Bci)
				return
			}
			frame.Push(runtime.NewInt(ai / bi))
		case bytecode.OpIrem:
			if bi == 0 {
				err = vmerrors.NewRuntimeError("/ by zero at bci %d", in.Bci)
				return
			}
			frame.Push(runtime.NewInt(ai % bi))
		}

	case bytecode.OpIneg:
		a, e := frame.Pop()
		if e != nil {
			err = e
			return
		}
		ai, e2 := a.GetAsInt()
		if e2 != nil {
			err = e2
			return
		}
		frame.Push(runtime.NewInt(-ai))

	case bytecode.OpIinc:
		v, e := frame.LocalAt(uint16(in.IincIndex))
		if e != nil {
			err = e
			return
		}
		vi, e2 := v.GetAsInt()
		if e2 != nil {
			err = e2
			return
		}
		err = frame.SetLocal(uint16(in.IincIndex), runtime.NewInt(vi+int32(in.IincConst)))

	case bytecode.OpGetstatic:
		err = cm.executeGetstatic(cls, frame, in)
	case bytecode.OpPutstatic:
		err = cm.executePutstatic(cls, frame, in)
	case bytecode.OpGetfield:
		err = cm.executeGetfield(cls, frame, in)
	case bytecode.OpPutfield:
		err = cm.executePutfield(cls, frame, in)

	case bytecode.OpNew:
		err = cm.executeNew(cls, frame, in)

	case bytecode.OpInvokespecial:
		err = cm.executeInvokespecial(cls, frame, in)

	case bytecode.OpReturn:
		done = true
	case bytecode.OpIreturn, bytecode.OpDreturn:
		v, e := frame.Pop()
		if e != nil {
			err = e
			return
		}
		ret = v
		done = true

	default:
		err = vmerrors.NewRuntimeError("unsupported opcode %s at bci %d", in.Mnemonic(), in.Bci)
	}

	return
}

func compareTake(op bytecode.CompareOp, a, b int32) bool {
	switch op {
	case bytecode.CompEq:
		return a == b
	case bytecode.CompNe:
		return a != b
	case bytecode.CompLt:
		return a < b
	case bytecode.CompGe:
		return a >= b
	case bytecode.CompGt:
		return a > b
	case bytecode.CompLe:
		return a <= b
	default:
		return false
	}
}

func (cm *ClassManager) executeGetstatic(cls *classfile.Class, frame *runtime.Frame, in bytecode.Instruction) error {
	fr, err := cls.Pool.ResolveFieldRef(classfile.FieldRefRef(in.Index))
	if err != nil {
		return err
	}
	obj, err := cm.GetClassObject(fr.ClassName)
	if err != nil {
		return err
	}
	v, err := obj.Static.GetField(fr.Name)
	if err != nil {
		return err
	}
	frame.Push(v)
	return nil
}

func (cm *ClassManager) executePutstatic(cls *classfile.Class, frame *runtime.Frame, in bytecode.Instruction) error {
	fr, err := cls.Pool.ResolveFieldRef(classfile.FieldRefRef(in.Index))
	if err != nil {
		return err
	}
	v, err := frame.Pop()
	if err != nil {
		return err
	}
	obj, err := cm.GetClassObject(fr.ClassName)
	if err != nil {
		return err
	}
	return obj.Static.SetField(fr.Name, v)
}

func (cm *ClassManager) executeGetfield(cls *classfile.Class, frame *runtime.Frame, in bytecode.Instruction) error {
	fr, err := cls.Pool.ResolveFieldRef(classfile.FieldRefRef(in.Index))
	if err != nil {
		return err
	}
	receiver, err := frame.Pop()
	if err != nil {
		return err
	}
	inst, err := cm.dereference(receiver)
	if err != nil {
		return err
	}
	v, err := inst.Instance.GetField(fr.Name)
	if err != nil {
		return err
	}
	frame.Push(v)
	return nil
}

func (cm *ClassManager) executePutfield(cls *classfile.Class, frame *runtime.Frame, in bytecode.Instruction) error {
	fr, err := cls.Pool.ResolveFieldRef(classfile.FieldRefRef(in.Index))
	if err != nil {
		return err
	}
	v, err := frame.Pop()
	if err != nil {
		return err
	}
	receiver, err := frame.Pop()
	if err != nil {
		return err
	}
	inst, err := cm.dereference(receiver)
	if err != nil {
		return err
	}
	return inst.Instance.SetField(fr.Name, v)
}

// dereference resolves a reference Value to its heap instance, raising a
// RuntimeError on a null or dangling handle -- this core has no NullPointer-
// Exception machinery, so a null dereference is a host-level fault.
func (cm *ClassManager) dereference(v runtime.Value) (*runtime.InstanceObject, error) {
	h, err := v.GetAsRef()
	if err != nil {
		return nil, err
	}
	inst, ok := cm.heap.Get(h)
	if !ok {
		return nil, vmerrors.NewRuntimeError("dereference of null or invalid handle %d", h)
	}
	return inst, nil
}

func (cm *ClassManager) executeNew(cls *classfile.Class, frame *runtime.Frame, in bytecode.Instruction) error {
	name, err := cls.Pool.ClassName(classfile.ClassRef(in.Index))
	if err != nil {
		return err
	}
	if _, err := cm.GetClassObject(name); err != nil {
		return err
	}
	target, err := cm.GetClass(name)
	if err != nil {
		return err
	}
	handle := cm.heap.Alloc(runtime.NewInstanceObject(target))
	frame.Push(runtime.NewRef(handle))
	return nil
}

// resolveMethod walks the superclass chain starting at className looking
// for a method matching name/descriptor, mirroring single-inheritance
// method lookup (JVMS 5.4.3.3) restricted to the invokespecial case this
// core verifies: a direct call to a named class's own declaration or one it
// inherits.
func (cm *ClassManager) resolveMethod(className, name, descriptor string) (*classfile.Class, *classfile.Method, error) {
	for className != "" {
		cls, err := cm.GetClass(className)
		if err != nil {
			return nil, nil, err
		}
		if m := cls.FindMethod(name, descriptor); m != nil {
			return cls, m, nil
		}
		className = cls.SuperClass
	}
	return nil, nil, vmerrors.NewRuntimeError("method %s%s not found", name, descriptor)
}

func (cm *ClassManager) executeInvokespecial(cls *classfile.Class, frame *runtime.Frame, in bytecode.Instruction) error {
	mr, err := cls.Pool.ResolveMethodRef(classfile.MethodRefRef(in.Index))
	if err != nil {
		return err
	}

	_, argTypes, err := types.ParseMethodDescriptor(mr.Descriptor)
	if err != nil {
		return err
	}

	args := make([]runtime.Value, len(argTypes))
	for i := len(argTypes) - 1; i >= 0; i-- {
		v, e := frame.Pop()
		if e != nil {
			return e
		}
		args[i] = v
	}

	receiver, err := frame.Pop()
	if err != nil {
		return err
	}

	targetCls, targetMethod, err := cm.resolveMethod(mr.ClassName, mr.Name, mr.Descriptor)
	if err != nil {
		return err
	}

	fullArgs := append([]runtime.Value{receiver}, args...)
	result, err := cm.ExecuteMethod(targetCls, targetMethod, fullArgs)
	if err != nil {
		return err
	}
	if !targetMethod.ReturnType.Equal(types.Void) {
		frame.Push(result)
	}
	return nil
}
