package bytecode

import (
	"fmt"

	"github.com/pkg/errors"
)

// ParsingError is raised by Decode when the code array is truncated
// mid-instruction. An opcode outside the supported set is reported as
// UnknownBytecodeError instead.
type ParsingError struct {
	Bci    Bci
	Reason string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("bytecode parsing error at bci %d: %s", e.Bci, e.Reason)
}

// UnknownBytecodeError is raised for an opcode byte not in the supported set.
// Kept distinct from ParsingError so callers can special-case it (the spec's
// "unknown opcode" scenario reports differently from a truncated stream).
type UnknownBytecodeError struct {
	Bci    Bci
	Opcode Opcode
}

func (e *UnknownBytecodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02X at bci %d", e.Opcode, e.Bci)
}

// Instruction is one decoded bytecode instruction. Rather than a type per
// opcode, a single struct carries the opcode plus whichever operand fields
// its shape uses; callers project out the field they need. This mirrors the
// flat instruction record the rest of the pack decodes into, and avoids an
// explosion of near-identical wrapper types for opcodes that only differ in
// which constant they push or which local slot they touch.
type Instruction struct {
	Bci    Bci
	Opcode Opcode

	// Byte is the single unsigned byte operand (bipush, iload, istore, aload, astore).
	Byte uint8
	// Index is the unsigned two-byte operand (getstatic/putstatic/getfield/
	// putfield/invokespecial/new constant-pool index).
	Index uint16
	// BranchOffset is the signed two-byte branch offset (if*, if_icmp*, goto).
	BranchOffset int16
	// IincIndex/IincConst are iinc's two one-byte operands.
	IincIndex uint8
	IincConst int8
}

// Shape returns the operand layout for this instruction's opcode.
func (in Instruction) Shape() Shape {
	return shapes[in.Opcode]
}

// Mnemonic returns the textual name of the instruction's opcode.
func (in Instruction) Mnemonic() string {
	return in.Opcode.Name()
}

// ConstantValue projects the "push a constant int/double" instructions
// (iconst_m1..iconst_5, dconst_0, dconst_1) onto a single (kind, value) pair,
// per the value-of-constant grouping: callers that only care "what constant
// does this push" don't need a type switch over nine opcodes.
type ConstKind int

const (
	ConstNone ConstKind = iota
	ConstInt
	ConstDouble
)

func (in Instruction) ConstantValue() (ConstKind, int32, float64) {
	switch in.Opcode {
	case OpIconstM1:
		return ConstInt, -1, 0
	case OpIconst0:
		return ConstInt, 0, 0
	case OpIconst1:
		return ConstInt, 1, 0
	case OpIconst2:
		return ConstInt, 2, 0
	case OpIconst3:
		return ConstInt, 3, 0
	case OpIconst4:
		return ConstInt, 4, 0
	case OpIconst5:
		return ConstInt, 5, 0
	case OpDconst0:
		return ConstDouble, 0, 0
	case OpDconst1:
		return ConstDouble, 0, 1
	default:
		return ConstNone, 0, 0
	}
}

// CompareOp is the comparison test a branch instruction applies to its
// operand(s) before taking the jump. Grouping if_icmp* (two operands) and
// if* (one operand, implicit zero) onto one enum is what the original
// ComparisonOp did; IsUnary distinguishes the two families for the caller.
type CompareOp int

const (
	CompNone CompareOp = iota
	CompEq
	CompNe
	CompLt
	CompGe
	CompGt
	CompLe
)

// Comparison projects the if*/if_icmp* family onto (op, isUnary, branchBci).
// isUnary instructions compare the popped value against zero; binary
// instructions compare the two popped values against each other.
func (in Instruction) Comparison() (op CompareOp, isUnary bool, target Bci) {
	target = in.Bci + Bci(in.BranchOffset)
	switch in.Opcode {
	case OpIfeq:
		return CompEq, true, target
	case OpIfne:
		return CompNe, true, target
	case OpIflt:
		return CompLt, true, target
	case OpIfge:
		return CompGe, true, target
	case OpIfgt:
		return CompGt, true, target
	case OpIfle:
		return CompLe, true, target
	case OpIfIcmpeq:
		return CompEq, false, target
	case OpIfIcmpne:
		return CompNe, false, target
	case OpIfIcmplt:
		return CompLt, false, target
	case OpIfIcmpge:
		return CompGe, false, target
	case OpIfIcmpgt:
		return CompGt, false, target
	case OpIfIcmple:
		return CompLe, false, target
	default:
		return CompNone, false, 0
	}
}

// IsGoto reports whether this is the unconditional branch, and its target.
func (in Instruction) IsGoto() (Bci, bool) {
	if in.Opcode == OpGoto {
		return in.Bci + Bci(in.BranchOffset), true
	}
	return 0, false
}

// LocalIndex projects the {i,a}load[_n] / {i,a}store[_n] family onto a single
// local-variable-table slot number, folding the _0.._3 short forms and the
// explicit-index long forms into one accessor.
func (in Instruction) LocalIndex() (slot uint16, isLoad bool, ok bool) {
	switch in.Opcode {
	case OpIload:
		return uint16(in.Byte), true, true
	case OpAload:
		return uint16(in.Byte), true, true
	case OpIload0, OpAload0:
		return 0, true, true
	case OpIload1, OpAload1:
		return 1, true, true
	case OpIload2, OpAload2:
		return 2, true, true
	case OpIload3, OpAload3:
		return 3, true, true
	case OpIstore:
		return uint16(in.Byte), false, true
	case OpAstore:
		return uint16(in.Byte), false, true
	case OpIstore0, OpAstore0:
		return 0, false, true
	case OpIstore1, OpAstore1:
		return 1, false, true
	case OpIstore2, OpAstore2:
		return 2, false, true
	case OpIstore3, OpAstore3:
		return 3, false, true
	default:
		return 0, false, false
	}
}

// IsReferenceLocal reports whether a load/store touches a reference-typed
// slot (aload*/astore*) as opposed to an int-typed one (iload*/istore*).
func (in Instruction) IsReferenceLocal() bool {
	switch in.Opcode {
	case OpAload, OpAload0, OpAload1, OpAload2, OpAload3,
		OpAstore, OpAstore0, OpAstore1, OpAstore2, OpAstore3:
		return true
	default:
		return false
	}
}

// Decode decodes the full instruction stream in code, returning the
// instructions in bci order together with a BciMap for random access. Returns
// a *ParsingError if the stream is truncated mid-instruction, or an
// *UnknownBytecodeError if it encounters an opcode outside the supported set.
func Decode(code []byte) ([]Instruction, *BciMap[Instruction], error) {
	m := NewBciMap[Instruction]()
	var list []Instruction

	i := 0
	for i < len(code) {
		bci := Bci(i)
		op := Opcode(code[i])
		shape, known := shapes[op]
		if !known {
			return nil, nil, errors.WithStack(&UnknownBytecodeError{Bci: bci, Opcode: op})
		}

		length := shape.Length()
		if i+length > len(code) {
			return nil, nil, errors.WithStack(&ParsingError{Bci: bci, Reason: "truncated instruction"})
		}

		in := Instruction{Bci: bci, Opcode: op}
		switch shape {
		case ShapeNoOperand:
			// no operand bytes
		case ShapeByteOperand:
			in.Byte = code[i+1]
		case ShapeHalfOperand:
			in.Index = uint16(code[i+1])<<8 | uint16(code[i+2])
		case ShapeSignedHalfOperand:
			in.BranchOffset = int16(uint16(code[i+1])<<8 | uint16(code[i+2]))
		case ShapeIinc:
			in.IincIndex = code[i+1]
			in.IincConst = int8(code[i+2])
		}

		list = append(list, in)
		m.Insert(bci, in)
		i += length
	}

	return list, m, nil
}
