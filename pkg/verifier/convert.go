package verifier

import (
	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
)

// convertVerifType maps one decoded verification_type_info entry onto the
// lattice point it denotes. The Object tag (7) always becomes Class: this
// core does not track which class a stack-map entry names, only that it is
// a reference.
func convertVerifType(v classfile.VerificationTypeInfo) types.Type {
	switch v.Tag {
	case classfile.VerifTagTop:
		return types.Top
	case classfile.VerifTagInteger:
		return types.Int
	case classfile.VerifTagFloat:
		return types.Float
	case classfile.VerifTagDouble:
		return types.Double
	case classfile.VerifTagLong:
		return types.Long
	case classfile.VerifTagNull:
		return types.Null
	case classfile.VerifTagUninitializedThis:
		return types.UninitializedThis
	case classfile.VerifTagObject:
		return types.Class
	case classfile.VerifTagUninitialized:
		return types.UninitializedOffsetAt(uint32(v.Bci))
	default:
		return types.Top
	}
}

// declaredFrame is one stack-map-table entry resolved into full verifier
// terms: the locals vector a same/append frame implies once applied on top
// of whatever locals the previous declared frame carried, and an empty
// operand stack (same and append frames, the only two this core decodes,
// always declare an empty stack per JVMS 4.7.4).
type declaredFrame struct {
	Bci    bytecode.Bci
	Locals []types.Type
}

// buildDeclaredFrames walks a method's StackMapFrames in order, turning the
// differential same/append encoding into self-contained locals vectors. A
// same frame carries forward the previous frame's locals unchanged; an
// append frame extends them with its own converted entries. The entry
// frame (the method's synthesized initial state) seeds the sequence.
func buildDeclaredFrames(frames []classfile.StackMapFrame, entry StackFrame) []declaredFrame {
	out := make([]declaredFrame, 0, len(frames))
	prevLocals := entry.Locals
	for _, f := range frames {
		var locals []types.Type
		switch f.Kind {
		case classfile.FrameSame:
			locals = append([]types.Type(nil), prevLocals...)
		case classfile.FrameAppend:
			locals = append([]types.Type(nil), prevLocals...)
			for _, vti := range f.AppendedLocals {
				t := convertVerifType(vti)
				locals = append(locals, t)
				if types.SizeOf(t) == 2 {
					locals = append(locals, types.Top)
				}
			}
		default:
			locals = append([]types.Type(nil), prevLocals...)
		}
		out = append(out, declaredFrame{Bci: f.Bci, Locals: locals})
		prevLocals = locals
	}
	return out
}

// declaredFrameAt looks up the declared frame at exactly bci, if any.
func declaredFrameAt(frames []declaredFrame, bci bytecode.Bci) (declaredFrame, bool) {
	for _, f := range frames {
		if f.Bci == bci {
			return f, true
		}
	}
	return declaredFrame{}, false
}

// asStackFrame turns a declaredFrame into a StackFrame with an empty operand
// stack, ready to Assignable-check against or adopt as the current frame.
func (d declaredFrame) asStackFrame() StackFrame {
	return StackFrame{Locals: append([]types.Type(nil), d.Locals...)}
}
