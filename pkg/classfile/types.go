package classfile

import (
	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
)

// Access flags (JVMS 4.1, 4.5, 4.6 -- only the ones this core inspects).
const (
	AccPublic = 0x0001
	AccStatic = 0x0008
	AccSuper  = 0x0020
)

// Class is the decoder's output: an immutable, fully type-checked in-memory
// class description. Owned by the class manager for the lifetime of the
// process once defined.
type Class struct {
	Name        string
	SuperClass  string // empty string means no superclass (java/lang/Object)
	AccessFlags uint16
	Fields      []Field
	Methods     []Method
	Pool        *ConstantPool
}

// FindMethod looks up a method by name and descriptor.
func (c *Class) FindMethod(name, descriptor string) *Method {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor == descriptor {
			return &c.Methods[i]
		}
	}
	return nil
}

// FindField looks up a field by name.
func (c *Class) FindField(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// Field is one field_info entry, with its descriptor already parsed.
type Field struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Type        types.Type
}

func (f *Field) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }

// Method is one method_info entry. Code, Instructions and StackMapFrames are
// nil for an abstract or native method (neither occurs in this core's
// supported subset, but the fields stay optional for forward compatibility
// with the decoder's attribute-skipping path).
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	ReturnType  types.Type
	ArgTypes    []types.Type

	MaxStack  uint16
	MaxLocals uint16
	Code      []byte

	Instructions      []bytecode.Instruction
	InstructionsByBci *bytecode.BciMap[bytecode.Instruction]
	StackMapFrames    []StackMapFrame
}

func (m *Method) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }
func (m *Method) IsInit() bool   { return m.Name == "<init>" }

// FrameKind distinguishes the two stack-map-frame forms this core decodes.
type FrameKind int

const (
	FrameSame FrameKind = iota
	FrameAppend
)

// VerificationTypeInfo is one verification_type_info entry from a
// StackMapTable append frame's locals list. Tag follows the standard's
// verification type grammar (0..8). The decoder keeps the Object tag and its
// constant-pool index as read; the verifier collapses it to Class, since
// this core does not track the referenced class name past "it's a reference
// type".
type VerificationTypeInfo struct {
	Tag        uint8
	CPoolIndex uint16 // valid when Tag == VerifTagObject
	Bci        uint16 // valid when Tag == VerifTagUninitialized
}

const (
	VerifTagTop               = 0
	VerifTagInteger           = 1
	VerifTagFloat             = 2
	VerifTagDouble            = 3
	VerifTagLong              = 4
	VerifTagNull              = 5
	VerifTagUninitializedThis = 6
	VerifTagObject            = 7
	VerifTagUninitialized     = 8
)

// StackMapFrame is one decoded frame. Only same and append forms are
// represented; the decoder fails FormatError on any other frame_type.
type StackMapFrame struct {
	Bci            bytecode.Bci
	Kind           FrameKind
	AppendedLocals []VerificationTypeInfo
}
