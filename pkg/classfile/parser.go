package classfile

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/igor-laevsky/gojvm-core/pkg/vmlog"
)

const (
	classMagic     = 0xCAFEBABE
	supportedMajor = 52
	attrCode       = "Code"
	attrStackMap   = "StackMapTable"
)

// constant pool tag values from the wire format. Only Utf8, Class,
// NameAndType, Fieldref and Methodref are decoded; any other tag byte,
// including the Integer, Float, Long, Double and String tags listed here,
// fails FormatError.
const (
	wireTagUtf8        = 1
	wireTagInteger     = 3
	wireTagFloat       = 4
	wireTagLong        = 5
	wireTagDouble      = 6
	wireTagClass       = 7
	wireTagString      = 8
	wireTagFieldref    = 9
	wireTagMethodref   = 10
	wireTagNameAndType = 12
)

// Decode reads a complete class file from r and returns the decoded Class.
// Any failure is logged at warn before it reaches the caller -- decode
// failures are the first thing an operator needs to see when a classpath
// entry turns out to be bad.
func Decode(r io.Reader) (*Class, error) {
	cls, err := decode(r)
	if err != nil {
		vmlog.Warn().Err(err).Msg("class decode failed")
		return nil, err
	}
	return cls, nil
}

// decode is Decode's body. The constant pool is built through the
// cell-typed Builder so that forward references (a NameAndType naming a
// Utf8 that appears later in the stream, for instance) resolve safely.
func decode(r io.Reader) (*Class, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, vmerrors.NewFormatError("reading magic word: %v", err)
	}
	if magic != classMagic {
		return nil, vmerrors.NewFormatError("Magic word in a wrong format")
	}

	var minor, major uint16
	if err := binary.Read(r, binary.BigEndian, &minor); err != nil {
		return nil, vmerrors.NewFormatError("reading minor_version: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &major); err != nil {
		return nil, vmerrors.NewFormatError("reading major_version: %v", err)
	}
	if major != supportedMajor {
		return nil, vmerrors.NewFormatError("unsupported class file version %d.%d", major, minor)
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, vmerrors.NewFormatError("reading constant_pool_count: %v", err)
	}
	pool, err := decodeConstantPool(r, cpCount)
	if err != nil {
		return nil, err
	}

	var accessFlags, thisClassIdx, superClassIdx uint16
	if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
		return nil, vmerrors.NewFormatError("reading access_flags: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &thisClassIdx); err != nil {
		return nil, vmerrors.NewFormatError("reading this_class: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &superClassIdx); err != nil {
		return nil, vmerrors.NewFormatError("reading super_class: %v", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, vmerrors.NewFormatError("reading interfaces_count: %v", err)
	}
	if interfacesCount != 0 {
		return nil, vmerrors.NewFormatError("Interface inheritance is not supported")
	}

	thisName, err := pool.ClassName(ClassRef(thisClassIdx))
	if err != nil {
		return nil, err
	}
	var superName string
	if superClassIdx != 0 {
		superName, err = pool.ClassName(ClassRef(superClassIdx))
		if err != nil {
			return nil, err
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, vmerrors.NewFormatError("reading fields_count: %v", err)
	}
	fields, err := decodeFields(r, pool, fieldsCount)
	if err != nil {
		return nil, err
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, vmerrors.NewFormatError("reading methods_count: %v", err)
	}
	methods, err := decodeMethods(r, pool, methodsCount)
	if err != nil {
		return nil, err
	}

	if err := skipAttributes(r); err != nil {
		return nil, vmerrors.NewFormatError("reading class attributes: %v", err)
	}

	return &Class{
		Name:        thisName,
		SuperClass:  superName,
		AccessFlags: accessFlags,
		Fields:      fields,
		Methods:     methods,
		Pool:        pool,
	}, nil
}

// decodeConstantPool reads count-1 records (indices [1, count)) into a
// freshly sealed ConstantPool.
func decodeConstantPool(r io.Reader, count uint16) (*ConstantPool, error) {
	b := NewBuilder(int(count))

	i := uint16(1)
	for i < count {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, vmerrors.NewFormatError("reading constant pool tag at index %d: %v", i, err)
		}

		switch tag {
		case wireTagUtf8:
			s, err := decodeUtf8(r)
			if err != nil {
				return nil, err
			}
			if err := b.SetUtf8(i, s); err != nil {
				return nil, err
			}

		case wireTagClass:
			var nameIdx uint16
			if err := binary.Read(r, binary.BigEndian, &nameIdx); err != nil {
				return nil, vmerrors.NewFormatError("reading Class name_index at %d: %v", i, err)
			}
			ref, err := b.Utf8Ref(nameIdx)
			if err != nil {
				return nil, err
			}
			if err := b.SetClass(i, ClassInfoRecord{NameIndex: ref}); err != nil {
				return nil, err
			}

		case wireTagNameAndType:
			var nameIdx, descIdx uint16
			if err := binary.Read(r, binary.BigEndian, &nameIdx); err != nil {
				return nil, vmerrors.NewFormatError("reading NameAndType name_index at %d: %v", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &descIdx); err != nil {
				return nil, vmerrors.NewFormatError("reading NameAndType descriptor_index at %d: %v", i, err)
			}
			nameRef, err := b.Utf8Ref(nameIdx)
			if err != nil {
				return nil, err
			}
			descRef, err := b.Utf8Ref(descIdx)
			if err != nil {
				return nil, err
			}
			if err := b.SetNameAndType(i, NameAndTypeRecord{NameIndex: nameRef, DescriptorIndex: descRef}); err != nil {
				return nil, err
			}

		case wireTagFieldref:
			classIdx, natIdx, err := readRefPair(r, i, "Fieldref")
			if err != nil {
				return nil, err
			}
			classRef, err := b.ClassRef(classIdx)
			if err != nil {
				return nil, err
			}
			natRef, err := b.NameAndTypeRef(natIdx)
			if err != nil {
				return nil, err
			}
			if err := b.SetFieldRef(i, FieldRefRecord{ClassIndex: classRef, NameAndTypeIndex: natRef}); err != nil {
				return nil, err
			}

		case wireTagMethodref:
			classIdx, natIdx, err := readRefPair(r, i, "Methodref")
			if err != nil {
				return nil, err
			}
			classRef, err := b.ClassRef(classIdx)
			if err != nil {
				return nil, err
			}
			natRef, err := b.NameAndTypeRef(natIdx)
			if err != nil {
				return nil, err
			}
			if err := b.SetMethodRef(i, MethodRefRecord{ClassIndex: classRef, NameAndTypeIndex: natRef}); err != nil {
				return nil, err
			}

		default:
			return nil, vmerrors.NewFormatError("unknown constant pool tag %d at index %d", tag, i)
		}

		i++
	}

	return b.Seal()
}

func readRefPair(r io.Reader, i uint16, what string) (classIdx, natIdx uint16, err error) {
	if err = binary.Read(r, binary.BigEndian, &classIdx); err != nil {
		return 0, 0, vmerrors.NewFormatError("reading %s class_index at %d: %v", what, i, err)
	}
	if err = binary.Read(r, binary.BigEndian, &natIdx); err != nil {
		return 0, 0, vmerrors.NewFormatError("reading %s name_and_type_index at %d: %v", what, i, err)
	}
	return classIdx, natIdx, nil
}

// decodeUtf8 reads a length-prefixed Utf8 constant, rejecting anything
// outside the 0x01..0x7F ASCII range this core supports.
func decodeUtf8(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", vmerrors.NewFormatError("reading Utf8 length: %v", err)
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", vmerrors.NewFormatError("reading Utf8 bytes: %v", err)
	}
	for _, b := range raw {
		if b < 0x01 || b > 0x7F {
			return "", vmerrors.NewFormatError("Utf8 constant contains non-ASCII byte 0x%02X", b)
		}
	}
	return string(raw), nil
}

func decodeFields(r io.Reader, pool *ConstantPool, count uint16) ([]Field, error) {
	fields := make([]Field, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIdx, descIdx, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, vmerrors.NewFormatError("reading field %d access_flags: %v", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIdx); err != nil {
			return nil, vmerrors.NewFormatError("reading field %d name_index: %v", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIdx); err != nil {
			return nil, vmerrors.NewFormatError("reading field %d descriptor_index: %v", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, vmerrors.NewFormatError("reading field %d attributes_count: %v", i, err)
		}

		name, err := pool.Utf8(Utf8Ref(nameIdx))
		if err != nil {
			return nil, err
		}
		desc, err := pool.Utf8(Utf8Ref(descIdx))
		if err != nil {
			return nil, err
		}
		if err := skipNAttributes(r, attrCount); err != nil {
			return nil, vmerrors.NewFormatError("reading field %d attributes: %v", i, err)
		}

		fieldType, consumed, err := types.ParseFieldDescriptor(desc)
		if err != nil || consumed != len(desc) {
			return nil, vmerrors.NewFormatError("field %s has malformed descriptor %q", name, desc)
		}

		fields[i] = Field{AccessFlags: accessFlags, Name: name, Descriptor: desc, Type: fieldType}
	}
	return fields, nil
}

func decodeMethods(r io.Reader, pool *ConstantPool, count uint16) ([]Method, error) {
	methods := make([]Method, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIdx, descIdx, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, vmerrors.NewFormatError("reading method %d access_flags: %v", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIdx); err != nil {
			return nil, vmerrors.NewFormatError("reading method %d name_index: %v", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIdx); err != nil {
			return nil, vmerrors.NewFormatError("reading method %d descriptor_index: %v", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, vmerrors.NewFormatError("reading method %d attributes_count: %v", i, err)
		}

		name, err := pool.Utf8(Utf8Ref(nameIdx))
		if err != nil {
			return nil, err
		}
		desc, err := pool.Utf8(Utf8Ref(descIdx))
		if err != nil {
			return nil, err
		}
		retType, argTypes, err := types.ParseMethodDescriptor(desc)
		if err != nil {
			return nil, vmerrors.NewFormatError("method %s has malformed descriptor %q", name, desc)
		}

		m := Method{AccessFlags: accessFlags, Name: name, Descriptor: desc, ReturnType: retType, ArgTypes: argTypes}

		var codeSeen bool
		for a := uint16(0); a < attrCount; a++ {
			var attrNameIdx uint16
			if err := binary.Read(r, binary.BigEndian, &attrNameIdx); err != nil {
				return nil, vmerrors.NewFormatError("reading method %d attribute %d name_index: %v", i, a, err)
			}
			var length uint32
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, vmerrors.NewFormatError("reading method %d attribute %d length: %v", i, a, err)
			}
			attrName, err := pool.Utf8(Utf8Ref(attrNameIdx))
			if err != nil {
				return nil, err
			}

			if attrName == attrCode {
				body := make([]byte, length)
				if _, err := io.ReadFull(r, body); err != nil {
					return nil, vmerrors.NewFormatError("reading Code attribute body for %s: %v", name, err)
				}
				if err := decodeCodeAttribute(&m, body, pool); err != nil {
					return nil, err
				}
				codeSeen = true
			} else {
				if err := skipN(r, int64(length)); err != nil {
					return nil, vmerrors.NewFormatError("skipping method %d attribute %d: %v", i, a, err)
				}
			}
		}
		if !codeSeen {
			return nil, vmerrors.NewFormatError("method %s is missing a Code attribute", name)
		}

		methods[i] = m
	}
	return methods, nil
}

// decodeCodeAttribute parses a Code attribute body already read fully into
// memory: max_stack, max_locals, code, exception table (skipped), and nested
// attributes (only StackMapTable is decoded; others are skipped).
func decodeCodeAttribute(m *Method, body []byte, pool *ConstantPool) error {
	r := bytes.NewReader(body)

	var maxStack, maxLocals uint16
	if err := binary.Read(r, binary.BigEndian, &maxStack); err != nil {
		return vmerrors.NewFormatError("reading max_stack: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &maxLocals); err != nil {
		return vmerrors.NewFormatError("reading max_locals: %v", err)
	}

	var codeLength uint32
	if err := binary.Read(r, binary.BigEndian, &codeLength); err != nil {
		return vmerrors.NewFormatError("reading code_length: %v", err)
	}
	code := make([]byte, codeLength)
	if _, err := io.ReadFull(r, code); err != nil {
		return vmerrors.NewFormatError("reading code: %v", err)
	}

	instructions, byBci, err := bytecode.Decode(code)
	if err != nil {
		return err
	}

	var exTableLen uint16
	if err := binary.Read(r, binary.BigEndian, &exTableLen); err != nil {
		return vmerrors.NewFormatError("reading exception_table_length: %v", err)
	}
	if err := skipN(r, int64(exTableLen)*8); err != nil {
		return vmerrors.NewFormatError("skipping exception table: %v", err)
	}

	var frames []StackMapFrame
	var attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return vmerrors.NewFormatError("reading Code attributes_count: %v", err)
	}
	for a := uint16(0); a < attrCount; a++ {
		var nameIdx uint16
		if err := binary.Read(r, binary.BigEndian, &nameIdx); err != nil {
			return vmerrors.NewFormatError("reading Code attribute %d name_index: %v", a, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return vmerrors.NewFormatError("reading Code attribute %d length: %v", a, err)
		}
		attrBody := make([]byte, length)
		if _, err := io.ReadFull(r, attrBody); err != nil {
			return vmerrors.NewFormatError("reading Code attribute %d body: %v", a, err)
		}

		attrName, err := pool.Utf8(Utf8Ref(nameIdx))
		if err != nil {
			return err
		}
		if attrName == attrStackMap {
			frames, err = decodeStackMapTable(bytes.NewReader(attrBody))
			if err != nil {
				return err
			}
		}
	}

	m.MaxStack = maxStack
	m.MaxLocals = maxLocals
	m.Code = code
	m.Instructions = instructions
	m.InstructionsByBci = byBci
	m.StackMapFrames = frames
	return nil
}

func skipAttributes(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	return skipNAttributes(r, count)
}

func skipNAttributes(r io.Reader, count uint16) error {
	for a := uint16(0); a < count; a++ {
		var nameIdx uint16
		if err := binary.Read(r, binary.BigEndian, &nameIdx); err != nil {
			return err
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return err
		}
		if err := skipN(r, int64(length)); err != nil {
			return err
		}
	}
	return nil
}

func skipN(r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
