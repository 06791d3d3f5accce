package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classBuilder assembles a class file's wire bytes by hand, standing in for
// a real compiler in a testing environment with no javac available.
type classBuilder struct {
	buf     bytes.Buffer
	cpNext  uint16 // next free constant pool index; indices start at 1
	cpBytes bytes.Buffer
}

func newClassBuilder() *classBuilder {
	return &classBuilder{cpNext: 1}
}

func (b *classBuilder) addUtf8(s string) uint16 {
	idx := b.cpNext
	b.cpNext++
	binary.Write(&b.cpBytes, binary.BigEndian, uint8(wireTagUtf8))
	binary.Write(&b.cpBytes, binary.BigEndian, uint16(len(s)))
	b.cpBytes.WriteString(s)
	return idx
}

func (b *classBuilder) addClass(nameIdx uint16) uint16 {
	idx := b.cpNext
	b.cpNext++
	binary.Write(&b.cpBytes, binary.BigEndian, uint8(wireTagClass))
	binary.Write(&b.cpBytes, binary.BigEndian, nameIdx)
	return idx
}

func (b *classBuilder) addNameAndType(nameIdx, descIdx uint16) uint16 {
	idx := b.cpNext
	b.cpNext++
	binary.Write(&b.cpBytes, binary.BigEndian, uint8(wireTagNameAndType))
	binary.Write(&b.cpBytes, binary.BigEndian, nameIdx)
	binary.Write(&b.cpBytes, binary.BigEndian, descIdx)
	return idx
}

func (b *classBuilder) addMethodref(classIdx, natIdx uint16) uint16 {
	idx := b.cpNext
	b.cpNext++
	binary.Write(&b.cpBytes, binary.BigEndian, uint8(wireTagMethodref))
	binary.Write(&b.cpBytes, binary.BigEndian, classIdx)
	binary.Write(&b.cpBytes, binary.BigEndian, natIdx)
	return idx
}

func (b *classBuilder) addFieldref(classIdx, natIdx uint16) uint16 {
	idx := b.cpNext
	b.cpNext++
	binary.Write(&b.cpBytes, binary.BigEndian, uint8(wireTagFieldref))
	binary.Write(&b.cpBytes, binary.BigEndian, classIdx)
	binary.Write(&b.cpBytes, binary.BigEndian, natIdx)
	return idx
}

// codeAttr builds a Code attribute body for a method with no stack-map
// table and an empty exception table.
func codeAttr(codeAttrNameIdx uint16, maxStack, maxLocals uint16, code []byte) (nameIdx uint16, data []byte) {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, maxStack)
	binary.Write(&body, binary.BigEndian, maxLocals)
	binary.Write(&body, binary.BigEndian, uint32(len(code)))
	body.Write(code)
	binary.Write(&body, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&body, binary.BigEndian, uint16(0)) // attributes_count
	return codeAttrNameIdx, body.Bytes()
}

// build assembles a full class file: this class "Test" extends
// "java/lang/Object", one method with the given name/descriptor/code.
func (b *classBuilder) build(methodName, methodDesc string, maxStack, maxLocals uint16, code []byte) []byte {
	thisNameIdx := b.addUtf8("Test")
	thisClassIdx := b.addClass(thisNameIdx)
	superNameIdx := b.addUtf8("java/lang/Object")
	superClassIdx := b.addClass(superNameIdx)
	nameIdx := b.addUtf8(methodName)
	descIdx := b.addUtf8(methodDesc)
	codeNameIdx := b.addUtf8("Code")

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(classMagic))
	binary.Write(&out, binary.BigEndian, uint16(0))              // minor
	binary.Write(&out, binary.BigEndian, uint16(supportedMajor)) // major
	binary.Write(&out, binary.BigEndian, b.cpNext)                // constant_pool_count
	out.Write(b.cpBytes.Bytes())

	binary.Write(&out, binary.BigEndian, uint16(AccPublic|AccSuper))
	binary.Write(&out, binary.BigEndian, thisClassIdx)
	binary.Write(&out, binary.BigEndian, superClassIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count
	binary.Write(&out, binary.BigEndian, uint16(0)) // fields_count

	binary.Write(&out, binary.BigEndian, uint16(1)) // methods_count
	binary.Write(&out, binary.BigEndian, uint16(AccPublic|AccStatic))
	binary.Write(&out, binary.BigEndian, nameIdx)
	binary.Write(&out, binary.BigEndian, descIdx)
	binary.Write(&out, binary.BigEndian, uint16(1)) // attributes_count

	_, attrData := codeAttr(codeNameIdx, maxStack, maxLocals, code)
	binary.Write(&out, binary.BigEndian, codeNameIdx)
	binary.Write(&out, binary.BigEndian, uint32(len(attrData)))
	out.Write(attrData)

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count
	return out.Bytes()
}

func TestDecodeTrivialReturn(t *testing.T) {
	b := newClassBuilder()
	code := []byte{byte(bytecode.OpIconst0), byte(bytecode.OpIreturn)}
	raw := b.build("m", "()I", 1, 0, code)

	cls, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Test", cls.Name)
	assert.Equal(t, "java/lang/Object", cls.SuperClass)

	m := cls.FindMethod("m", "()I")
	require.NotNil(t, m)
	assert.Equal(t, uint16(1), m.MaxStack)
	require.Len(t, m.Instructions, 2)
	assert.Equal(t, bytecode.OpIconst0, m.Instructions[0].Opcode)
	assert.Equal(t, bytecode.OpIreturn, m.Instructions[1].Opcode)
}

func TestDecodeTruncatedInstruction(t *testing.T) {
	b := newClassBuilder()
	code := []byte{byte(bytecode.OpInvokespecial), 0x00} // missing one index byte
	raw := b.build("m", "()V", 1, 0, code)

	_, err := Decode(bytes.NewReader(raw))
	require.Error(t, err)
	var pe *bytecode.ParsingError
	assert.ErrorAs(t, err, &pe)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	b := newClassBuilder()
	code := []byte{0x00}
	raw := b.build("m", "()V", 1, 0, code)

	_, err := Decode(bytes.NewReader(raw))
	require.Error(t, err)
	var ue *bytecode.UnknownBytecodeError
	assert.ErrorAs(t, err, &ue)
}

func TestDecodeBadMagic(t *testing.T) {
	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0}
	_, err := Decode(bytes.NewReader(raw))
	require.Error(t, err)
	var fe *vmerrors.FormatError
	require.ErrorAs(t, err, &fe)
}

func TestDecodeNonZeroInterfaceCount(t *testing.T) {
	// Hand-assemble a header with interfaces_count = 1 to hit the explicit
	// "Interface inheritance is not supported" rejection.
	b := newClassBuilder()
	thisNameIdx := b.addUtf8("Test")
	thisClassIdx := b.addClass(thisNameIdx)

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(classMagic))
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(supportedMajor))
	binary.Write(&out, binary.BigEndian, b.cpNext)
	out.Write(b.cpBytes.Bytes())
	binary.Write(&out, binary.BigEndian, uint16(AccPublic))
	binary.Write(&out, binary.BigEndian, thisClassIdx)
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(1)) // interfaces_count = 1

	_, err := Decode(bytes.NewReader(out.Bytes()))
	require.Error(t, err)
	var fe *vmerrors.FormatError
	require.ErrorAs(t, err, &fe)
}

func TestConstantPoolBuilderSealsOnlyWhenComplete(t *testing.T) {
	b := NewBuilder(3)
	_, err := b.Utf8Ref(1)
	require.NoError(t, err)

	_, err = b.Seal()
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, b.SetUtf8(1, "hello"))
	require.NoError(t, b.SetUtf8(2, "world"))
	pool, err := b.Seal()
	require.NoError(t, err)

	s, err := pool.Utf8(Utf8Ref(1))
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestConstantPoolBuilderRejectsIncompatibleCellType(t *testing.T) {
	b := NewBuilder(3)
	_, err := b.Utf8Ref(1)
	require.NoError(t, err)

	err = b.SetClass(1, ClassInfoRecord{})
	require.Error(t, err)
	var ic *IncompatibleCellType
	require.ErrorAs(t, err, &ic)
}

func TestConstantPoolForwardReference(t *testing.T) {
	// NameAndType at index 1 refers forward to a Utf8 populated at index 2.
	b := NewBuilder(4)
	nameRef, err := b.Utf8Ref(2)
	require.NoError(t, err)
	descRef, err := b.Utf8Ref(3)
	require.NoError(t, err)
	require.NoError(t, b.SetNameAndType(1, NameAndTypeRecord{NameIndex: nameRef, DescriptorIndex: descRef}))
	require.NoError(t, b.SetUtf8(2, "m"))
	require.NoError(t, b.SetUtf8(3, "()V"))

	pool, err := b.Seal()
	require.NoError(t, err)

	nat, err := pool.NameAndType(NameAndTypeRef(1))
	require.NoError(t, err)
	name, err := pool.Utf8(nat.NameIndex)
	require.NoError(t, err)
	assert.Equal(t, "m", name)
}
