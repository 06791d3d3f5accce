package verifier

import (
	"testing"

	"github.com/igor-laevsky/gojvm-core/pkg/bytecode"
	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// superInitPool builds a constant pool containing exactly one MethodRef,
// resolving to java/lang/Object's <init>()V, plus the ref's index.
func superInitPool(t *testing.T) (*classfile.ConstantPool, uint16) {
	t.Helper()
	b := classfile.NewBuilder(7)

	u1, err := b.Utf8Ref(1)
	require.NoError(t, err)
	require.NoError(t, b.SetUtf8(1, "java/lang/Object"))

	c2, err := b.ClassRef(2)
	require.NoError(t, err)
	require.NoError(t, b.SetClass(2, classfile.ClassInfoRecord{NameIndex: u1}))

	u3, err := b.Utf8Ref(3)
	require.NoError(t, err)
	require.NoError(t, b.SetUtf8(3, "<init>"))

	u4, err := b.Utf8Ref(4)
	require.NoError(t, err)
	require.NoError(t, b.SetUtf8(4, "()V"))

	nt5, err := b.NameAndTypeRef(5)
	require.NoError(t, err)
	require.NoError(t, b.SetNameAndType(5, classfile.NameAndTypeRecord{NameIndex: u3, DescriptorIndex: u4}))

	mr6, err := b.MethodRefRef(6)
	require.NoError(t, err)
	require.NoError(t, b.SetMethodRef(6, classfile.MethodRefRecord{ClassIndex: c2, NameAndTypeIndex: nt5}))

	pool, err := b.Seal()
	require.NoError(t, err)
	return pool, uint16(mr6)
}

func decodeOrFail(t *testing.T, code []byte) ([]bytecode.Instruction, *bytecode.BciMap[bytecode.Instruction]) {
	t.Helper()
	instrs, bcimap, err := bytecode.Decode(code)
	require.NoError(t, err)
	return instrs, bcimap
}

func TestVerifyTrivialReturn(t *testing.T) {
	pool, _ := superInitPool(t)
	code := []byte{byte(bytecode.OpIconst0), byte(bytecode.OpIreturn)}
	instrs, bcimap := decodeOrFail(t, code)

	cls := &classfile.Class{
		Name: "Test",
		Pool: pool,
		Methods: []classfile.Method{{
			AccessFlags:       classfile.AccStatic,
			Name:              "run",
			Descriptor:        "()I",
			ReturnType:        types.Int,
			MaxStack:          1,
			MaxLocals:         0,
			Code:              code,
			Instructions:      instrs,
			InstructionsByBci: bcimap,
		}},
	}

	require.NoError(t, Verify(cls, &cls.Methods[0]))
}

func TestVerifyReturnTypeMismatch(t *testing.T) {
	pool, _ := superInitPool(t)
	code := []byte{byte(bytecode.OpIconst0), byte(bytecode.OpIreturn)}
	instrs, bcimap := decodeOrFail(t, code)

	cls := &classfile.Class{
		Name: "Test",
		Pool: pool,
		Methods: []classfile.Method{{
			AccessFlags:       classfile.AccStatic,
			Name:              "run",
			Descriptor:        "()J",
			ReturnType:        types.Long,
			MaxStack:          1,
			MaxLocals:         0,
			Code:              code,
			Instructions:      instrs,
			InstructionsByBci: bcimap,
		}},
	}

	err := Verify(cls, &cls.Methods[0])
	require.Error(t, err)
	var ve *vmerrors.VerificationError
	assert.ErrorAs(t, err, &ve)
}

func TestVerifyConstructorWithoutSuperCallFails(t *testing.T) {
	pool, _ := superInitPool(t)
	code := []byte{byte(bytecode.OpReturn)}
	instrs, bcimap := decodeOrFail(t, code)

	cls := &classfile.Class{
		Name:       "Test",
		SuperClass: "java/lang/Object",
		Pool:       pool,
		Methods: []classfile.Method{{
			AccessFlags:       0,
			Name:              "<init>",
			Descriptor:        "()V",
			ReturnType:        types.Void,
			MaxStack:          0,
			MaxLocals:         1,
			Code:              code,
			Instructions:      instrs,
			InstructionsByBci: bcimap,
		}},
	}

	err := Verify(cls, &cls.Methods[0])
	require.Error(t, err)
	var ve *vmerrors.VerificationError
	assert.ErrorAs(t, err, &ve)
}

func TestVerifyConstructorWithSuperCallPasses(t *testing.T) {
	pool, mr := superInitPool(t)
	code := []byte{
		byte(bytecode.OpAload0),
		byte(bytecode.OpInvokespecial), byte(mr >> 8), byte(mr),
		byte(bytecode.OpReturn),
	}
	instrs, bcimap := decodeOrFail(t, code)

	cls := &classfile.Class{
		Name:       "Test",
		SuperClass: "java/lang/Object",
		Pool:       pool,
		Methods: []classfile.Method{{
			AccessFlags:       0,
			Name:              "<init>",
			Descriptor:        "()V",
			ReturnType:        types.Void,
			MaxStack:          1,
			MaxLocals:         1,
			Code:              code,
			Instructions:      instrs,
			InstructionsByBci: bcimap,
		}},
	}

	require.NoError(t, Verify(cls, &cls.Methods[0]))
}

func TestVerifyMaxStackViolation(t *testing.T) {
	pool, _ := superInitPool(t)
	code := []byte{byte(bytecode.OpIconst0), byte(bytecode.OpIconst1), byte(bytecode.OpIreturn)}
	instrs, bcimap := decodeOrFail(t, code)

	cls := &classfile.Class{
		Name: "Test",
		Pool: pool,
		Methods: []classfile.Method{{
			AccessFlags:       classfile.AccStatic,
			Name:              "run",
			Descriptor:        "()I",
			ReturnType:        types.Int,
			MaxStack:          1, // two values pushed before the ireturn pops one
			MaxLocals:         0,
			Code:              code,
			Instructions:      instrs,
			InstructionsByBci: bcimap,
		}},
	}

	err := Verify(cls, &cls.Methods[0])
	require.Error(t, err)
}

func TestVerifyGetSetFieldRoundTrip(t *testing.T) {
	b := classfile.NewBuilder(7)
	u1, err := b.Utf8Ref(1)
	require.NoError(t, err)
	require.NoError(t, b.SetUtf8(1, "Test"))
	c2, err := b.ClassRef(2)
	require.NoError(t, err)
	require.NoError(t, b.SetClass(2, classfile.ClassInfoRecord{NameIndex: u1}))
	u3, err := b.Utf8Ref(3)
	require.NoError(t, err)
	require.NoError(t, b.SetUtf8(3, "f"))
	u4, err := b.Utf8Ref(4)
	require.NoError(t, err)
	require.NoError(t, b.SetUtf8(4, "I"))
	nt5, err := b.NameAndTypeRef(5)
	require.NoError(t, err)
	require.NoError(t, b.SetNameAndType(5, classfile.NameAndTypeRecord{NameIndex: u3, DescriptorIndex: u4}))
	fieldRef, err := b.FieldRefRef(6)
	require.NoError(t, err)
	require.NoError(t, b.SetFieldRef(6, classfile.FieldRefRecord{ClassIndex: c2, NameAndTypeIndex: nt5}))
	pool, err := b.Seal()
	require.NoError(t, err)

	code := []byte{
		byte(bytecode.OpIconst1),
		byte(bytecode.OpPutstatic), byte(fieldRef >> 8), byte(fieldRef),
		byte(bytecode.OpGetstatic), byte(fieldRef >> 8), byte(fieldRef),
		byte(bytecode.OpIreturn),
	}
	instrs, bcimap := decodeOrFail(t, code)

	cls := &classfile.Class{
		Name: "Test",
		Pool: pool,
		Methods: []classfile.Method{{
			AccessFlags:       classfile.AccStatic,
			Name:              "run",
			Descriptor:        "()I",
			ReturnType:        types.Int,
			MaxStack:          1,
			MaxLocals:         0,
			Code:              code,
			Instructions:      instrs,
			InstructionsByBci: bcimap,
		}},
	}

	require.NoError(t, Verify(cls, &cls.Methods[0]))
}

func TestBuildDeclaredFramesAppendExtendsPrevious(t *testing.T) {
	entry := NewStackFrame(0)
	entry.SetLocal(0, types.Int)

	frames := []classfile.StackMapFrame{
		{Bci: 2, Kind: classfile.FrameAppend, AppendedLocals: []classfile.VerificationTypeInfo{{Tag: classfile.VerifTagInteger}}},
		{Bci: 5, Kind: classfile.FrameSame},
	}

	declared := buildDeclaredFrames(frames, entry)
	require.Len(t, declared, 2)
	assert.Equal(t, []types.Type{types.Int, types.Int}, declared[0].Locals)
	assert.Equal(t, declared[0].Locals, declared[1].Locals)
}
