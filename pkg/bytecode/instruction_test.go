package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNoOperand(t *testing.T) {
	code := []byte{byte(OpIconst1), byte(OpIconst2), byte(OpIadd), byte(OpIreturn)}
	list, m, err := Decode(code)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, OpIconst1, list[0].Opcode)
	assert.Equal(t, Bci(0), list[0].Bci)
	assert.Equal(t, Bci(1), list[1].Bci)
	assert.Equal(t, Bci(3), list[3].Bci)
	assert.Equal(t, 4, m.Len())
}

func TestDecodeOperandShapes(t *testing.T) {
	t.Run("byte operand", func(t *testing.T) {
		code := []byte{byte(OpBipush), 0x7F}
		list, _, err := Decode(code)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, uint8(0x7F), list[0].Byte)
	})

	t.Run("half operand", func(t *testing.T) {
		code := []byte{byte(OpGetstatic), 0x01, 0x02}
		list, _, err := Decode(code)
		require.NoError(t, err)
		assert.Equal(t, uint16(0x0102), list[0].Index)
	})

	t.Run("signed half operand, negative branch", func(t *testing.T) {
		code := []byte{byte(OpIconst0), byte(OpIconst0), byte(OpGoto), 0xFF, 0xFE} // goto at bci 2, -2
		list, _, err := Decode(code)
		require.NoError(t, err)
		assert.Equal(t, int16(-2), list[2].BranchOffset)
		target, ok := list[2].IsGoto()
		require.True(t, ok)
		assert.Equal(t, Bci(0), target)
	})

	t.Run("iinc shape", func(t *testing.T) {
		code := []byte{byte(OpIinc), 0x03, 0xFF} // slot 3, const -1
		list, _, err := Decode(code)
		require.NoError(t, err)
		assert.Equal(t, uint8(3), list[0].IincIndex)
		assert.Equal(t, int8(-1), list[0].IincConst)
	})
}

func TestDecodeTruncatedInstruction(t *testing.T) {
	code := []byte{byte(OpGetstatic), 0x01} // half operand needs 2 bytes
	_, _, err := Decode(code)
	require.Error(t, err)
	var pe *ParsingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, Bci(0), pe.Bci)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	code := []byte{0xFF} // not in the supported set
	_, _, err := Decode(code)
	require.Error(t, err)
	var ue *UnknownBytecodeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, Opcode(0xFF), ue.Opcode)
}

func TestConstantValueGrouping(t *testing.T) {
	list, _, err := Decode([]byte{byte(OpIconstM1), byte(OpDconst1)})
	require.NoError(t, err)

	kind, i, _ := list[0].ConstantValue()
	assert.Equal(t, ConstInt, kind)
	assert.Equal(t, int32(-1), i)

	kind, _, d := list[1].ConstantValue()
	assert.Equal(t, ConstDouble, kind)
	assert.Equal(t, float64(1), d)
}

func TestComparisonGrouping(t *testing.T) {
	code := []byte{byte(OpIfIcmplt), 0x00, 0x05}
	list, _, err := Decode(code)
	require.NoError(t, err)

	op, isUnary, target := list[0].Comparison()
	assert.Equal(t, CompLt, op)
	assert.False(t, isUnary)
	assert.Equal(t, Bci(5), target)
}

func TestLocalIndexGrouping(t *testing.T) {
	t.Run("short form", func(t *testing.T) {
		list, _, err := Decode([]byte{byte(OpIload2)})
		require.NoError(t, err)
		slot, isLoad, ok := list[0].LocalIndex()
		require.True(t, ok)
		assert.Equal(t, uint16(2), slot)
		assert.True(t, isLoad)
		assert.False(t, list[0].IsReferenceLocal())
	})

	t.Run("explicit index form", func(t *testing.T) {
		list, _, err := Decode([]byte{byte(OpAstore), 0x09})
		require.NoError(t, err)
		slot, isLoad, ok := list[0].LocalIndex()
		require.True(t, ok)
		assert.Equal(t, uint16(9), slot)
		assert.False(t, isLoad)
		assert.True(t, list[0].IsReferenceLocal())
	})
}

func TestBciMapOffsetNavigation(t *testing.T) {
	_, m, err := Decode([]byte{
		byte(OpIconst0), // bci 0
		byte(OpIfeq), 0x00, 0x04, // bci 1, branches to bci 5
		byte(OpIconst1), // bci 4
		byte(OpIreturn), // bci 5
	})
	require.NoError(t, err)

	it := m.FindAtBci(1)
	require.NotEqual(t, m.End(), it)

	target := m.OffsetTo(it, 4)
	require.NotEqual(t, m.End(), target)
	assert.Equal(t, Bci(5), m.Bci(target))
	assert.Equal(t, OpIreturn, m.Value(target).Opcode)

	same := m.OffsetTo(it, 0)
	assert.Equal(t, it, same)

	assert.Equal(t, m.End(), m.OffsetTo(it, 1000))
}
