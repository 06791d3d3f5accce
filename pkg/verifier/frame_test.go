package verifier

import (
	"testing"

	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestStackFrameTwoWordPushPop(t *testing.T) {
	var f StackFrame
	f.Push(types.Int)
	f.Push(types.Long)
	f.Push(types.Float)

	assert.Equal(t, 4, f.StackDepth()) // Int(1) + Long(2) + Float(1)

	top, ok := f.Pop()
	assert.True(t, ok)
	assert.True(t, top.Equal(types.Float))

	mid, ok := f.Pop()
	assert.True(t, ok)
	assert.True(t, mid.Equal(types.Long))
	assert.Equal(t, 1, f.StackDepth())

	bottom, ok := f.Pop()
	assert.True(t, ok)
	assert.True(t, bottom.Equal(types.Int))

	_, ok = f.Pop()
	assert.False(t, ok)
}

func TestStackFrameSetLocalTwoWordContinuation(t *testing.T) {
	f := NewStackFrame(1)
	f.SetLocal(0, types.Double)
	assert.True(t, f.GetLocal(0).Equal(types.Double))
	assert.True(t, f.GetLocal(1).Equal(types.Top))
}

func TestAssignableFrameMerge(t *testing.T) {
	from := NewStackFrame(1)
	from.SetLocal(0, types.Int)
	from.Push(types.Int)

	to := NewStackFrame(1)
	to.SetLocal(0, types.Int)
	to.Push(types.Int)

	assert.True(t, Assignable(from, to))

	to.Stack[0] = types.Double
	assert.False(t, Assignable(from, to))
}

func TestSubstituteEverywhere(t *testing.T) {
	f := NewStackFrame(1)
	f.SetLocal(0, types.UninitializedOffsetAt(3))
	f.Push(types.UninitializedOffsetAt(3))
	f.Push(types.Int)

	f.SubstituteEverywhere(types.UninitializedOffsetAt(3), types.Class)

	assert.True(t, f.GetLocal(0).Equal(types.Class))
	assert.True(t, f.Stack[0].Equal(types.Class))
	assert.True(t, f.Stack[1].Equal(types.Int))
}
