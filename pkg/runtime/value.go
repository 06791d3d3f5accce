// Package runtime holds the small by-value runtime data (Value, the static
// and instance field storage, and the object handles the interpreter
// manipulates). It has no dependency on class loading or verification so
// that those layers can depend on it without creating an import cycle.
package runtime

import (
	"encoding/binary"
	"math"

	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
)

// Kind is the runtime tag of a Value.
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
)

// Handle is an opaque reference to a heap-allocated InstanceObject. The zero
// Handle is the null reference.
type Handle uint64

const NullHandle Handle = 0

// Value is a tagged union over the five runtime value kinds. Long and
// Double occupy a single Value cell here, unlike the verifier's two-slot
// accounting -- the width discipline is a verifier-level concern only.
type Value struct {
	kind Kind
	i    int32
	l    int64
	f    float32
	d    float64
	ref  Handle
}

func NewInt(v int32) Value     { return Value{kind: KindInt, i: v} }
func NewLong(v int64) Value    { return Value{kind: KindLong, l: v} }
func NewFloat(v float32) Value { return Value{kind: KindFloat, f: v} }
func NewDouble(v float64) Value { return Value{kind: KindDouble, d: v} }
func NewRef(h Handle) Value    { return Value{kind: KindRef, ref: h} }

func (v Value) Kind() Kind { return v.kind }

// GetAsInt, GetAsLong, GetAsFloat, GetAsDouble and GetAsRef are the
// throwing getAs<T> accessors: a verified program never hits the mismatch
// branch (testable property 8), so a mismatch here indicates a bug in the
// verifier or interpreter rather than a malformed input.
func (v Value) GetAsInt() (int32, error) {
	if v.kind != KindInt {
		return 0, vmerrors.NewRuntimeError("getAs<Int> on a %v value", v.kind)
	}
	return v.i, nil
}

func (v Value) GetAsLong() (int64, error) {
	if v.kind != KindLong {
		return 0, vmerrors.NewRuntimeError("getAs<Long> on a %v value", v.kind)
	}
	return v.l, nil
}

func (v Value) GetAsFloat() (float32, error) {
	if v.kind != KindFloat {
		return 0, vmerrors.NewRuntimeError("getAs<Float> on a %v value", v.kind)
	}
	return v.f, nil
}

func (v Value) GetAsDouble() (float64, error) {
	if v.kind != KindDouble {
		return 0, vmerrors.NewRuntimeError("getAs<Double> on a %v value", v.kind)
	}
	return v.d, nil
}

func (v Value) GetAsRef() (Handle, error) {
	if v.kind != KindRef {
		return 0, vmerrors.NewRuntimeError("getAs<Ref> on a %v value", v.kind)
	}
	return v.ref, nil
}

// ZeroValueFor returns the default value for a field of the given type, as
// used when a ClassObject/InstanceObject's storage is first allocated.
func ZeroValueFor(t types.Type) Value {
	promoted := types.PromoteToStack(t)
	if types.IsAssignable(promoted, types.Reference) {
		return NewRef(NullHandle)
	}
	switch promoted {
	case types.Long:
		return NewLong(0)
	case types.Float:
		return NewFloat(0)
	case types.Double:
		return NewDouble(0)
	default:
		return NewInt(0)
	}
}

// FromMemory reads sizeInBytes(t) bytes from buf (which must be at least
// that long) into the runtime tag matching t, sign- or zero-extending per
// the type's signedness.
func FromMemory(t types.Type, buf []byte) Value {
	n := types.SizeInBytes(t)
	if len(buf) < n {
		panic("runtime: FromMemory buffer shorter than sizeInBytes(t)")
	}

	switch t.Tag() {
	case types.TagByte:
		return NewInt(int32(int8(buf[0])))
	case types.TagBoolean:
		return NewInt(int32(buf[0]))
	case types.TagChar:
		return NewInt(int32(binary.BigEndian.Uint16(buf)))
	case types.TagShort:
		return NewInt(int32(int16(binary.BigEndian.Uint16(buf))))
	case types.TagInt:
		return NewInt(int32(binary.BigEndian.Uint32(buf)))
	case types.TagLong:
		return NewLong(int64(binary.BigEndian.Uint64(buf)))
	case types.TagFloat:
		return NewFloat(math.Float32frombits(binary.BigEndian.Uint32(buf)))
	case types.TagDouble:
		return NewDouble(math.Float64frombits(binary.BigEndian.Uint64(buf)))
	default:
		return NewRef(Handle(binary.BigEndian.Uint64(buf)))
	}
}

// ToMemory is the inverse of FromMemory: it writes v's bytes into buf
// (which must be at least sizeInBytes(t) long) per t's wire width.
func ToMemory(t types.Type, v Value, buf []byte) {
	n := types.SizeInBytes(t)
	if len(buf) < n {
		panic("runtime: ToMemory buffer shorter than sizeInBytes(t)")
	}

	switch t.Tag() {
	case types.TagByte, types.TagBoolean:
		i, _ := v.GetAsInt()
		buf[0] = byte(i)
	case types.TagChar, types.TagShort:
		i, _ := v.GetAsInt()
		binary.BigEndian.PutUint16(buf, uint16(i))
	case types.TagInt:
		i, _ := v.GetAsInt()
		binary.BigEndian.PutUint32(buf, uint32(i))
	case types.TagLong:
		l, _ := v.GetAsLong()
		binary.BigEndian.PutUint64(buf, uint64(l))
	case types.TagFloat:
		f, _ := v.GetAsFloat()
		binary.BigEndian.PutUint32(buf, math.Float32bits(f))
	case types.TagDouble:
		d, _ := v.GetAsDouble()
		binary.BigEndian.PutUint64(buf, math.Float64bits(d))
	default:
		ref, _ := v.GetAsRef()
		binary.BigEndian.PutUint64(buf, uint64(ref))
	}
}
