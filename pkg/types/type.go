// Package types implements the verifier's static type lattice.
//
// A Type is a small immutable value: the closed set of lattice points from
// JVMS 4.10.1.2, plus the handful of reference-family refinements the
// verifier needs (Uninitialized, UninitializedThis, UninitializedOffset).
package types

import "fmt"

// Tag identifies a point in the type lattice.
type Tag uint8

const (
	TagVoid Tag = iota // sentinel: "absent type", not a lattice member

	TagTop
	TagOneWord
	TagTwoWord

	TagInt
	TagByte
	TagChar
	TagShort
	TagBoolean
	TagFloat
	TagLong
	TagDouble

	TagReference
	TagUninitialized
	TagUninitializedThis
	TagUninitializedOffset
	TagClass
	TagArray
	TagNull
)

// Type is a value from the verifier's type lattice. Zero value is Void.
//
// Equality matches wildcard-on-either-side: a bare UninitializedOffset (Bci
// not set) is equal to any UninitializedOffset, including ones with a Bci;
// two UninitializedOffsets with different Bci are NOT equal.
type Type struct {
	tag      Tag
	bci      uint32
	bciKnown bool
}

// Equal implements the wildcard-matching equality described above.
func (t Type) Equal(o Type) bool {
	if t.tag != o.tag {
		return false
	}
	if t.tag != TagUninitializedOffset {
		return true
	}
	if !t.bciKnown || !o.bciKnown {
		return true
	}
	return t.bci == o.bci
}

// Tag returns the lattice point this type belongs to.
func (t Type) Tag() Tag { return t.tag }

// Bci returns the byte-code index carried by an UninitializedOffset type,
// and whether one was actually set (a bare UninitializedOffset carries none).
func (t Type) Bci() (uint32, bool) { return t.bci, t.bciKnown }

func (t Type) String() string {
	switch t.tag {
	case TagVoid:
		return "void"
	case TagTop:
		return "top"
	case TagOneWord:
		return "one-word"
	case TagTwoWord:
		return "two-word"
	case TagInt:
		return "int"
	case TagByte:
		return "byte"
	case TagChar:
		return "char"
	case TagShort:
		return "short"
	case TagBoolean:
		return "boolean"
	case TagFloat:
		return "float"
	case TagLong:
		return "long"
	case TagDouble:
		return "double"
	case TagReference:
		return "reference"
	case TagUninitialized:
		return "uninitialized"
	case TagUninitializedThis:
		return "uninitializedThis"
	case TagUninitializedOffset:
		if t.bciKnown {
			return fmt.Sprintf("uninitializedOffset(%d)", t.bci)
		}
		return "uninitializedOffset(_)"
	case TagClass:
		return "class"
	case TagArray:
		return "array"
	case TagNull:
		return "null"
	default:
		return "unknown"
	}
}

// Simple, non-parameterized lattice points. Use these directly.
var (
	Void    = Type{tag: TagVoid}
	Top     = Type{tag: TagTop}
	OneWord = Type{tag: TagOneWord}
	TwoWord = Type{tag: TagTwoWord}

	Int     = Type{tag: TagInt}
	Byte    = Type{tag: TagByte}
	Char    = Type{tag: TagChar}
	Short   = Type{tag: TagShort}
	Boolean = Type{tag: TagBoolean}
	Float   = Type{tag: TagFloat}
	Long    = Type{tag: TagLong}
	Double  = Type{tag: TagDouble}

	Reference         = Type{tag: TagReference}
	Uninitialized     = Type{tag: TagUninitialized}
	UninitializedThis = Type{tag: TagUninitializedThis}

	Class = Type{tag: TagClass}
	Array = Type{tag: TagArray}
	Null  = Type{tag: TagNull}
)

// UninitializedOffset returns the wildcard form, matching any bci.
func UninitializedOffset() Type {
	return Type{tag: TagUninitializedOffset}
}

// UninitializedOffsetAt returns the form tied to a specific allocation-site bci.
func UninitializedOffsetAt(bci uint32) Type {
	return Type{tag: TagUninitializedOffset, bci: bci, bciKnown: true}
}

// IsAssignable implements the JVM verifier's subtyping relation (JVMS
// 4.10.1.2): can a value of type From be used where a value of type To is
// expected.
func IsAssignable(from, to Type) bool {
	if from.Equal(to) {
		return true
	}
	if from.Equal(Top) {
		return false
	}
	if to.Equal(Top) {
		return true
	}

	if from.Equal(OneWord) || from.Equal(TwoWord) {
		return to.Equal(Top)
	}

	if from.Equal(Int) || from.Equal(Float) || from.Equal(Reference) {
		return IsAssignable(OneWord, to)
	}
	if from.Equal(Long) || from.Equal(Double) {
		return IsAssignable(TwoWord, to)
	}

	if from.Equal(Uninitialized) {
		return IsAssignable(Reference, to)
	}
	if from.Equal(UninitializedThis) || from.tag == TagUninitializedOffset {
		return IsAssignable(Uninitialized, to)
	}

	if from.Equal(Class) || from.Equal(Array) {
		return IsAssignable(Reference, to)
	}

	if from.Equal(Byte) || from.Equal(Char) || from.Equal(Short) || from.Equal(Boolean) {
		return IsAssignable(Int, to)
	}

	if from.Equal(Null) {
		return IsAssignable(Class, to) || IsAssignable(Array, to)
	}

	return false
}

// SizeOf returns the verifier-level width of T: 1 for one-word types (and
// Top), 2 for Long/Double.
func SizeOf(t Type) int {
	if t.Equal(Top) {
		return 1
	}
	if IsAssignable(t, OneWord) {
		return 1
	}
	if IsAssignable(t, TwoWord) {
		return 2
	}
	return 0
}

// SizeInBytes returns the storage footprint of T in a FieldStorage buffer.
func SizeInBytes(t Type) int {
	switch t.tag {
	case TagByte, TagBoolean:
		return 1
	case TagShort, TagChar:
		return 2
	case TagReference, TagClass, TagArray, TagNull, TagUninitialized, TagUninitializedThis, TagUninitializedOffset:
		return 8
	default:
		return SizeOf(t) * 4
	}
}

// PromoteToStack maps sub-int verification types to Int; identity otherwise.
func PromoteToStack(t Type) Type {
	if t.Equal(Byte) || t.Equal(Char) || t.Equal(Short) || t.Equal(Boolean) {
		return Int
	}
	return t
}
