// Package classfile decodes the big-endian class-file wire format into a
// typed, immutable in-memory representation, built through a cell-typed
// constant-pool builder that lets forward references resolve safely.
package classfile

import (
	"fmt"

	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/pkg/errors"
)

// Tag identifies the record kind expected or stored at a constant-pool cell.
type Tag int

const (
	TagUtf8 Tag = iota
	TagClass
	TagNameAndType
	TagMethodRef
	TagFieldRef
)

func (t Tag) String() string {
	switch t {
	case TagUtf8:
		return "Utf8"
	case TagClass:
		return "Class"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodRef:
		return "MethodRef"
	case TagFieldRef:
		return "FieldRef"
	default:
		return "unknown"
	}
}

// Utf8Ref, ClassRef, NameAndTypeRef, MethodRefRef and FieldRefRef are opaque,
// kind-tagged handles into a constant pool cell. Records reference each other
// through these rather than raw indices, so a cross-reference that was typed
// wrong is caught at build time instead of at first use.
type Utf8Ref uint16
type ClassRef uint16
type NameAndTypeRef uint16
type MethodRefRef uint16
type FieldRefRef uint16

// Utf8Record, ClassInfoRecord, NameAndTypeRecord, MethodRefRecord and
// FieldRefRecord are the five record kinds a constant pool holds in this
// core.
type Utf8Record struct {
	Value string
}

type ClassInfoRecord struct {
	NameIndex Utf8Ref
}

type NameAndTypeRecord struct {
	NameIndex       Utf8Ref
	DescriptorIndex Utf8Ref
}

type MethodRefRecord struct {
	ClassIndex       ClassRef
	NameAndTypeIndex NameAndTypeRef
}

type FieldRefRecord struct {
	ClassIndex       ClassRef
	NameAndTypeIndex NameAndTypeRef
}

// cell holds whatever has been stored at one constant-pool index, plus the
// kind it was first typed as (via one of the *Ref methods or a Set call), so later accesses of a
// mismatched kind fail fast.
type cell struct {
	tag      Tag
	tagKnown bool
	record   interface{}
}

// IncompatibleCellType is raised when a cell is referenced or populated with
// two different record kinds.
type IncompatibleCellType struct {
	Index    uint16
	Expected Tag
	Got      Tag
}

func (e *IncompatibleCellType) Error() string {
	return fmt.Sprintf("constant pool cell %d: expected %s, got %s", e.Index, e.Expected, e.Got)
}

// ValidationError is raised by Seal when the pool is incomplete.
type ValidationError struct {
	Index   uint16
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("constant pool cell %d: %s", e.Index, e.Message)
}

// Builder accumulates constant-pool cells for indices [1, capacity). Index 0
// is unused, matching the wire format's 1-based pool. Cells may be populated
// in any order; cross-references are stored as typed Ref handles so a
// forward reference to an as-yet-empty cell is legal during construction.
type Builder struct {
	capacity int
	cells    []cell
}

// NewBuilder creates a Builder for a pool with room for indices [1, capacity).
func NewBuilder(capacity int) *Builder {
	return &Builder{capacity: capacity, cells: make([]cell, capacity)}
}

func (b *Builder) expect(i uint16, tag Tag) error {
	if int(i) <= 0 || int(i) >= b.capacity {
		return errors.WithStack(&ValidationError{Index: i, Message: "index out of range"})
	}
	c := &b.cells[i]
	if c.tagKnown && c.tag != tag {
		return errors.WithStack(&IncompatibleCellType{Index: i, Expected: c.tag, Got: tag})
	}
	c.tag = tag
	c.tagKnown = true
	return nil
}

// Utf8Ref hands out a typed handle to cell i, recording that it must hold a
// Utf8Record.
func (b *Builder) Utf8Ref(i uint16) (Utf8Ref, error) {
	if err := b.expect(i, TagUtf8); err != nil {
		return 0, err
	}
	return Utf8Ref(i), nil
}

func (b *Builder) ClassRef(i uint16) (ClassRef, error) {
	if err := b.expect(i, TagClass); err != nil {
		return 0, err
	}
	return ClassRef(i), nil
}

func (b *Builder) NameAndTypeRef(i uint16) (NameAndTypeRef, error) {
	if err := b.expect(i, TagNameAndType); err != nil {
		return 0, err
	}
	return NameAndTypeRef(i), nil
}

func (b *Builder) MethodRefRef(i uint16) (MethodRefRef, error) {
	if err := b.expect(i, TagMethodRef); err != nil {
		return 0, err
	}
	return MethodRefRef(i), nil
}

func (b *Builder) FieldRefRef(i uint16) (FieldRefRef, error) {
	if err := b.expect(i, TagFieldRef); err != nil {
		return 0, err
	}
	return FieldRefRef(i), nil
}

// SetUtf8, SetClass, SetNameAndType, SetMethodRef and SetFieldRef populate
// cell i. Each fails IncompatibleCellType if the cell was previously typed
// (via a Ref call or an earlier Set) as a different kind.
func (b *Builder) SetUtf8(i uint16, v string) error {
	if err := b.expect(i, TagUtf8); err != nil {
		return err
	}
	b.cells[i].record = Utf8Record{Value: v}
	return nil
}

func (b *Builder) SetClass(i uint16, r ClassInfoRecord) error {
	if err := b.expect(i, TagClass); err != nil {
		return err
	}
	b.cells[i].record = r
	return nil
}

func (b *Builder) SetNameAndType(i uint16, r NameAndTypeRecord) error {
	if err := b.expect(i, TagNameAndType); err != nil {
		return err
	}
	b.cells[i].record = r
	return nil
}

func (b *Builder) SetMethodRef(i uint16, r MethodRefRecord) error {
	if err := b.expect(i, TagMethodRef); err != nil {
		return err
	}
	b.cells[i].record = r
	return nil
}

func (b *Builder) SetFieldRef(i uint16, r FieldRefRecord) error {
	if err := b.expect(i, TagFieldRef); err != nil {
		return err
	}
	b.cells[i].record = r
	return nil
}

// Seal verifies completeness -- every cell in [1, capacity) is populated --
// and returns the immutable pool. Cross-reference type safety was already
// enforced cell-by-cell as Ref handles and Set calls arrived.
func (b *Builder) Seal() (*ConstantPool, error) {
	for i := 1; i < b.capacity; i++ {
		if b.cells[i].record == nil {
			return nil, errors.WithStack(&ValidationError{Index: uint16(i), Message: "cell not populated"})
		}
	}
	return &ConstantPool{cells: b.cells}, nil
}

// ConstantPool is the sealed, immutable result of Builder.Seal. Every
// cross-reference issued a Ref during construction is guaranteed to resolve.
type ConstantPool struct {
	cells []cell
}

// Len returns the pool's capacity, i.e. constant_pool_count.
func (cp *ConstantPool) Len() int { return len(cp.cells) }

func (cp *ConstantPool) inRange(i uint16) bool {
	return int(i) > 0 && int(i) < len(cp.cells)
}

// Utf8, Class, NameAndType, MethodRef and FieldRef are the "throwing"
// get_as<R> variants: each returns the record for a typed handle, or a
// FormatError if the index is out of range or the cell holds a different
// record kind (neither can happen for a handle obtained from this same
// pool's builder, but both can for indices decoded straight off the wire
// without going through Ref first).
func (cp *ConstantPool) Utf8(ref Utf8Ref) (string, error) {
	if !cp.inRange(uint16(ref)) {
		return "", errors.WithStack(vmerrors.NewFormatError("constant pool index %d out of range", ref))
	}
	r, ok := cp.cells[ref].record.(Utf8Record)
	if !ok {
		return "", errors.WithStack(vmerrors.NewFormatError("constant pool index %d is not Utf8", ref))
	}
	return r.Value, nil
}

func (cp *ConstantPool) Class(ref ClassRef) (ClassInfoRecord, error) {
	if !cp.inRange(uint16(ref)) {
		return ClassInfoRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d out of range", ref))
	}
	r, ok := cp.cells[ref].record.(ClassInfoRecord)
	if !ok {
		return ClassInfoRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d is not Class", ref))
	}
	return r, nil
}

func (cp *ConstantPool) NameAndType(ref NameAndTypeRef) (NameAndTypeRecord, error) {
	if !cp.inRange(uint16(ref)) {
		return NameAndTypeRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d out of range", ref))
	}
	r, ok := cp.cells[ref].record.(NameAndTypeRecord)
	if !ok {
		return NameAndTypeRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d is not NameAndType", ref))
	}
	return r, nil
}

func (cp *ConstantPool) MethodRef(ref MethodRefRef) (MethodRefRecord, error) {
	if !cp.inRange(uint16(ref)) {
		return MethodRefRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d out of range", ref))
	}
	r, ok := cp.cells[ref].record.(MethodRefRecord)
	if !ok {
		return MethodRefRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d is not MethodRef", ref))
	}
	return r, nil
}

func (cp *ConstantPool) FieldRef(ref FieldRefRef) (FieldRefRecord, error) {
	if !cp.inRange(uint16(ref)) {
		return FieldRefRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d out of range", ref))
	}
	r, ok := cp.cells[ref].record.(FieldRefRecord)
	if !ok {
		return FieldRefRecord{}, errors.WithStack(vmerrors.NewFormatError("constant pool index %d is not FieldRef", ref))
	}
	return r, nil
}

// ClassName resolves a ClassRef all the way down to its name string.
func (cp *ConstantPool) ClassName(ref ClassRef) (string, error) {
	c, err := cp.Class(ref)
	if err != nil {
		return "", err
	}
	return cp.Utf8(c.NameIndex)
}

// ResolvedMethodRef is a MethodRef with its class name, method name and
// descriptor all resolved to strings, for convenient use by the interpreter.
type ResolvedMethodRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (cp *ConstantPool) ResolveMethodRef(ref MethodRefRef) (ResolvedMethodRef, error) {
	mr, err := cp.MethodRef(ref)
	if err != nil {
		return ResolvedMethodRef{}, err
	}
	className, err := cp.ClassName(mr.ClassIndex)
	if err != nil {
		return ResolvedMethodRef{}, err
	}
	nat, err := cp.NameAndType(mr.NameAndTypeIndex)
	if err != nil {
		return ResolvedMethodRef{}, err
	}
	name, err := cp.Utf8(nat.NameIndex)
	if err != nil {
		return ResolvedMethodRef{}, err
	}
	desc, err := cp.Utf8(nat.DescriptorIndex)
	if err != nil {
		return ResolvedMethodRef{}, err
	}
	return ResolvedMethodRef{ClassName: className, Name: name, Descriptor: desc}, nil
}

// ResolvedFieldRef is a FieldRef with its class name, field name and
// descriptor all resolved to strings.
type ResolvedFieldRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (cp *ConstantPool) ResolveFieldRef(ref FieldRefRef) (ResolvedFieldRef, error) {
	fr, err := cp.FieldRef(ref)
	if err != nil {
		return ResolvedFieldRef{}, err
	}
	className, err := cp.ClassName(fr.ClassIndex)
	if err != nil {
		return ResolvedFieldRef{}, err
	}
	nat, err := cp.NameAndType(fr.NameAndTypeIndex)
	if err != nil {
		return ResolvedFieldRef{}, err
	}
	name, err := cp.Utf8(nat.NameIndex)
	if err != nil {
		return ResolvedFieldRef{}, err
	}
	desc, err := cp.Utf8(nat.DescriptorIndex)
	if err != nil {
		return ResolvedFieldRef{}, err
	}
	return ResolvedFieldRef{ClassName: className, Name: name, Descriptor: desc}, nil
}
