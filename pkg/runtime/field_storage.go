package runtime

import (
	"fmt"

	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/pkg/errors"
)

// FieldLayout records where one field lives inside a FieldStorage buffer.
type FieldLayout struct {
	Name       string
	Descriptor string
	Type       types.Type
	Offset     int
}

// FieldStorage is a flat byte buffer holding either the static fields of a
// ClassObject or the instance fields of an InstanceObject, laid out in
// declaration order with no padding.
type FieldStorage struct {
	buf    []byte
	layout []FieldLayout
}

// UnrecognizedField is raised when a name does not match any field in the
// storage's layout.
type UnrecognizedField struct {
	Name string
}

func (e *UnrecognizedField) Error() string {
	return fmt.Sprintf("unrecognized field %q", e.Name)
}

// NewFieldStorage lays out the static or instance fields of cls (selected by
// static) in declaration order and zero-initializes the backing buffer.
func NewFieldStorage(cls *classfile.Class, static bool) *FieldStorage {
	fs := &FieldStorage{}
	offset := 0
	for _, f := range cls.Fields {
		if f.IsStatic() != static {
			continue
		}
		fs.layout = append(fs.layout, FieldLayout{
			Name:       f.Name,
			Descriptor: f.Descriptor,
			Type:       f.Type,
			Offset:     offset,
		})
		offset += types.SizeInBytes(f.Type)
	}
	fs.buf = make([]byte, offset)
	return fs
}

// FindFieldAndOffset scans the layout for name, returning its descriptor
// type and byte offset, or UnrecognizedField on a miss.
func (fs *FieldStorage) FindFieldAndOffset(name string) (FieldLayout, error) {
	for _, l := range fs.layout {
		if l.Name == name {
			return l, nil
		}
	}
	return FieldLayout{}, errors.WithStack(&UnrecognizedField{Name: name})
}

// GetField reads the current value of field name.
func (fs *FieldStorage) GetField(name string) (Value, error) {
	l, err := fs.FindFieldAndOffset(name)
	if err != nil {
		return Value{}, err
	}
	n := types.SizeInBytes(l.Type)
	return FromMemory(l.Type, fs.buf[l.Offset:l.Offset+n]), nil
}

// SetField writes v into field name's storage.
func (fs *FieldStorage) SetField(name string, v Value) error {
	l, err := fs.FindFieldAndOffset(name)
	if err != nil {
		return err
	}
	n := types.SizeInBytes(l.Type)
	ToMemory(l.Type, v, fs.buf[l.Offset:l.Offset+n])
	return nil
}
