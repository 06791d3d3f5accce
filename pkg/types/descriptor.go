package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ParsingError is returned when a field or method descriptor is malformed.
type ParsingError struct {
	Descriptor string
	Reason     string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("malformed descriptor %q: %s", e.Descriptor, e.Reason)
}

// ParseFieldDescriptor parses a single field descriptor starting at the
// beginning of s. Returns the parsed (non-promoted) type and the number of
// characters consumed. Does not require the whole string to be consumed,
// so it can be reused for the argument list inside a method descriptor.
func ParseFieldDescriptor(s string) (Type, int, error) {
	if len(s) == 0 {
		return Void, 0, errors.WithStack(&ParsingError{Descriptor: s, Reason: "empty descriptor"})
	}

	switch s[0] {
	case 'B':
		return Byte, 1, nil
	case 'C':
		return Char, 1, nil
	case 'D':
		return Double, 1, nil
	case 'F':
		return Float, 1, nil
	case 'I':
		return Int, 1, nil
	case 'J':
		return Long, 1, nil
	case 'S':
		return Short, 1, nil
	case 'Z':
		return Boolean, 1, nil
	case 'L':
		end := -1
		for i := 1; i < len(s); i++ {
			if s[i] == ';' {
				end = i
				break
			}
		}
		if end == -1 {
			return Void, 0, errors.WithStack(&ParsingError{Descriptor: s, Reason: "unterminated class descriptor"})
		}
		return Class, end + 1, nil
	case '[':
		_, consumed, err := ParseFieldDescriptor(s[1:])
		if err != nil {
			return Void, 0, err
		}
		return Array, consumed + 1, nil
	default:
		return Void, 0, errors.WithStack(&ParsingError{Descriptor: s, Reason: fmt.Sprintf("unknown type char %q", s[0])})
	}
}

// ParseMethodDescriptor parses a full "(args)return" method descriptor.
// Void is returned for a `V` return type.
func ParseMethodDescriptor(s string) (ret Type, args []Type, err error) {
	if len(s) == 0 || s[0] != '(' {
		return Void, nil, errors.WithStack(&ParsingError{Descriptor: s, Reason: "missing opening paren"})
	}

	i := 1
	for i < len(s) && s[i] != ')' {
		t, consumed, err := ParseFieldDescriptor(s[i:])
		if err != nil {
			return Void, nil, err
		}
		args = append(args, t)
		i += consumed
	}
	if i >= len(s) {
		return Void, nil, errors.WithStack(&ParsingError{Descriptor: s, Reason: "missing closing paren"})
	}
	i++ // skip ')'

	if i >= len(s) {
		return Void, nil, errors.WithStack(&ParsingError{Descriptor: s, Reason: "missing return type"})
	}
	if s[i] == 'V' {
		if i+1 != len(s) {
			return Void, nil, errors.WithStack(&ParsingError{Descriptor: s, Reason: "trailing characters after void return"})
		}
		return Void, args, nil
	}

	ret, consumed, err := ParseFieldDescriptor(s[i:])
	if err != nil {
		return Void, nil, err
	}
	if i+consumed != len(s) {
		return Void, nil, errors.WithStack(&ParsingError{Descriptor: s, Reason: "trailing characters after return type"})
	}
	return ret, args, nil
}
