package native

import (
	"bytes"
	"testing"

	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/runtime"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestReporterPrintResult(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewReporter(&buf)
		m := &classfile.Method{ReturnType: types.Int}
		r.PrintResult(m, runtime.NewInt(42))
		assert.Equal(t, "42\n", buf.String())
	})

	t.Run("double", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewReporter(&buf)
		m := &classfile.Method{ReturnType: types.Double}
		r.PrintResult(m, runtime.NewDouble(3.5))
		assert.Equal(t, "3.5\n", buf.String())
	})

	t.Run("void", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewReporter(&buf)
		m := &classfile.Method{ReturnType: types.Void}
		r.PrintResult(m, runtime.Value{})
		assert.Equal(t, "(void)\n", buf.String())
	})

	t.Run("reference", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewReporter(&buf)
		m := &classfile.Method{ReturnType: types.Class}
		r.PrintResult(m, runtime.NewRef(runtime.Handle(7)))
		assert.Equal(t, "7\n", buf.String())
	})
}
