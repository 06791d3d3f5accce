// Package native holds the small embedding-facing shims that sit outside
// the core proper: nothing here is reachable from bytecode (native method
// bridging is out of scope), it's support code for a frontend -- cmd/vmrun
// -- that needs to report what a program's entry method returned.
package native

import (
	"fmt"
	"io"

	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/runtime"
	"github.com/igor-laevsky/gojvm-core/pkg/types"
)

// Reporter is the adapted equivalent of a java.io.PrintStream: a thin
// wrapper over an io.Writer that formats one runtime.Value per the JVM type
// it was declared as, the way System.out.println would have, if this core
// dispatched to it.
type Reporter struct {
	Writer io.Writer
}

// NewReporter wraps w.
func NewReporter(w io.Writer) *Reporter { return &Reporter{Writer: w} }

// PrintResult writes m's return value to the reporter's writer, formatted
// per m.ReturnType. A void method prints nothing but "(void)" -- there's no
// value to show, but silence would look like the reporter never ran.
func (r *Reporter) PrintResult(m *classfile.Method, v runtime.Value) {
	if m.ReturnType.Equal(types.Void) {
		fmt.Fprintln(r.Writer, "(void)")
		return
	}

	switch m.ReturnType.Tag() {
	case types.TagDouble:
		d, _ := v.GetAsDouble()
		fmt.Fprintln(r.Writer, d)
	case types.TagLong:
		l, _ := v.GetAsLong()
		fmt.Fprintln(r.Writer, l)
	case types.TagFloat:
		f, _ := v.GetAsFloat()
		fmt.Fprintln(r.Writer, f)
	default:
		switch v.Kind() {
		case runtime.KindRef:
			h, _ := v.GetAsRef()
			fmt.Fprintln(r.Writer, h)
		default:
			i, _ := v.GetAsInt()
			fmt.Fprintln(r.Writer, i)
		}
	}
}
