package runtime

import "github.com/igor-laevsky/gojvm-core/pkg/classfile"

// ClassObject is the per-class runtime companion created once a class
// transitions out of Loaded: its static field storage and (if run)
// <clinit> have already executed by the time anyone observes it in the
// Initialized state.
type ClassObject struct {
	Class  *classfile.Class
	Static *FieldStorage
}

// NewClassObject allocates zeroed static storage for cls. Called by the
// class manager exactly once per class, before <clinit> runs.
func NewClassObject(cls *classfile.Class) *ClassObject {
	return &ClassObject{Class: cls, Static: NewFieldStorage(cls, true)}
}

// InstanceObject is one heap-allocated instance of a class. Owned by the
// Heap it was allocated in; the core only ever holds Handles to it.
type InstanceObject struct {
	Class    *classfile.Class
	Instance *FieldStorage
}

// NewInstanceObject allocates zeroed instance storage for cls.
func NewInstanceObject(cls *classfile.Class) *InstanceObject {
	return &InstanceObject{Class: cls, Instance: NewFieldStorage(cls, false)}
}

// Heap owns every InstanceObject for the process lifetime and hands out
// Handles as weak references. There is no collection in this core: objects
// live until the process exits.
type Heap struct {
	objects []*InstanceObject // index 0 is reserved so Handle 0 stays null
}

func NewHeap() *Heap {
	return &Heap{objects: make([]*InstanceObject, 1)}
}

// Alloc stores obj and returns its Handle.
func (h *Heap) Alloc(obj *InstanceObject) Handle {
	h.objects = append(h.objects, obj)
	return Handle(len(h.objects) - 1)
}

// Get dereferences a Handle. Returns false for the null handle or a handle
// this heap never allocated.
func (h *Heap) Get(handle Handle) (*InstanceObject, bool) {
	if handle == NullHandle || int(handle) >= len(h.objects) {
		return nil, false
	}
	return h.objects[handle], true
}
