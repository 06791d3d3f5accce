// Package classmanager owns class registration, the exactly-once <clinit>
// state machine, and the frame interpreter. The interpreter lives here
// rather than in its own package because executing a method can trigger
// class initialization (getstatic/putstatic/new/invokespecial all touch the
// manager) and class initialization executes a method (<clinit>) -- keeping
// both sides of that recursion in one package avoids a two-package import
// cycle.
package classmanager

import (
	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/runtime"
	"github.com/igor-laevsky/gojvm-core/pkg/verifier"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/igor-laevsky/gojvm-core/pkg/vmlog"
)

// state is a registered class's position in the Loaded -> InitInProgress ->
// Initialized lifecycle.
type state int

const (
	stateLoaded state = iota
	stateInitInProgress
	stateInitialized
)

// classEntry is everything the manager tracks for one defined class.
type classEntry struct {
	cls   *classfile.Class
	state state
	obj   *runtime.ClassObject
}

// Loader locates and parses class bytes on the manager's behalf. LoadClass
// is handed the requested name and the manager itself; it is expected to
// locate the bytes however it sees fit and call mgr.DefineClass to register
// them. DeriveClass turns already-located bytes into a parsed Class -- the
// manager calls back into it from DefineClass so that a loader with its own
// notion of "bytes" (a jmod archive member, a directory entry) still shares
// one decoding path.
type Loader interface {
	LoadClass(name string, mgr *ClassManager) error
	DeriveClass(data []byte) (*classfile.Class, error)
}

// ClassManager is the single authority for class identity in this core: it
// is the only thing that defines classes, hands out ClassObjects and owns
// the heap those objects' instances live in.
type ClassManager struct {
	loader  Loader
	heap    *runtime.Heap
	classes map[string]*classEntry

	maxDepth int // 0 means unlimited
	depth    int
}

// NewClassManager creates an empty manager backed by loader, with no limit
// on recursive ExecuteMethod nesting.
func NewClassManager(loader Loader) *ClassManager {
	return &ClassManager{
		loader:  loader,
		heap:    runtime.NewHeap(),
		classes: make(map[string]*classEntry),
	}
}

// SetMaxFrameDepth bounds recursive ExecuteMethod nesting (invokespecial
// chains, <clinit> triggering <clinit>): exceeding it fails with a
// RuntimeError rather than exhausting the Go stack. 0 means unlimited.
func (cm *ClassManager) SetMaxFrameDepth(n int) { cm.maxDepth = n }

// Heap returns the manager's object heap, for callers (tests, the CLI
// frontend) that need to dereference a Handle a running program produced.
func (cm *ClassManager) Heap() *runtime.Heap { return cm.heap }

// GetClass returns the parsed Class registered under name, loading it via
// the configured Loader if this is the first request for it.
func (cm *ClassManager) GetClass(name string) (*classfile.Class, error) {
	if e, ok := cm.classes[name]; ok {
		return e.cls, nil
	}

	vmlog.Debug().Str("class", name).Msg("loading class")
	if err := cm.loader.LoadClass(name, cm); err != nil {
		return nil, err
	}

	e, ok := cm.classes[name]
	if !ok {
		return nil, vmerrors.NewClassNotFoundError(name)
	}
	return e.cls, nil
}

// DefineClass parses data via loader.DeriveClass and registers the result
// under both the name it was requested as and the class's own name (which
// may differ, e.g. a symlinked classpath entry). Defining the same class
// name twice is a LinkageError -- this core models one class per name for
// the manager's lifetime, in a single namespace shared by all loaders.
func (cm *ClassManager) DefineClass(requestedName string, data []byte, loader Loader) (*classfile.Class, error) {
	cls, err := loader.DeriveClass(data)
	if err != nil {
		return nil, err
	}

	if _, exists := cm.classes[cls.Name]; exists {
		return nil, vmerrors.NewLinkageError("class %s already defined", cls.Name)
	}

	entry := &classEntry{cls: cls, state: stateLoaded}
	cm.classes[cls.Name] = entry
	if requestedName != cls.Name {
		cm.classes[requestedName] = entry
	}
	vmlog.Info().Str("class", cls.Name).Msg("class defined")
	return cls, nil
}

// GetClassObject returns the ClassObject for name, verifying the class and
// running its <clinit> the first time it is requested. A request arriving
// while that first run is still in progress (a class whose own <clinit>,
// directly or transitively, touches itself) observes stateInitInProgress and
// gets back the ClassObject with static fields as far as <clinit> has set
// them so far (zero where it has not yet written) -- the cycle is broken rather than rejected, matching the JVM's own
// recursive-initialization rule.
func (cm *ClassManager) GetClassObject(name string) (*runtime.ClassObject, error) {
	e, ok := cm.classes[name]
	if !ok {
		if _, err := cm.GetClass(name); err != nil {
			return nil, err
		}
		e = cm.classes[name]
	}

	if e.state == stateInitialized || e.state == stateInitInProgress {
		return e.obj, nil
	}

	if err := verifier.VerifyClass(e.cls); err != nil {
		return nil, err
	}

	e.state = stateInitInProgress
	e.obj = runtime.NewClassObject(e.cls)

	if e.cls.SuperClass != "" {
		if _, err := cm.GetClassObject(e.cls.SuperClass); err != nil {
			return nil, err
		}
	}

	if clinit := e.cls.FindMethod("<clinit>", "()V"); clinit != nil {
		vmlog.Debug().Str("class", name).Msg("running <clinit>")
		if _, err := cm.ExecuteMethod(e.cls, clinit, nil); err != nil {
			return nil, err
		}
	}

	e.state = stateInitialized
	return e.obj, nil
}
