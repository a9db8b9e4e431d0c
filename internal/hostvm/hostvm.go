// Package hostvm defines the boundary between the heapster core (the
// sampler, call-site table, instrumentation orchestrator and profile
// serializer) and the managed-runtime agent binding that hosts it. That
// binding — how the agent attaches, how JVMTI-style events are
// dispatched, how native methods are registered — is explicitly out of
// scope for this module (see spec.md §1); it is represented here purely
// as the collaborator interfaces the core needs, so the core can be
// built and tested without linking against a real managed runtime.
//
// A production build pairs this package with a cgo shim that implements
// Host and Transform against a real JVMTI environment. This module ships
// an in-memory Fake (see fake.go) that implements both, used by its own
// tests and suitable for exercising the engine end to end.
package hostvm

import "errors"

// ErrWrongPhase is returned by Host.CaptureStack when the managed
// runtime cannot currently walk the given thread's stack (e.g. during
// VM shutdown). The spec treats this as a silent, non-fatal drop.
var ErrWrongPhase = errors.New("hostvm: wrong phase")

// ThreadRef identifies a managed-runtime thread. Opaque to this package.
type ThreadRef uint64

// ObjectRef identifies a managed-runtime object. Opaque to this package.
type ObjectRef uint64

// MethodID identifies a managed-runtime method. Opaque to this package;
// its numeric value is used only for hashing and hex formatting.
type MethodID uint64

// Capabilities lists the JVMTI-style capabilities the agent must add
// before it can receive the events it depends on.
type Capabilities struct {
	ClassFileLoadHook bool
	TagObjects        bool
	ObjectFreeEvents  bool
}

// Monitor is a named raw monitor owned by the host runtime. Enter and
// Exit are the primitives a ScopedMutex wraps with fail-hard semantics.
type Monitor interface {
	Enter() error
	Exit() error
}

// Callbacks is the set of event handlers the core registers with the
// host at load time. The host invokes these directly; there is no
// separate registration call per event, mirroring JVMTI's single
// SetEventCallbacks contract.
type Callbacks struct {
	VMStart           func(env Env)
	VMDeath           func(env Env)
	ObjectFree        func(tag int64)
	ClassFileLoadHook func(req ClassLoadRequest) ClassLoadResponse
}

// NativeMethod describes one native method to register with the
// managed helper class, by name, JNI signature and Go function pointer.
type NativeMethod struct {
	Name      string
	Signature string
	Fn        interface{}
}

// Env is the managed-side (JNI-like) environment handed to VM-start and
// VM-death callbacks, through which the helper class is located and its
// native methods and static fields are wired up.
type Env interface {
	// FindHelperClass locates the managed helper class by name.
	FindHelperClass(name string) error
	// RegisterNatives registers the given native methods against the
	// helper class located by FindHelperClass.
	RegisterNatives(methods []NativeMethod) error
	// SetStaticIntField sets a static int field on the helper class.
	SetStaticIntField(field string, value int32) error
	// SetStaticBoolField sets a static boolean field on the helper class.
	SetStaticBoolField(field string, value bool) error
}

// ClassLoadRequest carries what a class-file-load-hook callback needs
// to decide whether, and how, to invoke the bytecode transform.
type ClassLoadRequest struct {
	ClassName     string
	Bytes         []byte
	IsSystemClass bool
	ClassNum      int
}

// ClassLoadResponse carries the rewritten class bytes, or a nil/empty
// NewBytes for "no rewrite necessary".
type ClassLoadResponse struct {
	NewBytes []byte
}

// Host is the set of managed-runtime primitives the core depends on, as
// enumerated in spec.md §6.
type Host interface {
	// AddCapabilities requests the capabilities the agent needs.
	AddCapabilities(Capabilities) error
	// SetCallbacks registers the agent's event handlers.
	SetCallbacks(Callbacks) error
	// RawMonitor creates (or opens) a named raw monitor.
	RawMonitor(name string) (Monitor, error)
	// ObjectSize returns the size in bytes of a managed object.
	ObjectSize(ObjectRef) (int64, error)
	// SetTag associates a 64-bit tag with a managed object.
	SetTag(ObjectRef, int64) error
	// GetTag returns the tag previously associated with a managed
	// object, or 0 if none was set.
	GetTag(ObjectRef) (int64, error)
	// CaptureStack returns up to max frames of thread's current call
	// stack, skipping the topmost skip frames. Returns ErrWrongPhase if
	// the runtime cannot currently walk thread's stack.
	CaptureStack(thread ThreadRef, skip, max int) ([]MethodID, error)
	// MethodInfo resolves a method identifier to its declaring class's
	// JVM signature and the method's name.
	MethodInfo(MethodID) (classSignature, methodName string, err error)
	// ForceGC requests a full, synchronous garbage collection.
	ForceGC() error
}

// Transform is the bytecode-rewriting collaborator: an opaque transform
// over a class's bytes that, on success, arranges for every object and
// array allocation in the class to invoke the named helper hook. See
// spec.md §6 for the full contract.
type Transform interface {
	Rewrite(req RewriteRequest) (RewriteResult, error)
}

// RewriteRequest is everything the bytecode transform needs to rewrite
// one class.
type RewriteRequest struct {
	ClassNum              int
	ClassName             string
	Bytes                 []byte
	IsSystemClass         bool
	HelperClass           string
	HelperClassDescriptor string
	ObjHookMethod         string
	ObjHookSignature      string
	ArrHookMethod         string
	ArrHookSignature      string
}

// RewriteResult carries the transform's output. A nil or empty NewBytes
// means the class passed through unchanged.
type RewriteResult struct {
	NewBytes []byte
}
