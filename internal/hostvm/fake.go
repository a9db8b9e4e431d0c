package hostvm

import "sync"

// Fake is an in-memory Host, Transform and Env implementation used by
// this module's own tests (and suitable as a starting point for a
// higher-fidelity integration harness). It models just enough of a
// managed runtime to drive the allocation/free/clear/dump lifecycle
// end to end: objects have a size and a tag, threads have a canned
// call stack, and the bytecode transform always reports success.
type Fake struct {
	mu sync.Mutex

	objSizes map[ObjectRef]int64
	tags     map[ObjectRef]int64
	stacks   map[ThreadRef][]MethodID
	methods  map[MethodID]fakeMethod

	wrongPhase bool

	capabilities Capabilities
	callbacks    Callbacks
	gcCount      int
}

type fakeMethod struct {
	classSignature string
	methodName     string
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		objSizes: map[ObjectRef]int64{},
		tags:     map[ObjectRef]int64{},
		stacks:   map[ThreadRef][]MethodID{},
		methods:  map[MethodID]fakeMethod{},
	}
}

// DefineObject registers an object's size, as GetObjectSize would report
// it for a real managed object.
func (f *Fake) DefineObject(obj ObjectRef, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objSizes[obj] = size
}

// DefineStack sets the call stack CaptureStack returns for thread.
func (f *Fake) DefineStack(thread ThreadRef, stack []MethodID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stacks[thread] = stack
}

// DefineMethod registers symbol information for a method identifier.
func (f *Fake) DefineMethod(id MethodID, classSignature, methodName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods[id] = fakeMethod{classSignature: classSignature, methodName: methodName}
}

// SetWrongPhase toggles whether CaptureStack fails with ErrWrongPhase,
// simulating an agent operating during VM shutdown.
func (f *Fake) SetWrongPhase(wrong bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrongPhase = wrong
}

// GCCount reports how many times ForceGC has been called.
func (f *Fake) GCCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gcCount
}

// Free simulates the managed runtime freeing obj, invoking the
// ObjectFree callback with its tag exactly as a real free event would.
func (f *Fake) Free(obj ObjectRef) {
	f.mu.Lock()
	tag := f.tags[obj]
	delete(f.tags, obj)
	cb := f.callbacks.ObjectFree
	f.mu.Unlock()
	if cb != nil {
		cb(tag)
	}
}

// LoadClass simulates the managed runtime loading a class, invoking the
// registered class-file-load-hook callback exactly as a real class load
// would. Returns a zero-value response if no callback is registered.
func (f *Fake) LoadClass(name string, bytes []byte) ClassLoadResponse {
	f.mu.Lock()
	cb := f.callbacks.ClassFileLoadHook
	f.mu.Unlock()
	if cb == nil {
		return ClassLoadResponse{}
	}
	return cb(ClassLoadRequest{ClassName: name, Bytes: bytes})
}

var _ Host = (*Fake)(nil)
var _ Transform = (*Fake)(nil)
var _ Env = (*Fake)(nil)

func (f *Fake) AddCapabilities(c Capabilities) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capabilities = c
	return nil
}

func (f *Fake) SetCallbacks(cb Callbacks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = cb
	return nil
}

type fakeMonitor struct{ mu sync.Mutex }

func (m *fakeMonitor) Enter() error { m.mu.Lock(); return nil }
func (m *fakeMonitor) Exit() error  { m.mu.Unlock(); return nil }

func (f *Fake) RawMonitor(name string) (Monitor, error) {
	return &fakeMonitor{}, nil
}

func (f *Fake) ObjectSize(obj ObjectRef) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objSizes[obj], nil
}

func (f *Fake) SetTag(obj ObjectRef, tag int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[obj] = tag
	return nil
}

func (f *Fake) GetTag(obj ObjectRef) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags[obj], nil
}

func (f *Fake) CaptureStack(thread ThreadRef, skip, max int) ([]MethodID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wrongPhase {
		return nil, ErrWrongPhase
	}
	stack := f.stacks[thread]
	if skip >= len(stack) {
		return nil, nil
	}
	stack = stack[skip:]
	if len(stack) > max {
		stack = stack[:max]
	}
	out := make([]MethodID, len(stack))
	copy(out, stack)
	return out, nil
}

func (f *Fake) MethodInfo(id MethodID) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.methods[id]
	if !ok {
		return "", "", errUnknownMethod
	}
	return m.classSignature, m.methodName, nil
}

func (f *Fake) ForceGC() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gcCount++
	return nil
}

// Rewrite implements Transform, always reporting success with a trivial
// marker appended, simulating instrumentation having been applied.
func (f *Fake) Rewrite(req RewriteRequest) (RewriteResult, error) {
	if req.ClassName == req.HelperClass {
		return RewriteResult{}, nil
	}
	out := make([]byte, len(req.Bytes)+1)
	copy(out, req.Bytes)
	out[len(req.Bytes)] = 0xff
	return RewriteResult{NewBytes: out}, nil
}

func (f *Fake) FindHelperClass(name string) error { return nil }

func (f *Fake) RegisterNatives(methods []NativeMethod) error { return nil }

func (f *Fake) SetStaticIntField(field string, value int32) error { return nil }

func (f *Fake) SetStaticBoolField(field string, value bool) error { return nil }

var errUnknownMethod = &unknownMethodError{}

type unknownMethodError struct{}

func (*unknownMethodError) Error() string { return "hostvm: unknown method" }
