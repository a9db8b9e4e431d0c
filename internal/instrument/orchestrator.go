// Package instrument implements the instrumentation orchestrator:
// spec.md §4.6. On every class-file load it assigns a monotonic class
// number and asks the bytecode transform to inject calls to the helper
// class's allocation hook, skipping the helper class itself.
package instrument

import (
	"sync"

	"github.com/mariusae/heapster/internal/hostvm"
)

// HookNames names the helper method (and JNI signature) used for both
// object-creation and array-creation sites, per the final revision's
// resolved Open Question: a single shared hook for both.
type HookNames struct {
	HelperClass           string
	HelperClassDescriptor string
	Method                string
	Signature             string
}

// Orchestrator tracks the monotonic class counter and VM-started flag
// described by spec.md §4.6, and drives the bytecode Transform
// collaborator on every class load.
type Orchestrator struct {
	mu        sync.Locker
	transform hostvm.Transform
	hooks     HookNames

	classCount int
	vmStarted  bool
}

// New returns an Orchestrator whose class-count/vm-started state is
// guarded by l — in the agent, the same locker guarding the call-site
// table, per spec.md §5's "agent-state mutex is the same table mutex".
func New(l sync.Locker, transform hostvm.Transform, hooks HookNames) *Orchestrator {
	return &Orchestrator{mu: l, transform: transform, hooks: hooks}
}

// MarkVMStarted records that VM-start has occurred; classes loaded
// before this point are treated as system classes.
func (o *Orchestrator) MarkVMStarted() {
	o.mu.Lock()
	o.vmStarted = true
	o.mu.Unlock()
}

// HandleClassLoad implements the class-file-load-hook callback
// (hostvm.Callbacks.ClassFileLoadHook). It returns a zero-value response
// (no rewrite) for the helper class itself and for any class the
// transform declines to rewrite.
func (o *Orchestrator) HandleClassLoad(req hostvm.ClassLoadRequest) hostvm.ClassLoadResponse {
	if req.ClassName == o.hooks.HelperClass {
		return hostvm.ClassLoadResponse{}
	}

	o.mu.Lock()
	classNum := o.classCount
	o.classCount++
	isSystemClass := !o.vmStarted
	o.mu.Unlock()

	result, err := o.transform.Rewrite(hostvm.RewriteRequest{
		ClassNum:              classNum,
		ClassName:             req.ClassName,
		Bytes:                 req.Bytes,
		IsSystemClass:         isSystemClass,
		HelperClass:           o.hooks.HelperClass,
		HelperClassDescriptor: o.hooks.HelperClassDescriptor,
		ObjHookMethod:         o.hooks.Method,
		ObjHookSignature:      o.hooks.Signature,
		ArrHookMethod:         o.hooks.Method,
		ArrHookSignature:      o.hooks.Signature,
	})
	if err != nil || len(result.NewBytes) == 0 {
		// A zero-length transform result is a documented no-op, not a
		// failure; classname-lookup failures are fatal at the host
		// binding layer, before this call is ever reached.
		return hostvm.ClassLoadResponse{}
	}

	return hostvm.ClassLoadResponse{NewBytes: result.NewBytes}
}

// ClassCount returns the number of classes seen so far, for tests and
// diagnostics.
func (o *Orchestrator) ClassCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.classCount
}
