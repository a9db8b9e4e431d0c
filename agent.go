package heapster

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mariusae/heapster/internal/callsite"
	"github.com/mariusae/heapster/internal/hostvm"
	"github.com/mariusae/heapster/internal/instrument"
	"github.com/mariusae/heapster/internal/log"
	"github.com/mariusae/heapster/internal/metrics"
	"github.com/mariusae/heapster/internal/profile"
	"github.com/mariusae/heapster/internal/sampler"
	"github.com/mariusae/heapster/internal/scopedmutex"
)

const (
	helperClass           = "Heapster"
	helperClassDescriptor = "LHeapster;"
	allocHookMethod       = "newObject"
	allocHookSignature    = "(Ljava/lang/Object;)V"

	// stackSkipFrames is passed as CaptureStack's skip argument. It is
	// zero here because skipping the allocation hook's own frames is the
	// host binding's responsibility — a real JVMTI-backed Host begins
	// the walk below its native dispatch trampoline already, so there is
	// nothing left at this layer for the agent to skip.
	stackSkipFrames = 0

	// metricsReportInterval is how often the agent publishes its own
	// operational-health gauges through the configured statsd client.
	metricsReportInterval = 10 * time.Second
)

// Allocation is the bookkeeping record kept for every tagged, live
// object: which call site it was attributed to, and how many bytes it
// was charged against that site. It is the side-table entry described
// by spec.md §9's documented alternative to reusing the tag itself as a
// pointer: Go's garbage collector cannot safely recover a live object
// from a uintptr cast out of an unsafe.Pointer, so the tag is instead a
// synthetic, monotonically increasing key into this table.
type Allocation struct {
	Site *callsite.Site
	Size int64
}

// allocTable maps synthetic tags to Allocations. Its own mutex is
// independent of the table mutex: assigning a tag happens before the
// object is known to the host runtime at all, outside of any lock
// ordering the call-site table cares about.
type allocTable struct {
	mu   sync.Mutex
	next int64
	m    map[int64]*Allocation
}

func newAllocTable() *allocTable {
	return &allocTable{m: make(map[int64]*Allocation)}
}

func (t *allocTable) store(a *Allocation) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	tag := t.next
	t.m[tag] = a
	return tag
}

func (t *allocTable) take(tag int64) (*Allocation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.m[tag]
	if ok {
		delete(t.m, tag)
	}
	return a, ok
}

func (t *allocTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// hostSymbolizer adapts a hostvm.Host to profile.Symbolizer, converting
// between the call-site package's engine-internal MethodID (uintptr)
// and the host boundary's MethodID (uint64). The two stay distinct
// named types at their respective layers; they are converted only here
// and in NewObject.
type hostSymbolizer struct {
	host hostvm.Host
}

func (s hostSymbolizer) MethodInfo(id callsite.MethodID) (string, string, error) {
	return s.host.MethodInfo(hostvm.MethodID(id))
}

// Agent is the running heapster profiler: one per process, owning the
// call-site table, the sampler, the instrumentation orchestrator and
// the live-allocation side table, and bound to exactly one Host.
type Agent struct {
	cfg *config

	tableMu   *scopedmutex.Mutex
	table     *callsite.Table
	samplerMu *scopedmutex.Mutex
	sampler   *sampler.Sampler

	orchestrator *instrument.Orchestrator
	allocs       *allocTable
	metrics      *metrics.Reporter

	done chan struct{}
}

// newAgent wires up an Agent from cfg, acquiring the host's raw
// monitors and registering the agent's callbacks and capabilities. It
// does not start sampling; that begins as soon as the host starts
// delivering class-load and allocation-hook callbacks.
func newAgent(cfg *config) (*Agent, error) {
	if cfg.host == nil {
		return nil, fmt.Errorf("heapster: no Host configured (use WithHost)")
	}
	if cfg.transform == nil {
		return nil, fmt.Errorf("heapster: no Transform configured (use WithTransform)")
	}

	tableMu, err := scopedmutex.New(cfg.host, "heapster table monitor")
	if err != nil {
		return nil, fmt.Errorf("heapster: creating table monitor: %w", err)
	}
	samplerMu, err := scopedmutex.New(cfg.host, "heapster sampler monitor")
	if err != nil {
		return nil, fmt.Errorf("heapster: creating sampler monitor: %w", err)
	}

	a := &Agent{
		cfg:       cfg,
		tableMu:   tableMu,
		table:     callsite.NewWithLocker(tableMu),
		samplerMu: samplerMu,
		sampler:   sampler.New(0, cfg.samplePeriod),
		allocs:    newAllocTable(),
		metrics:   metrics.New(cfg.statsd),
		done:      make(chan struct{}),
	}
	a.orchestrator = instrument.New(tableMu, cfg.transform, instrument.HookNames{
		HelperClass:           helperClass,
		HelperClassDescriptor: helperClassDescriptor,
		Method:                allocHookMethod,
		Signature:             allocHookSignature,
	})

	if err := cfg.host.AddCapabilities(hostvm.Capabilities{
		ClassFileLoadHook: true,
		TagObjects:        true,
		ObjectFreeEvents:  true,
	}); err != nil {
		return nil, fmt.Errorf("heapster: adding capabilities: %w", err)
	}

	if err := cfg.host.SetCallbacks(hostvm.Callbacks{
		VMStart:           a.vmStart,
		VMDeath:           a.vmDeath,
		ObjectFree:        a.objectFree,
		ClassFileLoadHook: a.orchestrator.HandleClassLoad,
	}); err != nil {
		return nil, fmt.Errorf("heapster: setting callbacks: %w", err)
	}

	go a.reportMetricsLoop()

	return a, nil
}

// reportMetricsLoop periodically publishes operational-health gauges
// until the agent is stopped. It runs for the lifetime of the Agent,
// independent of VM start/death, so a dashboard reflects accumulated
// state even before the managed runtime has fully started.
func (a *Agent) reportMetricsLoop() {
	ticker := time.NewTicker(metricsReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.reportMetrics()
		case <-a.done:
			return
		}
	}
}

// stop halts the agent's background metrics reporting. Called once, by
// the package-level Stop.
func (a *Agent) stop() {
	close(a.done)
}

// vmStart implements the VMStart host callback: it locates the helper
// class, registers its native allocation hook, logs the sample period,
// and marks the orchestrator's vm-started flag so that classes loaded
// from this point on are no longer considered system classes.
func (a *Agent) vmStart(env hostvm.Env) {
	if err := env.FindHelperClass(helperClass); err != nil {
		log.Error("finding helper class %s: %v", helperClass, err)
		a.orchestrator.MarkVMStarted()
		return
	}

	natives := []hostvm.NativeMethod{{
		Name:      allocHookMethod,
		Signature: allocHookSignature,
		Fn:        a.handleAllocHook,
	}}
	if err := env.RegisterNatives(natives); err != nil {
		log.Error("registering natives on %s: %v", helperClass, err)
	}

	a.orchestrator.MarkVMStarted()
	log.Info("heapster agent started, sample period %d bytes", a.sampler.Period())
}

// vmDeath implements the VMDeath host callback: if a profile path is
// configured, it serializes the call-site table and writes it there,
// logging (but not panicking on) any failure — a VM shutdown is not a
// context in which the agent should make noise beyond a log line.
func (a *Agent) vmDeath(env hostvm.Env) {
	log.Flush()

	if a.cfg.profilePath == "" {
		return
	}
	if err := a.DumpProfile(a.cfg.profilePath); err != nil {
		log.Warn("dumping profile to %s: %v", a.cfg.profilePath, err)
		return
	}
	log.Info("profile written to %s", a.cfg.profilePath)
}

// handleAllocHook is the function registered as the helper class's
// native allocation hook; it is invoked by the host binding whenever
// instrumented bytecode constructs an object or array. thread and obj
// identify the allocating thread and the newly created object.
func (a *Agent) handleAllocHook(thread hostvm.ThreadRef, obj hostvm.ObjectRef) {
	a.NewObject(thread, obj)
}

// NewObject records a single allocation: thread is the allocating
// thread (used to capture its current call stack), obj is the newly
// allocated object the instrumented bytecode just constructed. It
// samples the allocation via the configured period; only sampled
// allocations are charged to a call site and tagged for later
// attribution on free.
func (a *Agent) NewObject(thread hostvm.ThreadRef, obj hostvm.ObjectRef) {
	size, err := a.cfg.host.ObjectSize(obj)
	if err != nil {
		log.Error("getting object size: %v", err)
		return
	}

	a.samplerMu.Lock()
	sampled := a.sampler.SampleAllocation(size)
	a.samplerMu.Unlock()
	if !sampled {
		return
	}

	stack, err := a.cfg.host.CaptureStack(thread, stackSkipFrames, a.cfg.maxFrames)
	if err != nil {
		if err == hostvm.ErrWrongPhase {
			return
		}
		log.Error("capturing stack: %v", err)
		return
	}

	engineStack := make([]callsite.MethodID, len(stack))
	for i, m := range stack {
		engineStack[i] = callsite.MethodID(m)
	}

	a.tableMu.Lock()
	site := a.table.FindOrInsert(engineStack)
	a.table.Record(site, size)
	a.tableMu.Unlock()

	tag := a.allocs.store(&Allocation{Site: site, Size: size})
	if err := a.cfg.host.SetTag(obj, tag); err != nil {
		log.Error("tagging object: %v", err)
	}
}

// objectFree implements the ObjectFree host callback, crediting the
// freed bytes back against the owning call site and dropping the
// object's side-table entry. A tag of 0, or a tag with no side-table
// entry, means the object was never sampled; nothing to do.
func (a *Agent) objectFree(tag int64) {
	if tag == 0 {
		return
	}
	alloc, ok := a.allocs.take(tag)
	if !ok {
		return
	}

	a.tableMu.Lock()
	a.table.Free(alloc.Site, alloc.Size)
	a.tableMu.Unlock()
}

// DumpProfile serializes the current call-site table and writes it to
// path, overwriting any existing file. Writes are retried across
// EINTR/EAGAIN at the raw file-descriptor level, matching the original
// agent's resilience around its dump-on-death write.
func (a *Agent) DumpProfile(path string) error {
	data := a.serialize()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeFull(int(f.Fd()), data); err != nil {
		return err
	}
	return nil
}

func (a *Agent) serialize() []byte {
	a.tableMu.Lock()
	sites := make([]*callsite.Site, 0)
	a.table.Each(func(s *callsite.Site) {
		sites = append(sites, s)
	})
	a.tableMu.Unlock()

	return profile.Serialize(sites, hostSymbolizer{host: a.cfg.host})
}

// ClearProfile unlinks every call site from the table. Sites still
// backing a live (tagged, unfreed) allocation are marked inactive and
// stay reachable only through that allocation's Site pointer; once
// objectFree drops the allocation's side-table entry, nothing refers to
// them any longer.
func (a *Agent) ClearProfile() {
	a.tableMu.Lock()
	a.table.Clear()
	a.tableMu.Unlock()
}

// SetSamplingPeriod changes the mean number of bytes between samples
// for all allocations from this point on.
func (a *Agent) SetSamplingPeriod(bytes int64) {
	a.samplerMu.Lock()
	a.sampler.Init(0, bytes)
	a.samplerMu.Unlock()
}

// reportMetrics publishes a snapshot of table/sampler state through the
// configured statsd client.
func (a *Agent) reportMetrics() {
	var sites, sampledBytes, allocs int
	a.tableMu.Lock()
	a.table.Each(func(s *callsite.Site) {
		sites++
		sampledBytes += int(s.NumBytes)
		allocs += int(s.NumAllocs)
	})
	a.tableMu.Unlock()

	a.metrics.Report(metrics.Snapshot{
		Sites:         int64(sites),
		LiveBytes:     int64(sampledBytes),
		SampledAllocs: int64(allocs),
		SampledBytes:  int64(sampledBytes),
	})
}

// writeFull writes all of data to fd, retrying at the syscall level on
// EINTR (a signal interrupted the write) and EAGAIN (a non-blocking fd
// transiently had no room), rather than surfacing either as a short
// write to the caller.
func writeFull(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

var (
	mu          sync.Mutex
	activeAgent *Agent
)

// Start brings up the heapster agent with the given options layered
// over the environment-derived defaults (HEAPSTER_SAMPLE_PERIOD,
// HEAPSTER_PROFILE), and returns an error if an agent is already
// running or if required collaborators (WithHost, WithTransform) were
// not supplied. Mirrors the teacher's profiler.Start/activeProfiler
// singleton pattern.
func Start(opts ...Option) error {
	mu.Lock()
	defer mu.Unlock()

	if activeAgent != nil {
		return fmt.Errorf("heapster: agent already started")
	}

	cfg, err := defaultConfig()
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(cfg)
	}

	a, err := newAgent(cfg)
	if err != nil {
		return err
	}
	activeAgent = a
	return nil
}

// Stop tears down the active agent, if any. It is a no-op if no agent
// is running.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if activeAgent != nil {
		activeAgent.stop()
		activeAgent = nil
	}
}

// DumpProfile serializes the active agent's call-site table to path. It
// returns an error if no agent is running.
func DumpProfile(path string) error {
	mu.Lock()
	a := activeAgent
	mu.Unlock()
	if a == nil {
		return fmt.Errorf("heapster: no agent running")
	}
	return a.DumpProfile(path)
}

// ClearProfile resets the active agent's accumulated statistics. It is
// a no-op if no agent is running.
func ClearProfile() {
	mu.Lock()
	a := activeAgent
	mu.Unlock()
	if a != nil {
		a.ClearProfile()
	}
}

// SetSamplingPeriod changes the active agent's sample period. It is a
// no-op if no agent is running.
func SetSamplingPeriod(bytes int64) {
	mu.Lock()
	a := activeAgent
	mu.Unlock()
	if a != nil {
		a.SetSamplingPeriod(bytes)
	}
}
