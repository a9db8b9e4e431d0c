// Package scopedmutex wraps a named host-runtime raw monitor (see
// hostvm.Monitor) in a sync.Locker. Acquire/release failures signal host
// corruption and are unrecoverable, so they abort the process with a
// formatted diagnostic rather than being returned as errors — mirroring
// the original agent's errx(3, ...) on a failed RawMonitorEnter/Exit.
package scopedmutex

import (
	"os"

	"github.com/mariusae/heapster/internal/hostvm"
	"github.com/mariusae/heapster/internal/log"
)

// Exit is called on unrecoverable host-primitive failure. Tests replace
// it to observe the would-be abort instead of killing the process.
var Exit = os.Exit

// Mutex is a scoped acquire/release wrapper around a named raw monitor.
type Mutex struct {
	name string
	raw  hostvm.Monitor
}

// New creates (via host) and wraps a raw monitor identified by name, a
// human-readable string used only for diagnostics.
func New(host hostvm.Host, name string) (*Mutex, error) {
	raw, err := host.RawMonitor(name)
	if err != nil {
		return nil, err
	}
	return &Mutex{name: name, raw: raw}, nil
}

// Lock acquires the underlying raw monitor.
func (m *Mutex) Lock() {
	if err := m.raw.Enter(); err != nil {
		fatalf("failed to lock monitor %q: %v", m.name, err)
	}
}

// Unlock releases the underlying raw monitor.
func (m *Mutex) Unlock() {
	if err := m.raw.Exit(); err != nil {
		fatalf("failed to unlock monitor %q: %v", m.name, err)
	}
}

func fatalf(format string, args ...interface{}) {
	log.Error(format, args...)
	log.Flush()
	Exit(3)
}
