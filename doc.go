// Package heapster implements an in-process sampling heap profiler for
// a managed, JVM-like runtime. It statistically samples object and
// array allocations using a tcmalloc-style geometric byte sampler,
// aggregates sampled allocations by call stack in a fixed-size hash
// table, and can serialize a snapshot of that table into a legacy
// pprof-compatible heap profile — either on demand or automatically
// when the host VM shuts down.
//
// A host binding supplies the managed-runtime primitives (object
// tagging, stack capture, bytecode rewriting, raw monitors) through the
// hostvm.Host and hostvm.Transform interfaces; this package contains no
// runtime-specific code of its own. Call Start with WithHost and
// WithTransform to begin profiling, and Stop to tear the agent down:
//
//	err := heapster.Start(
//		heapster.WithHost(host),
//		heapster.WithTransform(transform),
//		heapster.WithProfilePath("/tmp/heap.prof"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer heapster.Stop()
package heapster
