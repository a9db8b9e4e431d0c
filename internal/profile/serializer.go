// Package profile serializes the call-site table into the binary format
// described by spec.md §4.8: a text "symbol" block mapping method
// identifiers to human-readable signatures, followed by a binary
// "profile" block compatible with a well-known external analysis
// tool's legacy heap-profile format. The format is host-byte-order
// little-endian only; there is no cross-architecture byte-swap step.
package profile

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mariusae/heapster/internal/callsite"
)

// WordSize is the width, in bytes, of every binary field in the profile
// block. It is always 8: fields are written as 64-bit words whatever the
// host's pointer width, so 32-bit hosts get no 4-byte layout.
const WordSize = 8

// header is the fixed 5-word block the external analysis tool expects
// at the start of every heap-profile record stream.
var header = [5]uint64{0, 3, 0, 1, 0}

// Symbolizer resolves a method identifier to its declaring class's JVM
// signature and method name, as Host.MethodInfo does.
type Symbolizer interface {
	MethodInfo(id callsite.MethodID) (classSignature, methodName string, err error)
}

// Serialize produces the full profile byte string for the given sites,
// in the order they are provided. The symbol block only documents
// methods appearing in sites with positive live bytes; the profile
// block includes every site regardless of live bytes, per spec.md §4.8.
func Serialize(sites []*callsite.Site, sym Symbolizer) []byte {
	var buf bytes.Buffer

	writeSymbolBlock(&buf, sites, sym)
	writeProfileBlock(&buf, sites)

	return buf.Bytes()
}

func writeSymbolBlock(buf *bytes.Buffer, sites []*callsite.Site, sym Symbolizer) {
	buf.WriteString("--- symbol\n")
	buf.WriteString("binary=heapster\n")

	seen := make(map[callsite.MethodID]bool)
	for _, s := range sites {
		if s.NumBytes <= 0 {
			continue
		}
		for _, m := range s.Stack {
			if seen[m] {
				continue
			}
			seen[m] = true

			classSig, methodName, err := sym.MethodInfo(m)
			if err != nil {
				// Symbol lookup failure for an individual frame: skip
				// that line without aborting the dump.
				continue
			}
			fmt.Fprintf(buf, "0x%016x %s%s\n", uint64(m), classSig, methodName)
		}
	}

	buf.WriteString("---\n")
}

func writeProfileBlock(buf *bytes.Buffer, sites []*callsite.Site) {
	buf.WriteString("--- profile\n")

	var word [WordSize]byte
	putWord := func(v uint64) {
		binary.LittleEndian.PutUint64(word[:], v)
		buf.Write(word[:])
	}

	for _, h := range header {
		putWord(h)
	}

	for _, s := range sites {
		putWord(uint64(s.NumBytes))
		putWord(uint64(len(s.Stack)))
		for _, m := range s.Stack {
			putWord(uint64(m))
		}
	}
}
