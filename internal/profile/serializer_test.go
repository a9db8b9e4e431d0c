package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariusae/heapster/internal/callsite"
)

type fakeSymbolizer struct {
	info map[callsite.MethodID][2]string
	fail map[callsite.MethodID]bool
}

func (f *fakeSymbolizer) MethodInfo(id callsite.MethodID) (string, string, error) {
	if f.fail[id] {
		return "", "", errLookup
	}
	v := f.info[id]
	return v[0], v[1], nil
}

var errLookup = &lookupError{}

type lookupError struct{}

func (*lookupError) Error() string { return "lookup failed" }

func newSite(hash uint64, bytes int64, stack ...callsite.MethodID) *callsite.Site {
	return &callsite.Site{Hash: hash, NumBytes: bytes, NumAllocs: 1, Active: true, Stack: stack}
}

func TestSerializeHeaderAndBlockMarkers(t *testing.T) {
	sym := &fakeSymbolizer{info: map[callsite.MethodID][2]string{
		1: {"Lcom/example/Foo;", "bar"},
	}}
	sites := []*callsite.Site{newSite(1, 16, 1)}

	out := Serialize(sites, sym)
	s := string(out)

	require.True(t, strings.HasPrefix(s, "--- symbol\nbinary=heapster\n"))
	idx := strings.Index(s, "---\n--- profile\n")
	require.Greater(t, idx, 0)
}

func TestSerializeSkipsZeroByteSitesInSymbolBlock(t *testing.T) {
	sym := &fakeSymbolizer{info: map[callsite.MethodID][2]string{
		1: {"Lcom/example/Foo;", "bar"},
	}}
	sites := []*callsite.Site{newSite(1, 0, 1)}

	out := Serialize(sites, sym)
	assert.NotContains(t, string(out), "Foo;bar")
}

func TestSerializeSkipsFailedSymbolLookups(t *testing.T) {
	sym := &fakeSymbolizer{fail: map[callsite.MethodID]bool{1: true}}
	sites := []*callsite.Site{newSite(1, 16, 1)}

	out := Serialize(sites, sym)
	// Should not panic or abort; symbol block is simply empty of entries.
	assert.Contains(t, string(out), "--- symbol\nbinary=heapster\n---\n")
}

func TestRoundTrip(t *testing.T) {
	sym := &fakeSymbolizer{info: map[callsite.MethodID][2]string{
		1: {"Lcom/example/Foo;", "bar"},
		2: {"Lcom/example/Baz;", "qux"},
	}}
	sites := []*callsite.Site{
		newSite(1, 32, 1, 2),
		newSite(2, 64, 2),
	}

	out := Serialize(sites, sym)
	records, err := Decode(out)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(32), records[0].NumBytes)
	assert.Equal(t, []uint64{1, 2}, records[0].Stack)
	assert.Equal(t, int64(64), records[1].NumBytes)
	assert.Equal(t, []uint64{2}, records[1].Stack)
}

func TestIdempotentDump(t *testing.T) {
	sym := &fakeSymbolizer{info: map[callsite.MethodID][2]string{1: {"Lcom/example/Foo;", "bar"}}}
	sites := []*callsite.Site{newSite(1, 16, 1)}

	a := Serialize(sites, sym)
	b := Serialize(sites, sym)
	assert.Equal(t, a, b)
}

func TestNFramesZeroIsHeaderOnlyRecord(t *testing.T) {
	sym := &fakeSymbolizer{}
	sites := []*callsite.Site{newSite(1, 8)}

	out := Serialize(sites, sym)
	records, err := Decode(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(8), records[0].NumBytes)
	assert.Empty(t, records[0].Stack)
}
