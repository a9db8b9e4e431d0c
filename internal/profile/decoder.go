package profile

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Record is one decoded entry from a profile block: the live byte count,
// frame count and method-identifier stack of a single call site.
type Record struct {
	NumBytes int64
	Stack    []uint64
}

// ErrMalformed is returned by Decode when the input does not begin with
// the expected symbol/profile block markers.
var ErrMalformed = errors.New("profile: malformed input")

// Decode parses a profile emitted by Serialize back into its constituent
// records, used by this module's own round-trip tests (scenario S4/S5 of
// spec.md §8). It does not attempt to resolve symbol lines to anything
// beyond skipping past the symbol block.
func Decode(data []byte) ([]Record, error) {
	const symbolHeader = "--- symbol\n"
	if !bytes.HasPrefix(data, []byte(symbolHeader)) {
		return nil, ErrMalformed
	}
	data = data[len(symbolHeader):]

	end := bytes.Index(data, []byte("---\n"))
	if end < 0 {
		return nil, ErrMalformed
	}
	data = data[end+len("---\n"):]

	const profileHeader = "--- profile\n"
	if !bytes.HasPrefix(data, []byte(profileHeader)) {
		return nil, ErrMalformed
	}
	data = data[len(profileHeader):]

	readWord := func() (uint64, bool) {
		if len(data) < WordSize {
			return 0, false
		}
		v := binary.LittleEndian.Uint64(data[:WordSize])
		data = data[WordSize:]
		return v, true
	}

	for i := 0; i < len(header); i++ {
		v, ok := readWord()
		if !ok || v != header[i] {
			return nil, ErrMalformed
		}
	}

	var records []Record
	for len(data) > 0 {
		numBytes, ok := readWord()
		if !ok {
			return nil, ErrMalformed
		}
		nframes, ok := readWord()
		if !ok {
			return nil, ErrMalformed
		}
		stack := make([]uint64, nframes)
		for i := range stack {
			v, ok := readWord()
			if !ok {
				return nil, ErrMalformed
			}
			stack[i] = v
		}
		records = append(records, Record{NumBytes: int64(numBytes), Stack: stack})
	}

	return records, nil
}
