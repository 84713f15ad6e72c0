package hpack

import (
	"bytes"
	"fmt"
)

// HEADER_ENTRY_OVERHEAD is the per-entry bookkeeping cost added to the
// name and value lengths when sizing the dynamic table (RFC 7541 §4.1).
const HEADER_ENTRY_OVERHEAD = 32

// HeaderField is an immutable name/value pair. The slices are shared with
// the tables and must not be modified.
type HeaderField struct {
	Name  []byte
	Value []byte
}

func NewHeaderField(name string, value string) HeaderField {
	return HeaderField{
		Name:  []byte(name),
		Value: []byte(value),
	}
}

// SizeOf returns the table size a field with this name and value occupies.
func SizeOf(name, value []byte) int {
	return len(name) + len(value) + HEADER_ENTRY_OVERHEAD
}

func (hf HeaderField) Size() int {
	return SizeOf(hf.Name, hf.Value)
}

// Compare orders fields byte-lexicographically by name, then by value.
func (hf HeaderField) Compare(other HeaderField) int {
	if c := bytes.Compare(hf.Name, other.Name); c != 0 {
		return c
	}
	return bytes.Compare(hf.Value, other.Value)
}

func (hf HeaderField) Equal(other HeaderField) bool {
	return bytes.Equal(hf.Name, other.Name) && bytes.Equal(hf.Value, other.Value)
}

func (hf HeaderField) String() string {
	return fmt.Sprintf("%s: %s", hf.Name, hf.Value)
}
