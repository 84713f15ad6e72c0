package hpack

import (
	"fmt"
	"io"

	"httpTwo/internal/logging"
)

const DefaultMaxDynamicTableSize = 4096

// HuffmanPolicy decides when string literals are Huffman coded.
type HuffmanPolicy int

const (
	// HuffmanAuto codes a literal only when that makes it strictly shorter.
	HuffmanAuto HuffmanPolicy = iota
	HuffmanAlways
	HuffmanNever
)

type fieldKey struct {
	name  string
	value string
}

// Encoder turns header fields into a header block. It mirrors the dynamic
// table the peer's decoder builds and is not safe for concurrent use.
//
// Entries are numbered by insertion sequence. The newest entry has sequence
// inserted-1, so the dynamic index of sequence s is inserted-s.
type Encoder struct {
	dynamicTable *DynamicTable
	inserted     uint64

	// byName holds the sequences of the live entries with a name, oldest
	// first. byField holds the newest sequence of each name/value pair.
	byName  map[string][]uint64
	byField map[fieldKey]uint64

	useIndexing bool
	huffman     HuffmanPolicy

	buf    []byte
	logger logging.Logger
}

type EncoderOption func(*Encoder)

// WithIndexing controls whether literals are added to the dynamic table.
func WithIndexing(useIndexing bool) EncoderOption {
	return func(e *Encoder) {
		e.useIndexing = useIndexing
	}
}

func WithHuffman(policy HuffmanPolicy) EncoderOption {
	return func(e *Encoder) {
		e.huffman = policy
	}
}

func WithEncoderLogger(logger logging.Logger) EncoderOption {
	return func(e *Encoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEncoder(maxHeaderTableSize uint32, opts ...EncoderOption) *Encoder {
	enc := &Encoder{
		dynamicTable: newDynamicTable(clampTableSize(maxHeaderTableSize)),
		byName:       make(map[string][]uint64),
		byField:      make(map[fieldKey]uint64),
		useIndexing:  true,
		huffman:      HuffmanAuto,
		logger:       logging.Discard,
	}
	for _, opt := range opts {
		opt(enc)
	}

	return enc
}

// EncodeHeader writes the most compact representation of the field to w.
// Sensitive fields are sent as never indexed literals and never enter the
// dynamic table.
func (enc *Encoder) EncodeHeader(w io.Writer, name, value []byte, sensitive bool) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: name is empty", ErrArgument)
	}

	enc.buf = enc.appendHeader(enc.buf[:0], name, value, sensitive)
	_, err := w.Write(enc.buf)
	if err != nil {
		return fmt.Errorf("cannot write header field: %w", err)
	}
	return nil
}

func (enc *Encoder) EncodeHeaderString(w io.Writer, name, value string, sensitive bool) error {
	return enc.EncodeHeader(w, []byte(name), []byte(value), sensitive)
}

func (enc *Encoder) appendHeader(dst, name, value []byte, sensitive bool) []byte {
	if sensitive {
		nameIndex := enc.nameIndex(name)
		return enc.appendLiteral(dst, name, value, IndexNever, nameIndex)
	}

	// The peer only uses the static table.
	if enc.dynamicTable.Capacity() == 0 {
		if staticTableIndex, ok := StaticIndexOf(name, value); ok {
			return appendInteger(dst, 0x80, 7, staticTableIndex)
		}
		nameIndex, _ := StaticIndex(name)
		return enc.appendLiteral(dst, name, value, IndexNone, nameIndex)
	}

	headerSize := SizeOf(name, value)

	// A field larger than the table can never be indexed.
	if headerSize > enc.dynamicTable.Capacity() {
		nameIndex := enc.nameIndex(name)
		return enc.appendLiteral(dst, name, value, IndexNone, nameIndex)
	}

	if index, ok := enc.dynamicIndexOf(name, value); ok {
		// Section 6.1. Indexed Header Field Representation
		return appendInteger(dst, 0x80, 7, index+STATIC_TABLE_SIZE)
	}

	if staticTableIndex, ok := StaticIndexOf(name, value); ok {
		return appendInteger(dst, 0x80, 7, staticTableIndex)
	}

	nameIndex := enc.nameIndex(name)
	if !enc.useIndexing {
		return enc.appendLiteral(dst, name, value, IndexNone, nameIndex)
	}

	enc.ensureCapacity(headerSize)
	dst = enc.appendLiteral(dst, name, value, IndexIncremental, nameIndex)
	enc.add(name, value)
	return dst
}

// SetMaxHeaderTableSize changes the size of the dynamic table and writes the
// dynamic table size update that tells the peer about it.
func (enc *Encoder) SetMaxHeaderTableSize(w io.Writer, maxHeaderTableSize uint32) error {
	capacity := clampTableSize(maxHeaderTableSize)
	if enc.dynamicTable.Capacity() == capacity {
		return nil
	}

	enc.logger.Log(logging.LogLevelDebug, "hpack: encoder table size %d -> %d", enc.dynamicTable.Capacity(), capacity)
	enc.evictUntil(capacity)
	enc.dynamicTable.setCapacity(capacity)

	enc.buf = appendInteger(enc.buf[:0], 0x20, 5, capacity)
	if _, err := w.Write(enc.buf); err != nil {
		return fmt.Errorf("cannot write dynamic table size update: %w", err)
	}
	return nil
}

func (enc *Encoder) MaxHeaderTableSize() int {
	return enc.dynamicTable.Capacity()
}

func (enc *Encoder) TableLength() int {
	return enc.dynamicTable.Length()
}

func (enc *Encoder) TableSize() int {
	return enc.dynamicTable.Size()
}

// HeaderField returns the dynamic table entry at index, 0 being the newest.
func (enc *Encoder) HeaderField(index int) (HeaderField, error) {
	return enc.dynamicTable.GetEntry(index + 1)
}

// appendInteger encodes i with an n-bit prefix (Section 5.1). mask holds the
// representation bits above the prefix.
func appendInteger(dst []byte, mask byte, n uint, i int) []byte {
	nbits := 1<<n - 1
	if i < nbits {
		return append(dst, mask|byte(i))
	}

	dst = append(dst, mask|byte(nbits))
	length := i - nbits
	for length&^0x7F != 0 {
		dst = append(dst, byte(length&0x7F|0x80))
		length >>= 7
	}
	return append(dst, byte(length))
}

// appendStringLiteral encodes a string literal (Section 5.2).
func (enc *Encoder) appendStringLiteral(dst, stringLiteral []byte) []byte {
	huffmanLength := HuffmanEncodedLength(stringLiteral)
	useHuffman := enc.huffman == HuffmanAlways ||
		(enc.huffman == HuffmanAuto && huffmanLength < len(stringLiteral))

	if useHuffman {
		dst = appendInteger(dst, 0x80, 7, huffmanLength)
		return AppendHuffman(dst, stringLiteral)
	}
	dst = appendInteger(dst, 0x00, 7, len(stringLiteral))
	return append(dst, stringLiteral...)
}

// appendLiteral encodes a literal header field (Section 6.2). A nameIndex of
// 0 sends the name as a string literal.
func (enc *Encoder) appendLiteral(dst, name, value []byte, indexType IndexType, nameIndex int) []byte {
	var mask byte
	var prefixBits uint
	switch indexType {
	case IndexIncremental:
		mask, prefixBits = 0x40, 6
	case IndexNever:
		mask, prefixBits = 0x10, 4
	default:
		mask, prefixBits = 0x00, 4
	}

	dst = appendInteger(dst, mask, prefixBits, nameIndex)
	if nameIndex == 0 {
		dst = enc.appendStringLiteral(dst, name)
	}
	return enc.appendStringLiteral(dst, value)
}

// nameIndex returns the lowest index carrying name, static table first, or
// 0 when neither table has it.
func (enc *Encoder) nameIndex(name []byte) int {
	if index, ok := StaticIndex(name); ok {
		return index
	}
	if seqs := enc.byName[string(name)]; len(seqs) > 0 {
		return enc.dynamicIndex(seqs[len(seqs)-1]) + STATIC_TABLE_SIZE
	}
	return 0
}

func (enc *Encoder) dynamicIndexOf(name, value []byte) (int, bool) {
	seq, ok := enc.byField[fieldKey{name: string(name), value: string(value)}]
	if !ok {
		return 0, false
	}
	return enc.dynamicIndex(seq), true
}

func (enc *Encoder) dynamicIndex(seq uint64) int {
	return int(enc.inserted - seq)
}

// ensureCapacity evicts the oldest entries until headerSize more bytes fit.
func (enc *Encoder) ensureCapacity(headerSize int) {
	enc.evictUntil(enc.dynamicTable.Capacity() - headerSize)
}

func (enc *Encoder) evictUntil(size int) {
	for enc.dynamicTable.Size() > size {
		if !enc.remove() {
			return
		}
	}
}

func (enc *Encoder) add(name, value []byte) {
	// Copy so later changes to the caller's slices do not reach the table.
	headerField := HeaderField{
		Name:  append([]byte(nil), name...),
		Value: append([]byte(nil), value...),
	}
	enc.dynamicTable.Add(headerField)

	seq := enc.inserted
	enc.inserted++
	nameKey := string(headerField.Name)
	enc.byName[nameKey] = append(enc.byName[nameKey], seq)
	enc.byField[fieldKey{name: nameKey, value: string(headerField.Value)}] = seq
}

// remove evicts the oldest entry and drops it from the indexes. Eviction is
// FIFO, so the evicted sequence is always the first one recorded for its name.
func (enc *Encoder) remove() bool {
	seq := enc.inserted - uint64(enc.dynamicTable.Length())
	eldest, ok := enc.dynamicTable.Remove()
	if !ok {
		return false
	}

	nameKey := string(eldest.Name)
	seqs := enc.byName[nameKey]
	if len(seqs) > 0 && seqs[0] == seq {
		seqs = seqs[1:]
	}
	if len(seqs) == 0 {
		delete(enc.byName, nameKey)
	} else {
		enc.byName[nameKey] = seqs
	}

	key := fieldKey{name: nameKey, value: string(eldest.Value)}
	if enc.byField[key] == seq {
		delete(enc.byField, key)
	}
	return true
}
