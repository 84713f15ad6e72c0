package hpack

import (
	"fmt"
	"math"

	"httpTwo/internal/logging"
)

// State is the position of the decoder inside the representation it is
// currently parsing.
type State int

const (
	READ_HEADER_REPRESENTATION State = iota
	READ_MAX_DYNAMIC_TABLE_SIZE
	READ_INDEXED_HEADER
	READ_INDEXED_HEADER_NAME
	READ_LITERAL_HEADER_NAME_LENGTH_PREFIX
	READ_LITERAL_HEADER_NAME_LENGTH
	READ_LITERAL_HEADER_NAME
	SKIP_LITERAL_HEADER_NAME
	READ_LITERAL_HEADER_VALUE_LENGTH_PREFIX
	READ_LITERAL_HEADER_VALUE_LENGTH
	READ_LITERAL_HEADER_VALUE
	SKIP_LITERAL_HEADER_VALUE
)

// IndexType says what a literal representation does to the dynamic table.
type IndexType int

const (
	IndexNone IndexType = iota
	IndexIncremental
	IndexNever
)

// HeaderSink receives decoded header fields in order. The slices may be
// shared with the dynamic table and must not be modified or retained past
// the call without copying.
type HeaderSink interface {
	AddHeader(name, value []byte, sensitive bool)
}

// EmitFunc adapts a function to a HeaderSink.
type EmitFunc func(name, value []byte, sensitive bool)

func (f EmitFunc) AddHeader(name, value []byte, sensitive bool) {
	f(name, value, sensitive)
}

// field is the representation in progress between two calls of Decode.
type field struct {
	indexType      IndexType
	huffmanEncoded bool
	// prefix holds the value of an integer prefix until its continuation
	// octets have been read.
	prefix      int
	nameLength  int
	valueLength int
	skipLength  int
	name        []byte
}

// Decoder turns header blocks into header fields. It keeps the dynamic table
// of one connection and is not safe for concurrent use.
type Decoder struct {
	dynamicTable *DynamicTable

	maxHeaderSize                     int64
	maxDynamicTableSize               int
	encoderMaxDynamicTableSize        int
	maxDynamicTableSizeChangeRequired bool

	headerSize int64
	state      State
	field      field

	// saved holds the tail of the input that did not yet form a complete
	// integer or string literal.
	saved []byte

	logger logging.Logger
}

type DecoderOption func(*Decoder)

func WithDecoderLogger(logger logging.Logger) DecoderOption {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDecoder(maxHeaderSize, maxHeaderTableSize uint32, opts ...DecoderOption) *Decoder {
	tableSize := clampTableSize(maxHeaderTableSize)

	dec := &Decoder{
		dynamicTable:               newDynamicTable(tableSize),
		maxHeaderSize:              int64(maxHeaderSize),
		maxDynamicTableSize:        tableSize,
		encoderMaxDynamicTableSize: tableSize,
		logger:                     logging.Discard,
	}
	for _, opt := range opts {
		opt(dec)
	}
	dec.reset()

	return dec
}

func clampTableSize(size uint32) int {
	if uint64(size) > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(size)
}

func (dec *Decoder) reset() {
	dec.headerSize = 0
	dec.state = READ_HEADER_REPRESENTATION
	dec.field = field{}
	dec.saved = dec.saved[:0]
}

// Decode consumes the next fragment of a header block and hands every
// complete header field to sink. Bytes of an integer or string literal that
// is not complete yet are kept and joined with the next fragment.
//
// An error is fatal for the connection.
func (dec *Decoder) Decode(p []byte, sink HeaderSink) error {
	in := p
	if len(dec.saved) > 0 {
		dec.saved = append(dec.saved, p...)
		in = dec.saved
	}

	n, err := dec.decode(in, sink)
	if err != nil {
		dec.saved = dec.saved[:0]
		return err
	}

	dec.saved = append(dec.saved[:0], in[n:]...)
	return nil
}

func (dec *Decoder) decode(in []byte, sink HeaderSink) (int, error) {
	pos := 0
	f := &dec.field

	for pos < len(in) {
		switch dec.state {
		case READ_HEADER_REPRESENTATION:
			b := in[pos]
			pos++
			if dec.maxDynamicTableSizeChangeRequired && b&0xE0 != 0x20 {
				// The encoder must acknowledge a lowered limit first.
				return pos, ErrTableSizeUpdateRequired
			}

			switch {
			case b&0x80 == 0x80:
				// Indexed Header Field
				f.prefix = int(b & 0x7F)
				switch f.prefix {
				case 0:
					return pos, fmt.Errorf("%w (%d)", ErrIllegalIndex, f.prefix)
				case 0x7F:
					dec.state = READ_INDEXED_HEADER
				default:
					if err := dec.indexHeader(f.prefix, sink); err != nil {
						return pos, err
					}
				}

			case b&0x40 == 0x40:
				// Literal Header Field with Incremental Indexing
				f.indexType = IndexIncremental
				if err := dec.literalPrefix(int(b&0x3F), 0x3F); err != nil {
					return pos, err
				}

			case b&0x20 == 0x20:
				// Dynamic Table Size Update
				f.prefix = int(b & 0x1F)
				if f.prefix == 0x1F {
					dec.state = READ_MAX_DYNAMIC_TABLE_SIZE
				} else if err := dec.setDynamicTableSize(f.prefix); err != nil {
					return pos, err
				}

			default:
				// Literal Header Field without Indexing / never Indexed
				f.indexType = IndexNone
				if b&0x10 == 0x10 {
					f.indexType = IndexNever
				}
				if err := dec.literalPrefix(int(b&0x0F), 0x0F); err != nil {
					return pos, err
				}
			}

		case READ_MAX_DYNAMIC_TABLE_SIZE:
			maxSize, n, err := dec.continueInteger(in[pos:])
			if err != nil || n == 0 {
				return pos, err
			}
			pos += n
			if err := dec.setDynamicTableSize(f.prefix + maxSize); err != nil {
				return pos, err
			}
			dec.state = READ_HEADER_REPRESENTATION

		case READ_INDEXED_HEADER:
			headerIndex, n, err := dec.continueInteger(in[pos:])
			if err != nil || n == 0 {
				return pos, err
			}
			pos += n
			if err := dec.indexHeader(f.prefix+headerIndex, sink); err != nil {
				return pos, err
			}
			dec.state = READ_HEADER_REPRESENTATION

		case READ_INDEXED_HEADER_NAME:
			nameIndex, n, err := dec.continueInteger(in[pos:])
			if err != nil || n == 0 {
				return pos, err
			}
			pos += n
			if err := dec.readName(f.prefix + nameIndex); err != nil {
				return pos, err
			}
			dec.state = READ_LITERAL_HEADER_VALUE_LENGTH_PREFIX

		case READ_LITERAL_HEADER_NAME_LENGTH_PREFIX:
			b := in[pos]
			pos++
			f.huffmanEncoded = b&0x80 == 0x80
			f.prefix = int(b & 0x7F)
			if f.prefix == 0x7F {
				dec.state = READ_LITERAL_HEADER_NAME_LENGTH
				break
			}
			f.nameLength = f.prefix
			// Empty names cannot be represented in HTTP/1.x.
			if f.nameLength == 0 {
				return pos, ErrEmptyName
			}
			dec.checkNameLength()

		case READ_LITERAL_HEADER_NAME_LENGTH:
			nameLength, n, err := dec.continueInteger(in[pos:])
			if err != nil || n == 0 {
				return pos, err
			}
			pos += n
			f.nameLength = f.prefix + nameLength
			dec.checkNameLength()

		case READ_LITERAL_HEADER_NAME:
			if len(in)-pos < f.nameLength {
				return pos, nil
			}
			name, err := dec.readStringLiteral(in[pos : pos+f.nameLength])
			if err != nil {
				return pos, err
			}
			pos += f.nameLength
			f.name = name
			dec.state = READ_LITERAL_HEADER_VALUE_LENGTH_PREFIX

		case SKIP_LITERAL_HEADER_NAME:
			n := min(f.skipLength, len(in)-pos)
			pos += n
			f.skipLength -= n
			if f.skipLength == 0 {
				dec.state = READ_LITERAL_HEADER_VALUE_LENGTH_PREFIX
			}

		case READ_LITERAL_HEADER_VALUE_LENGTH_PREFIX:
			b := in[pos]
			pos++
			f.huffmanEncoded = b&0x80 == 0x80
			f.prefix = int(b & 0x7F)
			if f.prefix == 0x7F {
				dec.state = READ_LITERAL_HEADER_VALUE_LENGTH
				break
			}
			f.valueLength = f.prefix
			if !dec.checkValueLength() {
				break
			}
			if f.valueLength == 0 {
				if err := dec.insertHeader(sink, f.name, nil, f.indexType); err != nil {
					return pos, err
				}
				dec.state = READ_HEADER_REPRESENTATION
			} else {
				dec.state = READ_LITERAL_HEADER_VALUE
			}

		case READ_LITERAL_HEADER_VALUE_LENGTH:
			valueLength, n, err := dec.continueInteger(in[pos:])
			if err != nil || n == 0 {
				return pos, err
			}
			pos += n
			f.valueLength = f.prefix + valueLength
			if dec.checkValueLength() {
				dec.state = READ_LITERAL_HEADER_VALUE
			}

		case READ_LITERAL_HEADER_VALUE:
			if len(in)-pos < f.valueLength {
				return pos, nil
			}
			value, err := dec.readStringLiteral(in[pos : pos+f.valueLength])
			if err != nil {
				return pos, err
			}
			pos += f.valueLength
			if err := dec.insertHeader(sink, f.name, value, f.indexType); err != nil {
				return pos, err
			}
			dec.state = READ_HEADER_REPRESENTATION

		case SKIP_LITERAL_HEADER_VALUE:
			n := min(f.valueLength, len(in)-pos)
			pos += n
			f.valueLength -= n
			if f.valueLength == 0 {
				dec.state = READ_HEADER_REPRESENTATION
			}

		default:
			return pos, fmt.Errorf("%w: unknown decoder state %d", ErrDecompression, dec.state)
		}
	}

	return pos, nil
}

// literalPrefix dispatches on the name index carried in the first octet of a
// literal representation.
func (dec *Decoder) literalPrefix(index, max int) error {
	dec.field.prefix = index
	switch index {
	case 0:
		dec.state = READ_LITERAL_HEADER_NAME_LENGTH_PREFIX
	case max:
		dec.state = READ_INDEXED_HEADER_NAME
	default:
		if err := dec.readName(index); err != nil {
			return err
		}
		dec.state = READ_LITERAL_HEADER_VALUE_LENGTH_PREFIX
	}
	return nil
}

// checkNameLength picks between reading and skipping a literal name. A name
// that cannot be kept is still consumed so the decoder stays aligned with the
// encoder.
func (dec *Decoder) checkNameLength() {
	f := &dec.field
	dec.state = READ_LITERAL_HEADER_NAME
	if !dec.exceedsMaxHeaderSize(int64(f.nameLength)) {
		return
	}

	// Only an incremental literal reaches the dynamic table, so only it
	// clears the table when it cannot be kept.
	if f.indexType != IndexIncremental {
		// Name is unused so skip bytes
		f.name = nil
		f.skipLength = f.nameLength
		dec.state = SKIP_LITERAL_HEADER_NAME
		return
	}

	if f.nameLength+HEADER_ENTRY_OVERHEAD > dec.dynamicTable.Capacity() {
		dec.dynamicTable.Clear()
		f.name = nil
		f.skipLength = f.nameLength
		dec.state = SKIP_LITERAL_HEADER_NAME
	}
}

// checkValueLength reports whether the value has to be read. Otherwise the
// state has been moved to skipping it.
func (dec *Decoder) checkValueLength() bool {
	f := &dec.field
	newHeaderSize := int64(f.nameLength) + int64(f.valueLength)
	if !dec.exceedsMaxHeaderSize(newHeaderSize) {
		return true
	}

	if f.indexType != IndexIncremental {
		// Value is unused so skip bytes
		dec.skipValue()
		return false
	}

	if newHeaderSize+HEADER_ENTRY_OVERHEAD > int64(dec.dynamicTable.Capacity()) {
		dec.dynamicTable.Clear()
		dec.skipValue()
		return false
	}

	return true
}

func (dec *Decoder) skipValue() {
	dec.state = SKIP_LITERAL_HEADER_VALUE
	if dec.field.valueLength == 0 {
		dec.state = READ_HEADER_REPRESENTATION
	}
}

// continueInteger reads the continuation octets of a prefixed integer whose
// prefix is in field.prefix. n is zero when in does not hold the whole
// integer yet.
func (dec *Decoder) continueInteger(in []byte) (int, int, error) {
	value, n, err := decodeULE128(in)
	if err != nil || n == 0 {
		return 0, n, err
	}
	// The bound is tied to the prefix, which is at most 0x7F.
	if value > math.MaxInt32-dec.field.prefix {
		return 0, 0, ErrIntegerOverflow
	}
	return value, n, nil
}

// decodeULE128 decodes an unsigned little endian base 128 integer. n is zero
// when in ends before the last octet of the integer.
func decodeULE128(in []byte) (value int, n int, err error) {
	result := 0
	shift := 0
	for i, b := range in {
		if shift == 28 && b&0xF8 != 0 {
			// Value exceeds math.MaxInt32
			return 0, 0, ErrIntegerOverflow
		}
		result |= int(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, nil
}

// EndHeaderBlock finishes the current header block and reports whether any
// header field was dropped because the block exceeded the max header size.
// It must be called once after every header block.
func (dec *Decoder) EndHeaderBlock() bool {
	truncated := dec.headerSize > dec.maxHeaderSize
	if truncated {
		dec.logger.Log(logging.LogLevelWarn, "hpack: header block truncated, max header size %d", dec.maxHeaderSize)
	}
	if dec.InRepresentation() {
		dec.logger.Log(logging.LogLevelWarn, "hpack: header block ended inside a representation (state %d, %d bytes pending)", dec.state, len(dec.saved))
	}
	dec.reset()
	return truncated
}

// InRepresentation reports whether the input so far stops inside a header
// representation. Ending the block now would discard it.
func (dec *Decoder) InRepresentation() bool {
	return dec.state != READ_HEADER_REPRESENTATION || len(dec.saved) > 0
}

// SetMaxHeaderTableSize sets the table size the decoder allows. When it is
// below what the encoder uses, the next header block must start with a
// dynamic table size update.
func (dec *Decoder) SetMaxHeaderTableSize(maxHeaderTableSize uint32) {
	dec.maxDynamicTableSize = clampTableSize(maxHeaderTableSize)
	if dec.maxDynamicTableSize < dec.encoderMaxDynamicTableSize {
		dec.maxDynamicTableSizeChangeRequired = true
		dec.dynamicTable.setCapacity(dec.maxDynamicTableSize)
	}
}

// MaxHeaderTableSize returns the capacity of the dynamic table, which is the
// size both sides currently agree on.
func (dec *Decoder) MaxHeaderTableSize() int {
	return dec.dynamicTable.Capacity()
}

func (dec *Decoder) TableLength() int {
	return dec.dynamicTable.Length()
}

func (dec *Decoder) TableSize() int {
	return dec.dynamicTable.Size()
}

// HeaderField returns the dynamic table entry at index, 0 being the newest.
func (dec *Decoder) HeaderField(index int) (HeaderField, error) {
	return dec.dynamicTable.GetEntry(index + 1)
}

func (dec *Decoder) setDynamicTableSize(dynamicTableSize int) error {
	if dynamicTableSize > dec.maxDynamicTableSize {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidTableSize, dynamicTableSize, dec.maxDynamicTableSize)
	}
	dec.logger.Log(logging.LogLevelDebug, "hpack: dynamic table size update %d -> %d", dec.encoderMaxDynamicTableSize, dynamicTableSize)
	dec.encoderMaxDynamicTableSize = dynamicTableSize
	dec.maxDynamicTableSizeChangeRequired = false
	dec.dynamicTable.setCapacity(dynamicTableSize)
	return nil
}

// entry resolves index against the static table, then the dynamic table.
func (dec *Decoder) entry(index int) (HeaderField, error) {
	if index <= STATIC_TABLE_SIZE {
		return staticTable[index], nil
	}
	if index-STATIC_TABLE_SIZE <= dec.dynamicTable.Length() {
		return dec.dynamicTable.GetEntry(index - STATIC_TABLE_SIZE)
	}
	return HeaderField{}, fmt.Errorf("%w (%d)", ErrIllegalIndex, index)
}

func (dec *Decoder) readName(index int) error {
	headerField, err := dec.entry(index)
	if err != nil {
		return err
	}
	dec.field.name = headerField.Name
	dec.field.nameLength = len(headerField.Name)
	return nil
}

// indexHeader emits the field an indexed representation refers to.
func (dec *Decoder) indexHeader(index int, sink HeaderSink) error {
	headerField, err := dec.entry(index)
	if err != nil {
		return err
	}
	return dec.addHeader(sink, headerField.Name, headerField.Value, false)
}

func (dec *Decoder) insertHeader(sink HeaderSink, name, value []byte, indexType IndexType) error {
	if err := dec.addHeader(sink, name, value, indexType == IndexNever); err != nil {
		return err
	}

	if indexType == IndexIncremental {
		dec.dynamicTable.Add(HeaderField{Name: name, Value: value})
	}
	return nil
}

func (dec *Decoder) addHeader(sink HeaderSink, name, value []byte, sensitive bool) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: name is empty", ErrArgument)
	}

	newSize := dec.headerSize + int64(len(name)) + int64(len(value))
	if newSize <= dec.maxHeaderSize {
		sink.AddHeader(name, value, sensitive)
		dec.headerSize = newSize
	} else {
		// truncation will be reported during EndHeaderBlock
		dec.headerSize = dec.maxHeaderSize + 1
	}
	return nil
}

func (dec *Decoder) exceedsMaxHeaderSize(size int64) bool {
	if size+dec.headerSize <= dec.maxHeaderSize {
		return false
	}

	// truncation will be reported during EndHeaderBlock
	dec.headerSize = dec.maxHeaderSize + 1
	return true
}

func (dec *Decoder) readStringLiteral(buf []byte) ([]byte, error) {
	if dec.field.huffmanEncoded {
		return HuffmanDecode(buf)
	}
	literal := make([]byte, len(buf))
	copy(literal, buf)
	return literal, nil
}
