package hpack

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpTwo/internal/logging"
)

type decodedField struct {
	name      string
	value     string
	sensitive bool
}

type recorder struct {
	fields []decodedField
}

func (r *recorder) AddHeader(name, value []byte, sensitive bool) {
	r.fields = append(r.fields, decodedField{string(name), string(value), sensitive})
}

func (r *recorder) reset() {
	r.fields = r.fields[:0]
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

type rfcBlock struct {
	encoded string
	fields  []decodedField
	size    int
}

// RFC 7541 Appendix C.3 to C.6. Each sequence shares one compression context.
var rfcSequences = []struct {
	name      string
	tableSize uint32
	huffman   HuffmanPolicy
	blocks    []rfcBlock
}{
	{
		name:      "C.3 requests without Huffman",
		tableSize: 4096,
		huffman:   HuffmanNever,
		blocks: []rfcBlock{
			{
				encoded: "828684410f7777772e6578616d706c652e636f6d",
				fields: []decodedField{
					{":method", "GET", false},
					{":scheme", "http", false},
					{":path", "/", false},
					{":authority", "www.example.com", false},
				},
				size: 57,
			},
			{
				encoded: "828684be58086e6f2d6361636865",
				fields: []decodedField{
					{":method", "GET", false},
					{":scheme", "http", false},
					{":path", "/", false},
					{":authority", "www.example.com", false},
					{"cache-control", "no-cache", false},
				},
				size: 110,
			},
			{
				encoded: "828785bf400a637573746f6d2d6b65790c637573746f6d2d76616c7565",
				fields: []decodedField{
					{":method", "GET", false},
					{":scheme", "https", false},
					{":path", "/index.html", false},
					{":authority", "www.example.com", false},
					{"custom-key", "custom-value", false},
				},
				size: 164,
			},
		},
	},
	{
		name:      "C.4 requests with Huffman",
		tableSize: 4096,
		huffman:   HuffmanAlways,
		blocks: []rfcBlock{
			{
				encoded: "828684418cf1e3c2e5f23a6ba0ab90f4ff",
				fields: []decodedField{
					{":method", "GET", false},
					{":scheme", "http", false},
					{":path", "/", false},
					{":authority", "www.example.com", false},
				},
				size: 57,
			},
			{
				encoded: "828684be5886a8eb10649cbf",
				fields: []decodedField{
					{":method", "GET", false},
					{":scheme", "http", false},
					{":path", "/", false},
					{":authority", "www.example.com", false},
					{"cache-control", "no-cache", false},
				},
				size: 110,
			},
			{
				encoded: "828785bf408825a849e95ba97d7f8925a849e95bb8e8b4bf",
				fields: []decodedField{
					{":method", "GET", false},
					{":scheme", "https", false},
					{":path", "/index.html", false},
					{":authority", "www.example.com", false},
					{"custom-key", "custom-value", false},
				},
				size: 164,
			},
		},
	},
	{
		name:      "C.5 responses without Huffman",
		tableSize: 256,
		huffman:   HuffmanNever,
		blocks: []rfcBlock{
			{
				encoded: "4803333032580770726976617465611d4d6f6e2c203231204f637420323031332032303a31333a323120474d546e1768747470733a2f2f7777772e6578616d706c652e636f6d",
				fields: []decodedField{
					{":status", "302", false},
					{"cache-control", "private", false},
					{"date", "Mon, 21 Oct 2013 20:13:21 GMT", false},
					{"location", "https://www.example.com", false},
				},
				size: 222,
			},
			{
				encoded: "4803333037c1c0bf",
				fields: []decodedField{
					{":status", "307", false},
					{"cache-control", "private", false},
					{"date", "Mon, 21 Oct 2013 20:13:21 GMT", false},
					{"location", "https://www.example.com", false},
				},
				size: 222,
			},
			{
				encoded: "88c1611d4d6f6e2c203231204f637420323031332032303a31333a323220474d54c05a04677a69707738666f6f3d4153444a4b48514b425a584f5157454f50495541585157454f49553b206d61782d6167653d333630303b2076657273696f6e3d31",
				fields: []decodedField{
					{":status", "200", false},
					{"cache-control", "private", false},
					{"date", "Mon, 21 Oct 2013 20:13:22 GMT", false},
					{"location", "https://www.example.com", false},
					{"content-encoding", "gzip", false},
					{"set-cookie", "foo=ASDJKHQKBZXOQWEOPIUAXQWEOIU; max-age=3600; version=1", false},
				},
				size: 215,
			},
		},
	},
	{
		name:      "C.6 responses with Huffman",
		tableSize: 256,
		huffman:   HuffmanAlways,
		blocks: []rfcBlock{
			{
				encoded: "488264025885aec3771a4b6196d07abe941054d444a8200595040b8166e082a62d1bff6e919d29ad171863c78f0b97c8e9ae82ae43d3",
				fields: []decodedField{
					{":status", "302", false},
					{"cache-control", "private", false},
					{"date", "Mon, 21 Oct 2013 20:13:21 GMT", false},
					{"location", "https://www.example.com", false},
				},
				size: 222,
			},
			{
				encoded: "4883640effc1c0bf",
				fields: []decodedField{
					{":status", "307", false},
					{"cache-control", "private", false},
					{"date", "Mon, 21 Oct 2013 20:13:21 GMT", false},
					{"location", "https://www.example.com", false},
				},
				size: 222,
			},
			{
				encoded: "88c16196d07abe941054d444a8200595040b8166e084a62d1bffc05a839bd9ab77ad94e7821dd7f2e6c7b335dfdfcd5b3960d5af27087f3672c1ab270fb5291f9587316065c003ed4ee5b1063d5007",
				fields: []decodedField{
					{":status", "200", false},
					{"cache-control", "private", false},
					{"date", "Mon, 21 Oct 2013 20:13:22 GMT", false},
					{"location", "https://www.example.com", false},
					{"content-encoding", "gzip", false},
					{"set-cookie", "foo=ASDJKHQKBZXOQWEOPIUAXQWEOIU; max-age=3600; version=1", false},
				},
				size: 215,
			},
		},
	},
}

func TestDecoderRFCExamples(t *testing.T) {
	for _, seq := range rfcSequences {
		t.Run(seq.name, func(t *testing.T) {
			dec := NewDecoder(8192, seq.tableSize)
			rec := &recorder{}

			for i, block := range seq.blocks {
				rec.reset()
				require.NoError(t, dec.Decode(mustHex(t, block.encoded), rec), "block %d", i)
				assert.False(t, dec.EndHeaderBlock())
				assert.Equal(t, block.fields, rec.fields, "block %d", i)
				assert.Equal(t, block.size, dec.TableSize(), "block %d", i)
				t.Logf("block %d: %d fields, table size %d", i, len(rec.fields), dec.TableSize())
			}
		})
	}
}

func TestDecoderDynamicTableContents(t *testing.T) {
	dec := NewDecoder(8192, 256)
	rec := &recorder{}
	for _, block := range rfcSequences[2].blocks {
		require.NoError(t, dec.Decode(mustHex(t, block.encoded), rec))
		dec.EndHeaderBlock()
	}

	want := []HeaderField{
		NewHeaderField("set-cookie", "foo=ASDJKHQKBZXOQWEOPIUAXQWEOIU; max-age=3600; version=1"),
		NewHeaderField("content-encoding", "gzip"),
		NewHeaderField("date", "Mon, 21 Oct 2013 20:13:22 GMT"),
	}
	require.Equal(t, len(want), dec.TableLength())
	for i, w := range want {
		got, err := dec.HeaderField(i)
		require.NoError(t, err)
		assert.True(t, w.Equal(got), "entry %d: %s", i, got)
	}

	_, err := dec.HeaderField(len(want))
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestDecoderByteByByte(t *testing.T) {
	for _, seq := range rfcSequences {
		t.Run(seq.name, func(t *testing.T) {
			dec := NewDecoder(8192, seq.tableSize)
			rec := &recorder{}

			for i, block := range seq.blocks {
				rec.reset()
				for _, b := range mustHex(t, block.encoded) {
					require.NoError(t, dec.Decode([]byte{b}, rec))
				}
				assert.False(t, dec.EndHeaderBlock())
				assert.Equal(t, block.fields, rec.fields, "block %d", i)
				assert.Equal(t, block.size, dec.TableSize(), "block %d", i)
			}
		})
	}
}

func TestDecoderSplitAnywhere(t *testing.T) {
	block := mustHex(t, rfcSequences[3].blocks[0].encoded)
	for split := 0; split <= len(block); split++ {
		dec := NewDecoder(8192, 256)
		rec := &recorder{}
		require.NoError(t, dec.Decode(block[:split], rec))
		require.NoError(t, dec.Decode(block[split:], rec))
		require.False(t, dec.EndHeaderBlock())
		require.Equal(t, rfcSequences[3].blocks[0].fields, rec.fields, "split at %d", split)
	}
}

func TestDecoderLiteralKinds(t *testing.T) {
	tests := []struct {
		name      string
		encoded   string
		want      decodedField
		tableSize int
	}{
		{
			name:      "literal with indexing",
			encoded:   "400a637573746f6d2d6b65790d637573746f6d2d686561646572",
			want:      decodedField{"custom-key", "custom-header", false},
			tableSize: 55,
		},
		{
			name:      "literal without indexing",
			encoded:   "040c2f73616d706c652f70617468",
			want:      decodedField{":path", "/sample/path", false},
			tableSize: 0,
		},
		{
			name:      "literal never indexed",
			encoded:   "100870617373776f726406736563726574",
			want:      decodedField{"password", "secret", true},
			tableSize: 0,
		},
		{
			name:      "indexed",
			encoded:   "82",
			want:      decodedField{":method", "GET", false},
			tableSize: 0,
		},
		{
			name:      "empty value",
			encoded:   "0f2e00",
			want:      decodedField{"www-authenticate", "", false},
			tableSize: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(8192, 4096)
			rec := &recorder{}
			require.NoError(t, dec.Decode(mustHex(t, tt.encoded), rec))
			assert.False(t, dec.EndHeaderBlock())
			require.Len(t, rec.fields, 1)
			assert.Equal(t, tt.want, rec.fields[0])
			assert.Equal(t, tt.tableSize, dec.TableSize())
		})
	}
}

func TestDecoderTruncation(t *testing.T) {
	var logs bytes.Buffer
	dec := NewDecoder(10, 4096, WithDecoderLogger(logging.NewLogger(logging.LogLevelWarn, &logs)))
	rec := &recorder{}

	block := append([]byte{0x00, 0x0b}, "abcdefghijk"...)
	block = append(block, 0x01, 'v')
	// A field that still fits is dropped as well once the block overflowed.
	block = append(block, 0x82)

	require.NoError(t, dec.Decode(block, rec))
	assert.Empty(t, rec.fields)
	assert.True(t, dec.EndHeaderBlock())
	assert.Contains(t, logs.String(), "truncated")

	// The next block starts fresh.
	require.NoError(t, dec.Decode([]byte{0x82}, rec))
	assert.False(t, dec.EndHeaderBlock())
	assert.Equal(t, []decodedField{{":method", "GET", false}}, rec.fields)
}

func TestDecoderTruncationKeepsTableInSync(t *testing.T) {
	dec := NewDecoder(10, 4096)
	rec := &recorder{}

	// Incremental indexing of a field larger than the header list limit but
	// small enough for the table: the field is dropped but still indexed.
	block := mustHex(t, "400a637573746f6d2d6b65790d637573746f6d2d686561646572")
	require.NoError(t, dec.Decode(block, rec))
	assert.True(t, dec.EndHeaderBlock())
	assert.Empty(t, rec.fields)
	assert.Equal(t, 1, dec.TableLength())
	assert.Equal(t, 55, dec.TableSize())
}

func TestDecoderOversizedIndexedLiteralClearsTable(t *testing.T) {
	dec := NewDecoder(8, 40)
	rec := &recorder{}

	require.NoError(t, dec.Decode(mustHex(t, "4001610162"), rec))
	assert.False(t, dec.EndHeaderBlock())
	assert.Equal(t, 1, dec.TableLength())

	// A 9 byte name plus overhead cannot fit a 40 byte table.
	block := append([]byte{0x40, 0x09}, "abcdefghi"...)
	block = append(block, 0x01, 'v')
	require.NoError(t, dec.Decode(block, rec))
	assert.True(t, dec.EndHeaderBlock())
	assert.Equal(t, 0, dec.TableLength())
}

func TestDecoderOversizedNeverIndexedKeepsTable(t *testing.T) {
	tests := []struct {
		name   string
		secret decodedField
	}{
		{"long value", decodedField{"x-secret", strings.Repeat("s", 9000), true}},
		{"long name", decodedField{strings.Repeat("n", 5000), "v", true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder(4096)
			dec := NewDecoder(100, 4096)
			rec := &recorder{}
			indexed := decodedField{"x-a", "1", false}

			require.NoError(t, dec.Decode(encodeBlock(t, enc, []decodedField{indexed}), rec))
			assert.False(t, dec.EndHeaderBlock())

			require.NoError(t, dec.Decode(encodeBlock(t, enc, []decodedField{tt.secret}), rec))
			assert.True(t, dec.EndHeaderBlock())
			assert.Equal(t, enc.TableLength(), dec.TableLength())
			assert.Equal(t, 1, dec.TableLength())

			block := encodeBlock(t, enc, []decodedField{indexed})
			assert.Equal(t, []byte{0xbe}, block)
			require.NoError(t, dec.Decode(block, rec))
			assert.False(t, dec.EndHeaderBlock())
			assert.Equal(t, []decodedField{indexed, indexed}, rec.fields)
		})
	}
}

func TestDecoderTableSizeUpdate(t *testing.T) {
	dec := NewDecoder(8192, 4096)
	rec := &recorder{}

	dec.SetMaxHeaderTableSize(1024)
	assert.Equal(t, 1024, dec.MaxHeaderTableSize())

	err := dec.Decode([]byte{0x82}, rec)
	assert.True(t, errors.Is(err, ErrTableSizeUpdateRequired), "%v", err)
	assert.True(t, errors.Is(err, ErrDecompression))

	dec = NewDecoder(8192, 4096)
	dec.SetMaxHeaderTableSize(1024)
	require.NoError(t, dec.Decode([]byte{0x3f, 0xe1, 0x07, 0x82}, rec))
	assert.Equal(t, 1024, dec.MaxHeaderTableSize())
	assert.Equal(t, []decodedField{{":method", "GET", false}}, rec.fields)

	// Growing beyond the allowed limit is an error.
	err = dec.Decode([]byte{0x3f, 0xe1, 0x1f}, rec)
	assert.True(t, errors.Is(err, ErrInvalidTableSize), "%v", err)
}

func TestDecoderTableSizeUpdateToZeroEvicts(t *testing.T) {
	dec := NewDecoder(8192, 4096)
	rec := &recorder{}
	require.NoError(t, dec.Decode(mustHex(t, "4001610162"), rec))
	require.Equal(t, 1, dec.TableLength())

	require.NoError(t, dec.Decode([]byte{0x20}, rec))
	assert.Equal(t, 0, dec.TableLength())
	assert.Equal(t, 0, dec.MaxHeaderTableSize())

	// Raising the limit again is allowed up to the decoder setting.
	require.NoError(t, dec.Decode([]byte{0x3f, 0xe1, 0x1f}, rec))
	assert.Equal(t, 4096, dec.MaxHeaderTableSize())
}

func TestDecoderRaisingLimitNeedsNoUpdate(t *testing.T) {
	dec := NewDecoder(8192, 1024)
	rec := &recorder{}

	dec.SetMaxHeaderTableSize(4096)
	require.NoError(t, dec.Decode([]byte{0x82}, rec))
	assert.Equal(t, 1024, dec.MaxHeaderTableSize())
}

func TestDecoderNeedsMoreData(t *testing.T) {
	dec := NewDecoder(8192, 4096)
	dec.SetMaxHeaderTableSize(1024)
	rec := &recorder{}

	require.NoError(t, dec.Decode([]byte{0x3f, 0xe1}, rec))
	assert.Equal(t, 1024, dec.MaxHeaderTableSize())
	assert.Equal(t, READ_MAX_DYNAMIC_TABLE_SIZE, dec.state)

	require.NoError(t, dec.Decode([]byte{0x07}, rec))
	assert.Equal(t, READ_HEADER_REPRESENTATION, dec.state)
	assert.Equal(t, 1024, dec.MaxHeaderTableSize())
	assert.Empty(t, dec.saved)
}

func TestDecoderIncompleteBlockIsDiscarded(t *testing.T) {
	var logs bytes.Buffer
	dec := NewDecoder(8192, 4096, WithDecoderLogger(logging.NewLogger(logging.LogLevelDebug, &logs)))
	rec := &recorder{}

	assert.False(t, dec.InRepresentation())
	require.NoError(t, dec.Decode(mustHex(t, "400a637573746f6d"), rec))
	assert.True(t, dec.InRepresentation())
	assert.False(t, dec.EndHeaderBlock())
	assert.False(t, dec.InRepresentation())
	assert.Contains(t, logs.String(), "ended inside a representation")

	require.NoError(t, dec.Decode([]byte{0x82}, rec))
	assert.Equal(t, []decodedField{{":method", "GET", false}}, rec.fields)
	assert.Equal(t, 0, dec.TableLength())
}

func TestDecoderErrors(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		err     error
	}{
		{"index zero", "80", ErrIllegalIndex},
		{"index past static table", "be", ErrIllegalIndex},
		{"literal name index past static table", "7e0161", ErrIllegalIndex},
		{"largest index", "ff80ffffff07", ErrIllegalIndex},
		{"index overflow", "ff81ffffff07", ErrIntegerOverflow},
		{"ule128 overflow", "ffffffffff0f", ErrIntegerOverflow},
		{"string length overflow", "407f81ffffff07", ErrIntegerOverflow},
		{"empty literal name", "400001", ErrEmptyName},
		{"size update above limit", "3fe21f", ErrInvalidTableSize},
		{"huffman EOS", "0084ffffffff00", ErrEOSDecoded},
		{"huffman padding", "00810000", ErrInvalidPadding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(8192, 4096)
			err := dec.Decode(mustHex(t, tt.encoded), &recorder{})
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
			assert.True(t, errors.Is(err, ErrDecompression))
		})
	}
}

func TestDecodeULE128(t *testing.T) {
	tests := []struct {
		in    []byte
		value int
		n     int
		err   error
	}{
		{[]byte{0x0a}, 10, 1, nil},
		{[]byte{0x9a, 0x0a}, 1306, 2, nil},
		{[]byte{0xe1, 0x07, 0xff}, 993, 2, nil},
		{[]byte{0x9a}, 0, 0, nil},
		{[]byte{}, 0, 0, nil},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x07}, 1<<31 - 1, 5, nil},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x08}, 0, 0, ErrIntegerOverflow},
	}

	for _, tt := range tests {
		value, n, err := decodeULE128(tt.in)
		if tt.err != nil {
			assert.True(t, errors.Is(err, tt.err), "%x", tt.in)
			continue
		}
		require.NoError(t, err, "%x", tt.in)
		assert.Equal(t, tt.value, value, "%x", tt.in)
		assert.Equal(t, tt.n, n, "%x", tt.in)
	}
}
