package structs

//goland:noinspection ALL
const (
	DATA_FRAME_TYPE = iota
	HEADER_FRAME_TYPE
	PRIORITY_FRAME_TYPE
	RST_STREAM_FRAME_TYPE
	SETTINGS_FRAME_TYPE
	PUSH_PROMISE_FRAME_TYPE
	PING_FRAME_TYPE
	GOAWAY_FRAME_TYPE
	WINDOW_UPDATE_FRAME_TYPE
	CONTINUATION_FRAME_TYPE
)

const (
	PADDED           = 0x08
	END_STREAM       = 0x01
	END_HEADERS      = 0x04
	HEADERS_PRIORITY = 0x20
	ACK              = 0x01
)

const (
	FRAME_HEADER_LENGTH = 9
	// HEADERS_PRIORITY carries a stream dependency and a weight.
	PRIORITY_FIELDS_LENGTH = 5
)

// Initial SETTINGS values (RFC 9113 §6.5.2).
const (
	DEFAULT_HEADER_TABLE_SIZE    = 4096
	DEFAULT_MAX_FRAME_SIZE       = 16_384
	MAX_FRAME_SIZE_LIMIT         = 1<<24 - 1
	DEFAULT_MAX_HEADER_LIST_SIZE = 8192
)

type Frame struct {
	Length   uint32
	Type     uint8
	Flags    uint8
	StreamID uint32
	Payload  []byte
}

func (f *Frame) Has(flag uint8) bool {
	return f.Flags&flag != 0
}
