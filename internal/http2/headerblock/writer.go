package headerblock

import (
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"

	"httpTwo/internal/hpack"
	"httpTwo/internal/http2/frame"
	"httpTwo/internal/http2/settings"
	"httpTwo/internal/http2/structs"
)

// Writer encodes header lists with the connection's encoder and frames them.
// It is not safe for concurrent use.
type Writer struct {
	enc          *hpack.Encoder
	maxFrameSize int

	// tableSizeLimit is the largest dynamic table the encoder will use, even
	// when the peer allows more. pendingTableSize is the peer's latest
	// SETTINGS_HEADER_TABLE_SIZE not yet signalled in a header block and
	// minTableSize the smallest one received since the last block.
	tableSizeLimit   uint32
	pendingTableSize *uint32
	minTableSize     uint32
}

func NewWriter(enc *hpack.Encoder, maxFrameSize int) (*Writer, error) {
	if maxFrameSize < structs.DEFAULT_MAX_FRAME_SIZE || maxFrameSize > structs.MAX_FRAME_SIZE_LIMIT {
		return nil, fmt.Errorf("invalid max frame size: %d", maxFrameSize)
	}
	return &Writer{
		enc:            enc,
		maxFrameSize:   maxFrameSize,
		tableSizeLimit: uint32(enc.MaxHeaderTableSize()),
	}, nil
}

// ApplySettings takes the parameters of a SETTINGS frame received from the
// peer. A new header table size reaches the encoder at the start of the next
// header block.
func (w *Writer) ApplySettings(f *structs.Frame) error {
	params, err := settings.Parse(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	for _, p := range params {
		switch p.ID {
		case settings.SETTINGS_HEADER_TABLE_SIZE:
			size := min(p.Value, w.tableSizeLimit)
			if w.pendingTableSize == nil || size < w.minTableSize {
				w.minTableSize = size
			}
			w.pendingTableSize = &size
		case settings.SETTINGS_MAX_FRAME_SIZE:
			w.maxFrameSize = int(p.Value)
		}
	}
	return nil
}

// EncodeBlock encodes fields into a header block without framing it.
func EncodeBlock(enc *hpack.Encoder, dst io.Writer, fields []Field) error {
	for _, f := range fields {
		if err := enc.EncodeHeaderString(dst, f.Name, f.Value, f.Sensitive); err != nil {
			return fmt.Errorf("cannot encode header %q: %w", f.Name, err)
		}
	}
	return nil
}

// WriteHeaders writes fields as one HEADERS frame followed by as many
// CONTINUATION frames as the block needs.
func (w *Writer) WriteHeaders(out io.Writer, streamID uint32, fields []Field, endStream bool) error {
	if streamID == 0 {
		return fmt.Errorf("%w: HEADERS frame on stream 0", ErrProtocol)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if w.pendingTableSize != nil {
		// The peer evicts down to the smallest size it announced, so that
		// size is signalled before the final one (RFC 7541 §4.2).
		if int(w.minTableSize) < w.enc.MaxHeaderTableSize() {
			if err := w.enc.SetMaxHeaderTableSize(buf, w.minTableSize); err != nil {
				return err
			}
		}
		if err := w.enc.SetMaxHeaderTableSize(buf, *w.pendingTableSize); err != nil {
			return err
		}
		w.pendingTableSize = nil
	}

	if err := EncodeBlock(w.enc, buf, fields); err != nil {
		return err
	}

	block := buf.B
	frameType := uint8(structs.HEADER_FRAME_TYPE)
	var flags uint8
	if endStream {
		flags |= structs.END_STREAM
	}

	for {
		n := min(len(block), w.maxFrameSize)
		if n == len(block) {
			flags |= structs.END_HEADERS
		}

		if err := frame.WriteFrame(out, frame.NewFrame(frameType, flags, streamID, block[:n])); err != nil {
			return err
		}

		block = block[n:]
		if len(block) == 0 {
			return nil
		}
		frameType = structs.CONTINUATION_FRAME_TYPE
		flags = 0
	}
}
