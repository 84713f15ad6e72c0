// Package headerblock moves header lists between HPACK and HTTP/2 frames:
// HEADERS and CONTINUATION frames of one stream are joined into one header
// block on the way in and split along the max frame size on the way out.
package headerblock

import (
	"errors"
	"fmt"

	"httpTwo/internal/hpack"
	"httpTwo/internal/http2/structs"
	"httpTwo/internal/logging"
)

var ErrProtocol = errors.New("http2: protocol error")

type Field struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// Block is one decoded header block.
type Block struct {
	StreamID  uint32
	EndStream bool
	Fields    []Field
	// Truncated is set when fields were dropped because the header list
	// exceeded the decoder's max header size.
	Truncated bool
}

// Assembler feeds the header block fragments of a connection into one
// decoder. It is not safe for concurrent use.
type Assembler struct {
	dec    *hpack.Decoder
	logger logging.Logger

	block *Block
}

func NewAssembler(dec *hpack.Decoder, logger logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.Discard
	}
	return &Assembler{
		dec:    dec,
		logger: logger,
	}
}

func (a *Assembler) addHeader(name, value []byte, sensitive bool) {
	a.block.Fields = append(a.block.Fields, Field{
		Name:      string(name),
		Value:     string(value),
		Sensitive: sensitive,
	})
}

// InProgress reports whether a HEADERS frame was read whose block has not
// ended yet.
func (a *Assembler) InProgress() bool {
	return a.block != nil
}

// ReadFrame consumes one frame. It returns the block once the frame carrying
// END_HEADERS has been read, nil before that. Frames other than HEADERS and
// CONTINUATION are ignored outside of a block. Every error is a connection
// error.
func (a *Assembler) ReadFrame(f *structs.Frame) (*Block, error) {
	if a.block != nil && (f.Type != structs.CONTINUATION_FRAME_TYPE || f.StreamID != a.block.StreamID) {
		return nil, fmt.Errorf("%w: expected CONTINUATION on stream %d, got frame type %d on stream %d",
			ErrProtocol, a.block.StreamID, f.Type, f.StreamID)
	}

	var fragment []byte
	switch f.Type {
	case structs.HEADER_FRAME_TYPE:
		if f.StreamID == 0 {
			return nil, fmt.Errorf("%w: HEADERS frame on stream 0", ErrProtocol)
		}
		var err error
		fragment, err = headersFragment(f)
		if err != nil {
			return nil, err
		}
		a.block = &Block{
			StreamID:  f.StreamID,
			EndStream: f.Has(structs.END_STREAM),
		}

	case structs.CONTINUATION_FRAME_TYPE:
		if a.block == nil {
			return nil, fmt.Errorf("%w: CONTINUATION without HEADERS on stream %d", ErrProtocol, f.StreamID)
		}
		fragment = f.Payload

	default:
		a.logger.Log(logging.LogLevelDebug, "Ignoring frame type %d on stream %d", f.Type, f.StreamID)
		return nil, nil
	}

	if err := a.dec.Decode(fragment, hpack.EmitFunc(a.addHeader)); err != nil {
		a.block = nil
		return nil, fmt.Errorf("cannot decode header block: %w", err)
	}

	if !f.Has(structs.END_HEADERS) {
		return nil, nil
	}

	block := a.block
	a.block = nil
	incomplete := a.dec.InRepresentation()
	block.Truncated = a.dec.EndHeaderBlock()
	if incomplete {
		return nil, fmt.Errorf("cannot decode header block: %w", hpack.ErrIncompleteBlock)
	}
	if block.Truncated {
		a.logger.Log(logging.LogLevelWarn, "Header list on stream %d truncated after %d fields", block.StreamID, len(block.Fields))
	}
	return block, nil
}

// headersFragment strips padding and priority fields from a HEADERS payload.
func headersFragment(f *structs.Frame) ([]byte, error) {
	payload := f.Payload
	var paddingLength int

	// Padding flag set
	if f.Has(structs.PADDED) {
		if len(payload) < 1 {
			return nil, fmt.Errorf("%w: cannot read header padding length", ErrProtocol)
		}
		paddingLength = int(payload[0])
		payload = payload[1:]
	}

	// Priority flag set
	if f.Has(structs.HEADERS_PRIORITY) {
		if len(payload) < structs.PRIORITY_FIELDS_LENGTH {
			return nil, fmt.Errorf("%w: cannot read header priority", ErrProtocol)
		}
		payload = payload[structs.PRIORITY_FIELDS_LENGTH:]
	}

	if paddingLength > len(payload) {
		return nil, fmt.Errorf("%w: invalid header padding length: %d", ErrProtocol, paddingLength)
	}

	return payload[:len(payload)-paddingLength], nil
}
