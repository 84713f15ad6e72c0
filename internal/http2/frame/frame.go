package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"httpTwo/internal/http2/structs"
)

func ParseFrame(reader *bufio.Reader) (*structs.Frame, error) {
	newFrame := new(structs.Frame)

	var buffer bytes.Buffer
	_, err := io.CopyN(&buffer, reader, structs.FRAME_HEADER_LENGTH)
	if err != nil {
		return nil, fmt.Errorf("cannot read frame header: %w", err)
	}

	var length []byte
	length = append(length, 0)
	length = append(length, buffer.Next(3)...)

	newFrame.Length = binary.BigEndian.Uint32(length)
	newFrame.Type = buffer.Next(1)[0]
	newFrame.Flags = buffer.Next(1)[0]
	newFrame.StreamID = binary.BigEndian.Uint32(buffer.Next(4))

	// Clears the first bit (Reserved)
	newFrame.StreamID &^= 1 << 31

	_, err = io.CopyN(&buffer, reader, int64(newFrame.Length))
	if err != nil {
		return nil, fmt.Errorf("cannot read frame payload: %w", err)
	}
	newFrame.Payload = buffer.Bytes()

	return newFrame, nil
}

// WriteFrame writes the frame header followed by the payload in one Write.
func WriteFrame(w io.Writer, f *structs.Frame) error {
	if len(f.Payload) > structs.MAX_FRAME_SIZE_LIMIT {
		return fmt.Errorf("frame payload too large: %d", len(f.Payload))
	}

	message := make([]byte, structs.FRAME_HEADER_LENGTH, structs.FRAME_HEADER_LENGTH+len(f.Payload))

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(f.Payload)))
	copy(message[0:3], lengthBytes[1:])

	message[3] = f.Type
	message[4] = f.Flags

	// Sets the reserved bit to 0
	binary.BigEndian.PutUint32(message[5:9], f.StreamID&^(1<<31))

	message = append(message, f.Payload...)

	_, err := w.Write(message)
	if err != nil {
		return fmt.Errorf("send frame failed: %w", err)
	}

	return nil
}

func NewFrame(iType uint8, flags uint8, streamID uint32, data []byte) *structs.Frame {
	return &structs.Frame{
		Length:   uint32(len(data)),
		Type:     iType,
		Flags:    flags,
		StreamID: streamID &^ (1 << 31),
		Payload:  data,
	}
}
