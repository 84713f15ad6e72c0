package settings

import (
	"encoding/binary"
	"fmt"

	"httpTwo/internal/http2/frame"
	"httpTwo/internal/http2/structs"
)

//goland:noinspection ALL
const (
	SETTINGS_HEADER_TABLE_SIZE = iota + 1
	SETTINGS_ENABLE_PUSH
	SETTINGS_MAX_CONCURRENT_STREAMS
	SETTINGS_INITIAL_WINDOW_SIZE
	SETTINGS_MAX_FRAME_SIZE
	SETTINGS_MAX_HEADER_LIST_SIZE
)

const SETTING_LENGTH = 6

type Setting struct {
	ID    uint16
	Value uint32
}

func NewFrame(settings ...Setting) *structs.Frame {
	data := make([]byte, 0, len(settings)*SETTING_LENGTH)
	for _, s := range settings {
		data = binary.BigEndian.AppendUint16(data, s.ID)
		data = binary.BigEndian.AppendUint32(data, s.Value)
	}
	return frame.NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 0, data)
}

func NewAckFrame() *structs.Frame {
	return frame.NewFrame(structs.SETTINGS_FRAME_TYPE, structs.ACK, 0, nil)
}

// Parse validates a SETTINGS frame and returns its parameters in order.
// An acknowledgement carries none.
func Parse(f *structs.Frame) ([]Setting, error) {
	if f.Type != structs.SETTINGS_FRAME_TYPE {
		return nil, fmt.Errorf("invalid frame type, needs to be a settings frame: %v", f.Type)
	}

	if f.StreamID != 0x0 {
		return nil, fmt.Errorf("invalid frame stream id: %v", f.StreamID)
	}

	if f.Has(structs.ACK) {
		if len(f.Payload) != 0 {
			return nil, fmt.Errorf("invalid settings ack payload length: %v", len(f.Payload))
		}
		return nil, nil
	}

	if len(f.Payload)%SETTING_LENGTH != 0 {
		return nil, fmt.Errorf("invalid frame payload length: %v", len(f.Payload))
	}

	settings := make([]Setting, 0, len(f.Payload)/SETTING_LENGTH)
	for pos := 0; pos < len(f.Payload); pos += SETTING_LENGTH {
		s := Setting{
			ID:    binary.BigEndian.Uint16(f.Payload[pos:]),
			Value: binary.BigEndian.Uint32(f.Payload[pos+2:]),
		}
		if err := validate(s); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, nil
}

func validate(s Setting) error {
	switch s.ID {
	case SETTINGS_ENABLE_PUSH:
		if s.Value > 1 {
			return fmt.Errorf("invalid enable push value: %v", s.Value)
		}
	case SETTINGS_INITIAL_WINDOW_SIZE:
		if s.Value > 1<<31-1 {
			return fmt.Errorf("invalid initial window size: %v", s.Value)
		}
	case SETTINGS_MAX_FRAME_SIZE:
		if s.Value < structs.DEFAULT_MAX_FRAME_SIZE || s.Value > structs.MAX_FRAME_SIZE_LIMIT {
			return fmt.Errorf("invalid max frame size: %v", s.Value)
		}
	}
	return nil
}
