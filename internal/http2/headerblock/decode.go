package headerblock

import (
	"bufio"
	"io"

	"httpTwo/internal/hpack"
	"httpTwo/internal/http2/frame"
)

// DecodeBlock decodes one complete, unframed header block.
func DecodeBlock(dec *hpack.Decoder, raw []byte) (*Block, error) {
	block := &Block{Fields: []Field{}}
	err := dec.Decode(raw, hpack.EmitFunc(func(name, value []byte, sensitive bool) {
		block.Fields = append(block.Fields, Field{
			Name:      string(name),
			Value:     string(value),
			Sensitive: sensitive,
		})
	}))
	if err != nil {
		return nil, err
	}
	incomplete := dec.InRepresentation()
	block.Truncated = dec.EndHeaderBlock()
	if incomplete {
		return nil, hpack.ErrIncompleteBlock
	}
	return block, nil
}

// ReadFrames reads frames from r until EOF and returns the blocks they
// completed. A block still open at EOF stays open for the next call.
func (a *Assembler) ReadFrames(r io.Reader) ([]*Block, error) {
	var blocks []*Block
	reader := bufio.NewReader(r)
	for {
		if _, err := reader.Peek(1); err == io.EOF {
			return blocks, nil
		}

		f, err := frame.ParseFrame(reader)
		if err != nil {
			return nil, err
		}
		block, err := a.ReadFrame(f)
		if err != nil {
			return nil, err
		}
		if block != nil {
			blocks = append(blocks, block)
		}
	}
}
