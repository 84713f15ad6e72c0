package hpack

import (
	"errors"
	"fmt"
	"io"
)

const (
	huffmanSymbols = 257
	huffmanEOS     = 256
)

var huffmanRoot *huffmanNode

func init() {
	var err error
	huffmanRoot, err = buildHuffmanTree(huffmanCodes[:], huffmanCodeLengths[:])
	if err != nil {
		panic(err)
	}
}

// huffmanNode is either an internal node with 256 children, consuming a
// whole octet, or a terminal node matching the last bits of a code.
type huffmanNode struct {
	symbol   int
	bits     int
	children *[256]*huffmanNode
}

func newHuffmanInternalNode() *huffmanNode {
	return &huffmanNode{bits: 8, children: new([256]*huffmanNode)}
}

func (n *huffmanNode) isTerminal() bool {
	return n.children == nil
}

func buildHuffmanTree(codes []uint32, lengths []uint8) (*huffmanNode, error) {
	if len(codes) != huffmanSymbols || len(codes) != len(lengths) {
		return nil, errors.New("invalid Huffman coding")
	}

	root := newHuffmanInternalNode()
	for symbol := range codes {
		if err := insertHuffmanCode(root, symbol, codes[symbol], int(lengths[symbol])); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func insertHuffmanCode(root *huffmanNode, symbol int, code uint32, length int) error {
	current := root
	for length > 8 {
		if current.isTerminal() {
			return errors.New("invalid Huffman code: prefix not unique")
		}
		length -= 8
		i := (code >> length) & 0xFF
		if current.children[i] == nil {
			current.children[i] = newHuffmanInternalNode()
		}
		current = current.children[i]
	}
	if current.isTerminal() {
		return errors.New("invalid Huffman code: prefix not unique")
	}

	terminal := &huffmanNode{symbol: symbol, bits: length}
	shift := 8 - length
	start := int(code<<shift) & 0xFF
	end := start + 1<<shift
	for i := start; i < end; i++ {
		if current.children[i] != nil {
			return fmt.Errorf("invalid Huffman code: prefix not unique for symbol %d", symbol)
		}
		current.children[i] = terminal
	}
	return nil
}

// HuffmanDecode decompresses a Huffman coded string literal. Leftover bits
// after the last symbol must be the most significant bits of EOS.
func HuffmanDecode(buf []byte) ([]byte, error) {
	out := make([]byte, 0, len(buf)*8/5)
	node := huffmanRoot
	var current uint32
	bits := 0

	for _, b := range buf {
		current = current<<8 | uint32(b)
		bits += 8
		for bits >= 8 {
			c := (current >> (bits - 8)) & 0xFF
			node = node.children[c]
			bits -= node.bits
			if node.isTerminal() {
				if node.symbol == huffmanEOS {
					return nil, ErrEOSDecoded
				}
				out = append(out, byte(node.symbol))
				node = huffmanRoot
			}
		}
	}

	for bits > 0 {
		c := (current << (8 - bits)) & 0xFF
		next := node.children[c]
		if next == nil || !next.isTerminal() || next.bits > bits {
			break
		}
		if next.symbol == huffmanEOS {
			return nil, ErrEOSDecoded
		}
		bits -= next.bits
		out = append(out, byte(next.symbol))
		node = huffmanRoot
	}

	mask := uint32(1)<<bits - 1
	if current&mask != mask {
		return nil, ErrInvalidPadding
	}

	return out, nil
}

// AppendHuffman appends the Huffman encoding of data to dst. The final
// partial octet is padded with the high bits of EOS.
func AppendHuffman(dst, data []byte) []byte {
	var current uint64
	n := 0

	for _, b := range data {
		current = current<<huffmanCodeLengths[b] | uint64(huffmanCodes[b])
		n += int(huffmanCodeLengths[b])
		for n >= 8 {
			n -= 8
			dst = append(dst, byte(current>>n))
		}
	}

	if n > 0 {
		current <<= 8 - n
		current |= 0xFF >> n
		dst = append(dst, byte(current))
	}

	return dst
}

// HuffmanEncode writes the Huffman encoding of data to w.
func HuffmanEncode(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(AppendHuffman(make([]byte, 0, HuffmanEncodedLength(data)), data))
	return err
}

// HuffmanEncodedLength returns the number of octets the Huffman encoding of
// data takes.
func HuffmanEncodedLength(data []byte) int {
	n := 0
	for _, b := range data {
		n += int(huffmanCodeLengths[b])
	}
	return (n + 7) >> 3
}
