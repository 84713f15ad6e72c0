package hpack

import (
	"errors"
	"fmt"
)

// Every error returned by this package wraps exactly one of these three.
// A decompression error means the shared compression context can no longer
// be trusted and the connection has to be torn down.
var (
	ErrDecompression   = errors.New("hpack: decompression failure")
	ErrArgument        = errors.New("hpack: invalid argument")
	ErrIndexOutOfRange = errors.New("hpack: index out of range")
)

var (
	ErrIllegalIndex            = fmt.Errorf("%w: illegal index value", ErrDecompression)
	ErrIntegerOverflow         = fmt.Errorf("%w: integer overflow", ErrDecompression)
	ErrTableSizeUpdateRequired = fmt.Errorf("%w: max dynamic table size change required", ErrDecompression)
	ErrInvalidTableSize        = fmt.Errorf("%w: invalid max dynamic table size", ErrDecompression)
	ErrEOSDecoded              = fmt.Errorf("%w: EOS decoded", ErrDecompression)
	ErrInvalidPadding          = fmt.Errorf("%w: invalid padding", ErrDecompression)
	ErrEmptyName               = fmt.Errorf("%w: empty header name", ErrDecompression)
	ErrIncompleteBlock         = fmt.Errorf("%w: header block ends inside a representation", ErrDecompression)
)
