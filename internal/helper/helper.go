package helper

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"httpTwo/internal/http2/headerblock"
)

// SensitivePrefix marks a header line whose field must never be indexed.
const SensitivePrefix = '!'

// ParseHeaderLines reads header lists in "name: value" form, one field per
// line. A blank line ends a list and lines starting with '#' are skipped.
func ParseHeaderLines(r io.Reader) ([][]headerblock.Field, error) {
	var lists [][]headerblock.Field
	var current []headerblock.Field

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			if current != nil {
				lists = append(lists, current)
				current = nil
			}
			continue
		}
		if line[0] == '#' {
			continue
		}

		field, err := ParseHeaderLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		current = append(current, field)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read header lines: %w", err)
	}

	if current != nil {
		lists = append(lists, current)
	}
	return lists, nil
}

// ParseHeaderLine splits one "name: value" line. Pseudo-header names keep
// their leading colon.
func ParseHeaderLine(line string) (headerblock.Field, error) {
	var field headerblock.Field
	if line != "" && line[0] == SensitivePrefix {
		field.Sensitive = true
		line = line[1:]
	}

	start := 0
	if strings.HasPrefix(line, ":") {
		start = 1
	}
	sep := strings.IndexByte(line[start:], ':')
	if sep < 0 {
		return field, fmt.Errorf("expected 'name: value', got %q", line)
	}
	sep += start

	field.Name = line[:sep]
	field.Value = strings.TrimLeft(line[sep+1:], " \t")
	if field.Name == "" || field.Name == ":" {
		return field, fmt.Errorf("missing header name in %q", line)
	}
	return field, nil
}

// ParseHexBlocks reads one hex encoded header block per line. Whitespace
// inside a line is ignored, blank lines and lines starting with '#' are
// skipped.
func ParseHexBlocks(r io.Reader) ([][]byte, error) {
	var blocks [][]byte

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<25)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		block, err := DecodeHex(string(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		blocks = append(blocks, block)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read hex blocks: %w", err)
	}

	return blocks, nil
}

// DecodeHex decodes s after dropping whitespace and an optional 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex block: %w", err)
	}
	return b, nil
}
