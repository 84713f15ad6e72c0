package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpTwo/internal/config"
	"httpTwo/internal/logging"
)

const headerLines = `:method: GET
:scheme: https
:path: /index.html
:authority: www.example.com
!authorization: Basic dXNlcjpwYXNz

:method: GET
:scheme: https
:path: /index.html
:authority: www.example.com
custom-key: custom-value
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCodecRoundTrip(t *testing.T) {
	for _, framed := range []bool{false, true} {
		conf := config.Default()

		var encoded bytes.Buffer
		require.NoError(t, runCodec("encode", writeInput(t, headerLines), framed, conf, logging.Discard, &encoded))
		lines := strings.Split(strings.TrimSpace(encoded.String()), "\n")
		require.Len(t, lines, 2)
		t.Logf("framed=%v: %s", framed, encoded.String())

		var decoded bytes.Buffer
		require.NoError(t, runCodec("decode", writeInput(t, encoded.String()), framed, conf, logging.Discard, &decoded))
		assert.Equal(t, headerLines+"\n", decoded.String())
	}
}

func TestRunCodecDecodeError(t *testing.T) {
	var out bytes.Buffer
	err := runCodec("decode", writeInput(t, "82\nbe\n"), false, config.Default(), logging.Discard, &out)
	assert.ErrorContains(t, err, "block 1")
}

func TestRunCodecMissingInput(t *testing.T) {
	err := runCodec("decode", filepath.Join(t.TempDir(), "missing"), false, config.Default(), logging.Discard, &bytes.Buffer{})
	assert.ErrorContains(t, err, "cannot open input")
}
