package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"httpTwo/internal/hpack"
	"httpTwo/internal/http2/structs"
	"httpTwo/internal/logging"
)

type CodecConfig struct {
	MaxHeaderSize      uint32 `yaml:"max_header_size"`
	MaxHeaderTableSize uint32 `yaml:"max_header_table_size"`
	// Indexing is a pointer so an absent key can default to true.
	Indexing     *bool  `yaml:"indexing"`
	Huffman      string `yaml:"huffman"`
	MaxFrameSize int    `yaml:"max_frame_size"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Codec  CodecConfig  `yaml:"codec"`
	Server ServerConfig `yaml:"server"`
	Logger LoggerConfig `yaml:"logger"`
}

// MaxHeaderTableSize bounds max_header_table_size. The dynamic table
// allocates one slot per 32 octets of capacity up front.
const MaxHeaderTableSize = 1 << 20

var huffmanPolicies = map[string]hpack.HuffmanPolicy{
	"auto":   hpack.HuffmanAuto,
	"always": hpack.HuffmanAlways,
	"never":  hpack.HuffmanNever,
}

// Default returns the HTTP/2 initial settings with logging at INFO.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Codec.MaxHeaderSize == 0 {
		c.Codec.MaxHeaderSize = structs.DEFAULT_MAX_HEADER_LIST_SIZE
	}
	if c.Codec.MaxHeaderTableSize == 0 {
		c.Codec.MaxHeaderTableSize = structs.DEFAULT_HEADER_TABLE_SIZE
	}
	if c.Codec.Indexing == nil {
		indexing := true
		c.Codec.Indexing = &indexing
	}
	if c.Codec.Huffman == "" {
		c.Codec.Huffman = "auto"
	}
	if c.Codec.MaxFrameSize == 0 {
		c.Codec.MaxFrameSize = structs.DEFAULT_MAX_FRAME_SIZE
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logger.Level == "" {
		c.Logger.Level = string(logging.LogLevelInfo)
	}
}

func (c *Config) Validate() error {
	if _, ok := huffmanPolicies[c.Codec.Huffman]; !ok {
		return fmt.Errorf("unknown huffman policy: %q", c.Codec.Huffman)
	}
	if c.Codec.MaxHeaderTableSize > MaxHeaderTableSize {
		return fmt.Errorf("max header table size %d exceeds %d", c.Codec.MaxHeaderTableSize, MaxHeaderTableSize)
	}
	if c.Codec.MaxFrameSize < structs.DEFAULT_MAX_FRAME_SIZE || c.Codec.MaxFrameSize > structs.MAX_FRAME_SIZE_LIMIT {
		return fmt.Errorf("max frame size %d is outside [%d, %d]",
			c.Codec.MaxFrameSize, structs.DEFAULT_MAX_FRAME_SIZE, structs.MAX_FRAME_SIZE_LIMIT)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server port is not set")
	}
	if _, err := logging.ParseLevel(c.Logger.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) HuffmanPolicy() hpack.HuffmanPolicy {
	return huffmanPolicies[c.Codec.Huffman]
}

// NewDecoder returns a decoder for one connection.
func (c *Config) NewDecoder(logger logging.Logger) *hpack.Decoder {
	return hpack.NewDecoder(c.Codec.MaxHeaderSize, c.Codec.MaxHeaderTableSize, hpack.WithDecoderLogger(logger))
}

// NewEncoder returns an encoder for one connection.
func (c *Config) NewEncoder(logger logging.Logger) *hpack.Encoder {
	return hpack.NewEncoder(c.Codec.MaxHeaderTableSize,
		hpack.WithIndexing(*c.Codec.Indexing),
		hpack.WithHuffman(c.HuffmanPolicy()),
		hpack.WithEncoderLogger(logger),
	)
}

// NewLogger writes to stderr, and to the log file when one is set.
func (c *Config) NewLogger() (logging.Logger, error) {
	level, err := logging.ParseLevel(c.Logger.Level)
	if err != nil {
		return nil, err
	}
	if c.Logger.File == "" {
		return logging.NewLogger(level, os.Stderr), nil
	}
	return logging.NewDefaultLogger(level, c.Logger.File)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func LoadConfig(configFileName string) (*Config, error) {
	data, err := os.ReadFile(configFileName)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}
