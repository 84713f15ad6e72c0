package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"httpTwo/internal/config"
	"httpTwo/internal/helper"
	"httpTwo/internal/http2/headerblock"
	"httpTwo/internal/inspect"
	"httpTwo/internal/logging"
)

func main() {
	var configFile = flag.String("config", "", "config file")
	var mode = flag.String("mode", "decode", "encode, decode or serve")
	var inPath = flag.String("in", "-", "input file, - for stdin")
	var framed = flag.Bool("framed", false, "read and write HEADERS/CONTINUATION frames instead of bare header blocks")

	flag.Parse()

	conf := config.Default()
	if *configFile != "" {
		var err error
		conf, err = config.LoadConfig(*configFile)
		if err != nil {
			panic(fmt.Errorf("failed to load config: %v", err))
		}
	}

	logger, err := conf.NewLogger()
	if err != nil {
		panic(fmt.Errorf("failed to create logger: %v", err))
	}

	switch *mode {
	case "serve":
		err = inspect.NewServer(conf, logger).Start()
	case "encode", "decode":
		err = runCodec(*mode, *inPath, *framed, conf, logger, os.Stdout)
	default:
		err = fmt.Errorf("unknown mode: %q", *mode)
	}
	if err != nil {
		logger.Log(logging.LogLevelError, "%v", err)
		os.Exit(1)
	}
}

func runCodec(mode, inPath string, framed bool, conf *config.Config, logger logging.Logger, out io.Writer) error {
	in := io.Reader(os.Stdin)
	if inPath != "-" {
		f, err := os.Open(inPath)
		if err != nil {
			return fmt.Errorf("cannot open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	if mode == "encode" {
		return encodeLists(in, w, framed, conf, logger)
	}
	return decodeBlocks(in, w, framed, conf, logger)
}

// encodeLists prints one hex line per header list.
func encodeLists(in io.Reader, out io.Writer, framed bool, conf *config.Config, logger logging.Logger) error {
	lists, err := helper.ParseHeaderLines(in)
	if err != nil {
		return err
	}

	enc := conf.NewEncoder(logger)
	writer, err := headerblock.NewWriter(enc, conf.Codec.MaxFrameSize)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	streamID := uint32(1)
	for _, fields := range lists {
		buf.Reset()
		if framed {
			err = writer.WriteHeaders(&buf, streamID, fields, false)
			streamID += 2
		} else {
			err = headerblock.EncodeBlock(enc, &buf, fields)
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, hex.EncodeToString(buf.Bytes())); err != nil {
			return err
		}
	}

	logger.Log(logging.LogLevelDebug, "Encoded %d header lists, dynamic table %d/%d octets", len(lists), enc.TableSize(), enc.MaxHeaderTableSize())
	return nil
}

// decodeBlocks prints every decoded header list as "name: value" lines
// separated by blank lines, the format encodeLists reads.
func decodeBlocks(in io.Reader, out io.Writer, framed bool, conf *config.Config, logger logging.Logger) error {
	blocks, err := helper.ParseHexBlocks(in)
	if err != nil {
		return err
	}

	dec := conf.NewDecoder(logger)
	assembler := headerblock.NewAssembler(dec, logger)

	for i, raw := range blocks {
		var decoded []*headerblock.Block
		if framed {
			decoded, err = assembler.ReadFrames(bytes.NewReader(raw))
		} else {
			var block *headerblock.Block
			block, err = headerblock.DecodeBlock(dec, raw)
			decoded = append(decoded, block)
		}
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}

		for _, block := range decoded {
			if block.Truncated {
				logger.Log(logging.LogLevelWarn, "Block %d was truncated", i)
			}
			for _, f := range block.Fields {
				prefix := ""
				if f.Sensitive {
					prefix = string(helper.SensitivePrefix)
				}
				if _, err := fmt.Fprintf(out, "%s%s: %s\n", prefix, f.Name, f.Value); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(out); err != nil {
				return err
			}
		}
	}

	return nil
}
