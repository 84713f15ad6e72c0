// Package inspect serves the codec over HTTP for debugging header blocks.
// Every request runs through a fresh compression context, so the blocks of
// one request behave like consecutive blocks of one connection.
package inspect

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/valyala/bytebufferpool"

	"httpTwo/internal/config"
	"httpTwo/internal/helper"
	"httpTwo/internal/hpack"
	"httpTwo/internal/http2/headerblock"
	"httpTwo/internal/http2/settings"
	"httpTwo/internal/http2/structs"
	"httpTwo/internal/logging"
)

const maxRequestBody = 4 << 20

type Server struct {
	config *config.Config
	logger logging.Logger
	router chi.Router
}

type DecodeRequest struct {
	Blocks []string `json:"blocks"`
	// Framed blocks hold HEADERS and CONTINUATION frames instead of bare
	// header block fragments.
	Framed bool `json:"framed"`
}

type DecodedBlock struct {
	StreamID    uint32              `json:"stream_id,omitempty"`
	Fields      []headerblock.Field `json:"fields"`
	Truncated   bool                `json:"truncated"`
	TableSize   int                 `json:"table_size"`
	TableLength int                 `json:"table_length"`
}

type DecodeResponse struct {
	Blocks []DecodedBlock `json:"blocks"`
}

type EncodeRequest struct {
	HeaderLists [][]headerblock.Field `json:"header_lists"`
	Framed      bool                  `json:"framed"`
	// StreamID of the first list when framed. Later lists use the next odd
	// stream identifiers.
	StreamID uint32 `json:"stream_id"`
	// PeerSettings are applied as a SETTINGS frame from the peer before the
	// first framed list.
	PeerSettings *PeerSettings `json:"peer_settings,omitempty"`
}

type PeerSettings struct {
	HeaderTableSize *uint32 `json:"header_table_size,omitempty"`
	MaxFrameSize    *uint32 `json:"max_frame_size,omitempty"`
}

type EncodeResponse struct {
	Blocks    []string `json:"blocks"`
	TableSize int      `json:"table_size"`
}

type StaticEntry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
	Block int    `json:"block"`
}

func NewServer(c *config.Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard
	}
	s := &Server{
		config: c,
		logger: logger,
	}

	r := chi.NewRouter()
	r.NotFound(s.notFoundHandler)
	r.MethodNotAllowed(s.methodNotAllowedHandler)
	r.Post("/decode", s.decodeHandler)
	r.Post("/encode", s.encodeHandler)
	r.Get("/static-table", s.staticTableHandler)
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.config.Server.Port)
	s.logger.Log(logging.LogLevelInfo, "Listening on http://%s", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Log(logging.LogLevelError, "Failed to listen on %s: %v", addr, err)
		return err
	}
	return nil
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Log(logging.LogLevelWarn, "Not Found: %s %s", r.Method, r.URL.Path)
	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Not Found"))
	if err != nil {
		s.logger.Log(logging.LogLevelError, "Response writer failed in notFoundHandler: %s", err)
	}
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Log(logging.LogLevelWarn, "Method Not Allowed: %s %s", r.Method, r.URL.Path)
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, err := w.Write([]byte("Method Not Allowed"))
	if err != nil {
		s.logger.Log(logging.LogLevelError, "Response writer failed in methodNotAllowedHandler: %s", err)
	}
}

func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, -1, err)
		return
	}

	dec := s.config.NewDecoder(s.logger)
	assembler := headerblock.NewAssembler(dec, s.logger)
	resp := DecodeResponse{Blocks: []DecodedBlock{}}

	for i, encoded := range req.Blocks {
		raw, err := helper.DecodeHex(encoded)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, i, err)
			return
		}

		var blocks []*headerblock.Block
		if req.Framed {
			blocks, err = assembler.ReadFrames(bytes.NewReader(raw))
		} else {
			var block *headerblock.Block
			block, err = headerblock.DecodeBlock(dec, raw)
			blocks = append(blocks, block)
		}
		if err != nil {
			s.logger.Log(logging.LogLevelWarn, "Decoding block %d failed: %v", i, err)
			s.writeError(w, http.StatusUnprocessableEntity, i, err)
			return
		}

		for _, block := range blocks {
			fields := block.Fields
			if fields == nil {
				fields = []headerblock.Field{}
			}
			resp.Blocks = append(resp.Blocks, DecodedBlock{
				StreamID:    block.StreamID,
				Fields:      fields,
				Truncated:   block.Truncated,
				TableSize:   dec.TableSize(),
				TableLength: dec.TableLength(),
			})
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) encodeHandler(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, -1, err)
		return
	}

	enc := s.config.NewEncoder(s.logger)
	writer, err := headerblock.NewWriter(enc, s.config.Codec.MaxFrameSize)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, -1, err)
		return
	}

	if req.PeerSettings != nil {
		if !req.Framed {
			s.writeError(w, http.StatusBadRequest, -1, errors.New("peer_settings need framed output"))
			return
		}
		if err := writer.ApplySettings(req.PeerSettings.frame()); err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, -1, err)
			return
		}
	}

	streamID := req.StreamID
	if streamID == 0 {
		streamID = 1
	}

	resp := EncodeResponse{Blocks: []string{}}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, fields := range req.HeaderLists {
		buf.Reset()
		if req.Framed {
			err = writer.WriteHeaders(buf, streamID, fields, false)
			streamID += 2
		} else {
			err = headerblock.EncodeBlock(enc, buf, fields)
		}
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, i, err)
			return
		}
		resp.Blocks = append(resp.Blocks, hex.EncodeToString(buf.B))
	}
	resp.TableSize = enc.TableSize()

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) staticTableHandler(w http.ResponseWriter, r *http.Request) {
	entries := make([]StaticEntry, 0, hpack.STATIC_TABLE_SIZE)
	for i := 1; i <= hpack.STATIC_TABLE_SIZE; i++ {
		entry, err := hpack.StaticEntry(i)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, -1, err)
			return
		}
		entries = append(entries, StaticEntry{Index: i, Name: string(entry.Name), Value: string(entry.Value)})
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (p *PeerSettings) frame() *structs.Frame {
	var params []settings.Setting
	if p.HeaderTableSize != nil {
		params = append(params, settings.Setting{ID: settings.SETTINGS_HEADER_TABLE_SIZE, Value: *p.HeaderTableSize})
	}
	if p.MaxFrameSize != nil {
		params = append(params, settings.Setting{ID: settings.SETTINGS_MAX_FRAME_SIZE, Value: *p.MaxFrameSize})
	}
	return settings.NewFrame(params...)
}

func readJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("cannot parse request body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		s.logger.Log(logging.LogLevelError, "Cannot encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.B); err != nil {
		s.logger.Log(logging.LogLevelError, "Response writer failed: %s", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, block int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Block: block})
}
