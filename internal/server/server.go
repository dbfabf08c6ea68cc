// Package server exposes the pipeline over HTTP and WebSocket: capture
// clients stream audio in, and every client receives segments, status and
// notices as they happen.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/speakerline/internal/audio"
	"github.com/GriffinCanCode/speakerline/internal/engine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

// Pipeline is the slice of the orchestrator the server drives.
type Pipeline interface {
	Ingest(ctx context.Context, ev audio.Event) error
	Finalize(ctx context.Context) error
	SetEngine(eng engine.Engine)
	Status() orchestrator.Status
	StatusUpdates() <-chan orchestrator.Status
	Notices() <-chan orchestrator.Notice
	Segments() <-chan transcript.Event
	Transcript() []transcript.Segment
	RecentTranscript(d time.Duration) string
}

// EngineFactory builds an engine from credentials posted by a client.
type EngineFactory func(req EngineRequest) (engine.Engine, error)

// Options configures a Server.
type Options struct {
	// VADThreshold drives the fallback detector for frames without VAD.
	VADThreshold float64

	// Engines enables POST /api/engine when set.
	Engines EngineFactory
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// client serializes writes to one connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	rl   rateLimiter
}

func (c *client) write(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, v)
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipe Pipeline
	opts Options

	mu    sync.RWMutex
	conns map[*websocket.Conn]*client
}

// New creates a server. Call Run to start broadcasting pipeline output.
func New(pipe Pipeline, opts Options) *Server {
	return &Server{
		pipe:  pipe,
		opts:  opts,
		conns: make(map[*websocket.Conn]*client),
	}
}

// Run fans pipeline output out to connected clients until ctx ends.
func (s *Server) Run(ctx context.Context) {
	segments := s.pipe.Segments()
	statuses := s.pipe.StatusUpdates()
	notices := s.pipe.Notices()

	for {
		var msg any
		select {
		case <-ctx.Done():
			return
		case evt := <-segments:
			msg = SegmentMessage{Type: "segment", Event: string(evt.Kind), Segment: evt.Segment}
		case st := <-statuses:
			msg = StatusMessage{Type: "status", Status: st}
		case n := <-notices:
			msg = NoticeMessage{Type: "notice", Notice: n}
		}
		s.broadcast(ctx, msg)
	}
}

func (s *Server) broadcast(ctx context.Context, msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		go func(c *client) {
			if err := c.write(ctx, msg); err != nil {
				slog.Debug("websocket broadcast failed", "error", err)
			}
		}(c)
	}
}

// Clients returns the number of open WebSocket connections.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/segments", s.handleSegments)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("POST /api/finalize", s.handleFinalize)
	mux.HandleFunc("POST /api/engine", s.handleEngine)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(int64(MaxFrameSamples) * 16)

	c := &client{conn: conn}
	s.mu.Lock()
	s.conns[conn] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	_ = c.write(baseCtx, StatusMessage{Type: "status", Status: s.pipe.Status()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = c.write(baseCtx, ErrorMessage{Type: "error", Code: "RATE_LIMITED", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			ctx = trace.WithContext(ctx, tc)
		}

		switch base.Type {
		case "audio":
			var am AudioMessage
			if err := json.Unmarshal(msg, &am); err != nil {
				_ = c.write(ctx, ErrorMessage{Type: "error", Message: "malformed audio message"})
				continue
			}
			if err := s.ingest(ctx, am); err != nil {
				_ = c.write(ctx, errorMessage(err))
			}
		case "finalize":
			s.finalizeWS(ctx, c)
		default:
			log.Debug("unknown websocket message", "type", base.Type)
		}
	}
}

func (s *Server) ingest(ctx context.Context, am AudioMessage) error {
	if am.Speaker == "" {
		return apperr.New(apperr.InvalidArgument, "audio message needs a speaker")
	}
	if am.SampleRate <= 0 {
		return apperr.Newf(apperr.InvalidArgument, "invalid sample rate %d", am.SampleRate)
	}
	if len(am.Samples) > MaxFrameSamples {
		return apperr.Newf(apperr.AudioTooLarge, "frame of %d samples exceeds %d", len(am.Samples), MaxFrameSamples)
	}

	ev := audio.Event{
		SpeakerKey: am.Speaker,
		Samples:    am.Samples,
		SampleRate: am.SampleRate,
		Timestamp:  time.Now(),
	}
	if am.Timestamp != nil {
		ev.Timestamp = *am.Timestamp
	}
	if am.VAD != nil {
		ev.VAD = audio.VADResult{
			IsVoice:     am.VAD.IsVoice,
			Probability: am.VAD.Probability,
			Quality:     audio.ParseQuality(am.VAD.Quality),
		}
	} else {
		ev.VAD = audio.DetectVoice(am.Samples, s.opts.VADThreshold)
	}
	return s.pipe.Ingest(ctx, ev)
}

func (s *Server) finalizeWS(ctx context.Context, c *client) {
	ctx, span := trace.StartSpan(ctx, "ws_finalize")
	defer span.End()

	fctx, cancel := context.WithTimeout(ctx, FinalizeTimeout)
	defer cancel()
	if err := s.pipe.Finalize(fctx); err != nil {
		span.SetAttr("error", err.Error())
		_ = c.write(ctx, errorMessage(err))
		return
	}
	_ = c.write(ctx, FinalizedMessage{Type: "finalized", Segments: len(s.pipe.Transcript())})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Status())
}

func (s *Server) handleSegments(w http.ResponseWriter, _ *http.Request) {
	segs := s.pipe.Transcript()
	if segs == nil {
		segs = []transcript.Segment{}
	}
	writeJSON(w, http.StatusOK, segs)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	seconds := DefaultRecentSeconds
	if v := r.URL.Query().Get("seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, apperr.Newf(apperr.InvalidArgument, "invalid seconds %q", v))
			return
		}
		seconds = min(n, MaxRecentSeconds)
	}
	text := s.pipe.RecentTranscript(time.Duration(seconds) * time.Second)
	writeJSON(w, http.StatusOK, map[string]any{"seconds": seconds, "text": text})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), FinalizeTimeout)
	defer cancel()

	if err := s.pipe.Finalize(ctx); err != nil {
		trace.Logger(ctx).Warn("finalize failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pipe.Transcript())
}

func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	if s.opts.Engines == nil {
		writeError(w, apperr.New(apperr.Unavailable, "engine configuration is disabled"))
		return
	}
	var req EngineRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(err, apperr.InvalidArgument, "decode engine request"))
		return
	}
	if req.APIKey == "" {
		writeError(w, apperr.New(apperr.InvalidArgument, "api_key is required"))
		return
	}
	eng, err := s.opts.Engines(req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.pipe.SetEngine(eng)
	trace.Logger(r.Context()).Info("engine configured", "engine", eng.Name())
	writeJSON(w, http.StatusOK, map[string]string{"engine": eng.Name()})
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: "error", Code: apperr.CodeOf(err).String(), Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.CodeOf(err) {
	case apperr.InvalidArgument, apperr.AudioEmpty, apperr.AudioTooShort, apperr.AudioTooLarge, apperr.ConfigInvalid:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Unavailable, apperr.ConfigMissing:
		status = http.StatusServiceUnavailable
	case apperr.Timeout, apperr.Cancelled:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, errorMessage(err))
}
