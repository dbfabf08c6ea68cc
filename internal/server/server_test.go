package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/speakerline/internal/audio"
	"github.com/GriffinCanCode/speakerline/internal/engine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
)

// mockPipeline records what the server asks of the orchestrator.
type mockPipeline struct {
	mu          sync.Mutex
	events      []audio.Event
	ingestErr   error
	finalized   int
	finalizeErr error
	engine      engine.Engine
	recent      time.Duration
	segments    []transcript.Segment

	segCh    chan transcript.Event
	statusCh chan orchestrator.Status
	noticeCh chan orchestrator.Notice
}

func newMockPipeline() *mockPipeline {
	return &mockPipeline{
		segCh:    make(chan transcript.Event, 10),
		statusCh: make(chan orchestrator.Status, 10),
		noticeCh: make(chan orchestrator.Notice, 10),
	}
}

func (m *mockPipeline) Ingest(_ context.Context, ev audio.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.ingestErr
}

func (m *mockPipeline) Finalize(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized++
	return m.finalizeErr
}

func (m *mockPipeline) SetEngine(eng engine.Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine = eng
}

func (m *mockPipeline) Status() orchestrator.Status {
	return orchestrator.Status{EngineReady: true, Segments: len(m.segments)}
}

func (m *mockPipeline) StatusUpdates() <-chan orchestrator.Status { return m.statusCh }
func (m *mockPipeline) Notices() <-chan orchestrator.Notice       { return m.noticeCh }
func (m *mockPipeline) Segments() <-chan transcript.Event         { return m.segCh }
func (m *mockPipeline) Transcript() []transcript.Segment          { return m.segments }

func (m *mockPipeline) RecentTranscript(d time.Duration) string {
	m.recent = d
	return "Alice: hello"
}

func (m *mockPipeline) ingested() []audio.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audio.Event(nil), m.events...)
}

type namedEngine string

func (n namedEngine) Name() string { return string(n) }
func (namedEngine) Transcribe(context.Context, engine.Request) (engine.Result, error) {
	return engine.Result{}, nil
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, OPTIONS" {
		t.Errorf("CORS methods = %q, want %q", v, "GET, POST, OPTIONS")
	}
}

func TestRESTEndpoints(t *testing.T) {
	pipe := newMockPipeline()
	pipe.segments = []transcript.Segment{{ID: "s1", Speaker: "Alice", Text: "hello"}}
	srv := New(pipe, Options{})
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		status int
		want   string
	}{
		{"status", "GET", "/api/status", http.StatusOK, `"engine_ready":true`},
		{"segments", "GET", "/api/segments", http.StatusOK, `"speaker":"Alice"`},
		{"transcript default", "GET", "/api/transcript", http.StatusOK, `"seconds":300`},
		{"transcript window", "GET", "/api/transcript?seconds=30", http.StatusOK, `"text":"Alice: hello"`},
		{"transcript bad window", "GET", "/api/transcript?seconds=-1", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"finalize", "POST", "/api/finalize", http.StatusOK, `"id":"s1"`},
		{"engine disabled", "POST", "/api/engine", http.StatusServiceUnavailable, "UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %s, want substring %s", rec.Body, tt.want)
			}
		})
	}

	if pipe.recent != 30*time.Second {
		t.Errorf("recent window = %v, want 30s", pipe.recent)
	}
	if pipe.finalized != 1 {
		t.Errorf("finalized = %d, want 1", pipe.finalized)
	}
}

func TestFinalizeTimeoutMapsToGatewayTimeout(t *testing.T) {
	pipe := newMockPipeline()
	pipe.finalizeErr = apperr.New(apperr.Timeout, "pending chunks")
	rec := httptest.NewRecorder()
	New(pipe, Options{}).Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/finalize", http.NoBody))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestEngineEndpoint(t *testing.T) {
	pipe := newMockPipeline()
	var got EngineRequest
	srv := New(pipe, Options{Engines: func(req EngineRequest) (engine.Engine, error) {
		got = req
		return namedEngine("openai/" + req.Model), nil
	}})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/engine", strings.NewReader(`{"api_key":"sk-1","model":"whisper-1"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got.APIKey != "sk-1" {
		t.Errorf("factory key = %q", got.APIKey)
	}
	if pipe.engine == nil || pipe.engine.Name() != "openai/whisper-1" {
		t.Errorf("engine not installed: %v", pipe.engine)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/engine", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing key status = %d, want 400", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	var rl rateLimiter
	for i := range RateLimitMessages {
		if !rl.allow() {
			t.Fatalf("message %d rejected inside budget", i)
		}
	}
	if rl.allow() {
		t.Error("message over budget allowed")
	}
}

func dial(t *testing.T, srv *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	// The server greets each client with the current status.
	var hello StatusMessage
	if err := wsjson.Read(ctx, conn, &hello); err != nil || hello.Type != "status" {
		t.Fatalf("greeting = %+v, %v", hello, err)
	}
	return conn, ctx
}

func TestWebSocketAudioIngest(t *testing.T) {
	pipe := newMockPipeline()
	srv := New(pipe, Options{VADThreshold: 0.01})
	conn, ctx := dial(t, srv)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	frames := []AudioMessage{
		{Type: "audio", Speaker: "alice", SampleRate: 16000, Samples: []float32{0.5, -0.5, 0.5, -0.5}, Timestamp: &ts},
		{Type: "audio", Speaker: "bob", SampleRate: 16000, Samples: []float32{0, 0}, VAD: &VADMessage{IsVoice: true, Probability: 0.8, Quality: "good"}},
	}
	for _, f := range frames {
		if err := wsjson.Write(ctx, conn, f); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(pipe.ingested()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	evs := pipe.ingested()
	if len(evs) != 2 {
		t.Fatalf("ingested %d events, want 2", len(evs))
	}
	if evs[0].SpeakerKey != "alice" || !evs[0].Timestamp.Equal(ts) || !evs[0].VAD.IsVoice {
		t.Errorf("alice event = %+v", evs[0])
	}
	if evs[1].VAD.Quality != audio.QualityGood || !evs[1].VAD.IsVoice {
		t.Errorf("client VAD not honored: %+v", evs[1].VAD)
	}
}

func TestWebSocketRejectsBadFrame(t *testing.T) {
	pipe := newMockPipeline()
	conn, ctx := dial(t, New(pipe, Options{}))

	_ = wsjson.Write(ctx, conn, AudioMessage{Type: "audio", SampleRate: 16000, Samples: []float32{0.1}})
	var msg ErrorMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "error" || msg.Code != "INVALID_ARGUMENT" {
		t.Errorf("reply = %+v, want INVALID_ARGUMENT error", msg)
	}
}

func TestWebSocketFinalize(t *testing.T) {
	pipe := newMockPipeline()
	pipe.segments = []transcript.Segment{{ID: "a"}, {ID: "b"}}
	conn, ctx := dial(t, New(pipe, Options{}))

	_ = wsjson.Write(ctx, conn, Message{Type: "finalize"})
	var msg FinalizedMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "finalized" || msg.Segments != 2 {
		t.Errorf("reply = %+v", msg)
	}
}

func TestBroadcast(t *testing.T) {
	pipe := newMockPipeline()
	srv := New(pipe, Options{})
	conn, ctx := dial(t, srv)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go srv.Run(runCtx)

	pipe.segCh <- transcript.Event{Kind: transcript.SegmentCreated, Segment: transcript.Segment{ID: "s1", Text: "hi"}}
	var raw json.RawMessage
	if err := wsjson.Read(ctx, conn, &raw); err != nil {
		t.Fatalf("read: %v", err)
	}
	var seg SegmentMessage
	_ = json.Unmarshal(raw, &seg)
	if seg.Type != "segment" || seg.Event != "created" || seg.Segment.ID != "s1" {
		t.Errorf("segment frame = %s", raw)
	}

	pipe.noticeCh <- orchestrator.Notice{Level: orchestrator.NoticeUser, Code: "AUTH_FAILED"}
	var notice NoticeMessage
	if err := wsjson.Read(ctx, conn, &notice); err != nil {
		t.Fatalf("read: %v", err)
	}
	if notice.Type != "notice" || notice.Notice.Code != "AUTH_FAILED" {
		t.Errorf("notice frame = %+v", notice)
	}
}
