package grpcengine

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/GriffinCanCode/speakerline/internal/engine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

type fakeEngine struct {
	got engine.Request
	res engine.Result
	err error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Transcribe(_ context.Context, req engine.Request) (engine.Result, error) {
	f.got = req
	return f.res, f.err
}

func startSidecar(t *testing.T, eng engine.Engine) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	RegisterTranscriptionServer(srv, NewServer(eng))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTranscribeRoundTrip(t *testing.T) {
	fake := &fakeEngine{res: engine.Result{
		Text:       "we should ship friday",
		Confidence: 0.82,
		Segments:   []engine.Segment{{Start: 0, End: 1500 * time.Millisecond, Text: "we should ship friday"}},
	}}
	c := startSidecar(t, fake)

	res, err := c.Transcribe(context.Background(), engine.Request{
		Audio:        []byte("RIFF...."),
		SampleRate:   16000,
		LanguageHint: "en",
		SpeakerKey:   "remote:1",
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if res.Text != "we should ship friday" || res.Confidence != 0.82 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Segments) != 1 || res.Segments[0].End != 1500*time.Millisecond {
		t.Errorf("segments = %+v", res.Segments)
	}
	if string(fake.got.Audio) != "RIFF...." || fake.got.SampleRate != 16000 || fake.got.LanguageHint != "en" || fake.got.SpeakerKey != "remote:1" {
		t.Errorf("sidecar saw %+v", fake.got)
	}
}

func TestTranscribeErrorCodesSurvive(t *testing.T) {
	for _, code := range []apperr.Code{apperr.RateLimited, apperr.AuthFailed, apperr.EngineFatal, apperr.Unavailable} {
		t.Run(code.String(), func(t *testing.T) {
			c := startSidecar(t, &fakeEngine{err: apperr.New(code, "sidecar says no")})

			_, err := c.Transcribe(context.Background(), engine.Request{Audio: []byte("x")})
			if !apperr.IsCode(err, code) {
				t.Errorf("err = %v, want %s", err, code)
			}
		})
	}
}

func TestTranscribePlainErrorIsInternal(t *testing.T) {
	c := startSidecar(t, &fakeEngine{err: context.Canceled})

	_, err := c.Transcribe(context.Background(), engine.Request{Audio: []byte("x")})
	if !apperr.IsCode(err, apperr.Internal) {
		t.Errorf("err = %v, want INTERNAL", err)
	}
}

func TestTranscribeDeadline(t *testing.T) {
	c := startSidecar(t, &fakeEngine{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := c.Transcribe(ctx, engine.Request{Audio: []byte("x")})
	if !apperr.IsCode(err, apperr.Timeout) {
		t.Errorf("err = %v, want TIMEOUT", err)
	}
}
