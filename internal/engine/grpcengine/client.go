// Package grpcengine talks to a local inference sidecar over gRPC. The
// service is described by hand with well-known wrapper types, so no
// generated stubs are needed on either side.
package grpcengine

import (
	"context"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/speakerline/internal/engine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

// Client is an engine.Engine backed by the sidecar.
type Client struct {
	conn *grpc.ClientConn
	addr string
}

var _ engine.Engine = (*Client)(nil)

// Dial creates a lazily-connecting client for addr.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.ConfigInvalid, "inference address %q", addr)
	}
	return &Client{conn: conn, addr: addr}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Name() string { return "grpc/" + c.addr }

// Transcribe sends one WAV chunk to the sidecar.
func (c *Client) Transcribe(ctx context.Context, req engine.Request) (engine.Result, error) {
	ctx, span := trace.StartSpan(ctx, "engine.grpc.transcribe")
	defer span.End()

	ctx = metadata.AppendToOutgoingContext(ctx,
		LanguageKey, req.LanguageHint,
		SampleRateKey, strconv.Itoa(req.SampleRate),
		SpeakerKeyKey, req.SpeakerKey,
	)

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, transcribeMethod, wrapperspb.Bytes(req.Audio), out); err != nil {
		return engine.Result{}, classify(err)
	}
	return decodeResult(out), nil
}

func classify(err error) error {
	e := apperr.FromGRPCError(err)
	if e.Code == apperr.Unknown {
		e.Code = apperr.Unavailable
	}
	return e.WithMetadata("engine", "grpc")
}

func decodeResult(s *structpb.Struct) engine.Result {
	f := s.GetFields()
	res := engine.Result{
		Text:       f["text"].GetStringValue(),
		Confidence: f["confidence"].GetNumberValue(),
	}
	for _, v := range f["segments"].GetListValue().GetValues() {
		sf := v.GetStructValue().GetFields()
		res.Segments = append(res.Segments, engine.Segment{
			Start: seconds(sf["start"].GetNumberValue()),
			End:   seconds(sf["end"].GetNumberValue()),
			Text:  sf["text"].GetStringValue(),
		})
	}
	return res
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
