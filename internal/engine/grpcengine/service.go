package grpcengine

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/speakerline/internal/engine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

// TranscriptionServer is the server side of the sidecar service.
type TranscriptionServer interface {
	Transcribe(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranscriptionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transcribe", Handler: transcribeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "speakerline/inference/v1/transcription.proto",
}

// RegisterTranscriptionServer registers srv on s.
func RegisterTranscriptionServer(s grpc.ServiceRegistrar, srv TranscriptionServer) {
	s.RegisterService(&serviceDesc, srv)
}

func transcribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranscriptionServer).Transcribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transcribeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TranscriptionServer).Transcribe(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// engineServer exposes any engine.Engine as a sidecar.
type engineServer struct {
	eng engine.Engine
}

// NewServer wraps eng so it can be served over gRPC.
func NewServer(eng engine.Engine) TranscriptionServer {
	return &engineServer{eng: eng}
}

func (s *engineServer) Transcribe(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	req := engine.Request{Audio: in.GetValue()}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		req.LanguageHint = first(md, LanguageKey)
		req.SpeakerKey = first(md, SpeakerKeyKey)
		req.SampleRate, _ = strconv.Atoi(first(md, SampleRateKey))
	}

	res, err := s.eng.Transcribe(ctx, req)
	if err != nil {
		var appErr *apperr.AppError
		if !errors.As(err, &appErr) {
			appErr = apperr.Wrap(err, apperr.Internal, "transcription failed")
		}
		return nil, appErr.GRPCStatus().Err()
	}
	return encodeResult(res)
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func encodeResult(res engine.Result) (*structpb.Struct, error) {
	segs := make([]any, 0, len(res.Segments))
	for _, s := range res.Segments {
		segs = append(segs, map[string]any{
			"start": s.Start.Seconds(),
			"end":   s.End.Seconds(),
			"text":  s.Text,
		})
	}
	return structpb.NewStruct(map[string]any{
		"text":       res.Text,
		"confidence": res.Confidence,
		"segments":   segs,
	})
}
