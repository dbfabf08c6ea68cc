package engine

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

// DefaultOpenAIModel is the hosted Whisper model.
const DefaultOpenAIModel = "whisper-1"

// OpenAIOptions configures the OpenAI-compatible adapter.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAI transcribes through the /audio/transcriptions endpoint of OpenAI
// or any compatible provider.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Engine = (*OpenAI)(nil)

// NewOpenAI builds the adapter. The SDK's own retries are disabled; the
// dispatcher owns the retry policy.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(opts.HTTPClient),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{client: &client, model: opts.Model}
}

func (o *OpenAI) Name() string { return "openai/" + o.model }

func (o *OpenAI) Transcribe(ctx context.Context, req Request) (Result, error) {
	ctx, span := trace.StartSpan(ctx, "engine.openai.transcribe")
	defer span.End()
	span.SetAttr("bytes", len(req.Audio))

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(req.Audio), "chunk.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if req.LanguageHint != "" {
		params.Language = openai.String(req.LanguageHint)
	}
	if reportsLogprobs(o.model) {
		params.Include = []openai.TranscriptionInclude{openai.TranscriptionIncludeLogprobs}
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Result{}, classifyOpenAI(ctx, err)
	}

	res := Result{Text: resp.Text}
	if n := len(resp.Logprobs); n > 0 {
		var sum float64
		for _, lp := range resp.Logprobs {
			sum += lp.Logprob
		}
		res.Confidence = math.Exp(sum / float64(n))
	}
	return res, nil
}

// reportsLogprobs is true for the gpt-4o transcription models. whisper-1
// rejects the include parameter, so its results carry no confidence.
func reportsLogprobs(model string) bool {
	return strings.HasPrefix(model, "gpt-4o")
}

// classifyOpenAI maps SDK failures onto the engine error contract.
func classifyOpenAI(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e := classifyStatus(apiErr.StatusCode, apiErr.Code, err)
		return e.WithMetadata("engine", "openai")
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(err, apperr.Timeout, "transcription timed out")
	case errors.Is(err, context.Canceled):
		if ctx.Err() != nil {
			return apperr.Wrap(err, apperr.Cancelled, "transcription cancelled")
		}
	}
	return apperr.Wrap(err, apperr.Unavailable, "transcription request failed")
}

func classifyStatus(status int, code string, err error) *apperr.AppError {
	switch {
	case status == http.StatusTooManyRequests && code == "insufficient_quota":
		return apperr.Wrap(err, apperr.QuotaExceeded, "quota exhausted")
	case status == http.StatusTooManyRequests:
		return apperr.Wrap(err, apperr.RateLimited, "rate limited")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Wrap(err, apperr.AuthFailed, "engine rejected credentials")
	case status == http.StatusRequestTimeout:
		return apperr.Wrap(err, apperr.Timeout, "engine timed out")
	case status == http.StatusConflict || status >= 500:
		return apperr.Wrapf(err, apperr.Unavailable, "engine unavailable (%d)", status)
	default:
		return apperr.Wrapf(err, apperr.EngineFatal, "engine rejected request (%d)", status)
	}
}
