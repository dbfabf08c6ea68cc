package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

// DefaultGeminiModel handles audio input at low latency.
const DefaultGeminiModel = "gemini-2.5-flash"

const geminiPrompt = "Transcribe this audio verbatim. Reply with the transcript text only. " +
	"If nothing intelligible is said, reply with nothing."

// GeminiOptions configures the Gemini adapter.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini transcribes by sending the WAV chunk inline to a multimodal model.
// It reports no confidence.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Engine = (*Gemini)(nil)

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ConfigInvalid, "gemini client")
	}
	return &Gemini{client: client, model: opts.Model}, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.model }

func (g *Gemini) Transcribe(ctx context.Context, req Request) (Result, error) {
	ctx, span := trace.StartSpan(ctx, "engine.gemini.transcribe")
	defer span.End()
	span.SetAttr("bytes", len(req.Audio))

	prompt := geminiPrompt
	if req.LanguageHint != "" {
		prompt += " The speech is in " + req.LanguageHint + "."
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(req.Audio, "audio/wav"),
		},
	}}
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Result{}, classifyGemini(ctx, err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return Result{Text: strings.TrimSpace(sb.String())}, nil
}

func classifyGemini(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, "", err).WithMetadata("engine", "gemini")
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyStatus(apiErrPtr.Code, "", err).WithMetadata("engine", "gemini")
	}
	return classifyOpenAI(ctx, err)
}
