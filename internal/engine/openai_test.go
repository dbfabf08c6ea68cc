package engine

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

func newTestOpenAI(t *testing.T, h http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()})
}

func TestOpenAITranscribe(t *testing.T) {
	var gotPath, gotModel, gotLang, gotAuth string
	var gotFile []byte
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		if f, _, err := r.FormFile("file"); err == nil {
			gotFile, _ = io.ReadAll(f)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"hello there"}`)
	})

	res, err := o.Transcribe(context.Background(), Request{Audio: []byte("RIFFdata"), SampleRate: 16000, LanguageHint: "en"})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if res.Text != "hello there" {
		t.Errorf("Text = %q, want %q", res.Text, "hello there")
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 (unreported)", res.Confidence)
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotModel != DefaultOpenAIModel || gotLang != "en" {
		t.Errorf("model/language = %q/%q", gotModel, gotLang)
	}
	if string(gotFile) != "RIFFdata" {
		t.Errorf("file = %q", gotFile)
	}
}

func TestOpenAILogprobConfidence(t *testing.T) {
	tests := []struct {
		model       string
		wantInclude string
		wantConf    float64
	}{
		{"gpt-4o-mini-transcribe", "logprobs", math.Exp(-0.2)},
		{"whisper-1", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			var gotInclude string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("parse multipart: %v", err)
				}
				gotInclude = r.FormValue("include[]")
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"text":"hi there","logprobs":[{"token":"hi","logprob":-0.1},{"token":" there","logprob":-0.3}]}`)
			}))
			defer srv.Close()

			o := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: tt.model, HTTPClient: srv.Client()})
			res, err := o.Transcribe(context.Background(), Request{Audio: []byte("RIFF"), SampleRate: 16000})
			if err != nil {
				t.Fatalf("Transcribe() error = %v", err)
			}
			if gotInclude != tt.wantInclude {
				t.Errorf("include = %q, want %q", gotInclude, tt.wantInclude)
			}
			if tt.wantConf == 0 {
				return
			}
			if math.Abs(res.Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", res.Confidence, tt.wantConf)
			}
		})
	}
}

func TestOpenAIErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   apperr.Code
	}{
		{429, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, apperr.RateLimited},
		{429, `{"error":{"message":"no money","type":"insufficient_quota","code":"insufficient_quota"}}`, apperr.QuotaExceeded},
		{401, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`, apperr.AuthFailed},
		{503, `{"error":{"message":"overloaded","type":"server_error"}}`, apperr.Unavailable},
		{400, `{"error":{"message":"bad audio","type":"invalid_request_error"}}`, apperr.EngineFatal},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := o.Transcribe(context.Background(), Request{Audio: []byte("x")})
			if !apperr.IsCode(err, tt.want) {
				t.Errorf("status %d: err = %v, want %s", tt.status, err, tt.want)
			}
		})
	}
}

func TestOpenAINetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	o := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: url})
	_, err := o.Transcribe(context.Background(), Request{Audio: []byte("x")})
	if !apperr.IsRetryable(err) {
		t.Errorf("err = %v, want retryable", err)
	}
}

func TestOpenAIName(t *testing.T) {
	o := NewOpenAI(OpenAIOptions{APIKey: "k", Model: "gpt-4o-transcribe"})
	if !strings.HasSuffix(o.Name(), "gpt-4o-transcribe") {
		t.Errorf("Name() = %q", o.Name())
	}
}
