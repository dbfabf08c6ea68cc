package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

func TestGeminiTranscribe(t *testing.T) {
	var gotPath string
	var gotAudio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body struct {
			Contents []struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						Data     string `json:"data"`
						MIMEType string `json:"mimeType"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"contents"`
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		for _, c := range body.Contents {
			for _, p := range c.Parts {
				if p.InlineData != nil {
					gotAudio, _ = base64.StdEncoding.DecodeString(p.InlineData.Data)
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":" hello there \n"}]}}]}`)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), GeminiOptions{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}

	res, err := g.Transcribe(context.Background(), Request{Audio: []byte("RIFFdata"), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello there" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 (unreported)", res.Confidence)
	}
	if !strings.Contains(gotPath, DefaultGeminiModel+":generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if string(gotAudio) != "RIFFdata" {
		t.Errorf("inline audio = %q", gotAudio)
	}
	if g.Name() != "gemini/"+DefaultGeminiModel {
		t.Errorf("Name() = %q", g.Name())
	}
}

func TestGeminiErrorClassification(t *testing.T) {
	tests := []struct {
		code int
		want apperr.Code
	}{
		{429, apperr.RateLimited},
		{401, apperr.AuthFailed},
		{503, apperr.Unavailable},
		{400, apperr.EngineFatal},
	}
	for _, tt := range tests {
		err := classifyGemini(context.Background(), genai.APIError{Code: tt.code, Message: "x"})
		if !apperr.IsCode(err, tt.want) {
			t.Errorf("code %d -> %v, want %v", tt.code, err, tt.want)
		}
	}
}
