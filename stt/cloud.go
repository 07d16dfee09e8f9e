package stt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.aimuz.me/murmur/llm"
)

const (
	requestTimeout = 60 * time.Second
	testTimeout    = 10 * time.Second

	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Cloud transcribes audio with a hosted provider.
type Cloud struct {
	http          *http.Client
	openaiBaseURL string
	geminiBaseURL string
}

// NewCloud creates a Cloud client. A nil client uses the shared HTTP/2 client.
func NewCloud(hc *http.Client) *Cloud {
	if hc == nil {
		hc = llm.DefaultHTTPClient()
	}
	return &Cloud{
		http:          hc,
		openaiBaseURL: defaultOpenAIBaseURL,
		geminiBaseURL: defaultGeminiBaseURL,
	}
}

// Transcribe sends 16kHz mono samples to provider and returns the text.
// Provider failures are returned as *APIError.
func (c *Cloud) Transcribe(ctx context.Context, provider, apiKey string, samples []float32, model, language string) (string, error) {
	slog.Info("cloud transcribe", "provider", provider, "model", model, "samples", len(samples), "language", language)

	wavData, err := EncodeWAV(samples, SampleRate)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var text string
	switch provider {
	case ProviderOpenAI:
		text, err = c.transcribeOpenAI(ctx, apiKey, wavData, model, language)
	case ProviderGemini:
		text, err = c.transcribeGemini(ctx, apiKey, wavData, model, language)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if err != nil {
		slog.Error("cloud transcribe", "provider", provider, "error", err)
		return "", err
	}

	slog.Info("cloud transcription done", "provider", provider, "chars", len(text))
	return text, nil
}

// TranscribeRequest is Transcribe with the fields of a resolved Request.
func (c *Cloud) TranscribeRequest(ctx context.Context, req Request, samples []float32) (string, error) {
	return c.Transcribe(ctx, req.Provider, req.APIKey, samples, req.Model, req.Language)
}

// TestConnection checks that apiKey is accepted by provider.
func (c *Cloud) TestConnection(ctx context.Context, provider, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	switch provider {
	case ProviderOpenAI:
		return c.testOpenAI(ctx, apiKey)
	case ProviderGemini:
		return c.testGemini(ctx, apiKey)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}
