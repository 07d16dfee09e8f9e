// Package stt turns recorded samples into text, either through a cloud
// provider or a local whisper.cpp installation.
package stt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
)

// SampleRate is the rate of every sample buffer handled by this package.
const SampleRate = 16000

var (
	ErrNoProvider       = errors.New("No cloud provider selected")
	ErrNoAPIKey         = errors.New("No API key configured for cloud provider")
	ErrUnknownProvider  = errors.New("unknown cloud provider")
	ErrEmptyTranscript  = errors.New("no transcription text in response")
	ErrModelNotReady    = errors.New("local model is not ready")
	ErrBinaryNotFound   = errors.New("whisper.cpp binary not found")
	ErrInvalidModelSize = errors.New("invalid model size")
)

// Provider ids.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// APIError is a provider failure with a message suitable for the user.
type APIError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

// Providers lists the cloud transcription providers and their models.
func Providers() []types.CloudSTTProviderInfo {
	defaults := config.DefaultCloudSTTModels()
	return []types.CloudSTTProviderInfo{
		{
			ID:           ProviderGemini,
			Name:         "Google Gemini",
			DefaultModel: defaults[ProviderGemini],
			Models:       []string{"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro", "gemini-1.5-flash"},
		},
		{
			ID:           ProviderOpenAI,
			Name:         "OpenAI Whisper",
			DefaultModel: defaults[ProviderOpenAI],
			Models:       []string{"whisper-1", "gpt-4o-transcribe", "gpt-4o-mini-transcribe"},
		},
	}
}

// Request holds everything needed for one cloud transcription.
type Request struct {
	Provider string
	APIKey   string
	Model    string
	Language string // empty means auto-detect
}

// ResolveRequest builds the cloud request from settings.
func ResolveRequest(s config.Settings) (Request, error) {
	if s.CloudSTTProvider == nil || *s.CloudSTTProvider == "" {
		return Request{}, ErrNoProvider
	}
	provider := *s.CloudSTTProvider

	key := strings.TrimSpace(s.CloudSTTAPIKeys[provider])
	if key == "" {
		return Request{}, ErrNoAPIKey
	}

	model := strings.TrimSpace(s.CloudSTTModels[provider])
	if model == "" {
		model = config.DefaultCloudSTTModels()[provider]
	}

	lang := s.SelectedLanguage
	if lang == "auto" {
		lang = ""
	}
	return Request{Provider: provider, APIKey: key, Model: model, Language: lang}, nil
}

// transportError maps a failed round trip to a user-facing error.
func transportError(provider string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &APIError{Provider: provider, Message: "Request timeout - please try again", Err: err}
	case isConnectError(err):
		return &APIError{Provider: provider, Message: "Network error - please check your connection", Err: err}
	default:
		return &APIError{Provider: provider, Message: fmt.Sprintf("Request failed: %v", err), Err: err}
	}
}

func isConnectError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && strings.Contains(urlErr.Error(), "connection refused")
}
