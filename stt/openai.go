package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

func (c *Cloud) openaiClient(apiKey string) openai.Client {
	return openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.openaiBaseURL+"/"),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
	)
}

func (c *Cloud) transcribeOpenAI(ctx context.Context, apiKey string, wavData []byte, model, language string) (string, error) {
	client := c.openaiClient(apiKey)

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
		Model:          openai.AudioModel(model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	resp, err := client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", openaiError(err)
	}
	return resp.Text, nil
}

func (c *Cloud) testOpenAI(ctx context.Context, apiKey string) error {
	client := c.openaiClient(apiKey)
	if _, err := client.Models.List(ctx); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusUnauthorized {
				return &APIError{Provider: ProviderOpenAI, Status: apiErr.StatusCode, Message: "Invalid API key", Err: err}
			}
			return &APIError{Provider: ProviderOpenAI, Status: apiErr.StatusCode, Message: fmt.Sprintf("API error: %d", apiErr.StatusCode), Err: err}
		}
		return transportError(ProviderOpenAI, err)
	}
	return nil
}

// openaiError maps OpenAI error codes to short messages.
func openaiError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return transportError(ProviderOpenAI, err)
	}

	msg := apiErr.Message
	switch apiErr.Code {
	case "invalid_api_key":
		msg = "Invalid API key"
	case "insufficient_quota":
		msg = "API quota exceeded - please check your account"
	case "rate_limit_exceeded":
		msg = "Rate limit exceeded - please wait and try again"
	}
	if msg == "" {
		msg = fmt.Sprintf("API error (%d)", apiErr.StatusCode)
	}
	return &APIError{Provider: ProviderOpenAI, Status: apiErr.StatusCode, Message: msg, Err: err}
}
