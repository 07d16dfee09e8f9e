package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const geminiTestModel = "gemini-2.0-flash"

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func transcriptionPrompt(language string) string {
	prompt := "Transcribe this audio accurately. Return only the transcription text, nothing else."
	if language != "" {
		prompt += fmt.Sprintf(" The audio is in %s language. Transcribe in that language.", language)
	}
	return prompt
}

func (c *Cloud) transcribeGemini(ctx context.Context, apiKey string, wavData []byte, model, language string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: "audio/wav", Data: base64.StdEncoding.EncodeToString(wavData)}},
				{Text: transcriptionPrompt(language)},
			},
		}},
	}

	status, body, err := c.postGemini(ctx, apiKey, model, req)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if status != http.StatusOK {
		if json.Unmarshal(body, &resp) == nil && resp.Error != nil {
			return "", geminiAPIError(status, resp.Error)
		}
		return "", &APIError{Provider: ProviderGemini, Status: status, Message: fmt.Sprintf("API error (%d): %s", status, body)}
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != nil {
		return "", &APIError{Provider: ProviderGemini, Status: status, Message: resp.Error.Message}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyTranscript
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

func (c *Cloud) testGemini(ctx context.Context, apiKey string) error {
	req := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: "Say 'ok'"}}}}}
	status, body, err := c.postGemini(ctx, apiKey, geminiTestModel, req)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		return nil
	case (status == http.StatusBadRequest || status == http.StatusForbidden) && strings.Contains(string(body), "API key"):
		return &APIError{Provider: ProviderGemini, Status: status, Message: "Invalid API key"}
	default:
		return &APIError{Provider: ProviderGemini, Status: status, Message: fmt.Sprintf("API error: %d", status)}
	}
}

func (c *Cloud) postGemini(ctx context.Context, apiKey, model string, body geminiRequest) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.geminiBaseURL, model, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(ProviderGemini, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// geminiAPIError maps Gemini status strings to short messages.
func geminiAPIError(status int, e *geminiError) error {
	msg := e.Message
	switch e.Status {
	case "INVALID_ARGUMENT":
		if strings.Contains(e.Message, "API key") {
			msg = "Invalid API key"
		}
	case "PERMISSION_DENIED":
		msg = "Invalid API key"
	case "RESOURCE_EXHAUSTED":
		msg = "API quota exceeded - please check your account"
	}
	return &APIError{Provider: ProviderGemini, Status: status, Message: msg}
}
