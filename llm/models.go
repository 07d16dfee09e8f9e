package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.aimuz.me/murmur/internal/types"
)

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	// Gemini lists models under "models" with a "models/" name prefix.
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels fetches the model ids a provider offers, sorted.
func ListModels(ctx context.Context, hc *http.Client, provider types.PostProcessProvider, apiKey string) ([]string, error) {
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	base := strings.TrimRight(provider.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("provider %s has no base url", provider.ID)
	}

	endpoint := provider.ModelsEndpoint
	if endpoint == "" {
		endpoint = "/models"
	}
	reqURL := base + endpoint
	if provider.ID == "gemini" {
		reqURL += "?key=" + url.QueryEscape(apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	switch provider.ID {
	case "anthropic":
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
	case "gemini":
	default:
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error: %d - %s", resp.StatusCode, string(body))
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Data)+len(parsed.Models))
	for _, m := range parsed.Data {
		ids = append(ids, m.ID)
	}
	for _, m := range parsed.Models {
		ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
	}
	sort.Strings(ids)
	return ids, nil
}
