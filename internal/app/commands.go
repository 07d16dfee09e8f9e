package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/hotkey"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/llm"
	"go.aimuz.me/murmur/stt"
)

const commandTimeout = 30 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetSettings returns the current settings.
func (s *Service) GetSettings() config.Settings {
	return s.store.Snapshot()
}

// SetBinding changes the shortcut of a binding and re-registers it.
func (s *Service) SetBinding(id, shortcut string) error {
	if _, err := hotkey.Parse(shortcut); err != nil {
		return err
	}
	err := s.store.Update(func(st *config.Settings) error {
		idx := slices.IndexFunc(st.Bindings, func(b types.Binding) bool { return b.ID == id })
		if idx == -1 {
			return fmt.Errorf("unknown binding %q", id)
		}
		st.Bindings[idx].CurrentBinding = shortcut
		return nil
	})
	if err != nil {
		return err
	}
	if s.hotkeys != nil {
		return s.hotkeys.Set(id, shortcut, id == BindingCancel)
	}
	return nil
}

// GetTrayState returns the current recording state.
func (s *Service) GetTrayState() types.TrayState {
	if s.ui == nil {
		return types.TrayIdle
	}
	return s.ui.State()
}

// GetAccessibilityPermission returns whether accessibility is enabled.
func (s *Service) GetAccessibilityPermission() bool {
	return hotkey.IsAccessibilityEnabled(false)
}

// CancelOperation aborts the current recording or transcription.
func (s *Service) CancelOperation() {
	if s.actions != nil {
		s.actions.CancelOperation()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Context
// ─────────────────────────────────────────────────────────────────────────────

// GetContextStylePrompts returns all context style prompts.
func (s *Service) GetContextStylePrompts() []types.ContextStylePrompt {
	return s.store.Snapshot().ContextStylePrompts
}

// UpdateContextStylePrompt edits an existing style prompt.
func (s *Service) UpdateContextStylePrompt(p types.ContextStylePrompt) error {
	return s.store.UpdateContextStylePrompt(p)
}

// ResetContextStylePrompt restores a built-in style prompt.
func (s *Service) ResetContextStylePrompt(id string) error {
	return s.store.ResetContextStylePrompt(id)
}

// AddContextStylePrompt adds a custom style prompt.
func (s *Service) AddContextStylePrompt(p types.ContextStylePrompt) error {
	return s.store.AddContextStylePrompt(p)
}

// DeleteContextStylePrompt removes a custom style prompt.
func (s *Service) DeleteContextStylePrompt(id string) error {
	return s.store.DeleteContextStylePrompt(id)
}

// GetContextMappings returns the user's app-to-style overrides.
func (s *Service) GetContextMappings() []types.ContextMapping {
	return s.store.Snapshot().ContextMappings
}

// UpdateContextMapping sets the style used for an app.
func (s *Service) UpdateContextMapping(appID, style string) error {
	return s.store.UpdateContextMapping(appID, style)
}

// DeleteContextMapping removes an app override.
func (s *Service) DeleteContextMapping(appID string) error {
	return s.store.DeleteContextMapping(appID)
}

// GetCurrentContext resolves the foreground application now.
func (s *Service) GetCurrentContext() types.DetectedContext {
	if s.resolver == nil {
		return types.FallbackContext()
	}
	return s.resolver.Resolve(s.store.Snapshot())
}

// GetBrowserBridgeStatus reports the browser extension listener.
func (s *Service) GetBrowserBridgeStatus() types.BridgeStatus {
	if s.bridge == nil {
		return types.BridgeStatus{Addr: s.store.Snapshot().BrowserBridgeAddr}
	}
	return s.bridge.Status()
}

// ─────────────────────────────────────────────────────────────────────────────
// Cloud Transcription
// ─────────────────────────────────────────────────────────────────────────────

// GetCloudSTTProviders lists the supported cloud providers.
func (s *Service) GetCloudSTTProviders() []types.CloudSTTProviderInfo {
	return stt.Providers()
}

// TestCloudSTTConnection checks an API key against a provider.
func (s *Service) TestCloudSTTConnection(provider, apiKey string) error {
	if s.cloud == nil {
		s.cloud = stt.NewCloud(nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return s.cloud.TestConnection(ctx, provider, apiKey)
}

// SetCloudSTTEnabled toggles cloud transcription.
func (s *Service) SetCloudSTTEnabled(enabled bool) error {
	return s.store.SetCloudSTTEnabled(enabled)
}

// SetCloudSTTProvider selects the cloud provider.
func (s *Service) SetCloudSTTProvider(id string) error {
	return s.store.SetCloudSTTProvider(id)
}

// SetCloudSTTAPIKey stores a provider API key.
func (s *Service) SetCloudSTTAPIKey(provider, key string) error {
	return s.store.SetCloudSTTAPIKey(provider, key)
}

// SetCloudSTTModel selects the model for a provider.
func (s *Service) SetCloudSTTModel(provider, model string) error {
	return s.store.SetCloudSTTModel(provider, model)
}

// ─────────────────────────────────────────────────────────────────────────────
// Post-processing
// ─────────────────────────────────────────────────────────────────────────────

// ListPostProcessModels fetches the models offered by a provider.
func (s *Service) ListPostProcessModels(providerID string) ([]string, error) {
	st := s.store.Snapshot()
	idx := slices.IndexFunc(st.PostProcessProviders, func(p types.PostProcessProvider) bool { return p.ID == providerID })
	if idx == -1 {
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return llm.ListModels(ctx, nil, st.PostProcessProviders[idx], st.PostProcessAPIKeys[providerID])
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// GetHistory returns saved transcriptions, newest first.
func (s *Service) GetHistory() ([]types.HistoryEntry, error) {
	if s.history == nil {
		return nil, errHistoryUnavailable
	}
	return s.history.List(context.Background(), 0)
}

// DeleteHistoryEntry removes an entry and its recording.
func (s *Service) DeleteHistoryEntry(id string) error {
	if s.history == nil {
		return errHistoryUnavailable
	}
	return s.history.Delete(context.Background(), id)
}

// ToggleHistorySaved pins or unpins an entry against retention.
func (s *Service) ToggleHistorySaved(id string) (bool, error) {
	if s.history == nil {
		return false, errHistoryUnavailable
	}
	return s.history.ToggleSaved(context.Background(), id)
}
