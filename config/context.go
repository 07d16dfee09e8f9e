package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.aimuz.me/murmur/internal/types"
)

var (
	ErrPromptNotFound   = errors.New("context style prompt not found")
	ErrDuplicatePrompt  = errors.New("context style prompt already exists")
	ErrBuiltinPrompt    = errors.New("built-in context style prompts cannot be deleted")
	ErrMappingNotFound  = errors.New("context mapping not found")
	ErrMissingOutputVar = errors.New("prompt must contain ${output}")
)

// ─────────────────────────────────────────────────────────────────────────────
// Context Style Prompts
// ─────────────────────────────────────────────────────────────────────────────

// UpdateContextStylePrompt replaces the name, description and prompt text of an
// existing style. The built-in flag is preserved.
func (st *Store) UpdateContextStylePrompt(p types.ContextStylePrompt) error {
	return st.Update(func(s *Settings) error {
		idx := slices.IndexFunc(s.ContextStylePrompts, func(x types.ContextStylePrompt) bool {
			return x.ID == p.ID
		})
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrPromptNotFound, p.ID)
		}
		p.IsBuiltin = s.ContextStylePrompts[idx].IsBuiltin
		s.ContextStylePrompts[idx] = p
		return nil
	})
}

// ResetContextStylePrompt restores a built-in prompt to its shipped text.
func (st *Store) ResetContextStylePrompt(id string) error {
	def, ok := DefaultContextStylePrompt(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPromptNotFound, id)
	}
	return st.Update(func(s *Settings) error {
		idx := slices.IndexFunc(s.ContextStylePrompts, func(x types.ContextStylePrompt) bool {
			return x.ID == id
		})
		if idx == -1 {
			s.ContextStylePrompts = append(s.ContextStylePrompts, def)
		} else {
			s.ContextStylePrompts[idx] = def
		}
		return nil
	})
}

// AddContextStylePrompt adds a custom style.
func (st *Store) AddContextStylePrompt(p types.ContextStylePrompt) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return fmt.Errorf("prompt id required")
	}
	if !strings.Contains(p.Prompt, "${output}") {
		return ErrMissingOutputVar
	}
	p.IsBuiltin = false
	return st.Update(func(s *Settings) error {
		if slices.ContainsFunc(s.ContextStylePrompts, func(x types.ContextStylePrompt) bool { return x.ID == p.ID }) {
			return fmt.Errorf("%w: %s", ErrDuplicatePrompt, p.ID)
		}
		s.ContextStylePrompts = append(s.ContextStylePrompts, p)
		return nil
	})
}

// DeleteContextStylePrompt removes a custom style. Built-ins are refused.
func (st *Store) DeleteContextStylePrompt(id string) error {
	return st.Update(func(s *Settings) error {
		idx := slices.IndexFunc(s.ContextStylePrompts, func(x types.ContextStylePrompt) bool {
			return x.ID == id
		})
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrPromptNotFound, id)
		}
		if s.ContextStylePrompts[idx].IsBuiltin {
			return fmt.Errorf("%w: %s", ErrBuiltinPrompt, id)
		}
		s.ContextStylePrompts = slices.Delete(s.ContextStylePrompts, idx, idx+1)
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Context Mappings
// ─────────────────────────────────────────────────────────────────────────────

// UpdateContextMapping sets the style for an app id, replacing any existing entry.
func (st *Store) UpdateContextMapping(appID, style string) error {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return fmt.Errorf("app id required")
	}
	return st.Update(func(s *Settings) error {
		if _, ok := s.ContextStylePrompt(style); !ok {
			return fmt.Errorf("%w: %s", ErrPromptNotFound, style)
		}
		m := types.ContextMapping{AppID: appID, ContextStyle: style}
		idx := slices.IndexFunc(s.ContextMappings, func(x types.ContextMapping) bool { return x.AppID == appID })
		if idx == -1 {
			s.ContextMappings = append(s.ContextMappings, m)
		} else {
			s.ContextMappings[idx] = m
		}
		return nil
	})
}

// DeleteContextMapping removes the override for an app id.
func (st *Store) DeleteContextMapping(appID string) error {
	return st.Update(func(s *Settings) error {
		idx := slices.IndexFunc(s.ContextMappings, func(x types.ContextMapping) bool { return x.AppID == appID })
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrMappingNotFound, appID)
		}
		s.ContextMappings = slices.Delete(s.ContextMappings, idx, idx+1)
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Cloud Transcription
// ─────────────────────────────────────────────────────────────────────────────

// SetCloudSTTEnabled toggles cloud transcription.
func (st *Store) SetCloudSTTEnabled(enabled bool) error {
	return st.Update(func(s *Settings) error {
		s.CloudSTTEnabled = enabled
		return nil
	})
}

// SetCloudSTTProvider selects the cloud transcription provider. Empty clears it.
func (st *Store) SetCloudSTTProvider(id string) error {
	return st.Update(func(s *Settings) error {
		if id == "" {
			s.CloudSTTProvider = nil
			return nil
		}
		s.CloudSTTProvider = &id
		return nil
	})
}

// SetCloudSTTAPIKey stores the API key for a cloud provider.
func (st *Store) SetCloudSTTAPIKey(provider, key string) error {
	return st.Update(func(s *Settings) error {
		if s.CloudSTTAPIKeys == nil {
			s.CloudSTTAPIKeys = map[string]string{}
		}
		s.CloudSTTAPIKeys[provider] = strings.TrimSpace(key)
		return nil
	})
}

// SetCloudSTTModel stores the model for a cloud provider.
func (st *Store) SetCloudSTTModel(provider, model string) error {
	return st.Update(func(s *Settings) error {
		if s.CloudSTTModels == nil {
			s.CloudSTTModels = map[string]string{}
		}
		s.CloudSTTModels[provider] = strings.TrimSpace(model)
		return nil
	})
}
