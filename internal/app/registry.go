package app

import (
	"log/slog"

	"go.aimuz.me/murmur/config"
)

// Registry routes hotkey events to actions by binding id.
type Registry struct {
	actions  map[string]Action
	toggles  *ToggleState
	settings func() config.Settings
}

// NewRegistry maps the known binding ids onto a.
func NewRegistry(a *Actions) *Registry {
	return &Registry{
		actions: map[string]Action{
			BindingTranscribe:            {Kind: ActionTranscribe, actions: a},
			BindingTranscribeWithContext: {Kind: ActionTranscribeWithContext, actions: a},
			BindingCancel:                {Kind: ActionCancel, actions: a},
			BindingTest:                  {Kind: ActionDiagnostic, actions: a},
		},
		toggles:  a.Toggles,
		settings: a.Settings,
	}
}

// Action returns the action bound to id.
func (r *Registry) Action(bindingID string) (Action, bool) {
	act, ok := r.actions[bindingID]
	return act, ok
}

// Dispatch handles a key press or release. In push-to-talk mode press
// starts and release stops; otherwise each press toggles the binding.
// Cancel always acts on press.
func (r *Registry) Dispatch(bindingID, shortcut string, pressed bool) {
	act, ok := r.actions[bindingID]
	if !ok {
		slog.Warn("no action for binding", "binding", bindingID)
		return
	}

	if act.Kind == ActionCancel || r.settings().PushToTalk {
		if pressed {
			if act.Kind != ActionCancel {
				r.toggles.Set(bindingID, true)
			}
			act.Start(bindingID, shortcut)
			return
		}
		// A cancel during the hold already cleared the binding.
		if act.Kind == ActionCancel || r.toggles.Get(bindingID) {
			act.Stop(bindingID, shortcut)
		}
		return
	}

	if !pressed {
		return
	}
	if r.toggles.Toggle(bindingID) {
		act.Start(bindingID, shortcut)
	} else {
		act.Stop(bindingID, shortcut)
	}
}
