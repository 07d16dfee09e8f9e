// Package focus identifies the foreground application and picks the rewrite
// style for it.
package focus

import (
	"errors"
	"log/slog"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
)

// ErrUnavailable is returned by detectors on platforms without support.
var ErrUnavailable = errors.New("foreground window detection unavailable")

// Window is the foreground window as reported by the OS.
type Window struct {
	ProcessName string
	Title       string
}

// WindowDetector reports the foreground window.
type WindowDetector interface {
	Foreground() (Window, error)
}

// BrowserSource provides the latest context sent by the browser extension.
type BrowserSource interface {
	Latest() (types.BrowserContext, bool)
}

// Resolver combines OS window detection with the browser bridge.
type Resolver struct {
	windows WindowDetector
	browser BrowserSource
}

// NewResolver creates a resolver. A nil detector uses the platform default;
// browser may be nil when the bridge is disabled.
func NewResolver(windows WindowDetector, browser BrowserSource) *Resolver {
	if windows == nil {
		windows = NewDetector()
	}
	return &Resolver{windows: windows, browser: browser}
}

// Resolve returns the context of the foreground application. It never fails;
// when nothing matches it returns types.FallbackContext.
func (r *Resolver) Resolve(s config.Settings) types.DetectedContext {
	w, err := r.windows.Foreground()
	if err != nil {
		slog.Debug("detect foreground window", "error", err)
		return types.FallbackContext()
	}
	if w.ProcessName == "" && w.Title == "" {
		return types.FallbackContext()
	}
	slog.Debug("foreground window", "process", w.ProcessName, "title", w.Title)

	if appID, ok := NativeApp(w.ProcessName); ok {
		if style, ok := styleFor(s, appID); ok {
			return detected(types.SourceOS, appID, style, 1.0)
		}
	}

	if !IsBrowser(w.ProcessName) {
		return types.FallbackContext()
	}

	if r.browser != nil {
		if bc, ok := r.browser.Latest(); ok {
			appID := bc.DetectedApp
			if appID == "" {
				appID, _ = AppFromDomain(bc.Domain)
			}
			if appID != "" {
				if style, ok := styleFor(s, appID); ok {
					return detected(types.SourceBrowserExtension, appID, style, 0.98)
				}
			}
		}
	}

	if appID, ok := AppFromTitle(w.Title); ok {
		if style, ok := styleFor(s, appID); ok {
			return detected(types.SourceOS, appID, style, 0.7)
		}
	}
	return types.FallbackContext()
}

// styleFor looks up the user's override before the built-in table.
func styleFor(s config.Settings, appID string) (string, bool) {
	if style, ok := s.ContextOverride(appID); ok {
		return style, true
	}
	return DefaultStyle(appID)
}

func detected(source types.ContextSource, appID, style string, confidence float64) types.DetectedContext {
	return types.DetectedContext{
		Source:       source,
		AppID:        appID,
		AppName:      DisplayName(appID),
		ContextStyle: style,
		Confidence:   confidence,
	}
}
