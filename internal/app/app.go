// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/murmur/audiocapture"
	"go.aimuz.me/murmur/bridge"
	"go.aimuz.me/murmur/cache"
	"go.aimuz.me/murmur/clipboard"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/feedback"
	"go.aimuz.me/murmur/focus"
	"go.aimuz.me/murmur/history"
	"go.aimuz.me/murmur/hotkey"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/llm"
	"go.aimuz.me/murmur/stt"
	"go.aimuz.me/murmur/telemetry"
	"go.aimuz.me/murmur/transform"
)

// historyStore is the part of history.Store used by commands.
type historyStore interface {
	HistorySaver
	List(ctx context.Context, limit int) ([]types.HistoryEntry, error)
	Delete(ctx context.Context, id string) error
	ToggleSaved(ctx context.Context, id string) (bool, error)
}

// connectionTester checks cloud transcription credentials.
type connectionTester interface {
	TestConnection(ctx context.Context, provider, apiKey string) error
}

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; the pipeline lives in Actions.
type Service struct {
	version string
	store   *config.Store
	dir     string

	// UI references - set via Init
	ui *WailsUI

	cache    *cache.Cache
	history  historyStore
	bridge   *bridge.Bridge
	hotkeys  *hotkey.Manager
	recorder *audiocapture.Recorder
	cloud    connectionTester
	resolver ContextResolver
	actions  *Actions
	registry *Registry

	stopTelemetry func(context.Context) error
	stopBridge    context.CancelFunc
}

// New creates a new Service. Call Init() after the Wails app is created.
func New(version string, store *config.Store) *Service {
	return &Service{version: version, store: store}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init wires every component. Failures of optional parts are logged and the
// rest of the app keeps working.
func (s *Service) Init(app *application.App, overlay application.Window, tray *application.SystemTray) {
	s.ui = NewWailsUI(app, overlay, tray)
	settings := s.store.Snapshot()

	dir, err := config.Dir()
	if err != nil {
		slog.Error("get config dir", "error", err)
	}
	s.dir = dir

	s.setupTelemetry(settings.MetricsAddr)
	s.setupCache()
	s.setupHistory()
	s.setupBridge(settings)

	rec, err := audiocapture.New(audiocapture.Config{
		AlwaysOn:           func() bool { return s.store.Snapshot().AlwaysOnMicrophone },
		MuteWhileRecording: func() bool { return s.store.Snapshot().MuteWhileRecording },
	})
	if err != nil {
		slog.Error("init audio capture", "error", err)
	} else {
		s.recorder = rec
	}

	local, err := stt.NewLocal(stt.LocalConfig{
		ModelSize: settings.LocalModel,
		ModelDir:  filepath.Join(dir, "models"),
		Language:  func() string { return s.store.Snapshot().SelectedLanguage },
		Progress:  func(p int) { s.ui.Emit(EventModelProgress, p) },
	})
	if err != nil {
		slog.Error("init local transcription", "error", err)
	}

	cloud := stt.NewCloud(llm.DefaultHTTPClient())
	s.cloud = cloud

	var browser focus.BrowserSource
	if s.bridge != nil {
		browser = s.bridge
	}
	s.resolver = focus.NewResolver(nil, browser)

	deps := Deps{
		Settings: s.store.Snapshot,
		Cloud:    cloud,
		Paster:   clipboard.NewPaster(s.store.Snapshot),
		Feedback: feedback.NewPlayer(s.store.Snapshot, filepath.Join(dir, "sounds")),
		UI:       s.ui,
		Resolver: s.resolver,
		Rewriter: transform.NewPostProcessor(nil, transform.NewOnDevice(), s.cache),
		Notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
	if local != nil {
		deps.Local = local
	}
	if s.recorder != nil {
		deps.Recorder = s.recorder
	} else {
		deps.Recorder = noRecorder{}
	}
	if s.history == nil {
		s.history = noHistory{}
	}
	deps.History = s.history

	s.hotkeys = hotkey.NewManager(func(id, shortcut string, pressed bool) {
		s.registry.Dispatch(id, shortcut, pressed)
	})
	deps.Hotkeys = s.hotkeys

	s.actions = NewActions(deps)
	s.registry = NewRegistry(s.actions)
	s.setupHotkeys(settings)
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkeys != nil {
		s.hotkeys.Stop()
	}
	if s.actions != nil {
		s.actions.CancelOperation()
		s.actions.Wait()
	}
	if s.stopBridge != nil {
		s.stopBridge()
	}
	if s.bridge != nil {
		if err := s.bridge.Close(); err != nil {
			slog.Error("close browser bridge", "error", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			slog.Error("close recorder", "error", err)
		}
	}
	if h, ok := s.history.(*history.Store); ok {
		if err := h.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Error("close cache", "error", err)
		}
	}
	if s.stopTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.stopTelemetry(ctx); err != nil {
			slog.Error("shutdown telemetry", "error", err)
		}
	}
}

func (s *Service) setupTelemetry(addr string) {
	shutdown, err := telemetry.Setup(addr)
	if err != nil {
		slog.Error("init telemetry", "error", err)
		return
	}
	s.stopTelemetry = shutdown
}

func (s *Service) setupCache() {
	path := filepath.Join(s.dir, "cache")
	c, err := cache.New(path)
	if err != nil {
		slog.Error("init cache", "error", err)
		return
	}
	s.cache = c
	slog.Info("cache initialized", "path", path)
}

func (s *Service) setupHistory() {
	policy := func() history.Policy {
		st := s.store.Snapshot()
		return history.Policy{Period: st.RecordingRetentionPeriod, Limit: st.HistoryLimit}
	}
	h, err := history.Open(context.Background(), s.dir, policy)
	if err != nil {
		slog.Error("open history", "error", err)
		return
	}
	s.history = h
}

func (s *Service) setupBridge(settings config.Settings) {
	if !settings.BrowserBridgeEnabled {
		slog.Info("browser bridge disabled")
		return
	}
	b := bridge.New(settings.BrowserBridgeAddr)
	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Start(ctx); err != nil {
		cancel()
		slog.Warn("start browser bridge", "addr", settings.BrowserBridgeAddr, "error", err)
		return
	}
	s.bridge = b
	s.stopBridge = cancel
	slog.Info("browser bridge listening", "addr", b.Addr())
}

func (s *Service) setupHotkeys(settings config.Settings) {
	for _, b := range settings.Bindings {
		// The cancel binding is only live while a recording runs.
		if err := s.hotkeys.Set(b.ID, b.CurrentBinding, b.ID == BindingCancel); err != nil {
			slog.Error("set hotkey", "binding", b.ID, "error", err)
		}
	}

	s.hotkeys.SetStatusCallback(func(granted bool) {
		s.ui.Emit(EventAccessibilityPerm, granted)
		if granted {
			slog.Info("accessibility permission granted")
		} else {
			slog.Warn("accessibility permission denied")
		}
	})

	if err := s.hotkeys.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

// noRecorder stands in when no input device could be opened.
type noRecorder struct{}

func (noRecorder) TryStartRecording(string) bool  { return false }
func (noRecorder) StopRecording(string) []float32 { return nil }
func (noRecorder) Cancel()                        {}
func (noRecorder) ApplyMute()                     {}
func (noRecorder) RemoveMute()                    {}

var errHistoryUnavailable = errors.New("history unavailable")

// noHistory stands in when the history database could not be opened.
type noHistory struct{}

func (noHistory) Save(context.Context, []float32, string, *string, *string) (types.HistoryEntry, error) {
	return types.HistoryEntry{}, errHistoryUnavailable
}
func (noHistory) List(context.Context, int) ([]types.HistoryEntry, error) {
	return nil, errHistoryUnavailable
}
func (noHistory) Delete(context.Context, string) error { return errHistoryUnavailable }
func (noHistory) ToggleSaved(context.Context, string) (bool, error) {
	return false, errHistoryUnavailable
}
