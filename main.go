package main

import (
	"embed"
	"log/slog"
	"path/filepath"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/app"
	"go.aimuz.me/murmur/internal/logging"
	"go.aimuz.me/murmur/internal/types"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	store, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		store = config.NewMemoryStore(config.Defaults())
	}
	settings := store.Snapshot()

	var logDir string
	if dir, err := config.Dir(); err == nil {
		logDir = filepath.Join(dir, "logs")
	}
	logs := logging.Setup(logging.Config{Dir: logDir, Level: settings.LogLevel, Format: settings.LogFormat})
	defer logs.Close()

	slog.Info("starting app", "version", version, "commit", commit, "date", date)
	svc := app.New(version, store)

	wapp := application.New(application.Options{
		Name:        "Murmur",
		Description: "Hotkey voice dictation",
		Services: []application.Service{
			application.NewService(svc),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			ActivationPolicy: application.ActivationPolicyAccessory,
			// Don't quit when the overlay hides (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	// Recording overlay, shown while busy
	overlay := wapp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:           "overlay",
		Title:          "Murmur",
		Width:          260,
		Height:         56,
		URL:            "/",
		Frameless:      true,
		AlwaysOnTop:    true,
		Hidden:         true,
		DisableResize:  true,
		BackgroundType: application.BackgroundTypeTransparent,
		Mac: application.MacWindow{
			Backdrop: application.MacBackdropTransparent,
		},
	})

	tray := wapp.SystemTray.New()
	tray.SetIcon(app.TrayIcon(types.TrayIdle))

	menu := wapp.NewMenu()
	menu.AddCheckbox("Push to talk", settings.PushToTalk).OnClick(func(ctx *application.Context) {
		on := ctx.ClickedMenuItem().Checked()
		if err := store.Update(func(s *config.Settings) error {
			s.PushToTalk = on
			return nil
		}); err != nil {
			slog.Error("save push to talk", "error", err)
		}
	})
	menu.AddCheckbox("Post-process with LLM", settings.PostProcessEnabled).OnClick(func(ctx *application.Context) {
		on := ctx.ClickedMenuItem().Checked()
		if err := store.Update(func(s *config.Settings) error {
			s.PostProcessEnabled = on
			return nil
		}); err != nil {
			slog.Error("save post-process toggle", "error", err)
		}
	})
	menu.Add("Cancel").OnClick(func(ctx *application.Context) {
		svc.CancelOperation()
	})
	menu.AddSeparator()
	menu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			svc.Shutdown()
			wapp.Quit()
		})
	tray.SetMenu(menu)

	svc.Init(wapp, overlay, tray)

	if err := wapp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}
