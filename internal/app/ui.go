package app

import (
	"embed"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/murmur/internal/types"
)

//go:embed icons/*.png
var icons embed.FS

var tooltips = map[types.TrayState]string{
	types.TrayIdle:         "Murmur",
	types.TrayRecording:    "Murmur - recording",
	types.TrayTranscribing: "Murmur - transcribing",
}

// TrayIcon returns the tray image for a state.
func TrayIcon(state types.TrayState) []byte {
	data, err := icons.ReadFile("icons/" + string(state) + ".png")
	if err != nil {
		slog.Error("read tray icon", "state", state, "error", err)
	}
	return data
}

// WailsUI drives the tray icon and the recording overlay window.
type WailsUI struct {
	app     *application.App
	overlay application.Window
	tray    *application.SystemTray

	mu    sync.Mutex
	state types.TrayState
}

// NewWailsUI creates the UI adapter. overlay and tray may be nil.
func NewWailsUI(app *application.App, overlay application.Window, tray *application.SystemTray) *WailsUI {
	return &WailsUI{app: app, overlay: overlay, tray: tray, state: types.TrayIdle}
}

// State returns the last state set.
func (u *WailsUI) State() types.TrayState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// SetState updates the tray icon and shows the overlay while busy.
func (u *WailsUI) SetState(state types.TrayState) {
	u.mu.Lock()
	u.state = state
	u.mu.Unlock()

	u.OnUIThread(func() {
		if u.tray != nil {
			u.tray.SetIcon(TrayIcon(state))
			u.tray.SetTooltip(tooltips[state])
		}
		if u.overlay != nil {
			if state == types.TrayIdle {
				u.overlay.Hide()
			} else {
				// Show without focus so the paste lands in the user's app.
				u.overlay.Show()
			}
		}
	})
	u.Emit(EventTrayState, state)
}

// OnUIThread runs fn on the main thread and waits for it.
func (u *WailsUI) OnUIThread(fn func()) {
	if u.app == nil {
		fn()
		return
	}
	application.InvokeSync(fn)
}

// Emit sends an event to the frontend.
func (u *WailsUI) Emit(name string, data any) {
	if u.app != nil {
		u.app.Event.Emit(name, data)
	}
}
