// Package clipboard inserts text into the focused application through the
// system clipboard and a synthetic paste keystroke.
package clipboard

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"go.aimuz.me/murmur/config"
)

// Combo is a paste keystroke.
type Combo int

const (
	ComboPaste       Combo = iota // Ctrl+V, Cmd+V on macOS
	ComboShiftInsert              // Shift+Insert
	ComboCtrlShiftV               // Ctrl+Shift+V
)

// Clipboard reads and writes the system clipboard text.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// Keyboard sends a key combination to the focused window.
type Keyboard interface {
	Press(c Combo) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

var clipboardLock sync.Mutex

// Paster pastes transcripts according to the paste settings.
type Paster struct {
	settings func() config.Settings
	clip     Clipboard
	keys     Keyboard
	sleep    func(time.Duration)
}

// NewPaster creates a Paster using the system clipboard and keyboard.
func NewPaster(settings func() config.Settings) *Paster {
	return &Paster{
		settings: settings,
		clip:     systemClipboard{},
		keys:     newKeyboard(),
		sleep:    time.Sleep,
	}
}

// Paste inserts text into the focused application.
func (p *Paster) Paste(text string) error {
	s := p.settings()
	if s.AppendTrailingSpace {
		text += " "
	}
	keep := s.ClipboardHandling == config.ClipboardCopy

	clipboardLock.Lock()
	defer clipboardLock.Unlock()

	var combo Combo
	switch s.PasteMethod {
	case config.PasteNone:
		if keep {
			return p.clip.WriteAll(text)
		}
		return nil
	case config.PasteShiftInsert:
		combo = ComboShiftInsert
	case config.PasteCtrlShiftV:
		combo = ComboCtrlShiftV
	default:
		// Direct typing cannot produce arbitrary unicode through synthetic
		// key events, so it goes through the clipboard too.
		combo = ComboPaste
	}

	orig, err := p.clip.ReadAll()
	if err != nil {
		slog.Debug("read clipboard", "error", err)
	}
	if err := p.clip.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	p.sleep(80 * time.Millisecond)

	pressErr := p.keys.Press(combo)

	if !keep {
		// Give the target app time to read the clipboard before restoring.
		p.sleep(120 * time.Millisecond)
		if err := p.clip.WriteAll(orig); err != nil {
			slog.Warn("restore clipboard", "error", err)
		}
	}
	if pressErr != nil {
		return fmt.Errorf("send paste keystroke: %w", pressErr)
	}
	return nil
}

func isDarwin() bool { return runtime.GOOS == "darwin" }
