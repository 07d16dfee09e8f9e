package clipboard

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

type keybdKeyboard struct {
	bonding func() (*keybd_event.KeyBonding, error)
	mu      sync.Mutex
}

func newKeyboard() *keybdKeyboard {
	return &keybdKeyboard{
		bonding: sync.OnceValues(func() (*keybd_event.KeyBonding, error) {
			kb, err := keybd_event.NewKeyBonding()
			if err != nil {
				return nil, err
			}
			// The uinput device needs time to register on linux.
			if runtime.GOOS == "linux" {
				time.Sleep(2 * time.Second)
			}
			return &kb, nil
		}),
	}
}

func (k *keybdKeyboard) Press(c Combo) error {
	kb, err := k.bonding()
	if err != nil {
		return fmt.Errorf("init keyboard: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	kb.Clear()
	switch c {
	case ComboShiftInsert:
		kb.HasSHIFT(true)
		kb.SetKeys(keybd_event.VK_INSERT)
	case ComboCtrlShiftV:
		kb.HasCTRL(true)
		kb.HasSHIFT(true)
		kb.SetKeys(keybd_event.VK_V)
	default:
		if isDarwin() {
			kb.HasSuper(true)
		} else {
			kb.HasCTRL(true)
		}
		kb.SetKeys(keybd_event.VK_V)
	}
	return kb.Launching()
}
