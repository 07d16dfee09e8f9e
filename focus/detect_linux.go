package focus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

type xdotoolDetector struct{}

// NewDetector returns the detector for this platform.
func NewDetector() WindowDetector { return xdotoolDetector{} }

func (xdotoolDetector) Foreground() (Window, error) {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return Window{}, fmt.Errorf("%w: xdotool not installed", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var w Window
	if out, err := exec.CommandContext(ctx, "xdotool", "getactivewindow", "getwindowname").Output(); err == nil {
		w.Title = strings.TrimSpace(string(out))
	}
	if out, err := exec.CommandContext(ctx, "xdotool", "getactivewindow", "getwindowpid").Output(); err == nil {
		pid := strings.TrimSpace(string(out))
		if comm, err := os.ReadFile("/proc/" + pid + "/comm"); err == nil {
			w.ProcessName = strings.TrimSpace(string(comm))
		}
	}
	if w.ProcessName == "" && w.Title == "" {
		return Window{}, errors.New("no active window")
	}
	return w, nil
}
