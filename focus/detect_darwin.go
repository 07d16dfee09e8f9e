package focus

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const frontWindowScript = `
tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set windowTitle to ""
	try
		set windowTitle to name of front window of frontApp
	end try
	return appName & "|||" & windowTitle
end tell`

type osascriptDetector struct{}

// NewDetector returns the detector for this platform.
func NewDetector() WindowDetector { return osascriptDetector{} }

func (osascriptDetector) Foreground() (Window, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "osascript", "-e", frontWindowScript).Output()
	if err != nil {
		return Window{}, fmt.Errorf("osascript: %w", err)
	}
	return parseOSAScript(string(out)), nil
}

func parseOSAScript(out string) Window {
	name, title, _ := strings.Cut(strings.TrimSpace(out), "|||")
	return Window{ProcessName: name, Title: title}
}
