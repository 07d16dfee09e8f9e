package audiocapture

import "os/exec"

type systemMuter struct{}

func (systemMuter) Mute() error {
	return exec.Command("osascript", "-e", "set volume output muted true").Run()
}

func (systemMuter) Unmute() error {
	return exec.Command("osascript", "-e", "set volume output muted false").Run()
}
