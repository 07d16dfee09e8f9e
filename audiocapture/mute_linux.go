package audiocapture

import "os/exec"

type systemMuter struct{}

func (systemMuter) Mute() error {
	return exec.Command("pactl", "set-sink-mute", "@DEFAULT_SINK@", "1").Run()
}

func (systemMuter) Unmute() error {
	return exec.Command("pactl", "set-sink-mute", "@DEFAULT_SINK@", "0").Run()
}
