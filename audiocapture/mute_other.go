//go:build !darwin && !linux

package audiocapture

type systemMuter struct{}

func (systemMuter) Mute() error   { return nil }
func (systemMuter) Unmute() error { return nil }
