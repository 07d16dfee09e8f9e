//go:build !darwin && !linux && !windows

package focus

type unavailableDetector struct{}

// NewDetector returns the detector for this platform.
func NewDetector() WindowDetector { return unavailableDetector{} }

func (unavailableDetector) Foreground() (Window, error) {
	return Window{}, ErrUnavailable
}
