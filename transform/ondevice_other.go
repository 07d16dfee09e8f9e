//go:build !(darwin && arm64)

package transform

// NewOnDevice returns a processor that is never available on this platform.
func NewOnDevice() OnDevice {
	return unavailableOnDevice{}
}
