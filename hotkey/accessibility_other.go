//go:build !darwin

package hotkey

// IsAccessibilityEnabled always reports true outside macOS.
func IsAccessibilityEnabled(prompt bool) bool {
	return true
}
