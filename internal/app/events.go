package app

// Event names for frontend communication.
const (
	EventTrayState         = "tray-state"
	EventContextDetected   = "context-detected"
	EventModelProgress     = "model-download-progress"
	EventAccessibilityPerm = "accessibility-permission"
)
