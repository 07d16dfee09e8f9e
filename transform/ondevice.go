package transform

import "context"

// OnDevice runs a prompt through a text model on the local machine.
type OnDevice interface {
	// Available reports whether this machine can run the model.
	Available() bool
	// Process returns the model output for prompt. tokenLimit 0 means no limit.
	Process(ctx context.Context, prompt string, tokenLimit int) (string, error)
}

type unavailableOnDevice struct{}

func (unavailableOnDevice) Available() bool { return false }

func (unavailableOnDevice) Process(context.Context, string, int) (string, error) {
	return "", ErrUnavailable
}
