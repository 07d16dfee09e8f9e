package audiocapture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

func initAudio() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	return nil
}

func terminateAudio() {
	portaudio.Terminate()
}

// openDefaultStream opens the default input device as a mono float32 stream.
func openDefaultStream(sampleRate int, onSamples func([]float32)) (stream, error) {
	s, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), 0, func(in []float32) {
		onSamples(in)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
