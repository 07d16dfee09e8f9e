package feedback

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

// portaudioOutput plays through the default output device.
type portaudioOutput struct{}

func (portaudioOutput) Play(samples []float32, sampleRate int) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	out := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	for off := 0; off < len(samples); off += len(out) {
		n := copy(out, samples[off:])
		clear(out[n:])
		if err := stream.Write(); err != nil {
			stream.Stop()
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return stream.Stop()
}
