package audiocapture

import (
	"math"
	"time"
)

// Silence trimming parameters.
const (
	vadFrame     = 30 * time.Millisecond
	vadPadding   = 200 * time.Millisecond
	vadThreshold = 0.01 // RMS below this is silence
)

// TrimSilence drops leading and trailing silence, keeping a short pad around
// the speech. It returns nil when no frame crosses the speech threshold.
func TrimSilence(samples []float32, sampleRate int) []float32 {
	frame := max(1, samplesFor(vadFrame, sampleRate))

	first, last := -1, -1
	for start := 0; start < len(samples); start += frame {
		end := min(start+frame, len(samples))
		if calculateRMS(samples[start:end]) > vadThreshold {
			if first == -1 {
				first = start
			}
			last = end
		}
	}
	if first == -1 {
		return nil
	}

	pad := samplesFor(vadPadding, sampleRate)
	return samples[max(0, first-pad):min(len(samples), last+pad)]
}

func samplesFor(d time.Duration, sampleRate int) int {
	return int(time.Duration(sampleRate) * d / time.Second)
}

// calculateRMS calculates the root mean square of audio samples.
func calculateRMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
