package stt

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes mono float32 samples as 16-bit PCM WAV.
func WriteWAV(ws io.WriteSeeker, samples []float32, rate int) error {
	enc := wav.NewEncoder(ws, rate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		s = min(max(s, -1), 1)
		data[i] = int(s * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// EncodeWAV returns the WAV encoding of samples.
func EncodeWAV(samples []float32, rate int) ([]byte, error) {
	ws := &memFile{}
	if err := WriteWAV(ws, samples, rate); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// DecodeWAV reads a PCM WAV file and returns mono float32 samples in [-1, 1]
// and the sample rate. Multi-channel input is averaged.
func DecodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read pcm: %w", err)
	}

	channels := max(buf.Format.NumChannels, 1)
	scale := float32(int(1) << (max(int(dec.BitDepth), 8) - 1))
	out := make([]float32, len(buf.Data)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		out[i] = float32(sum) / float32(channels) / scale
	}
	return out, int(dec.SampleRate), nil
}

// memFile is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
