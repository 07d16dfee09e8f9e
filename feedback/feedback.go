// Package feedback plays the start and stop sounds around a recording.
package feedback

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/go-audio/wav"

	"go.aimuz.me/murmur/config"
)

// Kind selects which sound to play.
type Kind int

const (
	Start Kind = iota
	Stop
)

func (k Kind) String() string {
	if k == Start {
		return "start"
	}
	return "stop"
}

//go:embed sounds/*.wav
var builtinSounds embed.FS

// output plays mono samples and returns when playback is done.
type output interface {
	Play(samples []float32, sampleRate int) error
}

type sound struct {
	samples []float32
	rate    int
}

// Player plays feedback sounds according to the current settings.
type Player struct {
	settings  func() config.Settings
	out       output
	customDir string
	beep      func() error

	playMu sync.Mutex // one sound at a time

	mu    sync.Mutex
	cache map[string]sound
}

// NewPlayer creates a player using the default output device. Custom sounds
// are read from customDir as custom_start.wav and custom_stop.wav.
func NewPlayer(settings func() config.Settings, customDir string) *Player {
	return newPlayer(settings, portaudioOutput{}, customDir)
}

func newPlayer(settings func() config.Settings, out output, customDir string) *Player {
	return &Player{
		settings:  settings,
		out:       out,
		customDir: customDir,
		beep:      func() error { return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration) },
		cache:     make(map[string]sound),
	}
}

// Play plays kind in the background.
func (p *Player) Play(kind Kind) {
	if !p.settings().AudioFeedback {
		return
	}
	go p.PlayBlocking(kind)
}

// PlayBlocking plays kind and returns when it finishes. It returns at once
// when feedback is disabled.
func (p *Player) PlayBlocking(kind Kind) {
	s := p.settings()
	if !s.AudioFeedback {
		return
	}

	snd, err := p.load(s.SoundTheme, kind)
	if err != nil {
		slog.Warn("load feedback sound", "theme", s.SoundTheme, "kind", kind, "error", err)
		p.fallback()
		return
	}

	samples := scale(snd.samples, s.AudioFeedbackVolume)
	p.playMu.Lock()
	defer p.playMu.Unlock()
	if err := p.out.Play(samples, snd.rate); err != nil {
		slog.Warn("play feedback sound", "kind", kind, "error", err)
		p.fallback()
	}
}

func (p *Player) fallback() {
	if err := p.beep(); err != nil {
		slog.Debug("beep", "error", err)
	}
}

func (p *Player) load(theme config.SoundTheme, kind Kind) (sound, error) {
	name := fmt.Sprintf("%s_%s.wav", theme, kind)

	p.mu.Lock()
	snd, ok := p.cache[name]
	p.mu.Unlock()
	if ok {
		return snd, nil
	}

	var data []byte
	var err error
	if theme == config.SoundCustom {
		data, err = os.ReadFile(filepath.Join(p.customDir, name))
	} else {
		data, err = builtinSounds.ReadFile("sounds/" + name)
	}
	if err != nil {
		return sound{}, err
	}

	snd, err = decode(bytes.NewReader(data))
	if err != nil {
		return sound{}, fmt.Errorf("decode %s: %w", name, err)
	}
	// Custom files may change on disk.
	if theme != config.SoundCustom {
		p.mu.Lock()
		p.cache[name] = snd
		p.mu.Unlock()
	}
	return snd, nil
}

func decode(r io.ReadSeeker) (sound, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return sound{}, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return sound{}, err
	}
	channels := max(buf.Format.NumChannels, 1)
	full := float32(int(1) << (max(int(dec.BitDepth), 8) - 1))
	out := make([]float32, len(buf.Data)/channels)
	for i := range out {
		out[i] = float32(buf.Data[i*channels]) / full
	}
	return sound{samples: out, rate: int(dec.SampleRate)}, nil
}

func scale(samples []float32, volume float64) []float32 {
	v := float32(min(max(volume, 0), 1))
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s * v
	}
	return out
}
