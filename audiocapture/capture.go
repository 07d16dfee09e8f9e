// Package audiocapture records microphone audio for a dictation session.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotRecording is returned when stopping a binding that is not recording.
var ErrNotRecording = errors.New("not recording")

// ErrAlreadyRecording is returned when a session is already active.
var ErrAlreadyRecording = errors.New("already recording")

// SampleRate is the capture rate expected by the transcription engines.
const SampleRate = 16000

// stream is an open input device delivering mono float32 samples.
type stream interface {
	Start() error
	Stop() error
	Close() error
}

// openFunc opens the input device; onSamples runs on the audio thread.
type openFunc func(sampleRate int, onSamples func([]float32)) (stream, error)

// Muter silences system output while recording.
type Muter interface {
	Mute() error
	Unmute() error
}

// Config holds configuration for the recorder.
type Config struct {
	SampleRate int           // default 16000 Hz
	MaxLength  time.Duration // samples past this are dropped, default 10 minutes

	// AlwaysOn keeps the input stream open between sessions.
	AlwaysOn func() bool
	// MuteWhileRecording enables ApplyMute.
	MuteWhileRecording func() bool
}

// Recorder captures one session at a time, keyed by binding id.
type Recorder struct {
	mu sync.Mutex

	sampleRate int
	maxSamples int
	cfg        Config
	open       openFunc
	muter      Muter

	stream  stream
	active  string // binding id of the current session, "" when idle
	samples []float32
	muted   bool
}

// New creates a recorder using the default input device.
func New(cfg Config) (*Recorder, error) {
	if err := initAudio(); err != nil {
		return nil, err
	}
	return newRecorder(cfg, openDefaultStream, systemMuter{}), nil
}

func newRecorder(cfg Config, open openFunc, muter Muter) *Recorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = SampleRate
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 10 * time.Minute
	}
	if cfg.AlwaysOn == nil {
		cfg.AlwaysOn = func() bool { return false }
	}
	if cfg.MuteWhileRecording == nil {
		cfg.MuteWhileRecording = func() bool { return false }
	}
	return &Recorder{
		sampleRate: cfg.SampleRate,
		maxSamples: int(cfg.MaxLength.Seconds()) * cfg.SampleRate,
		cfg:        cfg,
		open:       open,
		muter:      muter,
	}
}

// Start begins a session for bindingID.
func (r *Recorder) Start(bindingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" {
		return ErrAlreadyRecording
	}
	if err := r.ensureStream(); err != nil {
		return err
	}
	r.active = bindingID
	r.samples = make([]float32, 0, r.sampleRate*10)
	return nil
}

// TryStartRecording starts a session and reports whether it began.
func (r *Recorder) TryStartRecording(bindingID string) bool {
	if err := r.Start(bindingID); err != nil {
		slog.Error("start recording", "binding", bindingID, "error", err)
		return false
	}
	slog.Debug("recording started", "binding", bindingID)
	return true
}

// Stop ends the session for bindingID and returns its samples. The samples
// are handed over once; a second Stop returns ErrNotRecording.
func (r *Recorder) Stop(bindingID string) ([]float32, error) {
	r.mu.Lock()
	if r.active == "" || r.active != bindingID {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	samples := r.samples
	r.active = ""
	r.samples = nil
	s := r.detachStream()
	r.mu.Unlock()

	closeStream(s)
	return samples, nil
}

// StopRecording is Stop with failures logged; nil means no samples.
func (r *Recorder) StopRecording(bindingID string) []float32 {
	samples, err := r.Stop(bindingID)
	if err != nil {
		slog.Warn("stop recording", "binding", bindingID, "error", err)
		return nil
	}
	slog.Debug("recording stopped", "binding", bindingID, "samples", len(samples))
	return samples
}

// Cancel discards the current session, if any.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	if r.active == "" {
		r.mu.Unlock()
		return
	}
	slog.Info("recording canceled", "binding", r.active)
	r.active = ""
	r.samples = nil
	s := r.detachStream()
	r.mu.Unlock()

	closeStream(s)
}

// IsRecording reports whether a session is active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != ""
}

// ApplyMute silences output when mute-while-recording is enabled and a
// session is active.
func (r *Recorder) ApplyMute() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.muted || r.active == "" || !r.cfg.MuteWhileRecording() {
		return
	}
	if err := r.muter.Mute(); err != nil {
		slog.Warn("mute output", "error", err)
		return
	}
	r.muted = true
}

// RemoveMute restores output muted by ApplyMute.
func (r *Recorder) RemoveMute() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.muted {
		return
	}
	if err := r.muter.Unmute(); err != nil {
		slog.Warn("unmute output", "error", err)
	}
	r.muted = false
}

// Close stops capture and releases the device.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.active = ""
	r.samples = nil
	if r.muted {
		r.muter.Unmute()
		r.muted = false
	}
	s := r.stream
	r.stream = nil
	r.mu.Unlock()

	err := closeStream(s)
	terminateAudio()
	return err
}

// ensureStream opens and starts the input stream if it is not running.
// Caller holds r.mu.
func (r *Recorder) ensureStream() error {
	if r.stream != nil {
		return nil
	}
	s, err := r.open(r.sampleRate, r.handleSamples)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := s.Start(); err != nil {
		s.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	r.stream = s
	return nil
}

// detachStream hands back the stream for closing unless always-on mode
// keeps it. Caller holds r.mu and must close the result after unlocking,
// since stopping waits for the sample callback.
func (r *Recorder) detachStream() stream {
	if r.cfg.AlwaysOn() {
		return nil
	}
	s := r.stream
	r.stream = nil
	return s
}

func closeStream(s stream) error {
	if s == nil {
		return nil
	}
	err := s.Stop()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		slog.Warn("close input stream", "error", err)
	}
	return err
}

// handleSamples appends captured audio to the active session.
func (r *Recorder) handleSamples(in []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		return
	}
	if room := r.maxSamples - len(r.samples); room > 0 {
		r.samples = append(r.samples, in[:min(len(in), room)]...)
	}
}
