package audiocapture

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStream struct {
	mu        sync.Mutex
	onSamples func([]float32)
	started   bool
	closed    bool
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *fakeStream) Stop() error { return nil }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) feed(samples ...float32) { s.onSamples(samples) }

type fakeDevice struct {
	opened  []*fakeStream
	openErr error
}

func (d *fakeDevice) open(_ int, onSamples func([]float32)) (stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{onSamples: onSamples}
	d.opened = append(d.opened, s)
	return s, nil
}

func (d *fakeDevice) last() *fakeStream { return d.opened[len(d.opened)-1] }

type fakeMuter struct{ mutes, unmutes int }

func (m *fakeMuter) Mute() error {
	m.mutes++
	return nil
}

func (m *fakeMuter) Unmute() error {
	m.unmutes++
	return nil
}

func boolFunc(v bool) func() bool { return func() bool { return v } }

func TestRecordSession(t *testing.T) {
	dev := &fakeDevice{}
	r := newRecorder(Config{}, dev.open, &fakeMuter{})

	if !r.TryStartRecording("transcribe") {
		t.Fatal("TryStartRecording = false")
	}
	if r.TryStartRecording("transcribe_with_context") {
		t.Error("second session started while recording")
	}
	if _, err := r.Stop("other"); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop(other) err = %v, want ErrNotRecording", err)
	}

	dev.last().feed(0.1, 0.2)
	dev.last().feed(0.3)

	got := r.StopRecording("transcribe")
	if len(got) != 3 || got[2] != 0.3 {
		t.Errorf("samples = %v, want [0.1 0.2 0.3]", got)
	}
	if !dev.last().closed {
		t.Error("on-demand stream not closed after stop")
	}
	if again := r.StopRecording("transcribe"); again != nil {
		t.Errorf("second StopRecording = %v, want nil", again)
	}
}

func TestSamplesIgnoredWhileIdle(t *testing.T) {
	dev := &fakeDevice{}
	r := newRecorder(Config{AlwaysOn: boolFunc(true)}, dev.open, &fakeMuter{})

	r.TryStartRecording("a")
	s := dev.last()
	r.StopRecording("a")
	if s.closed {
		t.Fatal("always-on stream closed between sessions")
	}
	s.feed(1, 1, 1)

	r.TryStartRecording("a")
	if len(dev.opened) != 1 {
		t.Errorf("opened %d streams, want 1", len(dev.opened))
	}
	s.feed(0.5)
	if got := r.StopRecording("a"); len(got) != 1 {
		t.Errorf("samples = %v, want one sample", got)
	}
}

func TestMaxLength(t *testing.T) {
	dev := &fakeDevice{}
	r := newRecorder(Config{SampleRate: 2, MaxLength: 2 * time.Second}, dev.open, &fakeMuter{})
	r.TryStartRecording("a")
	dev.last().feed(1, 2, 3, 4, 5, 6)
	if got := r.StopRecording("a"); len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestCancel(t *testing.T) {
	dev := &fakeDevice{}
	r := newRecorder(Config{}, dev.open, &fakeMuter{})
	r.TryStartRecording("a")
	dev.last().feed(0.1)

	r.Cancel()
	if r.IsRecording() {
		t.Error("still recording after Cancel")
	}
	if got := r.StopRecording("a"); got != nil {
		t.Errorf("StopRecording after Cancel = %v, want nil", got)
	}
	r.Cancel()
}

func TestOpenFailure(t *testing.T) {
	dev := &fakeDevice{openErr: errors.New("no device")}
	r := newRecorder(Config{}, dev.open, &fakeMuter{})
	if r.TryStartRecording("a") {
		t.Error("TryStartRecording = true without a device")
	}
	if r.IsRecording() {
		t.Error("IsRecording after failed start")
	}
}

func TestMute(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		recording bool
		wantMutes int
	}{
		{"disabled", false, true, 0},
		{"idle", true, false, 0},
		{"recording", true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{}
			m := &fakeMuter{}
			r := newRecorder(Config{MuteWhileRecording: boolFunc(tt.enabled)}, dev.open, m)
			if tt.recording {
				r.TryStartRecording("a")
			}
			r.ApplyMute()
			r.ApplyMute()
			if m.mutes != tt.wantMutes {
				t.Errorf("mutes = %d, want %d", m.mutes, tt.wantMutes)
			}
			r.RemoveMute()
			r.RemoveMute()
			if m.unmutes != tt.wantMutes {
				t.Errorf("unmutes = %d, want %d", m.unmutes, tt.wantMutes)
			}
		})
	}
}
