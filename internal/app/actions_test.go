package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"go.aimuz.me/murmur/audiocapture"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/transform"
)

func TestTranscribeSuccess(t *testing.T) {
	h := newHarness(t, nil)
	h.dictate(BindingTranscribe)

	h.log.assertOrder(t,
		"ui:recording", "record:start", "register:cancel",
		"unregister:cancel", "ui:transcribing", "unmute", "play:stop",
		"record:stop", "transcribe:local", "rewrite", "ui-thread", "paste", "ui:idle",
	)
	if len(h.paster.pasted) != 1 || h.paster.pasted[0] != "Hello, world." {
		t.Errorf("pasted = %q, want %q", h.paster.pasted, "Hello, world.")
	}
	if h.completer.prompt != "Fix: hello world" {
		t.Errorf("prompt = %q, want %q", h.completer.prompt, "Fix: hello world")
	}
	if len(h.history.saved) != 1 {
		t.Fatalf("saved %d entries, want 1", len(h.history.saved))
	}
	e := h.history.saved[0]
	if e.raw != "hello world" {
		t.Errorf("raw = %q, want %q", e.raw, "hello world")
	}
	if e.processed == nil || *e.processed != "Hello, world." {
		t.Errorf("processed = %v, want %q", e.processed, "Hello, world.")
	}
	if e.promptUsed == nil || *e.promptUsed != "Fix: ${output}" {
		t.Errorf("promptUsed = %v, want template", e.promptUsed)
	}
	if h.local.loads.Load() == 0 {
		t.Error("local model was not warmed")
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestHistoryKeepsUntrimmedRecording(t *testing.T) {
	h := newHarness(t, nil)
	silence := make([]float32, audiocapture.SampleRate)
	speech := make([]float32, audiocapture.SampleRate/2)
	for i := range speech {
		speech[i] = 0.5
	}
	recording := append(append(append([]float32{}, silence...), speech...), silence...)
	h.recorder.samples = recording

	h.dictate(BindingTranscribe)

	if len(h.history.saved) != 1 {
		t.Fatalf("saved %d entries, want 1", len(h.history.saved))
	}
	if got := h.history.saved[0].samples; got != len(recording) {
		t.Errorf("history samples = %d, want %d", got, len(recording))
	}
	if h.local.heard == 0 || h.local.heard >= len(recording) {
		t.Errorf("transcribed samples = %d, want trimmed clip shorter than %d", h.local.heard, len(recording))
	}
}

func TestStopAlwaysReturnsToIdle(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		wantPaste bool
		wantSaved bool
		wantNote  bool
	}{
		{
			name:  "no samples",
			setup: func(h *harness) { h.recorder.samples = nil },
		},
		{
			name:     "transcription error",
			setup:    func(h *harness) { h.local.err = errors.New("Request timed out - please try again") },
			wantNote: true,
		},
		{
			name:  "empty transcript",
			setup: func(h *harness) { h.local.text = "   " },
		},
		{
			name:      "paste error",
			setup:     func(h *harness) { h.paster.err = errors.New("no focus") },
			wantPaste: true,
			wantSaved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.setup(h)
			h.dictate(BindingTranscribe)

			h.assertFinished(t, BindingTranscribe)
			if got := h.log.has("paste"); got != tt.wantPaste {
				t.Errorf("pasted = %v, want %v", got, tt.wantPaste)
			}
			if got := len(h.history.saved) == 1; got != tt.wantSaved {
				t.Errorf("saved = %v, want %v", got, tt.wantSaved)
			}
			if got := len(h.notices) == 1; got != tt.wantNote {
				t.Errorf("notified = %v, want %v (%q)", got, tt.wantNote, h.notices)
			}
		})
	}
}

func TestNotificationCarriesMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.local.err = errors.New("Invalid API key - please check your settings")
	h.dictate(BindingTranscribe)

	if len(h.notices) != 1 || !strings.Contains(h.notices[0], "Invalid API key") {
		t.Errorf("notices = %q", h.notices)
	}
}

func TestRewriteFailOpen(t *testing.T) {
	h := newHarness(t, nil)
	h.completer.err = errors.New("502 bad gateway")
	h.dictate(BindingTranscribe)

	if len(h.paster.pasted) != 1 || h.paster.pasted[0] != "hello world" {
		t.Errorf("pasted = %q, want raw text", h.paster.pasted)
	}
	if e := h.history.saved[0]; e.processed != nil || e.promptUsed != nil {
		t.Errorf("processed = %v, promptUsed = %v, want nil", e.processed, e.promptUsed)
	}
}

func TestConvertedTextRecordedAsProcessed(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) {
		s.PostProcessEnabled = false
		s.SelectedLanguage = transform.LangTraditional
	})
	h.local.text = "简体中文转换"
	h.dictate(BindingTranscribe)

	if len(h.paster.pasted) != 1 {
		t.Fatalf("pasted = %q", h.paster.pasted)
	}
	pasted := h.paster.pasted[0]
	if pasted == h.local.text {
		t.Errorf("pasted text was not converted: %q", pasted)
	}
	e := h.history.saved[0]
	if e.raw != h.local.text {
		t.Errorf("raw = %q, want %q", e.raw, h.local.text)
	}
	if e.processed == nil || *e.processed != pasted {
		t.Errorf("processed = %v, want %q", e.processed, pasted)
	}
	if h.log.has("rewrite") {
		t.Error("rewrite ran with post-processing disabled")
	}
}

func TestCloudTranscription(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) {
		provider := "openai"
		s.CloudSTTEnabled = true
		s.CloudSTTProvider = &provider
		s.CloudSTTAPIKeys = map[string]string{"openai": "sk-test"}
		s.CloudSTTModels = map[string]string{"openai": "gpt-4o-transcribe"}
		s.SelectedLanguage = "auto"
	})
	h.dictate(BindingTranscribe)

	if h.log.has("transcribe:local") {
		t.Error("local engine used with cloud enabled")
	}
	if h.local.loads.Load() != 0 {
		t.Error("local model warmed with cloud enabled")
	}
	if h.cloud.provider != "openai" || h.cloud.key != "sk-test" || h.cloud.model != "gpt-4o-transcribe" {
		t.Errorf("cloud request = %s/%s/%s", h.cloud.provider, h.cloud.key, h.cloud.model)
	}
	if h.cloud.language != "" {
		t.Errorf("language = %q, want empty for auto", h.cloud.language)
	}
	if h.completer.prompt != "Fix: cloud text" {
		t.Errorf("prompt = %q", h.completer.prompt)
	}
}

func TestCloudMissingKey(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) {
		provider := "gemini"
		s.CloudSTTEnabled = true
		s.CloudSTTProvider = &provider
		s.CloudSTTAPIKeys = map[string]string{}
	})
	h.dictate(BindingTranscribe)

	if h.log.has("transcribe:cloud") || h.log.has("paste") {
		t.Errorf("events = %v", h.log.list())
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestTranscribeWithContext(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.Resolver = mockResolver{ctx: types.DetectedContext{
		Source:       types.SourceBrowserExtension,
		AppID:        "gmail",
		AppName:      "Gmail",
		ContextStyle: "email_pro",
		Confidence:   0.98,
	}}
	h.dictate(BindingTranscribeWithContext)

	h.log.assertOrder(t, "record:stop", "emit:"+EventContextDetected, "transcribe:local", "rewrite", "paste")
	dc, _ := h.ui.emitted[EventContextDetected].(types.DetectedContext)
	if dc.AppID != "gmail" {
		t.Errorf("emitted context = %+v", dc)
	}

	s := h.store.Snapshot()
	want, _ := s.ContextStylePrompt("email_pro")
	e := h.history.saved[0]
	if e.promptUsed == nil || *e.promptUsed != want.Prompt {
		t.Errorf("promptUsed = %v, want email_pro prompt", e.promptUsed)
	}
	if strings.Contains(h.completer.prompt, "Fix:") {
		t.Errorf("global prompt used: %q", h.completer.prompt)
	}
	h.assertFinished(t, BindingTranscribeWithContext)
}

func TestTranscribeWithContextFallsBackToGlobalPrompt(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.Resolver = mockResolver{ctx: types.DetectedContext{
		Source:       types.SourceOS,
		AppID:        "mystery",
		ContextStyle: "no_such_style",
		Confidence:   1,
	}}
	h.dictate(BindingTranscribeWithContext)

	if h.completer.prompt != "Fix: hello world" {
		t.Errorf("prompt = %q, want global prompt", h.completer.prompt)
	}
}

func TestOnDemandStartOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.actions.Wait()

	h.log.assertOrder(t, "ui:recording", "record:start", "cue:start", "mute")
	h.log.assertOrder(t, "record:start", "register:cancel")
	if h.ui.current() != types.TrayRecording {
		t.Errorf("tray state = %q, want recording", h.ui.current())
	}
	if !h.actions.Toggles.Get(BindingTranscribe) {
		t.Error("toggle not set while recording")
	}
}

func TestOnDemandStartFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.recorder.startOK = false
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.actions.Wait()

	for _, e := range []string{"cue:start", "mute", "register:cancel"} {
		if h.log.has(e) {
			t.Errorf("unexpected %q after failed start: %v", e, h.log.list())
		}
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestAlwaysOnStartOrder(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.AlwaysOnMicrophone = true })
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.actions.Wait()

	h.log.assertOrder(t, "cue:start", "mute")
	h.log.assertOrder(t, "record:start", "register:cancel")
}

func TestCancelDuringTranscription(t *testing.T) {
	h := newHarness(t, nil)
	h.local.block = true

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", false)

	deadline := time.Now().Add(2 * time.Second)
	for !h.log.has("transcribe:local") {
		if time.Now().After(deadline) {
			t.Fatal("transcription never started")
		}
		time.Sleep(time.Millisecond)
	}

	h.registry.Dispatch(BindingCancel, "escape", true)
	h.registry.Dispatch(BindingCancel, "escape", false)
	h.actions.Wait()

	h.log.assertOrder(t, "record:cancel", "unregister:cancel", "unmute", "ui:idle")
	if h.log.has("paste") || len(h.history.saved) != 0 {
		t.Errorf("cancelled run reached paste: %v", h.log.list())
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestToggleMode(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.PushToTalk = false })

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", false)
	h.actions.Wait()
	if h.log.has("record:stop") {
		t.Fatal("release stopped the recording in toggle mode")
	}
	if !h.actions.Toggles.Get(BindingTranscribe) {
		t.Fatal("toggle not set after first press")
	}

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.actions.Wait()
	if !h.log.has("paste") {
		t.Errorf("second press did not finish dictation: %v", h.log.list())
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestPushToTalkReleaseAfterCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.registry.Dispatch(BindingCancel, "escape", true)
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", false)
	h.actions.Wait()

	if h.log.has("record:stop") {
		t.Errorf("release after cancel ran the stop path: %v", h.log.list())
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestPushToTalkPressDuringTranscription(t *testing.T) {
	h := newHarness(t, nil)
	h.local.gate = make(chan struct{})

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", false)
	h.waitForEvent(t, "transcribe:local")

	// Second dictation starts while the first is still transcribing.
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	close(h.local.gate)
	h.actions.Wait()

	if !h.actions.Toggles.Get(BindingTranscribe) {
		t.Fatal("finished run cleared the binding of the newer recording")
	}
	if st := h.ui.current(); st != types.TrayRecording {
		t.Errorf("tray state = %q while recording, want %q", st, types.TrayRecording)
	}

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", false)
	h.actions.Wait()

	if n := h.count("record:stop"); n != 2 {
		t.Errorf("record:stop count = %d, want 2: %v", n, h.log.list())
	}
	if n := h.count("paste"); n != 2 {
		t.Errorf("paste count = %d, want 2", n)
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestToggleModePressDuringTranscription(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.PushToTalk = false })
	h.local.gate = make(chan struct{})

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.waitForEvent(t, "transcribe:local")

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	close(h.local.gate)
	h.actions.Wait()

	if !h.actions.Toggles.Get(BindingTranscribe) {
		t.Fatal("finished run cleared the binding of the newer recording")
	}

	h.registry.Dispatch(BindingTranscribe, "ctrl+space", true)
	h.actions.Wait()

	if n := h.count("record:stop"); n != 2 {
		t.Errorf("record:stop count = %d, want 2: %v", n, h.log.list())
	}
	h.assertFinished(t, BindingTranscribe)
}

func TestDiagnosticAndUnknownBindings(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.Dispatch(BindingTest, "ctrl+t", true)
	h.registry.Dispatch(BindingTest, "ctrl+t", false)
	h.registry.Dispatch("nope", "ctrl+n", true)
	h.actions.Wait()

	if got := h.log.list(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestPipelineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	h := newHarness(t, nil)
	h.actions.metrics = newPipelineMetrics(provider.Meter("test"))
	h.dictate(BindingTranscribe)
	h.recorder.samples = nil
	h.dictate(BindingTranscribe)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	counts := map[string]int64{}
	var stops uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					for _, kv := range dp.Attributes.ToSlice() {
						counts[m.Name+"/"+kv.Value.AsString()] += dp.Value
					}
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					stops += dp.Count
				}
			}
		}
	}

	want := map[string]int64{
		"murmur.transcriptions/ok":         1,
		"murmur.transcriptions/no_samples": 1,
		"murmur.postprocess/rewritten":     1,
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("%s = %d, want %d", k, counts[k], v)
		}
	}
	if stops != 2 {
		t.Errorf("stop_duration count = %d, want 2", stops)
	}
}
