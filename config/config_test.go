package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.aimuz.me/murmur/internal/types"
)

func TestBuiltinPromptsContainOutput(t *testing.T) {
	prompts := DefaultContextStylePrompts()
	want := []string{"email_pro", "chat", "code", "notes", "ai_assistant", "social_pro", "social_casual", "correction", "dev_tools"}
	if len(prompts) != len(want) {
		t.Fatalf("got %d builtin prompts, want %d", len(prompts), len(want))
	}
	for i, p := range prompts {
		if p.ID != want[i] {
			t.Errorf("prompt[%d].ID = %q, want %q", i, p.ID, want[i])
		}
		if !p.IsBuiltin {
			t.Errorf("prompt %q not marked builtin", p.ID)
		}
		if !strings.Contains(p.Prompt, "${output}") {
			t.Errorf("prompt %q missing ${output}", p.ID)
		}
	}

	generic := defaultPostProcessPrompts()
	if len(generic) != 1 || generic[0].ID != DefaultPromptID {
		t.Fatalf("default post-process prompts = %+v", generic)
	}
}

func TestOpenMissingFileReturnsDefaults(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := st.Snapshot()
	if s.SelectedLanguage != "auto" {
		t.Errorf("SelectedLanguage = %q, want %q", s.SelectedLanguage, "auto")
	}
	if !s.PostProcessEnabled {
		t.Error("PostProcessEnabled = false, want true")
	}
	if s.PostProcessProviderID != "gemini" {
		t.Errorf("PostProcessProviderID = %q, want %q", s.PostProcessProviderID, "gemini")
	}
	if got := s.PostProcessModels["openai"]; got != "gpt-4o-mini" {
		t.Errorf("openai model = %q, want %q", got, "gpt-4o-mini")
	}
	if got := s.CloudSTTModels["gemini"]; got != "gemini-2.0-flash" {
		t.Errorf("gemini stt model = %q, want %q", got, "gemini-2.0-flash")
	}
	if s.PostProcessSelectedPromptID == nil || *s.PostProcessSelectedPromptID != DefaultPromptID {
		t.Errorf("selected prompt = %v, want %q", s.PostProcessSelectedPromptID, DefaultPromptID)
	}
	if _, ok := s.Binding(BindingCancel); !ok {
		t.Error("cancel binding missing")
	}
}

func TestOpenFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := map[string]any{
		"selected_language":     "zh-Hans",
		"audio_feedback_volume": 3.5,
		"history_limit":         0,
		"paste_method":          "telepathy",
		"context_style_prompts": []types.ContextStylePrompt{
			{ID: "custom_style", Name: "Custom", Prompt: "x ${output}"},
		},
	}
	data, _ := json.Marshal(partial)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := st.Snapshot()

	if s.SelectedLanguage != "zh-Hans" {
		t.Errorf("SelectedLanguage = %q, want %q", s.SelectedLanguage, "zh-Hans")
	}
	if s.AudioFeedbackVolume != 1 {
		t.Errorf("AudioFeedbackVolume = %v, want 1", s.AudioFeedbackVolume)
	}
	if s.HistoryLimit != 5 {
		t.Errorf("HistoryLimit = %d, want 5", s.HistoryLimit)
	}
	if s.PasteMethod != defaultPasteMethod() {
		t.Errorf("PasteMethod = %q, want %q", s.PasteMethod, defaultPasteMethod())
	}
	if _, ok := s.ContextStylePrompt("custom_style"); !ok {
		t.Error("custom style lost")
	}
	if _, ok := s.ContextStylePrompt("email_pro"); !ok {
		t.Error("builtin email_pro not restored")
	}

	// Defaults were written back.
	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reloaded.Snapshot().ContextStylePrompt("correction"); !ok {
		t.Error("builtin correction not persisted")
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	st := NewMemoryStore(Defaults())
	s := st.Snapshot()
	s.PostProcessAPIKeys["openai"] = "leak"
	s.ContextStylePrompts[0].Prompt = "changed"

	again := st.Snapshot()
	if again.PostProcessAPIKeys["openai"] != "" {
		t.Error("snapshot map aliases store")
	}
	if again.ContextStylePrompts[0].Prompt == "changed" {
		t.Error("snapshot slice aliases store")
	}
}

func TestContextStylePromptCRUD(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	custom := types.ContextStylePrompt{ID: "pirate", Name: "Pirate", Prompt: "Arr: ${output}"}
	if err := st.AddContextStylePrompt(custom); err != nil {
		t.Fatalf("AddContextStylePrompt: %v", err)
	}
	if err := st.AddContextStylePrompt(custom); !errors.Is(err, ErrDuplicatePrompt) {
		t.Errorf("duplicate add error = %v, want ErrDuplicatePrompt", err)
	}
	if err := st.AddContextStylePrompt(types.ContextStylePrompt{ID: "bad", Prompt: "no var"}); !errors.Is(err, ErrMissingOutputVar) {
		t.Errorf("add without ${output} error = %v, want ErrMissingOutputVar", err)
	}

	edited := types.ContextStylePrompt{ID: "chat", Name: "Chat", Prompt: "short: ${output}", IsBuiltin: false}
	if err := st.UpdateContextStylePrompt(edited); err != nil {
		t.Fatalf("UpdateContextStylePrompt: %v", err)
	}
	got, _ := st.Snapshot().ContextStylePrompt("chat")
	if got.Prompt != "short: ${output}" || !got.IsBuiltin {
		t.Errorf("updated chat = %+v, want edited prompt with builtin flag kept", got)
	}

	if err := st.ResetContextStylePrompt("chat"); err != nil {
		t.Fatalf("ResetContextStylePrompt: %v", err)
	}
	def, _ := DefaultContextStylePrompt("chat")
	got, _ = st.Snapshot().ContextStylePrompt("chat")
	if got.Prompt != def.Prompt {
		t.Error("reset did not restore default prompt")
	}
	if err := st.ResetContextStylePrompt("pirate"); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("reset custom error = %v, want ErrPromptNotFound", err)
	}

	if err := st.DeleteContextStylePrompt("chat"); !errors.Is(err, ErrBuiltinPrompt) {
		t.Errorf("delete builtin error = %v, want ErrBuiltinPrompt", err)
	}
	if err := st.DeleteContextStylePrompt("pirate"); err != nil {
		t.Fatalf("DeleteContextStylePrompt: %v", err)
	}
	if _, ok := st.Snapshot().ContextStylePrompt("pirate"); ok {
		t.Error("pirate still present after delete")
	}
}

func TestContextMappingUpsert(t *testing.T) {
	st := NewMemoryStore(Defaults())

	if err := st.UpdateContextMapping("slack", "email_pro"); err != nil {
		t.Fatalf("UpdateContextMapping: %v", err)
	}
	if err := st.UpdateContextMapping("slack", "notes"); err != nil {
		t.Fatalf("UpdateContextMapping: %v", err)
	}
	s := st.Snapshot()
	if len(s.ContextMappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(s.ContextMappings))
	}
	if style, _ := s.ContextOverride("slack"); style != "notes" {
		t.Errorf("slack override = %q, want %q", style, "notes")
	}

	if err := st.UpdateContextMapping("slack", "nope"); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("unknown style error = %v, want ErrPromptNotFound", err)
	}
	if err := st.DeleteContextMapping("slack"); err != nil {
		t.Fatalf("DeleteContextMapping: %v", err)
	}
	if err := st.DeleteContextMapping("slack"); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("second delete error = %v, want ErrMappingNotFound", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	st := NewMemoryStore(Defaults())
	boom := errors.New("boom")
	err := st.Update(func(s *Settings) error {
		s.SelectedLanguage = "fr"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}
	if got := st.Snapshot().SelectedLanguage; got != "auto" {
		t.Errorf("SelectedLanguage = %q, want %q", got, "auto")
	}
}

func TestDirHonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)
	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if got != dir {
		t.Errorf("Dir() = %q, want %q", got, dir)
	}
}

func TestSnapshotLookups(t *testing.T) {
	st := NewMemoryStore(Defaults())

	if p, ok := st.Snapshot().ActivePostProcessProvider(); !ok || p.ID != "gemini" {
		t.Errorf("ActivePostProcessProvider = (%q, %v), want gemini", p.ID, ok)
	}
	if _, ok := st.Snapshot().PostProcessPrompt("default_improve_transcriptions"); !ok {
		t.Error("default post-process prompt not found")
	}
	if _, ok := st.Snapshot().ContextStylePrompt("correction"); !ok {
		t.Error("correction style prompt not found")
	}
	if b, ok := st.Snapshot().Binding("transcribe"); !ok || b.CurrentBinding == "" {
		t.Errorf("Binding(transcribe) = (%+v, %v)", b, ok)
	}
	if _, ok := st.Snapshot().ContextOverride("slack"); ok {
		t.Error("ContextOverride found a mapping in defaults")
	}
}
