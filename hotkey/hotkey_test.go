package hotkey

import (
	"fmt"
	"reflect"
	"testing"

	hook "github.com/robotn/gohook"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "ctrl+space", want: []string{"ctrl", "space"}},
		{in: "Option+Shift+Space", want: []string{"alt", "shift", "space"}},
		{in: "command + k", want: []string{"cmd", "k"}},
		{in: "escape", want: []string{"esc"}},
		{in: "ctrl+", wantErr: true},
		{in: "ctrl+nosuchkey", wantErr: true},
		{in: "ctrl+control", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sc, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			want, _ := Parse(joinNames(tt.want))
			if !reflect.DeepEqual(sc.keys, want.keys) {
				t.Errorf("keys = %v, want %v", sc.keys, want.keys)
			}
			if sc.Raw != tt.in {
				t.Errorf("Raw = %q, want %q", sc.Raw, tt.in)
			}
		})
	}
}

func joinNames(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += "+"
		}
		s += n
	}
	return s
}

type event struct {
	id      string
	pressed bool
}

func newTestManager(t *testing.T) (*Manager, *[]event) {
	t.Helper()
	var got []event
	m := NewManager(func(id, _ string, pressed bool) {
		got = append(got, event{id, pressed})
	})
	for id, sc := range map[string]string{
		"transcribe":              "ctrl+space",
		"transcribe_with_context": "ctrl+alt+space",
	} {
		if err := m.Set(id, sc, false); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := m.Set("cancel", "esc", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return m, &got
}

func key(kind uint8, name string) hook.Event {
	code, ok := hook.Keycode[name]
	if !ok {
		panic(fmt.Sprintf("no keycode for %q", name))
	}
	return hook.Event{Kind: kind, Keycode: code}
}

func TestPressRelease(t *testing.T) {
	m, got := newTestManager(t)

	m.handle(key(hook.KeyHold, "ctrl"))
	m.handle(key(hook.KeyHold, "space"))
	m.handle(key(hook.KeyHold, "space")) // auto-repeat
	m.handle(key(hook.KeyUp, "space"))
	m.handle(key(hook.KeyUp, "ctrl"))

	want := []event{{"transcribe", true}, {"transcribe", false}}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("events = %v, want %v", *got, want)
	}
}

func TestExtraModifierSelectsLongerBinding(t *testing.T) {
	m, got := newTestManager(t)

	m.handle(key(hook.KeyHold, "ctrl"))
	m.handle(key(hook.KeyHold, "alt"))
	m.handle(key(hook.KeyHold, "space"))
	m.handle(key(hook.KeyUp, "alt"))
	m.handle(key(hook.KeyUp, "space"))
	m.handle(key(hook.KeyUp, "ctrl"))

	want := []event{{"transcribe_with_context", true}, {"transcribe_with_context", false}}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("events = %v, want %v", *got, want)
	}
}

func TestSharedShortcutFiresOneBinding(t *testing.T) {
	m, got := newTestManager(t)
	if err := m.Set("transcribe_copy", "ctrl+space", false); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for range 5 {
		*got = nil
		m.handle(key(hook.KeyHold, "ctrl"))
		m.handle(key(hook.KeyHold, "space"))
		m.handle(key(hook.KeyUp, "space"))
		m.handle(key(hook.KeyUp, "ctrl"))

		want := []event{{"transcribe", true}, {"transcribe", false}}
		if !reflect.DeepEqual(*got, want) {
			t.Fatalf("events = %v, want %v", *got, want)
		}
	}
}

func TestRightModifier(t *testing.T) {
	if _, ok := hook.Keycode["rctrl"]; !ok {
		t.Skip("no right ctrl keycode")
	}
	m, got := newTestManager(t)
	m.handle(key(hook.KeyHold, "rctrl"))
	m.handle(key(hook.KeyHold, "space"))
	if len(*got) != 1 || (*got)[0] != (event{"transcribe", true}) {
		t.Errorf("events = %v, want transcribe press", *got)
	}
}

func TestRegisterUnregister(t *testing.T) {
	m, got := newTestManager(t)

	m.handle(key(hook.KeyHold, "esc"))
	m.handle(key(hook.KeyUp, "esc"))
	if len(*got) != 0 {
		t.Fatalf("disabled binding fired: %v", *got)
	}

	m.Register("cancel")
	m.handle(key(hook.KeyHold, "esc"))
	m.Unregister("cancel")
	m.handle(key(hook.KeyUp, "esc"))

	want := []event{{"cancel", true}}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("events = %v, want %v", *got, want)
	}

	m.Register("missing") // logged, no panic
}
