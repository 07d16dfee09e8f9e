package focus

import "testing"

func TestParseOSAScript(t *testing.T) {
	tests := []struct {
		in   string
		want Window
	}{
		{"Slack|||general\n", Window{ProcessName: "Slack", Title: "general"}},
		{"Finder|||", Window{ProcessName: "Finder"}},
		{"Finder", Window{ProcessName: "Finder"}},
		{"Safari|||a|||b", Window{ProcessName: "Safari", Title: "a|||b"}},
	}
	for _, tt := range tests {
		if got := parseOSAScript(tt.in); got != tt.want {
			t.Errorf("parseOSAScript(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
