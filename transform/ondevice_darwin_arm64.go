//go:build darwin && arm64

package transform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// helperName is the bundled Swift helper that talks to the Foundation Models
// framework. It reads the prompt on stdin and writes the answer to stdout.
const helperName = "murmur-apple-intelligence"

type appleIntelligence struct {
	binPath string
}

// NewOnDevice returns the Apple Intelligence processor when its helper is installed.
func NewOnDevice() OnDevice {
	bin := findHelper()
	if bin == "" {
		return unavailableOnDevice{}
	}
	return &appleIntelligence{binPath: bin}
}

func (a *appleIntelligence) Available() bool {
	cmd := exec.Command(a.binPath, "--check")
	return cmd.Run() == nil
}

func (a *appleIntelligence) Process(ctx context.Context, prompt string, tokenLimit int) (string, error) {
	args := []string{}
	if tokenLimit > 0 {
		args = append(args, "--max-tokens", strconv.Itoa(tokenLimit))
	}
	cmd := exec.CommandContext(ctx, a.binPath, args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("apple intelligence helper: %w, stderr: %s", err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func findHelper() string {
	if path, err := exec.LookPath(helperName); err == nil {
		return path
	}
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	for _, dir := range []string{
		filepath.Dir(execPath),
		filepath.Join(filepath.Dir(execPath), "..", "Resources"),
	} {
		path := filepath.Join(dir, helperName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
