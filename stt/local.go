package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Model sizes and their download locations.
var modelSizes = map[string]struct {
	URL  string
	Size int64 // Approximate size in bytes
}{
	"tiny":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin", 75 * 1024 * 1024},
	"base":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin", 150 * 1024 * 1024},
	"small":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin", 500 * 1024 * 1024},
	"medium": {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin", 1500 * 1024 * 1024},
	"large":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin", 3000 * 1024 * 1024},
}

// LocalConfig configures the local whisper.cpp engine.
type LocalConfig struct {
	ModelSize string // "tiny", "base", "small", "medium", "large"
	ModelDir  string // Directory holding ggml models
	BinPath   string // Optional path to the whisper.cpp CLI
	Language  func() string
	Progress  func(percent int)
}

// Local transcribes with the whisper.cpp CLI. The model is downloaded on
// first warm-up.
type Local struct {
	cfg       LocalConfig
	modelPath string
	http      *http.Client

	mu       sync.Mutex
	binPath  string
	ready    bool
	loading  chan struct{} // closed when the current load finishes
	loadErr  error
	cancelFn context.CancelFunc
}

// NewLocal creates the engine. Nothing is downloaded until InitiateModelLoad.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = "base"
	}
	if _, ok := modelSizes[cfg.ModelSize]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidModelSize, cfg.ModelSize)
	}
	if cfg.ModelDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("get cache dir: %w", err)
		}
		cfg.ModelDir = filepath.Join(dir, "murmur", "models")
	}

	l := &Local{
		cfg:       cfg,
		modelPath: filepath.Join(cfg.ModelDir, fmt.Sprintf("ggml-%s.bin", cfg.ModelSize)),
		http:      &http.Client{},
		binPath:   cfg.BinPath,
	}
	if l.binPath == "" {
		l.binPath = findWhisperBinary()
	}
	if _, err := os.Stat(l.modelPath); err == nil && l.binPath != "" {
		l.ready = true
	}
	return l, nil
}

// IsReady reports whether the binary and model are both present.
func (l *Local) IsReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// InitiateModelLoad starts the model download in the background if needed.
// Concurrent calls share one download.
func (l *Local) InitiateModelLoad() {
	l.mu.Lock()
	if l.ready || l.loading != nil {
		l.mu.Unlock()
		return
	}
	done := make(chan struct{})
	l.loading = done
	l.mu.Unlock()

	go func() {
		err := l.load()
		l.mu.Lock()
		l.loadErr = err
		l.ready = err == nil && l.binPath != ""
		l.loading = nil
		l.mu.Unlock()
		close(done)
		if err != nil {
			slog.Error("load whisper model", "model", l.cfg.ModelSize, "error", err)
		}
	}()
}

func (l *Local) load() error {
	if _, err := os.Stat(l.modelPath); err == nil {
		return nil
	}
	info := modelSizes[l.cfg.ModelSize]
	if err := os.MkdirAll(filepath.Dir(l.modelPath), 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	slog.Info("downloading whisper model", "model", l.cfg.ModelSize, "path", l.modelPath)
	return l.downloadModel(info.URL, info.Size)
}

// downloadModel streams url into a temp file beside the model and renames it
// into place once complete.
func (l *Local) downloadModel(url string, approxSize int64) error {
	resp, err := l.http.Get(url)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.modelPath), filepath.Base(l.modelPath)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	total := resp.ContentLength
	if total <= 0 {
		total = approxSize
	}
	pw := &progressWriter{total: total, report: l.cfg.Progress}
	if _, err := io.Copy(io.MultiWriter(tmp, pw), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.modelPath); err != nil {
		return fmt.Errorf("install model: %w", err)
	}
	if l.cfg.Progress != nil {
		l.cfg.Progress(100)
	}
	return nil
}

// progressWriter reports whole-percent steps of a download, capped at 99
// until the file is installed.
type progressWriter struct {
	total   int64
	written int64
	last    int
	report  func(percent int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.report != nil && p.total > 0 {
		if pct := int(min(p.written*100/p.total, 99)); pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return len(b), nil
}

// Transcribe converts 16kHz mono samples to text. It waits for a download
// in progress and can be aborted with Cancel.
func (l *Local) Transcribe(ctx context.Context, samples []float32) (string, error) {
	l.mu.Lock()
	loading := l.loading
	l.mu.Unlock()
	if loading != nil {
		select {
		case <-loading:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	l.mu.Lock()
	if !l.ready {
		err := l.loadErr
		bin := l.binPath
		l.mu.Unlock()
		if bin == "" {
			return "", ErrBinaryNotFound
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrModelNotReady, err)
		}
		return "", ErrModelNotReady
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancelFn = cancel
	bin := l.binPath
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.cancelFn = nil
		l.mu.Unlock()
		cancel()
	}()

	audioPath := filepath.Join(os.TempDir(), fmt.Sprintf("murmur_%s.wav", uuid.NewString()))
	f, err := os.Create(audioPath)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer os.Remove(audioPath)
	if err := WriteWAV(f, samples, SampleRate); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close audio file: %w", err)
	}

	args := []string{
		"-m", l.modelPath,
		"-f", audioPath,
		"-oj", // JSON output
		"-of", strings.TrimSuffix(audioPath, ".wav"),
		"--no-prints",
	}
	if l.cfg.Language != nil {
		if lang := l.cfg.Language(); lang != "" && lang != "auto" {
			args = append(args, "-l", whisperLanguage(lang))
		}
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("whisper-cpp failed: %w, stderr: %s", err, stderr.String())
	}

	jsonPath := strings.TrimSuffix(audioPath, ".wav") + ".json"
	defer os.Remove(jsonPath)
	if data, err := os.ReadFile(jsonPath); err == nil {
		return parseWhisperOutput(data)
	}
	return parseWhisperOutput(stdout.Bytes())
}

// Cancel aborts a transcription in flight.
func (l *Local) Cancel() {
	l.mu.Lock()
	cancel := l.cancelFn
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// whisperLanguage maps script-tagged Chinese to the code whisper expects.
func whisperLanguage(lang string) string {
	if strings.HasPrefix(lang, "zh") {
		return "zh"
	}
	return lang
}

// whisperCppOutput represents the JSON output from whisper.cpp.
type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(data []byte) (string, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		// Older builds print plain text.
		return strings.TrimSpace(string(data)), nil
	}
	var sb strings.Builder
	for _, seg := range out.Transcription {
		sb.WriteString(seg.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func findWhisperBinary() string {
	// whisper-cli is the Homebrew name
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}
	if runtime.GOOS == "windows" {
		for i, n := range names {
			names[i] = n + ".exe"
		}
	}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp"),
	}
	if execPath, err := os.Executable(); err == nil {
		locations = append(locations,
			filepath.Dir(execPath),
			filepath.Join(filepath.Dir(execPath), "..", "Resources"),
		)
	}

	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
