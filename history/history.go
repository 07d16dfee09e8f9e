// Package history persists transcriptions and their recordings.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/langdetect"
	"go.aimuz.me/murmur/stt"
)

const (
	dbFileName    = "history.db"
	recordingsDir = "recordings"

	// Fixed width so timestamps sort lexically.
	timeFormat = "2006-01-02T15:04:05.000000000Z"
)

// ErrNotFound is returned for unknown entry ids.
var ErrNotFound = errors.New("history entry not found")

// Policy decides which unsaved entries are pruned after each save.
type Policy struct {
	Period config.RetentionPeriod
	Limit  int
}

// PolicyFunc returns the current retention policy.
type PolicyFunc func() Policy

// Store is a SQLite-backed transcription history with WAV recordings on disk.
type Store struct {
	db     *sql.DB
	dir    string
	policy PolicyFunc
	clock  func() time.Time
}

// Open opens or creates the history under dir. A nil policy keeps everything.
func Open(ctx context.Context, dir string, policy PolicyFunc) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, recordingsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", filepath.Join(dir, dbFileName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if policy == nil {
		policy = func() Policy { return Policy{Period: config.RetainNever} }
	}
	s := &Store{db: db, dir: dir, policy: policy, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcriptions (
    id TEXT PRIMARY KEY,
    file_name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    saved INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL,
    transcription_text TEXT NOT NULL,
    post_processed_text TEXT,
    post_process_prompt TEXT,
    detected_language TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created ON transcriptions(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordingPath returns the absolute path of an entry's WAV file.
func (s *Store) RecordingPath(fileName string) string {
	return filepath.Join(s.dir, recordingsDir, fileName)
}

// Save writes the recording and a new entry, then applies retention.
func (s *Store) Save(ctx context.Context, samples []float32, raw string, processed, promptUsed *string) (types.HistoryEntry, error) {
	now := s.clock().UTC()
	id := uuid.NewString()
	e := types.HistoryEntry{
		ID:                id,
		FileName:          fmt.Sprintf("murmur-%d-%s.wav", now.Unix(), id[:8]),
		Timestamp:         now,
		Title:             now.Local().Format("Jan 2, 2006 3:04 PM"),
		TranscriptionText: raw,
		PostProcessedText: processed,
		PostProcessPrompt: promptUsed,
		DurationMillis:    int64(len(samples)) * 1000 / stt.SampleRate,
	}
	text := raw
	if processed != nil {
		text = *processed
	}
	e.DetectedLanguage = langdetect.Detect(text)

	if err := s.writeRecording(e.FileName, samples); err != nil {
		return types.HistoryEntry{}, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions(id, file_name, created_at, saved, title, transcription_text,
		     post_processed_text, post_process_prompt, detected_language, duration_ms)
		 VALUES(?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FileName, now.Format(timeFormat), e.Title, raw,
		nullString(processed), nullString(promptUsed), e.DetectedLanguage, e.DurationMillis)
	if err != nil {
		os.Remove(s.RecordingPath(e.FileName))
		return types.HistoryEntry{}, fmt.Errorf("insert entry: %w", err)
	}

	if err := s.Prune(ctx); err != nil {
		slog.Warn("prune history", "error", err)
	}
	return e, nil
}

func (s *Store) writeRecording(name string, samples []float32) error {
	f, err := os.Create(s.RecordingPath(name))
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	if err := stt.WriteWAV(f, samples, stt.SampleRate); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	return f.Close()
}

const selectColumns = `SELECT id, file_name, created_at, saved, title, transcription_text,
    post_processed_text, post_process_prompt, detected_language, duration_ms FROM transcriptions`

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one entry.
func (s *Store) Get(ctx context.Context, id string) (types.HistoryEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.HistoryEntry{}, ErrNotFound
	}
	return e, err
}

// Delete removes an entry and its recording.
func (s *Store) Delete(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.removeRecording(e.FileName)
	return nil
}

// ToggleSaved flips the saved flag and returns the new value. Saved entries
// are never pruned.
func (s *Store) ToggleSaved(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE transcriptions SET saved = 1 - saved WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("toggle saved: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, ErrNotFound
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return e.Saved, nil
}

// Prune deletes unsaved entries according to the current policy.
func (s *Store) Prune(ctx context.Context) error {
	p := s.policy()

	var rows *sql.Rows
	var err error
	switch p.Period {
	case config.RetainPreserveLimit:
		limit := max(p.Limit, 1)
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, file_name FROM transcriptions WHERE saved = 0
			 ORDER BY created_at DESC LIMIT -1 OFFSET ?`, limit)
	case config.RetainDays3, config.RetainWeeks2, config.RetainMonths3:
		cutoff := s.clock().UTC().Add(-retentionAge(p.Period))
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, file_name FROM transcriptions WHERE saved = 0 AND created_at < ?`,
			cutoff.Format(timeFormat))
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("select expired: %w", err)
	}

	type expired struct{ id, file string }
	var victims []expired
	for rows.Next() {
		var v expired
		if err := rows.Scan(&v.id, &v.file); err != nil {
			rows.Close()
			return err
		}
		victims = append(victims, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, v := range victims {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, v.id); err != nil {
			return fmt.Errorf("delete expired: %w", err)
		}
		s.removeRecording(v.file)
	}
	if len(victims) > 0 {
		slog.Debug("pruned history", "count", len(victims), "period", p.Period)
	}
	return nil
}

func retentionAge(p config.RetentionPeriod) time.Duration {
	switch p {
	case config.RetainDays3:
		return 3 * 24 * time.Hour
	case config.RetainWeeks2:
		return 14 * 24 * time.Hour
	default:
		return 90 * 24 * time.Hour
	}
}

func (s *Store) removeRecording(name string) {
	if err := os.Remove(s.RecordingPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove recording", "file", name, "error", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (types.HistoryEntry, error) {
	var (
		e         types.HistoryEntry
		created   string
		processed sql.NullString
		prompt    sql.NullString
		lang      sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.FileName, &created, &e.Saved, &e.Title, &e.TranscriptionText,
		&processed, &prompt, &lang, &e.DurationMillis); err != nil {
		return types.HistoryEntry{}, err
	}
	if ts, err := time.Parse(timeFormat, created); err == nil {
		e.Timestamp = ts
	}
	if processed.Valid {
		e.PostProcessedText = &processed.String
	}
	if prompt.Valid {
		e.PostProcessPrompt = &prompt.String
	}
	e.DetectedLanguage = lang.String
	return e, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
