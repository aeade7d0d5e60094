package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/virgil28labs/timesync/logger"
	"github.com/virgil28labs/timesync/models"
)

var _ Store = (*SQLiteStore)(nil)

//go:embed schema/migrations/*.sql
var migrationsFS embed.FS

const (
	defaultDebounce = 5 * time.Second

	// Fixed width so that text comparison orders timestamps.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

var errNotOpen = errors.New("store is not open")

type SQLiteStore struct {
	mu           sync.RWMutex
	db           *sql.DB
	snapshotPath string
	logger       logger.Logger

	// Debounced flush
	flushDebounce time.Duration
	flushTimer    *time.Timer
	flushMu       sync.Mutex
	dirty         bool
	ctx           context.Context
	cancel        context.CancelFunc
}

type Params struct {
	Path          string
	FlushDebounce time.Duration
	Logger        logger.Logger
}

func NewSQLiteStore(p Params) *SQLiteStore {
	s := &SQLiteStore{
		snapshotPath:  p.Path,
		flushDebounce: p.FlushDebounce,
		logger:        p.Logger,
	}
	if s.flushDebounce <= 0 {
		s.flushDebounce = defaultDebounce
	}
	return s
}

func (s *SQLiteStore) log() logger.Logger {
	if s.logger == nil {
		return nopLogger{}
	}
	return s.logger
}

// nopLogger is a no-op logger for when no logger is configured.
type nopLogger struct{}

func (nopLogger) DebugW(_ string, _ ...any) {}
func (nopLogger) InfoW(_ string, _ ...any)  {}
func (nopLogger) WarnW(_ string, _ ...any)  {}
func (nopLogger) ErrorW(_ string, _ ...any) {}
func (nopLogger) Sync() error               { return nil }

// SetFlushDebounce sets the debounce duration for disk flushes.
// Must be called before Open().
func (s *SQLiteStore) SetFlushDebounce(d time.Duration) {
	s.flushDebounce = d
}

func (s *SQLiteStore) SetSnapshotPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotPath = path
}

// Open creates the in-memory database. Every store gets its own shared
// cache name so that two stores in one process never see each other.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	database, err := sql.Open("sqlite3", memoryDSN(uuid.NewString()))
	if err != nil {
		return err
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if err = database.PingContext(ctx); err != nil {
		_ = database.Close()
		return err
	}

	s.db = database
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s.applyMigrations(ctx)
}

// Close closes the database without flushing. Use Shutdown for graceful shutdown.
func (s *SQLiteStore) Close() error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	s.flushMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Shutdown performs a final flush to disk and closes the database.
func (s *SQLiteStore) Shutdown(ctx context.Context) error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	dirty := s.dirty
	s.flushMu.Unlock()

	s.mu.RLock()
	path := s.snapshotPath
	s.mu.RUnlock()

	if dirty && path != "" {
		if err := s.FlushToDisk(ctx, path); err != nil {
			s.log().ErrorW("shutdown flush failed", "path", path, "error", err)
		}
	}

	return s.Close()
}

func (s *SQLiteStore) RestoreFromDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errNotOpen
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	if err := s.backup(ctx, fileDB, s.db); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	s.log().InfoW("journal restored", "path", path)
	return s.applyMigrations(ctx)
}

func (s *SQLiteStore) FlushToDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flushLocked(ctx, path)
}

func (s *SQLiteStore) scheduleFlush() {
	if s.snapshotPath == "" {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dirty = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}

	s.flushTimer = time.AfterFunc(s.flushDebounce, func() {
		s.performScheduledFlush()
	})
}

func (s *SQLiteStore) performScheduledFlush() {
	s.flushMu.Lock()
	if !s.dirty {
		s.flushMu.Unlock()
		return
	}
	s.flushMu.Unlock()

	s.mu.RLock()
	base, path := s.ctx, s.snapshotPath
	s.mu.RUnlock()
	if base == nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, 30*time.Second)
	defer cancel()

	if err := s.FlushToDisk(ctx, path); err != nil {
		s.log().WarnW("scheduled flush failed", "path", path, "error", err)
		return
	}

	s.flushMu.Lock()
	s.dirty = false
	s.flushMu.Unlock()
}

func (s *SQLiteStore) stopFlushTimer() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

// RecordEvent appends ev to the journal and returns its id.
func (s *SQLiteStore) RecordEvent(ctx context.Context, ev models.SyncEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, errNotOpen
	}
	if ev.Kind == "" {
		return 0, errors.New("event kind is required")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_events (
			kind, peer_id, leader_id, is_leader, peers,
			drift_ns, latency_ns, message_kind, detail, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Kind), ev.PeerID, ev.LeaderID, boolToInt(ev.IsLeader), ev.Peers,
		int64(ev.Drift), int64(ev.Latency), string(ev.MessageKind), ev.Detail, formatTimestamp(ev.OccurredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	// Schedule debounced flush instead of immediate flush
	s.scheduleFlush()
	return id, nil
}

// PruneEventsBefore deletes events older than cutoff and returns how many
// were removed.
func (s *SQLiteStore) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, errNotOpen
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_events WHERE occurred_at < ?`, formatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.scheduleFlush()
	}
	return n, nil
}

// ListEventsSince returns events at or after cutoff, oldest first. A limit
// of zero or less returns every match.
func (s *SQLiteStore) ListEventsSince(ctx context.Context, cutoff time.Time, limit int) ([]models.SyncEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, peer_id, leader_id, is_leader, peers,
		       drift_ns, latency_ns, message_kind, detail, occurred_at
		FROM sync_events
		WHERE occurred_at >= ?
		ORDER BY occurred_at, id
		LIMIT ?`,
		formatTimestamp(cutoff), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.SyncEvent
	for rows.Next() {
		var (
			ev          models.SyncEvent
			kind        string
			isLeader    int64
			driftNS     int64
			latencyNS   int64
			messageKind string
			occurredAt  string
		)
		if err := rows.Scan(
			&ev.ID, &kind, &ev.PeerID, &ev.LeaderID, &isLeader, &ev.Peers,
			&driftNS, &latencyNS, &messageKind, &ev.Detail, &occurredAt,
		); err != nil {
			return nil, err
		}
		ev.Kind = models.EventKind(kind)
		ev.IsLeader = isLeader != 0
		ev.Drift = time.Duration(driftNS)
		ev.Latency = time.Duration(latencyNS)
		ev.MessageKind = models.Kind(messageKind)
		ev.OccurredAt, err = time.Parse(timestampLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEventsByKindSince counts events at or after cutoff per kind.
func (s *SQLiteStore) CountEventsByKindSince(ctx context.Context, cutoff time.Time) ([]CountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM sync_events
		WHERE occurred_at >= ?
		GROUP BY kind
		ORDER BY kind`,
		formatTimestamp(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	var counts []CountRow
	for rows.Next() {
		var (
			row  CountRow
			kind string
		)
		if err := rows.Scan(&kind, &row.Count); err != nil {
			return nil, err
		}
		row.Kind = models.EventKind(kind)
		counts = append(counts, row)
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) flushLocked(ctx context.Context, path string) error {
	if s.db == nil {
		return errNotOpen
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	return s.backup(ctx, s.db, fileDB)
}

func (s *SQLiteStore) backup(ctx context.Context, src *sql.DB, dst *sql.DB) error {
	srcConn, err := src.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return err
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			dstSQLite, ok := dstDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected destination driver: %T", dstDriver)
			}
			srcSQLite, ok := srcDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver: %T", srcDriver)
			}

			backup, err := dstSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				return err
			}
			defer backup.Finish()

			_, err = backup.Step(-1)
			return err
		})
	})
}

func (s *SQLiteStore) applyMigrations(ctx context.Context) error {
	if s.db == nil {
		return errNotOpen
	}

	files, err := fs.Glob(migrationsFS, "schema/migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := migrationsFS.ReadFile(name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(name), err)
		}
	}
	return nil
}

func memoryDSN(name string) string {
	return fmt.Sprintf("file:timesync-%s?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000", name)
}

func sqliteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
