// Package store keeps a journal of coordination events in an in-memory
// SQLite database that is periodically snapshotted to disk.
package store

import (
	"context"
	"time"

	"github.com/virgil28labs/timesync/models"
)

// Config holds journal configuration.
type Config struct {
	Path          string        `yaml:"path"`
	FlushDebounce time.Duration `yaml:"flush_debounce"`
	RetentionDays int           `yaml:"retention_days"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Path == "" {
		c.Path = "data/timesync.db"
	}
	if c.FlushDebounce <= 0 {
		c.FlushDebounce = defaultDebounce
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 7
	}
}

type CountRow struct {
	Kind  models.EventKind
	Count int64
}

type Store interface {
	Open(ctx context.Context) error
	Close() error

	RestoreFromDisk(ctx context.Context, path string) error
	FlushToDisk(ctx context.Context, path string) error

	RecordEvent(ctx context.Context, ev models.SyncEvent) (int64, error)
	PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	ListEventsSince(ctx context.Context, cutoff time.Time, limit int) ([]models.SyncEvent, error)
	CountEventsByKindSince(ctx context.Context, cutoff time.Time) ([]CountRow, error)
}
