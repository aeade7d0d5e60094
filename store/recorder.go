package store

import (
	"context"
	"time"

	"github.com/virgil28labs/timesync/logger"
	"github.com/virgil28labs/timesync/models"
)

const recordTimeout = 2 * time.Second

// Recorder writes journal-worthy coordination events to a store. It has the
// shape of a coordinator observer. Per-message events are skipped; they are
// only counted by metrics.
type Recorder struct {
	store  Store
	logger logger.Logger
}

func NewRecorder(st Store, l logger.Logger) *Recorder {
	if l == nil {
		l = nopLogger{}
	}
	return &Recorder{store: st, logger: l}
}

func (r *Recorder) Observe(ev models.SyncEvent) {
	if !ev.Kind.Journaled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if _, err := r.store.RecordEvent(ctx, ev); err != nil {
		r.logger.WarnW("record sync event", "kind", ev.Kind, "error", err)
	}
}
