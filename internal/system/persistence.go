package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/core/event"
	coresys "github.com/prismgrid/prismgrid/internal/core/system"
	"github.com/prismgrid/prismgrid/internal/persist"
	"github.com/prismgrid/prismgrid/internal/world"
)

// PersistenceSystem records solved levels in the progress store. Solves are
// collected from the bus and written in the persist phase with a bounded
// timeout. Phase 4 (Persist).
type PersistenceSystem struct {
	progress persist.Progress
	timeout  time.Duration
	pending  []persist.SolveRecord
	log      *zap.Logger
}

func NewPersistenceSystem(bus *event.Bus, progress persist.Progress, timeout time.Duration, log *zap.Logger) *PersistenceSystem {
	s := &PersistenceSystem{
		progress: progress,
		timeout:  timeout,
		log:      log,
	}
	event.Subscribe(bus, func(ev world.PuzzleSolved) {
		s.pending = append(s.pending, persist.SolveRecord{
			LevelID:     ev.LevelID,
			Fingerprint: ev.Fingerprint,
			RunID:       ev.RunID,
			Turns:       ev.Turns,
			SolvedAt:    time.Now(),
		})
	})
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.Flush()
}

// Flush writes every pending record now. Records that fail stay pending and
// are retried on the next flush. Called on shutdown as well, so a solve in
// the last frame is not lost.
func (s *PersistenceSystem) Flush() {
	if len(s.pending) == 0 {
		return
	}
	kept := s.pending[:0]
	for _, rec := range s.pending {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.progress.MarkSolved(ctx, rec)
		cancel()
		if err != nil {
			s.log.Error("record solve failed",
				zap.String("level", rec.LevelID),
				zap.String("run", rec.RunID.String()),
				zap.Error(err))
			kept = append(kept, rec)
			continue
		}
		s.log.Info("solve recorded",
			zap.String("level", rec.LevelID),
			zap.Uint64("turns", rec.Turns))
	}
	s.pending = kept
}

// Pending reports how many solves are waiting to be written.
func (s *PersistenceSystem) Pending() int { return len(s.pending) }
