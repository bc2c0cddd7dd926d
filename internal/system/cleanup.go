package system

import (
	"time"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
	coresys "github.com/prismgrid/prismgrid/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at frame end.
// Phase 5 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
}

func NewCleanupSystem(world *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.FlushDestroyQueue()
}
