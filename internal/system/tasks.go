package system

import (
	"time"

	coresys "github.com/prismgrid/prismgrid/internal/core/system"
	"github.com/prismgrid/prismgrid/internal/world"
)

// TaskSystem advances the frame clock and resumes due tasks, which is where
// animations finish and moves commit. Phase 1 (Tasks).
type TaskSystem struct {
	sim *world.Simulation
}

func NewTaskSystem(sim *world.Simulation) *TaskSystem {
	return &TaskSystem{sim: sim}
}

func (s *TaskSystem) Phase() coresys.Phase { return coresys.PhaseTasks }

func (s *TaskSystem) Update(dt time.Duration) {
	s.sim.Frame(dt)
}
