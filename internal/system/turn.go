package system

import (
	"time"

	coresys "github.com/prismgrid/prismgrid/internal/core/system"
	"github.com/prismgrid/prismgrid/internal/world"
)

// TurnSystem starts as many categories as can run this frame. Categories
// with nothing to animate settle at once, so a whole cycle may pass in one
// frame. Phase 2 (Turn).
type TurnSystem struct {
	sim *world.Simulation
}

func NewTurnSystem(sim *world.Simulation) *TurnSystem {
	return &TurnSystem{sim: sim}
}

func (s *TurnSystem) Phase() coresys.Phase { return coresys.PhaseTurn }

func (s *TurnSystem) Update(_ time.Duration) {
	for range s.sim.Config().Simulation.Categories {
		if !s.sim.Advance() {
			return
		}
	}
}
