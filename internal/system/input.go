package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/prismgrid/prismgrid/internal/core/system"
	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/world"
)

// Input is one decoded key press.
type Input struct {
	Dir   grid.Direction
	Move  bool
	Reset bool
	Quit  bool
}

// InputSystem drains the input channel filled by the terminal reader and
// hands moves to the simulation. Phase 0 (Input).
type InputSystem struct {
	sim        *world.Simulation
	inputs     <-chan Input
	maxPerTick int
	quit       func()
	log        *zap.Logger
}

func NewInputSystem(sim *world.Simulation, inputs <-chan Input, maxPerTick int, quit func(), log *zap.Logger) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 8
	}
	return &InputSystem{
		sim:        sim,
		inputs:     inputs,
		maxPerTick: maxPerTick,
		quit:       quit,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case in, ok := <-s.inputs:
			if !ok {
				return
			}
			s.handle(in)
		default:
			return
		}
	}
}

func (s *InputSystem) handle(in Input) {
	switch {
	case in.Quit:
		s.log.Info("quit requested")
		if s.quit != nil {
			s.quit()
		}
	case in.Reset:
		if err := s.sim.Reset(); err != nil {
			s.log.Error("level reset failed", zap.Error(err))
		}
	case in.Move:
		s.sim.Input(in.Dir)
	}
}
