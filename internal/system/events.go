package system

import (
	"time"

	"github.com/prismgrid/prismgrid/internal/core/event"
	coresys "github.com/prismgrid/prismgrid/internal/core/system"
)

// EventSystem delivers every event queued since its last run: those emitted
// earlier this frame and those emitted after it last frame. Phase 3 (Events).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
