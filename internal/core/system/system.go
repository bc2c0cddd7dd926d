package system

import "time"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseInput   Phase = iota // 0: drain the input queue
	PhaseTasks                // 1: advance the clock, resume cooperative tasks
	PhaseTurn                 // 2: advance the turn scheduler
	PhaseEvents               // 3: deliver queued events
	PhasePersist              // 4: record solved levels
	PhaseCleanup              // 5: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseTasks:
		return "tasks"
	case PhaseTurn:
		return "turn"
	case PhaseEvents:
		return "events"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every frame system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
