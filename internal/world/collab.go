package world

import (
	"time"

	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/scripting"
	"github.com/prismgrid/prismgrid/internal/task"
)

// Animator plays movement visually. Move returns a signal that fires when
// the motion has finished; Snap jumps straight to the end state.
type Animator interface {
	Move(id ecs.EntityID, from, to grid.Vec, d time.Duration) *task.Signal
	Snap(id ecs.EntityID, to grid.Vec)
}

// AudioSink plays fire-and-forget sounds.
type AudioSink interface {
	Play(sound string, at grid.Vec)
}

// Scripts is the subset of the Lua engine the simulation calls.
type Scripts interface {
	EnemyMove(ctx scripting.MoveContext) (grid.Direction, bool, bool)
	OnAffected(ev scripting.AffectedEvent)
	IsSolved(ctx scripting.SolveContext) (bool, bool)
}

// TimedAnimator completes every move after its duration on the frame
// clock. Snaps need no work since nothing is drawn mid-motion.
type TimedAnimator struct {
	tasks *task.Queue
}

func NewTimedAnimator(tasks *task.Queue) *TimedAnimator {
	return &TimedAnimator{tasks: tasks}
}

func (a *TimedAnimator) Move(id ecs.EntityID, _, _ grid.Vec, d time.Duration) *task.Signal {
	done := task.NewSignal()
	a.tasks.Start(id, "tween", func() task.Await {
		return a.tasks.Sleep(d, func() task.Await {
			done.Fire()
			return task.Finish()
		})
	}, nil)
	return done
}

func (a *TimedAnimator) Snap(ecs.EntityID, grid.Vec) {}

// LogAudio writes every sound to the debug log.
type LogAudio struct {
	log *zap.Logger
}

func NewLogAudio(log *zap.Logger) *LogAudio {
	return &LogAudio{log: log}
}

func (a *LogAudio) Play(sound string, at grid.Vec) {
	a.log.Debug("sound", zap.String("sound", sound), zap.Float64("x", at.X), zap.Float64("z", at.Z))
}
