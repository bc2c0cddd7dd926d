// Package turn implements the category-ordered turn scheduler: every
// participant in the active category starts together, and the scheduler
// only moves on once all of them have reported completion.
package turn

import (
	"errors"

	"github.com/zyedidia/generic/mapset"
	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/grid"
)

var (
	ErrAlreadyRegistered = errors.New("participant already registered")
	ErrInvalidCategory   = errors.New("invalid turn category")
)

// Turn is handed to each participant when its category begins.
type Turn struct {
	Number       uint64
	Category     Category
	Direction    grid.Direction
	HasDirection bool
}

// Participant takes part in turns. BeginTurn must eventually lead to a
// CompleteTurn call for the participant, synchronously or later.
type Participant interface {
	ID() ecs.EntityID
	Primary() Category
	// Secondary reports an optional second category the participant also
	// acts in.
	Secondary() (Category, bool)
	BeginTurn(t Turn)
	// ForceEnd snaps any in-flight action to its end state.
	ForceEnd()
}

type entry struct {
	p       Participant
	running bool
}

// Scheduler sequences categories. Not safe for concurrent use; every call
// is expected on the simulation goroutine.
type Scheduler struct {
	order   []ecs.EntityID
	entries map[ecs.EntityID]*entry
	waiting mapset.Set[ecs.EntityID]
	cycle   []Category
	pos     int
	started bool
	fanning bool
	number  uint64
	settled []func(Category)
	log     *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		entries: make(map[ecs.EntityID]*entry),
		waiting: mapset.New[ecs.EntityID](),
		cycle:   append([]Category(nil), Categories...),
		log:     log,
	}
}

// SetOrder replaces the category cycle. It must be called before the first
// Advance; categories left out never run.
func (s *Scheduler) SetOrder(order []Category) error {
	if len(order) == 0 {
		return ErrInvalidCategory
	}
	seen := make(map[Category]bool, len(order))
	for _, c := range order {
		if !c.IsValid() || seen[c] {
			return ErrInvalidCategory
		}
		seen[c] = true
	}
	s.cycle = append([]Category(nil), order...)
	s.pos = 0
	return nil
}

// Register adds p. Participants in the same category start in registration
// order.
func (s *Scheduler) Register(p Participant) error {
	if !p.Primary().IsValid() {
		return ErrInvalidCategory
	}
	if sec, ok := p.Secondary(); ok && !sec.IsValid() {
		return ErrInvalidCategory
	}
	if _, ok := s.entries[p.ID()]; ok {
		return ErrAlreadyRegistered
	}
	s.entries[p.ID()] = &entry{p: p}
	s.order = append(s.order, p.ID())
	return nil
}

// Deregister removes id. If it was being waited on, the wait-set shrinks
// and the settled hooks fire if it empties.
func (s *Scheduler) Deregister(id ecs.EntityID) {
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.waiting.Has(id) {
		s.waiting.Remove(id)
		s.maybeSettle()
	}
}

// Current returns the active category. Before the first Advance it is the
// category that will run first.
func (s *Scheduler) Current() Category { return s.cycle[s.pos] }

// Number returns how many category turns have been started.
func (s *Scheduler) Number() uint64 { return s.number }

// Settled reports whether no participant is still working.
func (s *Scheduler) Settled() bool { return s.waiting.Size() == 0 }

// Pending returns the participants still being waited on, in registration
// order.
func (s *Scheduler) Pending() []ecs.EntityID {
	var out []ecs.EntityID
	for _, id := range s.order {
		if s.waiting.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Next returns the category the following Advance would start.
func (s *Scheduler) Next() Category {
	if !s.started {
		return s.cycle[s.pos]
	}
	return s.cycle[(s.pos+1)%len(s.cycle)]
}

// OnSettled registers fn to run each time the wait-set drains after a
// category started, with the category that just finished.
func (s *Scheduler) OnSettled(fn func(Category)) {
	s.settled = append(s.settled, fn)
}

// Advance starts the next category if the current one has fully completed.
// Returns false, with no side effects, while any participant is still
// working.
func (s *Scheduler) Advance() bool {
	return s.advance(grid.North, false)
}

// AdvanceWith is Advance with a direction attached to the new turn, used
// for the player's move.
func (s *Scheduler) AdvanceWith(dir grid.Direction) bool {
	return s.advance(dir, true)
}

func (s *Scheduler) advance(dir grid.Direction, hasDir bool) bool {
	if s.waiting.Size() > 0 {
		s.log.Debug("advance while turn in progress",
			zap.Stringer("category", s.Current()),
			zap.Int("pending", s.waiting.Size()))
		return false
	}
	if s.started {
		s.pos = (s.pos + 1) % len(s.cycle)
	}
	s.started = true
	s.number++
	current := s.cycle[s.pos]

	t := Turn{Number: s.number, Category: current, Direction: dir, HasDirection: hasDir}

	// the whole cohort enters the wait-set before anyone starts, so a
	// participant that completes synchronously cannot settle the turn early
	var cohort []*entry
	for _, id := range s.order {
		e := s.entries[id]
		if !s.acts(e.p, current) {
			continue
		}
		e.running = true
		s.waiting.Put(id)
		cohort = append(cohort, e)
	}
	if len(cohort) == 0 {
		s.fireSettled(current)
		return true
	}
	s.fanning = true
	for _, e := range cohort {
		if _, ok := s.entries[e.p.ID()]; !ok || !e.running {
			continue
		}
		e.p.BeginTurn(t)
	}
	s.fanning = false
	s.maybeSettle()
	return true
}

func (s *Scheduler) acts(p Participant, c Category) bool {
	if p.Primary() == c {
		return true
	}
	sec, ok := p.Secondary()
	return ok && sec == c
}

// CompleteTurn marks id finished with its current turn. Calling it when id
// is not running is a no-op.
func (s *Scheduler) CompleteTurn(id ecs.EntityID) {
	e, ok := s.entries[id]
	if !ok || !e.running {
		s.log.Debug("complete turn ignored", zap.Uint64("entity", uint64(id)))
		return
	}
	e.running = false
	s.waiting.Remove(id)
	s.maybeSettle()
}

// IsRunning reports whether id is mid-turn.
func (s *Scheduler) IsRunning(id ecs.EntityID) bool {
	e, ok := s.entries[id]
	return ok && e.running
}

// ForceTurnEnd snaps id's in-flight action to its end state and completes
// its turn through the normal completion path.
func (s *Scheduler) ForceTurnEnd(id ecs.EntityID) {
	e, ok := s.entries[id]
	if !ok || !e.running {
		return
	}
	e.p.ForceEnd()
	s.CompleteTurn(id)
}

// ForceAll force-ends every running participant.
func (s *Scheduler) ForceAll() {
	for _, id := range s.Pending() {
		s.ForceTurnEnd(id)
	}
}

// Reset drops all participants and returns to the initial category without
// running any callbacks.
func (s *Scheduler) Reset() {
	s.order = nil
	s.entries = make(map[ecs.EntityID]*entry)
	s.waiting = mapset.New[ecs.EntityID]()
	s.pos = 0
	s.started = false
	s.fanning = false
	s.number = 0
}

func (s *Scheduler) maybeSettle() {
	if s.fanning || s.waiting.Size() != 0 || !s.started {
		return
	}
	s.fireSettled(s.Current())
}

func (s *Scheduler) fireSettled(c Category) {
	for _, fn := range s.settled {
		fn(c)
	}
}
