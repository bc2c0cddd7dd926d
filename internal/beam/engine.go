package beam

import (
	"sort"

	"github.com/zyedidia/generic/mapset"
	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/affect"
	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/grid"
)

// segKey identifies a child across passes: the object that spawned it plus
// the outgoing direction and type. A child with the same key is reused, so
// its holds on targets survive an unchanged rescan.
type segKey struct {
	via  ecs.EntityID
	dir  grid.Direction
	kind Type
}

type spawn struct {
	key       segKey
	origin    grid.Vec
	cell      grid.Coord
	remaining float64
}

// Segment is one straight run of a beam. Each segment holds its targets
// under its own holder ID.
type Segment struct {
	id        affect.HolderID
	key       segKey
	origin    grid.Vec
	cell      grid.Coord
	end       grid.Vec
	depth     int
	parent    *Segment
	children  []*Segment
	held      map[ecs.EntityID]affect.Affectable
	touched   []ecs.EntityID
	stoppedBy ecs.EntityID
	truncated bool
}

func (s *Segment) cycles(n spawn) bool {
	for a := s; a != nil; a = a.parent {
		if a.cell == n.cell && a.key.dir == n.key.dir && a.key.kind == n.key.kind {
			return true
		}
	}
	return false
}

// Beam is the persistent segment tree for one source.
type Beam struct {
	owner   ecs.EntityID
	root    *Segment
	src     Source
	version uint64
	live    bool
}

func (b *Beam) Owner() ecs.EntityID { return b.owner }

// Active reports whether the beam currently has segments.
func (b *Beam) Active() bool { return b.root != nil }

type pass struct {
	segments  int
	truncated bool
	cycles    int
	unpaired  int
}

// Engine runs propagation passes. Like the grid index it is only touched
// from the simulation goroutine.
type Engine struct {
	index    *grid.Index
	caster   Caster
	affected *affect.Manager
	cfg      Config
	nextID   affect.HolderID
	log      *zap.Logger
}

func NewEngine(index *grid.Index, caster Caster, affected *affect.Manager, cfg Config, log *zap.Logger) *Engine {
	if caster == nil {
		caster = GridCaster{Index: index}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		index:    index,
		caster:   caster,
		affected: affected,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) NewBeam(owner ecs.EntityID) *Beam {
	return &Beam{owner: owner}
}

// Propagate brings b up to date with src. A disabled source only tears the
// beam down. When neither the source nor the grid changed since the last
// pass nothing runs. Returns true if a pass ran.
func (e *Engine) Propagate(b *Beam, src Source) bool {
	if !src.Enabled {
		e.Teardown(b)
		b.src = src
		return false
	}
	if b.live && b.src == src && b.version == e.index.Version() {
		return false
	}
	e.rescan(b, src)
	return true
}

// Rescan runs a pass regardless of whether anything changed.
func (e *Engine) Rescan(b *Beam, src Source) {
	if !src.Enabled {
		e.Teardown(b)
		b.src = src
		return
	}
	e.rescan(b, src)
}

// Teardown releases every hold of every segment of b, children first.
func (e *Engine) Teardown(b *Beam) {
	if b.root != nil {
		e.teardown(b.root)
		b.root = nil
	}
	b.live = false
}

func (e *Engine) rescan(b *Beam, src Source) {
	p := &pass{}
	root := spawn{
		key:       segKey{dir: src.Direction, kind: src.Type},
		origin:    src.Origin,
		cell:      e.index.CellOf(src.Origin),
		remaining: e.cfg.MaxDistance,
	}
	if b.root != nil && b.root.key != root.key {
		e.teardown(b.root)
		b.root = nil
	}
	b.root = e.run(p, b.root, root, nil, 0)
	b.src = src
	b.version = e.index.Version()
	b.live = true

	if p.truncated {
		e.log.Warn("beam truncated at cap",
			zap.Uint64("source", uint64(b.owner)),
			zap.Int("segments", p.segments),
			zap.Int("max_depth", e.cfg.MaxDepth),
			zap.Int("max_segments", e.cfg.MaxSegments))
	}
	if p.cycles > 0 {
		e.log.Warn("beam loop cut",
			zap.Uint64("source", uint64(b.owner)),
			zap.Int("cycles", p.cycles))
	}
	if p.unpaired > 0 {
		e.log.Warn("beam entered teleporter without exit",
			zap.Uint64("source", uint64(b.owner)),
			zap.Int("count", p.unpaired))
	}
}

func (e *Engine) run(p *pass, seg *Segment, sp spawn, parent *Segment, depth int) *Segment {
	if seg == nil {
		e.nextID++
		seg = &Segment{id: e.nextID, held: make(map[ecs.EntityID]affect.Affectable)}
	}
	p.segments++
	seg.key = sp.key
	seg.origin = sp.origin
	seg.cell = sp.cell
	seg.depth = depth
	seg.parent = parent
	seg.touched = nil
	seg.stoppedBy = 0
	seg.truncated = false

	dir := sp.key.dir
	reach := sp.remaining
	current := mapset.New[ecs.EntityID]()
	var hits []Target
	var next []spawn

	stop := func(h Hit, by ecs.EntityID) {
		reach = h.Distance
		seg.stoppedBy = by
	}
	child := func(h Hit, via ecs.EntityID, d grid.Direction, kind Type, from grid.Coord) {
		next = append(next, spawn{
			key:       segKey{via: via, dir: d, kind: kind},
			origin:    e.index.WorldPos(from),
			cell:      from,
			remaining: sp.remaining - h.Distance,
		})
	}

cast:
	for _, h := range e.caster.Cast(sp.origin, dir, sp.remaining) {
		for _, o := range targetsFirst(h.Occupants) {
			switch v := o.(type) {
			case Target:
				if e.cfg.Matches(v.Affinity(), sp.key.kind) {
					if !current.Has(v.ID()) {
						current.Put(v.ID())
						hits = append(hits, v)
					}
				} else {
					seg.touched = append(seg.touched, v.ID())
				}
				if v.BlocksBeam() {
					stop(h, v.ID())
					break cast
				}
			case Reflector:
				for _, d := range v.Outgoing() {
					child(h, o.ID(), d, sp.key.kind, h.Cell)
				}
				stop(h, o.ID())
				break cast
			case Changer:
				child(h, o.ID(), dir, v.ChangeTo(), h.Cell)
				stop(h, o.ID())
				break cast
			case Teleporter:
				if exit, ok := v.Exit(); ok {
					child(h, o.ID(), dir, sp.key.kind, exit)
				} else {
					p.unpaired++
				}
				stop(h, o.ID())
				break cast
			case Blocker:
				if v.BlocksBeam() {
					stop(h, o.ID())
					break cast
				}
			}
		}
	}
	seg.end = sp.origin.Add(dir.Vec().Scale(reach))

	for _, t := range hits {
		if _, ok := seg.held[t.ID()]; ok {
			continue
		}
		seg.held[t.ID()] = t
		e.affected.Hits(t, seg.id)
	}

	e.reconcile(p, seg, next, depth)

	for _, id := range sortedIDs(seg.held) {
		if current.Has(id) {
			continue
		}
		t := seg.held[id]
		delete(seg.held, id)
		e.affected.Stops(t, seg.id)
	}
	return seg
}

// reconcile replaces seg's children with the ones this pass spawned. Old
// children that are not spawned again are torn down before any new child
// propagates. Spawns repeating a key already seen this pass are dropped, so
// every child key is unique and every old child is matched or torn down.
func (e *Engine) reconcile(p *pass, seg *Segment, next []spawn, depth int) {
	old := seg.children
	seg.children = nil
	next = uniqueSpawns(next)

	reuse := make(map[segKey]*Segment, len(old))
	for _, c := range old {
		reuse[c.key] = c
	}
	wanted := make(map[segKey]bool, len(next))
	for _, n := range next {
		if !seg.cycles(n) {
			wanted[n.key] = true
		}
	}
	for _, c := range old {
		if !wanted[c.key] {
			e.teardown(c)
			delete(reuse, c.key)
		}
	}

	for _, n := range next {
		prev := reuse[n.key]
		delete(reuse, n.key)
		if seg.cycles(n) {
			p.cycles++
			seg.truncated = true
			continue
		}
		if depth+1 > e.cfg.MaxDepth || p.segments >= e.cfg.MaxSegments {
			p.truncated = true
			seg.truncated = true
			if prev != nil {
				e.teardown(prev)
			}
			continue
		}
		seg.children = append(seg.children, e.run(p, prev, n, seg, depth+1))
	}
}

func uniqueSpawns(next []spawn) []spawn {
	seen := make(map[segKey]bool, len(next))
	out := next[:0]
	for _, n := range next {
		if seen[n.key] {
			continue
		}
		seen[n.key] = true
		out = append(out, n)
	}
	return out
}

func (e *Engine) teardown(s *Segment) {
	for _, c := range s.children {
		e.teardown(c)
	}
	s.children = nil
	for _, id := range sortedIDs(s.held) {
		e.affected.Stops(s.held[id], s.id)
	}
	s.held = make(map[ecs.EntityID]affect.Affectable)
}

// targetsFirst orders a cell's occupants so targets are visited before the
// object that might stop the segment in the same cell.
func targetsFirst(occ []grid.Occupant) []grid.Occupant {
	out := make([]grid.Occupant, 0, len(occ))
	for _, o := range occ {
		if _, ok := o.(Target); ok {
			out = append(out, o)
		}
	}
	for _, o := range occ {
		if _, ok := o.(Target); !ok {
			out = append(out, o)
		}
	}
	return out
}

func sortedIDs(m map[ecs.EntityID]affect.Affectable) []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
