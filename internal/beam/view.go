package beam

import (
	"github.com/prismgrid/prismgrid/internal/affect"
	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/grid"
)

// SegmentView is a read-only snapshot of a segment for renderers and tests.
type SegmentView struct {
	Holder    affect.HolderID
	Start     grid.Vec
	End       grid.Vec
	Direction grid.Direction
	Type      Type
	Depth     int
	Via       ecs.EntityID
	StoppedBy ecs.EntityID
	Truncated bool
	Hits      []ecs.EntityID
	Touched   []ecs.EntityID
}

// Segments returns b's segments in depth-first order, root first.
func (b *Beam) Segments() []SegmentView {
	var out []SegmentView
	var walk func(s *Segment)
	walk = func(s *Segment) {
		out = append(out, SegmentView{
			Holder:    s.id,
			Start:     s.origin,
			End:       s.end,
			Direction: s.key.dir,
			Type:      s.key.kind,
			Depth:     s.depth,
			Via:       s.key.via,
			StoppedBy: s.stoppedBy,
			Truncated: s.truncated,
			Hits:      sortedIDs(s.held),
			Touched:   append([]ecs.EntityID(nil), s.touched...),
		})
		for _, c := range s.children {
			walk(c)
		}
	}
	if b.root != nil {
		walk(b.root)
	}
	return out
}

// Hits returns every target b currently holds, across all segments.
func (b *Beam) Hits() []ecs.EntityID {
	seen := make(map[ecs.EntityID]affect.Affectable)
	for _, v := range b.Segments() {
		for _, id := range v.Hits {
			seen[id] = nil
		}
	}
	return sortedIDs(seen)
}
