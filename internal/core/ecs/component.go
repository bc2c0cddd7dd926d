package ecs

import "sort"

// Removable is implemented by every store so the Registry can drop an
// entity from all of them when it is destroyed.
type Removable interface {
	Remove(id EntityID)
}

// Store is a typed map store keyed by EntityID. The simulation keeps one
// store per capability (grid occupant, turn participant, beam source...).
type Store[T any] struct {
	data map[EntityID]T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		data: make(map[EntityID]T, 64),
	}
}

func (s *Store[T]) Set(id EntityID, c T) {
	s.data[id] = c
}

func (s *Store[T]) Get(id EntityID) (T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

// IDs returns the stored IDs in ascending order.
func (s *Store[T]) IDs() []EntityID {
	ids := make([]EntityID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Each visits every component in ascending ID order. Simulation code
// depends on this being deterministic.
func (s *Store[T]) Each(fn func(EntityID, T)) {
	for _, id := range s.IDs() {
		fn(id, s.data[id])
	}
}
