package ecs

// World owns the entity pool, the store registry and a deferred destruction
// queue. Entities destroyed mid-turn stay resolvable until CleanupSystem
// flushes the queue at the end of the frame.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	onDestroy    []func(EntityID)
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 16),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// OnDestroy registers a hook run for each entity right before its
// components are dropped. Services use it to deregister the entity.
func (w *World) OnDestroy(fn func(EntityID)) {
	w.onDestroy = append(w.onDestroy, fn)
}

// MarkForDestruction queues an entity for end-of-frame cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	for _, queued := range w.destroyQueue {
		if queued == id {
			return
		}
	}
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending returns the number of entities waiting for destruction.
func (w *World) Pending() int {
	return len(w.destroyQueue)
}

// FlushDestroyQueue destroys every queued entity and returns how many were
// actually destroyed. Stale IDs are skipped.
func (w *World) FlushDestroyQueue() int {
	destroyed := 0
	for _, id := range w.destroyQueue {
		if !w.pool.Alive(id) {
			continue
		}
		for _, fn := range w.onDestroy {
			fn(id)
		}
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		destroyed++
	}
	w.destroyQueue = w.destroyQueue[:0]
	return destroyed
}
