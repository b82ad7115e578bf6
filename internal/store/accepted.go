// Package store holds the process-wide list of deliveries the courier is
// actively working, together with the per-delivery action stage. List and
// stages mutate under one lock so a reconciliation pass can never show a
// stage for a delivery it just removed.
package store

import (
	"sync"

	"github.com/rotaouro/courier-agent/internal/model"
)

// Listener receives the full snapshot after every mutation.
type Listener func([]model.AcceptedDelivery)

type AcceptedStore struct {
	mu        sync.Mutex
	list      []model.AcceptedDelivery // most recent first
	stages    map[int64]model.Stage
	absent    map[int64]int // consecutive absent reconciliation ticks
	threshold int           // absent ticks required before dropping

	listeners map[int]Listener
	nextSub   int
}

// New creates an empty store. absenceConfirmations is the number of
// consecutive batch-status ticks a delivery may be missing from before it
// is treated as concluded elsewhere; 1 reproduces the historical
// drop-on-first-absence behavior.
func New(absenceConfirmations int) *AcceptedStore {
	if absenceConfirmations < 1 {
		absenceConfirmations = 1
	}
	return &AcceptedStore{
		stages:    make(map[int64]model.Stage),
		absent:    make(map[int64]int),
		threshold: absenceConfirmations,
		listeners: make(map[int]Listener),
	}
}

// Add inserts at the front. Inserting an id already present is a no-op.
func (s *AcceptedStore) Add(d model.AcceptedDelivery) bool {
	s.mu.Lock()
	for _, x := range s.list {
		if x.DeliveryID == d.DeliveryID {
			s.mu.Unlock()
			return false
		}
	}
	s.list = append([]model.AcceptedDelivery{d}, s.list...)
	if _, ok := s.stages[d.DeliveryID]; !ok {
		s.stages[d.DeliveryID] = model.StageCollect
	}
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	emit(fns, snap)
	return true
}

// ReplaceAll swaps the whole list (rehydration from the backend). Stages
// for ids no longer present are discarded; new ids start at collect.
func (s *AcceptedStore) ReplaceAll(list []model.AcceptedDelivery) {
	s.mu.Lock()
	s.list = append([]model.AcceptedDelivery(nil), list...)
	alive := make(map[int64]bool, len(list))
	for _, d := range list {
		alive[d.DeliveryID] = true
		if _, ok := s.stages[d.DeliveryID]; !ok {
			s.stages[d.DeliveryID] = model.StageCollect
		}
	}
	for id := range s.stages {
		if !alive[id] {
			delete(s.stages, id)
			delete(s.absent, id)
		}
	}
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	emit(fns, snap)
}

// Update applies fn to the stored delivery, if present. Used by the
// corrective fetch after an optimistic accept: the authoritative record
// replaces the provisional one wholesale.
func (s *AcceptedStore) Update(id int64, fn func(*model.AcceptedDelivery)) bool {
	s.mu.Lock()
	found := false
	for i := range s.list {
		if s.list[i].DeliveryID == id {
			fn(&s.list[i])
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	emit(fns, snap)
	return true
}

func (s *AcceptedStore) Remove(id int64) bool {
	s.mu.Lock()
	idx := -1
	for i := range s.list {
		if s.list[i].DeliveryID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.list = append(s.list[:idx], s.list[idx+1:]...)
	delete(s.stages, id)
	delete(s.absent, id)
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	emit(fns, snap)
	return true
}

func (s *AcceptedStore) Get(id int64) (model.AcceptedDelivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.list {
		if d.DeliveryID == id {
			return d, true
		}
	}
	return model.AcceptedDelivery{}, false
}

// List returns an insertion-ordered snapshot.
func (s *AcceptedStore) List() []model.AcceptedDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AcceptedDelivery(nil), s.list...)
}

func (s *AcceptedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

func (s *AcceptedStore) Stage(id int64) model.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stages[id]; ok {
		return st
	}
	return model.StageCollect
}

func (s *AcceptedStore) SetStage(id int64, st model.Stage) {
	s.mu.Lock()
	s.stages[id] = st
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	emit(fns, snap)
}

// Stages returns a copy of the stage map.
func (s *AcceptedStore) Stages() map[int64]model.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]model.Stage, len(s.stages))
	for id, st := range s.stages {
		out[id] = st
	}
	return out
}

// Subscribe registers a listener and returns its unsubscribe func.
// Listeners are called synchronously, outside the store lock.
func (s *AcceptedStore) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ApplySnapshot runs the reconciliation diff against a fresh batch-status
// listing. For every tracked delivery: a terminal or reverted-to-new status
// drops it; a live status refreshes its stage from the authoritative cached
// has_retorno; absence counts toward the drop threshold. List and stage
// updates land atomically. Returns the ids dropped by this pass.
func (s *AcceptedStore) ApplySnapshot(entries []model.StatusEntry) (dropped []int64) {
	s.mu.Lock()
	if len(s.list) == 0 {
		s.mu.Unlock()
		return nil
	}

	byID := make(map[int64]string, len(entries))
	for i := range entries {
		byID[entries[i].DeliveryID()] = entries[i].NormStatus()
	}

	keep := s.list[:0]
	changed := false
	for _, d := range s.list {
		status, present := byID[d.DeliveryID]
		if present {
			s.absent[d.DeliveryID] = 0
			if status == model.StatusFinalizado || status == model.StatusCancelado || status == model.StatusNovo {
				dropped = append(dropped, d.DeliveryID)
				changed = true
				continue
			}
			keep = append(keep, d)
			st := model.StatusToStage(status, d.HasReturn)
			if s.stages[d.DeliveryID] != st {
				s.stages[d.DeliveryID] = st
				changed = true
			}
			continue
		}
		s.absent[d.DeliveryID]++
		if s.absent[d.DeliveryID] >= s.threshold {
			dropped = append(dropped, d.DeliveryID)
			changed = true
			continue
		}
		keep = append(keep, d)
	}
	s.list = keep
	for _, id := range dropped {
		delete(s.stages, id)
		delete(s.absent, id)
	}
	if !changed {
		s.mu.Unlock()
		return nil
	}
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	emit(fns, snap)
	return dropped
}

func (s *AcceptedStore) snapshotLocked() ([]model.AcceptedDelivery, []Listener) {
	snap := append([]model.AcceptedDelivery(nil), s.list...)
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return snap, fns
}

func emit(fns []Listener, snap []model.AcceptedDelivery) {
	for _, fn := range fns {
		fn(snap)
	}
}
