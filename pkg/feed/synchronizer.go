package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/wave"
)

// Source is the chain side of the feed: a consistent bulk read, a count at
// head, and a push stream of new waves. *chain.Portal implements it.
type Source interface {
	Snapshot(ctx context.Context) ([]wave.Record, uint64, error)
	LatestTotal(ctx context.Context) (uint64, error)
	SubscribeWaves(ctx context.Context, sink chan<- wave.Record) (event.Subscription, error)
}

// State is an immutable view of the feed. Records are newest first.
type State struct {
	Records []wave.Record `json:"waves"`
	Total   uint64        `json:"total"`
	Ready   bool          `json:"ready"`
}

type UpdateKind int

const (
	// Loaded follows a completed historical load.
	Loaded UpdateKind = iota
	// Added follows acceptance of one live wave.
	Added
)

type Update struct {
	Kind   UpdateKind
	Record wave.Record // set for Added
	State  State
}

type phase int

const (
	phaseLoading phase = iota
	phaseReady
)

// Synchronizer merges the historical snapshot with the live stream so every
// distinct wave appears exactly once.
//
// While loading, live waves are buffered. Applying a snapshot replaces the
// identity set, then the buffer is drained against it. Once ready, a live
// wave is accepted only if its identity is unseen.
type Synchronizer struct {
	src Source

	loadMu sync.Mutex

	mu       sync.Mutex
	phase    phase
	seen     map[wave.ID]struct{}
	records  []wave.Record // never mutated in place, shared with State
	total    uint64
	buffered []wave.Record
	sub      event.Subscription

	watchMu  sync.Mutex
	watchers map[int]chan Update
	nextID   int
}

func New(src Source) *Synchronizer {
	return &Synchronizer{
		src:      src,
		seen:     make(map[wave.ID]struct{}),
		watchers: make(map[int]chan Update),
	}
}

// Start opens the live subscription and then performs the historical load.
// A failed subscription leaves the feed history-only; a failed load returns
// wave.ErrReadFailed and keeps buffering live waves until a later load.
func (s *Synchronizer) Start(ctx context.Context) error {
	sink := make(chan wave.Record, 64)
	sub, err := s.src.SubscribeWaves(ctx, sink)
	if err != nil {
		log.Warn().Err(err).Msg("live feed unavailable, showing history only")
	} else {
		s.mu.Lock()
		s.sub = sub
		s.mu.Unlock()
		go s.consume(sink, sub)
	}

	_, err = s.LoadHistory(ctx)
	return err
}

func (s *Synchronizer) consume(sink <-chan wave.Record, sub event.Subscription) {
	for {
		select {
		case rec := <-sink:
			s.Deliver(rec)
		case err, ok := <-sub.Err():
			if ok && err != nil {
				log.Error().Err(err).Msg("live feed subscription dropped")
			}
			return
		}
	}
}

// LoadHistory reads all waves and the total count. On failure the last known
// state is kept and returned alongside the error.
func (s *Synchronizer) LoadHistory(ctx context.Context) (State, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	prev := s.phase
	s.phase = phaseLoading
	s.mu.Unlock()

	records, total, err := s.src.Snapshot(ctx)
	if err != nil {
		s.mu.Lock()
		var added []wave.Record
		if prev == phaseReady {
			s.phase = phaseReady
			added = s.drainLocked()
		}
		st := s.stateLocked()
		s.mu.Unlock()

		for _, rec := range added {
			s.notify(Update{Kind: Added, Record: rec, State: st})
		}
		if !errors.Is(err, wave.ErrReadFailed) {
			err = fmt.Errorf("%w: %v", wave.ErrReadFailed, err)
		}
		log.Warn().Err(err).Int("shown", len(st.Records)).Msg("history load failed, keeping last known feed")
		return st, err
	}

	sorted := append([]wave.Record(nil), records...)
	wave.SortNewestFirst(sorted)
	seen := make(map[wave.ID]struct{}, len(sorted))
	for _, r := range sorted {
		seen[r.ID()] = struct{}{}
	}

	s.mu.Lock()
	s.records = sorted
	s.seen = seen
	s.total = total
	s.phase = phaseReady
	drained := s.drainLocked()
	st := s.stateLocked()
	s.mu.Unlock()

	log.Info().Int("waves", len(sorted)).Uint64("total", st.Total).Int("live_merged", len(drained)).Msg("📜 history loaded")
	s.notify(Update{Kind: Loaded, State: st})
	return st, nil
}

// Deliver hands one live wave to the synchronizer. It reports whether the
// wave was accepted into the feed; buffered and duplicate waves return false.
func (s *Synchronizer) Deliver(rec wave.Record) bool {
	s.mu.Lock()
	if s.phase == phaseLoading {
		s.buffered = append(s.buffered, rec)
		s.mu.Unlock()
		log.Debug().Stringer("wave", rec.ID()).Msg("buffered live wave until history is loaded")
		return false
	}
	ok := s.acceptLocked(rec)
	st := s.stateLocked()
	s.mu.Unlock()

	if ok {
		log.Info().Str("from", wave.Abbrev(rec.Address)).Str("msg", rec.Message).Msg("👋 new wave")
		s.notify(Update{Kind: Added, Record: rec, State: st})
	}
	return ok
}

// Reconcile compares the local count with the chain head. A feed that never
// loaded is loaded; a drifted one is reloaded through the buffered path.
func (s *Synchronizer) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	ready, total := s.phase == phaseReady, s.total
	s.mu.Unlock()

	if !ready {
		_, err := s.LoadHistory(ctx)
		return err
	}
	latest, err := s.src.LatestTotal(ctx)
	if err != nil {
		if !errors.Is(err, wave.ErrReadFailed) {
			err = fmt.Errorf("%w: %v", wave.ErrReadFailed, err)
		}
		return err
	}
	if latest == total {
		return nil
	}
	log.Warn().Uint64("local", total).Uint64("chain", latest).Msg("wave count drifted, reloading history")
	_, err = s.LoadHistory(ctx)
	return err
}

// State returns the current view.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Watch subscribes to feed updates. Slow watchers miss updates rather than
// stall the feed; State is always current.
func (s *Synchronizer) Watch() (<-chan Update, func()) {
	ch := make(chan Update, 64)
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchMu.Lock()
			if _, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(ch)
			}
			s.watchMu.Unlock()
		})
	}
}

// Close ends the live subscription and all watchers.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}

	s.watchMu.Lock()
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.watchMu.Unlock()
}

func (s *Synchronizer) acceptLocked(rec wave.Record) bool {
	id := rec.ID()
	if _, dup := s.seen[id]; dup {
		log.Debug().Stringer("wave", id).Msg("dropped duplicate wave")
		return false
	}
	s.seen[id] = struct{}{}

	// Newest first; a wave sharing a timestamp goes ahead of existing ones.
	i := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Timestamp.After(rec.Timestamp)
	})
	next := make([]wave.Record, 0, len(s.records)+1)
	next = append(next, s.records[:i]...)
	next = append(next, rec)
	next = append(next, s.records[i:]...)
	s.records = next
	s.total++
	return true
}

func (s *Synchronizer) drainLocked() []wave.Record {
	var added []wave.Record
	for _, rec := range s.buffered {
		if s.acceptLocked(rec) {
			added = append(added, rec)
		}
	}
	s.buffered = nil
	return added
}

func (s *Synchronizer) stateLocked() State {
	return State{Records: s.records, Total: s.total, Ready: s.phase == phaseReady}
}

func (s *Synchronizer) bufferedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffered)
}

func (s *Synchronizer) notify(u Update) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for id, ch := range s.watchers {
		select {
		case ch <- u:
		default:
			log.Debug().Int("watcher", id).Msg("feed watcher is behind, update dropped")
		}
	}
}
