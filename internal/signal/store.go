package signal

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// historyLimit caps the retention ring of everything ever admitted.
const historyLimit = 1000

// Store holds the live signal set and a bounded history of every signal
// admitted. All mutation happens through Add, which also sweeps expired
// entries and keeps the live set sorted for direct serving.
type Store struct {
	mu      sync.RWMutex
	live    []Signal
	history []Signal
	log     zerolog.Logger
}

// NewStore creates an empty signal store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		log: log.With().Str("component", "signal_store").Logger(),
	}
}

// Add admits signals not already present (by id), prunes expired signals and
// re-sorts the live set. It returns the newly admitted signals.
func (s *Store) Add(signals ...Signal) []Signal {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.live))
	for _, existing := range s.live {
		seen[existing.ID] = struct{}{}
	}

	var admitted []Signal
	for _, sig := range signals {
		if _, dup := seen[sig.ID]; dup {
			continue
		}
		seen[sig.ID] = struct{}{}
		s.live = append(s.live, sig)
		admitted = append(admitted, sig)

		s.history = append(s.history, sig)
		if len(s.history) > historyLimit {
			overflow := len(s.history) - historyLimit
			s.history = append(s.history[:0], s.history[overflow:]...)
		}
	}

	s.pruneLocked(now)
	s.sortLocked()

	return admitted
}

// pruneLocked drops expired signals. Caller holds the write lock.
func (s *Store) pruneLocked(now time.Time) {
	kept := s.live[:0]
	for _, sig := range s.live {
		if !sig.Expired(now) {
			kept = append(kept, sig)
		}
	}
	s.live = kept
}

// sortLocked orders the live set by priority rank then strength descending.
// Caller holds the write lock.
func (s *Store) sortLocked() {
	sort.SliceStable(s.live, func(i, j int) bool {
		ri, rj := s.live[i].Priority.Rank(), s.live[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return s.live[i].Strength > s.live[j].Strength
	})
}

// Active returns the live signals, optionally filtered by category and a
// minimum priority. Empty string arguments mean no filter. The result is a
// copy in serving order.
func (s *Store) Active(category Category, minPriority Priority) []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Signal, 0, len(s.live))
	for _, sig := range s.live {
		if category != "" && sig.Category != category {
			continue
		}
		if minPriority != "" && !sig.Priority.AtLeast(minPriority) {
			continue
		}
		out = append(out, sig)
	}
	return out
}

// Count returns the number of live signals.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// History returns up to n of the most recently admitted signals, newest last.
func (s *Store) History(n int) []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Signal, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// counts aggregates the live set for Summary. Caller holds at least a read lock.
func (s *Store) countsLocked() (byPriority map[Priority]int, byCategory map[string]int, netDirection map[string]float64) {
	byPriority = map[Priority]int{}
	byCategory = map[string]int{}

	type acc struct {
		sum float64
		n   int
	}
	dirs := map[Category]*acc{}

	for _, sig := range s.live {
		byPriority[sig.Priority]++
		byCategory[string(sig.Category)]++

		a := dirs[sig.Category]
		if a == nil {
			a = &acc{}
			dirs[sig.Category] = a
		}
		a.sum += sig.Composite()
		a.n++
	}

	avg := func(c Category) float64 {
		if a := dirs[c]; a != nil && a.n > 0 {
			return a.sum / float64(a.n)
		}
		return 0
	}

	// The equities read intentionally averages the macro category: macro
	// signals are what move index products, and the dashboard has always
	// labeled that column "equities".
	netDirection = map[string]float64{
		"crypto":   avg(CategoryCrypto),
		"metals":   avg(CategoryMetals),
		"equities": avg(CategoryMacro),
	}
	return byPriority, byCategory, netDirection
}
