package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/walrusdb/walrus/internal/telemetry/metric"
)

// expirationIndexDegree is the B-tree degree of the expiration index.
const expirationIndexDegree = 8

// entry is the data held for one key. Entries are owned exclusively by
// the state map and never leave a critical section.
type entry struct {
	data Data

	// expiresAt is the absolute expiration instant; the zero time means
	// the entry never expires.
	expiresAt time.Time
}

// expiration is one member of the ordered expiration index. Ordering is
// by instant first, then by key to break ties between keys sharing a
// deadline.
type expiration struct {
	when time.Time
	key  string
}

func expirationLess(a, b expiration) bool {
	if !a.when.Equal(b.when) {
		return a.when.Before(b.when)
	}
	return a.key < b.key
}

// state is the shared mutable state. Invariant: every entry with a
// non-zero expiresAt has exactly one matching member in expirations, and
// expirations holds nothing else.
type state struct {
	entries     map[string]entry
	expirations *btree.BTreeG[expiration]
	shutdown    bool
}

// shared is the state all handles of one Store refer to.
type shared struct {
	mu    sync.Mutex
	state state

	// notify wakes the reaper. The one-slot buffer gives notify-one
	// semantics: a notification sent while the reaper is busy is
	// remembered, and duplicate notifications coalesce.
	notify chan struct{}

	// done is closed when the reaper has observed shutdown and exited.
	done chan struct{}

	closeOnce sync.Once
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// Store is a handle to one logical key-value store. Copies of a Store
// share the same state; the zero value is not usable, construct with New.
type Store struct {
	shared *shared
}

// Option configures a Store.
type Option func(*shared)

// WithLogger sets the logger used by the background reaper.
func WithLogger(logger *slog.Logger) Option {
	return func(s *shared) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches metric collectors to the store.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *shared) {
		s.metrics = m
	}
}

// New creates an empty store and spawns its expiration reaper.
func New(opts ...Option) *Store {
	sh := &shared{
		state: state{
			entries:     make(map[string]entry),
			expirations: btree.NewG(expirationIndexDegree, expirationLess),
		},
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(sh)
	}

	go sh.reap()

	return &Store{shared: sh}
}

// Get returns the value associated with key. The returned handle is a
// shallow copy; callers must not mutate byte contents in place.
func (s *Store) Get(key string) (Data, bool) {
	sh := s.shared
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.state.entries[key]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Set inserts or overwrites key with value. A ttl greater than zero
// schedules the entry to expire that far in the future; zero means no
// expiration. Any previous value and its expiration are replaced.
func (s *Store) Set(key string, value Data, ttl time.Duration) {
	sh := s.shared
	sh.mu.Lock()

	var expiresAt time.Time
	notify := false
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)

		// The reaper must be woken if this deadline is earlier than the
		// one it is currently sleeping towards (or it has nothing to
		// sleep towards at all).
		next, ok := sh.state.nextExpiration()
		notify = !ok || expiresAt.Before(next)
	}

	sh.state.put(key, entry{data: value, expiresAt: expiresAt})
	sh.recordKeyCount()
	sh.mu.Unlock()

	// Notify strictly after releasing the lock so the reaper does not
	// wake into a lock the caller still holds.
	if notify {
		sh.wakeReaper()
	}
}

// Push appends items to the list stored at key, creating the list when
// the key is absent. It returns the resulting list length.
//
// When the key holds a non-list value, nothing is mutated and ok is
// false: the conflict is a defined outcome, not an error.
func (s *Store) Push(key string, items []Data) (length uint64, ok bool) {
	sh := s.shared
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, exists := sh.state.entries[key]
	if !exists {
		sh.state.put(key, entry{data: List(items)})
		sh.recordKeyCount()
		return uint64(len(items)), true
	}

	list, isList := e.data.(List)
	if !isList {
		return 0, false
	}

	// Appending keeps the entry's expiration, if any, untouched.
	e.data = append(list, items...)
	sh.state.entries[key] = e
	return uint64(len(e.data.(List))), true
}

// Len returns the number of keys currently stored.
func (s *Store) Len() int {
	sh := s.shared
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.state.entries)
}

// Close signals the reaper to shut down and waits until it has exited.
// The store must not be used after Close.
func (s *Store) Close() {
	sh := s.shared
	sh.closeOnce.Do(func() {
		sh.mu.Lock()
		sh.state.shutdown = true
		sh.mu.Unlock()
		sh.wakeReaper()
	})
	<-sh.done
}

// put installs e under key, keeping the expiration index consistent with
// the entry map. Callers hold the lock.
func (st *state) put(key string, e entry) {
	if prev, ok := st.entries[key]; ok && !prev.expiresAt.IsZero() {
		st.expirations.Delete(expiration{when: prev.expiresAt, key: key})
	}
	st.entries[key] = e
	if !e.expiresAt.IsZero() {
		st.expirations.ReplaceOrInsert(expiration{when: e.expiresAt, key: key})
	}
}

// nextExpiration returns the earliest pending expiration instant.
func (st *state) nextExpiration() (time.Time, bool) {
	min, ok := st.expirations.Min()
	if !ok {
		return time.Time{}, false
	}
	return min.when, true
}

// wakeReaper delivers one wake-up, coalescing with any already pending.
func (sh *shared) wakeReaper() {
	select {
	case sh.notify <- struct{}{}:
	default:
	}
}

func (sh *shared) recordKeyCount() {
	if sh.metrics != nil {
		sh.metrics.StoreKeys.Set(float64(len(sh.state.entries)))
	}
}

func (sh *shared) isShutdown() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.state.shutdown
}

// purgeExpired removes every entry whose deadline has passed and returns
// the instant of the next pending expiration, if one remains.
func (sh *shared) purgeExpired() (time.Time, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.state.shutdown {
		return time.Time{}, false
	}

	now := time.Now()
	purged := 0
	for {
		min, ok := sh.state.expirations.Min()
		if !ok {
			break
		}
		if min.when.After(now) {
			// Done purging; min.when is when the reaper must wake next.
			sh.recordPurged(purged)
			return min.when, true
		}
		sh.state.expirations.DeleteMin()
		delete(sh.state.entries, min.key)
		purged++
	}
	sh.recordPurged(purged)
	return time.Time{}, false
}

func (sh *shared) recordPurged(n int) {
	if sh.metrics != nil && n > 0 {
		sh.metrics.KeysExpiredTotal.Add(float64(n))
		sh.metrics.StoreKeys.Set(float64(len(sh.state.entries)))
	}
}

// reap runs until shutdown: purge due keys, then sleep until the next
// deadline or until notified, whichever comes first. An early wake-up
// (a shorter TTL was just inserted) re-enters the purge step instead of
// oversleeping past it.
func (sh *shared) reap() {
	defer close(sh.done)

	for !sh.isShutdown() {
		if sh.metrics != nil {
			sh.metrics.ReaperWakeups.Inc()
		}
		when, ok := sh.purgeExpired()
		if ok {
			timer := time.NewTimer(time.Until(when))
			select {
			case <-timer.C:
			case <-sh.notify:
				timer.Stop()
			}
		} else {
			// Nothing scheduled to expire; wait to be notified.
			<-sh.notify
		}
	}

	sh.logger.Debug("expiration reaper stopped")
}
