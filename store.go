package blockstore

import (
	"bufio"
	"expvar"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Store holds a set of blocked domain names. Entries are added by loading
// line-oriented sources and never removed, so repeated loads merge lists.
// Queries match the name itself or any of its parent domains.
//
// A single mutex covers both loading and querying. A load holds it while the
// whole source is read, which means a slow source stalls queries until it's
// done, but no query ever sees a partially loaded list.
type Store struct {
	id      string
	mu      sync.Mutex
	entries map[string]struct{}
	metrics *StoreMetrics
}

// StoreMetrics are the expvar counters published for a store.
type StoreMetrics struct {
	// Number of entries in the store.
	entries *expvar.Int
	// Load attempts and failed loads.
	loads      *expvar.Int
	loadErrors *expvar.Int
	// Queries answered and how many of them matched.
	queries *expvar.Int
	blocked *expvar.Int
}

func NewStoreMetrics(id string) *StoreMetrics {
	return &StoreMetrics{
		entries:    getVarInt("store", id, "entries"),
		loads:      getVarInt("store", id, "loads"),
		loadErrors: getVarInt("store", id, "load-errors"),
		queries:    getVarInt("store", id, "queries"),
		blocked:    getVarInt("store", id, "blocked"),
	}
}

// NewStore returns an empty store. The returned handle is meant to be shared
// by everything in the process that loads or queries blocklists.
func NewStore(id string) *Store {
	return &Store{
		id:      id,
		entries: make(map[string]struct{}),
		metrics: NewStoreMetrics(id),
	}
}

// Load adds all entries from the source and returns the number of entries in
// the store afterwards. If the source can't be opened the store is not
// touched. A read error part-way through keeps the lines read until then.
func (s *Store) Load(src Source) (int, error) {
	log := Log.WithFields(logrus.Fields{"id": s.id, "source": src.String()})
	log.Debug("loading blocklist")
	s.metrics.loads.Add(1)

	r, err := src.Open()
	if err != nil {
		s.metrics.loadErrors.Add(1)
		return s.Len(), &SourceError{Source: src.String(), Err: err}
	}
	defer r.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	// No limit on line length, a long line never ends the load early.
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if domain := normalizeEntry(line); domain != "" {
			s.entries[domain] = struct{}{}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			n := len(s.entries)
			s.metrics.entries.Set(int64(n))
			s.metrics.loadErrors.Add(1)
			return n, &SourceError{Source: src.String(), Err: err}
		}
	}
	n := len(s.entries)
	s.metrics.entries.Set(int64(n))
	log.WithField("entries", n).Debug("completed loading blocklist")
	return n, nil
}

// LoadBlocklist loads the named local file into the store. It returns false if
// the file could not be read, in which case the failure has been logged.
func (s *Store) LoadBlocklist(name string) bool {
	log := Log.WithFields(logrus.Fields{"id": s.id, "file": name})
	log.Info("attempting to load blocklist")
	n, err := s.Load(NewFileSource(name))
	if err != nil {
		log.WithError(err).Error("failed to load blocklist")
		return false
	}
	log.WithField("entries", n).Info("successfully loaded blocklist")
	return true
}

// IsBlocked reports whether the domain or any of its parent domains is in the
// store. The name is lowercased but not trimmed. For "a.b.example.com" the
// candidates are "a.b.example.com", "b.example.com", "example.com" and "com".
func (s *Store) IsBlocked(domain string) bool {
	s.metrics.queries.Add(1)
	name := lowerASCII(domain)

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if _, ok := s.entries[name]; ok {
			s.metrics.blocked.Add(1)
			if Log.IsLevelEnabled(logrus.DebugLevel) {
				Log.WithFields(logrus.Fields{"id": s.id, "domain": domain, "rule": name}).Debug("domain blocked")
			}
			return true
		}
		i := strings.IndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[i+1:]
	}
	if Log.IsLevelEnabled(logrus.DebugLevel) {
		Log.WithFields(logrus.Fields{"id": s.id, "domain": domain}).Debug("domain not blocked")
	}
	return false
}

// Len returns the number of entries in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) String() string {
	return fmt.Sprintf("Store(%s)", s.id)
}
