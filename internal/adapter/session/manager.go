package session

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

var (
	ErrNoHistory   = errors.New("no narrowing step to undo")
	ErrInvalidStep = errors.New("invalid narrowing step")
)

type Options struct {
	Timeout         time.Duration
	PageSize        int
	HistoryCapacity int
}

func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Minute,
		PageSize:        5,
		HistoryCapacity: 10,
	}
}

// Manager owns the per-session narrowing state. Operations on one session
// hold only that session's lock.
type Manager struct {
	store port.SessionStore[*State]
	opts  Options
	now   func() time.Time

	created atomic.Int64
	expired atomic.Int64
}

func NewManager(store port.SessionStore[*State], opts Options) *Manager {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = def.HistoryCapacity
	}
	if store == nil {
		store = NewShardedStore[*State]()
	}
	return &Manager{store: store, opts: opts, now: time.Now}
}

func (m *Manager) isExpired(s *State, now time.Time) bool {
	return now.Sub(s.v.LastActiveTime) > m.opts.Timeout
}

// GetOrCreate returns the session, replacing it with a fresh one if it
// expired.
func (m *Manager) GetOrCreate(id string) (View, error) {
	if strings.TrimSpace(id) == "" {
		return View{}, domain.ErrEmptySession
	}
	now := m.now()
	if s, ok := m.store.Get(id); ok {
		s.mu.Lock()
		if !m.isExpired(s, now) {
			s.v.LastActiveTime = now
			v := s.view()
			s.mu.Unlock()
			return v, nil
		}
		s.mu.Unlock()
		m.expired.Add(1)
	}

	s := newState(id, m.opts.PageSize, m.opts.HistoryCapacity, now)
	v := s.view()
	m.store.Put(id, s)
	m.created.Add(1)
	return v, nil
}

// Get returns the session or ErrSessionNotFound when it is unknown or idle
// for longer than the timeout. Expired sessions are removed.
func (m *Manager) Get(id string) (View, error) {
	var v View
	err := m.update(id, func(s *State) error {
		v = s.view()
		return nil
	})
	return v, err
}

// update runs fn under the session lock and refreshes its activity time
// when fn succeeds.
func (m *Manager) update(id string, fn func(s *State) error) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrEmptySession
	}
	s, ok := m.store.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	now := m.now()

	s.mu.Lock()
	if m.isExpired(s, now) {
		s.mu.Unlock()
		if m.store.DeleteIf(id, func(cur *State) bool { return cur == s }) {
			m.expired.Add(1)
		}
		return domain.ErrSessionNotFound
	}
	err := fn(s)
	if err == nil {
		s.v.LastActiveTime = now
	}
	s.mu.Unlock()
	return err
}

// SaveSearchResults starts a new narrowing baseline.
func (m *Manager) SaveSearchResults(id string, query domain.QueryInfo, docs []domain.Document) error {
	if _, err := m.GetOrCreate(id); err != nil {
		return err
	}
	return m.update(id, func(s *State) error {
		s.v.LastQuery = query
		s.v.LastResults = docs
		s.v.AllResults = docs
		s.v.CurrentPage = 0
		s.v.NarrowingStep = 0
		s.v.UsedCategoryTypes = nil
		s.v.LastCategoryType = ""
		s.v.CategoryMap = nil
		s.v.CategoryGroups = nil
		s.history.Clear()
		return nil
	})
}

// UpdateFilteredResults records one accepted selection: the current state
// is pushed onto the history and the step counter advances by one.
func (m *Manager) UpdateFilteredResults(id string, docs []domain.Document, used domain.CategoryType) error {
	return m.update(id, func(s *State) error {
		s.history.Push(s.snapshot())
		s.v.LastResults = docs
		s.v.NarrowingStep++
		if used != "" {
			s.v.UsedCategoryTypes = withUsed(s.v.UsedCategoryTypes, used)
		}
		s.v.CategoryMap = nil
		s.v.CategoryGroups = nil
		return nil
	})
}

// ResetToResults replaces the current results and clears narrowing progress
// without touching the query.
func (m *Manager) ResetToResults(id string, docs []domain.Document) error {
	return m.update(id, func(s *State) error {
		s.v.LastResults = docs
		s.v.NarrowingStep = 0
		s.v.UsedCategoryTypes = nil
		s.history.Clear()
		return nil
	})
}

func (m *Manager) SetCategorization(id string, r domain.CategoryResult) error {
	return m.update(id, func(s *State) error {
		s.v.LastCategoryType = r.Type
		s.v.CategoryMap = r.CategoryMap()
		s.v.CategoryGroups = r.Groups
		return nil
	})
}

// GoBack undoes the most recent narrowing step.
func (m *Manager) GoBack(id string) (View, error) {
	var v View
	err := m.update(id, func(s *State) error {
		sn, ok := s.history.Pop()
		if !ok {
			return ErrNoHistory
		}
		s.restore(sn)
		v = s.view()
		return nil
	})
	return v, err
}

// GoBackToStep rolls back to narrowing step k. Either all required snapshots
// are popped or none are.
func (m *Manager) GoBackToStep(id string, k int) (View, error) {
	var v View
	err := m.update(id, func(s *State) error {
		n := s.v.NarrowingStep - k
		if k < 0 || n <= 0 {
			return fmt.Errorf("%w: %d (current %d)", ErrInvalidStep, k, s.v.NarrowingStep)
		}
		if s.history.Len() < n {
			return fmt.Errorf("%w: need %d snapshots, have %d", ErrNoHistory, n, s.history.Len())
		}
		var sn snapshot
		for i := 0; i < n; i++ {
			sn, _ = s.history.Pop()
		}
		s.restore(sn)
		v = s.view()
		return nil
	})
	return v, err
}

// SetPagedResults replaces the list that pagination walks and rewinds to
// the first page.
func (m *Manager) SetPagedResults(id string, docs []domain.Document) error {
	return m.update(id, func(s *State) error {
		s.v.AllResults = docs
		s.v.CurrentPage = 0
		return nil
	})
}

// PageResults returns page (0-based) of the paged results and makes it
// current. Out of range pages return an empty slice and leave the current
// page unchanged.
func (m *Manager) PageResults(id string, page int) ([]domain.Document, error) {
	var out []domain.Document
	err := m.update(id, func(s *State) error {
		out = pageOf(s.v.AllResults, page, s.v.PageSize)
		if len(out) > 0 {
			s.v.CurrentPage = page
		}
		return nil
	})
	return out, err
}

func (m *Manager) NextPage(id string) ([]domain.Document, error) {
	var out []domain.Document
	err := m.update(id, func(s *State) error {
		next := s.v.CurrentPage + 1
		out = pageOf(s.v.AllResults, next, s.v.PageSize)
		if len(out) > 0 {
			s.v.CurrentPage = next
		}
		return nil
	})
	return out, err
}

func (m *Manager) HasNextPage(id string) (bool, error) {
	var has bool
	err := m.update(id, func(s *State) error {
		has = (s.v.CurrentPage+1)*s.v.PageSize < len(s.v.AllResults)
		return nil
	})
	return has, err
}

func (m *Manager) PageInfo(id string) (PageInfo, error) {
	var p PageInfo
	err := m.update(id, func(s *State) error {
		total := len(s.v.AllResults)
		p = PageInfo{
			CurrentPage:  s.v.CurrentPage + 1,
			TotalPages:   (total + s.v.PageSize - 1) / s.v.PageSize,
			TotalResults: total,
			PageSize:     s.v.PageSize,
		}
		return nil
	})
	return p, err
}

func pageOf(docs []domain.Document, page, size int) []domain.Document {
	start := page * size
	if page < 0 || start >= len(docs) {
		return []domain.Document{}
	}
	end := start + size
	if end > len(docs) {
		end = len(docs)
	}
	out := make([]domain.Document, end-start)
	copy(out, docs[start:end])
	return out
}

func (m *Manager) Clear(id string) {
	m.store.Delete(id)
}

// Sweep removes every expired session and returns how many it removed.
// A session replaced after it was seen stale is left alone.
func (m *Manager) Sweep() int {
	now := m.now()
	removed := 0
	m.store.Range(func(id string, s *State) bool {
		s.mu.Lock()
		stale := m.isExpired(s, now)
		s.mu.Unlock()
		if stale && m.store.DeleteIf(id, func(cur *State) bool { return cur == s }) {
			removed++
		}
		return true
	})
	m.expired.Add(int64(removed))
	return removed
}

type Stats struct {
	Active  int   `json:"active"`
	Created int64 `json:"created"`
	Expired int64 `json:"expired"`
}

func (m *Manager) Stats() Stats {
	return Stats{
		Active:  m.store.Len(),
		Created: m.created.Load(),
		Expired: m.expired.Load(),
	}
}
