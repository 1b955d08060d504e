package session

import (
	"sync"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

// View is a copy of one session's state. Slices are shared with the session
// but never modified in place.
type View struct {
	ID                string
	LastQuery         domain.QueryInfo
	LastResults       []domain.Document
	AllResults        []domain.Document
	CurrentPage       int
	PageSize          int
	NarrowingStep     int
	UsedCategoryTypes []domain.CategoryType
	LastCategoryType  domain.CategoryType
	CategoryMap       map[string][]domain.Document
	CategoryGroups    []domain.LabeledGroup
	HistoryLen        int
	LastActiveTime    time.Time
}

// HasUsed reports whether t has already narrowed this session.
func (v View) HasUsed(t domain.CategoryType) bool {
	for _, u := range v.UsedCategoryTypes {
		if u == t {
			return true
		}
	}
	return false
}

// snapshot is the part of a session restored by GoBack.
type snapshot struct {
	lastResults       []domain.Document
	lastCategoryType  domain.CategoryType
	usedCategoryTypes []domain.CategoryType
	narrowingStep     int
	categoryMap       map[string][]domain.Document
	categoryGroups    []domain.LabeledGroup
}

type State struct {
	mu      sync.Mutex
	v       View
	history *Ring[snapshot]
}

func newState(id string, pageSize, historyCap int, now time.Time) *State {
	return &State{
		v:       View{ID: id, PageSize: pageSize, LastActiveTime: now},
		history: NewRing[snapshot](historyCap),
	}
}

// view must be called with mu held.
func (s *State) view() View {
	v := s.v
	v.HistoryLen = s.history.Len()
	return v
}

func (s *State) snapshot() snapshot {
	return snapshot{
		lastResults:       s.v.LastResults,
		lastCategoryType:  s.v.LastCategoryType,
		usedCategoryTypes: s.v.UsedCategoryTypes,
		narrowingStep:     s.v.NarrowingStep,
		categoryMap:       s.v.CategoryMap,
		categoryGroups:    s.v.CategoryGroups,
	}
}

func (s *State) restore(sn snapshot) {
	s.v.LastResults = sn.lastResults
	s.v.LastCategoryType = sn.lastCategoryType
	s.v.UsedCategoryTypes = sn.usedCategoryTypes
	s.v.NarrowingStep = sn.narrowingStep
	s.v.CategoryMap = sn.categoryMap
	s.v.CategoryGroups = sn.categoryGroups
}

// withUsed returns used plus t, copying so earlier snapshots are unaffected.
func withUsed(used []domain.CategoryType, t domain.CategoryType) []domain.CategoryType {
	for _, u := range used {
		if u == t {
			return used
		}
	}
	out := make([]domain.CategoryType, len(used), len(used)+1)
	copy(out, used)
	return append(out, t)
}

type PageInfo struct {
	CurrentPage  int `json:"currentPage"` // 1-based
	TotalPages   int `json:"totalPages"`
	TotalResults int `json:"totalResults"`
	PageSize     int `json:"pageSize"`
}

func (p PageInfo) HasNextPage() bool {
	return p.CurrentPage < p.TotalPages
}
