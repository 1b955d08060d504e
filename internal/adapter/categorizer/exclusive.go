package categorizer

import (
	"sort"
	"unicode/utf8"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

// claimState is the accumulator of the exclusivity fold.
type claimState struct {
	buckets []domain.Bucket
	claimed map[int]struct{}
}

// step returns a new state with label's unclaimed matching docs added as a
// bucket. The input state is not modified.
func (s claimState) step(docs []domain.Document, label string, match func(domain.Document, string) bool) claimState {
	var picked []domain.Document
	for _, d := range docs {
		if _, taken := s.claimed[d.ID]; taken {
			continue
		}
		if match(d, label) {
			picked = append(picked, d)
		}
	}
	if len(picked) == 0 {
		return s
	}

	claimed := make(map[int]struct{}, len(s.claimed)+len(picked))
	for id := range s.claimed {
		claimed[id] = struct{}{}
	}
	for _, d := range picked {
		claimed[d.ID] = struct{}{}
	}
	buckets := make([]domain.Bucket, len(s.buckets), len(s.buckets)+1)
	copy(buckets, s.buckets)
	buckets = append(buckets, domain.Bucket{Label: label, Docs: picked})
	return claimState{buckets: buckets, claimed: claimed}
}

// resolveExclusive assigns each document to the most specific label it
// matches. Labels are processed longest first and every document is claimed
// at most once, so the returned buckets are pairwise disjoint.
func resolveExclusive(docs []domain.Document, labels []string, match func(domain.Document, string) bool) []domain.Bucket {
	ordered := bySpecificity(labels)
	state := claimState{claimed: map[int]struct{}{}}
	for _, label := range ordered {
		state = state.step(docs, label, match)
	}
	return state.buckets
}

// bySpecificity sorts unique labels by rune length descending, then by name.
func bySpecificity(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}
