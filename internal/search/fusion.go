package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing constant.
const DefaultRRFConstant = 60

// Candidate is a ranked search result inside the fusion stage.
type Candidate struct {
	ID    string
	Score float64
}

// RRFFusion merges ranked lists with reciprocal rank fusion. Each list
// contributes 1/(k+rank) per document, rank starting at 1, and the
// per-list scores sum. Documents appearing in several lists therefore
// rise above single-list hits without any score normalization.
type RRFFusion struct {
	k int
}

// NewRRFFusion creates a fuser. Non-positive k falls back to the default.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{k: k}
}

// K returns the smoothing constant.
func (f *RRFFusion) K() int {
	return f.k
}

// Fuse merges the lists into a single ranking ordered by fused score
// descending. Ties keep first-seen order, so with equal scores a document
// from an earlier list outranks one from a later list. Every occurrence of
// an ID contributes, including repeats inside one list. Pooled lists from
// decomposed sub-queries rely on that: a chunk several sub-queries agree
// on accumulates one term per hit and outranks a single strong hit.
func (f *RRFFusion) Fuse(lists ...[]Candidate) []Candidate {
	type fused struct {
		id    string
		score float64
		seq   int
	}

	scores := make(map[string]*fused)
	order := make([]*fused, 0)

	for _, list := range lists {
		for rank, cand := range list {
			contribution := 1.0 / float64(f.k+rank+1)
			if entry, ok := scores[cand.ID]; ok {
				entry.score += contribution
				continue
			}
			entry := &fused{id: cand.ID, score: contribution, seq: len(order)}
			scores[cand.ID] = entry
			order = append(order, entry)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].seq < order[j].seq
	})

	out := make([]Candidate, len(order))
	for i, entry := range order {
		out[i] = Candidate{ID: entry.id, Score: entry.score}
	}
	return out
}
