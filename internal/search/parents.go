package search

import "sort"

// ResolveParents maps child chunks to their parent sections. Several
// children of the same parent collapse into one candidate carrying the
// highest child score. Candidates without a parent pass through as
// themselves. The result is ordered by score descending, ties keeping
// the first-appearance order of the input.
func ResolveParents(candidates []Candidate, parentMap map[string]string) []Candidate {
	if len(parentMap) == 0 {
		return candidates
	}

	type resolved struct {
		id    string
		score float64
		seq   int
	}

	best := make(map[string]*resolved, len(candidates))
	order := make([]*resolved, 0, len(candidates))

	for _, cand := range candidates {
		id := cand.ID
		if parent, ok := parentMap[id]; ok {
			id = parent
		}
		if entry, ok := best[id]; ok {
			if cand.Score > entry.score {
				entry.score = cand.Score
			}
			continue
		}
		entry := &resolved{id: id, score: cand.Score, seq: len(order)}
		best[id] = entry
		order = append(order, entry)
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
