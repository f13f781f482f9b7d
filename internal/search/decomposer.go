package search

import (
	"regexp"
	"strings"

	"github.com/manual-sih/sihmcp/internal/store"
)

// MaxSubQueries bounds decomposition output, original query included.
const MaxSubQueries = 4

var comparisonPattern = regexp.MustCompile(`(?i)diferen[cç]a\s+entre\s+(.+?)\s+e\s+(.+)`)

// A full SIGTAP procedure code is ten digits and names its group in the
// first two.
var procedureCodePattern = regexp.MustCompile(`\b(\d{2})\d{8}\b`)

// Decomposer splits a multi-aspect question into focused sub-queries so
// each aspect gets its own retrieval pass. The original query always
// comes first; fusion merges the per-sub-query pools afterwards.
type Decomposer struct {
	abbrevPatterns []*regexp.Regexp
}

// NewDecomposer creates a decomposer with the built-in SIH/SUS hint tables.
func NewDecomposer() *Decomposer {
	d := &Decomposer{
		abbrevPatterns: make([]*regexp.Regexp, len(Abbreviations)),
	}
	for i, entry := range Abbreviations {
		d.abbrevPatterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(entry.Key) + `\b`)
	}
	return d
}

// Decompose expands a query into sub-queries. Expansion sources, in order:
// rejection-code hints (first match only), conjunction splitting,
// SIGTAP group expansion for procedure codes, "difference between X and Y"
// comparisons, and abbreviation expansion (first match only). Duplicates
// keep their first occurrence and the result is capped at MaxSubQueries
// entries.
func (d *Decomposer) Decompose(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	normalized := store.NormalizeText(query)
	subQueries := []string{query}

	// Known rejection codes and comments get the hint appended so the
	// lexical pass can reach the section explaining them.
	for _, entry := range CriticaHints {
		if strings.Contains(normalized, entry.Key) {
			subQueries = append(subQueries, query+" "+entry.Hint)
			break
		}
	}

	// "X e Y" questions usually carry two independent aspects. Split only
	// when both sides are substantial enough to stand as queries.
	if parts := strings.SplitN(query, " e ", 2); len(parts) == 2 {
		left := strings.TrimSpace(parts[0])
		right := strings.TrimSpace(parts[1])
		if len(strings.Fields(left)) >= 2 && len(strings.Fields(right)) >= 2 {
			subQueries = append(subQueries, left, right)
		}
	}

	// A bare procedure code rarely appears verbatim in the manual text.
	// The SIGTAP group description reaches the sections that discuss the
	// procedure family.
	if m := procedureCodePattern.FindStringSubmatch(normalized); m != nil {
		if desc, ok := GrupoSigtap[m[1]]; ok {
			subQueries = append(subQueries,
				"procedimentos "+desc+" grupo "+m[1]+" SIGTAP regras")
		}
	}

	// Comparison questions retrieve each term separately so both sides
	// appear in the pool even when the manual never contrasts them.
	if m := comparisonPattern.FindStringSubmatch(query); m != nil {
		subQueries = append(subQueries,
			strings.TrimSpace(m[1]),
			strings.TrimSpace(m[2]))
	}

	for i, entry := range Abbreviations {
		if d.abbrevPatterns[i].MatchString(normalized) {
			subQueries = append(subQueries, query+" "+entry.Hint)
			break
		}
	}

	deduped := dedupeStrings(subQueries)
	if len(deduped) > MaxSubQueries {
		deduped = deduped[:MaxSubQueries]
	}
	return deduped
}

// dedupeStrings removes duplicates preserving first-occurrence order.
// Comparison is accent-folded so "órtese" and "ortese" collapse. Folding
// can merge sub-queries that differ only in diacritics, but both passes
// fold accents at index time, so the merged variants would retrieve the
// same pools anyway.
func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := store.NormalizeText(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
