package search

import (
	"regexp"
	"strconv"

	"github.com/manual-sih/sihmcp/internal/store"
)

// Filter extraction patterns. Matching runs over the accent-folded,
// lowercased query so "Portaria" and "portaria" behave the same.
var (
	yearPattern        = regexp.MustCompile(`\b(20\d{2})\b`)
	portariaPattern    = regexp.MustCompile(`\bportaria\b`)
	manualPattern      = regexp.MustCompile(`\bmanual\b`)
	anexoSigtapPattern = regexp.MustCompile(`\b(anexo\s+sigtap|tabela\s+sigtap)\b`)
)

// ExtractFilter derives a metadata filter from the query text. Returns nil
// when no signal fires: filters must never guess, since a wrong filter
// would hide the right content entirely.
//
// Rules, combined with AND when more than one fires:
//   - A 4-digit year (20xx) constrains ano.
//   - An explicit "anexo sigtap" / "tabela sigtap" phrase constrains tipo
//     to anexo_sigtap ("sigtap" alone is a concept mention, not a request
//     for the annex).
//   - "portaria" without "manual" constrains tipo to portaria; the reverse
//     constrains tipo to manual; both present is ambiguous and adds nothing.
func ExtractFilter(query string) *store.Filter {
	normalized := store.NormalizeText(query)

	filter := store.NewFilter()

	if m := yearPattern.FindStringSubmatch(normalized); m != nil {
		if ano, err := strconv.Atoi(m[1]); err == nil {
			filter = filter.WithAno(ano)
		}
	}

	temPortaria := portariaPattern.MatchString(normalized)
	temManual := manualPattern.MatchString(normalized)
	temAnexoSigtap := anexoSigtapPattern.MatchString(normalized)

	switch {
	case temAnexoSigtap:
		filter = filter.WithTipo(store.TipoAnexoSigtap)
	case temPortaria && !temManual:
		filter = filter.WithTipo(store.TipoPortaria)
	case temManual && !temPortaria:
		filter = filter.WithTipo(store.TipoManual)
	}

	if filter.Empty() {
		return nil
	}
	return filter
}
