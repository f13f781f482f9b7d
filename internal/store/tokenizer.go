package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultPortugueseStopWords are filtered out during tokenization.
// The list is stored accent-free since tokens are accent-folded first.
var DefaultPortugueseStopWords = []string{
	"de", "a", "o", "que", "e", "do", "da", "em", "um", "para", "com",
	"nao", "uma", "os", "no", "se", "na", "por", "mais", "as", "dos",
	"como", "mas", "ao", "ele", "das", "seu", "sua", "ou", "ser",
	"quando", "muito", "ja", "eu", "tambem", "so", "pelo", "pela",
	"ate", "isso", "ela", "entre", "depois", "sem", "mesmo", "aos",
	"seus", "quem", "nas", "me", "esse", "eles", "essa", "num", "nem",
	"suas", "meu", "qual", "sera", "nos", "tenho", "lhe", "deles",
	"essas", "esses", "pelas", "este", "dele",
}

var portugueseStopWordSet = BuildStopWordMap(DefaultPortugueseStopWords)

// FoldAccents strips combining diacritical marks via NFD decomposition,
// so "internação" becomes "internacao".
func FoldAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeText lowercases and accent-folds text. Query-side comparisons
// and the index analyzer share this normalization so accented and plain
// spellings match.
func NormalizeText(s string) string {
	return strings.ToLower(FoldAccents(s))
}

// Tokenize splits Portuguese text into search tokens: lowercase,
// accent-folded, split on non-alphanumeric runes, with short tokens and
// stopwords removed. The same function serves index build and query time.
func Tokenize(text string) []string {
	return TokenizeWithStopWords(text, portugueseStopWordSet)
}

// TokenizeWithStopWords is Tokenize with a caller-supplied stopword set.
func TokenizeWithStopWords(text string, stopWords map[string]struct{}) []string {
	normalized := NormalizeText(text)

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := current.String()
		current.Reset()
		if len([]rune(token)) < 2 {
			return
		}
		if _, isStop := stopWords[token]; isStop {
			return
		}
		tokens = append(tokens, token)
	}

	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// BuildStopWordMap converts a slice of stop words to a set for lookup.
// Entries are normalized so accented stopword lists work too.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[NormalizeText(word)] = struct{}{}
	}
	return m
}
