//go:build ignore

// Package main generates a synthetic JSONL corpus for benchmarking the
// index builder and the search pipeline.
// Usage: go run scripts/generate-test-corpus.go -sections 50 -output testdata/bench-corpus.jsonl
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numSections = flag.Int("sections", 50, "Number of manual sections to generate")
	perSection  = flag.Int("per-section", 4, "Child chunks per section")
	outputPath  = flag.String("output", "testdata/bench-corpus.jsonl", "Output JSONL file")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// record mirrors the corpus line format consumed by the index builder.
type record struct {
	ID       string `json:"id"`
	Texto    string `json:"texto"`
	Contexto string `json:"contexto,omitempty"`
	Secao    string `json:"secao"`
	Titulo   string `json:"titulo"`
	Pagina   int    `json:"pagina"`
	Fonte    string `json:"fonte"`
	Ano      int    `json:"ano,omitempty"`
	Tipo     string `json:"tipo"`
	ParentID string `json:"parent_id,omitempty"`
	IsParent bool   `json:"is_parent,omitempty"`
}

var topics = []string{
	"cobrança de diárias de UTI",
	"preenchimento da AIH",
	"procedimentos de alta complexidade",
	"órteses e próteses",
	"tratamento fora de domicílio",
	"auditoria das contas hospitalares",
	"codificação de diagnósticos",
	"faturamento de hemoterapia",
	"permanência a maior",
	"AIH de continuidade",
}

var sentences = []string{
	"O registro deve seguir a tabela de procedimentos vigente.",
	"A cobrança está condicionada à autorização prévia do gestor.",
	"O valor é calculado conforme o procedimento principal informado.",
	"A glosa ocorre quando o quantitativo excede o limite permitido.",
	"O prazo de apresentação é de até três competências.",
	"A exigência consta do manual técnico operacional do sistema.",
	"O laudo médico deve justificar a permanência do paciente.",
	"O código informado deve ser compatível com o CID principal.",
}

func sectionText(rng *rand.Rand, topic string) string {
	n := 3 + rng.Intn(4)
	text := "Esta seção trata de " + topic + "."
	for i := 0; i < n; i++ {
		text += " " + sentences[rng.Intn(len(sentences))]
	}
	return text
}

func writeRecord(enc *json.Encoder, rec record) {
	if err := enc.Encode(rec); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write record: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output dir: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	page := 1
	total := 0

	for s := 1; s <= *numSections; s++ {
		topic := topics[rng.Intn(len(topics))]
		secao := fmt.Sprintf("%d.%d", 1+s/10, 1+s%10)
		titulo := fmt.Sprintf("Seção %s: %s", secao, topic)
		parentID := fmt.Sprintf("manual_sec%03d", s)

		writeRecord(enc, record{
			ID:       parentID,
			Texto:    sectionText(rng, topic) + " " + sectionText(rng, topic),
			Secao:    secao,
			Titulo:   titulo,
			Pagina:   page,
			Fonte:    "manual_sih",
			Tipo:     "manual",
			IsParent: true,
		})
		total++

		for c := 1; c <= *perSection; c++ {
			writeRecord(enc, record{
				ID:       fmt.Sprintf("%s_%02d", parentID, c),
				Texto:    sectionText(rng, topic),
				Contexto: fmt.Sprintf("[Manual SIH/SUS > %s]\n\n%s", titulo, sectionText(rng, topic)),
				Secao:    secao,
				Titulo:   titulo,
				Pagina:   page,
				Fonte:    "manual_sih",
				Tipo:     "manual",
				ParentID: parentID,
			})
			total++
			if c%2 == 0 {
				page++
			}
		}
		page++
	}

	fmt.Printf("Generated %d chunks (%d sections) in %s\n", total, *numSections, *outputPath)
}
