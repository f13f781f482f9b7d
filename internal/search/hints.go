package search

// hintEntry pairs a trigger keyword with its search expansion. Entries are
// scanned in order so matching stays deterministic.
type hintEntry struct {
	Key  string
	Hint string
}

// CriticaHints maps AIH rejection keywords (crítica numbers and SISAIH
// error codes) to search hint expansions. When a query contains one of
// these keys, the hint is appended as an extra sub-query to pull in the
// manual sections that explain the rejection. First match wins.
var CriticaHints = []hintEntry{
	{"critica 7", "procedimento principal incompativel com diagnostico principal CID compatibilidade"},
	{"critica 12", "diagnostico principal incompativel com sexo do paciente"},
	{"critica 13", "procedimento principal incompativel com idade do paciente"},
	{"critica 14", "sexo do paciente incompativel com procedimento principal"},
	{"critica 15", "procedimento principal nao permite permanencia"},
	{"050009", "numero da AIH nao informado"},
	{"050046", "procedimento principal incompativel com diagnostico principal"},
	{"050081", "diagnostico principal incompativel com sexo"},
	{"050083", "procedimento incompativel com idade"},
	{"050084", "sexo incompativel com procedimento"},
	{"050097", "procedimento nao permite permanencia"},
}

// Abbreviations maps domain acronyms to expansion phrases appended to the
// query when the acronym appears as a whole word. First match wins.
var Abbreviations = []hintEntry{
	{"opm", "orteses proteses materiais especiais OPM"},
	{"cid", "classificacao internacional doencas CID diagnostico"},
	{"cbo", "classificacao brasileira ocupacoes CBO profissional"},
	{"cnes", "cadastro nacional estabelecimentos saude CNES"},
	{"uti", "unidade terapia intensiva UTI leito"},
	{"aih", "autorizacao internacao hospitalar AIH"},
}

// GrupoSigtap maps SIGTAP group codes (first two digits of a procedure
// code) to their descriptions. Decomposition uses it to expand queries
// that carry a full procedure code.
var GrupoSigtap = map[string]string{
	"01": "acoes de promocao e prevencao",
	"02": "procedimentos diagnosticos (exames)",
	"03": "procedimentos clinicos (consultas, fisioterapia)",
	"04": "procedimentos cirurgicos",
	"05": "transplantes de orgaos tecidos e celulas",
	"06": "medicamentos",
	"07": "orteses proteses e materiais especiais (OPM)",
	"08": "acoes complementares (UTI, diarias)",
}
