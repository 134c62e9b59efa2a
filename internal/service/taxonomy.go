package service

// Category is one protected attribute class with the keywords that signal
// it in column names. Order matters: when a column ties across categories,
// the earliest category wins.
type Category struct {
	Name     string
	Keywords []string
}

// DefaultTaxonomy covers the protected classes recognized by US
// anti-discrimination law, with Portuguese variants for the mixed-language
// corpora the validation set includes.
func DefaultTaxonomy() []Category {
	return []Category{
		{Name: "race", Keywords: []string{"race", "ethnicity", "ethnic", "raca", "etnia", "color"}},
		{Name: "gender", Keywords: []string{"gender", "sex", "genero", "sexo", "male", "female"}},
		{Name: "age", Keywords: []string{"age", "birth", "birthday", "anos", "idade", "dob"}},
		{Name: "religion", Keywords: []string{"religion", "religious", "faith", "religiao"}},
		{Name: "disability", Keywords: []string{"disability", "disabled", "handicap", "deficiencia"}},
		{Name: "nationality", Keywords: []string{"nationality", "national", "country", "nation"}},
		{Name: "marital", Keywords: []string{"marital", "married", "marriage", "civil"}},
		{Name: "veteran", Keywords: []string{"veteran", "military", "service"}},
		{Name: "orientation", Keywords: []string{"orientation", "sexual", "lgbt"}},
	}
}

// valueVocabularies map a category to the closed value sets that identify
// it even when the column name says nothing. Only consulted when name
// matching stays below threshold.
var valueVocabularies = map[string][]string{
	"gender":  {"m", "f", "male", "female", "masculino", "feminino"},
	"race":    {"white", "black", "asian", "hispanic", "latino", "branco", "preto", "pardo", "indigena", "amarelo"},
	"marital": {"single", "married", "divorced", "widowed", "solteiro", "casado", "divorciado", "viuvo"},
}
