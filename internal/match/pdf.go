package match

import "strings"

// minNameTokenLen is the shortest field-name token the PDF scorer counts
const minNameTokenLen = 3

// FieldNameScore is the lexical score used for PDF form fields, which carry
// only an internal name: 1.0 for identical normalized forms, 0.9 for
// containment either way, otherwise the share of the name's tokens found
// inside some question word.
func FieldNameScore(fieldName, questionText string) float64 {
	nf, nq := Normalize(fieldName), Normalize(questionText)
	if nf == "" || nq == "" {
		return 0
	}
	if nf == nq {
		return 1.0
	}
	if strings.Contains(nf, nq) || strings.Contains(nq, nf) {
		return 0.9
	}

	var tokens []string
	for _, tok := range NameTokens(fieldName) {
		if len(tok) >= minNameTokenLen {
			tokens = append(tokens, tok)
		}
	}
	questionWords := Words(questionText, 0)
	if len(tokens) == 0 || len(questionWords) == 0 {
		return 0
	}

	found := 0
	for _, tok := range tokens {
		for _, w := range questionWords {
			if strings.Contains(w, tok) {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(tokens))
}

// Overlaps reports whether two strings textually overlap: their normalized
// forms are non-empty and one contains the other.
func Overlaps(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
