package match

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

// Blend weights of the combined field score
const (
	WeightText = 0.4
	WeightSem  = 0.3
	WeightType = 0.3

	// IdentityBoost is added when the field's id or name appears in the question
	IdentityBoost = 0.15

	// minIdentityLen is the id/name length a boost requires (exclusive)
	minIdentityLen = 3

	// shortTextareaLimit bounds textarea answers allowed into plain text inputs
	shortTextareaLimit = 100
)

func containsNormalized(haystack, needle string) bool {
	n := Normalize(needle)
	return n != "" && strings.Contains(haystack, n)
}

// TextSim is the lexical similarity of a to b: 1.0 for identical normalized
// forms, 0.85 when one contains the other, otherwise the fraction of a's
// words (longer than 2 runes) that overlap a word of b.
func TextSim(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.85
	}

	wordsA := Words(a, 2)
	wordsB := Words(b, 2)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	found := 0
	for _, wa := range wordsA {
		for _, wb := range wordsB {
			if strings.Contains(wb, wa) || strings.Contains(wa, wb) {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(wordsA))
}

// SemSim compares the topic categories both strings touch. A category hit
// through a shared keyword scores 0.9, a hit through different keywords
// 0.7, no common category 0.
func SemSim(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}

	best := 0.0
	for _, cat := range Categories {
		hitsA := cat.matches(na)
		if len(hitsA) == 0 {
			continue
		}
		hitsB := cat.matches(nb)
		if len(hitsB) == 0 {
			continue
		}
		for kw := range hitsA {
			if hitsB[kw] {
				return 0.9
			}
		}
		best = 0.7
	}
	return best
}

// compatible lists the control types each answer type populates exactly
var compatible = map[grant.QuestionType][]ControlType{
	grant.TypeText:         {ControlText, ControlEmail, ControlTel, ControlURL, ControlSearch},
	grant.TypeTextarea:     {ControlTextarea, ControlContentEditable},
	grant.TypeNumber:       {ControlNumber},
	grant.TypeDate:         {ControlDate},
	grant.TypeSingleChoice: {ControlRadio, ControlSelectOne},
	grant.TypeYesNo:        {ControlRadio, ControlSelectOne},
	grant.TypeMultiChoice:  {ControlCheckbox, ControlSelectMultiple},
}

// TypeCompat scores whether an answer of answerType and answerLen runes can
// be written into a control of controlType.
func TypeCompat(answerType grant.QuestionType, controlType ControlType, answerLen int) float64 {
	answerType = answerType.Effective()
	for _, ct := range compatible[answerType] {
		if ct == controlType {
			return 1.0
		}
	}

	switch {
	case answerType == grant.TypeTextarea && controlType == ControlText && answerLen < shortTextareaLimit:
		return 0.7
	case answerType == grant.TypeText && (controlType == ControlTextarea || controlType == ControlContentEditable):
		return 0.9
	case (answerType == grant.TypeNumber || answerType == grant.TypeDate) && controlType == ControlText:
		return 0.8
	}
	return 0
}

// Compatible reports whether q's answer may be written into the field at all
func Compatible(q grant.Question, f Field) bool {
	return TypeCompat(q.Type, f.Type, answerLen(q)) > 0
}

func answerLen(q grant.Question) int {
	return utf8.RuneCountInString(q.Answer.String())
}

// identityMatches reports whether an id or name appears in the normalized
// question text, either whole or as all of its name tokens.
func identityMatches(identity, normalizedQuestion string) bool {
	if utf8.RuneCountInString(identity) <= minIdentityLen || normalizedQuestion == "" {
		return false
	}
	whole := Normalize(identity)
	if whole == "" {
		return false
	}
	if strings.Contains(normalizedQuestion, whole) {
		return true
	}

	tokens := NameTokens(identity)
	if len(tokens) < 2 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(normalizedQuestion, tok) {
			return false
		}
	}
	return true
}

// IdentityBoostFor returns the id/name boost of f for questionText. The id
// and name boosts do not add up.
func IdentityBoostFor(questionText string, f Field) float64 {
	nq := Normalize(questionText)
	if identityMatches(f.ID, nq) || identityMatches(f.Name, nq) {
		return IdentityBoost
	}
	return 0
}

// Score is the combined confidence, in [0, 1], that f is where q's answer belongs
func Score(q grant.Question, f Field) float64 {
	bundle := f.Bundle()
	score := WeightText*TextSim(q.Text, bundle) +
		WeightSem*SemSim(q.Text, bundle) +
		WeightType*TypeCompat(q.Type, f.Type, answerLen(q)) +
		IdentityBoostFor(q.Text, f)
	return math.Max(0, math.Min(1, score))
}
