package keywords

import (
	"regexp"
	"strings"

	"github.com/brightline/composer/internal/model"
)

// CleanResult is the outcome of one cleaning pass: the surviving terms
// and the rejected terms annotated with the rule that fired.
type CleanResult struct {
	Cleaned []string               `json:"cleaned"`
	Removed []model.RemovedKeyword `json:"removed"`
}

// dimensionPattern matches size-like dimension tokens such as "10x12".
var dimensionPattern = regexp.MustCompile(`(?i)^\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?$`)

// measurePattern matches measurement tokens such as "500ml" or "12 oz".
var measurePattern = regexp.MustCompile(`(?i)^\d+(?:\.\d+)?\s*(?:mm|cm|m|in|inch|inches|ft|oz|ml|l|kg|g|lb|lbs|gal|ct|pk|pack)$`)

// Clean applies the rule-based filters to a keyword batch in a single
// left-to-right pass. Rule precedence per keyword: blank, duplicate,
// stopword, brand, competitor, color, size; the first active rule that
// matches records the removal and later rules are not consulted.
//
// Clean is pure: identical inputs always yield identical outputs, and
// malformed input (missing attribute maps, empty context) degrades to
// the fallback vocabularies instead of failing.
func Clean(kws []string, settings model.CleanSettings, pctx model.ProjectContext, variants []model.Variant) CleanResult {
	colorTerms := collectAttributeTerms(variants, isColorKey, lists.Colors)
	sizeTerms := collectAttributeTerms(variants, isSizeKey, lists.Sizes)
	brand := strings.ToLower(strings.TrimSpace(pctx.ClientName))

	competitors := make([]string, 0, len(pctx.WhatNotToSay))
	for _, c := range pctx.WhatNotToSay {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			competitors = append(competitors, c)
		}
	}

	result := CleanResult{Cleaned: []string{}, Removed: []model.RemovedKeyword{}}
	accepted := make(map[string]bool, len(kws))

	for _, raw := range kws {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			result.Removed = append(result.Removed, model.RemovedKeyword{Term: raw, Reason: model.RemovalBlank})
			continue
		}

		lower := strings.ToLower(kw)
		switch {
		case accepted[lower]:
			result.Removed = append(result.Removed, model.RemovedKeyword{Term: kw, Reason: model.RemovalDuplicate})
		case isStopword(lower):
			result.Removed = append(result.Removed, model.RemovedKeyword{Term: kw, Reason: model.RemovalStopword})
		case settings.RemoveBrandTerms && brand != "" && strings.Contains(lower, brand):
			result.Removed = append(result.Removed, model.RemovedKeyword{Term: kw, Reason: model.RemovalBrand})
		case settings.RemoveCompetitorTerms && containsAny(lower, competitors):
			result.Removed = append(result.Removed, model.RemovedKeyword{Term: kw, Reason: model.RemovalCompetitor})
		case settings.RemoveColors && matchesVocabulary(lower, colorTerms):
			result.Removed = append(result.Removed, model.RemovedKeyword{Term: kw, Reason: model.RemovalColor})
		case settings.RemoveSizes && (matchesVocabulary(lower, sizeTerms) || hasSizeToken(lower)):
			result.Removed = append(result.Removed, model.RemovedKeyword{Term: kw, Reason: model.RemovalSize})
		default:
			accepted[lower] = true
			result.Cleaned = append(result.Cleaned, kw)
		}
	}
	return result
}

func isStopword(lower string) bool {
	for _, sw := range lists.Stopwords {
		if lower == sw {
			return true
		}
	}
	return false
}

// containsAny reports substring containment of any vocabulary entry.
func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// matchesVocabulary reports whether the keyword matches a vocabulary
// term: a multi-word term by substring containment, a single-word term
// by whole-token equality (so "red" matches "red dress", not "reduced").
func matchesVocabulary(lower string, terms []string) bool {
	var tokens []string
	for _, t := range terms {
		if lower == t {
			return true
		}
		if strings.ContainsRune(t, ' ') {
			if strings.Contains(lower, t) {
				return true
			}
			continue
		}
		if tokens == nil {
			tokens = splitTokens(lower)
		}
		for _, tok := range tokens {
			if tok == t {
				return true
			}
		}
	}
	return false
}

// hasSizeToken applies the size fallback heuristics for tokens the
// vocabulary cannot enumerate: dimension patterns and measurements.
func hasSizeToken(lower string) bool {
	for _, tok := range splitTokens(lower) {
		if dimensionPattern.MatchString(tok) || measurePattern.MatchString(tok) {
			return true
		}
	}
	return false
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '/' || r == '×')
	})
}

// collectAttributeTerms gathers lowercase values from variant attributes
// whose key matches the given predicate, then appends the fallback
// vocabulary. Missing or malformed attribute maps contribute nothing.
func collectAttributeTerms(variants []model.Variant, keyMatch func(string) bool, fallback []string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, v := range variants {
		for key, value := range v.Attributes {
			if !keyMatch(normalizeKey(key)) {
				continue
			}
			value = strings.ToLower(strings.TrimSpace(value))
			if value == "" || seen[value] {
				continue
			}
			seen[value] = true
			terms = append(terms, value)
		}
	}
	for _, t := range fallback {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms
}

// normalizeKey lowercases an attribute key and folds separators so
// "Pack Size", "pack-size", and "pack_size" compare equal.
func normalizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	return key
}

func isColorKey(key string) bool {
	return strings.Contains(key, "color") || strings.Contains(key, "colour")
}

func isSizeKey(key string) bool {
	return strings.Contains(key, "size") || strings.Contains(key, "dimension")
}
