package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxPatternLine skips paragraphs too long to be a single address.
const maxPatternLine = 200

// streetKeywords are matched case-insensitively against whole words.
var streetKeywords = map[string]bool{
	"street": true, "st": true, "road": true, "rd": true, "avenue": true,
	"ave": true, "lane": true, "ln": true, "drive": true, "dr": true,
	"boulevard": true, "blvd": true, "way": true, "court": true, "ct": true,
	"place": true, "pl": true, "square": true, "sq": true, "highway": true,
	"hwy": true, "terrace": true, "crescent": true, "close": true,
	"parkway": true, "pkwy": true, "jalan": true, "jln": true, "lorong": true,
	"persiaran": true, "taman": true,
}

var (
	numberToken  = regexp.MustCompile(`^\d+[A-Za-z]?(?:[-/]\d+[A-Za-z]?)?$`)
	zipToken     = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
	ukPostcodeRE = regexp.MustCompile(`\b[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}\b`)
)

// tokenPunct is stripped from both ends of a word before matching.
const tokenPunct = ",.;:()[]\"'"

// matchPatterns returns line itself when it looks like an address: a
// street keyword next to a number or capitalized word, or a postal-code
// token next to a capitalized word.
func matchPatterns(line string) []string {
	line = collapseSpace(line)
	if utf8.RuneCountInString(line) > maxPatternLine || len(line) < 6 {
		return nil
	}

	words := strings.Fields(line)
	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = strings.Trim(w, tokenPunct)
	}

	for i, tok := range tokens {
		switch {
		case streetKeywords[strings.ToLower(tok)]:
			if neighborMatches(tokens, i, func(t string) bool { return numberToken.MatchString(t) || capitalized(t) }) {
				return []string{line}
			}
		case zipToken.MatchString(tok):
			if neighborMatches(tokens, i, capitalized) {
				return []string{line}
			}
		}
	}
	if ukPostcodeRE.MatchString(line) && hasCapitalizedWord(tokens) {
		return []string{line}
	}
	return nil
}

func neighborMatches(tokens []string, i int, pred func(string) bool) bool {
	if i > 0 && pred(tokens[i-1]) {
		return true
	}
	return i+1 < len(tokens) && pred(tokens[i+1])
}

func capitalized(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return r != utf8.RuneError && unicode.IsUpper(r) && !streetKeywords[strings.ToLower(tok)]
}

func hasCapitalizedWord(tokens []string) bool {
	for _, t := range tokens {
		if len(t) > 1 && capitalized(t) && !ukPostcodeRE.MatchString(t) {
			return true
		}
	}
	return false
}
