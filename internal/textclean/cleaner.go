// Package textclean normalizes document and query text and extracts salient
// terms for retrieval. Language handling is data-driven: ranked profiles
// supply detection keywords and stop-word sets, so supporting another
// language means adding a profile, not a code branch.
package textclean

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

var (
	extraWhitespaceRe = regexp.MustCompile(`\s+`)
	punctKeepRe       = regexp.MustCompile(`[^\w\s.,!?-]`)
	nonAlphaRe        = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	repeatDotsRe      = regexp.MustCompile(`\.{2,}`)
	repeatBangRe      = regexp.MustCompile(`!{2,}`)
	repeatQmarkRe     = regexp.MustCompile(`\?{2,}`)
)

// Cleaner prepares text for chunking, indexing and retrieval.
type Cleaner struct {
	profiles []LanguageProfile
	stops    map[string]map[string]struct{}
	// Aggressive cleaning strips all punctuation and stop words. It hurt
	// recall in practice and stays off unless explicitly requested.
	Aggressive bool
	logger     *logrus.Logger
}

// New builds a Cleaner from the embedded language profiles.
func New(logger *logrus.Logger) (*Cleaner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	profiles, err := LoadProfiles()
	if err != nil {
		return nil, err
	}

	stops := make(map[string]map[string]struct{}, len(profiles))
	for _, p := range profiles {
		set := make(map[string]struct{}, len(p.StopWords))
		for _, w := range p.StopWords {
			set[strings.ToLower(w)] = struct{}{}
		}
		stops[p.Code] = set
	}

	logger.WithField("languages", len(profiles)).Debug("Text cleaner initialized")

	return &Cleaner{profiles: profiles, stops: stops, logger: logger}, nil
}

// DetectLanguage returns the profile code with the most indicator hits. Short
// or inconclusive text falls back to the first (highest-ranked) profile.
func (c *Cleaner) DetectLanguage(text string) string {
	fallback := c.profiles[0].Code
	if len(strings.TrimSpace(text)) < 10 {
		return fallback
	}

	padded := " " + strings.ToLower(text) + " "
	best := fallback
	bestCount := -1
	for _, p := range c.profiles {
		count := 0
		for _, word := range p.Indicators {
			if strings.Contains(padded, " "+word+" ") {
				count++
			}
		}
		if count > bestCount {
			best = p.Code
			bestCount = count
		}
	}
	return best
}

// CleanDocument normalizes extracted document text before chunking:
// lowercase plus whitespace squeeze. Empty input yields empty output.
func (c *Cleaner) CleanDocument(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = strings.ToLower(text)
	text = extraWhitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if c.Aggressive {
		text = c.aggressiveClean(text)
	}
	return text
}

// CleanQuery lightly sanitizes a user query: strip characters outside word
// characters and basic punctuation, collapse repeated punctuation, squeeze
// whitespace. Case is preserved so named entities keep their shape.
func (c *Cleaner) CleanQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}

	text := punctKeepRe.ReplaceAllString(query, " ")
	text = repeatDotsRe.ReplaceAllString(text, ".")
	text = repeatBangRe.ReplaceAllString(text, "!")
	text = repeatQmarkRe.ReplaceAllString(text, "?")
	text = extraWhitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractKeyTerms returns up to maxTerms content-bearing tokens: alphabetic,
// longer than two characters, not in the detected language's stop-word set.
// Longer terms rank first as a proxy for specificity.
func (c *Cleaner) ExtractKeyTerms(text string, maxTerms int) []string {
	if strings.TrimSpace(text) == "" || maxTerms <= 0 {
		return nil
	}

	lang := c.DetectLanguage(text)
	stops := c.stops[lang]

	seen := make(map[string]struct{})
	var terms []string
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		lower := strings.ToLower(token)
		if len(lower) <= 2 || !containsLetter(lower) {
			continue
		}
		if _, stop := stops[lower]; stop {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		terms = append(terms, lower)
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return len(terms[i]) > len(terms[j])
	})
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return terms
}

// EnhanceQuery appends up to two extracted terms that are absent from the
// cleaned query, broadening recall without bloating the query.
func (c *Cleaner) EnhanceQuery(query string, keyTerms []string) string {
	if len(keyTerms) == 0 {
		return query
	}

	queryLower := strings.ToLower(query)
	var missing []string
	for _, term := range keyTerms {
		if !strings.Contains(queryLower, strings.ToLower(term)) {
			missing = append(missing, term)
		}
	}
	if len(missing) == 0 {
		return query
	}
	if len(missing) > 2 {
		missing = missing[:2]
	}
	return strings.TrimSpace(query + " " + strings.Join(missing, " "))
}

func (c *Cleaner) aggressiveClean(text string) string {
	text = nonAlphaRe.ReplaceAllString(text, " ")
	lang := c.DetectLanguage(text)
	stops := c.stops[lang]

	var kept []string
	for _, word := range strings.Fields(text) {
		if len(word) < 2 && word != "a" && word != "i" {
			continue
		}
		if _, stop := stops[word]; stop {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
