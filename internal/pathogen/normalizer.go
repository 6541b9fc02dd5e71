package pathogen

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

// Method names the stage that resolved a label.
type Method string

const (
	MethodExact       Method = "exact"
	MethodAlias       Method = "alias"
	MethodCleaned     Method = "cleaned"
	MethodContainment Method = "containment"
	MethodFuzzy       Method = "fuzzy"
	MethodNone        Method = "none"
)

const (
	DefaultThreshold = 0.75
	DefaultCacheSize = 1024
)

// caseDefinitions are surveillance case definitions, not pathogens. Labels carrying one
// never reach substring or edit-distance matching.
var caseDefinitions = []string{"流感样", "急性呼吸道感染"}

var (
	reBracketed = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]|【[^【】]*】|〔[^〔〕]*〕`)
	reFootnote  = regexp.MustCompile(`[①-⑳⁰¹²³⁴⁵⁶⁷⁸⁹*※†‡#]+|\^\d+`)
	reSuffix    = regexp.MustCompile(`(阳性率|检出率|核酸|抗原|\(%\)|%)+$`)
	rePunct     = regexp.MustCompile(`[\p{P}\p{S}]+`)
)

// Match is the outcome of normalizing one raw label.
type Match struct {
	Raw      string             `json:"raw"`
	Pathogen constants.Pathogen `json:"pathogen"`
	Method   Method             `json:"method"`
	Score    float64            `json:"score"`
}

// Recognized reports whether the label mapped into the vocabulary.
func (m Match) Recognized() bool {
	return m.Pathogen != constants.Unrecognized
}

// Err is nil for a recognized label and wraps common.ErrUnrecognizedPathogen otherwise.
func (m Match) Err() error {
	if m.Recognized() {
		return nil
	}
	return fmt.Errorf("%w: %q", common.ErrUnrecognizedPathogen, m.Raw)
}

// term is a matchable spelling of a canonical pathogen.
type term struct {
	key      string
	pathogen constants.Pathogen
	runes    int
}

// Normalizer maps raw table labels onto the canonical vocabulary. It is a pure
// function of its alias table and threshold; the cache only memoizes it.
type Normalizer struct {
	logger    *slog.Logger
	aliases   map[string]constants.Pathogen
	threshold float64
	cacheSize int
	cache     *lru.Cache[string, Match]

	// containment and fuzzy candidates in deterministic order
	terms []term
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithThreshold sets the minimum edit-distance similarity for a fuzzy match.
func WithThreshold(t float64) Option {
	return func(n *Normalizer) {
		if t > 0 && t <= 1 {
			n.threshold = t
		}
	}
}

// WithAliases adds aliases on top of the built-in table.
func WithAliases(extra map[string]constants.Pathogen) Option {
	return func(n *Normalizer) {
		for k, p := range extra {
			n.aliases[fold(k)] = p
		}
	}
}

// WithCacheSize sets the memo size.
func WithCacheSize(size int) Option {
	return func(n *Normalizer) {
		if size > 0 {
			n.cacheSize = size
		}
	}
}

func NewNormalizer(logger *slog.Logger, opts ...Option) (*Normalizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		logger:    logger,
		aliases:   make(map[string]constants.Pathogen, len(constants.Synonyms)),
		threshold: DefaultThreshold,
		cacheSize: DefaultCacheSize,
	}
	for k, p := range constants.Synonyms {
		n.aliases[fold(k)] = p
	}
	for _, opt := range opts {
		opt(n)
	}

	cache, err := lru.New[string, Match](n.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer cache: %w", err)
	}
	n.cache = cache
	n.terms = buildTerms(n.aliases)
	return n, nil
}

// FromConfig builds a Normalizer from NormalizerConfig, loading the aliases file if set.
func FromConfig(cfg common.NormalizerConfig, logger *slog.Logger) (*Normalizer, error) {
	opts := []Option{WithThreshold(cfg.FuzzyThreshold), WithCacheSize(cfg.CacheSize)}
	if cfg.AliasesFile != "" {
		extra, err := LoadAliases(cfg.AliasesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithAliases(extra))
	}
	return NewNormalizer(logger, opts...)
}

// buildTerms orders canonical names first, in vocabulary order, then the aliases
// usable for substring and edit-distance matching, sorted by key. Short Latin
// abbreviations are left out: "ev" or "mp" would match inside unrelated words.
func buildTerms(aliases map[string]constants.Pathogen) []term {
	var out []term
	for _, p := range constants.AllPathogens() {
		out = append(out, term{key: string(p), pathogen: p, runes: utf8.RuneCountInString(string(p))})
	}
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n := utf8.RuneCountInString(k)
		han := strings.ContainsFunc(k, func(r rune) bool { return unicode.Is(unicode.Han, r) })
		if (han && n >= 2) || (!han && n >= 4) {
			out = append(out, term{key: k, pathogen: aliases[k], runes: n})
		}
	}
	return out
}

// Normalize maps raw onto the vocabulary. The result for a given raw label never changes
// for the lifetime of the Normalizer, and normalizing a canonical name returns itself.
func (n *Normalizer) Normalize(raw string) Match {
	if m, ok := n.cache.Get(raw); ok {
		return m
	}
	m := n.normalize(raw)
	n.cache.Add(raw, m)
	if !m.Recognized() {
		n.logger.Debug("pathogen.unrecognized", "label", raw)
	} else if m.Method == MethodFuzzy || m.Method == MethodContainment {
		n.logger.Debug("pathogen.approximate", "label", raw, "pathogen", m.Pathogen, "method", m.Method, "score", m.Score)
	}
	return m
}

func (n *Normalizer) normalize(raw string) Match {
	key := fold(raw)
	out := Match{Raw: raw, Pathogen: constants.Unrecognized, Method: MethodNone}
	if key == "" {
		return out
	}

	if p, ok := n.lookup(key); ok {
		out.Pathogen, out.Score = p, 1
		out.Method = MethodAlias
		if constants.IsCanonical(constants.Pathogen(key)) {
			out.Method = MethodExact
		}
		return out
	}

	cleaned := clean(key)
	if cleaned == "" {
		return out
	}
	if p, ok := n.lookup(cleaned); ok {
		out.Pathogen, out.Method, out.Score = p, MethodCleaned, 1
		return out
	}

	if isCaseDefinition(cleaned) {
		return out
	}

	if p, ok := n.contained(cleaned); ok {
		out.Pathogen, out.Method, out.Score = p, MethodContainment, 1
		return out
	}

	if p, score := n.closest(cleaned); score >= n.threshold {
		out.Pathogen, out.Method, out.Score = p, MethodFuzzy, score
		return out
	}
	return out
}

func isCaseDefinition(key string) bool {
	for _, d := range caseDefinitions {
		if strings.Contains(key, d) {
			return true
		}
	}
	return false
}

func (n *Normalizer) lookup(key string) (constants.Pathogen, bool) {
	if p := constants.Pathogen(key); constants.IsCanonical(p) {
		return p, true
	}
	p, ok := n.aliases[key]
	return p, ok
}

// contained finds the longest term occurring inside key. When the longest length is
// shared by terms of different pathogens the label is ambiguous and nothing matches.
// A key of two or more Han runes that sits inside exactly one pathogen's terms also matches.
func (n *Normalizer) contained(key string) (constants.Pathogen, bool) {
	best, bestLen, ambiguous := constants.Unrecognized, 0, false
	for _, t := range n.terms {
		if !strings.Contains(key, t.key) {
			continue
		}
		switch {
		case t.runes > bestLen:
			best, bestLen, ambiguous = t.pathogen, t.runes, false
		case t.runes == bestLen && t.pathogen != best:
			ambiguous = true
		}
	}
	if bestLen > 0 {
		return best, !ambiguous
	}

	if utf8.RuneCountInString(key) < 2 || !strings.ContainsFunc(key, func(r rune) bool { return unicode.Is(unicode.Han, r) }) {
		return constants.Unrecognized, false
	}
	found := constants.Unrecognized
	for _, t := range n.terms {
		if !strings.Contains(t.key, key) {
			continue
		}
		if found != constants.Unrecognized && found != t.pathogen {
			return constants.Unrecognized, false
		}
		found = t.pathogen
	}
	return found, found != constants.Unrecognized
}

// closest returns the term with the highest edit-distance similarity. Ties keep the
// earlier term, so canonical names win over aliases and vocabulary order decides the rest.
func (n *Normalizer) closest(key string) (constants.Pathogen, float64) {
	best, bestScore := constants.Unrecognized, 0.0
	for _, t := range n.terms {
		if s := Similarity(key, t.key); s > bestScore {
			best, bestScore = t.pathogen, s
		}
	}
	return best, bestScore
}

// Similarity is 1 - distance / longer length, counted in runes.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.Distance(a, b, nil)
	s := 1 - float64(d)/float64(longest)
	if s < 0 {
		return 0
	}
	return s
}

// fold is the lookup key of a label: width-folded, lower-cased, without whitespace.
func fold(s string) string {
	s = strings.ToLower(utils.NormalizeCell(s))
	return strings.Join(strings.Fields(s), "")
}

// clean drops bracketed qualifiers, footnote markers, rate suffixes and punctuation.
func clean(key string) string {
	key = reBracketed.ReplaceAllString(key, "")
	key = reFootnote.ReplaceAllString(key, "")
	key = reSuffix.ReplaceAllString(key, "")
	key = rePunct.ReplaceAllString(key, "")
	return key
}
