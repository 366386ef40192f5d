package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Heuristics bundles every tunable table and threshold used by the engines.
// The zero value is not usable; start from DefaultHeuristics and optionally
// overlay a yaml file. Engines receive the loaded structure and never
// mutate it.
type Heuristics struct {
	Linkage      LinkageConfig      `yaml:"linkage"`
	Traits       TraitsConfig       `yaml:"traits"`
	Duplicates   DuplicatesConfig   `yaml:"duplicates"`
	Completeness CompletenessConfig `yaml:"completeness"`
	Bands        []Band             `yaml:"bands"`
	EventTypes   EventTypesConfig   `yaml:"event_types"`
	ReservedIDs  []string           `yaml:"reserved_ids"`

	stopwords    map[string]struct{}
	bandByLabel  map[string]*Band
	keywordRules []CompiledKeywordRule
}

type LinkageConfig struct {
	Weights            LinkageWeights `yaml:"weights"`
	Threshold          int            `yaml:"threshold"`
	DateToleranceDays  int            `yaml:"date_tolerance_days"`
	PrivilegedTypes    []string       `yaml:"privileged_types"`
	TitleTerms         int            `yaml:"title_terms"`
	RelatedMinOverlap  int            `yaml:"related_min_overlap"`
	MaxRelated         int            `yaml:"max_related"`
	UnresolvedSentinel string         `yaml:"unresolved_sentinel"`
	Stopwords          []string       `yaml:"stopwords"`
}

type LinkageWeights struct {
	DateExact      int `yaml:"date_exact"`
	EnactedBy      int `yaml:"enacted_by"`
	ProposedBy     int `yaml:"proposed_by"`
	TitleWord      int `yaml:"title_word"`
	TagOverlap     int `yaml:"tag_overlap"`
	PrivilegedType int `yaml:"privileged_type"`
}

type TraitsConfig struct {
	TypeTraits       map[string][]string `yaml:"type_traits"`
	TagTraits        map[string][]string `yaml:"tag_traits"`
	KeywordTraits    []KeywordRule       `yaml:"keyword_traits"`
	FallbackKeywords map[string][]string `yaml:"fallback_keywords"`
	FixedThreshold   int                 `yaml:"fixed_threshold"`
	MaxNewTraits     int                 `yaml:"max_new_traits"`
	TaskEvents       int                 `yaml:"task_events"`
	TaskMaxLen       int                 `yaml:"task_max_len"`
}

type KeywordRule struct {
	Pattern string   `yaml:"pattern"`
	Traits  []string `yaml:"traits"`
}

// CompiledKeywordRule is a KeywordRule with its pattern compiled
// case-insensitively.
type CompiledKeywordRule struct {
	Re     *regexp.Regexp
	Traits []string
}

type DuplicatesConfig struct {
	PrefixLen    int `yaml:"prefix_len"`
	MinPrefixLen int `yaml:"min_prefix_len"`
}

type CompletenessConfig struct {
	MinTraits           int `yaml:"min_traits"`
	MinDescriptionWords int `yaml:"min_description_words"`
}

// Band is one canonical numeric outcome range plus the descriptive labels
// that normalize into it.
type Band struct {
	Min    int      `yaml:"min"`
	Max    int      `yaml:"max"`
	Labels []string `yaml:"labels"`
}

type EventTypesConfig struct {
	Values  []string          `yaml:"values"`
	Aliases map[string]string `yaml:"aliases"`
}

func DefaultHeuristics() *Heuristics {
	h := &Heuristics{
		Linkage: LinkageConfig{
			Weights: LinkageWeights{
				DateExact:      50,
				EnactedBy:      20,
				ProposedBy:     15,
				TitleWord:      3,
				TagOverlap:     5,
				PrivilegedType: 10,
			},
			Threshold:          30,
			DateToleranceDays:  30,
			PrivilegedTypes:    []string{"council", "decree", "judgment"},
			TitleTerms:         5,
			RelatedMinOverlap:  2,
			MaxRelated:         12,
			UnresolvedSentinel: "unknown",
			Stopwords: []string{
				"a", "an", "and", "de", "del", "el", "for", "in", "la",
				"las", "los", "of", "on", "or", "the", "to", "y",
			},
		},
		Traits: TraitsConfig{
			TypeTraits: map[string][]string{
				"battle":      {"brave", "martial"},
				"council":     {"diplomatic", "calculating"},
				"decree":      {"authoritative"},
				"intrigue":    {"cunning", "secretive"},
				"judgment":    {"stern", "just"},
				"ceremony":    {"devout"},
				"negotiation": {"diplomatic", "pragmatic"},
			},
			TagTraits: map[string][]string{
				"betrayal":  {"vengeful", "distrustful"},
				"charity":   {"generous"},
				"conquest":  {"ambitious"},
				"faith":     {"pious"},
				"honor":     {"honorable"},
				"mercy":     {"merciful"},
				"rebellion": {"defiant"},
				"scholarly": {"learned"},
				"trade":     {"shrewd"},
			},
			KeywordTraits: []KeywordRule{
				{Pattern: `\b(pray|prayer|mass|pilgrimage|vow)\b`, Traits: []string{"pious"}},
				{Pattern: `\b(charge|duel|sword|vanguard)\b`, Traits: []string{"brave"}},
				{Pattern: `\b(plot|scheme|whisper|spy)\b`, Traits: []string{"cunning"}},
				{Pattern: `\b(pardon|spare|forgive)\b`, Traits: []string{"merciful"}},
				{Pattern: `\b(ledger|debt|coin|tax)\b`, Traits: []string{"shrewd"}},
				{Pattern: `\b(oath|pledge|word of honor)\b`, Traits: []string{"honorable"}},
			},
			FallbackKeywords: map[string][]string{
				"bishop":    {"pious"},
				"abbot":     {"pious"},
				"commander": {"martial"},
				"captain":   {"martial"},
				"merchant":  {"shrewd"},
				"scribe":    {"learned"},
				"judge":     {"just"},
			},
			FixedThreshold: 2,
			MaxNewTraits:   6,
			TaskEvents:     3,
			TaskMaxLen:     300,
		},
		Duplicates: DuplicatesConfig{
			PrefixLen:    80,
			MinPrefixLen: 30,
		},
		Completeness: CompletenessConfig{
			MinTraits:           4,
			MinDescriptionWords: 20,
		},
		Bands: []Band{
			{Min: 1, Max: 5, Labels: []string{"critical_failure", "fumble"}},
			{Min: 6, Max: 20, Labels: []string{"failure"}},
			{Min: 21, Max: 40, Labels: []string{"partial_failure", "setback"}},
			{Min: 41, Max: 60, Labels: []string{"mixed", "partial_success"}},
			{Min: 61, Max: 80, Labels: []string{"success"}},
			{Min: 81, Max: 93, Labels: []string{"great_success"}},
			{Min: 94, Max: 100, Labels: []string{"critical_success", "triumph"}},
		},
		EventTypes: EventTypesConfig{
			Values: []string{
				"battle", "ceremony", "council", "decree", "intrigue",
				"journey", "judgment", "negotiation", "personal",
			},
			Aliases: map[string]string{
				"combat":       "battle",
				"skirmish":     "battle",
				"court":        "judgment",
				"trial":        "judgment",
				"edict":        "decree",
				"proclamation": "decree",
				"meeting":      "council",
				"travel":       "journey",
			},
		},
		ReservedIDs: []string{"narrator"},
	}
	return h
}

// LoadHeuristics returns the defaults overlaid with the yaml file at path.
// An empty path yields the defaults as-is.
func LoadHeuristics(path string) (*Heuristics, error) {
	h := DefaultHeuristics()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading heuristics: %w", err)
		}
		if err := yaml.Unmarshal(data, h); err != nil {
			return nil, fmt.Errorf("loading heuristics: %w", err)
		}
	}
	if err := h.finish(); err != nil {
		return nil, fmt.Errorf("loading heuristics: %w", err)
	}
	return h, nil
}

func (h *Heuristics) finish() error {
	if h.Linkage.Threshold <= 0 {
		return fmt.Errorf("linkage threshold must be positive")
	}
	if h.Linkage.TitleTerms <= 0 {
		return fmt.Errorf("linkage title_terms must be positive")
	}
	if h.Duplicates.PrefixLen <= 0 || h.Duplicates.MinPrefixLen < 0 {
		return fmt.Errorf("invalid duplicate prefix configuration")
	}
	if h.Traits.MaxNewTraits <= 0 {
		return fmt.Errorf("traits max_new_traits must be positive")
	}
	if len(h.Bands) == 0 {
		return fmt.Errorf("at least one outcome band is required")
	}

	sorted := make([]Band, len(h.Bands))
	copy(sorted, h.Bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })
	prev := 0
	for _, b := range sorted {
		if b.Min > b.Max {
			return fmt.Errorf("band %d-%d is inverted", b.Min, b.Max)
		}
		if b.Min != prev+1 {
			return fmt.Errorf("bands must tile 1-100 without gaps, got %d after %d", b.Min, prev)
		}
		prev = b.Max
	}
	if prev != 100 {
		return fmt.Errorf("bands must end at 100, got %d", prev)
	}
	h.Bands = sorted

	h.stopwords = make(map[string]struct{}, len(h.Linkage.Stopwords))
	for _, w := range h.Linkage.Stopwords {
		h.stopwords[strings.ToLower(w)] = struct{}{}
	}

	h.bandByLabel = make(map[string]*Band)
	for i := range h.Bands {
		for _, label := range h.Bands[i].Labels {
			key := normalizeLabel(label)
			if _, exists := h.bandByLabel[key]; exists {
				return fmt.Errorf("duplicate band label: %s", label)
			}
			h.bandByLabel[key] = &h.Bands[i]
		}
	}

	h.keywordRules = h.keywordRules[:0]
	for _, rule := range h.Traits.KeywordTraits {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return fmt.Errorf("keyword pattern %q: %w", rule.Pattern, err)
		}
		h.keywordRules = append(h.keywordRules, CompiledKeywordRule{Re: re, Traits: rule.Traits})
	}

	return nil
}

// IsStopword reports whether w is on the linkage stopword list.
func (h *Heuristics) IsStopword(w string) bool {
	_, ok := h.stopwords[strings.ToLower(w)]
	return ok
}

// BandForLabel resolves a descriptive outcome label to its canonical band.
func (h *Heuristics) BandForLabel(label string) (*Band, bool) {
	b, ok := h.bandByLabel[normalizeLabel(label)]
	return b, ok
}

// BandForValue returns the canonical band containing v, if any.
func (h *Heuristics) BandForValue(v int) (*Band, bool) {
	for i := range h.Bands {
		if v >= h.Bands[i].Min && v <= h.Bands[i].Max {
			return &h.Bands[i], true
		}
	}
	return nil, false
}

// KeywordRules exposes the compiled trait keyword matchers.
func (h *Heuristics) KeywordRules() []CompiledKeywordRule {
	return h.keywordRules
}

// IsReservedID reports whether id is exempt from referential checks.
func (h *Heuristics) IsReservedID(id string) bool {
	for _, r := range h.ReservedIDs {
		if r == id {
			return true
		}
	}
	return false
}

// IsPrivilegedType reports whether an event type carries the linkage bonus.
func (h *Heuristics) IsPrivilegedType(t string) bool {
	for _, p := range h.Linkage.PrivilegedTypes {
		if strings.EqualFold(p, t) {
			return true
		}
	}
	return false
}

// String renders a band in the canonical "min-max" form.
func (b Band) String() string {
	return fmt.Sprintf("%d-%d", b.Min, b.Max)
}

// Midpoint is the integer midpoint used when estimating a missing roll.
func (b Band) Midpoint() int {
	return (b.Min + b.Max) / 2
}

func normalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
