// Package infer derives character attributes from event history. Inference
// is additive and idempotent: explicit data is never overwritten with less,
// and re-running on unchanged collections produces no new diffs.
package infer

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"cronista/internal/config"
	"cronista/internal/store"
)

// CharacterDiff is the proposed mutation for one character. Empty fields
// mean no change.
type CharacterDiff struct {
	CharacterID string   `json:"character_id"`
	Location    string   `json:"location,omitempty"`
	CurrentTask string   `json:"current_task,omitempty"`
	NewTraits   []string `json:"new_traits,omitempty"`
	NewFactions []string `json:"new_factions,omitempty"`
}

func (d CharacterDiff) Empty() bool {
	return d.Location == "" && d.CurrentTask == "" && len(d.NewTraits) == 0 && len(d.NewFactions) == 0
}

type Result struct {
	Diffs  []CharacterDiff `json:"diffs"`
	Errors []error         `json:"-"`
}

type Engine struct {
	h           *config.Heuristics
	classifiers []Classifier
}

func New(h *config.Heuristics) *Engine {
	return &Engine{h: h, classifiers: defaultClassifiers(h)}
}

// NewWithClassifiers builds an engine with a custom signal set; used by
// tests and by callers adding heuristics.
func NewWithClassifiers(h *config.Heuristics, classifiers []Classifier) *Engine {
	return &Engine{h: h, classifiers: classifiers}
}

// Run computes proposed diffs for every character (or only the given ids).
// The collections are read-only here; Apply performs the mutations.
func (e *Engine) Run(cols *store.Collections, only ...string) *Result {
	result := &Result{}
	filter := make(map[string]struct{}, len(only))
	for _, id := range only {
		filter[id] = struct{}{}
	}

	eventByID := cols.EventByID()
	for i := range cols.Characters.Records {
		char := &cols.Characters.Records[i]
		if len(filter) > 0 {
			if _, ok := filter[char.ID]; !ok {
				continue
			}
		}
		diff := e.inferOne(char, eventByID)
		if !diff.Empty() {
			result.Diffs = append(result.Diffs, diff)
		}
	}
	return result
}

func (e *Engine) inferOne(char *store.Character, eventByID map[string]*store.Event) CharacterDiff {
	diff := CharacterDiff{CharacterID: char.ID}

	history := make([]*store.Event, 0, len(char.EventRefs))
	for _, id := range char.EventRefs {
		if ev, ok := eventByID[id]; ok {
			history = append(history, ev)
		}
	}

	sentences := relevantSentences(char, history)

	if loc := lastLocation(history); loc != "" && loc != char.Location {
		diff.Location = loc
	}
	if task := e.currentTask(char, history); task != "" && task != char.CurrentTask {
		diff.CurrentTask = task
	}
	diff.NewTraits = e.inferTraits(char, history, sentences)
	diff.NewFactions = e.inferFactions(char, history)

	return diff
}

// lastLocation is the location of the chronologically last event that has
// one, trusting ref order as chronology.
func lastLocation(history []*store.Event) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Location != "" {
			return history[i].Location
		}
	}
	return ""
}

// currentTask concatenates the character-relevant sentences of the last few
// events, most recent first, truncated at a sentence boundary.
func (e *Engine) currentTask(char *store.Character, history []*store.Event) string {
	n := e.h.Traits.TaskEvents
	recent := make([]*store.Event, 0, n)
	for i := len(history) - 1; i >= 0 && len(recent) < n; i-- {
		recent = append(recent, history[i])
	}

	var parts []string
	total := 0
	for _, ev := range recent {
		for _, sentence := range splitSentences(ev.Summary) {
			if !mentions(sentence, char) {
				continue
			}
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if total > 0 && total+len(sentence)+1 > e.h.Traits.TaskMaxLen {
				return strings.Join(parts, " ")
			}
			if total == 0 && len(sentence) > e.h.Traits.TaskMaxLen {
				return truncateAtWord(sentence, e.h.Traits.TaskMaxLen)
			}
			parts = append(parts, sentence)
			total += len(sentence) + 1
		}
	}
	return strings.Join(parts, " ")
}

// inferTraits aggregates the classifier signals. Each source is filtered by
// the adaptive threshold on its own, then the survivors are merged, ranked
// by frequency, and capped, so inference cannot explosively overwrite
// curated trait lists.
func (e *Engine) inferTraits(char *store.Character, history []*store.Event, sentences []string) []string {
	threshold := adaptiveThreshold(e.h.Traits.FixedThreshold, len(history))

	merged := make(map[string]int)
	for _, classifier := range e.classifiers {
		for trait, count := range classifier.Classify(history, sentences) {
			if count >= threshold {
				merged[trait] += count
			}
		}
	}

	existing := make(map[string]struct{}, len(char.Traits))
	for _, t := range char.Traits {
		existing[strings.ToLower(t)] = struct{}{}
	}

	type ranked struct {
		trait string
		count int
	}
	var candidates []ranked
	for trait, count := range merged {
		if _, ok := existing[strings.ToLower(trait)]; ok {
			continue
		}
		candidates = append(candidates, ranked{trait: trait, count: count})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].trait < candidates[j].trait
	})

	var out []string
	for _, c := range candidates {
		if len(out) >= e.h.Traits.MaxNewTraits {
			break
		}
		out = append(out, c.trait)
	}

	if len(out) == 0 && len(char.Traits) == 0 {
		out = e.fallbackTraits(char)
	}
	return out
}

// fallbackTraits infers from the id and name alone when no event signal
// cleared a threshold and the character has nothing yet.
func (e *Engine) fallbackTraits(char *store.Character) []string {
	haystack := strings.ToLower(char.ID + " " + char.Name)
	seen := make(map[string]struct{})
	var out []string

	keywords := make([]string, 0, len(e.h.Traits.FallbackKeywords))
	for kw := range e.h.Traits.FallbackKeywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			continue
		}
		for _, trait := range e.h.Traits.FallbackKeywords[kw] {
			if _, ok := seen[trait]; ok {
				continue
			}
			seen[trait] = struct{}{}
			out = append(out, trait)
		}
	}
	if len(out) > e.h.Traits.MaxNewTraits {
		out = out[:e.h.Traits.MaxNewTraits]
	}
	return out
}

// inferFactions derives membership only from small personal-scale events: a
// faction named as affected by an event with at most three characters is
// read as membership, unlike one named by a battle involving thousands.
func (e *Engine) inferFactions(char *store.Character, history []*store.Event) []string {
	existing := make(map[string]struct{}, len(char.Factions))
	for _, f := range char.Factions {
		existing[f] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, ev := range history {
		if len(ev.Characters) > 3 || len(ev.Factions) != 1 {
			continue
		}
		faction := ev.Factions[0]
		if _, ok := existing[faction]; ok {
			continue
		}
		if _, ok := seen[faction]; ok {
			continue
		}
		seen[faction] = struct{}{}
		out = append(out, faction)
	}
	return out
}

// Apply writes the diffs into the collections: scalars replaced with the
// derived current values, lists appended uniquely. Faction membership is
// mirrored onto the faction's member list to keep both sides consistent.
func Apply(cols *store.Collections, result *Result, logger *zap.Logger) int {
	byID := cols.CharacterByID()
	factions := cols.FactionByID()
	applied := 0

	for _, diff := range result.Diffs {
		char, ok := byID[diff.CharacterID]
		if !ok {
			continue
		}
		if diff.Location != "" {
			char.Location = diff.Location
		}
		if diff.CurrentTask != "" {
			char.CurrentTask = diff.CurrentTask
		}
		char.Traits = store.AppendUnique(char.Traits, diff.NewTraits...)
		char.Factions = store.AppendUnique(char.Factions, diff.NewFactions...)
		for _, factionID := range diff.NewFactions {
			if faction, ok := factions[factionID]; ok {
				faction.Members = store.AppendUnique(faction.Members, char.ID)
			}
		}
		applied++
		logger.Info("character attributes inferred",
			zap.String("character", diff.CharacterID),
			zap.String("location", diff.Location),
			zap.Int("new_traits", len(diff.NewTraits)),
			zap.Int("new_factions", len(diff.NewFactions)),
		)
	}
	return applied
}

// adaptiveThreshold relaxes the corroboration requirement for characters
// with short histories: max(1, min(fixed, eventCount/2)).
func adaptiveThreshold(fixed, eventCount int) int {
	t := eventCount / 2
	if t > fixed {
		t = fixed
	}
	if t < 1 {
		t = 1
	}
	return t
}

// truncateAtWord cuts s to at most max bytes without splitting a word.
func truncateAtWord(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		return s[:max]
	}
	return strings.TrimRight(s[:cut], " ,;")
}

var sentenceSplit = regexp.MustCompile(`(?m)([^.!?]+[.!?]*)`)

func splitSentences(text string) []string {
	matches := sentenceSplit.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// relevantSentences collects the sentences across the whole history that
// mention the character by name, surname, or id-derived variant.
func relevantSentences(char *store.Character, history []*store.Event) []string {
	var out []string
	for _, ev := range history {
		for _, sentence := range splitSentences(ev.Summary) {
			if mentions(sentence, char) {
				out = append(out, sentence)
			}
		}
	}
	return out
}

func mentions(sentence string, char *store.Character) bool {
	lower := strings.ToLower(sentence)
	for _, variant := range nameVariants(char) {
		if variant != "" && strings.Contains(lower, variant) {
			return true
		}
	}
	return false
}

func nameVariants(char *store.Character) []string {
	variants := []string{strings.ToLower(char.Name)}
	if fields := strings.Fields(char.Name); len(fields) > 1 {
		variants = append(variants, strings.ToLower(fields[len(fields)-1]))
	}
	variants = append(variants, strings.ToLower(strings.ReplaceAll(char.ID, "_", " ")))
	for _, alias := range char.Aliases {
		variants = append(variants, strings.ToLower(alias))
	}
	return variants
}
