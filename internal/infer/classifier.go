package infer

import (
	"cronista/internal/config"
	"cronista/internal/store"
)

// Classifier is one trait signal source. Each implementation counts how
// often its signal fires across a character's event history; the engine
// aggregates the counts. New heuristics plug in without touching the
// aggregation logic.
type Classifier interface {
	Name() string
	// Classify returns trait -> signal count for one character. events is
	// the character's resolved history in ref order; sentences are the
	// character-relevant sentences drawn from those events.
	Classify(events []*store.Event, sentences []string) map[string]int
}

// typeClassifier maps event type frequency through the type→trait table.
type typeClassifier struct {
	table map[string][]string
}

func (c *typeClassifier) Name() string { return "event_type" }

func (c *typeClassifier) Classify(events []*store.Event, _ []string) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		for _, trait := range c.table[ev.Type] {
			counts[trait]++
		}
	}
	return counts
}

// tagClassifier maps event tag frequency through the tag→trait table.
type tagClassifier struct {
	table map[string][]string
}

func (c *tagClassifier) Name() string { return "event_tag" }

func (c *tagClassifier) Classify(events []*store.Event, _ []string) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		for _, tag := range ev.Tags {
			for _, trait := range c.table[tag] {
				counts[trait]++
			}
		}
	}
	return counts
}

// keywordClassifier counts regex keyword matches inside character-relevant
// sentences.
type keywordClassifier struct {
	rules []config.CompiledKeywordRule
}

func (c *keywordClassifier) Name() string { return "keyword" }

func (c *keywordClassifier) Classify(_ []*store.Event, sentences []string) map[string]int {
	counts := make(map[string]int)
	for _, sentence := range sentences {
		for _, rule := range c.rules {
			if rule.Re.MatchString(sentence) {
				for _, trait := range rule.Traits {
					counts[trait]++
				}
			}
		}
	}
	return counts
}

func defaultClassifiers(h *config.Heuristics) []Classifier {
	return []Classifier{
		&typeClassifier{table: h.Traits.TypeTraits},
		&tagClassifier{table: h.Traits.TagTraits},
		&keywordClassifier{rules: h.KeywordRules()},
	}
}
