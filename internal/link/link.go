// Package link resolves a law's missing origin event with a weighted
// scoring heuristic. The engine never guesses below the acceptance
// threshold: low-confidence laws stay unresolved and are reported with
// their best score for manual triage.
package link

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"cronista/internal/config"
	"cronista/internal/store"
)

// ScoreBreakdown records every component that contributed to a candidate's
// score, so an operator can audit why a linkage was or was not accepted.
type ScoreBreakdown struct {
	DateExact      int `json:"date_exact"`
	EnactedBy      int `json:"enacted_by"`
	ProposedBy     int `json:"proposed_by"`
	TitleOverlap   int `json:"title_overlap"`
	TagOverlap     int `json:"tag_overlap"`
	PrivilegedType int `json:"privileged_type"`
	Total          int `json:"total"`
}

type Candidate struct {
	EventID   string         `json:"event_id"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Match is an accepted linkage plus the related-events enrichment.
type Match struct {
	LawID         string         `json:"law_id"`
	EventID       string         `json:"event_id"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
	RelatedEvents []string       `json:"related_events"`
}

// Unresolved is a law left unlinked, with its best candidate for triage.
type Unresolved struct {
	LawID     string `json:"law_id"`
	BestEvent string `json:"best_event,omitempty"`
	BestScore int    `json:"best_score"`
}

type Result struct {
	Matches    []Match      `json:"matches"`
	Unresolved []Unresolved `json:"unresolved"`
}

type Linker struct {
	h *config.Heuristics
}

func New(h *config.Heuristics) *Linker {
	return &Linker{h: h}
}

// Run scores every law whose origin is the unresolved sentinel (or empty)
// against its candidate events. The collections are read, never written;
// Apply performs the mutation.
func (l *Linker) Run(cols *store.Collections) *Result {
	result := &Result{}
	eventsByDate := cols.EventsByDate()
	eventsByChar := cols.EventsByCharacter()

	for _, law := range cols.Laws.Records {
		if !l.needsOrigin(&law) {
			continue
		}

		candidates := l.candidates(&law, eventsByDate, eventsByChar)
		best, ok := l.best(&law, candidates)
		if !ok {
			result.Unresolved = append(result.Unresolved, Unresolved{LawID: law.ID})
			continue
		}
		if best.Breakdown.Total < l.h.Linkage.Threshold {
			result.Unresolved = append(result.Unresolved, Unresolved{
				LawID:     law.ID,
				BestEvent: best.EventID,
				BestScore: best.Breakdown.Total,
			})
			continue
		}

		result.Matches = append(result.Matches, Match{
			LawID:         law.ID,
			EventID:       best.EventID,
			Breakdown:     best.Breakdown,
			RelatedEvents: l.relatedEvents(&law, best.EventID, cols),
		})
	}
	return result
}

func (l *Linker) needsOrigin(law *store.Law) bool {
	return law.OriginEventID == "" || law.OriginEventID == l.h.Linkage.UnresolvedSentinel
}

// candidates gathers events on the law's exact enactment date, plus events
// referencing the enacting or proposing character within the date tolerance.
func (l *Linker) candidates(law *store.Law, byDate, byChar map[string][]*store.Event) []*store.Event {
	seen := make(map[string]struct{})
	var out []*store.Event

	add := func(ev *store.Event) {
		if _, ok := seen[ev.ID]; ok {
			return
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
	}

	if law.DateEnacted != "" {
		for _, ev := range byDate[law.DateEnacted] {
			add(ev)
		}
	}
	for _, who := range []string{law.EnactedBy, law.ProposedBy} {
		if who == "" {
			continue
		}
		for _, ev := range byChar[who] {
			if law.DateEnacted == "" || ev.Date == "" {
				continue
			}
			if d := store.DaysBetween(ev.Date, law.DateEnacted); d >= 0 && d <= l.h.Linkage.DateToleranceDays {
				add(ev)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Linker) best(law *store.Law, candidates []*store.Event) (Candidate, bool) {
	var best Candidate
	found := false
	for _, ev := range candidates {
		c := Candidate{EventID: ev.ID, Breakdown: l.score(law, ev)}
		// Ties break toward the lexicographically earliest event id, which
		// is also creation order.
		if !found || c.Breakdown.Total > best.Breakdown.Total {
			best = c
			found = true
		}
	}
	return best, found
}

func (l *Linker) score(law *store.Law, ev *store.Event) ScoreBreakdown {
	w := l.h.Linkage.Weights
	var b ScoreBreakdown

	if law.DateEnacted != "" && ev.Date == law.DateEnacted {
		b.DateExact = w.DateExact
	}
	if law.EnactedBy != "" && containsID(ev.Characters, law.EnactedBy) {
		b.EnactedBy = w.EnactedBy
	}
	if law.ProposedBy != "" && containsID(ev.Characters, law.ProposedBy) {
		b.ProposedBy = w.ProposedBy
	}
	b.TitleOverlap = w.TitleWord * countOverlap(l.titleWords(law.Title), wordSet(ev.Summary))
	b.TagOverlap = w.TagOverlap * countOverlap(lowerSet(law.Tags), lowerSet(ev.Tags))
	if l.h.IsPrivilegedType(ev.Type) {
		b.PrivilegedType = w.PrivilegedType
	}

	b.Total = b.DateExact + b.EnactedBy + b.ProposedBy + b.TitleOverlap + b.TagOverlap + b.PrivilegedType
	return b
}

// relatedEvents is the many-to-many enrichment: events whose summary shares
// enough of the law's top title terms, plus the origin itself. The set is
// capped so formulaic titles cannot fan out across the whole collection.
func (l *Linker) relatedEvents(law *store.Law, originID string, cols *store.Collections) []string {
	terms := l.topTitleTerms(law.Title)

	type scored struct {
		id      string
		overlap int
		date    string
	}
	var related []scored
	for i := range cols.Events.Records {
		ev := &cols.Events.Records[i]
		if ev.ID == originID {
			continue
		}
		overlap := countOverlap(terms, wordSet(ev.Summary))
		if overlap >= l.h.Linkage.RelatedMinOverlap {
			related = append(related, scored{id: ev.ID, overlap: overlap, date: ev.Date})
		}
	}

	sort.Slice(related, func(i, j int) bool {
		if related[i].overlap != related[j].overlap {
			return related[i].overlap > related[j].overlap
		}
		if related[i].date != related[j].date {
			return related[i].date < related[j].date
		}
		return related[i].id < related[j].id
	})

	out := []string{originID}
	for _, r := range related {
		if len(out) >= l.h.Linkage.MaxRelated {
			break
		}
		out = append(out, r.id)
	}
	return out
}

// topTitleTerms keeps the first N non-stopword title terms in title order.
func (l *Linker) topTitleTerms(title string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" || l.h.IsStopword(w) {
			continue
		}
		if _, ok := out[w]; ok {
			continue
		}
		out[w] = struct{}{}
		if len(out) >= l.h.Linkage.TitleTerms {
			break
		}
	}
	return out
}

func (l *Linker) titleWords(title string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" || l.h.IsStopword(w) {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// Apply writes accepted matches into the laws collection and logs each
// acceptance. Unresolved laws are left untouched.
func Apply(cols *store.Collections, result *Result, logger *zap.Logger) int {
	byID := cols.LawByID()
	applied := 0
	for _, m := range result.Matches {
		law, ok := byID[m.LawID]
		if !ok {
			continue
		}
		law.OriginEventID = m.EventID
		law.RelatedEvents = m.RelatedEvents
		applied++
		logger.Info("law origin linked",
			zap.String("law", m.LawID),
			zap.String("event", m.EventID),
			zap.Int("score", m.Breakdown.Total),
			zap.Int("related_events", len(m.RelatedEvents)),
		)
	}
	return applied
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func wordSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

func lowerSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.ToLower(v)] = struct{}{}
	}
	return out
}

func countOverlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
