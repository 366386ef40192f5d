// Package check runs the consistency rules over loaded collections. Checks
// never mutate; they produce a report of located issues an operator can fix
// without re-running the check.
package check

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"cronista/internal/config"
	"cronista/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	CodeDeadCharacterAppears = "dead_character_appears"
	CodeDateRegression       = "date_regression"
	CodePossibleDuplicate    = "possible_duplicate"
	CodeBrokenReference      = "broken_reference"
	CodeIncompleteCharacter  = "incomplete_character"
	CodeInvalidDate          = "invalid_date"
	CodeInvalidType          = "invalid_type"
	CodeEventRefsOutOfOrder  = "event_refs_out_of_order"
)

type Issue struct {
	Severity   Severity       `json:"severity"`
	Code       string         `json:"code"`
	Collection string         `json:"collection"`
	RecordID   string         `json:"record_id"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// ByCode partitions the report by issue code, in stable order.
func (r *Report) ByCode() map[string][]Issue {
	out := make(map[string][]Issue)
	for _, issue := range r.Issues {
		out[issue.Code] = append(out[issue.Code], issue)
	}
	return out
}

func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarn)
}

func (r *Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Checker holds the injected heuristics; it carries no mutable state.
type Checker struct {
	h *config.Heuristics
}

func New(h *config.Heuristics) *Checker {
	return &Checker{h: h}
}

// Run executes every rule family. Rules are independent: each walks the
// collections on its own and a finding in one never suppresses another.
func (c *Checker) Run(cols *store.Collections) *Report {
	report := &Report{Issues: make([]Issue, 0)}
	report.Issues = append(report.Issues, c.checkDates(cols)...)
	report.Issues = append(report.Issues, c.checkTypes(cols)...)
	report.Issues = append(report.Issues, c.checkTimeline(cols)...)
	report.Issues = append(report.Issues, c.checkDateOrder(cols)...)
	report.Issues = append(report.Issues, c.checkDuplicates(cols)...)
	report.Issues = append(report.Issues, c.checkReferences(cols)...)
	report.Issues = append(report.Issues, c.checkEventRefOrder(cols)...)
	report.Issues = append(report.Issues, c.checkCompleteness(cols)...)
	return report
}

// checkDates verifies that every non-empty event date parses as an ISO
// calendar date; later rules rely on lexicographic date comparison.
func (c *Checker) checkDates(cols *store.Collections) []Issue {
	var issues []Issue
	for _, ev := range cols.Events.Records {
		for _, fv := range [][2]string{{"date", ev.Date}, {"end_date", ev.EndDate}} {
			field, value := fv[0], fv[1]
			if value == "" || store.IsValidDate(value) {
				continue
			}
			issues = append(issues, Issue{
				Severity:   SeverityError,
				Code:       CodeInvalidDate,
				Collection: "events",
				RecordID:   ev.ID,
				Message:    fmt.Sprintf("%s %q is not a valid ISO date", field, value),
				Details:    map[string]any{"field": field, "value": value},
			})
		}
	}
	for _, law := range cols.Laws.Records {
		if law.DateEnacted == "" || store.IsValidDate(law.DateEnacted) {
			continue
		}
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       CodeInvalidDate,
			Collection: "laws",
			RecordID:   law.ID,
			Message:    fmt.Sprintf("date_enacted %q is not a valid ISO date", law.DateEnacted),
			Details:    map[string]any{"field": "date_enacted", "value": law.DateEnacted},
		})
	}
	return issues
}

// checkTypes flags event types outside the declared enum. Known aliases and
// case variants are reported too; `fix --types-only` rewrites those.
func (c *Checker) checkTypes(cols *store.Collections) []Issue {
	valid := make(map[string]struct{}, len(c.h.EventTypes.Values))
	for _, v := range c.h.EventTypes.Values {
		valid[v] = struct{}{}
	}

	var issues []Issue
	for _, ev := range cols.Events.Records {
		if ev.Type == "" {
			continue
		}
		if _, ok := valid[ev.Type]; ok {
			continue
		}
		issues = append(issues, Issue{
			Severity:   SeverityWarn,
			Code:       CodeInvalidType,
			Collection: "events",
			RecordID:   ev.ID,
			Message:    fmt.Sprintf("type %q is not a declared event type", ev.Type),
			Details:    map[string]any{"type": ev.Type},
		})
	}
	return issues
}

// checkTimeline flags events that reference a deceased character after
// their death event. The death event is the last entry of the character's
// event_refs; appearing in another event on the same date is allowed, which
// covers same-day multi-event deaths.
func (c *Checker) checkTimeline(cols *store.Collections) []Issue {
	var issues []Issue
	eventByID := cols.EventByID()
	eventsByChar := cols.EventsByCharacter()

	for _, char := range cols.Characters.Records {
		if !char.HasStatus("deceased") {
			continue
		}
		if len(char.EventRefs) == 0 {
			continue
		}
		death, ok := eventByID[char.EventRefs[len(char.EventRefs)-1]]
		if !ok || death.Date == "" {
			continue
		}
		for _, ev := range eventsByChar[char.ID] {
			if ev.ID == death.ID || ev.Date == "" {
				continue
			}
			if ev.Date > death.Date {
				issues = append(issues, Issue{
					Severity:   SeverityError,
					Code:       CodeDeadCharacterAppears,
					Collection: "events",
					RecordID:   ev.ID,
					Message:    fmt.Sprintf("%s appears on %s after dying in %s on %s", char.ID, ev.Date, death.ID, death.Date),
					Details: map[string]any{
						"character":   char.ID,
						"death_event": death.ID,
						"death_date":  death.Date,
						"event_date":  ev.Date,
					},
				})
			}
		}
	}
	return issues
}

// checkDateOrder flags inter-chapter date regressions within each book.
// Intra-chapter regressions are deliberate flashbacks and stay silent.
func (c *Checker) checkDateOrder(cols *store.Collections) []Issue {
	var issues []Issue

	byBook := make(map[string][]*store.Event)
	for i := range cols.Events.Records {
		ev := &cols.Events.Records[i]
		if ev.Date == "" {
			continue
		}
		byBook[ev.Book] = append(byBook[ev.Book], ev)
	}

	books := make([]string, 0, len(byBook))
	for book := range byBook {
		books = append(books, book)
	}
	sort.Strings(books)

	for _, book := range books {
		events := byBook[book]
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].Chapter != events[j].Chapter {
				return events[i].Chapter < events[j].Chapter
			}
			return events[i].Date < events[j].Date
		})

		prevChapter := ""
		prevChapterLast := ""
		chapterLast := ""
		for _, ev := range events {
			if ev.Chapter != prevChapter {
				prevChapterLast = chapterLast
				prevChapter = ev.Chapter
				chapterLast = ""
				if prevChapterLast != "" && ev.Date < prevChapterLast {
					issues = append(issues, Issue{
						Severity:   SeverityWarn,
						Code:       CodeDateRegression,
						Collection: "events",
						RecordID:   ev.ID,
						Message:    fmt.Sprintf("chapter %s opens on %s, before the previous chapter's last date %s", ev.Chapter, ev.Date, prevChapterLast),
						Details: map[string]any{
							"book":               book,
							"chapter":            ev.Chapter,
							"date":               ev.Date,
							"previous_last_date": prevChapterLast,
						},
					})
				}
			}
			if ev.Date > chapterLast {
				chapterLast = ev.Date
			}
		}
	}
	return issues
}

// checkDuplicates groups events by a normalized summary prefix. Heuristic,
// not exact-match: the prefix and minimum lengths come from configuration.
func (c *Checker) checkDuplicates(cols *store.Collections) []Issue {
	var issues []Issue

	groups := make(map[string][]string)
	for _, ev := range cols.Events.Records {
		key := normalizeSummary(ev.Summary, c.h.Duplicates.PrefixLen)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], ev.ID)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ids := groups[key]
		if len(ids) < 2 || utf8.RuneCountInString(key) <= c.h.Duplicates.MinPrefixLen {
			continue
		}
		issues = append(issues, Issue{
			Severity:   SeverityWarn,
			Code:       CodePossibleDuplicate,
			Collection: "events",
			RecordID:   ids[0],
			Message:    fmt.Sprintf("%d events share the summary prefix %q", len(ids), key),
			Details:    map[string]any{"events": ids, "prefix": key},
		})
	}
	return issues
}

func normalizeSummary(summary string, prefixLen int) string {
	s := strings.ToLower(strings.TrimSpace(summary))
	runes := []rune(s)
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	return string(runes)
}

// checkReferences verifies every foreign key across the collections. Each
// violation is reported individually with the referencing field.
func (c *Checker) checkReferences(cols *store.Collections) []Issue {
	var issues []Issue
	characters := cols.CharacterByID()
	events := cols.EventByID()
	factions := cols.FactionByID()

	broken := func(collection, recordID, field, target, kind string) Issue {
		return Issue{
			Severity:   SeverityError,
			Code:       CodeBrokenReference,
			Collection: collection,
			RecordID:   recordID,
			Message:    fmt.Sprintf("%s references unknown %s %q", field, kind, target),
			Details:    map[string]any{"field": field, "target": target, "kind": kind},
		}
	}

	for _, ev := range cols.Events.Records {
		for _, id := range ev.Characters {
			if c.h.IsReservedID(id) {
				continue
			}
			if _, ok := characters[id]; !ok {
				issues = append(issues, broken("events", ev.ID, "characters", id, "character"))
			}
		}
		for _, id := range ev.Factions {
			if _, ok := factions[id]; !ok {
				issues = append(issues, broken("events", ev.ID, "factions", id, "faction"))
			}
		}
	}

	for _, f := range cols.Factions.Records {
		if f.Leader != "" {
			if _, ok := characters[f.Leader]; !ok {
				issues = append(issues, broken("factions", f.ID, "leader", f.Leader, "character"))
			}
		}
		for _, id := range f.Members {
			if _, ok := characters[id]; !ok {
				issues = append(issues, broken("factions", f.ID, "members", id, "character"))
			}
		}
	}

	for _, char := range cols.Characters.Records {
		for _, id := range char.EventRefs {
			if _, ok := events[id]; !ok {
				issues = append(issues, broken("characters", char.ID, "event_refs", id, "event"))
			}
		}
	}

	for _, roll := range cols.Rolls.Records {
		if _, ok := events[roll.EventID]; !ok {
			issues = append(issues, broken("rolls", roll.ID, "event_id", roll.EventID, "event"))
		}
	}

	for _, law := range cols.Laws.Records {
		if law.OriginEventID == "" || law.OriginEventID == c.h.Linkage.UnresolvedSentinel {
			continue
		}
		if _, ok := events[law.OriginEventID]; !ok {
			issues = append(issues, broken("laws", law.ID, "origin_event_id", law.OriginEventID, "event"))
		}
	}

	return issues
}

// checkEventRefOrder warns when a character's event history is not
// date-monotonic. The timeline rule trusts the last ref as the death event,
// so an unsorted history weakens that check.
func (c *Checker) checkEventRefOrder(cols *store.Collections) []Issue {
	var issues []Issue
	events := cols.EventByID()

	for _, char := range cols.Characters.Records {
		prevDate := ""
		prevID := ""
		for _, id := range char.EventRefs {
			ev, ok := events[id]
			if !ok || ev.Date == "" {
				continue
			}
			if prevDate != "" && ev.Date < prevDate {
				issues = append(issues, Issue{
					Severity:   SeverityWarn,
					Code:       CodeEventRefsOutOfOrder,
					Collection: "characters",
					RecordID:   char.ID,
					Message:    fmt.Sprintf("event_refs not chronological: %s (%s) follows %s (%s)", id, ev.Date, prevID, prevDate),
					Details:    map[string]any{"event": id, "date": ev.Date, "previous_event": prevID, "previous_date": prevDate},
				})
				break
			}
			prevDate = ev.Date
			prevID = id
		}
	}
	return issues
}

// checkCompleteness flags thin character records. A data-quality signal,
// not a structural error, so everything here is a warning.
func (c *Checker) checkCompleteness(cols *store.Collections) []Issue {
	var issues []Issue
	for _, char := range cols.Characters.Records {
		var missing []string
		if strings.TrimSpace(char.Appearance) == "" {
			missing = append(missing, "appearance")
		}
		if strings.TrimSpace(char.SpeechStyle) == "" {
			missing = append(missing, "speech_style")
		}
		if len(char.Interests) == 0 {
			missing = append(missing, "interests")
		}
		if len(char.Traits) < c.h.Completeness.MinTraits {
			missing = append(missing, fmt.Sprintf("personality_traits (%d of %d)", len(char.Traits), c.h.Completeness.MinTraits))
		}
		if words := len(strings.Fields(char.Description)); words < c.h.Completeness.MinDescriptionWords {
			missing = append(missing, fmt.Sprintf("description (%d of %d words)", words, c.h.Completeness.MinDescriptionWords))
		}
		if len(missing) == 0 {
			continue
		}
		issues = append(issues, Issue{
			Severity:   SeverityWarn,
			Code:       CodeIncompleteCharacter,
			Collection: "characters",
			RecordID:   char.ID,
			Message:    fmt.Sprintf("incomplete profile: %s", strings.Join(missing, ", ")),
			Details:    map[string]any{"missing": missing},
		})
	}
	return issues
}
