package check

import (
	"strings"
	"testing"

	"cronista/internal/config"
	"cronista/internal/store"
)

func testHeuristics(t *testing.T) *config.Heuristics {
	t.Helper()
	h, err := config.LoadHeuristics("")
	if err != nil {
		t.Fatalf("heuristics: %v", err)
	}
	return h
}

func emptyCollections() *store.Collections {
	return &store.Collections{
		Events:     &store.Events{},
		Characters: &store.Characters{},
		Factions:   &store.Factions{},
		Locations:  &store.Locations{},
		Laws:       &store.Laws{},
		Rolls:      &store.Rolls{},
	}
}

func issuesByCode(report *Report, code string) []Issue {
	return report.ByCode()[code]
}

func TestRun_CleanCollections(t *testing.T) {
	cols := emptyCollections()
	report := New(testHeuristics(t)).Run(cols)
	if len(report.Issues) != 0 {
		t.Fatalf("issues = %+v, want none", report.Issues)
	}
}

// A deceased character appearing after their death event is reported once
// per offending event; appearing on the death date itself is fine.
func TestTimeline_DeadCharacterAppears(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_100", Date: "1454-07-21", Chapter: "ch20", Type: "personal", Summary: "The king dies at Valladolid.", Characters: []string{"juan_ii"}},
		{ID: "ev_101", Date: "1454-07-21", Chapter: "ch20", Type: "ceremony", Summary: "The body lies in state.", Characters: []string{"juan_ii"}},
		{ID: "ev_150", Date: "1460-01-01", Chapter: "ch25", Type: "council", Summary: "A council invokes the late king.", Characters: []string{"juan_ii"}},
	}
	cols.Characters.Records = []store.Character{
		{ID: "juan_ii", Name: "Juan II", Status: []string{"deceased"}, EventRefs: []string{"ev_101", "ev_100"}},
	}

	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodeDeadCharacterAppears)
	if len(issues) != 1 {
		t.Fatalf("dead_character_appears = %d, want exactly 1: %+v", len(issues), issues)
	}
	issue := issues[0]
	if issue.RecordID != "ev_150" {
		t.Errorf("record = %s, want ev_150", issue.RecordID)
	}
	if issue.Details["character"] != "juan_ii" || issue.Details["death_event"] != "ev_100" {
		t.Errorf("details = %+v", issue.Details)
	}
}

func TestTimeline_AliveCharacterIgnored(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Date: "1431-06-06", Characters: []string{"alvaro"}},
		{ID: "ev_002", Date: "1460-01-01", Characters: []string{"alvaro"}},
	}
	cols.Characters.Records = []store.Character{
		{ID: "alvaro", Name: "Álvaro", Status: []string{"active"}, EventRefs: []string{"ev_001"}},
	}
	report := New(testHeuristics(t)).Run(cols)
	if issues := issuesByCode(report, CodeDeadCharacterAppears); len(issues) != 0 {
		t.Fatalf("issues = %+v, want none", issues)
	}
}

// Only inter-chapter regressions are flagged; a flashback inside a chapter
// is valid narrative structure.
func TestDateOrder_InterChapterRegression(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Book: "b1", Chapter: "ch01", Date: "1431-06-01", Summary: "a"},
		{ID: "ev_002", Book: "b1", Chapter: "ch01", Date: "1431-06-20", Summary: "b"},
		{ID: "ev_003", Book: "b1", Chapter: "ch02", Date: "1431-06-10", Summary: "c"},
	}
	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodeDateRegression)
	if len(issues) != 1 {
		t.Fatalf("date_regression = %d, want 1: %+v", len(issues), issues)
	}
	if issues[0].RecordID != "ev_003" {
		t.Errorf("record = %s, want ev_003", issues[0].RecordID)
	}
}

func TestDateOrder_IntraChapterFlashbackAllowed(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Book: "b1", Chapter: "ch01", Date: "1431-06-20", Summary: "a"},
		{ID: "ev_002", Book: "b1", Chapter: "ch01", Date: "1431-06-01", Summary: "flashback"},
	}
	report := New(testHeuristics(t)).Run(cols)
	if issues := issuesByCode(report, CodeDateRegression); len(issues) != 0 {
		t.Fatalf("issues = %+v, want none", issues)
	}
}

func TestDuplicates(t *testing.T) {
	long := "The cortes of Valladolid convenes to debate the new servicio tax on wool exports"
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Summary: long + " in the spring."},
		{ID: "ev_002", Summary: strings.ToUpper(long[:1]) + long[1:] + " after much delay."},
		{ID: "ev_003", Summary: "Short."},
		{ID: "ev_004", Summary: "Short."},
	}
	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodePossibleDuplicate)
	if len(issues) != 1 {
		t.Fatalf("possible_duplicate = %d, want 1 (short prefixes exempt): %+v", len(issues), issues)
	}
	events, _ := issues[0].Details["events"].([]string)
	if len(events) != 2 {
		t.Errorf("grouped events = %v", issues[0].Details["events"])
	}
}

// The short-prefix exemption is measured in characters, not bytes; a brief
// accented summary must not clear the gate on byte length alone.
func TestDuplicates_ShortMultibytePrefixExempt(t *testing.T) {
	short := strings.Repeat("é", 28) + "."
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Summary: short},
		{ID: "ev_002", Summary: short},
	}
	report := New(testHeuristics(t)).Run(cols)
	if issues := issuesByCode(report, CodePossibleDuplicate); len(issues) != 0 {
		t.Fatalf("issues = %+v, want none for a 29-character prefix", issues)
	}
}

func TestInvalidType(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Type: "council", Summary: "a"},
		{ID: "ev_002", Type: "skirmish", Summary: "b"},
		{ID: "ev_003", Type: "portent", Summary: "c"},
	}
	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodeInvalidType)
	if len(issues) != 2 {
		t.Fatalf("invalid_type = %d, want 2: %+v", len(issues), issues)
	}
	for _, issue := range issues {
		if issue.Severity != SeverityWarn {
			t.Errorf("invalid_type must be a warning, got %s", issue.Severity)
		}
	}
}

func TestReferences(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Characters: []string{"juan_ii", "narrator", "ghost"}, Factions: []string{"no_such_faction"}},
	}
	cols.Characters.Records = []store.Character{
		{ID: "juan_ii", Name: "Juan II", EventRefs: []string{"ev_001", "ev_404"}},
	}
	cols.Factions.Records = []store.Faction{
		{ID: "liga_nobles", Name: "Liga", Leader: "missing_leader", Members: []string{"juan_ii", "missing_member"}},
	}
	cols.Rolls.Records = []store.Roll{
		{ID: "roll_001", EventID: "ev_404", OutcomeRange: "61-80"},
	}
	cols.Laws.Records = []store.Law{
		{ID: "law_001", Title: "Ordinance", Status: "active", OriginEventID: "ev_404"},
		{ID: "law_002", Title: "Ordinance II", Status: "active", OriginEventID: "unknown"},
	}

	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodeBrokenReference)

	want := map[string]int{
		"events/ghost":            1,
		"events/no_such_faction":  1,
		"characters/ev_404":       1,
		"factions/missing_leader": 1,
		"factions/missing_member": 1,
		"rolls/ev_404":            1,
		"laws/ev_404":             1,
	}
	got := make(map[string]int)
	for _, issue := range issues {
		got[issue.Collection+"/"+issue.Details["target"].(string)]++
	}
	for key, n := range want {
		if got[key] != n {
			t.Errorf("missing broken reference %s (got %+v)", key, got)
		}
	}
	if len(issues) != 7 {
		t.Errorf("broken_reference = %d, want 7 (narrator and sentinel exempt): %+v", len(issues), issues)
	}
}

func TestEventRefOrder(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Date: "1431-06-06"},
		{ID: "ev_002", Date: "1430-01-01"},
	}
	cols.Characters.Records = []store.Character{
		{ID: "c1", Name: "C", EventRefs: []string{"ev_001", "ev_002"}},
	}
	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodeEventRefsOutOfOrder)
	if len(issues) != 1 || issues[0].RecordID != "c1" {
		t.Fatalf("issues = %+v", issues)
	}
}

func TestCompleteness(t *testing.T) {
	cols := emptyCollections()
	cols.Characters.Records = []store.Character{
		{
			ID: "thin", Name: "Thin",
			Traits:      []string{"brave"},
			Description: "Too short.",
		},
		{
			ID: "full", Name: "Full",
			Appearance:  "Tall, grey-bearded, walks with a cane.",
			SpeechStyle: "Formal castilian",
			Interests:   []string{"falconry"},
			Traits:      []string{"brave", "pious", "stern", "learned"},
			Description: strings.Repeat("A detailed description with many words in it. ", 4),
		},
	}
	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodeIncompleteCharacter)
	if len(issues) != 1 || issues[0].RecordID != "thin" {
		t.Fatalf("issues = %+v, want one for 'thin'", issues)
	}
	if issues[0].Severity != SeverityWarn {
		t.Errorf("completeness must be a warning, got %s", issues[0].Severity)
	}
}

func TestInvalidDate(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Date: "summer of 1431"},
	}
	cols.Laws.Records = []store.Law{
		{ID: "law_001", Title: "T", Status: "active", DateEnacted: "1431-13-40"},
	}
	report := New(testHeuristics(t)).Run(cols)
	issues := issuesByCode(report, CodeInvalidDate)
	if len(issues) != 2 {
		t.Fatalf("invalid_date = %d, want 2: %+v", len(issues), issues)
	}
}

// The checker must not mutate anything it reads.
func TestRun_DoesNotMutate(t *testing.T) {
	cols := emptyCollections()
	cols.Events.Records = []store.Event{
		{ID: "ev_001", Book: "b1", Chapter: "ch02", Date: "1431-06-10", Summary: "b", Characters: []string{"ghost"}},
		{ID: "ev_002", Book: "b1", Chapter: "ch01", Date: "1431-06-20", Summary: "a"},
	}
	firstOrder := []string{cols.Events.Records[0].ID, cols.Events.Records[1].ID}

	New(testHeuristics(t)).Run(cols)

	if cols.Events.Records[0].ID != firstOrder[0] || cols.Events.Records[1].ID != firstOrder[1] {
		t.Error("checker reordered the events collection")
	}
}
