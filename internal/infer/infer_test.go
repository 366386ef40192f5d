package infer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

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

// lunaCollections is a character with a four-event history: three councils,
// one battle, a faction named by a small personal event, and a location on
// the second-to-last event.
func lunaCollections() *store.Collections {
	return &store.Collections{
		Events: &store.Events{Records: []store.Event{
			{ID: "ev_001", Type: "council", Location: "segovia", Summary: "Luna counsels the king.", Characters: []string{"alvaro_luna", "juan_ii"}},
			{ID: "ev_002", Type: "council", Location: "valladolid", Summary: "Luna presides over the council.", Characters: []string{"alvaro_luna"}, Factions: []string{"liga_nobles"}},
			{ID: "ev_003", Type: "battle", Tags: []string{"conquest"}, Summary: "Luna leads the vanguard at Olmedo.", Characters: []string{"alvaro_luna"}},
			{ID: "ev_004", Type: "council", Summary: "The constable is absent.", Characters: []string{"alvaro_luna"}},
		}},
		Characters: &store.Characters{Records: []store.Character{
			{
				ID: "alvaro_luna", Name: "Álvaro de Luna",
				Traits:    []string{"Diplomatic"},
				EventRefs: []string{"ev_001", "ev_002", "ev_003", "ev_004"},
			},
		}},
		Factions: &store.Factions{Records: []store.Faction{
			{ID: "liga_nobles", Name: "Liga de Nobles"},
		}},
		Locations: &store.Locations{},
		Laws:      &store.Laws{},
		Rolls:     &store.Rolls{},
	}
}

func TestRun_DerivesAttributes(t *testing.T) {
	cols := lunaCollections()
	result := New(testHeuristics(t)).Run(cols)
	if len(result.Diffs) != 1 {
		t.Fatalf("diffs = %+v, want 1", result.Diffs)
	}
	diff := result.Diffs[0]

	if diff.Location != "valladolid" {
		t.Errorf("location = %q, want valladolid (last event with one)", diff.Location)
	}
	if !strings.Contains(diff.CurrentTask, "vanguard") {
		t.Errorf("current_task = %q, want the most recent relevant sentences", diff.CurrentTask)
	}
	// "diplomatic" is already present (case-insensitively); "calculating"
	// cleared the threshold from three council events.
	if want := []string{"calculating"}; !cmp.Equal(want, diff.NewTraits) {
		t.Errorf("new traits = %v, want %v", diff.NewTraits, want)
	}
	if want := []string{"liga_nobles"}; !cmp.Equal(want, diff.NewFactions) {
		t.Errorf("new factions = %v, want %v", diff.NewFactions, want)
	}
}

// Applying the diffs and re-running must yield nothing: inference is a
// fixed point after one apply.
func TestRun_IdempotentAfterApply(t *testing.T) {
	h := testHeuristics(t)
	cols := lunaCollections()

	first := New(h).Run(cols)
	if applied := Apply(cols, first, zap.NewNop()); applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}

	char := &cols.Characters.Records[0]
	if char.Location != "valladolid" {
		t.Errorf("location not applied: %q", char.Location)
	}
	faction := &cols.Factions.Records[0]
	if len(faction.Members) != 1 || faction.Members[0] != "alvaro_luna" {
		t.Errorf("membership not mirrored: %v", faction.Members)
	}

	second := New(h).Run(cols)
	if len(second.Diffs) != 0 {
		t.Fatalf("second run diffs = %+v, want none", second.Diffs)
	}
}

// A single-event history relaxes the corroboration threshold to 1.
func TestInferTraits_AdaptiveThreshold(t *testing.T) {
	cols := &store.Collections{
		Events: &store.Events{Records: []store.Event{
			{ID: "ev_001", Type: "council", Summary: "A quiet session."},
		}},
		Characters: &store.Characters{Records: []store.Character{
			{ID: "pedro", Name: "Pedro Núñez", EventRefs: []string{"ev_001"}},
		}},
		Factions:  &store.Factions{},
		Locations: &store.Locations{},
		Laws:      &store.Laws{},
		Rolls:     &store.Rolls{},
	}
	result := New(testHeuristics(t)).Run(cols)
	if len(result.Diffs) != 1 {
		t.Fatalf("diffs = %+v", result.Diffs)
	}
	want := []string{"calculating", "diplomatic"}
	if !cmp.Equal(want, result.Diffs[0].NewTraits) {
		t.Errorf("traits = %v, want %v", result.Diffs[0].NewTraits, want)
	}
}

func TestAdaptiveThreshold(t *testing.T) {
	cases := []struct {
		fixed, events, want int
	}{
		{2, 0, 1},
		{2, 1, 1},
		{2, 3, 1},
		{2, 4, 2},
		{2, 40, 2},
		{5, 6, 3},
	}
	for _, c := range cases {
		if got := adaptiveThreshold(c.fixed, c.events); got != c.want {
			t.Errorf("adaptiveThreshold(%d, %d) = %d, want %d", c.fixed, c.events, got, c.want)
		}
	}
}

// With no event signal and no curated traits, the id and name seed a
// fallback guess.
func TestInferTraits_Fallback(t *testing.T) {
	cols := &store.Collections{
		Events: &store.Events{},
		Characters: &store.Characters{Records: []store.Character{
			{ID: "bishop_anselmo", Name: "Anselmo"},
			{ID: "nun_teresa", Name: "Teresa", Traits: []string{"stern"}},
		}},
		Factions:  &store.Factions{},
		Locations: &store.Locations{},
		Laws:      &store.Laws{},
		Rolls:     &store.Rolls{},
	}
	result := New(testHeuristics(t)).Run(cols)
	if len(result.Diffs) != 1 {
		t.Fatalf("diffs = %+v, want only the blank character", result.Diffs)
	}
	diff := result.Diffs[0]
	if diff.CharacterID != "bishop_anselmo" {
		t.Fatalf("diff for %s, want bishop_anselmo", diff.CharacterID)
	}
	if want := []string{"pious"}; !cmp.Equal(want, diff.NewTraits) {
		t.Errorf("fallback traits = %v, want %v", diff.NewTraits, want)
	}
}

// Faction mentions on crowded events say nothing about membership.
func TestInferFactions_SkipsLargeEvents(t *testing.T) {
	cols := &store.Collections{
		Events: &store.Events{Records: []store.Event{
			{ID: "ev_001", Type: "battle", Summary: "The armies clash.",
				Characters: []string{"a", "b", "c", "d"},
				Factions:   []string{"liga_nobles"}},
			{ID: "ev_002", Type: "battle", Summary: "Two banners meet.",
				Characters: []string{"a"},
				Factions:   []string{"liga_nobles", "corona_castilla"}},
		}},
		Characters: &store.Characters{Records: []store.Character{
			{ID: "a", Name: "A", Traits: []string{"brave"}, EventRefs: []string{"ev_001", "ev_002"}},
		}},
		Factions:  &store.Factions{},
		Locations: &store.Locations{},
		Laws:      &store.Laws{},
		Rolls:     &store.Rolls{},
	}
	result := New(testHeuristics(t)).Run(cols)
	for _, diff := range result.Diffs {
		if len(diff.NewFactions) != 0 {
			t.Errorf("factions inferred from crowded or ambiguous events: %+v", diff)
		}
	}
}

func TestCurrentTask_TruncatesAtWordBoundary(t *testing.T) {
	h := testHeuristics(t)
	long := "Luna " + strings.Repeat("marches onward ", 25) + "to Toledo."
	cols := &store.Collections{
		Events: &store.Events{Records: []store.Event{
			{ID: "ev_001", Type: "journey", Summary: long},
		}},
		Characters: &store.Characters{Records: []store.Character{
			{ID: "alvaro_luna", Name: "Álvaro de Luna", Traits: []string{"brave"}, EventRefs: []string{"ev_001"}},
		}},
		Factions:  &store.Factions{},
		Locations: &store.Locations{},
		Laws:      &store.Laws{},
		Rolls:     &store.Rolls{},
	}
	result := New(h).Run(cols)
	if len(result.Diffs) != 1 {
		t.Fatalf("diffs = %+v", result.Diffs)
	}
	task := result.Diffs[0].CurrentTask
	if task == "" || len(task) > h.Traits.TaskMaxLen {
		t.Fatalf("task length = %d, want 1..%d", len(task), h.Traits.TaskMaxLen)
	}
	if strings.HasSuffix(task, " ") || strings.Contains(task, "onwar ") {
		t.Errorf("task split mid-word: %q", task)
	}
}

func TestRun_OnlyFilter(t *testing.T) {
	cols := lunaCollections()
	cols.Characters.Records = append(cols.Characters.Records, store.Character{
		ID: "bishop_anselmo", Name: "Anselmo",
	})

	result := New(testHeuristics(t)).Run(cols, "bishop_anselmo")
	if len(result.Diffs) != 1 || result.Diffs[0].CharacterID != "bishop_anselmo" {
		t.Fatalf("diffs = %+v, want only bishop_anselmo", result.Diffs)
	}
}
