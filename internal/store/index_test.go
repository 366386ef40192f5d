package store

import "testing"

func testCollections() *Collections {
	return &Collections{
		Events: &Events{Records: []Event{
			{ID: "ev_002", Date: "1431-07-01", Characters: []string{"juan_ii", "alvaro"}},
			{ID: "ev_001", Date: "1431-06-06", Characters: []string{"juan_ii"}},
			{ID: "ev_003", Date: "1431-07-01", Characters: []string{"alvaro"}},
		}},
		Characters: &Characters{Records: []Character{
			{ID: "juan_ii", Name: "Juan II", EventRefs: []string{"ev_001", "ev_002", "ev_404"}},
			{ID: "alvaro", Name: "Álvaro de Luna"},
		}},
		Factions:  &Factions{},
		Locations: &Locations{},
		Laws:      &Laws{},
		Rolls: &Rolls{Records: []Roll{
			{ID: "roll_001", EventID: "ev_001"},
			{ID: "roll_002", EventID: "ev_001"},
		}},
	}
}

func TestEventsByCharacter_Sorted(t *testing.T) {
	cols := testCollections()
	byChar := cols.EventsByCharacter()

	events := byChar["juan_ii"]
	if len(events) != 2 {
		t.Fatalf("juan_ii events = %d, want 2", len(events))
	}
	if events[0].ID != "ev_001" || events[1].ID != "ev_002" {
		t.Errorf("order = %s, %s; want ev_001, ev_002", events[0].ID, events[1].ID)
	}

	// Same date ties break by id.
	alvaro := byChar["alvaro"]
	if len(alvaro) != 2 || alvaro[0].ID != "ev_002" || alvaro[1].ID != "ev_003" {
		t.Errorf("alvaro events out of order: %+v", alvaro)
	}
}

func TestResolveEventRefs_SkipsDangling(t *testing.T) {
	cols := testCollections()
	char := &cols.Characters.Records[0]
	resolved := cols.ResolveEventRefs(char)
	if len(resolved) != 2 {
		t.Fatalf("resolved = %d, want 2 (dangling ref skipped)", len(resolved))
	}
	if resolved[0].ID != "ev_001" || resolved[1].ID != "ev_002" {
		t.Errorf("resolved order = %s, %s", resolved[0].ID, resolved[1].ID)
	}
}

func TestRollsByEvent(t *testing.T) {
	cols := testCollections()
	byEvent := cols.RollsByEvent()
	if len(byEvent["ev_001"]) != 2 {
		t.Errorf("ev_001 rolls = %d, want 2", len(byEvent["ev_001"]))
	}
}

func TestDates(t *testing.T) {
	if !IsValidDate("1431-06-06") {
		t.Error("1431-06-06 should be valid")
	}
	if IsValidDate("June 6, 1431") {
		t.Error("prose date should be invalid")
	}
	if d := DaysBetween("1431-06-06", "1431-06-01"); d != 5 {
		t.Errorf("DaysBetween = %d, want 5", d)
	}
	if d := DaysBetween("1431-06-01", "1431-06-06"); d != 5 {
		t.Errorf("DaysBetween should be absolute, got %d", d)
	}
	if d := DaysBetween("not-a-date", "1431-06-06"); d != -1 {
		t.Errorf("invalid date should yield -1, got %d", d)
	}
}
