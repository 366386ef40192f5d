package store

import "sort"

// Index builders used by the checker and the engines. All return pointers
// into the backing slices so callers can correct records in place.

func (c *Collections) EventByID() map[string]*Event {
	out := make(map[string]*Event, len(c.Events.Records))
	for i := range c.Events.Records {
		out[c.Events.Records[i].ID] = &c.Events.Records[i]
	}
	return out
}

func (c *Collections) CharacterByID() map[string]*Character {
	out := make(map[string]*Character, len(c.Characters.Records))
	for i := range c.Characters.Records {
		out[c.Characters.Records[i].ID] = &c.Characters.Records[i]
	}
	return out
}

func (c *Collections) FactionByID() map[string]*Faction {
	out := make(map[string]*Faction, len(c.Factions.Records))
	for i := range c.Factions.Records {
		out[c.Factions.Records[i].ID] = &c.Factions.Records[i]
	}
	return out
}

func (c *Collections) LocationByID() map[string]*Location {
	out := make(map[string]*Location, len(c.Locations.Records))
	for i := range c.Locations.Records {
		out[c.Locations.Records[i].ID] = &c.Locations.Records[i]
	}
	return out
}

func (c *Collections) LawByID() map[string]*Law {
	out := make(map[string]*Law, len(c.Laws.Records))
	for i := range c.Laws.Records {
		out[c.Laws.Records[i].ID] = &c.Laws.Records[i]
	}
	return out
}

// EventsByCharacter maps each character id to the events that reference it,
// ordered by date then id.
func (c *Collections) EventsByCharacter() map[string][]*Event {
	out := make(map[string][]*Event)
	for i := range c.Events.Records {
		ev := &c.Events.Records[i]
		for _, id := range ev.Characters {
			out[id] = append(out[id], ev)
		}
	}
	for _, events := range out {
		sortEvents(events)
	}
	return out
}

// EventsByDate maps each calendar date to the events on that date.
func (c *Collections) EventsByDate() map[string][]*Event {
	out := make(map[string][]*Event)
	for i := range c.Events.Records {
		ev := &c.Events.Records[i]
		if ev.Date == "" {
			continue
		}
		out[ev.Date] = append(out[ev.Date], ev)
	}
	for _, events := range out {
		sortEvents(events)
	}
	return out
}

// RollsByEvent maps each event id to its rolls.
func (c *Collections) RollsByEvent() map[string][]*Roll {
	out := make(map[string][]*Roll)
	for i := range c.Rolls.Records {
		r := &c.Rolls.Records[i]
		out[r.EventID] = append(out[r.EventID], r)
	}
	return out
}

// ResolveEventRefs maps a character's event_refs to events, in ref order,
// skipping ids that do not resolve.
func (c *Collections) ResolveEventRefs(char *Character) []*Event {
	byID := c.EventByID()
	out := make([]*Event, 0, len(char.EventRefs))
	for _, id := range char.EventRefs {
		if ev, ok := byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out
}

func sortEvents(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].ID < events[j].ID
	})
}
