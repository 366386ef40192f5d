package store

// Record types mirror the on-disk JSON artifacts field for field. Identifiers
// are stable strings assigned at extraction time and never reassigned.

// Meta is the envelope metadata carried by collections persisted as an
// object rather than a bare array. It also serves as the sidecar record for
// partitioned collections, since counters belong to no single partition.
type Meta struct {
	SchemaVersion int `json:"schema_version,omitempty"`
	NextID        int `json:"next_id,omitempty"`
	TotalRolls    int `json:"total_rolls,omitempty"`
}

type Exchange struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type Event struct {
	ID         string     `json:"id"`
	Date       string     `json:"date,omitempty"`
	EndDate    string     `json:"end_date,omitempty"`
	Book       string     `json:"book,omitempty"`
	Chapter    string     `json:"chapter"`
	Type       string     `json:"type"`
	Summary    string     `json:"summary"`
	Exchanges  []Exchange `json:"exchanges,omitempty"`
	Characters []string   `json:"characters,omitempty"`
	Factions   []string   `json:"factions,omitempty"`
	Location   string     `json:"location,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Status     string     `json:"status,omitempty"`
}

type Character struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Location    string   `json:"location,omitempty"`
	CurrentTask string   `json:"current_task,omitempty"`
	Traits      []string `json:"personality_traits,omitempty"`
	Factions    []string `json:"factions,omitempty"`
	EventRefs   []string `json:"event_refs,omitempty"`
	Status      []string `json:"status,omitempty"`
	Appearance  string   `json:"appearance,omitempty"`
	SpeechStyle string   `json:"speech_style,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Faction struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Leader      string   `json:"leader,omitempty"`
	Members     []string `json:"members,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Location struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Region       string   `json:"region,omitempty"`
	SubLocations []string `json:"sub_locations,omitempty"`
}

type LawRepeal struct {
	Date       string `json:"date"`
	Reason     string `json:"reason,omitempty"`
	RepealedBy string `json:"repealed_by,omitempty"`
}

type Law struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary,omitempty"`
	FullText      string     `json:"full_text,omitempty"`
	DateEnacted   string     `json:"date_enacted,omitempty"`
	Status        string     `json:"status"`
	Scope         string     `json:"scope,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	EnactedBy     string     `json:"enacted_by,omitempty"`
	ProposedBy    string     `json:"proposed_by,omitempty"`
	OriginEventID string     `json:"origin_event_id,omitempty"`
	RelatedEvents []string   `json:"related_events,omitempty"`
	Repeal        *LawRepeal `json:"repeal,omitempty"`
}

type Roll struct {
	ID             string   `json:"id"`
	EventID        string   `json:"event_id"`
	OutcomeRange   string   `json:"outcome_range"`
	Rolled         *int     `json:"rolled,omitempty"`
	Outcome        string   `json:"outcome,omitempty"`
	Evaluation     string   `json:"evaluation,omitempty"`
	SuccessFactors []string `json:"success_factors,omitempty"`
	FailureFactors []string `json:"failure_factors,omitempty"`
}

// Events is the in-memory form of the events collection: the record list
// plus the envelope metadata when the file carries one. Meta is nil for
// bare-array files so a save reproduces the original shape.
type Events struct {
	Meta    *Meta
	Records []Event
}

type Characters struct {
	Meta    *Meta
	Records []Character
}

type Factions struct {
	Meta    *Meta
	Records []Faction
}

type Locations struct {
	Meta    *Meta
	Records []Location
}

type Laws struct {
	Meta    *Meta
	Records []Law
}

type Rolls struct {
	Meta    *Meta
	Records []Roll
}

// Collections is everything the engines operate on, loaded in one pass.
type Collections struct {
	Events     *Events
	Characters *Characters
	Factions   *Factions
	Locations  *Locations
	Laws       *Laws
	Rolls      *Rolls
}

// HasStatus reports whether the character carries the given status flag.
func (c *Character) HasStatus(status string) bool {
	for _, s := range c.Status {
		if s == status {
			return true
		}
	}
	return false
}
