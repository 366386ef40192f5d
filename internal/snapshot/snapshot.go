// Package snapshot loads the collections into an in-memory sqlite database
// so operators can run ad hoc SQL over the knowledge base. The snapshot is
// read-only: nothing here writes back to the collection files.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"cronista/internal/store"

	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB
}

// Build opens an in-memory database and populates it from the collections.
func Build(ctx context.Context, cols *store.Collections) (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	s := &DB{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.populate(ctx, cols); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) ensureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE events (
		id       TEXT PRIMARY KEY,
		date     TEXT,
		end_date TEXT,
		book     TEXT,
		chapter  TEXT,
		type     TEXT,
		summary  TEXT,
		location TEXT,
		status   TEXT,
		tags     TEXT
	);

	CREATE TABLE event_characters (
		event_id     TEXT NOT NULL,
		character_id TEXT NOT NULL
	);

	CREATE TABLE event_factions (
		event_id   TEXT NOT NULL,
		faction_id TEXT NOT NULL
	);

	CREATE TABLE characters (
		id           TEXT PRIMARY KEY,
		name         TEXT,
		location     TEXT,
		current_task TEXT,
		status       TEXT,
		description  TEXT
	);

	CREATE TABLE character_traits (
		character_id TEXT NOT NULL,
		trait        TEXT NOT NULL
	);

	CREATE TABLE factions (
		id          TEXT PRIMARY KEY,
		name        TEXT,
		leader      TEXT,
		description TEXT
	);

	CREATE TABLE faction_members (
		faction_id   TEXT NOT NULL,
		character_id TEXT NOT NULL
	);

	CREATE TABLE locations (
		id     TEXT PRIMARY KEY,
		name   TEXT,
		region TEXT
	);

	CREATE TABLE laws (
		id              TEXT PRIMARY KEY,
		title           TEXT,
		summary         TEXT,
		date_enacted    TEXT,
		status          TEXT,
		scope           TEXT,
		enacted_by      TEXT,
		proposed_by     TEXT,
		origin_event_id TEXT
	);

	CREATE TABLE rolls (
		id            TEXT PRIMARY KEY,
		event_id      TEXT,
		outcome_range TEXT,
		rolled        INTEGER,
		outcome       TEXT
	);

	CREATE INDEX idx_events_chapter ON events (chapter);
	CREATE INDEX idx_events_date ON events (date);
	CREATE INDEX idx_event_characters_char ON event_characters (character_id);
	CREATE INDEX idx_event_factions_faction ON event_factions (faction_id);
	CREATE INDEX idx_rolls_event ON rolls (event_id);
	CREATE INDEX idx_laws_origin ON laws (origin_event_id);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}

func (s *DB) populate(ctx context.Context, cols *store.Collections) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("populating snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range cols.Events.Records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, date, end_date, book, chapter, type, summary, location, status, tags)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.Date, ev.EndDate, ev.Book, ev.Chapter, ev.Type, ev.Summary, ev.Location, ev.Status,
			strings.Join(ev.Tags, ","),
		); err != nil {
			return fmt.Errorf("inserting event %s: %w", ev.ID, err)
		}
		for _, id := range ev.Characters {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO event_characters (event_id, character_id) VALUES (?, ?)`, ev.ID, id); err != nil {
				return fmt.Errorf("inserting event character %s/%s: %w", ev.ID, id, err)
			}
		}
		for _, id := range ev.Factions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO event_factions (event_id, faction_id) VALUES (?, ?)`, ev.ID, id); err != nil {
				return fmt.Errorf("inserting event faction %s/%s: %w", ev.ID, id, err)
			}
		}
	}

	for _, char := range cols.Characters.Records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO characters (id, name, location, current_task, status, description)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			char.ID, char.Name, char.Location, char.CurrentTask, strings.Join(char.Status, ","), char.Description,
		); err != nil {
			return fmt.Errorf("inserting character %s: %w", char.ID, err)
		}
		for _, trait := range char.Traits {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO character_traits (character_id, trait) VALUES (?, ?)`, char.ID, trait); err != nil {
				return fmt.Errorf("inserting trait %s/%s: %w", char.ID, trait, err)
			}
		}
	}

	for _, f := range cols.Factions.Records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO factions (id, name, leader, description) VALUES (?, ?, ?, ?)`,
			f.ID, f.Name, f.Leader, f.Description,
		); err != nil {
			return fmt.Errorf("inserting faction %s: %w", f.ID, err)
		}
		for _, id := range f.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO faction_members (faction_id, character_id) VALUES (?, ?)`, f.ID, id); err != nil {
				return fmt.Errorf("inserting faction member %s/%s: %w", f.ID, id, err)
			}
		}
	}

	for _, loc := range cols.Locations.Records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO locations (id, name, region) VALUES (?, ?, ?)`,
			loc.ID, loc.Name, loc.Region,
		); err != nil {
			return fmt.Errorf("inserting location %s: %w", loc.ID, err)
		}
	}

	for _, law := range cols.Laws.Records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO laws (id, title, summary, date_enacted, status, scope, enacted_by, proposed_by, origin_event_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			law.ID, law.Title, law.Summary, law.DateEnacted, law.Status, law.Scope, law.EnactedBy, law.ProposedBy, law.OriginEventID,
		); err != nil {
			return fmt.Errorf("inserting law %s: %w", law.ID, err)
		}
	}

	for _, roll := range cols.Rolls.Records {
		var rolled any
		if roll.Rolled != nil {
			rolled = *roll.Rolled
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rolls (id, event_id, outcome_range, rolled, outcome) VALUES (?, ?, ?, ?, ?)`,
			roll.ID, roll.EventID, roll.OutcomeRange, rolled, roll.Outcome,
		); err != nil {
			return fmt.Errorf("inserting roll %s: %w", roll.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("populating snapshot: %w", err)
	}
	return nil
}

// RunSQL executes a query with positional parameters keyed "1", "2", ...
// and returns the rows as column-name maps.
func (s *DB) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	args := make([]any, 0, len(params))
	for i := 1; i <= len(params); i++ {
		key := strconv.Itoa(i)
		if val, ok := params[key]; ok {
			args = append(args, val)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running sql: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("getting columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sql rows: %w", err)
	}

	return results, nil
}
