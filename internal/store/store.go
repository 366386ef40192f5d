package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cronista/internal/config"
)

var (
	// ErrNotFound means a required collection file does not exist.
	ErrNotFound = errors.New("collection not found")
	// ErrParse means a collection file exists but cannot be decoded.
	ErrParse = errors.New("collection parse error")
)

// Store reads and writes the six collection files. Every save is a full
// rewrite through a temp file and rename, so a crash never leaves a partial
// file behind. Callers load the whole collection before mutating.
type Store struct {
	cfg *config.ProjectConfig
}

func Open(cfg *config.ProjectConfig) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) LoadEvents() (*Events, error) {
	meta, records, err := loadCollection[Event](s.path(s.cfg.Collections.Events), "events")
	if err != nil {
		return nil, err
	}
	return &Events{Meta: meta, Records: records}, nil
}

func (s *Store) SaveEvents(col *Events) error {
	return saveCollection(s.path(s.cfg.Collections.Events), "events", col.Meta, col.Records)
}

func (s *Store) LoadCharacters() (*Characters, error) {
	meta, records, err := loadCollection[Character](s.path(s.cfg.Collections.Characters), "characters")
	if err != nil {
		return nil, err
	}
	return &Characters{Meta: meta, Records: records}, nil
}

func (s *Store) SaveCharacters(col *Characters) error {
	return saveCollection(s.path(s.cfg.Collections.Characters), "characters", col.Meta, col.Records)
}

func (s *Store) LoadFactions() (*Factions, error) {
	meta, records, err := loadCollection[Faction](s.path(s.cfg.Collections.Factions), "factions")
	if err != nil {
		return nil, err
	}
	return &Factions{Meta: meta, Records: records}, nil
}

func (s *Store) SaveFactions(col *Factions) error {
	return saveCollection(s.path(s.cfg.Collections.Factions), "factions", col.Meta, col.Records)
}

func (s *Store) LoadLocations() (*Locations, error) {
	meta, records, err := loadCollection[Location](s.path(s.cfg.Collections.Locations), "locations")
	if err != nil {
		return nil, err
	}
	return &Locations{Meta: meta, Records: records}, nil
}

func (s *Store) SaveLocations(col *Locations) error {
	return saveCollection(s.path(s.cfg.Collections.Locations), "locations", col.Meta, col.Records)
}

func (s *Store) LoadLaws() (*Laws, error) {
	meta, records, err := loadCollection[Law](s.path(s.cfg.Collections.Laws), "laws")
	if err != nil {
		return nil, err
	}
	return &Laws{Meta: meta, Records: records}, nil
}

func (s *Store) SaveLaws(col *Laws) error {
	return saveCollection(s.path(s.cfg.Collections.Laws), "laws", col.Meta, col.Records)
}

func (s *Store) LoadRolls() (*Rolls, error) {
	meta, records, err := loadCollection[Roll](s.path(s.cfg.Collections.Rolls), "rolls")
	if err != nil {
		return nil, err
	}
	return &Rolls{Meta: meta, Records: records}, nil
}

func (s *Store) SaveRolls(col *Rolls) error {
	return saveCollection(s.path(s.cfg.Collections.Rolls), "rolls", col.Meta, col.Records)
}

// LoadAll loads every collection; any missing or malformed file aborts the
// whole run.
func (s *Store) LoadAll() (*Collections, error) {
	events, err := s.LoadEvents()
	if err != nil {
		return nil, err
	}
	characters, err := s.LoadCharacters()
	if err != nil {
		return nil, err
	}
	factions, err := s.LoadFactions()
	if err != nil {
		return nil, err
	}
	locations, err := s.LoadLocations()
	if err != nil {
		return nil, err
	}
	laws, err := s.LoadLaws()
	if err != nil {
		return nil, err
	}
	rolls, err := s.LoadRolls()
	if err != nil {
		return nil, err
	}
	return &Collections{
		Events:     events,
		Characters: characters,
		Factions:   factions,
		Locations:  locations,
		Laws:       laws,
		Rolls:      rolls,
	}, nil
}

func (s *Store) path(file string) string {
	return s.cfg.CollectionPath(file)
}

// A collection file is either a bare JSON array of records or an object
// carrying a meta envelope plus the records under a collection-specific key.
func loadCollection[T any](path, key string) (*Meta, []T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return decodeCollection[T](data, path, key)
}

func decodeCollection[T any](data []byte, path, key string) (*Meta, []T, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrParse, path)
	}

	if trimmed[0] == '[' {
		var records []T
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
		}
		return nil, records, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	meta := &Meta{}
	if raw, ok := envelope["meta"]; ok {
		if err := json.Unmarshal(raw, meta); err != nil {
			return nil, nil, fmt.Errorf("%w: %s meta: %v", ErrParse, path, err)
		}
	}

	raw, ok := envelope[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s has no %q list", ErrParse, path, key)
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return meta, records, nil
}

func saveCollection[T any](path, key string, meta *Meta, records []T) error {
	if records == nil {
		records = []T{}
	}

	var payload []byte
	var err error
	if meta == nil {
		payload, err = json.MarshalIndent(records, "", "  ")
	} else {
		envelope := map[string]any{
			"meta": meta,
			key:    records,
		}
		payload, err = json.MarshalIndent(envelope, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	payload = append(payload, '\n')

	return WriteFileAtomic(path, payload)
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
