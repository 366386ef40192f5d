// Package partition keeps a monolithic events collection and its
// per-chapter partition files equivalent. Splitting is a lossless,
// order-preserving decomposition: merge(split(x)) reproduces x field for
// field, including the envelope metadata carried in a sidecar file.
package partition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"cronista/internal/store"
)

const (
	sidecarFile     = "partitions_meta.json"
	partitionPrefix = "events_"
)

// ErrPartitionsExist is returned by WriteSplit when partitions are already
// on disk and force was not set.
var ErrPartitionsExist = errors.New("partitions already exist")

// Split groups events by chapter, preserving in-chapter order. Records with
// an empty chapter key are grouped under "unassigned" so nothing is lost.
func Split(col *store.Events) map[string][]store.Event {
	parts := make(map[string][]store.Event)
	for _, ev := range col.Records {
		key := ev.Chapter
		if key == "" {
			key = "unassigned"
		}
		parts[key] = append(parts[key], ev)
	}
	return parts
}

// Merge concatenates partitions in lexicographic chapter order, preserving
// in-partition order, and reattaches the sidecar metadata.
func Merge(parts map[string][]store.Event, meta *store.Meta) *store.Events {
	keys := make([]string, 0, len(parts))
	for key := range parts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var records []store.Event
	for _, key := range keys {
		records = append(records, parts[key]...)
	}
	return &store.Events{Meta: meta, Records: records}
}

// WriteSplit persists the partitions and the sidecar under dir. Existing
// partition files abort the write unless force is set, so manually edited
// partitions are never discarded silently.
func WriteSplit(dir string, parts map[string][]store.Event, meta *store.Meta, force bool) error {
	existing, err := listPartitionFiles(dir)
	if err != nil {
		return err
	}
	if !force && len(existing) > 0 {
		return fmt.Errorf("%w in %s (%d files); use force to overwrite", ErrPartitionsExist, dir, len(existing))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating partitions dir: %w", err)
	}

	written := make(map[string]struct{}, len(parts))
	for key, records := range parts {
		payload, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding partition %s: %w", key, err)
		}
		payload = append(payload, '\n')
		file := partitionPrefix + key + ".json"
		written[file] = struct{}{}
		if err := store.WriteFileAtomic(filepath.Join(dir, file), payload); err != nil {
			return err
		}
	}

	// A partition whose chapter vanished from the monolith would resurface
	// its records on the next merge; a forced write owns the directory and
	// removes what it did not regenerate.
	for _, file := range existing {
		if _, ok := written[file]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(dir, file)); err != nil {
			return fmt.Errorf("removing stale partition %s: %w", file, err)
		}
	}

	if meta != nil {
		payload, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding sidecar: %w", err)
		}
		payload = append(payload, '\n')
		if err := store.WriteFileAtomic(filepath.Join(dir, sidecarFile), payload); err != nil {
			return err
		}
	}

	return nil
}

// ReadPartitions loads every partition file and the sidecar from dir. A
// missing sidecar yields nil metadata, matching a bare-array monolith.
func ReadPartitions(dir string) (map[string][]store.Event, *store.Meta, error) {
	files, err := listPartitionFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: no partitions in %s", store.ErrNotFound, dir)
	}

	parts := make(map[string][]store.Event, len(files))
	for _, file := range files {
		key := strings.TrimSuffix(strings.TrimPrefix(file, partitionPrefix), ".json")
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, nil, fmt.Errorf("reading partition %s: %w", file, err)
		}
		var records []store.Event
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, nil, fmt.Errorf("%w: partition %s: %v", store.ErrParse, file, err)
		}
		parts[key] = records
	}

	var meta *store.Meta
	data, err := os.ReadFile(filepath.Join(dir, sidecarFile))
	switch {
	case err == nil:
		meta = &store.Meta{}
		if err := json.Unmarshal(data, meta); err != nil {
			return nil, nil, fmt.Errorf("%w: sidecar: %v", store.ErrParse, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, nil, fmt.Errorf("reading sidecar: %w", err)
	}

	return parts, meta, nil
}

// FieldDiff is one differing field between the monolith and the merged
// partitions, located by record id.
type FieldDiff struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Detail   string `json:"detail"`
}

// Verify asserts merge(partitions) == monolith and reports every differing
// field per record, not just a boolean.
func Verify(monolith, merged *store.Events) []FieldDiff {
	var diffs []FieldDiff

	if d := cmp.Diff(monolith.Meta, merged.Meta); d != "" {
		diffs = append(diffs, FieldDiff{RecordID: "meta", Field: "meta", Detail: d})
	}

	monoByID := make(map[string]store.Event, len(monolith.Records))
	monoOrder := make([]string, 0, len(monolith.Records))
	for _, ev := range monolith.Records {
		monoByID[ev.ID] = ev
		monoOrder = append(monoOrder, ev.ID)
	}
	mergedByID := make(map[string]store.Event, len(merged.Records))
	mergedOrder := make([]string, 0, len(merged.Records))
	for _, ev := range merged.Records {
		mergedByID[ev.ID] = ev
		mergedOrder = append(mergedOrder, ev.ID)
	}

	for _, id := range monoOrder {
		mergedEv, ok := mergedByID[id]
		if !ok {
			diffs = append(diffs, FieldDiff{RecordID: id, Field: "record", Detail: "missing from merged partitions"})
			continue
		}
		monoEv := monoByID[id]
		var rep fieldReporter
		if !cmp.Equal(monoEv, mergedEv, cmp.Reporter(&rep)) {
			for _, f := range rep.fields {
				diffs = append(diffs, FieldDiff{RecordID: id, Field: f.field, Detail: f.detail})
			}
		}
	}
	for _, id := range mergedOrder {
		if _, ok := monoByID[id]; !ok {
			diffs = append(diffs, FieldDiff{RecordID: id, Field: "record", Detail: "not present in monolith"})
		}
	}

	// Order must survive the round trip within each chapter; compare the
	// full id sequences once per-record fields are accounted for.
	if len(diffs) == 0 && !equalStrings(monoOrder, mergedOrder) {
		diffs = append(diffs, FieldDiff{RecordID: "order", Field: "order", Detail: "record order differs between monolith and merged partitions"})
	}

	return diffs
}

type fieldDiff struct {
	field  string
	detail string
}

// fieldReporter collects the cmp path and values for every differing leaf.
type fieldReporter struct {
	path   cmp.Path
	fields []fieldDiff
}

func (r *fieldReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *fieldReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	vx, vy := r.path.Last().Values()
	r.fields = append(r.fields, fieldDiff{
		field:  strings.TrimPrefix(r.path.GoString(), "root"),
		detail: fmt.Sprintf("monolith=%+v merged=%+v", vx, vy),
	})
}

func (r *fieldReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func listPartitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading partitions dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, partitionPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Status summarizes monolith vs partitions without mutating either.
type Status struct {
	MonolithRecords  int            `json:"monolith_records"`
	PartitionRecords int            `json:"partition_records"`
	Partitions       map[string]int `json:"partitions"`
	SidecarPresent   bool           `json:"sidecar_present"`
	InSync           bool           `json:"in_sync"`
}

func Summarize(monolith *store.Events, parts map[string][]store.Event, meta *store.Meta) Status {
	st := Status{Partitions: make(map[string]int, len(parts))}
	st.MonolithRecords = len(monolith.Records)
	for key, records := range parts {
		st.Partitions[key] = len(records)
		st.PartitionRecords += len(records)
	}
	st.SidecarPresent = meta != nil
	st.InSync = len(Verify(monolith, Merge(parts, meta))) == 0
	return st
}
